package depth

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"go.viam.com/depthcloud/logging"
)

// TensorLayout is the dimension order of a model's image input.
type TensorLayout string

const (
	// LayoutNCHW is batch, channel, height, width.
	LayoutNCHW TensorLayout = "nchw"
	// LayoutNHWC is batch, height, width, channel.
	LayoutNHWC TensorLayout = "nhwc"
)

// InputSpec describes how an image is turned into a model's input tensor and where the depth
// output is found.
type InputSpec struct {
	Width, Height int
	Layout        TensorLayout
	// Mean and Std normalise each of the R, G, B channels after scaling them to [0, 1].
	Mean, Std  [3]float32
	InputName  string
	OutputName string
}

// ModelConfig configures a model instance at load time.
type ModelConfig struct {
	Name string
	// Path is the model file, for models backed by one.
	Path       string
	Attributes map[string]float64
}

// Attribute returns the named attribute or def when it is unset.
func (conf ModelConfig) Attribute(name string, def float64) float64 {
	if v, ok := conf.Attributes[name]; ok {
		return v
	}
	return def
}

// A Loader creates a model from its config.
type Loader func(ctx context.Context, conf ModelConfig, logger logging.Logger) (Model, error)

// ModelRegistration stores how to load a model and what input it expects.
type ModelRegistration struct {
	Loader Loader
	Input  InputSpec
}

var (
	modelRegistryMu sync.RWMutex
	modelRegistry   = map[string]ModelRegistration{}
)

// RegisterModel registers a depth model under name. It panics on duplicate names or a nil loader.
func RegisterModel(name string, reg ModelRegistration) {
	modelRegistryMu.Lock()
	defer modelRegistryMu.Unlock()

	if _, old := modelRegistry[name]; old {
		panic(errors.Errorf("trying to register two depth models with the same name: %s", name))
	}
	if reg.Loader == nil {
		panic(errors.Errorf("cannot register a nil loader for depth model: %s", name))
	}
	modelRegistry[name] = reg
}

// LookupModel looks up a model registration by name.
func LookupModel(name string) (ModelRegistration, bool) {
	modelRegistryMu.RLock()
	defer modelRegistryMu.RUnlock()
	reg, ok := modelRegistry[name]
	return reg, ok
}

// RegisteredModels returns the sorted names of all registered models.
func RegisteredModels() []string {
	modelRegistryMu.RLock()
	defer modelRegistryMu.RUnlock()
	names := make([]string, 0, len(modelRegistry))
	for name := range modelRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewModelCacheFor returns a cache that loads the registered model named conf.Name on first use.
func NewModelCacheFor(conf ModelConfig, logger logging.Logger) (*ModelCache, InputSpec, error) {
	reg, ok := LookupModel(conf.Name)
	if !ok {
		return nil, InputSpec{}, errors.Errorf("unknown depth model %q, known models are %v", conf.Name, RegisteredModels())
	}
	cache := NewModelCache(func(ctx context.Context) (Model, error) {
		return reg.Loader(ctx, conf, logger)
	})
	return cache, reg.Input, nil
}

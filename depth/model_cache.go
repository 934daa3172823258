package depth

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"go.viam.com/depthcloud/ml"
)

// ModelCache lazily loads a model once and shares it until Close. Loading happens on the first
// Get; concurrent callers wait for that load rather than starting their own. A failed load is
// not remembered, so the next Get tries again.
type ModelCache struct {
	load func(ctx context.Context) (Model, error)

	mu     sync.Mutex
	model  Model
	closed bool
}

// NewModelCache returns a cache around load.
func NewModelCache(load func(ctx context.Context) (Model, error)) *ModelCache {
	return &ModelCache{load: load}
}

// Get returns the cached model, loading it if needed.
func (mc *ModelCache) Get(ctx context.Context) (Model, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if mc.closed {
		return nil, errors.New("model cache is closed")
	}
	if mc.model != nil {
		return mc.model, nil
	}
	model, err := mc.load(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "could not load depth model")
	}
	if model == nil {
		return nil, errors.New("depth model loader returned no model")
	}
	mc.model = model
	return model, nil
}

// Loaded returns whether a model is currently held.
func (mc *ModelCache) Loaded() bool {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.model != nil
}

// Infer loads the model if needed and runs it, so a cache can stand in for a Model.
func (mc *ModelCache) Infer(ctx context.Context, tensors ml.Tensors) (ml.Tensors, error) {
	model, err := mc.Get(ctx)
	if err != nil {
		return nil, err
	}
	return model.Infer(ctx, tensors)
}

// Close closes the held model, if any. Further calls to Get fail. Closing twice is a no-op.
func (mc *ModelCache) Close(ctx context.Context) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if mc.closed {
		return nil
	}
	mc.closed = true
	if mc.model == nil {
		return nil
	}
	model := mc.model
	mc.model = nil
	return model.Close(ctx)
}

// Package config defines the configuration of a depthcloud conversion.
package config

import (
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/depthcloud/depth"
	"go.viam.com/depthcloud/logging"
	"go.viam.com/depthcloud/rimage"
	"go.viam.com/depthcloud/rimage/transform"
)

// Defaults used for unset fields.
const (
	DefaultModel       = depth.LuminanceModelName
	DefaultStride      = 4
	DefaultOutput      = "output_model.ply"
	DefaultDepthUnits  = 1.0
	DefaultFocalLength = 1.0
)

// Config describes a single image to point cloud conversion.
type Config struct {
	Model           string             `json:"model,omitempty" yaml:"model,omitempty"`
	ModelPath       string             `json:"model_path,omitempty" yaml:"model_path,omitempty"`
	ModelAttributes map[string]float64 `json:"model_attributes,omitempty" yaml:"model_attributes,omitempty"`
	// ModelInputWidth and ModelInputHeight override the model's registered input size.
	ModelInputWidth  int `json:"model_input_width,omitempty" yaml:"model_input_width,omitempty"`
	ModelInputHeight int `json:"model_input_height,omitempty" yaml:"model_input_height,omitempty"`

	Stride int     `json:"stride,omitempty" yaml:"stride,omitempty"`
	Fx     float64 `json:"fx,omitempty" yaml:"fx,omitempty"`
	Fy     float64 `json:"fy,omitempty" yaml:"fy,omitempty"`
	// Ppx and Ppy default to the image centre.
	Ppx *float64 `json:"ppx,omitempty" yaml:"ppx,omitempty"`
	Ppy *float64 `json:"ppy,omitempty" yaml:"ppy,omitempty"`
	// IntrinsicsFile names a JSON camera calibration (width_px, height_px, fx, fy, ppx, ppy).
	// Once loaded it replaces fx, fy, ppx and ppy.
	IntrinsicsFile string `json:"intrinsics_file,omitempty" yaml:"intrinsics_file,omitempty"`

	Output  string `json:"output,omitempty" yaml:"output,omitempty"`
	Preview string `json:"preview,omitempty" yaml:"preview,omitempty"`

	// DepthFile selects a precomputed depth map instead of a model.
	DepthFile  string  `json:"depth_file,omitempty" yaml:"depth_file,omitempty"`
	DepthUnits float64 `json:"depth_units,omitempty" yaml:"depth_units,omitempty"`

	LogLevel logging.Level `json:"log_level,omitempty" yaml:"log_level,omitempty"`

	fileIntrinsics *transform.PinholeCameraIntrinsics
}

// Default returns a config with every default filled in.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills in unset fields.
func (cfg *Config) ApplyDefaults() {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Stride == 0 {
		cfg.Stride = DefaultStride
	}
	if cfg.Fx == 0 {
		cfg.Fx = DefaultFocalLength
	}
	if cfg.Fy == 0 {
		cfg.Fy = DefaultFocalLength
	}
	if cfg.Output == "" {
		cfg.Output = DefaultOutput
	}
	if cfg.DepthUnits == 0 {
		cfg.DepthUnits = DefaultDepthUnits
	}
}

// Validate returns every problem with the config, each matching rimage.ErrInvalidParameter.
func (cfg *Config) Validate() error {
	var err error
	invalid := func(format string, args ...interface{}) {
		err = multierr.Append(err, errors.Wrapf(rimage.ErrInvalidParameter, format, args...))
	}
	if cfg.Stride <= 0 {
		invalid("stride must be positive, got %d", cfg.Stride)
	}
	if cfg.Fx <= 0 {
		invalid("fx must be positive, got %v", cfg.Fx)
	}
	if cfg.Fy <= 0 {
		invalid("fy must be positive, got %v", cfg.Fy)
	}
	if cfg.Ppx != nil && *cfg.Ppx < 0 {
		invalid("ppx must not be negative, got %v", *cfg.Ppx)
	}
	if cfg.Ppy != nil && *cfg.Ppy < 0 {
		invalid("ppy must not be negative, got %v", *cfg.Ppy)
	}
	if cfg.ModelInputWidth < 0 || cfg.ModelInputHeight < 0 {
		invalid("model input size must not be negative, got (%d,%d)", cfg.ModelInputWidth, cfg.ModelInputHeight)
	}
	if cfg.DepthUnits <= 0 {
		invalid("depth_units must be positive, got %v", cfg.DepthUnits)
	}
	if cfg.DepthFile == "" {
		if _, ok := depth.LookupModel(cfg.Model); !ok {
			invalid("unknown model %q, known models are %v", cfg.Model, depth.RegisteredModels())
		}
	}
	if cfg.Output == "" {
		invalid("output path is empty")
	}
	return err
}

// LoadIntrinsicsFile reads IntrinsicsFile, if set, for Intrinsics to return.
func (cfg *Config) LoadIntrinsicsFile() error {
	cfg.fileIntrinsics = nil
	if cfg.IntrinsicsFile == "" {
		return nil
	}
	params, err := transform.NewPinholeCameraIntrinsicsFromJSONFile(cfg.IntrinsicsFile)
	if err != nil {
		return errors.Wrapf(err, "cannot load intrinsics_file %q", cfg.IntrinsicsFile)
	}
	cfg.fileIntrinsics = params
	return nil
}

// Intrinsics returns the camera parameters for a width x height image. Parameters loaded by
// LoadIntrinsicsFile are returned as is, and projection rejects them if their size is set and
// differs from the image.
func (cfg *Config) Intrinsics(width, height int) *transform.PinholeCameraIntrinsics {
	if cfg.fileIntrinsics != nil {
		params := *cfg.fileIntrinsics
		return &params
	}
	params := transform.NewUnitIntrinsics(width, height)
	params.Fx, params.Fy = cfg.Fx, cfg.Fy
	if cfg.Ppx != nil {
		params.Ppx = *cfg.Ppx
	}
	if cfg.Ppy != nil {
		params.Ppy = *cfg.Ppy
	}
	return params
}

// ModelConfig returns the config used to load the depth model.
func (cfg *Config) ModelConfig() depth.ModelConfig {
	return depth.ModelConfig{Name: cfg.Model, Path: cfg.ModelPath, Attributes: cfg.ModelAttributes}
}

// InputSpec applies the configured model input size to the registered one.
func (cfg *Config) InputSpec(registered depth.InputSpec) depth.InputSpec {
	if cfg.ModelInputWidth > 0 {
		registered.Width = cfg.ModelInputWidth
	}
	if cfg.ModelInputHeight > 0 {
		registered.Height = cfg.ModelInputHeight
	}
	return registered
}

package depth

import (
	"context"

	"github.com/pkg/errors"
	"go.opencensus.io/trace"

	"go.viam.com/depthcloud/logging"
	"go.viam.com/depthcloud/ml"
)

// LuminanceModelName is the name the luminance model is registered under.
const LuminanceModelName = "luminance"

func init() {
	RegisterModel(LuminanceModelName, ModelRegistration{
		Loader: func(ctx context.Context, conf ModelConfig, logger logging.Logger) (Model, error) {
			return NewLuminanceModel(conf.Attribute("scale", 1)), nil
		},
		Input: InputSpec{
			Width:      256,
			Height:     256,
			Layout:     LayoutNCHW,
			Std:        [3]float32{1, 1, 1},
			InputName:  "image",
			OutputName: "depth",
		},
	})
}

// LuminanceModel is a stand-in depth model that treats brighter pixels as nearer: its
// disparity is the Rec.601 luma of the input times Scale. The output has the input's
// resolution, shaped [1, h, w].
type LuminanceModel struct {
	Scale float64
}

// NewLuminanceModel returns a luminance model with the given scale.
func NewLuminanceModel(scale float64) *LuminanceModel {
	return &LuminanceModel{Scale: scale}
}

// Infer implements Model. It accepts a single float32 image tensor in NCHW or NHWC layout.
func (lm *LuminanceModel) Infer(ctx context.Context, tensors ml.Tensors) (ml.Tensors, error) {
	_, span := trace.StartSpan(ctx, "depth::LuminanceModel::Infer")
	defer span.End()

	in, err := tensors.Lookup("image")
	if err != nil {
		return nil, err
	}
	shape := in.Shape()
	if len(shape) != 4 || shape[0] != 1 {
		return nil, errors.Errorf("luminance model expects a [1,3,h,w] or [1,h,w,3] tensor, got %v", shape)
	}
	data, ok := in.Data().([]float32)
	if !ok {
		return nil, errors.Errorf("luminance model expects float32 input, got %T", in.Data())
	}

	var height, width int
	var at func(i, c int) float32
	switch {
	case shape[1] == 3:
		height, width = shape[2], shape[3]
		plane := height * width
		at = func(i, c int) float32 { return data[c*plane+i] }
	case shape[3] == 3:
		height, width = shape[1], shape[2]
		at = func(i, c int) float32 { return data[i*3+c] }
	default:
		return nil, errors.Errorf("luminance model expects 3 channels, got shape %v", shape)
	}

	out := make([]float32, height*width)
	for i := range out {
		luma := 0.299*at(i, 0) + 0.587*at(i, 1) + 0.114*at(i, 2)
		out[i] = float32(lm.Scale) * luma
	}
	return ml.Tensors{"depth": ml.NewFloat32Tensor(out, 1, height, width)}, nil
}

// Close implements Model.
func (lm *LuminanceModel) Close(ctx context.Context) error {
	return nil
}

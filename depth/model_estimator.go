package depth

import (
	"context"
	"fmt"
	"image"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"
	"gorgonia.org/tensor"

	"go.viam.com/depthcloud/logging"
	"go.viam.com/depthcloud/ml"
	"go.viam.com/depthcloud/rimage"
)

// ModelEstimator runs a Model on an image resized to the model's input size and resizes the
// raw prediction back to the image size with bicubic interpolation.
type ModelEstimator struct {
	model  Model
	input  InputSpec
	logger logging.Logger
}

// NewModelEstimator returns an estimator for model. model is typically a *ModelCache.
func NewModelEstimator(model Model, input InputSpec, logger logging.Logger) (*ModelEstimator, error) {
	if model == nil {
		return nil, errors.New("depth estimator needs a model")
	}
	if input.Width <= 0 || input.Height <= 0 {
		return nil, errors.Wrapf(rimage.ErrInvalidParameter, "model input size must be positive, got (%d,%d)",
			input.Width, input.Height)
	}
	switch input.Layout {
	case LayoutNCHW, LayoutNHWC:
	case "":
		input.Layout = LayoutNCHW
	default:
		return nil, errors.Wrapf(rimage.ErrInvalidParameter, "unknown tensor layout %q", input.Layout)
	}
	for i, s := range input.Std {
		if s == 0 {
			return nil, errors.Wrapf(rimage.ErrInvalidParameter, "std of channel %d is zero", i)
		}
	}
	if input.InputName == "" {
		input.InputName = "image"
	}
	if logger == nil {
		logger = logging.Global()
	}
	return &ModelEstimator{model: model, input: input, logger: logger}, nil
}

// Input returns the input spec the estimator feeds its model with.
func (me *ModelEstimator) Input() InputSpec {
	return me.input
}

// EstimateDepth implements Estimator.
func (me *ModelEstimator) EstimateDepth(ctx context.Context, img *rimage.Image) (*rimage.DepthMap, error) {
	ctx, span := trace.StartSpan(ctx, "depth::ModelEstimator::EstimateDepth")
	defer span.End()

	if img == nil || img.Width() == 0 || img.Height() == 0 {
		return nil, errors.Wrap(rimage.ErrInvalidParameter, "cannot estimate depth of an empty image")
	}

	resized := resize.Resize(uint(me.input.Width), uint(me.input.Height), img, resize.Bilinear)
	outMap, err := me.model.Infer(ctx, ml.Tensors{me.input.InputName: me.inputTensor(resized)})
	if err != nil {
		return nil, errors.Wrap(err, "depth model inference failed")
	}
	out, err := outMap.Lookup(me.input.OutputName)
	if err != nil {
		return nil, err
	}
	height, width, data, err := ml.Plane(out)
	if err != nil {
		return nil, errors.Wrap(err, "unexpected depth model output")
	}
	raw, err := rimage.NewDepthMap(width, height, data)
	if err != nil {
		return nil, err
	}
	me.logger.CDebugw(ctx, "raw depth prediction", "raw_width", width, "raw_height", height,
		"width", img.Width(), "height", img.Height())
	return rimage.ResizeDepthMap(raw, img.Width(), img.Height())
}

// inputTensor normalises every channel and lays the pixels out as a single batch.
func (me *ModelEstimator) inputTensor(img image.Image) *tensor.Dense {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	hwc := rimage.ImageToFloatBuffer(img)
	plane := width * height

	data := make([]float32, len(hwc))
	for i := 0; i < plane; i++ {
		for c := 0; c < 3; c++ {
			v := (hwc[i*3+c] - me.input.Mean[c]) / me.input.Std[c]
			if me.input.Layout == LayoutNHWC {
				data[i*3+c] = v
			} else {
				data[c*plane+i] = v
			}
		}
	}
	if me.input.Layout == LayoutNHWC {
		return ml.NewFloat32Tensor(data, 1, height, width, 3)
	}
	return ml.NewFloat32Tensor(data, 1, 3, height, width)
}

func (me *ModelEstimator) String() string {
	return fmt.Sprintf("ModelEstimator(%dx%d %s)", me.input.Width, me.input.Height, me.input.Layout)
}

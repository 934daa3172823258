package depth

import (
	"context"

	"github.com/pkg/errors"
	"go.opencensus.io/trace"

	"go.viam.com/depthcloud/logging"
	"go.viam.com/depthcloud/rimage"
)

// FileEstimator returns a precomputed depth map read from disk: a 16-bit grayscale PNG whose
// values are multiplied by Units, or the raw .dm / .dm.gz format. A map whose size differs from
// the image is resized to it.
type FileEstimator struct {
	Path   string
	Units  float64
	Logger logging.Logger
}

// EstimateDepth implements Estimator.
func (fe *FileEstimator) EstimateDepth(ctx context.Context, img *rimage.Image) (*rimage.DepthMap, error) {
	_, span := trace.StartSpan(ctx, "depth::FileEstimator::EstimateDepth")
	defer span.End()

	if img == nil {
		return nil, errors.New("cannot estimate depth without an image")
	}
	units := fe.Units
	if units == 0 {
		units = 1
	}
	dm, err := rimage.ReadDepthMapFromFile(fe.Path, units)
	if err != nil {
		return nil, err
	}
	if dm.Bounds() == img.Bounds() {
		return dm, nil
	}
	if fe.Logger != nil {
		fe.Logger.Infow("resizing precomputed depth map to image size", "path", fe.Path,
			"depth_width", dm.Width(), "depth_height", dm.Height(), "width", img.Width(), "height", img.Height())
	}
	return rimage.ResizeDepthMap(dm, img.Width(), img.Height())
}

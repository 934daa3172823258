// Package transform relates image pixels to 3D points through a pinhole camera model.
package transform

import (
	"image/color"
	"math"

	"github.com/pkg/errors"

	"go.viam.com/depthcloud/pointcloud"
	"go.viam.com/depthcloud/rimage"
)

// Project lifts every stride'th pixel of the depth map into 3D and colors it from img.
//
// For a sampled pixel (x, y) with depth z the point is ((x-ppx)*z/fx, -(y-ppy)*z/fy, z), so
// image rows grow downwards while Y grows upwards. Points are emitted row-major and remember
// their source (row, column). A pixel with zero depth lands on the origin.
//
// nil intrinsics means NewUnitIntrinsics for the image size. Bad parameters are reported
// before any size check, matching ErrInvalidParameter; differing depth map and image sizes
// match ErrShapeMismatch.
func Project(
	dm *rimage.DepthMap,
	img *rimage.Image,
	stride int,
	intrinsics *PinholeCameraIntrinsics,
) (pointcloud.PointCloud, error) {
	if stride <= 0 {
		return nil, errors.Wrapf(ErrInvalidParameter, "stride must be positive, got %d", stride)
	}
	if intrinsics != nil {
		if err := intrinsics.CheckValid(); err != nil {
			return nil, err
		}
	}
	if dm == nil {
		return nil, errors.New("no depth channel. Cannot project to Pointcloud")
	}
	if img == nil {
		return nil, errors.New("no rgb channel. Cannot project to Pointcloud")
	}
	if img.Bounds() != dm.Bounds() {
		return nil, rimage.NewShapeMismatchError("depth map and color dimensions don't match",
			dm.Width(), dm.Height(), img.Width(), img.Height())
	}

	width, height := img.Width(), img.Height()
	if intrinsics == nil {
		intrinsics = NewUnitIntrinsics(width, height)
	} else if err := intrinsics.checkSize(width, height); err != nil {
		return nil, err
	}

	pc := pointcloud.NewWithPrealloc(StridedGridSize(width, height, stride))
	for p := range StridedGrid(width, height, stride) {
		z := float64(dm.Get(p))
		if math.IsNaN(z) || math.IsInf(z, 0) {
			return nil, errors.Wrapf(ErrInvalidParameter, "depth at pixel (row %d, col %d) is not finite: %v", p.Y, p.X, z)
		}
		px, py, pz := intrinsics.PixelToPoint(float64(p.X), float64(p.Y), z)
		r, g, b := img.Get(p).RGB255()
		pos := pointcloud.NewVector(unsignedZero(px), unsignedZero(-py), unsignedZero(pz))
		pt := pointcloud.NewColoredPoint(pos, color.NRGBA{r, g, b, 255}, p.Y, p.X)
		if err := pc.Append(pt); err != nil {
			return nil, err
		}
	}
	return pc, nil
}

// unsignedZero turns -0 into 0 so exported coordinates never print as "-0".
func unsignedZero(v float64) float64 {
	if v == 0 {
		return 0
	}
	return v
}

// Package depth estimates a per-pixel depth map for a color image.
//
// Estimation itself is delegated to a Model, an opaque tensor in, tensor out collaborator. The
// ModelEstimator adapts a model to the Estimator contract: whatever resolution the model
// works at, the returned depth map has exactly the dimensions of the input image.
package depth

import (
	"context"

	"go.viam.com/depthcloud/ml"
	"go.viam.com/depthcloud/rimage"
)

// An Estimator produces a depth map with the same width and height as the image it is given.
// Larger values mean nearer for relative (disparity) estimators.
type Estimator interface {
	EstimateDepth(ctx context.Context, img *rimage.Image) (*rimage.DepthMap, error)
}

// A Model runs inference on named tensors. Its outputs may have any resolution.
type Model interface {
	Infer(ctx context.Context, tensors ml.Tensors) (ml.Tensors, error)
	Close(ctx context.Context) error
}

// EstimatorFunc adapts a function to the Estimator interface.
type EstimatorFunc func(ctx context.Context, img *rimage.Image) (*rimage.DepthMap, error)

// EstimateDepth calls f.
func (f EstimatorFunc) EstimateDepth(ctx context.Context, img *rimage.Image) (*rimage.DepthMap, error) {
	return f(ctx, img)
}

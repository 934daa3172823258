package rimage

import "github.com/pkg/errors"

var (
	// ErrDecode is returned when input bytes cannot be decoded as a supported image format.
	ErrDecode = errors.New("cannot decode image")

	// ErrShapeMismatch is returned when two rasters that must share dimensions do not.
	ErrShapeMismatch = errors.New("raster dimensions do not match")

	// ErrInvalidParameter is returned for malformed sizes, strides and camera parameters.
	ErrInvalidParameter = errors.New("invalid parameter")
)

// NewShapeMismatchError reports the two mismatched sizes as (width,height) pairs.
func NewShapeMismatchError(what string, w1, h1, w2, h2 int) error {
	return errors.Wrapf(ErrShapeMismatch, "%s (%d,%d) != (%d,%d)", what, w1, h1, w2, h2)
}

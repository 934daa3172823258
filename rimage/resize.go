package rimage

import (
	"math"

	"github.com/pkg/errors"
)

// cubicA is the Keys cubic convolution coefficient used by tensor-library bicubic upsampling.
const cubicA = -0.75

// cubicWeights returns the four tap weights for a fractional offset t in [0,1).
func cubicWeights(t float64) [4]float64 {
	near := func(x float64) float64 {
		return ((cubicA+2)*x-(cubicA+3))*x*x + 1
	}
	far := func(x float64) float64 {
		return ((cubicA*x-5*cubicA)*x+8*cubicA)*x - 4*cubicA
	}
	return [4]float64{far(t + 1), near(t), near(1 - t), far(2 - t)}
}

// resampleTaps holds, for each output index, the first of four consecutive input taps and their
// weights. Tap indices are clamped to the input range when used.
type resampleTaps struct {
	first   []int
	weights [][4]float64
}

func newResampleTaps(in, out int) resampleTaps {
	taps := resampleTaps{first: make([]int, out), weights: make([][4]float64, out)}
	scale := float64(in) / float64(out)
	for i := 0; i < out; i++ {
		// half-pixel centres
		src := (float64(i)+0.5)*scale - 0.5
		base := math.Floor(src)
		taps.first[i] = int(base) - 1
		taps.weights[i] = cubicWeights(src - base)
	}
	return taps
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// ResizeDepthMap resamples dm to width x height with bicubic interpolation, treating pixels as
// areas (half-pixel centres) and replicating edge pixels beyond the border. A constant map stays
// constant and resizing to the same size returns an exact copy.
func ResizeDepthMap(dm *DepthMap, width, height int) (*DepthMap, error) {
	if dm == nil {
		return nil, errors.New("input DepthMap is nil")
	}
	if width < 0 || height < 0 {
		return nil, errors.Wrapf(ErrInvalidParameter, "negative resize target (%d,%d)", width, height)
	}
	if width == dm.width && height == dm.height {
		return dm.Clone(), nil
	}
	if width == 0 || height == 0 {
		return NewEmptyDepthMap(width, height), nil
	}
	if !dm.HasData() {
		return nil, errors.Wrapf(ErrInvalidParameter, "cannot resize empty depth map (%d,%d) to (%d,%d)",
			dm.width, dm.height, width, height)
	}

	// horizontal pass: dm.height rows of the new width
	colTaps := newResampleTaps(dm.width, width)
	horiz := make([]float64, dm.height*width)
	for y := 0; y < dm.height; y++ {
		row := dm.Row(y)
		for x := 0; x < width; x++ {
			var sum float64
			for k, w := range colTaps.weights[x] {
				sum += w * row[clampIndex(colTaps.first[x]+k, dm.width)]
			}
			horiz[y*width+x] = sum
		}
	}

	// vertical pass
	rowTaps := newResampleTaps(dm.height, height)
	out := NewEmptyDepthMap(width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			var sum float64
			for k, w := range rowTaps.weights[y] {
				sum += w * horiz[clampIndex(rowTaps.first[y]+k, dm.height)*width+x]
			}
			out.data[out.kxy(x, y)] = sum
		}
	}
	return out, nil
}

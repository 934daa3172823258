package transform

import (
	"image"
	"iter"
)

// StridedGrid yields every stride'th pixel of a width x height grid in row-major order,
// starting at (0,0). Each range over the sequence starts again from the beginning. A
// non-positive stride or an empty grid yields nothing.
func StridedGrid(width, height, stride int) iter.Seq[image.Point] {
	return func(yield func(image.Point) bool) {
		if stride <= 0 {
			return
		}
		for y := 0; y < height; y += stride {
			for x := 0; x < width; x += stride {
				if !yield(image.Point{X: x, Y: y}) {
					return
				}
			}
		}
	}
}

// StridedGridSize returns the number of points StridedGrid yields.
func StridedGridSize(width, height, stride int) int {
	if stride <= 0 || width <= 0 || height <= 0 {
		return 0
	}
	return ((height + stride - 1) / stride) * ((width + stride - 1) / stride)
}

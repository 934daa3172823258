package rimage

import (
	"image"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// Depth is the scalar stored per pixel of a DepthMap. Its unit is whatever the depth source
// produces; relative-depth models produce unitless disparity.
type Depth float64

// DepthMap is a dense grid of depths stored row-major.
type DepthMap struct {
	width  int
	height int

	data []float64
}

// NewEmptyDepthMap returns a zeroed depth map. Negative sizes are treated as zero.
func NewEmptyDepthMap(width, height int) *DepthMap {
	width, height = max(width, 0), max(height, 0)
	return &DepthMap{
		width:  width,
		height: height,
		data:   make([]float64, width*height),
	}
}

// NewDepthMap wraps row-major data of the given size. data is used directly, not copied.
func NewDepthMap(width, height int, data []float64) (*DepthMap, error) {
	if width < 0 || height < 0 {
		return nil, errors.Wrapf(ErrInvalidParameter, "negative depth map size (%d,%d)", width, height)
	}
	if len(data) != width*height {
		return nil, errors.Wrapf(ErrInvalidParameter, "depth data has %d values, expected %d x %d", len(data), width, height)
	}
	return &DepthMap{width: width, height: height, data: data}, nil
}

// NewConstantDepthMap returns a depth map with every pixel set to d.
func NewConstantDepthMap(width, height int, d Depth) *DepthMap {
	dm := NewEmptyDepthMap(width, height)
	for i := range dm.data {
		dm.data[i] = float64(d)
	}
	return dm
}

func (dm *DepthMap) kxy(x, y int) int {
	return (y * dm.width) + x
}

// Width returns the number of columns.
func (dm *DepthMap) Width() int {
	return dm.width
}

// Height returns the number of rows.
func (dm *DepthMap) Height() int {
	return dm.height
}

// Bounds returns the rectangle (0,0)-(width,height).
func (dm *DepthMap) Bounds() image.Rectangle {
	return image.Rect(0, 0, dm.width, dm.height)
}

// HasData returns whether the map holds any pixels.
func (dm *DepthMap) HasData() bool {
	return dm.width > 0 && dm.height > 0
}

// GetDepth returns the depth at column x, row y. It panics when out of bounds.
func (dm *DepthMap) GetDepth(x, y int) Depth {
	return Depth(dm.data[dm.kxy(x, y)])
}

// Get returns the depth at p.
func (dm *DepthMap) Get(p image.Point) Depth {
	return dm.GetDepth(p.X, p.Y)
}

// Set sets the depth at column x, row y.
func (dm *DepthMap) Set(x, y int, val Depth) {
	dm.data[dm.kxy(x, y)] = float64(val)
}

// Row returns a view of row y. Writes through the slice modify the map.
func (dm *DepthMap) Row(y int) []float64 {
	return dm.data[y*dm.width : (y+1)*dm.width]
}

// Clone returns a deep copy.
func (dm *DepthMap) Clone() *DepthMap {
	out := &DepthMap{width: dm.width, height: dm.height, data: make([]float64, len(dm.data))}
	copy(out.data, dm.data)
	return out
}

// Scale multiplies every depth by s.
func (dm *DepthMap) Scale(s float64) {
	floats.Scale(s, dm.data)
}

// MinMax returns the smallest and largest finite depths. An empty map returns (0, 0).
func (dm *DepthMap) MinMax() (Depth, Depth) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range dm.data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo > hi {
		return 0, 0
	}
	return Depth(lo), Depth(hi)
}

// Mean returns the mean depth, or 0 for an empty map.
func (dm *DepthMap) Mean() float64 {
	if len(dm.data) == 0 {
		return 0
	}
	return floats.Sum(dm.data) / float64(len(dm.data))
}

// ToPrettyPicture renders the depth map as a hue ramp, nearest (largest disparity) in red and
// farthest in blue. Values are clamped to [hardMin, hardMax] when that range is narrower than
// the data.
func (dm *DepthMap) ToPrettyPicture(hardMin, hardMax Depth) *Image {
	lo, hi := dm.MinMax()
	if lo < hardMin {
		lo = hardMin
	}
	if hi > hardMax {
		hi = hardMax
	}

	img := NewImage(dm.width, dm.height)
	span := float64(hi - lo)

	for y := 0; y < dm.height; y++ {
		for x := 0; x < dm.width; x++ {
			z := float64(dm.GetDepth(x, y))
			if math.IsNaN(z) {
				continue
			}
			z = math.Min(math.Max(z, float64(lo)), float64(hi))
			ratio := 0.0
			if span > 0 {
				ratio = (z - float64(lo)) / span
			}
			hue := 240 * (1 - ratio)
			img.SetXY(x, y, NewColorFromHSV(hue, 1.0, 1.0))
		}
	}

	return img
}

package pointcloud

import (
	"image/color"

	"github.com/golang/geo/r3"
)

// NewVector convenience method for creating a vector.
func NewVector(x, y, z float64) r3.Vector {
	return r3.Vector{X: x, Y: y, Z: z}
}

// Point is a position with an optional color and the pixel (row, column) it came from.
type Point struct {
	Position r3.Vector
	HasColor bool
	Color    color.NRGBA

	Row, Col int
}

// NewColoredPoint returns a point with an opaque color and its source pixel.
func NewColoredPoint(pos r3.Vector, c color.NRGBA, row, col int) Point {
	c.A = 255
	return Point{Position: pos, HasColor: true, Color: c, Row: row, Col: col}
}

// RGB255 returns the color components; uncolored points are white.
func (p Point) RGB255() (uint8, uint8, uint8) {
	if !p.HasColor {
		return 255, 255, 255
	}
	return p.Color.R, p.Color.G, p.Color.B
}

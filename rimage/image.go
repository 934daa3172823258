package rimage

import (
	"image"
	"image/color"
)

// Image is a dense RGB raster stored row-major.
type Image struct {
	data          []Color
	width, height int
}

// NewImage returns a black image of the given size. Negative sizes are treated as zero.
func NewImage(width, height int) *Image {
	width, height = max(width, 0), max(height, 0)
	return &Image{
		data:   make([]Color, width*height),
		width:  width,
		height: height,
	}
}

// NewImageFromStdImage copies any image.Image into a new Image with its origin moved to (0,0).
func NewImageFromStdImage(img image.Image) *Image {
	if ri, ok := img.(*Image); ok {
		return ri.Clone()
	}
	bounds := img.Bounds()
	out := NewImage(bounds.Dx(), bounds.Dy())
	for y := 0; y < out.height; y++ {
		for x := 0; x < out.width; x++ {
			out.data[out.kxy(x, y)] = NewColorFromColor(img.At(bounds.Min.X+x, bounds.Min.Y+y))
		}
	}
	return out
}

func (i *Image) kxy(x, y int) int {
	return (y * i.width) + x
}

// ColorModel implements image.Image.
func (i *Image) ColorModel() color.Model {
	return TheColorModel
}

// Bounds implements image.Image.
func (i *Image) Bounds() image.Rectangle {
	return image.Rect(0, 0, i.width, i.height)
}

// At implements image.Image. Out of bounds pixels are black.
func (i *Image) At(x, y int) color.Color {
	if !i.In(x, y) {
		return Color{}
	}
	return i.data[i.kxy(x, y)]
}

// In returns whether (x,y) is inside the image.
func (i *Image) In(x, y int) bool {
	return x >= 0 && y >= 0 && x < i.width && y < i.height
}

// Width returns the number of columns.
func (i *Image) Width() int {
	return i.width
}

// Height returns the number of rows.
func (i *Image) Height() int {
	return i.height
}

// GetXY returns the color at column x, row y. It panics when out of bounds.
func (i *Image) GetXY(x, y int) Color {
	return i.data[i.kxy(x, y)]
}

// Get returns the color at p.
func (i *Image) Get(p image.Point) Color {
	return i.GetXY(p.X, p.Y)
}

// SetXY sets the color at column x, row y.
func (i *Image) SetXY(x, y int, c Color) {
	i.data[i.kxy(x, y)] = c
}

// Fill sets every pixel to c.
func (i *Image) Fill(c Color) {
	for k := range i.data {
		i.data[k] = c
	}
}

// Clone returns a deep copy.
func (i *Image) Clone() *Image {
	out := &Image{width: i.width, height: i.height, data: make([]Color, len(i.data))}
	copy(out.data, i.data)
	return out
}

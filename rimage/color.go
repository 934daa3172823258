package rimage

import (
	"fmt"
	"image/color"

	"github.com/lucasb-eyer/go-colorful"
)

// Color is a single opaque RGB pixel.
type Color struct {
	R, G, B uint8
}

// NewColor returns a color from its 8-bit components.
func NewColor(r, g, b uint8) Color {
	return Color{R: r, G: g, B: b}
}

// NewColorFromColor converts any color to an opaque RGB color. Alpha is dropped, not composited:
// the un-premultiplied channel values are kept as they are.
func NewColorFromColor(c color.Color) Color {
	switch cc := c.(type) {
	case Color:
		return cc
	case color.NRGBA:
		return Color{cc.R, cc.G, cc.B}
	}
	n, _ := color.NRGBAModel.Convert(c).(color.NRGBA)
	return Color{n.R, n.G, n.B}
}

// NewColorFromHSV returns the color for hue in degrees and saturation/value in [0,1].
func NewColorFromHSV(h, s, v float64) Color {
	r, g, b := colorful.Hsv(h, s, v).Clamped().RGB255()
	return Color{r, g, b}
}

// RGB255 returns the 8-bit components.
func (c Color) RGB255() (uint8, uint8, uint8) {
	return c.R, c.G, c.B
}

// RGBA implements color.Color; colors are always fully opaque.
func (c Color) RGBA() (r, g, b, a uint32) {
	r = uint32(c.R)
	r |= r << 8
	g = uint32(c.G)
	g |= g << 8
	b = uint32(c.B)
	b |= b << 8
	a = 0xffff
	return
}

// NRGBA returns the color as an opaque color.NRGBA.
func (c Color) NRGBA() color.NRGBA {
	return color.NRGBA{c.R, c.G, c.B, 255}
}

// Hex returns the color as #rrggbb.
func (c Color) Hex() string {
	return fmt.Sprintf("#%.2x%.2x%.2x", c.R, c.G, c.B)
}

func (c Color) String() string {
	return c.Hex()
}

// TheColorModel converts any color to an opaque rimage Color.
var TheColorModel = color.ModelFunc(func(c color.Color) color.Color {
	return NewColorFromColor(c)
})

package preview

import (
	"image"
	"image/color"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/pkg/errors"
	"golang.org/x/image/font/gofont/goregular"
)

var (
	labelFontOnce sync.Once
	labelFont     *truetype.Font
	labelFontErr  error
)

func loadLabelFont() (*truetype.Font, error) {
	labelFontOnce.Do(func() {
		labelFont, labelFontErr = truetype.Parse(goregular.TTF)
		if labelFontErr != nil {
			labelFontErr = errors.Wrap(labelFontErr, "cannot parse label font")
		}
	})
	return labelFont, labelFontErr
}

// drawLabel writes text with its top left corner at p, wrapping at the right edge.
func drawLabel(dc *gg.Context, text string, p image.Point, c color.Color, size float64) error {
	f, err := loadLabelFont()
	if err != nil {
		return err
	}
	dc.SetFontFace(truetype.NewFace(f, &truetype.Options{Size: size}))
	dc.SetColor(c)
	width := float64(dc.Width() - p.X)
	dc.DrawStringWrapped(text, float64(p.X), float64(p.Y), 0, 0, width, 1, gg.AlignLeft)
	return nil
}

// drawFrame strokes the outline of r.
func drawFrame(dc *gg.Context, r image.Rectangle, c color.Color, lineWidth float64) {
	dc.Push()
	defer dc.Pop()
	dc.SetColor(c)
	dc.SetLineWidth(lineWidth)
	dc.DrawRectangle(float64(r.Min.X), float64(r.Min.Y), float64(r.Dx()), float64(r.Dy()))
	dc.Stroke()
}

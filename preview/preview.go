// Package preview draws a point cloud as a flat picture for a quick visual check of a
// conversion.
package preview

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sort"

	"github.com/fogleman/gg"
	"github.com/pkg/errors"

	"go.viam.com/depthcloud/pointcloud"
	"go.viam.com/depthcloud/rimage"
)

// Options control the rendered picture.
type Options struct {
	Width, Height int
	// PointRadius is the radius in pixels of each drawn point.
	PointRadius float64
	// Margin is the empty border in pixels around the plot area.
	Margin     int
	Background color.Color
	// Label is drawn in the top left corner when non-empty.
	Label string
}

// DefaultOptions returns an 800x600 picture on a dark background.
func DefaultOptions() Options {
	return Options{
		Width:       800,
		Height:      600,
		PointRadius: 1.5,
		Margin:      20,
		Background:  color.NRGBA{24, 24, 24, 255},
	}
}

// Render draws a front view of the cloud: X to the right and Y up, scaled uniformly to fit
// the plot area. Points are drawn from the largest Z to the smallest so nearer points
// (smaller Z) end on top.
func Render(cloud pointcloud.PointCloud, opts Options) (image.Image, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, errors.Wrapf(rimage.ErrInvalidParameter, "preview size must be positive, got (%d,%d)", opts.Width, opts.Height)
	}
	if opts.Margin < 0 || 2*opts.Margin >= opts.Width || 2*opts.Margin >= opts.Height {
		return nil, errors.Wrapf(rimage.ErrInvalidParameter, "margin %d does not fit a (%d,%d) preview",
			opts.Margin, opts.Width, opts.Height)
	}
	if opts.PointRadius <= 0 {
		opts.PointRadius = 1
	}
	if opts.Background == nil {
		opts.Background = color.Black
	}

	dc := gg.NewContext(opts.Width, opts.Height)
	dc.SetColor(opts.Background)
	dc.Clear()

	plot := image.Rect(opts.Margin, opts.Margin, opts.Width-opts.Margin, opts.Height-opts.Margin)
	drawFrame(dc, plot, color.NRGBA{90, 90, 90, 255}, 1)

	if cloud != nil && cloud.Size() > 0 {
		drawPoints(dc, cloud, plot, opts.PointRadius)
	}

	label := opts.Label
	if label == "" && cloud != nil {
		label = fmt.Sprintf("%d points", cloud.Size())
	}
	if label != "" {
		if err := drawLabel(dc, label, image.Pt(opts.Margin+4, opts.Margin+4), color.White, 12); err != nil {
			return nil, err
		}
	}
	return dc.Image(), nil
}

func drawPoints(dc *gg.Context, cloud pointcloud.PointCloud, plot image.Rectangle, radius float64) {
	meta := cloud.MetaData()
	spanX := meta.MaxX - meta.MinX
	spanY := meta.MaxY - meta.MinY
	scale := math.Inf(1)
	if spanX > 0 {
		scale = math.Min(scale, float64(plot.Dx())/spanX)
	}
	if spanY > 0 {
		scale = math.Min(scale, float64(plot.Dy())/spanY)
	}
	if math.IsInf(scale, 1) {
		scale = 1
	}
	center := meta.Center()
	cx := float64(plot.Min.X) + float64(plot.Dx())/2
	cy := float64(plot.Min.Y) + float64(plot.Dy())/2

	order := make([]int, cloud.Size())
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return cloud.At(order[a]).Position.Z > cloud.At(order[b]).Position.Z
	})

	for _, i := range order {
		p := cloud.At(i)
		x := cx + (p.Position.X-center.X)*scale
		y := cy - (p.Position.Y-center.Y)*scale
		r, g, b := p.RGB255()
		dc.SetColor(color.NRGBA{r, g, b, 255})
		dc.DrawCircle(x, y, radius)
		dc.Fill()
	}
}

// WritePNG renders the cloud and writes it to path.
func WritePNG(cloud pointcloud.PointCloud, path string, opts Options) error {
	img, err := Render(cloud, opts)
	if err != nil {
		return err
	}
	return gg.SavePNG(path, img)
}

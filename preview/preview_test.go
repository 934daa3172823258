package preview

import (
	"errors"
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"go.viam.com/test"

	"go.viam.com/depthcloud/pointcloud"
	"go.viam.com/depthcloud/rimage"
)

func rgbAt(img image.Image, x, y int) [3]uint8 {
	r, g, b := rimage.NewColorFromColor(img.At(x, y)).RGB255()
	return [3]uint8{r, g, b}
}

func TestRenderPlacesPoints(t *testing.T) {
	pc := pointcloud.New()
	test.That(t, pc.Append(pointcloud.NewColoredPoint(pointcloud.NewVector(-1, 0, 1), color.NRGBA{255, 0, 0, 255}, 0, 0)), test.ShouldBeNil)
	test.That(t, pc.Append(pointcloud.NewColoredPoint(pointcloud.NewVector(1, 0, 1), color.NRGBA{0, 0, 255, 255}, 0, 1)), test.ShouldBeNil)

	opts := DefaultOptions()
	opts.PointRadius = 4
	opts.Label = " "
	img, err := Render(pc, opts)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, img.Bounds(), test.ShouldResemble, image.Rect(0, 0, 800, 600))

	test.That(t, rgbAt(img, 20, 300), test.ShouldResemble, [3]uint8{255, 0, 0})
	test.That(t, rgbAt(img, 779, 300), test.ShouldResemble, [3]uint8{0, 0, 255})
	test.That(t, rgbAt(img, 400, 300), test.ShouldResemble, [3]uint8{24, 24, 24})
}

func TestRenderNearestOnTop(t *testing.T) {
	pc := pointcloud.New()
	test.That(t, pc.Append(pointcloud.NewColoredPoint(pointcloud.NewVector(0, 0, 1), color.NRGBA{0, 255, 0, 255}, 0, 0)), test.ShouldBeNil)
	test.That(t, pc.Append(pointcloud.NewColoredPoint(pointcloud.NewVector(0, 0, 5), color.NRGBA{255, 0, 0, 255}, 0, 1)), test.ShouldBeNil)

	opts := DefaultOptions()
	opts.PointRadius = 5
	img, err := Render(pc, opts)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, rgbAt(img, 400, 300), test.ShouldResemble, [3]uint8{0, 255, 0})
}

func TestRenderErrors(t *testing.T) {
	_, err := Render(pointcloud.New(), Options{Width: 0, Height: 10})
	test.That(t, errors.Is(err, rimage.ErrInvalidParameter), test.ShouldBeTrue)
	_, err = Render(pointcloud.New(), Options{Width: 10, Height: 10, Margin: 5})
	test.That(t, errors.Is(err, rimage.ErrInvalidParameter), test.ShouldBeTrue)

	img, err := Render(nil, Options{Width: 10, Height: 10})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, rgbAt(img, 5, 5), test.ShouldResemble, [3]uint8{0, 0, 0})
}

func TestWritePNG(t *testing.T) {
	pc := pointcloud.New()
	test.That(t, pc.Append(pointcloud.Point{Position: pointcloud.NewVector(0, 0, 1)}), test.ShouldBeNil)
	fn := filepath.Join(t.TempDir(), "preview.png")
	opts := DefaultOptions()
	opts.Width, opts.Height = 64, 48
	opts.Margin = 4
	test.That(t, WritePNG(pc, fn, opts), test.ShouldBeNil)

	img, err := rimage.ReadImageFromFile(fn)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, img.Width(), test.ShouldEqual, 64)
	test.That(t, img.Height(), test.ShouldEqual, 48)
}

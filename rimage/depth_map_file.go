package rimage

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// maxDepthMapSide bounds the sizes accepted when reading raw depth maps.
const maxDepthMapSide = 100000

// ReadDepthMapFromFile reads a depth map from a 16-bit grayscale PNG, whose values are
// multiplied by units, or from the raw binary format written by WriteToFile (.dm, .dm.gz).
func ReadDepthMapFromFile(fn string, units float64) (_ *DepthMap, err error) {
	//nolint:gosec
	f, err := os.Open(fn)
	if err != nil {
		return nil, errors.Wrap(err, "error opening depth file")
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()

	var r io.Reader = f
	name := strings.ToLower(fn)
	if filepath.Ext(name) == ".gz" {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, err
		}
		defer func() {
			err = multierr.Combine(err, gz.Close())
		}()
		r = gz
		name = strings.TrimSuffix(name, ".gz")
	}

	switch filepath.Ext(name) {
	case ".png":
		img, err := png.Decode(r)
		if err != nil {
			return nil, errors.Wrapf(ErrDecode, "%s: %v", fn, err)
		}
		return NewDepthMapFromImage(img, units), nil
	case ".dm":
		return ReadDepthMap(bufio.NewReader(r))
	default:
		return nil, errors.Errorf("do not know how to read depth file %q", fn)
	}
}

// NewDepthMapFromImage converts a grayscale image to depth, 16-bit gray level times units.
func NewDepthMapFromImage(img image.Image, units float64) *DepthMap {
	bounds := img.Bounds()
	dm := NewEmptyDepthMap(bounds.Dx(), bounds.Dy())
	for y := 0; y < dm.height; y++ {
		for x := 0; x < dm.width; x++ {
			g, _ := color.Gray16Model.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray16)
			dm.data[dm.kxy(x, y)] = float64(g.Y) * units
		}
	}
	return dm
}

// ToGray16Picture encodes depth/units as 16-bit gray, clamped to [0, 65535].
func (dm *DepthMap) ToGray16Picture(units float64) *image.Gray16 {
	img := image.NewGray16(dm.Bounds())
	for y := 0; y < dm.height; y++ {
		for x := 0; x < dm.width; x++ {
			v := math.Round(float64(dm.GetDepth(x, y)) / units)
			if math.IsNaN(v) {
				v = 0
			}
			v = math.Min(math.Max(v, 0), math.MaxUint16)
			img.SetGray16(x, y, color.Gray16{Y: uint16(v)})
		}
	}
	return img
}

// ReadDepthMap reads the raw format: little endian uint64 width and height followed by
// width*height float64 values, row-major.
func ReadDepthMap(r io.Reader) (*DepthMap, error) {
	var header [2]uint64
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, errors.Wrap(err, "error reading depth map header")
	}
	width, height := header[0], header[1]
	if width >= maxDepthMapSide || height >= maxDepthMapSide {
		return nil, errors.Wrapf(ErrInvalidParameter, "bad width or height for depth map %v %v", width, height)
	}

	dm := NewEmptyDepthMap(int(width), int(height))
	if err := binary.Read(r, binary.LittleEndian, dm.data); err != nil {
		return nil, errors.Wrap(err, "error reading depth map data")
	}
	return dm, nil
}

// WriteTo writes the raw format read by ReadDepthMap.
func (dm *DepthMap) WriteTo(out io.Writer) (int64, error) {
	header := [2]uint64{uint64(dm.width), uint64(dm.height)}
	if err := binary.Write(out, binary.LittleEndian, header); err != nil {
		return 0, err
	}
	if err := binary.Write(out, binary.LittleEndian, dm.data); err != nil {
		return 16, err
	}
	return int64(16 + 8*len(dm.data)), nil
}

// WriteToFile writes the depth map as raw (.dm, optionally .gz), or as a 16-bit PNG of rounded
// depths when the extension is .png.
func (dm *DepthMap) WriteToFile(fn string) (err error) {
	//nolint:gosec
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()

	var out io.Writer = f
	name := strings.ToLower(fn)
	if filepath.Ext(name) == ".gz" {
		gout := gzip.NewWriter(f)
		defer func() {
			err = multierr.Combine(err, gout.Close())
		}()
		out = gout
		name = strings.TrimSuffix(name, ".gz")
	}

	if filepath.Ext(name) == ".png" {
		return png.Encode(out, dm.ToGray16Picture(1))
	}
	_, err = dm.WriteTo(out)
	return err
}

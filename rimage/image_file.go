package rimage

import (
	"bufio"
	"bytes"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	// register extra decoders alongside the jpeg/png/gif ones imaging pulls in.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DecodeImage decodes JPEG, PNG, GIF, BMP, TIFF or WebP bytes into an RGB Image. EXIF orientation
// is applied and alpha is dropped. Anything that is not a decodable image wraps ErrDecode.
func DecodeImage(r io.Reader) (*Image, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.Wrapf(ErrDecode, "%v", err)
	}
	return NewImageFromStdImage(img), nil
}

// DecodeImageBytes is DecodeImage over an in-memory buffer.
func DecodeImageBytes(data []byte) (*Image, error) {
	return DecodeImage(bytes.NewReader(data))
}

// ReadImageFromFile opens and decodes the image at path.
func ReadImageFromFile(path string) (*Image, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "error opening image file")
	}
	img, err := DecodeImage(bufio.NewReader(f))
	if err != nil {
		return nil, multierr.Combine(errors.Wrapf(err, "%s", path), f.Close())
	}
	return img, f.Close()
}

// WriteImageToFile writes img as PNG, or JPEG when the extension asks for it.
func WriteImageToFile(path string, img image.Image) (err error) {
	//nolint:gosec
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return jpeg.Encode(f, img, &jpeg.Options{Quality: 90})
	case ".png", "":
		return png.Encode(f, img)
	default:
		return errors.Errorf("rimage.WriteImageToFile unsupported format: %s", filepath.Ext(path))
	}
}

package pointcloud

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/edaniels/lidario"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// WriteToFile writes the cloud to fn in the format named by its extension: .pcd, .las, or ascii
// PLY for .ply and anything else. The file is written under a temporary name in the same
// directory, synced, and renamed into place, so fn either holds the complete cloud or is left
// untouched. Failures match ErrIO.
func WriteToFile(cloud PointCloud, fn string) error {
	switch strings.ToLower(filepath.Ext(fn)) {
	case ".las":
		return writeAtomically(fn, func(tmp string) error {
			return WriteToLASFile(cloud, tmp)
		})
	case ".pcd":
		return writeStreamAtomically(fn, func(w *bufio.Writer) error {
			return WritePCD(cloud, w, PCDBinary)
		})
	default:
		return writeStreamAtomically(fn, func(w *bufio.Writer) error {
			return WritePLY(cloud, w)
		})
	}
}

// writeStreamAtomically gives write a buffered writer onto a temporary file next to fn.
func writeStreamAtomically(fn string, write func(w *bufio.Writer) error) error {
	return writeAtomically(fn, func(tmp string) (err error) {
		//nolint:gosec
		f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			return err
		}
		defer func() {
			err = multierr.Combine(err, f.Close())
		}()
		w := bufio.NewWriter(f)
		if err := write(w); err != nil {
			return err
		}
		if err := w.Flush(); err != nil {
			return err
		}
		return f.Sync()
	})
}

// writeAtomically reserves a temporary path next to fn, lets write fill it, then renames it over
// fn. The temporary name keeps fn's base name as its suffix so extension sniffing writers still
// recognize it. The temporary file is removed on any failure.
func writeAtomically(fn string, write func(tmp string) error) (err error) {
	dir, base := filepath.Split(fn)
	if dir == "" {
		dir = "."
	}
	f, err := os.CreateTemp(dir, ".tmp-*-"+base)
	if err != nil {
		return newIOError("create", fn, err)
	}
	tmp := f.Name()
	if err := f.Close(); err != nil {
		return newIOError("create", fn, multierr.Combine(err, os.Remove(tmp)))
	}
	defer func() {
		if err != nil {
			if rerr := os.Remove(tmp); rerr != nil && !os.IsNotExist(rerr) {
				err = multierr.Combine(err, rerr)
			}
		}
	}()

	if err := write(tmp); err != nil {
		if errors.Is(err, ErrIO) {
			return err
		}
		return newIOError("write", fn, err)
	}
	if err := os.Chmod(tmp, 0o644); err != nil {
		return newIOError("chmod", fn, err)
	}
	if err := os.Rename(tmp, fn); err != nil {
		return newIOError("rename", fn, err)
	}
	return nil
}

// WriteToLASFile writes the cloud out to a LAS file using point format 2 (with RGB).
func WriteToLASFile(cloud PointCloud, fn string) (err error) {
	lf, err := lidario.NewLasFile(fn, "w")
	if err != nil {
		return newIOError("create las", fn, err)
	}
	defer func() {
		cerr := lf.Close()
		err = multierr.Combine(err, newIOError("close las", fn, cerr))
	}()

	if err = lf.AddHeader(lidario.LasHeader{
		PointFormatID: 2,
	}); err != nil {
		return newIOError("write las header", fn, err)
	}

	var lastErr error
	cloud.Iterate(func(_ int, p Point) bool {
		pr0 := &lidario.PointRecord0{
			X: p.Position.X,
			Y: p.Position.Y,
			Z: p.Position.Z,
			BitField: lidario.PointBitField{
				Value: (1) | (1 << 3) | (0 << 6) | (0 << 7),
			},
			ClassBitField: lidario.ClassificationBitField{
				Value: 0,
			},
			ScanAngle:     0,
			UserData:      0,
			PointSourceID: 1,
		}
		r, g, b := p.RGB255()
		lp := &lidario.PointRecord2{
			PointRecord0: pr0,
			RGB: &lidario.RgbData{
				Red:   uint16(r) * 256,
				Green: uint16(g) * 256,
				Blue:  uint16(b) * 256,
			},
		}
		if lerr := lf.AddLasPoint(lp); lerr != nil {
			lastErr = lerr
			return false
		}
		return true
	})
	if lastErr != nil {
		return newIOError("write las point", fn, lastErr)
	}
	return nil
}

// NewFromLASFile reads a point cloud from a LAS file. Provenance is unknown, so Row and Col
// are -1.
func NewFromLASFile(fn string) (_ PointCloud, err error) {
	lf, err := lidario.NewLasFile(fn, "r")
	if err != nil {
		return nil, newIOError("open las", fn, err)
	}
	defer func() {
		err = multierr.Combine(err, newIOError("close las", fn, lf.Close()))
	}()

	cloud := NewWithPrealloc(min(lf.Header.NumberPoints, maxPrealloc))
	for i := 0; i < lf.Header.NumberPoints; i++ {
		lp, err := lf.LasPoint(i)
		if err != nil {
			return nil, newIOError("read las point", fn, err)
		}
		data := lp.PointData()
		p := Point{Position: NewVector(data.X, data.Y, data.Z), Row: -1, Col: -1}
		if rgb := lp.RgbData(); lf.Header.PointFormatID == 2 && rgb != nil {
			p.HasColor = true
			p.Color.R = uint8(rgb.Red / 256)
			p.Color.G = uint8(rgb.Green / 256)
			p.Color.B = uint8(rgb.Blue / 256)
			p.Color.A = 255
		}
		if err := cloud.Append(p); err != nil {
			return nil, err
		}
	}
	return cloud, nil
}

// NewFromFile reads a point cloud from a .ply, .pcd or .las file.
func NewFromFile(fn string) (PointCloud, error) {
	switch strings.ToLower(filepath.Ext(fn)) {
	case ".ply":
		return ReadPLYFile(fn)
	case ".pcd":
		return ReadPCDFile(fn)
	case ".las":
		return NewFromLASFile(fn)
	default:
		return nil, errors.Errorf("do not know how to read file %q", fn)
	}
}

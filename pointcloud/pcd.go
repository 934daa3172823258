package pointcloud

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"image/color"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// PCDType is the format of a pcd file.
type PCDType int

const (
	// PCDAscii ascii format for pcd.
	PCDAscii PCDType = 0
	// PCDBinary binary format for pcd.
	PCDBinary PCDType = 1
	// PCDCompressed binary format for pcd.
	PCDCompressed PCDType = 2
)

func (t PCDType) String() string {
	switch t {
	case PCDAscii:
		return "ascii"
	case PCDBinary:
		return "binary"
	case PCDCompressed:
		return "binary_compressed"
	default:
		return fmt.Sprintf("PCDType(%d)", int(t))
	}
}

func colorToPCDInt(p Point) int {
	r, g, b := p.RGB255()
	return int(r)<<16 | int(g)<<8 | int(b)
}

func pcdIntToColor(c uint32) color.NRGBA {
	return color.NRGBA{uint8(c >> 16), uint8(c >> 8), uint8(c), 255}
}

// WritePCD writes the cloud as a PCD v0.7 file with fields x y z rgb, rgb packed into an
// integer as 0x00RRGGBB. The cloud is written unorganized (HEIGHT 1) in cloud order.
func WritePCD(cloud PointCloud, out io.Writer, outputType PCDType) error {
	if outputType != PCDAscii && outputType != PCDBinary {
		return errors.Errorf("unsupported pcd output type %v", outputType)
	}
	w := bufio.NewWriter(out)
	_, err := fmt.Fprintf(w, "VERSION .7\n"+
		"FIELDS x y z rgb\n"+
		"SIZE 4 4 4 4\n"+
		"TYPE F F F I\n"+
		"COUNT 1 1 1 1\n"+
		"WIDTH %d\n"+
		"HEIGHT %d\n"+
		"VIEWPOINT 0 0 0 1 0 0 0\n"+
		"POINTS %d\n"+
		"DATA %s\n",
		cloud.Size(),
		1,
		cloud.Size(),
		outputType)
	if err != nil {
		return newIOError("write pcd header", "", err)
	}

	buf := make([]byte, 16)
	cloud.Iterate(func(_ int, p Point) bool {
		x := float32(p.Position.X)
		y := float32(p.Position.Y)
		z := float32(p.Position.Z)
		c := colorToPCDInt(p)
		switch outputType {
		case PCDBinary:
			binary.LittleEndian.PutUint32(buf, math.Float32bits(x))
			binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(y))
			binary.LittleEndian.PutUint32(buf[8:], math.Float32bits(z))
			binary.LittleEndian.PutUint32(buf[12:], uint32(c))
			_, err = w.Write(buf)
		default:
			_, err = fmt.Fprintf(w, "%f %f %f %d\n", x, y, z, c)
		}
		return err == nil
	})
	if err != nil {
		return newIOError("write pcd data", "", err)
	}
	return newIOError("flush pcd", "", w.Flush())
}

type pcdHeader struct {
	hasColor bool
	// colorIsFloat is set when rgb is declared as F and holds the packed integer's bits.
	colorIsFloat bool
	width        int
	height       int
	points       int
	data         PCDType
}

func (h *pcdHeader) fields() int {
	if h.hasColor {
		return 4
	}
	return 3
}

// pcdHeaderKeys lists the header lines in the order the format requires them.
var pcdHeaderKeys = []string{"VERSION", "FIELDS", "SIZE", "TYPE", "COUNT", "WIDTH", "HEIGHT", "VIEWPOINT", "POINTS", "DATA"}

func (h *pcdHeader) parseLine(key, value string) error {
	tokens := strings.Fields(value)
	wantTokens := func() error {
		if len(tokens) != h.fields() {
			return errors.Errorf("%s has %d entries, expected %d", key, len(tokens), h.fields())
		}
		return nil
	}
	var err error
	switch key {
	case "VERSION":
		if value != ".7" && value != "0.7" {
			return errors.Errorf("unsupported pcd version %s", value)
		}
	case "FIELDS":
		switch value {
		case "x y z":
		case "x y z rgb":
			h.hasColor = true
		default:
			return errors.Errorf("unsupported pcd fields %s", value)
		}
	case "SIZE":
		if err := wantTokens(); err != nil {
			return err
		}
		for _, tok := range tokens {
			if tok != "4" {
				return errors.Errorf("unsupported pcd field size %s", tok)
			}
		}
	case "TYPE":
		if err := wantTokens(); err != nil {
			return err
		}
		for i, tok := range tokens {
			switch {
			case i < 3 && tok != "F":
				return errors.Errorf("pcd coordinates must be F, got %s", tok)
			case i == 3 && tok == "F":
				h.colorIsFloat = true
			case i == 3 && tok != "I" && tok != "U":
				return errors.Errorf("unsupported pcd rgb type %s", tok)
			}
		}
	case "COUNT":
		if err := wantTokens(); err != nil {
			return err
		}
		for _, tok := range tokens {
			if tok != "1" {
				return errors.Errorf("unsupported pcd field count %s", tok)
			}
		}
	case "WIDTH":
		h.width, err = strconv.Atoi(value)
	case "HEIGHT":
		h.height, err = strconv.Atoi(value)
	case "VIEWPOINT":
		if len(tokens) != 7 {
			return errors.Errorf("VIEWPOINT has %d entries, expected 7", len(tokens))
		}
	case "POINTS":
		h.points, err = strconv.Atoi(value)
		if err == nil && h.points != h.width*h.height {
			return errors.Errorf("POINTS %d does not match WIDTH*HEIGHT %d", h.points, h.width*h.height)
		}
	case "DATA":
		switch value {
		case "ascii":
			h.data = PCDAscii
		case "binary":
			h.data = PCDBinary
		case "binary_compressed":
			return errors.New("compressed pcd is not supported")
		default:
			return errors.Errorf("unsupported pcd data type %s", value)
		}
	}
	if err != nil {
		return errors.Wrapf(err, "invalid %s", key)
	}
	if h.points < 0 || h.width < 0 || h.height < 0 {
		return errors.Errorf("invalid %s %s", key, value)
	}
	return nil
}

// ReadPCD reads an ascii or binary PCD v0.7 file with fields x y z or x y z rgb, the subset
// written by WritePCD.
func ReadPCD(in io.Reader) (PointCloud, error) {
	r := bufio.NewReader(in)
	var h pcdHeader
	for i := 0; i < len(pcdHeaderKeys); {
		line, err := r.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return nil, newIOError("read pcd header", "", err)
		}
		line, _, _ = strings.Cut(line, "#")
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		key, value, _ := strings.Cut(line, " ")
		if key != pcdHeaderKeys[i] {
			return nil, errors.Errorf("pcd header line %d should start with %s, got %q", i, pcdHeaderKeys[i], line)
		}
		if err := h.parseLine(key, strings.TrimSpace(value)); err != nil {
			return nil, err
		}
		i++
	}

	cloud := NewWithPrealloc(min(h.points, maxPrealloc))
	for i := 0; i < h.points; i++ {
		var vals [4]uint32
		var pos [3]float64
		var err error
		if h.data == PCDBinary {
			err = readPCDBinaryPoint(r, h.fields(), vals[:])
			for j := range pos {
				pos[j] = float64(math.Float32frombits(vals[j]))
			}
		} else {
			err = readPCDAsciiPoint(r, &h, pos[:], vals[:])
		}
		if err != nil {
			return nil, errors.Wrapf(err, "reading point %d of %d", i, h.points)
		}
		p := Point{Position: NewVector(pos[0], pos[1], pos[2]), Row: -1, Col: -1}
		if h.hasColor {
			p.HasColor = true
			p.Color = pcdIntToColor(vals[3])
		}
		if err := cloud.Append(p); err != nil {
			return nil, errors.Wrapf(err, "point %d", i)
		}
	}
	return cloud, nil
}

func readPCDBinaryPoint(r io.Reader, fields int, vals []uint32) error {
	buf := make([]byte, 4*fields)
	if _, err := io.ReadFull(r, buf); err != nil {
		return newIOError("read pcd data", "", err)
	}
	for j := 0; j < fields; j++ {
		vals[j] = binary.LittleEndian.Uint32(buf[4*j:])
	}
	return nil
}

func readPCDAsciiPoint(r *bufio.Reader, h *pcdHeader, pos []float64, vals []uint32) error {
	var tokens []string
	for len(tokens) == 0 {
		line, err := r.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || strings.TrimSpace(line) == "") {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return newIOError("read pcd data", "", err)
		}
		tokens = strings.Fields(line)
	}
	if len(tokens) != h.fields() {
		return errors.Errorf("expected %d values, got %d", h.fields(), len(tokens))
	}
	for j := range pos {
		v, err := strconv.ParseFloat(tokens[j], 64)
		if err != nil {
			return err
		}
		pos[j] = v
	}
	if !h.hasColor {
		return nil
	}
	if h.colorIsFloat {
		f, err := strconv.ParseFloat(tokens[3], 32)
		if err != nil {
			return err
		}
		vals[3] = math.Float32bits(float32(f))
		return nil
	}
	c, err := strconv.ParseUint(tokens[3], 10, 32)
	if err != nil {
		return err
	}
	vals[3] = uint32(c)
	return nil
}

// ReadPCDFile reads the PCD file at fn.
func ReadPCDFile(fn string) (_ PointCloud, err error) {
	//nolint:gosec
	f, err := os.Open(fn)
	if err != nil {
		return nil, newIOError("open", fn, err)
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	return ReadPCD(f)
}

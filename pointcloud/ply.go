package pointcloud

import (
	"bufio"
	"fmt"
	"image/color"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/chenzhekl/goply"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/depthcloud/rimage"
)

const plyHeader = "ply\n" +
	"format ascii 1.0\n" +
	"element vertex %d\n" +
	"property float x\n" +
	"property float y\n" +
	"property float z\n" +
	"property uchar red\n" +
	"property uchar green\n" +
	"property uchar blue\n" +
	"end_header\n"

// WritePLY writes the cloud as an ascii PLY file: a header declaring exactly cloud.Size()
// vertices, then one "x y z red green blue" line per point in cloud order. Coordinates are
// written as the shortest decimal that reads back as the same float32, matching the declared
// property type. Points without color are written white. A coordinate float32 cannot hold is
// rejected with ErrInvalidParameter before anything is written. Output is buffered and flushed
// before returning; any write failure matches ErrIO.
func WritePLY(cloud PointCloud, out io.Writer) error {
	var rangeErr error
	cloud.Iterate(func(i int, p Point) bool {
		for _, c := range []struct {
			name string
			val  float64
		}{{"x", p.Position.X}, {"y", p.Position.Y}, {"z", p.Position.Z}} {
			if math.Abs(c.val) > math.MaxFloat32 {
				rangeErr = errors.Wrapf(rimage.ErrInvalidParameter,
					"%s component (%v) of point %d does not fit a ply float", c.name, c.val, i)
				return false
			}
		}
		return true
	})
	if rangeErr != nil {
		return rangeErr
	}

	w := bufio.NewWriter(out)
	if _, err := fmt.Fprintf(w, plyHeader, cloud.Size()); err != nil {
		return newIOError("write ply header", "", err)
	}

	var err error
	line := make([]byte, 0, 64)
	cloud.Iterate(func(_ int, p Point) bool {
		line = appendPLYVertex(line[:0], p)
		_, err = w.Write(line)
		return err == nil
	})
	if err != nil {
		return newIOError("write ply vertex", "", err)
	}
	return newIOError("flush ply", "", w.Flush())
}

func appendPLYVertex(buf []byte, p Point) []byte {
	buf = strconv.AppendFloat(buf, float64(float32(p.Position.X)), 'g', -1, 32)
	buf = append(buf, ' ')
	buf = strconv.AppendFloat(buf, float64(float32(p.Position.Y)), 'g', -1, 32)
	buf = append(buf, ' ')
	buf = strconv.AppendFloat(buf, float64(float32(p.Position.Z)), 'g', -1, 32)
	r, g, b := p.RGB255()
	for _, c := range [3]uint8{r, g, b} {
		buf = append(buf, ' ')
		buf = strconv.AppendUint(buf, uint64(c), 10)
	}
	return append(buf, '\n')
}

type plyElement struct {
	name  string
	count int
	props []string
	list  bool
}

type plyHeaderInfo struct {
	elements []*plyElement
	// lines are the header lines handed on to goply, ending with end_header.
	lines []string
}

func (h *plyHeaderInfo) vertex() *plyElement {
	for _, e := range h.elements {
		if e.name == "vertex" {
			return e
		}
	}
	return nil
}

// parsePLYHeader checks the header strictly. goply reports header problems by panicking with
// little context, so they are caught here first.
func parsePLYHeader(scanner *bufio.Scanner) (*plyHeaderInfo, error) {
	header := &plyHeaderInfo{}
	lineNum := 0
	next := func() (string, bool) {
		if !scanner.Scan() {
			return "", false
		}
		lineNum++
		return strings.TrimSpace(scanner.Text()), true
	}

	magic, ok := next()
	if !ok || magic != "ply" {
		return nil, errors.New("not a ply file: missing \"ply\" magic line")
	}
	header.lines = append(header.lines, magic)

	var current *plyElement
	for {
		line, ok := next()
		if !ok {
			return nil, errors.New("ply header has no end_header line")
		}
		parts := strings.Fields(line)
		if len(parts) == 0 || parts[0] == "obj_info" {
			continue
		}
		switch parts[0] {
		case "end_header":
			header.lines = append(header.lines, parts[0])
			return header, nil
		case "comment":
		case "format":
			if len(parts) != 3 || parts[1] != "ascii" {
				return nil, errors.Errorf("unsupported ply format %q", strings.Join(parts[1:], " "))
			}
		case "element":
			if len(parts) != 3 {
				return nil, errors.Errorf("line %d: malformed element %q", lineNum, line)
			}
			count, err := strconv.Atoi(parts[2])
			if err != nil || count < 0 {
				return nil, errors.Errorf("line %d: invalid element count %q", lineNum, parts[2])
			}
			current = &plyElement{name: parts[1], count: count}
			header.elements = append(header.elements, current)
		case "property":
			if current == nil {
				return nil, errors.Errorf("line %d: property before any element", lineNum)
			}
			if len(parts) >= 2 && parts[1] == "list" {
				if len(parts) != 5 {
					return nil, errors.Errorf("line %d: malformed list property %q", lineNum, line)
				}
				current.list = true
				current.props = append(current.props, parts[4])
				break
			}
			if len(parts) != 3 {
				return nil, errors.Errorf("line %d: malformed property %q", lineNum, line)
			}
			current.props = append(current.props, parts[2])
		default:
			return nil, errors.Errorf("line %d: unexpected header keyword %q", lineNum, parts[0])
		}
		header.lines = append(header.lines, strings.Join(parts, " "))
	}
}

// ReadPLY parses an ascii PLY file with a vertex element holding at least x, y and z
// properties and optionally red, green and blue. Other elements are skipped. Every element
// must have exactly the number of rows its header declares.
func ReadPLY(in io.Reader) (PointCloud, error) {
	scanner := bufio.NewScanner(in)
	header, err := parsePLYHeader(scanner)
	if err != nil {
		return nil, err
	}
	vertex := header.vertex()
	if vertex == nil {
		return nil, errors.New("ply file has no vertex element")
	}
	if vertex.list {
		return nil, errors.New("ply vertex element with list properties is not supported")
	}
	index := map[string]bool{}
	for _, name := range vertex.props {
		index[name] = true
	}
	for _, required := range []string{"x", "y", "z"} {
		if !index[required] {
			return nil, errors.Errorf("ply vertex element is missing property %q", required)
		}
	}
	hasColor := index["red"] && index["green"] && index["blue"]

	var rows []string
	for scanner.Scan() {
		if row := strings.TrimSpace(scanner.Text()); row != "" {
			rows = append(rows, row)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, newIOError("read ply", "", err)
	}

	offset := 0
	for _, element := range header.elements {
		if remaining := len(rows) - offset; element.count > remaining {
			return nil, errors.Errorf("ply element %s declares %d rows but only %d remain", element.name, element.count, remaining)
		}
		if element == vertex {
			for i, row := range rows[offset : offset+element.count] {
				if n := len(strings.Fields(row)); n != len(vertex.props) {
					return nil, errors.Errorf("vertex %d: expected %d values, got %d", i, len(vertex.props), n)
				}
			}
		}
		offset += element.count
	}
	if offset < len(rows) {
		return nil, errors.Errorf("unexpected data after last element: %q", rows[offset])
	}

	vertices, err := decodePLY(header.lines, rows)
	if err != nil {
		return nil, err
	}
	if len(vertices) != vertex.count {
		return nil, errors.Errorf("ply decoded %d vertices, header declares %d", len(vertices), vertex.count)
	}

	cloud := NewWithPrealloc(min(len(vertices), maxPrealloc))
	for i, v := range vertices {
		p, err := plyVertexToPoint(v, hasColor)
		if err != nil {
			return nil, errors.Wrapf(err, "vertex %d", i)
		}
		p.Row, p.Col = -1, -1
		if err := cloud.Append(p); err != nil {
			return nil, errors.Wrapf(err, "vertex %d", i)
		}
	}
	return cloud, nil
}

// decodePLY runs goply over the checked header and the non-blank body rows, turning its
// panics into an error.
func decodePLY(headerLines, rows []string) (vertices []goply.PlyElement, err error) {
	var sb strings.Builder
	for _, lines := range [][]string{headerLines, rows} {
		for _, line := range lines {
			sb.WriteString(line)
			sb.WriteByte('\n')
		}
	}
	defer func() {
		if r := recover(); r != nil {
			vertices, err = nil, errors.Errorf("cannot parse ply: %v", r)
		}
	}()
	return goply.New(strings.NewReader(sb.String())).Elements("vertex"), nil
}

func plyVertexToPoint(v goply.PlyElement, hasColor bool) (Point, error) {
	var coords [3]float64
	for i, name := range []string{"x", "y", "z"} {
		f, ok := plyNumber(v.Property(name))
		if !ok {
			return Point{}, errors.Errorf("invalid %s %v", name, v.Property(name))
		}
		coords[i] = f
	}
	p := Point{Position: NewVector(coords[0], coords[1], coords[2])}
	if !hasColor {
		return p, nil
	}
	var rgb [3]uint8
	for i, name := range []string{"red", "green", "blue"} {
		f, ok := plyNumber(v.Property(name))
		if !ok || f < 0 || f > 255 || f != math.Trunc(f) {
			return Point{}, errors.Errorf("invalid %s %v", name, v.Property(name))
		}
		rgb[i] = uint8(f)
	}
	p.HasColor = true
	p.Color = color.NRGBA{rgb[0], rgb[1], rgb[2], 255}
	return p, nil
}

// plyNumber widens any scalar property value goply produces.
func plyNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int8:
		return float64(n), true
	case uint8:
		return float64(n), true
	case int16:
		return float64(n), true
	case uint16:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint32:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// ReadPLYFile reads the ascii PLY file at fn.
func ReadPLYFile(fn string) (_ PointCloud, err error) {
	//nolint:gosec
	f, err := os.Open(fn)
	if err != nil {
		return nil, newIOError("open", fn, err)
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	return ReadPLY(f)
}

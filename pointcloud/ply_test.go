package pointcloud

import (
	"bytes"
	"errors"
	"image/color"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.viam.com/test"

	"go.viam.com/depthcloud/rimage"
)

type failingWriter struct {
	after int
}

func (w *failingWriter) Write(p []byte) (int, error) {
	if w.after <= 0 {
		return 0, errors.New("disk full")
	}
	w.after--
	return len(p), nil
}

func redCloud(t *testing.T) PointCloud {
	t.Helper()
	pc := New()
	red := color.NRGBA{255, 0, 0, 255}
	for _, p := range []Point{
		NewColoredPoint(NewVector(-4, 4, 2), red, 0, 0),
		NewColoredPoint(NewVector(0, 4, 2), red, 0, 2),
		NewColoredPoint(NewVector(-4, 0, 2), red, 2, 0),
		NewColoredPoint(NewVector(0, 0, 2), red, 2, 2),
	} {
		test.That(t, pc.Append(p), test.ShouldBeNil)
	}
	return pc
}

func TestWritePLYExact(t *testing.T) {
	var buf bytes.Buffer
	test.That(t, WritePLY(redCloud(t), &buf), test.ShouldBeNil)

	expected := "ply\n" +
		"format ascii 1.0\n" +
		"element vertex 4\n" +
		"property float x\n" +
		"property float y\n" +
		"property float z\n" +
		"property uchar red\n" +
		"property uchar green\n" +
		"property uchar blue\n" +
		"end_header\n" +
		"-4 4 2 255 0 0\n" +
		"0 4 2 255 0 0\n" +
		"-4 0 2 255 0 0\n" +
		"0 0 2 255 0 0\n"
	if diff := cmp.Diff(expected, buf.String()); diff != "" {
		t.Fatalf("unexpected ply output (-want +got):\n%s", diff)
	}
}

func TestWritePLYEmpty(t *testing.T) {
	var buf bytes.Buffer
	test.That(t, WritePLY(New(), &buf), test.ShouldBeNil)
	test.That(t, buf.String(), test.ShouldContainSubstring, "element vertex 0\n")
	test.That(t, strings.HasSuffix(buf.String(), "end_header\n"), test.ShouldBeTrue)

	pc, err := ReadPLY(&buf)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pc.Size(), test.ShouldEqual, 0)
}

func TestWritePLYFloatFormatting(t *testing.T) {
	pc := New()
	test.That(t, pc.Append(Point{Position: NewVector(0.1, -1.5, 1e-7)}), test.ShouldBeNil)
	var buf bytes.Buffer
	test.That(t, WritePLY(pc, &buf), test.ShouldBeNil)
	test.That(t, buf.String(), test.ShouldEndWith, "end_header\n0.1 -1.5 1e-07 255 255 255\n")
}

func TestWritePLYRowCountMatchesHeader(t *testing.T) {
	pc := New()
	for i := 0; i < 37; i++ {
		test.That(t, pc.Append(Point{Position: NewVector(float64(i), float64(-i), 1)}), test.ShouldBeNil)
	}
	var buf bytes.Buffer
	test.That(t, WritePLY(pc, &buf), test.ShouldBeNil)

	parts := strings.SplitN(buf.String(), "end_header\n", 2)
	test.That(t, parts, test.ShouldHaveLength, 2)
	test.That(t, parts[0], test.ShouldContainSubstring, "element vertex 37\n")
	rows := strings.Split(strings.TrimSuffix(parts[1], "\n"), "\n")
	test.That(t, rows, test.ShouldHaveLength, 37)
	for _, row := range rows {
		test.That(t, strings.Fields(row), test.ShouldHaveLength, 6)
	}
}

func TestWritePLYFailingSink(t *testing.T) {
	pc := New()
	for i := 0; i < 10000; i++ {
		test.That(t, pc.Append(Point{Position: NewVector(float64(i), 1, 2)}), test.ShouldBeNil)
	}
	for _, after := range []int{0, 1} {
		err := WritePLY(pc, &failingWriter{after: after})
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, errors.Is(err, ErrIO), test.ShouldBeTrue)
		test.That(t, err.Error(), test.ShouldContainSubstring, "disk full")

		var ioErr *IOError
		test.That(t, errors.As(err, &ioErr), test.ShouldBeTrue)
	}
}

func TestPLYRoundTrip(t *testing.T) {
	pc := redCloud(t)
	test.That(t, pc.Append(Point{Position: NewVector(0.25, -3.5, 7)}), test.ShouldBeNil)

	var buf bytes.Buffer
	test.That(t, WritePLY(pc, &buf), test.ShouldBeNil)
	got, err := ReadPLY(&buf)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got.Size(), test.ShouldEqual, pc.Size())
	test.That(t, Positions(got), test.ShouldResemble, Positions(pc))
	for i, p := range got.All() {
		test.That(t, p.Row, test.ShouldEqual, -1)
		test.That(t, p.HasColor, test.ShouldBeTrue)
		wr, wg, wb := pc.At(i).RGB255()
		r, g, b := p.RGB255()
		test.That(t, []uint8{r, g, b}, test.ShouldResemble, []uint8{wr, wg, wb})
	}
}

func TestReadPLYVariants(t *testing.T) {
	in := "ply\n" +
		"format ascii 1.0\n" +
		"comment made by hand\n" +
		"element vertex 2\n" +
		"property float z\n" +
		"property float x\n" +
		"property float y\n" +
		"element face 1\n" +
		"property list uchar int vertex_indices\n" +
		"end_header\n" +
		"3 1 2\n" +
		"\n" +
		"6 4 5\n" +
		"3 0 1 1\n"
	pc, err := ReadPLY(strings.NewReader(in))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pc.Size(), test.ShouldEqual, 2)
	test.That(t, pc.At(0).Position, test.ShouldResemble, NewVector(1, 2, 3))
	test.That(t, pc.At(1).Position, test.ShouldResemble, NewVector(4, 5, 6))
	test.That(t, pc.MetaData().HasColor, test.ShouldBeFalse)
}

func TestReadPLYErrors(t *testing.T) {
	header := func(n string) string {
		return "ply\nformat ascii 1.0\nelement vertex " + n + "\nproperty float x\nproperty float y\nproperty float z\nend_header\n"
	}
	for _, tc := range []struct {
		name, in, msg string
	}{
		{"no magic", "plx\n", "magic"},
		{"binary", "ply\nformat binary_little_endian 1.0\nend_header\n", "unsupported ply format"},
		{"no end", "ply\nformat ascii 1.0\n", "end_header"},
		{"missing z", "ply\nformat ascii 1.0\nelement vertex 0\nproperty float x\nproperty float y\nend_header\n", "\"z\""},
		{"short", header("2") + "1 2 3\n", "declares 2 rows but only 1 remain"},
		{"extra", header("1") + "1 2 3\n4 5 6\n", "after last element"},
		{"bad float", header("1") + "1 two 3\n", "cannot parse ply"},
		{"wrong arity", header("1") + "1 2\n", "expected 3 values"},
		{"not finite", header("1") + "1 2 nan\n", "not finite"},
		{"bad property type", "ply\nformat ascii 1.0\nelement vertex 1\nproperty float x\nproperty float y\n" +
			"property float64 z\nend_header\n1 2 3\n", "cannot parse ply"},
		{"color out of range", "ply\nformat ascii 1.0\nelement vertex 1\nproperty float x\nproperty float y\n" +
			"property float z\nproperty int red\nproperty int green\nproperty int blue\nend_header\n1 2 3 300 0 0\n",
			"invalid red"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ReadPLY(strings.NewReader(tc.in))
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, err.Error(), test.ShouldContainSubstring, tc.msg)
		})
	}
}

func TestReadPLYHugeVertexCount(t *testing.T) {
	in := "ply\nformat ascii 1.0\nelement vertex 9000000000000000000\n" +
		"property float x\nproperty float y\nproperty float z\nend_header\n1 2 3\n"
	var err error
	test.That(t, func() { _, err = ReadPLY(strings.NewReader(in)) }, test.ShouldNotPanic)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "declares 9000000000000000000 rows")
}

func TestReadPLYIntegerProperties(t *testing.T) {
	in := "ply\nformat ascii 1.0\nelement vertex 1\n" +
		"property int x\nproperty short y\nproperty double z\n" +
		"property uchar red\nproperty uchar green\nproperty uchar blue\nend_header\n" +
		"-3 7 0.5 10 20 30\n"
	pc, err := ReadPLY(strings.NewReader(in))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pc.Size(), test.ShouldEqual, 1)
	test.That(t, pc.At(0).Position, test.ShouldResemble, NewVector(-3, 7, 0.5))
	r, g, b := pc.At(0).RGB255()
	test.That(t, []uint8{r, g, b}, test.ShouldResemble, []uint8{10, 20, 30})
}

func TestWritePLYOutOfFloat32Range(t *testing.T) {
	pc := New()
	test.That(t, pc.Append(Point{Position: NewVector(-6e38, 1, 3e38)}), test.ShouldBeNil)
	var buf bytes.Buffer
	err := WritePLY(pc, &buf)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, errors.Is(err, rimage.ErrInvalidParameter), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "x component")
	test.That(t, buf.Len(), test.ShouldEqual, 0)

	edge := New()
	test.That(t, edge.Append(Point{Position: NewVector(math.MaxFloat32, -math.MaxFloat32, 1)}), test.ShouldBeNil)
	test.That(t, WritePLY(edge, &buf), test.ShouldBeNil)
	got, err := ReadPLY(&buf)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got.At(0).Position, test.ShouldResemble, NewVector(math.MaxFloat32, -math.MaxFloat32, 1))
}

package rimage

import (
	"errors"
	"testing"

	"go.viam.com/test"
)

func TestCubicWeightsPartitionOfUnity(t *testing.T) {
	for _, frac := range []float64{0, 0.1, 0.25, 0.5, 0.9} {
		w := cubicWeights(frac)
		test.That(t, w[0]+w[1]+w[2]+w[3], test.ShouldAlmostEqual, 1.0)
	}
	test.That(t, cubicWeights(0), test.ShouldResemble, [4]float64{0, 1, 0, 0})
}

func TestResizeConstantStaysConstant(t *testing.T) {
	dm := NewConstantDepthMap(16, 9, 2.5)
	for _, size := range [][2]int{{37, 23}, {4, 3}, {16, 1}, {1, 1}} {
		out, err := ResizeDepthMap(dm, size[0], size[1])
		test.That(t, err, test.ShouldBeNil)
		test.That(t, out.Width(), test.ShouldEqual, size[0])
		test.That(t, out.Height(), test.ShouldEqual, size[1])
		for y := 0; y < out.Height(); y++ {
			for x := 0; x < out.Width(); x++ {
				test.That(t, float64(out.GetDepth(x, y)), test.ShouldAlmostEqual, 2.5)
			}
		}
	}
}

func TestResizeSameSizeIsExactCopy(t *testing.T) {
	dm, err := NewDepthMap(3, 2, []float64{1, 5, 2, 8, 3, 9})
	test.That(t, err, test.ShouldBeNil)
	out, err := ResizeDepthMap(dm, 3, 2)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldResemble, dm)
	out.Set(0, 0, 100)
	test.That(t, dm.GetDepth(0, 0), test.ShouldEqual, Depth(1))
}

func TestResizeUpsampleIsSmooth(t *testing.T) {
	// a step edge: bicubic overshoots slightly but stays ordered across the edge
	dm, err := NewDepthMap(2, 1, []float64{0, 1})
	test.That(t, err, test.ShouldBeNil)
	out, err := ResizeDepthMap(dm, 4, 1)
	test.That(t, err, test.ShouldBeNil)
	row := out.Row(0)
	test.That(t, row[0], test.ShouldBeLessThan, row[2])
	test.That(t, row[1], test.ShouldBeLessThan, row[2])
	test.That(t, row[1], test.ShouldBeLessThan, row[3])
	test.That(t, row[1]+row[2], test.ShouldAlmostEqual, 1.0)
}

func TestResizeErrors(t *testing.T) {
	_, err := ResizeDepthMap(nil, 2, 2)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = ResizeDepthMap(NewEmptyDepthMap(2, 2), -1, 2)
	test.That(t, errors.Is(err, ErrInvalidParameter), test.ShouldBeTrue)

	_, err = ResizeDepthMap(NewEmptyDepthMap(0, 0), 2, 2)
	test.That(t, errors.Is(err, ErrInvalidParameter), test.ShouldBeTrue)

	out, err := ResizeDepthMap(NewEmptyDepthMap(2, 2), 0, 5)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.HasData(), test.ShouldBeFalse)
}

package cli

import (
	"bytes"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.viam.com/test"

	"go.viam.com/depthcloud/depth"
	"go.viam.com/depthcloud/pointcloud"
	"go.viam.com/depthcloud/rimage"
)

func writeTestImage(t *testing.T, dir string) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 10, 7))
	for y := 0; y < 7; y++ {
		for x := 0; x < 10; x++ {
			img.Set(x, y, color.NRGBA{uint8(20 * x), uint8(30 * y), 128, 255})
		}
	}
	fn := filepath.Join(dir, "in.png")
	test.That(t, rimage.WriteImageToFile(fn, img), test.ShouldBeNil)
	return fn
}

func runApp(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	err := NewApp(&out, &errOut).Run(append([]string{"depthcloud"}, args...))
	return out.String(), errOut.String(), err
}

func TestConvertAndInspect(t *testing.T) {
	dir := t.TempDir()
	in := writeTestImage(t, dir)
	out := filepath.Join(dir, "cloud.ply")
	previewPath := filepath.Join(dir, "preview.png")

	stdout, _, err := runApp(t, "convert", "--stride", "3", "-o", out, "--preview", previewPath, in)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, stdout, test.ShouldContainSubstring, "Wrote 12 points to "+out)

	cloud, err := pointcloud.NewFromFile(out)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cloud.Size(), test.ShouldEqual, 12)

	_, err = os.Stat(previewPath)
	test.That(t, err, test.ShouldBeNil)

	stdout, _, err = runApp(t, "inspect", out)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, stdout, test.ShouldContainSubstring, "points: 12")
	test.That(t, stdout, test.ShouldContainSubstring, "color: true")
}

func TestConvertWithIntrinsicsFile(t *testing.T) {
	dir := t.TempDir()
	in := writeTestImage(t, dir)
	out := filepath.Join(dir, "cloud.ply")
	good := filepath.Join(dir, "intrinsics.json")
	test.That(t, os.WriteFile(good,
		[]byte(`{"width_px": 10, "height_px": 7, "fx": 500, "fy": 500, "ppx": 5, "ppy": 3.5}`), 0o600), test.ShouldBeNil)

	stdout, _, err := runApp(t, "convert", "--stride", "3", "--intrinsics", good, "-o", out, in)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, stdout, test.ShouldContainSubstring, "Wrote 12 points to "+out)

	wrongSize := filepath.Join(dir, "wrong_size.json")
	test.That(t, os.WriteFile(wrongSize,
		[]byte(`{"width_px": 4, "height_px": 3, "fx": 500, "fy": 500, "ppx": 2, "ppy": 1.5}`), 0o600), test.ShouldBeNil)
	_, _, err = runApp(t, "convert", "--intrinsics", wrongSize, "-o", out, in)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "intrinsics size (4,3) != image size (10,7)")

	_, _, err = runApp(t, "convert", "--intrinsics", filepath.Join(dir, "missing.json"), "-o", out, in)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "cannot load intrinsics_file")
}

func TestConvertFromConfigFile(t *testing.T) {
	dir := t.TempDir()
	in := writeTestImage(t, dir)
	out := filepath.Join(dir, "cloud.pcd")
	cfgPath := filepath.Join(dir, "depthcloud.yaml")
	cfgText := "stride: 5\noutput: " + out + "\nmodel_attributes:\n  scale: 2\n"
	test.That(t, os.WriteFile(cfgPath, []byte(cfgText), 0o600), test.ShouldBeNil)

	stdout, _, err := runApp(t, "--config", cfgPath, "convert", in)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, stdout, test.ShouldContainSubstring, "Wrote 4 points to "+out)

	data, err := os.ReadFile(out)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, strings.HasPrefix(string(data), "VERSION .7\n"), test.ShouldBeTrue)
	test.That(t, string(data), test.ShouldContainSubstring, "POINTS 4\n")

	stdout, _, err = runApp(t, "inspect", out)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, stdout, test.ShouldContainSubstring, "points: 4")
}

func TestConvertDebugLogs(t *testing.T) {
	dir := t.TempDir()
	in := writeTestImage(t, dir)

	_, stderr, err := runApp(t, "--debug", "convert", "-o", filepath.Join(dir, "cloud.ply"), in)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, stderr, test.ShouldContainSubstring, "converted image to point cloud")
	test.That(t, stderr, test.ShouldContainSubstring, "starting conversion")

	_, stderr, err = runApp(t, "convert", "-o", filepath.Join(dir, "quiet.ply"), in)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, stderr, test.ShouldNotContainSubstring, "starting conversion")
}

func TestDepthCommand(t *testing.T) {
	dir := t.TempDir()
	in := writeTestImage(t, dir)
	out := filepath.Join(dir, "depth.png")

	stdout, _, err := runApp(t, "depth", "--max", "1", in, out)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, stdout, test.ShouldContainSubstring, "Wrote depth picture to "+out)

	img, err := rimage.ReadImageFromFile(out)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, img.Width(), test.ShouldEqual, 10)
	test.That(t, img.Height(), test.ShouldEqual, 7)
}

func TestModelsCommand(t *testing.T) {
	stdout, _, err := runApp(t, "models")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, stdout, test.ShouldContainSubstring, depth.LuminanceModelName+" (input 256x256 nchw)")
}

func TestCommandErrors(t *testing.T) {
	dir := t.TempDir()
	in := writeTestImage(t, dir)

	_, _, err := runApp(t, "convert")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "exactly one image argument")

	_, _, err = runApp(t, "depth", in)
	test.That(t, err, test.ShouldNotBeNil)

	_, _, err = runApp(t, "convert", "--model", "no-such-model", in)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "no-such-model")

	_, _, err = runApp(t, "convert", "--stride", "0", in)
	test.That(t, err, test.ShouldNotBeNil)

	_, _, err = runApp(t, "--config", filepath.Join(dir, "missing.yaml"), "convert", in)
	test.That(t, err, test.ShouldNotBeNil)

	_, _, err = runApp(t, "inspect", filepath.Join(dir, "cloud.xyz"))
	test.That(t, err, test.ShouldNotBeNil)

	out := filepath.Join(dir, "never.ply")
	_, _, err = runApp(t, "convert", "-o", out, filepath.Join(dir, "missing.png"))
	test.That(t, err, test.ShouldNotBeNil)
	_, err = os.Stat(out)
	test.That(t, os.IsNotExist(err), test.ShouldBeTrue)
}

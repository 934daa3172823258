package transform

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/pkg/errors"
	"go.viam.com/utils"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/depthcloud/rimage"
)

var (
	// ErrShapeMismatch is returned when a depth map and an image disagree in size.
	ErrShapeMismatch = rimage.ErrShapeMismatch
	// ErrInvalidParameter is returned for a bad stride or malformed camera parameters.
	ErrInvalidParameter = rimage.ErrInvalidParameter
)

// NewInvalidIntrinsicsError is used when the intrinsics cannot be used for a projection.
func NewInvalidIntrinsicsError(msg string) error {
	return errors.Wrapf(ErrInvalidParameter, "invalid camera intrinsics: %s", msg)
}

// PinholeCameraIntrinsics holds the parameters necessary to do a perspective projection of a 3D scene to the 2D plane.
// A zero Width or Height means the parameters are not tied to a particular image size.
type PinholeCameraIntrinsics struct {
	Width  int     `json:"width_px"`
	Height int     `json:"height_px"`
	Fx     float64 `json:"fx"`
	Fy     float64 `json:"fy"`
	Ppx    float64 `json:"ppx"`
	Ppy    float64 `json:"ppy"`
}

// NewUnitIntrinsics returns uncalibrated parameters for a width x height image: unit focal
// lengths and the principal point at the image centre.
func NewUnitIntrinsics(width, height int) *PinholeCameraIntrinsics {
	return &PinholeCameraIntrinsics{
		Width:  width,
		Height: height,
		Fx:     1,
		Fy:     1,
		Ppx:    float64(width) / 2,
		Ppy:    float64(height) / 2,
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// CheckValid checks if the fields for PinholeCameraIntrinsics have valid inputs.
func (params *PinholeCameraIntrinsics) CheckValid() error {
	if params == nil {
		return NewInvalidIntrinsicsError("intrinsics do not exist")
	}
	if params.Width < 0 || params.Height < 0 {
		return NewInvalidIntrinsicsError(fmt.Sprintf("size (%#v, %#v)", params.Width, params.Height))
	}
	if !finite(params.Fx) || params.Fx <= 0 {
		return NewInvalidIntrinsicsError(fmt.Sprintf("focal length Fx = %#v", params.Fx))
	}
	if !finite(params.Fy) || params.Fy <= 0 {
		return NewInvalidIntrinsicsError(fmt.Sprintf("focal length Fy = %#v", params.Fy))
	}
	if !finite(params.Ppx) || params.Ppx < 0 {
		return NewInvalidIntrinsicsError(fmt.Sprintf("principal X point Ppx = %#v", params.Ppx))
	}
	if !finite(params.Ppy) || params.Ppy < 0 {
		return NewInvalidIntrinsicsError(fmt.Sprintf("principal Y point Ppy = %#v", params.Ppy))
	}
	return nil
}

// checkSize verifies that sized intrinsics describe a width x height image.
func (params *PinholeCameraIntrinsics) checkSize(width, height int) error {
	if params.Width == 0 && params.Height == 0 {
		return nil
	}
	if params.Width != width || params.Height != height {
		return NewInvalidIntrinsicsError(fmt.Sprintf("intrinsics size (%d,%d) != image size (%d,%d)",
			params.Width, params.Height, width, height))
	}
	return nil
}

// NewPinholeCameraIntrinsicsFromJSONFile takes in a file path to a JSON and turns it into PinholeCameraIntrinsics.
func NewPinholeCameraIntrinsicsFromJSONFile(jsonPath string) (*PinholeCameraIntrinsics, error) {
	//nolint:gosec
	jsonFile, err := os.Open(jsonPath)
	if err != nil {
		return nil, errors.Wrap(err, "error opening JSON file")
	}
	defer utils.UncheckedErrorFunc(jsonFile.Close)
	byteValue, err := io.ReadAll(jsonFile)
	if err != nil {
		return nil, errors.Wrap(err, "error reading JSON data")
	}
	intrinsics := &PinholeCameraIntrinsics{}
	if err := json.Unmarshal(byteValue, intrinsics); err != nil {
		return nil, errors.Wrap(err, "error parsing JSON string")
	}
	return intrinsics, intrinsics.CheckValid()
}

// PixelToPoint transforms a pixel with depth to a 3D point in the camera frame, where y grows
// downwards with image rows.
func (params *PinholeCameraIntrinsics) PixelToPoint(x, y, z float64) (float64, float64, float64) {
	if params == nil {
		return float64(0), float64(0), float64(0)
	}
	xOverZ := (x - params.Ppx) / params.Fx
	yOverZ := (y - params.Ppy) / params.Fy
	xm := xOverZ * z
	ym := yOverZ * z
	return xm, ym, z
}

// GetCameraMatrix creates a new camera matrix and returns it.
// Camera matrix:
// [[fx 0 ppx],
//
//	[0 fy ppy],
//	[0 0  1]]
func (params *PinholeCameraIntrinsics) GetCameraMatrix() *mat.Dense {
	if params == nil {
		return nil
	}
	cameraMatrix := mat.NewDense(3, 3, nil)
	cameraMatrix.Set(0, 0, params.Fx)
	cameraMatrix.Set(1, 1, params.Fy)
	cameraMatrix.Set(0, 2, params.Ppx)
	cameraMatrix.Set(1, 2, params.Ppy)
	cameraMatrix.Set(2, 2, 1)
	return cameraMatrix
}

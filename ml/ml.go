// Package ml provides the tensor plumbing shared by depth models: named tensor maps and numeric
// conversions between the element types a model may produce.
package ml

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"
	"gorgonia.org/tensor"
)

// Tensors are a map of named tensors passed into and out of a model.
type Tensors map[string]*tensor.Dense

// Names returns the sorted names of the tensors.
func (ts Tensors) Names() []string {
	names := make([]string, 0, len(ts))
	for name := range ts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the tensor with the given name. If there is no such tensor, or name is empty,
// and the map holds exactly one tensor, that tensor is returned instead.
func (ts Tensors) Lookup(name string) (*tensor.Dense, error) {
	if t, ok := ts[name]; ok && name != "" {
		return t, nil
	}
	if len(ts) == 1 {
		for _, t := range ts {
			return t, nil
		}
	}
	if name == "" {
		return nil, errors.Errorf("expected a single output tensor, got [%s]", strings.Join(ts.Names(), ", "))
	}
	return nil, errors.Errorf("no tensor named %q among tensors [%s]", name, strings.Join(ts.Names(), ", "))
}

// NewFloat32Tensor creates a dense float32 tensor backed by data.
func NewFloat32Tensor(data []float32, shape ...int) *tensor.Dense {
	return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(data))
}

// Plane returns the last two dimensions of t as a height x width raster of float64s. All leading
// dimensions must have size one, so NCHW [1,1,h,w], [1,h,w] and [h,w] are accepted.
func Plane(t *tensor.Dense) (height, width int, data []float64, err error) {
	if t == nil {
		return 0, 0, nil, errors.New("tensor is nil")
	}
	shape := t.Shape()
	if len(shape) < 2 {
		return 0, 0, nil, errors.Errorf("tensor of shape %v has fewer than two dimensions", shape)
	}
	for _, d := range shape[:len(shape)-2] {
		if d != 1 {
			return 0, 0, nil, errors.Errorf("tensor of shape %v is not a single plane", shape)
		}
	}
	height, width = shape[len(shape)-2], shape[len(shape)-1]
	data, err = ConvertToFloat64Slice(t.Data())
	if err != nil {
		return 0, 0, nil, err
	}
	if len(data) != height*width {
		return 0, 0, nil, errors.Errorf("tensor backing has %d elements, expected %d", len(data), height*width)
	}
	return height, width, data, nil
}

// number interface for converting between numbers.
type number interface {
	constraints.Integer | constraints.Float
}

// convertNumberSlice converts any number slice into another number slice.
func convertNumberSlice[T1, T2 number](t1 []T1) []T2 {
	t2 := make([]T2, len(t1))
	for i := range t1 {
		t2[i] = T2(t1[i])
	}
	return t2
}

// ConvertToFloat64Slice converts the backing data of a tensor into a []float64.
func ConvertToFloat64Slice(slice interface{}) ([]float64, error) {
	switch v := slice.(type) {
	case []float64:
		return v, nil
	case float64:
		return []float64{v}, nil
	case []float32:
		return convertNumberSlice[float32, float64](v), nil
	case float32:
		return []float64{float64(v)}, nil
	case []int:
		return convertNumberSlice[int, float64](v), nil
	case []int8:
		return convertNumberSlice[int8, float64](v), nil
	case []int16:
		return convertNumberSlice[int16, float64](v), nil
	case []int32:
		return convertNumberSlice[int32, float64](v), nil
	case []int64:
		return convertNumberSlice[int64, float64](v), nil
	case []uint8:
		return convertNumberSlice[uint8, float64](v), nil
	case []uint16:
		return convertNumberSlice[uint16, float64](v), nil
	case []uint32:
		return convertNumberSlice[uint32, float64](v), nil
	case []uint64:
		return convertNumberSlice[uint64, float64](v), nil
	default:
		return nil, errors.Errorf("dont know how to convert slice of %T into a []float64", slice)
	}
}

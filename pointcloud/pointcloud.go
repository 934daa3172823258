// Package pointcloud defines an ordered, colored point cloud and the file formats it can be
// written to.
//
// Unlike a spatial index, the cloud keeps points in insertion order. Each point remembers the
// image pixel it was projected from, so a cloud built from an image can be related back to it.
package pointcloud

import (
	"iter"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// MetaData is data about what's stored in the point cloud.
type MetaData struct {
	HasColor bool

	MinX, MaxX float64
	MinY, MaxY float64
	MinZ, MaxZ float64
}

// NewMetaData returns meta data for an empty cloud.
func NewMetaData() MetaData {
	return MetaData{
		MinX: math.Inf(1),
		MinY: math.Inf(1),
		MinZ: math.Inf(1),
		MaxX: math.Inf(-1),
		MaxY: math.Inf(-1),
		MaxZ: math.Inf(-1),
	}
}

// Merge updates the bounds and flags to include p.
func (meta *MetaData) Merge(p Point) {
	meta.HasColor = meta.HasColor || p.HasColor
	v := p.Position
	meta.MinX = math.Min(meta.MinX, v.X)
	meta.MaxX = math.Max(meta.MaxX, v.X)
	meta.MinY = math.Min(meta.MinY, v.Y)
	meta.MaxY = math.Max(meta.MaxY, v.Y)
	meta.MinZ = math.Min(meta.MinZ, v.Z)
	meta.MaxZ = math.Max(meta.MaxZ, v.Z)
}

// Empty returns whether no point has been merged.
func (meta MetaData) Empty() bool {
	return meta.MinX > meta.MaxX
}

// Center returns the middle of the bounding box.
func (meta MetaData) Center() r3.Vector {
	if meta.Empty() {
		return r3.Vector{}
	}
	return r3.Vector{
		X: (meta.MinX + meta.MaxX) / 2,
		Y: (meta.MinY + meta.MaxY) / 2,
		Z: (meta.MinZ + meta.MaxZ) / 2,
	}
}

// PointCloud is an ordered sequence of points.
type PointCloud interface {
	// Size returns the number of points in the cloud.
	Size() int

	// MetaData returns meta data
	MetaData() MetaData

	// Append adds p at the end of the cloud. Points with non-finite coordinates are rejected.
	Append(p Point) error

	// At returns the i'th point. It panics if i is out of range.
	At(i int) Point

	// Iterate calls fn for each point in order, stopping early if fn returns false.
	Iterate(fn func(i int, p Point) bool)

	// All returns the points in order as a sequence.
	All() iter.Seq2[int, Point]
}

// basicPointCloud is the slice backed implementation of PointCloud.
type basicPointCloud struct {
	points []Point
	meta   MetaData
}

// New returns an empty PointCloud.
func New() PointCloud {
	return NewWithPrealloc(0)
}

// maxPrealloc bounds the capacity readers reserve from a file header's point count. Larger
// clouds grow through Append.
const maxPrealloc = 1 << 20

// NewWithPrealloc returns an empty PointCloud with room for size points.
func NewWithPrealloc(size int) PointCloud {
	return &basicPointCloud{
		points: make([]Point, 0, max(size, 0)),
		meta:   NewMetaData(),
	}
}

func (cloud *basicPointCloud) Size() int {
	return len(cloud.points)
}

func (cloud *basicPointCloud) MetaData() MetaData {
	return cloud.meta
}

func (cloud *basicPointCloud) Append(p Point) error {
	v := p.Position
	for _, c := range []struct {
		name string
		val  float64
	}{{"x", v.X}, {"y", v.Y}, {"z", v.Z}} {
		if math.IsNaN(c.val) || math.IsInf(c.val, 0) {
			return errors.Errorf("%s component (%v) of point from pixel (%d,%d) is not finite", c.name, c.val, p.Row, p.Col)
		}
	}
	cloud.points = append(cloud.points, p)
	cloud.meta.Merge(p)
	return nil
}

func (cloud *basicPointCloud) At(i int) Point {
	return cloud.points[i]
}

func (cloud *basicPointCloud) Iterate(fn func(i int, p Point) bool) {
	for i, p := range cloud.points {
		if !fn(i, p) {
			return
		}
	}
}

func (cloud *basicPointCloud) All() iter.Seq2[int, Point] {
	return cloud.Iterate
}

// Positions returns the positions of all points in order.
func Positions(cloud PointCloud) []r3.Vector {
	out := make([]r3.Vector, 0, cloud.Size())
	for _, p := range cloud.All() {
		out = append(out, p.Position)
	}
	return out
}

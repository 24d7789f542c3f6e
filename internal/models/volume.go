package models

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	// ErrSingularAffine is returned when a voxel-to-world transform cannot be inverted.
	// Nothing downstream is meaningful without it.
	ErrSingularAffine = errors.New("affine transform is not invertible")

	// ErrShapeMismatch is returned when a label buffer does not match its declared shape.
	ErrShapeMismatch = errors.New("label data does not match volume shape")
)

// Affine is a 4x4 homogeneous transform mapping voxel indices (i, j, k)
// to world coordinates in millimeters.
type Affine [4][4]float64

// Identity returns the identity transform (1 mm isotropic, no offset).
func Identity() Affine {
	return Affine{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
		{0, 0, 0, 1},
	}
}

// Scaling returns a transform with the given per-axis spacing and offset.
func Scaling(spacing, origin r3.Vec) Affine {
	return Affine{
		{spacing.X, 0, 0, origin.X},
		{0, spacing.Y, 0, origin.Y},
		{0, 0, spacing.Z, origin.Z},
		{0, 0, 0, 1},
	}
}

// Apply maps a (possibly fractional) voxel coordinate to world space.
func (a Affine) Apply(v r3.Vec) r3.Vec {
	return r3.Vec{
		X: a[0][0]*v.X + a[0][1]*v.Y + a[0][2]*v.Z + a[0][3],
		Y: a[1][0]*v.X + a[1][1]*v.Y + a[1][2]*v.Z + a[1][3],
		Z: a[2][0]*v.X + a[2][1]*v.Y + a[2][2]*v.Z + a[2][3],
	}
}

// Translation returns the offset column of the transform.
func (a Affine) Translation() r3.Vec {
	return r3.Vec{X: a[0][3], Y: a[1][3], Z: a[2][3]}
}

// Spacing returns the per-axis voxel size: the column norms of the linear part.
func (a Affine) Spacing() r3.Vec {
	col := func(c int) float64 {
		return math.Sqrt(a[0][c]*a[0][c] + a[1][c]*a[1][c] + a[2][c]*a[2][c])
	}
	return r3.Vec{X: col(0), Y: col(1), Z: col(2)}
}

// Direction returns the affine's direction cosines: the linear part with each
// column divided by its spacing. It maps volume-local millimeters onto the
// world axes without scaling them a second time.
func (a Affine) Direction() *r3.Mat {
	s := [3]float64{}
	sp := a.Spacing()
	s[0], s[1], s[2] = sp.X, sp.Y, sp.Z
	data := make([]float64, 9)
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			if s[c] != 0 {
				data[r*3+c] = a[r][c] / s[c]
			}
		}
	}
	return r3.NewMat(data)
}

// Inverse returns the world-to-voxel transform.
func (a Affine) Inverse() (Affine, error) {
	m := mat.NewDense(4, 4, nil)
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			m.Set(r, c, a[r][c])
		}
	}
	if mat.Det(m) == 0 {
		return Affine{}, ErrSingularAffine
	}
	var inv mat.Dense
	if err := inv.Inverse(m); err != nil {
		return Affine{}, fmt.Errorf("%w: %v", ErrSingularAffine, err)
	}
	var out Affine
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			out[r][c] = inv.At(r, c)
		}
	}
	return out, nil
}

// Volume is a labeled 3D segmentation paired with its voxel-to-world transform.
// Labels are stored in C order: index = (i*ny + j)*nz + k.
// A Volume is never mutated once built; every analysis stage only reads it.
type Volume struct {
	Shape  [3]int
	Labels []int32
	Affine Affine
}

// NewVolume validates the label buffer against the shape.
func NewVolume(shape [3]int, labels []int32, affine Affine) (*Volume, error) {
	if shape[0] <= 0 || shape[1] <= 0 || shape[2] <= 0 {
		return nil, fmt.Errorf("%w: non-positive shape %v", ErrShapeMismatch, shape)
	}
	if n := shape[0] * shape[1] * shape[2]; n != len(labels) {
		return nil, fmt.Errorf("%w: shape %v needs %d labels, got %d", ErrShapeMismatch, shape, n, len(labels))
	}
	return &Volume{Shape: shape, Labels: labels, Affine: affine}, nil
}

// Spacing returns the voxel size derived from the affine.
func (v *Volume) Spacing() r3.Vec { return v.Affine.Spacing() }

// At returns the label at voxel (i, j, k).
func (v *Volume) At(i, j, k int) int32 {
	return v.Labels[(i*v.Shape[1]+j)*v.Shape[2]+k]
}

// Mask extracts the binary mask of one label.
func (v *Volume) Mask(label int32) *Mask {
	m := NewMask(v.Shape)
	for idx, l := range v.Labels {
		if l == label {
			m.Data[idx] = true
		}
	}
	return m
}

// Mask is a binary 3D array with the same indexing as Volume.
type Mask struct {
	Shape [3]int
	Data  []bool
}

// NewMask allocates an empty mask.
func NewMask(shape [3]int) *Mask {
	return &Mask{Shape: shape, Data: make([]bool, shape[0]*shape[1]*shape[2])}
}

// Index returns the flat index of voxel (i, j, k).
func (m *Mask) Index(i, j, k int) int {
	return (i*m.Shape[1]+j)*m.Shape[2] + k
}

// Coords is the inverse of Index.
func (m *Mask) Coords(idx int) (i, j, k int) {
	k = idx % m.Shape[2]
	idx /= m.Shape[2]
	j = idx % m.Shape[1]
	i = idx / m.Shape[1]
	return i, j, k
}

// In reports whether (i, j, k) lies inside the array.
func (m *Mask) In(i, j, k int) bool {
	return i >= 0 && j >= 0 && k >= 0 && i < m.Shape[0] && j < m.Shape[1] && k < m.Shape[2]
}

// At returns the value at (i, j, k); out-of-range voxels read as false.
func (m *Mask) At(i, j, k int) bool {
	if !m.In(i, j, k) {
		return false
	}
	return m.Data[m.Index(i, j, k)]
}

// Set writes the value at (i, j, k).
func (m *Mask) Set(i, j, k int, v bool) {
	m.Data[m.Index(i, j, k)] = v
}

// Count returns the number of set voxels.
func (m *Mask) Count() int {
	n := 0
	for _, v := range m.Data {
		if v {
			n++
		}
	}
	return n
}

// Any reports whether at least one voxel is set.
func (m *Mask) Any() bool {
	for _, v := range m.Data {
		if v {
			return true
		}
	}
	return false
}

// Clone returns an independent copy.
func (m *Mask) Clone() *Mask {
	c := &Mask{Shape: m.Shape, Data: make([]bool, len(m.Data))}
	copy(c.Data, m.Data)
	return c
}

// Voxels lists set voxels in raster order.
func (m *Mask) Voxels() [][3]int {
	var out [][3]int
	for idx, v := range m.Data {
		if v {
			i, j, k := m.Coords(idx)
			out = append(out, [3]int{i, j, k})
		}
	}
	return out
}

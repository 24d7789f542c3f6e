package morphology

import (
	"math"

	"vesselgeom/internal/models"
)

// Field is a scalar 3D array with the same indexing as models.Mask.
type Field struct {
	Shape [3]int
	Data  []float64
}

// NewField allocates a zero field.
func NewField(shape [3]int) *Field {
	return &Field{Shape: shape, Data: make([]float64, shape[0]*shape[1]*shape[2])}
}

// FromMask casts a mask to 0/1 values.
func FromMask(m *models.Mask) *Field {
	f := NewField(m.Shape)
	for idx, v := range m.Data {
		if v {
			f.Data[idx] = 1
		}
	}
	return f
}

func (f *Field) index(i, j, k int) int {
	return (i*f.Shape[1]+j)*f.Shape[2] + k
}

// At returns the value at (i, j, k), or 0 outside the array.
func (f *Field) At(i, j, k int) float64 {
	if i < 0 || j < 0 || k < 0 || i >= f.Shape[0] || j >= f.Shape[1] || k >= f.Shape[2] {
		return 0
	}
	return f.Data[f.index(i, j, k)]
}

// Trilinear interpolates the field at a fractional voxel position.
// Positions outside the array interpolate against zeros.
func (f *Field) Trilinear(x, y, z float64) float64 {
	x0, y0, z0 := math.Floor(x), math.Floor(y), math.Floor(z)
	i, j, k := int(x0), int(y0), int(z0)
	tx, ty, tz := x-x0, y-y0, z-z0
	var v float64
	for di := 0; di <= 1; di++ {
		wx := 1 - tx
		if di == 1 {
			wx = tx
		}
		for dj := 0; dj <= 1; dj++ {
			wy := 1 - ty
			if dj == 1 {
				wy = ty
			}
			for dk := 0; dk <= 1; dk++ {
				wz := 1 - tz
				if dk == 1 {
					wz = tz
				}
				if w := wx * wy * wz; w != 0 {
					v += w * f.At(i+di, j+dj, k+dk)
				}
			}
		}
	}
	return v
}

// Max returns the largest value in the field.
func (f *Field) Max() float64 {
	m := math.Inf(-1)
	for _, v := range f.Data {
		if v > m {
			m = v
		}
	}
	return m
}

// Gaussian smooths f with an isotropic Gaussian of the given standard
// deviation in voxels. The kernel is truncated at four sigma and the array is
// extended by mirroring about its edges (d c b a | a b c d | d c b a).
func Gaussian(f *Field, sigma float64) *Field {
	if sigma <= 0 {
		out := NewField(f.Shape)
		copy(out.Data, f.Data)
		return out
	}
	kernel := gaussianKernel(sigma)
	out := f
	for axis := 0; axis < 3; axis++ {
		out = convolveAxis(out, kernel, axis)
	}
	return out
}

func gaussianKernel(sigma float64) []float64 {
	radius := int(4*sigma + 0.5)
	kernel := make([]float64, 2*radius+1)
	var sum float64
	for x := -radius; x <= radius; x++ {
		w := math.Exp(-0.5 * float64(x*x) / (sigma * sigma))
		kernel[x+radius] = w
		sum += w
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel
}

func convolveAxis(f *Field, kernel []float64, axis int) *Field {
	out := NewField(f.Shape)
	radius := len(kernel) / 2
	n := f.Shape[axis]
	line := make([]float64, n)
	var a, b int
	switch axis {
	case 0:
		a, b = 1, 2
	case 1:
		a, b = 0, 2
	default:
		a, b = 0, 1
	}
	pos := [3]int{}
	for u := 0; u < f.Shape[a]; u++ {
		for w := 0; w < f.Shape[b]; w++ {
			pos[a], pos[b] = u, w
			for t := 0; t < n; t++ {
				pos[axis] = t
				line[t] = f.Data[f.index(pos[0], pos[1], pos[2])]
			}
			for t := 0; t < n; t++ {
				var s float64
				for q := -radius; q <= radius; q++ {
					s += kernel[q+radius] * line[reflect(t+q, n)]
				}
				pos[axis] = t
				out.Data[out.index(pos[0], pos[1], pos[2])] = s
			}
		}
	}
	return out
}

// reflect folds an out-of-range index back into [0, n) by half-sample symmetry.
func reflect(i, n int) int {
	if n == 1 {
		return 0
	}
	period := 2 * n
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - i - 1
	}
	return i
}

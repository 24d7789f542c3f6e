package morphology

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"vesselgeom/internal/models"
)

// DistanceTransform returns, for every voxel, the Euclidean distance in
// physical units to the nearest background voxel center; background voxels
// are 0. The transform is exact (separable lower-envelope method) and honors
// anisotropic spacing.
//
// A mask without any background voxel is measured against a one-voxel
// background shell around the array.
func DistanceTransform(m *models.Mask, spacing r3.Vec) []float64 {
	hasBackground := false
	for _, v := range m.Data {
		if !v {
			hasBackground = true
			break
		}
	}
	if !hasBackground {
		padded := Pad(m, 1)
		d := DistanceTransform(padded, spacing)
		out := make([]float64, len(m.Data))
		for idx := range out {
			i, j, k := m.Coords(idx)
			out[idx] = d[padded.Index(i+1, j+1, k+1)]
		}
		return out
	}

	sq := make([]float64, len(m.Data))
	for idx, v := range m.Data {
		if v {
			sq[idx] = math.Inf(1)
		}
	}
	f := &Field{Shape: m.Shape, Data: sq}
	steps := [3]float64{spacing.X, spacing.Y, spacing.Z}
	for axis := 2; axis >= 0; axis-- {
		transformAxis(f, axis, steps[axis])
	}
	for idx, v := range f.Data {
		f.Data[idx] = math.Sqrt(v)
	}
	return f.Data
}

func transformAxis(f *Field, axis int, step float64) {
	n := f.Shape[axis]
	var a, b int
	switch axis {
	case 0:
		a, b = 1, 2
	case 1:
		a, b = 0, 2
	default:
		a, b = 0, 1
	}
	line := make([]float64, n)
	out := make([]float64, n)
	v := make([]int, n)
	z := make([]float64, n+1)
	pos := [3]int{}
	for u := 0; u < f.Shape[a]; u++ {
		for w := 0; w < f.Shape[b]; w++ {
			pos[a], pos[b] = u, w
			for t := 0; t < n; t++ {
				pos[axis] = t
				line[t] = f.Data[f.index(pos[0], pos[1], pos[2])]
			}
			envelope(line, out, v, z, step)
			for t := 0; t < n; t++ {
				pos[axis] = t
				f.Data[f.index(pos[0], pos[1], pos[2])] = out[t]
			}
		}
	}
}

// envelope computes out[p] = min_q (step*(p-q))^2 + g[q] over finite g[q]
// (Felzenszwalb & Huttenlocher). If no g[q] is finite out is +Inf.
func envelope(g, out []float64, v []int, z []float64, step float64) {
	n := len(g)
	pos := func(q int) float64 { return step * float64(q) }
	k := -1
	for q := 0; q < n; q++ {
		if math.IsInf(g[q], 1) {
			continue
		}
		xq := pos(q)
		for k >= 0 {
			xv := pos(v[k])
			s := ((g[q] + xq*xq) - (g[v[k]] + xv*xv)) / (2 * (xq - xv))
			if s <= z[k] {
				k--
				continue
			}
			k++
			v[k] = q
			z[k] = s
			z[k+1] = math.Inf(1)
			break
		}
		if k < 0 {
			k = 0
			v[0] = q
			z[0] = math.Inf(-1)
			z[1] = math.Inf(1)
		}
	}
	if k < 0 {
		for p := range out {
			out[p] = math.Inf(1)
		}
		return
	}
	j := 0
	for p := 0; p < n; p++ {
		x := pos(p)
		for z[j+1] < x {
			j++
		}
		d := x - pos(v[j])
		out[p] = d*d + g[v[j]]
	}
}

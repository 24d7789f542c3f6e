// Package morphology implements the volumetric operations the vessel pipeline
// runs on binary masks: padding, hole filling, Gaussian smoothing, opening,
// topology-preserving thinning, connected-component labeling and the
// Euclidean distance transform.
//
// All functions return new arrays; inputs are never modified.
package morphology

import (
	"vesselgeom/internal/models"
)

// Connectivity selects a 3D neighborhood.
type Connectivity int

const (
	// Face connects voxels sharing a face (6 neighbors).
	Face Connectivity = 6
	// Full connects voxels sharing a face, edge or corner (26 neighbors).
	Full Connectivity = 26
)

// Offsets returns the neighbor offsets of c, excluding the origin.
func (c Connectivity) Offsets() [][3]int {
	var out [][3]int
	for di := -1; di <= 1; di++ {
		for dj := -1; dj <= 1; dj++ {
			for dk := -1; dk <= 1; dk++ {
				n := abs(di) + abs(dj) + abs(dk)
				if n == 0 {
					continue
				}
				if c == Face && n > 1 {
					continue
				}
				out = append(out, [3]int{di, dj, dk})
			}
		}
	}
	return out
}

// Pad surrounds m with n background voxels on every side.
func Pad(m *models.Mask, n int) *models.Mask {
	shape := [3]int{m.Shape[0] + 2*n, m.Shape[1] + 2*n, m.Shape[2] + 2*n}
	out := models.NewMask(shape)
	for i := 0; i < m.Shape[0]; i++ {
		for j := 0; j < m.Shape[1]; j++ {
			for k := 0; k < m.Shape[2]; k++ {
				if m.Data[m.Index(i, j, k)] {
					out.Set(i+n, j+n, k+n, true)
				}
			}
		}
	}
	return out
}

// FillHoles sets every background voxel that is not face-connected to the
// array border, producing a solid object.
func FillHoles(m *models.Mask) *models.Mask {
	reached := make([]bool, len(m.Data))
	var queue []int
	push := func(i, j, k int) {
		idx := m.Index(i, j, k)
		if m.Data[idx] || reached[idx] {
			return
		}
		reached[idx] = true
		queue = append(queue, idx)
	}
	nx, ny, nz := m.Shape[0], m.Shape[1], m.Shape[2]
	for i := 0; i < nx; i++ {
		for j := 0; j < ny; j++ {
			for k := 0; k < nz; k++ {
				if i == 0 || j == 0 || k == 0 || i == nx-1 || j == ny-1 || k == nz-1 {
					push(i, j, k)
				}
			}
		}
	}
	offsets := Face.Offsets()
	for len(queue) > 0 {
		idx := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		i, j, k := m.Coords(idx)
		for _, o := range offsets {
			if m.In(i+o[0], j+o[1], k+o[2]) {
				push(i+o[0], j+o[1], k+o[2])
			}
		}
	}
	out := models.NewMask(m.Shape)
	for idx := range out.Data {
		out.Data[idx] = !reached[idx]
	}
	return out
}

// Erode keeps voxels whose whole neighborhood is set. Voxels outside the
// array read as border.
func Erode(m *models.Mask, c Connectivity, border bool) *models.Mask {
	offsets := c.Offsets()
	out := models.NewMask(m.Shape)
	for idx, v := range m.Data {
		if !v {
			continue
		}
		i, j, k := m.Coords(idx)
		keep := true
		for _, o := range offsets {
			ni, nj, nk := i+o[0], j+o[1], k+o[2]
			var nv bool
			if m.In(ni, nj, nk) {
				nv = m.Data[m.Index(ni, nj, nk)]
			} else {
				nv = border
			}
			if !nv {
				keep = false
				break
			}
		}
		out.Data[idx] = keep
	}
	return out
}

// Dilate sets every voxel with at least one set neighbor.
func Dilate(m *models.Mask, c Connectivity) *models.Mask {
	offsets := c.Offsets()
	out := m.Clone()
	for idx, v := range m.Data {
		if !v {
			continue
		}
		i, j, k := m.Coords(idx)
		for _, o := range offsets {
			ni, nj, nk := i+o[0], j+o[1], k+o[2]
			if m.In(ni, nj, nk) {
				out.Data[m.Index(ni, nj, nk)] = true
			}
		}
	}
	return out
}

// Open erodes then dilates with the same structuring element, removing
// protrusions thinner than the element. Erosion treats the outside of the
// array as foreground so objects touching the border are not eaten from it.
func Open(m *models.Mask, c Connectivity) *models.Mask {
	return Dilate(Erode(m, c, true), c)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

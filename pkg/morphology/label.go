package morphology

import (
	"vesselgeom/internal/models"
)

// Components is the result of connected-component labeling.
type Components struct {
	// Labels holds one entry per voxel: 0 for background, 1..Count otherwise.
	// Components are numbered in raster order of their first voxel.
	Labels []int32
	Count  int
	// Sizes[l] is the voxel count of component l; Sizes[0] is unused.
	Sizes []int
}

// Label finds the connected components of m under connectivity c.
func Label(m *models.Mask, c Connectivity) Components {
	offsets := c.Offsets()
	labels := make([]int32, len(m.Data))
	sizes := []int{0}
	var stack []int
	var next int32
	for idx, v := range m.Data {
		if !v || labels[idx] != 0 {
			continue
		}
		next++
		size := 0
		labels[idx] = next
		stack = append(stack[:0], idx)
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			size++
			i, j, k := m.Coords(cur)
			for _, o := range offsets {
				ni, nj, nk := i+o[0], j+o[1], k+o[2]
				if !m.In(ni, nj, nk) {
					continue
				}
				n := m.Index(ni, nj, nk)
				if m.Data[n] && labels[n] == 0 {
					labels[n] = next
					stack = append(stack, n)
				}
			}
		}
		sizes = append(sizes, size)
	}
	return Components{Labels: labels, Count: int(next), Sizes: sizes}
}

package morphology

import (
	"vesselgeom/internal/models"
)

// Positions inside a 3x3x3 neighborhood are numbered (di+1)*9 + (dj+1)*3 + (dk+1);
// the center is 13.
const cubeCenter = 13

var (
	cube26 [27][]int // 26-adjacent positions within the cube, center excluded
	cube6  [27][]int // 6-adjacent positions within the cube, center excluded
	n18    [27]bool  // positions sharing a face or an edge with the center
	n6     [27]bool  // positions sharing a face with the center
)

func init() {
	pos := func(di, dj, dk int) int { return (di+1)*9 + (dj+1)*3 + (dk+1) }
	for p := 0; p < 27; p++ {
		pi, pj, pk := p/9-1, (p/3)%3-1, p%3-1
		d := abs(pi) + abs(pj) + abs(pk)
		n18[p] = d == 1 || d == 2
		n6[p] = d == 1
		for _, o := range Full.Offsets() {
			qi, qj, qk := pi+o[0], pj+o[1], pk+o[2]
			if qi < -1 || qj < -1 || qk < -1 || qi > 1 || qj > 1 || qk > 1 {
				continue
			}
			q := pos(qi, qj, qk)
			if q == cubeCenter {
				continue
			}
			cube26[p] = append(cube26[p], q)
			if abs(o[0])+abs(o[1])+abs(o[2]) == 1 {
				cube6[p] = append(cube6[p], q)
			}
		}
	}
}

// thinningDirections are visited in order within each pass; a voxel is only
// a deletion candidate while its neighbor in the current direction is empty.
var thinningDirections = [6][3]int{
	{0, -1, 0}, {0, 1, 0},
	{1, 0, 0}, {-1, 0, 0},
	{0, 0, 1}, {0, 0, -1},
}

// Skeletonize thins m to a one-voxel-wide, topology-preserving skeleton.
//
// Each pass peels one layer from each of the six directions in turn. A border
// voxel is removed when it is not the end of a curve and removing it changes
// neither the number of foreground components nor the number of cavities or
// tunnels around it (it is a simple point). Candidates are collected first
// and re-checked one by one before deletion so that removing a whole layer at
// once cannot disconnect the object.
func Skeletonize(m *models.Mask) *models.Mask {
	s := m.Clone()
	active := make([]int, 0, len(s.Data))
	for idx, v := range s.Data {
		if v {
			active = append(active, idx)
		}
	}
	var nb [27]bool
	for {
		changed := false
		for _, d := range thinningDirections {
			var candidates []int
			for _, idx := range active {
				if !s.Data[idx] {
					continue
				}
				i, j, k := s.Coords(idx)
				if s.At(i+d[0], j+d[1], k+d[2]) {
					continue
				}
				neighborhood(s, i, j, k, &nb)
				if isCurveEnd(&nb) || !isSimple(&nb) {
					continue
				}
				candidates = append(candidates, idx)
			}
			for _, idx := range candidates {
				i, j, k := s.Coords(idx)
				neighborhood(s, i, j, k, &nb)
				if isCurveEnd(&nb) || !isSimple(&nb) {
					continue
				}
				s.Data[idx] = false
				changed = true
			}
		}
		if !changed {
			break
		}
		kept := active[:0]
		for _, idx := range active {
			if s.Data[idx] {
				kept = append(kept, idx)
			}
		}
		active = kept
	}
	return s
}

func neighborhood(m *models.Mask, i, j, k int, nb *[27]bool) {
	p := 0
	for di := -1; di <= 1; di++ {
		for dj := -1; dj <= 1; dj++ {
			for dk := -1; dk <= 1; dk++ {
				nb[p] = m.At(i+di, j+dj, k+dk)
				p++
			}
		}
	}
	nb[cubeCenter] = false
}

func isCurveEnd(nb *[27]bool) bool {
	n := 0
	for p, v := range nb {
		if v && p != cubeCenter {
			n++
		}
	}
	return n == 1
}

// isSimple reports whether deleting the center preserves topology: the
// foreground around it forms exactly one 26-connected component and the
// background in its 18-neighborhood forms exactly one 6-connected component
// touching a face of the center.
func isSimple(nb *[27]bool) bool {
	if countComponents(nb, true, cube26, func(p int) bool { return p != cubeCenter }, nil) != 1 {
		return false
	}
	inN18 := func(p int) bool { return n18[p] }
	return countComponents(nb, false, cube6, inN18, func(p int) bool { return n6[p] }) == 1
}

// countComponents counts connected components among positions whose value
// equals want and that satisfy include. When touching is non-nil only
// components containing at least one position satisfying it are counted.
func countComponents(nb *[27]bool, want bool, adj [27][]int, include, touching func(int) bool) int {
	var seen [27]bool
	var stack [27]int
	count := 0
	for start := 0; start < 27; start++ {
		if seen[start] || nb[start] != want || !include(start) {
			continue
		}
		seen[start] = true
		stack[0] = start
		top := 1
		touches := touching == nil
		for top > 0 {
			top--
			p := stack[top]
			if !touches && touching(p) {
				touches = true
			}
			for _, q := range adj[p] {
				if seen[q] || nb[q] != want || !include(q) {
					continue
				}
				seen[q] = true
				stack[top] = q
				top++
			}
		}
		if touches {
			count++
		}
	}
	return count
}

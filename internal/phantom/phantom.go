// Package phantom builds synthetic vessel masks with known geometry for
// exercising the pipeline.
package phantom

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"vesselgeom/internal/models"
)

// Sphere sets every voxel whose center lies within r voxels of c.
func Sphere(shape [3]int, c r3.Vec, r float64) *models.Mask {
	return fill(shape, func(p r3.Vec) bool {
		return r3.Norm(r3.Sub(p, c)) <= r
	})
}

// Cylinder sets a cylinder of radius r along the k axis through (ci, cj),
// covering k0 <= k <= k1.
func Cylinder(shape [3]int, ci, cj, r float64, k0, k1 int) *models.Mask {
	return fill(shape, func(p r3.Vec) bool {
		if p.Z < float64(k0) || p.Z > float64(k1) {
			return false
		}
		return math.Hypot(p.X-ci, p.Y-cj) <= r
	})
}

// Tube sets every voxel within r of the polyline through pts.
func Tube(shape [3]int, pts []r3.Vec, r float64) *models.Mask {
	return fill(shape, func(p r3.Vec) bool {
		for i := 0; i+1 < len(pts); i++ {
			if segmentDistance(p, pts[i], pts[i+1]) <= r {
				return true
			}
		}
		return false
	})
}

// Box sets the voxels with lo <= (i, j, k) <= hi.
func Box(shape [3]int, lo, hi [3]int) *models.Mask {
	m := models.NewMask(shape)
	for i := lo[0]; i <= hi[0]; i++ {
		for j := lo[1]; j <= hi[1]; j++ {
			for k := lo[2]; k <= hi[2]; k++ {
				if m.In(i, j, k) {
					m.Set(i, j, k, true)
				}
			}
		}
	}
	return m
}

// Volume paints each mask with its label. Later labels win where masks overlap.
func Volume(shape [3]int, affine models.Affine, masks map[int32]*models.Mask) *models.Volume {
	labels := make([]int32, shape[0]*shape[1]*shape[2])
	for _, v := range models.DefaultVessels {
		m, ok := masks[v.Value]
		if !ok {
			continue
		}
		for idx, set := range m.Data {
			if set {
				labels[idx] = v.Value
			}
		}
	}
	return &models.Volume{Shape: shape, Labels: labels, Affine: affine}
}

func fill(shape [3]int, inside func(r3.Vec) bool) *models.Mask {
	m := models.NewMask(shape)
	for i := 0; i < shape[0]; i++ {
		for j := 0; j < shape[1]; j++ {
			for k := 0; k < shape[2]; k++ {
				if inside(r3.Vec{X: float64(i), Y: float64(j), Z: float64(k)}) {
					m.Set(i, j, k, true)
				}
			}
		}
	}
	return m
}

func segmentDistance(p, a, b r3.Vec) float64 {
	ab := r3.Sub(b, a)
	t := 0.0
	if l2 := r3.Dot(ab, ab); l2 > 0 {
		t = math.Max(0, math.Min(1, r3.Dot(r3.Sub(p, a), ab)/l2))
	}
	return r3.Norm(r3.Sub(p, r3.Add(a, r3.Scale(t, ab))))
}

// Package labeling maps world-space points onto a label volume.
package labeling

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"vesselgeom/internal/models"
)

// Labeler assigns segmentation labels to world-space points.
// It holds the inverted affine so repeated lookups do not invert it again.
type Labeler struct {
	vol *models.Volume
	inv models.Affine
}

// NewLabeler prepares a labeler for vol. It fails only when the volume's
// affine cannot be inverted.
func NewLabeler(vol *models.Volume) (*Labeler, error) {
	inv, err := vol.Affine.Inverse()
	if err != nil {
		return nil, err
	}
	return &Labeler{vol: vol, inv: inv}, nil
}

// Voxel returns the voxel index nearest to p, clamped into the volume.
// Points outside the volume are pulled onto its boundary rather than rejected.
// A NaN coordinate maps to index 0 on that axis.
func (l *Labeler) Voxel(p r3.Vec) [3]int {
	v := l.inv.Apply(p)
	return [3]int{
		clamp(v.X, l.vol.Shape[0]),
		clamp(v.Y, l.vol.Shape[1]),
		clamp(v.Z, l.vol.Shape[2]),
	}
}

// Label returns the label of the voxel containing p.
func (l *Labeler) Label(p r3.Vec) int32 {
	v := l.Voxel(p)
	return l.vol.At(v[0], v[1], v[2])
}

// LabelAll labels every point.
func (l *Labeler) LabelAll(points []r3.Vec) []int32 {
	out := make([]int32, len(points))
	for i, p := range points {
		out[i] = l.Label(p)
	}
	return out
}

// clamp rounds x and limits it to [0, n-1] before converting, since
// converting an out-of-range float to int is undefined.
func clamp(x float64, n int) int {
	if math.IsNaN(x) {
		return 0
	}
	return int(math.Max(0, math.Min(float64(n-1), math.Round(x))))
}

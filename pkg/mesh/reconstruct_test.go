package mesh

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"vesselgeom/internal/models"
	"vesselgeom/internal/phantom"
)

const sphereRadius = 6.0

func sphereMask() *models.Mask {
	return phantom.Sphere([3]int{21, 21, 21}, r3.Vec{X: 10, Y: 10, Z: 10}, sphereRadius)
}

// TestReconstructSphere checks area and volume against a ball of the mask's radius.
// Smoothing and the low iso-level push the surface out by under two voxels.
func TestReconstructSphere(t *testing.T) {
	r := NewReconstructor(DefaultParams())
	m, met := r.Reconstruct(sphereMask(), models.Identity())

	require.False(t, m.Empty())
	assert.True(t, met.Watertight)
	assert.Len(t, m.Normals, len(m.Vertices))

	areaRadius := math.Sqrt(met.SurfaceArea / (4 * math.Pi))
	volRadius := math.Cbrt(3 * met.Volume / (4 * math.Pi))
	assert.GreaterOrEqual(t, areaRadius, sphereRadius)
	assert.LessOrEqual(t, areaRadius, sphereRadius+2)
	assert.GreaterOrEqual(t, volRadius, sphereRadius)
	assert.LessOrEqual(t, volRadius, sphereRadius+2)

	var centroid r3.Vec
	for _, v := range m.Vertices {
		centroid = r3.Add(centroid, v)
	}
	centroid = r3.Scale(1/float64(len(m.Vertices)), centroid)
	assert.InDelta(t, 10, centroid.X, 0.1)
	assert.InDelta(t, 10, centroid.Y, 0.1)
	assert.InDelta(t, 10, centroid.Z, 0.1)
}

// TestReconstructScaling verifies physical spacing and origin carry into world space
func TestReconstructScaling(t *testing.T) {
	r := NewReconstructor(DefaultParams())
	_, unit := r.Reconstruct(sphereMask(), models.Identity())

	origin := r3.Vec{X: -50, Y: 20, Z: 3}
	m, scaled := r.Reconstruct(sphereMask(), models.Scaling(r3.Vec{X: 2, Y: 2, Z: 2}, origin))
	assert.InEpsilon(t, 4*unit.SurfaceArea, scaled.SurfaceArea, 1e-6)
	assert.InEpsilon(t, 8*unit.Volume, scaled.Volume, 1e-6)

	lo, hi := bounds(m.Vertices)
	center := r3.Scale(0.5, r3.Add(lo, hi))
	want := r3.Add(origin, r3.Vec{X: 20, Y: 20, Z: 20})
	assert.InDelta(t, want.X, center.X, 0.5)
	assert.InDelta(t, want.Y, center.Y, 0.5)
	assert.InDelta(t, want.Z, center.Z, 0.5)
}

// TestReconstructRotation verifies the affine's direction cosines orient the mesh
func TestReconstructRotation(t *testing.T) {
	bar := phantom.Box([3]int{20, 9, 9}, [3]int{3, 3, 3}, [3]int{16, 5, 5})
	// voxel i runs along world +y, j along world -x
	affine := models.Affine{
		{0, -1, 0, 0},
		{1, 0, 0, 0},
		{0, 0, 1, 0},
		{0, 0, 0, 1},
	}
	m, met := NewReconstructor(DefaultParams()).Reconstruct(bar, affine)
	require.False(t, m.Empty())
	assert.True(t, met.Watertight)

	lo, hi := bounds(m.Vertices)
	extent := r3.Sub(hi, lo)
	assert.Greater(t, extent.Y, 2*extent.X)
	assert.InDelta(t, extent.X, extent.Z, 0.5)
	assert.Less(t, hi.X, 0.0, "voxel j >= 0 maps to world x <= 0")
}

func TestReconstructEmpty(t *testing.T) {
	r := NewReconstructor(DefaultParams())
	m, met := r.Reconstruct(models.NewMask([3]int{5, 5, 5}), models.Identity())
	assert.True(t, m.Empty())
	assert.Equal(t, Metrics{}, met)
}

// TestReconstructBelowLevel covers a mask too small to survive smoothing
func TestReconstructBelowLevel(t *testing.T) {
	m := models.NewMask([3]int{5, 5, 5})
	m.Set(2, 2, 2, true)
	mesh, met := NewReconstructor(DefaultParams()).Reconstruct(m, models.Identity())
	assert.True(t, mesh.Empty())
	assert.Equal(t, Metrics{}, met)
}

// TestReconstructRepeatable verifies identical masks give identical meshes and metrics
func TestReconstructRepeatable(t *testing.T) {
	shape := [3]int{16, 16, 24}
	mask := phantom.Cylinder(shape, 8, 8, 4, 3, 20)
	affine := models.Scaling(r3.Vec{X: 0.7, Y: 0.7, Z: 1.3}, r3.Vec{X: -12, Y: 4, Z: 30})
	r := NewReconstructor(DefaultParams())

	first, firstMet := r.Reconstruct(mask, affine)
	require.False(t, first.Empty())
	for run := 0; run < 5; run++ {
		m, met := r.Reconstruct(mask, affine)
		require.Equal(t, first.Vertices, m.Vertices, "run %d", run)
		require.Equal(t, first.Triangles, m.Triangles, "run %d", run)
		require.Equal(t, firstMet, met, "run %d", run)
	}
}

func bounds(vs []r3.Vec) (lo, hi r3.Vec) {
	lo = r3.Vec{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)}
	hi = r3.Scale(-1, lo)
	for _, v := range vs {
		lo = r3.Vec{X: math.Min(lo.X, v.X), Y: math.Min(lo.Y, v.Y), Z: math.Min(lo.Z, v.Z)}
		hi = r3.Vec{X: math.Max(hi.X, v.X), Y: math.Max(hi.Y, v.Y), Z: math.Max(hi.Z, v.Z)}
	}
	return lo, hi
}

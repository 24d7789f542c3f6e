package mesh

import (
	"math"

	"github.com/unixpickle/model3d/model3d"
	"gonum.org/v1/gonum/spatial/r3"

	"vesselgeom/internal/models"
	"vesselgeom/pkg/morphology"
)

// Params controls surface reconstruction.
type Params struct {
	// Padding is the number of background voxels added around the mask
	// so the surface closes at the array boundary.
	Padding int
	// Sigma is the Gaussian smoothing width in voxels.
	Sigma float64
	// IsoLevel is the threshold of the smoothed field the surface follows.
	IsoLevel float64
	// SearchIterations refines each surface vertex onto the iso-level by bisection.
	SearchIterations int
}

// DefaultParams returns the reconstruction settings used for vessel masks.
func DefaultParams() Params {
	return Params{
		Padding:          2,
		Sigma:            1.0,
		IsoLevel:         0.2,
		SearchIterations: 8,
	}
}

// Reconstructor turns binary masks into world-space surface meshes.
type Reconstructor struct {
	params Params
}

// NewReconstructor creates a Reconstructor with the given settings.
func NewReconstructor(params Params) *Reconstructor {
	return &Reconstructor{params: params}
}

// Reconstruct extracts the smoothed iso-surface of mask and places it in
// world coordinates with affine. An empty mask yields an empty mesh and zero
// metrics.
func (r *Reconstructor) Reconstruct(mask *models.Mask, affine models.Affine) (*Mesh, Metrics) {
	if !mask.Any() {
		return &Mesh{}, Metrics{}
	}
	spacing := affine.Spacing()
	pad := r.params.Padding

	solid := morphology.FillHoles(morphology.Pad(mask, pad))
	field := morphology.Gaussian(morphology.FromMask(solid), r.params.Sigma)
	if field.Max() < r.params.IsoLevel {
		return &Mesh{}, Metrics{}
	}

	level := &levelSet{field: field, spacing: spacing, level: r.params.IsoLevel}
	delta := math.Min(spacing.X, math.Min(spacing.Y, spacing.Z))
	raw := FromModel3D(model3d.MarchingCubesSearch(level, delta, r.params.SearchIterations))

	offset := r3.Vec{X: float64(pad) * spacing.X, Y: float64(pad) * spacing.Y, Z: float64(pad) * spacing.Z}
	dir := affine.Direction()
	origin := affine.Translation()
	world := raw.Transform(func(v r3.Vec) r3.Vec {
		return r3.Add(dir.MulVec(r3.Sub(v, offset)), origin)
	})

	out := world.Clean().WithNormals()
	return out, out.Metrics()
}

// levelSet exposes the region of a scalar field at or above a level as a
// model3d.Solid. Coordinates are millimeters from the first voxel center,
// and the field is interpolated trilinearly between voxel centers.
type levelSet struct {
	field   *morphology.Field
	spacing r3.Vec
	level   float64
}

func (l *levelSet) Min() model3d.Coord3D {
	return model3d.Coord3D{}
}

func (l *levelSet) Max() model3d.Coord3D {
	s := l.field.Shape
	return model3d.Coord3D{
		X: float64(s[0]-1) * l.spacing.X,
		Y: float64(s[1]-1) * l.spacing.Y,
		Z: float64(s[2]-1) * l.spacing.Z,
	}
}

func (l *levelSet) Contains(c model3d.Coord3D) bool {
	hi := l.Max()
	if c.X < 0 || c.Y < 0 || c.Z < 0 || c.X > hi.X || c.Y > hi.Y || c.Z > hi.Z {
		return false
	}
	return l.field.Trilinear(c.X/l.spacing.X, c.Y/l.spacing.Y, c.Z/l.spacing.Z) >= l.level
}

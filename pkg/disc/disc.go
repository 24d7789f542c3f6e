// Package disc builds flat circular marker meshes, used to show a vessel's
// cross-section at its widest point.
package disc

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"vesselgeom/pkg/mesh"
)

// DefaultResolution is the number of rim segments (and triangles).
const DefaultResolution = 60

var (
	up     = r3.Vec{Z: 1}
	xAxis  = r3.Vec{X: 1}
	minRes = 3
)

// Build returns a fan-triangulated disc of the given radius centered at
// center and facing normal. Vertex 0 is the center; vertices 1..resolution
// lie on the rim. A zero normal faces +Z. Resolutions below three use
// DefaultResolution.
func Build(center r3.Vec, radius float64, normal r3.Vec, resolution int) *mesh.Mesh {
	if resolution < minRes {
		resolution = DefaultResolution
	}
	n := up
	if l := r3.Norm(normal); l > 0 {
		n = r3.Scale(1/l, normal)
	}
	rotate := alignZ(n)

	m := &mesh.Mesh{
		Vertices:  make([]r3.Vec, 0, resolution+1),
		Triangles: make([][3]int, 0, resolution),
	}
	m.Vertices = append(m.Vertices, center)
	for i := 0; i < resolution; i++ {
		a := 2 * math.Pi * float64(i) / float64(resolution)
		p := r3.Vec{X: radius * math.Cos(a), Y: radius * math.Sin(a)}
		m.Vertices = append(m.Vertices, r3.Add(rotate(p), center))
	}
	for i := 1; i < resolution; i++ {
		m.Triangles = append(m.Triangles, [3]int{0, i, i + 1})
	}
	m.Triangles = append(m.Triangles, [3]int{0, resolution, 1})
	return m.WithNormals()
}

// alignZ returns the rotation taking +Z onto the unit vector n. When n points
// straight down the rotation is a half turn about +X.
func alignZ(n r3.Vec) func(r3.Vec) r3.Vec {
	cos := r3.Dot(up, n)
	if cos >= 1 {
		return func(v r3.Vec) r3.Vec { return v }
	}
	axis := r3.Cross(up, n)
	if r3.Norm(axis) == 0 {
		axis = xAxis
	}
	rot := r3.NewRotation(math.Acos(math.Max(-1, math.Min(1, cos))), r3.Unit(axis))
	return rot.Rotate
}

// Package quality scores how well a reconstructed surface matches the
// points it was reconstructed from.
package quality

import (
	"math"

	"github.com/unixpickle/model3d/model3d"
	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/spatial/r3"

	"vesselgeom/pkg/mesh"
)

// Score returns the symmetric surface discrepancy between m and points: the
// mean distance from each point to the mesh surface plus the mean distance
// from each mesh vertex to its nearest point. The two means are summed, not
// averaged.
//
// ok is false when there are no points or the mesh has no vertices, since
// nothing was measured.
func Score(m *mesh.Mesh, points []r3.Vec) (score float64, ok bool) {
	if len(points) == 0 || m == nil || len(m.Vertices) == 0 {
		return 0, false
	}
	return PointToSurface(m, points) + SurfaceToPoint(m, points), true
}

// PointToSurface is the mean distance from each point to the closest point
// on the mesh surface. A mesh without triangles is measured by its vertices.
func PointToSurface(m *mesh.Mesh, points []r3.Vec) float64 {
	if len(m.Triangles) == 0 {
		return meanNearest(m.Vertices, points)
	}
	sdf := model3d.MeshToSDF(m.Model3D())
	var sum float64
	for _, p := range points {
		sum += math.Abs(sdf.SDF(model3d.Coord3D{X: p.X, Y: p.Y, Z: p.Z}))
	}
	return sum / float64(len(points))
}

// SurfaceToPoint is the mean distance from each mesh vertex to the nearest point.
func SurfaceToPoint(m *mesh.Mesh, points []r3.Vec) float64 {
	return meanNearest(points, m.Vertices)
}

// meanNearest averages, over queries, the distance to the nearest of targets.
func meanNearest(targets, queries []r3.Vec) float64 {
	pts := make(kdtree.Points, len(targets))
	for i, t := range targets {
		pts[i] = kdtree.Point{t.X, t.Y, t.Z}
	}
	tree := kdtree.New(pts, false)
	var sum float64
	for _, q := range queries {
		_, d2 := tree.Nearest(kdtree.Point{q.X, q.Y, q.Z})
		sum += math.Sqrt(d2)
	}
	return sum / float64(len(queries))
}

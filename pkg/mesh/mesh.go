// Package mesh holds the indexed triangle mesh used for vessel surfaces and
// the reconstruction of such meshes from binary label masks.
package mesh

import (
	"cmp"
	"math"
	"slices"

	"github.com/unixpickle/model3d/model3d"
	"gonum.org/v1/gonum/spatial/r3"
)

// Mesh is an indexed triangle mesh. Every triangle index is within
// [0, len(Vertices)). Normals, when present, has one entry per vertex.
//
// Methods never modify the receiver; they return new meshes.
type Mesh struct {
	Vertices  []r3.Vec
	Triangles [][3]int
	Normals   []r3.Vec
}

// Metrics summarizes a closed surface.
type Metrics struct {
	SurfaceArea float64
	// Volume is the enclosed volume, 0 unless Watertight.
	Volume     float64
	Watertight bool
}

// Empty reports whether the mesh has no triangles.
func (m *Mesh) Empty() bool {
	return m == nil || len(m.Vertices) == 0 || len(m.Triangles) == 0
}

// Triangle returns the corner positions of triangle t.
func (m *Mesh) Triangle(t int) [3]r3.Vec {
	tri := m.Triangles[t]
	return [3]r3.Vec{m.Vertices[tri[0]], m.Vertices[tri[1]], m.Vertices[tri[2]]}
}

// Transform maps every vertex through fn. Normals are dropped since an
// arbitrary map does not carry them along.
func (m *Mesh) Transform(fn func(r3.Vec) r3.Vec) *Mesh {
	out := &Mesh{
		Vertices:  make([]r3.Vec, len(m.Vertices)),
		Triangles: append([][3]int(nil), m.Triangles...),
	}
	for i, v := range m.Vertices {
		out.Vertices[i] = fn(v)
	}
	return out
}

// Clean merges coincident vertices, drops triangles that collapsed to a line
// or point, and drops vertices no triangle references.
func (m *Mesh) Clean() *Mesh {
	remap := make([]int, len(m.Vertices))
	unique := make(map[r3.Vec]int, len(m.Vertices))
	var merged []r3.Vec
	for i, v := range m.Vertices {
		if j, ok := unique[v]; ok {
			remap[i] = j
			continue
		}
		unique[v] = len(merged)
		remap[i] = len(merged)
		merged = append(merged, v)
	}

	var tris [][3]int
	for _, t := range m.Triangles {
		a, b, c := remap[t[0]], remap[t[1]], remap[t[2]]
		if a == b || b == c || a == c {
			continue
		}
		n := r3.Cross(r3.Sub(merged[b], merged[a]), r3.Sub(merged[c], merged[a]))
		if r3.Norm(n) == 0 {
			continue
		}
		tris = append(tris, [3]int{a, b, c})
	}

	used := make([]int, len(merged))
	for i := range used {
		used[i] = -1
	}
	out := &Mesh{}
	for ti, t := range tris {
		for c, vi := range t {
			if used[vi] < 0 {
				used[vi] = len(out.Vertices)
				out.Vertices = append(out.Vertices, merged[vi])
			}
			tris[ti][c] = used[vi]
		}
	}
	out.Triangles = tris
	return out
}

// WithNormals returns a copy carrying area-weighted vertex normals.
func (m *Mesh) WithNormals() *Mesh {
	out := &Mesh{
		Vertices:  append([]r3.Vec(nil), m.Vertices...),
		Triangles: append([][3]int(nil), m.Triangles...),
		Normals:   make([]r3.Vec, len(m.Vertices)),
	}
	for t := range m.Triangles {
		p := m.Triangle(t)
		n := r3.Cross(r3.Sub(p[1], p[0]), r3.Sub(p[2], p[0]))
		for _, vi := range m.Triangles[t] {
			out.Normals[vi] = r3.Add(out.Normals[vi], n)
		}
	}
	for i, n := range out.Normals {
		if l := r3.Norm(n); l > 0 {
			out.Normals[i] = r3.Scale(1/l, n)
		}
	}
	return out
}

// Model3D converts the mesh for use with model3d's geometry queries.
func (m *Mesh) Model3D() *model3d.Mesh {
	tris := make([]*model3d.Triangle, len(m.Triangles))
	for t := range m.Triangles {
		p := m.Triangle(t)
		tris[t] = &model3d.Triangle{toCoord(p[0]), toCoord(p[1]), toCoord(p[2])}
	}
	return model3d.NewMeshTriangles(tris)
}

// FromModel3D indexes a model3d mesh. Shared corners become shared vertices.
// model3d hands triangles back in map order, so they are put in a fixed
// order first: each triangle is rotated to start at its smallest corner,
// keeping its winding, and the triangles are sorted by their corners.
func FromModel3D(src *model3d.Mesh) *Mesh {
	srcTris := src.TriangleSlice()
	tris := make([]model3d.Triangle, 0, len(srcTris))
	for _, t := range srcTris {
		tris = append(tris, canonical(*t))
	}
	slices.SortFunc(tris, compareTriangles)

	out := &Mesh{}
	index := map[model3d.Coord3D]int{}
	for _, t := range tris {
		var tri [3]int
		for c, p := range t {
			vi, ok := index[p]
			if !ok {
				vi = len(out.Vertices)
				index[p] = vi
				out.Vertices = append(out.Vertices, fromCoord(p))
			}
			tri[c] = vi
		}
		out.Triangles = append(out.Triangles, tri)
	}
	return out
}

func canonical(t model3d.Triangle) model3d.Triangle {
	first := 0
	for c := 1; c < 3; c++ {
		if compareCoords(t[c], t[first]) < 0 {
			first = c
		}
	}
	return model3d.Triangle{t[first], t[(first+1)%3], t[(first+2)%3]}
}

func compareTriangles(a, b model3d.Triangle) int {
	for c := range a {
		if d := compareCoords(a[c], b[c]); d != 0 {
			return d
		}
	}
	return 0
}

func compareCoords(a, b model3d.Coord3D) int {
	if d := cmp.Compare(a.X, b.X); d != 0 {
		return d
	}
	if d := cmp.Compare(a.Y, b.Y); d != 0 {
		return d
	}
	return cmp.Compare(a.Z, b.Z)
}

// Metrics measures surface area, watertightness and enclosed volume. Sums
// run over Triangles in index order so equal meshes give equal metrics.
func (m *Mesh) Metrics() Metrics {
	if m.Empty() {
		return Metrics{}
	}
	var area, volume float64
	for t := range m.Triangles {
		p := m.Triangle(t)
		area += r3.Norm(r3.Cross(r3.Sub(p[1], p[0]), r3.Sub(p[2], p[0]))) / 2
		volume += r3.Dot(p[0], r3.Cross(p[1], p[2])) / 6
	}
	met := Metrics{
		SurfaceArea: area,
		Watertight:  !m.Model3D().NeedsRepair(),
	}
	if met.Watertight {
		met.Volume = math.Abs(volume)
	}
	return met
}

func toCoord(v r3.Vec) model3d.Coord3D {
	return model3d.Coord3D{X: v.X, Y: v.Y, Z: v.Z}
}

func fromCoord(c model3d.Coord3D) r3.Vec {
	return r3.Vec{X: c.X, Y: c.Y, Z: c.Z}
}

// Package stl writes triangle meshes as binary STL files.
package stl

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/spatial/r3"

	"vesselgeom/pkg/mesh"
)

// ErrEmptyMesh is returned when there are no triangles to write.
var ErrEmptyMesh = errors.New("stl: no triangles")

// Triangle is one binary STL facet record (50 bytes on disk).
type Triangle struct {
	Normal    [3]float32
	Vertex1   [3]float32
	Vertex2   [3]float32
	Vertex3   [3]float32
	Attribute uint16
}

type header struct {
	_     [80]uint8
	Count uint32
}

// FromMesh flattens an indexed mesh into facets. Facet normals follow the
// right-hand winding of each triangle; degenerate triangles get a zero normal.
func FromMesh(m *mesh.Mesh) []Triangle {
	out := make([]Triangle, 0, len(m.Triangles))
	for t := range m.Triangles {
		v := m.Triangle(t)
		n := r3.Cross(r3.Sub(v[1], v[0]), r3.Sub(v[2], v[0]))
		if l := r3.Norm(n); l > 0 {
			n = r3.Scale(1/l, n)
		}
		out = append(out, Triangle{
			Normal:  vec32(n),
			Vertex1: vec32(v[0]),
			Vertex2: vec32(v[1]),
			Vertex3: vec32(v[2]),
		})
	}
	return out
}

// WriteSTL writes facets to w in little-endian binary STL format.
func WriteSTL(w io.Writer, triangles []Triangle) error {
	if len(triangles) == 0 {
		return ErrEmptyMesh
	}
	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.LittleEndian, header{Count: uint32(len(triangles))}); err != nil {
		return fmt.Errorf("write stl header: %w", err)
	}
	if err := binary.Write(bw, binary.LittleEndian, triangles); err != nil {
		return fmt.Errorf("write stl facets: %w", err)
	}
	return bw.Flush()
}

// SaveToSTL saves the triangles to a binary STL file, creating parent
// directories as needed.
func SaveToSTL(filename string, triangles []Triangle) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if err := WriteSTL(f, triangles); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// SaveMesh is SaveToSTL for an indexed mesh.
func SaveMesh(filename string, m *mesh.Mesh) error {
	return SaveToSTL(filename, FromMesh(m))
}

func vec32(v r3.Vec) [3]float32 {
	return [3]float32{float32(v.X), float32(v.Y), float32(v.Z)}
}

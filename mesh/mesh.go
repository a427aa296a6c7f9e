// Package mesh implements an indexed triangle mesh with manifold and
// topology validation, and binary STL encoding.
package mesh

import (
	"math"

	"github.com/soypat/geometry/ms3"
)

// Triangle is a triangle given by its three corners in counter-clockwise
// order seen from outside.
type Triangle [3]ms3.Vec

// Normal returns the unit normal of the triangle from its winding. A
// degenerate triangle has a zero normal.
func (t Triangle) Normal() ms3.Vec {
	n := cross64(t)
	l := math.Sqrt(n[0]*n[0] + n[1]*n[1] + n[2]*n[2])
	if l == 0 {
		return ms3.Vec{}
	}
	return ms3.Vec{X: float32(n[0] / l), Y: float32(n[1] / l), Z: float32(n[2] / l)}
}

// Area returns the triangle's area.
func (t Triangle) Area() float64 {
	n := cross64(t)
	return 0.5 * math.Sqrt(n[0]*n[0]+n[1]*n[1]+n[2]*n[2])
}

// cross64 computes (b-a)x(c-a) in float64.
func cross64(t Triangle) [3]float64 {
	ax, ay, az := float64(t[0].X), float64(t[0].Y), float64(t[0].Z)
	ux, uy, uz := float64(t[1].X)-ax, float64(t[1].Y)-ay, float64(t[1].Z)-az
	vx, vy, vz := float64(t[2].X)-ax, float64(t[2].Y)-ay, float64(t[2].Z)-az
	return [3]float64{uy*vz - uz*vy, uz*vx - ux*vz, ux*vy - uy*vx}
}

// Mesh is an indexed triangle mesh.
type Mesh struct {
	Vertices []ms3.Vec
	Faces    [][3]uint32
}

// Triangle returns the i'th face as a [Triangle].
func (m *Mesh) Triangle(i int) Triangle {
	f := m.Faces[i]
	return Triangle{m.Vertices[f[0]], m.Vertices[f[1]], m.Vertices[f[2]]}
}

// Triangles returns all faces as triangles, in face order.
func (m *Mesh) Triangles() []Triangle {
	tris := make([]Triangle, len(m.Faces))
	for i := range m.Faces {
		tris[i] = m.Triangle(i)
	}
	return tris
}

// Bounds returns the bounding box of the mesh vertices.
func (m *Mesh) Bounds() ms3.Box {
	if len(m.Vertices) == 0 {
		return ms3.Box{}
	}
	bb := ms3.Box{Min: m.Vertices[0], Max: m.Vertices[0]}
	for _, v := range m.Vertices[1:] {
		bb.Min = ms3.Vec{X: min(bb.Min.X, v.X), Y: min(bb.Min.Y, v.Y), Z: min(bb.Min.Z, v.Z)}
		bb.Max = ms3.MaxElem(bb.Max, v)
	}
	return bb
}

// SignedVolume returns the volume enclosed by the mesh. It is positive for a
// closed mesh with outward facing triangles.
func (m *Mesh) SignedVolume() float64 {
	var vol float64
	for i := range m.Faces {
		t := m.Triangle(i)
		ax, ay, az := float64(t[0].X), float64(t[0].Y), float64(t[0].Z)
		bx, by, bz := float64(t[1].X), float64(t[1].Y), float64(t[1].Z)
		cx, cy, cz := float64(t[2].X), float64(t[2].Y), float64(t[2].Z)
		vol += ax*(by*cz-bz*cy) - ay*(bx*cz-bz*cx) + az*(bx*cy-by*cx)
	}
	return vol / 6
}

// Area returns the total surface area.
func (m *Mesh) Area() (area float64) {
	for i := range m.Faces {
		area += m.Triangle(i).Area()
	}
	return area
}

// Weld builds an indexed mesh from triangles, merging corners with equal
// coordinates. Corners shared through an index remain shared after a
// round trip through STL since coordinates are stored exactly.
func Weld(tris []Triangle) *Mesh {
	m := &Mesh{Faces: make([][3]uint32, len(tris))}
	index := make(map[ms3.Vec]uint32, len(tris)/2)
	for i, t := range tris {
		for j, v := range t {
			vi, ok := index[v]
			if !ok {
				vi = uint32(len(m.Vertices))
				m.Vertices = append(m.Vertices, v)
				index[v] = vi
			}
			m.Faces[i][j] = vi
		}
	}
	return m
}

// Package geom implements the exact float64 geometry of a regular dodecahedron:
// vertex generation, a fixed outward-wound face table and derived face and
// edge metrics. All other packages derive their geometry from here.
package geom

import (
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/spatial/r3"
)

const (
	NumVertices = 20
	NumFaces    = 12
	NumEdges    = 30
	FaceSides   = 5
)

// Phi is the golden ratio.
var Phi = (1 + math.Sqrt(5)) / 2

// faceTable lists the vertex indices of each pentagonal face, wound
// counter-clockwise when viewed from outside the solid. It is only valid
// together with the vertex order produced by generateVertices.
var faceTable = [NumFaces][FaceSides]int{
	{0, 8, 4, 14, 12},
	{0, 16, 2, 10, 8},
	{0, 12, 1, 17, 16},
	{1, 12, 14, 5, 9},
	{1, 9, 11, 3, 17},
	{2, 16, 17, 3, 13},
	{2, 13, 15, 6, 10},
	{4, 8, 10, 6, 18},
	{4, 18, 19, 5, 14},
	{3, 11, 7, 15, 13},
	{5, 19, 7, 11, 9},
	{6, 15, 7, 19, 18},
}

var topologyOnce sync.Once

// Dodecahedron is a regular dodecahedron centered at the origin.
type Dodecahedron struct {
	r     float64
	verts [NumVertices]r3.Vec
}

// New returns the regular dodecahedron with the given circumradius
// (distance from center to every vertex).
func New(circumradius float64) (*Dodecahedron, error) {
	if !(circumradius > 0) || math.IsInf(circumradius, 0) {
		return nil, fmt.Errorf("invalid dodecahedron circumradius %g", circumradius)
	}
	topologyOnce.Do(func() {
		err := CheckTopology(faceTable, generateVertices(1))
		if err != nil {
			panic("geom: inconsistent face table: " + err.Error())
		}
	})
	return &Dodecahedron{r: circumradius, verts: generateVertices(circumradius)}, nil
}

func generateVertices(circumradius float64) (v [NumVertices]r3.Vec) {
	s := circumradius / math.Sqrt(3)
	iphi := 1 / Phi
	signs := [2]float64{-1, 1}
	n := 0
	for _, i := range signs {
		for _, j := range signs {
			for _, k := range signs {
				v[n] = r3.Vec{X: i, Y: j, Z: k}
				n++
			}
		}
	}
	for _, j := range signs {
		for _, k := range signs {
			v[n] = r3.Vec{X: 0, Y: j * iphi, Z: k * Phi}
			n++
		}
	}
	for _, i := range signs {
		for _, j := range signs {
			v[n] = r3.Vec{X: i * iphi, Y: j * Phi, Z: 0}
			n++
		}
	}
	for _, i := range signs {
		for _, k := range signs {
			v[n] = r3.Vec{X: i * Phi, Y: 0, Z: k * iphi}
			n++
		}
	}
	for i := range v {
		v[i] = r3.Scale(s, v[i])
	}
	return v
}

// Circumradius returns the distance from the center to any vertex.
func (d *Dodecahedron) Circumradius() float64 { return d.r }

// Vertex returns the i'th vertex position. It panics if i is out of range.
func (d *Dodecahedron) Vertex(i int) r3.Vec {
	mustVertex(i)
	return d.verts[i]
}

// Vertices returns all vertex positions.
func (d *Dodecahedron) Vertices() [NumVertices]r3.Vec { return d.verts }

// VertexDir returns the unit radial direction of the i'th vertex.
func (d *Dodecahedron) VertexDir(i int) r3.Vec {
	return r3.Unit(d.Vertex(i))
}

// Face returns the vertex indices of the i'th face in counter-clockwise
// order seen from outside. It panics if i is out of range.
func (d *Dodecahedron) Face(i int) [FaceSides]int {
	mustFace(i)
	return faceTable[i]
}

// FaceVertices returns the positions of the i'th face.
func (d *Dodecahedron) FaceVertices(i int) (fv [FaceSides]r3.Vec) {
	for j, vi := range d.Face(i) {
		fv[j] = d.verts[vi]
	}
	return fv
}

// FaceCenter returns the arithmetic mean of the i'th face's vertices.
func (d *Dodecahedron) FaceCenter(i int) r3.Vec {
	var c r3.Vec
	for _, v := range d.FaceVertices(i) {
		c = r3.Add(c, v)
	}
	return r3.Scale(1.0/FaceSides, c)
}

// FaceNormal returns the outward unit normal of the i'th face. For a
// solid centered at the origin it is the normalized face center.
func (d *Dodecahedron) FaceNormal(i int) r3.Vec {
	return r3.Unit(d.FaceCenter(i))
}

// VertexFaces returns the three faces that share vertex i, in ascending order.
func (d *Dodecahedron) VertexFaces(i int) (faces [3]int) {
	mustVertex(i)
	n := 0
	for fi, f := range faceTable {
		for _, vi := range f {
			if vi == i {
				faces[n] = fi
				n++
			}
		}
	}
	return faces
}

// Edges returns the 30 undirected edges as ascending index pairs, sorted.
func (d *Dodecahedron) Edges() [NumEdges][2]int {
	return edges
}

// EdgeLength returns the edge length, 4r/(√3(1+√5)).
func (d *Dodecahedron) EdgeLength() float64 {
	f := faceTable[0]
	return r3.Norm(r3.Sub(d.verts[f[0]], d.verts[f[1]]))
}

// Inradius returns the distance from the center to each face plane.
func (d *Dodecahedron) Inradius() float64 {
	return r3.Norm(d.FaceCenter(0))
}

// FaceCircumradius returns the distance from a face center to its vertices.
func (d *Dodecahedron) FaceCircumradius() float64 {
	f := faceTable[0]
	return r3.Norm(r3.Sub(d.verts[f[0]], d.FaceCenter(0)))
}

// FaceInradius returns the radius of the circle inscribed in each pentagonal face.
func (d *Dodecahedron) FaceInradius() float64 {
	return d.FaceCircumradius() * math.Cos(math.Pi/FaceSides)
}

// EdgeMidpoint returns the midpoint of edge e as returned by [Dodecahedron.Edges].
func (d *Dodecahedron) EdgeMidpoint(e [2]int) r3.Vec {
	return r3.Scale(0.5, r3.Add(d.Vertex(e[0]), d.Vertex(e[1])))
}

var edges = func() (e [NumEdges][2]int) {
	n := 0
	for a := 0; a < NumVertices; a++ {
		for b := a + 1; b < NumVertices; b++ {
			if sharesEdge(a, b) {
				e[n] = [2]int{a, b}
				n++
			}
		}
	}
	return e
}()

func sharesEdge(a, b int) bool {
	for _, f := range faceTable {
		for j := range f {
			u, w := f[j], f[(j+1)%FaceSides]
			if (u == a && w == b) || (u == b && w == a) {
				return true
			}
		}
	}
	return false
}

func mustVertex(i int) {
	if i < 0 || i >= NumVertices {
		panic(fmt.Sprintf("geom: vertex index %d out of range [0,%d)", i, NumVertices))
	}
}

func mustFace(i int) {
	if i < 0 || i >= NumFaces {
		panic(fmt.Sprintf("geom: face index %d out of range [0,%d)", i, NumFaces))
	}
}

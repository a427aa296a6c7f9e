package pipeline

import (
	"math"

	"github.com/soypat/dodeca"
	"github.com/soypat/dodeca/geom"
	"github.com/soypat/dodeca/mesh"
	"gonum.org/v1/gonum/spatial/r3"
)

// MeasureHoleRadius returns the mean distance from the hole axis of face i to
// the mesh vertices on the hole wall: those inside the wall slab, at least
// margin away from both wall faces, and within the face's inscribed circle.
func MeasureHoleRadius(m *mesh.Mesh, sh *dodeca.Shell, face int, margin float64) (radius float64, n int) {
	nrm := sh.Outer.FaceNormal(face)
	lo := sh.Inner.Inradius() + margin
	hi := sh.Outer.Inradius() - margin
	maxRadial := sh.Outer.FaceInradius()
	var sum float64
	for _, v := range m.Vertices {
		p := vec64(v)
		a := r3.Dot(p, nrm)
		if a < lo || a > hi {
			continue
		}
		radial := r3.Norm(r3.Sub(p, r3.Scale(a, nrm)))
		if radial >= maxRadial {
			continue
		}
		sum += radial
		n++
	}
	if n == 0 {
		return 0, 0
	}
	return sum / float64(n), n
}

// EdgeDeviations measures how far the mesh falls short of each sharp outer
// edge. For every edge it casts a ray from the center through the edge
// midpoint and returns the distance from the midpoint back to the outermost
// mesh crossing. Positive values are chamfered edges; a negative value means
// the mesh bulges past the true edge. Edges with no crossing are +Inf.
func EdgeDeviations(m *mesh.Mesh, sh *dodeca.Shell) (dev [geom.NumEdges]float64) {
	for ei, e := range sh.Outer.Edges() {
		mid := sh.Outer.EdgeMidpoint(e)
		dir := r3.Unit(mid)
		far := math.Inf(-1)
		for i := range m.Faces {
			t, ok := rayHit(dir, m.Triangle(i))
			if ok {
				far = math.Max(far, t)
			}
		}
		dev[ei] = r3.Norm(mid) - far
	}
	return dev
}

// MaxEdgeDeviation returns the largest of [EdgeDeviations] and its edge index.
func MaxEdgeDeviation(m *mesh.Mesh, sh *dodeca.Shell) (worst float64, edge int) {
	worst = math.Inf(-1)
	for i, d := range EdgeDeviations(m, sh) {
		if d > worst {
			worst, edge = d, i
		}
	}
	return worst, edge
}

// EdgeTolerance is the bound on [EdgeDeviations] for a lattice of spacing h:
// half a cell diagonal.
func EdgeTolerance(h float64) float64 {
	return math.Sqrt(3) / 2 * h
}

// rayHit intersects the ray from the origin along unit dir with tri and
// returns the ray parameter of the crossing.
func rayHit(dir r3.Vec, tri mesh.Triangle) (float64, bool) {
	a, b, c := vec64(tri[0]), vec64(tri[1]), vec64(tri[2])
	e1, e2 := r3.Sub(b, a), r3.Sub(c, a)
	p := r3.Cross(dir, e2)
	det := r3.Dot(e1, p)
	if math.Abs(det) < 1e-14 {
		return 0, false
	}
	inv := 1 / det
	s := r3.Scale(-1, a)
	u := r3.Dot(s, p) * inv
	if u < 0 || u > 1 {
		return 0, false
	}
	q := r3.Cross(s, e1)
	v := r3.Dot(dir, q) * inv
	if v < 0 || u+v > 1 {
		return 0, false
	}
	t := r3.Dot(e2, q) * inv
	return t, t > 0
}

package dodeca

import (
	"github.com/soypat/dodeca/geom"
	"github.com/soypat/geometry/ms3"
	"gonum.org/v1/gonum/spatial/r3"
)

type sphere struct {
	r float32
}

// NewSphere creates a sphere centered at the origin of radius r.
func (bld *Builder) NewSphere(r float32) Shape {
	valid := r > 0
	if !valid {
		bld.shapeErrorf("zero or negative sphere radius")
	}
	return &sphere{r: r}
}

func (s *sphere) ForEachChild(userData any, fn func(userData any, s *Shape) error) error {
	return nil
}

func (s *sphere) AppendName(b []byte) []byte {
	b = append(b, "sphere"...)
	b = appendFloat(b, 'n', 'p', s.r)
	return b
}

func (s *sphere) Bounds() ms3.Box {
	return ms3.Box{
		Min: ms3.Vec{X: -s.r, Y: -s.r, Z: -s.r},
		Max: ms3.Vec{X: s.r, Y: s.r, Z: s.r},
	}
}

// NewCylinder creates a cylinder centered at the origin with given radius and height.
// The cylinder's axis points in z direction.
func (bld *Builder) NewCylinder(r, h float32) Shape {
	okDim := r > 0 && h > 0
	if !okDim {
		bld.shapeErrorf("bad cylinder dimension")
	}
	return &cylinder{r: r, h: h}
}

type cylinder struct {
	r float32
	h float32
}

func (s *cylinder) Bounds() ms3.Box {
	return ms3.Box{
		Min: ms3.Vec{X: -s.r, Y: -s.r, Z: -s.h / 2},
		Max: ms3.Vec{X: s.r, Y: s.r, Z: s.h / 2},
	}
}

func (s *cylinder) ForEachChild(userData any, fn func(userData any, s *Shape) error) error {
	return nil
}

func (s *cylinder) AppendName(b []byte) []byte {
	b = append(b, "cyl"...)
	b = appendFloats(b, '_', 'n', 'p', s.r, s.h)
	return b
}

func (c *cylinder) args() (r, halfh float32) {
	return c.r, c.h / 2
}

// plane is the half space n·p <= d with unit normal n.
type plane struct {
	n ms3.Vec
	d float32
}

// NewConvexPolyhedron creates the intersection of the half spaces n_i·p <= offsets[i].
// The normals must be unit length. vertices are the polyhedron corners and
// only serve to compute its bounding box.
func (bld *Builder) NewConvexPolyhedron(normals []ms3.Vec, offsets []float32, vertices []ms3.Vec) Shape {
	if len(normals) < 4 || len(normals) != len(offsets) {
		bld.shapeErrorf("convex polyhedron needs at least 4 planes with one offset each")
		return &convexPolyhedron{}
	}
	if len(vertices) < 4 {
		bld.shapeErrorf("convex polyhedron needs at least 4 vertices")
		return &convexPolyhedron{}
	}
	cp := &convexPolyhedron{planes: make([]plane, len(normals))}
	for i, n := range normals {
		if l := ms3.Norm(n); l < 1-1e-4 || l > 1+1e-4 {
			bld.shapeErrorf("convex polyhedron normal %d not unit length", i)
		}
		cp.planes[i] = plane{n: n, d: offsets[i]}
	}
	cp.bb = ms3.Box{Min: vertices[0], Max: vertices[0]}
	for _, v := range vertices[1:] {
		cp.bb.Min = minElem(cp.bb.Min, v)
		cp.bb.Max = ms3.MaxElem(cp.bb.Max, v)
	}
	return cp
}

// NewDodecahedron creates the solid regular dodecahedron described by d.
func (bld *Builder) NewDodecahedron(d *geom.Dodecahedron) Shape {
	if d == nil {
		bld.nilsdf("NewDodecahedron")
	}
	normals := make([]ms3.Vec, geom.NumFaces)
	offsets := make([]float32, geom.NumFaces)
	inr := d.Inradius()
	for i := range normals {
		normals[i] = vecf(d.FaceNormal(i))
		offsets[i] = float32(inr)
	}
	verts := d.Vertices()
	vertices := make([]ms3.Vec, len(verts))
	for i, v := range verts {
		vertices[i] = vecf(v)
	}
	cp := bld.NewConvexPolyhedron(normals, offsets, vertices)
	if cp, ok := cp.(*convexPolyhedron); ok {
		cp.name = "dodeca"
	}
	return cp
}

type convexPolyhedron struct {
	planes []plane
	bb     ms3.Box
	name   string
}

func (cp *convexPolyhedron) Bounds() ms3.Box {
	return cp.bb
}

func (cp *convexPolyhedron) ForEachChild(userData any, fn func(userData any, s *Shape) error) error {
	return nil
}

func (cp *convexPolyhedron) AppendName(b []byte) []byte {
	if cp.name != "" {
		b = append(b, cp.name...)
	} else {
		b = append(b, "convex"...)
	}
	if len(cp.planes) > 0 {
		b = appendFloat(b, 'n', 'p', cp.planes[0].d)
	}
	return b
}

// vecf converts a float64 kernel vector to the float32 evaluation space.
func vecf(v r3.Vec) ms3.Vec {
	return ms3.Vec{X: float32(v.X), Y: float32(v.Y), Z: float32(v.Z)}
}

func vec64(v ms3.Vec) r3.Vec {
	return r3.Vec{X: float64(v.X), Y: float64(v.Y), Z: float64(v.Z)}
}

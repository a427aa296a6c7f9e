package dodeca

import (
	"fmt"
	"strconv"

	"github.com/soypat/geometry/ms3"
	"gonum.org/v1/gonum/spatial/r3"
)

// OpUnion is the result of the [Builder.Union] operation. Prefer using Union to using this type directly.
//
// Normally primitives and results of operations in this package are
// not exported since their concrete type provides relatively little value.
// The result of Union is the exception to the rule since the CSG compiler
// and users inspecting a tree need to tell joined shapes apart.
type OpUnion struct {
	// joined contains 2 or more 3D SDFs.
	// OpUnion methods will panic if joined less than 2 elements.
	joined []Shape
}

// Union joins the shapes of several 3D SDFs into one. Is exact.
// Union aggregates nested Union results into its own, preserving argument order.
func (bld *Builder) Union(shapes ...Shape) Shape {
	if len(shapes) < 2 {
		panic("need at least 2 arguments to Union")
	}
	var U OpUnion
	for i, s := range shapes {
		if s == nil {
			bld.nilsdf(fmt.Sprintf("nil arg[%d] to Union", i))
		}
		if subU, ok := s.(*OpUnion); ok {
			// Discard nested union elements and join their elements.
			U.joined = append(U.joined, subU.joined...)
		} else {
			U.joined = append(U.joined, s)
		}
	}
	return &U
}

// Joined returns the shapes joined by the union in evaluation order.
func (u *OpUnion) Joined() []Shape {
	u.mustValidate()
	return u.joined
}

// Bounds returns the union of all joined SDFs. Implements [Shape].
func (u *OpUnion) Bounds() ms3.Box {
	u.mustValidate()
	bb := u.joined[0].Bounds()
	for _, bb2 := range u.joined[1:] {
		bb = bb.Union(bb2.Bounds())
	}
	return bb
}

// ForEachChild implements [Shape].
func (u *OpUnion) ForEachChild(userData any, fn func(userData any, s *Shape) error) error {
	u.mustValidate()
	for i := range u.joined {
		err := fn(userData, &u.joined[i])
		if err != nil {
			return err
		}
	}
	return nil
}

// AppendName implements [Shape].
func (u *OpUnion) AppendName(b []byte) []byte {
	u.mustValidate()
	b = append(b, "union_"...)
	for i := range u.joined {
		b = u.joined[i].AppendName(b)
		if i < len(u.joined)-1 {
			b = append(b, '_')
		}
	}
	return b
}

func (u *OpUnion) mustValidate() {
	if len(u.joined) < 2 {
		panic("OpUnion must have at least 2 elements. please prefer using Builder.Union over OpUnion")
	}
}

// Difference is the SDF difference of a-b. Does not produce a true SDF.
func (bld *Builder) Difference(a, b Shape) Shape {
	if a == nil || b == nil {
		bld.nilsdf("Difference")
	}
	return &diff{s1: a, s2: b}
}

type diff struct {
	s1, s2 Shape // Performs s1-s2.
}

func (u *diff) Bounds() ms3.Box {
	return u.s1.Bounds()
}

func (s *diff) ForEachChild(userData any, fn func(userData any, s *Shape) error) error {
	err := fn(userData, &s.s1)
	if err != nil {
		return err
	}
	return fn(userData, &s.s2)
}

func (s *diff) AppendName(b []byte) []byte {
	b = append(b, "diff_"...)
	b = s.s1.AppendName(b)
	b = append(b, '_')
	b = s.s2.AppendName(b)
	return b
}

// Translate moves the SDF s in the given direction (dirX, dirY, dirZ) and returns the result.
func (bld *Builder) Translate(s Shape, dirX, dirY, dirZ float32) Shape {
	if s == nil {
		bld.nilsdf("Translate")
	}
	return &translate{s: s, p: ms3.Vec{X: dirX, Y: dirY, Z: dirZ}}
}

type translate struct {
	s Shape
	p ms3.Vec
}

func (u *translate) Bounds() ms3.Box {
	return u.s.Bounds().Add(u.p)
}

func (s *translate) ForEachChild(userData any, fn func(userData any, s *Shape) error) error {
	return fn(userData, &s.s)
}

func (s *translate) AppendName(b []byte) []byte {
	b = append(b, "translate"...)
	b = appendFloats(b, 0, 'n', 'p', s.p.X, s.p.Y, s.p.Z)
	b = append(b, '_')
	b = s.s.AppendName(b)
	return b
}

// Rotate applies the rotation rot to s. The rotation is stored as the
// rotated images of the X, Y and Z axes, so evaluation needs no matrix inverse.
func (bld *Builder) Rotate(s Shape, rot r3.Rotation) Shape {
	if s == nil {
		bld.nilsdf("Rotate")
	}
	u := rot.Rotate(r3.Vec{X: 1})
	v := rot.Rotate(r3.Vec{Y: 1})
	w := rot.Rotate(r3.Vec{Z: 1})
	det := r3.Dot(u, r3.Cross(v, w))
	if det < 1-epstol || det > 1+epstol {
		bld.shapeErrorf("rotation is not orthonormal: det=%g", det)
	}
	return &rotate{s: s, u: vecf(u), v: vecf(v), w: vecf(w)}
}

type rotate struct {
	s Shape
	// Rotated basis. A point q in the child's frame maps to q.X*u + q.Y*v + q.Z*w.
	u, v, w ms3.Vec
}

func (r *rotate) toWorld(q ms3.Vec) ms3.Vec {
	return ms3.Add(ms3.Add(ms3.Scale(q.X, r.u), ms3.Scale(q.Y, r.v)), ms3.Scale(q.Z, r.w))
}

func (r *rotate) toLocal(p ms3.Vec) ms3.Vec {
	return ms3.Vec{X: ms3.Dot(p, r.u), Y: ms3.Dot(p, r.v), Z: ms3.Dot(p, r.w)}
}

func (r *rotate) Bounds() ms3.Box {
	bb := r.s.Bounds()
	var out ms3.Box
	for i := 0; i < 8; i++ {
		corner := bb.Min
		if i&1 != 0 {
			corner.X = bb.Max.X
		}
		if i&2 != 0 {
			corner.Y = bb.Max.Y
		}
		if i&4 != 0 {
			corner.Z = bb.Max.Z
		}
		c := r.toWorld(corner)
		if i == 0 {
			out = ms3.Box{Min: c, Max: c}
			continue
		}
		out.Min = minElem(out.Min, c)
		out.Max = ms3.MaxElem(out.Max, c)
	}
	return out
}

func (r *rotate) ForEachChild(userData any, fn func(userData any, s *Shape) error) error {
	return fn(userData, &r.s)
}

func (r *rotate) AppendName(b []byte) []byte {
	b = append(b, "rot"...)
	b = appendFloats(b, 0, 'n', 'p', r.w.X, r.w.Y, r.w.Z)
	b = append(b, '_')
	b = r.s.AppendName(b)
	return b
}

// Role identifies the part a labeled shape plays in the shell.
type Role uint8

const (
	RoleNone Role = iota
	RoleOuterHull
	RoleCavity
	RoleHole
	RoleKnob
)

func (r Role) String() string {
	switch r {
	case RoleOuterHull:
		return "outer"
	case RoleCavity:
		return "cavity"
	case RoleHole:
		return "hole"
	case RoleKnob:
		return "knob"
	}
	return "role" + strconv.Itoa(int(r))
}

// Label tags s with the role it plays in the shell and the face or vertex
// index it belongs to. Labels do not change the distance field.
func (bld *Builder) Label(s Shape, role Role, index int) Shape {
	if s == nil {
		bld.nilsdf("Label")
	}
	if role == RoleNone || index < 0 {
		bld.shapeErrorf("invalid label %s%d", role, index)
	}
	return &labeled{s: s, role: role, index: index}
}

type labeled struct {
	s     Shape
	role  Role
	index int
}

func (l *labeled) Bounds() ms3.Box {
	return l.s.Bounds()
}

func (l *labeled) ForEachChild(userData any, fn func(userData any, s *Shape) error) error {
	return fn(userData, &l.s)
}

func (l *labeled) AppendName(b []byte) []byte {
	b = append(b, l.role.String()...)
	b = strconv.AppendInt(b, int64(l.index), 10)
	return b
}

func (l *labeled) Evaluate(pos []ms3.Vec, dist []float32, userData any) error {
	return l.s.Evaluate(pos, dist, userData)
}

package dodeca

import (
	"github.com/chewxy/math32"
	"github.com/soypat/dodeca/sdfeval"
	"github.com/soypat/geometry/ms3"
)

func minReduce(d1AndDst, d2 []float32) {
	for i := range d1AndDst {
		d1AndDst[i] = math32.Min(d1AndDst[i], d2[i])
	}
}

// subtractReduce stores max(d1, -d2) in d1AndDst.
func subtractReduce(d1AndDst, d2 []float32) {
	for i := range d1AndDst {
		d1AndDst[i] = math32.Max(d1AndDst[i], -d2[i])
	}
}

func (u *sphere) Evaluate(pos []ms3.Vec, dist []float32, userData any) error {
	r := u.r
	for i, p := range pos {
		dist[i] = ms3.Norm(p) - r
	}
	return nil
}

func (c *cylinder) Evaluate(pos []ms3.Vec, dist []float32, userData any) error {
	r, h := c.args()
	for i, p := range pos {
		dx := hypotf(p.X, p.Y) - r
		dy := math32.Abs(p.Z) - h
		dist[i] = minf(0, maxf(dx, dy)) + hypotf(maxf(0, dx), maxf(0, dy))
	}
	return nil
}

// Evaluate returns the largest signed plane distance. It equals the exact
// distance inside and near faces and underestimates it near edges and vertices.
func (cp *convexPolyhedron) Evaluate(pos []ms3.Vec, dist []float32, userData any) error {
	planes := cp.planes
	for i, p := range pos {
		d := float32(-largenum)
		for _, pl := range planes {
			d = maxf(d, ms3.Dot(pl.n, p)-pl.d)
		}
		dist[i] = d
	}
	return nil
}

func (u *OpUnion) Evaluate(pos []ms3.Vec, dist []float32, userData any) error {
	u.mustValidate()
	vp, err := sdfeval.GetVecPool(userData)
	if err != nil {
		return err
	}
	auxDist := vp.Float.Acquire(len(dist))
	defer vp.Float.Release(auxDist)
	err = u.joined[0].Evaluate(pos, dist, userData)
	if err != nil {
		return err
	}
	for _, shape := range u.joined[1:] {
		err = shape.Evaluate(pos, auxDist, userData)
		if err != nil {
			return err
		}
		minReduce(dist, auxDist)
	}
	return nil
}

func (s *diff) Evaluate(pos []ms3.Vec, dist []float32, userData any) error {
	vp, err := sdfeval.GetVecPool(userData)
	if err != nil {
		return err
	}
	d1 := dist
	d2 := vp.Float.Acquire(len(dist))
	defer vp.Float.Release(d2)
	err = s.s1.Evaluate(pos, d1, userData)
	if err != nil {
		return err
	}
	err = s.s2.Evaluate(pos, d2, userData)
	if err != nil {
		return err
	}
	subtractReduce(d1, d2)
	return nil
}

func (t *translate) Evaluate(pos []ms3.Vec, dist []float32, userData any) error {
	vp, err := sdfeval.GetVecPool(userData)
	if err != nil {
		return err
	}
	transformed := vp.V3.Acquire(len(pos))
	defer vp.V3.Release(transformed)
	T := t.p
	for i, p := range pos {
		transformed[i] = ms3.Sub(p, T)
	}
	return t.s.Evaluate(transformed, dist, userData)
}

func (r *rotate) Evaluate(pos []ms3.Vec, dist []float32, userData any) error {
	vp, err := sdfeval.GetVecPool(userData)
	if err != nil {
		return err
	}
	transformed := vp.V3.Acquire(len(pos))
	defer vp.V3.Release(transformed)
	for i, p := range pos {
		transformed[i] = r.toLocal(p)
	}
	return r.s.Evaluate(transformed, dist, userData)
}

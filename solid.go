package dodeca

import (
	"errors"
	"fmt"

	"github.com/soypat/dodeca/geom"
	"github.com/soypat/dodeca/sdfeval"
	"github.com/soypat/geometry/ms3"
	"gonum.org/v1/gonum/spatial/r3"
)

// StepOp is the boolean operation a [Step] applies to the running result.
type StepOp uint8

const (
	OpBase StepOp = iota
	OpSubtract
	OpJoin
)

func (op StepOp) String() string {
	switch op {
	case OpBase:
		return "base"
	case OpSubtract:
		return "subtract"
	case OpJoin:
		return "union"
	}
	return "op?"
}

// Step is one boolean operation of a compiled solid.
type Step struct {
	Op    StepOp
	Role  Role
	Index int
	Shape Shape
}

func (st Step) String() string {
	return fmt.Sprintf("%s %s%d", st.Op, st.Role, st.Index)
}

// Solid is a shell expression compiled into an ordered list of boolean
// steps: outer hull, cavity subtraction, hole subtractions in face order,
// then knob unions in vertex order. It implements [sdfeval.SDF3].
type Solid struct {
	steps  []Step
	bounds ms3.Box
}

var errCSGOrder = errors.New("csg order violation")

// Compile flattens tree into evaluation steps and verifies their order.
func Compile(tree Shape) (*Solid, error) {
	if tree == nil {
		return nil, errors.New("nil shape tree")
	}
	var steps []Step
	err := flatten(tree, &steps)
	if err != nil {
		return nil, err
	}
	err = checkOrder(steps)
	if err != nil {
		return nil, err
	}
	for _, st := range steps {
		err = st.Shape.ForEachChild(nil, func(_ any, s *Shape) error {
			return Walk(*s, func(s Shape) error {
				if l, ok := s.(*labeled); ok {
					return fmt.Errorf("%w: %s%d nested inside %s", errCSGOrder, l.role, l.index, st)
				}
				return nil
			})
		})
		if err != nil {
			return nil, err
		}
	}
	return &Solid{steps: steps, bounds: tree.Bounds()}, nil
}

func flatten(s Shape, dst *[]Step) error {
	switch node := s.(type) {
	case *labeled:
		if len(*dst) != 0 {
			return fmt.Errorf("%w: base shape %s%d not first", errCSGOrder, node.role, node.index)
		}
		*dst = append(*dst, Step{Op: OpBase, Role: node.role, Index: node.index, Shape: node})
	case *diff:
		err := flatten(node.s1, dst)
		if err != nil {
			return err
		}
		l, ok := node.s2.(*labeled)
		if !ok {
			return fmt.Errorf("%w: unlabeled subtrahend %s", errCSGOrder, Name(node.s2))
		}
		*dst = append(*dst, Step{Op: OpSubtract, Role: l.role, Index: l.index, Shape: l})
	case *OpUnion:
		joined := node.Joined()
		err := flatten(joined[0], dst)
		if err != nil {
			return err
		}
		for _, j := range joined[1:] {
			l, ok := j.(*labeled)
			if !ok {
				return fmt.Errorf("%w: unlabeled union operand %s", errCSGOrder, Name(j))
			}
			*dst = append(*dst, Step{Op: OpJoin, Role: l.role, Index: l.index, Shape: l})
		}
	default:
		return fmt.Errorf("%w: unexpected %s at top level", errCSGOrder, Name(s))
	}
	return nil
}

// checkOrder verifies the steps follow outer, cavity, holes ascending, knobs ascending.
func checkOrder(steps []Step) error {
	want := func(i int, op StepOp, role Role, index int) error {
		st := steps[i]
		if st.Op != op || st.Role != role || st.Index != index {
			return fmt.Errorf("%w: step %d is %s, want %s %s%d", errCSGOrder, i, st, op, role, index)
		}
		return nil
	}
	if len(steps) < 2 {
		return fmt.Errorf("%w: need outer hull and cavity, got %d steps", errCSGOrder, len(steps))
	}
	if err := want(0, OpBase, RoleOuterHull, 0); err != nil {
		return err
	}
	if err := want(1, OpSubtract, RoleCavity, 0); err != nil {
		return err
	}
	i := 2
	for hole := 0; i < len(steps) && steps[i].Role == RoleHole; hole++ {
		if err := want(i, OpSubtract, RoleHole, hole); err != nil {
			return err
		}
		i++
	}
	for knob := 0; i < len(steps); knob++ {
		if err := want(i, OpJoin, RoleKnob, knob); err != nil {
			return err
		}
		i++
	}
	return nil
}

// Steps returns the compiled steps in evaluation order.
func (s *Solid) Steps() []Step { return s.steps }

// Bounds implements [sdfeval.SDF3].
func (s *Solid) Bounds() ms3.Box { return s.bounds }

// Evaluate implements [sdfeval.SDF3] by running every step in order.
func (s *Solid) Evaluate(pos []ms3.Vec, dist []float32, userData any) error {
	return s.EvaluateSteps(len(s.steps), pos, dist, userData)
}

// EvaluateSteps evaluates the intermediate solid made of the first n steps.
func (s *Solid) EvaluateSteps(n int, pos []ms3.Vec, dist []float32, userData any) error {
	if n < 1 || n > len(s.steps) {
		return fmt.Errorf("step count %d out of range [1,%d]", n, len(s.steps))
	}
	err := sdfeval.CheckBuffers(pos, dist)
	if err != nil {
		return err
	}
	vp, err := sdfeval.GetVecPool(userData)
	if err != nil {
		return err
	}
	aux := vp.Float.Acquire(len(dist))
	defer vp.Float.Release(aux)
	err = s.steps[0].Shape.Evaluate(pos, dist, userData)
	if err != nil {
		return err
	}
	for _, st := range s.steps[1:n] {
		err = st.Shape.Evaluate(pos, aux, userData)
		if err != nil {
			return fmt.Errorf("evaluating %s: %w", st, err)
		}
		switch st.Op {
		case OpSubtract:
			subtractReduce(dist, aux)
		case OpJoin:
			minReduce(dist, aux)
		}
	}
	return nil
}

// sample is a point whose expected solid/empty state is checked at a given step.
type sample struct {
	p     ms3.Vec
	solid bool
	err   func() error
}

// Validate samples the intermediate solids of the compiled shell:
//   - after hollowing the center is empty and the wall at every edge is solid,
//   - after each hole its face axis at mid wall is empty,
//   - after each knob its center and its vertex are solid,
//   - after the last knob every hole is still open.
func (s *Solid) Validate(sh *Shell) error {
	nh, nk := geom.NumFaces, geom.NumVertices
	if len(s.steps) != 2+nh+nk {
		return fmt.Errorf("%w: want %d steps, got %d", errCSGOrder, 2+nh+nk, len(s.steps))
	}
	outer, inner := sh.Outer, sh.Inner
	midWall := func(dir r3.Vec, outerDist, innerDist float64) ms3.Vec {
		return vecf(r3.Scale((outerDist+innerDist)/2, r3.Unit(dir)))
	}
	stages := make(map[int][]sample)
	stages[2] = append(stages[2], sample{p: ms3.Vec{}, solid: false, err: func() error {
		return &GeometryError{Face: -1, Vertex: -1, Reason: "cavity missing at center"}
	}})
	midRatio := r3.Norm(outer.EdgeMidpoint(outer.Edges()[0])) / outer.Circumradius()
	for _, e := range outer.Edges() {
		p := midWall(outer.EdgeMidpoint(e), midRatio*outer.Circumradius(), midRatio*inner.Circumradius())
		stages[2] = append(stages[2], sample{p: p, solid: true, err: func() error {
			return vertexErr(e[0], "wall missing at edge %d-%d after hollowing", e[0], e[1])
		}})
	}
	holeSamples := make([]ms3.Vec, nh)
	for i := 0; i < nh; i++ {
		holeSamples[i] = midWall(outer.FaceNormal(i), outer.Inradius(), inner.Inradius())
		stages[3+i] = append(stages[3+i], sample{p: holeSamples[i], solid: false, err: func() error {
			return faceErr(i, "hole does not open through the wall")
		}})
	}
	for j := 0; j < nk; j++ {
		stage := 3 + nh + j
		stages[stage] = append(stages[stage],
			sample{p: vecf(sh.KnobCenters[j]), solid: true, err: func() error {
				return vertexErr(j, "knob missing")
			}},
			sample{p: vecf(outer.Vertex(j)), solid: true, err: func() error {
				return vertexErr(j, "knob not attached to its vertex")
			}},
		)
	}
	last := 2 + nh + nk
	for i := 0; i < nh; i++ {
		stages[last] = append(stages[last], sample{p: holeSamples[i], solid: false, err: func() error {
			blocker := -1
			for j, c := range sh.KnobCenters {
				if r3.Norm(r3.Sub(c, vec64(holeSamples[i]))) < sh.Params.KnobRadius {
					blocker = j
					break
				}
			}
			return &GeometryError{Face: i, Vertex: blocker, Reason: "hole blocked by knob"}
		}})
	}

	vp := new(sdfeval.VecPool)
	for n := 2; n <= last; n++ {
		samples := stages[n]
		if len(samples) == 0 {
			continue
		}
		pos := make([]ms3.Vec, len(samples))
		dist := make([]float32, len(samples))
		for k, smp := range samples {
			pos[k] = smp.p
		}
		err := s.EvaluateSteps(n, pos, dist, vp)
		if err != nil {
			return err
		}
		for k, smp := range samples {
			if (dist[k] < 0) != smp.solid {
				return smp.err()
			}
		}
	}
	return nil
}

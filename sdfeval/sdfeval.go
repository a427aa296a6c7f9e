// Package sdfeval defines the batch signed distance field evaluation
// contract shared by the shape tree, the CSG evaluator and the tessellator.
package sdfeval

import (
	"errors"

	"github.com/soypat/geometry/ms3"
)

// SDF3 implements a 3D signed distance field in vectorized form.
// Negative distances are inside the solid.
type SDF3 interface {
	// Evaluate evaluates the signed distance field over pos positions.
	// dist and pos must be of same length.  Resulting distances are stored
	// in dist.
	//
	// userData facilitates getting data to the evaluators for use in processing, such as [VecPool].
	Evaluate(pos []ms3.Vec, dist []float32, userData any) error
	// Bounds returns the SDF's bounding box such that all of the shape is contained within.
	Bounds() ms3.Box
}

var (
	errEmptyBuffers         = errors.New("empty buffers")
	errMismatchBufferLength = errors.New("position and distance buffer length mismatch")
)

// CheckBuffers returns an error if pos and dist are not usable for a call to Evaluate.
func CheckBuffers(pos []ms3.Vec, dist []float32) error {
	if len(pos) != len(dist) {
		return errMismatchBufferLength
	} else if len(pos) == 0 {
		return errEmptyBuffers
	}
	return nil
}

// CountingSDF3 wraps an SDF3 and counts the positions it evaluates.
type CountingSDF3 struct {
	SDF   SDF3
	evals uint64
	calls uint64
}

// Evaluate implements the [SDF3] interface.
func (c *CountingSDF3) Evaluate(pos []ms3.Vec, dist []float32, userData any) error {
	err := CheckBuffers(pos, dist)
	if err != nil {
		return err
	}
	err = c.SDF.Evaluate(pos, dist, userData)
	if err != nil {
		return err
	}
	c.evals += uint64(len(pos))
	c.calls++
	return nil
}

// Bounds returns the wrapped SDF's bounding box.
func (c *CountingSDF3) Bounds() ms3.Box { return c.SDF.Bounds() }

// Evaluations returns total positions evaluated successfully during the SDF's lifetime.
func (c *CountingSDF3) Evaluations() uint64 { return c.evals }

// Calls returns the number of successful Evaluate calls.
func (c *CountingSDF3) Calls() uint64 { return c.calls }

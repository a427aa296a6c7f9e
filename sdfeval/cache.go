package sdfeval

import (
	"errors"
	"fmt"
	"slices"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
)

// CachedSDF3 remembers the distance of every position it evaluates, keyed by
// the exact bit pattern of the position. Lattice renderers revisit the points
// shared by adjacent blocks, which are then served from the cache.
type CachedSDF3 struct {
	SDF     SDF3
	m       map[[3]uint32]float32
	posbuf  []ms3.Vec
	distbuf []float32
	idxbuf  []int
	hits    uint64
	evals   uint64
}

// CacheHits returns total amount of cached evaluations done throughout the SDF's lifetime.
func (c3 *CachedSDF3) CacheHits() uint64 {
	return c3.hits
}

// Evaluations returns total evaluations performed successfully during sdf's lifetime, including cached.
func (c3 *CachedSDF3) Evaluations() uint64 {
	return c3.evals
}

// Cached returns the number of distinct positions held by the cache.
func (c3 *CachedSDF3) Cached() int { return len(c3.m) }

// Evaluate implements the [SDF3] interface with cached evaluation.
func (c3 *CachedSDF3) Evaluate(pos []ms3.Vec, dist []float32, userData any) error {
	err := CheckBuffers(pos, dist)
	if err != nil {
		return err
	}
	if c3.m == nil {
		c3.m = make(map[[3]uint32]float32)
	}
	seekPos := c3.posbuf[:0]
	idx := c3.idxbuf[:0]
	for i, p := range pos {
		d, cached := c3.m[cacheKey(p)]
		if cached {
			dist[i] = d
		} else {
			seekPos = append(seekPos, p)
			idx = append(idx, i)
		}
	}
	if len(idx) > 0 {
		// Keep grown buffers for the next call.
		c3.idxbuf = idx
		c3.posbuf = seekPos
		c3.distbuf = slices.Grow(c3.distbuf[:0], len(seekPos))
		seekDist := c3.distbuf[:len(seekPos)]
		err := c3.SDF.Evaluate(seekPos, seekDist, userData)
		if err != nil {
			return err
		}
		for i, p := range seekPos {
			c3.m[cacheKey(p)] = seekDist[i]
		}
		for i, d := range seekDist {
			dist[idx[i]] = d
		}
	}
	c3.evals += uint64(len(dist))
	c3.hits += uint64(len(dist) - len(seekPos))
	return nil
}

// Bounds returns the SDF's bounding box such that all of the shape is contained within.
func (c3 *CachedSDF3) Bounds() ms3.Box {
	return c3.SDF.Bounds()
}

func cacheKey(p ms3.Vec) [3]uint32 {
	return [3]uint32{
		math32.Float32bits(p.X),
		math32.Float32bits(p.Y),
		math32.Float32bits(p.Z),
	}
}

// NormalsCentralDiff estimates the field gradient at every position by central
// differences with spacing step and stores it in normals. The estimates are
// scaled by step and not normalized. All six samples of every position are
// evaluated in a single batch; userData must hold a [VecPool].
func NormalsCentralDiff(s SDF3, pos []ms3.Vec, normals []ms3.Vec, step float32, userData any) error {
	switch {
	case s == nil:
		return errors.New("nil SDF3")
	case !(step > 0) || math32.IsInf(step, 1):
		return fmt.Errorf("invalid central difference step %g", step)
	case len(pos) != len(normals):
		return errors.New("length of position must match length of normals")
	case len(pos) == 0:
		return errEmptyBuffers
	}
	vp, err := GetVecPool(userData)
	if err != nil {
		return fmt.Errorf("VecPool required for normal calculation: %w", err)
	}
	h := step / 2
	offsets := [6]ms3.Vec{{X: h}, {X: -h}, {Y: h}, {Y: -h}, {Z: h}, {Z: -h}}
	samples := vp.V3.Acquire(len(offsets) * len(pos))
	defer vp.V3.Release(samples)
	dist := vp.Float.Acquire(len(samples))
	defer vp.Float.Release(dist)
	for i, p := range pos {
		for k, off := range offsets {
			samples[len(offsets)*i+k] = ms3.Add(p, off)
		}
	}
	err = s.Evaluate(samples, dist, userData)
	if err != nil {
		return err
	}
	for i := range normals {
		d := dist[len(offsets)*i:]
		normals[i] = ms3.Vec{X: d[0] - d[1], Y: d[2] - d[3], Z: d[4] - d[5]}
	}
	return nil
}

package sdfeval

import (
	"errors"
	"fmt"

	"github.com/soypat/geometry/ms3"
)

// VecPool provides reusable scratch buffers for SDF evaluators that need
// intermediate results, such as boolean operations and coordinate transforms.
// A VecPool is not safe for concurrent use.
type VecPool struct {
	Float bufPool[float32]
	V3    bufPool[ms3.Vec]
}

// GetVecPool extracts a [*VecPool] from userData. userData may be the
// pool itself or a value with a VecPool method.
func GetVecPool(userData any) (*VecPool, error) {
	switch v := userData.(type) {
	case *VecPool:
		if v == nil {
			return nil, errors.New("nil VecPool")
		}
		return v, nil
	case interface{ VecPool() *VecPool }:
		vp := v.VecPool()
		if vp == nil {
			return nil, errors.New("nil VecPool from userData")
		}
		return vp, nil
	}
	return nil, fmt.Errorf("userData of type %T does not provide a VecPool", userData)
}

// AssertAllReleased returns an error if any buffer is still acquired.
func (vp *VecPool) AssertAllReleased() error {
	if n := vp.Float.inUse(); n > 0 {
		return fmt.Errorf("%d float buffers not released", n)
	}
	if n := vp.V3.inUse(); n > 0 {
		return fmt.Errorf("%d vector buffers not released", n)
	}
	return nil
}

type bufPool[T any] struct {
	bufs     [][]T
	acquired []bool
}

// Acquire returns a buffer of the given length. Its contents are unspecified.
// The buffer must be returned with Release.
func (bp *bufPool[T]) Acquire(length int) []T {
	if length <= 0 {
		panic("sdfeval: acquire of non-positive length")
	}
	for i, buf := range bp.bufs {
		if !bp.acquired[i] && cap(buf) >= length {
			bp.acquired[i] = true
			return buf[:length]
		}
	}
	buf := make([]T, length)
	bp.bufs = append(bp.bufs, buf)
	bp.acquired = append(bp.acquired, true)
	return buf
}

// Release returns a buffer obtained with Acquire to the pool.
// Releasing a foreign buffer returns an error.
func (bp *bufPool[T]) Release(buf []T) error {
	if len(buf) == 0 {
		return errors.New("release of empty buffer")
	}
	for i, b := range bp.bufs {
		if &b[0] == &buf[0] {
			if !bp.acquired[i] {
				return errors.New("double release of buffer")
			}
			bp.acquired[i] = false
			return nil
		}
	}
	return errors.New("release of buffer not owned by pool")
}

func (bp *bufPool[T]) inUse() (n int) {
	for _, a := range bp.acquired {
		if a {
			n++
		}
	}
	return n
}

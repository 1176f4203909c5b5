// Package collision finds the integer times at which two particles occupy
// the same position.
//
// For relative motion with position p, velocity v and acceleration a on one
// axis, the position after t steps is p + t*v + a*t*(t+1)/2. Doubling clears
// the fraction and leaves a quadratic with integer coefficients:
//
//	a*t^2 + (2v+a)*t + 2p = 0
//
// Only exact integer roots count. Values are int64; coefficients near the
// int64 limits can overflow.
package collision

import (
	"sort"

	"modernc.org/mathutil"

	"particleswarm.ai/internal/sim/particle"
)

// AxisRoots is the solution set of the crossing equation on one axis.
// Always means the axis never separates (p, v and a all zero): every t is a
// root and Times is empty.
type AxisRoots struct {
	Times  []int64
	Always bool
}

// SolveAxis returns the non-negative integer roots, ascending, of the
// crossing equation for one axis. A double root is reported once rather than
// twice; callers treat roots as a set. A stationary axis is reported as
// Always instead of a single witness time.
func SolveAxis(p, v, a int64) AxisRoots {
	if a == 0 {
		if v == 0 {
			return AxisRoots{Always: p == 0}
		}
		if p%v != 0 {
			return AxisRoots{}
		}
		if t := -p / v; t >= 0 {
			return AxisRoots{Times: []int64{t}}
		}
		return AxisRoots{}
	}

	qa, qb, qc := a, 2*v+a, 2*p
	disc := qb*qb - 4*qa*qc
	s, ok := isqrt(disc)
	if !ok {
		return AxisRoots{}
	}

	den := 2 * qa
	nums := []int64{-qb - s, -qb + s}
	if s == 0 {
		nums = nums[:1]
	}
	var out []int64
	for _, num := range nums {
		if num%den != 0 {
			continue
		}
		if t := num / den; t >= 0 {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return AxisRoots{Times: out}
}

// IsZeroCrossing reports whether p + t*v + a*t*(t+1)/2 == 0.
func IsZeroCrossing(t, p, v, a int64) bool {
	return p+t*v+a*(t*(t+1))/2 == 0
}

// Collide returns the non-negative integer times, ascending, at which a and b
// share a position on all three axes. Candidates come from the first axis
// whose relative motion is not identically zero and are checked exactly on
// the others. Particles with identical trajectories coincide at every t; that
// case is represented by the single time 0.
func Collide(a, b particle.Particle) []int64 {
	d := a.Sub(b)

	pivot := -1
	var roots AxisRoots
	for axis := 0; axis < 3; axis++ {
		roots = SolveAxis(d.P.Axis(axis), d.V.Axis(axis), d.A.Axis(axis))
		if !roots.Always {
			pivot = axis
			break
		}
	}
	if pivot < 0 {
		return []int64{0}
	}

	var out []int64
	for _, t := range roots.Times {
		if crossesAll(t, d, pivot) {
			out = append(out, t)
		}
	}
	return out
}

// Collides reports whether Collide(a, b) is non-empty.
func Collides(a, b particle.Particle) bool {
	return len(Collide(a, b)) > 0
}

// FirstCollision returns the earliest collision time.
func FirstCollision(a, b particle.Particle) (int64, bool) {
	ts := Collide(a, b)
	if len(ts) == 0 {
		return 0, false
	}
	return ts[0], true
}

// CollideReference is the legacy resolution used for compatible counting.
// Candidates come from the x axis alone and are checked on y and z only.
// A stationary x axis yields the single candidate 0, the quadratic roots use
// truncating division, and a linear root is kept even when negative.
func CollideReference(a, b particle.Particle) []int64 {
	d := a.Sub(b)
	var out []int64
	for _, t := range referenceRoots(d.P.X, d.V.X, d.A.X) {
		if crossesAll(t, d, 0) {
			out = append(out, t)
		}
	}
	return out
}

func referenceRoots(p, v, a int64) []int64 {
	if a == 0 {
		switch {
		case v == 0 && p == 0:
			return []int64{0}
		case v == 0, p%v != 0:
			return nil
		}
		return []int64{-p / v}
	}
	qa, qb, qc := a, 2*v+a, 2*p
	s, ok := isqrt(qb*qb - 4*qa*qc)
	if !ok {
		return nil
	}
	var out []int64
	for _, num := range [2]int64{-qb + s, -qb - s} {
		if t := num / (2 * qa); t >= 0 {
			out = append(out, t)
		}
	}
	return out
}

func crossesAll(t int64, d particle.Particle, skip int) bool {
	for axis := 0; axis < 3; axis++ {
		if axis == skip {
			continue
		}
		if !IsZeroCrossing(t, d.P.Axis(axis), d.V.Axis(axis), d.A.Axis(axis)) {
			return false
		}
	}
	return true
}

// isqrt returns the exact square root of n when n is a perfect square.
func isqrt(n int64) (int64, bool) {
	if n < 0 {
		return 0, false
	}
	r := int64(mathutil.SqrtUint64(uint64(n)))
	if r*r != n {
		return 0, false
	}
	return r, true
}

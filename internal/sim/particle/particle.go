// Package particle models a point particle moving under constant acceleration
// in integer space. All arithmetic is exact.
package particle

import (
	"fmt"

	"particleswarm.ai/internal/sim/vec"
)

type Particle struct {
	P vec.Vec3i // position
	V vec.Vec3i // velocity
	A vec.Vec3i // acceleration
}

func New(p, v, a vec.Vec3i) Particle { return Particle{P: p, V: v, A: a} }

// Evolve advances one step: the velocity picks up the acceleration first,
// then the position moves by the new velocity.
func (pt Particle) Evolve() Particle {
	pt.V = pt.V.Add(pt.A)
	pt.P = pt.P.Add(pt.V)
	return pt
}

// EvolveBack is the exact inverse of Evolve.
func (pt Particle) EvolveBack() Particle {
	pt.P = pt.P.Sub(pt.V)
	pt.V = pt.V.Sub(pt.A)
	return pt
}

// Advance applies Evolve n times (EvolveBack when n is negative).
func (pt Particle) Advance(n int) Particle {
	for ; n > 0; n-- {
		pt = pt.Evolve()
	}
	for ; n < 0; n++ {
		pt = pt.EvolveBack()
	}
	return pt
}

// PositionAt is the closed form of t Evolve steps:
// P + t*V + A*t*(t+1)/2.
func (pt Particle) PositionAt(t int64) vec.Vec3i {
	tri := t * (t + 1) / 2
	return pt.P.Add(pt.V.Scale(t)).Add(pt.A.Scale(tri))
}

// VelocityAt is the velocity after t Evolve steps.
func (pt Particle) VelocityAt(t int64) vec.Vec3i {
	return pt.V.Add(pt.A.Scale(t))
}

// Sub returns the motion of pt relative to o, component by component.
func (pt Particle) Sub(o Particle) Particle {
	return Particle{
		P: pt.P.Sub(o.P),
		V: pt.V.Sub(o.V),
		A: pt.A.Sub(o.A),
	}
}

// Equal is structural equality on all three vectors.
func (pt Particle) Equal(o Particle) bool { return pt == o }

// Compare ranks particles for long-run closeness to the origin: acceleration
// magnitude first, then velocity magnitude, then position magnitude.
func Compare(a, b Particle) int {
	if c := vec.Compare(a.A, b.A); c != 0 {
		return c
	}
	if c := vec.Compare(a.V, b.V); c != 0 {
		return c
	}
	return vec.Compare(a.P, b.P)
}

func Less(a, b Particle) bool { return Compare(a, b) < 0 }

// String renders the particle in input syntax, so it parses back unchanged.
func (pt Particle) String() string {
	return fmt.Sprintf("p=%s, v=%s, a=%s", pt.P, pt.V, pt.A)
}

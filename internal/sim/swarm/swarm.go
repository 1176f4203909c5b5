// Package swarm ranks a particle list and counts the particles that never
// collide with any other.
package swarm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"particleswarm.ai/internal/sim/collision"
	"particleswarm.ai/internal/sim/particle"
)

var ErrEmpty = errors.New("swarm: no particles")

type Options struct {
	// Workers bounds the goroutines used for pairwise checks.
	// 0 means GOMAXPROCS, 1 runs inline.
	Workers int

	// ReferenceCompat selects the legacy survivor count:
	// the last particle is never tested as a collision source, other
	// particles equal in value to the source are not candidates, and pairs
	// are resolved with collision.CollideReference.
	ReferenceCompat bool

	IncludeCollisions bool
}

// Ranked is a particle together with its input index.
type Ranked struct {
	Index    int
	Particle particle.Particle
}

// Collision is one colliding pair, A < B, with every collision time.
type Collision struct {
	A     int
	B     int
	Times []int64
}

type Report struct {
	Closest         Ranked
	Len             int
	Collided        int
	Survivors       int
	ReferenceCompat bool
	Collisions      []Collision
}

// Closest returns the particle that stays nearest the origin in the long
// run, by particle.Compare. Ties keep the earliest index.
func Closest(ps []particle.Particle) (Ranked, error) {
	if len(ps) == 0 {
		return Ranked{}, ErrEmpty
	}
	best := Ranked{Index: 0, Particle: ps[0]}
	for i := 1; i < len(ps); i++ {
		if particle.Less(ps[i], best.Particle) {
			best = Ranked{Index: i, Particle: ps[i]}
		}
	}
	return best, nil
}

// Ranking orders every particle by particle.Compare, keeping input order
// among equals.
func Ranking(ps []particle.Particle) []Ranked {
	out := make([]Ranked, len(ps))
	for i, pt := range ps {
		out[i] = Ranked{Index: i, Particle: pt}
	}
	sort.SliceStable(out, func(i, j int) bool { return particle.Less(out[i].Particle, out[j].Particle) })
	return out
}

// CollidedCount counts particles that collide with at least one other.
func CollidedCount(ps []particle.Particle, opts Options) int {
	n, _ := CollidedCountContext(context.Background(), ps, opts)
	return n
}

func CollidedCountContext(ctx context.Context, ps []particle.Particle, opts Options) (int, error) {
	flags := make([]bool, len(ps))
	rows := len(ps)
	check := collidedCorrect
	if opts.ReferenceCompat {
		check = collidedReference
		if rows > 0 {
			rows--
		}
	}
	err := forEachRow(ctx, rows, opts.Workers, func(i int) {
		flags[i] = check(ps, i)
	})
	if err != nil {
		return 0, err
	}
	n := 0
	for _, f := range flags {
		if f {
			n++
		}
	}
	return n, nil
}

// Survivors is len(ps) minus CollidedCount.
func Survivors(ps []particle.Particle, opts Options) int {
	return len(ps) - CollidedCount(ps, opts)
}

// Collisions lists every colliding pair, ordered by (A, B).
func Collisions(ps []particle.Particle, opts Options) []Collision {
	out, _ := CollisionsContext(context.Background(), ps, opts)
	return out
}

func CollisionsContext(ctx context.Context, ps []particle.Particle, opts Options) ([]Collision, error) {
	rows := make([][]Collision, len(ps))
	err := forEachRow(ctx, len(ps), opts.Workers, func(i int) {
		for j := i + 1; j < len(ps); j++ {
			if ts := collision.Collide(ps[i], ps[j]); len(ts) > 0 {
				rows[i] = append(rows[i], Collision{A: i, B: j, Times: ts})
			}
		}
	})
	if err != nil {
		return nil, err
	}
	var out []Collision
	for _, r := range rows {
		out = append(out, r...)
	}
	return out, nil
}

// CountFromCollisions counts distinct particles that appear in any pair.
func CountFromCollisions(n int, cs []Collision) int {
	seen := make([]bool, n)
	count := 0
	for _, c := range cs {
		for _, idx := range [2]int{c.A, c.B} {
			if !seen[idx] {
				seen[idx] = true
				count++
			}
		}
	}
	return count
}

func Analyze(ps []particle.Particle, opts Options) (Report, error) {
	return AnalyzeContext(context.Background(), ps, opts)
}

// AnalyzeContext produces the closest particle, the particle count, the
// collided count and the survivor count in one pass.
func AnalyzeContext(ctx context.Context, ps []particle.Particle, opts Options) (Report, error) {
	closest, err := Closest(ps)
	if err != nil {
		return Report{}, err
	}
	rep := Report{
		Closest:         closest,
		Len:             len(ps),
		ReferenceCompat: opts.ReferenceCompat,
	}

	if opts.IncludeCollisions {
		rep.Collisions, err = CollisionsContext(ctx, ps, opts)
		if err != nil {
			return Report{}, err
		}
	}
	if opts.IncludeCollisions && !opts.ReferenceCompat {
		rep.Collided = CountFromCollisions(len(ps), rep.Collisions)
	} else {
		rep.Collided, err = CollidedCountContext(ctx, ps, opts)
		if err != nil {
			return Report{}, err
		}
	}
	rep.Survivors = rep.Len - rep.Collided
	return rep, nil
}

// Digest identifies a particle list by the sha256 of its canonical lines.
func Digest(ps []particle.Particle) string {
	h := sha256.New()
	for _, pt := range ps {
		h.Write([]byte(pt.String()))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func collidedCorrect(ps []particle.Particle, i int) bool {
	for j := range ps {
		if j != i && collision.Collides(ps[i], ps[j]) {
			return true
		}
	}
	return false
}

func collidedReference(ps []particle.Particle, i int) bool {
	for j := range ps {
		if !ps[j].Equal(ps[i]) && len(collision.CollideReference(ps[i], ps[j])) > 0 {
			return true
		}
	}
	return false
}

func forEachRow(ctx context.Context, rows, workers int, fn func(i int)) error {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers == 1 || rows < 2 {
		for i := 0; i < rows; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			fn(i)
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < rows; i++ {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fn(i)
			return nil
		})
	}
	return g.Wait()
}

package swarm

import (
	"context"
	"errors"
	"math/rand"
	"reflect"
	"testing"

	"particleswarm.ai/internal/sim/particle"
)

func mustParse(t *testing.T, lines ...string) []particle.Particle {
	t.Helper()
	out := make([]particle.Particle, 0, len(lines))
	for _, l := range lines {
		pt, err := particle.Parse(l)
		if err != nil {
			t.Fatalf("parse %q: %v", l, err)
		}
		out = append(out, pt)
	}
	return out
}

func collidingExample(t *testing.T) []particle.Particle {
	return mustParse(t,
		"p=<-6,0,0>, v=< 3,0,0>, a=< 0,0,0>",
		"p=<-4,0,0>, v=< 2,0,0>, a=< 0,0,0>",
		"p=<-2,0,0>, v=< 1,0,0>, a=< 0,0,0>",
		"p=< 3,0,0>, v=<-1,0,0>, a=< 0,0,0>",
	)
}

func TestClosest(t *testing.T) {
	ps := mustParse(t,
		"p=< 3,0,0>, v=< 2,0,0>, a=<-1,0,0>",
		"p=< 4,0,0>, v=< 0,0,0>, a=<-2,0,0>",
	)
	got, err := Closest(ps)
	if err != nil {
		t.Fatalf("Closest: %v", err)
	}
	if got.Index != 0 || got.Particle != ps[0] {
		t.Fatalf("Closest: got %+v", got)
	}
}

func TestClosest_TieKeepsFirst(t *testing.T) {
	ps := mustParse(t,
		"p=<9,9,9>, v=<1,0,0>, a=<0,0,2>",
		"p=<1,0,0>, v=<0,0,1>, a=<0,1,0>",
		"p=<0,0,-1>, v=<0,-1,0>, a=<-1,0,0>",
	)
	got, err := Closest(ps)
	if err != nil {
		t.Fatalf("Closest: %v", err)
	}
	if got.Index != 1 {
		t.Fatalf("Closest: got index %d want 1", got.Index)
	}
}

func TestClosest_Empty(t *testing.T) {
	if _, err := Closest(nil); !errors.Is(err, ErrEmpty) {
		t.Fatalf("Closest(nil): got %v want ErrEmpty", err)
	}
	if _, err := Analyze(nil, Options{}); !errors.Is(err, ErrEmpty) {
		t.Fatalf("Analyze(nil): got %v want ErrEmpty", err)
	}
}

func TestRanking_Stable(t *testing.T) {
	ps := mustParse(t,
		"p=<0,0,0>, v=<0,0,0>, a=<0,0,5>",
		"p=<1,0,0>, v=<0,0,0>, a=<0,1,0>",
		"p=<0,0,1>, v=<0,0,0>, a=<1,0,0>",
		"p=<0,0,0>, v=<0,0,0>, a=<0,0,0>",
	)
	got := Ranking(ps)
	var idx []int
	for _, r := range got {
		idx = append(idx, r.Index)
	}
	if want := []int{3, 1, 2, 0}; !reflect.DeepEqual(idx, want) {
		t.Fatalf("Ranking order: got %v want %v", idx, want)
	}
}

func TestSurvivors(t *testing.T) {
	ps := collidingExample(t)
	for _, workers := range []int{1, 4} {
		opts := Options{Workers: workers}
		if got := CollidedCount(ps, opts); got != 3 {
			t.Fatalf("workers=%d CollidedCount: got %d want 3", workers, got)
		}
		if got := Survivors(ps, opts); got != 1 {
			t.Fatalf("workers=%d Survivors: got %d want 1", workers, got)
		}
	}
}

func TestCollisions(t *testing.T) {
	ps := collidingExample(t)
	got := Collisions(ps, Options{Workers: 2})
	want := []Collision{
		{A: 0, B: 1, Times: []int64{2}},
		{A: 0, B: 2, Times: []int64{2}},
		{A: 1, B: 2, Times: []int64{2}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Collisions: got %+v want %+v", got, want)
	}
	if n := CountFromCollisions(len(ps), got); n != 3 {
		t.Fatalf("CountFromCollisions: got %d want 3", n)
	}
}

func TestReferenceCompat_LastNeverSource(t *testing.T) {
	ps := mustParse(t,
		"p=<0,0,0>, v=<1,0,0>, a=<0,0,0>",
		"p=<0,0,0>, v=<-1,0,0>, a=<0,0,0>",
	)
	if got := CollidedCount(ps, Options{Workers: 1}); got != 2 {
		t.Fatalf("CollidedCount: got %d want 2", got)
	}
	if got := CollidedCount(ps, Options{Workers: 1, ReferenceCompat: true}); got != 1 {
		t.Fatalf("CollidedCount compat: got %d want 1", got)
	}
}

func TestReferenceCompat_DuplicatesByValue(t *testing.T) {
	ps := mustParse(t,
		"p=<1,1,1>, v=<0,0,0>, a=<0,0,0>",
		"p=<1,1,1>, v=<0,0,0>, a=<0,0,0>",
		"p=<9,9,9>, v=<0,0,0>, a=<0,0,0>",
	)
	if got := CollidedCount(ps, Options{}); got != 2 {
		t.Fatalf("CollidedCount: got %d want 2", got)
	}
	if got := CollidedCount(ps, Options{ReferenceCompat: true}); got != 0 {
		t.Fatalf("CollidedCount compat: got %d want 0", got)
	}
}

func TestReferenceCompat_StationaryXChecksOnlyTimeZero(t *testing.T) {
	ps := mustParse(t,
		"p=<0,0,0>, v=<0,1,0>, a=<0,0,0>",
		"p=<0,3,0>, v=<0,0,0>, a=<0,0,0>",
		"p=<99,99,99>, v=<0,0,0>, a=<0,0,0>",
	)
	if got := CollidedCount(ps, Options{Workers: 1}); got != 2 {
		t.Fatalf("CollidedCount: got %d want 2", got)
	}
	if got := CollidedCount(ps, Options{Workers: 1, ReferenceCompat: true}); got != 0 {
		t.Fatalf("CollidedCount compat: got %d want 0", got)
	}
	rep, err := Analyze(ps, Options{ReferenceCompat: true, IncludeCollisions: true})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if rep.Collided != 0 || rep.Survivors != 3 {
		t.Fatalf("Analyze compat: %+v", rep)
	}
}

func TestAnalyze(t *testing.T) {
	ps := collidingExample(t)
	for _, include := range []bool{false, true} {
		rep, err := Analyze(ps, Options{Workers: 3, IncludeCollisions: include})
		if err != nil {
			t.Fatalf("Analyze: %v", err)
		}
		if rep.Len != 4 || rep.Collided != 3 || rep.Survivors != 1 {
			t.Fatalf("include=%v report: %+v", include, rep)
		}
		if rep.Closest.Index != 2 {
			t.Fatalf("include=%v closest: got %d want 2", include, rep.Closest.Index)
		}
		if include && len(rep.Collisions) != 3 {
			t.Fatalf("collisions: got %d want 3", len(rep.Collisions))
		}
		if !include && rep.Collisions != nil {
			t.Fatalf("collisions should be omitted")
		}
	}
}

func TestAnalyze_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := AnalyzeContext(ctx, collidingExample(t), Options{Workers: 2})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("AnalyzeContext: got %v want context.Canceled", err)
	}
}

func TestParallelMatchesSequential(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	small := func(n int64) int64 { return rng.Int63n(2*n+1) - n }
	ps := make([]particle.Particle, 0, 300)
	for i := 0; i < 300; i++ {
		var pt particle.Particle
		pt.P.X, pt.P.Y, pt.P.Z = small(8), small(8), small(1)
		pt.V.X, pt.V.Y, pt.V.Z = small(2), small(2), 0
		pt.A.X, pt.A.Y = small(1), small(1)
		ps = append(ps, pt)
	}

	seq := CollidedCount(ps, Options{Workers: 1})
	par := CollidedCount(ps, Options{Workers: 8})
	if seq != par {
		t.Fatalf("sequential=%d parallel=%d", seq, par)
	}
	if seq == 0 {
		t.Fatalf("expected some collisions in dense random swarm")
	}
	pairs := Collisions(ps, Options{Workers: 8})
	if n := CountFromCollisions(len(ps), pairs); n != seq {
		t.Fatalf("CountFromCollisions=%d CollidedCount=%d", n, seq)
	}
}

func TestDigest(t *testing.T) {
	a := collidingExample(t)
	b := collidingExample(t)
	if Digest(a) != Digest(b) {
		t.Fatalf("digest should be stable")
	}
	b[3] = b[3].Evolve()
	if Digest(a) == Digest(b) {
		t.Fatalf("digest should change with input")
	}
	if len(Digest(a)) != 64 {
		t.Fatalf("digest length: %d", len(Digest(a)))
	}
}

package main

import (
	"path/filepath"
	"strings"
	"testing"

	persistlog "particleswarm.ai/internal/persistence/log"
	"particleswarm.ai/internal/sim/particle"
	"particleswarm.ai/internal/sim/swarm"
)

func exampleParticles(t *testing.T) []particle.Particle {
	t.Helper()
	lines := []string{
		"p=<-6,0,0>, v=<3,0,0>, a=<0,0,0>",
		"p=<-4,0,0>, v=<2,0,0>, a=<0,0,0>",
		"p=<-2,0,0>, v=<1,0,0>, a=<0,0,0>",
		"p=<3,0,0>, v=<-1,0,0>, a=<0,0,0>",
	}
	ps := make([]particle.Particle, 0, len(lines))
	for _, l := range lines {
		p, err := particle.Parse(l)
		if err != nil {
			t.Fatalf("parse %q: %v", l, err)
		}
		ps = append(ps, p)
	}
	return ps
}

func writeLog(t *testing.T, dir, runID string, ps []particle.Particle, cs []swarm.Collision) string {
	t.Helper()
	l := persistlog.NewCollisionLogger(dir, runID)
	if err := l.Open(); err != nil {
		t.Fatalf("open: %v", err)
	}
	for _, c := range cs {
		if err := l.WriteCollision(persistlog.CollisionEntry{
			RunID:     runID,
			A:         c.A,
			B:         c.B,
			Times:     c.Times,
			ParticleA: ps[c.A].String(),
			ParticleB: ps[c.B].String(),
		}); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return l.Path()
}

func TestVerifyLog_OK(t *testing.T) {
	dir := t.TempDir()
	ps := exampleParticles(t)
	cs := swarm.Collisions(ps, swarm.Options{Workers: 1})
	path := writeLog(t, dir, "run-a", ps, cs)

	n, err := verifyLog(ps, indexCollisions(cs), path)
	if err != nil {
		t.Fatalf("verifyLog: %v", err)
	}
	if n != 3 {
		t.Fatalf("checked=%d want 3", n)
	}
}

func TestVerifyLog_Mismatch(t *testing.T) {
	ps := exampleParticles(t)
	cs := swarm.Collisions(ps, swarm.Options{Workers: 1})
	want := indexCollisions(cs)

	cases := []struct {
		name string
		log  []swarm.Collision
		msg  string
	}{
		{"missing pair", cs[:2], "logged 2 pairs"},
		{"bad times", []swarm.Collision{{A: cs[0].A, B: cs[0].B, Times: []int64{7}}}, "times mismatch"},
		{"no collision", []swarm.Collision{{A: 0, B: 3, Times: []int64{1}}}, "does not collide"},
		{"duplicate", append([]swarm.Collision{cs[0]}, cs...), "duplicate pair"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeLog(t, t.TempDir(), "run-b", ps, tc.log)
			_, err := verifyLog(ps, want, path)
			if err == nil || !strings.Contains(err.Error(), tc.msg) {
				t.Fatalf("err=%v want %q", err, tc.msg)
			}
		})
	}
}

func TestListCollisionFiles(t *testing.T) {
	dir := t.TempDir()
	ps := exampleParticles(t)

	files, err := listCollisionFiles(dir, "")
	if err != nil || len(files) != 0 {
		t.Fatalf("empty dir: files=%v err=%v", files, err)
	}

	writeLog(t, dir, "a", ps, nil)
	files, err = listCollisionFiles(dir, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(files) != 1 || filepath.Base(files[0]) != "collisions-a.jsonl.zst" {
		t.Fatalf("files=%v", files)
	}

	// Logs from other inputs share the directory; the run must be named.
	writeLog(t, dir, "b", ps, nil)
	if _, err := listCollisionFiles(dir, ""); err == nil || !strings.Contains(err.Error(), "-run") {
		t.Fatalf("expected -run error, got %v", err)
	}
	files, err = listCollisionFiles(dir, "b")
	if err != nil || len(files) != 1 || filepath.Base(files[0]) != "collisions-b.jsonl.zst" {
		t.Fatalf("by run: files=%v err=%v", files, err)
	}
	if _, err := listCollisionFiles(dir, "missing"); err == nil {
		t.Fatalf("expected error for unknown run")
	}
}

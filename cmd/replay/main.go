package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	persistlog "particleswarm.ai/internal/persistence/log"
	"particleswarm.ai/internal/persistence/snapshot"
	"particleswarm.ai/internal/sim/particle"
	"particleswarm.ai/internal/sim/swarm"
)

func main() {
	var (
		snapPath  = flag.String("snapshot", "", "path to .snap.zst")
		eventsDir = flag.String("events", "", "events dir containing collisions-*.jsonl.zst (optional)")
		runID     = flag.String("run", "", "run id of the log to verify (required when -events holds more than one log)")
		workers   = flag.Int("workers", 0, "pairwise collision workers (0 = GOMAXPROCS)")
	)
	flag.Parse()

	if *snapPath == "" {
		fmt.Fprintln(os.Stderr, "missing -snapshot")
		os.Exit(2)
	}

	snap, err := snapshot.ReadSnapshot(*snapPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}
	ps := snap.ToParticles()
	if got := swarm.Digest(ps); got != snap.Header.Digest {
		fmt.Fprintf(os.Stderr, "snapshot digest mismatch: got=%s want=%s\n", got, snap.Header.Digest)
		os.Exit(1)
	}

	fmt.Printf("snapshot v%d source=%s particles=%d digest=%s\n",
		snap.Header.Version, snap.Header.Source, snap.Header.Count, snap.Header.Digest)

	if *eventsDir == "" {
		return
	}

	files, err := listCollisionFiles(*eventsDir, *runID)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list events:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no collision logs found in", *eventsDir)
		os.Exit(1)
	}

	want := indexCollisions(swarm.Collisions(ps, swarm.Options{Workers: *workers}))

	checked, err := verifyLog(ps, want, files[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
	fmt.Printf("replay ok: checked=%d pairs (%s)\n", checked, filepath.Base(files[0]))
}

func listCollisionFiles(dir, runID string) ([]string, error) {
	if runID != "" {
		path := persistlog.CollisionLogPath(dir, runID)
		if _, err := os.Stat(path); err != nil {
			return nil, err
		}
		return []string{path}, nil
	}
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, "collisions-") && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, name)
		}
	}
	if len(names) > 1 {
		return nil, fmt.Errorf("%d collision logs in %s; pass -run to pick the one recorded for this snapshot", len(names), dir)
	}
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, filepath.Join(dir, name))
	}
	return out, nil
}

type pairKey struct{ a, b int }

func indexCollisions(cs []swarm.Collision) map[pairKey][]int64 {
	out := make(map[pairKey][]int64, len(cs))
	for _, c := range cs {
		out[pairKey{c.A, c.B}] = c.Times
	}
	return out
}

// verifyLog checks that a log lists exactly the recomputed pairs, with the
// same particles and the same collision times.
func verifyLog(ps []particle.Particle, want map[pairKey][]int64, path string) (int, error) {
	entries, err := persistlog.ReadCollisions(path)
	if err != nil {
		return 0, err
	}
	base := filepath.Base(path)
	seen := make(map[pairKey]bool, len(entries))
	for i, e := range entries {
		if e.A < 0 || e.B >= len(ps) || e.A >= e.B {
			return 0, fmt.Errorf("%s entry %d: bad pair (%d,%d) for %d particles", base, i, e.A, e.B, len(ps))
		}
		if e.ParticleA != ps[e.A].String() || e.ParticleB != ps[e.B].String() {
			return 0, fmt.Errorf("%s entry %d: particles do not match snapshot", base, i)
		}
		k := pairKey{e.A, e.B}
		times, ok := want[k]
		if !ok {
			return 0, fmt.Errorf("%s entry %d: pair (%d,%d) does not collide", base, i, e.A, e.B)
		}
		if !slices.Equal(times, e.Times) {
			return 0, fmt.Errorf("%s entry %d: times mismatch for (%d,%d): got=%v want=%v", base, i, e.A, e.B, e.Times, times)
		}
		if seen[k] {
			return 0, fmt.Errorf("%s entry %d: duplicate pair (%d,%d)", base, i, e.A, e.B)
		}
		seen[k] = true
	}
	if len(seen) != len(want) {
		return 0, fmt.Errorf("%s: logged %d pairs, recomputed %d", base, len(seen), len(want))
	}
	return len(entries), nil
}

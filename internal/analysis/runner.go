// Package analysis runs the swarm analysis for the commands and the server,
// and fans the result out to the optional run index, collision log and
// metrics.
package analysis

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"particleswarm.ai/internal/metrics"
	"particleswarm.ai/internal/persistence/indexdb"
	persistlog "particleswarm.ai/internal/persistence/log"
	"particleswarm.ai/internal/sim/particle"
	"particleswarm.ai/internal/sim/swarm"
)

type Runner struct {
	Log     *log.Logger
	Index   *indexdb.SQLiteIndex
	Metrics *metrics.Collector

	// EventsDir receives one collisions-<run>.jsonl.zst per run when set.
	EventsDir string
}

type Result struct {
	RunID   string
	Source  string
	Digest  string
	Report  swarm.Report
	Elapsed time.Duration

	// EventsPath is the collision log written for this run, if any.
	EventsPath string
}

// Run analyses ps. Collision pairs are computed whenever a collision log is
// configured, even if opts does not ask for them.
func (r *Runner) Run(ctx context.Context, source string, ps []particle.Particle, opts swarm.Options) (Result, error) {
	if r.EventsDir != "" {
		opts.IncludeCollisions = true
	}

	start := time.Now()
	rep, err := swarm.AnalyzeContext(ctx, ps, opts)
	if err != nil {
		return Result{}, err
	}
	res := Result{
		RunID:   uuid.NewString(),
		Source:  source,
		Digest:  swarm.Digest(ps),
		Report:  rep,
		Elapsed: time.Since(start),
	}

	r.Metrics.RecordAnalysis(opts.ReferenceCompat, rep.Len, rep.Collided, res.Elapsed)
	r.Index.RecordReport(res.RunID, source, res.Digest, rep)

	if r.EventsDir != "" {
		path, err := r.writeCollisions(res.RunID, ps, rep.Collisions)
		if err != nil {
			r.logf("collision log: %v", err)
		} else {
			res.EventsPath = path
		}
	}
	if rep.ReferenceCompat {
		r.logf("run %s: reference-compatible counting is on; survivor count follows the legacy rules", res.RunID)
	}
	return res, nil
}

func (r *Runner) writeCollisions(runID string, ps []particle.Particle, cs []swarm.Collision) (string, error) {
	l := persistlog.NewCollisionLogger(r.EventsDir, runID)
	if err := l.Open(); err != nil {
		return "", err
	}
	for _, c := range cs {
		err := l.WriteCollision(persistlog.CollisionEntry{
			RunID:     runID,
			A:         c.A,
			B:         c.B,
			Times:     c.Times,
			ParticleA: ps[c.A].String(),
			ParticleB: ps[c.B].String(),
		})
		if err != nil {
			_ = l.Close()
			return "", err
		}
	}
	if err := l.Close(); err != nil {
		return "", err
	}
	return l.Path(), nil
}

func (r *Runner) logf(format string, args ...any) {
	if r.Log != nil {
		r.Log.Printf(format, args...)
	}
}

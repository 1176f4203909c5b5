package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/dustin/go-humanize"

	"particleswarm.ai/internal/analysis"
	"particleswarm.ai/internal/persistence/indexdb"
	"particleswarm.ai/internal/persistence/input"
	"particleswarm.ai/internal/persistence/snapshot"
	"particleswarm.ai/internal/protocol"
	"particleswarm.ai/internal/sim/particle"
	"particleswarm.ai/internal/sim/swarm"
	"particleswarm.ai/internal/sim/tuning"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("swarm", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		configPath  = fs.String("config", "", "path to tuning.yaml (optional)")
		jsonOut     = fs.Bool("json", false, "print a REPORT message instead of the text report")
		workers     = fs.Int("workers", -1, "pairwise collision workers (0 = GOMAXPROCS; default from config)")
		compat      = fs.Bool("reference_compat", false, "reproduce the legacy survivor count (skips last row, matches by value)")
		collisions  = fs.Bool("collisions", false, "include colliding pairs in the JSON report")
		snapshotIn  = fs.String("snapshot_in", "", "read particles from a .snap.zst instead of a text file")
		snapshotOut = fs.String("snapshot_out", "", "write the parsed particles to a .snap.zst")
		eventsDir   = fs.String("events", "", "directory for the collision log (optional)")
		dbPath      = fs.String("db", "", "sqlite run index path (optional)")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	logger := log.New(stderr, "[swarm] ", log.LstdFlags|log.Lmicroseconds)

	tune, err := tuning.Load(*configPath)
	if err != nil {
		fmt.Fprintln(stderr, "load tuning:", err)
		return 1
	}
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if *workers >= 0 {
		tune.Workers = *workers
	}
	if set["reference_compat"] {
		tune.ReferenceCompat = *compat
	}
	if set["collisions"] {
		tune.IncludeCollisions = *collisions
	}
	if *jsonOut {
		tune.Output = tuning.OutputJSON
	}
	if *eventsDir != "" {
		tune.Persistence.EventsDir = *eventsDir
	}
	if *dbPath != "" {
		tune.Persistence.IndexDB = *dbPath
	}
	if *snapshotOut != "" {
		tune.Persistence.SnapshotTo = *snapshotOut
	}

	source := tune.InputPath
	if fs.NArg() > 0 {
		source = fs.Arg(0)
	}

	var ps []particle.Particle
	if strings.TrimSpace(*snapshotIn) != "" {
		snap, err := snapshot.ReadSnapshot(*snapshotIn)
		if err != nil {
			fmt.Fprintln(stderr, "read snapshot:", err)
			return 1
		}
		source = *snapshotIn
		ps = snap.ToParticles()
	} else {
		ps, err = input.ReadFile(source)
		if err != nil {
			fmt.Fprintln(stderr, "read input:", err)
			return 1
		}
	}

	if out := tune.Persistence.SnapshotTo; out != "" {
		if err := snapshot.WriteSnapshot(out, snapshot.FromParticles(source, swarm.Digest(ps), ps)); err != nil {
			fmt.Fprintln(stderr, "write snapshot:", err)
			return 1
		}
		if st, err := os.Stat(out); err == nil {
			logger.Printf("wrote snapshot %s (%s)", out, humanize.Bytes(uint64(st.Size())))
		}
	}

	var idx *indexdb.SQLiteIndex
	if tune.Persistence.IndexDB != "" {
		idx, err = indexdb.OpenSQLite(tune.Persistence.IndexDB)
		if err != nil {
			fmt.Fprintln(stderr, "open index:", err)
			return 1
		}
		defer idx.Close()
		if _, err := idx.UpsertTuning(tune); err != nil {
			logger.Printf("index: upsert tuning: %v", err)
		}
	}

	runner := &analysis.Runner{
		Log:       logger,
		Index:     idx,
		EventsDir: tune.Persistence.EventsDir,
	}
	res, err := runner.Run(context.Background(), source, ps, swarm.Options{
		Workers:           tune.EffectiveWorkers(),
		ReferenceCompat:   tune.ReferenceCompat,
		IncludeCollisions: tune.IncludeCollisions,
	})
	if err != nil {
		fmt.Fprintln(stderr, "analyse:", err)
		return 1
	}
	n := int64(res.Report.Len)
	logger.Printf("analysed %s particles (%s pairs) in %s", humanize.Comma(n), humanize.Comma(n*(n-1)/2), res.Elapsed)
	if res.EventsPath != "" {
		logger.Printf("collision log %s", res.EventsPath)
	}

	if tune.Output == tuning.OutputJSON {
		msg := protocol.NewReport("", res.RunID, res.Digest, res.Report)
		if !tune.IncludeCollisions {
			msg.Collisions = nil
		}
		b, err := json.MarshalIndent(msg, "", "  ")
		if err != nil {
			fmt.Fprintln(stderr, "encode report:", err)
			return 1
		}
		fmt.Fprintln(stdout, string(b))
		return 0
	}
	writeText(stdout, res.Report)
	return 0
}

func writeText(w io.Writer, rep swarm.Report) {
	fmt.Fprintf(w, "[%d, %s]\n", rep.Closest.Index, rep.Closest.Particle)
	fmt.Fprintf(w, "Len = %d\n", rep.Len)
	fmt.Fprintf(w, "Collidet = %d\n", rep.Collided)
	fmt.Fprintf(w, "Result = %d\n", rep.Survivors)
}

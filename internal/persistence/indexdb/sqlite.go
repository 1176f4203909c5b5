package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"particleswarm.ai/internal/sim/swarm"
	"particleswarm.ai/internal/sim/tuning"
)

// SQLiteIndex is a read model of analysis runs. Writes are queued to a
// single writer goroutine; the reports printed by the commands remain the
// source of truth.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropRun       atomic.Uint64
	dropCollision atomic.Uint64
}

type reqKind int

const (
	reqRun reqKind = iota + 1
	reqCollision
)

type req struct {
	kind reqKind

	run       RunRow
	collision CollisionRow
}

type RunRow struct {
	RunID           string
	Source          string
	Digest          string
	Particles       int
	ClosestIndex    int
	Collided        int
	Survivors       int
	ReferenceCompat bool
	RecordedAt      string
}

type CollisionRow struct {
	RunID string
	A     int
	B     int
	Times []int64
}

type Stats struct {
	QueueDepth         int
	QueueCapacity      int
	DropRunTotal       uint64
	DropCollisionTotal uint64
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS tunings (
			digest TEXT PRIMARY KEY,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			digest TEXT NOT NULL,
			particles INTEGER NOT NULL,
			closest_index INTEGER NOT NULL,
			collided INTEGER NOT NULL,
			survivors INTEGER NOT NULL,
			reference_compat INTEGER NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_digest ON runs(digest);`,
		`CREATE TABLE IF NOT EXISTS collisions (
			run_id TEXT NOT NULL,
			a INTEGER NOT NULL,
			b INTEGER NOT NULL,
			first_time INTEGER NOT NULL,
			times_json TEXT NOT NULL,
			PRIMARY KEY (run_id, a, b)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_collisions_first_time ON collisions(run_id, first_time);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:         len(s.ch),
		QueueCapacity:      cap(s.ch),
		DropRunTotal:       s.dropRun.Load(),
		DropCollisionTotal: s.dropCollision.Load(),
	}
}

// RecordReport queues the run row and one row per colliding pair.
func (s *SQLiteIndex) RecordReport(runID, source, digest string, rep swarm.Report) {
	if s == nil || s.closed.Load() {
		return
	}
	s.RecordRun(RunRow{
		RunID:           runID,
		Source:          source,
		Digest:          digest,
		Particles:       rep.Len,
		ClosestIndex:    rep.Closest.Index,
		Collided:        rep.Collided,
		Survivors:       rep.Survivors,
		ReferenceCompat: rep.ReferenceCompat,
	})
	for _, c := range rep.Collisions {
		s.RecordCollision(CollisionRow{RunID: runID, A: c.A, B: c.B, Times: c.Times})
	}
}

func (s *SQLiteIndex) RecordRun(r RunRow) {
	if s == nil || s.closed.Load() {
		return
	}
	if r.RecordedAt == "" {
		r.RecordedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}
	select {
	case s.ch <- req{kind: reqRun, run: r}:
	default:
		s.dropRun.Add(1)
	}
}

func (s *SQLiteIndex) RecordCollision(r CollisionRow) {
	if s == nil || s.closed.Load() || len(r.Times) == 0 {
		return
	}
	select {
	case s.ch <- req{kind: reqCollision, collision: r}:
	default:
		s.dropCollision.Add(1)
	}
}

// UpsertTuning stores the effective configuration, keyed by its digest.
func (s *SQLiteIndex) UpsertTuning(tune tuning.Tuning) (string, error) {
	if s == nil {
		return "", nil
	}
	b, err := json.Marshal(tune)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	digest := hex.EncodeToString(sum[:])
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := s.db.Exec(`INSERT OR REPLACE INTO tunings(digest,json,updated_at) VALUES(?,?,?)`, digest, string(b), now); err != nil {
		return "", err
	}
	return digest, nil
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertRun, _ := s.db.Prepare(`INSERT OR REPLACE INTO runs(run_id,source,digest,particles,closest_index,collided,survivors,reference_compat,recorded_at) VALUES(?,?,?,?,?,?,?,?,?)`)
	insertCollision, _ := s.db.Prepare(`INSERT OR REPLACE INTO collisions(run_id,a,b,first_time,times_json) VALUES(?,?,?,?,?)`)
	defer func() {
		if insertRun != nil {
			_ = insertRun.Close()
		}
		if insertCollision != nil {
			_ = insertCollision.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqRun:
			ru := r.run
			if insertRun != nil {
				compat := 0
				if ru.ReferenceCompat {
					compat = 1
				}
				if _, err := tx.Stmt(insertRun).Exec(
					ru.RunID,
					ru.Source,
					ru.Digest,
					ru.Particles,
					ru.ClosestIndex,
					ru.Collided,
					ru.Survivors,
					compat,
					ru.RecordedAt,
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqCollision:
			c := r.collision
			if insertCollision != nil {
				times, _ := json.Marshal(c.Times)
				if _, err := tx.Stmt(insertCollision).Exec(c.RunID, c.A, c.B, c.Times[0], string(times)); err != nil {
					rollback()
					continue
				}
				opCount++
			}
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	commit()
}

package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// JSONLZstdWriter appends one JSON document per line to a zstd stream.
// The file is created on the first Write.
type JSONLZstdWriter struct {
	path string

	mu  sync.Mutex
	f   *os.File
	enc *zstd.Encoder
	w   *bufio.Writer
}

func NewJSONLZstdWriter(path string) *JSONLZstdWriter {
	return &JSONLZstdWriter{path: path}
}

func (w *JSONLZstdWriter) Path() string { return w.path }

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

// Open creates the file without writing a line, so that an empty log is
// distinguishable from a missing one.
func (w *JSONLZstdWriter) Open() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.w != nil {
		return nil
	}
	return w.openLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.w == nil {
		if err := w.openLocked(); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	return w.w.WriteByte('\n')
}

func (w *JSONLZstdWriter) openLocked() error {
	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		err1 = w.w.Flush()
	}
	if w.enc != nil {
		if err := w.enc.Close(); err1 == nil {
			err1 = err
		}
		w.enc = nil
	}
	if w.f != nil {
		if err := w.f.Close(); err1 == nil {
			err1 = err
		}
		w.f = nil
	}
	w.w = nil
	return err1
}

// CollisionEntry is one colliding pair of a run.
type CollisionEntry struct {
	RunID string  `json:"run_id"`
	A     int     `json:"a"`
	B     int     `json:"b"`
	Times []int64 `json:"times"`

	// Particles in input syntax, for reading the log without the input.
	ParticleA string `json:"particle_a"`
	ParticleB string `json:"particle_b"`
}

// CollisionLogger writes the collision pairs of one run (compressed).
type CollisionLogger struct{ w *JSONLZstdWriter }

func NewCollisionLogger(eventsDir, runID string) *CollisionLogger {
	return &CollisionLogger{w: NewJSONLZstdWriter(CollisionLogPath(eventsDir, runID))}
}

func CollisionLogPath(eventsDir, runID string) string {
	return filepath.Join(eventsDir, fmt.Sprintf("collisions-%s.jsonl.zst", runID))
}

func (l *CollisionLogger) Open() error                           { return l.w.Open() }
func (l *CollisionLogger) WriteCollision(e CollisionEntry) error { return l.w.Write(e) }
func (l *CollisionLogger) Path() string                          { return l.w.Path() }
func (l *CollisionLogger) Close() error                          { return l.w.Close() }

// ReadCollisions decodes a log written by CollisionLogger.
func ReadCollisions(path string) ([]CollisionEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)

	var out []CollisionEntry
	for sc.Scan() {
		var e CollisionEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return nil, fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
		}
		out = append(out, e)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

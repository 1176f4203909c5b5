package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"particleswarm.ai/internal/sim/particle"
	"particleswarm.ai/internal/sim/vec"
)

const Version = 1

type Header struct {
	Version int    `json:"version"`
	Source  string `json:"source"`
	Digest  string `json:"digest"`
	Count   int    `json:"count"`
}

type SnapshotV1 struct {
	Header Header `json:"header"`

	Particles []ParticleV1 `json:"particles"`
}

type ParticleV1 struct {
	P [3]int64 `json:"p"`
	V [3]int64 `json:"v"`
	A [3]int64 `json:"a"`
}

func FromParticles(source, digest string, ps []particle.Particle) SnapshotV1 {
	out := SnapshotV1{
		Header: Header{
			Version: Version,
			Source:  source,
			Digest:  digest,
			Count:   len(ps),
		},
		Particles: make([]ParticleV1, 0, len(ps)),
	}
	for _, pt := range ps {
		out.Particles = append(out.Particles, ParticleV1{
			P: pt.P.ToArray(),
			V: pt.V.ToArray(),
			A: pt.A.ToArray(),
		})
	}
	return out
}

func (s SnapshotV1) ToParticles() []particle.Particle {
	out := make([]particle.Particle, 0, len(s.Particles))
	for _, p := range s.Particles {
		out = append(out, particle.New(vec.FromArray(p.P), vec.FromArray(p.V), vec.FromArray(p.A)))
	}
	return out
}

func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}

	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		_ = enc.Close()
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		_ = enc.Close()
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		_ = enc.Close()
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return f.Close()
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// The header line is for external tools; gob carries it too.
	_, _ = br.ReadBytes('\n')

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	if snap.Header.Count != len(snap.Particles) {
		return snap, fmt.Errorf("snapshot count mismatch: header=%d particles=%d", snap.Header.Count, len(snap.Particles))
	}
	return snap, nil
}

// ReadHeader reads only the JSON header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, err
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("snapshot header: %w", err)
	}
	return h, nil
}

package snapshot

import (
	"path/filepath"
	"reflect"
	"testing"

	"particleswarm.ai/internal/sim/particle"
	"particleswarm.ai/internal/sim/vec"
)

func TestSnapshot_RoundTrip(t *testing.T) {
	ps := []particle.Particle{
		particle.New(vec.New(1791, 622, -2528), vec.New(258, 87, -359), vec.New(-17, -1, 24)),
		particle.New(vec.New(-6, 0, 0), vec.New(3, 0, 0), vec.New(0, 0, 0)),
	}
	path := filepath.Join(t.TempDir(), "snaps", "swarm.snap.zst")

	if err := WriteSnapshot(path, FromParticles("example", "abc123", ps)); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}

	snap, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("ReadSnapshot: %v", err)
	}
	if snap.Header.Source != "example" || snap.Header.Digest != "abc123" || snap.Header.Count != 2 {
		t.Fatalf("header: %+v", snap.Header)
	}
	if got := snap.ToParticles(); !reflect.DeepEqual(got, ps) {
		t.Fatalf("particles: got %v want %v", got, ps)
	}

	h, err := ReadHeader(path)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if h != snap.Header {
		t.Fatalf("ReadHeader: got %+v want %+v", h, snap.Header)
	}
}

func TestReadSnapshot_Missing(t *testing.T) {
	if _, err := ReadSnapshot(filepath.Join(t.TempDir(), "none.snap.zst")); err == nil {
		t.Fatalf("expected error")
	}
}

package protocol_test

import (
	"encoding/json"
	"strings"
	"testing"

	"particleswarm.ai/internal/protocol"
	"particleswarm.ai/internal/sim/particle"
	"particleswarm.ai/internal/sim/swarm"
)

func TestSchemas_ValidateReport(t *testing.T) {
	lines := []string{
		"p=<-6,0,0>, v=< 3,0,0>, a=< 0,0,0>",
		"p=<-4,0,0>, v=< 2,0,0>, a=< 0,0,0>",
		"p=<-2,0,0>, v=< 1,0,0>, a=< 0,0,0>",
		"p=< 3,0,0>, v=<-1,0,0>, a=< 0,0,0>",
	}
	var ps []particle.Particle
	for _, l := range lines {
		pt, err := particle.Parse(l)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		ps = append(ps, pt)
	}
	rep, err := swarm.Analyze(ps, swarm.Options{Workers: 1, IncludeCollisions: true})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	msg := protocol.NewReport("req-1", "run-1", swarm.Digest(ps), rep)
	b, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := protocol.ValidateReport(b); err != nil {
		t.Fatalf("validate: %v", err)
	}

	base, err := protocol.DecodeBase(b)
	if err != nil || base.Type != protocol.TypeReport || base.ProtocolVersion != protocol.Version {
		t.Fatalf("DecodeBase: %+v %v", base, err)
	}
}

func TestSchemas_RejectBadReport(t *testing.T) {
	bad := []string{
		`{"type":"REPORT","protocol_version":"1.0"}`,
		`{"type":"REPORT","protocol_version":"1.0","run_id":"r","digest":"xyz","closest":{"index":0,"particle":{"p":[0,0,0],"v":[0,0,0],"a":[0,0,0]},"text":""},"len":1,"collided":0,"survivors":1,"reference_compat":false}`,
		`{"type":"REPORT","protocol_version":"1.0","run_id":"r","digest":"` + strings.Repeat("a", 64) + `","closest":{"index":0,"particle":{"p":[0,0],"v":[0,0,0],"a":[0,0,0]},"text":""},"len":1,"collided":0,"survivors":1,"reference_compat":false}`,
		`{"type":"REPORT","protocol_version":"1.0","run_id":"r","digest":"` + strings.Repeat("a", 64) + `","closest":{"index":0,"particle":{"p":[0,0,0],"v":[0,0,0],"a":[0,0,0]},"text":""},"len":1,"collided":0,"survivors":1,"reference_compat":false,"collisions":[{"a":0,"b":1,"times":[-1]}]}`,
	}
	for i, s := range bad {
		if err := protocol.ValidateReport([]byte(s)); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}

func TestSchemas_ValidateSubmit(t *testing.T) {
	ok := `{"type":"SUBMIT","protocol_version":"1.0","lines":["p=<0,0,0>, v=<0,0,0>, a=<0,0,0>"],"include_collisions":true}`
	if err := protocol.ValidateSubmit([]byte(ok)); err != nil {
		t.Fatalf("validate submit: %v", err)
	}
	if err := protocol.ValidateSubmit([]byte(`{"type":"SUBMIT","protocol_version":"1.0","lines":[1,2]}`)); err == nil {
		t.Fatalf("expected error for numeric lines")
	}
}

package protocol

import (
	"particleswarm.ai/internal/sim/particle"
	"particleswarm.ai/internal/sim/swarm"
)

// SubmitMsg asks for an analysis of the given particle lines.
type SubmitMsg struct {
	Type              string   `json:"type"`
	ProtocolVersion   string   `json:"protocol_version"`
	RequestID         string   `json:"request_id,omitempty"`
	Source            string   `json:"source,omitempty"`
	Lines             []string `json:"lines"`
	IncludeCollisions bool     `json:"include_collisions,omitempty"`
	ReferenceCompat   bool     `json:"reference_compat,omitempty"`
}

type ParticleJSON struct {
	P [3]int64 `json:"p"`
	V [3]int64 `json:"v"`
	A [3]int64 `json:"a"`
}

type ClosestJSON struct {
	Index    int          `json:"index"`
	Particle ParticleJSON `json:"particle"`
	Text     string       `json:"text"`
}

type CollisionJSON struct {
	A     int     `json:"a"`
	B     int     `json:"b"`
	Times []int64 `json:"times"`
}

type ReportMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	RequestID       string `json:"request_id,omitempty"`
	RunID           string `json:"run_id"`
	Digest          string `json:"digest"`

	Closest         ClosestJSON     `json:"closest"`
	Len             int             `json:"len"`
	Collided        int             `json:"collided"`
	Survivors       int             `json:"survivors"`
	ReferenceCompat bool            `json:"reference_compat"`
	Collisions      []CollisionJSON `json:"collisions,omitempty"`
}

type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	RequestID       string `json:"request_id,omitempty"`
	Code            string `json:"code"`
	Message         string `json:"message"`
	Line            int    `json:"line,omitempty"`
}

func ParticleToJSON(pt particle.Particle) ParticleJSON {
	return ParticleJSON{P: pt.P.ToArray(), V: pt.V.ToArray(), A: pt.A.ToArray()}
}

func NewReport(requestID, runID, digest string, rep swarm.Report) ReportMsg {
	msg := ReportMsg{
		Type:            TypeReport,
		ProtocolVersion: Version,
		RequestID:       requestID,
		RunID:           runID,
		Digest:          digest,
		Closest: ClosestJSON{
			Index:    rep.Closest.Index,
			Particle: ParticleToJSON(rep.Closest.Particle),
			Text:     rep.Closest.Particle.String(),
		},
		Len:             rep.Len,
		Collided:        rep.Collided,
		Survivors:       rep.Survivors,
		ReferenceCompat: rep.ReferenceCompat,
	}
	for _, c := range rep.Collisions {
		msg.Collisions = append(msg.Collisions, CollisionJSON{A: c.A, B: c.B, Times: c.Times})
	}
	return msg
}

func NewError(requestID, code, message string) ErrorMsg {
	return ErrorMsg{
		Type:            TypeError,
		ProtocolVersion: Version,
		RequestID:       requestID,
		Code:            code,
		Message:         message,
	}
}

// ErrorFor builds an ERROR message from a typed error.
func ErrorFor(requestID string, err error) ErrorMsg {
	msg := NewError(requestID, CodeFor(err), err.Error())
	msg.Line = LineFor(err)
	return msg
}

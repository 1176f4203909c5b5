package protocol

import (
	"errors"

	"particleswarm.ai/internal/persistence/input"
	"particleswarm.ai/internal/sim/particle"
	"particleswarm.ai/internal/sim/swarm"
)

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Input layer.
	ErrBadRequest = "E_BAD_REQUEST"
	ErrParse      = "E_PARSE"
	ErrIO         = "E_IO"
	ErrEmpty      = "E_EMPTY"
	ErrRateLimit  = "E_RATE_LIMIT"
	ErrInternal   = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrBadRequest:      {},
	ErrParse:           {},
	ErrIO:              {},
	ErrEmpty:           {},
	ErrRateLimit:       {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

// CodeFor maps an error from the input or analysis layers to a code.
func CodeFor(err error) string {
	var pe *particle.ParseError
	var ioe *input.IOError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &pe):
		return ErrParse
	case errors.As(err, &ioe):
		return ErrIO
	case errors.Is(err, swarm.ErrEmpty):
		return ErrEmpty
	}
	return ErrInternal
}

// LineFor returns the 1-based input line of a parse error, or 0.
func LineFor(err error) int {
	var pe *particle.ParseError
	if errors.As(err, &pe) {
		return pe.Line
	}
	return 0
}

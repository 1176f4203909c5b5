package particle

import (
	"fmt"
	"strings"

	"particleswarm.ai/internal/sim/vec"
)

var clauseNames = [3]string{"p", "v", "a"}

// Parse reads one line of the form `p=<x,y,z>, v=<x,y,z>, a=<x,y,z>`.
// Labels and whitespace around the bracketed triples are not significant;
// the three triples are taken in order as position, velocity, acceleration.
func Parse(line string) (Particle, error) {
	groups, err := bracketGroups(line)
	if err != nil {
		return Particle{}, &ParseError{Input: line, Reason: err.Error()}
	}
	if len(groups) < 3 {
		return Particle{}, &ParseError{Input: line, Reason: fmt.Sprintf("missing %s clause", clauseNames[len(groups)])}
	}
	if len(groups) > 3 {
		return Particle{}, &ParseError{Input: line, Reason: fmt.Sprintf("want 3 clauses, got %d", len(groups))}
	}

	var vs [3]vec.Vec3i
	for i, g := range groups {
		v, err := vec.Parse(g)
		if err != nil {
			return Particle{}, &ParseError{Input: line, Reason: clauseNames[i] + " clause", Err: err}
		}
		vs[i] = v
	}
	return Particle{P: vs[0], V: vs[1], A: vs[2]}, nil
}

func bracketGroups(s string) ([]string, error) {
	var out []string
	for {
		open := strings.IndexByte(s, '<')
		end := strings.IndexByte(s, '>')
		if open < 0 {
			if end >= 0 {
				return nil, fmt.Errorf("unmatched '>'")
			}
			return out, nil
		}
		if end < 0 {
			return nil, fmt.Errorf("unterminated '<'")
		}
		if end < open {
			return nil, fmt.Errorf("unmatched '>'")
		}
		out = append(out, s[open+1:end])
		s = s[end+1:]
	}
}

// ParseError reports a line that is not a particle description.
// Line is 1-based; zero means the line number is unknown.
type ParseError struct {
	Line   int
	Input  string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	var b strings.Builder
	b.WriteString("parse particle")
	if e.Line > 0 {
		fmt.Fprintf(&b, " (line %d)", e.Line)
	}
	fmt.Fprintf(&b, " %q: %s", e.Input, e.Reason)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *ParseError) Unwrap() error { return e.Err }

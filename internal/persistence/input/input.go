// Package input loads particle lists from text files.
package input

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"

	"particleswarm.ai/internal/sim/particle"
)

// IOError reports a file that could not be opened or read.
type IOError struct {
	Path string
	Op   string
	Err  error
}

func (e *IOError) Error() string { return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err) }

func (e *IOError) Unwrap() error { return e.Err }

// ReadFile loads one particle per line from path. Files ending in .zst are
// zstd-decompressed first.
func ReadFile(path string) ([]particle.Particle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &IOError{Path: path, Op: "open", Err: err}
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".zst") {
		dec, err := zstd.NewReader(f)
		if err != nil {
			return nil, &IOError{Path: path, Op: "zstd", Err: err}
		}
		defer dec.Close()
		r = dec
	}

	ps, err := Parse(r)
	if err != nil {
		if _, ok := err.(*particle.ParseError); ok {
			return nil, err
		}
		return nil, &IOError{Path: path, Op: "read", Err: err}
	}
	return ps, nil
}

// Parse reads particles from r. Blank lines are skipped; particle indices
// count non-blank lines only. A malformed line yields a *particle.ParseError
// carrying its 1-based line number.
func Parse(r io.Reader) ([]particle.Particle, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)

	var out []particle.Particle
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		pt, err := particle.Parse(line)
		if err != nil {
			if pe, ok := err.(*particle.ParseError); ok {
				pe.Line = lineNo
			}
			return nil, err
		}
		out = append(out, pt)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ParseLines parses already split lines, as received over the wire.
func ParseLines(lines []string) ([]particle.Particle, error) {
	out := make([]particle.Particle, 0, len(lines))
	for i, l := range lines {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		pt, err := particle.Parse(l)
		if err != nil {
			if pe, ok := err.(*particle.ParseError); ok {
				pe.Line = i + 1
			}
			return nil, err
		}
		out = append(out, pt)
	}
	return out, nil
}

// Package vec holds the integer 3-vector used by the particle model.
package vec

import (
	"fmt"
	"strconv"
	"strings"
)

type Vec3i struct {
	X int64
	Y int64
	Z int64
}

func New(x, y, z int64) Vec3i { return Vec3i{X: x, Y: y, Z: z} }

func FromArray(a [3]int64) Vec3i { return Vec3i{X: a[0], Y: a[1], Z: a[2]} }

func (v Vec3i) ToArray() [3]int64 { return [3]int64{v.X, v.Y, v.Z} }

// Axis returns component i (0=X, 1=Y, 2=Z).
func (v Vec3i) Axis(i int) int64 {
	switch i {
	case 0:
		return v.X
	case 1:
		return v.Y
	case 2:
		return v.Z
	}
	panic(fmt.Sprintf("vec: axis %d out of range", i))
}

func (v Vec3i) Add(o Vec3i) Vec3i { return Vec3i{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }

func (v Vec3i) Sub(o Vec3i) Vec3i { return Vec3i{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

func (v Vec3i) Scale(k int64) Vec3i { return Vec3i{v.X * k, v.Y * k, v.Z * k} }

func (v Vec3i) Neg() Vec3i { return Vec3i{-v.X, -v.Y, -v.Z} }

func (v Vec3i) IsZero() bool { return v.X == 0 && v.Y == 0 && v.Z == 0 }

// Magnitude is the Manhattan distance from the origin.
func (v Vec3i) Magnitude() int64 { return abs(v.X) + abs(v.Y) + abs(v.Z) }

// Compare orders vectors by Magnitude only; vectors with the same magnitude
// compare equal whatever their components.
func Compare(a, b Vec3i) int {
	ma, mb := a.Magnitude(), b.Magnitude()
	switch {
	case ma < mb:
		return -1
	case ma > mb:
		return 1
	}
	return 0
}

func (v Vec3i) String() string { return fmt.Sprintf("<%d,%d,%d>", v.X, v.Y, v.Z) }

// Parse reads a comma separated integer triple such as "1791,622,-2528".
func Parse(s string) (Vec3i, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return Vec3i{}, &ParseError{Input: s, Reason: fmt.Sprintf("want 3 components, got %d", len(parts))}
	}
	var out [3]int64
	for i, p := range parts {
		n, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return Vec3i{}, &ParseError{Input: s, Reason: fmt.Sprintf("component %d", i), Err: err}
		}
		out[i] = n
	}
	return FromArray(out), nil
}

// ParseError reports a malformed vector triple.
type ParseError struct {
	Input  string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("vec: parse %q: %s: %v", e.Input, e.Reason, e.Err)
	}
	return fmt.Sprintf("vec: parse %q: %s", e.Input, e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

func abs(x int64) int64 {
	if x < 0 {
		return -x
	}
	return x
}

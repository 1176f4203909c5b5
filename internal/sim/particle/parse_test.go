package particle

import (
	"errors"
	"testing"

	"particleswarm.ai/internal/sim/vec"
)

func TestParse_Line(t *testing.T) {
	line := "p=<1791,622,-2528>, v=<258,87,-359>, a=<-17,-1,24>"
	got, err := Parse(line)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := p(1791, 622, -2528, 258, 87, -359, -17, -1, 24)
	if got != want {
		t.Fatalf("Parse: got %v want %v", got, want)
	}
	if m := got.A.Magnitude(); m != 42 {
		t.Fatalf("acceleration magnitude: got %d want 42", m)
	}
}

func TestParse_Whitespace(t *testing.T) {
	got, err := Parse("  p=< 3,0,0>,v=<2, 0,0>,   a=<-1,0 ,0>  ")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got != p(3, 0, 0, 2, 0, 0, -1, 0, 0) {
		t.Fatalf("Parse: got %v", got)
	}
}

func TestParse_StringRoundTrip(t *testing.T) {
	want := p(-6, 0, 0, 3, 0, 0, 0, 0, 0)
	got, err := Parse(want.String())
	if err != nil {
		t.Fatalf("Parse(%q): %v", want.String(), err)
	}
	if got != want {
		t.Fatalf("round trip: got %v want %v", got, want)
	}
}

func TestParse_Errors(t *testing.T) {
	cases := []string{
		"",
		"p=<1,2,3>, v=<4,5,6>",
		"p=<1,2,3>, v=<4,5,6>, a=<7,8>",
		"p=<1,2,3>, v=<4,x,6>, a=<7,8,9>",
		"p=<1,2,3>, v=<4,5,6>, a=<7,8,9",
		"p=1,2,3>, v=<4,5,6>, a=<7,8,9>",
		"p=<1,2,3>, v=<4,5,6>, a=<7,8,9>, q=<0,0,0>",
	}
	for _, in := range cases {
		_, err := Parse(in)
		if err == nil {
			t.Fatalf("Parse(%q): expected error", in)
		}
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Fatalf("Parse(%q): expected *ParseError, got %T", in, err)
		}
		if pe.Input != in {
			t.Fatalf("Parse(%q): error input=%q", in, pe.Input)
		}
	}

	_, err := Parse("p=<1,2,3>, v=<4,x,6>, a=<7,8,9>")
	var ve *vec.ParseError
	if !errors.As(err, &ve) {
		t.Fatalf("expected wrapped vec.ParseError, got %v", err)
	}
}

func TestParseError_Message(t *testing.T) {
	err := &ParseError{Line: 4, Input: "bad", Reason: "missing p clause"}
	want := `parse particle (line 4) "bad": missing p clause`
	if err.Error() != want {
		t.Fatalf("Error(): got %q want %q", err.Error(), want)
	}
}

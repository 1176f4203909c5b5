package tuning

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	// InputPath is read when the command line names no file.
	InputPath string `yaml:"input_path"`

	// Workers bounds the pairwise collision fan-out. 0 = GOMAXPROCS.
	Workers int `yaml:"workers"`

	ReferenceCompat   bool `yaml:"reference_compat"`
	IncludeCollisions bool `yaml:"include_collisions"`

	// Output is "text" or "json".
	Output string `yaml:"output"`

	Persistence Persistence `yaml:"persistence"`
	Server      Server      `yaml:"server"`
}

type Persistence struct {
	IndexDB    string `yaml:"index_db"`
	EventsDir  string `yaml:"events_dir"`
	SnapshotTo string `yaml:"snapshot_to"`
}

type Server struct {
	Addr              string  `yaml:"addr"`
	SubmitRatePerSec  float64 `yaml:"submit_rate_per_sec"`
	SubmitBurst       int     `yaml:"submit_burst"`
	MaxLinesPerSubmit int     `yaml:"max_lines_per_submit"`
}

const (
	OutputText = "text"
	OutputJSON = "json"
)

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion: "1.0",
		InputPath:       "example",
		Workers:         0,
		Output:          OutputText,
		Server: Server{
			Addr:              ":8080",
			SubmitRatePerSec:  2,
			SubmitBurst:       4,
			MaxLinesPerSubmit: 10000,
		},
	}
}

// Load reads a tuning.yaml over Defaults. An empty path yields the defaults.
func Load(path string) (Tuning, error) {
	t := Defaults()
	if strings.TrimSpace(path) == "" {
		t.Normalize()
		return t, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t *Tuning) Normalize() {
	d := Defaults()
	t.Output = strings.ToLower(strings.TrimSpace(t.Output))
	if t.Output == "" {
		t.Output = d.Output
	}
	if strings.TrimSpace(t.InputPath) == "" {
		t.InputPath = d.InputPath
	}
	if t.Server.Addr == "" {
		t.Server.Addr = d.Server.Addr
	}
	if t.Server.SubmitRatePerSec <= 0 {
		t.Server.SubmitRatePerSec = d.Server.SubmitRatePerSec
	}
	if t.Server.SubmitBurst <= 0 {
		t.Server.SubmitBurst = d.Server.SubmitBurst
	}
	if t.Server.MaxLinesPerSubmit <= 0 {
		t.Server.MaxLinesPerSubmit = d.Server.MaxLinesPerSubmit
	}
}

func (t Tuning) Validate() error {
	if t.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", t.Workers)
	}
	switch t.Output {
	case OutputText, OutputJSON:
	default:
		return fmt.Errorf("unknown output %q (want text or json)", t.Output)
	}
	return nil
}

// EffectiveWorkers resolves Workers=0 to GOMAXPROCS.
func (t Tuning) EffectiveWorkers() int {
	if t.Workers > 0 {
		return t.Workers
	}
	return runtime.GOMAXPROCS(0)
}

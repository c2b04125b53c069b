package scan

import (
	"encoding/json"
	"time"

	"github.com/samber/lo"
	"golang.org/x/xerrors"

	"github.com/soter-security/soter/inventory"
	"github.com/soter-security/soter/wpvulndb"
)

type State int

const (
	Idle State = iota
	Running
	Completed
	PartialFailure
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case PartialFailure:
		return "partial_failure"
	}
	return "unknown"
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	for _, state := range []State{Idle, Running, Completed, PartialFailure} {
		if state.String() == string(text) {
			*s = state
			return nil
		}
	}
	return xerrors.Errorf("unknown scan state: %s", text)
}

// Finding is a vulnerability that applies to an installed component.
type Finding struct {
	Component     inventory.Component    `json:"component"`
	Vulnerability wpvulndb.Vulnerability `json:"vulnerability"`
}

// Failure is a component that could not be checked during a cycle.
type Failure struct {
	Component inventory.Component
	Err       error
}

func (f Failure) MarshalJSON() ([]byte, error) {
	var msg string
	if f.Err != nil {
		msg = f.Err.Error()
	}
	return json.Marshal(struct {
		Component inventory.Component `json:"component"`
		Error     string              `json:"error"`
	}{
		Component: f.Component,
		Error:     msg,
	})
}

func (f *Failure) UnmarshalJSON(b []byte) error {
	var v struct {
		Component inventory.Component `json:"component"`
		Error     string              `json:"error"`
	}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	f.Component = v.Component
	if v.Error != "" {
		f.Err = xerrors.New(v.Error)
	}
	return nil
}

// Result is the outcome of one scan cycle. No findings means all clear.
type Result struct {
	Findings   []Finding `json:"findings"`
	Failures   []Failure `json:"failures,omitempty"`
	Scanned    int       `json:"scanned"`
	State      State     `json:"state"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

func (r Result) Vulnerable() bool {
	return len(r.Findings) > 0
}

func (r Result) Vulnerabilities() []wpvulndb.Vulnerability {
	return lo.Map(r.Findings, func(f Finding, _ int) wpvulndb.Vulnerability {
		return f.Vulnerability
	})
}

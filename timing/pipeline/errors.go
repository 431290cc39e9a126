package pipeline

import (
	"errors"
	"fmt"
)

// ErrWatchdog is returned by Run when the cycle limit elapses before the
// pipeline drains.
var ErrWatchdog = errors.New("watchdog: cycle limit reached")

// DecodeFault reports a program line that Fetch could not decode.
type DecodeFault struct {
	PC   uint32
	Line string
	Err  error
}

func (f *DecodeFault) Error() string {
	return fmt.Sprintf("decode fault at PC=%d: %v", f.PC, f.Err)
}

func (f *DecodeFault) Unwrap() error {
	return f.Err
}

// Outcome is the way a run ended.
type Outcome uint8

// Run outcomes.
const (
	OutcomeRunning Outcome = iota
	OutcomeCompleted
	OutcomeTimeout
	OutcomeFaulted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeFaulted:
		return "faulted"
	default:
		return "running"
	}
}

// MarshalText renders the outcome name.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText parses an outcome name.
func (o *Outcome) UnmarshalText(text []byte) error {
	for _, c := range []Outcome{OutcomeRunning, OutcomeCompleted, OutcomeTimeout, OutcomeFaulted} {
		if c.String() == string(text) {
			*o = c
			return nil
		}
	}
	return fmt.Errorf("unknown outcome %q", text)
}

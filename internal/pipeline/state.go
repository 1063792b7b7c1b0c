package pipeline

import (
	"github.com/realenhance/restage/internal/errors"
)

// State is one node of the per-stage orchestration state machine.
type State string

// The orchestration states. RetryStricter is entered at most once per
// stage.
const (
	StateIdle          State = "idle"
	StateGenerating    State = "generating"
	StateValidating    State = "validating"
	StateRetryStricter State = "retry_stricter"
	StateAccepted      State = "accepted"
	StateFailed        State = "failed"
)

// allowedTransitions encodes the stage state machine:
//
//	Idle → Generating → Validating → {Accepted | RetryStricter →
//	Generating → Validating → {Accepted | Failed}}
//
// Generating may also step straight to RetryStricter or Failed: a
// generation error is fatal for that attempt and there is no candidate
// to validate.
var allowedTransitions = map[State][]State{
	StateIdle:          {StateGenerating},
	StateGenerating:    {StateValidating, StateRetryStricter, StateFailed},
	StateValidating:    {StateAccepted, StateRetryStricter, StateFailed},
	StateRetryStricter: {StateGenerating},
	StateAccepted:      {},
	StateFailed:        {},
}

// stateMachine tracks one stage's orchestration state. Not safe for
// concurrent use; each stage run owns its own machine.
type stateMachine struct {
	state State
}

func newStateMachine() *stateMachine {
	return &stateMachine{state: StateIdle}
}

// to advances the machine, rejecting transitions the ladder does not
// allow.
func (m *stateMachine) to(next State) error {
	for _, allowed := range allowedTransitions[m.state] {
		if allowed == next {
			m.state = next
			return nil
		}
	}
	return errors.Wrapf(errors.ErrInvalidTransition, "%s -> %s", m.state, next)
}

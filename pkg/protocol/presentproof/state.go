package presentproof

import "github.com/pkg/errors"

// State tracks one side's view of an exchange thread
type State string

const (
	StateNil       State = ""
	StateProposed  State = "proposed"
	StateRequested State = "requested"
	StatePresented State = "presented"
	StateDone      State = "done"
	StateAborted   State = "aborted"
)

var (
	ErrIllegalTransition = errors.New("illegal state transition")

	stateOf = map[string]State{
		TypePropose:       StateProposed,
		TypeRequest:       StateRequested,
		TypePresentation:  StatePresented,
		TypeAck:           StateDone,
		TypeProblemReport: StateAborted,
	}

	next = map[State][]State{
		StateNil:       {StateProposed, StateRequested},
		StateProposed:  {StateRequested},
		StateRequested: {StatePresented},
		StatePresented: {StateDone},
	}
)

// Terminal reports whether no further messages are expected on the thread
func (s State) Terminal() bool {
	return s == StateDone || s == StateAborted
}

// Advance applies the received message type to the current state. A
// problem report is accepted from any non-terminal state and aborts the
// exchange
func Advance(current State, msgType string) (State, error) {
	to, ok := stateOf[msgType]
	if !ok {
		return current, errors.Wrap(ErrIllegalTransition, msgType)
	}

	if to == StateAborted {
		if current.Terminal() {
			return current, errors.Wrapf(ErrIllegalTransition, "%s from %s", msgType, current)
		}

		return StateAborted, nil
	}

	for _, s := range next[current] {
		if s == to {
			return to, nil
		}
	}

	return current, errors.Wrapf(ErrIllegalTransition, "%s from %s", msgType, current)
}

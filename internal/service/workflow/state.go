// Package workflow drives a dictation through validation to signature.
//
//	DICTATION ──submit (compliant or override)──> VALIDATION ──accept──> SIGNATURE
//	    ^  │                                           │                     │
//	    │  └──submit (needs revision / failure)──┘     │                     │
//	    └──────────────────────reset─────────────────────┴─────────────────────┘
//
// Any transition not in the table is rejected with ErrInvalidTransition.
package workflow

import (
	"fmt"
)

// State is a workflow state.
type State int

const (
	StateDictation State = iota
	StateValidation
	StateSignature
)

func (s State) String() string {
	switch s {
	case StateDictation:
		return "dictation"
	case StateValidation:
		return "validation"
	case StateSignature:
		return "signature"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// MarshalText renders the state by name in JSON payloads.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Event names what moves the workflow.
type Event string

const (
	EventSubmit Event = "submit"
	EventAccept Event = "accept"
	EventReset  Event = "reset"
)

type transition struct {
	from  State
	event Event
}

// transitions lists every allowed (from, event) pair and its target. Submit
// is only accepted in dictation; whether it advances is decided by the verdict.
var transitions = map[transition]State{
	{StateDictation, EventSubmit}:  StateValidation,
	{StateValidation, EventAccept}: StateSignature,
	{StateDictation, EventReset}:   StateDictation,
	{StateValidation, EventReset}:  StateDictation,
	{StateSignature, EventReset}:   StateDictation,
}

// next returns the target of event from s.
func next(s State, event Event) (State, bool) {
	to, ok := transitions[transition{s, event}]
	return to, ok
}

// Allowed reports whether event is accepted in state s.
func Allowed(s State, event Event) bool {
	_, ok := next(s, event)
	return ok
}

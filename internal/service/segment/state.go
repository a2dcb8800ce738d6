// Package segment tracks the utterances inside one capture session.
package segment

import (
	"errors"
	"fmt"
	"sync"
)

// State represents the lifecycle state of an utterance.
type State int

const (
	// StateListening - recognizer run is live, interim results allowed.
	StateListening State = iota
	// StateFinalized - final hypothesis received, waiting for the run to end.
	StateFinalized
	// StateEnded - run ended normally.
	StateEnded
	// StateDropped - run failed. Whatever was finalized earlier stays in the buffer.
	StateDropped
)

func (s State) String() string {
	switch s {
	case StateListening:
		return "LISTENING"
	case StateFinalized:
		return "FINALIZED"
	case StateEnded:
		return "ENDED"
	case StateDropped:
		return "DROPPED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// IsTerminal returns true for ENDED and DROPPED.
func (s State) IsTerminal() bool {
	return s == StateEnded || s == StateDropped
}

var (
	ErrUtteranceEnded        = errors.New("utterance has ended")
	ErrAlreadyFinalized      = errors.New("utterance already finalized")
	ErrInterimAfterFinalized = errors.New("interim result after final")
)

// Utterance is the state machine for one recognizer run.
//
//	LISTENING ──Finalize()──> FINALIZED ──End()──> ENDED
//	    │                         │
//	    └──────────Drop()─────────┴──────────────> DROPPED
type Utterance struct {
	mu    sync.RWMutex
	id    string
	state State
}

// NewUtterance creates an utterance in LISTENING state.
func NewUtterance(id string) *Utterance {
	return &Utterance{id: id, state: StateListening}
}

func (u *Utterance) ID() string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.id
}

func (u *Utterance) State() State {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.state
}

// Interim validates an interim result.
func (u *Utterance) Interim() error {
	u.mu.RLock()
	defer u.mu.RUnlock()

	switch u.state {
	case StateListening:
		return nil
	case StateFinalized:
		return ErrInterimAfterFinalized
	default:
		return ErrUtteranceEnded
	}
}

// Finalize records the final hypothesis. Allowed once.
func (u *Utterance) Finalize() error {
	u.mu.Lock()
	defer u.mu.Unlock()

	switch u.state {
	case StateListening:
		u.state = StateFinalized
		return nil
	case StateFinalized:
		return ErrAlreadyFinalized
	default:
		return ErrUtteranceEnded
	}
}

// End marks the run as ended. Returns false if already terminal.
func (u *Utterance) End() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.state.IsTerminal() {
		return false
	}
	u.state = StateEnded
	return true
}

// Drop marks the run as failed. Returns false if already terminal.
func (u *Utterance) Drop() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.state.IsTerminal() {
		return false
	}
	u.state = StateDropped
	return true
}

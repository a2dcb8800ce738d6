package segment

import (
	"testing"
)

func TestUtterance_InitialState(t *testing.T) {
	u := NewUtterance("s-utt-1")

	if u.State() != StateListening {
		t.Errorf("expected StateListening, got %v", u.State())
	}
	if u.ID() != "s-utt-1" {
		t.Errorf("expected s-utt-1, got %v", u.ID())
	}
	if u.State().IsTerminal() {
		t.Error("expected non-terminal initial state")
	}
}

func TestUtterance_InterimWhileListening(t *testing.T) {
	u := NewUtterance("u")
	for i := 0; i < 5; i++ {
		if err := u.Interim(); err != nil {
			t.Errorf("interim %d: unexpected error: %v", i, err)
		}
	}
	if u.State() != StateListening {
		t.Errorf("expected StateListening after interims, got %v", u.State())
	}
}

func TestUtterance_Finalize(t *testing.T) {
	u := NewUtterance("u")

	if err := u.Finalize(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.State() != StateFinalized {
		t.Errorf("expected StateFinalized, got %v", u.State())
	}
	if err := u.Interim(); err != ErrInterimAfterFinalized {
		t.Errorf("expected ErrInterimAfterFinalized, got %v", err)
	}
	if err := u.Finalize(); err != ErrAlreadyFinalized {
		t.Errorf("expected ErrAlreadyFinalized, got %v", err)
	}
}

func TestUtterance_EndAfterFinal(t *testing.T) {
	u := NewUtterance("u")
	_ = u.Finalize()

	if !u.End() {
		t.Error("expected End to transition")
	}
	if u.State() != StateEnded {
		t.Errorf("expected StateEnded, got %v", u.State())
	}
	if u.End() {
		t.Error("expected second End to be a no-op")
	}
	if u.Drop() {
		t.Error("expected Drop after End to be a no-op")
	}
}

func TestUtterance_EndWithoutFinal(t *testing.T) {
	u := NewUtterance("u")
	if !u.End() {
		t.Error("expected silent utterance to end")
	}
	if err := u.Interim(); err != ErrUtteranceEnded {
		t.Errorf("expected ErrUtteranceEnded, got %v", err)
	}
	if err := u.Finalize(); err != ErrUtteranceEnded {
		t.Errorf("expected ErrUtteranceEnded, got %v", err)
	}
}

func TestUtterance_Drop(t *testing.T) {
	tests := []struct {
		name  string
		setup func(u *Utterance)
	}{
		{"from listening", func(u *Utterance) {}},
		{"from finalized", func(u *Utterance) { _ = u.Finalize() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := NewUtterance("u")
			tt.setup(u)
			if !u.Drop() {
				t.Error("expected Drop to transition")
			}
			if u.State() != StateDropped {
				t.Errorf("expected StateDropped, got %v", u.State())
			}
			if u.End() {
				t.Error("expected End after Drop to be a no-op")
			}
		})
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateListening, "LISTENING"},
		{StateFinalized, "FINALIZED"},
		{StateEnded, "ENDED"},
		{StateDropped, "DROPPED"},
		{State(99), "UNKNOWN(99)"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %s, want %s", tt.state, got, tt.want)
		}
	}
}

package voice

import (
	"fmt"
	"time"
)

// State is a voice session's lifecycle state. Exactly one state is active
// per session at any instant.
type State string

// State enum values.
const (
	// StateIdle: transport connected, not capturing or playing.
	StateIdle State = "idle"
	// StateListening: capturing microphone audio and streaming it out.
	StateListening State = "listening"
	// StateProcessing: utterance sent, awaiting the assistant's response.
	StateProcessing State = "processing"
	// StateSpeaking: playing the assistant's audio response.
	StateSpeaking State = "speaking"
	// StateError: unrecoverable until an explicit reset.
	StateError State = "error"
)

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	switch s {
	case StateIdle, StateListening, StateProcessing, StateSpeaking, StateError:
		return true
	default:
		return false
	}
}

func (s State) String() string {
	return string(s)
}

// validTransitions is the complete transition table. A requested transition
// absent from this table is rejected; callers must treat rejection as a
// no-op, not a crash.
var validTransitions = map[State][]State{
	StateIdle:       {StateListening, StateError},
	StateListening:  {StateProcessing, StateIdle, StateError},
	StateProcessing: {StateSpeaking, StateIdle, StateError},
	StateSpeaking:   {StateIdle, StateListening, StateError},
	StateError:      {StateIdle},
}

// CanTransition reports whether the transition table allows from -> to.
func CanTransition(from, to State) bool {
	allowed, exists := validTransitions[from]
	if !exists {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// InvalidTransitionError reports a transition request outside the table.
type InvalidTransitionError struct {
	From State
	To   State
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid voice state transition from %s to %s", e.From, e.To)
}

// Status is a snapshot of the machine for the UI layer: current state, the
// last error message if the state is error, and when the state last changed.
type Status struct {
	State     State     `json:"state"`
	LastError string    `json:"last_error,omitempty"`
	ChangedAt time.Time `json:"changed_at"`
}

package voice

import (
	"sync"
	"time"
)

// Change describes one accepted state transition.
type Change struct {
	From   State
	To     State
	Reason string
	At     time.Time
}

// Hooks are the machine's entry side effects, supplied at construction.
// OnEnterListening starts microphone capture, OnEnterSpeaking starts
// buffered playback, OnEnterError halts both. OnChange fires after every
// accepted transition, including reset. Hooks are called outside the
// machine's lock and must not block.
type Hooks struct {
	OnEnterListening func()
	OnEnterSpeaking  func()
	OnEnterError     func(message string)
	OnChange         func(change Change)
}

// Machine is the voice session state machine. It owns the capture/playback
// flags so the mutual-exclusion invariant (capture only while listening,
// playback only while speaking) holds by construction rather than by
// transport-layer discipline.
type Machine struct {
	mu             sync.Mutex
	state          State
	lastErr        string
	changedAt      time.Time
	captureActive  bool
	playbackActive bool
	hooks          Hooks
}

// NewMachine creates a machine in the idle state.
func NewMachine(hooks Hooks) *Machine {
	return &Machine{
		state:     StateIdle,
		changedAt: time.Now(),
		hooks:     hooks,
	}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Status returns a snapshot for the UI layer.
func (m *Machine) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{State: m.state, LastError: m.lastErr, ChangedAt: m.changedAt}
}

// CaptureActive reports whether microphone capture is live. True if and
// only if the state is listening.
func (m *Machine) CaptureActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.captureActive
}

// PlaybackActive reports whether speaker playback is live. True if and
// only if the state is speaking.
func (m *Machine) PlaybackActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playbackActive
}

// Transition moves to a new state if the table allows it. Rejected
// requests leave the machine untouched and return InvalidTransitionError;
// callers must not assume a requested transition succeeds.
func (m *Machine) Transition(to State, reason string) error {
	m.mu.Lock()

	if !CanTransition(m.state, to) {
		from := m.state
		m.mu.Unlock()
		return &InvalidTransitionError{From: from, To: to}
	}

	from := m.state
	m.state = to
	m.changedAt = time.Now()

	switch to {
	case StateListening:
		m.captureActive = true
		m.playbackActive = false
	case StateSpeaking:
		m.captureActive = false
		m.playbackActive = true
	case StateError:
		m.captureActive = false
		m.playbackActive = false
		m.lastErr = reason
	default:
		m.captureActive = false
		m.playbackActive = false
	}
	if from == StateError && to == StateIdle {
		m.lastErr = ""
	}

	change := Change{From: from, To: to, Reason: reason, At: m.changedAt}
	hooks := m.hooks
	m.mu.Unlock()

	switch to {
	case StateListening:
		if hooks.OnEnterListening != nil {
			hooks.OnEnterListening()
		}
	case StateSpeaking:
		if hooks.OnEnterSpeaking != nil {
			hooks.OnEnterSpeaking()
		}
	case StateError:
		if hooks.OnEnterError != nil {
			hooks.OnEnterError(reason)
		}
	}
	if hooks.OnChange != nil {
		hooks.OnChange(change)
	}

	return nil
}

// Fail moves to the error state capturing the message. If the machine is
// already in error, the first error is kept and Fail is a no-op.
func (m *Machine) Fail(message string) {
	m.mu.Lock()
	if m.state == StateError {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	_ = m.Transition(StateError, message)
}

// Reset returns the machine to idle from the error state. Calling Reset
// from any non-error state is a no-op that returns the current state.
func (m *Machine) Reset() State {
	m.mu.Lock()
	if m.state != StateError {
		current := m.state
		m.mu.Unlock()
		return current
	}
	m.mu.Unlock()

	_ = m.Transition(StateIdle, "reset")
	return StateIdle
}

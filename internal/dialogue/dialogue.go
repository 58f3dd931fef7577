// Package dialogue defines the contract with the hosted voice dialogue
// backend. The server relays audio and context between cooking clients
// and this backend; vendor specifics live in adapter subpackages so the
// session code never touches a vendor wire format.
package dialogue

import "context"

// SessionConfig carries everything needed to open one dialogue session.
// ContextVars are the prompt template variables the agent is primed
// with; they can be replaced mid-session through UpdateContext.
type SessionConfig struct {
	Token       string
	AgentID     string
	SampleRate  int
	ContextVars map[string]string
}

// Session is one live bidirectional dialogue exchange. SendAudio and
// UpdateContext are safe for concurrent use. Events is closed after
// Close or when the backend drops the session; the final event before
// close is an ErrorEvent when the drop was not clean.
type Session interface {
	// SendAudio streams one chunk of PCM capture audio to the agent.
	SendAudio(ctx context.Context, pcm []byte) error

	// UpdateContext replaces the agent's context variables. The backend
	// applies the change at the next turn boundary, never mid-utterance.
	UpdateContext(ctx context.Context, vars map[string]string) error

	// Events returns the inbound event stream, in backend order.
	Events() <-chan Event

	// Close ends the session. Safe to call more than once.
	Close() error
}

// Client opens dialogue sessions.
type Client interface {
	StartSession(ctx context.Context, cfg SessionConfig) (Session, error)
}

// TokenSource mints the short-lived credential StartSession presents.
// Tokens expire quickly, so each session start asks for a fresh one.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Event is one inbound message from the dialogue backend.
type Event interface {
	isEvent()
}

// AudioFrame is one chunk of synthesized response speech.
type AudioFrame struct {
	PCM []byte
}

// Transcript is recognized text, partial until Final.
type Transcript struct {
	Text  string
	Final bool
}

// TurnComplete marks the end of one full response turn.
type TurnComplete struct{}

// ErrorEvent reports a backend failure. Timeout distinguishes "took too
// long" from other errors so the user-facing message can say so.
type ErrorEvent struct {
	Message string
	Timeout bool
}

func (AudioFrame) isEvent()   {}
func (Transcript) isEvent()   {}
func (TurnComplete) isEvent() {}
func (ErrorEvent) isEvent()   {}

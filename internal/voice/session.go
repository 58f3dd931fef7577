package voice

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mise-app/mise-api/internal/dialogue"
	"github.com/mise-app/mise-api/internal/logger"
	"github.com/mise-app/mise-api/internal/models"
)

// OpError reports a voice operation rejected as a no-op: the session
// state did not change and the reason is safe to show the user.
type OpError struct {
	Op     string
	Reason string
}

func (e OpError) Error() string {
	return fmt.Sprintf("%s rejected: %s", e.Op, e.Reason)
}

// ErrClosed is returned by every operation after Close.
var ErrClosed = OpError{Op: "voice session", Reason: "session closed"}

// processingTimeoutMessage is the user-facing text for a turn that never
// came back. Kept distinct from generic transport errors so the client
// can say the assistant took too long rather than that it failed.
const processingTimeoutMessage = "the assistant took too long to respond"

// EventSink receives everything a cook-mode client needs to render the
// assistant. Implementations must not block and must not call back into
// the Connection; drop rather than wait when the client cannot keep up.
type EventSink interface {
	StateChanged(Change)
	ResponseAudio(pcm []byte)
	TranscriptReceived(text string, final bool)
	CommandDetected(Command)
	TurnCompleted()
	OfflineChanged(offline bool)
}

// ClientCaps is what the client reported about its audio hardware.
// Capture cannot start until both are true.
type ClientCaps struct {
	MicPermission bool
	AudioReady    bool
}

// Params tunes one voice connection. Zero values take defaults.
type Params struct {
	// ConnectTimeout bounds each dial plus handshake.
	ConnectTimeout time.Duration

	// ProcessingTimeout bounds the wait for the first response after
	// push-to-talk release. Clamped to 10s..30s.
	ProcessingTimeout time.Duration

	// MaxReconnectAttempts bounds one automatic recovery run before the
	// session goes offline.
	MaxReconnectAttempts int

	Backoff    Backoff
	SampleRate int
}

// DefaultParams returns the production tuning.
func DefaultParams() Params {
	return Params{
		ConnectTimeout:       15 * time.Second,
		ProcessingTimeout:    20 * time.Second,
		MaxReconnectAttempts: 3,
		Backoff:              DefaultBackoff(),
		SampleRate:           16000,
	}
}

func (p Params) normalized() Params {
	d := DefaultParams()
	if p.ConnectTimeout <= 0 {
		p.ConnectTimeout = d.ConnectTimeout
	}
	if p.ProcessingTimeout <= 0 {
		p.ProcessingTimeout = d.ProcessingTimeout
	}
	if p.ProcessingTimeout < 10*time.Second {
		p.ProcessingTimeout = 10 * time.Second
	}
	if p.ProcessingTimeout > 30*time.Second {
		p.ProcessingTimeout = 30 * time.Second
	}
	if p.MaxReconnectAttempts <= 0 {
		p.MaxReconnectAttempts = d.MaxReconnectAttempts
	}
	if p.Backoff.Base <= 0 {
		p.Backoff = d.Backoff
	}
	if p.SampleRate <= 0 {
		p.SampleRate = d.SampleRate
	}
	return p
}

// Connection runs one cook screen's voice session: the state machine,
// the dialogue stream, the recipe context, and automatic recovery. One
// Connection per cook screen; all methods are safe for concurrent use.
type Connection struct {
	client dialogue.Client
	tokens dialogue.TokenSource
	agent  string
	params Params
	sink   EventSink
	log    *zap.Logger

	machine *Machine

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	sess         dialogue.Session
	gen          uint64
	closed       bool
	offline      bool
	reconnecting bool
	sentAudio    bool
	caps         ClientCaps
	procTimer    *time.Timer

	recipe     *models.Recipe
	multiplier float64
	vc         RecipeVoiceContext
	ctxDirty   bool
}

// NewConnection builds a Connection for one recipe cook-through. The
// sink receives every state change and response event; see EventSink
// for its non-blocking contract.
func NewConnection(client dialogue.Client, tokens dialogue.TokenSource, agentID string, recipe *models.Recipe, startStep int, caps ClientCaps, sink EventSink, params Params) *Connection {
	ctx, cancel := context.WithCancel(context.Background())

	c := &Connection{
		client:     client,
		tokens:     tokens,
		agent:      agentID,
		params:     params.normalized(),
		sink:       sink,
		log:        logger.Named("voice"),
		ctx:        ctx,
		cancel:     cancel,
		caps:       caps,
		recipe:     recipe,
		multiplier: 1,
		vc:         NewRecipeVoiceContext(recipe, 1, startStep),
	}

	c.machine = NewMachine(Hooks{
		OnChange: func(ch Change) { sink.StateChanged(ch) },
	})

	return c
}

// Start opens the dialogue session. On failure the state machine goes
// to error, automatic recovery begins, and the dial error is returned
// so the caller can tell the user immediately.
func (c *Connection) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	vars := c.vc.Vars()
	c.mu.Unlock()

	dialCtx, cancel := context.WithTimeout(ctx, c.params.ConnectTimeout)
	sess, err := c.connect(dialCtx, vars)
	cancel()
	if err != nil {
		c.log.Warn("voice session start failed", zap.Error(err))
		c.mu.Lock()
		c.failLocked("could not reach the assistant")
		c.mu.Unlock()
		return fmt.Errorf("failed to start voice session: %w", err)
	}

	c.adoptSession(sess)
	return nil
}

// Close tears the session down. The state machine lands on idle so a
// reopened screen starts clean. Safe to call more than once.
func (c *Connection) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.gen++
	sess := c.sess
	c.sess = nil
	c.stopProcTimerLocked()
	c.mu.Unlock()

	c.cancel()
	if sess != nil {
		sess.Close()
	}

	if c.machine.State() == StateError {
		c.machine.Reset()
	} else if c.machine.State() != StateIdle {
		_ = c.machine.Transition(StateIdle, "session closed")
	}
	return nil
}

// PressTalk begins capture. Rejected with an OpError when the transport
// or the client's audio hardware is not ready, and with an
// InvalidTransitionError when the current state does not allow
// listening. Pressing during playback interrupts the assistant.
func (c *Connection) PressTalk() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.offline {
		return OpError{Op: "push-to-talk", Reason: "assistant is offline"}
	}
	if c.sess == nil {
		return OpError{Op: "push-to-talk", Reason: "reconnecting to the assistant"}
	}
	if !c.caps.MicPermission {
		return OpError{Op: "push-to-talk", Reason: "microphone permission not granted"}
	}
	if !c.caps.AudioReady {
		return OpError{Op: "push-to-talk", Reason: "audio output not ready"}
	}

	if err := c.machine.Transition(StateListening, "push-to-talk pressed"); err != nil {
		return err
	}
	c.sentAudio = false
	return nil
}

// ReleaseTalk ends capture. The turn moves to processing when at least
// one audio chunk went out, otherwise straight back to idle.
func (c *Connection) ReleaseTalk() error {
	c.mu.Lock()

	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.machine.State() != StateListening {
		c.mu.Unlock()
		return OpError{Op: "push-to-talk release", Reason: "not capturing"}
	}

	if !c.sentAudio {
		err := c.machine.Transition(StateIdle, "released with no audio")
		sess, vars, send := c.takeContextLocked()
		c.mu.Unlock()
		if send {
			c.pushContext(sess, vars)
		}
		return err
	}

	if err := c.machine.Transition(StateProcessing, "push-to-talk released"); err != nil {
		c.mu.Unlock()
		return err
	}
	c.startProcTimerLocked()
	c.mu.Unlock()
	return nil
}

// SendAudioChunk forwards one capture chunk. Chunks arriving outside
// the listening state are rejected without touching the session.
func (c *Connection) SendAudioChunk(ctx context.Context, pcm []byte) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.machine.State() != StateListening {
		c.mu.Unlock()
		return OpError{Op: "audio chunk", Reason: "not capturing"}
	}
	sess := c.sess
	if sess == nil {
		c.mu.Unlock()
		return OpError{Op: "audio chunk", Reason: "reconnecting to the assistant"}
	}
	c.sentAudio = true
	c.mu.Unlock()

	if err := sess.SendAudio(ctx, pcm); err != nil {
		c.log.Warn("audio send failed", zap.Error(err))
		c.failAndRecover("connection to the assistant was lost")
		return err
	}
	return nil
}

// HandleInterruption reacts to a device-level audio interruption such
// as an incoming call: capture and playback stop, the state returns to
// idle, and the dialogue session stays alive. Capture does not resume
// until the user presses push-to-talk again.
func (c *Connection) HandleInterruption() {
	c.mu.Lock()

	if c.closed {
		c.mu.Unlock()
		return
	}
	c.stopProcTimerLocked()

	switch c.machine.State() {
	case StateListening, StateProcessing, StateSpeaking:
		_ = c.machine.Transition(StateIdle, "audio interrupted by the device")
	}

	sess, vars, send := c.takeContextLocked()
	c.mu.Unlock()
	if send {
		c.pushContext(sess, vars)
	}
}

// Reset returns the machine to idle, clearing a sticky error. From any
// non-error state it is a no-op.
func (c *Connection) Reset() State {
	c.mu.Lock()

	if c.closed {
		st := c.machine.State()
		c.mu.Unlock()
		return st
	}
	c.stopProcTimerLocked()
	c.sentAudio = false
	st := c.machine.Reset()

	sess, vars, send := c.takeContextLocked()
	c.mu.Unlock()
	if send {
		c.pushContext(sess, vars)
	}
	return st
}

// Reconnect starts a manual recovery run, e.g. from an offline banner's
// retry button. No-op while automatic recovery is already running.
func (c *Connection) Reconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.reconnecting {
		return nil
	}
	c.reconnecting = true
	go c.recoverLoop()
	return nil
}

// SetCaps updates the client's reported audio readiness, e.g. after the
// user grants the microphone permission mid-session.
func (c *Connection) SetCaps(caps ClientCaps) {
	c.mu.Lock()
	c.caps = caps
	c.mu.Unlock()
}

// SetStep moves the current instruction step, e.g. when the user swipes
// the step card by hand. Returns the step actually set after clamping.
func (c *Connection) SetStep(step int) int {
	c.mu.Lock()
	got := c.vc.SetStep(step)
	c.markContextLocked()
	sess, vars, send := c.takeContextLocked()
	c.mu.Unlock()

	if send {
		c.pushContext(sess, vars)
	}
	return got
}

// SetScale rescales the recipe context. The multiplier is relative to
// the recipe as written, so "double" always means twice the original
// amounts no matter how the recipe is currently scaled.
func (c *Connection) SetScale(multiplier float64) {
	if multiplier <= 0 {
		multiplier = 1
	}

	c.mu.Lock()
	c.multiplier = multiplier
	c.vc = NewRecipeVoiceContext(c.recipe, multiplier, c.vc.CurrentStep)
	c.markContextLocked()
	sess, vars, send := c.takeContextLocked()
	c.mu.Unlock()

	if send {
		c.pushContext(sess, vars)
	}
}

// ReplaceRecipe swaps in an edited recipe mid-cook, keeping the current
// scale and clamping the step to the new instruction list.
func (c *Connection) ReplaceRecipe(recipe *models.Recipe) {
	c.mu.Lock()
	c.recipe = recipe
	c.vc = NewRecipeVoiceContext(recipe, c.multiplier, c.vc.CurrentStep)
	c.markContextLocked()
	sess, vars, send := c.takeContextLocked()
	c.mu.Unlock()

	if send {
		c.pushContext(sess, vars)
	}
}

// HandleTextCommand parses typed or offline-mode command text and
// applies anything that executes locally. The caller routes queries;
// they need the dialogue backend, which may be offline.
func (c *Connection) HandleTextCommand(text string) Command {
	cmd := Parse(text)
	if cmd.Type != CommandQuery {
		c.applyCommand(cmd)
	}
	return cmd
}

// Status reports the machine state for session handshakes and debugging.
func (c *Connection) Status() Status {
	return c.machine.Status()
}

// Offline reports whether automatic recovery gave up.
func (c *Connection) Offline() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.offline
}

// Context returns a copy of the current recipe voice context.
func (c *Connection) Context() RecipeVoiceContext {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.vc
}

// connect mints a fresh token and opens one dialogue session.
func (c *Connection) connect(ctx context.Context, vars map[string]string) (dialogue.Session, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to mint dialogue token: %w", err)
	}

	return c.client.StartSession(ctx, dialogue.SessionConfig{
		Token:       token,
		AgentID:     c.agent,
		SampleRate:  c.params.SampleRate,
		ContextVars: vars,
	})
}

// adoptSession installs a freshly opened session and starts its event
// loop. The generation counter fences off loops of replaced sessions.
func (c *Connection) adoptSession(sess dialogue.Session) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		sess.Close()
		return
	}
	c.gen++
	gen := c.gen
	c.sess = sess
	c.ctxDirty = false
	c.mu.Unlock()

	go c.receiveLoop(gen, sess)
}

// receiveLoop drains one session's events. Every inbound event funnels
// through onEvent so state transitions stay single-threaded.
func (c *Connection) receiveLoop(gen uint64, sess dialogue.Session) {
	for ev := range sess.Events() {
		c.onEvent(gen, ev)
	}

	// Stream closed. If this session is still current the transport
	// dropped without a final error event.
	c.mu.Lock()
	if gen == c.gen && !c.closed {
		c.failLocked("connection to the assistant was lost")
	}
	c.mu.Unlock()
}

func (c *Connection) onEvent(gen uint64, ev dialogue.Event) {
	c.mu.Lock()
	if gen != c.gen || c.closed {
		c.mu.Unlock()
		return
	}

	switch e := ev.(type) {
	case dialogue.AudioFrame:
		c.onAudioFrameLocked(e)
		c.mu.Unlock()

	case dialogue.Transcript:
		c.mu.Unlock()
		c.sink.TranscriptReceived(e.Text, e.Final)
		if e.Final {
			cmd := Parse(e.Text)
			if cmd.Type != CommandQuery {
				c.applyCommand(cmd)
			}
		}

	case dialogue.TurnComplete:
		c.stopProcTimerLocked()
		switch c.machine.State() {
		case StateSpeaking:
			_ = c.machine.Transition(StateIdle, "turn complete")
		case StateProcessing:
			// The backend finished the turn without speaking.
			_ = c.machine.Transition(StateIdle, "turn complete")
		}
		sess, vars, send := c.takeContextLocked()
		c.mu.Unlock()
		c.sink.TurnCompleted()
		if send {
			c.pushContext(sess, vars)
		}

	case dialogue.ErrorEvent:
		msg := e.Message
		if e.Timeout {
			msg = processingTimeoutMessage
		}
		c.failLocked(msg)
		c.mu.Unlock()

	default:
		c.mu.Unlock()
	}
}

// onAudioFrameLocked handles the first and subsequent response audio
// frames. Response audio forces the speaking state: a frame landing
// while capture is still open ends the capture turn first so every
// state change stays on the transition table.
func (c *Connection) onAudioFrameLocked(e dialogue.AudioFrame) {
	switch c.machine.State() {
	case StateListening:
		if err := c.machine.Transition(StateProcessing, "response audio arrived"); err != nil {
			return
		}
		if err := c.machine.Transition(StateSpeaking, "response audio arrived"); err != nil {
			return
		}
	case StateProcessing:
		c.stopProcTimerLocked()
		if err := c.machine.Transition(StateSpeaking, "response audio arrived"); err != nil {
			return
		}
	case StateSpeaking:
	default:
		// Straggler frame after the turn already ended. Drop it.
		return
	}

	c.sink.ResponseAudio(e.PCM)
}

// applyCommand executes a locally handled command: navigation moves the
// context step, scaling rebuilds the context, timers are forwarded for
// the client to run. Queries never reach here.
func (c *Connection) applyCommand(cmd Command) {
	switch cmd.Type {
	case CommandNavigation:
		c.mu.Lock()
		switch cmd.Navigation.Action {
		case NavNext:
			c.vc.Advance(1)
		case NavPrevious:
			c.vc.Advance(-1)
		case NavGoTo:
			c.vc.SetStep(cmd.Navigation.TargetStep)
		case NavRepeat:
			// Position unchanged; the client re-reads the step.
		}
		c.markContextLocked()
		sess, vars, send := c.takeContextLocked()
		c.mu.Unlock()
		if send {
			c.pushContext(sess, vars)
		}

	case CommandScaling:
		mult := cmd.Scaling.Multiplier
		if cmd.Scaling.TargetServings > 0 {
			base := 1
			c.mu.Lock()
			if c.recipe.Servings > 0 {
				base = c.recipe.Servings
			}
			c.mu.Unlock()
			mult = float64(cmd.Scaling.TargetServings) / float64(base)
		}
		c.SetScale(mult)

	case CommandTimer:
	}

	c.sink.CommandDetected(cmd)
}

// markContextLocked records that the agent's context is stale.
func (c *Connection) markContextLocked() {
	c.ctxDirty = true
}

// takeContextLocked claims a pending context push when the turn allows
// it. Updates landing mid-turn stay dirty and flush at the next idle,
// so a new turn always starts from settled context.
func (c *Connection) takeContextLocked() (dialogue.Session, map[string]string, bool) {
	if !c.ctxDirty || c.sess == nil {
		return nil, nil, false
	}
	if c.machine.State() != StateIdle {
		return nil, nil, false
	}
	c.ctxDirty = false
	return c.sess, c.vc.Vars(), true
}

// pushContext sends context variables outside the connection lock.
func (c *Connection) pushContext(sess dialogue.Session, vars map[string]string) {
	ctx, cancel := context.WithTimeout(c.ctx, c.params.ConnectTimeout)
	defer cancel()

	if err := sess.UpdateContext(ctx, vars); err != nil {
		c.log.Warn("context update failed", zap.Error(err))
		c.failAndRecover("connection to the assistant was lost")
	}
}

func (c *Connection) startProcTimerLocked() {
	c.stopProcTimerLocked()
	gen := c.gen
	c.procTimer = time.AfterFunc(c.params.ProcessingTimeout, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if gen != c.gen || c.closed {
			return
		}
		if c.machine.State() != StateProcessing {
			return
		}
		c.failLocked(processingTimeoutMessage)
	})
}

func (c *Connection) stopProcTimerLocked() {
	if c.procTimer != nil {
		c.procTimer.Stop()
		c.procTimer = nil
	}
}

func (c *Connection) failAndRecover(reason string) {
	c.mu.Lock()
	c.failLocked(reason)
	c.mu.Unlock()
}

// failLocked moves the machine to error, discards the dead session, and
// kicks off automatic recovery unless one is already running or the
// session has already been declared offline.
func (c *Connection) failLocked(reason string) {
	c.stopProcTimerLocked()
	c.machine.Fail(reason)

	if c.sess != nil {
		go c.sess.Close()
		c.sess = nil
	}
	c.gen++

	if !c.reconnecting && !c.offline {
		c.reconnecting = true
		go c.recoverLoop()
	}
}

// recoverLoop retries the dialogue connection with backoff. Success
// resets the machine and resends the recipe context; exhausting the
// attempts flips the session offline, where local commands keep
// working without the assistant.
func (c *Connection) recoverLoop() {
	for attempt := 0; attempt < c.params.MaxReconnectAttempts; attempt++ {
		select {
		case <-time.After(c.params.Backoff.Delay(attempt)):
		case <-c.ctx.Done():
			return
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return
		}
		vars := c.vc.Vars()
		c.mu.Unlock()

		dialCtx, cancel := context.WithTimeout(c.ctx, c.params.ConnectTimeout)
		sess, err := c.connect(dialCtx, vars)
		cancel()
		if err != nil {
			c.log.Warn("voice reconnect failed",
				zap.Int("attempt", attempt+1),
				zap.Error(err))
			continue
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			sess.Close()
			return
		}
		c.gen++
		gen := c.gen
		c.sess = sess
		c.ctxDirty = false
		c.reconnecting = false
		wasOffline := c.offline
		c.offline = false
		c.mu.Unlock()

		c.machine.Reset()
		if wasOffline {
			c.sink.OfflineChanged(false)
		}
		c.log.Info("voice session reconnected", zap.Int("attempt", attempt+1))

		go c.receiveLoop(gen, sess)
		return
	}

	c.mu.Lock()
	c.reconnecting = false
	c.offline = true
	c.mu.Unlock()

	c.log.Warn("voice reconnect attempts exhausted",
		zap.Int("attempts", c.params.MaxReconnectAttempts))
	c.sink.OfflineChanged(true)
}

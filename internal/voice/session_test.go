package voice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mise-app/mise-api/internal/dialogue"
)

// Compile-time interface checks for the fakes.
var (
	_ dialogue.Client      = (*fakeClient)(nil)
	_ dialogue.Session     = (*fakeSession)(nil)
	_ dialogue.TokenSource = (*fakeTokens)(nil)
	_ EventSink            = (*recordSink)(nil)
)

type fakeSession struct {
	mu      sync.Mutex
	events  chan dialogue.Event
	audio   [][]byte
	updates []map[string]string
	sendErr error
	closed  bool
	once    sync.Once
}

func newFakeSession() *fakeSession {
	return &fakeSession{events: make(chan dialogue.Event, 16)}
}

func (s *fakeSession) SendAudio(ctx context.Context, pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return s.sendErr
	}
	s.audio = append(s.audio, append([]byte(nil), pcm...))
	return nil
}

func (s *fakeSession) UpdateContext(ctx context.Context, vars map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make(map[string]string, len(vars))
	for k, v := range vars {
		cp[k] = v
	}
	s.updates = append(s.updates, cp)
	return nil
}

func (s *fakeSession) Events() <-chan dialogue.Event { return s.events }

func (s *fakeSession) Close() error {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.events)
	})
	return nil
}

func (s *fakeSession) push(ev dialogue.Event) { s.events <- ev }

func (s *fakeSession) audioCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.audio)
}

func (s *fakeSession) updateCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.updates)
}

func (s *fakeSession) lastUpdate() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.updates) == 0 {
		return nil
	}
	return s.updates[len(s.updates)-1]
}

func (s *fakeSession) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeClient struct {
	mu       sync.Mutex
	fail     int
	sessions []*fakeSession
	cfgs     []dialogue.SessionConfig
}

func (c *fakeClient) StartSession(ctx context.Context, cfg dialogue.SessionConfig) (dialogue.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfgs = append(c.cfgs, cfg)
	if c.fail > 0 {
		c.fail--
		return nil, errors.New("dial refused")
	}
	s := newFakeSession()
	c.sessions = append(c.sessions, s)
	return s, nil
}

func (c *fakeClient) failNext(n int) {
	c.mu.Lock()
	c.fail = n
	c.mu.Unlock()
}

func (c *fakeClient) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cfgs)
}

func (c *fakeClient) session(i int) *fakeSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessions[i]
}

func (c *fakeClient) config(i int) dialogue.SessionConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfgs[i]
}

type fakeTokens struct {
	mu sync.Mutex
	n  int
}

func (f *fakeTokens) Token(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n++
	return fmt.Sprintf("tok-%d", f.n), nil
}

func (f *fakeTokens) minted() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.n
}

type recordSink struct {
	mu          sync.Mutex
	changes     []Change
	audio       int
	transcripts []string
	commands    []Command
	turns       int
	offline     []bool
}

func (r *recordSink) StateChanged(ch Change) {
	r.mu.Lock()
	r.changes = append(r.changes, ch)
	r.mu.Unlock()
}

func (r *recordSink) ResponseAudio(pcm []byte) {
	r.mu.Lock()
	r.audio++
	r.mu.Unlock()
}

func (r *recordSink) TranscriptReceived(text string, final bool) {
	r.mu.Lock()
	r.transcripts = append(r.transcripts, text)
	r.mu.Unlock()
}

func (r *recordSink) CommandDetected(cmd Command) {
	r.mu.Lock()
	r.commands = append(r.commands, cmd)
	r.mu.Unlock()
}

func (r *recordSink) TurnCompleted() {
	r.mu.Lock()
	r.turns++
	r.mu.Unlock()
}

func (r *recordSink) OfflineChanged(offline bool) {
	r.mu.Lock()
	r.offline = append(r.offline, offline)
	r.mu.Unlock()
}

func (r *recordSink) states() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]State, len(r.changes))
	for i, ch := range r.changes {
		out[i] = ch.To
	}
	return out
}

func (r *recordSink) audioFrames() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.audio
}

func (r *recordSink) commandList() []Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Command(nil), r.commands...)
}

func (r *recordSink) offlineList() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.offline...)
}

func (r *recordSink) turnCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.turns
}

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func fastParams() Params {
	return Params{
		Backoff:              Backoff{Base: time.Millisecond, Max: time.Millisecond},
		MaxReconnectAttempts: 3,
	}
}

func newTestConnection(t *testing.T, client *fakeClient, params Params) (*Connection, *recordSink, *fakeTokens) {
	t.Helper()
	sink := &recordSink{}
	tokens := &fakeTokens{}
	caps := ClientCaps{MicPermission: true, AudioReady: true}
	c := NewConnection(client, tokens, "agent-test", testRecipe(), 0, caps, sink, params)
	t.Cleanup(func() { c.Close() })
	return c, sink, tokens
}

func TestConnection_HappyPathTurn(t *testing.T) {
	client := &fakeClient{}
	c, sink, _ := newTestConnection(t, client, fastParams())

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	cfg := client.config(0)
	if cfg.AgentID != "agent-test" {
		t.Errorf("unexpected agent id %q", cfg.AgentID)
	}
	if cfg.Token == "" {
		t.Error("expected a minted token in the session config")
	}
	if cfg.ContextVars["recipe_title"] != "Weeknight Carbonara" {
		t.Errorf("recipe context missing from session config: %v", cfg.ContextVars)
	}

	if err := c.PressTalk(); err != nil {
		t.Fatalf("press failed: %v", err)
	}
	if got := c.Status().State; got != StateListening {
		t.Fatalf("expected listening, got %s", got)
	}

	if err := c.SendAudioChunk(context.Background(), []byte{1, 2, 3}); err != nil {
		t.Fatalf("audio chunk failed: %v", err)
	}
	sess := client.session(0)
	if sess.audioCount() != 1 {
		t.Fatalf("expected 1 forwarded chunk, got %d", sess.audioCount())
	}

	if err := c.ReleaseTalk(); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if got := c.Status().State; got != StateProcessing {
		t.Fatalf("expected processing, got %s", got)
	}

	sess.push(dialogue.AudioFrame{PCM: []byte{9}})
	waitUntil(t, "speaking state", func() bool { return c.Status().State == StateSpeaking })
	waitUntil(t, "forwarded response audio", func() bool { return sink.audioFrames() == 1 })

	sess.push(dialogue.TurnComplete{})
	waitUntil(t, "idle after turn", func() bool { return c.Status().State == StateIdle })
	waitUntil(t, "turn completion", func() bool { return sink.turnCount() == 1 })

	want := []State{StateListening, StateProcessing, StateSpeaking, StateIdle}
	got := sink.states()
	if len(got) != len(want) {
		t.Fatalf("expected %d state changes, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("state change %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestConnection_ReleaseWithoutAudioReturnsIdle(t *testing.T) {
	client := &fakeClient{}
	c, sink, _ := newTestConnection(t, client, fastParams())
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	if err := c.PressTalk(); err != nil {
		t.Fatalf("press failed: %v", err)
	}
	if err := c.ReleaseTalk(); err != nil {
		t.Fatalf("release failed: %v", err)
	}

	if got := c.Status().State; got != StateIdle {
		t.Errorf("expected idle after empty release, got %s", got)
	}
	for _, st := range sink.states() {
		if st == StateProcessing {
			t.Error("empty release should not reach processing")
		}
	}
}

func TestConnection_PressWhileProcessingRejected(t *testing.T) {
	client := &fakeClient{}
	c, _, _ := newTestConnection(t, client, fastParams())
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	c.PressTalk()
	c.SendAudioChunk(context.Background(), []byte{1})
	c.ReleaseTalk()

	err := c.PressTalk()
	var invalid *InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
	if got := c.Status().State; got != StateProcessing {
		t.Errorf("rejected press changed state to %s", got)
	}
}

func TestConnection_PressRequiresMicPermission(t *testing.T) {
	client := &fakeClient{}
	sink := &recordSink{}
	c := NewConnection(client, &fakeTokens{}, "agent-test", testRecipe(), 0,
		ClientCaps{MicPermission: false, AudioReady: true}, sink, fastParams())
	defer c.Close()
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	err := c.PressTalk()
	var op OpError
	if !errors.As(err, &op) {
		t.Fatalf("expected OpError, got %v", err)
	}
	if !strings.Contains(op.Reason, "permission") {
		t.Errorf("reason should mention the permission, got %q", op.Reason)
	}
	if got := c.Status().State; got != StateIdle {
		t.Errorf("rejected press changed state to %s", got)
	}

	c.SetCaps(ClientCaps{MicPermission: true, AudioReady: true})
	if err := c.PressTalk(); err != nil {
		t.Errorf("press after granting permission failed: %v", err)
	}
}

func TestConnection_PressRequiresAudioReady(t *testing.T) {
	client := &fakeClient{}
	sink := &recordSink{}
	c := NewConnection(client, &fakeTokens{}, "agent-test", testRecipe(), 0,
		ClientCaps{MicPermission: true, AudioReady: false}, sink, fastParams())
	defer c.Close()
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	err := c.PressTalk()
	var op OpError
	if !errors.As(err, &op) {
		t.Fatalf("expected OpError, got %v", err)
	}
	if !strings.Contains(op.Reason, "audio output") {
		t.Errorf("reason should mention audio output, got %q", op.Reason)
	}
}

func TestConnection_PressInterruptsSpeaking(t *testing.T) {
	client := &fakeClient{}
	c, _, _ := newTestConnection(t, client, fastParams())
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	driveToSpeaking(t, c, client.session(0))

	if err := c.PressTalk(); err != nil {
		t.Fatalf("barge-in press failed: %v", err)
	}
	if got := c.Status().State; got != StateListening {
		t.Errorf("expected listening after barge-in, got %s", got)
	}
}

func TestConnection_AudioChunkOutsideListeningRejected(t *testing.T) {
	client := &fakeClient{}
	c, _, _ := newTestConnection(t, client, fastParams())
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	err := c.SendAudioChunk(context.Background(), []byte{1})
	var op OpError
	if !errors.As(err, &op) {
		t.Fatalf("expected OpError, got %v", err)
	}
	if client.session(0).audioCount() != 0 {
		t.Error("rejected chunk reached the session")
	}
}

func TestConnection_DeviceInterruptionGoesIdleAndKeepsSession(t *testing.T) {
	client := &fakeClient{}
	c, _, _ := newTestConnection(t, client, fastParams())
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	sess := client.session(0)

	driveToSpeaking(t, c, sess)
	c.HandleInterruption()

	if got := c.Status().State; got != StateIdle {
		t.Fatalf("expected idle after interruption, got %s", got)
	}
	if sess.isClosed() {
		t.Error("interruption must not close the dialogue session")
	}
	if client.calls() != 1 {
		t.Errorf("interruption should not redial, got %d dials", client.calls())
	}
}

func TestConnection_NoAutoResumeAfterInterruption(t *testing.T) {
	client := &fakeClient{}
	c, _, _ := newTestConnection(t, client, fastParams())
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	if err := c.PressTalk(); err != nil {
		t.Fatalf("press failed: %v", err)
	}
	c.HandleInterruption()

	time.Sleep(20 * time.Millisecond)
	if got := c.Status().State; got != StateIdle {
		t.Fatalf("expected capture to stay stopped, got %s", got)
	}

	// The user presses again to resume.
	if err := c.PressTalk(); err != nil {
		t.Errorf("manual resume failed: %v", err)
	}
}

func TestConnection_TransportErrorRecovers(t *testing.T) {
	client := &fakeClient{}
	c, sink, tokens := newTestConnection(t, client, fastParams())
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	client.session(0).push(dialogue.ErrorEvent{Message: "stream broke"})

	waitUntil(t, "error state", func() bool {
		return c.Status().State == StateError || c.Status().State == StateIdle
	})
	waitUntil(t, "reconnect", func() bool { return c.Status().State == StateIdle && client.calls() == 2 })

	if tokens.minted() != 2 {
		t.Errorf("expected a fresh token per dial, got %d", tokens.minted())
	}
	if cfg := client.config(1); cfg.ContextVars["recipe_title"] != "Weeknight Carbonara" {
		t.Errorf("reconnect lost the recipe context: %v", cfg.ContextVars)
	}
	for _, off := range sink.offlineList() {
		if off {
			t.Error("successful recovery should not report offline")
		}
	}

	if err := c.PressTalk(); err != nil {
		t.Errorf("press after recovery failed: %v", err)
	}
}

func TestConnection_ErrorStateCarriesMessage(t *testing.T) {
	client := &fakeClient{}
	c, _, _ := newTestConnection(t, client, Params{
		Backoff:              Backoff{Base: time.Millisecond, Max: time.Millisecond},
		MaxReconnectAttempts: 1,
	})
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	client.failNext(99)
	client.session(0).push(dialogue.ErrorEvent{Message: "stream broke"})

	waitUntil(t, "error state", func() bool { return c.Status().State == StateError })
	if got := c.Status().LastError; got != "stream broke" {
		t.Errorf("expected error message preserved, got %q", got)
	}
}

func TestConnection_TimeoutErrorIsDistinct(t *testing.T) {
	client := &fakeClient{}
	c, _, _ := newTestConnection(t, client, Params{
		Backoff:              Backoff{Base: time.Millisecond, Max: time.Millisecond},
		MaxReconnectAttempts: 1,
	})
	c.params.ProcessingTimeout = 30 * time.Millisecond
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	c.PressTalk()
	c.SendAudioChunk(context.Background(), []byte{1})
	c.ReleaseTalk()
	client.failNext(99)

	waitUntil(t, "timeout error", func() bool { return c.Status().State == StateError })
	if got := c.Status().LastError; got != processingTimeoutMessage {
		t.Errorf("expected timeout message, got %q", got)
	}
}

func TestConnection_BackendTimeoutEventUsesTimeoutMessage(t *testing.T) {
	client := &fakeClient{}
	c, _, _ := newTestConnection(t, client, Params{
		Backoff:              Backoff{Base: time.Millisecond, Max: time.Millisecond},
		MaxReconnectAttempts: 1,
	})
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	client.failNext(99)
	client.session(0).push(dialogue.ErrorEvent{Message: "deadline", Timeout: true})

	waitUntil(t, "error state", func() bool { return c.Status().State == StateError })
	if got := c.Status().LastError; got != processingTimeoutMessage {
		t.Errorf("expected timeout message, got %q", got)
	}
}

func TestConnection_ReconnectExhaustionGoesOffline(t *testing.T) {
	client := &fakeClient{}
	client.failNext(99)
	c, sink, _ := newTestConnection(t, client, Params{
		Backoff:              Backoff{Base: time.Millisecond, Max: time.Millisecond},
		MaxReconnectAttempts: 2,
	})

	if err := c.Start(context.Background()); err == nil {
		t.Fatal("expected start to fail")
	}

	waitUntil(t, "offline mode", func() bool { return c.Offline() })
	if client.calls() != 3 {
		t.Errorf("expected 1 dial + 2 retries, got %d", client.calls())
	}

	offs := sink.offlineList()
	if len(offs) == 0 || !offs[len(offs)-1] {
		t.Errorf("expected an offline notification, got %v", offs)
	}

	err := c.PressTalk()
	var op OpError
	if !errors.As(err, &op) {
		t.Fatalf("expected OpError while offline, got %v", err)
	}
	if !strings.Contains(op.Reason, "offline") {
		t.Errorf("reason should mention offline, got %q", op.Reason)
	}
}

func TestConnection_OfflineLocalCommandsStillWork(t *testing.T) {
	client := &fakeClient{}
	client.failNext(99)
	c, sink, _ := newTestConnection(t, client, Params{
		Backoff:              Backoff{Base: time.Millisecond, Max: time.Millisecond},
		MaxReconnectAttempts: 1,
	})
	c.Start(context.Background())
	waitUntil(t, "offline mode", func() bool { return c.Offline() })

	cmd := c.HandleTextCommand("next step")
	if cmd.Type != CommandNavigation {
		t.Fatalf("expected navigation command, got %s", cmd.Type)
	}
	if got := c.Context().CurrentStep; got != 1 {
		t.Errorf("expected step advanced to 1, got %d", got)
	}

	cmds := sink.commandList()
	if len(cmds) != 1 || cmds[0].Type != CommandNavigation {
		t.Errorf("expected the command surfaced to the sink, got %v", cmds)
	}

	if q := c.HandleTextCommand("can I use oat milk"); q.Type != CommandQuery {
		t.Errorf("expected query classification, got %s", q.Type)
	}
}

func TestConnection_ManualReconnectLeavesOffline(t *testing.T) {
	client := &fakeClient{}
	client.failNext(3)
	c, sink, _ := newTestConnection(t, client, Params{
		Backoff:              Backoff{Base: time.Millisecond, Max: time.Millisecond},
		MaxReconnectAttempts: 2,
	})
	c.Start(context.Background())
	waitUntil(t, "offline mode", func() bool { return c.Offline() })

	if err := c.Reconnect(); err != nil {
		t.Fatalf("manual reconnect failed: %v", err)
	}
	waitUntil(t, "back online", func() bool { return !c.Offline() && c.Status().State == StateIdle })

	offs := sink.offlineList()
	if len(offs) < 2 || offs[len(offs)-1] {
		t.Errorf("expected offline then online notifications, got %v", offs)
	}

	if err := c.PressTalk(); err != nil {
		t.Errorf("press after manual reconnect failed: %v", err)
	}
}

func TestConnection_ContextUpdateMidTurnWaitsForTurnEnd(t *testing.T) {
	client := &fakeClient{}
	c, _, _ := newTestConnection(t, client, fastParams())
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	sess := client.session(0)

	driveToSpeaking(t, c, sess)

	c.SetStep(2)
	time.Sleep(20 * time.Millisecond)
	if sess.updateCount() != 0 {
		t.Fatal("context update must not interrupt an active turn")
	}

	sess.push(dialogue.TurnComplete{})
	waitUntil(t, "deferred context push", func() bool { return sess.updateCount() == 1 })
	if got := sess.lastUpdate()["current_step"]; got != "3" {
		t.Errorf("expected one-based step 3 in the update, got %q", got)
	}
}

func TestConnection_ContextUpdateWhileIdleSendsImmediately(t *testing.T) {
	client := &fakeClient{}
	c, _, _ := newTestConnection(t, client, fastParams())
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	sess := client.session(0)

	c.SetStep(1)
	waitUntil(t, "context push", func() bool { return sess.updateCount() == 1 })
	if got := sess.lastUpdate()["current_step"]; got != "2" {
		t.Errorf("expected one-based step 2, got %q", got)
	}
}

func TestConnection_ScalingCommandRebuildsContext(t *testing.T) {
	client := &fakeClient{}
	c, _, _ := newTestConnection(t, client, fastParams())
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	cmd := c.HandleTextCommand("double the recipe")
	if cmd.Type != CommandScaling {
		t.Fatalf("expected scaling command, got %s", cmd.Type)
	}

	vc := c.Context()
	if vc.Multiplier != 2 {
		t.Errorf("expected multiplier 2, got %v", vc.Multiplier)
	}
	if vc.Ingredients[0] != "400 g spaghetti" {
		t.Errorf("expected doubled amounts, got %q", vc.Ingredients[0])
	}
}

func TestConnection_ScalingToServingsUsesRecipeBase(t *testing.T) {
	client := &fakeClient{}
	c, _, _ := newTestConnection(t, client, fastParams())
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	// The test recipe serves 2, so 6 people means tripling.
	cmd := c.HandleTextCommand("scale the recipe for 6 people")
	if cmd.Type != CommandScaling {
		t.Fatalf("expected scaling command, got %s", cmd.Type)
	}

	vc := c.Context()
	if vc.Multiplier != 3 {
		t.Errorf("expected multiplier 3, got %v", vc.Multiplier)
	}
	if vc.Servings != 6 {
		t.Errorf("expected 6 servings, got %d", vc.Servings)
	}
	if vc.Ingredients[0] != "600 g spaghetti" {
		t.Errorf("expected tripled amounts, got %q", vc.Ingredients[0])
	}
}

func TestConnection_ScalingIsRelativeToOriginal(t *testing.T) {
	client := &fakeClient{}
	c, _, _ := newTestConnection(t, client, fastParams())
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	c.HandleTextCommand("double the recipe")
	c.HandleTextCommand("double the recipe")

	// Doubling twice is still double the written recipe, not 4x.
	if vc := c.Context(); vc.Ingredients[0] != "400 g spaghetti" {
		t.Errorf("expected amounts relative to the original, got %q", vc.Ingredients[0])
	}
}

func TestConnection_FinalTranscriptTriggersLocalCommand(t *testing.T) {
	client := &fakeClient{}
	c, sink, _ := newTestConnection(t, client, fastParams())
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	sess := client.session(0)

	c.PressTalk()
	c.SendAudioChunk(context.Background(), []byte{1})
	c.ReleaseTalk()

	sess.push(dialogue.Transcript{Text: "go to step 3", Final: true})

	waitUntil(t, "local command", func() bool { return len(sink.commandList()) == 1 })
	cmds := sink.commandList()
	if cmds[0].Type != CommandNavigation || cmds[0].Navigation.TargetStep != 2 {
		t.Fatalf("expected goto step index 2, got %+v", cmds[0])
	}
	if got := c.Context().CurrentStep; got != 2 {
		t.Errorf("expected context moved to step index 2, got %d", got)
	}
}

func TestConnection_PartialTranscriptDoesNotTriggerCommands(t *testing.T) {
	client := &fakeClient{}
	c, sink, _ := newTestConnection(t, client, fastParams())
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	sess := client.session(0)

	sess.push(dialogue.Transcript{Text: "go to step 3", Final: false})

	waitUntil(t, "transcript surfaced", func() bool {
		sink.mu.Lock()
		defer sink.mu.Unlock()
		return len(sink.transcripts) == 1
	})
	if len(sink.commandList()) != 0 {
		t.Error("partial transcript must not execute commands")
	}
	if got := c.Context().CurrentStep; got != 0 {
		t.Errorf("partial transcript moved the step to %d", got)
	}
}

func TestConnection_ResponseAudioWhileListeningForcesSpeaking(t *testing.T) {
	client := &fakeClient{}
	c, sink, _ := newTestConnection(t, client, fastParams())
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	sess := client.session(0)

	c.PressTalk()
	c.SendAudioChunk(context.Background(), []byte{1})

	// The assistant starts answering before the user releases the button.
	sess.push(dialogue.AudioFrame{PCM: []byte{9}})
	waitUntil(t, "speaking state", func() bool { return c.Status().State == StateSpeaking })

	want := []State{StateListening, StateProcessing, StateSpeaking}
	got := sink.states()
	if len(got) != len(want) {
		t.Fatalf("expected transitions %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("transition %d: expected %s, got %s", i, want[i], got[i])
		}
	}
	if sink.audioFrames() != 1 {
		t.Errorf("expected the frame forwarded, got %d", sink.audioFrames())
	}
}

func TestConnection_AudioSendFailureTriggersRecovery(t *testing.T) {
	client := &fakeClient{}
	c, _, _ := newTestConnection(t, client, fastParams())
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	sess := client.session(0)
	sess.mu.Lock()
	sess.sendErr = errors.New("broken pipe")
	sess.mu.Unlock()

	c.PressTalk()
	if err := c.SendAudioChunk(context.Background(), []byte{1}); err == nil {
		t.Fatal("expected the chunk send to fail")
	}

	waitUntil(t, "recovery", func() bool {
		return c.Status().State == StateIdle && client.calls() == 2
	})
}

func TestConnection_CloseIsIdempotent(t *testing.T) {
	client := &fakeClient{}
	c, _, _ := newTestConnection(t, client, fastParams())
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	driveToSpeaking(t, c, client.session(0))

	if err := c.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if got := c.Status().State; got != StateIdle {
		t.Errorf("expected idle after close, got %s", got)
	}
	if !client.session(0).isClosed() {
		t.Error("close should close the dialogue session")
	}
	if err := c.Close(); err != nil {
		t.Errorf("second close failed: %v", err)
	}

	if err := c.PressTalk(); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed after close, got %v", err)
	}
}

func TestConnection_StartFailureRecoversAutomatically(t *testing.T) {
	client := &fakeClient{}
	client.failNext(1)
	c, _, _ := newTestConnection(t, client, fastParams())

	err := c.Start(context.Background())
	if err == nil {
		t.Fatal("expected start to fail")
	}
	if got := c.Status().State; got != StateError {
		t.Fatalf("expected error state after failed start, got %s", got)
	}

	waitUntil(t, "automatic recovery", func() bool {
		return c.Status().State == StateIdle && client.calls() == 2
	})
}

// driveToSpeaking walks an idle connection through a full press, chunk,
// release, response-audio sequence.
func driveToSpeaking(t *testing.T, c *Connection, sess *fakeSession) {
	t.Helper()

	if err := c.PressTalk(); err != nil {
		t.Fatalf("press failed: %v", err)
	}
	if err := c.SendAudioChunk(context.Background(), []byte{1}); err != nil {
		t.Fatalf("chunk failed: %v", err)
	}
	if err := c.ReleaseTalk(); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	sess.push(dialogue.AudioFrame{PCM: []byte{2}})
	waitUntil(t, "speaking state", func() bool { return c.Status().State == StateSpeaking })
}

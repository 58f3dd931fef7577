// Package livews adapts the hosted dialogue backend's websocket protocol
// to the dialogue contract. Capture audio goes out as binary frames;
// everything else, in both directions, is small JSON envelopes.
package livews

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mise-app/mise-api/internal/dialogue"
	"github.com/mise-app/mise-api/internal/logger"
)

const (
	// writeWait is the deadline for a single outbound frame.
	writeWait = 10 * time.Second

	// pongWait bounds how long the read side waits between pongs.
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// handshakeWait bounds the session.start / session.ready exchange.
	handshakeWait = 10 * time.Second

	// eventBuffer absorbs response-audio bursts without stalling reads.
	eventBuffer = 64
)

// Message types on the wire.
const (
	msgSessionStart  = "session.start"
	msgSessionReady  = "session.ready"
	msgContextUpdate = "context.update"
	msgAudio         = "audio"
	msgTranscript    = "transcript"
	msgTurnComplete  = "turn.complete"
	msgError         = "error"
)

type clientMsg struct {
	Type       string            `json:"type"`
	Token      string            `json:"token,omitempty"`
	AgentID    string            `json:"agent_id,omitempty"`
	SampleRate int               `json:"sample_rate,omitempty"`
	Context    map[string]string `json:"context,omitempty"`
}

type serverMsg struct {
	Type    string `json:"type"`
	Audio   string `json:"audio,omitempty"`
	Text    string `json:"text,omitempty"`
	Final   bool   `json:"final,omitempty"`
	Message string `json:"message,omitempty"`
	Timeout bool   `json:"timeout,omitempty"`
}

// Client dials the dialogue backend over websocket.
type Client struct {
	url    string
	dialer *websocket.Dialer
	log    *zap.Logger
}

// NewClient returns a Client for the given websocket URL.
func NewClient(url string) *Client {
	return &Client{
		url:    url,
		dialer: websocket.DefaultDialer,
		log:    logger.Named("dialogue.livews"),
	}
}

// StartSession dials the backend, performs the start handshake, and
// returns a live session once the backend acknowledges it.
func (c *Client) StartSession(ctx context.Context, cfg dialogue.SessionConfig) (dialogue.Session, error) {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial dialogue backend: %w", err)
	}

	start := clientMsg{
		Type:       msgSessionStart,
		Token:      cfg.Token,
		AgentID:    cfg.AgentID,
		SampleRate: cfg.SampleRate,
		Context:    cfg.ContextVars,
	}
	conn.SetWriteDeadline(time.Now().Add(handshakeWait))
	if err := conn.WriteJSON(start); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to send session start: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(handshakeWait))
	var ack serverMsg
	if err := conn.ReadJSON(&ack); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to read session ack: %w", err)
	}
	switch ack.Type {
	case msgSessionReady:
	case msgError:
		conn.Close()
		return nil, fmt.Errorf("dialogue backend rejected session: %s", ack.Message)
	default:
		conn.Close()
		return nil, fmt.Errorf("unexpected handshake message type: %s", ack.Type)
	}

	s := &session{
		conn:   conn,
		events: make(chan dialogue.Event, eventBuffer),
		done:   make(chan struct{}),
		log:    c.log,
	}

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go s.readLoop()
	go s.pingLoop()

	return s, nil
}

type session struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	events chan dialogue.Event

	done      chan struct{}
	closeOnce sync.Once

	log *zap.Logger
}

func (s *session) SendAudio(ctx context.Context, pcm []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteMessage(websocket.BinaryMessage, pcm); err != nil {
		return fmt.Errorf("failed to send audio chunk: %w", err)
	}
	return nil
}

func (s *session) UpdateContext(ctx context.Context, vars map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	msg := clientMsg{Type: msgContextUpdate, Context: vars}
	if err := s.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("failed to send context update: %w", err)
	}
	return nil
}

func (s *session) Events() <-chan dialogue.Event {
	return s.events
}

// Close ends the session, attempting a clean close frame first. Safe to
// call more than once and from any goroutine.
func (s *session) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)

		s.writeMu.Lock()
		s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		s.writeMu.Unlock()

		s.conn.Close()
	})
	return nil
}

// readLoop delivers inbound events until the connection drops. On an
// unclean drop it emits one ErrorEvent before closing the stream.
func (s *session) readLoop() {
	defer close(s.events)

	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return
			}
			s.log.Warn("dialogue read failed", zap.Error(err))
			s.emit(dialogue.ErrorEvent{Message: err.Error()})
			return
		}

		// Response audio may arrive as raw binary frames as well.
		if msgType == websocket.BinaryMessage {
			s.emit(dialogue.AudioFrame{PCM: data})
			continue
		}

		ev, ok := decodeEvent(data)
		if !ok {
			continue
		}
		if !s.emit(ev) {
			return
		}
	}
}

func (s *session) emit(ev dialogue.Event) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	}
}

func (s *session) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.writeMu.Lock()
			err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			s.writeMu.Unlock()
			if err != nil {
				return
			}
		case <-s.done:
			return
		}
	}
}

// decodeEvent maps one JSON envelope to a dialogue event. Unknown types
// and malformed payloads are skipped so protocol additions do not break
// older servers.
func decodeEvent(data []byte) (dialogue.Event, bool) {
	var msg serverMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, false
	}

	switch msg.Type {
	case msgAudio:
		pcm, err := base64.StdEncoding.DecodeString(msg.Audio)
		if err != nil {
			return nil, false
		}
		return dialogue.AudioFrame{PCM: pcm}, true
	case msgTranscript:
		return dialogue.Transcript{Text: msg.Text, Final: msg.Final}, true
	case msgTurnComplete:
		return dialogue.TurnComplete{}, true
	case msgError:
		return dialogue.ErrorEvent{Message: msg.Message, Timeout: msg.Timeout}, true
	default:
		return nil, false
	}
}

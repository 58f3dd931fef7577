package ws

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/mise-app/mise-api/internal/config"
	"github.com/mise-app/mise-api/internal/dialogue"
	"github.com/mise-app/mise-api/internal/logger"
	"github.com/mise-app/mise-api/internal/models"
	"github.com/mise-app/mise-api/internal/repository"
	"github.com/mise-app/mise-api/internal/service"
	"github.com/mise-app/mise-api/internal/voice"
	"go.uber.org/zap"
)

// WebSocket message types for the cook-mode protocol, client to server.
const (
	MsgTypeSessionStart  = "session_start"  // Begin the live voice session
	MsgTypePTTPress      = "ptt_press"      // Push-to-talk pressed
	MsgTypePTTRelease    = "ptt_release"    // Push-to-talk released
	MsgTypeAudioChunk    = "audio_chunk"    // One chunk of capture audio
	MsgTypeContextUpdate = "context_update" // Step moved or recipe rescaled by hand
	MsgTypeInterruption  = "interruption"   // Device audio interruption (call, alarm)
	MsgTypeReset         = "reset"          // Clear a sticky error state
	MsgTypeTextCommand   = "text_command"   // Typed or on-device recognized command text
	MsgTypeVoiceNote     = "voice_note"     // One-shot clip for transcription
	MsgTypeChatMessage   = "chat_message"   // Typed cooking question
	MsgTypeSessionEnd    = "session_end"    // Clean goodbye
)

// WebSocket message types for the cook-mode protocol, server to client.
const (
	MsgTypeSessionReady      = "session_ready"      // Voice session is up, carries the context
	MsgTypeStateChanged      = "state_changed"      // Voice state machine transition
	MsgTypeAudio             = "audio"              // Response speech audio
	MsgTypeTranscript        = "transcript"         // Recognized speech, partial until final
	MsgTypeTurnComplete      = "turn_complete"      // One full response turn finished
	MsgTypeNavigationCommand = "navigation_command" // Parsed step navigation
	MsgTypeTimerCommand      = "timer_command"      // Parsed timer request, runs on the client
	MsgTypeScalingCommand    = "scaling_command"    // Parsed recipe scaling
	MsgTypeChatResponse      = "chat_response"      // Answer to a question
	MsgTypeVoiceNoteResult   = "voice_note_result"  // Transcribed and classified voice note
	MsgTypeOfflineMode       = "offline_mode"       // Recovery gave up or the backend came back
	MsgTypeError             = "error"              // Error message
)

// WSMessage is the envelope for every message on the cook-mode socket.
type WSMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// SessionStartPayload begins the live voice session. Step and Scale
// restore a session the client is resuming mid-recipe.
type SessionStartPayload struct {
	MicPermission bool    `json:"mic_permission"`
	AudioReady    bool    `json:"audio_ready"`
	Step          int     `json:"step"`
	Scale         float64 `json:"scale,omitempty"`
}

// SessionReadyPayload answers session_start with the machine status and
// the recipe context the assistant was primed with.
type SessionReadyPayload struct {
	State   string                   `json:"state"`
	Error   string                   `json:"error,omitempty"`
	Offline bool                     `json:"offline"`
	Context voice.RecipeVoiceContext `json:"context"`
}

// StateChangedPayload reports one voice state machine transition.
type StateChangedPayload struct {
	State   string `json:"state"`
	Error   string `json:"error,omitempty"`
	Offline bool   `json:"offline"`
}

// AudioPayload carries base64 PCM in either direction.
type AudioPayload struct {
	Audio string `json:"audio"`
}

// TranscriptPayload is recognized speech, partial until Final.
type TranscriptPayload struct {
	Text  string `json:"text"`
	Final bool   `json:"final"`
}

// ContextUpdatePayload moves the current step or rescales the recipe.
// Nil fields are left unchanged.
type ContextUpdatePayload struct {
	Step  *int     `json:"step,omitempty"`
	Scale *float64 `json:"scale,omitempty"`
}

// InterruptionPayload reports a device audio interruption phase.
type InterruptionPayload struct {
	Event string `json:"event"` // began, ended
}

// TextCommandPayload carries typed or on-device recognized text for the
// local command parser.
type TextCommandPayload struct {
	Text string `json:"text"`
}

// ChatMessagePayload asks a typed cooking question. Answers are
// grounded in the recipe being cooked.
type ChatMessagePayload struct {
	Message string `json:"message"`
}

// ChatResponsePayload returns the assistant's answer.
type ChatResponsePayload struct {
	Message string `json:"message"`
}

// CommandPayload is one parsed voice command. The envelope type says
// which of the per-type records is set.
type CommandPayload struct {
	Raw        string                   `json:"raw"`
	Confidence float64                  `json:"confidence"`
	Timer      *voice.TimerCommand      `json:"timer,omitempty"`
	Navigation *voice.NavigationCommand `json:"navigation,omitempty"`
	Scaling    *voice.ScalingCommand    `json:"scaling,omitempty"`
}

// OfflineModePayload reports the offline flag flipping.
type OfflineModePayload struct {
	Offline bool `json:"offline"`
}

// ErrorPayload carries an error message to the client.
type ErrorPayload struct {
	Message string `json:"message"`
}

// qaTimeout bounds one Q&A or voice note round trip.
const qaTimeout = 30 * time.Second

// CookHandler owns the live cook-mode voice surface. Each socket gets
// its own voice connection; the handler supplies the shared services.
type CookHandler struct {
	Hub          *Hub
	Cfg          *config.Config
	Dialogue     dialogue.Client
	UserRepo     repository.UserRepo
	Recipes      *service.RecipeService
	Assistant    *service.AssistantService
	Voice        *service.VoiceService
	Subscription *service.SubscriptionService
}

// NewCookHandler returns a new CookHandler.
func NewCookHandler(hub *Hub, cfg *config.Config, dialogueClient dialogue.Client, userRepo repository.UserRepo, recipes *service.RecipeService, assistant *service.AssistantService, voiceService *service.VoiceService, subscription *service.SubscriptionService) *CookHandler {
	return &CookHandler{
		Hub:          hub,
		Cfg:          cfg,
		Dialogue:     dialogueClient,
		UserRepo:     userRepo,
		Recipes:      recipes,
		Assistant:    assistant,
		Voice:        voiceService,
		Subscription: subscription,
	}
}

// upgrader is configured for cook-mode WebSocket upgrades.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		switch origin {
		case "https://mise.app",
			"https://www.mise.app",
			"https://api.mise.app":
			return true
		}
		// Native clients send no Origin header.
		if origin == "" {
			return true
		}
		// Allow localhost for development
		if strings.HasPrefix(origin, "http://localhost:") || origin == "http://localhost" {
			return true
		}
		return false
	},
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// HandleCookSession upgrades an HTTP request to the cook-mode WebSocket.
// Authentication is done via a "token" query parameter because WebSocket
// connections cannot easily use Authorization headers. Recipe access and
// the voice allowance are checked before the upgrade so the client gets
// a proper status code instead of an immediate close.
func (h *CookHandler) HandleCookSession(c *gin.Context) {
	log := logger.Get()

	recipeID64, err := strconv.ParseUint(c.Param("recipe_id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid recipe ID"})
		return
	}
	recipeID := uint(recipeID64)

	userID, ok := h.authenticate(c)
	if !ok {
		return
	}

	user, err := h.UserRepo.GetUserByID(userID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	recipe, err := h.Recipes.GetRecipeModel(userID, recipeID)
	if err != nil {
		switch {
		case repository.IsNotFound(err):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrRecipePrivate):
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		default:
			log.Error("cook session recipe load failed",
				zap.Uint("user_id", userID),
				zap.Uint("recipe_id", recipeID),
				zap.Error(err),
			)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load recipe"})
		}
		return
	}

	if err := h.Subscription.CheckVoiceAssistant(userID); err != nil {
		if errors.Is(err, service.ErrVoiceQuotaExceeded) {
			c.JSON(http.StatusPaymentRequired, gin.H{"error": err.Error()})
		} else {
			log.Error("voice quota check failed", zap.Uint("user_id", userID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check voice allowance"})
		}
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("websocket upgrade failed",
			zap.Uint("user_id", userID),
			zap.Uint("recipe_id", recipeID),
			zap.Error(err),
		)
		return
	}

	client := NewClient(h.Hub, conn, userID, recipeID)
	if !h.Hub.register(client) {
		conn.Close()
		return
	}

	sess := &cookSession{handler: h, client: client, user: user, recipe: recipe}

	log.Info("cook session opened",
		zap.Uint("user_id", userID),
		zap.Uint("recipe_id", recipeID),
	)

	go client.WritePump()
	go func() {
		client.ReadPump(sess.handleMessage)
		sess.teardown()
	}()
}

// authenticate validates the token query parameter and returns the
// user ID it carries.
func (h *CookHandler) authenticate(c *gin.Context) (uint, bool) {
	tokenString := c.Query("token")
	if tokenString == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "token query parameter is required"})
		return 0, false
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(h.Cfg.EnvVars.JwtSecretKey), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
		return 0, false
	}

	// Refresh tokens must not open sessions.
	tokenType, ok := claims["type"].(string)
	if !ok || tokenType != "access" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token type"})
		return 0, false
	}

	idFloat, ok := claims["user_id"].(float64)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid user_id in token"})
		return 0, false
	}
	return uint(idFloat), true
}

// cookSession is the server half of one live cook-mode session: the
// socket, the user, the recipe being cooked, and the voice connection
// once the client starts it.
type cookSession struct {
	handler *CookHandler
	client  *Client
	user    *models.User
	recipe  *models.Recipe

	mu        sync.Mutex
	voiceConn *voice.Connection
	startedAt time.Time
	torn      bool
}

// handleMessage parses an incoming message and routes it.
func (s *cookSession) handleMessage(data []byte) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError("invalid message format")
		return
	}

	switch msg.Type {
	case MsgTypeSessionStart:
		s.handleSessionStart(msg.Payload)
	case MsgTypePTTPress:
		s.handlePTTPress()
	case MsgTypePTTRelease:
		s.handlePTTRelease()
	case MsgTypeAudioChunk:
		s.handleAudioChunk(msg.Payload)
	case MsgTypeContextUpdate:
		s.handleContextUpdate(msg.Payload)
	case MsgTypeInterruption:
		s.handleInterruption(msg.Payload)
	case MsgTypeReset:
		s.handleReset()
	case MsgTypeTextCommand:
		s.handleTextCommand(msg.Payload)
	case MsgTypeVoiceNote:
		s.handleVoiceNote(msg.Payload)
	case MsgTypeChatMessage:
		s.handleChatMessage(msg.Payload)
	case MsgTypeSessionEnd:
		s.handleSessionEnd()
	default:
		s.sendError("unknown message type: " + msg.Type)
	}
}

// handleSessionStart opens the dialogue connection for this recipe.
// The session_ready reply carries the status even when the dial fails,
// so the client renders the error banner while recovery runs.
func (s *cookSession) handleSessionStart(payload json.RawMessage) {
	var p SessionStartPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		s.sendError("invalid session_start payload")
		return
	}

	s.mu.Lock()
	if s.voiceConn != nil {
		s.mu.Unlock()
		s.sendError("session already started")
		return
	}

	h := s.handler
	tokens := &service.DialogueTokenSource{
		Key:     h.Cfg.EnvVars.DialogueAuthKey,
		AgentID: h.Cfg.EnvVars.DialogueAgentID,
		UserID:  s.user.ID,
	}
	caps := voice.ClientCaps{MicPermission: p.MicPermission, AudioReady: p.AudioReady}
	conn := voice.NewConnection(h.Dialogue, tokens, h.Cfg.EnvVars.DialogueAgentID,
		s.recipe, p.Step, caps, &sessionSink{session: s}, voice.DefaultParams())
	if p.Scale > 0 && p.Scale != 1 {
		conn.SetScale(p.Scale)
	}
	s.voiceConn = conn
	s.startedAt = time.Now()
	s.mu.Unlock()

	if err := conn.Start(context.Background()); err != nil {
		logger.Get().Warn("cook session dial failed",
			zap.Uint("user_id", s.user.ID),
			zap.Uint("recipe_id", s.recipe.ID),
			zap.Error(err),
		)
	}

	status := conn.Status()
	s.send(MsgTypeSessionReady, SessionReadyPayload{
		State:   string(status.State),
		Error:   status.LastError,
		Offline: conn.Offline(),
		Context: conn.Context(),
	})
}

func (s *cookSession) handlePTTPress() {
	conn := s.conn()
	if conn == nil {
		s.sendError("session not started")
		return
	}
	if err := conn.PressTalk(); err != nil {
		s.sendError(err.Error())
	}
}

func (s *cookSession) handlePTTRelease() {
	conn := s.conn()
	if conn == nil {
		s.sendError("session not started")
		return
	}
	if err := conn.ReleaseTalk(); err != nil {
		s.sendError(err.Error())
	}
}

// handleAudioChunk forwards one capture chunk. Chunks landing outside
// the listening state are stragglers from a released turn and are
// dropped quietly; transport failures surface through the state
// machine, not per chunk.
func (s *cookSession) handleAudioChunk(payload json.RawMessage) {
	conn := s.conn()
	if conn == nil {
		return
	}

	var p AudioPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		s.sendError("invalid audio_chunk payload")
		return
	}
	pcm, err := base64.StdEncoding.DecodeString(p.Audio)
	if err != nil {
		s.sendError("invalid audio encoding")
		return
	}
	if len(pcm) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()
	_ = conn.SendAudioChunk(ctx, pcm)
}

func (s *cookSession) handleContextUpdate(payload json.RawMessage) {
	conn := s.conn()
	if conn == nil {
		s.sendError("session not started")
		return
	}

	var p ContextUpdatePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		s.sendError("invalid context_update payload")
		return
	}
	if p.Step != nil {
		conn.SetStep(*p.Step)
	}
	if p.Scale != nil {
		conn.SetScale(*p.Scale)
	}
}

// handleInterruption reacts to a device-level audio interruption. Only
// the start needs action: capture and playback stop, and the user
// presses talk again when ready, so "ended" is just an acknowledgment.
func (s *cookSession) handleInterruption(payload json.RawMessage) {
	conn := s.conn()
	if conn == nil {
		return
	}

	var p InterruptionPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		s.sendError("invalid interruption payload")
		return
	}
	if p.Event == "began" {
		conn.HandleInterruption()
	}
}

func (s *cookSession) handleReset() {
	conn := s.conn()
	if conn == nil {
		s.sendError("session not started")
		return
	}
	conn.Reset()
}

// handleTextCommand runs the local parser on typed or on-device
// recognized text. Navigation, timers and scaling execute locally even
// when the dialogue backend is offline; queries fall back to the
// text Q&A path.
func (s *cookSession) handleTextCommand(payload json.RawMessage) {
	conn := s.conn()
	if conn == nil {
		s.sendError("session not started")
		return
	}

	var p TextCommandPayload
	if err := json.Unmarshal(payload, &p); err != nil || strings.TrimSpace(p.Text) == "" {
		s.sendError("invalid text_command payload")
		return
	}

	cmd := conn.HandleTextCommand(p.Text)
	if cmd.Type == voice.CommandQuery {
		go s.answerQuestion(cmd.Query)
	}
}

func (s *cookSession) handleVoiceNote(payload json.RawMessage) {
	var p AudioPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		s.sendError("invalid voice_note payload")
		return
	}
	audio, err := base64.StdEncoding.DecodeString(p.Audio)
	if err != nil || len(audio) == 0 {
		s.sendError("invalid audio encoding")
		return
	}

	// Off the read loop so a slow transcription does not stall capture.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), qaTimeout)
		defer cancel()

		result, err := s.handler.Voice.ProcessVoiceNote(ctx, audio)
		if err != nil {
			logger.Get().Error("voice note failed",
				zap.Uint("user_id", s.user.ID),
				zap.Error(err),
			)
			s.sendError("failed to process voice note")
			return
		}
		s.send(MsgTypeVoiceNoteResult, result)
	}()
}

// handleChatMessage answers a typed question. It works without a
// started voice session, e.g. when the microphone permission was
// denied and the user cooks by text alone.
func (s *cookSession) handleChatMessage(payload json.RawMessage) {
	var p ChatMessagePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		s.sendError("invalid chat_message payload")
		return
	}
	if strings.TrimSpace(p.Message) == "" {
		s.sendError("message cannot be empty")
		return
	}
	go s.answerQuestion(p.Message)
}

func (s *cookSession) handleSessionEnd() {
	s.teardown()
	s.client.finish()
}

// answerQuestion routes one typed or transcribed question through the
// recipe Q&A path. Questions count against the AI generation allowance
// like their REST equivalent.
func (s *cookSession) answerQuestion(question string) {
	h := s.handler
	log := logger.Get()

	if err := h.Subscription.CheckAIGeneration(s.user.ID); err != nil {
		if errors.Is(err, service.ErrAIQuotaExceeded) {
			s.sendError(err.Error())
		} else {
			log.Error("quota check failed", zap.Uint("user_id", s.user.ID), zap.Error(err))
			s.sendError("failed to answer question")
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), qaTimeout)
	defer cancel()

	answer, err := h.Assistant.AnswerQuestion(ctx, s.user, question, s.recipe.ID)
	if err != nil {
		log.Error("cook question failed",
			zap.Uint("user_id", s.user.ID),
			zap.Uint("recipe_id", s.recipe.ID),
			zap.Error(err),
		)
		s.sendError("failed to answer question")
		return
	}
	// The answer was already spoken for; a failed usage write only
	// loses the count, never the answer.
	if err := h.Subscription.ConsumeAIGeneration(s.user.ID); err != nil {
		log.Error("failed to record AI usage", zap.Uint("user_id", s.user.ID), zap.Error(err))
	}

	s.send(MsgTypeChatResponse, ChatResponsePayload{Message: answer})
}

// teardown closes the voice connection and records the session's voice
// time. Runs once; later calls are no-ops.
func (s *cookSession) teardown() {
	s.mu.Lock()
	if s.torn {
		s.mu.Unlock()
		return
	}
	s.torn = true
	conn := s.voiceConn
	startedAt := s.startedAt
	s.mu.Unlock()

	if conn == nil {
		return
	}
	conn.Close()

	seconds := int(time.Since(startedAt).Seconds())
	if err := s.handler.Subscription.AddVoiceUsage(s.user.ID, seconds); err != nil {
		logger.Get().Error("failed to record voice usage",
			zap.Uint("user_id", s.user.ID),
			zap.Error(err),
		)
	}

	logger.Get().Info("cook session ended",
		zap.Uint("user_id", s.user.ID),
		zap.Uint("recipe_id", s.recipe.ID),
		zap.Int("voice_seconds", seconds),
	)
}

// conn returns the live voice connection, or nil before session_start.
func (s *cookSession) conn() *voice.Connection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.voiceConn
}

// send marshals and queues one message. Queueing never blocks; dropped
// audio is routine backpressure, anything else gets logged.
func (s *cookSession) send(msgType string, payload interface{}) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			logger.Get().Error("cook message marshal failed",
				zap.String("type", msgType),
				zap.Error(err),
			)
			return
		}
		raw = data
	}
	data, err := json.Marshal(WSMessage{Type: msgType, Payload: raw})
	if err != nil {
		return
	}
	if !s.client.Enqueue(data) && msgType != MsgTypeAudio {
		logger.Get().Warn("cook message dropped",
			zap.String("type", msgType),
			zap.Uint("user_id", s.user.ID),
		)
	}
}

// sendError sends an error message to the client.
func (s *cookSession) sendError(message string) {
	s.send(MsgTypeError, ErrorPayload{Message: message})
}

// sessionSink forwards voice connection events onto the socket. Its
// methods only marshal and enqueue: they never block and never call
// back into the connection.
type sessionSink struct {
	session *cookSession
	offline atomic.Bool
}

var _ voice.EventSink = (*sessionSink)(nil)

func (k *sessionSink) StateChanged(ch voice.Change) {
	p := StateChangedPayload{State: string(ch.To), Offline: k.offline.Load()}
	if ch.To == voice.StateError {
		p.Error = ch.Reason
	}
	k.session.send(MsgTypeStateChanged, p)
}

func (k *sessionSink) ResponseAudio(pcm []byte) {
	k.session.send(MsgTypeAudio, AudioPayload{Audio: base64.StdEncoding.EncodeToString(pcm)})
}

func (k *sessionSink) TranscriptReceived(text string, final bool) {
	k.session.send(MsgTypeTranscript, TranscriptPayload{Text: text, Final: final})
}

func (k *sessionSink) CommandDetected(cmd voice.Command) {
	var msgType string
	switch cmd.Type {
	case voice.CommandNavigation:
		msgType = MsgTypeNavigationCommand
	case voice.CommandTimer:
		msgType = MsgTypeTimerCommand
	case voice.CommandScaling:
		msgType = MsgTypeScalingCommand
	default:
		return
	}
	k.session.send(msgType, CommandPayload{
		Raw:        cmd.Raw,
		Confidence: cmd.Confidence,
		Timer:      cmd.Timer,
		Navigation: cmd.Navigation,
		Scaling:    cmd.Scaling,
	})
}

func (k *sessionSink) TurnCompleted() {
	k.session.send(MsgTypeTurnComplete, nil)
}

func (k *sessionSink) OfflineChanged(offline bool) {
	k.offline.Store(offline)
	k.session.send(MsgTypeOfflineMode, OfflineModePayload{Offline: offline})
}

package service

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mise-app/mise-api/internal/ai"
	"github.com/mise-app/mise-api/internal/config"
	"github.com/mise-app/mise-api/internal/dialogue"
	"github.com/mise-app/mise-api/internal/logger"
	"go.uber.org/zap"
)

// VoiceService handles one-shot voice features: recorded notes transcribed
// and classified outside of a live cook-mode session.
type VoiceService struct {
	Cfg            *config.Config
	TextProvider   ai.TextProvider
	SpeechProvider ai.SpeechProvider
}

// VoiceNoteResult is the response object for a processed voice note.
type VoiceNoteResult struct {
	Transcript string `json:"transcript"`
	Intent     string `json:"intent"`
	Text       string `json:"text"`
}

// NewVoiceService creates a new VoiceService.
func NewVoiceService(cfg *config.Config, textProvider ai.TextProvider, speechProvider ai.SpeechProvider) *VoiceService {
	return &VoiceService{
		Cfg:            cfg,
		TextProvider:   textProvider,
		SpeechProvider: speechProvider,
	}
}

// ProcessVoiceNote transcribes a recorded clip and classifies what the user
// wanted: a recipe idea, a shopping item, a note, or a question.
func (s *VoiceService) ProcessVoiceNote(ctx context.Context, audioData []byte) (*VoiceNoteResult, error) {
	if len(audioData) == 0 {
		return nil, fmt.Errorf("audio data is required")
	}

	transcript, err := s.SpeechProvider.TranscribeAudio(ctx, audioData)
	if err != nil {
		return nil, fmt.Errorf("transcribe audio: %w", err)
	}
	if transcript == "" {
		return nil, fmt.Errorf("could not hear anything in the recording")
	}

	intent, err := s.TextProvider.ClassifyVoiceNote(ctx, transcript)
	if err != nil {
		// The transcript is still useful without a classification
		logger.Get().Warn("voice note classification failed", zap.Error(err))
		intent = &ai.VoiceNoteIntent{Type: ai.IntentNote, Text: transcript}
	}

	return &VoiceNoteResult{
		Transcript: transcript,
		Intent:     intent.Type,
		Text:       intent.Text,
	}, nil
}

// DialogueTokenSource mints the short-lived HS256 tokens the dialogue
// backend accepts. One source per live session, scoped to the user.
type DialogueTokenSource struct {
	Key     string
	AgentID string
	UserID  uint
	TTL     time.Duration
}

var _ dialogue.TokenSource = (*DialogueTokenSource)(nil)

// Token mints a fresh token. Called once per dial, including reconnects.
func (t *DialogueTokenSource) Token(ctx context.Context) (string, error) {
	ttl := t.TTL
	if ttl <= 0 {
		ttl = time.Minute
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"iss": "mise-api",
		"aud": "dialogue",
		"sub": fmt.Sprintf("%d", t.UserID),
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	if t.AgentID != "" {
		claims["agent_id"] = t.AgentID
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(t.Key))
	if err != nil {
		return "", fmt.Errorf("failed to sign dialogue token: %w", err)
	}
	return signed, nil
}

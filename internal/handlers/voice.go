package handlers

import (
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mise-app/mise-api/internal/service"
	"github.com/mise-app/mise-api/internal/util"
)

// VoiceHandler handles one-shot voice notes. Live cook-mode sessions go over
// the websocket instead.
type VoiceHandler struct {
	Service *service.VoiceService
}

// NewVoiceHandler creates a new VoiceHandler.
func NewVoiceHandler(voiceService *service.VoiceService) *VoiceHandler {
	return &VoiceHandler{Service: voiceService}
}

var allowedAudioTypes = map[string]bool{
	".m4a":  true,
	".mp3":  true,
	".wav":  true,
	".webm": true,
	".ogg":  true,
}

// ProcessVoiceNote handles POST /v1/voice/notes. Transcribes a short audio
// clip and classifies it into an intent the client can act on.
func (h *VoiceHandler) ProcessVoiceNote(c *gin.Context) {
	_, err := util.GetUserFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	file, header, err := c.Request.FormFile("audio")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Audio file is required"})
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedAudioTypes[ext] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported audio format"})
		return
	}

	const maxSize = 10 << 20
	audio, err := io.ReadAll(io.LimitReader(file, maxSize+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read audio file"})
		return
	}
	if len(audio) > maxSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Audio file too large (max 10MB)"})
		return
	}

	result, err := h.Service.ProcessVoiceNote(c.Request.Context(), audio)
	if err != nil {
		serviceError(c, err, "Failed to process voice note")
		return
	}

	c.JSON(http.StatusOK, gin.H{"voiceNote": result})
}

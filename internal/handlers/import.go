package handlers

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mise-app/mise-api/internal/service"
	"github.com/mise-app/mise-api/internal/util"
)

// ImportHandler handles recipe import requests. Every import that can reach
// an AI extractor counts against the monthly AI allowance.
type ImportHandler struct {
	Service      *service.ImportService
	Subscription *service.SubscriptionService
}

// NewImportHandler creates a new ImportHandler.
func NewImportHandler(importService *service.ImportService, subscriptionService *service.SubscriptionService) *ImportHandler {
	return &ImportHandler{Service: importService, Subscription: subscriptionService}
}

// ImportFromURL handles POST /v1/recipes/import/url
func (h *ImportHandler) ImportFromURL(c *gin.Context) {
	user, err := util.GetUserFromContext(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var request struct {
		URL string `json:"url" binding:"required"`
	}
	if err := c.BindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	url := strings.TrimSpace(request.URL)
	if url == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "URL is required"})
		return
	}

	if err := h.Subscription.CheckAIGeneration(user.ID); err != nil {
		serviceError(c, err, "Failed to check subscription")
		return
	}

	recipeResponse, err := h.Service.ImportFromURL(c.Request.Context(), url, user)
	if err != nil {
		serviceError(c, err, "Failed to import recipe from URL")
		return
	}

	if err := h.Subscription.ConsumeAIGeneration(user.ID); err != nil {
		serviceError(c, err, "Failed to record AI usage")
		return
	}

	c.JSON(http.StatusOK, gin.H{"recipe": recipeResponse})
}

// ImportFromPhoto handles POST /v1/recipes/import/photo
func (h *ImportHandler) ImportFromPhoto(c *gin.Context) {
	user, err := util.GetUserFromContext(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	file, _, err := c.Request.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Image file is required"})
		return
	}
	defer file.Close()

	imageData, err := io.ReadAll(io.LimitReader(file, 10*1024*1024)) // 10MB limit
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read image data"})
		return
	}

	if len(imageData) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Image file is empty"})
		return
	}

	if err := h.Subscription.CheckAIGeneration(user.ID); err != nil {
		serviceError(c, err, "Failed to check subscription")
		return
	}

	recipeResponse, err := h.Service.ImportFromPhoto(c.Request.Context(), imageData, user)
	if err != nil {
		serviceError(c, err, "Failed to import recipe from photo")
		return
	}

	if err := h.Subscription.ConsumeAIGeneration(user.ID); err != nil {
		serviceError(c, err, "Failed to record AI usage")
		return
	}

	c.JSON(http.StatusOK, gin.H{"recipe": recipeResponse})
}

// ImportFromText handles POST /v1/recipes/import/text
func (h *ImportHandler) ImportFromText(c *gin.Context) {
	user, err := util.GetUserFromContext(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var request struct {
		Text string `json:"text" binding:"required"`
	}
	if err := c.BindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	text := strings.TrimSpace(request.Text)
	if text == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Text is required"})
		return
	}

	if err := h.Subscription.CheckAIGeneration(user.ID); err != nil {
		serviceError(c, err, "Failed to check subscription")
		return
	}

	recipeResponse, err := h.Service.ImportFromText(c.Request.Context(), text, user)
	if err != nil {
		serviceError(c, err, "Failed to import recipe from text")
		return
	}

	if err := h.Subscription.ConsumeAIGeneration(user.ID); err != nil {
		serviceError(c, err, "Failed to record AI usage")
		return
	}

	c.JSON(http.StatusOK, gin.H{"recipe": recipeResponse})
}

// ImportManual handles POST /v1/recipes/import/manual. No AI involved, so
// no quota check.
func (h *ImportHandler) ImportManual(c *gin.Context) {
	user, err := util.GetUserFromContext(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var request recipeCoreRequest
	if err := c.BindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	recipeResponse, err := h.Service.ImportManual(request.toCore(), user)
	if err != nil {
		serviceError(c, err, "Failed to create recipe")
		return
	}

	c.JSON(http.StatusOK, gin.H{"recipe": recipeResponse})
}

// PreviewFromURL handles POST /v1/recipes/preview/url. Returns the extracted
// content without saving anything.
func (h *ImportHandler) PreviewFromURL(c *gin.Context) {
	user, err := util.GetUserFromContext(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var request struct {
		URL string `json:"url" binding:"required"`
	}
	if err := c.BindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	url := strings.TrimSpace(request.URL)
	if url == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "URL is required"})
		return
	}

	unitSystem := user.Personalization.GetUnitSystemText()
	core, err := h.Service.PreviewFromURL(c.Request.Context(), url, unitSystem)
	if err != nil {
		serviceError(c, err, "Failed to preview recipe from URL")
		return
	}

	c.JSON(http.StatusOK, gin.H{"recipe": core})
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mise-app/mise-api/internal/ai"
	"github.com/mise-app/mise-api/internal/service"
	"github.com/mise-app/mise-api/internal/util"
)

// AssistantHandler handles chat-based recipe generation and cooking Q&A.
type AssistantHandler struct {
	Service      *service.AssistantService
	Subscription *service.SubscriptionService
}

// NewAssistantHandler creates a new AssistantHandler.
func NewAssistantHandler(assistantService *service.AssistantService, subscriptionService *service.SubscriptionService) *AssistantHandler {
	return &AssistantHandler{Service: assistantService, Subscription: subscriptionService}
}

// GenerateRecipe handles POST /v1/assistant/recipes. The generated recipe is
// saved to the user's collection as a private chat recipe.
func (h *AssistantHandler) GenerateRecipe(c *gin.Context) {
	user, err := util.GetUserFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var request struct {
		Prompt  string `json:"prompt" binding:"required"`
		History []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"history"`
	}
	if err := c.BindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Prompt is required"})
		return
	}

	if err := h.Subscription.CheckAIGeneration(user.ID); err != nil {
		serviceError(c, err, "Failed to check subscription")
		return
	}

	history := make([]ai.Message, 0, len(request.History))
	for _, m := range request.History {
		history = append(history, ai.Message{Role: m.Role, Content: m.Content})
	}

	recipe, err := h.Service.GenerateRecipe(c.Request.Context(), user, request.Prompt, history)
	if err != nil {
		serviceError(c, err, "Failed to generate recipe")
		return
	}

	if err := h.Subscription.ConsumeAIGeneration(user.ID); err != nil {
		serviceError(c, err, "Failed to record AI usage")
		return
	}

	c.JSON(http.StatusOK, gin.H{"recipe": recipe})
}

// AskQuestion handles POST /v1/assistant/question
func (h *AssistantHandler) AskQuestion(c *gin.Context) {
	user, err := util.GetUserFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var request struct {
		Question string `json:"question" binding:"required"`
		RecipeID uint   `json:"recipe_id"`
	}
	if err := c.BindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Question is required"})
		return
	}

	if err := h.Subscription.CheckAIGeneration(user.ID); err != nil {
		serviceError(c, err, "Failed to check subscription")
		return
	}

	answer, err := h.Service.AnswerQuestion(c.Request.Context(), user, request.Question, request.RecipeID)
	if err != nil {
		serviceError(c, err, "Failed to answer question")
		return
	}

	if err := h.Subscription.ConsumeAIGeneration(user.ID); err != nil {
		serviceError(c, err, "Failed to record AI usage")
		return
	}

	c.JSON(http.StatusOK, gin.H{"answer": answer})
}

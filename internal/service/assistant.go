package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/mise-app/mise-api/internal/ai"
	"github.com/mise-app/mise-api/internal/config"
	"github.com/mise-app/mise-api/internal/logger"
	"github.com/mise-app/mise-api/internal/models"
	"github.com/mise-app/mise-api/internal/repository"
	"go.uber.org/zap"
)

// AssistantService handles chat-based recipe generation and cooking Q&A.
type AssistantService struct {
	Cfg           *config.Config
	RecipeRepo    repository.RecipeRepo
	RecipeService *RecipeService
	TextProvider  ai.TextProvider
}

// NewAssistantService creates a new AssistantService.
func NewAssistantService(cfg *config.Config, recipeRepo repository.RecipeRepo, recipeService *RecipeService, textProvider ai.TextProvider) *AssistantService {
	return &AssistantService{
		Cfg:           cfg,
		RecipeRepo:    recipeRepo,
		RecipeService: recipeService,
		TextProvider:  textProvider,
	}
}

// GenerateRecipe turns a chat prompt into a saved recipe, applying the
// user's unit system and dietary requirements.
func (s *AssistantService) GenerateRecipe(ctx context.Context, user *models.User, prompt string, history []ai.Message) (*RecipeResponse, error) {
	log := logger.Get().With(zap.Uint("user_id", user.ID))

	if strings.TrimSpace(prompt) == "" {
		return nil, fmt.Errorf("prompt is required")
	}

	req := ai.RecipeRequest{
		UserPrompt:   prompt,
		UnitSystem:   user.Personalization.GetUnitSystemText(),
		Requirements: user.Personalization.Requirements,
		Messages:     history,
	}

	result, err := s.TextProvider.GenerateRecipe(ctx, req)
	if err != nil {
		log.Error("recipe generation failed", zap.Error(err))
		return nil, fmt.Errorf("failed to generate recipe: %w", err)
	}

	core := recipeResultToCore(result)
	return s.RecipeService.CreateRecipe(user.ID, core, false, models.SourceChat)
}

// AnswerQuestion answers a free-form cooking question, optionally grounded
// in one of the user's recipes. Also serves voice queries when the live
// session is offline.
func (s *AssistantService) AnswerQuestion(ctx context.Context, user *models.User, question string, recipeID uint) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", fmt.Errorf("question is required")
	}

	var recipeContext string
	if recipeID != 0 {
		recipe, err := s.RecipeService.GetRecipeModel(user.ID, recipeID)
		if err != nil {
			return "", err
		}
		recipeContext = RecipeQAContext(recipe)
	}

	answer, err := s.TextProvider.CookingQA(ctx, question, recipeContext)
	if err != nil {
		logger.Get().Error("cooking QA failed", zap.Uint("user_id", user.ID), zap.Error(err))
		return "", fmt.Errorf("failed to answer question: %w", err)
	}
	return answer, nil
}

// RecipeQAContext flattens a recipe into the plain-text context block given
// to the Q&A prompt.
func RecipeQAContext(recipe *models.Recipe) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Recipe: %s\n", recipe.Title)
	if recipe.Servings > 0 {
		fmt.Fprintf(&b, "Servings: %d\n", recipe.Servings)
	}

	b.WriteString("Ingredients:\n")
	for _, ing := range recipe.Ingredients {
		if ing.Amount > 0 {
			fmt.Fprintf(&b, "- %g %s %s\n", ing.Amount, ing.Unit, ing.Name)
		} else {
			fmt.Fprintf(&b, "- %s\n", ing.Name)
		}
	}

	b.WriteString("Steps:\n")
	for i, step := range recipe.Instructions {
		fmt.Fprintf(&b, "%d. %s\n", i+1, step)
	}
	return b.String()
}

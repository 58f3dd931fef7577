package testutil

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/mise-app/mise-api/internal/ai"
	"github.com/mise-app/mise-api/internal/models"
	"gorm.io/gorm"
)

// TestUser creates a test user with all associated records populated.
func TestUser() *models.User {
	return &models.User{
		Model:     gorm.Model{ID: 1},
		Username:  "testuser",
		FirstName: "Test",
		Email:     "test@example.com",
		Auth: &models.UserAuth{
			Model:          gorm.Model{ID: 1},
			UserID:         1,
			HashedPassword: "$2a$10$abcdefghijklmnopqrstuuABCDEFGHIJKLMNOPQRSTUVWXYZ012",
			AuthType:       models.Standard,
		},
		Subscription: &models.Subscription{
			Model:          gorm.Model{ID: 1},
			UserID:         1,
			Tier:           models.TierFree,
			MonthlyResetAt: time.Now().AddDate(0, 1, 0),
		},
		Settings: &models.UserSettings{
			Model:           gorm.Model{ID: 1},
			UserID:          1,
			KeepScreenAwake: true,
			VoiceEnabled:    true,
		},
		Personalization: &models.Personalization{
			Model:        gorm.Model{ID: 1},
			UserID:       1,
			UnitSystem:   models.USCustomary,
			Requirements: "No peanuts",
			UID:          uuid.MustParse("11111111-1111-1111-1111-111111111111"),
		},
	}
}

// TestRecipeCore creates a test RecipeCore with realistic fields.
func TestRecipeCore() models.RecipeCore {
	return models.RecipeCore{
		Title: "Classic Pancakes",
		Ingredients: models.Ingredients{
			{Name: "All-purpose flour", Unit: "cups", Amount: 1.5, OriginalText: "1.5 cups all-purpose flour"},
			{Name: "Milk", Unit: "cups", Amount: 1.25, OriginalText: "1 1/4 cups milk"},
			{Name: "Egg", Unit: "", Amount: 1, OriginalText: "1 egg"},
			{Name: "Butter", Unit: "tbsp", Amount: 3, OriginalText: "3 tbsp melted butter"},
		},
		Instructions: pq.StringArray{"Mix dry ingredients", "Whisk wet ingredients", "Combine and cook on griddle"},
		PrepTime:     10,
		CookTime:     20,
		Servings:     4,
		ServingSize:  "3 pancakes",
		Tags:         []string{"breakfast", "pancakes", "easy"},
		ImagePrompt:  "A stack of fluffy golden pancakes with butter and maple syrup",
	}
}

// TestRecipe creates a test Recipe with a populated RecipeCore and associations.
func TestRecipe() *models.Recipe {
	return &models.Recipe{
		Model:      gorm.Model{ID: 1},
		RecipeCore: TestRecipeCore(),
		ImageURL:   "https://example.com/pancakes.jpg",
		Tags: []*models.Tag{
			{Model: gorm.Model{ID: 1}, Name: "breakfast"},
			{Model: gorm.Model{ID: 2}, Name: "pancakes"},
		},
		Source:      models.SourceChat,
		Public:      false,
		CreatedByID: 1,
	}
}

// TestRecipeResult creates an ai.RecipeResult that matches TestRecipeCore fields.
func TestRecipeResult() *ai.RecipeResult {
	return &ai.RecipeResult{
		Title: "Classic Pancakes",
		Ingredients: []ai.IngredientResult{
			{Name: "All-purpose flour", Unit: "cups", Amount: 1.5, OriginalText: "1.5 cups all-purpose flour"},
			{Name: "Milk", Unit: "cups", Amount: 1.25, OriginalText: "1 1/4 cups milk"},
			{Name: "Egg", Unit: "", Amount: 1, OriginalText: "1 egg"},
			{Name: "Butter", Unit: "tbsp", Amount: 3, OriginalText: "3 tbsp melted butter"},
		},
		Instructions: []string{"Mix dry ingredients", "Whisk wet ingredients", "Combine and cook on griddle"},
		PrepTime:     10,
		CookTime:     20,
		Servings:     4,
		ServingSize:  "3 pancakes",
		Tags:         []string{"breakfast", "pancakes", "easy"},
		ImagePrompt:  "A stack of fluffy golden pancakes with butter and maple syrup",
	}
}

package ai

import "context"

// TextProvider handles all text/reasoning tasks (Claude).
type TextProvider interface {
	GenerateRecipe(ctx context.Context, req RecipeRequest) (*RecipeResult, error)
	ExtractRecipeFromText(ctx context.Context, text string, unitSystem string) (*RecipeResult, error)
	ExtractRecipeFromWebPage(ctx context.Context, pageContent string, sourceURL string, unitSystem string) (*RecipeResult, error)
	ClassifyVoiceNote(ctx context.Context, transcript string) (*VoiceNoteIntent, error)
	NormalizeIngredients(ctx context.Context, ingredients []IngredientInput) ([]NormalizedIngredient, error)
	CookingQA(ctx context.Context, question string, recipeContext string) (string, error)
}

// VisionProvider handles image-based recipe extraction (Claude).
type VisionProvider interface {
	ExtractRecipeFromImage(ctx context.Context, imageData []byte, unitSystem string, requirements string) (*RecipeResult, error)
}

// ImageProvider handles image generation (DALL-E 3).
type ImageProvider interface {
	GenerateImage(ctx context.Context, prompt string) ([]byte, error)
}

// SpeechProvider handles speech-to-text (Whisper).
type SpeechProvider interface {
	TranscribeAudio(ctx context.Context, audioData []byte) (string, error)
}

// RecipeRequest holds parameters for generating a new recipe from chat.
type RecipeRequest struct {
	UserPrompt   string
	UnitSystem   string
	Requirements string
	Messages     []Message // prior conversation turns, oldest first
}

// RecipeResult is the structured output from any recipe-producing call.
// It maps one-to-one onto models.RecipeCore.
type RecipeResult struct {
	Title        string
	Ingredients  []IngredientResult
	Instructions []string
	PrepTime     int
	CookTime     int
	Servings     int
	ServingSize  string
	Tags         []string
	ImagePrompt  string
	SourceURL    string
}

// IngredientResult is a single ingredient in the recipe output.
type IngredientResult struct {
	Name         string
	Unit         string
	Amount       float64
	OriginalText string
	IsEstimated  bool
}

// IngredientInput is an ingredient supplied by the caller.
type IngredientInput struct {
	Name   string
	Unit   string
	Amount float64
}

// NormalizedIngredient is the result of measurement normalization, used
// when consolidating shopping-list lines across recipes.
type NormalizedIngredient struct {
	OriginalText     string  `json:"original_text"`
	Name             string  `json:"name"`
	NormalizedAmount float64 `json:"normalized_amount"`
	NormalizedUnit   string  `json:"normalized_unit"`
	IsEstimated      bool    `json:"is_estimated"`
}

// VoiceNoteIntent is the classified intent of a transcribed voice note.
type VoiceNoteIntent struct {
	Type string `json:"type"` // "recipe_idea", "shopping_item", "note", "question"
	Text string `json:"text"` // cleaned-up content of the note
}

// Voice note intent types.
const (
	IntentRecipeIdea   = "recipe_idea"
	IntentShoppingItem = "shopping_item"
	IntentNote         = "note"
	IntentQuestion     = "question"
)

// Message represents a single message in a conversation.
type Message struct {
	Role    string // "user", "assistant", "system"
	Content string
}

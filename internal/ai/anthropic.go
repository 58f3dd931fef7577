package ai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/mise-app/mise-api/internal/config"
	"github.com/mise-app/mise-api/internal/logger"
	"github.com/mise-app/mise-api/internal/util"
)

// AnthropicProvider implements TextProvider and VisionProvider using Claude.
type AnthropicProvider struct {
	client  anthropic.Client
	model   anthropic.Model
	prompts *config.Prompts
}

// NewAnthropicProvider creates a new AnthropicProvider with the given API key
// and prompt configuration.
func NewAnthropicProvider(apiKey string, prompts *config.Prompts) *AnthropicProvider {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicProvider{
		client:  client,
		model:   anthropic.ModelClaude3_5Sonnet20241022,
		prompts: prompts,
	}
}

// NewAnthropicLightProvider creates an AnthropicProvider using the cheaper
// Haiku model. Used for voice-note classification and normalization, where
// latency and cost matter more than maximum quality.
func NewAnthropicLightProvider(apiKey string, prompts *config.Prompts) *AnthropicProvider {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicProvider{
		client:  client,
		model:   anthropic.Model("claude-haiku-4-5-20251001"),
		prompts: prompts,
	}
}

// createRecipeTool builds the Claude tool definition whose input schema
// mirrors models.RecipeCore, so tool output parses straight into a recipe.
func createRecipeTool() anthropic.ToolUnionParam {
	return anthropic.ToolUnionParam{
		OfTool: &anthropic.ToolParam{
			Name:        "create_recipe",
			Description: anthropic.String("Create a structured recipe definition with all required fields."),
			InputSchema: anthropic.ToolInputSchemaParam{
				Type: "object",
				Properties: map[string]interface{}{
					"title": map[string]interface{}{
						"type":        "string",
						"description": "Title of the recipe or meal",
					},
					"ingredients": map[string]interface{}{
						"type":        "array",
						"description": "List of ingredients used in the recipe",
						"items": map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"name":          map[string]interface{}{"type": "string", "description": "Name of the ingredient, do not include unit or amount in this field"},
								"unit":          map[string]interface{}{"type": "string", "description": "Unit for the ingredient, comply with UnitSystem specified.", "enum": []string{"pieces", "tsp", "tbsp", "fl oz", "cup", "pt", "qt", "gal", "oz", "lb", "mL", "L", "mg", "g", "kg", "pinch", "dash", "drop"}},
								"amount":        map[string]interface{}{"type": "number", "description": "Amount of the ingredient"},
								"original_text": map[string]interface{}{"type": "string", "description": "The ingredient line exactly as it appeared in the source, when extracting from existing content"},
								"is_estimated":  map[string]interface{}{"type": "boolean", "description": "True when the amount was inferred rather than stated"},
							},
						},
					},
					"instructions": map[string]interface{}{
						"type":        "array",
						"description": "Steps to prepare the recipe (no numbering)",
						"items":       map[string]interface{}{"type": "string"},
					},
					"prep_time": map[string]interface{}{
						"type":        "number",
						"description": "Preparation time in minutes, 0 if unknown",
					},
					"cook_time": map[string]interface{}{
						"type":        "number",
						"description": "Total cooking time in minutes",
					},
					"servings": map[string]interface{}{
						"type":        "number",
						"description": "Number of servings this recipe makes",
					},
					"serving_size": map[string]interface{}{
						"type":        "string",
						"description": "Description of a single serving",
					},
					"tags": map[string]interface{}{
						"type":        "array",
						"description": "Short lowercase tags for cuisine, course, diet, and technique. No '#'. Single words or hyphenated.",
						"items":       map[string]interface{}{"type": "string"},
					},
					"image_prompt": map[string]interface{}{
						"type":        "string",
						"description": "Prompt to generate an appetizing photo of the finished dish, relevant to the recipe and not the user request",
					},
				},
			},
		},
	}
}

// recipeToolResult is the JSON structure returned by the create_recipe tool call.
type recipeToolResult struct {
	Title        string              `json:"title"`
	Ingredients  []ingredientToolRes `json:"ingredients"`
	Instructions []string            `json:"instructions"`
	PrepTime     int                 `json:"prep_time"`
	CookTime     int                 `json:"cook_time"`
	Servings     int                 `json:"servings"`
	ServingSize  string              `json:"serving_size"`
	Tags         []string            `json:"tags"`
	ImagePrompt  string              `json:"image_prompt"`
}

type ingredientToolRes struct {
	Name         string  `json:"name"`
	Unit         string  `json:"unit"`
	Amount       float64 `json:"amount"`
	OriginalText string  `json:"original_text"`
	IsEstimated  bool    `json:"is_estimated"`
}

func toolResultToRecipeResult(tr *recipeToolResult) *RecipeResult {
	ingredients := make([]IngredientResult, len(tr.Ingredients))
	for i, ing := range tr.Ingredients {
		ingredients[i] = IngredientResult{
			Name:         ing.Name,
			Unit:         ing.Unit,
			Amount:       ing.Amount,
			OriginalText: ing.OriginalText,
			IsEstimated:  ing.IsEstimated,
		}
	}
	return &RecipeResult{
		Title:        tr.Title,
		Ingredients:  ingredients,
		Instructions: tr.Instructions,
		PrepTime:     tr.PrepTime,
		CookTime:     tr.CookTime,
		Servings:     tr.Servings,
		ServingSize:  tr.ServingSize,
		Tags:         tr.Tags,
		ImagePrompt:  tr.ImagePrompt,
	}
}

// messagesToAnthropicParams converts our Message slice into Claude message params.
// System messages are separated out as they use a different field in the API.
func messagesToAnthropicParams(msgs []Message) (string, []anthropic.MessageParam) {
	var systemPrompt string
	var params []anthropic.MessageParam

	for _, m := range msgs {
		switch m.Role {
		case "system":
			if systemPrompt != "" {
				systemPrompt += "\n\n"
			}
			systemPrompt += m.Content
		case "user":
			params = append(params, anthropic.MessageParam{
				Role: anthropic.MessageParamRoleUser,
				Content: []anthropic.ContentBlockParamUnion{
					anthropic.NewTextBlock(m.Content),
				},
			})
		case "assistant":
			params = append(params, anthropic.MessageParam{
				Role: anthropic.MessageParamRoleAssistant,
				Content: []anthropic.ContentBlockParamUnion{
					anthropic.NewTextBlock(m.Content),
				},
			})
		}
	}
	return systemPrompt, params
}

// newUserMessage creates a user message param with the given content blocks.
func newUserMessage(blocks ...anthropic.ContentBlockParamUnion) anthropic.MessageParam {
	return anthropic.MessageParam{
		Role:    anthropic.MessageParamRoleUser,
		Content: blocks,
	}
}

// createMessageWithRetry wraps the Claude API call with exponential backoff.
func (p *AnthropicProvider) createMessageWithRetry(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
	const maxRetries = 5
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		resp, err := p.client.Messages.New(ctx, params)
		if err == nil {
			return resp, nil
		}

		lastErr = err
		shouldRetry, waitTime := classifyAnthropicError(err)
		if !shouldRetry {
			return nil, fmt.Errorf("claude API error: %w", err)
		}

		logger.Get().Warn("claude API error, retrying",
			zap.Error(err),
			zap.Int("attempt", i+1),
		)

		backoff := waitTime * time.Duration(i+1)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	return nil, fmt.Errorf("claude API: exhausted %d retries: %w", maxRetries, lastErr)
}

// classifyAnthropicError determines whether to retry and the base wait duration.
func classifyAnthropicError(err error) (shouldRetry bool, waitTime time.Duration) {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusTooManyRequests:
			return true, 2 * time.Second
		case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
			return true, 2 * time.Second
		case http.StatusUnauthorized:
			return false, 0
		default:
			return false, 0
		}
	}
	return false, 0
}

// extractRecipeFromToolUse parses the tool-use content block returned by Claude.
func extractRecipeFromToolUse(msg *anthropic.Message) (*RecipeResult, error) {
	for _, block := range msg.Content {
		if block.Type == "tool_use" {
			raw, err := json.Marshal(block.Input)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal tool input: %w", err)
			}
			var tr recipeToolResult
			if err := json.Unmarshal(raw, &tr); err != nil {
				return nil, fmt.Errorf("failed to parse recipe tool result: %w", err)
			}
			return toolResultToRecipeResult(&tr), nil
		}
	}
	return nil, errors.New("no tool_use block found in Claude response")
}

// extractTextContent returns the concatenated text blocks from a Claude response.
func extractTextContent(msg *anthropic.Message) (string, error) {
	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return "", errors.New("no text content in Claude response")
	}
	return text, nil
}

// --- TextProvider implementation ---

// GenerateRecipe creates a new recipe via Claude tool use. Prior chat turns
// in req.Messages keep revision requests ("less garlic") coherent.
func (p *AnthropicProvider) GenerateRecipe(ctx context.Context, req RecipeRequest) (*RecipeResult, error) {
	sysPrompt, err := config.RenderPrompt(p.prompts.Recipe.Generate.System, map[string]interface{}{
		"UnitSystem":   req.UnitSystem,
		"Requirements": req.Requirements,
	})
	if err != nil {
		return nil, fmt.Errorf("render system prompt: %w", err)
	}

	userPrompt, err := config.RenderPrompt(p.prompts.Recipe.Generate.User, map[string]interface{}{
		"Prompt": req.UserPrompt,
	})
	if err != nil {
		return nil, fmt.Errorf("render user prompt: %w", err)
	}

	_, historyParams := messagesToAnthropicParams(req.Messages)
	historyParams = append(historyParams, newUserMessage(anthropic.NewTextBlock(userPrompt)))

	params := anthropic.MessageNewParams{
		Model:     p.model,
		MaxTokens: 4096,
		System: []anthropic.TextBlockParam{
			{Text: sysPrompt},
		},
		Messages: historyParams,
		Tools:    []anthropic.ToolUnionParam{createRecipeTool()},
		ToolChoice: anthropic.ToolChoiceUnionParam{
			OfToolChoiceTool: &anthropic.ToolChoiceToolParam{
				Name: "create_recipe",
			},
		},
	}

	resp, err := p.createMessageWithRetry(ctx, params)
	if err != nil {
		return nil, err
	}

	return extractRecipeFromToolUse(resp)
}

// ExtractRecipeFromText extracts a structured recipe from free-form text,
// e.g. a pasted recipe card or notes app dump.
func (p *AnthropicProvider) ExtractRecipeFromText(ctx context.Context, text string, unitSystem string) (*RecipeResult, error) {
	sysPrompt, err := config.RenderPrompt(p.prompts.Recipe.Import.Text.System, map[string]interface{}{
		"UnitSystem": unitSystem,
	})
	if err != nil {
		return nil, fmt.Errorf("render system prompt: %w", err)
	}

	params := anthropic.MessageNewParams{
		Model:     p.model,
		MaxTokens: 4096,
		System: []anthropic.TextBlockParam{
			{Text: sysPrompt},
		},
		Messages: []anthropic.MessageParam{
			newUserMessage(anthropic.NewTextBlock(text)),
		},
		Tools: []anthropic.ToolUnionParam{createRecipeTool()},
		ToolChoice: anthropic.ToolChoiceUnionParam{
			OfToolChoiceTool: &anthropic.ToolChoiceToolParam{
				Name: "create_recipe",
			},
		},
	}

	resp, err := p.createMessageWithRetry(ctx, params)
	if err != nil {
		return nil, err
	}

	return extractRecipeFromToolUse(resp)
}

// ExtractRecipeFromWebPage extracts a structured recipe from scraped page
// content. The source URL is stamped onto the result for attribution.
func (p *AnthropicProvider) ExtractRecipeFromWebPage(ctx context.Context, pageContent string, sourceURL string, unitSystem string) (*RecipeResult, error) {
	sysPrompt, err := config.RenderPrompt(p.prompts.Recipe.Import.URL.System, map[string]interface{}{
		"UnitSystem": unitSystem,
		"SourceURL":  sourceURL,
	})
	if err != nil {
		return nil, fmt.Errorf("render system prompt: %w", err)
	}

	params := anthropic.MessageNewParams{
		Model:     p.model,
		MaxTokens: 4096,
		System: []anthropic.TextBlockParam{
			{Text: sysPrompt},
		},
		Messages: []anthropic.MessageParam{
			newUserMessage(anthropic.NewTextBlock(pageContent)),
		},
		Tools: []anthropic.ToolUnionParam{createRecipeTool()},
		ToolChoice: anthropic.ToolChoiceUnionParam{
			OfToolChoiceTool: &anthropic.ToolChoiceToolParam{
				Name: "create_recipe",
			},
		},
	}

	resp, err := p.createMessageWithRetry(ctx, params)
	if err != nil {
		return nil, err
	}

	result, err := extractRecipeFromToolUse(resp)
	if err != nil {
		return nil, err
	}
	result.SourceURL = sourceURL
	return result, nil
}

// ClassifyVoiceNote classifies a transcribed voice note into an app intent.
func (p *AnthropicProvider) ClassifyVoiceNote(ctx context.Context, transcript string) (*VoiceNoteIntent, error) {
	sysPrompt, err := config.RenderPrompt(p.prompts.Voice.Intent.System, nil)
	if err != nil {
		return nil, fmt.Errorf("render system prompt: %w", err)
	}

	params := anthropic.MessageNewParams{
		Model:     p.model,
		MaxTokens: 256,
		System: []anthropic.TextBlockParam{
			{Text: sysPrompt},
		},
		Messages: []anthropic.MessageParam{
			newUserMessage(anthropic.NewTextBlock(transcript)),
		},
	}

	resp, err := p.createMessageWithRetry(ctx, params)
	if err != nil {
		return nil, err
	}

	text, err := extractTextContent(resp)
	if err != nil {
		return nil, err
	}

	var intent VoiceNoteIntent
	if err := json.Unmarshal([]byte(text), &intent); err != nil {
		return nil, fmt.Errorf("failed to parse voice note intent: %w", err)
	}

	return &intent, nil
}

// NormalizeIngredients normalizes a list of ingredients to standard units so
// the same item from different recipes can be combined on a shopping list.
func (p *AnthropicProvider) NormalizeIngredients(ctx context.Context, ingredients []IngredientInput) ([]NormalizedIngredient, error) {
	sysPrompt, err := config.RenderPrompt(p.prompts.Normalize.System, nil)
	if err != nil {
		return nil, fmt.Errorf("render system prompt: %w", err)
	}

	ingredientJSON, err := util.SerializeToJSONString(ingredients)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize ingredients: %w", err)
	}

	params := anthropic.MessageNewParams{
		Model:     p.model,
		MaxTokens: 2048,
		System: []anthropic.TextBlockParam{
			{Text: sysPrompt},
		},
		Messages: []anthropic.MessageParam{
			newUserMessage(anthropic.NewTextBlock(ingredientJSON)),
		},
	}

	resp, err := p.createMessageWithRetry(ctx, params)
	if err != nil {
		return nil, err
	}

	text, err := extractTextContent(resp)
	if err != nil {
		return nil, err
	}

	var normalized []NormalizedIngredient
	if err := json.Unmarshal([]byte(text), &normalized); err != nil {
		return nil, fmt.Errorf("failed to parse normalized ingredients: %w", err)
	}

	return normalized, nil
}

// CookingQA answers a cooking question with optional recipe context.
func (p *AnthropicProvider) CookingQA(ctx context.Context, question string, recipeContext string) (string, error) {
	sysPrompt, err := config.RenderPrompt(p.prompts.CookingQA.System, map[string]interface{}{
		"RecipeContext": recipeContext,
	})
	if err != nil {
		return "", fmt.Errorf("render system prompt: %w", err)
	}

	params := anthropic.MessageNewParams{
		Model:     p.model,
		MaxTokens: 1024,
		System: []anthropic.TextBlockParam{
			{Text: sysPrompt},
		},
		Messages: []anthropic.MessageParam{
			newUserMessage(anthropic.NewTextBlock(question)),
		},
	}

	resp, err := p.createMessageWithRetry(ctx, params)
	if err != nil {
		return "", err
	}

	return extractTextContent(resp)
}

// --- VisionProvider implementation ---

// ExtractRecipeFromImage extracts a structured recipe from a photo.
func (p *AnthropicProvider) ExtractRecipeFromImage(ctx context.Context, imageData []byte, unitSystem string, requirements string) (*RecipeResult, error) {
	sysPrompt, err := config.RenderPrompt(p.prompts.Recipe.Import.Vision.System, map[string]interface{}{
		"UnitSystem":   unitSystem,
		"Requirements": requirements,
	})
	if err != nil {
		return nil, fmt.Errorf("render system prompt: %w", err)
	}

	b64 := base64.StdEncoding.EncodeToString(imageData)
	mediaType := detectImageMediaType(imageData)

	params := anthropic.MessageNewParams{
		Model:     p.model,
		MaxTokens: 4096,
		System: []anthropic.TextBlockParam{
			{Text: sysPrompt},
		},
		Messages: []anthropic.MessageParam{
			newUserMessage(
				anthropic.ContentBlockParamUnion{
					OfRequestImageBlock: &anthropic.ImageBlockParam{
						Source: anthropic.ImageBlockParamSourceUnion{
							OfBase64ImageSource: &anthropic.Base64ImageSourceParam{
								MediaType: anthropic.Base64ImageSourceMediaType(mediaType),
								Data:      b64,
							},
						},
					},
				},
				anthropic.NewTextBlock("Extract the recipe from this image. If the image shows a prepared dish, infer a reasonable recipe for it."),
			),
		},
		Tools: []anthropic.ToolUnionParam{createRecipeTool()},
		ToolChoice: anthropic.ToolChoiceUnionParam{
			OfToolChoiceTool: &anthropic.ToolChoiceToolParam{
				Name: "create_recipe",
			},
		},
	}

	resp, err := p.createMessageWithRetry(ctx, params)
	if err != nil {
		return nil, err
	}

	return extractRecipeFromToolUse(resp)
}

// detectImageMediaType returns the MIME type based on magic bytes.
func detectImageMediaType(data []byte) string {
	if len(data) < 4 {
		return "image/jpeg"
	}
	// PNG magic bytes
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return "image/png"
	}
	// GIF
	if data[0] == 0x47 && data[1] == 0x49 && data[2] == 0x46 {
		return "image/gif"
	}
	// WebP
	if len(data) >= 12 && data[0] == 0x52 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x46 &&
		data[8] == 0x57 && data[9] == 0x45 && data[10] == 0x42 && data[11] == 0x50 {
		return "image/webp"
	}
	return "image/jpeg"
}

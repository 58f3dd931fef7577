package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/lib/pq"
	"github.com/mise-app/mise-api/internal/ai"
	"github.com/mise-app/mise-api/internal/config"
	"github.com/mise-app/mise-api/internal/logger"
	"github.com/mise-app/mise-api/internal/models"
	"github.com/mise-app/mise-api/internal/repository"
	"github.com/mise-app/mise-api/internal/s3"
	"go.uber.org/zap"
)

// ImportService handles recipe import from URLs, photos, pasted text and
// manual entry.
type ImportService struct {
	Cfg             *config.Config
	RecipeRepo      repository.RecipeRepo
	RecipeService   *RecipeService
	TextProvider    ai.TextProvider
	VisionProvider  ai.VisionProvider
	PreviewProvider ai.TextProvider
}

// NewImportService creates a new ImportService.
func NewImportService(cfg *config.Config, recipeRepo repository.RecipeRepo, recipeService *RecipeService, textProvider ai.TextProvider, visionProvider ai.VisionProvider, previewProvider ai.TextProvider) *ImportService {
	return &ImportService{
		Cfg:             cfg,
		RecipeRepo:      recipeRepo,
		RecipeService:   recipeService,
		TextProvider:    textProvider,
		VisionProvider:  visionProvider,
		PreviewProvider: previewProvider,
	}
}

// ImportFromURL fetches a page, tries JSON-LD extraction first, falls back
// to AI extraction over the stripped page text.
func (s *ImportService) ImportFromURL(ctx context.Context, url string, user *models.User) (*RecipeResponse, error) {
	log := logger.Get().With(zap.Uint("user_id", user.ID), zap.String("source_url", url))

	html, err := fetchPage(url)
	if err != nil {
		log.Error("failed to fetch URL", zap.Error(err))
		return nil, err
	}

	// Try JSON-LD extraction first
	core, err := extractJSONLD(html)
	if err == nil && core != nil {
		log.Info("extracted recipe from JSON-LD")
		core.SourceURL = url
		recipe, err := s.createImportedRecipe(core, user, models.SourceImportURL)
		if err != nil {
			return nil, err
		}
		return s.RecipeService.ToRecipeResponse(recipe), nil
	}

	// Fall back to AI extraction over the stripped text
	unitSystem := user.Personalization.GetUnitSystemText()
	result, err := s.TextProvider.ExtractRecipeFromWebPage(ctx, stripHTML(html), url, unitSystem)
	if err != nil {
		log.Error("AI page extraction failed", zap.Error(err))
		return nil, fmt.Errorf("failed to extract recipe from URL: %w", err)
	}

	core2 := recipeResultToCore(result)
	core2.SourceURL = url
	recipe, err := s.createImportedRecipe(&core2, user, models.SourceImportURL)
	if err != nil {
		return nil, err
	}
	return s.RecipeService.ToRecipeResponse(recipe), nil
}

// ImportFromPhoto sends a photographed page or card to the vision provider
// and stores the photo as the recipe's image.
func (s *ImportService) ImportFromPhoto(ctx context.Context, imageData []byte, user *models.User) (*RecipeResponse, error) {
	log := logger.Get().With(zap.Uint("user_id", user.ID))

	unitSystem := user.Personalization.GetUnitSystemText()
	requirements := user.Personalization.Requirements

	result, err := s.VisionProvider.ExtractRecipeFromImage(ctx, imageData, unitSystem, requirements)
	if err != nil {
		log.Error("vision extraction failed", zap.Error(err))
		return nil, fmt.Errorf("failed to extract recipe from image: %w", err)
	}

	core := recipeResultToCore(result)
	recipe, err := s.createImportedRecipe(&core, user, models.SourceImportVision)
	if err != nil {
		return nil, err
	}

	// Keep the photo as the recipe image
	s3Key := s3.GenerateRecipeImageKey(user.ID, recipe.ID)
	imageURL, err := s3.UploadRecipeImageToS3(ctx, s.Cfg, imageData, s3Key)
	if err != nil {
		// Non-fatal: recipe was still created
		log.Error("failed to upload import photo", zap.Uint("recipe_id", recipe.ID), zap.Error(err))
	} else if err := s.RecipeRepo.UpdateRecipeImageURL(recipe.ID, imageURL); err != nil {
		log.Error("failed to store import photo URL", zap.Uint("recipe_id", recipe.ID), zap.Error(err))
	} else {
		recipe.ImageURL = imageURL
	}

	return s.RecipeService.ToRecipeResponse(recipe), nil
}

// ImportFromText sends pasted text to AI for structured extraction.
func (s *ImportService) ImportFromText(ctx context.Context, text string, user *models.User) (*RecipeResponse, error) {
	log := logger.Get().With(zap.Uint("user_id", user.ID))

	unitSystem := user.Personalization.GetUnitSystemText()
	result, err := s.TextProvider.ExtractRecipeFromText(ctx, text, unitSystem)
	if err != nil {
		log.Error("text extraction failed", zap.Error(err))
		return nil, fmt.Errorf("failed to extract recipe from text: %w", err)
	}

	core := recipeResultToCore(result)
	recipe, err := s.createImportedRecipe(&core, user, models.SourceImportText)
	if err != nil {
		return nil, err
	}
	return s.RecipeService.ToRecipeResponse(recipe), nil
}

// ImportManual creates a recipe from structured form input. No AI involved.
func (s *ImportService) ImportManual(core models.RecipeCore, user *models.User) (*RecipeResponse, error) {
	recipe, err := s.createImportedRecipe(&core, user, models.SourceManualEntry)
	if err != nil {
		return nil, err
	}
	return s.RecipeService.ToRecipeResponse(recipe), nil
}

// PreviewFromURL fetches a page and extracts recipe data without saving.
// Uses JSON-LD first (free), then falls back to the cheap PreviewProvider.
func (s *ImportService) PreviewFromURL(ctx context.Context, url string, unitSystem string) (*models.RecipeCore, error) {
	log := logger.Get().With(zap.String("source_url", url))

	html, err := fetchPage(url)
	if err != nil {
		log.Error("failed to fetch URL for preview", zap.Error(err))
		return nil, err
	}

	core, err := extractJSONLD(html)
	if err == nil && core != nil {
		log.Info("preview extracted recipe from JSON-LD")
		core.SourceURL = url
		return core, nil
	}

	result, err := s.PreviewProvider.ExtractRecipeFromWebPage(ctx, stripHTML(html), url, unitSystem)
	if err != nil {
		log.Error("preview AI extraction failed", zap.Error(err))
		return nil, fmt.Errorf("failed to extract recipe preview: %w", err)
	}

	core2 := recipeResultToCore(result)
	core2.SourceURL = url
	return &core2, nil
}

// createImportedRecipe saves a RecipeCore as a new private recipe for the
// user and associates its tags.
func (s *ImportService) createImportedRecipe(core *models.RecipeCore, user *models.User, source models.RecipeSource) (*models.Recipe, error) {
	log := logger.Get().With(zap.Uint("user_id", user.ID), zap.String("source", string(source)))

	if err := validateRecipeCore(core); err != nil {
		return nil, err
	}

	recipe := &models.Recipe{
		RecipeCore:  *core,
		Source:      source,
		CreatedByID: user.ID,
	}
	if err := s.RecipeRepo.CreateRecipe(recipe); err != nil {
		log.Error("failed to create imported recipe", zap.Error(err))
		return nil, fmt.Errorf("failed to save imported recipe: %w", err)
	}

	if len(core.Tags) > 0 {
		if err := s.RecipeService.AssociateTagsWithRecipe(recipe, core.Tags); err != nil {
			log.Error("failed to associate tags with imported recipe", zap.Uint("recipe_id", recipe.ID), zap.Error(err))
		}
	}

	log.Info("recipe imported", zap.Uint("recipe_id", recipe.ID), zap.String("title", core.Title))
	return recipe, nil
}

// fetchPage downloads a page body with a size cap.
func fetchPage(url string) (string, error) {
	resp, err := http.Get(url)
	if err != nil {
		return "", fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("URL returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2*1024*1024)) // 2MB limit
	if err != nil {
		return "", fmt.Errorf("failed to read URL body: %w", err)
	}
	return string(body), nil
}

var (
	scriptStyleRe = regexp.MustCompile(`(?is)<(script|style|noscript|head)[^>]*>.*?</\s*(script|style|noscript|head)\s*>`)
	htmlTagRe     = regexp.MustCompile(`<[^>]+>`)
	whitespaceRe  = regexp.MustCompile(`\s+`)
)

// stripHTML reduces a page to its visible text before handing it to the LLM.
func stripHTML(html string) string {
	text := scriptStyleRe.ReplaceAllString(html, " ")
	text = htmlTagRe.ReplaceAllString(text, " ")
	text = strings.ReplaceAll(text, "&amp;", "&")
	text = strings.ReplaceAll(text, "&lt;", "<")
	text = strings.ReplaceAll(text, "&gt;", ">")
	text = strings.ReplaceAll(text, "&quot;", `"`)
	text = strings.ReplaceAll(text, "&#39;", "'")
	text = strings.ReplaceAll(text, "&nbsp;", " ")
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
}

// jsonLDRecipe represents the JSON-LD Recipe schema (subset of fields we care about).
type jsonLDRecipe struct {
	Context      interface{} `json:"@context"`
	Type         interface{} `json:"@type"`
	Name         string      `json:"name"`
	Ingredients  []string    `json:"recipeIngredient"`
	Instructions interface{} `json:"recipeInstructions"`
	PrepTime     string      `json:"prepTime"`
	CookTime     string      `json:"cookTime"`
	TotalTime    string      `json:"totalTime"`
	Yield        interface{} `json:"recipeYield"`
	Keywords     interface{} `json:"keywords"`
}

// extractJSONLD tries to find and parse JSON-LD recipe data from HTML.
func extractJSONLD(html string) (*models.RecipeCore, error) {
	re := regexp.MustCompile(`(?s)<script[^>]*type=["']application/ld\+json["'][^>]*>(.*?)</script>`)
	matches := re.FindAllStringSubmatch(html, -1)

	for _, match := range matches {
		if len(match) < 2 {
			continue
		}

		jsonStr := strings.TrimSpace(match[1])

		// Try parsing as a single object
		core, err := tryParseJSONLDObject(jsonStr)
		if err == nil && core != nil {
			return core, nil
		}

		// Try parsing as an array
		var arr []json.RawMessage
		if err := json.Unmarshal([]byte(jsonStr), &arr); err == nil {
			for _, item := range arr {
				core, err := tryParseJSONLDObject(string(item))
				if err == nil && core != nil {
					return core, nil
				}
			}
		}
	}

	return nil, fmt.Errorf("no JSON-LD recipe found")
}

// tryParseJSONLDObject attempts to parse a JSON string as a JSON-LD Recipe.
func tryParseJSONLDObject(jsonStr string) (*models.RecipeCore, error) {
	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(jsonStr), &obj); err != nil {
		return nil, err
	}

	// Check if this is a @graph container
	if graph, ok := obj["@graph"]; ok {
		if graphArr, ok := graph.([]interface{}); ok {
			for _, item := range graphArr {
				itemBytes, err := json.Marshal(item)
				if err != nil {
					continue
				}
				core, err := tryParseJSONLDObject(string(itemBytes))
				if err == nil && core != nil {
					return core, nil
				}
			}
		}
		return nil, fmt.Errorf("no recipe found in @graph")
	}

	// Check @type
	if !isRecipeType(obj["@type"]) {
		return nil, fmt.Errorf("not a Recipe type")
	}

	var recipe jsonLDRecipe
	if err := json.Unmarshal([]byte(jsonStr), &recipe); err != nil {
		return nil, err
	}

	return jsonLDToRecipeCore(&recipe)
}

// isRecipeType checks if the @type field indicates a Recipe.
func isRecipeType(typeField interface{}) bool {
	switch v := typeField.(type) {
	case string:
		return v == "Recipe" || strings.HasSuffix(v, "/Recipe")
	case []interface{}:
		for _, t := range v {
			if s, ok := t.(string); ok {
				if s == "Recipe" || strings.HasSuffix(s, "/Recipe") {
					return true
				}
			}
		}
	}
	return false
}

// jsonLDToRecipeCore converts a parsed JSON-LD recipe to a RecipeCore.
func jsonLDToRecipeCore(recipe *jsonLDRecipe) (*models.RecipeCore, error) {
	if recipe.Name == "" {
		return nil, fmt.Errorf("recipe name is empty")
	}

	ingredients := make(models.Ingredients, len(recipe.Ingredients))
	for i, ingStr := range recipe.Ingredients {
		ingredients[i] = models.Ingredient{
			Name:         ingStr,
			OriginalText: ingStr,
		}
	}

	instructions := parseJSONLDInstructions(recipe.Instructions)
	if len(ingredients) == 0 || len(instructions) == 0 {
		return nil, fmt.Errorf("JSON-LD recipe is incomplete")
	}

	// Cook time from ISO 8601 durations
	cookTime := parseISO8601Duration(recipe.CookTime)
	if cookTime == 0 {
		cookTime = parseISO8601Duration(recipe.TotalTime)
	}

	return &models.RecipeCore{
		Title:        recipe.Name,
		Ingredients:  ingredients,
		Instructions: pq.StringArray(instructions),
		PrepTime:     parseISO8601Duration(recipe.PrepTime),
		CookTime:     cookTime,
		Servings:     parseYield(recipe.Yield),
		Tags:         parseKeywords(recipe.Keywords),
		ImagePrompt:  fmt.Sprintf("A photo of %s", recipe.Name),
	}, nil
}

// parseJSONLDInstructions extracts instruction strings from various JSON-LD formats.
func parseJSONLDInstructions(instructions interface{}) []string {
	if instructions == nil {
		return nil
	}

	switch v := instructions.(type) {
	case string:
		return []string{v}
	case []interface{}:
		var result []string
		for _, item := range v {
			switch step := item.(type) {
			case string:
				result = append(result, step)
			case map[string]interface{}:
				// HowToStep or HowToSection
				if text, ok := step["text"].(string); ok {
					result = append(result, text)
				} else if items, ok := step["itemListElement"].([]interface{}); ok {
					// HowToSection with nested steps
					for _, subItem := range items {
						if subStep, ok := subItem.(map[string]interface{}); ok {
							if text, ok := subStep["text"].(string); ok {
								result = append(result, text)
							}
						}
					}
				}
			}
		}
		return result
	}
	return nil
}

// parseISO8601Duration parses an ISO 8601 duration string (e.g., "PT30M") into minutes.
func parseISO8601Duration(duration string) int {
	if duration == "" {
		return 0
	}

	re := regexp.MustCompile(`PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?`)
	matches := re.FindStringSubmatch(strings.ToUpper(duration))
	if matches == nil {
		return 0
	}

	var total int
	if matches[1] != "" {
		var hours int
		fmt.Sscanf(matches[1], "%d", &hours)
		total += hours * 60
	}
	if matches[2] != "" {
		var minutes int
		fmt.Sscanf(matches[2], "%d", &minutes)
		total += minutes
	}
	if matches[3] != "" {
		var seconds int
		fmt.Sscanf(matches[3], "%d", &seconds)
		if seconds >= 30 {
			total++
		}
	}
	return total
}

// parseYield extracts a servings count from the recipeYield field.
func parseYield(yield interface{}) int {
	switch v := yield.(type) {
	case string:
		var n int
		fmt.Sscanf(v, "%d", &n)
		return n
	case float64:
		return int(v)
	case []interface{}:
		if len(v) > 0 {
			return parseYield(v[0])
		}
	}
	return 0
}

// parseKeywords extracts tag strings from a keywords field.
func parseKeywords(keywords interface{}) []string {
	switch v := keywords.(type) {
	case string:
		parts := strings.Split(v, ",")
		var result []string
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				result = append(result, p)
			}
		}
		return result
	case []interface{}:
		var result []string
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				result = append(result, s)
			}
		}
		return result
	}
	return nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mise-app/mise-api/internal/ai"
	"github.com/mise-app/mise-api/internal/cache"
	"github.com/mise-app/mise-api/internal/config"
	"github.com/mise-app/mise-api/internal/logger"
	"github.com/mise-app/mise-api/internal/models"
	"github.com/mise-app/mise-api/internal/repository"
	"github.com/mise-app/mise-api/internal/s3"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrNotRecipeOwner is returned when a user tries to modify a recipe they
// did not create.
var ErrNotRecipeOwner = errors.New("recipe belongs to another user")

// ErrRecipePrivate is returned when a user tries to read a private recipe
// they did not create.
var ErrRecipePrivate = errors.New("recipe is private")

// RecipeService is the business logic layer for recipe-related operations.
type RecipeService struct {
	Cfg           *config.Config
	Repo          repository.RecipeRepo
	Recent        *cache.RecentRecipes
	ImageProvider ai.ImageProvider
}

// RecipeResponse is the response object for recipe-related operations.
type RecipeResponse struct {
	ID              string             `json:"id"`
	Title           string             `json:"title"`
	OwnerID         string             `json:"ownerId"`
	ImageURL        string             `json:"imageUrl"`
	Ingredients     models.Ingredients `json:"ingredients"`
	Instructions    []string           `json:"instructions"`
	Tags            []string           `json:"tags"`
	Servings        int                `json:"servings"`
	ServingSize     string             `json:"servingSize,omitempty"`
	PrepTimeMinutes int                `json:"prepTimeMinutes"`
	CookTimeMinutes int                `json:"cookTimeMinutes"`
	Source          string             `json:"source"`
	SourceURL       string             `json:"sourceUrl,omitempty"`
	Public          bool               `json:"public"`
	CreatedAt       string             `json:"createdAt"`
	UpdatedAt       string             `json:"updatedAt"`
}

// RecipeListItem is a lightweight response object for recipe listing.
type RecipeListItem struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	OwnerID         string   `json:"ownerId"`
	ImageURL        string   `json:"imageUrl"`
	CookTimeMinutes int      `json:"cookTimeMinutes"`
	Tags            []string `json:"tags"`
	Public          bool     `json:"public"`
	CreatedAt       string   `json:"createdAt"`
	UpdatedAt       string   `json:"updatedAt"`
}

// NewRecipeService is the constructor function for initializing a new RecipeService
func NewRecipeService(cfg *config.Config, repo repository.RecipeRepo, recent *cache.RecentRecipes, imageProvider ai.ImageProvider) *RecipeService {
	return &RecipeService{
		Cfg:           cfg,
		Repo:          repo,
		Recent:        recent,
		ImageProvider: imageProvider,
	}
}

// CreateRecipe stores a new recipe owned by the user and associates its tags.
func (s *RecipeService) CreateRecipe(userID uint, core models.RecipeCore, public bool, source models.RecipeSource) (*RecipeResponse, error) {
	if err := validateRecipeCore(&core); err != nil {
		return nil, err
	}

	recipe := &models.Recipe{
		RecipeCore:  core,
		Source:      source,
		Public:      public,
		CreatedByID: userID,
	}

	if err := s.Repo.CreateRecipe(recipe); err != nil {
		return nil, fmt.Errorf("failed to create recipe: %w", err)
	}

	if len(core.Tags) > 0 {
		if err := s.AssociateTagsWithRecipe(recipe, core.Tags); err != nil {
			// The recipe itself is saved; tags are not worth failing the request over
			logger.Get().Warn("failed to associate tags",
				zap.Uint("recipe_id", recipe.ID), zap.Error(err))
		}
	}

	return s.ToRecipeResponse(recipe), nil
}

// GetRecipe fetches a recipe, enforcing the owner-or-public read rule, and
// records the view for the user's recent list.
func (s *RecipeService) GetRecipe(userID, recipeID uint) (*RecipeResponse, error) {
	recipe, err := s.Repo.GetRecipeByID(recipeID)
	if err != nil {
		return nil, err
	}

	if recipe.CreatedByID != userID && !recipe.Public {
		return nil, ErrRecipePrivate
	}

	if s.Recent != nil {
		s.Recent.Record(userID, recipeID)
	}

	return s.ToRecipeResponse(recipe), nil
}

// GetRecipeModel fetches the raw recipe model with the same visibility rule.
// Used by the voice context builder and shopping aggregation, which need the
// model rather than the response shape.
func (s *RecipeService) GetRecipeModel(userID, recipeID uint) (*models.Recipe, error) {
	recipe, err := s.Repo.GetRecipeByID(recipeID)
	if err != nil {
		return nil, err
	}
	if recipe.CreatedByID != userID && !recipe.Public {
		return nil, ErrRecipePrivate
	}
	return recipe, nil
}

// GetUserRecipes returns a paginated list of the user's own recipes.
func (s *RecipeService) GetUserRecipes(userID uint, page, pageSize int) ([]RecipeListItem, int64, error) {
	recipes, total, err := s.Repo.GetUserRecipes(userID, page, pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get user recipes: %w", err)
	}
	return ToRecipeListItems(recipes), total, nil
}

// SearchRecipes returns a paginated list of recipes visible to the user,
// filtered by title substring and/or tag.
func (s *RecipeService) SearchRecipes(userID uint, query, tag string, page, pageSize int) ([]RecipeListItem, int64, error) {
	recipes, total, err := s.Repo.SearchRecipes(userID, query, strings.ToLower(strings.TrimSpace(tag)), page, pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search recipes: %w", err)
	}
	return ToRecipeListItems(recipes), total, nil
}

// GetRecentRecipes returns the user's recently viewed recipes, most recent
// first. IDs that no longer resolve are skipped.
func (s *RecipeService) GetRecentRecipes(userID uint) ([]RecipeListItem, error) {
	if s.Recent == nil {
		return nil, nil
	}

	ids := s.Recent.ForUser(userID)
	if len(ids) == 0 {
		return nil, nil
	}

	recipes, err := s.Repo.GetRecipesByIDs(ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent recipes: %w", err)
	}

	// Restore the cache's most-recent-first order
	byID := make(map[uint]models.Recipe, len(recipes))
	for _, r := range recipes {
		byID[r.ID] = r
	}
	ordered := make([]models.Recipe, 0, len(recipes))
	for _, id := range ids {
		if r, ok := byID[id]; ok {
			ordered = append(ordered, r)
		}
	}

	return ToRecipeListItems(ordered), nil
}

// UpdateRecipe replaces the cooking content of a recipe the user owns.
func (s *RecipeService) UpdateRecipe(userID, recipeID uint, core models.RecipeCore) (*RecipeResponse, error) {
	recipe, err := s.Repo.GetRecipeByID(recipeID)
	if err != nil {
		return nil, err
	}
	if recipe.CreatedByID != userID {
		return nil, ErrNotRecipeOwner
	}

	if err := validateRecipeCore(&core); err != nil {
		return nil, err
	}

	if err := s.Repo.UpdateRecipeCore(recipeID, core); err != nil {
		return nil, fmt.Errorf("failed to update recipe: %w", err)
	}

	if err := s.AssociateTagsWithRecipe(recipe, core.Tags); err != nil {
		logger.Get().Warn("failed to associate tags",
			zap.Uint("recipe_id", recipeID), zap.Error(err))
	}

	return s.GetRecipe(userID, recipeID)
}

// SetRecipeVisibility flips a recipe the user owns between private and public.
func (s *RecipeService) SetRecipeVisibility(userID, recipeID uint, public bool) error {
	recipe, err := s.Repo.GetRecipeByID(recipeID)
	if err != nil {
		return err
	}
	if recipe.CreatedByID != userID {
		return ErrNotRecipeOwner
	}

	return s.Repo.UpdateRecipeVisibility(recipeID, public)
}

// DeleteRecipe deletes a recipe the user owns, along with its cover image.
func (s *RecipeService) DeleteRecipe(ctx context.Context, userID, recipeID uint) error {
	recipe, err := s.Repo.GetRecipeByID(recipeID)
	if err != nil {
		return err
	}
	if recipe.CreatedByID != userID {
		return ErrNotRecipeOwner
	}

	if err := s.Repo.DeleteRecipe(recipeID); err != nil {
		return fmt.Errorf("failed to delete recipe: %w", err)
	}

	if s.Recent != nil {
		s.Recent.Remove(userID, recipeID)
	}

	if recipe.ImageURL != "" {
		s3Key := s3.GenerateRecipeImageKey(userID, recipeID)
		if err := s3.DeleteRecipeImageFromS3(ctx, s.Cfg, s3Key); err != nil {
			// Orphaned object, not a user-visible failure
			logger.Get().Warn("failed to delete recipe image from S3",
				zap.Uint("recipe_id", recipeID), zap.Error(err))
		}
	}

	return nil
}

// UploadCoverImage stores a cover image for a recipe the user owns and
// returns the new image URL.
func (s *RecipeService) UploadCoverImage(ctx context.Context, userID, recipeID uint, imageBytes []byte) (string, error) {
	recipe, err := s.Repo.GetRecipeByID(recipeID)
	if err != nil {
		return "", err
	}
	if recipe.CreatedByID != userID {
		return "", ErrNotRecipeOwner
	}

	s3Key := s3.GenerateRecipeImageKey(userID, recipeID)
	imageURL, err := s3.UploadRecipeImageToS3(ctx, s.Cfg, imageBytes, s3Key)
	if err != nil {
		return "", fmt.Errorf("failed to upload image to S3: %w", err)
	}

	if err := s.Repo.UpdateRecipeImageURL(recipeID, imageURL); err != nil {
		return "", fmt.Errorf("failed to store image URL: %w", err)
	}

	return imageURL, nil
}

// GenerateCoverImage renders a cover for a chat-created recipe from its
// stored image prompt and uploads it.
func (s *RecipeService) GenerateCoverImage(ctx context.Context, userID, recipeID uint) (string, error) {
	recipe, err := s.Repo.GetRecipeByID(recipeID)
	if err != nil {
		return "", err
	}
	if recipe.CreatedByID != userID {
		return "", ErrNotRecipeOwner
	}
	if recipe.ImagePrompt == "" {
		return "", errors.New("recipe has no image prompt")
	}

	imageBytes, err := s.ImageProvider.GenerateImage(ctx, recipe.ImagePrompt)
	if err != nil {
		return "", fmt.Errorf("failed to generate cover image: %w", err)
	}

	return s.UploadCoverImage(ctx, userID, recipeID, imageBytes)
}

// AssociateTagsWithRecipe resolves each tag name to a Tag row, creating
// missing ones, and replaces the recipe's tag associations.
func (s *RecipeService) AssociateTagsWithRecipe(recipe *models.Recipe, tags []string) error {
	var associatedTags []models.Tag

	for _, raw := range tags {
		name := cleanTagName(raw)
		if name == "" {
			continue
		}

		existingTag, err := s.Repo.FindTagByName(name)
		if err == nil {
			associatedTags = append(associatedTags, *existingTag)
		} else if errors.Is(err, gorm.ErrRecordNotFound) {
			newTag := models.Tag{Name: name}
			if err := s.Repo.CreateTag(&newTag); err != nil {
				return fmt.Errorf("failed to create new tag: %v", err)
			}
			associatedTags = append(associatedTags, newTag)
		} else {
			return fmt.Errorf("database error while searching for tag: %v", err)
		}
	}

	if err := s.Repo.UpdateRecipeTagsAssociation(recipe.ID, associatedTags); err != nil {
		return fmt.Errorf("failed to update recipe with tags: %v", err)
	}

	return nil
}

// ToRecipeResponse converts a Recipe to a RecipeResponse.
func (s *RecipeService) ToRecipeResponse(r *models.Recipe) *RecipeResponse {
	return &RecipeResponse{
		ID:              fmt.Sprintf("%d", r.ID),
		Title:           r.Title,
		OwnerID:         fmt.Sprintf("%d", r.CreatedByID),
		ImageURL:        r.ImageURL,
		Ingredients:     r.Ingredients,
		Instructions:    r.Instructions,
		Tags:            tagNames(r),
		Servings:        r.Servings,
		ServingSize:     r.ServingSize,
		PrepTimeMinutes: r.PrepTime,
		CookTimeMinutes: r.CookTime,
		Source:          string(r.Source),
		SourceURL:       r.SourceURL,
		Public:          r.Public,
		CreatedAt:       r.CreatedAt.Format("2006-01-02T15:04:05Z"),
		UpdatedAt:       r.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

// ToRecipeListItems converts recipes to the lightweight list shape.
func ToRecipeListItems(recipes []models.Recipe) []RecipeListItem {
	items := make([]RecipeListItem, len(recipes))
	for i, r := range recipes {
		items[i] = RecipeListItem{
			ID:              fmt.Sprintf("%d", r.ID),
			Title:           r.Title,
			OwnerID:         fmt.Sprintf("%d", r.CreatedByID),
			ImageURL:        r.ImageURL,
			CookTimeMinutes: r.CookTime,
			Tags:            tagNames(&r),
			Public:          r.Public,
			CreatedAt:       r.CreatedAt.Format("2006-01-02T15:04:05Z"),
			UpdatedAt:       r.UpdatedAt.Format("2006-01-02T15:04:05Z"),
		}
	}
	return items
}

// tagNames flattens a recipe's tag relation into plain strings, falling back
// to the raw strings carried on the core for rows whose relation was not
// preloaded.
func tagNames(r *models.Recipe) []string {
	if len(r.Tags) == 0 {
		return r.RecipeCore.Tags
	}
	names := make([]string, 0, len(r.Tags))
	for _, t := range r.Tags {
		names = append(names, t.Name)
	}
	return names
}

// recipeResultToCore converts an ai.RecipeResult to a models.RecipeCore.
func recipeResultToCore(r *ai.RecipeResult) models.RecipeCore {
	ingredients := make(models.Ingredients, len(r.Ingredients))
	for i, ing := range r.Ingredients {
		ingredients[i] = models.Ingredient{
			Name:         ing.Name,
			Unit:         ing.Unit,
			Amount:       ing.Amount,
			OriginalText: ing.OriginalText,
			IsEstimated:  ing.IsEstimated,
		}
	}
	return models.RecipeCore{
		Title:        r.Title,
		Ingredients:  ingredients,
		Instructions: r.Instructions,
		PrepTime:     r.PrepTime,
		CookTime:     r.CookTime,
		Servings:     r.Servings,
		ServingSize:  r.ServingSize,
		Tags:         r.Tags,
		ImagePrompt:  r.ImagePrompt,
		SourceURL:    r.SourceURL,
	}
}

// validateRecipeCore validates that a recipe's required fields are populated.
func validateRecipeCore(core *models.RecipeCore) error {
	if core.Title == "" {
		return errors.New("recipe title is required")
	}
	if len(core.Ingredients) == 0 {
		return errors.New("recipe needs at least one ingredient")
	}
	if len(core.Instructions) == 0 {
		return errors.New("recipe needs at least one instruction")
	}
	return nil
}

// cleanTagName formats a tag string for storage.
func cleanTagName(tag string) string {
	tag = strings.ToLower(tag)
	tag = strings.ReplaceAll(tag, " ", "")
	tag = strings.TrimPrefix(tag, "#")
	return tag
}

package service

import (
	"errors"
	"fmt"

	"github.com/mise-app/mise-api/internal/models"
	"github.com/mise-app/mise-api/internal/repository"
)

// ErrNotCookbookOwner is returned when a user tries to modify a cookbook
// they do not own.
var ErrNotCookbookOwner = errors.New("cookbook belongs to another user")

// CookbookService is the business logic layer for cookbook operations.
type CookbookService struct {
	Repo       repository.CookbookRepo
	RecipeRepo repository.RecipeRepo
}

// CookbookResponse is the response object for cookbook operations.
type CookbookResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	RecipeCount int64  `json:"recipeCount"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

// NewCookbookService is the constructor function for initializing a new CookbookService
func NewCookbookService(repo repository.CookbookRepo, recipeRepo repository.RecipeRepo) *CookbookService {
	return &CookbookService{
		Repo:       repo,
		RecipeRepo: recipeRepo,
	}
}

// CreateCookbook creates a named cookbook for the user.
func (s *CookbookService) CreateCookbook(userID uint, name, description string) (*CookbookResponse, error) {
	if name == "" {
		return nil, errors.New("cookbook name is required")
	}

	cookbook := &models.Cookbook{
		Name:        name,
		Description: description,
		OwnerID:     userID,
	}
	if err := s.Repo.CreateCookbook(cookbook); err != nil {
		return nil, fmt.Errorf("failed to create cookbook: %w", err)
	}

	return s.toResponse(cookbook, 0), nil
}

// GetCookbooks lists the user's cookbooks with their recipe counts.
func (s *CookbookService) GetCookbooks(userID uint) ([]CookbookResponse, error) {
	cookbooks, err := s.Repo.GetCookbooksByOwner(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cookbooks: %w", err)
	}

	responses := make([]CookbookResponse, 0, len(cookbooks))
	for i := range cookbooks {
		count, err := s.Repo.CountEntries(cookbooks[i].ID)
		if err != nil {
			return nil, fmt.Errorf("failed to count cookbook entries: %w", err)
		}
		responses = append(responses, *s.toResponse(&cookbooks[i], count))
	}
	return responses, nil
}

// GetCookbookRecipes returns the recipes in a cookbook the user owns.
func (s *CookbookService) GetCookbookRecipes(userID, cookbookID uint) ([]models.Recipe, error) {
	cookbook, err := s.ownedCookbook(userID, cookbookID)
	if err != nil {
		return nil, err
	}

	ids := make([]uint, 0, len(cookbook.Entries))
	for _, e := range cookbook.Entries {
		ids = append(ids, e.RecipeID)
	}
	return s.RecipeRepo.GetRecipesByIDs(ids)
}

// RenameCookbook updates a cookbook's name and description.
func (s *CookbookService) RenameCookbook(userID, cookbookID uint, name, description string) error {
	cookbook, err := s.ownedCookbook(userID, cookbookID)
	if err != nil {
		return err
	}
	if name == "" {
		return errors.New("cookbook name is required")
	}

	cookbook.Name = name
	cookbook.Description = description
	return s.Repo.UpdateCookbook(cookbook)
}

// DeleteCookbook deletes a cookbook the user owns. Recipes themselves are
// untouched.
func (s *CookbookService) DeleteCookbook(userID, cookbookID uint) error {
	if _, err := s.ownedCookbook(userID, cookbookID); err != nil {
		return err
	}
	return s.Repo.DeleteCookbook(cookbookID)
}

// AddRecipe adds a recipe to a cookbook the user owns. Adding a recipe that
// is already present is a no-op.
func (s *CookbookService) AddRecipe(userID, cookbookID, recipeID uint) error {
	if _, err := s.ownedCookbook(userID, cookbookID); err != nil {
		return err
	}

	// The recipe must be visible to the user to be collected
	recipe, err := s.RecipeRepo.GetRecipeByID(recipeID)
	if err != nil {
		return err
	}
	if recipe.CreatedByID != userID && !recipe.Public {
		return ErrRecipePrivate
	}

	exists, err := s.Repo.EntryExists(cookbookID, recipeID)
	if err != nil {
		return fmt.Errorf("failed to check cookbook entry: %w", err)
	}
	if exists {
		return nil
	}

	entry := &models.CookbookEntry{
		CookbookID: cookbookID,
		RecipeID:   recipeID,
	}
	if err := s.Repo.AddEntry(entry); err != nil {
		return fmt.Errorf("failed to add recipe to cookbook: %w", err)
	}
	return nil
}

// RemoveRecipe removes a recipe from a cookbook the user owns. Removing a
// recipe that is not in the cookbook is a NotFound error.
func (s *CookbookService) RemoveRecipe(userID, cookbookID, recipeID uint) error {
	if _, err := s.ownedCookbook(userID, cookbookID); err != nil {
		return err
	}
	return s.Repo.RemoveEntry(cookbookID, recipeID)
}

// ownedCookbook fetches a cookbook and verifies ownership.
func (s *CookbookService) ownedCookbook(userID, cookbookID uint) (*models.Cookbook, error) {
	cookbook, err := s.Repo.GetCookbookByID(cookbookID)
	if err != nil {
		return nil, err
	}
	if cookbook.OwnerID != userID {
		return nil, ErrNotCookbookOwner
	}
	return cookbook, nil
}

func (s *CookbookService) toResponse(c *models.Cookbook, count int64) *CookbookResponse {
	return &CookbookResponse{
		ID:          fmt.Sprintf("%d", c.ID),
		Name:        c.Name,
		Description: c.Description,
		RecipeCount: count,
		CreatedAt:   c.CreatedAt.Format("2006-01-02T15:04:05Z"),
		UpdatedAt:   c.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

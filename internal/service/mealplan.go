package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/mise-app/mise-api/internal/models"
	"github.com/mise-app/mise-api/internal/repository"
)

// ErrNotMealPlanOwner is returned when a user tries to modify a meal plan
// they do not own.
var ErrNotMealPlanOwner = errors.New("meal plan belongs to another user")

// MealPlanService is the business logic layer for meal plan operations.
type MealPlanService struct {
	Repo       repository.MealPlanRepo
	RecipeRepo repository.RecipeRepo
}

// MealPlanResponse is the response object for meal plan operations.
type MealPlanResponse struct {
	ID        string              `json:"id"`
	StartDate string              `json:"startDate"`
	Notes     string              `json:"notes,omitempty"`
	Entries   []MealPlanEntryItem `json:"entries"`
	CreatedAt string              `json:"createdAt"`
	UpdatedAt string              `json:"updatedAt"`
}

// MealPlanEntryItem is a single planned meal in a response.
type MealPlanEntryItem struct {
	Day         int    `json:"day"`
	Slot        string `json:"slot"`
	RecipeID    string `json:"recipeId"`
	RecipeTitle string `json:"recipeTitle,omitempty"`
	Servings    int    `json:"servings,omitempty"`
}

// NewMealPlanService is the constructor function for initializing a new MealPlanService
func NewMealPlanService(repo repository.MealPlanRepo, recipeRepo repository.RecipeRepo) *MealPlanService {
	return &MealPlanService{
		Repo:       repo,
		RecipeRepo: recipeRepo,
	}
}

// CreateMealPlan creates a plan for the week beginning at startDate.
func (s *MealPlanService) CreateMealPlan(userID uint, startDate time.Time, notes string) (*MealPlanResponse, error) {
	plan := &models.MealPlan{
		OwnerID:   userID,
		StartDate: startDate,
		Notes:     notes,
	}
	if err := s.Repo.CreateMealPlan(plan); err != nil {
		return nil, fmt.Errorf("failed to create meal plan: %w", err)
	}
	return s.toResponse(plan), nil
}

// GetMealPlan fetches a plan the user owns, with its entries.
func (s *MealPlanService) GetMealPlan(userID, planID uint) (*MealPlanResponse, error) {
	plan, err := s.ownedPlan(userID, planID)
	if err != nil {
		return nil, err
	}
	return s.toResponse(plan), nil
}

// GetMealPlans lists the user's plans, newest first.
func (s *MealPlanService) GetMealPlans(userID uint, page, pageSize int) ([]MealPlanResponse, int64, error) {
	plans, total, err := s.Repo.GetMealPlansByOwner(userID, page, pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list meal plans: %w", err)
	}

	responses := make([]MealPlanResponse, len(plans))
	for i := range plans {
		responses[i] = *s.toResponse(&plans[i])
	}
	return responses, total, nil
}

// UpdateNotes updates a plan's free-form notes.
func (s *MealPlanService) UpdateNotes(userID, planID uint, notes string) error {
	if _, err := s.ownedPlan(userID, planID); err != nil {
		return err
	}
	return s.Repo.UpdateMealPlanNotes(planID, notes)
}

// DeleteMealPlan deletes a plan the user owns.
func (s *MealPlanService) DeleteMealPlan(userID, planID uint) error {
	if _, err := s.ownedPlan(userID, planID); err != nil {
		return err
	}
	return s.Repo.DeleteMealPlan(planID)
}

// SetEntry plans a recipe into a (day, slot) cell, overwriting anything
// already there. Servings 0 means use the recipe's own servings.
func (s *MealPlanService) SetEntry(userID, planID uint, day int, slot models.MealSlot, recipeID uint, servings int) error {
	if _, err := s.ownedPlan(userID, planID); err != nil {
		return err
	}

	recipe, err := s.RecipeRepo.GetRecipeByID(recipeID)
	if err != nil {
		return err
	}
	if recipe.CreatedByID != userID && !recipe.Public {
		return ErrRecipePrivate
	}
	if servings < 0 {
		return errors.New("servings override cannot be negative")
	}

	entry := &models.MealPlanEntry{
		PlanID:   planID,
		Day:      day,
		Slot:     slot,
		RecipeID: recipeID,
		Servings: servings,
	}
	if err := s.Repo.UpsertEntry(entry); err != nil {
		return fmt.Errorf("failed to set meal plan entry: %w", err)
	}
	return nil
}

// RemoveEntry clears a (day, slot) cell.
func (s *MealPlanService) RemoveEntry(userID, planID uint, day int, slot models.MealSlot) error {
	if _, err := s.ownedPlan(userID, planID); err != nil {
		return err
	}
	return s.Repo.RemoveEntry(planID, day, slot)
}

// ownedPlan fetches a meal plan and verifies ownership.
func (s *MealPlanService) ownedPlan(userID, planID uint) (*models.MealPlan, error) {
	plan, err := s.Repo.GetMealPlanByID(planID)
	if err != nil {
		return nil, err
	}
	if plan.OwnerID != userID {
		return nil, ErrNotMealPlanOwner
	}
	return plan, nil
}

func (s *MealPlanService) toResponse(p *models.MealPlan) *MealPlanResponse {
	entries := make([]MealPlanEntryItem, 0, len(p.Entries))
	for _, e := range p.Entries {
		item := MealPlanEntryItem{
			Day:      e.Day,
			Slot:     string(e.Slot),
			RecipeID: fmt.Sprintf("%d", e.RecipeID),
			Servings: e.Servings,
		}
		if e.Recipe != nil {
			item.RecipeTitle = e.Recipe.Title
		}
		entries = append(entries, item)
	}

	return &MealPlanResponse{
		ID:        fmt.Sprintf("%d", p.ID),
		StartDate: p.StartDate.Format("2006-01-02"),
		Notes:     p.Notes,
		Entries:   entries,
		CreatedAt: p.CreatedAt.Format("2006-01-02T15:04:05Z"),
		UpdatedAt: p.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mise-app/mise-api/internal/ai"
	"github.com/mise-app/mise-api/internal/logger"
	"github.com/mise-app/mise-api/internal/models"
	"github.com/mise-app/mise-api/internal/repository"
	"go.uber.org/zap"
)

// ErrNotShoppingListOwner is returned when a user tries to modify a shopping
// list they do not own.
var ErrNotShoppingListOwner = errors.New("shopping list belongs to another user")

// ShoppingService is the business logic layer for shopping list operations.
type ShoppingService struct {
	Repo         repository.ShoppingListRepo
	PlanRepo     repository.MealPlanRepo
	RecipeRepo   repository.RecipeRepo
	TextProvider ai.TextProvider
}

// ShoppingListResponse is the response object for shopping list operations.
type ShoppingListResponse struct {
	ID         string               `json:"id"`
	Name       string               `json:"name"`
	MealPlanID string               `json:"mealPlanId,omitempty"`
	Items      models.ShoppingItems `json:"items"`
	CreatedAt  string               `json:"createdAt"`
	UpdatedAt  string               `json:"updatedAt"`
}

// NewShoppingService is the constructor function for initializing a new ShoppingService
func NewShoppingService(repo repository.ShoppingListRepo, planRepo repository.MealPlanRepo, recipeRepo repository.RecipeRepo, textProvider ai.TextProvider) *ShoppingService {
	return &ShoppingService{
		Repo:         repo,
		PlanRepo:     planRepo,
		RecipeRepo:   recipeRepo,
		TextProvider: textProvider,
	}
}

// GenerateFromMealPlan builds a shopping list by aggregating the ingredients
// of every recipe planned in the given week, scaled by per-entry servings
// overrides. When normalize is set, an AI pass resolves vague measurements
// to standard units before merging.
func (s *ShoppingService) GenerateFromMealPlan(ctx context.Context, userID, planID uint, normalize bool) (*ShoppingListResponse, error) {
	plan, err := s.PlanRepo.GetMealPlanByID(planID)
	if err != nil {
		return nil, err
	}
	if plan.OwnerID != userID {
		return nil, ErrNotMealPlanOwner
	}

	items, err := s.aggregatePlan(ctx, plan, normalize)
	if err != nil {
		return nil, err
	}

	list := &models.ShoppingList{
		OwnerID:    userID,
		MealPlanID: &plan.ID,
		Name:       "Week of " + plan.StartDate.Format("Jan 2"),
		Items:      items,
	}
	if err := s.Repo.CreateShoppingList(list); err != nil {
		return nil, fmt.Errorf("failed to create shopping list: %w", err)
	}

	return s.toResponse(list), nil
}

// Regenerate re-aggregates a list from its meal plan. Generated items are
// replaced; manual items and their checked state survive.
func (s *ShoppingService) Regenerate(ctx context.Context, userID, listID uint, normalize bool) (*ShoppingListResponse, error) {
	list, err := s.ownedList(userID, listID)
	if err != nil {
		return nil, err
	}
	if list.MealPlanID == nil {
		return nil, errors.New("shopping list was not generated from a meal plan")
	}

	plan, err := s.PlanRepo.GetMealPlanByID(*list.MealPlanID)
	if err != nil {
		return nil, err
	}

	items, err := s.aggregatePlan(ctx, plan, normalize)
	if err != nil {
		return nil, err
	}
	for _, item := range list.Items {
		if item.Manual {
			items = append(items, item)
		}
	}

	if err := s.Repo.UpdateShoppingListItems(listID, items); err != nil {
		return nil, fmt.Errorf("failed to update shopping list: %w", err)
	}

	list.Items = items
	return s.toResponse(list), nil
}

// GetShoppingLists lists the user's shopping lists.
func (s *ShoppingService) GetShoppingLists(userID uint) ([]ShoppingListResponse, error) {
	lists, err := s.Repo.GetShoppingListsByOwner(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list shopping lists: %w", err)
	}

	responses := make([]ShoppingListResponse, len(lists))
	for i := range lists {
		responses[i] = *s.toResponse(&lists[i])
	}
	return responses, nil
}

// GetShoppingList fetches a single list the user owns.
func (s *ShoppingService) GetShoppingList(userID, listID uint) (*ShoppingListResponse, error) {
	list, err := s.ownedList(userID, listID)
	if err != nil {
		return nil, err
	}
	return s.toResponse(list), nil
}

// SetItemChecked checks or unchecks a single line item.
func (s *ShoppingService) SetItemChecked(userID, listID uint, itemIndex int, checked bool) error {
	list, err := s.ownedList(userID, listID)
	if err != nil {
		return err
	}
	if itemIndex < 0 || itemIndex >= len(list.Items) {
		return errors.New("shopping list item index out of range")
	}

	list.Items[itemIndex].Checked = checked
	return s.Repo.UpdateShoppingListItems(listID, list.Items)
}

// AddManualItem appends a user-entered line item. Manual items survive
// regeneration.
func (s *ShoppingService) AddManualItem(userID, listID uint, name, unit string, amount float64) error {
	list, err := s.ownedList(userID, listID)
	if err != nil {
		return err
	}
	if strings.TrimSpace(name) == "" {
		return errors.New("item name is required")
	}

	list.Items = append(list.Items, models.ShoppingItem{
		Name:   strings.TrimSpace(name),
		Unit:   unit,
		Amount: amount,
		Manual: true,
	})
	return s.Repo.UpdateShoppingListItems(listID, list.Items)
}

// RemoveItem deletes a single line item.
func (s *ShoppingService) RemoveItem(userID, listID uint, itemIndex int) error {
	list, err := s.ownedList(userID, listID)
	if err != nil {
		return err
	}
	if itemIndex < 0 || itemIndex >= len(list.Items) {
		return errors.New("shopping list item index out of range")
	}

	list.Items = append(list.Items[:itemIndex], list.Items[itemIndex+1:]...)
	return s.Repo.UpdateShoppingListItems(listID, list.Items)
}

// DeleteShoppingList deletes a list the user owns.
func (s *ShoppingService) DeleteShoppingList(userID, listID uint) error {
	if _, err := s.ownedList(userID, listID); err != nil {
		return err
	}
	return s.Repo.DeleteShoppingList(listID)
}

// aggregatePlan flattens every planned recipe's ingredients into merged
// shopping items, scaling amounts by servings overrides.
func (s *ShoppingService) aggregatePlan(ctx context.Context, plan *models.MealPlan, normalize bool) (models.ShoppingItems, error) {
	ids := make([]uint, 0, len(plan.Entries))
	for _, e := range plan.Entries {
		ids = append(ids, e.RecipeID)
	}

	recipes, err := s.RecipeRepo.GetRecipesByIDs(ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load planned recipes: %w", err)
	}
	byID := make(map[uint]*models.Recipe, len(recipes))
	for i := range recipes {
		byID[recipes[i].ID] = &recipes[i]
	}

	var items models.ShoppingItems
	for _, entry := range plan.Entries {
		recipe, ok := byID[entry.RecipeID]
		if !ok {
			// Recipe deleted since planning; skip the entry
			continue
		}

		multiplier := 1.0
		if entry.Servings > 0 && recipe.Servings > 0 {
			multiplier = float64(entry.Servings) / float64(recipe.Servings)
		}

		for _, ing := range recipe.Ingredients {
			items = mergeItem(items, models.ShoppingItem{
				Name:      ing.Name,
				Unit:      ing.Unit,
				Amount:    ing.Amount * multiplier,
				Estimated: ing.IsEstimated,
				RecipeIDs: []uint{recipe.ID},
			})
		}
	}

	if normalize && len(items) > 0 {
		items = s.normalizeItems(ctx, items)
	}

	return items, nil
}

// normalizeItems runs the AI measurement pass and re-merges on the
// normalized name and unit. A failed pass leaves the raw merge untouched.
func (s *ShoppingService) normalizeItems(ctx context.Context, items models.ShoppingItems) models.ShoppingItems {
	inputs := make([]ai.IngredientInput, len(items))
	for i, item := range items {
		inputs[i] = ai.IngredientInput{
			Name:   item.Name,
			Unit:   item.Unit,
			Amount: item.Amount,
		}
	}

	normalized, err := s.TextProvider.NormalizeIngredients(ctx, inputs)
	if err != nil {
		logger.Get().Warn("shopping list normalization failed", zap.Error(err))
		return items
	}
	if len(normalized) != len(items) {
		logger.Get().Warn("shopping list normalization returned wrong count",
			zap.Int("want", len(items)), zap.Int("got", len(normalized)))
		return items
	}

	var merged models.ShoppingItems
	for i, n := range normalized {
		merged = mergeItem(merged, models.ShoppingItem{
			Name:      n.Name,
			Unit:      n.NormalizedUnit,
			Amount:    n.NormalizedAmount,
			Estimated: items[i].Estimated || n.IsEstimated,
			RecipeIDs: items[i].RecipeIDs,
		})
	}
	return merged
}

// mergeItem folds an item into the list, summing amounts for lines that
// share a name and unit.
func mergeItem(items models.ShoppingItems, item models.ShoppingItem) models.ShoppingItems {
	key := func(i models.ShoppingItem) string {
		return strings.ToLower(strings.TrimSpace(i.Name)) + "\x00" + strings.ToLower(strings.TrimSpace(i.Unit))
	}

	for i := range items {
		if key(items[i]) == key(item) {
			items[i].Amount += item.Amount
			items[i].Estimated = items[i].Estimated || item.Estimated
			items[i].RecipeIDs = appendRecipeIDs(items[i].RecipeIDs, item.RecipeIDs)
			return items
		}
	}
	return append(items, item)
}

func appendRecipeIDs(existing, more []uint) []uint {
	for _, id := range more {
		seen := false
		for _, have := range existing {
			if have == id {
				seen = true
				break
			}
		}
		if !seen {
			existing = append(existing, id)
		}
	}
	return existing
}

// ownedList fetches a shopping list and verifies ownership.
func (s *ShoppingService) ownedList(userID, listID uint) (*models.ShoppingList, error) {
	list, err := s.Repo.GetShoppingListByID(listID)
	if err != nil {
		return nil, err
	}
	if list.OwnerID != userID {
		return nil, ErrNotShoppingListOwner
	}
	return list, nil
}

func (s *ShoppingService) toResponse(l *models.ShoppingList) *ShoppingListResponse {
	resp := &ShoppingListResponse{
		ID:        fmt.Sprintf("%d", l.ID),
		Name:      l.Name,
		Items:     l.Items,
		CreatedAt: l.CreatedAt.Format("2006-01-02T15:04:05Z"),
		UpdatedAt: l.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
	if l.MealPlanID != nil {
		resp.MealPlanID = fmt.Sprintf("%d", *l.MealPlanID)
	}
	if resp.Items == nil {
		resp.Items = models.ShoppingItems{}
	}
	return resp
}

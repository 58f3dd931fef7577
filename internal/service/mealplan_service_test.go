package service

import (
	"errors"
	"testing"
	"time"

	"github.com/mise-app/mise-api/internal/models"
	"github.com/mise-app/mise-api/internal/repository"
	"github.com/mise-app/mise-api/internal/testutil"
)

func newTestMealPlanService(repo *testutil.MockMealPlanRepo, recipeRepo *testutil.MockRecipeRepo) *MealPlanService {
	return &MealPlanService{
		Repo:       repo,
		RecipeRepo: recipeRepo,
	}
}

func TestCreateMealPlan_Success(t *testing.T) {
	repo := testutil.NewMockMealPlanRepo()
	svc := newTestMealPlanService(repo, testutil.NewMockRecipeRepo())

	start := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	resp, err := svc.CreateMealPlan(1, start, "Pasta week")
	if err != nil {
		t.Fatalf("CreateMealPlan error: %v", err)
	}
	if resp.StartDate != "2025-03-03" {
		t.Errorf("CreateMealPlan startDate = %q, want '2025-03-03'", resp.StartDate)
	}
	if resp.Notes != "Pasta week" {
		t.Errorf("CreateMealPlan notes = %q", resp.Notes)
	}
	if len(resp.Entries) != 0 {
		t.Errorf("CreateMealPlan entries = %d, want 0", len(resp.Entries))
	}
}

func TestSetEntry_Success(t *testing.T) {
	repo := testutil.NewMockMealPlanRepo()
	recipeRepo := testutil.NewMockRecipeRepo()
	svc := newTestMealPlanService(repo, recipeRepo)

	recipe := testutil.TestRecipe()
	recipeRepo.Recipes[recipe.ID] = recipe

	if _, err := svc.CreateMealPlan(1, time.Now(), ""); err != nil {
		t.Fatalf("CreateMealPlan error: %v", err)
	}

	if err := svc.SetEntry(1, 1, 2, models.SlotDinner, recipe.ID, 6); err != nil {
		t.Fatalf("SetEntry error: %v", err)
	}

	plan, _ := repo.GetMealPlanByID(1)
	if len(plan.Entries) != 1 {
		t.Fatalf("SetEntry entries = %d, want 1", len(plan.Entries))
	}
	e := plan.Entries[0]
	if e.Day != 2 || e.Slot != models.SlotDinner || e.RecipeID != recipe.ID || e.Servings != 6 {
		t.Errorf("SetEntry entry = %+v", e)
	}
}

func TestSetEntry_OverwritesSameCell(t *testing.T) {
	repo := testutil.NewMockMealPlanRepo()
	recipeRepo := testutil.NewMockRecipeRepo()
	svc := newTestMealPlanService(repo, recipeRepo)

	first := testutil.TestRecipe()
	recipeRepo.Recipes[first.ID] = first
	second := testutil.TestRecipe()
	second.ID = 2
	second.Title = "Replacement"
	recipeRepo.Recipes[second.ID] = second

	if _, err := svc.CreateMealPlan(1, time.Now(), ""); err != nil {
		t.Fatalf("CreateMealPlan error: %v", err)
	}

	if err := svc.SetEntry(1, 1, 0, models.SlotLunch, first.ID, 0); err != nil {
		t.Fatalf("SetEntry error: %v", err)
	}
	if err := svc.SetEntry(1, 1, 0, models.SlotLunch, second.ID, 0); err != nil {
		t.Fatalf("SetEntry overwrite error: %v", err)
	}

	plan, _ := repo.GetMealPlanByID(1)
	if len(plan.Entries) != 1 {
		t.Fatalf("SetEntry same cell twice entries = %d, want 1", len(plan.Entries))
	}
	if plan.Entries[0].RecipeID != second.ID {
		t.Errorf("SetEntry overwrite recipeID = %d, want %d", plan.Entries[0].RecipeID, second.ID)
	}
}

func TestSetEntry_PrivateRecipeBlocked(t *testing.T) {
	repo := testutil.NewMockMealPlanRepo()
	recipeRepo := testutil.NewMockRecipeRepo()
	svc := newTestMealPlanService(repo, recipeRepo)

	other := testutil.TestRecipe() // owned by user 1, private
	recipeRepo.Recipes[other.ID] = other

	if _, err := svc.CreateMealPlan(2, time.Now(), ""); err != nil {
		t.Fatalf("CreateMealPlan error: %v", err)
	}

	err := svc.SetEntry(2, 1, 0, models.SlotDinner, other.ID, 0)
	if !errors.Is(err, ErrRecipePrivate) {
		t.Fatalf("SetEntry private recipe error = %v, want ErrRecipePrivate", err)
	}
}

func TestSetEntry_NegativeServings(t *testing.T) {
	repo := testutil.NewMockMealPlanRepo()
	recipeRepo := testutil.NewMockRecipeRepo()
	svc := newTestMealPlanService(repo, recipeRepo)

	recipe := testutil.TestRecipe()
	recipeRepo.Recipes[recipe.ID] = recipe

	if _, err := svc.CreateMealPlan(1, time.Now(), ""); err != nil {
		t.Fatalf("CreateMealPlan error: %v", err)
	}

	if err := svc.SetEntry(1, 1, 0, models.SlotDinner, recipe.ID, -2); err == nil {
		t.Fatal("SetEntry with negative servings should return error")
	}
}

func TestSetEntry_NotOwner(t *testing.T) {
	repo := testutil.NewMockMealPlanRepo()
	svc := newTestMealPlanService(repo, testutil.NewMockRecipeRepo())

	if _, err := svc.CreateMealPlan(1, time.Now(), ""); err != nil {
		t.Fatalf("CreateMealPlan error: %v", err)
	}

	err := svc.SetEntry(99, 1, 0, models.SlotDinner, 1, 0)
	if !errors.Is(err, ErrNotMealPlanOwner) {
		t.Fatalf("SetEntry by non-owner error = %v, want ErrNotMealPlanOwner", err)
	}
}

func TestRemoveEntry_Missing(t *testing.T) {
	repo := testutil.NewMockMealPlanRepo()
	svc := newTestMealPlanService(repo, testutil.NewMockRecipeRepo())

	if _, err := svc.CreateMealPlan(1, time.Now(), ""); err != nil {
		t.Fatalf("CreateMealPlan error: %v", err)
	}

	err := svc.RemoveEntry(1, 1, 3, models.SlotBreakfast)
	if !repository.IsNotFound(err) {
		t.Fatalf("RemoveEntry missing cell error = %v, want NotFoundError", err)
	}
}

func TestRemoveEntry_Success(t *testing.T) {
	repo := testutil.NewMockMealPlanRepo()
	recipeRepo := testutil.NewMockRecipeRepo()
	svc := newTestMealPlanService(repo, recipeRepo)

	recipe := testutil.TestRecipe()
	recipeRepo.Recipes[recipe.ID] = recipe

	if _, err := svc.CreateMealPlan(1, time.Now(), ""); err != nil {
		t.Fatalf("CreateMealPlan error: %v", err)
	}
	if err := svc.SetEntry(1, 1, 4, models.SlotLunch, recipe.ID, 0); err != nil {
		t.Fatalf("SetEntry error: %v", err)
	}

	if err := svc.RemoveEntry(1, 1, 4, models.SlotLunch); err != nil {
		t.Fatalf("RemoveEntry error: %v", err)
	}
	plan, _ := repo.GetMealPlanByID(1)
	if len(plan.Entries) != 0 {
		t.Errorf("RemoveEntry left %d entries", len(plan.Entries))
	}
}

func TestGetMealPlans_Paginated(t *testing.T) {
	repo := testutil.NewMockMealPlanRepo()
	svc := newTestMealPlanService(repo, testutil.NewMockRecipeRepo())

	for i := 0; i < 3; i++ {
		if _, err := svc.CreateMealPlan(1, time.Now().AddDate(0, 0, 7*i), ""); err != nil {
			t.Fatalf("CreateMealPlan error: %v", err)
		}
	}

	plans, total, err := svc.GetMealPlans(1, 1, 2)
	if err != nil {
		t.Fatalf("GetMealPlans error: %v", err)
	}
	if total != 3 {
		t.Errorf("GetMealPlans total = %d, want 3", total)
	}
	if len(plans) != 2 {
		t.Errorf("GetMealPlans page size = %d, want 2", len(plans))
	}
}

func TestUpdateNotes_Success(t *testing.T) {
	repo := testutil.NewMockMealPlanRepo()
	svc := newTestMealPlanService(repo, testutil.NewMockRecipeRepo())

	if _, err := svc.CreateMealPlan(1, time.Now(), "old"); err != nil {
		t.Fatalf("CreateMealPlan error: %v", err)
	}
	if err := svc.UpdateNotes(1, 1, "new notes"); err != nil {
		t.Fatalf("UpdateNotes error: %v", err)
	}
	plan, _ := repo.GetMealPlanByID(1)
	if plan.Notes != "new notes" {
		t.Errorf("UpdateNotes = %q", plan.Notes)
	}
}

func TestDeleteMealPlan_NotOwner(t *testing.T) {
	repo := testutil.NewMockMealPlanRepo()
	svc := newTestMealPlanService(repo, testutil.NewMockRecipeRepo())

	if _, err := svc.CreateMealPlan(1, time.Now(), ""); err != nil {
		t.Fatalf("CreateMealPlan error: %v", err)
	}
	if err := svc.DeleteMealPlan(99, 1); !errors.Is(err, ErrNotMealPlanOwner) {
		t.Fatalf("DeleteMealPlan by non-owner error = %v, want ErrNotMealPlanOwner", err)
	}
}

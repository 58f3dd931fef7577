package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/mise-app/mise-api/internal/cache"
	"github.com/mise-app/mise-api/internal/config"
	"github.com/mise-app/mise-api/internal/models"
	"github.com/mise-app/mise-api/internal/repository"
	"github.com/mise-app/mise-api/internal/testutil"
	"gorm.io/gorm"
)

func newTestRecipeService(repo repository.RecipeRepo) *RecipeService {
	recent, _ := cache.NewRecentRecipes(16, 10)
	return &RecipeService{
		Cfg:           &config.Config{},
		Repo:          repo,
		Recent:        recent,
		ImageProvider: &testutil.MockImageProvider{},
	}
}

func TestToRecipeResponse_AllFields(t *testing.T) {
	now := time.Now()
	recipe := &models.Recipe{
		Model: gorm.Model{
			ID:        7,
			CreatedAt: now,
			UpdatedAt: now,
		},
		RecipeCore: testutil.TestRecipeCore(),
		ImageURL:   "https://example.com/img.jpg",
		Tags: []*models.Tag{
			{Name: "breakfast"},
			{Name: "easy"},
		},
		Source:      models.SourceImportURL,
		Public:      true,
		CreatedByID: 3,
	}

	svc := newTestRecipeService(testutil.NewMockRecipeRepo())
	resp := svc.ToRecipeResponse(recipe)

	if resp.ID != "7" {
		t.Errorf("ID = %q, want '7'", resp.ID)
	}
	if resp.Title != "Classic Pancakes" {
		t.Errorf("Title = %q, want 'Classic Pancakes'", resp.Title)
	}
	if resp.OwnerID != "3" {
		t.Errorf("OwnerID = %q, want '3'", resp.OwnerID)
	}
	if resp.ImageURL != "https://example.com/img.jpg" {
		t.Errorf("ImageURL = %q", resp.ImageURL)
	}
	if len(resp.Tags) != 2 {
		t.Errorf("Tags count = %d, want 2", len(resp.Tags))
	}
	if resp.PrepTimeMinutes != 10 {
		t.Errorf("PrepTimeMinutes = %d, want 10", resp.PrepTimeMinutes)
	}
	if resp.CookTimeMinutes != 20 {
		t.Errorf("CookTimeMinutes = %d, want 20", resp.CookTimeMinutes)
	}
	if resp.Servings != 4 {
		t.Errorf("Servings = %d, want 4", resp.Servings)
	}
	if len(resp.Ingredients) != 4 {
		t.Errorf("Ingredients count = %d, want 4", len(resp.Ingredients))
	}
	if len(resp.Instructions) != 3 {
		t.Errorf("Instructions count = %d, want 3", len(resp.Instructions))
	}
	if resp.Source != string(models.SourceImportURL) {
		t.Errorf("Source = %q, want %q", resp.Source, models.SourceImportURL)
	}
	if !resp.Public {
		t.Error("Public should carry over")
	}

	// Check date formatting
	expected := now.Format("2006-01-02T15:04:05Z")
	if resp.CreatedAt != expected {
		t.Errorf("CreatedAt = %q, want %q", resp.CreatedAt, expected)
	}
}

func TestToRecipeResponse_CoreTagFallback(t *testing.T) {
	// A recipe loaded without its tag relation still reports the raw tag
	// strings carried on the core.
	recipe := &models.Recipe{
		Model:      gorm.Model{ID: 1, CreatedAt: time.Now(), UpdatedAt: time.Now()},
		RecipeCore: testutil.TestRecipeCore(),
		Tags:       nil,
	}

	svc := newTestRecipeService(testutil.NewMockRecipeRepo())
	resp := svc.ToRecipeResponse(recipe)

	if len(resp.Tags) != 3 {
		t.Errorf("Tags = %v, want the 3 core tags", resp.Tags)
	}
}

func TestCreateRecipe_Success(t *testing.T) {
	repo := testutil.NewMockRecipeRepo()
	svc := newTestRecipeService(repo)

	resp, err := svc.CreateRecipe(1, testutil.TestRecipeCore(), false, models.SourceChat)
	if err != nil {
		t.Fatalf("CreateRecipe error: %v", err)
	}
	if resp.Title != "Classic Pancakes" {
		t.Errorf("CreateRecipe title = %q", resp.Title)
	}
	if len(repo.Recipes) != 1 {
		t.Fatalf("CreateRecipe recipes in repo = %d, want 1", len(repo.Recipes))
	}
	if len(repo.Tags) != 3 {
		t.Errorf("CreateRecipe tags created = %d, want 3", len(repo.Tags))
	}
}

func TestCreateRecipe_InvalidCore(t *testing.T) {
	repo := testutil.NewMockRecipeRepo()
	svc := newTestRecipeService(repo)

	_, err := svc.CreateRecipe(1, models.RecipeCore{Title: "No ingredients"}, false, models.SourceChat)
	if err == nil {
		t.Fatal("CreateRecipe with no ingredients should return error")
	}
	if len(repo.Recipes) != 0 {
		t.Errorf("CreateRecipe validation failure persisted %d recipes", len(repo.Recipes))
	}
}

func TestGetRecipe_OwnerSeesPrivate(t *testing.T) {
	repo := testutil.NewMockRecipeRepo()
	recipe := testutil.TestRecipe()
	repo.Recipes[recipe.ID] = recipe

	svc := newTestRecipeService(repo)
	resp, err := svc.GetRecipe(recipe.CreatedByID, recipe.ID)
	if err != nil {
		t.Fatalf("GetRecipe error: %v", err)
	}
	if resp.ID != fmt.Sprintf("%d", recipe.ID) {
		t.Errorf("GetRecipe ID = %q", resp.ID)
	}
}

func TestGetRecipe_PrivateBlocked(t *testing.T) {
	repo := testutil.NewMockRecipeRepo()
	recipe := testutil.TestRecipe() // private, owned by user 1
	repo.Recipes[recipe.ID] = recipe

	svc := newTestRecipeService(repo)
	_, err := svc.GetRecipe(99, recipe.ID)
	if !errors.Is(err, ErrRecipePrivate) {
		t.Fatalf("GetRecipe on another user's private recipe error = %v, want ErrRecipePrivate", err)
	}
}

func TestGetRecipe_PublicVisibleToAnyone(t *testing.T) {
	repo := testutil.NewMockRecipeRepo()
	recipe := testutil.TestRecipe()
	recipe.Public = true
	repo.Recipes[recipe.ID] = recipe

	svc := newTestRecipeService(repo)
	if _, err := svc.GetRecipe(99, recipe.ID); err != nil {
		t.Fatalf("GetRecipe public recipe error: %v", err)
	}
}

func TestGetRecipe_NotFound(t *testing.T) {
	repo := testutil.NewMockRecipeRepo()
	svc := newTestRecipeService(repo)

	_, err := svc.GetRecipe(1, 999)
	if err == nil {
		t.Fatal("GetRecipe should return error for missing recipe")
	}
	if !repository.IsNotFound(err) {
		t.Errorf("GetRecipe error type = %T, want NotFoundError", err)
	}
}

func TestGetRecipe_RecordsRecentView(t *testing.T) {
	repo := testutil.NewMockRecipeRepo()
	recipe := testutil.TestRecipe()
	repo.Recipes[recipe.ID] = recipe

	svc := newTestRecipeService(repo)
	if _, err := svc.GetRecipe(recipe.CreatedByID, recipe.ID); err != nil {
		t.Fatalf("GetRecipe error: %v", err)
	}

	ids := svc.Recent.ForUser(recipe.CreatedByID)
	if len(ids) != 1 || ids[0] != recipe.ID {
		t.Errorf("recent list after view = %v, want [%d]", ids, recipe.ID)
	}
}

func TestGetUserRecipes_Success(t *testing.T) {
	repo := testutil.NewMockRecipeRepo()
	recipe := testutil.TestRecipe()
	repo.Recipes[recipe.ID] = recipe

	svc := newTestRecipeService(repo)
	items, total, err := svc.GetUserRecipes(recipe.CreatedByID, 1, 10)
	if err != nil {
		t.Fatalf("GetUserRecipes error: %v", err)
	}
	if total != 1 {
		t.Errorf("GetUserRecipes total = %d, want 1", total)
	}
	if len(items) != 1 {
		t.Errorf("GetUserRecipes items count = %d, want 1", len(items))
	}
	if items[0].Title != recipe.Title {
		t.Errorf("GetUserRecipes item title = %q, want %q", items[0].Title, recipe.Title)
	}
}

func TestGetUserRecipes_Empty(t *testing.T) {
	repo := testutil.NewMockRecipeRepo()
	svc := newTestRecipeService(repo)

	items, total, err := svc.GetUserRecipes(999, 1, 10)
	if err != nil {
		t.Fatalf("GetUserRecipes error: %v", err)
	}
	if total != 0 {
		t.Errorf("GetUserRecipes total = %d, want 0", total)
	}
	if len(items) != 0 {
		t.Errorf("GetUserRecipes items count = %d, want 0", len(items))
	}
}

func TestSearchRecipes_TagLowercased(t *testing.T) {
	repo := testutil.NewMockRecipeRepo()
	recipe := testutil.TestRecipe()
	recipe.Public = true
	repo.Recipes[recipe.ID] = recipe

	svc := newTestRecipeService(repo)
	items, _, err := svc.SearchRecipes(99, "", "  Breakfast ", 1, 10)
	if err != nil {
		t.Fatalf("SearchRecipes error: %v", err)
	}
	if len(items) != 1 {
		t.Errorf("SearchRecipes with mixed-case tag = %d items, want 1", len(items))
	}
}

func TestGetRecentRecipes_OrderPreserved(t *testing.T) {
	repo := testutil.NewMockRecipeRepo()
	svc := newTestRecipeService(repo)

	for i := uint(1); i <= 3; i++ {
		r := testutil.TestRecipe()
		r.ID = i
		r.Title = fmt.Sprintf("Recipe %d", i)
		repo.Recipes[i] = r
		if _, err := svc.GetRecipe(1, i); err != nil {
			t.Fatalf("GetRecipe(%d) error: %v", i, err)
		}
	}

	items, err := svc.GetRecentRecipes(1)
	if err != nil {
		t.Fatalf("GetRecentRecipes error: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("GetRecentRecipes count = %d, want 3", len(items))
	}
	// Most recent view first
	if items[0].Title != "Recipe 3" || items[2].Title != "Recipe 1" {
		t.Errorf("GetRecentRecipes order = [%s, %s, %s], want most recent first",
			items[0].Title, items[1].Title, items[2].Title)
	}
}

func TestGetRecentRecipes_SkipsDeleted(t *testing.T) {
	repo := testutil.NewMockRecipeRepo()
	svc := newTestRecipeService(repo)

	r := testutil.TestRecipe()
	repo.Recipes[r.ID] = r
	if _, err := svc.GetRecipe(1, r.ID); err != nil {
		t.Fatalf("GetRecipe error: %v", err)
	}

	// Simulate the recipe vanishing out from under the cache
	delete(repo.Recipes, r.ID)

	items, err := svc.GetRecentRecipes(1)
	if err != nil {
		t.Fatalf("GetRecentRecipes error: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("GetRecentRecipes after delete = %d items, want 0", len(items))
	}
}

func TestUpdateRecipe_NotOwner(t *testing.T) {
	repo := testutil.NewMockRecipeRepo()
	recipe := testutil.TestRecipe()
	repo.Recipes[recipe.ID] = recipe

	svc := newTestRecipeService(repo)
	_, err := svc.UpdateRecipe(99, recipe.ID, testutil.TestRecipeCore())
	if !errors.Is(err, ErrNotRecipeOwner) {
		t.Fatalf("UpdateRecipe by non-owner error = %v, want ErrNotRecipeOwner", err)
	}
}

func TestUpdateRecipe_Success(t *testing.T) {
	repo := testutil.NewMockRecipeRepo()
	recipe := testutil.TestRecipe()
	repo.Recipes[recipe.ID] = recipe

	core := testutil.TestRecipeCore()
	core.Title = "Renamed Pancakes"

	svc := newTestRecipeService(repo)
	resp, err := svc.UpdateRecipe(recipe.CreatedByID, recipe.ID, core)
	if err != nil {
		t.Fatalf("UpdateRecipe error: %v", err)
	}
	if resp.Title != "Renamed Pancakes" {
		t.Errorf("UpdateRecipe title = %q, want 'Renamed Pancakes'", resp.Title)
	}
	if !repo.Recipes[recipe.ID].UserEdited {
		t.Error("UpdateRecipe should mark the recipe user-edited")
	}
}

func TestSetRecipeVisibility_NotOwner(t *testing.T) {
	repo := testutil.NewMockRecipeRepo()
	recipe := testutil.TestRecipe()
	repo.Recipes[recipe.ID] = recipe

	svc := newTestRecipeService(repo)
	if err := svc.SetRecipeVisibility(99, recipe.ID, true); !errors.Is(err, ErrNotRecipeOwner) {
		t.Fatalf("SetRecipeVisibility by non-owner error = %v, want ErrNotRecipeOwner", err)
	}
}

func TestSetRecipeVisibility_Success(t *testing.T) {
	repo := testutil.NewMockRecipeRepo()
	recipe := testutil.TestRecipe()
	repo.Recipes[recipe.ID] = recipe

	svc := newTestRecipeService(repo)
	if err := svc.SetRecipeVisibility(recipe.CreatedByID, recipe.ID, true); err != nil {
		t.Fatalf("SetRecipeVisibility error: %v", err)
	}
	if !repo.Recipes[recipe.ID].Public {
		t.Error("SetRecipeVisibility should have made the recipe public")
	}
}

func TestDeleteRecipe_Success(t *testing.T) {
	repo := testutil.NewMockRecipeRepo()
	recipe := testutil.TestRecipe()
	recipe.ImageURL = "" // keep the delete path off S3
	repo.Recipes[recipe.ID] = recipe

	svc := newTestRecipeService(repo)
	svc.Recent.Record(recipe.CreatedByID, recipe.ID)

	if err := svc.DeleteRecipe(context.Background(), recipe.CreatedByID, recipe.ID); err != nil {
		t.Fatalf("DeleteRecipe error: %v", err)
	}
	if len(repo.Recipes) != 0 {
		t.Errorf("DeleteRecipe left %d recipes", len(repo.Recipes))
	}
	if ids := svc.Recent.ForUser(recipe.CreatedByID); len(ids) != 0 {
		t.Errorf("DeleteRecipe left recent entries: %v", ids)
	}
}

func TestDeleteRecipe_NotOwner(t *testing.T) {
	repo := testutil.NewMockRecipeRepo()
	recipe := testutil.TestRecipe()
	repo.Recipes[recipe.ID] = recipe

	svc := newTestRecipeService(repo)
	if err := svc.DeleteRecipe(context.Background(), 99, recipe.ID); !errors.Is(err, ErrNotRecipeOwner) {
		t.Fatalf("DeleteRecipe by non-owner error = %v, want ErrNotRecipeOwner", err)
	}
	if len(repo.Recipes) != 1 {
		t.Error("DeleteRecipe by non-owner should not delete")
	}
}

func TestGenerateCoverImage_NoPrompt(t *testing.T) {
	repo := testutil.NewMockRecipeRepo()
	recipe := testutil.TestRecipe()
	recipe.ImagePrompt = ""
	repo.Recipes[recipe.ID] = recipe

	svc := newTestRecipeService(repo)
	_, err := svc.GenerateCoverImage(context.Background(), recipe.CreatedByID, recipe.ID)
	if err == nil {
		t.Fatal("GenerateCoverImage without an image prompt should return error")
	}
}

func TestUploadCoverImage_NotOwner(t *testing.T) {
	repo := testutil.NewMockRecipeRepo()
	recipe := testutil.TestRecipe()
	repo.Recipes[recipe.ID] = recipe

	svc := newTestRecipeService(repo)
	_, err := svc.UploadCoverImage(context.Background(), 99, recipe.ID, []byte("img"))
	if !errors.Is(err, ErrNotRecipeOwner) {
		t.Fatalf("UploadCoverImage by non-owner error = %v, want ErrNotRecipeOwner", err)
	}
}

func TestAssociateTagsWithRecipe_NewTags(t *testing.T) {
	repo := testutil.NewMockRecipeRepo()
	recipe := testutil.TestRecipe()
	repo.Recipes[recipe.ID] = recipe

	svc := newTestRecipeService(repo)
	err := svc.AssociateTagsWithRecipe(recipe, []string{"#NewTag", "Existing"})
	if err != nil {
		t.Fatalf("AssociateTagsWithRecipe error: %v", err)
	}

	// Check that tags were created in the repo
	if len(repo.Tags) != 2 {
		t.Errorf("Tags created = %d, want 2", len(repo.Tags))
	}
}

func TestAssociateTagsWithRecipe_ExistingTag(t *testing.T) {
	repo := testutil.NewMockRecipeRepo()
	recipe := testutil.TestRecipe()
	repo.Recipes[recipe.ID] = recipe

	// Pre-create a tag
	repo.Tags["breakfast"] = &models.Tag{Name: "breakfast"}
	repo.Tags["breakfast"].ID = 1

	svc := newTestRecipeService(repo)
	err := svc.AssociateTagsWithRecipe(recipe, []string{"breakfast", "newtag"})
	if err != nil {
		t.Fatalf("AssociateTagsWithRecipe error: %v", err)
	}

	// Only 1 new tag should be created (breakfast already existed)
	if len(repo.Tags) != 2 {
		t.Errorf("Tags count = %d, want 2 (1 existing + 1 new)", len(repo.Tags))
	}
}

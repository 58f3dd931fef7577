package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mise-app/mise-api/internal/cache"
	"github.com/mise-app/mise-api/internal/config"
	"github.com/mise-app/mise-api/internal/models"
	"github.com/mise-app/mise-api/internal/service"
	"github.com/mise-app/mise-api/internal/testutil"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// setUser is a test middleware that injects a user into the gin context.
func setUser(user *models.User) gin.HandlerFunc {
	return func(c *gin.Context) {
		if user != nil {
			c.Set("user", user)
		}
		c.Next()
	}
}

func newTestRecipeHandler() (*RecipeHandler, *testutil.MockRecipeRepo, *testutil.MockUserRepo) {
	recipeRepo := testutil.NewMockRecipeRepo()
	userRepo := testutil.NewMockUserRepo()
	recent, _ := cache.NewRecentRecipes(16, 10)
	recipeSvc := &service.RecipeService{
		Cfg:           &config.Config{},
		Repo:          recipeRepo,
		Recent:        recent,
		ImageProvider: &testutil.MockImageProvider{},
	}
	subSvc := service.NewSubscriptionService(&config.Config{}, userRepo)
	return NewRecipeHandler(recipeSvc, subSvc), recipeRepo, userRepo
}

func TestGetRecipe_Valid(t *testing.T) {
	handler, repo, _ := newTestRecipeHandler()
	recipe := testutil.TestRecipe()
	recipe.CreatedAt = time.Now()
	recipe.UpdatedAt = time.Now()
	repo.Recipes[recipe.ID] = recipe

	user := testutil.TestUser() // owner of the fixture recipe
	r := gin.New()
	r.GET("/recipes/:recipe_id", setUser(user), handler.GetRecipe)

	req := httptest.NewRequest("GET", "/recipes/1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d. body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var body map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &body)
	recipeData, ok := body["recipe"].(map[string]interface{})
	if !ok {
		t.Fatal("response should contain 'recipe' field")
	}
	if recipeData["title"] != "Classic Pancakes" {
		t.Errorf("recipe title = %v, want 'Classic Pancakes'", recipeData["title"])
	}
}

func TestGetRecipe_InvalidID(t *testing.T) {
	handler, _, _ := newTestRecipeHandler()

	r := gin.New()
	r.GET("/recipes/:recipe_id", setUser(testutil.TestUser()), handler.GetRecipe)

	req := httptest.NewRequest("GET", "/recipes/abc", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestGetRecipe_NotFound(t *testing.T) {
	handler, _, _ := newTestRecipeHandler()

	r := gin.New()
	r.GET("/recipes/:recipe_id", setUser(testutil.TestUser()), handler.GetRecipe)

	req := httptest.NewRequest("GET", "/recipes/999", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestGetRecipe_PrivateRecipeOfAnotherUser(t *testing.T) {
	handler, repo, _ := newTestRecipeHandler()
	recipe := testutil.TestRecipe() // private, owned by user 1
	repo.Recipes[recipe.ID] = recipe

	stranger := &models.User{Model: gorm.Model{ID: 99}}
	r := gin.New()
	r.GET("/recipes/:recipe_id", setUser(stranger), handler.GetRecipe)

	req := httptest.NewRequest("GET", "/recipes/1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d. body: %s", w.Code, http.StatusForbidden, w.Body.String())
	}
}

func TestListRecipes_Success(t *testing.T) {
	handler, repo, _ := newTestRecipeHandler()
	recipe := testutil.TestRecipe()
	recipe.CreatedAt = time.Now()
	recipe.UpdatedAt = time.Now()
	repo.Recipes[recipe.ID] = recipe

	user := testutil.TestUser()
	r := gin.New()
	r.GET("/recipes", setUser(user), handler.ListRecipes)

	req := httptest.NewRequest("GET", "/recipes", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d. body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var body map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &body)
	if body["total"] == nil {
		t.Error("response should contain 'total' field")
	}
}

func TestListRecipes_Unauthorized(t *testing.T) {
	handler, _, _ := newTestRecipeHandler()

	r := gin.New()
	// No setUser middleware, so no user in context.
	r.GET("/recipes", handler.ListRecipes)

	req := httptest.NewRequest("GET", "/recipes", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestSearchRecipes_MissingQuery(t *testing.T) {
	handler, _, _ := newTestRecipeHandler()

	r := gin.New()
	r.GET("/recipes/search", setUser(testutil.TestUser()), handler.SearchRecipes)

	req := httptest.NewRequest("GET", "/recipes/search", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestSearchRecipes_ByTitle(t *testing.T) {
	handler, repo, _ := newTestRecipeHandler()
	recipe := testutil.TestRecipe()
	recipe.CreatedAt = time.Now()
	recipe.UpdatedAt = time.Now()
	repo.Recipes[recipe.ID] = recipe

	r := gin.New()
	r.GET("/recipes/search", setUser(testutil.TestUser()), handler.SearchRecipes)

	req := httptest.NewRequest("GET", "/recipes/search?q=pancake", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d. body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var body map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &body)
	recipes, ok := body["recipes"].([]interface{})
	if !ok || len(recipes) != 1 {
		t.Errorf("recipes = %v, want one match", body["recipes"])
	}
}

func TestUpdateRecipe_Forbidden(t *testing.T) {
	handler, repo, _ := newTestRecipeHandler()
	recipe := testutil.TestRecipe()
	repo.Recipes[recipe.ID] = recipe

	stranger := &models.User{Model: gorm.Model{ID: 99}}
	r := gin.New()
	r.PUT("/recipes/:recipe_id", setUser(stranger), handler.UpdateRecipe)

	body := `{
		"title": "Hijacked",
		"ingredients": [{"name": "Flour"}],
		"instructions": ["Mix"]
	}`
	req := httptest.NewRequest("PUT", "/recipes/1", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d. body: %s", w.Code, http.StatusForbidden, w.Body.String())
	}
	if repo.Recipes[1].Title != "Classic Pancakes" {
		t.Error("recipe should not have been modified")
	}
}

func TestSetVisibility_Success(t *testing.T) {
	handler, repo, _ := newTestRecipeHandler()
	recipe := testutil.TestRecipe()
	repo.Recipes[recipe.ID] = recipe

	r := gin.New()
	r.PATCH("/recipes/:recipe_id/visibility", setUser(testutil.TestUser()), handler.SetVisibility)

	body := `{"public": true}`
	req := httptest.NewRequest("PATCH", "/recipes/1/visibility", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d. body: %s", w.Code, http.StatusOK, w.Body.String())
	}
	if !repo.Recipes[1].Public {
		t.Error("recipe should be public after update")
	}
}

func TestSetVisibility_MissingField(t *testing.T) {
	handler, repo, _ := newTestRecipeHandler()
	recipe := testutil.TestRecipe()
	repo.Recipes[recipe.ID] = recipe

	r := gin.New()
	r.PATCH("/recipes/:recipe_id/visibility", setUser(testutil.TestUser()), handler.SetVisibility)

	req := httptest.NewRequest("PATCH", "/recipes/1/visibility", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestDeleteRecipe_Success(t *testing.T) {
	handler, repo, _ := newTestRecipeHandler()
	recipe := testutil.TestRecipe()
	recipe.ImageURL = "" // keep the delete path off S3
	repo.Recipes[recipe.ID] = recipe

	user := testutil.TestUser()
	r := gin.New()
	r.DELETE("/recipes/:recipe_id", setUser(user), handler.DeleteRecipe)

	req := httptest.NewRequest("DELETE", "/recipes/1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d. body: %s", w.Code, http.StatusOK, w.Body.String())
	}
	if _, err := repo.GetRecipeByID(1); err == nil {
		t.Error("recipe should have been deleted from repo")
	}
}

func TestDeleteRecipe_Forbidden(t *testing.T) {
	handler, repo, _ := newTestRecipeHandler()
	recipe := testutil.TestRecipe()
	repo.Recipes[recipe.ID] = recipe

	stranger := &models.User{Model: gorm.Model{ID: 999}}
	r := gin.New()
	r.DELETE("/recipes/:recipe_id", setUser(stranger), handler.DeleteRecipe)

	req := httptest.NewRequest("DELETE", "/recipes/1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d. body: %s", w.Code, http.StatusForbidden, w.Body.String())
	}
}

func TestGenerateCoverImage_QuotaExceeded(t *testing.T) {
	handler, repo, userRepo := newTestRecipeHandler()
	recipe := testutil.TestRecipe()
	repo.Recipes[recipe.ID] = recipe

	user := testutil.TestUser()
	user.Subscription.AIGenerationsUsed = models.FreeAIGenerationsPerMonth
	userRepo.CreateUser(user)

	r := gin.New()
	r.POST("/recipes/:recipe_id/cover-image/generate", setUser(user), handler.GenerateCoverImage)

	req := httptest.NewRequest("POST", "/recipes/1/cover-image/generate", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusPaymentRequired {
		t.Errorf("status = %d, want %d. body: %s", w.Code, http.StatusPaymentRequired, w.Body.String())
	}
}

func TestUploadCoverImage_BadExtension(t *testing.T) {
	handler, repo, _ := newTestRecipeHandler()
	recipe := testutil.TestRecipe()
	repo.Recipes[recipe.ID] = recipe

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("image", "cover.gif")
	part.Write([]byte("GIF89a"))
	mw.Close()

	r := gin.New()
	r.POST("/recipes/:recipe_id/cover-image", setUser(testutil.TestUser()), handler.UploadCoverImage)

	req := httptest.NewRequest("POST", "/recipes/1/cover-image", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d. body: %s", w.Code, http.StatusBadRequest, w.Body.String())
	}
}

func TestUploadCoverImage_MissingFile(t *testing.T) {
	handler, repo, _ := newTestRecipeHandler()
	recipe := testutil.TestRecipe()
	repo.Recipes[recipe.ID] = recipe

	r := gin.New()
	r.POST("/recipes/:recipe_id/cover-image", setUser(testutil.TestUser()), handler.UploadCoverImage)

	req := httptest.NewRequest("POST", "/recipes/1/cover-image", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

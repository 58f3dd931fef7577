package handlers

import (
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mise-app/mise-api/internal/models"
	"github.com/mise-app/mise-api/internal/service"
	"github.com/mise-app/mise-api/internal/util"
)

// RecipeHandler is the handler for recipe-related requests.
type RecipeHandler struct {
	Service      *service.RecipeService
	Subscription *service.SubscriptionService
}

// NewRecipeHandler is the constructor function for initializing a new RecipeHandler.
func NewRecipeHandler(recipeService *service.RecipeService, subscriptionService *service.SubscriptionService) *RecipeHandler {
	return &RecipeHandler{Service: recipeService, Subscription: subscriptionService}
}

// ListRecipes returns a paginated list of the authenticated user's recipes.
func (h *RecipeHandler) ListRecipes(c *gin.Context) {
	user, err := util.GetUserFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	page, pageSize := parsePagination(c)

	recipes, total, err := h.Service.GetUserRecipes(user.ID, page, pageSize)
	if err != nil {
		serviceError(c, err, "Failed to list recipes")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"recipes":  recipes,
		"total":    total,
		"page":     page,
		"pageSize": pageSize,
	})
}

// SearchRecipes searches the user's recipes (plus their public pool) by
// title substring and tag.
func (h *RecipeHandler) SearchRecipes(c *gin.Context) {
	user, err := util.GetUserFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	query := strings.TrimSpace(c.Query("q"))
	tag := strings.TrimSpace(c.Query("tag"))
	if query == "" && tag == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Query parameter 'q' or 'tag' is required"})
		return
	}

	page, pageSize := parsePagination(c)

	recipes, total, err := h.Service.SearchRecipes(user.ID, query, tag, page, pageSize)
	if err != nil {
		serviceError(c, err, "Failed to search recipes")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"recipes":  recipes,
		"total":    total,
		"page":     page,
		"pageSize": pageSize,
	})
}

// GetRecentRecipes returns the recipes the user viewed most recently.
func (h *RecipeHandler) GetRecentRecipes(c *gin.Context) {
	user, err := util.GetUserFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	recipes, err := h.Service.GetRecentRecipes(user.ID)
	if err != nil {
		serviceError(c, err, "Failed to list recent recipes")
		return
	}

	c.JSON(http.StatusOK, gin.H{"recipes": recipes})
}

// GetRecipe returns a recipe by ID. Owners see their own private recipes;
// everyone else only sees public ones.
func (h *RecipeHandler) GetRecipe(c *gin.Context) {
	user, err := util.GetUserFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	recipeID, err := parseUintParam(c.Param("recipe_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid recipe ID"})
		return
	}

	recipeResponse, err := h.Service.GetRecipe(user.ID, recipeID)
	if err != nil {
		serviceError(c, err, "Failed to get recipe")
		return
	}

	c.JSON(http.StatusOK, gin.H{"recipe": recipeResponse})
}

// recipeCoreRequest is the request body for creating or editing a recipe's
// cooking content.
type recipeCoreRequest struct {
	Title        string                  `json:"title" binding:"required"`
	Ingredients  []recipeIngredientInput `json:"ingredients" binding:"required"`
	Instructions []string                `json:"instructions" binding:"required"`
	PrepTime     int                     `json:"prep_time"`
	CookTime     int                     `json:"cook_time"`
	Servings     int                     `json:"servings"`
	ServingSize  string                  `json:"serving_size"`
	Tags         []string                `json:"tags"`
	SourceURL    string                  `json:"source_url"`
}

// recipeIngredientInput represents one ingredient line in a request.
type recipeIngredientInput struct {
	Name   string  `json:"name" binding:"required"`
	Unit   string  `json:"unit"`
	Amount float64 `json:"amount"`
}

func (r *recipeCoreRequest) toCore() models.RecipeCore {
	ingredients := make(models.Ingredients, len(r.Ingredients))
	for i, ing := range r.Ingredients {
		ingredients[i] = models.Ingredient{
			Name:   ing.Name,
			Unit:   ing.Unit,
			Amount: ing.Amount,
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
		SourceURL:    r.SourceURL,
	}
}

// UpdateRecipe replaces a recipe's cooking content with the user's edits.
func (h *RecipeHandler) UpdateRecipe(c *gin.Context) {
	user, err := util.GetUserFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	recipeID, err := parseUintParam(c.Param("recipe_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid recipe ID"})
		return
	}

	var request recipeCoreRequest
	if err := c.BindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	recipeResponse, err := h.Service.UpdateRecipe(user.ID, recipeID, request.toCore())
	if err != nil {
		serviceError(c, err, "Failed to update recipe")
		return
	}

	c.JSON(http.StatusOK, gin.H{"recipe": recipeResponse})
}

// SetVisibility toggles a recipe between private and public.
func (h *RecipeHandler) SetVisibility(c *gin.Context) {
	user, err := util.GetUserFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	recipeID, err := parseUintParam(c.Param("recipe_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid recipe ID"})
		return
	}

	var request struct {
		Public *bool `json:"public" binding:"required"`
	}
	if err := c.BindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Field 'public' is required"})
		return
	}

	if err := h.Service.SetRecipeVisibility(user.ID, recipeID, *request.Public); err != nil {
		serviceError(c, err, "Failed to update recipe visibility")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Recipe visibility updated"})
}

// DeleteRecipe deletes a recipe by its ID.
func (h *RecipeHandler) DeleteRecipe(c *gin.Context) {
	user, err := util.GetUserFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	recipeID, err := parseUintParam(c.Param("recipe_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid recipe ID"})
		return
	}

	if err := h.Service.DeleteRecipe(c.Request.Context(), user.ID, recipeID); err != nil {
		serviceError(c, err, "Failed to delete recipe")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Recipe deleted successfully"})
}

// allowedImageTypes is the set of accepted image file extensions.
var allowedImageTypes = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

// UploadCoverImage replaces a recipe's cover photo with an uploaded image.
func (h *RecipeHandler) UploadCoverImage(c *gin.Context) {
	user, err := util.GetUserFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	recipeID, err := parseUintParam(c.Param("recipe_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid recipe ID"})
		return
	}

	file, header, err := c.Request.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Image file is required"})
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedImageTypes[ext] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported image type. Allowed: jpg, png, webp"})
		return
	}

	const maxSize = 10 << 20
	if header.Size > maxSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Image exceeds maximum size of 10MB"})
		return
	}

	imgBytes, err := io.ReadAll(io.LimitReader(file, maxSize))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read image"})
		return
	}

	imageURL, err := h.Service.UploadCoverImage(c.Request.Context(), user.ID, recipeID, imgBytes)
	if err != nil {
		serviceError(c, err, "Failed to upload cover image")
		return
	}

	c.JSON(http.StatusOK, gin.H{"image_url": imageURL})
}

// GenerateCoverImage renders a new AI cover image from the recipe's stored
// image prompt. Counts against the monthly AI allowance.
func (h *RecipeHandler) GenerateCoverImage(c *gin.Context) {
	user, err := util.GetUserFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	recipeID, err := parseUintParam(c.Param("recipe_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid recipe ID"})
		return
	}

	if err := h.Subscription.CheckAIGeneration(user.ID); err != nil {
		serviceError(c, err, "Failed to check subscription")
		return
	}

	imageURL, err := h.Service.GenerateCoverImage(c.Request.Context(), user.ID, recipeID)
	if err != nil {
		serviceError(c, err, "Failed to generate cover image")
		return
	}

	if err := h.Subscription.ConsumeAIGeneration(user.ID); err != nil {
		serviceError(c, err, "Failed to record AI usage")
		return
	}

	c.JSON(http.StatusOK, gin.H{"image_url": imageURL})
}

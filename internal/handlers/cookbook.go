package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mise-app/mise-api/internal/service"
	"github.com/mise-app/mise-api/internal/util"
)

// CookbookHandler handles cookbook collection requests.
type CookbookHandler struct {
	Service *service.CookbookService
}

// NewCookbookHandler creates a new CookbookHandler.
func NewCookbookHandler(cookbookService *service.CookbookService) *CookbookHandler {
	return &CookbookHandler{Service: cookbookService}
}

// CreateCookbook handles POST /v1/cookbooks
func (h *CookbookHandler) CreateCookbook(c *gin.Context) {
	user, err := util.GetUserFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var request struct {
		Name        string `json:"name" binding:"required"`
		Description string `json:"description"`
	}
	if err := c.BindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cookbook name is required"})
		return
	}

	cookbook, err := h.Service.CreateCookbook(user.ID, strings.TrimSpace(request.Name), request.Description)
	if err != nil {
		serviceError(c, err, "Failed to create cookbook")
		return
	}

	c.JSON(http.StatusOK, gin.H{"cookbook": cookbook})
}

// ListCookbooks handles GET /v1/cookbooks
func (h *CookbookHandler) ListCookbooks(c *gin.Context) {
	user, err := util.GetUserFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	cookbooks, err := h.Service.GetCookbooks(user.ID)
	if err != nil {
		serviceError(c, err, "Failed to list cookbooks")
		return
	}

	c.JSON(http.StatusOK, gin.H{"cookbooks": cookbooks})
}

// GetCookbookRecipes handles GET /v1/cookbooks/:cookbook_id/recipes
func (h *CookbookHandler) GetCookbookRecipes(c *gin.Context) {
	user, err := util.GetUserFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	cookbookID, err := parseUintParam(c.Param("cookbook_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid cookbook ID"})
		return
	}

	recipes, err := h.Service.GetCookbookRecipes(user.ID, cookbookID)
	if err != nil {
		serviceError(c, err, "Failed to list cookbook recipes")
		return
	}

	c.JSON(http.StatusOK, gin.H{"recipes": service.ToRecipeListItems(recipes)})
}

// RenameCookbook handles PATCH /v1/cookbooks/:cookbook_id
func (h *CookbookHandler) RenameCookbook(c *gin.Context) {
	user, err := util.GetUserFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	cookbookID, err := parseUintParam(c.Param("cookbook_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid cookbook ID"})
		return
	}

	var request struct {
		Name        string `json:"name" binding:"required"`
		Description string `json:"description"`
	}
	if err := c.BindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cookbook name is required"})
		return
	}

	if err := h.Service.RenameCookbook(user.ID, cookbookID, strings.TrimSpace(request.Name), request.Description); err != nil {
		serviceError(c, err, "Failed to rename cookbook")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Cookbook updated"})
}

// DeleteCookbook handles DELETE /v1/cookbooks/:cookbook_id. The recipes
// inside are untouched.
func (h *CookbookHandler) DeleteCookbook(c *gin.Context) {
	user, err := util.GetUserFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	cookbookID, err := parseUintParam(c.Param("cookbook_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid cookbook ID"})
		return
	}

	if err := h.Service.DeleteCookbook(user.ID, cookbookID); err != nil {
		serviceError(c, err, "Failed to delete cookbook")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Cookbook deleted"})
}

// AddRecipe handles POST /v1/cookbooks/:cookbook_id/recipes/:recipe_id
func (h *CookbookHandler) AddRecipe(c *gin.Context) {
	user, err := util.GetUserFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	cookbookID, err := parseUintParam(c.Param("cookbook_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid cookbook ID"})
		return
	}
	recipeID, err := parseUintParam(c.Param("recipe_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid recipe ID"})
		return
	}

	if err := h.Service.AddRecipe(user.ID, cookbookID, recipeID); err != nil {
		serviceError(c, err, "Failed to add recipe to cookbook")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Recipe added to cookbook"})
}

// RemoveRecipe handles DELETE /v1/cookbooks/:cookbook_id/recipes/:recipe_id
func (h *CookbookHandler) RemoveRecipe(c *gin.Context) {
	user, err := util.GetUserFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	cookbookID, err := parseUintParam(c.Param("cookbook_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid cookbook ID"})
		return
	}
	recipeID, err := parseUintParam(c.Param("recipe_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid recipe ID"})
		return
	}

	if err := h.Service.RemoveRecipe(user.ID, cookbookID, recipeID); err != nil {
		serviceError(c, err, "Failed to remove recipe from cookbook")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Recipe removed from cookbook"})
}

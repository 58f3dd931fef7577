package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mise-app/mise-api/internal/service"
	"github.com/mise-app/mise-api/internal/util"
)

// ShoppingHandler handles shopping list requests.
type ShoppingHandler struct {
	Service *service.ShoppingService
}

// NewShoppingHandler creates a new ShoppingHandler.
func NewShoppingHandler(shoppingService *service.ShoppingService) *ShoppingHandler {
	return &ShoppingHandler{Service: shoppingService}
}

// GenerateFromMealPlan handles POST /v1/meal-plans/:plan_id/shopping-list.
// Aggregates every planned recipe's ingredients into a fresh list.
func (h *ShoppingHandler) GenerateFromMealPlan(c *gin.Context) {
	user, err := util.GetUserFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	planID, err := parseUintParam(c.Param("plan_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid meal plan ID"})
		return
	}

	normalize := c.Query("normalize") != "false"

	list, err := h.Service.GenerateFromMealPlan(c.Request.Context(), user.ID, planID, normalize)
	if err != nil {
		serviceError(c, err, "Failed to generate shopping list")
		return
	}

	c.JSON(http.StatusOK, gin.H{"shoppingList": list})
}

// Regenerate handles POST /v1/shopping-lists/:list_id/regenerate.
// Rebuilds the list from its meal plan, keeping manual items and check marks.
func (h *ShoppingHandler) Regenerate(c *gin.Context) {
	user, err := util.GetUserFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	listID, err := parseUintParam(c.Param("list_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid shopping list ID"})
		return
	}

	normalize := c.Query("normalize") != "false"

	list, err := h.Service.Regenerate(c.Request.Context(), user.ID, listID, normalize)
	if err != nil {
		serviceError(c, err, "Failed to regenerate shopping list")
		return
	}

	c.JSON(http.StatusOK, gin.H{"shoppingList": list})
}

// ListShoppingLists handles GET /v1/shopping-lists
func (h *ShoppingHandler) ListShoppingLists(c *gin.Context) {
	user, err := util.GetUserFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	lists, err := h.Service.GetShoppingLists(user.ID)
	if err != nil {
		serviceError(c, err, "Failed to list shopping lists")
		return
	}

	c.JSON(http.StatusOK, gin.H{"shoppingLists": lists})
}

// GetShoppingList handles GET /v1/shopping-lists/:list_id
func (h *ShoppingHandler) GetShoppingList(c *gin.Context) {
	user, err := util.GetUserFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	listID, err := parseUintParam(c.Param("list_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid shopping list ID"})
		return
	}

	list, err := h.Service.GetShoppingList(user.ID, listID)
	if err != nil {
		serviceError(c, err, "Failed to get shopping list")
		return
	}

	c.JSON(http.StatusOK, gin.H{"shoppingList": list})
}

// SetItemChecked handles PATCH /v1/shopping-lists/:list_id/items/:index
func (h *ShoppingHandler) SetItemChecked(c *gin.Context) {
	user, err := util.GetUserFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	listID, err := parseUintParam(c.Param("list_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid shopping list ID"})
		return
	}

	index, err := parseUintParam(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid item index"})
		return
	}

	var request struct {
		Checked *bool `json:"checked" binding:"required"`
	}
	if err := c.BindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Field checked is required"})
		return
	}

	if err := h.Service.SetItemChecked(user.ID, listID, int(index), *request.Checked); err != nil {
		serviceError(c, err, "Failed to update shopping list item")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Item updated"})
}

// AddManualItem handles POST /v1/shopping-lists/:list_id/items
func (h *ShoppingHandler) AddManualItem(c *gin.Context) {
	user, err := util.GetUserFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	listID, err := parseUintParam(c.Param("list_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid shopping list ID"})
		return
	}

	var request struct {
		Name   string  `json:"name" binding:"required"`
		Unit   string  `json:"unit"`
		Amount float64 `json:"amount"`
	}
	if err := c.BindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Item name is required"})
		return
	}
	if strings.TrimSpace(request.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Item name is required"})
		return
	}

	if err := h.Service.AddManualItem(user.ID, listID, request.Name, request.Unit, request.Amount); err != nil {
		serviceError(c, err, "Failed to add shopping list item")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Item added"})
}

// RemoveItem handles DELETE /v1/shopping-lists/:list_id/items/:index
func (h *ShoppingHandler) RemoveItem(c *gin.Context) {
	user, err := util.GetUserFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	listID, err := parseUintParam(c.Param("list_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid shopping list ID"})
		return
	}

	index, err := parseUintParam(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid item index"})
		return
	}

	if err := h.Service.RemoveItem(user.ID, listID, int(index)); err != nil {
		serviceError(c, err, "Failed to remove shopping list item")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Item removed"})
}

// DeleteShoppingList handles DELETE /v1/shopping-lists/:list_id
func (h *ShoppingHandler) DeleteShoppingList(c *gin.Context) {
	user, err := util.GetUserFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	listID, err := parseUintParam(c.Param("list_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid shopping list ID"})
		return
	}

	if err := h.Service.DeleteShoppingList(user.ID, listID); err != nil {
		serviceError(c, err, "Failed to delete shopping list")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Shopping list deleted"})
}

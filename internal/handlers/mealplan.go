package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mise-app/mise-api/internal/models"
	"github.com/mise-app/mise-api/internal/service"
	"github.com/mise-app/mise-api/internal/util"
)

// MealPlanHandler handles weekly meal plan requests.
type MealPlanHandler struct {
	Service *service.MealPlanService
}

// NewMealPlanHandler creates a new MealPlanHandler.
func NewMealPlanHandler(mealPlanService *service.MealPlanService) *MealPlanHandler {
	return &MealPlanHandler{Service: mealPlanService}
}

// CreateMealPlan handles POST /v1/meal-plans
func (h *MealPlanHandler) CreateMealPlan(c *gin.Context) {
	user, err := util.GetUserFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var request struct {
		StartDate string `json:"start_date" binding:"required"`
		Notes     string `json:"notes"`
	}
	if err := c.BindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start_date is required"})
		return
	}

	startDate, err := time.Parse("2006-01-02", request.StartDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start_date must be YYYY-MM-DD"})
		return
	}

	plan, err := h.Service.CreateMealPlan(user.ID, startDate, request.Notes)
	if err != nil {
		serviceError(c, err, "Failed to create meal plan")
		return
	}

	c.JSON(http.StatusOK, gin.H{"mealPlan": plan})
}

// ListMealPlans handles GET /v1/meal-plans
func (h *MealPlanHandler) ListMealPlans(c *gin.Context) {
	user, err := util.GetUserFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	page, pageSize := parsePagination(c)

	plans, total, err := h.Service.GetMealPlans(user.ID, page, pageSize)
	if err != nil {
		serviceError(c, err, "Failed to list meal plans")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"mealPlans": plans,
		"total":     total,
		"page":      page,
		"pageSize":  pageSize,
	})
}

// GetMealPlan handles GET /v1/meal-plans/:plan_id
func (h *MealPlanHandler) GetMealPlan(c *gin.Context) {
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

	plan, err := h.Service.GetMealPlan(user.ID, planID)
	if err != nil {
		serviceError(c, err, "Failed to get meal plan")
		return
	}

	c.JSON(http.StatusOK, gin.H{"mealPlan": plan})
}

// UpdateNotes handles PATCH /v1/meal-plans/:plan_id
func (h *MealPlanHandler) UpdateNotes(c *gin.Context) {
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

	var request struct {
		Notes string `json:"notes"`
	}
	if err := c.BindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if err := h.Service.UpdateNotes(user.ID, planID, request.Notes); err != nil {
		serviceError(c, err, "Failed to update meal plan")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Meal plan updated"})
}

// DeleteMealPlan handles DELETE /v1/meal-plans/:plan_id
func (h *MealPlanHandler) DeleteMealPlan(c *gin.Context) {
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

	if err := h.Service.DeleteMealPlan(user.ID, planID); err != nil {
		serviceError(c, err, "Failed to delete meal plan")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Meal plan deleted"})
}

// SetEntry handles PUT /v1/meal-plans/:plan_id/entries. Writing to an
// occupied (day, slot) cell overwrites it.
func (h *MealPlanHandler) SetEntry(c *gin.Context) {
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

	var request struct {
		Day      *int   `json:"day" binding:"required"`
		Slot     string `json:"slot" binding:"required"`
		RecipeID uint   `json:"recipe_id" binding:"required"`
		Servings int    `json:"servings"`
	}
	if err := c.BindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Fields day, slot and recipe_id are required"})
		return
	}

	if *request.Day < 0 || *request.Day > 6 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "day must be between 0 (start of week) and 6"})
		return
	}
	slot := models.MealSlot(request.Slot)
	if slot != models.SlotBreakfast && slot != models.SlotLunch && slot != models.SlotDinner {
		c.JSON(http.StatusBadRequest, gin.H{"error": "slot must be breakfast, lunch or dinner"})
		return
	}

	if err := h.Service.SetEntry(user.ID, planID, *request.Day, slot, request.RecipeID, request.Servings); err != nil {
		serviceError(c, err, "Failed to set meal plan entry")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Meal planned"})
}

// RemoveEntry handles DELETE /v1/meal-plans/:plan_id/entries
func (h *MealPlanHandler) RemoveEntry(c *gin.Context) {
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

	var request struct {
		Day  *int   `json:"day" binding:"required"`
		Slot string `json:"slot" binding:"required"`
	}
	if err := c.BindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Fields day and slot are required"})
		return
	}

	if *request.Day < 0 || *request.Day > 6 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "day must be between 0 (start of week) and 6"})
		return
	}
	slot := models.MealSlot(request.Slot)
	if slot != models.SlotBreakfast && slot != models.SlotLunch && slot != models.SlotDinner {
		c.JSON(http.StatusBadRequest, gin.H{"error": "slot must be breakfast, lunch or dinner"})
		return
	}

	if err := h.Service.RemoveEntry(user.ID, planID, *request.Day, slot); err != nil {
		serviceError(c, err, "Failed to remove meal plan entry")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Meal removed"})
}

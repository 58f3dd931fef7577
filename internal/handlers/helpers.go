package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mise-app/mise-api/internal/logger"
	"github.com/mise-app/mise-api/internal/repository"
	"github.com/mise-app/mise-api/internal/service"
	"go.uber.org/zap"
)

// parseUintParam parses a string into a uint.
func parseUintParam(param string) (uint, error) {
	parsed, err := strconv.ParseUint(param, 10, 64)
	if err != nil {
		return 0, err
	}
	if parsed > uint64(^uint(0)) {
		return 0, fmt.Errorf("value out of range for uint: %d", parsed)
	}
	return uint(parsed), nil
}

// parsePagination reads page and page_size query params, clamped to sane
// defaults.
func parsePagination(c *gin.Context) (page, pageSize int) {
	page = 1
	pageSize = 20

	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}
	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v
		}
	}
	return page, pageSize
}

// serviceError maps a service-layer error onto an HTTP status. Not-found and
// ownership errors carry their own client-safe messages; anything else is
// logged under fallback and returned as a plain 500.
func serviceError(c *gin.Context, err error, fallback string) {
	switch {
	case repository.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotRecipeOwner),
		errors.Is(err, service.ErrRecipePrivate),
		errors.Is(err, service.ErrNotCookbookOwner),
		errors.Is(err, service.ErrNotMealPlanOwner),
		errors.Is(err, service.ErrNotShoppingListOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrAIQuotaExceeded),
		errors.Is(err, service.ErrVoiceQuotaExceeded):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": err.Error()})
	default:
		logger.Get().Error(fallback, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}

package repository

import (
	"errors"

	"github.com/mise-app/mise-api/internal/logger"
	"github.com/mise-app/mise-api/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CookbookRepository is a repository for interacting with cookbooks.
type CookbookRepository struct {
	DB *gorm.DB
}

// NewCookbookRepository creates a new CookbookRepository.
func NewCookbookRepository(db *gorm.DB) *CookbookRepository {
	return &CookbookRepository{DB: db}
}

// CreateCookbook creates a new cookbook.
func (r *CookbookRepository) CreateCookbook(cookbook *models.Cookbook) error {
	if err := r.DB.Create(cookbook).Error; err != nil {
		logger.Get().Error("failed to create cookbook", zap.Uint("owner_id", cookbook.OwnerID), zap.Error(err))
		return err
	}
	return nil
}

// GetCookbookByID retrieves a cookbook by its ID, preloading entries and
// their recipes.
func (r *CookbookRepository) GetCookbookByID(cookbookID uint) (*models.Cookbook, error) {
	var cookbook models.Cookbook
	err := r.DB.Preload("Entries", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC, created_at ASC")
	}).
		Preload("Entries.Recipe").
		Where("id = ?", cookbookID).
		First(&cookbook).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFoundError{message: "Cookbook not found"}
		}
		return nil, err
	}
	return &cookbook, nil
}

// GetCookbooksByOwner retrieves all cookbooks owned by a user.
func (r *CookbookRepository) GetCookbooksByOwner(ownerID uint) ([]models.Cookbook, error) {
	var cookbooks []models.Cookbook
	err := r.DB.Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&cookbooks).Error
	if err != nil {
		return nil, err
	}
	return cookbooks, nil
}

// UpdateCookbook updates a cookbook's name and description.
func (r *CookbookRepository) UpdateCookbook(cookbook *models.Cookbook) error {
	err := r.DB.Model(&models.Cookbook{}).
		Where("id = ?", cookbook.ID).
		Updates(map[string]interface{}{
			"name":        cookbook.Name,
			"description": cookbook.Description,
		}).Error
	if err != nil {
		logger.Get().Error("failed to update cookbook", zap.Uint("cookbook_id", cookbook.ID), zap.Error(err))
	}
	return err
}

// DeleteCookbook deletes a cookbook and its entries.
func (r *CookbookRepository) DeleteCookbook(cookbookID uint) error {
	tx := r.DB.Begin()
	if tx.Error != nil {
		return tx.Error
	}

	if err := tx.Where("cookbook_id = ?", cookbookID).Delete(&models.CookbookEntry{}).Error; err != nil {
		tx.Rollback()
		logger.Get().Error("failed to delete cookbook entries", zap.Uint("cookbook_id", cookbookID), zap.Error(err))
		return err
	}
	if err := tx.Delete(&models.Cookbook{}, cookbookID).Error; err != nil {
		tx.Rollback()
		logger.Get().Error("failed to delete cookbook", zap.Uint("cookbook_id", cookbookID), zap.Error(err))
		return err
	}

	return tx.Commit().Error
}

// AddEntry adds a recipe to a cookbook.
func (r *CookbookRepository) AddEntry(entry *models.CookbookEntry) error {
	if err := r.DB.Create(entry).Error; err != nil {
		logger.Get().Error("failed to add cookbook entry", zap.Uint("cookbook_id", entry.CookbookID), zap.Uint("recipe_id", entry.RecipeID), zap.Error(err))
		return err
	}
	return nil
}

// RemoveEntry removes a recipe from a cookbook.
func (r *CookbookRepository) RemoveEntry(cookbookID, recipeID uint) error {
	result := r.DB.Where("cookbook_id = ? AND recipe_id = ?", cookbookID, recipeID).
		Delete(&models.CookbookEntry{})
	if result.Error != nil {
		logger.Get().Error("failed to remove cookbook entry", zap.Uint("cookbook_id", cookbookID), zap.Uint("recipe_id", recipeID), zap.Error(result.Error))
		return result.Error
	}
	if result.RowsAffected == 0 {
		return NotFoundError{message: "Recipe not in cookbook"}
	}
	return nil
}

// EntryExists checks whether a recipe is already in a cookbook.
func (r *CookbookRepository) EntryExists(cookbookID, recipeID uint) (bool, error) {
	var entry models.CookbookEntry
	err := r.DB.Where("cookbook_id = ? AND recipe_id = ?", cookbookID, recipeID).
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// CountEntries returns the number of recipes in a cookbook.
func (r *CookbookRepository) CountEntries(cookbookID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&models.CookbookEntry{}).
		Where("cookbook_id = ?", cookbookID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

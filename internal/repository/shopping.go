package repository

import (
	"errors"

	"github.com/mise-app/mise-api/internal/logger"
	"github.com/mise-app/mise-api/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ShoppingListRepository is a repository for interacting with shopping lists.
type ShoppingListRepository struct {
	DB *gorm.DB
}

// NewShoppingListRepository creates a new ShoppingListRepository.
func NewShoppingListRepository(db *gorm.DB) *ShoppingListRepository {
	return &ShoppingListRepository{DB: db}
}

// CreateShoppingList creates a new shopping list.
func (r *ShoppingListRepository) CreateShoppingList(list *models.ShoppingList) error {
	if err := r.DB.Create(list).Error; err != nil {
		logger.Get().Error("failed to create shopping list", zap.Uint("owner_id", list.OwnerID), zap.Error(err))
		return err
	}
	return nil
}

// GetShoppingListByID retrieves a shopping list by its ID.
func (r *ShoppingListRepository) GetShoppingListByID(listID uint) (*models.ShoppingList, error) {
	var list models.ShoppingList
	err := r.DB.Where("id = ?", listID).
		First(&list).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFoundError{message: "Shopping list not found"}
		}
		return nil, err
	}
	return &list, nil
}

// GetShoppingListsByOwner retrieves all shopping lists owned by a user.
func (r *ShoppingListRepository) GetShoppingListsByOwner(ownerID uint) ([]models.ShoppingList, error) {
	var lists []models.ShoppingList
	err := r.DB.Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&lists).Error
	if err != nil {
		return nil, err
	}
	return lists, nil
}

// UpdateShoppingListItems replaces the item list.
func (r *ShoppingListRepository) UpdateShoppingListItems(listID uint, items models.ShoppingItems) error {
	err := r.DB.Model(&models.ShoppingList{}).
		Where("id = ?", listID).
		Update("Items", items).Error
	if err != nil {
		logger.Get().Error("failed to update shopping list items", zap.Uint("list_id", listID), zap.Error(err))
	}
	return err
}

// DeleteShoppingList deletes a shopping list.
func (r *ShoppingListRepository) DeleteShoppingList(listID uint) error {
	err := r.DB.Delete(&models.ShoppingList{}, listID).Error
	if err != nil {
		logger.Get().Error("failed to delete shopping list", zap.Uint("list_id", listID), zap.Error(err))
	}
	return err
}

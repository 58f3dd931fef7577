package repository

import (
	"errors"

	"github.com/mise-app/mise-api/internal/logger"
	"github.com/mise-app/mise-api/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MealPlanRepository is a repository for interacting with meal plans.
type MealPlanRepository struct {
	DB *gorm.DB
}

// NewMealPlanRepository creates a new MealPlanRepository.
func NewMealPlanRepository(db *gorm.DB) *MealPlanRepository {
	return &MealPlanRepository{DB: db}
}

// CreateMealPlan creates a new meal plan.
func (r *MealPlanRepository) CreateMealPlan(plan *models.MealPlan) error {
	if err := r.DB.Create(plan).Error; err != nil {
		logger.Get().Error("failed to create meal plan", zap.Uint("owner_id", plan.OwnerID), zap.Error(err))
		return err
	}
	return nil
}

// GetMealPlanByID retrieves a meal plan by its ID, preloading entries and
// their recipes in week order.
func (r *MealPlanRepository) GetMealPlanByID(planID uint) (*models.MealPlan, error) {
	var plan models.MealPlan
	err := r.DB.Preload("Entries", func(db *gorm.DB) *gorm.DB {
		return db.Order("day ASC, slot ASC")
	}).
		Preload("Entries.Recipe").
		Where("id = ?", planID).
		First(&plan).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFoundError{message: "Meal plan not found"}
		}
		return nil, err
	}
	return &plan, nil
}

// GetMealPlansByOwner retrieves a page of the user's meal plans, most
// recent week first, along with the total count.
func (r *MealPlanRepository) GetMealPlansByOwner(ownerID uint, page, pageSize int) ([]models.MealPlan, int64, error) {
	var plans []models.MealPlan
	var total int64

	q := r.DB.Model(&models.MealPlan{}).Where("owner_id = ?", ownerID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := q.Order("start_date DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&plans).Error
	if err != nil {
		return nil, 0, err
	}

	return plans, total, nil
}

// UpdateMealPlanNotes updates a meal plan's notes.
func (r *MealPlanRepository) UpdateMealPlanNotes(planID uint, notes string) error {
	err := r.DB.Model(&models.MealPlan{}).
		Where("id = ?", planID).
		Update("Notes", notes).Error
	if err != nil {
		logger.Get().Error("failed to update meal plan notes", zap.Uint("plan_id", planID), zap.Error(err))
	}
	return err
}

// DeleteMealPlan deletes a meal plan and its entries.
func (r *MealPlanRepository) DeleteMealPlan(planID uint) error {
	tx := r.DB.Begin()
	if tx.Error != nil {
		return tx.Error
	}

	if err := tx.Where("plan_id = ?", planID).Delete(&models.MealPlanEntry{}).Error; err != nil {
		tx.Rollback()
		logger.Get().Error("failed to delete meal plan entries", zap.Uint("plan_id", planID), zap.Error(err))
		return err
	}
	if err := tx.Delete(&models.MealPlan{}, planID).Error; err != nil {
		tx.Rollback()
		logger.Get().Error("failed to delete meal plan", zap.Uint("plan_id", planID), zap.Error(err))
		return err
	}

	return tx.Commit().Error
}

// UpsertEntry sets the recipe for a (plan, day, slot), replacing any entry
// already occupying the slot.
func (r *MealPlanRepository) UpsertEntry(entry *models.MealPlanEntry) error {
	tx := r.DB.Begin()
	if tx.Error != nil {
		return tx.Error
	}

	err := tx.Where("plan_id = ? AND day = ? AND slot = ?", entry.PlanID, entry.Day, entry.Slot).
		Delete(&models.MealPlanEntry{}).Error
	if err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Create(entry).Error; err != nil {
		tx.Rollback()
		logger.Get().Error("failed to upsert meal plan entry", zap.Uint("plan_id", entry.PlanID), zap.Int("day", entry.Day), zap.Error(err))
		return err
	}

	return tx.Commit().Error
}

// RemoveEntry clears a (plan, day, slot).
func (r *MealPlanRepository) RemoveEntry(planID uint, day int, slot models.MealSlot) error {
	result := r.DB.Where("plan_id = ? AND day = ? AND slot = ?", planID, day, slot).
		Delete(&models.MealPlanEntry{})
	if result.Error != nil {
		logger.Get().Error("failed to remove meal plan entry", zap.Uint("plan_id", planID), zap.Int("day", day), zap.Error(result.Error))
		return result.Error
	}
	if result.RowsAffected == 0 {
		return NotFoundError{message: "Meal plan entry not found"}
	}
	return nil
}

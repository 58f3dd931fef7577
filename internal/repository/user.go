package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/mise-app/mise-api/internal/logger"
	"github.com/mise-app/mise-api/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// UserRepository is a repository for interacting with users.
type UserRepository struct {
	DB *gorm.DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{DB: db}
}

// CreateUser creates a new user.
func (r *UserRepository) CreateUser(user *models.User) (*models.User, error) {
	tx := r.DB.Begin()
	if err := tx.Create(user).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		// Check for unique constraints
		if pgErr, ok := err.(*pq.Error); ok && pgErr.Code == "23505" {
			if strings.Contains(pgErr.Error(), "username") {
				return nil, errors.New("username already in use")
			} else if strings.Contains(pgErr.Error(), "email") {
				return nil, errors.New("email already in use")
			}
		}
		return nil, err
	}

	return user, nil
}

// GetUserByID retrieves a user by their ID.
func (r *UserRepository) GetUserByID(userID uint) (*models.User, error) {
	var user models.User
	if err := r.DB.Preload("Settings").
		Preload("Personalization").
		Preload("Subscription").
		Where("id = ?", userID).
		First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFoundError{message: "User not found"}
		}
		return nil, err
	}

	return &user, nil
}

// GetUserAuthByUsername retrieves a user's authentication information by their username.
func (r *UserRepository) GetUserAuthByUsername(username string) (*models.User, error) {
	var user models.User
	if err := r.DB.Preload("Auth").Preload("Settings").Preload("Personalization").
		Where("username = ?", username).
		First(&user).Error; err != nil {
		return nil, err
	}

	return &user, nil
}

// UpdateUserFirstName updates a user's first name.
func (r *UserRepository) UpdateUserFirstName(userID uint, firstName string) error {
	err := r.DB.Model(&models.User{}).
		Where("id = ?", userID).
		Update("first_name", firstName).Error
	if err != nil {
		logger.Get().Error("failed to update user first name", zap.Uint("user_id", userID), zap.Error(err))
	}
	return err
}

// UpdateUserEmail updates a user's email address.
func (r *UserRepository) UpdateUserEmail(userID uint, email string) error {
	err := r.DB.Model(&models.User{}).
		Where("id = ?", userID).
		Update("Email", email).Error
	if err != nil {
		logger.Get().Error("failed to update user email", zap.Uint("user_id", userID), zap.Error(err))
	}

	return err
}

// UpdateUserSettingsKeepScreenAwake updates a user's KeepScreenAwake setting.
func (r *UserRepository) UpdateUserSettingsKeepScreenAwake(userID uint, keepScreenAwake bool) error {
	err := r.DB.Model(&models.UserSettings{}).
		Where("user_id = ?", userID).
		Update("KeepScreenAwake", keepScreenAwake).Error
	if err != nil {
		logger.Get().Error("failed to update user settings", zap.Uint("user_id", userID), zap.Error(err))
	}

	return err
}

// UpdateUserSettingsVoiceEnabled updates a user's VoiceEnabled setting.
func (r *UserRepository) UpdateUserSettingsVoiceEnabled(userID uint, voiceEnabled bool) error {
	err := r.DB.Model(&models.UserSettings{}).
		Where("user_id = ?", userID).
		Update("VoiceEnabled", voiceEnabled).Error
	if err != nil {
		logger.Get().Error("failed to update user settings", zap.Uint("user_id", userID), zap.Error(err))
	}

	return err
}

// UpdatePersonalization updates a user's personalization settings.
func (r *UserRepository) UpdatePersonalization(userID uint, updatedPersonalization *models.Personalization) error {
	var existingPersonalization models.Personalization

	// First, find the existing record
	err := r.DB.Where("user_id = ?", userID).
		First(&existingPersonalization).Error
	if err != nil {
		logger.Get().Error("failed to retrieve existing personalization", zap.Uint("user_id", userID), zap.Error(err))
		return err
	}

	// Update fields
	existingPersonalization.UnitSystem = updatedPersonalization.UnitSystem
	existingPersonalization.Requirements = updatedPersonalization.Requirements
	existingPersonalization.UID = updatedPersonalization.UID

	// Perform the update
	err = r.DB.Save(&existingPersonalization).Error
	if err != nil {
		logger.Get().Error("failed to save updated personalization", zap.Uint("user_id", userID), zap.Error(err))
	}

	return err
}

// UsernameExists checks if a username already exists.
func (r *UserRepository) UsernameExists(username string) (bool, error) {
	lowercaseUsername := strings.ToLower(username)
	var user models.User
	err := r.DB.Where("LOWER(username) = ?", lowercaseUsername).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// UpdateSubscription persists changes to a subscription row.
func (r *UserRepository) UpdateSubscription(sub *models.Subscription) error {
	err := r.DB.Save(sub).Error
	if err != nil {
		logger.Get().Error("failed to update subscription", zap.Uint("user_id", sub.UserID), zap.Error(err))
	}
	return err
}

// IncrementSubscriptionUsage atomically increments a usage counter on the
// subscription row for the given user. column must be one of:
// "ai_generations_used", "voice_seconds_used".
func (r *UserRepository) IncrementSubscriptionUsage(userID uint, column string) error {
	return r.AddSubscriptionUsage(userID, column, 1)
}

// AddSubscriptionUsage atomically adds amount to a usage counter on the
// subscription row for the given user.
func (r *UserRepository) AddSubscriptionUsage(userID uint, column string, amount int) error {
	result := r.DB.Model(&models.Subscription{}).
		Where("user_id = ?", userID).
		UpdateColumn(column, gorm.Expr(column+" + ?", amount))
	if result.Error != nil {
		logger.Get().Error("failed to add subscription usage", zap.Uint("user_id", userID), zap.String("column", column), zap.Error(result.Error))
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errors.New("no subscription found for user")
	}
	return nil
}

// ResetSubscriptionUsage zeroes all usage counters and advances the monthly
// reset timestamp for the given user's subscription.
func (r *UserRepository) ResetSubscriptionUsage(userID uint, nextReset time.Time) error {
	result := r.DB.Model(&models.Subscription{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"ai_generations_used": 0,
			"voice_seconds_used":  0,
			"monthly_reset_at":    nextReset,
		})
	if result.Error != nil {
		logger.Get().Error("failed to reset subscription usage", zap.Uint("user_id", userID), zap.Error(result.Error))
		return result.Error
	}
	return nil
}

// SaveRecipeForUser adds a recipe to the user's saved collection.
func (r *UserRepository) SaveRecipeForUser(userID, recipeID uint) error {
	user := models.User{Model: gorm.Model{ID: userID}}
	err := r.DB.Model(&user).
		Association("SavedRecipes").
		Append(&models.Recipe{Model: gorm.Model{ID: recipeID}})
	if err != nil {
		logger.Get().Error("failed to save recipe for user", zap.Uint("user_id", userID), zap.Uint("recipe_id", recipeID), zap.Error(err))
	}
	return err
}

// UnsaveRecipeForUser removes a recipe from the user's saved collection.
func (r *UserRepository) UnsaveRecipeForUser(userID, recipeID uint) error {
	user := models.User{Model: gorm.Model{ID: userID}}
	err := r.DB.Model(&user).
		Association("SavedRecipes").
		Delete(&models.Recipe{Model: gorm.Model{ID: recipeID}})
	if err != nil {
		logger.Get().Error("failed to unsave recipe for user", zap.Uint("user_id", userID), zap.Uint("recipe_id", recipeID), zap.Error(err))
	}
	return err
}

// GetSavedRecipes retrieves the user's saved recipes.
func (r *UserRepository) GetSavedRecipes(userID uint) ([]models.Recipe, error) {
	user := models.User{Model: gorm.Model{ID: userID}}
	var recipes []models.Recipe
	err := r.DB.Model(&user).
		Association("SavedRecipes").
		Find(&recipes)
	if err != nil {
		return nil, err
	}
	return recipes, nil
}

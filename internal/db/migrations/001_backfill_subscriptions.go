package migrations

import (
	"time"

	"github.com/mise-app/mise-api/internal/logger"
	"github.com/mise-app/mise-api/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// BackfillSubscriptions creates a free-tier subscription row for any user
// that predates subscription tracking. Usage gates read the subscription
// row directly, so every user needs one.
//
// This migration is idempotent: users that already have a subscription are
// skipped.
func BackfillSubscriptions(db *gorm.DB) error {
	var users []models.User
	err := db.Where("id NOT IN (?)",
		db.Model(&models.Subscription{}).Select("user_id"),
	).Find(&users).Error
	if err != nil {
		return err
	}

	if len(users) == 0 {
		return nil
	}

	logger.Get().Info("backfilling subscriptions", zap.Int("count", len(users)))

	for _, user := range users {
		sub := models.Subscription{
			UserID:         user.ID,
			Tier:           models.TierFree,
			MonthlyResetAt: time.Now().AddDate(0, 1, 0),
		}
		if err := db.Create(&sub).Error; err != nil {
			logger.Get().Error("failed to backfill subscription",
				zap.Uint("user_id", user.ID),
				zap.Error(err))
			continue // skip failed users rather than aborting the whole backfill
		}
	}

	logger.Get().Info("subscription backfill complete")
	return nil
}

package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/mise-app/mise-api/internal/config"
	"github.com/mise-app/mise-api/internal/models"
	"github.com/mise-app/mise-api/internal/repository"
)

// ErrAIQuotaExceeded is returned when a free-tier user has used up their
// monthly AI generations.
var ErrAIQuotaExceeded = errors.New("monthly AI generation limit reached; upgrade to keep going")

// ErrVoiceQuotaExceeded is returned when a free-tier user has used up their
// monthly voice-assistant minutes.
var ErrVoiceQuotaExceeded = errors.New("monthly voice assistant minutes used up; upgrade to keep going")

// SubscriptionService handles subscription tiers and monthly usage limits.
type SubscriptionService struct {
	Cfg  *config.Config
	Repo repository.UserRepo
}

// SubscriptionResponse is the response object for subscription operations.
type SubscriptionResponse struct {
	Tier              string `json:"tier"`
	AIGenerationsUsed int    `json:"aiGenerationsUsed"`
	AIGenerationsMax  int    `json:"aiGenerationsMax"` // 0 means unlimited
	VoiceSecondsUsed  int    `json:"voiceSecondsUsed"`
	VoiceSecondsMax   int    `json:"voiceSecondsMax"` // 0 means unlimited
	ResetsAt          string `json:"resetsAt"`
	ExpiresAt         string `json:"expiresAt,omitempty"`
}

// NewSubscriptionService creates a new SubscriptionService.
func NewSubscriptionService(cfg *config.Config, repo repository.UserRepo) *SubscriptionService {
	return &SubscriptionService{
		Cfg:  cfg,
		Repo: repo,
	}
}

// GetSubscription retrieves the subscription for a user, lazily applying the
// monthly counter reset and premium expiry.
func (s *SubscriptionService) GetSubscription(userID uint) (*models.Subscription, error) {
	user, err := s.Repo.GetUserByID(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	sub := user.Subscription
	if sub == nil {
		sub = &models.Subscription{
			UserID:         userID,
			Tier:           models.TierFree,
			MonthlyResetAt: time.Now().AddDate(0, 1, 0),
		}
		if err := s.Repo.UpdateSubscription(sub); err != nil {
			return nil, fmt.Errorf("failed to create subscription: %w", err)
		}
		return sub, nil
	}

	if sub.Tier == models.TierPremium && sub.ExpiresAt != nil && time.Now().After(*sub.ExpiresAt) {
		sub.Tier = models.TierFree
		sub.ExpiresAt = nil
		if err := s.Repo.UpdateSubscription(sub); err != nil {
			return nil, fmt.Errorf("failed to downgrade expired subscription: %w", err)
		}
	}

	if time.Now().After(sub.MonthlyResetAt) {
		nextReset := sub.MonthlyResetAt
		for time.Now().After(nextReset) {
			nextReset = nextReset.AddDate(0, 1, 0)
		}
		if err := s.Repo.ResetSubscriptionUsage(userID, nextReset); err != nil {
			return nil, fmt.Errorf("failed to reset monthly usage: %w", err)
		}
		sub.AIGenerationsUsed = 0
		sub.VoiceSecondsUsed = 0
		sub.MonthlyResetAt = nextReset
	}

	return sub, nil
}

// UpgradeSubscription upgrades a user to premium for a month. Stub awaiting
// billing webhooks; there is no payment check here.
func (s *SubscriptionService) UpgradeSubscription(userID uint) (*models.Subscription, error) {
	sub, err := s.GetSubscription(userID)
	if err != nil {
		return nil, err
	}

	sub.Tier = models.TierPremium
	expires := time.Now().AddDate(0, 1, 0)
	sub.ExpiresAt = &expires

	if err := s.Repo.UpdateSubscription(sub); err != nil {
		return nil, fmt.Errorf("failed to upgrade subscription: %w", err)
	}
	return sub, nil
}

// CheckAIGeneration returns ErrAIQuotaExceeded if the user has no AI
// generations left this month.
func (s *SubscriptionService) CheckAIGeneration(userID uint) error {
	sub, err := s.GetSubscription(userID)
	if err != nil {
		return err
	}
	if !sub.CanUseAIGeneration() {
		return ErrAIQuotaExceeded
	}
	return nil
}

// ConsumeAIGeneration records one AI generation against the user's monthly
// allowance. Call after the AI call succeeds.
func (s *SubscriptionService) ConsumeAIGeneration(userID uint) error {
	return s.Repo.IncrementSubscriptionUsage(userID, "ai_generations_used")
}

// CheckVoiceAssistant returns ErrVoiceQuotaExceeded if the user has no
// voice-assistant time left this month.
func (s *SubscriptionService) CheckVoiceAssistant(userID uint) error {
	sub, err := s.GetSubscription(userID)
	if err != nil {
		return err
	}
	if !sub.CanUseVoiceAssistant() {
		return ErrVoiceQuotaExceeded
	}
	return nil
}

// AddVoiceUsage records seconds of live voice-session time against the
// user's monthly allowance.
func (s *SubscriptionService) AddVoiceUsage(userID uint, seconds int) error {
	if seconds <= 0 {
		return nil
	}
	return s.Repo.AddSubscriptionUsage(userID, "voice_seconds_used", seconds)
}

// ToSubscriptionResponse converts a Subscription to a SubscriptionResponse.
func ToSubscriptionResponse(sub *models.Subscription) *SubscriptionResponse {
	resp := &SubscriptionResponse{
		Tier:              string(sub.Tier),
		AIGenerationsUsed: sub.AIGenerationsUsed,
		VoiceSecondsUsed:  sub.VoiceSecondsUsed,
		ResetsAt:          sub.MonthlyResetAt.Format("2006-01-02T15:04:05Z"),
	}
	if sub.Tier == models.TierFree {
		resp.AIGenerationsMax = models.FreeAIGenerationsPerMonth
		resp.VoiceSecondsMax = models.FreeVoiceSecondsPerMonth
	}
	if sub.ExpiresAt != nil {
		resp.ExpiresAt = sub.ExpiresAt.Format("2006-01-02T15:04:05Z")
	}
	return resp
}

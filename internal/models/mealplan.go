package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// MealPlan is the model for a week of planned meals.
type MealPlan struct {
	gorm.Model
	OwnerID   uint            `gorm:"index;not null"`
	Owner     *User           `gorm:"foreignKey:OwnerID"`
	StartDate time.Time       `gorm:"index"`
	Notes     string          `gorm:"type:text"`
	Entries   []MealPlanEntry `gorm:"foreignKey:PlanID"`
}

// MealSlot is the type for the MealSlot enum.
type MealSlot string

// MealSlot enum values.
const (
	SlotBreakfast MealSlot = "breakfast"
	SlotLunch     MealSlot = "lunch"
	SlotDinner    MealSlot = "dinner"
)

// MealPlanEntry is the model for a single planned meal. At most one entry
// exists per (plan, day, slot); day 0 is the plan's StartDate.
type MealPlanEntry struct {
	gorm.Model
	PlanID   uint     `gorm:"not null;uniqueIndex:idx_plan_day_slot"`
	Day      int      `gorm:"not null;uniqueIndex:idx_plan_day_slot"`
	Slot     MealSlot `gorm:"type:text;not null;uniqueIndex:idx_plan_day_slot"`
	RecipeID uint     `gorm:"index;not null"`
	Recipe   *Recipe  `gorm:"foreignKey:RecipeID"`
	Servings int      `gorm:"default:0"` // 0 means use the recipe's own servings
}

// IsValidSlot checks if the MealSlot is valid.
func (e *MealPlanEntry) IsValidSlot() bool {
	switch e.Slot {
	case SlotBreakfast, SlotLunch, SlotDinner:
		return true
	default:
		return false
	}
}

// IsValidDay checks that the entry's day falls inside the plan week.
func (e *MealPlanEntry) IsValidDay() bool {
	return e.Day >= 0 && e.Day <= 6
}

// BeforeCreate is a GORM hook that runs before creating a new MealPlanEntry.
func (e *MealPlanEntry) BeforeCreate(tx *gorm.DB) (err error) {
	if !e.IsValidSlot() {
		// Cancel transaction
		return errors.New("invalid MealSlot provided")
	}
	if !e.IsValidDay() {
		return errors.New("meal plan day must be between 0 and 6")
	}

	return nil
}

// BeforeUpdate is a GORM hook that runs before updating a MealPlanEntry.
func (e *MealPlanEntry) BeforeUpdate(tx *gorm.DB) (err error) {
	if !e.IsValidSlot() {
		// Cancel transaction
		return errors.New("invalid MealSlot provided")
	}
	if !e.IsValidDay() {
		return errors.New("meal plan day must be between 0 and 6")
	}

	return nil
}

package models

import (
	"gorm.io/gorm"
)

// Cookbook is the model for a named collection of recipes owned by a user.
type Cookbook struct {
	gorm.Model
	Name        string          `gorm:"not null"`
	Description string          `gorm:"type:text"`
	OwnerID     uint            `gorm:"index;not null"`
	Owner       *User           `gorm:"foreignKey:OwnerID"`
	Entries     []CookbookEntry `gorm:"foreignKey:CookbookID"`
}

// CookbookEntry is the model for a recipe's membership in a cookbook.
// The (cookbook, recipe) pair is unique: adding an already-present recipe
// is a no-op at the service layer.
type CookbookEntry struct {
	gorm.Model
	CookbookID uint    `gorm:"not null;uniqueIndex:idx_cookbook_recipe"`
	RecipeID   uint    `gorm:"not null;uniqueIndex:idx_cookbook_recipe"`
	Recipe     *Recipe `gorm:"foreignKey:RecipeID"`
	Position   int     `gorm:"default:0"`
}

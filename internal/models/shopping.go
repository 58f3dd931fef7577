package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ShoppingList is the model for a shopping list, usually generated from a
// meal plan but editable afterwards.
type ShoppingList struct {
	gorm.Model
	OwnerID    uint          `gorm:"index;not null"`
	Owner      *User         `gorm:"foreignKey:OwnerID"`
	MealPlanID *uint         `gorm:"index"`
	Name       string        `gorm:"not null"`
	Items      ShoppingItems `gorm:"type:jsonb"`
}

// ShoppingItem is a single line on a shopping list. Generated items carry
// the recipe IDs they were aggregated from; manual items survive
// regeneration.
type ShoppingItem struct {
	Name      string  `json:"name"`
	Unit      string  `json:"unit"`
	Amount    float64 `json:"amount"`
	Checked   bool    `json:"checked"`
	Manual    bool    `json:"manual,omitempty"`
	Estimated bool    `json:"estimated,omitempty"`
	RecipeIDs []uint  `json:"recipe_ids,omitempty"`
}

// ShoppingItems is a slice of ShoppingItem for JSONB storage.
type ShoppingItems []ShoppingItem

// Scan is a GORM hook that scans jsonb into ShoppingItems.
func (j *ShoppingItems) Scan(value interface{}) error {
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New(fmt.Sprint("Failed to unmarshal JSONB value:", value))
	}

	result := ShoppingItems{}
	err := json.Unmarshal(bytes, &result)
	*j = ShoppingItems(result)

	return err
}

// Value is a GORM hook that returns json value of ShoppingItems.
func (j ShoppingItems) Value() (driver.Value, error) {
	return json.Marshal(j)
}

package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// RecipeCore is the cooking content of a recipe: the schema shared by AI
// extraction (tool calling), manual entry, and the voice-session context
// builder. It is embedded in Recipe and stored as flattened columns plus
// jsonb for the ingredient list.
type RecipeCore struct {
	Title        string         `json:"title" gorm:"column:title"`
	Ingredients  Ingredients    `json:"ingredients" gorm:"type:jsonb;column:ingredients"`
	Instructions pq.StringArray `json:"instructions" gorm:"type:text[];column:instructions"`
	PrepTime     int            `json:"prep_time,omitempty" gorm:"column:prep_time"`
	CookTime     int            `json:"cook_time" gorm:"column:cook_time"`
	Servings     int            `json:"servings,omitempty" gorm:"column:servings"`
	ServingSize  string         `json:"serving_size,omitempty" gorm:"column:serving_size"`
	Tags         []string       `json:"tags" gorm:"-"` // Raw tag strings from AI responses; Recipe has a separate Tags field for the DB relationship
	ImagePrompt  string         `json:"image_prompt,omitempty" gorm:"column:image_prompt"`
	SourceURL    string         `json:"source_url,omitempty" gorm:"column:source_url"`
}

// Scan is a GORM hook that scans jsonb into a RecipeCore.
func (j *RecipeCore) Scan(value interface{}) error {
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New(fmt.Sprint("Failed to unmarshal JSONB value:", value))
	}

	result := RecipeCore{}
	err := json.Unmarshal(bytes, &result)
	*j = RecipeCore(result)

	return err
}

// Value is a GORM hook that returns json value of a RecipeCore.
func (j RecipeCore) Value() (driver.Value, error) {
	return json.Marshal(j)
}

// Ingredient is a single ingredient line in a recipe.
type Ingredient struct {
	Name             string  `json:"name"`
	Unit             string  `json:"unit"`
	Amount           float64 `json:"amount"`
	OriginalText     string  `json:"original_text,omitempty"`
	NormalizedAmount float64 `json:"normalized_amount,omitempty"`
	NormalizedUnit   string  `json:"normalized_unit,omitempty"`
	IsEstimated      bool    `json:"is_estimated,omitempty"`
}

// Ingredients is a slice of Ingredient.
// This is a workaround for GORM to embed a slice of structs into a JSONB field.
type Ingredients []Ingredient

// Scan is a GORM hook that scans jsonb into Ingredients.
func (j *Ingredients) Scan(value interface{}) error {
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New(fmt.Sprint("Failed to unmarshal JSONB value:", value))
	}

	result := Ingredients{}
	err := json.Unmarshal(bytes, &result)
	*j = Ingredients(result)

	return err
}

// Value is a GORM hook that returns json value of Ingredients.
func (j Ingredients) Value() (driver.Value, error) {
	return json.Marshal(j)
}

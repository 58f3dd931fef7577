package models

import (
	"gorm.io/gorm"
)

// Recipe is the model for a recipe.
type Recipe struct {
	gorm.Model
	RecipeCore
	Tags        []*Tag       `json:"-" gorm:"many2many:recipe_tags;"`
	Source      RecipeSource `gorm:"type:text"`
	ImageURL    string
	Public      bool  `gorm:"default:false;index"`
	UserEdited  bool  `gorm:"default:false"`
	CreatedByID uint  `gorm:"index"`
	CreatedBy   *User `gorm:"foreignKey:CreatedByID"`
}

// Tag is the model for a recipe tag.
type Tag struct {
	gorm.Model
	Name string `gorm:"index:idx_tag_name;unique"`
}

// RecipeSource is the type for the RecipeSource enum: how a recipe entered
// the system.
type RecipeSource string

// RecipeSource enum values.
const (
	SourceChat         RecipeSource = "chat"
	SourceImportURL    RecipeSource = "import_url"
	SourceImportVision RecipeSource = "import_vision"
	SourceImportText   RecipeSource = "import_text"
	SourceManualEntry  RecipeSource = "manual"
)

// IsValidSource checks if the RecipeSource is valid.
func (r *Recipe) IsValidSource() bool {
	switch r.Source {
	case SourceChat, SourceImportURL, SourceImportVision, SourceImportText, SourceManualEntry:
		return true
	default:
		return false
	}
}

// BeforeCreate is a GORM hook that runs before creating a new Recipe.
func (r *Recipe) BeforeCreate(tx *gorm.DB) (err error) {
	if !r.IsValidSource() {
		// Default so hand-constructed rows don't fail validation
		r.Source = SourceManualEntry
	}

	return nil
}

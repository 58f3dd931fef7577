package repository

import (
	"errors"

	"github.com/mise-app/mise-api/internal/logger"
	"github.com/mise-app/mise-api/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RecipeRepository is a repository for interacting with recipes.
type RecipeRepository struct {
	DB *gorm.DB
}

// NewRecipeRepository creates a new RecipeRepository.
func NewRecipeRepository(db *gorm.DB) *RecipeRepository {
	return &RecipeRepository{DB: db}
}

// CreateRecipe creates a new recipe.
func (r *RecipeRepository) CreateRecipe(recipe *models.Recipe) error {
	tx := r.DB.Begin()
	if tx.Error != nil {
		return tx.Error
	}

	if err := tx.Create(recipe).Error; err != nil {
		tx.Rollback()
		logger.Get().Error("failed to create recipe", zap.Uint("user_id", recipe.CreatedByID), zap.Error(err))
		return err
	}

	return tx.Commit().Error
}

// GetRecipeByID retrieves a recipe by its ID.
func (r *RecipeRepository) GetRecipeByID(recipeID uint) (*models.Recipe, error) {
	var recipe models.Recipe

	err := r.DB.Preload("Tags").
		Preload("CreatedBy", func(db *gorm.DB) *gorm.DB {
			return db.Select("ID", "Username")
		}).
		Where("id = ?", recipeID).
		First(&recipe).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFoundError{message: "Recipe not found"}
		}
		return nil, err
	}

	return &recipe, nil
}

// GetRecipesByIDs retrieves multiple recipes at once, for shopping-list
// aggregation. Missing IDs are silently skipped.
func (r *RecipeRepository) GetRecipesByIDs(recipeIDs []uint) ([]models.Recipe, error) {
	if len(recipeIDs) == 0 {
		return nil, nil
	}

	var recipes []models.Recipe
	if err := r.DB.Where("id IN ?", recipeIDs).Find(&recipes).Error; err != nil {
		return nil, err
	}
	return recipes, nil
}

// GetUserRecipes retrieves a page of the user's own recipes, newest first,
// along with the total count.
func (r *RecipeRepository) GetUserRecipes(userID uint, page, pageSize int) ([]models.Recipe, int64, error) {
	var recipes []models.Recipe
	var total int64

	q := r.DB.Model(&models.Recipe{}).Where("created_by_id = ?", userID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := q.Preload("Tags").
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&recipes).Error
	if err != nil {
		return nil, 0, err
	}

	return recipes, total, nil
}

// SearchRecipes retrieves a page of recipes visible to the user (their own
// plus public ones), filtered by a title substring and/or tag name.
func (r *RecipeRepository) SearchRecipes(userID uint, query, tag string, page, pageSize int) ([]models.Recipe, int64, error) {
	var recipes []models.Recipe
	var total int64

	q := r.DB.Model(&models.Recipe{}).
		Where("created_by_id = ? OR public = ?", userID, true)

	if query != "" {
		q = q.Where("title ILIKE ?", "%"+query+"%")
	}
	if tag != "" {
		q = q.Joins("JOIN recipe_tags ON recipe_tags.recipe_id = recipes.id").
			Joins("JOIN tags ON tags.id = recipe_tags.tag_id").
			Where("tags.name = ?", tag)
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := q.Preload("Tags").
		Order("recipes.created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&recipes).Error
	if err != nil {
		return nil, 0, err
	}

	return recipes, total, nil
}

// UpdateRecipeCore replaces the cooking content of a recipe (title,
// ingredients, instructions, times, servings) in a single update.
func (r *RecipeRepository) UpdateRecipeCore(recipeID uint, core models.RecipeCore) error {
	err := r.DB.Model(&models.Recipe{}).
		Where("id = ?", recipeID).
		Updates(map[string]interface{}{
			"title":        core.Title,
			"ingredients":  core.Ingredients,
			"instructions": core.Instructions,
			"prep_time":    core.PrepTime,
			"cook_time":    core.CookTime,
			"servings":     core.Servings,
			"serving_size": core.ServingSize,
			"image_prompt": core.ImagePrompt,
			"source_url":   core.SourceURL,
			"user_edited":  true,
		}).Error
	if err != nil {
		logger.Get().Error("failed to update recipe core", zap.Uint("recipe_id", recipeID), zap.Error(err))
	}
	return err
}

// UpdateRecipeTitle updates the title of a recipe.
func (r *RecipeRepository) UpdateRecipeTitle(recipe *models.Recipe, title string) error {
	err := r.DB.Model(recipe).
		Update("Title", title).Error
	if err != nil {
		logger.Get().Error("failed to update recipe title", zap.Uint("recipe_id", recipe.ID), zap.Error(err))
	}
	return err
}

// UpdateRecipeImageURL updates the image URL of a recipe.
func (r *RecipeRepository) UpdateRecipeImageURL(recipeID uint, imageURL string) error {
	err := r.DB.Model(&models.Recipe{}).
		Where("id = ?", recipeID).
		Update("ImageURL", imageURL).Error
	if err != nil {
		logger.Get().Error("failed to update recipe image URL", zap.Uint("recipe_id", recipeID), zap.Error(err))
	}
	return err
}

// UpdateRecipeVisibility flips a recipe between private and public.
func (r *RecipeRepository) UpdateRecipeVisibility(recipeID uint, public bool) error {
	err := r.DB.Model(&models.Recipe{}).
		Where("id = ?", recipeID).
		Update("Public", public).Error
	if err != nil {
		logger.Get().Error("failed to update recipe visibility", zap.Uint("recipe_id", recipeID), zap.Error(err))
	}
	return err
}

// DeleteRecipe deletes a recipe.
func (r *RecipeRepository) DeleteRecipe(recipeID uint) error {
	err := r.DB.Delete(&models.Recipe{}, recipeID).Error
	if err != nil {
		logger.Get().Error("failed to delete recipe", zap.Uint("recipe_id", recipeID), zap.Error(err))
	}
	return err
}

// FindTagByName finds a tag by its name.
func (r *RecipeRepository) FindTagByName(tagName string) (*models.Tag, error) {
	var tag models.Tag
	err := r.DB.Where("name = ?", tagName).
		First(&tag).Error
	if err != nil {
		return nil, err
	}
	return &tag, nil
}

// CreateTag creates a new tag.
func (r *RecipeRepository) CreateTag(tag *models.Tag) error {
	err := r.DB.Create(tag).Error
	if err != nil {
		logger.Get().Error("failed to create tag", zap.String("name", tag.Name), zap.Error(err))
	}
	return err
}

// UpdateRecipeTagsAssociation updates the tags associated with a recipe.
func (r *RecipeRepository) UpdateRecipeTagsAssociation(recipeID uint, newTags []models.Tag) error {
	var recipe models.Recipe
	result := r.DB.First(&recipe, recipeID)
	if result.Error != nil {
		return result.Error
	}

	// Replace existing associations with new tags
	err := r.DB.Model(&recipe).
		Association("Tags").
		Replace(newTags)
	if err != nil {
		return err
	}

	return nil
}

package repository

import (
	"time"

	"github.com/mise-app/mise-api/internal/models"
)

// RecipeRepo is the interface for recipe repository operations.
type RecipeRepo interface {
	CreateRecipe(recipe *models.Recipe) error
	GetRecipeByID(recipeID uint) (*models.Recipe, error)
	GetRecipesByIDs(recipeIDs []uint) ([]models.Recipe, error)
	GetUserRecipes(userID uint, page, pageSize int) ([]models.Recipe, int64, error)
	SearchRecipes(userID uint, query, tag string, page, pageSize int) ([]models.Recipe, int64, error)
	UpdateRecipeCore(recipeID uint, core models.RecipeCore) error
	UpdateRecipeTitle(recipe *models.Recipe, title string) error
	UpdateRecipeImageURL(recipeID uint, imageURL string) error
	UpdateRecipeVisibility(recipeID uint, public bool) error
	DeleteRecipe(recipeID uint) error
	FindTagByName(tagName string) (*models.Tag, error)
	CreateTag(tag *models.Tag) error
	UpdateRecipeTagsAssociation(recipeID uint, newTags []models.Tag) error
}

// UserRepo is the interface for user repository operations.
type UserRepo interface {
	CreateUser(user *models.User) (*models.User, error)
	GetUserByID(userID uint) (*models.User, error)
	GetUserAuthByUsername(username string) (*models.User, error)
	UpdateUserFirstName(userID uint, firstName string) error
	UpdateUserEmail(userID uint, email string) error
	UpdateUserSettingsKeepScreenAwake(userID uint, keepScreenAwake bool) error
	UpdateUserSettingsVoiceEnabled(userID uint, voiceEnabled bool) error
	UpdatePersonalization(userID uint, updatedPersonalization *models.Personalization) error
	UsernameExists(username string) (bool, error)
	UpdateSubscription(sub *models.Subscription) error
	IncrementSubscriptionUsage(userID uint, column string) error
	AddSubscriptionUsage(userID uint, column string, amount int) error
	ResetSubscriptionUsage(userID uint, nextReset time.Time) error
	SaveRecipeForUser(userID, recipeID uint) error
	UnsaveRecipeForUser(userID, recipeID uint) error
	GetSavedRecipes(userID uint) ([]models.Recipe, error)
}

// CookbookRepo is the interface for cookbook repository operations.
type CookbookRepo interface {
	CreateCookbook(cookbook *models.Cookbook) error
	GetCookbookByID(cookbookID uint) (*models.Cookbook, error)
	GetCookbooksByOwner(ownerID uint) ([]models.Cookbook, error)
	UpdateCookbook(cookbook *models.Cookbook) error
	DeleteCookbook(cookbookID uint) error
	AddEntry(entry *models.CookbookEntry) error
	RemoveEntry(cookbookID, recipeID uint) error
	EntryExists(cookbookID, recipeID uint) (bool, error)
	CountEntries(cookbookID uint) (int64, error)
}

// MealPlanRepo is the interface for meal plan repository operations.
type MealPlanRepo interface {
	CreateMealPlan(plan *models.MealPlan) error
	GetMealPlanByID(planID uint) (*models.MealPlan, error)
	GetMealPlansByOwner(ownerID uint, page, pageSize int) ([]models.MealPlan, int64, error)
	UpdateMealPlanNotes(planID uint, notes string) error
	DeleteMealPlan(planID uint) error
	UpsertEntry(entry *models.MealPlanEntry) error
	RemoveEntry(planID uint, day int, slot models.MealSlot) error
}

// ShoppingListRepo is the interface for shopping list repository operations.
type ShoppingListRepo interface {
	CreateShoppingList(list *models.ShoppingList) error
	GetShoppingListByID(listID uint) (*models.ShoppingList, error)
	GetShoppingListsByOwner(ownerID uint) ([]models.ShoppingList, error)
	UpdateShoppingListItems(listID uint, items models.ShoppingItems) error
	DeleteShoppingList(listID uint) error
}

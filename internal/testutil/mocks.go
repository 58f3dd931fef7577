package testutil

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mise-app/mise-api/internal/ai"
	"github.com/mise-app/mise-api/internal/models"
	"github.com/mise-app/mise-api/internal/repository"
	"gorm.io/gorm"
)

// --- MockTextProvider ---

// MockTextProvider is a mock implementation of ai.TextProvider.
type MockTextProvider struct {
	GenerateRecipeFunc           func(ctx context.Context, req ai.RecipeRequest) (*ai.RecipeResult, error)
	ExtractRecipeFromTextFunc    func(ctx context.Context, text string, unitSystem string) (*ai.RecipeResult, error)
	ExtractRecipeFromWebPageFunc func(ctx context.Context, pageContent string, sourceURL string, unitSystem string) (*ai.RecipeResult, error)
	ClassifyVoiceNoteFunc        func(ctx context.Context, transcript string) (*ai.VoiceNoteIntent, error)
	NormalizeIngredientsFunc     func(ctx context.Context, ingredients []ai.IngredientInput) ([]ai.NormalizedIngredient, error)
	CookingQAFunc                func(ctx context.Context, question string, recipeContext string) (string, error)
}

func (m *MockTextProvider) GenerateRecipe(ctx context.Context, req ai.RecipeRequest) (*ai.RecipeResult, error) {
	if m.GenerateRecipeFunc != nil {
		return m.GenerateRecipeFunc(ctx, req)
	}
	return nil, fmt.Errorf("GenerateRecipe not configured")
}

func (m *MockTextProvider) ExtractRecipeFromText(ctx context.Context, text string, unitSystem string) (*ai.RecipeResult, error) {
	if m.ExtractRecipeFromTextFunc != nil {
		return m.ExtractRecipeFromTextFunc(ctx, text, unitSystem)
	}
	return nil, fmt.Errorf("ExtractRecipeFromText not configured")
}

func (m *MockTextProvider) ExtractRecipeFromWebPage(ctx context.Context, pageContent string, sourceURL string, unitSystem string) (*ai.RecipeResult, error) {
	if m.ExtractRecipeFromWebPageFunc != nil {
		return m.ExtractRecipeFromWebPageFunc(ctx, pageContent, sourceURL, unitSystem)
	}
	return nil, fmt.Errorf("ExtractRecipeFromWebPage not configured")
}

func (m *MockTextProvider) ClassifyVoiceNote(ctx context.Context, transcript string) (*ai.VoiceNoteIntent, error) {
	if m.ClassifyVoiceNoteFunc != nil {
		return m.ClassifyVoiceNoteFunc(ctx, transcript)
	}
	return nil, fmt.Errorf("ClassifyVoiceNote not configured")
}

func (m *MockTextProvider) NormalizeIngredients(ctx context.Context, ingredients []ai.IngredientInput) ([]ai.NormalizedIngredient, error) {
	if m.NormalizeIngredientsFunc != nil {
		return m.NormalizeIngredientsFunc(ctx, ingredients)
	}
	return nil, fmt.Errorf("NormalizeIngredients not configured")
}

func (m *MockTextProvider) CookingQA(ctx context.Context, question string, recipeContext string) (string, error) {
	if m.CookingQAFunc != nil {
		return m.CookingQAFunc(ctx, question, recipeContext)
	}
	return "", fmt.Errorf("CookingQA not configured")
}

// --- MockVisionProvider ---

// MockVisionProvider is a mock implementation of ai.VisionProvider.
type MockVisionProvider struct {
	ExtractRecipeFromImageFunc func(ctx context.Context, imageData []byte, unitSystem string, requirements string) (*ai.RecipeResult, error)
}

func (m *MockVisionProvider) ExtractRecipeFromImage(ctx context.Context, imageData []byte, unitSystem string, requirements string) (*ai.RecipeResult, error) {
	if m.ExtractRecipeFromImageFunc != nil {
		return m.ExtractRecipeFromImageFunc(ctx, imageData, unitSystem, requirements)
	}
	return nil, fmt.Errorf("ExtractRecipeFromImage not configured")
}

// --- MockImageProvider ---

// MockImageProvider is a mock implementation of ai.ImageProvider.
type MockImageProvider struct {
	GenerateImageFunc func(ctx context.Context, prompt string) ([]byte, error)
}

func (m *MockImageProvider) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	if m.GenerateImageFunc != nil {
		return m.GenerateImageFunc(ctx, prompt)
	}
	return nil, fmt.Errorf("GenerateImage not configured")
}

// --- MockSpeechProvider ---

// MockSpeechProvider is a mock implementation of ai.SpeechProvider.
type MockSpeechProvider struct {
	TranscribeAudioFunc func(ctx context.Context, audioData []byte) (string, error)
}

func (m *MockSpeechProvider) TranscribeAudio(ctx context.Context, audioData []byte) (string, error) {
	if m.TranscribeAudioFunc != nil {
		return m.TranscribeAudioFunc(ctx, audioData)
	}
	return "", fmt.Errorf("TranscribeAudio not configured")
}

// --- MockRecipeRepo ---

// MockRecipeRepo is an in-memory mock implementation of repository.RecipeRepo.
type MockRecipeRepo struct {
	mu        sync.Mutex
	Recipes   map[uint]*models.Recipe
	Tags      map[string]*models.Tag
	NextID    uint
	NextTagID uint

	// Error overrides: set these to force specific methods to return errors.
	CreateRecipeErr         error
	GetRecipeByIDErr        error
	DeleteRecipeErr         error
	UpdateRecipeCoreErr     error
	UpdateRecipeImageURLErr error
}

// NewMockRecipeRepo creates a new MockRecipeRepo with initialized maps.
func NewMockRecipeRepo() *MockRecipeRepo {
	return &MockRecipeRepo{
		Recipes:   make(map[uint]*models.Recipe),
		Tags:      make(map[string]*models.Tag),
		NextID:    1,
		NextTagID: 1,
	}
}

func (m *MockRecipeRepo) CreateRecipe(recipe *models.Recipe) error {
	if m.CreateRecipeErr != nil {
		return m.CreateRecipeErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	recipe.ID = m.NextID
	m.NextID++
	m.Recipes[recipe.ID] = recipe
	return nil
}

func (m *MockRecipeRepo) GetRecipeByID(recipeID uint) (*models.Recipe, error) {
	if m.GetRecipeByIDErr != nil {
		return nil, m.GetRecipeByIDErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.Recipes[recipeID]
	if !ok {
		return nil, repository.NotFoundError{}
	}
	return r, nil
}

func (m *MockRecipeRepo) GetRecipesByIDs(recipeIDs []uint) ([]models.Recipe, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var recipes []models.Recipe
	for _, id := range recipeIDs {
		if r, ok := m.Recipes[id]; ok {
			recipes = append(recipes, *r)
		}
	}
	return recipes, nil
}

func (m *MockRecipeRepo) GetUserRecipes(userID uint, page, pageSize int) ([]models.Recipe, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var recipes []models.Recipe
	for _, r := range m.Recipes {
		if r.CreatedByID == userID {
			recipes = append(recipes, *r)
		}
	}
	sort.Slice(recipes, func(i, j int) bool { return recipes[i].ID > recipes[j].ID })
	total := int64(len(recipes))

	start := (page - 1) * pageSize
	if start >= len(recipes) {
		return []models.Recipe{}, total, nil
	}
	end := start + pageSize
	if end > len(recipes) {
		end = len(recipes)
	}
	return recipes[start:end], total, nil
}

func (m *MockRecipeRepo) SearchRecipes(userID uint, query, tag string, page, pageSize int) ([]models.Recipe, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var recipes []models.Recipe
	for _, r := range m.Recipes {
		if r.CreatedByID != userID && !r.Public {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(r.Title), strings.ToLower(query)) {
			continue
		}
		if tag != "" {
			found := false
			for _, t := range r.Tags {
				if t.Name == tag {
					found = true
					break
				}
			}
			if !found {
				continue
			}
		}
		recipes = append(recipes, *r)
	}
	sort.Slice(recipes, func(i, j int) bool { return recipes[i].ID > recipes[j].ID })
	total := int64(len(recipes))

	start := (page - 1) * pageSize
	if start >= len(recipes) {
		return []models.Recipe{}, total, nil
	}
	end := start + pageSize
	if end > len(recipes) {
		end = len(recipes)
	}
	return recipes[start:end], total, nil
}

func (m *MockRecipeRepo) UpdateRecipeCore(recipeID uint, core models.RecipeCore) error {
	if m.UpdateRecipeCoreErr != nil {
		return m.UpdateRecipeCoreErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if r, ok := m.Recipes[recipeID]; ok {
		r.RecipeCore = core
		r.UserEdited = true
	}
	return nil
}

func (m *MockRecipeRepo) UpdateRecipeTitle(recipe *models.Recipe, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r, ok := m.Recipes[recipe.ID]; ok {
		r.Title = title
	}
	return nil
}

func (m *MockRecipeRepo) UpdateRecipeImageURL(recipeID uint, imageURL string) error {
	if m.UpdateRecipeImageURLErr != nil {
		return m.UpdateRecipeImageURLErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if r, ok := m.Recipes[recipeID]; ok {
		r.ImageURL = imageURL
	}
	return nil
}

func (m *MockRecipeRepo) UpdateRecipeVisibility(recipeID uint, public bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r, ok := m.Recipes[recipeID]; ok {
		r.Public = public
	}
	return nil
}

func (m *MockRecipeRepo) DeleteRecipe(recipeID uint) error {
	if m.DeleteRecipeErr != nil {
		return m.DeleteRecipeErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.Recipes, recipeID)
	return nil
}

func (m *MockRecipeRepo) FindTagByName(tagName string) (*models.Tag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if tag, ok := m.Tags[tagName]; ok {
		return tag, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *MockRecipeRepo) CreateTag(tag *models.Tag) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tag.ID = m.NextTagID
	m.NextTagID++
	m.Tags[tag.Name] = tag
	return nil
}

func (m *MockRecipeRepo) UpdateRecipeTagsAssociation(recipeID uint, newTags []models.Tag) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r, ok := m.Recipes[recipeID]; ok {
		tags := make([]*models.Tag, len(newTags))
		for i := range newTags {
			tags[i] = &newTags[i]
		}
		r.Tags = tags
	}
	return nil
}

// --- MockUserRepo ---

// MockUserRepo is an in-memory mock implementation of repository.UserRepo.
type MockUserRepo struct {
	mu     sync.Mutex
	Users  map[uint]*models.User
	Saved  map[uint][]uint // userID -> saved recipe IDs
	NextID uint

	CreateUserErr error
}

// NewMockUserRepo creates a new MockUserRepo with initialized maps.
func NewMockUserRepo() *MockUserRepo {
	return &MockUserRepo{
		Users:  make(map[uint]*models.User),
		Saved:  make(map[uint][]uint),
		NextID: 1,
	}
}

func (m *MockUserRepo) CreateUser(user *models.User) (*models.User, error) {
	if m.CreateUserErr != nil {
		return nil, m.CreateUserErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	user.ID = m.NextID
	m.NextID++
	m.Users[user.ID] = user
	return user, nil
}

func (m *MockUserRepo) GetUserByID(userID uint) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.Users[userID]
	if !ok {
		return nil, repository.NotFoundError{}
	}
	return u, nil
}

func (m *MockUserRepo) GetUserAuthByUsername(username string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.Users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, repository.NotFoundError{}
}

func (m *MockUserRepo) UpdateUserFirstName(userID uint, firstName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if u, ok := m.Users[userID]; ok {
		u.FirstName = firstName
	}
	return nil
}

func (m *MockUserRepo) UpdateUserEmail(userID uint, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if u, ok := m.Users[userID]; ok {
		u.Email = email
	}
	return nil
}

func (m *MockUserRepo) UpdateUserSettingsKeepScreenAwake(userID uint, keepScreenAwake bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if u, ok := m.Users[userID]; ok && u.Settings != nil {
		u.Settings.KeepScreenAwake = keepScreenAwake
	}
	return nil
}

func (m *MockUserRepo) UpdateUserSettingsVoiceEnabled(userID uint, voiceEnabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if u, ok := m.Users[userID]; ok && u.Settings != nil {
		u.Settings.VoiceEnabled = voiceEnabled
	}
	return nil
}

func (m *MockUserRepo) UpdatePersonalization(userID uint, updatedPersonalization *models.Personalization) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if u, ok := m.Users[userID]; ok {
		u.Personalization = updatedPersonalization
	}
	return nil
}

func (m *MockUserRepo) UsernameExists(username string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.Users {
		if u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockUserRepo) UpdateSubscription(sub *models.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if u, ok := m.Users[sub.UserID]; ok {
		u.Subscription = sub
	}
	return nil
}

func (m *MockUserRepo) IncrementSubscriptionUsage(userID uint, column string) error {
	return m.AddSubscriptionUsage(userID, column, 1)
}

func (m *MockUserRepo) AddSubscriptionUsage(userID uint, column string, amount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.Users[userID]
	if !ok || u.Subscription == nil {
		return repository.NotFoundError{}
	}
	switch column {
	case "ai_generations_used":
		u.Subscription.AIGenerationsUsed += amount
	case "voice_seconds_used":
		u.Subscription.VoiceSecondsUsed += amount
	default:
		return fmt.Errorf("unknown usage column: %s", column)
	}
	return nil
}

func (m *MockUserRepo) ResetSubscriptionUsage(userID uint, nextReset time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.Users[userID]
	if !ok || u.Subscription == nil {
		return repository.NotFoundError{}
	}
	u.Subscription.AIGenerationsUsed = 0
	u.Subscription.VoiceSecondsUsed = 0
	u.Subscription.MonthlyResetAt = nextReset
	return nil
}

func (m *MockUserRepo) SaveRecipeForUser(userID, recipeID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range m.Saved[userID] {
		if id == recipeID {
			return nil
		}
	}
	m.Saved[userID] = append(m.Saved[userID], recipeID)
	return nil
}

func (m *MockUserRepo) UnsaveRecipeForUser(userID, recipeID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := m.Saved[userID]
	for i, id := range ids {
		if id == recipeID {
			m.Saved[userID] = append(ids[:i], ids[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *MockUserRepo) GetSavedRecipes(userID uint) ([]models.Recipe, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	recipes := make([]models.Recipe, 0, len(m.Saved[userID]))
	for _, id := range m.Saved[userID] {
		var r models.Recipe
		r.ID = id
		recipes = append(recipes, r)
	}
	return recipes, nil
}

// --- MockCookbookRepo ---

// MockCookbookRepo is an in-memory mock implementation of repository.CookbookRepo.
type MockCookbookRepo struct {
	mu        sync.Mutex
	Cookbooks map[uint]*models.Cookbook
	NextID    uint
}

// NewMockCookbookRepo creates a new MockCookbookRepo with initialized maps.
func NewMockCookbookRepo() *MockCookbookRepo {
	return &MockCookbookRepo{
		Cookbooks: make(map[uint]*models.Cookbook),
		NextID:    1,
	}
}

func (m *MockCookbookRepo) CreateCookbook(cookbook *models.Cookbook) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cookbook.ID = m.NextID
	m.NextID++
	m.Cookbooks[cookbook.ID] = cookbook
	return nil
}

func (m *MockCookbookRepo) GetCookbookByID(cookbookID uint) (*models.Cookbook, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.Cookbooks[cookbookID]
	if !ok {
		return nil, repository.NotFoundError{}
	}
	return c, nil
}

func (m *MockCookbookRepo) GetCookbooksByOwner(ownerID uint) ([]models.Cookbook, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var cookbooks []models.Cookbook
	for _, c := range m.Cookbooks {
		if c.OwnerID == ownerID {
			cookbooks = append(cookbooks, *c)
		}
	}
	sort.Slice(cookbooks, func(i, j int) bool { return cookbooks[i].ID < cookbooks[j].ID })
	return cookbooks, nil
}

func (m *MockCookbookRepo) UpdateCookbook(cookbook *models.Cookbook) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Cookbooks[cookbook.ID] = cookbook
	return nil
}

func (m *MockCookbookRepo) DeleteCookbook(cookbookID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.Cookbooks, cookbookID)
	return nil
}

func (m *MockCookbookRepo) AddEntry(entry *models.CookbookEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.Cookbooks[entry.CookbookID]
	if !ok {
		return repository.NotFoundError{}
	}
	c.Entries = append(c.Entries, *entry)
	return nil
}

func (m *MockCookbookRepo) RemoveEntry(cookbookID, recipeID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.Cookbooks[cookbookID]
	if !ok {
		return repository.NotFoundError{}
	}
	for i, e := range c.Entries {
		if e.RecipeID == recipeID {
			c.Entries = append(c.Entries[:i], c.Entries[i+1:]...)
			return nil
		}
	}
	return repository.NotFoundError{}
}

func (m *MockCookbookRepo) EntryExists(cookbookID, recipeID uint) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.Cookbooks[cookbookID]
	if !ok {
		return false, nil
	}
	for _, e := range c.Entries {
		if e.RecipeID == recipeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockCookbookRepo) CountEntries(cookbookID uint) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.Cookbooks[cookbookID]; ok {
		return int64(len(c.Entries)), nil
	}
	return 0, nil
}

// --- MockMealPlanRepo ---

// MockMealPlanRepo is an in-memory mock implementation of repository.MealPlanRepo.
type MockMealPlanRepo struct {
	mu     sync.Mutex
	Plans  map[uint]*models.MealPlan
	NextID uint
}

// NewMockMealPlanRepo creates a new MockMealPlanRepo with initialized maps.
func NewMockMealPlanRepo() *MockMealPlanRepo {
	return &MockMealPlanRepo{
		Plans:  make(map[uint]*models.MealPlan),
		NextID: 1,
	}
}

func (m *MockMealPlanRepo) CreateMealPlan(plan *models.MealPlan) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	plan.ID = m.NextID
	m.NextID++
	m.Plans[plan.ID] = plan
	return nil
}

func (m *MockMealPlanRepo) GetMealPlanByID(planID uint) (*models.MealPlan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.Plans[planID]
	if !ok {
		return nil, repository.NotFoundError{}
	}
	return p, nil
}

func (m *MockMealPlanRepo) GetMealPlansByOwner(ownerID uint, page, pageSize int) ([]models.MealPlan, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var plans []models.MealPlan
	for _, p := range m.Plans {
		if p.OwnerID == ownerID {
			plans = append(plans, *p)
		}
	}
	sort.Slice(plans, func(i, j int) bool { return plans[i].ID > plans[j].ID })
	total := int64(len(plans))

	start := (page - 1) * pageSize
	if start >= len(plans) {
		return []models.MealPlan{}, total, nil
	}
	end := start + pageSize
	if end > len(plans) {
		end = len(plans)
	}
	return plans[start:end], total, nil
}

func (m *MockMealPlanRepo) UpdateMealPlanNotes(planID uint, notes string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p, ok := m.Plans[planID]; ok {
		p.Notes = notes
	}
	return nil
}

func (m *MockMealPlanRepo) DeleteMealPlan(planID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.Plans, planID)
	return nil
}

func (m *MockMealPlanRepo) UpsertEntry(entry *models.MealPlanEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.Plans[entry.PlanID]
	if !ok {
		return repository.NotFoundError{}
	}
	for i, e := range p.Entries {
		if e.Day == entry.Day && e.Slot == entry.Slot {
			p.Entries[i] = *entry
			return nil
		}
	}
	p.Entries = append(p.Entries, *entry)
	return nil
}

func (m *MockMealPlanRepo) RemoveEntry(planID uint, day int, slot models.MealSlot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.Plans[planID]
	if !ok {
		return repository.NotFoundError{}
	}
	for i, e := range p.Entries {
		if e.Day == day && e.Slot == slot {
			p.Entries = append(p.Entries[:i], p.Entries[i+1:]...)
			return nil
		}
	}
	return repository.NotFoundError{}
}

// --- MockShoppingListRepo ---

// MockShoppingListRepo is an in-memory mock implementation of repository.ShoppingListRepo.
type MockShoppingListRepo struct {
	mu     sync.Mutex
	Lists  map[uint]*models.ShoppingList
	NextID uint
}

// NewMockShoppingListRepo creates a new MockShoppingListRepo with initialized maps.
func NewMockShoppingListRepo() *MockShoppingListRepo {
	return &MockShoppingListRepo{
		Lists:  make(map[uint]*models.ShoppingList),
		NextID: 1,
	}
}

func (m *MockShoppingListRepo) CreateShoppingList(list *models.ShoppingList) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	list.ID = m.NextID
	m.NextID++
	m.Lists[list.ID] = list
	return nil
}

func (m *MockShoppingListRepo) GetShoppingListByID(listID uint) (*models.ShoppingList, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.Lists[listID]
	if !ok {
		return nil, repository.NotFoundError{}
	}
	return l, nil
}

func (m *MockShoppingListRepo) GetShoppingListsByOwner(ownerID uint) ([]models.ShoppingList, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var lists []models.ShoppingList
	for _, l := range m.Lists {
		if l.OwnerID == ownerID {
			lists = append(lists, *l)
		}
	}
	sort.Slice(lists, func(i, j int) bool { return lists[i].ID > lists[j].ID })
	return lists, nil
}

func (m *MockShoppingListRepo) UpdateShoppingListItems(listID uint, items models.ShoppingItems) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if l, ok := m.Lists[listID]; ok {
		l.Items = items
	}
	return nil
}

func (m *MockShoppingListRepo) DeleteShoppingList(listID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.Lists, listID)
	return nil
}

// Compile-time interface checks.
var _ ai.TextProvider = (*MockTextProvider)(nil)
var _ ai.VisionProvider = (*MockVisionProvider)(nil)
var _ ai.ImageProvider = (*MockImageProvider)(nil)
var _ ai.SpeechProvider = (*MockSpeechProvider)(nil)
var _ repository.RecipeRepo = (*MockRecipeRepo)(nil)
var _ repository.UserRepo = (*MockUserRepo)(nil)
var _ repository.CookbookRepo = (*MockCookbookRepo)(nil)
var _ repository.MealPlanRepo = (*MockMealPlanRepo)(nil)
var _ repository.ShoppingListRepo = (*MockShoppingListRepo)(nil)

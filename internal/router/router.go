package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/mise-app/mise-api/internal/ai"
	"github.com/mise-app/mise-api/internal/cache"
	"github.com/mise-app/mise-api/internal/config"
	"github.com/mise-app/mise-api/internal/dialogue/livews"
	"github.com/mise-app/mise-api/internal/handlers"
	"github.com/mise-app/mise-api/internal/logger"
	"github.com/mise-app/mise-api/internal/middleware"
	"github.com/mise-app/mise-api/internal/repository"
	"github.com/mise-app/mise-api/internal/service"
	"github.com/mise-app/mise-api/internal/ws"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	// Recently-viewed cache bounds.
	recentCacheUsers   = 4096
	recentCachePerUser = 20

	// Per-IP limits for the unauthenticated auth endpoints.
	authRequestsPerSecond = 5
	authRequestBurst      = 10
)

// SetupRouter wires repositories, services and handlers into the Gin
// router. The returned hub owns the live cook-mode sockets so main can
// close them on shutdown.
func SetupRouter(cfg *config.Config, database *gorm.DB) (*gin.Engine, *ws.Hub) {
	r := gin.Default()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowCredentials = true
	corsConfig.AllowOrigins = []string{
		"https://mise.app",
		"https://www.mise.app",
		"https://api.mise.app",
	}
	r.Use(cors.New(corsConfig))

	// Request ID middleware for request correlation
	r.Use(logger.RequestIDMiddleware())

	// Ping route for testing
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})

	// Repositories
	userRepo := repository.NewUserRepository(database)
	recipeRepo := repository.NewRecipeRepository(database)
	mealPlanRepo := repository.NewMealPlanRepository(database)
	shoppingRepo := repository.NewShoppingListRepository(database)
	cookbookRepo := repository.NewCookbookRepository(database)

	// AI providers
	textProvider := ai.NewAnthropicProvider(cfg.EnvVars.AnthropicAPIKey, cfg.Prompts)
	previewProvider := ai.NewAnthropicLightProvider(cfg.EnvVars.AnthropicAPIKey, cfg.Prompts)
	imageProvider := ai.NewDALLEProvider(cfg.EnvVars.OpenAIAPIKey)
	speechProvider := ai.NewWhisperProvider(cfg.EnvVars.OpenAIAPIKey)

	recent, err := cache.NewRecentRecipes(recentCacheUsers, recentCachePerUser)
	if err != nil {
		logger.Get().Fatal("failed to build recent-recipes cache", zap.Error(err))
	}

	// Services
	userService := service.NewUserService(cfg, userRepo, recipeRepo)
	subscriptionService := service.NewSubscriptionService(cfg, userRepo)
	recipeService := service.NewRecipeService(cfg, recipeRepo, recent, imageProvider)
	importService := service.NewImportService(cfg, recipeRepo, recipeService, textProvider, textProvider, previewProvider)
	assistantService := service.NewAssistantService(cfg, recipeRepo, recipeService, textProvider)
	voiceService := service.NewVoiceService(cfg, textProvider, speechProvider)
	mealPlanService := service.NewMealPlanService(mealPlanRepo, recipeRepo)
	shoppingService := service.NewShoppingService(shoppingRepo, mealPlanRepo, recipeRepo, textProvider)
	cookbookService := service.NewCookbookService(cookbookRepo, recipeRepo)

	// Handlers
	userHandler := handlers.NewUserHandler(userService)
	recipeHandler := handlers.NewRecipeHandler(recipeService, subscriptionService)
	importHandler := handlers.NewImportHandler(importService, subscriptionService)
	assistantHandler := handlers.NewAssistantHandler(assistantService, subscriptionService)
	voiceHandler := handlers.NewVoiceHandler(voiceService)
	mealPlanHandler := handlers.NewMealPlanHandler(mealPlanService)
	shoppingHandler := handlers.NewShoppingHandler(shoppingService)
	cookbookHandler := handlers.NewCookbookHandler(cookbookService)
	subscriptionHandler := handlers.NewSubscriptionHandler(subscriptionService)

	// Group for API routes that don't require token verification.
	// Auth endpoints are rate limited per IP.
	apiPublic := r.Group("/v1")
	if cfg.EnvVars.IDHeader != "" {
		apiPublic.Use(middleware.CheckIDHeader(cfg.EnvVars.IDHeader))
	}
	apiPublic.Use(middleware.RateLimitByIP(authRequestsPerSecond, authRequestBurst, 10*time.Minute, time.Hour))
	{
		// Create a new user
		apiPublic.POST("/users", userHandler.CreateUser)
		// Login a user
		apiPublic.POST("/auth/login", userHandler.LoginUser)
		// Refresh an access token
		apiPublic.POST("/auth/refresh", userHandler.RefreshToken)
	}

	// Group for API routes that require token verification
	apiProtected := r.Group("/v1")
	if cfg.EnvVars.IDHeader != "" {
		apiProtected.Use(middleware.CheckIDHeader(cfg.EnvVars.IDHeader))
	}
	apiProtected.Use(middleware.VerifyTokenMiddleware(cfg), middleware.AttachUserToContext(userService))
	{
		// User-related routes
		apiProtected.GET("/users/verify", userHandler.VerifyToken)
		apiProtected.GET("/users/me", userHandler.GetCurrentUser)
		apiProtected.PUT("/users/me", userHandler.UpdateUser)
		apiProtected.GET("/users/me/settings", userHandler.GetUserSettings)
		apiProtected.PATCH("/users/me/settings", userHandler.UpdateSettings)
		apiProtected.PATCH("/users/me/personalization", userHandler.UpdatePersonalization)
		apiProtected.GET("/users/saved-recipes", userHandler.GetSavedRecipes)
		apiProtected.POST("/users/saved-recipes/:recipe_id", userHandler.SaveRecipe)
		apiProtected.DELETE("/users/saved-recipes/:recipe_id", userHandler.UnsaveRecipe)

		// Recipe-related routes
		apiProtected.GET("/recipes", recipeHandler.ListRecipes)
		apiProtected.GET("/recipes/search", recipeHandler.SearchRecipes)
		apiProtected.GET("/recipes/recent", recipeHandler.GetRecentRecipes)
		apiProtected.GET("/recipes/:recipe_id", recipeHandler.GetRecipe)
		apiProtected.PUT("/recipes/:recipe_id", recipeHandler.UpdateRecipe)
		apiProtected.PATCH("/recipes/:recipe_id/visibility", recipeHandler.SetVisibility)
		apiProtected.DELETE("/recipes/:recipe_id", recipeHandler.DeleteRecipe)
		apiProtected.POST("/recipes/:recipe_id/cover-image", recipeHandler.UploadCoverImage)
		apiProtected.POST("/recipes/:recipe_id/cover-image/generate", recipeHandler.GenerateCoverImage)

		// Recipe import routes
		apiProtected.POST("/recipes/import/url", importHandler.ImportFromURL)
		apiProtected.POST("/recipes/import/photo", importHandler.ImportFromPhoto)
		apiProtected.POST("/recipes/import/text", importHandler.ImportFromText)
		apiProtected.POST("/recipes/import/manual", importHandler.ImportManual)
		// Cheap extraction for a pre-import preview
		apiProtected.POST("/recipes/preview/url", importHandler.PreviewFromURL)

		// Assistant routes (chat generation, cooking Q&A, voice notes)
		apiProtected.POST("/assistant/generate", assistantHandler.GenerateRecipe)
		apiProtected.POST("/assistant/ask", assistantHandler.AskQuestion)
		apiProtected.POST("/voice/notes", voiceHandler.ProcessVoiceNote)

		// Meal plan routes
		apiProtected.POST("/meal-plans", mealPlanHandler.CreateMealPlan)
		apiProtected.GET("/meal-plans", mealPlanHandler.ListMealPlans)
		apiProtected.GET("/meal-plans/:plan_id", mealPlanHandler.GetMealPlan)
		apiProtected.PATCH("/meal-plans/:plan_id/notes", mealPlanHandler.UpdateNotes)
		apiProtected.DELETE("/meal-plans/:plan_id", mealPlanHandler.DeleteMealPlan)
		apiProtected.PUT("/meal-plans/:plan_id/entries", mealPlanHandler.SetEntry)
		apiProtected.DELETE("/meal-plans/:plan_id/entries", mealPlanHandler.RemoveEntry)
		apiProtected.POST("/meal-plans/:plan_id/shopping-list", shoppingHandler.GenerateFromMealPlan)

		// Shopping list routes
		apiProtected.GET("/shopping-lists", shoppingHandler.ListShoppingLists)
		apiProtected.GET("/shopping-lists/:list_id", shoppingHandler.GetShoppingList)
		apiProtected.POST("/shopping-lists/:list_id/regenerate", shoppingHandler.Regenerate)
		apiProtected.POST("/shopping-lists/:list_id/items", shoppingHandler.AddManualItem)
		apiProtected.PATCH("/shopping-lists/:list_id/items/:index", shoppingHandler.SetItemChecked)
		apiProtected.DELETE("/shopping-lists/:list_id/items/:index", shoppingHandler.RemoveItem)
		apiProtected.DELETE("/shopping-lists/:list_id", shoppingHandler.DeleteShoppingList)

		// Cookbook routes
		apiProtected.POST("/cookbooks", cookbookHandler.CreateCookbook)
		apiProtected.GET("/cookbooks", cookbookHandler.ListCookbooks)
		apiProtected.GET("/cookbooks/:cookbook_id/recipes", cookbookHandler.GetCookbookRecipes)
		apiProtected.PATCH("/cookbooks/:cookbook_id", cookbookHandler.RenameCookbook)
		apiProtected.DELETE("/cookbooks/:cookbook_id", cookbookHandler.DeleteCookbook)
		apiProtected.POST("/cookbooks/:cookbook_id/recipes/:recipe_id", cookbookHandler.AddRecipe)
		apiProtected.DELETE("/cookbooks/:cookbook_id/recipes/:recipe_id", cookbookHandler.RemoveRecipe)

		// Subscription routes
		apiProtected.GET("/subscription", subscriptionHandler.GetSubscription)
		apiProtected.POST("/subscription/upgrade", subscriptionHandler.UpgradeSubscription)
	}

	// Cook-mode WebSocket (authenticated via query param token)
	hub := ws.NewHub()
	dialogueClient := livews.NewClient(cfg.EnvVars.DialogueWSURL)
	cookHandler := ws.NewCookHandler(hub, cfg, dialogueClient, userRepo, recipeService, assistantService, voiceService, subscriptionService)
	r.GET("/v1/ws/cook/:recipe_id", cookHandler.HandleCookSession)

	return r, hub
}

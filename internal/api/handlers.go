package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pageza/nutricalc/backend/internal/middleware"
	"github.com/pageza/nutricalc/backend/internal/nutrition"
	"github.com/pageza/nutricalc/backend/internal/service"
)

// Deps are the collaborators of the HTTP handlers. Auth, Drafts, Export and
// SearchLimiter are optional; their routes are skipped or unguarded when nil.
type Deps struct {
	Auth          service.IAuthService
	Meal          service.IMealService
	Catalog       service.CatalogStore
	Drafts        service.IDraftService
	Search        service.ISearchService
	Export        service.IExportService
	Hub           *EventHub
	SearchLimiter *middleware.RateLimiter
}

// HealthCheck returns the health status of the API
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"message": "NutriCalc API is running",
		"version": "v1.0.0",
	})
}

// RegisterRoutes registers all v1 routes on router
func RegisterRoutes(router *gin.RouterGroup, d Deps) {
	NewCatalogHandler(d.Catalog).RegisterRoutes(router)
	NewMealHandler(d.Meal).RegisterRoutes(router)
	NewPortionHandler(d.Meal, d.Catalog, d.Export).RegisterRoutes(router)

	if d.Drafts != nil {
		NewDraftHandler(d.Meal, d.Drafts).RegisterRoutes(router)
	} else {
		log.Println("[api] drafts disabled: redis is not configured")
	}

	if d.Search != nil {
		NewSearchHandler(d.Search, d.SearchLimiter).RegisterRoutes(router)
	}

	if d.Hub != nil {
		router.GET("/ws", WSHandler(d.Hub))
	}
}

// bindJSON decodes the request body, recording a user error on failure
func bindJSON(c *gin.Context, op string, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		_ = c.Error(nutrition.UserErrorf(op, "invalid request body: %w", err))
		return false
	}
	return true
}

// respondView renders the working meal with status
func respondView(c *gin.Context, meal service.IMealService, status int) {
	view, err := meal.View(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(status, view)
}

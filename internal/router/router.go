package router

import (
	"log"

	"github.com/gin-gonic/gin"

	"github.com/pageza/nutricalc/backend/config"
	"github.com/pageza/nutricalc/backend/internal/api"
	"github.com/pageza/nutricalc/backend/internal/middleware"
)

// SetupRouter configures the application routes. The v1 group requires a
// bearer token when cfg carries a JWT secret.
func SetupRouter(cfg *config.Config, deps api.Deps) *gin.Engine {
	router := gin.Default()

	router.Use(middleware.CORS(nil))
	router.Use(middleware.ErrorHandler())

	router.GET("/health", api.HealthCheck)
	router.GET("/api/health", api.HealthCheck)

	if cfg.JWTSecret != "" && deps.Auth != nil {
		api.NewAuthHandler(deps.Auth).RegisterRoutes(router.Group("/api/v1"))
	}

	v1 := router.Group("/api/v1")
	if cfg.JWTSecret != "" {
		v1.Use(middleware.AuthMiddleware(middleware.NewTokenService(cfg.JWTSecret)))
	} else {
		log.Println("[router] JWT_SECRET is empty, API authentication is disabled")
	}
	api.RegisterRoutes(v1, deps)

	return router
}

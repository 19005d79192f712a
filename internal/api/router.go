package api

import (
	"database/sql"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/espcontrol/espcontrol-backend-go/internal/api/handlers"
	"github.com/espcontrol/espcontrol-backend-go/internal/api/middleware"
	"github.com/espcontrol/espcontrol-backend-go/internal/config"
	"github.com/espcontrol/espcontrol-backend-go/internal/core/auth"
	"github.com/espcontrol/espcontrol-backend-go/internal/core/devices"
	"github.com/espcontrol/espcontrol-backend-go/internal/core/integrations"
	"github.com/espcontrol/espcontrol-backend-go/internal/core/scheduler"
	"github.com/espcontrol/espcontrol-backend-go/internal/database"
	"github.com/espcontrol/espcontrol-backend-go/internal/websocket"
)

// NewRouter creates and configures the main HTTP router
func NewRouter(cfg *config.Config, repos *database.Repositories, db *sql.DB, logger *logrus.Logger, authService *auth.Service, store *devices.StateStore, evaluator *scheduler.Evaluator, integrationService *integrations.Service, wsHub *websocket.Hub) *gin.Engine {
	if cfg.Server.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(middleware.ErrorHandlingMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.MetricsMiddleware())

	rateLimiter := middleware.NewRateLimiter(100, 200) // 100 requests/sec, burst 200
	router.Use(rateLimiter.RateLimitMiddleware())

	h := handlers.NewHandlers(cfg, repos, db, logger, authService, store, evaluator, integrationService, wsHub)

	// Public routes
	router.GET("/health", h.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws", h.HandleWebSocket)

	api := router.Group("/api/v1")
	{
		// Hardware polling endpoint. The firmware carries no credentials,
		// so this stays public and leaks nothing but ON/OFF.
		api.GET("/poll", h.Poll)

		authRoutes := api.Group("/auth")
		{
			authRoutes.POST("/login", h.Login)
			authRoutes.POST("/logout", h.Logout)
		}

		protected := api.Group("/")
		protected.Use(middleware.AuthMiddleware(authService))
		{
			protected.POST("/auth/validate", h.ValidateSession)
			protected.PUT("/auth/password", h.UpdatePassword)

			deviceRoutes := protected.Group("/devices")
			{
				deviceRoutes.GET("", h.ListDevices)
				deviceRoutes.POST("", h.CreateDevice)
				deviceRoutes.DELETE("/:id", h.DeleteDevice)
				deviceRoutes.GET("/:id/state", h.GetDeviceState)
				deviceRoutes.POST("/:id/state", h.SetDeviceState)
				deviceRoutes.GET("/:id/schedule", h.GetSchedule)
				deviceRoutes.PUT("/:id/schedule", h.UpdateSchedule)
			}

			integrationRoutes := protected.Group("/integrations")
			{
				integrationRoutes.GET("", h.ListIntegrations)
				integrationRoutes.POST("", h.CreateIntegration)
				integrationRoutes.PUT("/:id", h.UpdateIntegration)
				integrationRoutes.PATCH("/:id/active", h.SetIntegrationActive)
				integrationRoutes.DELETE("/:id", h.DeleteIntegration)
				integrationRoutes.GET("/:id/data", h.GetIntegrationData)
			}

			triggerRoutes := protected.Group("/triggers")
			{
				triggerRoutes.GET("", h.ListTriggers)
				triggerRoutes.POST("", h.CreateTrigger)
				triggerRoutes.PUT("/:id", h.UpdateTrigger)
				triggerRoutes.DELETE("/:id", h.DeleteTrigger)
			}
		}
	}

	return router
}

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stepflow/internal/api/handlers"
	"stepflow/internal/api/middleware"
	"stepflow/pkg/auth"
)

type Options struct {
	Signer        *auth.Signer
	ScreenshotDir string
}

func SetupRoutes(h *handlers.Handler, opts Options) *gin.Engine {
	router := gin.New()

	// Global middleware
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		v1.POST("/auth/login", h.Login)
		v1.GET("/health", h.HealthCheck)

		protected := v1.Group("")
		protected.Use(middleware.AuthMiddleware(opts.Signer))
		{
			// websocket clients pass the token as ?token=
			protected.GET("/ws/progress", h.ProgressWebSocket)

			scenarios := protected.Group("/scenarios")
			{
				scenarios.GET("", h.GetScenarios)
				scenarios.GET("/:id", h.GetScenario)
				scenarios.POST("/:id/run", h.RunScenario)
			}

			batches := protected.Group("/batches")
			{
				batches.POST("", h.StartBatch)
				batches.POST("/stop", h.StopBatch)
				batches.GET("/status", h.BatchStatus)
			}

			schedules := protected.Group("/schedules")
			{
				schedules.GET("", h.GetSchedules)
				schedules.POST("", h.CreateSchedule)
				schedules.DELETE("/:id", h.DeleteSchedule)
			}
		}

		// screenshots are grouped in daily folders
		if opts.ScreenshotDir != "" {
			v1.Static("/screenshots", opts.ScreenshotDir)
		}
	}

	return router
}

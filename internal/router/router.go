package router

import (
	"time"

	"taskify/internal/handlers"
	"taskify/internal/middleware"
	"taskify/internal/monitoring"
	"taskify/internal/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Dependencies holds everything the HTTP surface needs. RateLimiter and
// Monitor are optional.
type Dependencies struct {
	TaskService    services.TaskService
	AuthService    services.AuthService
	RateLimiter    *middleware.RateLimiter
	Monitor        *monitoring.Monitor
	AllowedOrigins []string
	RequestLogging bool
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

func NewRouter(deps Dependencies) *gin.Engine {
	r := gin.New()
	if deps.RequestLogging {
		r.Use(gin.Logger())
	}
	// Metrics wrap recovery so a recovered panic is counted as its 500.
	if deps.Monitor != nil {
		r.Use(deps.Monitor.MetricsMiddleware())
	}
	r.Use(middleware.RecoveryWithLog())
	r.Use(cors.New(corsConfig(deps.AllowedOrigins)))

	if deps.Monitor != nil {
		r.GET("/health", deps.Monitor.HealthHandler())
		r.GET("/ready", deps.Monitor.ReadinessHandler())
		r.GET("/live", deps.Monitor.LivenessHandler())
		r.GET("/metrics", deps.Monitor.MetricsHandler())
	}

	api := r.Group("/api")
	if deps.RateLimiter != nil {
		api.Use(deps.RateLimiter.Middleware())
	}

	authHandler := handlers.NewAuthHandler(deps.AuthService)
	requireAuth := middleware.AuthMiddleware(deps.AuthService)

	auth := api.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", authHandler.Logout)
		auth.GET("/me", requireAuth, authHandler.Me)
	}

	taskHandler := handlers.NewTaskHandler(deps.TaskService)

	tasks := api.Group("/tasks")
	tasks.Use(requireAuth)
	{
		tasks.GET("", taskHandler.ListTasks)
		tasks.POST("", taskHandler.CreateTask)
		tasks.GET("/summary", taskHandler.Summary)
		tasks.PUT("/:id", taskHandler.UpdateTask)
		tasks.DELETE("/:id", taskHandler.DeleteTask)
		tasks.PATCH("/:id/toggle", taskHandler.ToggleTask)
	}

	return r
}

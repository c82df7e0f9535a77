package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/quitline/quitline/config"
	"github.com/quitline/quitline/controllers"
	"github.com/quitline/quitline/middleware"
	"github.com/quitline/quitline/utils"
)

// Controllers bundles the wired controllers the router mounts.
type Controllers struct {
	Progress    *controllers.ProgressController
	Plans       *controllers.PlanController
	Leaderboard *controllers.LeaderboardController
}

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(c Controllers) *gin.Engine {
	// Load config and set Gin mode from configuration
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Replace default console logger with file-based zap logger
	ginLogPath := cfg.GinPath
	// Use application log level as reference
	gl, err := utils.NewRollingFileLogger(ginLogPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err == nil {
		r.Use(utils.Ginzap(gl, time.RFC3339, true))
		r.Use(utils.RecoveryWithZap(gl, false))
	} else {
		// fallback to default recovery if logger failed to init
		r.Use(gin.Recovery())
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}

	r.Use(cors.New(corsCfg))

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	api := r.Group("/api/v1")

	// Public board
	api.GET("/leaderboard", c.Leaderboard.Top)

	protected := api.Group("")
	protected.Use(middleware.AuthRequired(), middleware.RateLimitMiddleware())

	protected.GET("/plans", c.Plans.ListPlans)
	protected.POST("/plans/:planId/records", c.Progress.CreateRecord)
	protected.GET("/plans/:planId/records", c.Progress.ListRecords)
	protected.GET("/plans/:planId/streak", c.Progress.GetStreak)
	protected.GET("/plans/:planId", c.Plans.GetPlan)
	protected.GET("/plans/:planId/chart", c.Plans.GetChart)
	protected.GET("/records/:id", c.Progress.GetRecord)
	protected.PUT("/records/:id", c.Progress.UpdateRecord)
	protected.DELETE("/records/:id", c.Progress.DeleteRecord)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "route not found")
	})

	return r
}

package main

import (
	"time"

	"github.com/quitline/quitline/config"
	"github.com/quitline/quitline/controllers"
	"github.com/quitline/quitline/models"
	"github.com/quitline/quitline/routes"
	"github.com/quitline/quitline/services"
	"github.com/quitline/quitline/store"
	"github.com/quitline/quitline/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}

	db := config.InitDatabase(&models.User{}, &models.QuitPlan{}, &models.PlanStage{}, &models.ProgressRecord{})

	cache := utils.NewRedisCacheStore(utils.GetRedis())
	cacheTTL := time.Duration(cfg.CacheTTLSeconds) * time.Second

	recordStore := store.NewGormRecordStore(db)
	planStore := store.NewGormPlanStore(db)
	leaderboard := services.NewRedisLeaderboard(utils.GetRedis())

	dispatcher := services.NewDispatcher(services.NewCacheInvalidators(cache)...)

	progressService := services.NewProgressService(services.ProgressServiceOpts{
		Records:      recordStore,
		Plans:        planStore,
		Cache:        cache,
		Leaderboard:  leaderboard,
		Badges:       services.LogBadgeNotifier{},
		Dispatcher:   dispatcher,
		CacheTTL:     cacheTTL,
		HistoryLimit: cfg.StreakHistoryLimit,
	})
	planService := services.NewPlanService(planStore, cache, cacheTTL)
	leaderboardService := services.NewLeaderboardService(leaderboard, cache, cacheTTL, cfg.LeaderboardSize)

	r := routes.SetupRouter(routes.Controllers{
		Progress:    controllers.NewProgressController(progressService),
		Plans:       controllers.NewPlanController(planService),
		Leaderboard: controllers.NewLeaderboardController(leaderboardService),
	})

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}

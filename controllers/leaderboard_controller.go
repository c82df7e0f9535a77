package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/quitline/quitline/services"
	"github.com/quitline/quitline/utils"
)

// LeaderboardController exposes the public top-streak board.
type LeaderboardController struct {
	board *services.LeaderboardService
}

// NewLeaderboardController creates a new LeaderboardController instance.
func NewLeaderboardController(board *services.LeaderboardService) *LeaderboardController {
	return &LeaderboardController{board: board}
}

// Top returns the highest current streaks across all users.
func (l *LeaderboardController) Top(ctx *gin.Context) {
	entries, err := l.board.Top(ctx.Request.Context())
	if err != nil {
		respondError(ctx, err)
		return
	}

	utils.Success(ctx, gin.H{"leaderboard": entries})
}

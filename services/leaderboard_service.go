package services

import (
	"context"
	"time"

	"github.com/quitline/quitline/utils"
)

// LeaderboardService serves the cached top-N streak board. The cached page
// sits in the streak-leaderboard namespace cleared by the record cascade.
type LeaderboardService struct {
	board    LeaderboardStore
	cache    utils.CacheStore
	cacheTTL time.Duration
	size     int
}

func NewLeaderboardService(board LeaderboardStore, cache utils.CacheStore, ttl time.Duration, size int) *LeaderboardService {
	if ttl <= 0 {
		ttl = utils.DefaultCacheTTL
	}
	if size <= 0 {
		size = 10
	}
	return &LeaderboardService{board: board, cache: cache, cacheTTL: ttl, size: size}
}

// Top returns the configured number of highest current streaks.
func (s *LeaderboardService) Top(ctx context.Context) ([]LeaderboardEntry, error) {
	entries, err := utils.CacheFetch(ctx, s.cache, LeaderboardTopKey(s.size), s.cacheTTL, func() ([]LeaderboardEntry, error) {
		return s.board.TopStreaks(ctx, s.size)
	})
	if err != nil {
		return nil, NewInternal(50060, "failed to load leaderboard")
	}
	return entries, nil
}

package services

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quitline/quitline/utils"
)

const leaderboardZSet = "leaderboard:streaks"

// LeaderboardEntry is one row of the public top-streak board.
type LeaderboardEntry struct {
	UserID uint `json:"user_id"`
	Streak int  `json:"streak"`
}

// LeaderboardStore keeps the per-user streak read model consumed by
// gamification. Updates are best-effort; the record store stays the source of
// truth and the streak can always be recomputed from it.
type LeaderboardStore interface {
	GetUserStreak(ctx context.Context, userID uint) (int, error)
	UpdateUserStreak(ctx context.Context, userID uint, streak int) error
	TopStreaks(ctx context.Context, n int) ([]LeaderboardEntry, error)
}

// BadgeNotifier is told about streak changes so badge awards can react.
// Fire-and-forget: implementations must not fail the caller.
type BadgeNotifier interface {
	OnStreakUpdate(userID uint, streak int)
}

// RedisLeaderboard backs the leaderboard with a Redis sorted set.
type RedisLeaderboard struct {
	rc *redis.Client
}

// NewRedisLeaderboard creates a leaderboard store over the given client.
func NewRedisLeaderboard(rc *redis.Client) *RedisLeaderboard {
	return &RedisLeaderboard{rc: rc}
}

func (l *RedisLeaderboard) GetUserStreak(ctx context.Context, userID uint) (int, error) {
	if l.rc == nil {
		return 0, nil
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	score, err := l.rc.ZScore(ctx, leaderboardZSet, strconv.FormatUint(uint64(userID), 10)).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return int(score), nil
}

func (l *RedisLeaderboard) UpdateUserStreak(ctx context.Context, userID uint, streak int) error {
	if l.rc == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return l.rc.ZAdd(ctx, leaderboardZSet, redis.Z{
		Score:  float64(streak),
		Member: strconv.FormatUint(uint64(userID), 10),
	}).Err()
}

func (l *RedisLeaderboard) TopStreaks(ctx context.Context, n int) ([]LeaderboardEntry, error) {
	if l.rc == nil {
		return nil, nil
	}
	if n < 1 {
		n = 10
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	zs, err := l.rc.ZRevRangeWithScores(ctx, leaderboardZSet, 0, int64(n-1)).Result()
	if err != nil {
		return nil, err
	}
	entries := make([]LeaderboardEntry, 0, len(zs))
	for _, z := range zs {
		member, _ := z.Member.(string)
		id, perr := strconv.ParseUint(member, 10, 64)
		if perr != nil {
			continue
		}
		entries = append(entries, LeaderboardEntry{UserID: uint(id), Streak: int(z.Score)})
	}
	return entries, nil
}

// LogBadgeNotifier satisfies BadgeNotifier by logging milestone streaks; the
// real badge service subscribes out of process.
type LogBadgeNotifier struct{}

var badgeMilestones = []int{3, 7, 14, 30, 90, 365}

func (LogBadgeNotifier) OnStreakUpdate(userID uint, streak int) {
	if utils.Sugar == nil {
		return
	}
	for _, m := range badgeMilestones {
		if streak == m {
			utils.Sugar.Infof("badge milestone reached user=%d streak=%d", userID, streak)
			return
		}
	}
	utils.Sugar.Debugf("streak update user=%d streak=%d", userID, streak)
}

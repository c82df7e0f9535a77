package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/quitline/quitline/utils"
)

// Cache domain prefixes. Each domain owns its namespace; the cascade reaches
// into dependent domains only through their registered invalidators.
const (
	CachePrefixProgress    = "progress"
	CachePrefixPlan        = "plan"
	CachePrefixChart       = "chart"
	CachePrefixStreak      = "streak"
	CachePrefixLeaderboard = "leaderboard"
)

// RecordChange is published after every successful record mutation. Consumers
// invalidate their own namespaces; none of them can fail the mutation.
type RecordChange struct {
	EventID    string
	RecordID   uint
	PlanID     uint
	UserID     uint
	OccurredAt time.Time
}

// Invalidator is one domain's reaction to a record change.
type Invalidator interface {
	Name() string
	OnRecordChange(ctx context.Context, ev RecordChange) error
}

// Dispatcher fans a record-change event out to every registered domain
// invalidator. Failures are logged per namespace and never propagate, so one
// failing namespace cannot block the others.
type Dispatcher struct {
	subs []Invalidator
}

// NewDispatcher creates a dispatcher over the given invalidators.
func NewDispatcher(subs ...Invalidator) *Dispatcher {
	return &Dispatcher{subs: subs}
}

// Publish delivers the event to every subscriber, best-effort.
func (d *Dispatcher) Publish(ctx context.Context, ev RecordChange) {
	if ev.EventID == "" {
		ev.EventID = uuid.NewString()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now()
	}
	for _, sub := range d.subs {
		if err := sub.OnRecordChange(ctx, ev); err != nil && utils.Sugar != nil {
			utils.Sugar.Warnf("cache invalidation failed namespace=%s event=%s plan=%d user=%d err=%v",
				sub.Name(), ev.EventID, ev.PlanID, ev.UserID, err)
		}
	}
}

// NewCacheInvalidators wires the standard cascade over one cache store:
// the record's own domain plus the dependent plan, chart and leaderboard
// domains.
func NewCacheInvalidators(cache utils.CacheStore) []Invalidator {
	return []Invalidator{
		&progressInvalidator{cache: cache},
		&planInvalidator{cache: cache},
		&chartInvalidator{cache: cache},
		&leaderboardInvalidator{cache: cache},
	}
}

// progressInvalidator clears the mutated record's detail entry and every list
// entry in the progress domain, including the plan- and user-scoped ones.
type progressInvalidator struct {
	cache utils.CacheStore
}

func (i *progressInvalidator) Name() string { return CachePrefixProgress }

func (i *progressInvalidator) OnRecordChange(ctx context.Context, ev RecordChange) error {
	if err := i.cache.Del(ctx, RecordDetailKey(ev.RecordID)); err != nil {
		return err
	}
	// Parameter fingerprints of past reads are not tracked, so the whole list
	// namespace goes; plan/user segments in the keys keep the scan cheap when
	// only a scoped wipe is wanted, but a record change touches them all.
	return utils.InvalidateByPrefix(ctx, i.cache, utils.CacheKey(CachePrefixProgress, "list")+utils.KeySeparator)
}

type planInvalidator struct {
	cache utils.CacheStore
}

func (i *planInvalidator) Name() string { return CachePrefixPlan }

func (i *planInvalidator) OnRecordChange(ctx context.Context, ev RecordChange) error {
	if err := i.cache.Del(ctx, PlanDetailKey(ev.PlanID)); err != nil {
		return err
	}
	return utils.InvalidateByPrefix(ctx, i.cache,
		utils.CacheKey(CachePrefixPlan, "list", fmt.Sprintf("user=%d", ev.UserID))+utils.KeySeparator)
}

type chartInvalidator struct {
	cache utils.CacheStore
}

func (i *chartInvalidator) Name() string { return CachePrefixChart }

func (i *chartInvalidator) OnRecordChange(ctx context.Context, ev RecordChange) error {
	return utils.InvalidateByPrefix(ctx, i.cache,
		utils.CacheKey(CachePrefixChart, fmt.Sprintf("plan=%d", ev.PlanID))+utils.KeySeparator)
}

// leaderboardInvalidator clears the derived streak entry for the plan and the
// public top-N board, which both stale out after any record change.
type leaderboardInvalidator struct {
	cache utils.CacheStore
}

func (i *leaderboardInvalidator) Name() string { return CachePrefixLeaderboard }

func (i *leaderboardInvalidator) OnRecordChange(ctx context.Context, ev RecordChange) error {
	if err := i.cache.Del(ctx, StreakKey(ev.PlanID)); err != nil {
		return err
	}
	return utils.InvalidateByPrefix(ctx, i.cache, utils.CacheKey(CachePrefixLeaderboard, "top")+utils.KeySeparator)
}

// RecordDetailKey is the cache key for one record's detail payload.
func RecordDetailKey(id uint) string {
	return utils.CacheKey(CachePrefixProgress, "detail", fmt.Sprintf("%d", id))
}

// RecordListKey builds the cache key for a record list query. Plan and user
// scoping stay visible as key segments so the cascade can pattern-match them;
// the remaining parameters collapse into a fingerprint.
func RecordListKey(planID, userID uint, params any) string {
	return utils.CacheKey(CachePrefixProgress, "list",
		fmt.Sprintf("plan=%d", planID),
		fmt.Sprintf("user=%d", userID),
		utils.Fingerprint(params))
}

// PlanDetailKey is the cache key for a plan detail payload.
func PlanDetailKey(planID uint) string {
	return utils.CacheKey(CachePrefixPlan, "detail", fmt.Sprintf("%d", planID))
}

// PlanListKey is the cache key for a user's plan list.
func PlanListKey(userID uint, params any) string {
	return utils.CacheKey(CachePrefixPlan, "list",
		fmt.Sprintf("user=%d", userID),
		utils.Fingerprint(params))
}

// ChartKey is the cache key for a plan's stage chart.
func ChartKey(planID uint) string {
	return utils.CacheKey(CachePrefixChart, fmt.Sprintf("plan=%d", planID), "stages")
}

// StreakKey is the cache key for a plan's derived streak.
func StreakKey(planID uint) string {
	return utils.CacheKey(CachePrefixStreak, fmt.Sprintf("plan=%d", planID))
}

// LeaderboardTopKey is the cache key for the public top-N board.
func LeaderboardTopKey(n int) string {
	return utils.CacheKey(CachePrefixLeaderboard, "top", fmt.Sprintf("%d", n))
}

package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quitline/quitline/models"
	"github.com/quitline/quitline/store"
)

// fakePlanStore serves plans from a map.
type fakePlanStore struct {
	plans map[uint]models.QuitPlan
}

func (f *fakePlanStore) GetPlan(ctx context.Context, id uint) (*models.QuitPlan, error) {
	p, ok := f.plans[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := p
	return &cp, nil
}

func (f *fakePlanStore) GetPlanWithStages(ctx context.Context, id uint) (*models.QuitPlan, error) {
	return f.GetPlan(ctx, id)
}

func (f *fakePlanStore) ListByUser(ctx context.Context, userID uint, page store.Pagination) ([]models.QuitPlan, int64, error) {
	var out []models.QuitPlan
	for _, p := range f.plans {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

// memCache is a map-backed CacheStore that records deletions and scans.
type memCache struct {
	mu      sync.Mutex
	entries map[string]string
	deleted []string
	scanned []string
}

func newMemCache() *memCache {
	return &memCache{entries: map[string]string{}}
}

func (c *memCache) Get(ctx context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	return v, ok, nil
}

func (c *memCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	return nil
}

func (c *memCache) Del(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.entries, k)
		c.deleted = append(c.deleted, k)
	}
	return nil
}

func (c *memCache) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scanned = append(c.scanned, pattern)
	prefix := strings.TrimSuffix(pattern, "*")
	var keys []string
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (c *memCache) deletedKeys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.deleted...)
}

// fakeLeaderboard records streak pushes.
type fakeLeaderboard struct {
	mu      sync.Mutex
	streaks map[uint]int
	err     error
}

func newFakeLeaderboard() *fakeLeaderboard {
	return &fakeLeaderboard{streaks: map[uint]int{}}
}

func (f *fakeLeaderboard) GetUserStreak(ctx context.Context, userID uint) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.streaks[userID], nil
}

func (f *fakeLeaderboard) UpdateUserStreak(ctx context.Context, userID uint, streak int) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.streaks[userID] = streak
	return nil
}

func (f *fakeLeaderboard) TopStreaks(ctx context.Context, n int) ([]LeaderboardEntry, error) {
	return nil, nil
}

// fakeBadges records milestone notifications.
type fakeBadges struct {
	mu    sync.Mutex
	calls []int
}

func (f *fakeBadges) OnStreakUpdate(userID uint, streak int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, streak)
}

type fixture struct {
	svc     *ProgressService
	records *store.MemoryRecordStore
	cache   *memCache
	board   *fakeLeaderboard
	badges  *fakeBadges
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	records := store.NewMemoryRecordStore()
	records.SetPlanOwner(1, 10)
	records.SetPlanOwner(2, 20)
	plans := &fakePlanStore{plans: map[uint]models.QuitPlan{
		1: {ID: 1, UserID: 10, Title: "cold turkey", Status: models.PlanStatusActive},
		2: {ID: 2, UserID: 20, Title: "gradual", Status: models.PlanStatusActive},
	}}
	cache := newMemCache()
	board := newFakeLeaderboard()
	badges := &fakeBadges{}
	svc := NewProgressService(ProgressServiceOpts{
		Records:     records,
		Plans:       plans,
		Cache:       cache,
		Leaderboard: board,
		Badges:      badges,
		Dispatcher:  NewDispatcher(NewCacheInvalidators(cache)...),
		Now:         func() time.Time { return now },
	})
	return &fixture{svc: svc, records: records, cache: cache, board: board, badges: badges, now: now}
}

func (f *fixture) day(daysAgo int) time.Time {
	return models.DayOf(f.now).AddDate(0, 0, -daysAgo)
}

var owner = Principal{UserID: 10}

func TestCreateRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.svc.Create(ctx, CreateRecordInput{
		PlanID:           1,
		RecordDate:       f.now,
		CigarettesSmoked: 0,
		Notes:            "first clean day",
	}, owner)
	require.NoError(t, err)
	assert.NotZero(t, rec.ID)
	assert.Equal(t, uint(1), rec.PlanID)
	assert.False(t, rec.IsDeleted)
	assert.True(t, models.SameDay(rec.RecordDate, f.now))
}

func TestCreateRecordValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   CreateRecordInput
		user Principal
		kind string
	}{
		{
			name: "unknown plan",
			in:   CreateRecordInput{PlanID: 99, RecordDate: f.now},
			user: owner,
			kind: KindNotFound,
		},
		{
			name: "foreign plan",
			in:   CreateRecordInput{PlanID: 2, RecordDate: f.now},
			user: owner,
			kind: KindForbidden,
		},
		{
			name: "future date",
			in:   CreateRecordInput{PlanID: 1, RecordDate: f.now.AddDate(0, 0, 1)},
			user: owner,
			kind: KindBadRequest,
		},
		{
			name: "negative cigarettes",
			in:   CreateRecordInput{PlanID: 1, RecordDate: f.now, CigarettesSmoked: -1},
			user: owner,
			kind: KindBadRequest,
		},
		{
			name: "overlong notes",
			in:   CreateRecordInput{PlanID: 1, RecordDate: f.now, Notes: strings.Repeat("a", 1001)},
			user: owner,
			kind: KindBadRequest,
		},
		{
			name: "overlong multibyte notes",
			in:   CreateRecordInput{PlanID: 1, RecordDate: f.now, Notes: strings.Repeat("ổ", 1001)},
			user: owner,
			kind: KindBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, tt.in, tt.user)
			assert.True(t, IsKind(err, tt.kind), "got %v", err)
		})
	}

	// Validation failures must not leave rows behind.
	_, total, err := f.records.FindAll(ctx, store.Pagination{}, store.RecordFilters{})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestCreateRecordFutureTimeSameDayAllowed(t *testing.T) {
	f := newFixture(t)

	// 23:59 today is still "today" even though it is after now.
	lateToday := models.DayOf(f.now).Add(23*time.Hour + 59*time.Minute)
	_, err := f.svc.Create(context.Background(), CreateRecordInput{PlanID: 1, RecordDate: lateToday}, owner)
	assert.NoError(t, err)
}

func TestCreateRecordDuplicateDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, CreateRecordInput{PlanID: 1, RecordDate: f.now}, owner)
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, CreateRecordInput{PlanID: 1, RecordDate: f.now.Add(2 * time.Hour)}, owner)
	assert.True(t, IsKind(err, KindConflict), "got %v", err)
}

func TestCreateRecordReactivatesDeletedSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.svc.Create(ctx, CreateRecordInput{PlanID: 1, RecordDate: f.now, CigarettesSmoked: 3, Notes: "bad day"}, owner)
	require.NoError(t, err)
	require.NoError(t, f.svc.Remove(ctx, rec.ID, owner))

	revived, err := f.svc.Create(ctx, CreateRecordInput{PlanID: 1, RecordDate: f.now, CigarettesSmoked: 0, Notes: "fresh start"}, owner)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, revived.ID, "reactivation reuses the deleted row")
	assert.False(t, revived.IsDeleted)
	assert.Equal(t, 0, revived.CigarettesSmoked)
	assert.Equal(t, "fresh start", revived.Notes)
}

func TestCreateRecordNotesLimitCountsCharacters(t *testing.T) {
	f := newFixture(t)

	// 600 characters but 1800 bytes; the limit is per character.
	rec, err := f.svc.Create(context.Background(), CreateRecordInput{
		PlanID:     1,
		RecordDate: f.now,
		Notes:      strings.Repeat("ổ", 600),
	}, owner)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("ổ", 600), rec.Notes)
}

func TestCreateRecordSanitizesNotes(t *testing.T) {
	f := newFixture(t)

	rec, err := f.svc.Create(context.Background(), CreateRecordInput{
		PlanID:     1,
		RecordDate: f.now,
		Notes:      `feeling good <script>alert("x")</script>`,
	}, owner)
	require.NoError(t, err)
	assert.NotContains(t, rec.Notes, "<script>")
}

func TestCreateRecordPushesStreak(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, CreateRecordInput{PlanID: 1, RecordDate: f.day(1)}, owner)
	require.NoError(t, err)
	assert.Equal(t, 1, f.board.streaks[10])

	_, err = f.svc.Create(ctx, CreateRecordInput{PlanID: 1, RecordDate: f.day(0)}, owner)
	require.NoError(t, err)
	assert.Equal(t, 2, f.board.streaks[10])
}

func TestCreateRecordLeaderboardFailureDoesNotFailWrite(t *testing.T) {
	f := newFixture(t)
	f.board.err = errors.New("redis down")

	rec, err := f.svc.Create(context.Background(), CreateRecordInput{PlanID: 1, RecordDate: f.now}, owner)
	require.NoError(t, err)
	assert.NotZero(t, rec.ID)
}

func TestCreateRecordInvalidatesCaches(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Warm the caches that a record change must clear.
	f.cache.Set(ctx, StreakKey(1), "5", time.Minute)
	f.cache.Set(ctx, ChartKey(1), "{}", time.Minute)
	f.cache.Set(ctx, PlanDetailKey(1), "{}", time.Minute)
	f.cache.Set(ctx, RecordListKey(1, 10, "params"), "[]", time.Minute)
	f.cache.Set(ctx, LeaderboardTopKey(10), "[]", time.Minute)

	_, err := f.svc.Create(ctx, CreateRecordInput{PlanID: 1, RecordDate: f.now}, owner)
	require.NoError(t, err)

	deleted := f.cache.deletedKeys()
	assert.Contains(t, deleted, StreakKey(1))
	assert.Contains(t, deleted, ChartKey(1))
	assert.Contains(t, deleted, PlanDetailKey(1))
	assert.Contains(t, deleted, RecordListKey(1, 10, "params"))
	assert.Contains(t, deleted, LeaderboardTopKey(10))
}

func TestUpdateRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.svc.Create(ctx, CreateRecordInput{PlanID: 1, RecordDate: f.day(1), CigarettesSmoked: 4}, owner)
	require.NoError(t, err)

	smoked := 0
	notes := "turned it around"
	updated, err := f.svc.Update(ctx, rec.ID, UpdateRecordInput{CigarettesSmoked: &smoked, Notes: &notes}, owner)
	require.NoError(t, err)
	assert.Equal(t, 0, updated.CigarettesSmoked)
	assert.Equal(t, notes, updated.Notes)
	assert.Equal(t, 1, f.board.streaks[10], "streak recomputed after smoked-count change")
}

func TestUpdateRecordDateConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, CreateRecordInput{PlanID: 1, RecordDate: f.day(1)}, owner)
	require.NoError(t, err)
	rec, err := f.svc.Create(ctx, CreateRecordInput{PlanID: 1, RecordDate: f.day(2)}, owner)
	require.NoError(t, err)

	target := f.day(1)
	_, err = f.svc.Update(ctx, rec.ID, UpdateRecordInput{RecordDate: &target}, owner)
	assert.True(t, IsKind(err, KindConflict), "got %v", err)
}

func TestUpdateRecordErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.svc.Create(ctx, CreateRecordInput{PlanID: 1, RecordDate: f.now}, owner)
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, 999, UpdateRecordInput{}, owner)
	assert.True(t, IsKind(err, KindNotFound), "got %v", err)

	_, err = f.svc.Update(ctx, rec.ID, UpdateRecordInput{}, Principal{UserID: 20})
	assert.True(t, IsKind(err, KindForbidden), "got %v", err)

	future := f.now.AddDate(0, 0, 2)
	_, err = f.svc.Update(ctx, rec.ID, UpdateRecordInput{RecordDate: &future}, owner)
	assert.True(t, IsKind(err, KindBadRequest), "got %v", err)

	negative := -2
	_, err = f.svc.Update(ctx, rec.ID, UpdateRecordInput{CigarettesSmoked: &negative}, owner)
	assert.True(t, IsKind(err, KindBadRequest), "got %v", err)
}

func TestRemoveRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.svc.Create(ctx, CreateRecordInput{PlanID: 1, RecordDate: f.now}, owner)
	require.NoError(t, err)

	require.NoError(t, f.svc.Remove(ctx, rec.ID, owner))

	// Gone from active reads, still present as a deleted row.
	_, err = f.records.FindOne(ctx, rec.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	deleted, err := f.records.FindAny(ctx, rec.ID)
	require.NoError(t, err)
	assert.True(t, deleted.IsDeleted)

	// Deleting again is a not-found, not a second delete.
	err = f.svc.Remove(ctx, rec.ID, owner)
	assert.True(t, IsKind(err, KindNotFound), "got %v", err)
}

func TestRemoveRecordOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.svc.Create(ctx, CreateRecordInput{PlanID: 1, RecordDate: f.now}, owner)
	require.NoError(t, err)

	err = f.svc.Remove(ctx, rec.ID, Principal{UserID: 20})
	assert.True(t, IsKind(err, KindForbidden), "got %v", err)
}

func TestFindOne(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.svc.Create(ctx, CreateRecordInput{PlanID: 1, RecordDate: f.now, Notes: "hi"}, owner)
	require.NoError(t, err)

	got, err := f.svc.FindOne(ctx, rec.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)

	// Second read is served from cache; the detail key must be populated.
	_, ok, err := f.cache.Get(ctx, RecordDetailKey(rec.ID))
	require.NoError(t, err)
	assert.True(t, ok)

	// Ownership holds even for cached payloads.
	_, err = f.svc.FindOne(ctx, rec.ID, Principal{UserID: 20})
	assert.True(t, IsKind(err, KindForbidden), "got %v", err)

	_, err = f.svc.FindOne(ctx, 999, owner)
	assert.True(t, IsKind(err, KindNotFound), "got %v", err)
}

func TestFindAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := f.svc.Create(ctx, CreateRecordInput{PlanID: 1, RecordDate: f.day(i)}, owner)
		require.NoError(t, err)
	}

	page, err := f.svc.FindAll(ctx, store.Pagination{Page: 1, Limit: 3}, store.RecordFilters{PlanID: 1}, owner)
	require.NoError(t, err)
	assert.Equal(t, int64(5), page.Total)
	assert.Len(t, page.Data, 3)
	assert.True(t, page.HasNext)

	page2, err := f.svc.FindAll(ctx, store.Pagination{Page: 2, Limit: 3}, store.RecordFilters{PlanID: 1}, owner)
	require.NoError(t, err)
	assert.Len(t, page2.Data, 2)
	assert.False(t, page2.HasNext)

	// Foreign plan filter is rejected before hitting the store.
	_, err = f.svc.FindAll(ctx, store.Pagination{}, store.RecordFilters{PlanID: 2}, owner)
	assert.True(t, IsKind(err, KindForbidden), "got %v", err)
}

func TestFindAllScopesToCaller(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, CreateRecordInput{PlanID: 1, RecordDate: f.now}, owner)
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, CreateRecordInput{PlanID: 2, RecordDate: f.now}, Principal{UserID: 20})
	require.NoError(t, err)

	page, err := f.svc.FindAll(ctx, store.Pagination{}, store.RecordFilters{}, owner)
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, uint(1), page.Data[0].PlanID)
}

func TestFindAllDateRange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		_, err := f.svc.Create(ctx, CreateRecordInput{PlanID: 1, RecordDate: f.day(i)}, owner)
		require.NoError(t, err)
	}

	from := f.day(3)
	to := f.day(1)
	page, err := f.svc.FindAll(ctx, store.Pagination{}, store.RecordFilters{PlanID: 1, From: &from, To: &to}, owner)
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
}

func TestStreakEndpoint(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.svc.Create(ctx, CreateRecordInput{PlanID: 1, RecordDate: f.day(i)}, owner)
		require.NoError(t, err)
	}

	streak, err := f.svc.Streak(ctx, 1, owner)
	require.NoError(t, err)
	assert.Equal(t, 3, streak)

	// Cached under the streak namespace the cascade clears.
	_, ok, err := f.cache.Get(ctx, StreakKey(1))
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = f.svc.Streak(ctx, 2, owner)
	assert.True(t, IsKind(err, KindForbidden), "got %v", err)
}

func TestStreakRecomputedAfterDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	recs := make([]uint, 0, 2)
	for i := 0; i < 2; i++ {
		rec, err := f.svc.Create(ctx, CreateRecordInput{PlanID: 1, RecordDate: f.day(i)}, owner)
		require.NoError(t, err)
		recs = append(recs, rec.ID)
	}
	assert.Equal(t, 2, f.board.streaks[10])

	// Warm the streak cache, then delete today's record: the cascade clears
	// the entry and the next read recomputes from the surviving rows.
	streakBefore, err := f.svc.Streak(ctx, 1, owner)
	require.NoError(t, err)
	assert.Equal(t, 2, streakBefore)

	require.NoError(t, f.svc.Remove(ctx, recs[0], owner))
	_, ok, err := f.cache.Get(ctx, StreakKey(1))
	require.NoError(t, err)
	assert.False(t, ok, "cascade cleared the streak entry")

	streak, err := f.svc.Streak(ctx, 1, owner)
	require.NoError(t, err)
	assert.Equal(t, 1, streak)
}

func TestBadgeMilestoneNotified(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Backfilling two days ago first: the streak stays 0 until the chain
	// reaches yesterday, then jumps to 2 and finally 3.
	for i := 2; i >= 0; i-- {
		_, err := f.svc.Create(ctx, CreateRecordInput{PlanID: 1, RecordDate: f.day(i)}, owner)
		require.NoError(t, err)
	}

	f.badges.mu.Lock()
	defer f.badges.mu.Unlock()
	assert.Equal(t, []int{0, 2, 3}, f.badges.calls)
}

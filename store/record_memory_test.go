package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quitline/quitline/models"
)

func day(daysAgo int) time.Time {
	return models.DayOf(time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)).AddDate(0, 0, -daysAgo)
}

func TestMemoryStoreUniqueSlot(t *testing.T) {
	s := NewMemoryRecordStore()
	ctx := context.Background()

	rec := &models.ProgressRecord{PlanID: 1, RecordDate: day(0)}
	require.NoError(t, s.Create(ctx, rec))

	// Same day, different clock time: still the same slot.
	err := s.Create(ctx, &models.ProgressRecord{PlanID: 1, RecordDate: day(0).Add(5 * time.Hour)})
	assert.ErrorIs(t, err, ErrDuplicate)

	// The slot stays taken even after a soft delete; only reactivation can
	// reuse it, matching the unique index over all rows.
	require.NoError(t, s.SoftDelete(ctx, rec.ID))
	err = s.Create(ctx, &models.ProgressRecord{PlanID: 1, RecordDate: day(0)})
	assert.ErrorIs(t, err, ErrDuplicate)

	// Other plans and other days are unaffected.
	assert.NoError(t, s.Create(ctx, &models.ProgressRecord{PlanID: 2, RecordDate: day(0)}))
	assert.NoError(t, s.Create(ctx, &models.ProgressRecord{PlanID: 1, RecordDate: day(1)}))
}

func TestMemoryStoreSoftDeleteAndReactivate(t *testing.T) {
	s := NewMemoryRecordStore()
	ctx := context.Background()

	score := 80
	rec := &models.ProgressRecord{PlanID: 1, RecordDate: day(0), CigarettesSmoked: 4, HealthScore: &score}
	require.NoError(t, s.Create(ctx, rec))

	require.NoError(t, s.SoftDelete(ctx, rec.ID))
	_, err := s.FindOne(ctx, rec.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	found, err := s.FindAny(ctx, rec.ID)
	require.NoError(t, err)
	assert.True(t, found.IsDeleted)

	// Double delete reports not found.
	assert.ErrorIs(t, s.SoftDelete(ctx, rec.ID), ErrNotFound)

	revived, err := s.Reactivate(ctx, rec.ID, RecordFields{RecordDate: day(0), CigarettesSmoked: 0, Notes: "again"})
	require.NoError(t, err)
	assert.Equal(t, rec.ID, revived.ID)
	assert.False(t, revived.IsDeleted)
	assert.Equal(t, 0, revived.CigarettesSmoked)
	assert.Nil(t, revived.HealthScore, "reactivation resets the fields")

	active, err := s.FindOne(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "again", active.Notes)
}

func TestMemoryStoreFindByPlanAndDate(t *testing.T) {
	s := NewMemoryRecordStore()
	ctx := context.Background()

	rec := &models.ProgressRecord{PlanID: 1, RecordDate: day(0)}
	require.NoError(t, s.Create(ctx, rec))
	require.NoError(t, s.SoftDelete(ctx, rec.ID))

	_, err := s.FindByPlanAndDate(ctx, 1, day(0), true)
	assert.ErrorIs(t, err, ErrNotFound, "active-only lookup skips deleted rows")

	found, err := s.FindByPlanAndDate(ctx, 1, day(0), false)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, found.ID)

	_, err = s.FindByPlanAndDate(ctx, 1, day(3), false)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreUpdateDateCollision(t *testing.T) {
	s := NewMemoryRecordStore()
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, &models.ProgressRecord{PlanID: 1, RecordDate: day(0)}))
	rec := &models.ProgressRecord{PlanID: 1, RecordDate: day(1)}
	require.NoError(t, s.Create(ctx, rec))

	rec.RecordDate = day(0)
	assert.ErrorIs(t, s.Update(ctx, rec), ErrDuplicate)

	rec.RecordDate = day(2)
	assert.NoError(t, s.Update(ctx, rec))
}

func TestMemoryStoreFindAll(t *testing.T) {
	s := NewMemoryRecordStore()
	ctx := context.Background()
	s.SetPlanOwner(1, 10)
	s.SetPlanOwner(2, 20)

	for i := 0; i < 4; i++ {
		require.NoError(t, s.Create(ctx, &models.ProgressRecord{PlanID: 1, RecordDate: day(i)}))
	}
	require.NoError(t, s.Create(ctx, &models.ProgressRecord{PlanID: 2, RecordDate: day(0)}))

	recs, total, err := s.FindAll(ctx, Pagination{Page: 1, Limit: 3}, RecordFilters{UserID: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	require.Len(t, recs, 3)
	assert.True(t, recs[0].RecordDate.After(recs[1].RecordDate), "newest first")

	from := day(2)
	to := day(1)
	recs, total, err = s.FindAll(ctx, Pagination{}, RecordFilters{PlanID: 1, From: &from, To: &to})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, recs, 2)
}

func TestMemoryStoreRecentByPlan(t *testing.T) {
	s := NewMemoryRecordStore()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Create(ctx, &models.ProgressRecord{PlanID: 1, RecordDate: day(i)}))
	}
	deleted := &models.ProgressRecord{PlanID: 1, RecordDate: day(5)}
	require.NoError(t, s.Create(ctx, deleted))
	require.NoError(t, s.SoftDelete(ctx, deleted.ID))

	recs, err := s.RecentByPlan(ctx, 1, 3)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.True(t, models.SameDay(recs[0].RecordDate, day(0)))
	for _, r := range recs {
		assert.False(t, r.IsDeleted)
	}
}

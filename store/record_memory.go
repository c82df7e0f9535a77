package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/quitline/quitline/models"
)

// MemoryRecordStore is an in-memory RecordStore with the same semantics as
// the gorm implementation, including the unique (plan_id, record_date) slot
// shared by active and soft-deleted rows. Used by tests and local tooling.
type MemoryRecordStore struct {
	mu      sync.RWMutex
	records map[uint]*models.ProgressRecord
	// plan ownership, so FindAll can scope by user like the SQL join does
	planOwners map[uint]uint
	nextID     uint
}

// NewMemoryRecordStore creates an empty in-memory store.
func NewMemoryRecordStore() *MemoryRecordStore {
	return &MemoryRecordStore{
		records:    map[uint]*models.ProgressRecord{},
		planOwners: map[uint]uint{},
		nextID:     1,
	}
}

// SetPlanOwner registers plan ownership for user-scoped FindAll filtering.
func (s *MemoryRecordStore) SetPlanOwner(planID, userID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.planOwners[planID] = userID
}

func (s *MemoryRecordStore) Create(ctx context.Context, rec *models.ProgressRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	day := models.DayOf(rec.RecordDate)
	for _, r := range s.records {
		if r.PlanID == rec.PlanID && models.SameDay(r.RecordDate, day) {
			return ErrDuplicate
		}
	}

	now := time.Now()
	rec.ID = s.nextID
	s.nextID++
	rec.RecordDate = day
	rec.CreatedAt = now
	rec.UpdatedAt = now
	cp := *rec
	s.records[rec.ID] = &cp
	return nil
}

func (s *MemoryRecordStore) FindOne(ctx context.Context, id uint) (*models.ProgressRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	if !ok || r.IsDeleted {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *MemoryRecordStore) FindAny(ctx context.Context, id uint) (*models.ProgressRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *MemoryRecordStore) FindByPlanAndDate(ctx context.Context, planID uint, day time.Time, activeOnly bool) (*models.ProgressRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	day = models.DayOf(day)
	for _, r := range s.records {
		if r.PlanID != planID || !models.SameDay(r.RecordDate, day) {
			continue
		}
		if activeOnly && r.IsDeleted {
			continue
		}
		cp := *r
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (s *MemoryRecordStore) FindAll(ctx context.Context, page Pagination, filters RecordFilters) ([]models.ProgressRecord, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	page = page.Normalize()

	var matched []models.ProgressRecord
	for _, r := range s.records {
		if r.IsDeleted {
			continue
		}
		if filters.PlanID != 0 && r.PlanID != filters.PlanID {
			continue
		}
		if filters.UserID != 0 && s.planOwners[r.PlanID] != filters.UserID {
			continue
		}
		if filters.From != nil && r.RecordDate.Before(models.DayOf(*filters.From)) {
			continue
		}
		if filters.To != nil && r.RecordDate.After(models.DayOf(*filters.To)) {
			continue
		}
		matched = append(matched, *r)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].RecordDate.After(matched[j].RecordDate)
	})

	total := int64(len(matched))
	start := (page.Page - 1) * page.Limit
	if start >= len(matched) {
		return []models.ProgressRecord{}, total, nil
	}
	end := start + page.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (s *MemoryRecordStore) Update(ctx context.Context, rec *models.ProgressRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.records[rec.ID]
	if !ok {
		return ErrNotFound
	}
	day := models.DayOf(rec.RecordDate)
	for id, r := range s.records {
		if id != rec.ID && r.PlanID == rec.PlanID && models.SameDay(r.RecordDate, day) {
			return ErrDuplicate
		}
	}

	cp := *rec
	cp.RecordDate = day
	cp.CreatedAt = existing.CreatedAt
	cp.UpdatedAt = time.Now()
	s.records[rec.ID] = &cp
	return nil
}

func (s *MemoryRecordStore) Reactivate(ctx context.Context, id uint, fields RecordFields) (*models.ProgressRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	day := models.DayOf(fields.RecordDate)
	for otherID, other := range s.records {
		if otherID != id && other.PlanID == r.PlanID && models.SameDay(other.RecordDate, day) {
			return nil, ErrDuplicate
		}
	}

	r.RecordDate = day
	r.CigarettesSmoked = fields.CigarettesSmoked
	r.HealthScore = fields.HealthScore
	r.Notes = fields.Notes
	r.IsDeleted = false
	r.UpdatedAt = time.Now()
	cp := *r
	return &cp, nil
}

func (s *MemoryRecordStore) SoftDelete(ctx context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok || r.IsDeleted {
		return ErrNotFound
	}
	r.IsDeleted = true
	r.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryRecordStore) RecentByPlan(ctx context.Context, planID uint, limit int) ([]models.ProgressRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var recs []models.ProgressRecord
	for _, r := range s.records {
		if r.PlanID == planID && !r.IsDeleted {
			recs = append(recs, *r)
		}
	}
	sort.Slice(recs, func(i, j int) bool {
		return recs[i].RecordDate.After(recs[j].RecordDate)
	})
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

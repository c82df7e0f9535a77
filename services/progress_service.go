package services

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/quitline/quitline/models"
	"github.com/quitline/quitline/store"
	"github.com/quitline/quitline/utils"
)

// Principal is the authenticated caller, resolved by the API layer.
type Principal struct {
	UserID uint
	Role   string
}

// CreateRecordInput is the validated payload for logging one day.
type CreateRecordInput struct {
	PlanID           uint      `json:"plan_id"`
	RecordDate       time.Time `json:"record_date"`
	CigarettesSmoked int       `json:"cigarettes_smoked"`
	HealthScore      *int      `json:"health_score"`
	Notes            string    `json:"notes"`
}

// UpdateRecordInput carries the fields an update may change; nil means "keep".
type UpdateRecordInput struct {
	RecordDate       *time.Time `json:"record_date"`
	CigarettesSmoked *int       `json:"cigarettes_smoked"`
	HealthScore      *int       `json:"health_score"`
	Notes            *string    `json:"notes"`
}

// RecordPage is the paginated envelope returned by list queries.
type RecordPage struct {
	Data    []models.ProgressRecord `json:"data"`
	Total   int64                   `json:"total"`
	Page    int                     `json:"page"`
	Limit   int                     `json:"limit"`
	HasNext bool                    `json:"has_next"`
}

// ProgressService orchestrates record mutations: ownership via the plan,
// day-uniqueness with reactivation, streak recomputation pushed to the
// leaderboard, and the cross-domain cache cascade. Side effects run strictly
// after the primary write and never fail it.
type ProgressService struct {
	records      store.RecordStore
	plans        store.PlanStore
	cache        utils.CacheStore
	leaderboard  LeaderboardStore
	badges       BadgeNotifier
	dispatcher   *Dispatcher
	cacheTTL     time.Duration
	historyLimit int
	now          func() time.Time
}

// ProgressServiceOpts bundles the orchestrator's collaborators.
type ProgressServiceOpts struct {
	Records      store.RecordStore
	Plans        store.PlanStore
	Cache        utils.CacheStore
	Leaderboard  LeaderboardStore
	Badges       BadgeNotifier
	Dispatcher   *Dispatcher
	CacheTTL     time.Duration
	HistoryLimit int
	Now          func() time.Time
}

// NewProgressService wires the orchestrator.
func NewProgressService(opts ProgressServiceOpts) *ProgressService {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = utils.DefaultCacheTTL
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 1000
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &ProgressService{
		records:      opts.Records,
		plans:        opts.Plans,
		cache:        opts.Cache,
		leaderboard:  opts.Leaderboard,
		badges:       opts.Badges,
		dispatcher:   opts.Dispatcher,
		cacheTTL:     opts.CacheTTL,
		historyLimit: opts.HistoryLimit,
		now:          opts.Now,
	}
}

// Create logs a new day against a plan. If a soft-deleted record already
// holds the (plan, day) slot it is reactivated in place, keeping its id; an
// active record for the day is a conflict.
func (s *ProgressService) Create(ctx context.Context, in CreateRecordInput, user Principal) (*models.ProgressRecord, error) {
	plan, err := s.ownedPlan(ctx, in.PlanID, user)
	if err != nil {
		return nil, err
	}

	day := models.DayOf(in.RecordDate)
	if day.After(models.DayOf(s.now())) {
		return nil, NewBadRequest(40010, "record_date cannot be in the future")
	}
	if in.CigarettesSmoked < 0 {
		return nil, NewBadRequest(40011, "cigarettes_smoked cannot be negative")
	}
	if err := validateHealthScore(in.HealthScore); err != nil {
		return nil, err
	}
	notes, err := cleanNotes(in.Notes)
	if err != nil {
		return nil, err
	}

	var rec *models.ProgressRecord
	existing, ferr := s.records.FindByPlanAndDate(ctx, plan.ID, day, false)
	switch {
	case errors.Is(ferr, store.ErrNotFound):
		rec = &models.ProgressRecord{
			PlanID:           plan.ID,
			RecordDate:       day,
			CigarettesSmoked: in.CigarettesSmoked,
			HealthScore:      in.HealthScore,
			Notes:            notes,
		}
		if cerr := s.records.Create(ctx, rec); cerr != nil {
			// A concurrent create can win the slot between the lookup and the
			// insert; the unique index reports it and we surface a conflict.
			if errors.Is(cerr, store.ErrDuplicate) {
				return nil, NewConflict(40910, "record already exists for this date")
			}
			return nil, NewInternal(50010, "failed to create record")
		}
	case ferr != nil:
		return nil, NewInternal(50011, "failed to look up record")
	case !existing.IsDeleted:
		return nil, NewConflict(40910, "record already exists for this date")
	default:
		rec, err = s.records.Reactivate(ctx, existing.ID, store.RecordFields{
			RecordDate:       day,
			CigarettesSmoked: in.CigarettesSmoked,
			HealthScore:      in.HealthScore,
			Notes:            notes,
		})
		if err != nil {
			return nil, NewInternal(50012, "failed to reactivate record")
		}
	}

	s.pushStreak(ctx, plan)
	s.publishChange(ctx, rec.ID, plan)
	return rec, nil
}

// Update mutates an existing record, regardless of its deletion status. A
// record_date change re-checks the day-uniqueness invariant against other
// active records.
func (s *ProgressService) Update(ctx context.Context, id uint, in UpdateRecordInput, user Principal) (*models.ProgressRecord, error) {
	rec, err := s.records.FindAny(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, NewNotFound(40420, "record not found")
		}
		return nil, NewInternal(50020, "failed to load record")
	}

	plan, err := s.ownedPlan(ctx, rec.PlanID, user)
	if err != nil {
		return nil, err
	}

	if in.RecordDate != nil {
		day := models.DayOf(*in.RecordDate)
		if day.After(models.DayOf(s.now())) {
			return nil, NewBadRequest(40010, "record_date cannot be in the future")
		}
		if !models.SameDay(day, rec.RecordDate) {
			other, ferr := s.records.FindByPlanAndDate(ctx, rec.PlanID, day, true)
			if ferr == nil && other.ID != rec.ID {
				return nil, NewConflict(40911, "another record already exists for this date")
			}
			if ferr != nil && !errors.Is(ferr, store.ErrNotFound) {
				return nil, NewInternal(50021, "failed to check record date")
			}
		}
		rec.RecordDate = day
	}

	smokedChanged := false
	if in.CigarettesSmoked != nil {
		if *in.CigarettesSmoked < 0 {
			return nil, NewBadRequest(40011, "cigarettes_smoked cannot be negative")
		}
		smokedChanged = *in.CigarettesSmoked != rec.CigarettesSmoked
		rec.CigarettesSmoked = *in.CigarettesSmoked
	}
	if in.HealthScore != nil {
		if err := validateHealthScore(in.HealthScore); err != nil {
			return nil, err
		}
		rec.HealthScore = in.HealthScore
	}
	if in.Notes != nil {
		notes, nerr := cleanNotes(*in.Notes)
		if nerr != nil {
			return nil, nerr
		}
		rec.Notes = notes
	}

	if err := s.records.Update(ctx, rec); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, NewConflict(40911, "another record already exists for this date")
		}
		return nil, NewInternal(50022, "failed to update record")
	}

	if smokedChanged {
		s.pushStreak(ctx, plan)
	}
	s.publishChange(ctx, rec.ID, plan)
	return rec, nil
}

// Remove soft-deletes an active record. The row is retained; a later create
// for the same day reactivates it.
func (s *ProgressService) Remove(ctx context.Context, id uint, user Principal) error {
	rec, err := s.records.FindOne(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return NewNotFound(40420, "record not found")
		}
		return NewInternal(50030, "failed to load record")
	}

	plan, err := s.ownedPlan(ctx, rec.PlanID, user)
	if err != nil {
		return err
	}

	if err := s.records.SoftDelete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return NewNotFound(40420, "record not found")
		}
		return NewInternal(50031, "failed to delete record")
	}

	// No leaderboard push here: the cascade clears the cached streak, so the
	// next read recomputes it from the surviving rows.
	s.publishChange(ctx, rec.ID, plan)
	return nil
}

// FindOne returns one active record, cache-first. Ownership is re-validated
// even on a cache hit; cached payloads carry no trust boundary of their own.
func (s *ProgressService) FindOne(ctx context.Context, id uint, user Principal) (*models.ProgressRecord, error) {
	rec, err := utils.CacheFetch(ctx, s.cache, RecordDetailKey(id), s.cacheTTL, func() (models.ProgressRecord, error) {
		r, lerr := s.records.FindOne(ctx, id)
		if lerr != nil {
			return models.ProgressRecord{}, lerr
		}
		return *r, nil
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, NewNotFound(40420, "record not found")
		}
		return nil, NewInternal(50040, "failed to load record")
	}

	if _, err := s.ownedPlan(ctx, rec.PlanID, user); err != nil {
		return nil, err
	}
	return &rec, nil
}

// FindAll returns a page of active records, cache-first, always scoped to the
// requesting user. A plan filter is ownership-checked before the query runs.
func (s *ProgressService) FindAll(ctx context.Context, page store.Pagination, filters store.RecordFilters, user Principal) (*RecordPage, error) {
	filters.UserID = user.UserID
	if filters.PlanID != 0 {
		if _, err := s.ownedPlan(ctx, filters.PlanID, user); err != nil {
			return nil, err
		}
	}

	page = page.Normalize()
	key := RecordListKey(filters.PlanID, filters.UserID, struct {
		Page    store.Pagination    `json:"page"`
		Filters store.RecordFilters `json:"filters"`
	}{page, filters})

	result, err := utils.CacheFetch(ctx, s.cache, key, s.cacheTTL, func() (RecordPage, error) {
		recs, total, lerr := s.records.FindAll(ctx, page, filters)
		if lerr != nil {
			return RecordPage{}, lerr
		}
		return RecordPage{
			Data:    recs,
			Total:   total,
			Page:    page.Page,
			Limit:   page.Limit,
			HasNext: int64(page.Page*page.Limit) < total,
		}, nil
	})
	if err != nil {
		return nil, NewInternal(50041, "failed to list records")
	}
	return &result, nil
}

// Streak returns the plan's current consecutive-clean-day count, cache-first.
func (s *ProgressService) Streak(ctx context.Context, planID uint, user Principal) (int, error) {
	if _, err := s.ownedPlan(ctx, planID, user); err != nil {
		return 0, err
	}

	streak, err := utils.CacheFetch(ctx, s.cache, StreakKey(planID), s.cacheTTL, func() (int, error) {
		history, lerr := s.records.RecentByPlan(ctx, planID, s.historyLimit)
		if lerr != nil {
			return 0, lerr
		}
		return CalculateStreak(history, s.now()), nil
	})
	if err != nil {
		return 0, NewInternal(50042, "failed to compute streak")
	}
	return streak, nil
}

// ownedPlan loads the plan and enforces that the caller owns it.
func (s *ProgressService) ownedPlan(ctx context.Context, planID uint, user Principal) (*models.QuitPlan, error) {
	plan, err := s.plans.GetPlan(ctx, planID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, NewNotFound(40410, "plan not found")
		}
		return nil, NewInternal(50001, "failed to load plan")
	}
	if plan.UserID != user.UserID {
		return nil, NewForbidden(40310, "you do not own this plan")
	}
	return plan, nil
}

// pushStreak recomputes the plan's streak and forwards it to the leaderboard
// and badge collaborators. Best-effort: failures are logged, never surfaced.
func (s *ProgressService) pushStreak(ctx context.Context, plan *models.QuitPlan) {
	history, err := s.records.RecentByPlan(ctx, plan.ID, s.historyLimit)
	if err != nil {
		if utils.Sugar != nil {
			utils.Sugar.Warnf("streak recompute failed plan=%d err=%v", plan.ID, err)
		}
		return
	}
	streak := CalculateStreak(history, s.now())

	if s.leaderboard != nil {
		if err := s.leaderboard.UpdateUserStreak(ctx, plan.UserID, streak); err != nil && utils.Sugar != nil {
			utils.Sugar.Warnf("leaderboard push failed user=%d streak=%d err=%v", plan.UserID, streak, err)
		}
	}
	if s.badges != nil {
		s.badges.OnStreakUpdate(plan.UserID, streak)
	}
}

// publishChange triggers the invalidation cascade after a successful write.
func (s *ProgressService) publishChange(ctx context.Context, recordID uint, plan *models.QuitPlan) {
	if s.dispatcher == nil {
		return
	}
	s.dispatcher.Publish(ctx, RecordChange{
		RecordID: recordID,
		PlanID:   plan.ID,
		UserID:   plan.UserID,
	})
}

func validateHealthScore(score *int) error {
	if score != nil && (*score < 0 || *score > 100) {
		return NewBadRequest(40012, "health_score must be between 0 and 100")
	}
	return nil
}

func cleanNotes(notes string) (string, error) {
	cleaned := utils.Sanitize(notes)
	// Character count, not bytes; the column is varchar(1000).
	if utf8.RuneCountInString(cleaned) > 1000 {
		return "", NewBadRequest(40013, "notes cannot exceed 1000 characters")
	}
	return cleaned, nil
}

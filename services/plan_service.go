package services

import (
	"context"
	"errors"
	"time"

	"github.com/quitline/quitline/models"
	"github.com/quitline/quitline/store"
	"github.com/quitline/quitline/utils"
)

// StagePoint is one chart segment derived from a plan stage.
type StagePoint struct {
	Name         string `json:"name"`
	Sequence     int    `json:"sequence"`
	TargetPerDay int    `json:"target_per_day"`
	DurationDays int    `json:"duration_days"`
}

// PlanChart is the reduction-curve payload rendered by clients.
type PlanChart struct {
	PlanID uint         `json:"plan_id"`
	Title  string       `json:"title"`
	Stages []StagePoint `json:"stages"`
}

// PlanPage is the paginated envelope for a user's plan list.
type PlanPage struct {
	Data    []models.QuitPlan `json:"data"`
	Total   int64             `json:"total"`
	Page    int               `json:"page"`
	Limit   int               `json:"limit"`
	HasNext bool              `json:"has_next"`
}

// PlanService serves the cached plan read paths. Both keys live in namespaces
// the record-change cascade clears, so a progress write refreshes them.
type PlanService struct {
	plans    store.PlanStore
	cache    utils.CacheStore
	cacheTTL time.Duration
}

func NewPlanService(plans store.PlanStore, cache utils.CacheStore, ttl time.Duration) *PlanService {
	if ttl <= 0 {
		ttl = utils.DefaultCacheTTL
	}
	return &PlanService{plans: plans, cache: cache, cacheTTL: ttl}
}

// Detail returns one plan, cache-first, scoped to its owner.
func (s *PlanService) Detail(ctx context.Context, planID uint, user Principal) (*models.QuitPlan, error) {
	plan, err := utils.CacheFetch(ctx, s.cache, PlanDetailKey(planID), s.cacheTTL, func() (models.QuitPlan, error) {
		p, lerr := s.plans.GetPlan(ctx, planID)
		if lerr != nil {
			return models.QuitPlan{}, lerr
		}
		return *p, nil
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, NewNotFound(40410, "plan not found")
		}
		return nil, NewInternal(50050, "failed to load plan")
	}
	if plan.UserID != user.UserID {
		return nil, NewForbidden(40310, "you do not own this plan")
	}
	return &plan, nil
}

// List returns one page of the caller's own plans, cache-first. The key sits
// in the plan:list namespace the record cascade clears for the user.
func (s *PlanService) List(ctx context.Context, page store.Pagination, user Principal) (*PlanPage, error) {
	page = page.Normalize()

	result, err := utils.CacheFetch(ctx, s.cache, PlanListKey(user.UserID, page), s.cacheTTL, func() (PlanPage, error) {
		plans, total, lerr := s.plans.ListByUser(ctx, user.UserID, page)
		if lerr != nil {
			return PlanPage{}, lerr
		}
		return PlanPage{
			Data:    plans,
			Total:   total,
			Page:    page.Page,
			Limit:   page.Limit,
			HasNext: int64(page.Page*page.Limit) < total,
		}, nil
	})
	if err != nil {
		return nil, NewInternal(50052, "failed to list plans")
	}
	return &result, nil
}

// Chart returns the plan's stage curve, cache-first. Ownership is checked
// against the store before the cached payload is served.
func (s *PlanService) Chart(ctx context.Context, planID uint, user Principal) (*PlanChart, error) {
	owner, err := s.plans.GetPlan(ctx, planID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, NewNotFound(40410, "plan not found")
		}
		return nil, NewInternal(50051, "failed to build chart")
	}
	if owner.UserID != user.UserID {
		return nil, NewForbidden(40310, "you do not own this plan")
	}

	chart, err := utils.CacheFetch(ctx, s.cache, ChartKey(planID), s.cacheTTL, func() (PlanChart, error) {
		p, lerr := s.plans.GetPlanWithStages(ctx, planID)
		if lerr != nil {
			return PlanChart{}, lerr
		}
		points := make([]StagePoint, 0, len(p.Stages))
		for _, st := range p.Stages {
			points = append(points, StagePoint{
				Name:         st.Name,
				Sequence:     st.Sequence,
				TargetPerDay: st.TargetPerDay,
				DurationDays: st.DurationDays,
			})
		}
		return PlanChart{PlanID: p.ID, Title: p.Title, Stages: points}, nil
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, NewNotFound(40410, "plan not found")
		}
		return nil, NewInternal(50051, "failed to build chart")
	}
	return &chart, nil
}

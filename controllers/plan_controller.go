package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quitline/quitline/services"
	"github.com/quitline/quitline/store"
	"github.com/quitline/quitline/utils"
)

// PlanController exposes the cached plan read endpoints.
type PlanController struct {
	plans *services.PlanService
}

// NewPlanController creates a new PlanController instance.
func NewPlanController(plans *services.PlanService) *PlanController {
	return &PlanController{plans: plans}
}

// ListPlans returns the caller's plans, paginated.
func (p *PlanController) ListPlans(ctx *gin.Context) {
	user, ok := getPrincipal(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))
	result, err := p.plans.List(ctx.Request.Context(), store.Pagination{Page: page, Limit: pageSize}, user)
	if err != nil {
		respondError(ctx, err)
		return
	}

	utils.Success(ctx, gin.H{
		"plans":    result.Data,
		"total":    result.Total,
		"page":     result.Page,
		"limit":    result.Limit,
		"has_next": result.HasNext,
	})
}

// GetPlan returns one plan owned by the caller.
func (p *PlanController) GetPlan(ctx *gin.Context) {
	planID, ok := parseUintParam(ctx, "planId")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid plan id")
		return
	}

	user, ok := getPrincipal(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	plan, err := p.plans.Detail(ctx.Request.Context(), planID, user)
	if err != nil {
		respondError(ctx, err)
		return
	}

	utils.Success(ctx, gin.H{"plan": plan})
}

// GetChart returns the plan's stage reduction curve.
func (p *PlanController) GetChart(ctx *gin.Context) {
	planID, ok := parseUintParam(ctx, "planId")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid plan id")
		return
	}

	user, ok := getPrincipal(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	chart, err := p.plans.Chart(ctx.Request.Context(), planID, user)
	if err != nil {
		respondError(ctx, err)
		return
	}

	utils.Success(ctx, gin.H{"chart": chart})
}

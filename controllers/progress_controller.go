package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/quitline/quitline/services"
	"github.com/quitline/quitline/store"
	"github.com/quitline/quitline/utils"
)

// ProgressController exposes the daily record operations.
type ProgressController struct {
	progress *services.ProgressService
}

// NewProgressController creates a new ProgressController instance.
func NewProgressController(progress *services.ProgressService) *ProgressController {
	return &ProgressController{progress: progress}
}

const dateLayout = "2006-01-02"

func parseDate(raw string) (time.Time, bool) {
	if t, err := time.Parse(dateLayout, raw); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// CreateRecord logs one day against the plan in the path.
func (p *ProgressController) CreateRecord(ctx *gin.Context) {
	planID, ok := parseUintParam(ctx, "planId")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid plan id")
		return
	}

	var req struct {
		RecordDate       string `json:"record_date" binding:"required"`
		CigarettesSmoked int    `json:"cigarettes_smoked"`
		HealthScore      *int   `json:"health_score"`
		Notes            string `json:"notes"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40002, "invalid request payload")
		return
	}

	day, ok := parseDate(req.RecordDate)
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40003, "invalid record_date")
		return
	}

	user, ok := getPrincipal(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	rec, err := p.progress.Create(ctx.Request.Context(), services.CreateRecordInput{
		PlanID:           planID,
		RecordDate:       day,
		CigarettesSmoked: req.CigarettesSmoked,
		HealthScore:      req.HealthScore,
		Notes:            req.Notes,
	}, user)
	if err != nil {
		respondError(ctx, err)
		return
	}

	utils.Success(ctx, gin.H{"record": rec})
}

// ListRecords returns the caller's records for one plan, paginated.
func (p *ProgressController) ListRecords(ctx *gin.Context) {
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

	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))
	filters := store.RecordFilters{PlanID: planID}
	if raw := ctx.Query("from"); raw != "" {
		if t, ok := parseDate(raw); ok {
			filters.From = &t
		} else {
			utils.Error(ctx, http.StatusBadRequest, 40004, "invalid from date")
			return
		}
	}
	if raw := ctx.Query("to"); raw != "" {
		if t, ok := parseDate(raw); ok {
			filters.To = &t
		} else {
			utils.Error(ctx, http.StatusBadRequest, 40005, "invalid to date")
			return
		}
	}

	result, err := p.progress.FindAll(ctx.Request.Context(), store.Pagination{Page: page, Limit: pageSize}, filters, user)
	if err != nil {
		respondError(ctx, err)
		return
	}

	utils.Success(ctx, gin.H{
		"records":  result.Data,
		"total":    result.Total,
		"page":     result.Page,
		"limit":    result.Limit,
		"has_next": result.HasNext,
	})
}

// GetRecord returns one active record by id.
func (p *ProgressController) GetRecord(ctx *gin.Context) {
	id, ok := parseUintParam(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40006, "invalid record id")
		return
	}

	user, ok := getPrincipal(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	rec, err := p.progress.FindOne(ctx.Request.Context(), id, user)
	if err != nil {
		respondError(ctx, err)
		return
	}

	utils.Success(ctx, gin.H{"record": rec})
}

// UpdateRecord applies a partial update to a record.
func (p *ProgressController) UpdateRecord(ctx *gin.Context) {
	id, ok := parseUintParam(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40006, "invalid record id")
		return
	}

	var req struct {
		RecordDate       *string `json:"record_date"`
		CigarettesSmoked *int    `json:"cigarettes_smoked"`
		HealthScore      *int    `json:"health_score"`
		Notes            *string `json:"notes"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40002, "invalid request payload")
		return
	}

	input := services.UpdateRecordInput{
		CigarettesSmoked: req.CigarettesSmoked,
		HealthScore:      req.HealthScore,
		Notes:            req.Notes,
	}
	if req.RecordDate != nil {
		day, ok := parseDate(*req.RecordDate)
		if !ok {
			utils.Error(ctx, http.StatusBadRequest, 40003, "invalid record_date")
			return
		}
		input.RecordDate = &day
	}

	user, ok := getPrincipal(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	rec, err := p.progress.Update(ctx.Request.Context(), id, input, user)
	if err != nil {
		respondError(ctx, err)
		return
	}

	utils.Success(ctx, gin.H{"record": rec})
}

// DeleteRecord soft-deletes a record.
func (p *ProgressController) DeleteRecord(ctx *gin.Context) {
	id, ok := parseUintParam(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40006, "invalid record id")
		return
	}

	user, ok := getPrincipal(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	if err := p.progress.Remove(ctx.Request.Context(), id, user); err != nil {
		respondError(ctx, err)
		return
	}

	utils.Success(ctx, gin.H{"deleted": true})
}

// GetStreak returns the plan's current clean-day streak.
func (p *ProgressController) GetStreak(ctx *gin.Context) {
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

	streak, err := p.progress.Streak(ctx.Request.Context(), planID, user)
	if err != nil {
		respondError(ctx, err)
		return
	}

	utils.Success(ctx, gin.H{"plan_id": planID, "streak": streak})
}

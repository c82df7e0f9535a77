package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/quitline/quitline/middleware"
	"github.com/quitline/quitline/services"
	"github.com/quitline/quitline/utils"
)

func getUserID(ctx *gin.Context) (uint, bool) {
	value, exists := ctx.Get(middleware.ContextUserIDKey)
	if !exists {
		return 0, false
	}

	switch v := value.(type) {
	case uint:
		return v, true
	case int:
		return uint(v), true
	case int64:
		return uint(v), true
	case float64:
		return uint(v), true
	default:
		return 0, false
	}
}

func getPrincipal(ctx *gin.Context) (services.Principal, bool) {
	userID, ok := getUserID(ctx)
	if !ok {
		return services.Principal{}, false
	}
	role, _ := ctx.Get(middleware.ContextRoleKey)
	roleStr, _ := role.(string)
	return services.Principal{UserID: userID, Role: roleStr}, true
}

func parsePagination(pageStr, sizeStr string) (int, int) {
	page := 1
	pageSize := 10
	if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
		page = p
	}
	if s, err := strconv.Atoi(sizeStr); err == nil && s > 0 && s <= 100 {
		pageSize = s
	}
	return page, pageSize
}

func parseUintParam(ctx *gin.Context, name string) (uint, bool) {
	raw := ctx.Param(name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// respondError maps a service failure onto the HTTP envelope.
func respondError(ctx *gin.Context, err error) {
	if ae, ok := services.AsAppError(err); ok {
		utils.Error(ctx, statusForKind(ae.Kind), ae.Code, ae.Message)
		return
	}
	utils.Error(ctx, http.StatusInternalServerError, 50000, "internal error")
}

func statusForKind(kind string) int {
	switch kind {
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindForbidden:
		return http.StatusForbidden
	case services.KindBadRequest:
		return http.StatusBadRequest
	case services.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

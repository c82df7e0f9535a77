package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quitline/quitline/utils"
)

func authTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	t.Setenv("JWT_SECRET", "test-secret")
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/me", AuthRequired(), func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{
			"user_id":  ctx.MustGet(ContextUserIDKey),
			"username": ctx.MustGet(ContextUsernameKey),
			"role":     ctx.MustGet(ContextRoleKey),
		})
	})
	return r
}

func TestAuthRequiredAcceptsIssuedToken(t *testing.T) {
	r := authTestRouter(t)

	token, err := utils.GenerateToken(42, "linh", "user", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user_id":42`)
	assert.Contains(t, w.Body.String(), `"username":"linh"`)
}

func TestAuthRequiredRejectsBadRequests(t *testing.T) {
	r := authTestRouter(t)

	expired, err := utils.GenerateToken(42, "linh", "user", -time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "wrong scheme", header: "Basic abc"},
		{name: "empty bearer token", header: "Bearer "},
		{name: "garbage token", header: "Bearer not.a.jwt"},
		{name: "expired token", header: "Bearer " + expired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

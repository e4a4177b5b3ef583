package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulse/internal/constants"
	"pulse/pkg/logging"
)

func TestAuthenticateAndRequireRoles(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := newTestTokenManager(t)

	router := gin.New()
	router.GET("/me", Authenticate(m), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"id":       CurrentUserID(c),
			"roles":    CurrentRoles(c),
			"ctx_user": logging.GetUserID(c.Request.Context()),
		})
	})
	router.GET("/admin", Authenticate(m), RequireRoles(constants.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	customer, err := m.GenerateAccessToken("user-1", []string{constants.RoleCustomer})
	require.NoError(t, err)
	admin, err := m.GenerateAccessToken("user-2", []string{constants.RoleCustomer, constants.RoleAdmin})
	require.NoError(t, err)
	refresh, err := m.GenerateRefreshToken("user-1")
	require.NoError(t, err)

	tests := []struct {
		name       string
		path       string
		header     string
		wantStatus int
	}{
		{name: "no header", path: "/me", wantStatus: http.StatusUnauthorized},
		{name: "not bearer", path: "/me", header: "Basic abc", wantStatus: http.StatusUnauthorized},
		{name: "refresh token", path: "/me", header: "Bearer " + refresh, wantStatus: http.StatusUnauthorized},
		{name: "customer", path: "/me", header: "Bearer " + customer, wantStatus: http.StatusOK},
		{name: "customer on admin route", path: "/admin", header: "Bearer " + customer, wantStatus: http.StatusForbidden},
		{name: "admin", path: "/admin", header: "Bearer " + admin, wantStatus: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusOK {
				assert.JSONEq(t, `{"id":"user-1","roles":["customer"],"ctx_user":"user-1"}`, w.Body.String())
			}
		})
	}
}

package user

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulse/internal/constants"
	"pulse/internal/logger"
)

// testGuards authenticate the user named in the X-User header. Admins are
// listed in X-Role.
func testGuards() Guards {
	return Guards{
		Authenticate: func(c *gin.Context) {
			id := c.GetHeader("X-User")
			if id == "" {
				c.AbortWithStatus(http.StatusUnauthorized)
				return
			}
			c.Set(constants.ContextUserID, id)
			c.Next()
		},
		Member: func(c *gin.Context) { c.Next() },
		Admin: func(c *gin.Context) {
			if c.GetHeader("X-Role") != constants.RoleAdmin {
				c.AbortWithStatus(http.StatusForbidden)
				return
			}
			c.Next()
		},
	}
}

func newTestRouter(env *testEnv, selfhosted bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewHandler(env.service, logger.NopLogger(), selfhosted, "https://client.example.com").
		RegisterRoutes(router, testGuards())
	return router
}

func doRequest(router *gin.Engine, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandler_Routes(t *testing.T) {
	member := map[string]string{"X-User": aliceID}
	admin := map[string]string{"X-User": aliceID, "X-Role": constants.RoleAdmin}

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		headers    map[string]string
		selfhosted bool
		wantStatus int
	}{
		{name: "unauthenticated", method: http.MethodGet, path: "/api/v1/user/export", wantStatus: http.StatusUnauthorized},
		{name: "selfhosted", method: http.MethodGet, path: "/api/v1/user/export", headers: member, selfhosted: true, wantStatus: http.StatusForbidden},
		{name: "list requires admin", method: http.MethodGet, path: "/api/v1/user", headers: member, wantStatus: http.StatusForbidden},
		{name: "list", method: http.MethodGet, path: "/api/v1/user?take=5000", headers: admin, wantStatus: http.StatusOK},
		{name: "search", method: http.MethodGet, path: "/api/v1/user/search?query=alice", headers: admin, wantStatus: http.StatusOK},
		{name: "create", method: http.MethodPost, path: "/api/v1/user", body: `{"email":"bob@example.com","password":"long-enough"}`, headers: admin, wantStatus: http.StatusCreated},
		{name: "create invalid email", method: http.MethodPost, path: "/api/v1/user", body: `{"email":"nope","password":"long-enough"}`, headers: admin, wantStatus: http.StatusBadRequest},
		{name: "delete unknown", method: http.MethodDelete, path: "/api/v1/user/" + bobID, headers: admin, wantStatus: http.StatusBadRequest},
		{name: "delete self", method: http.MethodDelete, path: "/api/v1/user", headers: member, wantStatus: http.StatusNoContent},
		{name: "confirm email", method: http.MethodPost, path: "/api/v1/user/confirm_email", headers: member, wantStatus: http.StatusOK},
		{name: "admin update", method: http.MethodPut, path: "/api/v1/user/" + aliceID, body: `{"plan_code":"free"}`, headers: admin, wantStatus: http.StatusOK},
		{name: "update self", method: http.MethodPut, path: "/api/v1/user", body: `{"password":"long-enough"}`, headers: member, wantStatus: http.StatusOK},
		{name: "export", method: http.MethodGet, path: "/api/v1/user/export", headers: member, wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(nil, alice())
			router := newTestRouter(env, tt.selfhosted)

			w := doRequest(router, tt.method, tt.path, tt.body, tt.headers)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
		})
	}
}

func TestHandler_SelfhostedMessage(t *testing.T) {
	router := newTestRouter(newTestEnv(nil, alice()), true)

	w := doRequest(router, http.MethodPut, "/api/v1/user", `{}`, map[string]string{"X-User": aliceID})
	require.Equal(t, http.StatusForbidden, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "This API is not available in the self-hosted mode", body["error"])
}

func TestHandler_ConfirmEmailUsesOrigin(t *testing.T) {
	env := newTestEnv(nil, alice())
	router := newTestRouter(env, false)

	w := doRequest(router, http.MethodPost, "/api/v1/user/confirm_email", "", map[string]string{"X-User": aliceID})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "true", w.Body.String())
	require.Len(t, env.mailer.sent, 1)
	assert.Equal(t, map[string]string{"url": "https://client.example.com/verify/token-1"}, env.mailer.sent[0].params)

	w = doRequest(router, http.MethodPost, "/api/v1/user/confirm_email", "", map[string]string{
		"X-User": aliceID,
		"Origin": "https://other.example.com",
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, env.mailer.sent, 2)
	assert.Equal(t, map[string]string{"url": "https://other.example.com/verify/token-2"}, env.mailer.sent[1].params)
}

func TestHandler_ExportTwiceIsRefused(t *testing.T) {
	router := newTestRouter(newTestEnv(nil, alice()), false)
	member := map[string]string{"X-User": aliceID}

	require.Equal(t, http.StatusOK, doRequest(router, http.MethodGet, "/api/v1/user/export", "", member).Code)

	w := doRequest(router, http.MethodGet, "/api/v1/user/export", "", member)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Contains(t, w.Body.String(), "only once per 14 days")
}

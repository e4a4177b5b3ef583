package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulse/internal/constants"
	"pulse/internal/filters"
	"pulse/internal/logger"
	"pulse/internal/preferences"
)

type memoryPrefs struct {
	views map[string]map[string]filters.ViewPreference
}

func newMemoryPrefs() *memoryPrefs {
	return &memoryPrefs{views: map[string]map[string]filters.ViewPreference{}}
}

func (m *memoryPrefs) All(_ context.Context, userID string) (map[string]filters.ViewPreference, error) {
	out := map[string]filters.ViewPreference{}
	for view, pref := range m.views[userID] {
		out[view] = pref
	}
	return out, nil
}

func (m *memoryPrefs) Get(_ context.Context, userID, view string) (filters.ViewPreference, bool, error) {
	pref, ok := m.views[userID][view]
	return pref, ok, nil
}

func (m *memoryPrefs) Set(_ context.Context, userID, view string, pref filters.ViewPreference) error {
	if err := preferences.Validate(view, pref); err != nil {
		return err
	}
	if m.views[userID] == nil {
		m.views[userID] = map[string]filters.ViewPreference{}
	}
	m.views[userID][view] = pref
	return nil
}

func (m *memoryPrefs) Delete(_ context.Context, userID, view string) error {
	delete(m.views[userID], view)
	return nil
}

func testAuthenticate(c *gin.Context) {
	id := c.GetHeader("X-User")
	if id == "" {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	c.Set(constants.ContextUserID, id)
	c.Next()
}

func newTestRouter(t *testing.T, traffic TrafficSource, prefs *memoryPrefs) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	require.NoError(t, RegisterValidators())

	service := newTestService(traffic, prefs)
	router := gin.New()
	NewHandler(service, prefs, logger.NopLogger()).RegisterRoutes(router, testAuthenticate)
	return router
}

func doRequest(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User", "u1")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandlerTraffic(t *testing.T) {
	traffic := &fakeTraffic{}
	router := newTestRouter(t, traffic, newMemoryPrefs())

	w := doRequest(router, http.MethodGet, "/api/v1/projects/p1/traffic?cc=US&period=4w&timeBucket=week", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var view View
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, []filters.Record{{Column: "cc", Filter: filters.Values{"US"}}}, view.Filters)
	assert.Empty(t, view.CompareFilters)
	require.Len(t, traffic.calls, 1)
	assert.Equal(t, "4w", traffic.calls[0].r.Period)
	assert.Equal(t, "week", traffic.calls[0].r.Bucket)
}

func TestHandlerProjectAccess(t *testing.T) {
	tests := []struct {
		name       string
		projectID  string
		wantStatus int
		wantCalls  int
	}{
		{name: "private project of another user", projectID: "foreign", wantStatus: http.StatusNotFound},
		{name: "public project of another user", projectID: "public", wantStatus: http.StatusOK, wantCalls: 1},
		{name: "unknown project", projectID: "missing", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			traffic := &fakeTraffic{}
			router := newTestRouter(t, traffic, newMemoryPrefs())

			w := doRequest(router, http.MethodGet, "/api/v1/projects/"+tt.projectID+"/traffic?period=7d&timeBucket=day", nil)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			assert.Len(t, traffic.calls, tt.wantCalls)

			w = doRequest(router, http.MethodPost, "/api/v1/projects/"+tt.projectID+"/filters/toggle",
				ToggleRequest{URL: "/projects/" + tt.projectID, Column: "cc", Filter: "US"})
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
		})
	}
}

func TestHandlerTrafficInvalidPeriod(t *testing.T) {
	router := newTestRouter(t, &fakeTraffic{}, newMemoryPrefs())

	w := doRequest(router, http.MethodGet, "/api/v1/projects/p1/traffic?period=5d", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "period must be one of")
}

func TestHandlerTrafficRequiresAuthentication(t *testing.T) {
	router := newTestRouter(t, &fakeTraffic{}, newMemoryPrefs())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/projects/p1/traffic", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandlerApplyAndToggle(t *testing.T) {
	router := newTestRouter(t, &fakeTraffic{}, newMemoryPrefs())

	tests := []struct {
		name       string
		path       string
		body       any
		wantStatus int
		wantURL    string
	}{
		{
			name:       "apply",
			path:       "/api/v1/projects/p1/filters/apply",
			body:       ApplyRequest{URL: "/projects/p1", Items: []filters.Item{{Column: "pg", Filter: filters.Values{"/pricing"}}}},
			wantStatus: http.StatusOK,
			wantURL:    "/projects/p1?pg=%2Fpricing",
		},
		{
			name:       "apply item without column",
			path:       "/api/v1/projects/p1/filters/apply",
			body:       ApplyRequest{URL: "/projects/p1", Items: []filters.Item{{Filter: filters.Values{"x"}}}},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "apply without url",
			path:       "/api/v1/projects/p1/filters/apply",
			body:       map[string]any{"items": []any{}},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "toggle",
			path:       "/api/v1/projects/p1/filters/toggle",
			body:       ToggleRequest{URL: "/projects/p1?cc=US", Column: "cc", Filter: "US"},
			wantStatus: http.StatusOK,
			wantURL:    "/projects/p1",
		},
		{
			name:       "toggle unknown column",
			path:       "/api/v1/projects/p1/filters/toggle",
			body:       ToggleRequest{URL: "/projects/p1", Column: "xx", Filter: "1"},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(router, http.MethodPost, tt.path, tt.body)
			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.wantURL == "" {
				return
			}

			var body struct {
				URL string `json:"url"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantURL, body.URL)
		})
	}
}

func TestHandlerPreferences(t *testing.T) {
	prefs := newMemoryPrefs()
	router := newTestRouter(t, &fakeTraffic{}, prefs)

	w := doRequest(router, http.MethodPut, "/api/v1/user/preferences/views/p1", PreferenceRequest{Period: "3M", TimeBucket: "month"})
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	w = doRequest(router, http.MethodPut, "/api/v1/user/preferences/views/p1", map[string]string{"period": "3M", "timeBucket": "minute"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(router, http.MethodGet, "/api/v1/user/preferences/views", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var listed map[string]filters.ViewPreference
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	assert.Equal(t, map[string]filters.ViewPreference{"p1": {Period: "3M", TimeBucket: "month"}}, listed)

	// The stored preference now drives the traffic period.
	traffic := &fakeTraffic{}
	router = newTestRouter(t, traffic, prefs)
	w = doRequest(router, http.MethodGet, "/api/v1/projects/p1/traffic", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, traffic.calls, 1)
	assert.Equal(t, "3M", traffic.calls[0].r.Period)

	w = doRequest(router, http.MethodDelete, "/api/v1/user/preferences/views/p1", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, prefs.views["u1"])
}

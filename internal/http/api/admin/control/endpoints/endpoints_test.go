package endpoints_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nixie-Tech-LLC/platter/internal/db"
	"github.com/Nixie-Tech-LLC/platter/internal/http/api"
	"github.com/Nixie-Tech-LLC/platter/internal/http/api/admin/control/endpoints"
	"github.com/Nixie-Tech-LLC/platter/internal/http/api/admin/control/packets"
	"github.com/Nixie-Tech-LLC/platter/internal/model"
)

type nudgeCounter struct{ n int }

func (c *nudgeCounter) Nudge() { c.n++ }

type harness struct {
	router *gin.Engine
	store  db.Store
	nudges *nudgeCounter
}

func newHarness(t *testing.T, rules endpoints.ScheduleRules) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store, err := db.NewJSONStore(afero.NewMemMapFs(), "/data")
	require.NoError(t, err)

	h := &harness{router: gin.New(), store: store, nudges: &nudgeCounter{}}
	api.MountGroup(h.router, api.GroupConfig{Prefix: "/api/admin"},
		endpoints.ItemModule(store, true),
		endpoints.PresetModule(store),
		endpoints.ScheduleModule(store, rules, h.nudges),
		endpoints.NoticeModule(store),
	)
	api.MountGroup(h.router, api.GroupConfig{Prefix: "/api"}, endpoints.HealthModule(true))
	return h
}

func (h *harness) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func (h *harness) preset(t *testing.T) packets.PresetResponse {
	t.Helper()
	w := h.do(t, http.MethodPost, "/api/admin/items", packets.CreateItemRequest{Name: "Eggs"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	item := decode[packets.ItemResponse](t, w)

	w = h.do(t, http.MethodPost, "/api/admin/presets", packets.CreatePresetRequest{Name: "Breakfast", ItemIDs: []uuid.UUID{item.ID}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode[packets.PresetResponse](t, w)
}

var base = time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)

func TestHealth(t *testing.T) {
	h := newHarness(t, endpoints.ScheduleRules{})
	w := h.do(t, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","scheduling":true}`, w.Body.String())
}

func TestItemsCRUD(t *testing.T) {
	h := newHarness(t, endpoints.ScheduleRules{})

	w := h.do(t, http.MethodPost, "/api/admin/items", map[string]any{"name": "Latte", "price_cents": 450, "category": "drinks"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	item := decode[packets.ItemResponse](t, w)
	assert.True(t, item.IsAvailable)

	off := false
	w = h.do(t, http.MethodPut, "/api/admin/items/"+item.ID.String(), packets.UpdateItemRequest{IsAvailable: &off})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.False(t, decode[packets.ItemResponse](t, w).IsAvailable)

	w = h.do(t, http.MethodGet, "/api/admin/items", nil)
	assert.Len(t, decode[[]packets.ItemResponse](t, w), 1)

	w = h.do(t, http.MethodPost, "/api/admin/items", map[string]any{"price_cents": 100})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(t, http.MethodDelete, "/api/admin/items/"+item.ID.String(), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = h.do(t, http.MethodGet, "/api/admin/items/"+item.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = h.do(t, http.MethodGet, "/api/admin/items/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPresetRejectsUnknownItems(t *testing.T) {
	h := newHarness(t, endpoints.ScheduleRules{})
	w := h.do(t, http.MethodPost, "/api/admin/presets", packets.CreatePresetRequest{Name: "Ghost", ItemIDs: []uuid.UUID{uuid.New()}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "not found")
}

func TestPresetDeleteBlockedByLiveSchedule(t *testing.T) {
	h := newHarness(t, endpoints.ScheduleRules{})
	p := h.preset(t)

	w := h.do(t, http.MethodPost, "/api/admin/schedules", packets.ScheduleRequest{
		Name: "Morning", PresetID: p.ID, StartTime: base, EndTime: base.Add(3 * time.Hour),
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = h.do(t, http.MethodDelete, "/api/admin/presets/"+p.ID.String(), nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "Morning")
}

func TestCreateScheduleValidation(t *testing.T) {
	h := newHarness(t, endpoints.ScheduleRules{MinDuration: 30 * time.Minute, MaxDuration: 12 * time.Hour})
	p := h.preset(t)

	cases := []struct {
		name string
		req  map[string]any
		code int
	}{
		{"end before start", map[string]any{"name": "x", "preset_id": p.ID, "start_time": base, "end_time": base.Add(-time.Hour)}, http.StatusBadRequest},
		{"bad recurrence", map[string]any{"name": "x", "preset_id": p.ID, "start_time": base, "end_time": base.Add(time.Hour), "recurrence": "hourly"}, http.StatusBadRequest},
		{"too short", map[string]any{"name": "x", "preset_id": p.ID, "start_time": base, "end_time": base.Add(10 * time.Minute)}, http.StatusBadRequest},
		{"too long", map[string]any{"name": "x", "preset_id": p.ID, "start_time": base, "end_time": base.Add(13 * time.Hour)}, http.StatusBadRequest},
		{"negative window", map[string]any{"name": "x", "preset_id": p.ID, "start_time": base, "end_time": base.Add(time.Hour), "window_seconds": -1}, http.StatusBadRequest},
		{"unknown preset", map[string]any{"name": "x", "preset_id": uuid.New(), "start_time": base, "end_time": base.Add(time.Hour)}, http.StatusBadRequest},
		{"missing name", map[string]any{"preset_id": p.ID, "start_time": base, "end_time": base.Add(time.Hour)}, http.StatusBadRequest},
		{"recurring window", map[string]any{"name": "x", "preset_id": p.ID, "start_time": base, "end_time": base.Add(30 * 24 * time.Hour), "window_seconds": 3600, "recurrence": "daily"}, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := h.do(t, http.MethodPost, "/api/admin/schedules", tc.req)
			assert.Equal(t, tc.code, w.Code, w.Body.String())
		})
	}
	assert.Equal(t, 1, h.nudges.n)
}

func TestScheduleConflictsAndReset(t *testing.T) {
	h := newHarness(t, endpoints.ScheduleRules{})
	p := h.preset(t)
	ctx := context.Background()

	w := h.do(t, http.MethodPost, "/api/admin/schedules", packets.ScheduleRequest{
		Name: "Lunch", PresetID: p.ID, StartTime: base, EndTime: base.Add(2 * time.Hour),
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	lunch := decode[packets.ScheduleResponse](t, w)
	assert.Equal(t, "pending", lunch.Status)
	assert.Equal(t, "none", lunch.Recurrence)

	w = h.do(t, http.MethodPost, "/api/admin/schedules", packets.ScheduleRequest{
		Name: "Brunch", PresetID: p.ID, StartTime: base.Add(2 * time.Hour), EndTime: base.Add(4 * time.Hour),
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), lunch.ID.String())

	// an ended schedule no longer blocks new ones
	stored, err := h.store.GetSchedule(ctx, lunch.ID)
	require.NoError(t, err)
	msg := "Next occurrence is after schedule end time"
	stored.Status = model.StatusEnded
	stored.ErrorMessage = &msg
	require.NoError(t, h.store.UpdateSchedule(ctx, stored.ID, stored))

	w = h.do(t, http.MethodPost, "/api/admin/schedules", packets.ScheduleRequest{
		Name: "Brunch", PresetID: p.ID, StartTime: base.Add(2 * time.Hour), EndTime: base.Add(4 * time.Hour),
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// resetting lunch now collides with brunch
	w = h.do(t, http.MethodPost, "/api/admin/schedules/"+lunch.ID.String()+"/reset", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	// move it out of the way and it is pending again with no error
	w = h.do(t, http.MethodPut, "/api/admin/schedules/"+lunch.ID.String(), packets.ScheduleRequest{
		Name: "Lunch", PresetID: p.ID, StartTime: base.Add(5 * time.Hour), EndTime: base.Add(6 * time.Hour),
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[packets.ScheduleResponse](t, w)
	assert.Equal(t, "pending", updated.Status)
	assert.Nil(t, updated.ErrorMessage)

	w = h.do(t, http.MethodDelete, "/api/admin/schedules/"+lunch.ID.String(), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = h.do(t, http.MethodGet, "/api/admin/schedules/"+lunch.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	assert.Equal(t, 4, h.nudges.n)
}

func TestOverlapAllowed(t *testing.T) {
	h := newHarness(t, endpoints.ScheduleRules{AllowOverlap: true})
	p := h.preset(t)
	for i := 0; i < 2; i++ {
		w := h.do(t, http.MethodPost, "/api/admin/schedules", packets.ScheduleRequest{
			Name: "Same", PresetID: p.ID, StartTime: base, EndTime: base.Add(time.Hour),
		})
		assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}
}

func TestRecurringWindowsCompareWholeRange(t *testing.T) {
	breakfast := func(p packets.PresetResponse) packets.ScheduleRequest {
		return packets.ScheduleRequest{
			Name: "Breakfast", PresetID: p.ID, Recurrence: "daily", WindowSeconds: 3600,
			StartTime: base.Add(time.Hour), EndTime: base.AddDate(0, 0, 30),
		}
	}
	lunch := func(p packets.PresetResponse) packets.ScheduleRequest {
		return packets.ScheduleRequest{
			Name: "Lunch", PresetID: p.ID, Recurrence: "daily", WindowSeconds: 3600,
			StartTime: base.Add(4 * time.Hour), EndTime: base.AddDate(0, 0, 30),
		}
	}

	// daily windows 9-10 and 12-13 never meet, but the date ranges do
	h := newHarness(t, endpoints.ScheduleRules{})
	p := h.preset(t)
	w := h.do(t, http.MethodPost, "/api/admin/schedules", breakfast(p))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = h.do(t, http.MethodPost, "/api/admin/schedules", lunch(p))
	assert.Equal(t, http.StatusConflict, w.Code)

	h = newHarness(t, endpoints.ScheduleRules{AllowOverlap: true})
	p = h.preset(t)
	w = h.do(t, http.MethodPost, "/api/admin/schedules", breakfast(p))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = h.do(t, http.MethodPost, "/api/admin/schedules", lunch(p))
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestNotices(t *testing.T) {
	h := newHarness(t, endpoints.ScheduleRules{})

	w := h.do(t, http.MethodPost, "/api/admin/notices", packets.CreateNoticeRequest{Title: "Closed early"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	n := decode[packets.NoticeResponse](t, w)
	assert.True(t, n.IsActive)

	off := false
	w = h.do(t, http.MethodPut, "/api/admin/notices/"+n.ID.String(), packets.UpdateNoticeRequest{IsActive: &off})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.False(t, decode[packets.NoticeResponse](t, w).IsActive)

	w = h.do(t, http.MethodPut, "/api/admin/notices/"+uuid.NewString(), packets.UpdateNoticeRequest{IsActive: &off})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = h.do(t, http.MethodDelete, "/api/admin/notices/"+n.ID.String(), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = h.do(t, http.MethodGet, "/api/admin/notices", nil)
	assert.Empty(t, decode[[]packets.NoticeResponse](t, w))
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Shootdown/internal/domain/models"
	"Shootdown/internal/service/ratelimit"
	"Shootdown/internal/usecase"
	xlogger "Shootdown/pkg/logger"
)

type fakeViews struct {
	view      *models.View
	err       error
	healthErr error
	limit     int
}

func (f *fakeViews) View(_ context.Context, _ string) (*models.View, error) {
	return f.view, f.err
}

func (f *fakeViews) DateOptions(_ context.Context, limit int) (*models.DateOptions, error) {
	f.limit = limit
	return &models.DateOptions{
		DateLabel: []string{"2026-01-14", "2026-01-13", "2026-01-12"},
		DateValue: []int{20260114, 20260113, 20260112},
	}, nil
}

func (f *fakeViews) Health(context.Context) error { return f.healthErr }

func newTestServer(f *fakeViews, limiter *ratelimit.Limiter) *echo.Echo {
	e := echo.New()
	NewResidualValueHandler(xlogger.NewNop(), f, limiter, 3).RegisterRoutes(e)
	return e
}

func get(e *echo.Echo, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestResidualValueOK(t *testing.T) {
	f := &fakeViews{view: &models.View{
		Bear:     models.SideView{RangeLabel: []string{"19,875 - 19,999"}, Net: []int64{150}},
		Bull:     models.SideView{RangeLabel: []string{"19,850 - 19,875"}, Net: []int64{20}},
		BullMax:  1,
		BearCall: 2,
		Max:      150,
		HSIClose: 19875,
	}}
	e := newTestServer(f, nil)

	for _, target := range []string{"/api/residual_value/?date=20260114", "/api/residual_value?date=20260114"} {
		rec := get(e, target)
		require.Equal(t, http.StatusOK, rec.Code, target)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, 150.0, body["max"])
		assert.Equal(t, 19875.0, body["hsi_close"])
		assert.NotContains(t, body, "status")
	}
}

func TestResidualValueMissingDate(t *testing.T) {
	rec := get(newTestServer(&fakeViews{}, nil), "/api/residual_value/")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Missing required parameter 'date' (format: YYYYMMDD)")
}

func TestResidualValueMalformedDate(t *testing.T) {
	rec := get(newTestServer(&fakeViews{}, nil), "/api/residual_value/?date=2026-01-14")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"field":"date"`)
}

func TestResidualValueErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		text   string
	}{
		{"no data", usecase.ErrNoData, http.StatusNotFound, "no residual value data for date 20260114"},
		{"invalid", usecase.ErrInvalidDate, http.StatusBadRequest, "Invalid parameter 'date'"},
		{"internal", errors.New("db password leaked"), http.StatusInternalServerError, "Failed to process residual value data"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(newTestServer(&fakeViews{err: tt.err}, nil), "/api/residual_value/?date=20260114")
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.text)
			assert.NotContains(t, rec.Body.String(), "password")
		})
	}
}

func TestDates(t *testing.T) {
	f := &fakeViews{}
	e := newTestServer(f, nil)

	rec := get(e, "/api/residual_value/dates")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, f.limit)
	assert.JSONEq(t, `{"date_label":["2026-01-14","2026-01-13","2026-01-12"],"date_value":[20260114,20260113,20260112]}`, rec.Body.String())

	rec = get(e, "/api/residual_value/dates?limit=10")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 10, f.limit)

	rec = get(e, "/api/residual_value/dates?limit=100")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	rec := get(newTestServer(&fakeViews{}, nil), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = get(newTestServer(&fakeViews{healthErr: errors.New("down")}, nil), "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRateLimit(t *testing.T) {
	e := newTestServer(&fakeViews{view: &models.View{}}, ratelimit.New(1, 1))

	assert.Equal(t, http.StatusOK, get(e, "/api/residual_value/?date=20260114").Code)
	rec := get(e, "/api/residual_value/?date=20260114")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

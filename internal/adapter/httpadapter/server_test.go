package httpadapter_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/couchcryptid/sffd-incident-etl/internal/adapter/httpadapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

func newTestServer(readyErr error) *httpadapter.Server {
	stats := func() any {
		return map[string]any{"consumed": 12, "dropped": map[string]int{"no_on_scene": 3}}
	}
	return httpadapter.NewServer(":0", &mockReadiness{err: readyErr}, stats, slog.Default())
}

func serve(t *testing.T, srv *httpadapter.Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthzReturns200(t *testing.T) {
	rec := serve(t, newTestServer(nil), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyz(t *testing.T) {
	tests := []struct {
		name       string
		readyErr   error
		wantCode   int
		wantStatus string
	}{
		{name: "ready", wantCode: http.StatusOK, wantStatus: "ready"},
		{name: "not ready", readyErr: errors.New("pipeline has not processed any records yet"), wantCode: http.StatusServiceUnavailable, wantStatus: "not ready"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, newTestServer(tt.readyErr), "/readyz")
			assert.Equal(t, tt.wantCode, rec.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantStatus, body["status"])
			if tt.readyErr != nil {
				assert.Equal(t, tt.readyErr.Error(), body["error"])
			}
		})
	}
}

func TestStatsEndpoint(t *testing.T) {
	rec := serve(t, newTestServer(nil), "/stats")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"consumed":12,"dropped":{"no_on_scene":3}}`, rec.Body.String())
}

func TestStatsEndpointAbsentWithoutSource(t *testing.T) {
	srv := httpadapter.NewServer(":0", &mockReadiness{}, nil, slog.Default())
	rec := serve(t, srv, "/stats")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	rec := serve(t, newTestServer(nil), "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

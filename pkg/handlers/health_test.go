package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-text2sql/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-text2sql/pkg/config"
	"github.com/ekaya-inc/ekaya-text2sql/pkg/retrieval"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

type fakeStats struct{}

func (fakeStats) GetStats() datasource.ConnectionStats {
	return datasource.ConnectionStats{
		TotalConnections:     1,
		TTLMinutes:           5,
		ConnectionsByDialect: map[string]int{"postgres": 1},
	}
}

type fakeInspector struct {
	status retrieval.IndexStatus
	err    error
	asked  string
}

func (f *fakeInspector) Inspect(_ context.Context, collection string) (retrieval.IndexStatus, error) {
	f.asked = collection
	return f.status, f.err
}

func testConfig() *config.Config {
	cfg := &config.Config{Version: "test-version", Env: "test"}
	cfg.Datasource.Type = "postgres"
	return cfg
}

func TestHealthHandler_Health(t *testing.T) {
	tests := []struct {
		name           string
		db             Pinger
		stats          StatsProvider
		wantCode       int
		wantStatus     string
		wantDatasource string
		wantConns      bool
	}{
		{
			name:           "no datasource",
			wantCode:       http.StatusOK,
			wantStatus:     "ok",
			wantDatasource: "unconfigured",
		},
		{
			name:           "healthy datasource",
			db:             fakePinger{},
			stats:          fakeStats{},
			wantCode:       http.StatusOK,
			wantStatus:     "ok",
			wantDatasource: "ok",
			wantConns:      true,
		},
		{
			name:           "unreachable datasource",
			db:             fakePinger{err: errors.New("dial tcp: connection refused")},
			wantCode:       http.StatusServiceUnavailable,
			wantStatus:     "degraded",
			wantDatasource: "unreachable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHealthHandler(testConfig(), tt.db, tt.stats, false, zap.NewNop())

			rec := httptest.NewRecorder()
			handler.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.wantCode, rec.Code)
			var response HealthResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
			assert.Equal(t, tt.wantStatus, response.Status)
			assert.Equal(t, tt.wantDatasource, response.Datasource)
			if tt.wantConns {
				require.NotNil(t, response.Connections)
				assert.Equal(t, 1, response.Connections.TotalConnections)
			} else {
				assert.Nil(t, response.Connections)
			}
		})
	}
}

func TestHealthHandler_Ping(t *testing.T) {
	handler := NewHealthHandler(testConfig(), nil, nil, true, zap.NewNop())

	rec := httptest.NewRecorder()
	handler.Ping(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var response PingResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	assert.Equal(t, "ok", response.Status)
	assert.Equal(t, "test-version", response.Version)
	assert.Equal(t, "ekaya-text2sql", response.Service)
	assert.Equal(t, "test", response.Environment)
	assert.Equal(t, "postgres", response.Dialect)
	assert.True(t, response.Retrieval)
	assert.NotEmpty(t, response.GoVersion)
}

func TestHealthHandler_PingListsAdapters(t *testing.T) {
	datasource.Register(datasource.AdapterRegistration{
		Info: datasource.AdapterInfo{Dialect: "handlers-test", DisplayName: "Handlers Test"},
	})
	handler := NewHealthHandler(testConfig(), nil, nil, false, zap.NewNop())

	rec := httptest.NewRecorder()
	handler.Ping(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var response PingResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	assert.Contains(t, response.Adapters, datasource.AdapterInfo{Dialect: "handlers-test", DisplayName: "Handlers Test"})
}

func TestHealthHandler_HealthReportsReferenceIndex(t *testing.T) {
	tests := []struct {
		name       string
		db         Pinger
		index      *fakeInspector
		wantCode   int
		wantStatus string
		wantReady  *bool
		wantError  string
	}{
		{
			name:       "ready index",
			db:         fakePinger{},
			index:      &fakeInspector{status: retrieval.IndexStatus{Backend: "sqlite", Collection: "sql_references", Ready: true, References: 12}},
			wantCode:   http.StatusOK,
			wantStatus: "ok",
			wantReady:  boolPtr(true),
		},
		{
			name:       "missing collection degrades without failing",
			db:         fakePinger{},
			index:      &fakeInspector{status: retrieval.IndexStatus{Backend: "milvus", Collection: "sql_references", References: -1}},
			wantCode:   http.StatusOK,
			wantStatus: "degraded",
			wantReady:  boolPtr(false),
		},
		{
			name:       "unreachable index",
			db:         fakePinger{},
			index:      &fakeInspector{err: errors.New("dial tcp 10.0.0.7:19530: connection refused")},
			wantCode:   http.StatusOK,
			wantStatus: "degraded",
			wantError:  "connection refused",
		},
		{
			name:       "datasource failure still answers 503",
			db:         fakePinger{err: errors.New("connection refused")},
			index:      &fakeInspector{status: retrieval.IndexStatus{Backend: "sqlite", Ready: true}},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "degraded",
			wantReady:  boolPtr(true),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHealthHandler(testConfig(), tt.db, nil, true, zap.NewNop()).
				WithReferenceIndex(tt.index, "sql_references")

			rec := httptest.NewRecorder()
			handler.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, "sql_references", tt.index.asked)
			var response HealthResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
			assert.Equal(t, tt.wantStatus, response.Status)
			if tt.wantReady != nil {
				require.NotNil(t, response.References)
				assert.Equal(t, *tt.wantReady, response.References.Ready)
			} else {
				assert.Nil(t, response.References)
			}
			if tt.wantError != "" {
				assert.Contains(t, response.ReferencesError, tt.wantError)
			} else {
				assert.Empty(t, response.ReferencesError)
			}
		})
	}
}

func boolPtr(b bool) *bool { return &b }

func TestHealthHandler_RegisterRoutes(t *testing.T) {
	mux := http.NewServeMux()
	NewHealthHandler(testConfig(), nil, nil, false, nil).RegisterRoutes(mux)

	for _, path := range []string{"/health", "/ping"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

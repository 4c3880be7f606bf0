package handlers

import (
	"context"
	"net/http"
	"os"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-text2sql/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-text2sql/pkg/config"
	"github.com/ekaya-inc/ekaya-text2sql/pkg/logging"
	"github.com/ekaya-inc/ekaya-text2sql/pkg/retrieval"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status      string                      `json:"status"`
	Datasource  string                      `json:"datasource"`
	Error       string                      `json:"error,omitempty"`
	Connections *datasource.ConnectionStats `json:"connections,omitempty"`
	References  *retrieval.IndexStatus      `json:"references,omitempty"`
	// ReferencesError is set when the reference index could not be inspected.
	ReferencesError string `json:"references_error,omitempty"`
}

// PingResponse contains service status and version information.
type PingResponse struct {
	Status      string                   `json:"status"`
	Version     string                   `json:"version"`
	Service     string                   `json:"service"`
	GoVersion   string                   `json:"go_version"`
	Hostname    string                   `json:"hostname"`
	Environment string                   `json:"environment"`
	Dialect     string                   `json:"dialect"`
	Retrieval   bool                     `json:"retrieval_enabled"`
	Adapters    []datasource.AdapterInfo `json:"adapters"`
}

// Pinger checks the datasource.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StatsProvider reports connection pool statistics.
type StatsProvider interface {
	GetStats() datasource.ConnectionStats
}

// HealthHandler handles health check and ping endpoints.
type HealthHandler struct {
	cfg              *config.Config
	db               Pinger
	stats            StatsProvider
	retrievalEnabled bool
	index            retrieval.IndexInspector
	collection       string
	logger           *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. db and stats may be nil.
func NewHealthHandler(cfg *config.Config, db Pinger, stats StatsProvider, retrievalEnabled bool, logger *zap.Logger) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{cfg: cfg, db: db, stats: stats, retrievalEnabled: retrievalEnabled, logger: logger}
}

// WithReferenceIndex makes /health report on collection in index.
func (h *HealthHandler) WithReferenceIndex(index retrieval.IndexInspector, collection string) *HealthHandler {
	h.index = index
	h.collection = collection
	return h
}

// RegisterRoutes registers the health handler's routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ping", h.Ping)
}

// Health handles GET /health requests. The datasource is pinged; a failed
// ping answers 503 so orchestrators stop routing to this instance. A missing
// or unreachable reference index only degrades the status, since generation
// still works without references.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{Status: "ok", Datasource: "unconfigured"}
	status := http.StatusOK

	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			response.Status = "degraded"
			response.Datasource = "unreachable"
			response.Error = logging.SanitizeError(err)
			status = http.StatusServiceUnavailable
		} else {
			response.Datasource = "ok"
		}
	}
	if h.stats != nil {
		stats := h.stats.GetStats()
		response.Connections = &stats
	}
	if h.index != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		indexStatus, err := h.index.Inspect(ctx, h.collection)
		switch {
		case err != nil:
			response.Status = "degraded"
			response.ReferencesError = logging.SanitizeError(err)
		case !indexStatus.Ready:
			response.Status = "degraded"
			response.References = &indexStatus
		default:
			response.References = &indexStatus
		}
	}

	if err := WriteJSON(w, status, response); err != nil {
		h.logger.Error("Failed to encode health response", zap.Error(err))
	}
}

// Ping handles GET /ping requests.
// Returns detailed service information including version and environment.
func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	hostname, err := os.Hostname()
	if err != nil {
		http.Error(w, "failed to get hostname", http.StatusInternalServerError)
		return
	}

	response := PingResponse{
		Status:      "ok",
		Version:     h.cfg.Version,
		Service:     "ekaya-text2sql",
		GoVersion:   runtime.Version(),
		Hostname:    hostname,
		Environment: h.cfg.Env,
		Dialect:     h.cfg.Datasource.Type,
		Retrieval:   h.retrievalEnabled,
		Adapters:    datasource.RegisteredAdapters(),
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode ping response", zap.Error(err))
	}
}

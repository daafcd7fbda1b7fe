package handlers

import (
	"context"
	"net/http"
	"os"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-questionnaire/pkg/config"
)

// fullCheckTimeout bounds the dependency checks of /health/full.
const fullCheckTimeout = 15 * time.Second

// PingResponse contains service status and version information.
type PingResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Service     string `json:"service"`
	GoVersion   string `json:"go_version"`
	Hostname    string `json:"hostname"`
	Environment string `json:"environment"`
}

// FullHealthResponse reports the state of each dependency.
type FullHealthResponse struct {
	Status   string            `json:"status"`
	Database string            `json:"database"`
	Redis    string            `json:"redis,omitempty"`
	LLM      string            `json:"llm"`
	Model    string            `json:"model"`
	Errors   map[string]string `json:"errors,omitempty"`
}

// Pinger checks a backing store. *database.DB satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// CredentialValidator checks that the generative model accepts requests.
type CredentialValidator interface {
	ValidateCredentials(ctx context.Context) bool
	Model() string
}

// HealthHandler handles health check and ping endpoints.
type HealthHandler struct {
	cfg    *config.Config
	db     Pinger
	redis  Pinger // nil when Redis is not configured
	llm    CredentialValidator
	logger *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. redis may be nil.
func NewHealthHandler(cfg *config.Config, db Pinger, redis Pinger, llm CredentialValidator, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{cfg: cfg, db: db, redis: redis, llm: llm, logger: logger}
}

// RegisterRoutes registers the health handler's routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /health/full", h.FullHealth)
	mux.HandleFunc("GET /ping", h.Ping)
}

// Health handles GET /health requests.
// Returns a simple "ok" status for load balancer health checks.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// FullHealth handles GET /health/full. It pings the database (and Redis when
// configured) and sends a minimal request to the generative model.
func (h *HealthHandler) FullHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), fullCheckTimeout)
	defer cancel()

	resp := FullHealthResponse{Status: "ok", Database: "ok", LLM: "ok", Errors: map[string]string{}}

	if err := h.db.Ping(ctx); err != nil {
		h.logger.Warn("Database health check failed", zap.Error(err))
		resp.Database = "error"
		resp.Errors["database"] = "database unreachable"
	}

	if h.redis != nil {
		resp.Redis = "ok"
		if err := h.redis.Ping(ctx); err != nil {
			h.logger.Warn("Redis health check failed", zap.Error(err))
			resp.Redis = "error"
			resp.Errors["redis"] = "redis unreachable"
		}
	}

	resp.Model = h.llm.Model()
	if !h.llm.ValidateCredentials(ctx) {
		resp.LLM = "error"
		resp.Errors["llm"] = "llm credentials rejected or provider unreachable"
	}

	status := http.StatusOK
	if len(resp.Errors) > 0 {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	} else {
		resp.Errors = nil
	}

	if err := WriteJSON(w, status, resp); err != nil {
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
		Service:     "ekaya-questionnaire",
		GoVersion:   runtime.Version(),
		Hostname:    hostname,
		Environment: h.cfg.Env,
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode ping response", zap.Error(err))
	}
}

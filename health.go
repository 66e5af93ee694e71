package strata

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthStatus tracks application health
type HealthStatus struct {
	mu      sync.RWMutex
	healthy bool
	ready   bool
}

// NewHealthStatus returns a status that is neither healthy nor ready.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{}
}

// SetHealthy records the liveness reported by /health.
func (h *HealthStatus) SetHealthy(healthy bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.healthy = healthy
}

// SetReady records the readiness reported by /ready.
func (h *HealthStatus) SetReady(ready bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ready = ready
}

// IsHealthy reports whether the service is alive.
func (h *HealthStatus) IsHealthy() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.healthy
}

// IsReady reports whether the service accepts traffic.
func (h *HealthStatus) IsReady() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.ready
}

// OpsRouter serves /health (liveness), /ready (readiness) and /metrics.
func OpsRouter(status *HealthStatus, gatherer prometheus.Gatherer) http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if status.IsHealthy() {
			writeStatus(w, http.StatusOK, "healthy")
			return
		}
		writeStatus(w, http.StatusServiceUnavailable, "unhealthy")
	}).Methods(http.MethodGet, http.MethodHead)

	router.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if status.IsReady() {
			writeStatus(w, http.StatusOK, "ready")
			return
		}
		writeStatus(w, http.StatusServiceUnavailable, "not ready")
	}).Methods(http.MethodGet, http.MethodHead)

	if gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).
			Methods(http.MethodGet)
	}

	return router
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
}

// MetricsRouter serves /metrics alone, for a dedicated metrics port.
func MetricsRouter(gatherer prometheus.Gatherer) http.Handler {
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).
		Methods(http.MethodGet)
	return router
}

func startAuxServer(name string, port int, handler http.Handler, logger *slog.Logger) *http.Server {
	server := &http.Server{
		Addr:              ":" + strconv.Itoa(port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("starting "+name+" server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(name+" server error", "error", err)
		}
	}()

	return server
}

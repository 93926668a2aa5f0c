package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/cuemby/envgate/pkg/log"
	"github.com/cuemby/envgate/pkg/metrics"
)

// ReadinessChecker reports whether the server can answer routing queries
type ReadinessChecker interface {
	Ready() error
}

// HealthServer provides HTTP health check and metrics endpoints
type HealthServer struct {
	checker ReadinessChecker
	mux     *http.ServeMux
	version string
}

// NewHealthServer creates a new health check HTTP server. checker may be
// nil, in which case /ready reports not ready.
func NewHealthServer(checker ReadinessChecker, version string) *HealthServer {
	mux := http.NewServeMux()
	hs := &HealthServer{
		checker: checker,
		mux:     mux,
		version: version,
	}

	mux.HandleFunc("/health", hs.healthHandler)
	mux.HandleFunc("/ready", hs.readyHandler)
	mux.HandleFunc("/live", metrics.LivenessHandler())
	mux.HandleFunc("/components", metrics.HealthHandler())
	mux.Handle("/metrics", metrics.Handler())

	return hs
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (hs *HealthServer) Start(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:         addr,
		Handler:      hs.mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()
	log.Logger.Info().Str("addr", addr).Msg("Health server listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version,omitempty"`
}

// ReadyResponse represents the readiness check response
type ReadyResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
	Message   string            `json:"message,omitempty"`
}

// healthHandler returns 200 while the process is alive
func (hs *HealthServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   hs.version,
	})
}

// readyHandler combines the manager check with the critical component registry
func (hs *HealthServer) readyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	checks := make(map[string]string)
	ready := true
	var message string

	if hs.checker == nil {
		checks["manager"] = "not initialized"
		ready = false
		message = "Manager not initialized"
	} else if err := hs.checker.Ready(); err != nil {
		checks["manager"] = "error: " + err.Error()
		ready = false
		message = err.Error()
	} else {
		checks["manager"] = "ok"
	}

	readiness := metrics.GetReadiness()
	for name, state := range readiness.Components {
		checks[name] = state
	}
	if readiness.Status != metrics.StatusReady {
		ready = false
		if message == "" {
			message = readiness.Message
		}
	}

	status := "ready"
	statusCode := http.StatusOK
	if !ready {
		status = "not ready"
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, ReadyResponse{
		Status:    status,
		Timestamp: time.Now(),
		Checks:    checks,
		Message:   message,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// GetHandler returns the HTTP handler for embedding in other servers
func (hs *HealthServer) GetHandler() http.Handler {
	return hs.mux
}

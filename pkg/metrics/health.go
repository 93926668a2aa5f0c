package metrics

import (
	"encoding/json"
	"net/http"
	"slices"
	"sync"
	"time"
)

// Component names reported by envgate
const (
	ComponentStorage    = "storage"
	ComponentConfig     = "config"
	ComponentReconciler = "reconciler"
	ComponentConfigRepo = "configrepo"
)

// Overall states
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
	StatusReady     = "ready"
	StatusNotReady  = "not_ready"
)

// criticalComponents gate readiness and make the process unhealthy when they
// fail. Any other component only degrades it.
var criticalComponents = []string{ComponentStorage, ComponentConfig, ComponentReconciler}

// HealthStatus is the JSON body of the health and readiness endpoints
type HealthStatus struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Components map[string]string `json:"components,omitempty"`
	Message    string            `json:"message,omitempty"`
	Version    string            `json:"version,omitempty"`
	Uptime     string            `json:"uptime,omitempty"`
}

// ComponentHealth is the last reported state of one component
type ComponentHealth struct {
	Name    string
	Healthy bool
	Message string
	Updated time.Time
}

func (c ComponentHealth) describe() string {
	if c.Healthy {
		return StatusHealthy
	}
	return StatusUnhealthy + ": " + c.Message
}

type componentRegistry struct {
	mu         sync.RWMutex
	components map[string]ComponentHealth
	started    time.Time
	version    string
}

var registry = newRegistry()

func newRegistry() *componentRegistry {
	return &componentRegistry{
		components: make(map[string]ComponentHealth),
		started:    time.Now(),
	}
}

func (r *componentRegistry) status(state, message string, components map[string]string) HealthStatus {
	return HealthStatus{
		Status:     state,
		Timestamp:  time.Now(),
		Components: components,
		Message:    message,
		Version:    r.version,
		Uptime:     time.Since(r.started).Round(time.Second).String(),
	}
}

// SetVersion sets the version reported by the health endpoints
func SetVersion(version string) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.version = version
}

// RegisterComponent records the state of a component, replacing any earlier one
func RegisterComponent(name string, healthy bool, message string) {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	registry.components[name] = ComponentHealth{
		Name:    name,
		Healthy: healthy,
		Message: message,
		Updated: time.Now(),
	}
}

// UpdateComponent is RegisterComponent under the name components use after startup
func UpdateComponent(name string, healthy bool, message string) {
	RegisterComponent(name, healthy, message)
}

// Components returns the registered components sorted by name
func Components() []ComponentHealth {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	out := make([]ComponentHealth, 0, len(registry.components))
	for _, c := range registry.components {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b ComponentHealth) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		}
		return 0
	})
	return out
}

// GetHealth is unhealthy when a critical component failed and degraded when
// only other components did
func GetHealth() HealthStatus {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	state := StatusHealthy
	components := make(map[string]string, len(registry.components))
	for name, c := range registry.components {
		components[name] = c.describe()
		if c.Healthy {
			continue
		}
		if slices.Contains(criticalComponents, name) {
			state = StatusUnhealthy
		} else if state == StatusHealthy {
			state = StatusDegraded
		}
	}
	return registry.status(state, "", components)
}

// GetReadiness requires every critical component to be registered and healthy
func GetReadiness() HealthStatus {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	state := StatusReady
	message := ""
	components := make(map[string]string, len(criticalComponents))
	for _, name := range criticalComponents {
		c, ok := registry.components[name]
		switch {
		case !ok:
			components[name] = "not registered"
		case !c.Healthy:
			components[name] = "not ready: " + c.Message
		default:
			components[name] = StatusReady
			continue
		}
		if state == StatusReady {
			state = StatusNotReady
			message = "waiting for " + name
		}
	}
	return registry.status(state, message, components)
}

func writeStatus(w http.ResponseWriter, ok bool, body any) {
	w.Header().Set("Content-Type", "application/json")
	if ok {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(body)
}

// HealthHandler serves GetHealth. A degraded process still answers 200.
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := GetHealth()
		writeStatus(w, health.Status != StatusUnhealthy, health)
	}
}

// ReadyHandler serves GetReadiness
func ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		readiness := GetReadiness()
		writeStatus(w, readiness.Status == StatusReady, readiness)
	}
}

// LivenessHandler answers 200 while the process runs
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		registry.mu.RLock()
		uptime := time.Since(registry.started).Round(time.Second).String()
		registry.mu.RUnlock()
		writeStatus(w, true, map[string]string{"status": "alive", "uptime": uptime})
	}
}

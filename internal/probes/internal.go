package probes

import (
	"sync"

	"github.com/openwatch/netmon-server/internal/models"
)

// InternalRegistry serves server-internal metrics (status, queue depths,
// self-monitoring values) by name.
type InternalRegistry struct {
	mu      sync.RWMutex
	metrics map[string]func() (string, error)
}

func NewInternalRegistry() *InternalRegistry {
	return &InternalRegistry{metrics: make(map[string]func() (string, error))}
}

func (r *InternalRegistry) Register(name string, fn func() (string, error)) {
	r.mu.Lock()
	r.metrics[name] = fn
	r.mu.Unlock()
}

// Read resolves and evaluates an internal metric. Unknown names are
// not-supported; evaluation failures are collection errors.
func (r *InternalRegistry) Read(name string) (string, models.ProbeResult) {
	r.mu.RLock()
	fn, ok := r.metrics[name]
	r.mu.RUnlock()
	if !ok {
		return "", models.ProbeNotSupported
	}
	value, err := fn()
	if err != nil {
		return "", models.ProbeCollectionError
	}
	return value, models.ProbeSuccess
}

// Definitions lists registered metrics for the parameter catalog.
func (r *InternalRegistry) Definitions() []models.ParameterDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]models.ParameterDefinition, 0, len(r.metrics))
	for name := range r.metrics {
		defs = append(defs, models.ParameterDefinition{Name: name, DataType: "string"})
	}
	return defs
}

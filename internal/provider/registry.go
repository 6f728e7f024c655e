package provider

import (
	"sort"
	"strings"
	"sync"
)

// MetricsRegistry tracks MetricsProvider instances by nickname for
// aggregated reporting.
type MetricsRegistry struct {
	mu        sync.RWMutex
	providers map[string]*MetricsProvider
}

var globalRegistry = &MetricsRegistry{
	providers: make(map[string]*MetricsProvider),
}

// Register adds a MetricsProvider to the registry, replacing any earlier
// instance for the same nickname.
func (r *MetricsRegistry) Register(mp *MetricsProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[mp.Nickname()] = mp
}

// Get retrieves the instance registered for a nickname.
func (r *MetricsRegistry) Get(nickname string) *MetricsProvider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.providers[nickname]
}

// Snapshots returns all metrics sorted by nickname.
func (r *MetricsRegistry) Snapshots() []Metrics {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Metrics, 0, len(r.providers))
	for _, mp := range r.providers {
		out = append(out, mp.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Nickname < out[j].Nickname })
	return out
}

// Summary returns a human-readable multi-line summary.
func (r *MetricsRegistry) Summary() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.providers) == 0 {
		return "No providers active this session."
	}

	nicknames := make([]string, 0, len(r.providers))
	for name := range r.providers {
		nicknames = append(nicknames, name)
	}
	sort.Strings(nicknames)

	var sb strings.Builder
	for _, name := range nicknames {
		sb.WriteString(r.providers[name].Summary())
		sb.WriteString("\n")
	}
	return sb.String()
}

// Reset clears metrics across all instances.
func (r *MetricsRegistry) Reset() {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, mp := range r.providers {
		mp.Reset()
	}
}

// RegisterMetricsProvider adds an instance to the global registry.
func RegisterMetricsProvider(mp *MetricsProvider) {
	globalRegistry.Register(mp)
}

// GetMetricsProvider retrieves an instance from the global registry.
func GetMetricsProvider(nickname string) *MetricsProvider {
	return globalRegistry.Get(nickname)
}

// GlobalRegistry returns the global metrics registry instance.
func GlobalRegistry() *MetricsRegistry {
	return globalRegistry
}

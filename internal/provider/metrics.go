package provider

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/normanking/infill/internal/logging"
)

// MetricsProvider wraps a provider with call counting and latency tracking.
// It is informational only and never affects control flow.
type MetricsProvider struct {
	provider Provider
	nickname string
	log      *logging.Logger

	totalInvokes int64
	totalErrors  int64
	totalEncodes int64
	totalDecodes int64

	mu           sync.RWMutex
	totalLatency time.Duration
	minLatency   time.Duration
	maxLatency   time.Duration
}

// NewMetricsProvider wraps a provider with metrics collection, keyed by the
// nickname it was constructed for.
func NewMetricsProvider(p Provider, nickname string) *MetricsProvider {
	return &MetricsProvider{
		provider:   p,
		nickname:   nickname,
		log:        logging.Global().WithComponent("metrics"),
		minLatency: time.Hour, // replaced on first call
	}
}

// Name implements Provider.
func (m *MetricsProvider) Name() string {
	return m.provider.Name()
}

// Nickname returns the config nickname this instance serves.
func (m *MetricsProvider) Nickname() string {
	return m.nickname
}

// Initialize implements Provider.
func (m *MetricsProvider) Initialize(ctx context.Context) error {
	return m.provider.Initialize(ctx)
}

// Encode implements Provider.
func (m *MetricsProvider) Encode(ctx context.Context, text string) ([]int, error) {
	atomic.AddInt64(&m.totalEncodes, 1)
	return m.provider.Encode(ctx, text)
}

// Decode implements Provider.
func (m *MetricsProvider) Decode(ctx context.Context, tokens []int) (string, error) {
	atomic.AddInt64(&m.totalDecodes, 1)
	return m.provider.Decode(ctx, tokens)
}

// Invoke implements Provider with timing and error accounting.
func (m *MetricsProvider) Invoke(ctx context.Context, req *Request) (string, error) {
	requestID := uuid.NewString()
	start := time.Now()

	m.log.Debug("starting %s/%s invoke", m.nickname, m.Name())

	result, err := m.provider.Invoke(ctx, req)

	latency := time.Since(start)

	atomic.AddInt64(&m.totalInvokes, 1)
	if err != nil {
		atomic.AddInt64(&m.totalErrors, 1)
	}

	m.mu.Lock()
	m.totalLatency += latency
	if latency < m.minLatency {
		m.minLatency = latency
	}
	if latency > m.maxLatency {
		m.maxLatency = latency
	}
	m.mu.Unlock()

	fields := map[string]interface{}{"request_id": requestID, "latency": latency}
	if err != nil {
		if IsCancellation(err) {
			m.log.WithFields(fields).Debug("%s/%s invoke cancelled", m.nickname, m.Name())
		} else {
			m.log.WithFields(fields).Warn("%s/%s invoke failed: %v", m.nickname, m.Name(), err)
		}
	} else {
		m.log.WithFields(fields).Debug("%s/%s invoke completed (%d chars)", m.nickname, m.Name(), len(result))
	}

	return result, err
}

// Metrics is a snapshot of one instance's counters.
type Metrics struct {
	Nickname     string
	Provider     string
	Invokes      int64
	Errors       int64
	Encodes      int64
	Decodes      int64
	AvgLatencyMS int64
	MinLatencyMS int64
	MaxLatencyMS int64
}

// Snapshot returns the current metrics.
func (m *MetricsProvider) Snapshot() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	invokes := atomic.LoadInt64(&m.totalInvokes)

	avg := time.Duration(0)
	min := time.Duration(0)
	if invokes > 0 {
		avg = m.totalLatency / time.Duration(invokes)
		min = m.minLatency
	}

	return Metrics{
		Nickname:     m.nickname,
		Provider:     m.Name(),
		Invokes:      invokes,
		Errors:       atomic.LoadInt64(&m.totalErrors),
		Encodes:      atomic.LoadInt64(&m.totalEncodes),
		Decodes:      atomic.LoadInt64(&m.totalDecodes),
		AvgLatencyMS: avg.Milliseconds(),
		MinLatencyMS: min.Milliseconds(),
		MaxLatencyMS: m.maxLatency.Milliseconds(),
	}
}

// Summary returns a one-line human-readable summary.
func (m *MetricsProvider) Summary() string {
	s := m.Snapshot()
	if s.Invokes == 0 {
		return fmt.Sprintf("%s (%s): no calls", s.Nickname, s.Provider)
	}
	return fmt.Sprintf("%s (%s): %d calls, %d errors, avg %dms",
		s.Nickname, s.Provider, s.Invokes, s.Errors, s.AvgLatencyMS)
}

// Reset clears all counters.
func (m *MetricsProvider) Reset() {
	atomic.StoreInt64(&m.totalInvokes, 0)
	atomic.StoreInt64(&m.totalErrors, 0)
	atomic.StoreInt64(&m.totalEncodes, 0)
	atomic.StoreInt64(&m.totalDecodes, 0)

	m.mu.Lock()
	m.totalLatency = 0
	m.minLatency = time.Hour
	m.maxLatency = 0
	m.mu.Unlock()
}

// Unwrap returns the underlying provider.
func (m *MetricsProvider) Unwrap() Provider {
	return m.provider
}

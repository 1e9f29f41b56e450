package observability

import (
	"context"
	"encoding/json"
	"expvar"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"stageplan/internal/core"
)

var (
	_ core.MetricsRecorder = (*PrometheusRecorder)(nil)
	_ core.MetricsRecorder = (*ExpvarRecorder)(nil)
	_ core.MetricsRecorder = MultiRecorder(nil)
)

// PrometheusRecorder counts and times engine operations.
type PrometheusRecorder struct {
	ops      *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewPrometheusRecorder registers the engine collectors on reg.
func NewPrometheusRecorder(reg prometheus.Registerer) (*PrometheusRecorder, error) {
	r := &PrometheusRecorder{
		ops: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "stageplan",
				Subsystem: "engine",
				Name:      "operations_total",
				Help:      "Engine entry point calls.",
			},
			[]string{"operation", "success"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "stageplan",
				Subsystem: "engine",
				Name:      "operation_duration_seconds",
				Help:      "Engine entry point duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
	for _, c := range []prometheus.Collector{r.ops, r.duration} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register engine metrics: %w", err)
		}
	}
	return r, nil
}

// Observe implements core.MetricsRecorder.
func (r *PrometheusRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	r.ops.WithLabelValues(operation, strconv.FormatBool(success)).Inc()
	r.duration.WithLabelValues(operation).Observe(duration.Seconds())
}

var (
	expvarSeq uint64
	expvarMu  sync.Mutex
)

// ExpvarRecorder publishes aggregate timing and result counters via expvar
// for deployments that prefer process-local metrics.
type ExpvarRecorder struct {
	name      string
	mu        sync.Mutex
	durations map[string]float64
	results   map[string]map[string]int64
}

// ExpvarSnapshot is a read-only view of the recorded metrics.
type ExpvarSnapshot struct {
	DurationsMS map[string]float64          `json:"durations_ms_total"`
	Results     map[string]map[string]int64 `json:"results_total"`
	RecordedAt  time.Time                   `json:"recorded_at"`
}

// NewExpvarRecorder publishes a recorder under name, or a generated unique
// name when empty. expvar names are process global; an explicit name that is
// already published is an error.
func NewExpvarRecorder(name string) (*ExpvarRecorder, error) {
	expvarMu.Lock()
	defer expvarMu.Unlock()
	if name == "" {
		for name == "" || expvar.Get(name) != nil {
			name = fmt.Sprintf("stageplan_engine_metrics_%d", atomic.AddUint64(&expvarSeq, 1))
		}
	} else if expvar.Get(name) != nil {
		return nil, fmt.Errorf("expvar %q already published", name)
	}
	rec := &ExpvarRecorder{
		name:      name,
		durations: make(map[string]float64),
		results:   make(map[string]map[string]int64),
	}
	expvar.Publish(name, expvar.Func(func() any { return rec.Snapshot() }))
	return rec, nil
}

// Name returns the expvar export name.
func (r *ExpvarRecorder) Name() string { return r.name }

// Snapshot copies the aggregated metrics.
func (r *ExpvarRecorder) Snapshot() ExpvarSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	durations := make(map[string]float64, len(r.durations))
	for op, total := range r.durations {
		durations[op] = total
	}
	results := make(map[string]map[string]int64, len(r.results))
	for op, counts := range r.results {
		cpy := make(map[string]int64, len(counts))
		for status, n := range counts {
			cpy[status] = n
		}
		results[op] = cpy
	}
	return ExpvarSnapshot{DurationsMS: durations, Results: results, RecordedAt: time.Now().UTC()}
}

// JSON renders the snapshot the way expvar serves it.
func (r *ExpvarRecorder) JSON() ([]byte, error) {
	return json.Marshal(r.Snapshot())
}

// Observe implements core.MetricsRecorder.
func (r *ExpvarRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	status := "error"
	if success {
		status = "success"
	}
	r.mu.Lock()
	r.durations[operation] += float64(duration) / float64(time.Millisecond)
	if r.results[operation] == nil {
		r.results[operation] = make(map[string]int64, 2)
	}
	r.results[operation][status]++
	r.mu.Unlock()
}

// MultiRecorder fans one observation out to several recorders.
type MultiRecorder []core.MetricsRecorder

// Observe implements core.MetricsRecorder.
func (m MultiRecorder) Observe(ctx context.Context, operation string, success bool, duration time.Duration) {
	for _, r := range m {
		if r != nil {
			r.Observe(ctx, operation, success, duration)
		}
	}
}

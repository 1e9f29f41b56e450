// Package core implements the reconciliation engine: it keeps the logical
// staged entities owned by project content in sync with their physical
// per-stage representations and wire links.
package core

import (
	"context"
	"fmt"
	"time"

	"stageplan/internal/entity"
	"stageplan/internal/project"
	"stageplan/pkg/domain"
)

// Logger captures the minimal structured logging surface the engine relies on.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// MetricsRecorder receives one observation per engine entry point call.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

type noopMetricsRecorder struct{}

func (noopMetricsRecorder) Observe(context.Context, string, bool, time.Duration) {}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// DefaultMaxCableConnections bounds cable links per entity unless overridden.
const DefaultMaxCableConnections = 5

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithClock overrides the time source used for metrics and snapshots.
func WithClock(c Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithNotifier sets the sink receiving non-success outcomes.
func WithNotifier(n domain.Notifier) Option {
	return func(e *Engine) {
		if n != nil {
			e.notifier = n
		}
	}
}

// WithMaxCableConnections bounds the logical cable neighbours per entity.
func WithMaxCableConnections(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxCables = n
		}
	}
}

type handleKey struct {
	stage  domain.StageNumber
	handle domain.Handle
}

// Engine is the reconciliation engine. It is single-threaded: callers must
// not interleave two top-level calls.
type Engine struct {
	content   *project.Content
	objects   domain.ObjectProvider
	wires     domain.WireProvider
	logger    Logger
	metrics   MetricsRecorder
	clock     Clock
	notifier  domain.Notifier
	maxCables int
	handles   map[handleKey]domain.EntityID
}

// NewEngine constructs an engine over content. The prototype table replaces
// the one content currently carries.
func NewEngine(content *project.Content, protos domain.PrototypeInfo, objects domain.ObjectProvider, wires domain.WireProvider, opts ...Option) *Engine {
	content.SetPrototypes(protos)
	e := &Engine{
		content:   content,
		objects:   objects,
		wires:     wires,
		logger:    noopLogger{},
		metrics:   noopMetricsRecorder{},
		clock:     systemClock{},
		notifier:  domain.NotifierFunc(func(domain.Notification) {}),
		maxCables: DefaultMaxCableConnections,
		handles:   make(map[handleKey]domain.EntityID),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.reindexHandles()
	return e
}

// Content returns the project content the engine reconciles.
func (e *Engine) Content() *project.Content { return e.content }

// Prototypes returns the active prototype table.
func (e *Engine) Prototypes() domain.PrototypeInfo { return e.content.Prototypes() }

// EntityFor resolves a physical handle on stage back to its entity.
func (e *Engine) EntityFor(stage domain.StageNumber, h domain.Handle) (*entity.Entity, bool) {
	id, ok := e.handles[handleKey{stage: stage, handle: h}]
	if !ok {
		return nil, false
	}
	return e.content.Get(id)
}

func (e *Engine) reindexHandles() {
	e.handles = make(map[handleKey]domain.EntityID)
	for _, ent := range e.content.All() {
		for _, s := range ent.RepresentationStages() {
			if r, _ := ent.Representation(s); r.Handle != 0 {
				e.handles[handleKey{stage: s, handle: r.Handle}] = ent.ID()
			}
		}
	}
}

func (e *Engine) setRep(ent *entity.Entity, stage domain.StageNumber, r entity.Representation) {
	if old, ok := ent.Representation(stage); ok && old.Handle != 0 {
		delete(e.handles, handleKey{stage: stage, handle: old.Handle})
	}
	ent.SetRepresentation(stage, r)
	if r.Handle != 0 {
		e.handles[handleKey{stage: stage, handle: r.Handle}] = ent.ID()
	}
}

// forgetRep drops the representation at stage without destroying it, for
// objects the host already removed.
func (e *Engine) forgetRep(ent *entity.Entity, stage domain.StageNumber) {
	if old, ok := ent.Representation(stage); ok && old.Handle != 0 {
		delete(e.handles, handleKey{stage: stage, handle: old.Handle})
	}
	ent.ClearRepresentation(stage)
}

// clearStage destroys the representation at stage.
func (e *Engine) clearStage(ent *entity.Entity, stage domain.StageNumber) {
	if old, ok := ent.Representation(stage); ok && old.Handle != 0 {
		e.objects.Destroy(stage, old.Handle)
	}
	e.forgetRep(ent, stage)
}

func (e *Engine) destroyAll(ent *entity.Entity) {
	for _, s := range ent.RepresentationStages() {
		e.clearStage(ent, s)
	}
}

// track starts timing an operation and returns the function that records it.
func (e *Engine) track(op string) func(success bool) {
	start := e.clock.Now()
	return func(success bool) {
		e.metrics.Observe(context.Background(), op, success, e.clock.Now().Sub(start))
	}
}

func (e *Engine) requireEntity(ent *entity.Entity) {
	e.assertf(ent != nil && e.content.Has(ent), "entity %v is not registered", ent)
}

func (e *Engine) requireStage(stage domain.StageNumber) {
	e.assertf(stage >= 1 && stage <= e.content.StageCount(), "stage %d outside 1..%d", stage, e.content.StageCount())
}

// assertf halts on a broken invariant after logging it.
func (e *Engine) assertf(cond bool, format string, args ...any) {
	if cond {
		return
	}
	msg := fmt.Sprintf(format, args...)
	e.logger.Error("engine invariant violated", "error", msg)
	panic("core: " + msg)
}

package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/FACorreiaa/go-poi-discovery/internal/types"
)

// State is the circuit breaker state machine position.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// Settings configures one breaker instance.
type Settings struct {
	Name string
	// FailureThreshold is the number of failures in the rolling window that
	// trips CLOSED to OPEN, provided VolumeThreshold is also met.
	FailureThreshold int
	// VolumeThreshold is the minimum request count in the rolling window
	// before the breaker may trip.
	VolumeThreshold int
	// SuccessThreshold is the number of consecutive HALF_OPEN successes
	// required to close the breaker again.
	SuccessThreshold int
	// ResetTimeout is how long the breaker stays OPEN before allowing a
	// HALF_OPEN trial.
	ResetTimeout time.Duration
	// ExecutionTimeout bounds each protected call; exceeding it counts as a
	// failure.
	ExecutionTimeout time.Duration
	// MaintenanceInterval is the period of the rolling-window reset tick.
	MaintenanceInterval time.Duration
}

// Snapshot is a point-in-time copy of the breaker counters for observability.
type Snapshot struct {
	Name            string
	State           State
	WindowRequests  int
	WindowFailures  int
	HalfOpenPasses  int
	NextAttemptTime time.Time
}

// Breaker protects an outbound dependency. State is in-memory only and
// resets to CLOSED on process restart. A single mutex owns every counter so
// concurrent callers cannot interleave transitions.
type Breaker struct {
	settings Settings
	logger   *slog.Logger
	now      func() time.Time

	mu               sync.Mutex
	state            State
	windowRequests   int
	windowFailures   int
	halfOpenSuccess  int
	nextAttemptTime  time.Time
	transitionsTotal metric.Int64Counter
	rejectionsTotal  metric.Int64Counter
	timeoutsTotal    metric.Int64Counter
}

// Option mutates a Breaker during construction.
type Option func(*Breaker)

// WithClock overrides the breaker's time source. Tests use it to drive the
// OPEN to HALF_OPEN transition without sleeping.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) { b.now = now }
}

func NewBreaker(settings Settings, logger *slog.Logger, opts ...Option) *Breaker {
	meter := otel.GetMeterProvider().Meter("resilience")
	transitions, _ := meter.Int64Counter("circuit_breaker_transitions_total",
		metric.WithDescription("Total circuit breaker state transitions"))
	rejections, _ := meter.Int64Counter("circuit_breaker_rejections_total",
		metric.WithDescription("Total requests rejected by an open circuit"))
	timeouts, _ := meter.Int64Counter("circuit_breaker_timeouts_total",
		metric.WithDescription("Total protected calls that exceeded their execution budget"))

	b := &Breaker{
		settings:         settings,
		logger:           logger,
		now:              time.Now,
		state:            StateClosed,
		transitionsTotal: transitions,
		rejectionsTotal:  rejections,
		timeoutsTotal:    timeouts,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Operation is a protected call. Fallback replaces the operation's outcome
// on rejection or failure; a nil fallback surfaces the original error.
type (
	Operation[T any] func(ctx context.Context) (T, error)
	Fallback[T any]  func(ctx context.Context, cause error) (T, error)
)

// Do executes op through the breaker. The call races against the execution
// timeout; the losing side's eventual completion is discarded rather than
// mutating breaker state after the fact.
func Do[T any](ctx context.Context, b *Breaker, op Operation[T], fallback Fallback[T]) (T, error) {
	var zero T

	if err := b.beforeRequest(); err != nil {
		b.rejectionsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("breaker", b.settings.Name)))
		if fallback != nil {
			return fallback(ctx, err)
		}
		return zero, err
	}

	type outcome struct {
		value T
		err   error
	}
	// Buffered so a late completion after the timeout has somewhere to go
	// and the goroutine does not leak.
	resultCh := make(chan outcome, 1)
	go func() {
		value, err := op(ctx)
		resultCh <- outcome{value: value, err: err}
	}()

	var value T
	var err error
	timer := time.NewTimer(b.settings.ExecutionTimeout)
	defer timer.Stop()
	select {
	case res := <-resultCh:
		value, err = res.value, res.err
	case <-timer.C:
		b.timeoutsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("breaker", b.settings.Name)))
		err = fmt.Errorf("%s exceeded %s budget: %w", b.settings.Name, b.settings.ExecutionTimeout, types.ErrTimeout)
	case <-ctx.Done():
		err = ctx.Err()
	}

	b.afterRequest(err == nil)

	if err != nil {
		if fallback != nil {
			return fallback(ctx, err)
		}
		return zero, err
	}
	return value, nil
}

// beforeRequest admits or rejects a call, handling the automatic OPEN to
// HALF_OPEN transition once the reset timeout has elapsed.
func (b *Breaker) beforeRequest() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if b.state == StateOpen {
		if now.Before(b.nextAttemptTime) {
			return fmt.Errorf("%s: %w", b.settings.Name, types.ErrCircuitOpen)
		}
		b.transition(StateHalfOpen, now)
	}
	b.windowRequests++
	return nil
}

func (b *Breaker) afterRequest(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	switch b.state {
	case StateClosed:
		if success {
			return
		}
		b.windowFailures++
		if b.windowFailures >= b.settings.FailureThreshold &&
			b.windowRequests >= b.settings.VolumeThreshold {
			b.nextAttemptTime = now.Add(b.settings.ResetTimeout)
			b.transition(StateOpen, now)
		}
	case StateHalfOpen:
		if !success {
			// A single trial failure re-opens the circuit immediately.
			b.nextAttemptTime = now.Add(b.settings.ResetTimeout)
			b.transition(StateOpen, now)
			return
		}
		b.halfOpenSuccess++
		if b.halfOpenSuccess >= b.settings.SuccessThreshold {
			b.transition(StateClosed, now)
		}
	case StateOpen:
		// A straggler finishing after the trip; counters already settled.
		if !success {
			b.windowFailures++
		}
	}
}

// transition records a state change. Callers hold b.mu.
func (b *Breaker) transition(next State, now time.Time) {
	prev := b.state
	b.state = next
	switch next {
	case StateClosed, StateHalfOpen:
		b.windowRequests = 0
		b.windowFailures = 0
		b.halfOpenSuccess = 0
	case StateOpen:
		b.halfOpenSuccess = 0
	}
	b.transitionsTotal.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("breaker", b.settings.Name),
		attribute.String("from", prev.String()),
		attribute.String("to", next.String()),
	))
	b.logger.Info("circuit breaker state transition",
		slog.String("breaker", b.settings.Name),
		slog.String("from", prev.String()),
		slog.String("to", next.String()),
		slog.Time("next_attempt", b.nextAttemptTime))
}

// MaintenanceTick resets the rolling window counters. It runs on a fixed
// schedule independent of request traffic so a trickle of old failures cannot
// trip a mostly idle breaker.
func (b *Breaker) MaintenanceTick() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateClosed {
		b.windowRequests = 0
		b.windowFailures = 0
	}
}

// RunMaintenance loops MaintenanceTick until the context is cancelled.
func (b *Breaker) RunMaintenance(ctx context.Context) {
	interval := b.settings.MaintenanceInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.MaintenanceTick()
		}
	}
}

// SnapshotState returns a copy of the current counters.
func (b *Breaker) SnapshotState() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{
		Name:            b.settings.Name,
		State:           b.state,
		WindowRequests:  b.windowRequests,
		WindowFailures:  b.windowFailures,
		HalfOpenPasses:  b.halfOpenSuccess,
		NextAttemptTime: b.nextAttemptTime,
	}
}

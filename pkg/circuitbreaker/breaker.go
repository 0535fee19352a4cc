// Package circuitbreaker stops calls to a failing upstream for a cooldown
// period and lets a few probes through before closing again.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrCircuitOpen     = errors.New("circuit breaker is open")
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

type Config struct {
	// FailureThreshold consecutive failures open the breaker. Default 5.
	FailureThreshold int
	// SuccessThreshold consecutive half-open successes close it. Default 2.
	SuccessThreshold int
	// Cooldown is how long the breaker stays open. Default 60s.
	Cooldown time.Duration
	// MaxProbes caps concurrent calls while half-open. Default 1.
	MaxProbes int
	// IsFailure decides which errors count against the breaker. Defaults to err != nil.
	IsFailure     func(err error) bool
	OnStateChange func(name string, from, to State)
	Logger        *zap.Logger
	Now           func() time.Time
}

// Counts covers the current state only; every transition resets it.
type Counts struct {
	Requests             int
	Successes            int
	Failures             int
	ConsecutiveSuccesses int
	ConsecutiveFailures  int
}

type CircuitBreaker struct {
	name string
	cfg  Config

	mu       sync.Mutex
	state    State
	epoch    uint64
	openedAt time.Time
	inFlight int
	counts   Counts
}

func NewCircuitBreaker(name string, cfg Config) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 2
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 60 * time.Second
	}
	if cfg.MaxProbes <= 0 {
		cfg.MaxProbes = 1
	}
	if cfg.IsFailure == nil {
		cfg.IsFailure = func(err error) bool { return err != nil }
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &CircuitBreaker{name: name, cfg: cfg}
}

// Execute runs fn unless the breaker is open. A panic in fn counts as a
// failure and is re-raised.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	epoch, err := cb.admit()
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			cb.record(epoch, false)
			panic(r)
		}
	}()

	err = fn()
	cb.record(epoch, !cb.cfg.IsFailure(err))
	return err
}

func (cb *CircuitBreaker) admit() (uint64, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.refresh() {
	case StateOpen:
		return cb.epoch, ErrCircuitOpen
	case StateHalfOpen:
		if cb.inFlight >= cb.cfg.MaxProbes {
			return cb.epoch, ErrTooManyRequests
		}
		cb.inFlight++
	}
	cb.counts.Requests++
	return cb.epoch, nil
}

// record applies a result unless the breaker changed state since the call
// was admitted.
func (cb *CircuitBreaker) record(epoch uint64, success bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	state := cb.refresh()
	if epoch != cb.epoch {
		return
	}
	if state == StateHalfOpen {
		cb.inFlight--
	}

	if success {
		cb.counts.Successes++
		cb.counts.ConsecutiveSuccesses++
		cb.counts.ConsecutiveFailures = 0
		if state == StateHalfOpen && cb.counts.ConsecutiveSuccesses >= cb.cfg.SuccessThreshold {
			cb.transition(StateClosed)
		}
		return
	}

	cb.counts.Failures++
	cb.counts.ConsecutiveFailures++
	cb.counts.ConsecutiveSuccesses = 0
	if state == StateHalfOpen || cb.counts.ConsecutiveFailures >= cb.cfg.FailureThreshold {
		cb.transition(StateOpen)
	}
}

// refresh moves an open breaker to half-open once the cooldown is over.
// Callers hold mu.
func (cb *CircuitBreaker) refresh() State {
	if cb.state == StateOpen && !cb.cfg.Now().Before(cb.openedAt.Add(cb.cfg.Cooldown)) {
		cb.transition(StateHalfOpen)
	}
	return cb.state
}

func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	failures := cb.counts.ConsecutiveFailures

	cb.state = to
	cb.epoch++
	cb.counts = Counts{}
	cb.inFlight = 0
	if to == StateOpen {
		cb.openedAt = cb.cfg.Now()
	}

	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(cb.name, from, to)
	}
	if cb.cfg.Logger != nil {
		cb.cfg.Logger.Info("Circuit breaker state changed",
			zap.String("name", cb.name),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
			zap.Int("failures", failures),
		)
	}
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.refresh()
}

func (cb *CircuitBreaker) Counts() Counts {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.counts
}

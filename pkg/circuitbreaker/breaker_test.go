package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

var errUpstream = errors.New("upstream down")

func TestBreakerOpensAfterThreshold(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	var transitions []string
	cb := NewCircuitBreaker("llm", Config{
		MaxProbes:        2,
		FailureThreshold: 2,
		Cooldown:         time.Minute,
		Now:              clock.now,
		OnStateChange: func(name string, from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})

	ctx := context.Background()
	fail := func() error { return errUpstream }

	assert.ErrorIs(t, cb.Execute(ctx, fail), errUpstream)
	assert.Equal(t, StateClosed, cb.State())
	assert.ErrorIs(t, cb.Execute(ctx, fail), errUpstream)
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(ctx, func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)

	clock.advance(2 * time.Minute)
	assert.Equal(t, StateHalfOpen, cb.State())

	assert.NoError(t, cb.Execute(ctx, func() error { return nil }))
	assert.NoError(t, cb.Execute(ctx, func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, transitions)
}

func TestBreakerIgnoresNonFailures(t *testing.T) {
	cb := NewCircuitBreaker("llm", Config{
		FailureThreshold: 1,
		IsFailure: func(err error) bool {
			return err != nil && !errors.Is(err, context.DeadlineExceeded)
		},
	})

	for i := 0; i < 3; i++ {
		_ = cb.Execute(context.Background(), func() error { return context.DeadlineExceeded })
	}

	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 3, cb.Counts().Successes)
}

func TestBreakerSkipsCancelledContext(t *testing.T) {
	cb := NewCircuitBreaker("llm", Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := cb.Execute(ctx, func() error { t.Fatal("must not run"); return nil })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, cb.Counts().Requests)
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	cb := NewCircuitBreaker("llm", Config{FailureThreshold: 1, Cooldown: time.Minute, Now: clock.now})
	ctx := context.Background()

	_ = cb.Execute(ctx, func() error { return errUpstream })
	clock.advance(30 * time.Second)
	assert.ErrorIs(t, cb.Execute(ctx, func() error { return nil }), ErrCircuitOpen)

	clock.advance(time.Minute)
	err := cb.Execute(ctx, func() error {
		assert.ErrorIs(t, cb.Execute(ctx, func() error { return nil }), ErrTooManyRequests)
		return errUpstream
	})
	assert.ErrorIs(t, err, errUpstream)
	assert.Equal(t, StateOpen, cb.State())
}

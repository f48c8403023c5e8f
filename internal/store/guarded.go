package store

import (
	"context"
	"errors"
)

// Guarded routes writes through a circuit breaker so that a failing
// backend is reported immediately instead of stalling every caller.
// Reads and subscriptions pass straight through.
type Guarded struct {
	Store
	breaker *CircuitBreaker
}

func NewGuarded(inner Store, config *BreakerConfig) *Guarded {
	return &Guarded{Store: inner, breaker: NewCircuitBreaker(config)}
}

func (g *Guarded) Breaker() *CircuitBreaker { return g.breaker }

// Invalid paths are caller errors and do not count against the backend.
func (g *Guarded) guard(fn func() error) error {
	var callerErr error
	err := g.breaker.Execute(func() error {
		err := fn()
		if errors.Is(err, ErrInvalidPath) {
			callerErr = err
			return nil
		}
		return err
	})
	if callerErr != nil {
		return callerErr
	}
	return err
}

func (g *Guarded) Write(ctx context.Context, path string, value interface{}) error {
	return g.guard(func() error { return g.Store.Write(ctx, path, value) })
}

func (g *Guarded) Update(ctx context.Context, path string, fields map[string]interface{}) error {
	return g.guard(func() error { return g.Store.Update(ctx, path, fields) })
}

func (g *Guarded) Delete(ctx context.Context, path string) error {
	return g.guard(func() error { return g.Store.Delete(ctx, path) })
}

func (g *Guarded) Health(ctx context.Context) error {
	if g.breaker.State() == BreakerOpen {
		return ErrCircuitOpen
	}
	return g.Store.Health(ctx)
}

package core

import (
	"context"
	"fmt"
	"sync"
)

// ModelLimiter enforces a maximum number of model calls within one turn.
// Decision oracle calls and agent invocations share the same budget.
type ModelLimiter struct {
	max   int
	count int
	mu    sync.Mutex
}

// NewModelLimiter creates a new limiter with a max number of calls.
// If max == 0, unlimited calls are allowed.
func NewModelLimiter(max int) *ModelLimiter {
	return &ModelLimiter{max: max}
}

// Acquire reserves one call and returns ErrModelBudgetExceeded once the
// limit has been reached. A nil limiter never refuses.
func (ml *ModelLimiter) Acquire() error {
	if ml == nil {
		return nil
	}

	ml.mu.Lock()
	defer ml.mu.Unlock()

	if ml.max > 0 && ml.count >= ml.max {
		return fmt.Errorf("%w: %d", ErrModelBudgetExceeded, ml.max)
	}

	ml.count++

	return nil
}

// Count returns the current number of calls made.
func (ml *ModelLimiter) Count() int {
	if ml == nil {
		return 0
	}

	ml.mu.Lock()
	defer ml.mu.Unlock()

	return ml.count
}

// Remaining returns how many calls are left before hitting the limit.
func (ml *ModelLimiter) Remaining() int {
	if ml == nil {
		return -1
	}

	ml.mu.Lock()
	defer ml.mu.Unlock()

	if ml.max == 0 {
		return -1 // unlimited
	}

	return ml.max - ml.count
}

type limiterKey struct{}

// WithModelLimiter attaches l to ctx so that every model call of a turn
// draws from the same budget.
func WithModelLimiter(ctx context.Context, l *ModelLimiter) context.Context {
	return context.WithValue(ctx, limiterKey{}, l)
}

// ModelLimiterFromContext returns the limiter attached to ctx, or nil.
func ModelLimiterFromContext(ctx context.Context) *ModelLimiter {
	l, _ := ctx.Value(limiterKey{}).(*ModelLimiter)
	return l
}

package engine

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Limiter bounds the number of in-flight probes across the whole engine.
// Waiters are admitted in FIFO order; scheduled and on-demand checks share
// the same pool.
type Limiter struct {
	sem *semaphore.Weighted
}

func NewLimiter(ceiling int) *Limiter {
	if ceiling <= 0 {
		ceiling = 100
	}
	return &Limiter{sem: semaphore.NewWeighted(int64(ceiling))}
}

// Do runs fn under an admission slot. The slot is released on every exit
// path, so a probe that dies by its own timeout still frees capacity.
func (l *Limiter) Do(ctx context.Context, fn func()) error {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer l.sem.Release(1)
	fn()
	return nil
}

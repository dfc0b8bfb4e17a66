package pipeline

import (
	"context"
	"sync/atomic"
)

// Limiter bounds how many calls run at once. A permit is taken before fn
// runs and returned when it exits, including by panic.
type Limiter struct {
	slots  chan struct{}
	active atomic.Int64
}

func NewLimiter(permits int) *Limiter {
	if permits <= 0 {
		permits = 1
	}
	return &Limiter{slots: make(chan struct{}, permits)}
}

func (l *Limiter) Do(ctx context.Context, fn func() error) error {
	select {
	case l.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	l.active.Add(1)
	defer func() {
		l.active.Add(-1)
		<-l.slots
	}()

	return fn()
}

func (l *Limiter) Capacity() int {
	return cap(l.slots)
}

func (l *Limiter) InUse() int {
	return int(l.active.Load())
}

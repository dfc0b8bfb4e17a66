// Package promise implements a single-assignment result holder shared by a
// producer that resolves it and a consumer that waits on it.
package promise

import (
	"context"
	"errors"
	"sync"
)

var ErrCancelled = errors.New("promise cancelled")

type State int

const (
	Pending State = iota
	Fulfilled
	Failed
	Cancelled
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Fulfilled:
		return "fulfilled"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

func (s State) Terminal() bool {
	return s != Pending
}

// Promise moves from Pending to exactly one terminal state. Whichever of
// Fulfill, Fail or Cancel runs first wins; the others report false.
type Promise[T any] struct {
	mu    sync.Mutex
	state State
	value T
	err   error
	done  chan struct{}
}

func New[T any]() *Promise[T] {
	return &Promise[T]{done: make(chan struct{})}
}

func (p *Promise[T]) Fulfill(value T) bool {
	return p.settle(Fulfilled, value, nil)
}

func (p *Promise[T]) Fail(err error) bool {
	if err == nil {
		err = errors.New("promise failed without error")
	}
	var zero T
	return p.settle(Failed, zero, err)
}

func (p *Promise[T]) Cancel() bool {
	var zero T
	return p.settle(Cancelled, zero, ErrCancelled)
}

func (p *Promise[T]) settle(state State, value T, err error) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state.Terminal() {
		return false
	}

	p.state = state
	p.value = value
	p.err = err
	close(p.done)
	return true
}

func (p *Promise[T]) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Done is closed once the promise reaches a terminal state.
func (p *Promise[T]) Done() <-chan struct{} {
	return p.done
}

// Result returns the terminal value or error. On a pending promise it
// returns the zero value and a nil error; check State or Done first.
func (p *Promise[T]) Result() (T, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.value, p.err
}

func (p *Promise[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-p.done:
		return p.Result()
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

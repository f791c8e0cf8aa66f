package workerpool

import (
	"context"
	"sync"
)

// Future is the caller's handle on a submitted task. It resolves exactly once,
// with the task's result, its failure, a timeout, or an abandonment error.
type Future[T any] struct {
	id      string
	done    chan struct{}
	val     T
	err     error
	abandon func(cause error)
}

// ID returns the correlation id assigned at submission.
func (f *Future[T]) ID() string { return f.id }

// Done is closed once the future has resolved.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Wait blocks until the future resolves. If ctx ends first the task is
// abandoned: it is removed from the pending list, its context is cancelled and
// the future resolves with the context error. An outcome that won the race
// against the abandonment is returned instead.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		f.abandon(ctx.Err())
		<-f.done
		return f.val, f.err
	}
}

// Cancel abandons the task without waiting for it: a pending task is removed
// and never runs, a running task has its context cancelled. It has no effect
// once the future has resolved.
func (f *Future[T]) Cancel() {
	f.abandon(context.Canceled)
}

// registry correlates task ids with the futures waiting on them. An entry is
// removed by the first settle for its id; later settles are dropped.
type registry[T any] struct {
	mu      sync.Mutex
	waiting map[string]*Future[T]
}

func newRegistry[T any]() *registry[T] {
	return &registry[T]{waiting: make(map[string]*Future[T])}
}

func (r *registry[T]) register(f *Future[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.waiting[f.id] = f
}

// settle resolves and deregisters the future for id. It reports false when the
// id was already settled or never registered.
func (r *registry[T]) settle(id string, v T, err error) bool {
	r.mu.Lock()
	f, ok := r.waiting[id]
	if ok {
		delete(r.waiting, id)
	}
	r.mu.Unlock()
	if !ok {
		return false
	}
	f.val, f.err = v, err
	close(f.done)
	return true
}

func (r *registry[T]) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.waiting)
}

// Package async provides the bounded worker pool that runs retrieval
// and rerank work off the caller's goroutine.
package async

import (
	"context"
	"runtime"
	"sync"
)

// MinWorkers is the pool size floor.
const MinWorkers = 2

// DefaultWorkers sizes the pool to half the hardware parallelism, with
// a floor of MinWorkers.
func DefaultWorkers() int {
	n := runtime.NumCPU() / 2
	if n < MinWorkers {
		n = MinWorkers
	}
	return n
}

// Pool is a bounded worker pool. Submitted tasks run on at most size
// goroutines; submission blocks while all workers are busy.
type Pool struct {
	sem chan struct{}
	wg  sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewPool creates a pool with the given number of workers. Sizes below
// MinWorkers are raised to it.
func NewPool(size int) *Pool {
	if size < MinWorkers {
		size = MinWorkers
	}
	return &Pool{sem: make(chan struct{}, size)}
}

// Size returns the worker count.
func (p *Pool) Size() int { return cap(p.sem) }

// Go runs fn on a pool slot, blocking until one is free. Returns false
// if the pool is closed or the context is done before a slot opens.
func (p *Pool) Go(ctx context.Context, fn func()) bool {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return false
	}
	p.wg.Add(1)
	p.mu.Unlock()

	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		p.wg.Done()
		return false
	}

	go func() {
		defer func() {
			<-p.sem
			p.wg.Done()
		}()
		fn()
	}()
	return true
}

// Close marks the pool closed and waits for in-flight tasks.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.wg.Wait()
}

// result pairs a value with its error for delivery over a channel.
type result[T any] struct {
	value T
	err   error
}

// Future is a single-delivery handle to a task submitted via Submit.
type Future[T any] struct {
	ch chan result[T]
}

// Submit schedules fn on the pool and returns a future for its result.
// If the pool rejects the task the future resolves to ctx.Err.
func Submit[T any](ctx context.Context, p *Pool, fn func() (T, error)) *Future[T] {
	f := &Future[T]{ch: make(chan result[T], 1)}
	ok := p.Go(ctx, func() {
		v, err := fn()
		f.ch <- result[T]{value: v, err: err}
	})
	if !ok {
		var zero T
		err := ctx.Err()
		if err == nil {
			err = context.Canceled
		}
		f.ch <- result[T]{value: zero, err: err}
	}
	return f
}

// Wait blocks until the task completes or the context is done.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case r := <-f.ch:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

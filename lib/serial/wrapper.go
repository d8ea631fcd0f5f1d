// Package serial invokes named asynchronous operations without concurrency.
//
// A Wrapper holds a set of named thunks. Invoking a name while a previous
// invocation of the same name is still running does not start the thunk
// again: the caller joins the running call and receives its result or error.
// Once the call settles the name is free, and the next Invoke starts a fresh
// execution. Results are never retained between bursts.
//
//	w := serial.New[any]()
//	w.Add("news", func(ctx context.Context) (any, error) {
//	    return loadNews(ctx)
//	})
//	data, err := w.Invoke(ctx, "news")
package serial

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// ErrNoSuchMethod is returned when invoking a name that was never added.
var ErrNoSuchMethod = errors.New("serial: no such registered method")

// ErrPanicked is wrapped by the error every waiter receives when a thunk
// panics.
var ErrPanicked = errors.New("serial: thunk panicked")

// Thunk produces the result for a name.
type Thunk[T any] func(ctx context.Context) (T, error)

// Result is the outcome delivered by InvokeAsync.
type Result[T any] struct {
	Value T
	Err   error
	// Shared is true when the outcome was delivered to more than one caller.
	Shared bool
}

// Wrapper collapses concurrent invocations of the same name into one.
// It is safe for concurrent use.
type Wrapper[T any] struct {
	mu       sync.RWMutex
	thunks   map[string]Thunk[T]
	inFlight map[string]int
	group    singleflight.Group
}

// New creates an empty wrapper.
func New[T any]() *Wrapper[T] {
	return &Wrapper[T]{
		thunks:   make(map[string]Thunk[T]),
		inFlight: make(map[string]int),
	}
}

// Add registers the thunk for name, replacing any previous one. A call that
// is already running keeps using the thunk it started with.
func (w *Wrapper[T]) Add(name string, thunk Thunk[T]) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.thunks[name] = thunk
}

// IsRegistered reports whether a thunk was added for name.
func (w *Wrapper[T]) IsRegistered(name string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.thunks[name] != nil
}

// InFlight reports whether an invocation of name is running or has callers
// still waiting for its result.
func (w *Wrapper[T]) InFlight(name string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.inFlight[name] > 0
}

// Invoke runs the thunk for name, or joins the invocation already running.
//
// All callers of one burst observe the same value and error. If ctx ends
// before the call settles, Invoke returns ctx.Err() but the call keeps
// running for the remaining waiters. The thunk itself receives a context
// detached from any single caller's cancellation, since its result belongs
// to every waiter. A thunk that panics fails the burst with an error
// wrapping ErrPanicked.
func (w *Wrapper[T]) Invoke(ctx context.Context, name string) (T, error) {
	var zero T
	ch, err := w.start(ctx, name)
	if err != nil {
		return zero, err
	}

	select {
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		v, _ := res.Val.(T)
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// InvokeAsync is the future form of Invoke. The returned channel receives
// exactly one Result and is never closed before that.
func (w *Wrapper[T]) InvokeAsync(ctx context.Context, name string) <-chan Result[T] {
	out := make(chan Result[T], 1)
	ch, err := w.start(ctx, name)
	if err != nil {
		out <- Result[T]{Err: err}
		return out
	}
	go func() {
		res := <-ch
		r := Result[T]{Err: res.Err, Shared: res.Shared}
		if res.Err == nil {
			r.Value, _ = res.Val.(T)
		}
		out <- r
	}()
	return out
}

func (w *Wrapper[T]) start(ctx context.Context, name string) (<-chan singleflight.Result, error) {
	w.mu.RLock()
	thunk := w.thunks[name]
	w.mu.RUnlock()
	if thunk == nil {
		return nil, ErrNoSuchMethod
	}

	// counted per caller from here until its result is delivered, so
	// InFlight is true as soon as Invoke or InvokeAsync has been called
	w.mu.Lock()
	w.inFlight[name]++
	w.mu.Unlock()

	callCtx := context.WithoutCancel(ctx)
	src := w.group.DoChan(name, func() (v any, err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("%w: %s: %v", ErrPanicked, name, p)
			}
		}()
		return thunk(callCtx)
	})

	out := make(chan singleflight.Result, 1)
	go func() {
		res := <-src
		w.mu.Lock()
		w.inFlight[name]--
		if w.inFlight[name] == 0 {
			delete(w.inFlight, name)
		}
		w.mu.Unlock()
		out <- res
	}()
	return out, nil
}

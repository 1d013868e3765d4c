package future

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Task bodies run on a bounded worker pool sized to the hardware
// concurrency. Acquisition happens inside the spawned goroutine, so
// Async never blocks the caller.
var pool = semaphore.NewWeighted(int64(runtime.NumCPU()))

// Async schedules fn on the worker pool and returns the future of its
// result. A panic in fn surfaces as an exception; returning an error
// wrapping ErrCanceled terminates the future as canceled.
func Async[T any](fn func(Notifier) (T, error)) *Future[T] {
	p := NewPromise[T]()
	c := p.c

	go func() {
		if err := pool.Acquire(context.Background(), 1); err != nil {
			c.fail(err)
			return
		}
		defer pool.Release(1)

		if c.canceled() {
			c.fail(ErrCanceled)
			return
		}
		c.reportStarted()

		defer func() {
			if r := recover(); r != nil {
				c.fail(fmt.Errorf("task panicked: %v", r))
			}
		}()

		n := p.Notifier()
		n.yield = func() { pool.Release(1) }
		n.resume = func() { _ = pool.Acquire(context.Background(), 1) }

		value, err := fn(n)
		if err != nil {
			c.fail(err)
			return
		}
		c.complete(value)
	}()

	return p.Future()
}

// Then chains fn onto f: the returned future awaits f, then applies
// fn to its value. An exception or cancellation of f propagates.
func Then[T, U any](f *Future[T], fn func(T) (U, error)) *Future[U] {
	return Async(func(n Notifier) (U, error) {
		value, err := Await(n, f)
		if err != nil {
			var zero U
			return zero, err
		}
		return fn(value)
	})
}

// MapErr returns a future that applies fn to f's exception, if any.
func MapErr[T any](f *Future[T], fn func(error) error) *Future[T] {
	return Async(func(n Notifier) (T, error) {
		value, err := Await(n, f)
		if err != nil {
			return value, fn(err)
		}
		return value, nil
	})
}

// Catching returns a future that recovers from f's exception via fn.
// Cancellation is not recoverable.
func Catching[T any](f *Future[T], fn func(error) (T, error)) *Future[T] {
	return Async(func(n Notifier) (T, error) {
		value, err := Await(n, f)
		if err != nil && !errors.Is(err, ErrCanceled) {
			return fn(err)
		}
		return value, err
	})
}

// All collects the results of fs, in order. The first exception
// cancels the remaining children and terminates the returned future
// with that exception. Progress is merged as the sum over children.
func All[T any](fs []*Future[T]) *Future[[]T] {
	return Async(func(n Notifier) ([]T, error) {
		var mu sync.Mutex
		current := make([]uint64, len(fs))
		total := make([]uint64, len(fs))

		// Summing and reporting stay under one lock so a stale sum
		// can never overwrite a fresher one.
		reportSum := func() {
			mu.Lock()
			defer mu.Unlock()
			var sumCurrent, sumTotal uint64
			for i := range fs {
				sumCurrent += current[i]
				sumTotal += total[i]
			}
			_ = n.Progress(sumCurrent, sumTotal)
		}

		for i, f := range fs {
			i := i
			f.Subscribe(Watcher[T]{
				OnProgress: func(c, t uint64) {
					mu.Lock()
					current[i], total[i] = c, t
					mu.Unlock()
					reportSum()
				},
				OnStatus: func(msg string) { _ = n.Status(msg) },
			})
		}

		stop := make(chan struct{})
		defer close(stop)
		go func() {
			select {
			case <-n.cancelCh:
				for _, f := range fs {
					f.Cancel()
				}
			case <-stop:
			}
		}()

		results := make([]T, len(fs))
		g := new(errgroup.Group)
		for i, f := range fs {
			i, f := i, f
			g.Go(func() error {
				value, err := f.Get()
				if err != nil {
					for j, other := range fs {
						if j != i {
							other.Cancel()
						}
					}
					return err
				}
				results[i] = value
				return nil
			})
		}
		// Waiting is a suspension point: release the worker slot so
		// the children can run on a small pool.
		if n.yield != nil {
			n.yield()
		}
		err := g.Wait()
		if n.resume != nil {
			n.resume()
		}
		if err != nil {
			return nil, err
		}
		if err := n.Err(); err != nil {
			return nil, err
		}
		return results, nil
	})
}

// Completed returns an already finished future carrying value. Used
// where an operation turns out to be synchronous.
func Completed[T any](value T) *Future[T] {
	p := NewPromise[T]()
	p.ReportStarted()
	p.Complete(value)
	return p.Future()
}

// Failed returns an already failed future carrying err.
func Failed[T any](err error) *Future[T] {
	p := NewPromise[T]()
	p.ReportStarted()
	p.ReportException(err)
	return p.Future()
}

package future

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// eventLog records the tagged event sequence one watcher observes.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(e string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

func watchInto[T any](f *Future[T], l *eventLog) {
	f.Subscribe(Watcher[T]{
		OnStarted:   func() { l.add("started") },
		OnProgress:  func(c, t uint64) { l.add("progress") },
		OnStatus:    func(m string) { l.add("status:" + m) },
		OnFinished:  func(T) { l.add("finished") },
		OnCanceled:  func() { l.add("canceled") },
		OnException: func(err error) { l.add("exception") },
	})
}

func TestAsyncCompletes(t *testing.T) {
	f := Async(func(n Notifier) (int, error) {
		_ = n.Status("working")
		_ = n.Progress(1, 2)
		return 42, nil
	})
	v, err := f.Get()
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestAsyncException(t *testing.T) {
	boom := errors.New("boom")
	f := Async(func(n Notifier) (int, error) { return 0, boom })
	_, err := f.Get()
	assert.ErrorIs(t, err, boom)
}

func TestAsyncPanicBecomesException(t *testing.T) {
	f := Async(func(n Notifier) (int, error) { panic("oops") })
	_, err := f.Get()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oops")
}

func TestEventOrdering(t *testing.T) {
	var l eventLog
	release := make(chan struct{})
	f := Async(func(n Notifier) (int, error) {
		<-release
		_ = n.Progress(1, 10)
		_ = n.Status("halfway")
		_ = n.Progress(10, 10)
		return 7, nil
	})
	watchInto(f, &l)
	close(release)
	_, err := f.Get()
	require.NoError(t, err)

	events := l.snapshot()
	require.NotEmpty(t, events)
	assert.Equal(t, "started", events[0])
	assert.Equal(t, "finished", events[len(events)-1])
}

func TestLateSubscriberGetsSnapshot(t *testing.T) {
	f := Async(func(n Notifier) (int, error) {
		_ = n.Progress(3, 4)
		_ = n.Status("almost")
		return 1, nil
	})
	_, err := f.Get()
	require.NoError(t, err)

	var l eventLog
	watchInto(f, &l)
	assert.Equal(t, []string{"started", "progress", "status:almost", "finished"}, l.snapshot())
}

func TestCancelBeforeBodyNoticed(t *testing.T) {
	started := make(chan struct{})
	f := Async(func(n Notifier) (int, error) {
		close(started)
		for {
			time.Sleep(time.Millisecond)
			if err := n.Err(); err != nil {
				return 0, err
			}
		}
	})
	<-started
	f.Cancel()
	_, err := f.Get()
	assert.ErrorIs(t, err, ErrCanceled)
}

func TestCancelIsIdempotent(t *testing.T) {
	f := Async(func(n Notifier) (int, error) {
		for n.Err() == nil {
			time.Sleep(time.Millisecond)
		}
		return 0, n.Err()
	})
	f.Cancel()
	f.Cancel()
	_, err := f.Get()
	assert.ErrorIs(t, err, ErrCanceled)
}

func TestThen(t *testing.T) {
	f := Async(func(n Notifier) (int, error) { return 3, nil })
	g := Then(f, func(v int) (string, error) {
		if v != 3 {
			return "", errors.New("unexpected")
		}
		return "three", nil
	})
	v, err := g.Get()
	require.NoError(t, err)
	assert.Equal(t, "three", v)
}

func TestThenPropagatesException(t *testing.T) {
	boom := errors.New("boom")
	f := Async(func(n Notifier) (int, error) { return 0, boom })
	g := Then(f, func(v int) (int, error) { return v + 1, nil })
	_, err := g.Get()
	assert.ErrorIs(t, err, boom)
}

func TestMapErr(t *testing.T) {
	boom := errors.New("boom")
	wrapped := errors.New("wrapped")
	f := Async(func(n Notifier) (int, error) { return 0, boom })
	g := MapErr(f, func(err error) error { return wrapped })
	_, err := g.Get()
	assert.ErrorIs(t, err, wrapped)
}

func TestCatching(t *testing.T) {
	f := Async(func(n Notifier) (int, error) { return 0, errors.New("boom") })
	g := Catching(f, func(err error) (int, error) { return 99, nil })
	v, err := g.Get()
	require.NoError(t, err)
	assert.Equal(t, 99, v)
}

func TestAllCollectsInOrder(t *testing.T) {
	fs := []*Future[int]{
		Async(func(n Notifier) (int, error) { time.Sleep(5 * time.Millisecond); return 1, nil }),
		Async(func(n Notifier) (int, error) { return 2, nil }),
		Async(func(n Notifier) (int, error) { time.Sleep(time.Millisecond); return 3, nil }),
	}
	vs, err := All(fs).Get()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, vs)
}

func TestAllFailFastCancelsSiblings(t *testing.T) {
	boom := errors.New("boom")
	slowCanceled := make(chan struct{})
	fs := []*Future[int]{
		Async(func(n Notifier) (int, error) { return 0, boom }),
		Async(func(n Notifier) (int, error) {
			for n.Err() == nil {
				time.Sleep(time.Millisecond)
			}
			close(slowCanceled)
			return 0, n.Err()
		}),
	}
	_, err := All(fs).Get()
	assert.ErrorIs(t, err, boom)

	select {
	case <-slowCanceled:
	case <-time.After(5 * time.Second):
		t.Fatal("sibling was not canceled")
	}
}

func TestAllMergesProgressAsSum(t *testing.T) {
	ready := make(chan struct{})
	fs := []*Future[int]{
		Async(func(n Notifier) (int, error) {
			<-ready
			_ = n.Progress(1, 10)
			return 0, nil
		}),
		Async(func(n Notifier) (int, error) {
			<-ready
			_ = n.Progress(2, 10)
			return 0, nil
		}),
	}
	all := All(fs)

	var mu sync.Mutex
	var lastCurrent, lastTotal uint64
	all.Subscribe(Watcher[[]int]{OnProgress: func(c, t uint64) {
		mu.Lock()
		lastCurrent, lastTotal = c, t
		mu.Unlock()
	}})

	close(ready)
	_, err := all.Get()
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, uint64(3), lastCurrent)
	assert.Equal(t, uint64(20), lastTotal)
}

func TestAwaitDelegatesProgress(t *testing.T) {
	outer := Async(func(n Notifier) (int, error) {
		child := Async(func(cn Notifier) (int, error) {
			_ = cn.Progress(5, 10)
			_ = cn.Status("child working")
			return 8, nil
		})
		return Await(n, child)
	})

	var l eventLog
	watchInto(outer, &l)
	v, err := outer.Get()
	require.NoError(t, err)
	assert.Equal(t, 8, v)

	events := l.snapshot()
	assert.Contains(t, events, "progress")
	assert.Contains(t, events, "status:child working")
}

func TestAwaitReRaisesChildException(t *testing.T) {
	boom := errors.New("boom")
	outer := Async(func(n Notifier) (int, error) {
		return Await(n, Async(func(Notifier) (int, error) { return 0, boom }))
	})
	_, err := outer.Get()
	assert.ErrorIs(t, err, boom)
}

func TestCancelingParentCancelsAwaitedChild(t *testing.T) {
	childStarted := make(chan struct{})
	outer := Async(func(n Notifier) (int, error) {
		child := Async(func(cn Notifier) (int, error) {
			close(childStarted)
			for cn.Err() == nil {
				time.Sleep(time.Millisecond)
			}
			return 0, cn.Err()
		})
		return Await(n, child)
	})
	<-childStarted
	outer.Cancel()
	_, err := outer.Get()
	assert.ErrorIs(t, err, ErrCanceled)
}

func TestDelegationCycleRejected(t *testing.T) {
	p := NewPromise[int]()
	err := p.c.setDelegate(p.c)
	assert.ErrorIs(t, err, errDelegationCycle)
}

func TestNotifierCallsRaiseCanceled(t *testing.T) {
	p := NewPromise[int]()
	n := p.Notifier()
	p.Future().Cancel()
	assert.ErrorIs(t, n.Status("x"), ErrCanceled)
	assert.ErrorIs(t, n.Progress(1, 2), ErrCanceled)
}

func TestCompletedAndFailed(t *testing.T) {
	v, err := Completed(5).Get()
	require.NoError(t, err)
	assert.Equal(t, 5, v)

	boom := errors.New("boom")
	_, err = Failed[int](boom).Get()
	assert.ErrorIs(t, err, boom)
}

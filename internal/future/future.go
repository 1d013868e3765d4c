// Package future implements the asynchronous operation engine: a
// producer-side Promise and consumer-side Future with latched
// progress, status and exception reporting, cooperative cancellation,
// and delegation of progress from child operations into their parent.
package future

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrCanceled is the terminal error of a canceled operation.
var ErrCanceled = errors.New("operation canceled")

type state int

const (
	statePending state = iota
	stateRunning
	stateFinished
	stateCanceled
	stateFailed
)

// Watcher receives the events of one future. Nil callbacks are
// skipped. A watcher subscribed after an event was reported receives
// the latched snapshot immediately, so the observed sequence is
// always a prefix of started, progress*, status*, terminal.
type Watcher[T any] struct {
	OnStarted   func()
	OnProgress  func(current, total uint64)
	OnStatus    func(message string)
	OnFinished  func(value T)
	OnCanceled  func()
	OnException func(err error)
}

// delegate is the type-erased parent side of delegation. Progress,
// status and exceptions are forwarded verbatim; the parent does its
// own scaling.
type delegate interface {
	forwardProgress(current, total uint64)
	forwardStatus(message string)
	forwardException(err error)
	operationID() uuid.UUID
	parentDelegate() delegate
}

type core[T any] struct {
	mu sync.Mutex

	opID  uuid.UUID
	st    state
	value T
	err   error

	progressCurrent uint64
	progressTotal   uint64
	hasProgress     bool
	status          string
	hasStatus       bool

	watchers   []Watcher[T]
	done       chan struct{}
	cancelCh   chan struct{}
	cancelOnce sync.Once
	delegateTo delegate
}

func newCore[T any]() *core[T] {
	return &core[T]{
		opID:     uuid.New(),
		done:     make(chan struct{}),
		cancelCh: make(chan struct{}),
	}
}

func (c *core[T]) operationID() uuid.UUID { return c.opID }

func (c *core[T]) parentDelegate() delegate {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.delegateTo
}

var errAlreadyDelegated = errors.New("delegation target already set")
var errDelegationCycle = errors.New("delegation would form a cycle")

// setDelegate wires this operation's reports into parent. Delegation
// is set once and may not form a cycle.
func (c *core[T]) setDelegate(parent delegate) error {
	for p := parent; p != nil; p = p.parentDelegate() {
		if p.operationID() == c.opID {
			return errDelegationCycle
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.delegateTo != nil {
		if c.delegateTo.operationID() == parent.operationID() {
			return nil
		}
		return errAlreadyDelegated
	}
	c.delegateTo = parent
	return nil
}

func (c *core[T]) reportStarted() {
	c.mu.Lock()
	if c.st != statePending {
		c.mu.Unlock()
		return
	}
	c.st = stateRunning
	watchers := append([]Watcher[T](nil), c.watchers...)
	c.mu.Unlock()

	for _, w := range watchers {
		if w.OnStarted != nil {
			w.OnStarted()
		}
	}
}

func (c *core[T]) reportProgress(current, total uint64) {
	c.mu.Lock()
	c.progressCurrent, c.progressTotal = current, total
	c.hasProgress = true
	watchers := append([]Watcher[T](nil), c.watchers...)
	parent := c.delegateTo
	c.mu.Unlock()

	for _, w := range watchers {
		if w.OnProgress != nil {
			w.OnProgress(current, total)
		}
	}
	if parent != nil {
		parent.forwardProgress(current, total)
	}
}

func (c *core[T]) reportStatus(message string) {
	c.mu.Lock()
	c.status = message
	c.hasStatus = true
	watchers := append([]Watcher[T](nil), c.watchers...)
	parent := c.delegateTo
	c.mu.Unlock()

	for _, w := range watchers {
		if w.OnStatus != nil {
			w.OnStatus(message)
		}
	}
	if parent != nil {
		parent.forwardStatus(message)
	}
}

func (c *core[T]) complete(value T) {
	c.mu.Lock()
	if c.st == stateFinished || c.st == stateCanceled || c.st == stateFailed {
		c.mu.Unlock()
		return
	}
	c.value = value
	c.st = stateFinished
	watchers := append([]Watcher[T](nil), c.watchers...)
	c.mu.Unlock()

	close(c.done)
	for _, w := range watchers {
		if w.OnFinished != nil {
			w.OnFinished(value)
		}
	}
}

func (c *core[T]) fail(err error) {
	canceled := errors.Is(err, ErrCanceled)

	c.mu.Lock()
	if c.st == stateFinished || c.st == stateCanceled || c.st == stateFailed {
		c.mu.Unlock()
		return
	}
	c.err = err
	if canceled {
		c.st = stateCanceled
	} else {
		c.st = stateFailed
	}
	watchers := append([]Watcher[T](nil), c.watchers...)
	parent := c.delegateTo
	c.mu.Unlock()

	close(c.done)
	for _, w := range watchers {
		if canceled {
			if w.OnCanceled != nil {
				w.OnCanceled()
			}
		} else {
			if w.OnException != nil {
				w.OnException(err)
			}
		}
	}
	if parent != nil && !canceled {
		parent.forwardException(err)
	}
}

// forwardProgress et al. implement delegate: reports of a delegated
// child re-enter this operation as its own reports.
func (c *core[T]) forwardProgress(current, total uint64) { c.reportProgress(current, total) }
func (c *core[T]) forwardStatus(message string)          { c.reportStatus(message) }
func (c *core[T]) forwardException(err error) {
	c.mu.Lock()
	parent := c.delegateTo
	c.mu.Unlock()
	if parent != nil {
		parent.forwardException(err)
	}
}

func (c *core[T]) cancel() {
	c.cancelOnce.Do(func() { close(c.cancelCh) })
}

func (c *core[T]) canceled() bool {
	select {
	case <-c.cancelCh:
		return true
	default:
		return false
	}
}

// Future is the consumer handle of an asynchronous operation.
type Future[T any] struct {
	c *core[T]
}

// Get blocks until the operation terminates and returns its value, or
// re-raises its exception. A canceled operation yields ErrCanceled.
func (f *Future[T]) Get() (T, error) {
	<-f.c.done
	f.c.mu.Lock()
	defer f.c.mu.Unlock()
	return f.c.value, f.c.err
}

// Done is closed when the operation reaches a terminal state.
func (f *Future[T]) Done() <-chan struct{} { return f.c.done }

// Cancel requests cooperative cancellation. Idempotent.
func (f *Future[T]) Cancel() { f.c.cancel() }

// OperationID returns the unique id of this operation, the same id
// the delegation cycle check compares.
func (f *Future[T]) OperationID() uuid.UUID { return f.c.opID }

// Subscribe registers a watcher and replays the latched snapshot of
// any events the watcher missed.
func (f *Future[T]) Subscribe(w Watcher[T]) {
	c := f.c
	c.mu.Lock()
	c.watchers = append(c.watchers, w)
	st := c.st
	value := c.value
	err := c.err
	hasProgress, cur, tot := c.hasProgress, c.progressCurrent, c.progressTotal
	hasStatus, status := c.hasStatus, c.status
	c.mu.Unlock()

	if st != statePending && w.OnStarted != nil {
		w.OnStarted()
	}
	if hasProgress && w.OnProgress != nil {
		w.OnProgress(cur, tot)
	}
	if hasStatus && w.OnStatus != nil {
		w.OnStatus(status)
	}
	switch st {
	case stateFinished:
		if w.OnFinished != nil {
			w.OnFinished(value)
		}
	case stateCanceled:
		if w.OnCanceled != nil {
			w.OnCanceled()
		}
	case stateFailed:
		if w.OnException != nil {
			w.OnException(err)
		}
	}
}

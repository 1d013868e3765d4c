package future

// Promise is the producer handle of an asynchronous operation. The
// task body reports progress through it and terminates it with a
// value or an exception.
type Promise[T any] struct {
	c *core[T]
}

// NewPromise creates an unstarted operation.
func NewPromise[T any]() *Promise[T] {
	return &Promise[T]{c: newCore[T]()}
}

// Future returns the consumer handle.
func (p *Promise[T]) Future() *Future[T] { return &Future[T]{c: p.c} }

// ReportStarted transitions the operation to running and notifies
// subscribers. Reporting started twice is a no-op.
func (p *Promise[T]) ReportStarted() { p.c.reportStarted() }

// ReportProgress latches and fans out a progress snapshot, forwarding
// it verbatim to the delegation parent if one is set.
func (p *Promise[T]) ReportProgress(current, total uint64) { p.c.reportProgress(current, total) }

// ReportStatus latches and fans out a status message.
func (p *Promise[T]) ReportStatus(message string) { p.c.reportStatus(message) }

// ReportException terminates the operation with err. Passing
// ErrCanceled (or an error wrapping it) terminates as canceled
// instead.
func (p *Promise[T]) ReportException(err error) { p.c.fail(err) }

// Complete terminates the operation successfully with value.
func (p *Promise[T]) Complete(value T) { p.c.complete(value) }

// Notifier returns the producer-side capability handed to task
// bodies.
func (p *Promise[T]) Notifier() Notifier {
	return Notifier{r: p.c, cancelCh: p.c.cancelCh}
}

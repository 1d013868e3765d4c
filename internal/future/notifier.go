package future

type reporter interface {
	delegate
	reportProgress(current, total uint64)
	reportStatus(message string)
}

// Notifier is the capability a task body uses to report progress and
// status and to await child operations. Once the operation is
// canceled, every Notifier call returns ErrCanceled; bodies propagate
// it by returning the error.
type Notifier struct {
	r        reporter
	cancelCh <-chan struct{}

	// Awaiting is a suspension point: a pooled task releases its
	// worker slot while blocked so nested awaits cannot exhaust the
	// pool.
	yield  func()
	resume func()
}

// Done is closed when cancellation of the running operation was
// requested. It lets task bodies plumb cancellation into
// context-aware calls.
func (n Notifier) Done() <-chan struct{} { return n.cancelCh }

// Err returns ErrCanceled once cancellation was requested, nil
// before.
func (n Notifier) Err() error {
	select {
	case <-n.cancelCh:
		return ErrCanceled
	default:
		return nil
	}
}

// Status reports a status message.
func (n Notifier) Status(message string) error {
	if err := n.Err(); err != nil {
		return err
	}
	n.r.reportStatus(message)
	return nil
}

// Progress reports a progress snapshot.
func (n Notifier) Progress(current, total uint64) error {
	if err := n.Err(); err != nil {
		return err
	}
	n.r.reportProgress(current, total)
	return nil
}

// Await delegates child's progress into the awaiting task, blocks
// until child terminates, and re-raises its exception. Canceling the
// awaiting task cancels the child.
func Await[U any](n Notifier, child *Future[U]) (U, error) {
	if err := n.Err(); err != nil {
		child.Cancel()
		var zero U
		return zero, err
	}

	// A child already delegated elsewhere still gets awaited; only a
	// cycle is a hard error.
	if err := child.c.setDelegate(n.r); err == errDelegationCycle {
		var zero U
		return zero, err
	}

	if n.yield != nil {
		n.yield()
		defer n.resume()
	}

	select {
	case <-child.Done():
	case <-n.cancelCh:
		child.Cancel()
		<-child.Done()
	}
	return child.Get()
}

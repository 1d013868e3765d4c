// Package trace wires opt-in Datadog tracing into the CLI. Tracing
// is off unless RALPH_TRACE=1 is set in the environment; everything
// here is a no-op otherwise.
package trace

import (
	"context"
	"os"

	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"
)

var (
	globalTraceID string
	globalSpanID  string
)

// MaybeTrace starts the tracer when RALPH_TRACE=1, capturing the
// parent trace propagated through DD_TRACE_ID/DD_SPAN_ID by whatever
// invoked us. Returns whether tracing was started; the caller stops
// the tracer on exit.
func MaybeTrace(serviceVersion string) bool {
	if os.Getenv("RALPH_TRACE") != "1" {
		return false
	}

	globalTraceID = os.Getenv("DD_TRACE_ID")
	globalSpanID = os.Getenv("DD_SPAN_ID")
	os.Unsetenv("DD_TRACE_ID")
	os.Unsetenv("DD_SPAN_ID")

	opts := []tracer.StartOption{
		tracer.WithService("ralph"),
		tracer.WithServiceVersion(serviceVersion),
	}
	if logger, err := newFileLogger(); err == nil {
		opts = append(opts, tracer.WithLogger(logger))
	}

	tracer.Start(opts...)
	return true
}

// Stop flushes and stops the tracer.
func Stop() {
	tracer.Stop()
}

// StartSpanFromExistingContext opens a span under the propagated
// parent context, if one was handed to the process.
func StartSpanFromExistingContext(name string) (ddtrace.Span, context.Context) {
	ctx := context.Background()
	parent, _ := parentContext()
	if parent == nil {
		return tracer.StartSpanFromContext(ctx, name)
	}
	return tracer.StartSpanFromContext(ctx, name, withParentContext(parent))
}

func parentContext() (*SpanContext, error) {
	if globalTraceID == "" || globalSpanID == "" {
		return nil, nil
	}
	parent := &SpanContext{}
	if err := parent.ParseTraceID(globalTraceID); err != nil {
		return nil, err
	}
	if err := parent.ParseSpanID(globalSpanID); err != nil {
		return nil, err
	}
	return parent, nil
}

func withParentContext(c *SpanContext) ddtrace.StartSpanOption {
	return func(cfg *ddtrace.StartSpanConfig) {
		cfg.Parent = c
	}
}

// fileLogger sends the tracer's own diagnostics to a file instead of
// polluting the CLI output.
type fileLogger struct {
	file *os.File
}

func newFileLogger() (*fileLogger, error) {
	file, err := os.Create("/tmp/ralph.dd.log")
	if err != nil {
		return nil, err
	}
	return &fileLogger{file: file}, nil
}

func (l *fileLogger) Log(msg string) {
	l.file.WriteString(msg)
	l.file.WriteString("\n")
}

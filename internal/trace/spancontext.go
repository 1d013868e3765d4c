package trace

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
)

// SpanContext implements ddtrace.SpanContextW3C for a parent span
// propagated through the environment. dd-trace-go keeps its own
// implementation private, so we carry a minimal one.
type SpanContext struct {
	traceID [16]byte // big endian: <upper><lower>
	spanID  uint64
}

var ErrSpanContextCorrupted = errors.New("span context corrupted")

func (c *SpanContext) TraceID128() string {
	return hex.EncodeToString(c.traceID[:])
}

func (c *SpanContext) TraceID128Bytes() [16]byte {
	return c.traceID
}

func (c *SpanContext) TraceID() uint64 {
	return binary.BigEndian.Uint64(c.traceID[8:])
}

func (c *SpanContext) SpanID() uint64 {
	return c.spanID
}

func (c *SpanContext) ForeachBaggageItem(handler func(k, v string) bool) {
}

// ParseTraceID accepts both 64-bit and 128-bit hex trace ids.
func (c *SpanContext) ParseTraceID(v string) error {
	if len(v) > 32 {
		v = v[len(v)-32:]
	}
	v = strings.TrimLeft(v, "0")

	if len(v) <= 16 {
		lower, err := strconv.ParseUint(v, 16, 64)
		if err != nil {
			return ErrSpanContextCorrupted
		}
		binary.BigEndian.PutUint64(c.traceID[8:], lower)
		return nil
	}

	split := len(v) - 16
	upper, err := strconv.ParseUint(v[:split], 16, 64)
	if err != nil {
		return ErrSpanContextCorrupted
	}
	lower, err := strconv.ParseUint(v[split:], 16, 64)
	if err != nil {
		return ErrSpanContextCorrupted
	}
	binary.BigEndian.PutUint64(c.traceID[:8], upper)
	binary.BigEndian.PutUint64(c.traceID[8:], lower)
	return nil
}

func (c *SpanContext) ParseSpanID(v string) error {
	spanID, err := strconv.ParseUint(v, 16, 64)
	if err != nil {
		return ErrSpanContextCorrupted
	}
	c.spanID = spanID
	return nil
}

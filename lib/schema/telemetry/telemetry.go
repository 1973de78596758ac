// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package telemetry defines the trace identifiers the context service
// attaches to each call.
//
// Every GetWorkspaceContext call starts a fresh [Trace]. The trace is
// stored in the call's context, stamped on every log line for the call,
// forwarded to each provisioning collaborator with the socket request,
// and quoted in the failure message returned to the caller so that an
// operator can find the server-side logs for a failed call.
package telemetry

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// TraceID is a 16-byte globally unique trace identifier. It encodes
// as 32 lowercase hex characters in both JSON and CBOR.
type TraceID [16]byte

// SpanID is an 8-byte span identifier, unique within a trace.
type SpanID [8]byte

// NewTraceID generates a cryptographically random trace ID. Panics if
// the system entropy source fails; no caller can recover from that.
func NewTraceID() TraceID {
	var id TraceID
	if _, err := rand.Read(id[:]); err != nil {
		panic("telemetry: failed to generate TraceID: " + err.Error())
	}
	return id
}

// NewSpanID generates a cryptographically random span ID.
func NewSpanID() SpanID {
	var id SpanID
	if _, err := rand.Read(id[:]); err != nil {
		panic("telemetry: failed to generate SpanID: " + err.Error())
	}
	return id
}

// IsZero reports whether this is an uninitialized TraceID.
func (id TraceID) IsZero() bool { return id == TraceID{} }

// String returns the lowercase hex representation.
func (id TraceID) String() string { return hex.EncodeToString(id[:]) }

// MarshalText implements encoding.TextMarshaler.
func (id TraceID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Empty input
// yields the zero TraceID.
func (id *TraceID) UnmarshalText(data []byte) error {
	return decodeHexID(id[:], data, "TraceID")
}

// IsZero reports whether this is an uninitialized SpanID.
func (id SpanID) IsZero() bool { return id == SpanID{} }

// String returns the lowercase hex representation.
func (id SpanID) String() string { return hex.EncodeToString(id[:]) }

// MarshalText implements encoding.TextMarshaler.
func (id SpanID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *SpanID) UnmarshalText(data []byte) error {
	return decodeHexID(id[:], data, "SpanID")
}

func decodeHexID(target []byte, data []byte, name string) error {
	if len(data) == 0 {
		clear(target)
		return nil
	}
	decoded, err := hex.DecodeString(string(data))
	if err != nil {
		return fmt.Errorf("invalid %s hex: %w", name, err)
	}
	if len(decoded) != len(target) {
		return fmt.Errorf("invalid %s: expected %d bytes, got %d", name, len(target), len(decoded))
	}
	copy(target, decoded)
	return nil
}

// Trace is the correlation carrier for one call.
type Trace struct {
	TraceID TraceID `cbor:"trace_id"`
	SpanID  SpanID  `cbor:"span_id"`
}

// NewTrace starts a fresh trace with a new root span.
func NewTrace() Trace {
	return Trace{TraceID: NewTraceID(), SpanID: NewSpanID()}
}

type traceKey struct{}

// WithTrace returns a copy of ctx carrying trace.
func WithTrace(ctx context.Context, trace Trace) context.Context {
	return context.WithValue(ctx, traceKey{}, trace)
}

// TraceFromContext returns the trace stored in ctx, if any.
func TraceFromContext(ctx context.Context) (Trace, bool) {
	trace, ok := ctx.Value(traceKey{}).(Trace)
	return trace, ok
}

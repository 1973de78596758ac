// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"strings"
	"testing"

	"github.com/bureau-foundation/wscontext/lib/codec"
)

func TestNewTraceID(t *testing.T) {
	t.Parallel()

	id := NewTraceID()
	if id.IsZero() {
		t.Fatal("NewTraceID returned zero value")
	}
	if other := NewTraceID(); id == other {
		t.Fatalf("two NewTraceID calls returned identical values: %s", id)
	}
	if len(id.String()) != 32 {
		t.Errorf("String() length = %d, want 32", len(id.String()))
	}
}

func TestNewSpanID(t *testing.T) {
	t.Parallel()

	id := NewSpanID()
	if id.IsZero() {
		t.Fatal("NewSpanID returned zero value")
	}
	if other := NewSpanID(); id == other {
		t.Fatalf("two NewSpanID calls returned identical values: %s", id)
	}
}

func TestTraceTravelsAsHexText(t *testing.T) {
	t.Parallel()

	trace := NewTrace()
	data, err := codec.Marshal(trace)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var keyed map[string]any
	if err := codec.Unmarshal(data, &keyed); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if keyed["trace_id"] != trace.TraceID.String() {
		t.Errorf("trace_id = %v, want %s", keyed["trace_id"], trace.TraceID)
	}

	var decoded Trace
	if err := codec.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal into Trace: %v", err)
	}
	if decoded != trace {
		t.Errorf("decoded = %+v, want %+v", decoded, trace)
	}
}

func TestUnmarshalTextRejectsWrongLength(t *testing.T) {
	t.Parallel()

	var id SpanID
	err := id.UnmarshalText([]byte("abcd"))
	if err == nil || !strings.Contains(err.Error(), "expected 8 bytes") {
		t.Fatalf("UnmarshalText(short) error = %v, want length error", err)
	}
}

func TestTraceContext(t *testing.T) {
	t.Parallel()

	if _, ok := TraceFromContext(context.Background()); ok {
		t.Fatal("empty context reported a trace")
	}

	trace := NewTrace()
	got, ok := TraceFromContext(WithTrace(context.Background(), trace))
	if !ok || got != trace {
		t.Fatalf("TraceFromContext = %+v, %v; want %+v, true", got, ok, trace)
	}
}

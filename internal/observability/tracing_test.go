package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// withRecorder installs a recording tracer provider for the duration of the test.
func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return rec
}

func attrs(s sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value)
	for _, kv := range s.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestDefaultTracingConfig(t *testing.T) {
	cfg := DefaultTracingConfig()
	if cfg == nil {
		t.Fatal("expected non-nil config")
	}
	if cfg.ServiceName != "chatcli" {
		t.Fatalf("expected service name 'chatcli', got %s", cfg.ServiceName)
	}
	if cfg.SampleRate != 1.0 {
		t.Fatalf("expected sample rate 1.0, got %f", cfg.SampleRate)
	}
}

func TestInitTracing_NoEndpoint(t *testing.T) {
	ctx := context.Background()
	tp, err := InitTracing(ctx, &TracingConfig{ServiceName: "test"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tp.Tracer() == nil {
		t.Fatal("expected non-nil tracer")
	}
	if err := tp.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestInitTracing_NilConfig(t *testing.T) {
	tp, err := InitTracing(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tp == nil {
		t.Fatal("expected non-nil tracer provider")
	}
}

func TestInitTracing_WithEndpoint(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	ctx := context.Background()
	tp, err := InitTracing(ctx, &TracingConfig{
		ServiceName:    "test",
		ServiceVersion: "0.0.1",
		OTLPEndpoint:   "127.0.0.1:4317",
		SampleRate:     1.0,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tp.provider == nil {
		t.Fatal("expected an SDK tracer provider when an endpoint is set")
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := tp.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestSampler(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{1.0, "AlwaysOnSampler"},
		{2.0, "AlwaysOnSampler"},
		{0, "AlwaysOffSampler"},
		{-1, "AlwaysOffSampler"},
		{0.5, "TraceIDRatioBased{0.5}"},
	}
	for _, tt := range tests {
		if got := sampler(tt.rate).Description(); got != tt.want {
			t.Errorf("sampler(%v) = %q, want %q", tt.rate, got, tt.want)
		}
	}
}

func TestStartChatSpan_Attributes(t *testing.T) {
	rec := withRecorder(t)

	_, span := StartChatSpan(context.Background(), "openai", "gpt-3.5-turbo", true)
	RecordStream(span, 3, 2, "done", 150*time.Millisecond)
	span.End()

	ended := rec.Ended()
	if len(ended) != 1 {
		t.Fatalf("expected 1 span, got %d", len(ended))
	}
	s := ended[0]
	if s.Name() != "llm.chat" {
		t.Errorf("expected span name llm.chat, got %s", s.Name())
	}
	a := attrs(s)
	if a["llm.provider"].AsString() != "openai" {
		t.Errorf("provider attribute = %v", a["llm.provider"])
	}
	if !a["llm.stream"].AsBool() {
		t.Error("expected llm.stream=true")
	}
	if a["llm.stream.fragments"].AsInt64() != 2 || a["llm.stream.events"].AsInt64() != 3 {
		t.Errorf("stream counters wrong: %v", a)
	}
	if a["llm.stream.state"].AsString() != "done" {
		t.Errorf("state attribute = %v", a["llm.stream.state"])
	}
}

func TestRecordCompletion(t *testing.T) {
	rec := withRecorder(t)

	_, span := StartChatSpan(context.Background(), "openai", "gpt-4", false)
	RecordCompletion(span, 100, 200, "stop", 500*time.Millisecond)
	span.End()

	a := attrs(rec.Ended()[0])
	if a["llm.total_tokens"].AsInt64() != 300 {
		t.Errorf("expected total tokens 300, got %v", a["llm.total_tokens"])
	}
	if a["llm.duration_ms"].AsInt64() != 500 {
		t.Errorf("expected duration 500ms, got %v", a["llm.duration_ms"])
	}
}

func TestRecordError(t *testing.T) {
	rec := withRecorder(t)

	_, span := StartChatSpan(context.Background(), "openai", "gpt-4", true)
	RecordError(span, nil)
	RecordError(span, errors.New("stream reset"))
	span.End()

	s := rec.Ended()[0]
	if s.Status().Code != codes.Error {
		t.Errorf("expected error status, got %v", s.Status().Code)
	}
	if s.Status().Description != "stream reset" {
		t.Errorf("unexpected status description %q", s.Status().Description)
	}
	if len(s.Events()) != 1 {
		t.Errorf("expected one recorded exception event, got %d", len(s.Events()))
	}
}

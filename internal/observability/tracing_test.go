package observability

import (
	"context"
	"errors"
	"testing"
)

func TestSetupTracingNoEndpoint(t *testing.T) {
	shutdown, err := SetupTracing(context.Background(), TraceConfig{})
	if err != nil {
		t.Fatalf("SetupTracing: %v", err)
	}

	// No exporting provider installed, so spans stay no-ops.
	ctx, span := StartLLMSpan(context.Background(), "anthropic", "claude-sonnet-4-20250514")
	if span.IsRecording() {
		t.Error("span should not record without a configured provider")
	}
	RecordError(span, errors.New("boom"))
	span.End()

	if got := TraceID(ctx); got != "" {
		t.Errorf("TraceID = %q, want empty for non-recording span", got)
	}

	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}

func TestSpanHelpers(t *testing.T) {
	_, span := StartToolSpan(context.Background(), "web_search")
	span.End()
	_, span = StartWorkflowStepSpan(context.Background(), "wf-1", "draft")
	span.End()
	_, span = StartSpan(context.Background(), "custom")
	span.End()
}

func TestRecordErrorNil(t *testing.T) {
	_, span := StartSpan(context.Background(), "op")
	defer span.End()

	// Must not panic.
	RecordError(span, nil)
}

package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRegisterAndRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWith(reg)

	m.RecordLLMRequest("anthropic", "claude-sonnet-4-20250514", "success", 0.12, 500, 80)
	m.RecordToolExecution("web_search", "success", 0.04)
	m.RecordAgentRun("succeeded")
	m.RecordWorkflowStep("research", "step", "completed", 2)
	m.RecordHTTPRequest("POST", "/v1/chat", "200", 0.015)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"conductor_llm_request_duration_seconds",
		"conductor_llm_requests_total",
		"conductor_llm_tokens_total",
		"conductor_tool_executions_total",
		"conductor_tool_duration_seconds",
		"conductor_agent_runs_total",
		"conductor_workflow_steps_total",
		"conductor_workflow_step_duration_seconds",
		"conductor_http_request_duration_seconds",
		"conductor_http_requests_total",
	} {
		if !names[want] {
			t.Errorf("metric %s not registered", want)
		}
	}
}

func TestMetricsCounterValues(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWith(reg)

	m.RecordAgentRun("succeeded")
	m.RecordAgentRun("succeeded")
	m.RecordAgentRun("failed")

	got := testutil.ToFloat64(m.AgentRuns.WithLabelValues("succeeded"))
	if got != 2 {
		t.Errorf("succeeded runs = %v, want 2", got)
	}
	got = testutil.ToFloat64(m.AgentRuns.WithLabelValues("failed"))
	if got != 1 {
		t.Errorf("failed runs = %v, want 1", got)
	}
}

func TestMetricsTokenCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWith(reg)

	m.RecordLLMRequest("openai", "gpt-4o", "success", 0.001, 100, 30)
	m.RecordLLMRequest("openai", "gpt-4o", "success", 0.001, 50, 20)

	in := testutil.ToFloat64(m.LLMTokens.WithLabelValues("openai", "gpt-4o", "input"))
	out := testutil.ToFloat64(m.LLMTokens.WithLabelValues("openai", "gpt-4o", "output"))
	if in != 150 || out != 50 {
		t.Errorf("tokens = %v in / %v out, want 150 / 50", in, out)
	}
}

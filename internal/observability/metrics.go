package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the service's Prometheus collectors.
//
// Tracked surfaces: LLM requests (latency, counts, tokens), tool
// executions, agent runs, workflow steps, and HTTP traffic.
type Metrics struct {
	// LLMRequestDuration measures provider call latency in seconds.
	// Labels: provider, model.
	LLMRequestDuration *prometheus.HistogramVec

	// LLMRequestCounter counts provider calls.
	// Labels: provider, model, status (success|error).
	LLMRequestCounter *prometheus.CounterVec

	// LLMTokens counts consumed tokens.
	// Labels: provider, model, type (input|output).
	LLMTokens *prometheus.CounterVec

	// ToolExecutions counts tool invocations.
	// Labels: tool, status (success|error).
	ToolExecutions *prometheus.CounterVec

	// ToolDuration measures tool execution time in seconds.
	// Labels: tool.
	ToolDuration *prometheus.HistogramVec

	// AgentRuns counts autonomous runs by terminal status.
	// Labels: status (succeeded|failed|cancelled).
	AgentRuns *prometheus.CounterVec

	// WorkflowSteps counts workflow node executions.
	// Labels: workflow, node_type, status (completed|failed).
	WorkflowSteps *prometheus.CounterVec

	// WorkflowStepDuration measures node execution time in seconds.
	// Labels: workflow.
	WorkflowStepDuration *prometheus.HistogramVec

	// HTTPRequestDuration measures request latency in seconds.
	// Labels: method, path, status.
	HTTPRequestDuration *prometheus.HistogramVec

	// HTTPRequests counts requests.
	// Labels: method, path, status.
	HTTPRequests *prometheus.CounterVec
}

// NewMetrics registers the collectors on the default registerer.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith registers on a caller-supplied registerer. Tests pass
// a fresh registry to avoid duplicate-registration panics.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		LLMRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "conductor_llm_request_duration_seconds",
			Help:    "LLM provider call latency.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"provider", "model"}),

		LLMRequestCounter: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "conductor_llm_requests_total",
			Help: "LLM provider calls by outcome.",
		}, []string{"provider", "model", "status"}),

		LLMTokens: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "conductor_llm_tokens_total",
			Help: "LLM tokens consumed.",
		}, []string{"provider", "model", "type"}),

		ToolExecutions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "conductor_tool_executions_total",
			Help: "Tool invocations by outcome.",
		}, []string{"tool", "status"}),

		ToolDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "conductor_tool_duration_seconds",
			Help:    "Tool execution time.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}, []string{"tool"}),

		AgentRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "conductor_agent_runs_total",
			Help: "Autonomous agent runs by terminal status.",
		}, []string{"status"}),

		WorkflowSteps: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "conductor_workflow_steps_total",
			Help: "Workflow node executions by outcome.",
		}, []string{"workflow", "node_type", "status"}),

		WorkflowStepDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "conductor_workflow_step_duration_seconds",
			Help:    "Workflow node execution time.",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 10, 60, 300},
		}, []string{"workflow"}),

		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "conductor_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"method", "path", "status"}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "conductor_http_requests_total",
			Help: "HTTP requests.",
		}, []string{"method", "path", "status"}),
	}
}

// RecordLLMRequest records one provider call.
func (m *Metrics) RecordLLMRequest(provider, model, status string, seconds float64, inputTokens, outputTokens int) {
	m.LLMRequestDuration.WithLabelValues(provider, model).Observe(seconds)
	m.LLMRequestCounter.WithLabelValues(provider, model, status).Inc()
	if inputTokens > 0 {
		m.LLMTokens.WithLabelValues(provider, model, "input").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		m.LLMTokens.WithLabelValues(provider, model, "output").Add(float64(outputTokens))
	}
}

// RecordToolExecution records one tool invocation.
func (m *Metrics) RecordToolExecution(tool, status string, seconds float64) {
	m.ToolExecutions.WithLabelValues(tool, status).Inc()
	m.ToolDuration.WithLabelValues(tool).Observe(seconds)
}

// RecordAgentRun records a finished autonomous run.
func (m *Metrics) RecordAgentRun(status string) {
	m.AgentRuns.WithLabelValues(status).Inc()
}

// RecordWorkflowStep records one workflow node execution.
func (m *Metrics) RecordWorkflowStep(workflow, nodeType, status string, seconds float64) {
	m.WorkflowSteps.WithLabelValues(workflow, nodeType, status).Inc()
	m.WorkflowStepDuration.WithLabelValues(workflow).Observe(seconds)
}

// RecordHTTPRequest records one handled request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, seconds float64) {
	m.HTTPRequestDuration.WithLabelValues(method, path, status).Observe(seconds)
	m.HTTPRequests.WithLabelValues(method, path, status).Inc()
}

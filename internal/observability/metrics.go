package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the chat daemon.
type Metrics struct {
	registry      *prometheus.Registry
	ChatRequests  *prometheus.CounterVec
	ChatDuration  *prometheus.HistogramVec
	ChatTokens    *prometheus.CounterVec
	Components    *prometheus.CounterVec
	ActiveSession *prometheus.GaugeVec
	TransportErrs *prometheus.CounterVec
	ModelUsage    *prometheus.CounterVec
	ModelFailures *prometheus.CounterVec
	MCPSelected   prometheus.Counter
	MCPOffline    *prometheus.CounterVec
	MCPToolCalls  *prometheus.CounterVec
}

// NewMetrics constructs a metrics registry with chat collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	reqs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatloom_chat_requests_total",
		Help: "Total chat requests",
	}, []string{"status"})

	durs := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chatloom_chat_duration_seconds",
		Help:    "Chat request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"status"})

	tokens := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatloom_chat_tokens_total",
		Help: "Tokens (approx words) exchanged with models",
	}, []string{"direction"})

	components := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatloom_response_components_total",
		Help: "Response components built, by component type",
	}, []string{"type"})

	active := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "chatloom_transport_active_sessions",
		Help: "Active requests by transport",
	}, []string{"transport"})

	trErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatloom_transport_errors_total",
		Help: "Transport-level errors by transport and reason",
	}, []string{"transport", "reason"})

	modelUsage := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatloom_model_usage_total",
		Help: "Model selections",
	}, []string{"model"})

	modelFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatloom_model_failures_total",
		Help: "Model call failures",
	}, []string{"model"})

	mcpSelected := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatloom_mcp_servers_selected_total",
		Help: "MCP servers selected by the router",
	})

	mcpOffline := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatloom_mcp_servers_offline_total",
		Help: "MCP servers that failed to initialise or list tools",
	}, []string{"server"})

	mcpToolCalls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatloom_mcp_tool_calls_total",
		Help: "MCP tool invocations by tool and outcome",
	}, []string{"tool", "outcome"})

	reg.MustRegister(reqs, durs, tokens, components, active, trErrors,
		modelUsage, modelFailures, mcpSelected, mcpOffline, mcpToolCalls)

	return &Metrics{
		registry:      reg,
		ChatRequests:  reqs,
		ChatDuration:  durs,
		ChatTokens:    tokens,
		Components:    components,
		ActiveSession: active,
		TransportErrs: trErrors,
		ModelUsage:    modelUsage,
		ModelFailures: modelFailures,
		MCPSelected:   mcpSelected,
		MCPOffline:    mcpOffline,
		MCPToolCalls:  mcpToolCalls,
	}
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordChatRequest records counts, duration and approximate token volume.
func (m *Metrics) RecordChatRequest(status string, duration time.Duration, promptTokens, completionTokens int) {
	if m == nil {
		return
	}
	if status == "" {
		status = "unknown"
	}
	m.ChatRequests.WithLabelValues(status).Inc()
	m.ChatDuration.WithLabelValues(status).Observe(duration.Seconds())
	m.ChatTokens.WithLabelValues("prompt").Add(float64(promptTokens))
	m.ChatTokens.WithLabelValues("completion").Add(float64(completionTokens))
}

// RecordComponent counts one built response component.
func (m *Metrics) RecordComponent(componentType string) {
	if m == nil {
		return
	}
	if componentType == "" {
		componentType = "unknown"
	}
	m.Components.WithLabelValues(componentType).Inc()
}

// IncActiveSessions increments the active request gauge.
func (m *Metrics) IncActiveSessions(transport string) {
	if m == nil {
		return
	}
	m.ActiveSession.WithLabelValues(transport).Inc()
}

// DecActiveSessions decrements the active request gauge.
func (m *Metrics) DecActiveSessions(transport string) {
	if m == nil {
		return
	}
	m.ActiveSession.WithLabelValues(transport).Dec()
}

// RecordTransportError records a transport-level error.
func (m *Metrics) RecordTransportError(transport, reason string) {
	if m == nil {
		return
	}
	if transport == "" {
		transport = "unknown"
	}
	if reason == "" {
		reason = "unknown"
	}
	m.TransportErrs.WithLabelValues(transport, reason).Inc()
}

// RecordModelUsage increments the usage counter for a resolved model.
func (m *Metrics) RecordModelUsage(model string) {
	if m == nil {
		return
	}
	if model == "" {
		model = "unknown"
	}
	m.ModelUsage.WithLabelValues(model).Inc()
}

// RecordModelFailure increments the failure counter for a model.
func (m *Metrics) RecordModelFailure(model string) {
	if m == nil {
		return
	}
	if model == "" {
		model = "unknown"
	}
	m.ModelFailures.WithLabelValues(model).Inc()
}

// RecordMCPServersSelected counts servers chosen by the router for a prompt.
func (m *Metrics) RecordMCPServersSelected(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.MCPSelected.Add(float64(count))
}

// RecordMCPServerOffline counts a server that could not serve tools.
func (m *Metrics) RecordMCPServerOffline(server string) {
	if m == nil {
		return
	}
	if server == "" {
		server = "unknown"
	}
	m.MCPOffline.WithLabelValues(server).Inc()
}

// RecordMCPToolCall counts one tool invocation.
func (m *Metrics) RecordMCPToolCall(tool string, success bool) {
	if m == nil {
		return
	}
	if tool == "" {
		tool = "unknown"
	}
	outcome := "ok"
	if !success {
		outcome = "error"
	}
	m.MCPToolCalls.WithLabelValues(tool, outcome).Inc()
}

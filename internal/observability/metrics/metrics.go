package metrics

import "github.com/prometheus/client_golang/prometheus"

// AgentMetrics exposes counters for agent runs, tool calls and
// outbound delivery. A nil receiver is safe everywhere so callers can
// run without metrics in tests.
type AgentMetrics struct {
	runsStarted   prometheus.Counter
	runsCompleted *prometheus.CounterVec
	toolCalls     *prometheus.CounterVec
	handoffs      prometheus.Counter
	outboundTotal *prometheus.CounterVec
	inboundTotal  *prometheus.CounterVec
	modelLatency  *prometheus.HistogramVec
}

func NewAgentMetrics(reg prometheus.Registerer) *AgentMetrics {
	m := &AgentMetrics{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "consig",
			Subsystem: "agent",
			Name:      "runs_started_total",
			Help:      "Total agent runs started",
		}),
		runsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "consig",
			Subsystem: "agent",
			Name:      "runs_completed_total",
			Help:      "Total agent runs completed, by outcome",
		}, []string{"outcome"}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "consig",
			Subsystem: "agent",
			Name:      "tool_calls_total",
			Help:      "Total tool executions, by tool and outcome",
		}, []string{"tool", "outcome"}),
		handoffs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "consig",
			Subsystem: "agent",
			Name:      "handoffs_total",
			Help:      "Total agent-initiated transfers to a human operator",
		}),
		outboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "consig",
			Subsystem: "messaging",
			Name:      "outbound_total",
			Help:      "Total outbound WhatsApp sends, by status",
		}, []string{"status"}),
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "consig",
			Subsystem: "messaging",
			Name:      "inbound_total",
			Help:      "Total inbound webhook messages, by status",
		}, []string{"status"}),
		modelLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "consig",
			Subsystem: "agent",
			Name:      "model_latency_seconds",
			Help:      "Latency of model calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"model"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.runsStarted, m.runsCompleted, m.toolCalls, m.handoffs, m.outboundTotal, m.inboundTotal, m.modelLatency)
	return m
}

func (m *AgentMetrics) ObserveRunStarted() {
	if m == nil {
		return
	}
	m.runsStarted.Inc()
}

func (m *AgentMetrics) ObserveRunCompleted(outcome string) {
	if m == nil {
		return
	}
	m.runsCompleted.WithLabelValues(outcome).Inc()
}

func (m *AgentMetrics) ObserveToolCall(tool, outcome string) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(tool, outcome).Inc()
}

func (m *AgentMetrics) ObserveHandoff() {
	if m == nil {
		return
	}
	m.handoffs.Inc()
}

func (m *AgentMetrics) ObserveOutbound(status string) {
	if m == nil {
		return
	}
	m.outboundTotal.WithLabelValues(status).Inc()
}

func (m *AgentMetrics) ObserveInbound(status string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(status).Inc()
}

func (m *AgentMetrics) ObserveModelLatency(model string, seconds float64) {
	if m == nil {
		return
	}
	m.modelLatency.WithLabelValues(model).Observe(seconds)
}

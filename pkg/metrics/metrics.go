package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// AgentMetrics records agent turn and delivery outcomes.
type AgentMetrics struct {
	turnDuration *prometheus.HistogramVec
	turns        *prometheus.CounterVec
	toolCalls    *prometheus.CounterVec
	deliveries   *prometheus.CounterVec
}

// NewAgentMetrics registers the agent metrics on the provided registerer.
// A nil registerer yields a no-op recorder, which tests rely on.
func NewAgentMetrics(reg prometheus.Registerer) *AgentMetrics {
	if reg == nil {
		return &AgentMetrics{}
	}
	turnDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "agent_turn_duration_seconds",
		Help:    "Duration of full agent turns in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	turns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agent_turns_total",
		Help: "Completed agent turns by outcome.",
	}, []string{"outcome"})
	toolCalls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agent_tool_calls_total",
		Help: "Tool invocations resolved for the agent.",
	}, []string{"tool"})
	deliveries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbound_messages_total",
		Help: "Outbound WhatsApp deliveries by status.",
	}, []string{"status"})
	reg.MustRegister(turnDuration, turns, toolCalls, deliveries)
	return &AgentMetrics{
		turnDuration: turnDuration,
		turns:        turns,
		toolCalls:    toolCalls,
		deliveries:   deliveries,
	}
}

// ObserveTurn records one finished agent turn.
func (m *AgentMetrics) ObserveTurn(outcome string, duration time.Duration) {
	if m == nil || m.turns == nil {
		return
	}
	label := normalizeLabel(outcome)
	m.turns.WithLabelValues(label).Inc()
	m.turnDuration.WithLabelValues(label).Observe(duration.Seconds())
}

// IncToolCall counts one resolved tool invocation.
func (m *AgentMetrics) IncToolCall(tool string) {
	if m == nil || m.toolCalls == nil {
		return
	}
	m.toolCalls.WithLabelValues(normalizeLabel(tool)).Inc()
}

// IncDelivery counts one outbound message attempt by status.
func (m *AgentMetrics) IncDelivery(status string) {
	if m == nil || m.deliveries == nil {
		return
	}
	m.deliveries.WithLabelValues(normalizeLabel(status)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			if matchLabels(metric, labels) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func matchLabels(metric *dto.Metric, labels map[string]string) bool {
	seen := map[string]string{}
	for _, pair := range metric.GetLabel() {
		seen[pair.GetName()] = pair.GetValue()
	}
	for k, v := range labels {
		if seen[k] != v {
			return false
		}
	}
	return true
}

func TestAgentMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewAgentMetrics(reg)

	m.ObserveTurn("ok", 250*time.Millisecond)
	m.IncToolCall("get_cart")
	m.IncToolCall("get_cart")
	m.IncDelivery("failed")
	m.IncToolCall("")

	if got := counterValue(t, reg, "agent_turns_total", map[string]string{"outcome": "ok"}); got != 1 {
		t.Fatalf("expected 1 turn, got %v", got)
	}
	if got := counterValue(t, reg, "agent_tool_calls_total", map[string]string{"tool": "get_cart"}); got != 2 {
		t.Fatalf("expected 2 tool calls, got %v", got)
	}
	if got := counterValue(t, reg, "outbound_messages_total", map[string]string{"status": "failed"}); got != 1 {
		t.Fatalf("expected 1 failed delivery, got %v", got)
	}
	if got := counterValue(t, reg, "agent_tool_calls_total", map[string]string{"tool": "unknown"}); got != 1 {
		t.Fatalf("expected empty tool label normalized, got %v", got)
	}
}

func TestNilRegistererIsNoop(t *testing.T) {
	m := NewAgentMetrics(nil)
	m.ObserveTurn("ok", time.Second)
	m.IncToolCall("get_cart")
	m.IncDelivery("sent")
}

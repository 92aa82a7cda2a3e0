package triage

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/linnemanlabs/adjuster/internal/agent"
)

// Metrics holds Prometheus metrics for the decision service and the
// LLM-backed providers.
type Metrics struct {
	DecisionsTotal     *prometheus.CounterVec
	DecisionDuration   *prometheus.HistogramVec
	DecisionRiskScore  *prometheus.HistogramVec
	ProviderFailures   *prometheus.CounterVec
	ReviewsTotal       *prometheus.CounterVec
	NotificationsTotal *prometheus.CounterVec
	AgentRunsTotal     *prometheus.CounterVec
	AgentRunDuration   *prometheus.HistogramVec
	AgentRunLLMTime    *prometheus.HistogramVec
	AgentRunToolTime   prometheus.Histogram
	AgentRunTokensIn   prometheus.Histogram
	AgentRunTokensOut  prometheus.Histogram
	AgentRunToolCalls  prometheus.Histogram
	LLMCallsTotal      prometheus.Counter
	LLMTokensIn        prometheus.Counter
	LLMTokensOut       prometheus.Counter
	LLMDuration        prometheus.Histogram
	ToolCallsTotal     *prometheus.CounterVec
	ToolDuration       *prometheus.HistogramVec
	ToolInputBytes     *prometheus.HistogramVec
	ToolOutputBytes    *prometheus.HistogramVec
}

// NewMetrics registers and returns decision metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		DecisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "adjuster_decisions_total",
			Help: "Total recorded decisions by provider, severity, and action.",
		}, []string{"provider", "severity", "action"}),
		DecisionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "adjuster_decision_duration_seconds",
			Help:    "Time spent in the provider per decision in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10), // 1ms .. ~262s
		}, []string{"provider"}),
		DecisionRiskScore: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "adjuster_decision_risk_score",
			Help:    "Risk score attached to recorded decisions.",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11), // 0 .. 1
		}, []string{"provider"}),
		ProviderFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "adjuster_provider_failures_total",
			Help: "Total provider failures and recovered panics.",
		}, []string{"provider"}),
		ReviewsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "adjuster_reviews_total",
			Help: "Total reviewer verdicts by kind.",
		}, []string{"kind"}),
		NotificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "adjuster_escalation_notifications_total",
			Help: "Total escalation notifications by result.",
		}, []string{"result"}),
		AgentRunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "adjuster_agent_runs_total",
			Help: "Total LLM-backed provider runs by provider and final status.",
		}, []string{"provider", "status"}),
		AgentRunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "adjuster_agent_run_duration_seconds",
			Help:    "Duration of LLM-backed provider runs in seconds.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1s .. ~512s
		}, []string{"provider", "status", "model"}),
		AgentRunLLMTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "adjuster_agent_run_llm_time_seconds",
			Help:    "Total LLM time per provider run in seconds.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1s .. ~512s
		}, []string{"model"}),
		AgentRunToolTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "adjuster_agent_run_tool_time_seconds",
			Help:    "Total tool execution time per provider run in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8), // 1ms .. ~16s
		}),
		AgentRunTokensIn: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "adjuster_agent_run_tokens_input",
			Help:    "Input tokens consumed per provider run.",
			Buckets: prometheus.ExponentialBuckets(100, 2, 10), // 100 .. ~51200
		}),
		AgentRunTokensOut: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "adjuster_agent_run_tokens_output",
			Help:    "Output tokens consumed per provider run.",
			Buckets: prometheus.ExponentialBuckets(100, 2, 10), // 100 .. ~51200
		}),
		AgentRunToolCalls: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "adjuster_agent_run_tool_calls",
			Help:    "Tool calls per provider run.",
			Buckets: prometheus.LinearBuckets(0, 1, 16), // 0 .. 15
		}),
		LLMCallsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "adjuster_llm_calls_total",
			Help: "Total LLM provider calls.",
		}),
		LLMTokensIn: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "adjuster_llm_tokens_input_total",
			Help: "Total LLM input tokens consumed.",
		}),
		LLMTokensOut: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "adjuster_llm_tokens_output_total",
			Help: "Total LLM output tokens consumed.",
		}),
		LLMDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "adjuster_llm_call_duration_seconds",
			Help:    "Duration of individual LLM calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 8), // 0.5s .. ~64s
		}),
		ToolCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "adjuster_tool_calls_total",
			Help: "Total tool executions by tool name and status.",
		}, []string{"tool", "status"}),
		ToolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "adjuster_tool_duration_seconds",
			Help:    "Duration of tool executions in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8), // 0.1ms .. ~1.6s
		}, []string{"tool"}),
		ToolInputBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "adjuster_tool_input_bytes",
			Help:    "Size of tool input in bytes.",
			Buckets: prometheus.ExponentialBuckets(16, 4, 6), // 16B .. 16KB
		}, []string{"tool"}),
		ToolOutputBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "adjuster_tool_output_bytes",
			Help:    "Size of tool output in bytes.",
			Buckets: prometheus.ExponentialBuckets(16, 4, 6), // 16B .. 16KB
		}, []string{"tool"}),
	}

	reg.MustRegister(
		m.DecisionsTotal,
		m.DecisionDuration,
		m.DecisionRiskScore,
		m.ProviderFailures,
		m.ReviewsTotal,
		m.NotificationsTotal,
		m.AgentRunsTotal,
		m.AgentRunDuration,
		m.AgentRunLLMTime,
		m.AgentRunToolTime,
		m.AgentRunTokensIn,
		m.AgentRunTokensOut,
		m.AgentRunToolCalls,
		m.LLMCallsTotal,
		m.LLMTokensIn,
		m.LLMTokensOut,
		m.LLMDuration,
		m.ToolCallsTotal,
		m.ToolDuration,
		m.ToolInputBytes,
		m.ToolOutputBytes,
	)

	return m
}

// Hooks returns agent.EngineHooks that increment the corresponding metrics.
func (m *Metrics) Hooks() agent.EngineHooks {
	return agent.EngineHooks{
		OnLLMCall: func(inputTokens, outputTokens int, duration float64) {
			m.LLMCallsTotal.Inc()
			m.LLMTokensIn.Add(float64(inputTokens))
			m.LLMTokensOut.Add(float64(outputTokens))
			m.LLMDuration.Observe(duration)
		},
		OnToolCall: func(name string, duration float64, inputBytes, outputBytes int, isError bool) {
			status := "success"
			if isError {
				status = "error"
			}
			m.ToolCallsTotal.WithLabelValues(name, status).Inc()
			m.ToolDuration.WithLabelValues(name).Observe(duration)
			m.ToolInputBytes.WithLabelValues(name).Observe(float64(inputBytes))
			m.ToolOutputBytes.WithLabelValues(name).Observe(float64(outputBytes))
		},
		OnComplete: func(e *agent.CompleteEvent) {
			m.AgentRunsTotal.WithLabelValues(e.Provider, e.Status).Inc()
			m.AgentRunDuration.WithLabelValues(e.Provider, e.Status, e.Model).Observe(e.Duration)
			m.AgentRunLLMTime.WithLabelValues(e.Model).Observe(e.LLMTime)
			m.AgentRunToolTime.Observe(e.ToolTime)
			m.AgentRunTokensIn.Observe(float64(e.TokensIn))
			m.AgentRunTokensOut.Observe(float64(e.TokensOut))
			m.AgentRunToolCalls.Observe(float64(e.ToolCalls))
		},
	}
}

// The helpers below are nil-safe so the service runs without metrics.

func (m *Metrics) observeDecision(r *Record) {
	if m == nil {
		return
	}
	d := r.Decision
	m.DecisionsTotal.WithLabelValues(r.Provider, string(d.Severity), string(d.Action)).Inc()
	m.DecisionDuration.WithLabelValues(r.Provider).Observe(r.Duration)
	m.DecisionRiskScore.WithLabelValues(r.Provider).Observe(d.RiskScore)
}

func (m *Metrics) providerFailed(provider string) {
	if m == nil {
		return
	}
	m.ProviderFailures.WithLabelValues(provider).Inc()
}

func (m *Metrics) observeReview(k Kind) {
	if m == nil {
		return
	}
	m.ReviewsTotal.WithLabelValues(string(k)).Inc()
}

func (m *Metrics) observeNotification(err error) {
	if m == nil {
		return
	}
	result := "sent"
	if err != nil {
		result = "error"
	}
	m.NotificationsTotal.WithLabelValues(result).Inc()
}

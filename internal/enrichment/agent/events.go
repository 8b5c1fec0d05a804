package agent

import (
	"time"

	"lead-enricher/internal/common/logger"
	"lead-enricher/internal/common/metrics"
	"lead-enricher/internal/enrichment/tools"
)

type EventKind string

const (
	EventRunStarted    EventKind = "run_started"
	EventTurnCompleted EventKind = "turn_completed"
	EventToolExecuted  EventKind = "tool_executed"
	EventToolRefused   EventKind = "tool_refused"
	EventDelegatedCall EventKind = "delegated_call"
	EventRunFinished   EventKind = "run_finished"
)

// Event is emitted by the loop at each step. The loop itself never logs.
type Event struct {
	Kind     EventKind
	State    State
	Usage    Usage
	Tool     tools.ID
	Err      error
	Duration time.Duration
}

type Observer interface {
	Observe(Event)
}

type ObserverFunc func(Event)

func (f ObserverFunc) Observe(e Event) { f(e) }

// Observers fans an event out to every observer in order.
type Observers []Observer

func (o Observers) Observe(e Event) {
	for _, obs := range o {
		if obs != nil {
			obs.Observe(e)
		}
	}
}

// LoggingObserver writes events as structured log lines.
type LoggingObserver struct {
	Logger logger.Logger
}

func (o LoggingObserver) Observe(e Event) {
	fields := map[string]interface{}{
		"event":     string(e.Kind),
		"turn":      e.State.Turn,
		"toolCalls": e.State.ToolCalls,
		"costUsd":   e.State.CostUSD,
	}

	switch e.Kind {
	case EventRunStarted:
		o.Logger.Debug("Tool-use loop started", fields)
	case EventTurnCompleted:
		fields["inputTokens"] = e.Usage.InputTokens
		fields["outputTokens"] = e.Usage.OutputTokens
		fields["turnCostUsd"] = e.Usage.CostUSD
		o.Logger.Debug("Model turn completed", fields)
	case EventToolExecuted, EventDelegatedCall:
		fields["tool"] = string(e.Tool)
		fields["duration"] = e.Duration.Milliseconds()
		if e.Err != nil {
			fields["error"] = e.Err.Error()
			o.Logger.Warn("Tool returned an error to the model", fields)
			return
		}
		o.Logger.Debug("Tool executed", fields)
	case EventToolRefused:
		fields["tool"] = string(e.Tool)
		if e.Err != nil {
			fields["reason"] = e.Err.Error()
		}
		o.Logger.Warn("Tool call refused", fields)
	case EventRunFinished:
		fields["outcome"] = string(e.State.Outcome)
		fields["inputTokens"] = e.State.InputTokens
		fields["outputTokens"] = e.State.OutputTokens
		if e.Err != nil {
			fields["error"] = e.Err.Error()
		}
		o.Logger.Info("Tool-use loop finished", fields)
	}
}

// MetricsObserver updates the Prometheus collectors for one tier.
type MetricsObserver struct {
	Tier string
}

func (o MetricsObserver) Observe(e Event) {
	switch e.Kind {
	case EventRunStarted:
		metrics.EnrichmentActiveRuns.Inc()
	case EventTurnCompleted:
		metrics.EnrichmentTokens.WithLabelValues(o.Tier, "input").Add(float64(e.Usage.InputTokens))
		metrics.EnrichmentTokens.WithLabelValues(o.Tier, "output").Add(float64(e.Usage.OutputTokens))
		metrics.EnrichmentCostUSD.WithLabelValues(o.Tier).Add(e.Usage.CostUSD)
	case EventToolExecuted, EventDelegatedCall:
		status := "ok"
		if e.Err != nil {
			status = "error"
		}
		metrics.EnrichmentToolCalls.WithLabelValues(string(e.Tool), status).Inc()
	case EventToolRefused:
		metrics.EnrichmentToolCalls.WithLabelValues(string(e.Tool), "refused").Inc()
	case EventRunFinished:
		metrics.EnrichmentActiveRuns.Dec()
		metrics.EnrichmentTurns.WithLabelValues(o.Tier).Observe(float64(e.State.Turn))
	}
}

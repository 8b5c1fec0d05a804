package agent

import (
	"context"
	"fmt"

	apperrors "lead-enricher/internal/common/errors"
	"lead-enricher/internal/enrichment/tools"
)

const toolLimitMessage = "tool call limit reached for this run; stop researching and reply with the final JSON answer"

// Result is returned for every run, including failed ones, so callers can
// record partial metrics.
type Result struct {
	Text  string
	State State
}

type Loop struct {
	model    Model
	executor ToolExecutor
	observer Observer
}

func NewLoop(model Model, executor ToolExecutor, observer Observer) *Loop {
	if observer == nil {
		observer = Observers(nil)
	}
	return &Loop{model: model, executor: executor, observer: observer}
}

// Run converses with the model until it answers or a cap is hit. Local tool
// failures are handed back to the model as error results; only model errors
// and exhausted caps end the run with an error.
func (l *Loop) Run(ctx context.Context, prompt string, surface tools.Surface, limits Limits) (*Result, error) {
	state := State{Outcome: OutcomeRunning}
	messages := []Message{{Role: RoleUser, Text: prompt}}
	l.observer.Observe(Event{Kind: EventRunStarted, State: state})

	finish := func(outcome Outcome, text string, err error) (*Result, error) {
		state.Outcome = outcome
		l.observer.Observe(Event{Kind: EventRunFinished, State: state, Err: err})
		return &Result{Text: text, State: state}, err
	}

	for {
		switch state.Next(limits) {
		case StopTurnsExhausted:
			return finish(OutcomeTurnsExhausted, "", fmt.Errorf("%w: no final answer after %d turns", apperrors.ErrTurnsExhausted, state.Turn))
		case StopBudgetExceeded:
			return finish(OutcomeBudgetExceeded, "", fmt.Errorf("%w: spent $%.4f of $%.4f, next turn estimated at $%.4f",
				apperrors.ErrBudgetExceeded, state.CostUSD, limits.MaxBudgetUSD, state.LastTurnCostUSD))
		}

		if err := ctx.Err(); err != nil {
			return finish(OutcomeFailed, "", fmt.Errorf("%w: %v", apperrors.ErrInfrastructure, err))
		}

		resp, err := l.model.Generate(ctx, Request{Messages: messages, Surface: surface})
		if err != nil {
			return finish(OutcomeFailed, "", fmt.Errorf("model turn %d: %w", state.Turn+1, err))
		}

		state = state.RecordTurn(resp.Usage)
		l.observer.Observe(Event{Kind: EventTurnCompleted, State: state, Usage: resp.Usage})

		for _, id := range resp.Delegated {
			state = state.RecordToolCall(id)
			l.observer.Observe(Event{Kind: EventDelegatedCall, State: state, Tool: id})
		}

		messages = append(messages, Message{Role: RoleModel, Text: resp.Text, ToolCalls: resp.ToolCalls, Native: resp.Native})
		if resp.Final() {
			return finish(OutcomeSuccess, resp.Text, nil)
		}

		results := make([]tools.Result, 0, len(resp.Resolved)+len(resp.ToolCalls))
		results = append(results, resp.Resolved...)
		for _, call := range resp.ToolCalls {
			var res tools.Result
			res, state = l.execute(ctx, call, surface, limits, state)
			results = append(results, res)
		}
		messages = append(messages, Message{Role: RoleTool, ToolResults: results})
	}
}

func (l *Loop) execute(ctx context.Context, call tools.Call, surface tools.Surface, limits Limits, state State) (tools.Result, State) {
	def, known := tools.Lookup(call.Tool)
	if !known || !surface.Allows(call.Tool) || def.Execution != tools.Local {
		res := tools.ErrorPayload(call, fmt.Sprintf("tool %q is not available in this run", call.Tool))
		l.observer.Observe(Event{Kind: EventToolRefused, State: state, Tool: call.Tool, Err: res.Err})
		return res, state
	}

	if !state.ToolBudgetLeft(limits) {
		res := tools.ErrorPayload(call, toolLimitMessage)
		l.observer.Observe(Event{Kind: EventToolRefused, State: state, Tool: call.Tool, Err: res.Err})
		return res, state
	}

	res := l.executor.Execute(ctx, call)
	state = state.RecordToolCall(call.Tool)
	l.observer.Observe(Event{Kind: EventToolExecuted, State: state, Tool: call.Tool, Err: res.Err, Duration: res.Duration})
	return res, state
}

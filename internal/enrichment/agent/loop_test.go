package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	apperrors "lead-enricher/internal/common/errors"
	"lead-enricher/internal/common/logger"
	"lead-enricher/internal/enrichment/tools"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedModel replays responses in order and repeats the last one.
type scriptedModel struct {
	mu        sync.Mutex
	responses []*Response
	err       error
	requests  []Request
}

func (m *scriptedModel) Generate(_ context.Context, req Request) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	i := len(m.requests) - 1
	if i >= len(m.responses) {
		i = len(m.responses) - 1
	}
	resp := *m.responses[i]
	return &resp, nil
}

func (m *scriptedModel) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

type fakeExecutor struct {
	calls []tools.Call
	fail  bool
}

func (e *fakeExecutor) Execute(_ context.Context, call tools.Call) tools.Result {
	e.calls = append(e.calls, call)
	if e.fail {
		return tools.ErrorPayload(call, "connection refused")
	}
	return tools.Result{CallID: call.ID, Tool: call.Tool, Payload: map[string]interface{}{"title": "Acme"}}
}

func scrapeCall(id string) tools.Call {
	return tools.Call{ID: id, Tool: tools.ScrapeCompanyWebsite, Args: map[string]interface{}{"url": "https://acme.com"}}
}

var mediumSurface = tools.NewSurface([]tools.ID{tools.WebSearch, tools.ScrapeCompanyWebsite})

func generous() Limits {
	return Limits{MaxTurns: 10, MaxToolCalls: 10, MaxBudgetUSD: 1}
}

func TestRun_FinalAnswerFirstTurn(t *testing.T) {
	model := &scriptedModel{responses: []*Response{{Text: `{"ok":true}`, Usage: Usage{InputTokens: 100, OutputTokens: 20, CostUSD: 0.001}}}}
	loop := NewLoop(model, &fakeExecutor{}, LoggingObserver{Logger: logger.NewTestLogger(t)})

	res, err := loop.Run(context.Background(), "prompt", mediumSurface, generous())
	require.NoError(t, err)

	assert.Equal(t, `{"ok":true}`, res.Text)
	assert.Equal(t, OutcomeSuccess, res.State.Outcome)
	assert.Equal(t, 1, res.State.Turn)
	assert.Equal(t, 0, res.State.ToolCalls)
	assert.Equal(t, int64(100), res.State.InputTokens)
	assert.Equal(t, int64(20), res.State.OutputTokens)
	assert.InDelta(t, 0.001, res.State.CostUSD, 1e-12)
}

func TestRun_ExecutesLocalToolThenAnswers(t *testing.T) {
	model := &scriptedModel{responses: []*Response{
		{ToolCalls: []tools.Call{scrapeCall("c1")}, Usage: Usage{CostUSD: 0.001}},
		{Text: "done", Usage: Usage{CostUSD: 0.001}},
	}}
	exec := &fakeExecutor{}

	res, err := NewLoop(model, exec, nil).Run(context.Background(), "prompt", mediumSurface, generous())
	require.NoError(t, err)

	assert.Equal(t, "done", res.Text)
	assert.Equal(t, 2, res.State.Turn)
	assert.Equal(t, 1, res.State.ToolCalls)
	assert.Equal(t, []tools.ID{tools.ScrapeCompanyWebsite}, res.State.ToolsUsed)
	require.Len(t, exec.calls, 1)

	second := model.requests[1].Messages
	require.Len(t, second, 3)
	assert.Equal(t, RoleUser, second[0].Role)
	assert.Equal(t, RoleModel, second[1].Role)
	assert.Equal(t, RoleTool, second[2].Role)
	assert.Equal(t, "c1", second[2].ToolResults[0].CallID)
}

func TestRun_TurnsExhaustedExactlyAtMaxTurns(t *testing.T) {
	model := &scriptedModel{responses: []*Response{{ToolCalls: []tools.Call{scrapeCall("c")}}}}

	res, err := NewLoop(model, &fakeExecutor{}, nil).Run(context.Background(), "prompt", mediumSurface,
		Limits{MaxTurns: 2, MaxToolCalls: 10, MaxBudgetUSD: 1})

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrTurnsExhausted)
	assert.Equal(t, 2, model.calls())
	assert.Equal(t, 2, res.State.Turn)
	assert.Equal(t, OutcomeTurnsExhausted, res.State.Outcome)
	assert.Empty(t, res.Text)
}

func TestRun_BudgetStopsBeforeOverspendingTurn(t *testing.T) {
	// Cumulative cost: 0.001, 0.004, 0.009; a fourth turn would reach 0.016.
	model := &scriptedModel{responses: []*Response{
		{ToolCalls: []tools.Call{scrapeCall("a")}, Usage: Usage{CostUSD: 0.001}},
		{ToolCalls: []tools.Call{scrapeCall("b")}, Usage: Usage{CostUSD: 0.003}},
		{ToolCalls: []tools.Call{scrapeCall("c")}, Usage: Usage{CostUSD: 0.005}},
		{ToolCalls: []tools.Call{scrapeCall("d")}, Usage: Usage{CostUSD: 0.007}},
	}}

	res, err := NewLoop(model, &fakeExecutor{}, nil).Run(context.Background(), "prompt", mediumSurface,
		Limits{MaxTurns: 10, MaxToolCalls: 10, MaxBudgetUSD: 0.01})

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrBudgetExceeded)
	assert.Equal(t, 3, model.calls())
	assert.Equal(t, OutcomeBudgetExceeded, res.State.Outcome)
	assert.LessOrEqual(t, res.State.CostUSD, 0.01)
	assert.InDelta(t, 0.009, res.State.CostUSD, 1e-9)
}

func TestRun_ToolCallCapReturnsErrorResult(t *testing.T) {
	model := &scriptedModel{responses: []*Response{
		{ToolCalls: []tools.Call{scrapeCall("c1"), scrapeCall("c2")}},
		{Text: "final"},
	}}
	exec := &fakeExecutor{}

	res, err := NewLoop(model, exec, nil).Run(context.Background(), "prompt", mediumSurface,
		Limits{MaxTurns: 5, MaxToolCalls: 1, MaxBudgetUSD: 1})
	require.NoError(t, err)

	assert.Len(t, exec.calls, 1)
	assert.Equal(t, 1, res.State.ToolCalls)

	results := model.requests[1].Messages[2].ToolResults
	require.Len(t, results, 2)
	assert.Nil(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, apperrors.ErrToolExecution)
	assert.Contains(t, results[1].Payload["error"], "tool call limit reached")
}

func TestRun_ToolsOutsideSurfaceAreRefused(t *testing.T) {
	standard := tools.NewSurface(tools.DefaultsForTier("standard"))
	model := &scriptedModel{responses: []*Response{
		{ToolCalls: []tools.Call{
			{ID: "x", Tool: tools.ScrapeLinkedIn, Args: map[string]interface{}{"url": "https://linkedin.com/in/sarah"}},
			{ID: "y", Tool: tools.WebSearch},
			{ID: "z", Tool: "delete_database"},
		}},
		{Text: "final"},
	}}
	exec := &fakeExecutor{}

	res, err := NewLoop(model, exec, nil).Run(context.Background(), "prompt", standard, generous())
	require.NoError(t, err)

	assert.Empty(t, exec.calls)
	assert.Equal(t, 0, res.State.ToolCalls)
	for _, r := range model.requests[1].Messages[2].ToolResults {
		assert.Contains(t, r.Payload["error"], "not available in this run")
	}
}

func TestRun_ToolFailureIsNotFatal(t *testing.T) {
	model := &scriptedModel{responses: []*Response{
		{ToolCalls: []tools.Call{scrapeCall("c1")}},
		{Text: "final"},
	}}

	res, err := NewLoop(model, &fakeExecutor{fail: true}, nil).Run(context.Background(), "prompt", mediumSurface, generous())
	require.NoError(t, err)

	assert.Equal(t, "final", res.Text)
	assert.Equal(t, 1, res.State.ToolCalls)
	assert.Contains(t, model.requests[1].Messages[2].ToolResults[0].Payload["error"], "connection refused")
}

func TestRun_ModelErrorPropagates(t *testing.T) {
	model := &scriptedModel{err: fmt.Errorf("%w: gemini: 503", apperrors.ErrInfrastructure)}

	res, err := NewLoop(model, &fakeExecutor{}, nil).Run(context.Background(), "prompt", mediumSurface, generous())
	require.Error(t, err)

	assert.ErrorIs(t, err, apperrors.ErrInfrastructure)
	assert.Equal(t, OutcomeFailed, res.State.Outcome)
	assert.Equal(t, 0, res.State.Turn)
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	model := &scriptedModel{responses: []*Response{{Text: "final"}}}

	_, err := NewLoop(model, &fakeExecutor{}, nil).Run(ctx, "prompt", mediumSurface, generous())
	assert.ErrorIs(t, err, apperrors.ErrInfrastructure)
	assert.Zero(t, model.calls())
}

func TestRun_CountsDelegatedCalls(t *testing.T) {
	model := &scriptedModel{responses: []*Response{
		{Text: "final", Delegated: []tools.ID{tools.WebSearch, tools.WebSearch}},
	}}

	res, err := NewLoop(model, &fakeExecutor{}, nil).Run(context.Background(), "prompt", mediumSurface, generous())
	require.NoError(t, err)

	assert.Equal(t, 2, res.State.ToolCalls)
	assert.Equal(t, []tools.ID{tools.WebSearch}, res.State.ToolsUsed)
}

func TestRun_SendsResolvedResultsWithLocalResults(t *testing.T) {
	search := tools.Result{CallID: "s1", Tool: tools.WebSearch, Payload: map[string]interface{}{"content": "Acme raised a Series B"}}
	model := &scriptedModel{responses: []*Response{
		{
			ToolCalls: []tools.Call{scrapeCall("c1")},
			Delegated: []tools.ID{tools.WebSearch},
			Resolved:  []tools.Result{search},
		},
		{Text: "final"},
	}}
	exec := &fakeExecutor{}

	res, err := NewLoop(model, exec, nil).Run(context.Background(), "prompt", mediumSurface, generous())
	require.NoError(t, err)

	assert.Equal(t, 2, res.State.ToolCalls)
	require.Len(t, exec.calls, 1)
	results := model.requests[1].Messages[2].ToolResults
	require.Len(t, results, 2)
	assert.Equal(t, "s1", results[0].CallID)
	assert.Equal(t, "c1", results[1].CallID)
}

func TestRun_EmitsEvents(t *testing.T) {
	var kinds []EventKind
	obs := ObserverFunc(func(e Event) { kinds = append(kinds, e.Kind) })
	model := &scriptedModel{responses: []*Response{
		{ToolCalls: []tools.Call{scrapeCall("c1")}},
		{Text: "final"},
	}}

	_, err := NewLoop(model, &fakeExecutor{}, Observers{obs, MetricsObserver{Tier: "medium"}}).
		Run(context.Background(), "prompt", mediumSurface, generous())
	require.NoError(t, err)

	assert.Equal(t, []EventKind{
		EventRunStarted,
		EventTurnCompleted,
		EventToolExecuted,
		EventTurnCompleted,
		EventRunFinished,
	}, kinds)
}

func TestRun_FailureKeepsPartialMetrics(t *testing.T) {
	model := &scriptedModel{responses: []*Response{
		{ToolCalls: []tools.Call{scrapeCall("c1")}, Usage: Usage{InputTokens: 10, OutputTokens: 5, CostUSD: 0.002}},
	}}

	res, err := NewLoop(model, &fakeExecutor{}, nil).Run(context.Background(), "prompt", mediumSurface,
		Limits{MaxTurns: 1, MaxToolCalls: 5, MaxBudgetUSD: 1})

	require.True(t, errors.Is(err, apperrors.ErrTurnsExhausted))
	assert.Equal(t, int64(10), res.State.InputTokens)
	assert.Equal(t, 1, res.State.ToolCalls)
	assert.InDelta(t, 0.002, res.State.CostUSD, 1e-12)
}

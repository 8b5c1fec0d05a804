package agent

import (
	"testing"

	"lead-enricher/internal/enrichment/tools"

	"github.com/stretchr/testify/assert"
)

func TestState_Next(t *testing.T) {
	limits := Limits{MaxTurns: 3, MaxToolCalls: 2, MaxBudgetUSD: 0.10}

	tests := []struct {
		name  string
		state State
		want  Decision
	}{
		{name: "first turn always allowed", state: State{}, want: Continue},
		{name: "projected within budget", state: State{Turn: 1, CostUSD: 0.04, LastTurnCostUSD: 0.04}, want: Continue},
		{name: "projected over budget", state: State{Turn: 2, CostUSD: 0.07, LastTurnCostUSD: 0.05}, want: StopBudgetExceeded},
		{name: "already over budget", state: State{Turn: 1, CostUSD: 0.2, LastTurnCostUSD: 0.2}, want: StopBudgetExceeded},
		{name: "turn cap reached", state: State{Turn: 3}, want: StopTurnsExhausted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.state.Next(limits))
		})
	}
}

func TestState_NonPositiveTurnCapStillAllowsOneTurn(t *testing.T) {
	assert.Equal(t, Continue, State{}.Next(Limits{MaxBudgetUSD: 1}))
	assert.Equal(t, StopTurnsExhausted, State{Turn: 1}.Next(Limits{MaxBudgetUSD: 1}))
}

func TestState_RecordIsMonotonic(t *testing.T) {
	s := State{}
	s = s.RecordTurn(Usage{InputTokens: 10, OutputTokens: 4, CostUSD: 0.01})
	s = s.RecordTurn(Usage{InputTokens: 5, OutputTokens: 1, CostUSD: 0.002})

	assert.Equal(t, 2, s.Turn)
	assert.Equal(t, int64(15), s.InputTokens)
	assert.Equal(t, int64(5), s.OutputTokens)
	assert.InDelta(t, 0.012, s.CostUSD, 1e-12)
	assert.InDelta(t, 0.002, s.LastTurnCostUSD, 1e-12)

	before := s.RecordToolCall(tools.WebSearch)
	after := before.RecordToolCall(tools.WebSearch).RecordToolCall(tools.ScrapeCompanyWebsite)
	assert.Equal(t, 1, before.ToolCalls)
	assert.Equal(t, []tools.ID{tools.WebSearch}, before.ToolsUsed)
	assert.Equal(t, 3, after.ToolCalls)
	assert.Equal(t, []tools.ID{tools.WebSearch, tools.ScrapeCompanyWebsite}, after.ToolsUsed)
}

func TestState_ToolBudgetLeft(t *testing.T) {
	l := Limits{MaxToolCalls: 2}
	assert.True(t, State{ToolCalls: 1}.ToolBudgetLeft(l))
	assert.False(t, State{ToolCalls: 2}.ToolBudgetLeft(l))
	assert.True(t, State{ToolCalls: 50}.ToolBudgetLeft(Limits{}))
}

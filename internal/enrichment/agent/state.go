package agent

import "lead-enricher/internal/enrichment/tools"

type Outcome string

const (
	OutcomeRunning        Outcome = "running"
	OutcomeSuccess        Outcome = "success"
	OutcomeFailed         Outcome = "failed"
	OutcomeTurnsExhausted Outcome = "turns_exhausted"
	OutcomeBudgetExceeded Outcome = "budget_exceeded"
)

type Limits struct {
	MaxTurns     int
	MaxToolCalls int
	MaxBudgetUSD float64
}

// State is the loop's bookkeeping. All counters start at zero and only grow.
type State struct {
	Turn            int
	ToolCalls       int
	InputTokens     int64
	OutputTokens    int64
	CostUSD         float64
	LastTurnCostUSD float64
	ToolsUsed       []tools.ID
	Outcome         Outcome
}

// Decision is what to do before the next model call.
type Decision int

const (
	Continue Decision = iota
	StopTurnsExhausted
	StopBudgetExceeded
)

// Next decides whether another model call may be made. The next turn is
// assumed to cost what the previous one did; a run whose projected total
// exceeds the budget stops before the call is sent.
func (s State) Next(l Limits) Decision {
	if s.Turn >= max(l.MaxTurns, 1) {
		return StopTurnsExhausted
	}
	if s.Turn > 0 && s.CostUSD+s.LastTurnCostUSD > l.MaxBudgetUSD {
		return StopBudgetExceeded
	}
	return Continue
}

// RecordTurn accounts for a model response.
func (s State) RecordTurn(u Usage) State {
	s.Turn++
	s.InputTokens += u.InputTokens
	s.OutputTokens += u.OutputTokens
	s.CostUSD += u.CostUSD
	s.LastTurnCostUSD = u.CostUSD
	return s
}

// RecordToolCall counts one executed call and remembers the tool.
func (s State) RecordToolCall(id tools.ID) State {
	s.ToolCalls++
	for _, used := range s.ToolsUsed {
		if used == id {
			return s
		}
	}
	s.ToolsUsed = append(append([]tools.ID(nil), s.ToolsUsed...), id)
	return s
}

// ToolBudgetLeft reports whether another local call may run.
func (s State) ToolBudgetLeft(l Limits) bool {
	return l.MaxToolCalls <= 0 || s.ToolCalls < l.MaxToolCalls
}

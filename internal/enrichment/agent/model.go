// Package agent drives the tool-use conversation with the model under turn,
// tool-call and budget caps.
package agent

import (
	"context"

	"lead-enricher/internal/enrichment/tools"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
	RoleTool  Role = "tool"
)

// Message is one entry of the conversation. Native lets a model adapter
// replay its own representation of a model turn unchanged.
type Message struct {
	Role        Role
	Text        string
	ToolCalls   []tools.Call
	ToolResults []tools.Result
	Native      interface{}
}

type Usage struct {
	InputTokens  int64
	OutputTokens int64
	CostUSD      float64
}

func (u Usage) Add(o Usage) Usage {
	return Usage{
		InputTokens:  u.InputTokens + o.InputTokens,
		OutputTokens: u.OutputTokens + o.OutputTokens,
		CostUSD:      u.CostUSD + o.CostUSD,
	}
}

// Request is what the loop sends on every turn. Only tools on the surface
// are declared to the model.
type Request struct {
	Messages []Message
	Surface  tools.Surface
}

// Response is one model turn. ToolCalls are local calls the model wants
// executed; Delegated lists the provider-hosted calls it already made.
// Resolved carries results the adapter already produced for calls made in the
// same model message; they are sent back together with the local results.
type Response struct {
	Text      string
	ToolCalls []tools.Call
	Delegated []tools.ID
	Resolved  []tools.Result
	Usage     Usage
	Native    interface{}
}

// Final reports whether the model produced an answer instead of asking for tools.
func (r *Response) Final() bool {
	return len(r.ToolCalls) == 0
}

type Model interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

type ToolExecutor interface {
	Execute(ctx context.Context, call tools.Call) tools.Result
}

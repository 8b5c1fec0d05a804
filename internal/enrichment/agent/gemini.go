package agent

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	apperrors "lead-enricher/internal/common/errors"
	"lead-enricher/internal/common/validation"
	"lead-enricher/internal/enrichment/tools"

	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	// Timeout bounds a single model call.
	Timeout               time.Duration
	MaxOutputTokens       int32
	InputPricePerMillion  float64
	OutputPricePerMillion float64
	RequestsPerMinute     int
}

// Pricing converts token counts to USD.
type Pricing struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

func (p Pricing) Cost(inputTokens, outputTokens int64) float64 {
	return float64(inputTokens)*p.InputPerMillion/1e6 + float64(outputTokens)*p.OutputPerMillion/1e6
}

// GeminiModel talks to the Gemini API. Web search and URL fetching are
// delegated to Google's grounding tools; local tools are declared as functions.
type GeminiModel struct {
	generate generateFunc
	model    string
	config   GeminiConfig
	pricing  Pricing
	limiter  *rate.Limiter
}

type generateFunc func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)

// maxGroundingRounds bounds how many times one turn answers delegated calls
// before handing control back to the loop.
const maxGroundingRounds = 4

func NewGeminiModel(ctx context.Context, cfg GeminiConfig) (*GeminiModel, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: gemini api key is required", apperrors.ErrConfigInvalid)
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("%w: gemini model is required", apperrors.ErrConfigInvalid)
	}

	cc := &genai.ClientConfig{
		APIKey:  strings.TrimSpace(cfg.APIKey),
		Backend: genai.BackendGeminiAPI,
	}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		cc.HTTPOptions.BaseURL = strings.TrimSpace(cfg.BaseURL)
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	g := &GeminiModel{
		generate: client.Models.GenerateContent,
		model:    strings.TrimSpace(cfg.Model),
		config:   cfg,
		pricing:  Pricing{InputPerMillion: cfg.InputPricePerMillion, OutputPerMillion: cfg.OutputPricePerMillion},
	}
	if cfg.RequestsPerMinute > 0 {
		g.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}
	return g, nil
}

func (g *GeminiModel) Generate(ctx context.Context, req Request) (*Response, error) {
	contents := geminiContents(req.Messages)
	if !mixedSurface(req.Surface) {
		resp, err := g.call(ctx, contents, geminiTools(req.Surface))
		if err != nil {
			return nil, err
		}
		return g.convert(resp, req.Surface), nil
	}
	return g.generateMixed(ctx, contents, req.Surface)
}

// generateMixed serves surfaces that combine delegated and local tools. The
// API rejects grounding tools next to function declarations, so every tool is
// declared as a function and web_search / web_fetch calls are answered here by
// separate grounding-only requests. Local calls go back to the loop.
func (g *GeminiModel) generateMixed(ctx context.Context, contents []*genai.Content, surface tools.Surface) (*Response, error) {
	decls := geminiTools(surface)
	out := &Response{}
	var replay []*genai.Content

	for round := 0; ; round++ {
		resp, err := g.call(ctx, contents, decls)
		if err != nil {
			return nil, err
		}
		turn := g.convert(resp, surface)
		out.Usage = out.Usage.Add(turn.Usage)
		out.Text = turn.Text
		content, _ := turn.Native.(*genai.Content)
		if content != nil {
			replay = append(replay, content)
		}

		var delegated, local []tools.Call
		for _, call := range turn.ToolCalls {
			if def, ok := tools.Lookup(call.Tool); ok && def.Execution == tools.Delegated && surface.Allows(call.Tool) {
				delegated = append(delegated, call)
			} else {
				local = append(local, call)
			}
		}
		if len(delegated) == 0 || round == maxGroundingRounds {
			// Past the round limit leftover delegated calls reach the loop,
			// which refuses them with an error result.
			out.ToolCalls = turn.ToolCalls
			out.Native = replay
			return out, nil
		}

		resolved := make([]tools.Result, 0, len(delegated))
		for _, call := range delegated {
			res, usage := g.ground(ctx, call)
			out.Usage = out.Usage.Add(usage)
			out.Delegated = append(out.Delegated, call.Tool)
			resolved = append(resolved, res)
		}
		if len(local) > 0 {
			out.ToolCalls = local
			out.Resolved = resolved
			out.Native = replay
			return out, nil
		}

		answer := functionResponses(resolved)
		replay = append(replay, answer)
		contents = append(contents, content, answer)
	}
}

// ground answers a delegated call with a request that carries only the
// matching grounding tool. Failures become error results for the model.
func (g *GeminiModel) ground(ctx context.Context, call tools.Call) (tools.Result, Usage) {
	started := time.Now()

	var (
		prompt string
		tool   *genai.Tool
	)
	switch call.Tool {
	case tools.WebSearch:
		query, _ := call.Args["query"].(string)
		if strings.TrimSpace(query) == "" {
			return tools.ErrorPayload(call, "query is required"), Usage{}
		}
		prompt = "Search the web and report what you find, citing the source URL of each fact.\nQuery: " + query
		tool = &genai.Tool{GoogleSearch: &genai.GoogleSearch{}}
	case tools.WebFetch:
		url, _ := call.Args["url"].(string)
		if !validation.ValidateURL(url) {
			return tools.ErrorPayload(call, fmt.Sprintf("invalid url %q", url)), Usage{}
		}
		prompt = "Read " + url + " and summarise its content. Quote names, titles and figures exactly."
		tool = &genai.Tool{URLContext: &genai.URLContext{}}
	default:
		return tools.ErrorPayload(call, fmt.Sprintf("tool %q is not delegated", call.Tool)), Usage{}
	}

	resp, err := g.call(ctx, []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}, []*genai.Tool{tool})
	if err != nil {
		return tools.ErrorPayload(call, err.Error()), Usage{}
	}
	turn := g.convert(resp, tools.Surface{})
	return tools.Result{
		CallID: call.ID,
		Tool:   call.Tool,
		Payload: map[string]interface{}{
			"content": turn.Text,
			"sources": groundingSources(resp),
		},
		Duration: time.Since(started),
	}, turn.Usage
}

// call sends one request under the rate limit and the per-call timeout.
func (g *GeminiModel) call(ctx context.Context, contents []*genai.Content, declared []*genai.Tool) (*genai.GenerateContentResponse, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: gemini rate limit wait: %v", apperrors.ErrInfrastructure, err)
		}
	}
	if g.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.config.Timeout)
		defer cancel()
	}

	gc := &genai.GenerateContentConfig{
		Tools:          declared,
		CandidateCount: 1,
	}
	if g.config.MaxOutputTokens > 0 {
		gc.MaxOutputTokens = g.config.MaxOutputTokens
	}

	resp, err := g.generate(ctx, g.model, contents, gc)
	if err != nil {
		return nil, classifyErr(err)
	}
	return resp, nil
}

func (g *GeminiModel) convert(resp *genai.GenerateContentResponse, surface tools.Surface) *Response {
	out := &Response{}
	if resp == nil {
		return out
	}

	if u := resp.UsageMetadata; u != nil {
		out.Usage.InputTokens = int64(u.PromptTokenCount) + int64(u.ToolUsePromptTokenCount)
		out.Usage.OutputTokens = int64(u.CandidatesTokenCount) + int64(u.ThoughtsTokenCount)
		out.Usage.CostUSD = g.pricing.Cost(out.Usage.InputTokens, out.Usage.OutputTokens)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return out
	}
	c := resp.Candidates[0]
	out.Native = c.Content
	out.Text = resp.Text()

	for _, fc := range resp.FunctionCalls() {
		if fc == nil {
			continue
		}
		out.ToolCalls = append(out.ToolCalls, tools.Call{ID: fc.ID, Tool: tools.ID(fc.Name), Args: fc.Args})
	}

	if surface.Allows(tools.WebSearch) && c.GroundingMetadata != nil {
		for range c.GroundingMetadata.WebSearchQueries {
			out.Delegated = append(out.Delegated, tools.WebSearch)
		}
	}
	if surface.Allows(tools.WebFetch) && c.URLContextMetadata != nil {
		for _, m := range c.URLContextMetadata.URLMetadata {
			if m != nil {
				out.Delegated = append(out.Delegated, tools.WebFetch)
			}
		}
	}
	return out
}

func mixedSurface(surface tools.Surface) bool {
	return len(surface.Delegated()) > 0 && len(surface.Local()) > 0
}

// delegatedParams describes delegated tools when they have to be declared as
// functions.
var delegatedParams = map[tools.ID][]tools.Param{
	tools.WebSearch: {{Name: "query", Type: tools.ParamString, Description: "Search query", Required: true}},
	tools.WebFetch:  {{Name: "url", Type: tools.ParamString, Description: "Absolute http(s) URL to read", Required: true}},
}

// geminiTools declares only what the surface allows. A surface with only
// delegated tools uses the grounding tools directly; once local tools are
// present everything is declared as a function.
func geminiTools(surface tools.Surface) []*genai.Tool {
	if !mixedSurface(surface) {
		var out []*genai.Tool
		for _, id := range surface.Delegated() {
			switch id {
			case tools.WebSearch:
				out = append(out, &genai.Tool{GoogleSearch: &genai.GoogleSearch{}})
			case tools.WebFetch:
				out = append(out, &genai.Tool{URLContext: &genai.URLContext{}})
			}
		}
		if decls := functionDecls(surface.Local(), nil); len(decls) > 0 {
			out = append(out, &genai.Tool{FunctionDeclarations: decls})
		}
		return out
	}

	var delegated []tools.Definition
	for _, id := range surface.Delegated() {
		if def, ok := tools.Lookup(id); ok {
			def.Params = delegatedParams[id]
			delegated = append(delegated, def)
		}
	}
	return []*genai.Tool{{FunctionDeclarations: functionDecls(surface.Local(), delegated)}}
}

func functionDecls(local, delegated []tools.Definition) []*genai.FunctionDeclaration {
	var decls []*genai.FunctionDeclaration
	for _, def := range append(append([]tools.Definition(nil), delegated...), local...) {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        string(def.ID),
			Description: def.Description,
			Parameters:  paramsSchema(def.Params),
		})
	}
	return decls
}

func paramsSchema(params []tools.Param) *genai.Schema {
	s := &genai.Schema{Type: genai.TypeObject, Properties: map[string]*genai.Schema{}}
	for _, p := range params {
		t := genai.TypeString
		if p.Type == tools.ParamBoolean {
			t = genai.TypeBoolean
		}
		s.Properties[p.Name] = &genai.Schema{Type: t, Description: p.Description}
		if p.Required {
			s.Required = append(s.Required, p.Name)
		}
	}
	return s
}

func geminiContents(messages []Message) []*genai.Content {
	out := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleUser:
			out = append(out, genai.NewContentFromText(m.Text, genai.RoleUser))
		case RoleModel:
			switch native := m.Native.(type) {
			case *genai.Content:
				if native != nil {
					out = append(out, native)
					continue
				}
			case []*genai.Content:
				if len(native) > 0 {
					out = append(out, native...)
					continue
				}
			}
			out = append(out, genai.NewContentFromText(m.Text, genai.RoleModel))
		case RoleTool:
			out = append(out, functionResponses(m.ToolResults))
		}
	}
	return out
}

func functionResponses(results []tools.Result) *genai.Content {
	parts := make([]*genai.Part, 0, len(results))
	for _, r := range results {
		parts = append(parts, &genai.Part{FunctionResponse: &genai.FunctionResponse{
			ID:       r.CallID,
			Name:     string(r.Tool),
			Response: r.Payload,
		}})
	}
	return &genai.Content{Role: string(genai.RoleUser), Parts: parts}
}

func groundingSources(resp *genai.GenerateContentResponse) []string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return []string{}
	}
	c := resp.Candidates[0]
	seen := map[string]bool{}
	out := []string{}
	add := func(u string) {
		if u != "" && !seen[u] {
			seen[u] = true
			out = append(out, u)
		}
	}
	if c.GroundingMetadata != nil {
		for _, chunk := range c.GroundingMetadata.GroundingChunks {
			if chunk != nil && chunk.Web != nil {
				add(chunk.Web.URI)
			}
		}
	}
	if c.URLContextMetadata != nil {
		for _, m := range c.URLContextMetadata.URLMetadata {
			if m != nil {
				add(m.RetrievedURL)
			}
		}
	}
	return out
}

// classifyErr maps every model-service failure to INFRASTRUCTURE_ERROR; the
// message says whether the job system's retry is likely to help.
func classifyErr(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == 429 || apiErr.Code/100 == 5 {
			return fmt.Errorf("%w: gemini transient (%d): %v", apperrors.ErrInfrastructure, apiErr.Code, err)
		}
		return fmt.Errorf("%w: gemini: %v", apperrors.ErrInfrastructure, err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("%w: gemini timeout: %v", apperrors.ErrInfrastructure, err)
	}
	return fmt.Errorf("%w: gemini: %v", apperrors.ErrInfrastructure, err)
}

package agent

import (
	"context"
	"errors"
	"net"
	"testing"

	apperrors "lead-enricher/internal/common/errors"
	"lead-enricher/internal/enrichment/tools"
	"lead-enricher/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestPricing_Cost(t *testing.T) {
	p := Pricing{InputPerMillion: 0.30, OutputPerMillion: 2.50}
	assert.InDelta(t, 0.0003+0.0025, p.Cost(1000, 1000), 1e-12)
	assert.Zero(t, p.Cost(0, 0))
}

func TestGeminiTools_OnlySurface(t *testing.T) {
	standard := geminiTools(tools.NewSurface([]tools.ID{tools.WebSearch, tools.WebFetch}))
	require.Len(t, standard, 2)
	assert.NotNil(t, standard[0].GoogleSearch)
	assert.NotNil(t, standard[1].URLContext)

	localOnly := geminiTools(tools.NewSurface([]tools.ID{tools.ScrapeCompanyWebsite}))
	require.Len(t, localOnly, 1)
	assert.Len(t, localOnly[0].FunctionDeclarations, 1)

	assert.Empty(t, geminiTools(tools.NewSurface(nil)))
}

func TestGeminiTools_MixedSurfaceDeclaresOnlyFunctions(t *testing.T) {
	for _, tier := range []string{"medium", "premium"} {
		t.Run(tier, func(t *testing.T) {
			declared := geminiTools(tools.NewSurface(tools.DefaultsForTier(models.Tier(tier))))
			require.Len(t, declared, 1)
			assert.Nil(t, declared[0].GoogleSearch)
			assert.Nil(t, declared[0].URLContext)

			byName := map[string]*genai.FunctionDeclaration{}
			for _, d := range declared[0].FunctionDeclarations {
				byName[d.Name] = d
			}
			require.Contains(t, byName, "web_search")
			require.Contains(t, byName, "web_fetch")
			require.Contains(t, byName, "scrape_company_website")
			assert.Equal(t, []string{"query"}, byName["web_search"].Parameters.Required)
			assert.Equal(t, []string{"url"}, byName["web_fetch"].Parameters.Required)
			assert.Equal(t, []string{"url"}, byName["scrape_company_website"].Parameters.Required)
		})
	}

	premium := geminiTools(tools.NewSurface(tools.DefaultsForTier(models.TierPremium)))
	var linkedin *genai.FunctionDeclaration
	for _, d := range premium[0].FunctionDeclarations {
		if d.Name == "scrape_linkedin" {
			linkedin = d
		}
	}
	require.NotNil(t, linkedin)
	assert.Equal(t, genai.TypeBoolean, linkedin.Parameters.Properties["include_education"].Type)
}

// fakeGenerate replays responses and records every request.
type fakeGenerate struct {
	responses []*genai.GenerateContentResponse
	contents  [][]*genai.Content
	configs   []*genai.GenerateContentConfig
}

func (f *fakeGenerate) generate(_ context.Context, _ string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.contents = append(f.contents, append([]*genai.Content(nil), contents...))
	f.configs = append(f.configs, cfg)
	i := len(f.configs) - 1
	if i >= len(f.responses) {
		return nil, genai.APIError{Code: 500, Message: "unexpected call"}
	}
	return f.responses[i], nil
}

func callResponse(in, out int32, calls ...*genai.FunctionCall) *genai.GenerateContentResponse {
	parts := make([]*genai.Part, 0, len(calls))
	for _, c := range calls {
		parts = append(parts, &genai.Part{FunctionCall: c})
	}
	return &genai.GenerateContentResponse{
		Candidates:    []*genai.Candidate{{Content: &genai.Content{Role: "model", Parts: parts}}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{PromptTokenCount: in, CandidatesTokenCount: out},
	}
}

func groundedResponse(text, uri string, in, out int32) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Role: "model", Parts: []*genai.Part{{Text: text}}},
			GroundingMetadata: &genai.GroundingMetadata{
				WebSearchQueries: []string{"acme funding"},
				GroundingChunks:  []*genai.GroundingChunk{{Web: &genai.GroundingChunkWeb{URI: uri}}},
			},
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{PromptTokenCount: in, CandidatesTokenCount: out},
	}
}

func assertNoMixedTools(t *testing.T, cfg *genai.GenerateContentConfig) {
	t.Helper()
	var builtin, functions bool
	for _, tool := range cfg.Tools {
		builtin = builtin || tool.GoogleSearch != nil || tool.URLContext != nil
		functions = functions || len(tool.FunctionDeclarations) > 0
	}
	assert.False(t, builtin && functions, "grounding tools sent together with function declarations")
}

func TestGeminiGenerate_MixedSurfaceGroundsDelegatedCallsSeparately(t *testing.T) {
	fake := &fakeGenerate{responses: []*genai.GenerateContentResponse{
		callResponse(100, 10, &genai.FunctionCall{ID: "s1", Name: "web_search", Args: map[string]any{"query": "acme funding"}}),
		groundedResponse("Acme raised $20M in March.", "https://news.example/acme", 50, 20),
		callResponse(200, 10, &genai.FunctionCall{ID: "c1", Name: "scrape_company_website", Args: map[string]any{"url": "https://acme.com"}}),
	}}
	g := &GeminiModel{generate: fake.generate, model: "gemini-2.5-flash"}
	surface := tools.NewSurface(tools.DefaultsForTier(models.TierMedium))

	resp, err := g.Generate(context.Background(), Request{
		Messages: []Message{{Role: RoleUser, Text: "research Acme"}},
		Surface:  surface,
	})
	require.NoError(t, err)

	require.Len(t, fake.configs, 3)
	for _, cfg := range fake.configs {
		assertNoMixedTools(t, cfg)
	}
	require.Len(t, fake.configs[1].Tools, 1)
	assert.NotNil(t, fake.configs[1].Tools[0].GoogleSearch)
	assert.Contains(t, fake.contents[1][0].Parts[0].Text, "acme funding")

	third := fake.contents[2]
	require.Len(t, third, 3)
	fr := third[2].Parts[0].FunctionResponse
	require.NotNil(t, fr)
	assert.Equal(t, "s1", fr.ID)
	assert.Equal(t, "Acme raised $20M in March.", fr.Response["content"])
	assert.Equal(t, []string{"https://news.example/acme"}, fr.Response["sources"])

	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, tools.ScrapeCompanyWebsite, resp.ToolCalls[0].Tool)
	assert.Empty(t, resp.Resolved)
	assert.Equal(t, []tools.ID{tools.WebSearch}, resp.Delegated)
	assert.Equal(t, int64(350), resp.Usage.InputTokens)
	assert.Equal(t, int64(40), resp.Usage.OutputTokens)

	replay, ok := resp.Native.([]*genai.Content)
	require.True(t, ok)
	assert.Len(t, replay, 3)
	assert.Len(t, geminiContents([]Message{{Role: RoleUser, Text: "research Acme"}, {Role: RoleModel, Native: replay}}), 4)
}

func TestGeminiGenerate_ResolvesDelegatedCallsBesideLocalOnes(t *testing.T) {
	fake := &fakeGenerate{responses: []*genai.GenerateContentResponse{
		callResponse(100, 10,
			&genai.FunctionCall{ID: "f1", Name: "web_fetch", Args: map[string]any{"url": "not a url"}},
			&genai.FunctionCall{ID: "c1", Name: "scrape_company_website", Args: map[string]any{"url": "https://acme.com"}},
		),
	}}
	g := &GeminiModel{generate: fake.generate}

	resp, err := g.Generate(context.Background(), Request{
		Messages: []Message{{Role: RoleUser, Text: "research Acme"}},
		Surface:  tools.NewSurface(tools.DefaultsForTier(models.TierMedium)),
	})
	require.NoError(t, err)

	// An invalid URL is answered with an error result without a grounding request.
	assert.Len(t, fake.configs, 1)
	require.Len(t, resp.Resolved, 1)
	assert.Equal(t, "f1", resp.Resolved[0].CallID)
	assert.ErrorIs(t, resp.Resolved[0].Err, apperrors.ErrToolExecution)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "c1", resp.ToolCalls[0].ID)
	assert.Equal(t, []tools.ID{tools.WebFetch}, resp.Delegated)
}

func TestGeminiGenerate_DelegatedOnlySurfaceUsesGroundingTools(t *testing.T) {
	fake := &fakeGenerate{responses: []*genai.GenerateContentResponse{
		groundedResponse(`{"key_insights":[]}`, "https://acme.com", 10, 5),
	}}
	g := &GeminiModel{generate: fake.generate}

	resp, err := g.Generate(context.Background(), Request{
		Messages: []Message{{Role: RoleUser, Text: "research Acme"}},
		Surface:  tools.NewSurface(tools.DefaultsForTier(models.TierStandard)),
	})
	require.NoError(t, err)

	require.Len(t, fake.configs, 1)
	assertNoMixedTools(t, fake.configs[0])
	assert.Len(t, fake.configs[0].Tools, 2)
	assert.True(t, resp.Final())
	assert.Equal(t, []tools.ID{tools.WebSearch}, resp.Delegated)
}

func TestGeminiContents(t *testing.T) {
	native := &genai.Content{Role: "model", Parts: []*genai.Part{{FunctionCall: &genai.FunctionCall{ID: "c1", Name: "scrape_company_website"}}}}
	contents := geminiContents([]Message{
		{Role: RoleUser, Text: "research Acme"},
		{Role: RoleModel, Native: native},
		{Role: RoleTool, ToolResults: []tools.Result{{CallID: "c1", Tool: tools.ScrapeCompanyWebsite, Payload: map[string]interface{}{"title": "Acme"}}}},
		{Role: RoleModel, Text: "plain"},
	})

	require.Len(t, contents, 4)
	assert.Equal(t, "user", contents[0].Role)
	assert.Equal(t, "research Acme", contents[0].Parts[0].Text)
	assert.Same(t, native, contents[1])
	assert.Equal(t, "user", contents[2].Role)
	fr := contents[2].Parts[0].FunctionResponse
	require.NotNil(t, fr)
	assert.Equal(t, "c1", fr.ID)
	assert.Equal(t, "scrape_company_website", fr.Name)
	assert.Equal(t, "Acme", fr.Response["title"])
	assert.Equal(t, "model", contents[3].Role)
}

func TestGeminiConvert(t *testing.T) {
	g := &GeminiModel{pricing: Pricing{InputPerMillion: 1, OutputPerMillion: 2}}
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Role: "model", Parts: []*genai.Part{
				{FunctionCall: &genai.FunctionCall{ID: "c1", Name: "scrape_company_website", Args: map[string]any{"url": "https://acme.com"}}},
			}},
			GroundingMetadata: &genai.GroundingMetadata{WebSearchQueries: []string{"acme funding", "acme ceo"}},
			URLContextMetadata: &genai.URLContextMetadata{URLMetadata: []*genai.URLMetadata{
				{RetrievedURL: "https://acme.com/about"},
			}},
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     1000,
			CandidatesTokenCount: 400,
			ThoughtsTokenCount:   100,
		},
	}

	out := g.convert(resp, tools.NewSurface([]tools.ID{tools.WebSearch, tools.ScrapeCompanyWebsite}))

	require.Len(t, out.ToolCalls, 1)
	assert.Equal(t, tools.ScrapeCompanyWebsite, out.ToolCalls[0].Tool)
	assert.Equal(t, "https://acme.com", out.ToolCalls[0].Args["url"])
	assert.False(t, out.Final())
	// URL context is not on the surface, so it is not attributed.
	assert.Equal(t, []tools.ID{tools.WebSearch, tools.WebSearch}, out.Delegated)
	assert.Equal(t, int64(1000), out.Usage.InputTokens)
	assert.Equal(t, int64(500), out.Usage.OutputTokens)
	assert.InDelta(t, 0.001+0.001, out.Usage.CostUSD, 1e-12)
	assert.Same(t, resp.Candidates[0].Content, out.Native)
}

func TestGeminiConvert_EmptyResponse(t *testing.T) {
	g := &GeminiModel{}
	out := g.convert(&genai.GenerateContentResponse{}, tools.Surface{})
	assert.True(t, out.Final())
	assert.Empty(t, out.Text)
}

func TestNewGeminiModel_RequiresKeyAndModel(t *testing.T) {
	_, err := NewGeminiModel(context.Background(), GeminiConfig{Model: "gemini-2.5-flash"})
	assert.ErrorIs(t, err, apperrors.ErrConfigInvalid)

	_, err = NewGeminiModel(context.Background(), GeminiConfig{APIKey: "k"})
	assert.ErrorIs(t, err, apperrors.ErrConfigInvalid)
}

func TestClassifyErr(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want string
	}{
		{name: "rate limited", in: genai.APIError{Code: 429, Message: "quota"}, want: "transient (429)"},
		{name: "overloaded", in: genai.APIError{Code: 503, Message: "overloaded"}, want: "transient (503)"},
		{name: "bad request", in: genai.APIError{Code: 400, Message: "bad request"}, want: "gemini:"},
		{name: "timeout", in: &net.DNSError{Err: "i/o timeout", IsTimeout: true}, want: "gemini timeout"},
		{name: "other", in: errors.New("boom"), want: "gemini:"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyErr(tt.in)
			assert.ErrorIs(t, err, apperrors.ErrInfrastructure)
			assert.Contains(t, err.Error(), tt.want)
			assert.Equal(t, apperrors.ErrCodeInfrastructure, apperrors.Classify(err).Code)
		})
	}
}

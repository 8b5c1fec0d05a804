// Package orchestrator runs one enrichment attempt end to end: policy
// resolution, the tool-use loop, output validation, content filtering,
// persistence and the audit record.
package orchestrator

import (
	"context"
	"time"

	apperrors "lead-enricher/internal/common/errors"
	"lead-enricher/internal/common/logger"
	"lead-enricher/internal/common/metrics"
	"lead-enricher/internal/common/observability"
	"lead-enricher/internal/enrichment/agent"
	"lead-enricher/internal/enrichment/blacklist"
	"lead-enricher/internal/enrichment/prompt"
	"lead-enricher/internal/enrichment/schema"
	"lead-enricher/internal/enrichment/settings"
	"lead-enricher/internal/enrichment/tools"
	"lead-enricher/internal/models"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type LeadStore interface {
	GetLead(ctx context.Context, id string) (*models.Lead, error)
	UpdateStatus(ctx context.Context, id string, status models.LeadStatus) error
	MarkEnriched(ctx context.Context, id string, data *models.EnrichmentData, processedAt time.Time) error
	MarkFailed(ctx context.Context, id, message string, processedAt time.Time) error
}

type BusinessContextStore interface {
	GetActiveBusinessContext(ctx context.Context) (*models.BusinessContext, error)
}

type ConfigResolver interface {
	LoadForTier(ctx context.Context, tier models.Tier) (settings.LoadedConfig, error)
}

type AuditRecorder interface {
	Open(ctx context.Context, leadID string, tier models.Tier, startedAt time.Time) (string, error)
	Close(ctx context.Context, auditID string, out models.AuditOutcome) error
}

// Deps are the collaborators of an Orchestrator. Contexts, Events and
// Observability are optional.
type Deps struct {
	Leads         LeadStore
	Contexts      BusinessContextStore
	Resolver      ConfigResolver
	Audit         AuditRecorder
	Model         agent.Model
	Executor      agent.ToolExecutor
	Validator     *schema.Validator
	Prompts       *prompt.Builder
	Filters       *blacklist.Cache
	Events        EventSink
	Observability *observability.Observability
	Logger        logger.Logger
	Now           func() time.Time
}

type Orchestrator struct {
	deps Deps
}

// Result describes a successful run.
type Result struct {
	LeadID     string
	AuditID    string
	Tier       models.Tier
	State      agent.State
	Data       *models.EnrichmentData
	Filtered   int
	EmailWords int
	Duration   time.Duration
}

func New(deps Deps) *Orchestrator {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Prompts == nil {
		deps.Prompts = prompt.NewBuilder()
	}
	if deps.Filters == nil {
		deps.Filters = blacklist.NewCache(deps.Logger)
	}
	if deps.Validator == nil {
		deps.Validator = schema.MustNewValidator()
	}
	return &Orchestrator{deps: deps}
}

// Enrich routes the lead by its assigned tier; unknown or missing tiers run
// as standard.
func (o *Orchestrator) Enrich(ctx context.Context, leadID string) (*Result, error) {
	lead, err := o.deps.Leads.GetLead(ctx, leadID)
	if err != nil {
		return nil, err
	}
	return o.run(ctx, lead, models.ParseTier(string(lead.Tier)))
}

func (o *Orchestrator) EnrichStandard(ctx context.Context, leadID string) (*Result, error) {
	return o.enrichAs(ctx, leadID, models.TierStandard)
}

func (o *Orchestrator) EnrichMedium(ctx context.Context, leadID string) (*Result, error) {
	return o.enrichAs(ctx, leadID, models.TierMedium)
}

func (o *Orchestrator) EnrichPremium(ctx context.Context, leadID string) (*Result, error) {
	return o.enrichAs(ctx, leadID, models.TierPremium)
}

func (o *Orchestrator) enrichAs(ctx context.Context, leadID string, tier models.Tier) (*Result, error) {
	lead, err := o.deps.Leads.GetLead(ctx, leadID)
	if err != nil {
		return nil, err
	}
	return o.run(ctx, lead, tier)
}

// attempt carries what a failed run still has to record.
type attempt struct {
	lead    *models.Lead
	tier    models.Tier
	auditID string
	started time.Time
	state   agent.State
	log     logger.Logger
}

func (o *Orchestrator) run(ctx context.Context, lead *models.Lead, tier models.Tier) (*Result, error) {
	log := o.deps.Logger.With(map[string]interface{}{"leadId": lead.ID, "tier": string(tier)})

	ctx, end := o.startSpan(ctx, "enrichment.run", lead.ID, tier)

	loaded, err := o.deps.Resolver.LoadForTier(ctx, tier)
	if err != nil {
		end(err)
		return nil, err
	}
	eff := settings.Effective(loaded)
	bc := o.businessContext(ctx, log)

	if err := o.deps.Leads.UpdateStatus(ctx, lead.ID, models.LeadStatusProcessing); err != nil {
		end(err)
		return nil, err
	}

	a := &attempt{lead: lead, tier: tier, started: o.deps.Now(), log: log}
	auditID, err := o.deps.Audit.Open(ctx, lead.ID, tier, a.started)
	if err != nil {
		o.markFailed(ctx, a, err)
		end(err)
		return nil, err
	}
	a.auditID = auditID

	res, err := o.execute(ctx, a, loaded, eff, bc)
	if err != nil {
		o.fail(ctx, a, err)
		end(err)
		return nil, err
	}
	end(nil)
	return res, nil
}

// execute covers everything between claiming the lead and closing the audit
// entry; any error it returns fails the lead and the audit entry.
func (o *Orchestrator) execute(ctx context.Context, a *attempt, loaded settings.LoadedConfig, eff settings.EffectiveConfig, bc *models.BusinessContext) (*Result, error) {
	text := o.deps.Prompts.Build(a.lead, loaded, bc)
	surface := tools.NewSurface(eff.AllowedTools)

	loop := agent.NewLoop(o.deps.Model, o.deps.Executor, agent.Observers{
		agent.LoggingObserver{Logger: a.log},
		agent.MetricsObserver{Tier: string(a.tier)},
	})
	out, err := loop.Run(ctx, text, surface, agent.Limits{
		MaxTurns:     eff.MaxTurns,
		MaxToolCalls: eff.MaxToolCalls,
		MaxBudgetUSD: eff.MaxBudgetUSD,
	})
	if out != nil {
		a.state = out.State
	}
	if err != nil {
		return nil, err
	}

	validated, err := o.deps.Validator.Validate(a.tier, out.Text)
	if err != nil {
		return nil, err
	}

	matcher := o.matcher(loaded)
	subject, n1 := matcher.ApplyCount(validated.EmailSubject)
	draft, n2 := matcher.ApplyCount(validated.DraftEmail)

	words := schema.WordCount(draft)
	if words < eff.EmailWordRange.Min || words > eff.EmailWordRange.Max {
		a.log.Info("Draft email outside configured length", map[string]interface{}{
			"words":    words,
			"minWords": eff.EmailWordRange.Min,
			"maxWords": eff.EmailWordRange.Max,
		})
	}

	data := &models.EnrichmentData{
		Enrichment:   validated.Enrichment,
		Sources:      validated.Sources,
		EmailSubject: subject,
		DraftEmail:   draft,
	}
	if data.Sources == nil {
		data.Sources = []models.Source{}
	}

	now := o.deps.Now()
	if err := o.deps.Leads.MarkEnriched(ctx, a.lead.ID, data, now); err != nil {
		return nil, err
	}

	if err := o.deps.Audit.Close(context.WithoutCancel(ctx), a.auditID, o.outcome(a, models.AuditSuccess, now, nil)); err != nil {
		a.log.Error("Failed to close audit entry", map[string]interface{}{"auditId": a.auditID, "error": err.Error()})
	}
	o.finished(ctx, a, string(agent.OutcomeSuccess), now, nil)

	a.log.Info("Lead enriched", map[string]interface{}{
		"auditId":   a.auditID,
		"turns":     a.state.Turn,
		"toolCalls": a.state.ToolCalls,
		"costUsd":   a.state.CostUSD,
		"filtered":  n1 + n2,
	})

	return &Result{
		LeadID:     a.lead.ID,
		AuditID:    a.auditID,
		Tier:       a.tier,
		State:      a.state,
		Data:       data,
		Filtered:   n1 + n2,
		EmailWords: words,
		Duration:   now.Sub(a.started),
	}, nil
}

// fail records a failed attempt on the lead and the audit entry. The
// original error is what the caller sees.
func (o *Orchestrator) fail(ctx context.Context, a *attempt, cause error) {
	ctx = context.WithoutCancel(ctx)
	now := o.markFailed(ctx, a, cause)

	if err := o.deps.Audit.Close(ctx, a.auditID, o.outcome(a, models.AuditFailed, now, cause)); err != nil {
		a.log.Error("Failed to close audit entry", map[string]interface{}{"auditId": a.auditID, "error": err.Error()})
	}
	o.finished(ctx, a, outcomeOf(cause), now, cause)

	a.log.Warn("Lead enrichment failed", map[string]interface{}{
		"auditId":   a.auditID,
		"errorCode": string(apperrors.Classify(cause).Code),
		"error":     cause.Error(),
		"turns":     a.state.Turn,
		"costUsd":   a.state.CostUSD,
	})
}

func (o *Orchestrator) markFailed(ctx context.Context, a *attempt, cause error) time.Time {
	now := o.deps.Now()
	if err := o.deps.Leads.MarkFailed(context.WithoutCancel(ctx), a.lead.ID, cause.Error(), now); err != nil {
		a.log.Error("Failed to mark lead failed", map[string]interface{}{"error": err.Error()})
	}
	return now
}

func (o *Orchestrator) outcome(a *attempt, status models.AuditStatus, now time.Time, cause error) models.AuditOutcome {
	out := models.AuditOutcome{
		Status:       status,
		CompletedAt:  now,
		Turns:        a.state.Turn,
		ToolCalls:    a.state.ToolCalls,
		ToolsUsed:    tools.Strings(a.state.ToolsUsed),
		InputTokens:  a.state.InputTokens,
		OutputTokens: a.state.OutputTokens,
		CostUSD:      a.state.CostUSD,
	}
	if cause != nil {
		out.ErrorCode = string(apperrors.Classify(cause).Code)
		out.ErrorMessage = cause.Error()
	}
	return out
}

func (o *Orchestrator) finished(ctx context.Context, a *attempt, outcome string, now time.Time, cause error) {
	metrics.EnrichmentRuns.WithLabelValues(string(a.tier), outcome).Inc()

	if o.deps.Events == nil {
		return
	}
	ev := RunEvent{
		LeadID:      a.lead.ID,
		AuditID:     a.auditID,
		Tier:        string(a.tier),
		Outcome:     outcome,
		Turns:       a.state.Turn,
		ToolCalls:   a.state.ToolCalls,
		CostUSD:     a.state.CostUSD,
		DurationMS:  now.Sub(a.started).Milliseconds(),
		CompletedAt: now.UTC(),
	}
	if cause != nil {
		ev.ErrorCode = string(apperrors.Classify(cause).Code)
	}
	if err := o.deps.Events.RunCompleted(ctx, ev); err != nil {
		a.log.Warn("Failed to publish run event", map[string]interface{}{"error": err.Error()})
	}
}

func outcomeOf(err error) string {
	switch apperrors.Classify(err).Code {
	case apperrors.ErrCodeBudgetExceeded:
		return string(agent.OutcomeBudgetExceeded)
	case apperrors.ErrCodeTurnsExhausted:
		return string(agent.OutcomeTurnsExhausted)
	default:
		return string(agent.OutcomeFailed)
	}
}

// matcher compiles the active config's blacklist; defaults have none.
func (o *Orchestrator) matcher(loaded settings.LoadedConfig) *blacklist.Matcher {
	active, ok := loaded.(settings.Active)
	if !ok || len(active.Config.Blacklist) == 0 {
		return nil
	}
	cfg := active.Config
	return o.deps.Filters.Get(blacklist.Key(cfg.ID, cfg.Version, cfg.UpdatedAt), cfg.Blacklist)
}

func (o *Orchestrator) businessContext(ctx context.Context, log logger.Logger) *models.BusinessContext {
	if o.deps.Contexts == nil {
		return nil
	}
	bc, err := o.deps.Contexts.GetActiveBusinessContext(ctx)
	if err != nil {
		log.Warn("Business context unavailable, continuing without it", map[string]interface{}{"error": err.Error()})
		return nil
	}
	return bc
}

func (o *Orchestrator) startSpan(ctx context.Context, name, leadID string, tier models.Tier) (context.Context, func(error)) {
	if o.deps.Observability == nil {
		return ctx, func(error) {}
	}
	ctx, span := o.deps.Observability.StartSpan(ctx, name,
		attribute.String("lead.id", leadID),
		attribute.String("enrichment.tier", string(tier)),
	)
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, string(apperrors.Classify(err).Code))
		}
		span.End()
	}
}

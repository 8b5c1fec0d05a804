package enrichlead

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	apperrors "lead-enricher/internal/common/errors"
	"lead-enricher/internal/common/logger"
	"lead-enricher/internal/common/metrics"
	"lead-enricher/internal/common/observability"
	"lead-enricher/internal/enrichment/orchestrator"
	"lead-enricher/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "enrich-lead"
)

type Enricher interface {
	Enrich(ctx context.Context, leadID string) (*orchestrator.Result, error)
	EnrichStandard(ctx context.Context, leadID string) (*orchestrator.Result, error)
	EnrichMedium(ctx context.Context, leadID string) (*orchestrator.Result, error)
	EnrichPremium(ctx context.Context, leadID string) (*orchestrator.Result, error)
}

type Handler struct {
	config       *Config
	enricher     Enricher
	errorHandler *apperrors.ErrorHandler
	obs          *observability.Observability
	logger       logger.Logger
}

func NewHandler(config *Config, enricher Enricher, obs *observability.Observability, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		enricher:     enricher,
		errorHandler: apperrors.NewErrorHandler(log),
		obs:          obs,
		logger:       log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(ctx, client, job, fmt.Errorf("%w: %v", apperrors.ErrInvalidJobInput, err), start)
		return
	}

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.failJob(ctx, client, job, err, start)
		return
	}

	h.completeJob(ctx, client, job, output, start)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if err := h.validateInput(input); err != nil {
		return nil, err
	}

	var (
		res *orchestrator.Result
		err error
	)
	switch models.Tier(strings.ToLower(strings.TrimSpace(input.Tier))) {
	case "":
		res, err = h.enricher.Enrich(ctx, input.LeadID)
	case models.TierPremium:
		res, err = h.enricher.EnrichPremium(ctx, input.LeadID)
	case models.TierMedium:
		res, err = h.enricher.EnrichMedium(ctx, input.LeadID)
	default:
		res, err = h.enricher.EnrichStandard(ctx, input.LeadID)
	}
	if err != nil {
		return nil, err
	}

	return &Output{
		LeadID:     res.LeadID,
		AuditID:    res.AuditID,
		Tier:       string(res.Tier),
		Status:     string(models.LeadStatusEnriched),
		Turns:      res.State.Turn,
		ToolCalls:  res.State.ToolCalls,
		CostUSD:    res.State.CostUSD,
		EmailWords: res.EmailWords,
	}, nil
}

func (h *Handler) validateInput(input *Input) error {
	if input == nil || strings.TrimSpace(input.LeadID) == "" {
		return fmt.Errorf("%w: leadId is required", apperrors.ErrInvalidJobInput)
	}
	return nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output, start time.Time) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		h.failJob(ctx, client, job, err, start)
		return
	}
	if _, err := cmd.Send(context.WithoutCancel(ctx)); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}

	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	h.record(ctx, "completed", start)
	h.logger.Info("job completed", map[string]interface{}{
		"jobKey":  job.Key,
		"leadId":  output.LeadID,
		"auditId": output.AuditID,
	})
}

func (h *Handler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, err error, start time.Time) {
	code := string(apperrors.Classify(err).Code)
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, code).Inc()
	h.record(ctx, "failed", start)
	h.errorHandler.HandleJobError(context.WithoutCancel(ctx), client, job, err)
}

func (h *Handler) record(ctx context.Context, status string, start time.Time) {
	elapsed := time.Since(start)
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(elapsed.Seconds())
	if h.obs != nil {
		h.obs.RecordJobProcessed(ctx, status)
		h.obs.RecordJobDuration(ctx, elapsed, status)
	}
}

// Execute runs the enrichment without a job client.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

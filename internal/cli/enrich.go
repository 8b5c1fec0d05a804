package cli

import (
	"context"
	"strings"

	"lead-enricher/internal/common/camunda"
	"lead-enricher/internal/common/config"
	"lead-enricher/internal/enrichment/orchestrator"
	"lead-enricher/internal/models"

	"github.com/spf13/cobra"
)

var tierFlag string

func init() {
	enqueue := &cobra.Command{
		Use:   "enqueue <lead-id>...",
		Short: "Start the enrichment process for leads through Zeebe",
		Args:  cobra.MinimumNArgs(1),
		Run:   runEnqueue,
	}
	enqueue.Flags().StringVarP(&tierFlag, "tier", "t", "", "Force a tier path (standard, medium, premium)")

	enrich := &cobra.Command{
		Use:   "enrich <lead-id>",
		Short: "Enrich one lead in-process and print the result",
		Args:  cobra.ExactArgs(1),
		Run:   runEnrich,
	}
	enrich.Flags().StringVarP(&tierFlag, "tier", "t", "", "Force a tier path (standard, medium, premium)")

	RootCmd.AddCommand(enqueue, enrich)
}

func runEnqueue(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		exitErr("load config", err)
	}
	client, err := camunda.NewClient(cfg.Camunda.BrokerAddress, config.GetDuration(cfg.Camunda.MessageTTL))
	if err != nil {
		exitErr("connect to zeebe", err)
	}
	defer client.Close()

	vars := map[string]interface{}{}
	if tierFlag != "" {
		vars["tier"] = string(models.ParseTier(tierFlag))
	}
	for _, id := range args {
		if err := client.PublishLeadSubmitted(cmd.Context(), id, copyVars(vars)); err != nil {
			exitErr("enqueue "+id, err)
		}
		printJSON(map[string]string{"leadId": id, "status": "enqueued"})
	}
}

func copyVars(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	return out
}

func runEnrich(cmd *cobra.Command, args []string) {
	a, err := connect(cmd)
	if err != nil {
		exitErr("connect", err)
	}
	defer a.Close()

	orch, err := a.Orchestrator(cmd.Context())
	if err != nil {
		exitErr("setup", err)
	}

	res, err := enrichWith(cmd.Context(), orch, args[0], tierFlag)
	if err != nil {
		exitErr("enrich "+args[0], err)
	}
	printJSON(map[string]interface{}{
		"leadId":     res.LeadID,
		"auditId":    res.AuditID,
		"tier":       res.Tier,
		"turns":      res.State.Turn,
		"toolCalls":  res.State.ToolCalls,
		"toolsUsed":  res.State.ToolsUsed,
		"costUsd":    res.State.CostUSD,
		"filtered":   res.Filtered,
		"emailWords": res.EmailWords,
		"durationMs": res.Duration.Milliseconds(),
		"data":       res.Data,
	})
}

func enrichWith(ctx context.Context, orch *orchestrator.Orchestrator, leadID, tier string) (*orchestrator.Result, error) {
	if strings.TrimSpace(tier) == "" {
		return orch.Enrich(ctx, leadID)
	}
	switch models.ParseTier(tier) {
	case models.TierPremium:
		return orch.EnrichPremium(ctx, leadID)
	case models.TierMedium:
		return orch.EnrichMedium(ctx, leadID)
	default:
		return orch.EnrichStandard(ctx, leadID)
	}
}

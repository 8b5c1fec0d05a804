package cli

import (
	"time"

	"github.com/spf13/cobra"
)

var sinceFlag time.Duration

func init() {
	auditCmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the enrichment audit ledger",
	}

	summary := &cobra.Command{
		Use:   "summary",
		Short: "Aggregate runs, success rate and cost per tier",
		Args:  cobra.NoArgs,
		Run:   runAuditSummary,
	}
	summary.Flags().DurationVar(&sinceFlag, "since", 24*time.Hour, "Look-back window")

	auditCmd.AddCommand(summary)
	RootCmd.AddCommand(auditCmd)
}

func runAuditSummary(cmd *cobra.Command, args []string) {
	a, err := connect(cmd)
	if err != nil {
		exitErr("connect", err)
	}
	defer a.Close()

	sum, err := a.Audit.Summary(cmd.Context(), time.Now().Add(-sinceFlag))
	if err != nil {
		exitErr("summary", err)
	}
	printJSON(sum)
}

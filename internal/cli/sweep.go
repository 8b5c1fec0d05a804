package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	RootCmd.AddCommand(&cobra.Command{
		Use:   "sweep",
		Short: "Delete expired leads and close abandoned audit entries once",
		Args:  cobra.NoArgs,
		Run:   runSweep,
	})
}

func runSweep(cmd *cobra.Command, args []string) {
	a, err := connect(cmd)
	if err != nil {
		exitErr("connect", err)
	}
	defer a.Close()

	rep, err := a.Sweeper().Run(cmd.Context())
	if err != nil {
		exitErr("sweep", err)
	}
	printJSON(map[string]interface{}{
		"leadsDeleted": rep.LeadsDeleted,
		"auditsClosed": rep.AuditsClosed,
		"durationMs":   rep.Duration.Milliseconds(),
	})
}

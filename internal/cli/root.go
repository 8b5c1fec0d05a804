// Package cli implements the enrichctl operator commands.
package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"lead-enricher/internal/app"
	"lead-enricher/internal/common/config"
	"lead-enricher/internal/common/logger"

	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:          "enrichctl",
	Short:        "Operate the lead enrichment service",
	Long:         "Enqueue and run enrichments, manage tier configurations, inspect the audit ledger and run retention sweeps.",
	SilenceUsage: true,
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: ./configs/config.yaml, overlaid by $APP_ENVIRONMENT)")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log to stderr")
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromFile(configPath)
	}
	return config.Load()
}

func newLogger() logger.Logger {
	if !verbose {
		return logger.NewNoOpLogger()
	}
	return logger.NewStructured("debug", "console", "stderr")
}

func connect(cmd *cobra.Command) (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return app.Connect(cmd.Context(), cfg, nil, newLogger(), app.Options{Attempts: 1})
}

func printJSON(v interface{}) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}

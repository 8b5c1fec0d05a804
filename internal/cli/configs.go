package cli

import (
	"os"

	"lead-enricher/internal/enrichment/settings"
	"lead-enricher/internal/enrichment/tools"
	"lead-enricher/internal/models"

	"github.com/spf13/cobra"
)

var activateFlag bool

func init() {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage per-tier enrichment configurations",
	}

	templates := &cobra.Command{
		Use:   "templates",
		Short: "List the built-in configuration templates",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			printJSON(settings.TemplateNames())
		},
	}

	fromTemplate := &cobra.Command{
		Use:   "from-template <name>",
		Short: "Create an inactive configuration from a template",
		Args:  cobra.ExactArgs(1),
		Run:   runFromTemplate,
	}
	fromTemplate.Flags().StringVarP(&tierFlag, "tier", "t", "", "Override the template's tier")
	fromTemplate.Flags().BoolVar(&activateFlag, "activate", false, "Activate the new configuration")

	importCmd := &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Create an inactive configuration from a YAML file",
		Args:  cobra.ExactArgs(1),
		Run:   runImport,
	}
	importCmd.Flags().BoolVar(&activateFlag, "activate", false, "Activate the new configuration")

	activate := &cobra.Command{
		Use:   "activate <config-id>",
		Short: "Make a configuration the active one for its tier",
		Args:  cobra.ExactArgs(1),
		Run:   runActivate,
	}

	show := &cobra.Command{
		Use:   "show <tier>",
		Short: "Print the policy a run of this tier would use",
		Args:  cobra.ExactArgs(1),
		Run:   runShow,
	}

	validateTools := &cobra.Command{
		Use:   "validate-tools <tool>...",
		Short: "Check tool ids against the catalog and a tier's entitlement",
		Args:  cobra.MinimumNArgs(1),
		Run:   runValidateTools,
	}
	validateTools.Flags().StringVarP(&tierFlag, "tier", "t", "", "Tier to check entitlement for")

	cfgCmd.AddCommand(templates, fromTemplate, importCmd, activate, show, validateTools)
	RootCmd.AddCommand(cfgCmd)
}

func runFromTemplate(cmd *cobra.Command, args []string) {
	a, err := connect(cmd)
	if err != nil {
		exitErr("connect", err)
	}
	defer a.Close()

	var tier models.Tier
	if tierFlag != "" {
		tier = models.ParseTier(tierFlag)
	}
	cfg, err := a.Configs.CreateFromTemplate(cmd.Context(), a.Config.App.TenantID, args[0], tier)
	if err != nil {
		exitErr("create from template", err)
	}
	if activateFlag {
		if err := a.Configs.Activate(cmd.Context(), cfg.ID); err != nil {
			exitErr("activate", err)
		}
		cfg.IsActive = true
	}
	printJSON(cfg)
}

func runImport(cmd *cobra.Command, args []string) {
	raw, err := os.ReadFile(args[0])
	if err != nil {
		exitErr("read", err)
	}
	cfg, err := settings.ParseYAML(raw)
	if err != nil {
		exitErr("parse", err)
	}

	a, err := connect(cmd)
	if err != nil {
		exitErr("connect", err)
	}
	defer a.Close()

	cfg.TenantID = a.Config.App.TenantID
	cfg.Origin = "manual"
	if err := a.Configs.Create(cmd.Context(), cfg); err != nil {
		exitErr("create", err)
	}
	if activateFlag {
		if err := a.Configs.Activate(cmd.Context(), cfg.ID); err != nil {
			exitErr("activate", err)
		}
		cfg.IsActive = true
	}
	printJSON(cfg)
}

func runActivate(cmd *cobra.Command, args []string) {
	a, err := connect(cmd)
	if err != nil {
		exitErr("connect", err)
	}
	defer a.Close()

	if err := a.Configs.Activate(cmd.Context(), args[0]); err != nil {
		exitErr("activate", err)
	}
	printJSON(map[string]string{"configId": args[0], "status": "active"})
}

func runShow(cmd *cobra.Command, args []string) {
	a, err := connect(cmd)
	if err != nil {
		exitErr("connect", err)
	}
	defer a.Close()

	loaded, err := a.Resolver.LoadForTier(cmd.Context(), models.ParseTier(args[0]))
	if err != nil {
		exitErr("resolve", err)
	}
	out := map[string]interface{}{"effective": settings.Effective(loaded)}
	if active, ok := loaded.(settings.Active); ok {
		out["source"] = "active"
		out["config"] = active.Config
	} else {
		out["source"] = "defaults"
	}
	printJSON(out)
}

func runValidateTools(cmd *cobra.Command, args []string) {
	var res tools.ValidationResult
	if tierFlag == "" {
		res = tools.Validate(args)
	} else {
		res = tools.ValidateForTier(args, models.ParseTier(tierFlag))
	}
	printJSON(res)
	if !res.Valid {
		os.Exit(2)
	}
}

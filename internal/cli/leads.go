package cli

import (
	"time"

	"lead-enricher/internal/common/camunda"
	"lead-enricher/internal/common/config"
	"lead-enricher/internal/models"

	"github.com/spf13/cobra"
)

var (
	newLead     models.Lead
	leadTier    string
	enqueueFlag bool
)

func init() {
	leadCmd := &cobra.Command{
		Use:   "lead",
		Short: "Manage leads",
	}

	add := &cobra.Command{
		Use:   "add",
		Short: "Create a pending lead",
		Args:  cobra.NoArgs,
		Run:   runLeadAdd,
	}
	f := add.Flags()
	f.StringVar(&newLead.FullName, "name", "", "Full name (required)")
	f.StringVar(&newLead.CompanyName, "company", "", "Company name (required)")
	f.StringVar(&newLead.Email, "email", "", "Email address")
	f.StringVar(&newLead.Title, "title", "", "Job title")
	f.StringVar(&newLead.LinkedInURL, "linkedin", "", "LinkedIn profile URL")
	f.StringVar(&newLead.Website, "website", "", "Company website")
	f.StringVarP(&leadTier, "tier", "t", "standard", "Tier (standard, medium, premium)")
	f.BoolVar(&enqueueFlag, "enqueue", false, "Start enrichment right away")

	get := &cobra.Command{
		Use:   "get <lead-id>",
		Short: "Print a lead with its enrichment result",
		Args:  cobra.ExactArgs(1),
		Run:   runLeadGet,
	}

	leadCmd.AddCommand(add, get)
	RootCmd.AddCommand(leadCmd)
}

func runLeadAdd(cmd *cobra.Command, args []string) {
	a, err := connect(cmd)
	if err != nil {
		exitErr("connect", err)
	}
	defer a.Close()

	lead := newLead
	lead.Tier = models.Tier(leadTier)
	retention := time.Duration(a.Config.Enrichment.LeadRetentionDays) * 24 * time.Hour
	if err := a.Leads.CreateLead(cmd.Context(), &lead, retention); err != nil {
		exitErr("create lead", err)
	}

	if enqueueFlag {
		client, err := camunda.NewClient(a.Config.Camunda.BrokerAddress, config.GetDuration(a.Config.Camunda.MessageTTL))
		if err != nil {
			exitErr("connect to zeebe", err)
		}
		defer client.Close()
		if err := client.PublishLeadSubmitted(cmd.Context(), lead.ID, nil); err != nil {
			exitErr("enqueue "+lead.ID, err)
		}
	}
	printJSON(lead)
}

func runLeadGet(cmd *cobra.Command, args []string) {
	a, err := connect(cmd)
	if err != nil {
		exitErr("connect", err)
	}
	defer a.Close()

	lead, err := a.Leads.GetLead(cmd.Context(), args[0])
	if err != nil {
		exitErr("get lead", err)
	}
	printJSON(lead)
}

package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pario-ai/faqbot/pkg/audit"
	"github.com/pario-ai/faqbot/pkg/budget"
)

func newBudgetCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Inspect generator budgets",
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show generator usage vs limits",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !cfg.Budget.Enabled {
				fmt.Fprintln(out, "Budget enforcement is disabled.")
				return nil
			}

			auditCfg := cfg.Audit
			auditCfg.DBPath = cfg.AuditDBPath()
			l, err := audit.New(auditCfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = l.Close() }()

			statuses, err := budget.New(cfg.Budget.Policies, l).Status(cmd.Context())
			if err != nil {
				return err
			}
			if len(statuses) == 0 {
				fmt.Fprintln(out, "No budget policies configured.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PERIOD\tMAX GENERATIONS\tUSED\tREMAINING")
			for _, s := range statuses {
				fmt.Fprintf(w, "%s\t%d\t%d\t%d\n",
					s.Policy.Period, s.Policy.MaxGenerations, s.Used, s.Remaining)
			}
			return w.Flush()
		},
	}

	cmd.AddCommand(statusCmd)
	return cmd
}

package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pario-ai/faqbot/pkg/audit"
	"github.com/pario-ai/faqbot/pkg/models"
)

func newAuditCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Query and manage the routing decision log",
	}

	cmd.AddCommand(
		newAuditSearchCmd(opts),
		newAuditStatsCmd(opts),
		newAuditCleanupCmd(opts),
	)
	return cmd
}

func newAuditSearchCmd(opts *rootOptions) *cobra.Command {
	var (
		since   string
		session string
		source  string
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search decision log entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, cleanup, err := openAuditLogger(opts)
			if err != nil {
				return err
			}
			defer cleanup()

			q := models.AuditQueryOpts{
				SessionID: session,
				Source:    models.Source(source),
				Limit:     limit,
			}
			if since != "" {
				t, err := time.Parse("2006-01-02", since)
				if err != nil {
					return fmt.Errorf("invalid --since date (use YYYY-MM-DD): %w", err)
				}
				q.Since = t
			}

			entries, err := l.Query(cmd.Context(), q)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatAuditEntries(entries))
			return nil
		},
	}

	cmd.Flags().StringVar(&since, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&session, "session", "", "filter by session ID")
	cmd.Flags().StringVar(&source, "source", "", "filter by source (cache, generator, none, error)")
	cmd.Flags().IntVar(&limit, "limit", 50, "max entries to return")
	return cmd
}

func newAuditStatsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show decision counts by source and day",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, cleanup, err := openAuditLogger(opts)
			if err != nil {
				return err
			}
			defer cleanup()

			stats, err := l.Stats(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatAuditStats(stats))
			return nil
		},
	}
}

func newAuditCleanupCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete entries older than the retention period",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, cleanup, err := openAuditLogger(opts)
			if err != nil {
				return err
			}
			defer cleanup()

			deleted, err := l.Cleanup(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d audit entries.\n", deleted)
			return nil
		},
	}
}

func openAuditLogger(opts *rootOptions) (*audit.Logger, func(), error) {
	cfg, logger, err := opts.load()
	if err != nil {
		return nil, nil, err
	}

	auditCfg := cfg.Audit
	auditCfg.DBPath = cfg.AuditDBPath()

	l, err := audit.New(auditCfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open audit db: %w", err)
	}
	return l, func() { _ = l.Close() }, nil
}

func formatAuditEntries(entries []models.AuditEntry) string {
	if len(entries) == 0 {
		return "No audit entries found.\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-36s %-36s %-10s %-10s %8s %8s %-20s %s\n",
		"ID", "SESSION", "MODE", "SOURCE", "DISTANCE", "LATENCY", "TIME", "QUESTION")
	b.WriteString(strings.Repeat("-", 150) + "\n")
	for _, e := range entries {
		dist := "-"
		if e.HasDistance {
			dist = fmt.Sprintf("%.4f", e.Distance)
		}
		fmt.Fprintf(&b, "%-36s %-36s %-10s %-10s %8s %6dms %-20s %s\n",
			e.ID, e.SessionID, e.Mode, e.Source, dist, e.LatencyMs,
			e.CreatedAt.Format("2006-01-02 15:04:05"), shorten(e.Question, 50))
	}
	return b.String()
}

func formatAuditStats(stats []models.AuditStat) string {
	if len(stats) == 0 {
		return "No audit stats found.\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-12s %-12s %8s\n", "SOURCE", "DAY", "COUNT")
	b.WriteString(strings.Repeat("-", 34) + "\n")
	for _, s := range stats {
		fmt.Fprintf(&b, "%-12s %-12s %8d\n", s.Source, s.Day, s.Count)
	}
	return b.String()
}

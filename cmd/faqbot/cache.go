package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pario-ai/faqbot/pkg/store"
)

func newCacheCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect the semantic cache",
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Build the cache from the store and show its statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			st, err := store.Open(cfg.Store)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			c, err := openCache(cmd.Context(), st, logger)
			if err != nil {
				return err
			}
			stats := c.Stats()
			fmt.Fprintf(cmd.OutOrStdout(), "Rows:       %d\nVocabulary: %d\nThreshold:  %.2f\nEnabled:    %t\n",
				stats.Rows, stats.Vocabulary, cfg.Cache.DistanceThreshold, cfg.Cache.Enabled)
			return nil
		},
	}

	var k int
	queryCmd := &cobra.Command{
		Use:   "query <question>",
		Short: "Show the nearest cached questions and whether the best one is a hit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			st, err := store.Open(cfg.Store)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			c, err := openCache(cmd.Context(), st, logger)
			if err != nil {
				return err
			}

			neighbors := c.Lookup(strings.Join(args, " "), k)
			if len(neighbors) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Cache is empty.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ROW\tDISTANCE\tHIT\tQUESTION")
			for i, n := range neighbors {
				hit := ""
				if i == 0 && cfg.Cache.Enabled && n.Distance <= cfg.Cache.DistanceThreshold {
					hit = "yes"
				}
				fmt.Fprintf(w, "%d\t%.4f\t%s\t%s\n", n.Index, n.Distance, hit, shorten(n.Question, 60))
			}
			return w.Flush()
		},
	}
	queryCmd.Flags().IntVarP(&k, "top", "k", 3, "number of neighbours to show")

	cmd.AddCommand(statsCmd, queryCmd)
	return cmd
}


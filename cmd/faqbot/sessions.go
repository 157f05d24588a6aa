package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pario-ai/faqbot/pkg/history"
)

func newSessionsCmd(opts *rootOptions) *cobra.Command {
	var client string

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List chat sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := opts.load()
			if err != nil {
				return err
			}

			h, err := history.New(cfg.DBPath)
			if err != nil {
				return err
			}
			defer func() { _ = h.Close() }()

			sessions, err := h.ListSessions(cmd.Context(), client)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(sessions) == 0 {
				fmt.Fprintln(out, "No sessions found.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SESSION\tSTARTED\tLAST ACTIVITY\tTURNS\tLAST QUESTION")
			for _, s := range sessions {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
					s.ID,
					s.StartedAt.Format("2006-01-02 15:04:05"),
					s.LastActivity.Format("2006-01-02 15:04:05"),
					s.TurnCount,
					shorten(s.LastQuestion, 40))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&client, "client", "", "filter by client (http or cli)")
	return cmd
}

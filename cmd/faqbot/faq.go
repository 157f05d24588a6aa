package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pario-ai/faqbot/pkg/cache/semantic"
	"github.com/pario-ai/faqbot/pkg/feedback"
	"github.com/pario-ai/faqbot/pkg/store"
	"github.com/pario-ai/faqbot/pkg/textnorm"
)

func newFAQCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "faq",
		Short: "Manage the FAQ records the cache is built from",
	}
	cmd.AddCommand(
		newFAQListCmd(opts),
		newFAQAddCmd(opts),
		newFAQImportCmd(opts),
		newFAQExportCmd(opts),
		newFAQCheckCmd(opts),
	)
	return cmd
}

func openStore(opts *rootOptions) (store.Store, error) {
	cfg, _, err := opts.load()
	if err != nil {
		return nil, err
	}
	return store.Open(cfg.Store)
}

func newFAQListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List FAQ records in cache row order",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(opts)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			records, err := st.Load(cmd.Context())
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No FAQ records found.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ROW\tQUESTION\tANSWER")
			for i, r := range records {
				fmt.Fprintf(w, "%d\t%s\t%s\n", i, shorten(r.Question, 50), shorten(r.Answer, 60))
			}
			return w.Flush()
		},
	}
}

func newFAQAddCmd(opts *rootOptions) *cobra.Command {
	var question, answer string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Append a question/answer pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(opts)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			if _, err := feedback.New(st, nil).Append(cmd.Context(), question, answer); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "FAQ record added.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&question, "question", "q", "", "question text")
	cmd.Flags().StringVarP(&answer, "answer", "a", "", "answer text")
	_ = cmd.MarkFlagRequired("question")
	_ = cmd.MarkFlagRequired("answer")
	return cmd
}

func newFAQImportCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Append every record of a Pregunta,Respuesta CSV file to the configured store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(opts)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			n, err := store.Copy(cmd.Context(), st, store.NewCSV(args[0]))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d FAQ records.\n", n)
			return nil
		},
	}
}

func newFAQExportCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export <file.csv>",
		Short: "Write the configured store to a new CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(args[0]); err == nil {
				return fmt.Errorf("%s already exists", args[0])
			} else if !errors.Is(err, fs.ErrNotExist) {
				return err
			}

			st, err := openStore(opts)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			n, err := store.Copy(cmd.Context(), store.NewCSV(args[0]), st)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d FAQ records to %s.\n", n, args[0])
			return nil
		},
	}
}

func newFAQCheckCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the store and report duplicate questions",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(opts)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			records, err := st.Load(cmd.Context())
			if err != nil {
				return err
			}
			c, err := semantic.Build(records)
			if err != nil {
				return err
			}
			stats := c.Stats()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Records:    %d\nVocabulary: %d\n", stats.Rows, stats.Vocabulary)

			// Rows sharing a normalized question tie on distance; a lookup
			// prefers the row whose raw question matches exactly, then the
			// latest row.
			seen := make(map[string]int, len(records))
			dups := 0
			for i, r := range records {
				key := textnorm.Normalize(r.Question)
				if first, ok := seen[key]; ok {
					dups++
					fmt.Fprintf(out, "duplicate: row %d repeats row %d: %s\n", i, first, shorten(r.Question, 60))
					continue
				}
				seen[key] = i
			}
			fmt.Fprintf(out, "Duplicates: %d\n", dups)
			return nil
		},
	}
}

// shorten truncates s to n runes for table output.
func shorten(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

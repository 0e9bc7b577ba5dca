package main

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ashureev/countingbot/internal/domain"
	"github.com/ashureev/countingbot/internal/store"
)

func newInspectCommand() *cobra.Command {
	var dbPath string
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print an integrity and summary report of the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := resolveDBPath(dbPath)
			if err != nil {
				return err
			}
			repo, err := store.NewSQLite(path)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer repo.Close()

			report, err := repo.Inspect(cmd.Context())
			if err != nil {
				return fmt.Errorf("inspect database: %w", err)
			}
			return writeReport(cmd.OutOrStdout(), path, report)
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "database path (defaults to the configured store path)")
	return cmd
}

func writeReport(out io.Writer, path string, r *domain.Report) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "Database:\t%s\n", path)
	fmt.Fprintf(tw, "Integrity:\t%s\n\n", r.Integrity)

	fmt.Fprintln(tw, "TABLE\tROWS")
	for _, tc := range r.TableCounts {
		rows := strconv.FormatInt(tc.Rows, 10)
		if tc.Missing {
			rows = "missing"
		}
		fmt.Fprintf(tw, "%s\t%s\n", tc.Table, rows)
	}

	fmt.Fprintln(tw, "\nUSER\tFAME\tSHAME\tSTREAK\tBEST")
	for _, u := range r.TopUsers {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\n", u.UserID, u.Fame, u.Shame, u.CurrentStreak, u.BestStreak)
	}

	fmt.Fprintln(tw, "\nMESSAGE\tAUTHOR\tTIME\tCONTENT\tCORRECT\tDELETED")
	for _, m := range r.RecentMessages {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%q\t%s\t%t\n",
			m.MessageID, m.AuthorID, m.Timestamp.UTC().Format(time.RFC3339), truncate(m.Content, 24), correctness(m.IsCorrect), m.Deleted)
	}
	return tw.Flush()
}

func correctness(v *bool) string {
	switch {
	case v == nil:
		return "-"
	case *v:
		return "yes"
	default:
		return "no"
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

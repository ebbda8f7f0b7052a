package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var statusLimit int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show population coverage and recent runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		cov, err := st.Coverage(ctx)
		if err != nil {
			return eris.Wrap(err, "status: coverage")
		}

		fmt.Printf("Cities: %d total, %d populated, %d missing", cov.Total, cov.Populated, cov.Missing)
		if cov.Total > 0 {
			fmt.Printf(" (%.1f%% covered)", float64(cov.Populated)/float64(cov.Total)*100)
		}
		fmt.Println()

		runs, err := st.ListRuns(ctx, statusLimit)
		if err != nil {
			return eris.Wrap(err, "status: list runs")
		}
		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs recorded.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "RUN\tSTATUS\tSTARTED\tMATCHED\tNO MATCH\tERRORS\tUPDATED")
		for _, r := range runs {
			matched := "-"
			noMatch := "-"
			errCount := "-"
			updated := "-"
			if r.Stats != nil {
				matched = fmt.Sprintf("%d", r.Stats.PrimaryMatches+r.Stats.FallbackMatches)
				noMatch = fmt.Sprintf("%d", r.Stats.NoMatch)
				errCount = fmt.Sprintf("%d", r.Stats.Errors)
				updated = fmt.Sprintf("%d", r.Stats.RowsUpdated)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				shortID(r.ID), r.Status, r.StartedAt.Local().Format(time.DateTime),
				matched, noMatch, errCount, updated,
			)
		}
		return w.Flush()
	},
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	statusCmd.Flags().IntVar(&statusLimit, "limit", 10, "number of recent runs to show")
	rootCmd.AddCommand(statusCmd)
}

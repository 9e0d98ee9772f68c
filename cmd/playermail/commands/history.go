package commands

import (
	"playermail/lib/util/serviceutil"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	historyLimit *int
	historyRuns  *bool
)

func init() {
	historyLimit = historyCmd.Flags().Int("limit", 20, "How many entries to show.")
	historyRuns = historyCmd.Flags().Bool("runs", false, "Show one row per send run instead of one row per recipient.")
	rootCmd.AddCommand(historyCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history [--limit N] [--runs]",
	Short: "Shows the most recent dispatch attempts from the local journal.",
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp()
		defer a.Close()

		if *historyRuns {
			runs, err := a.journal.Runs(cmd.Context(), *historyLimit)
			if err != nil {
				serviceutil.Fatal("failed to read journal", err)
			}
			t := newTable()
			t.AppendHeader(table.Row{"Started", "Run", "Sent", "Failed"})
			for _, run := range runs {
				t.AppendRow(table.Row{run.StartedAt.Format(time.DateTime), run.ID, run.Sent, run.Failed})
			}
			t.Render()
			return
		}

		attempts, err := a.journal.Recent(cmd.Context(), *historyLimit)
		if err != nil {
			serviceutil.Fatal("failed to read journal", err)
		}
		t := newTable()
		t.AppendHeader(table.Row{"Time", "Run", "Recipient", "Outcome", "Reason"})
		for _, attempt := range attempts {
			t.AppendRow(table.Row{
				attempt.At.Format(time.DateTime),
				attempt.RunID,
				attempt.Recipient,
				attempt.Outcome,
				attempt.Reason,
			})
		}
		t.Render()
	},
}

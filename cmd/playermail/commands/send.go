package commands

import (
	"errors"
	"fmt"
	"playermail/internal/components/telemetry"
	"playermail/internal/dispatch"
	"playermail/internal/service"
	"playermail/lib/util/serviceutil"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(sendCmd)
}

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Sends the configured message to every player left in the roster file, last one first.",
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp()
		defer a.Close()
		defer a.endSession()

		telemetry.InstrumentPerfStats(cmd.Context(), telemetry.SlogAPI{}, 15*time.Second)

		report, err := a.messenger.SendAll(cmd.Context())
		printReport(report)
		if errors.Is(err, service.ErrNoPlayers) {
			fmt.Println("No players, scrape first.")
			return
		}
		if err != nil {
			a.endSession()
			serviceutil.Fatal("failed to send messages", err)
		}
		fmt.Println("All done.")
	},
}

func printReport(report dispatch.Report) {
	if len(report.Outcomes) == 0 {
		return
	}
	t := newTable()
	t.AppendHeader(table.Row{"Recipient", "Outcome", "Error"})
	for _, o := range report.Outcomes {
		reason := ""
		if o.Err != nil {
			reason = o.Err.Error()
		}
		t.AppendRow(table.Row{o.Recipient, o.Outcome.String(), reason})
	}
	t.AppendFooter(table.Row{"Players left", report.Remaining, ""})
	t.Render()
}

package commands

import (
	"fmt"
	"playermail/lib/util/serviceutil"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(parseCmd)
}

var parseCmd = &cobra.Command{
	Use:   "parse",
	Short: "Scrapes every page of the player listing and replaces the roster file with the result.",
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp()
		defer a.Close()
		defer a.endSession()

		fmt.Println("Parsing...")
		result, err := a.messenger.Parse(cmd.Context())
		if err != nil {
			a.endSession()
			serviceutil.Fatal("failed to parse players", err)
		}
		printParseResult(result.Pages, result.Players, a.cfg.RosterFile)
	},
}

func printParseResult(pages, players int, rosterFile string) {
	fmt.Printf("Pages amount: %d\n", pages)
	fmt.Printf("Parsing has been completed, %d players written to %s.\n", players, rosterFile)
}

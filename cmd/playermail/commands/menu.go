package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"playermail/internal/service"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

const (
	choice_parse  = "parse"
	choice_send   = "send"
	choice_logout = "logout"
	choice_quit   = "quit"
)

func init() {
	rootCmd.AddCommand(menuCmd)
}

var menuCmd = &cobra.Command{
	Use:   "menu",
	Short: "Interactive loop to parse, send and log out within one session.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a := openApp()
		defer a.Close()
		defer a.endSession()

		for ctx.Err() == nil {
			title := "What next?"
			pending, err := a.messenger.Pending()
			if err == nil {
				title = fmt.Sprintf("What next? (%d players left)", pending)
			}

			var choice string
			form := huh.NewForm(huh.NewGroup(
				huh.NewSelect[string]().
					Title(title).
					Options(
						huh.NewOption("Parse all players", choice_parse),
						huh.NewOption("Send messages", choice_send),
						huh.NewOption("Log out", choice_logout),
						huh.NewOption("Quit", choice_quit),
					).
					Value(&choice),
			))
			err = form.RunWithContext(ctx)
			if errors.Is(err, huh.ErrUserAborted) {
				return
			}
			if err != nil {
				slog.Error("menu", "err", err)
				return
			}

			switch choice {
			case choice_parse:
				fmt.Println("Parsing...")
				result, err := a.messenger.Parse(ctx)
				if err != nil {
					fmt.Println("Parsing failed:", err)
					continue
				}
				printParseResult(result.Pages, result.Players, a.cfg.RosterFile)
			case choice_send:
				report, err := a.messenger.SendAll(ctx)
				printReport(report)
				if errors.Is(err, service.ErrNoPlayers) {
					fmt.Println("No players, scrape first.")
					continue
				}
				if err != nil {
					fmt.Println("Sending stopped:", err)
					continue
				}
				fmt.Println("All done.")
			case choice_logout:
				a.messenger.Logout(ctx)
				fmt.Println("Logged out.")
			case choice_quit:
				return
			}
		}
	},
}

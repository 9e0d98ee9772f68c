package commands

import (
	"context"
	"fmt"
	"os"
	"playermail/internal/components/telemetry"
	"playermail/internal/config"

	"github.com/spf13/cobra"
)

var (
	configPath *string
	verbose    *bool
	dumpHttp   *string
)

func init() {
	configPath = rootCmd.PersistentFlags().String("config", config.DefaultPath, "The settings file, a <name>.local.json5 next to it overrides it.")
	verbose = rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Print debug output.")
	dumpHttp = rootCmd.PersistentFlags().String("dump-http", "", "Write every http exchange with the game server into this directory.")
}

var rootCmd = &cobra.Command{
	Use:   "playermail",
	Short: "playermail scrapes the player listing of a game world and messages every player on it.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(*verbose)
	},
	SilenceUsage: true,
}

// ExecuteContext runs the cli and returns the exit code.
func ExecuteContext(ctx context.Context) int {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

package cli

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/KafClaw/boardbot/internal/cli.version=1.2.3"
	version = "0.4.0"
	logo    = "\n" +
		"  ___                  _ _         _\n" +
		" | _ ) ___  __ _ _ _ __| | |__  ___| |_\n" +
		" | _ \\/ _ \\/ _` | '_/ _` | '_ \\/ _ \\  _|\n" +
		" |___/\\___/\\__,_|_| \\__,_|_.__/\\___/\\__|\n"
)

var rootCmd = &cobra.Command{
	Use:   "boardbot",
	Short: "Boardbot - Webex device provisioning bot",
	Long:  color.CyanString(logo) + "\nA chat bot that hands out device activation codes to authorized room members.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(webhooksCmd)
	rootCmd.AddCommand(stateCmd)
	rootCmd.AddCommand(provisionCmd)
	rootCmd.AddCommand(eventsCmd)
}

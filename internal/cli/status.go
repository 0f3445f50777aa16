package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/KafClaw/boardbot/internal/config"
	"github.com/KafClaw/boardbot/internal/registry"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "Version: %s\n", version)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and state status",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		printHeader(out, "📊 Boardbot Status")
		fmt.Fprintf(out, "Version: %s\n", version)

		path, err := config.ConfigPath()
		if err != nil {
			return err
		}
		if _, err := os.Stat(path); err == nil {
			fmt.Fprintf(out, "Config:  %s Found (%s)\n", mark(true), path)
		} else {
			fmt.Fprintf(out, "Config:  %s Not found (%s), using defaults and environment\n", mark(false), path)
		}

		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(out, "Config:  %s Unable to load: %v\n", mark(false), err)
			return nil
		}
		st, err := registry.FileStore{Path: cfg.State.Path}.Load()
		if err != nil {
			fmt.Fprintf(out, "State:   %s Unreadable (%v)\n", mark(false), err)
			st = registry.EmptyState()
		} else {
			fmt.Fprintf(out, "State:   %s %s\n", mark(true), cfg.State.Path)
		}
		mergeBotIdentity(&cfg.Bot, st)

		fmt.Fprintf(out, "Token:   %s\n", mark(cfg.Bot.Token != ""))
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(out, "Valid:   %s %v\n", mark(false), err)
		} else {
			fmt.Fprintf(out, "Valid:   %s\n", mark(true))
		}
		fmt.Fprintf(out, "Orgs:    %d\n", len(st.Orgs))
		fmt.Fprintf(out, "Rooms:   %d\n", len(st.RoomToOrg))
		fmt.Fprintf(out, "Listen:  %s\n", cfg.Gateway.Addr())
		if cfg.Gateway.PublicURL != "" {
			fmt.Fprintf(out, "Public:  %s\n", cfg.Gateway.PublicURL)
		} else {
			fmt.Fprintf(out, "Public:  %s not set (webhooks will not be registered)\n", mark(false))
		}
		fmt.Fprintf(out, "Journal: %s\n", mark(cfg.Timeline.Enabled))
		fmt.Fprintf(out, "Kafka:   %s\n", mark(cfg.Events.Kafka.Enabled))
		fmt.Fprintf(out, "Slack:   %s\n", mark(cfg.Events.Slack.Enabled))
		return nil
	},
}

package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KafClaw/boardbot/internal/admin"
	"github.com/KafClaw/boardbot/internal/config"
	"github.com/KafClaw/boardbot/internal/registry"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Inspect the persisted room and organization registry",
}

var stateShowTokens bool

var stateShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the state document with tokens redacted",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		st, err := registry.FileStore{Path: cfg.State.Path}.Load()
		if err != nil {
			return err
		}
		if !stateShowTokens {
			st.BotToken = redact(st.BotToken)
			redacted := make(map[string]admin.Record, len(st.RoomAdmin))
			for room, rec := range st.RoomAdmin {
				rec.Token = redact(rec.Token)
				redacted[room] = rec
			}
			st.RoomAdmin = redacted
		}
		data, err := json.MarshalIndent(st, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

func init() {
	stateShowCmd.Flags().BoolVar(&stateShowTokens, "show-tokens", false, "Print access tokens in full")
	stateCmd.AddCommand(stateShowCmd)
}

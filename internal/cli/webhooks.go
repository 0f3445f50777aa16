package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/KafClaw/boardbot/internal/channels"
	"github.com/KafClaw/boardbot/internal/gateway"
)

var webhooksCmd = &cobra.Command{
	Use:   "webhooks",
	Short: "Inspect and maintain the bot's webhook subscriptions",
}

var webhooksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered webhooks",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, _, err := loadRuntime()
		if err != nil {
			return err
		}
		hooks, err := baseClient(cfg).WithToken(cfg.Bot.Token).ListWebhooks(commandContext(cmd))
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tRESOURCE\tEVENT\tTARGET\tSTATUS")
		for _, h := range hooks {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", h.Name, h.Resource, h.Event, h.TargetURL, h.Status)
		}
		return w.Flush()
	},
}

var webhooksRegisterURL string

var webhooksRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Replace the bot's webhooks with the current subscription set",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, _, err := loadRuntime()
		if err != nil {
			return err
		}
		target := cfg.Gateway.PublicURL
		if webhooksRegisterURL != "" {
			target = webhooksRegisterURL
		}
		if target == "" {
			return fmt.Errorf("public URL required: set gateway.publicUrl or pass --url")
		}
		api := baseClient(cfg).WithToken(cfg.Bot.Token)
		ctx := commandContext(cmd)
		me, err := api.Me(ctx)
		if err != nil {
			return fmt.Errorf("resolve bot identity: %w", err)
		}
		created, err := channels.SyncWebhooks(ctx, api, gateway.Subscriptions(target, me.ID, cfg.Gateway.WebhookSecret))
		for _, h := range created {
			fmt.Fprintf(cmd.OutOrStdout(), "%s Registered %s -> %s\n", mark(true), h.Name, h.TargetURL)
		}
		return err
	},
}

var webhooksDeleteAll bool

var webhooksDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete the bot's webhooks",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, _, err := loadRuntime()
		if err != nil {
			return err
		}
		names := gateway.WebhookNames()
		if webhooksDeleteAll {
			names = nil
		}
		n, err := channels.DeleteWebhooks(commandContext(cmd), baseClient(cfg).WithToken(cfg.Bot.Token), names...)
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d webhook(s)\n", n)
		return err
	},
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func init() {
	webhooksRegisterCmd.Flags().StringVar(&webhooksRegisterURL, "url", "", "Public base URL (defaults to gateway.publicUrl)")
	webhooksDeleteCmd.Flags().BoolVar(&webhooksDeleteAll, "all", false, "Delete every webhook owned by the bot, not only the bot's own set")
	webhooksCmd.AddCommand(webhooksListCmd, webhooksRegisterCmd, webhooksDeleteCmd)
}

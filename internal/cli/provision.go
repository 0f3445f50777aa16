package cli

import (
	"fmt"
	"strings"

	"github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"

	"github.com/KafClaw/boardbot/internal/admin"
	"github.com/KafClaw/boardbot/internal/bot"
	"github.com/KafClaw/boardbot/internal/config"
)

var (
	provisionOrg       string
	provisionToken     string
	provisionWorkspace string
	provisionModel     string
	provisionQR        bool
)

var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Request a device activation code without going through chat",
	RunE: func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(provisionOrg) == "" || strings.TrimSpace(provisionToken) == "" || strings.TrimSpace(provisionWorkspace) == "" {
			return fmt.Errorf("--org, --token and --workspace are required")
		}
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		ctx := commandContext(cmd)
		adm := admin.New(ctx, baseClient(cfg), provisionToken, provisionOrg)
		code, err := adm.ActivationCode(ctx, strings.TrimSpace(provisionWorkspace), provisionModel)
		if err != nil {
			return fmt.Errorf("activation code: %w", err)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Activation code: %s\n", bot.SplitCode(code))
		if provisionQR {
			q, err := qrcode.New(code, qrcode.Medium)
			if err != nil {
				return fmt.Errorf("qr code: %w", err)
			}
			fmt.Fprint(out, q.ToSmallString(false))
		}
		return nil
	},
}

func init() {
	provisionCmd.Flags().StringVar(&provisionOrg, "org", "", "Organization id")
	provisionCmd.Flags().StringVar(&provisionToken, "token", "", "Admin access token")
	provisionCmd.Flags().StringVar(&provisionWorkspace, "workspace", "", "Workspace display name (created when missing)")
	provisionCmd.Flags().StringVar(&provisionModel, "model", "", "Optional device model hint")
	provisionCmd.Flags().BoolVar(&provisionQR, "qr", false, "Also print the code as a terminal QR code")
}

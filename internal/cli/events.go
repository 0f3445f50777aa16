package cli

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/KafClaw/boardbot/internal/config"
	"github.com/KafClaw/boardbot/internal/timeline"
)

var (
	eventsLimit int
	eventsRoom  string
	eventsKind  string
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show recent journaled webhook and provisioning events",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if _, err := os.Stat(cfg.Timeline.Path); err != nil {
			return fmt.Errorf("no event journal at %s (enable timeline.enabled and run serve)", cfg.Timeline.Path)
		}
		tl, err := timeline.NewTimelineService(cfg.Timeline.Path)
		if err != nil {
			return err
		}
		defer tl.Close()

		evts, err := tl.GetEvents(timeline.FilterArgs{RoomID: eventsRoom, Kind: eventsKind, Limit: eventsLimit})
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tKIND\tROOM\tORG\tOUTCOME\tDETAIL")
		for _, e := range evts {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				e.Timestamp.Local().Format(time.DateTime), e.Kind, e.RoomID, e.OrgID, e.Outcome, e.Detail)
		}
		return w.Flush()
	},
}

func init() {
	eventsCmd.Flags().IntVar(&eventsLimit, "limit", 20, "Maximum number of events")
	eventsCmd.Flags().StringVar(&eventsRoom, "room", "", "Only events for this room id")
	eventsCmd.Flags().StringVar(&eventsKind, "kind", "", "Only events of this kind")
}

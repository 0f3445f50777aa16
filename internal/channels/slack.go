package channels

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/slack-go/slack"

	"github.com/KafClaw/boardbot/internal/bus"
	"github.com/KafClaw/boardbot/internal/config"
)

// SlackChannel posts operator notices to a Slack channel.
type SlackChannel struct {
	config config.SlackConfig
	bus    *bus.MessageBus
	api    *slack.Client
}

// NewSlackChannel builds the channel. It is inert unless cfg.Enabled.
func NewSlackChannel(cfg config.SlackConfig, messageBus *bus.MessageBus) *SlackChannel {
	base := strings.TrimSpace(cfg.APIBase)
	if base == "" {
		base = "https://slack.com/api"
	}
	base = strings.TrimRight(base, "/") + "/"
	return &SlackChannel{
		config: cfg,
		bus:    messageBus,
		api:    slack.New(strings.TrimSpace(cfg.BotToken), slack.OptionAPIURL(base)),
	}
}

func (c *SlackChannel) Name() string { return "slack" }

// Start subscribes to outbound messages addressed to this channel.
func (c *SlackChannel) Start(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}
	c.bus.Subscribe(c.Name(), func(msg *bus.OutboundMessage) {
		if err := c.Send(ctx, msg); err != nil {
			slog.Warn("Slack notice failed", "trace_id", msg.TraceID, "error", err)
		}
	})
	return nil
}

func (c *SlackChannel) Stop() error { return nil }

// Send posts msg. An empty ChatID falls back to the configured channel.
func (c *SlackChannel) Send(ctx context.Context, msg *bus.OutboundMessage) error {
	channelID := strings.TrimSpace(msg.ChatID)
	if channelID == "" {
		channelID = strings.TrimSpace(c.config.ChannelID)
	}
	if channelID == "" {
		return errors.New("slack: no channel id")
	}
	_, _, err := c.api.PostMessageContext(ctx, channelID, slack.MsgOptionText(msg.Content, false))
	return err
}

package channels

import (
	"context"

	"github.com/KafClaw/boardbot/internal/bus"
)

// Channel defines the interface for chat platforms the bot talks on.
type Channel interface {
	// Name returns the channel name (e.g. "webex").
	Name() string
	// Start starts the channel.
	Start(ctx context.Context) error
	// Stop releases whatever Start acquired.
	Stop() error
	// Send sends a message to a specific chat.
	Send(ctx context.Context, msg *bus.OutboundMessage) error
}

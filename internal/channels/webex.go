package channels

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/KafClaw/boardbot/internal/bus"
	"github.com/KafClaw/boardbot/internal/webex"
)

// WebexChannel sends bot replies and owns the webhook subscriptions.
type WebexChannel struct {
	api      *webex.Client
	hooks    []webex.Webhook
	register bool

	mu     sync.Mutex
	active []string
}

// NewWebexChannel returns a channel for api. When register is set, Start
// creates hooks and Stop deletes them.
func NewWebexChannel(api *webex.Client, hooks []webex.Webhook, register bool) *WebexChannel {
	return &WebexChannel{api: api, hooks: hooks, register: register}
}

func (c *WebexChannel) Name() string { return "webex" }

// Start registers the webhook subscriptions.
func (c *WebexChannel) Start(ctx context.Context) error {
	if !c.register {
		return nil
	}
	created, err := SyncWebhooks(ctx, c.api, c.hooks)
	c.mu.Lock()
	for _, h := range created {
		c.active = append(c.active, h.ID)
	}
	c.mu.Unlock()
	if err != nil {
		return err
	}
	if len(created) < len(c.hooks) {
		slog.Warn("Missing webhooks, please verify", "want", len(c.hooks), "have", len(created))
	}
	return nil
}

// Stop deletes the subscriptions registered by Start.
func (c *WebexChannel) Stop() error {
	c.mu.Lock()
	ids := c.active
	c.active = nil
	c.mu.Unlock()
	if len(ids) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	var firstErr error
	for _, id := range ids {
		if err := c.api.DeleteWebhook(ctx, id); err != nil {
			slog.Warn("Webhook delete failed", "webhook_id", id, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		slog.Info("Webhook deleted", "webhook_id", id)
	}
	return firstErr
}

// Send posts msg to the room in msg.ChatID.
func (c *WebexChannel) Send(ctx context.Context, msg *bus.OutboundMessage) error {
	roomID := strings.TrimSpace(msg.ChatID)
	if roomID == "" {
		return fmt.Errorf("webex send: empty room id")
	}
	if _, err := c.api.CreateMessage(ctx, roomID, msg.Content, msg.Card); err != nil {
		slog.Warn("Webex send failed", "room_id", roomID, "trace_id", msg.TraceID, "kind", webex.Kind(err), "error", err)
		return err
	}
	return nil
}

// SyncWebhooks replaces every existing webhook sharing a name with one of
// hooks, then creates hooks. It returns the webhooks it created.
func SyncWebhooks(ctx context.Context, api *webex.Client, hooks []webex.Webhook) ([]webex.Webhook, error) {
	existing, err := api.ListWebhooks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list webhooks: %w", err)
	}
	names := make(map[string]struct{}, len(hooks))
	for _, h := range hooks {
		names[h.Name] = struct{}{}
	}
	for _, h := range existing {
		if _, ok := names[h.Name]; !ok {
			continue
		}
		if err := api.DeleteWebhook(ctx, h.ID); err != nil {
			return nil, fmt.Errorf("delete stale webhook %s: %w", h.Name, err)
		}
		slog.Info("Stale webhook removed", "name", h.Name, "webhook_id", h.ID)
	}
	created := make([]webex.Webhook, 0, len(hooks))
	for _, h := range hooks {
		out, err := api.CreateWebhook(ctx, h)
		if err != nil {
			return created, fmt.Errorf("create webhook %s: %w", h.Name, err)
		}
		slog.Info("Webhook created", "name", out.Name, "resource", out.Resource, "event", out.Event, "target", out.TargetURL)
		created = append(created, *out)
	}
	return created, nil
}

// DeleteWebhooks deletes every webhook whose name is in names, or all
// webhooks when names is empty. It returns how many were deleted.
func DeleteWebhooks(ctx context.Context, api *webex.Client, names ...string) (int, error) {
	existing, err := api.ListWebhooks(ctx)
	if err != nil {
		return 0, fmt.Errorf("list webhooks: %w", err)
	}
	want := make(map[string]struct{}, len(names))
	for _, n := range names {
		want[n] = struct{}{}
	}
	n := 0
	for _, h := range existing {
		if _, ok := want[h.Name]; len(want) > 0 && !ok {
			continue
		}
		if err := api.DeleteWebhook(ctx, h.ID); err != nil {
			return n, fmt.Errorf("delete webhook %s: %w", h.Name, err)
		}
		n++
	}
	return n, nil
}

package gateway

import (
	"strings"

	"github.com/KafClaw/boardbot/internal/webex"
)

// Webhook names. Registration replaces existing hooks with the same name.
const (
	MentionWebhook         = "MentionWebhook"
	CardWebhook            = "CardWebhook"
	AddedToRoomWebhook     = "AddedToRoomWebhook"
	RemovedFromRoomWebhook = "RemovedFromRoomWebhook"
)

// Endpoint paths served by the gateway.
const (
	PathMention = "/mention"
	PathCard    = "/card"
	PathAdded   = "/added"
	PathRemoved = "/removed"
)

// Subscriptions returns the webhook set pointing at publicURL. Membership
// hooks are filtered to the bot's own memberships.
func Subscriptions(publicURL, botID, secret string) []webex.Webhook {
	base := strings.TrimRight(publicURL, "/")
	self := "personId=" + botID
	return []webex.Webhook{
		{Name: MentionWebhook, Resource: "messages", Event: "created", TargetURL: base + PathMention, Secret: secret},
		{Name: CardWebhook, Resource: "attachmentActions", Event: "created", TargetURL: base + PathCard, Secret: secret},
		{Name: AddedToRoomWebhook, Resource: "memberships", Event: "created", Filter: self, TargetURL: base + PathAdded, Secret: secret},
		{Name: RemovedFromRoomWebhook, Resource: "memberships", Event: "deleted", Filter: self, TargetURL: base + PathRemoved, Secret: secret},
	}
}

// WebhookNames lists the names of the subscription set.
func WebhookNames() []string {
	return []string{MentionWebhook, CardWebhook, AddedToRoomWebhook, RemovedFromRoomWebhook}
}

// Package config loads the bot's configuration from a JSON file, env files
// and environment variables.
package config

import (
	"net"
	"path/filepath"
	"strconv"

	"github.com/KafClaw/boardbot/internal/webex"
)

// Config is the root configuration.
type Config struct {
	Bot      BotConfig      `json:"bot"`
	Gateway  GatewayConfig  `json:"gateway"`
	Webex    WebexConfig    `json:"webex"`
	State    StateConfig    `json:"state"`
	Timeline TimelineConfig `json:"timeline"`
	Events   EventsConfig   `json:"events"`
}

// BotConfig is the bot's own identity and chat behavior.
type BotConfig struct {
	Name           string `json:"name" split_words:"true"`
	Token          string `json:"token" split_words:"true" validate:"required"`
	Email          string `json:"email" split_words:"true" validate:"omitempty,email"`
	ID             string `json:"id" split_words:"true"`
	SupportContact string `json:"supportContact,omitempty" split_words:"true" validate:"omitempty,email"`
	AskDeviceModel bool   `json:"askDeviceModel" split_words:"true"`
}

// GatewayConfig is the webhook receiver.
type GatewayConfig struct {
	Host             string `json:"host" split_words:"true"`
	Port             int    `json:"port" split_words:"true" validate:"min=0,max=65535"` // 0 binds an ephemeral port
	PublicURL        string `json:"publicUrl" split_words:"true" validate:"omitempty,url"`
	WebhookSecret    string `json:"webhookSecret,omitempty" split_words:"true"`
	RegisterWebhooks bool   `json:"registerWebhooks" split_words:"true"`
}

// WebexConfig points at the REST API.
type WebexConfig struct {
	BaseURL        string `json:"baseUrl" split_words:"true" validate:"required,url"`
	TimeoutSeconds int    `json:"timeoutSeconds" split_words:"true" validate:"min=1,max=300"`
}

// StateConfig is the registry document location and retention policy.
type StateConfig struct {
	Path                string `json:"path" split_words:"true" validate:"required"`
	ReleaseOrphanedOrgs bool   `json:"releaseOrphanedOrgs" split_words:"true"`
}

// TimelineConfig is the inbound event journal.
type TimelineConfig struct {
	Enabled bool   `json:"enabled" split_words:"true"`
	Path    string `json:"path" split_words:"true" validate:"required_if=Enabled true"`
}

// EventsConfig groups the provisioning event sinks.
type EventsConfig struct {
	Kafka KafkaConfig `json:"kafka"`
	Slack SlackConfig `json:"slack"`
}

// KafkaConfig publishes provisioning events to a topic.
type KafkaConfig struct {
	Enabled  bool     `json:"enabled" split_words:"true"`
	Brokers  []string `json:"brokers" split_words:"true" validate:"required_if=Enabled true"`
	Topic    string   `json:"topic" split_words:"true" validate:"required_if=Enabled true"`
	ClientID string   `json:"clientId,omitempty" split_words:"true"`
}

// SlackConfig posts provisioning notices to an ops channel.
type SlackConfig struct {
	Enabled   bool   `json:"enabled" split_words:"true"`
	BotToken  string `json:"botToken" split_words:"true" validate:"required_if=Enabled true"`
	ChannelID string `json:"channelId" split_words:"true" validate:"required_if=Enabled true"`
	APIBase   string `json:"apiBase,omitempty" split_words:"true" validate:"omitempty,url"`
}

// Addr returns the listen address.
func (g GatewayConfig) Addr() string {
	return net.JoinHostPort(g.Host, strconv.Itoa(g.Port))
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	home, _ := resolveHomeDir()
	base := filepath.Join(home, ConfigDir)
	return &Config{
		Bot: BotConfig{
			Name: "Boardbot",
		},
		Gateway: GatewayConfig{
			Host:             "0.0.0.0",
			Port:             5000,
			RegisterWebhooks: true,
		},
		Webex: WebexConfig{
			BaseURL:        webex.DefaultBaseURL,
			TimeoutSeconds: 30,
		},
		State: StateConfig{
			Path: filepath.Join(base, "bot_data.json"),
		},
		Timeline: TimelineConfig{
			Path: filepath.Join(base, "timeline.db"),
		},
		Events: EventsConfig{
			Kafka: KafkaConfig{
				Topic:    "boardbot.provisioning",
				ClientID: "boardbot",
			},
			Slack: SlackConfig{
				APIBase: "https://slack.com/api",
			},
		},
	}
}

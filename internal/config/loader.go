package config

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

const (
	// ConfigDir is the default config directory name.
	ConfigDir = ".boardbot"
	// ConfigFile is the default config file name.
	ConfigFile = "config.json"
)

// ConfigPath returns the path to the config file.
func ConfigPath() (string, error) {
	if explicit := strings.TrimSpace(os.Getenv("BOARDBOT_CONFIG")); explicit != "" {
		if strings.HasPrefix(explicit, "~") {
			home, err := resolveHomeDir()
			if err != nil {
				return "", err
			}
			return filepath.Join(home, explicit[1:]), nil
		}
		return explicit, nil
	}
	home, err := resolveHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigDir, ConfigFile), nil
}

func resolveHomeDir() (string, error) {
	if h := strings.TrimSpace(os.Getenv("BOARDBOT_HOME")); h != "" {
		if strings.HasPrefix(h, "~") {
			base, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			return filepath.Join(base, h[1:]), nil
		}
		return h, nil
	}
	return os.UserHomeDir()
}

// legacyEnv holds the deployment variables that predate the config file.
// Fields carry no envconfig tag so unprefixed names like PORT are never read.
type legacyEnv struct {
	URL  string
	Port int
}

// processEnv applies env overrides for prefix. envconfig stops at the first
// malformed value, so fields after it keep their current values.
func processEnv(prefix string, spec any) {
	if err := envconfig.Process(prefix, spec); err != nil {
		slog.Warn("Ignoring invalid environment override", "prefix", prefix, "error", err)
	}
}

// Load reads the configuration. Priority: env > file > defaults.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	// Env files first so their values are visible to the overrides below.
	LoadEnvFileCandidates()

	path, err := ConfigPath()
	if err != nil {
		return cfg, nil
	}
	data, err := loadResolvedConfig(path)
	if err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	// BOT_NAME, BOT_TOKEN, BOT_EMAIL, BOT_ID, BOT_URL, BOT_PORT
	processEnv("BOT", &cfg.Bot)
	var legacy legacyEnv
	processEnv("BOT", &legacy)
	if legacy.URL != "" {
		cfg.Gateway.PublicURL = legacy.URL
	}
	if legacy.Port != 0 {
		cfg.Gateway.Port = legacy.Port
	}

	processEnv("BOARDBOT_BOT", &cfg.Bot)
	processEnv("BOARDBOT_GATEWAY", &cfg.Gateway)
	processEnv("BOARDBOT_WEBEX", &cfg.Webex)
	processEnv("BOARDBOT_STATE", &cfg.State)
	processEnv("BOARDBOT_TIMELINE", &cfg.Timeline)
	processEnv("BOARDBOT_EVENTS_KAFKA", &cfg.Events.Kafka)
	processEnv("BOARDBOT_EVENTS_SLACK", &cfg.Events.Slack)

	expandHome := func(p *string) {
		if strings.HasPrefix(*p, "~") {
			if home, err := resolveHomeDir(); err == nil {
				*p = filepath.Join(home, (*p)[1:])
			}
		}
	}
	expandHome(&cfg.State.Path)
	expandHome(&cfg.Timeline.Path)
	cfg.Gateway.PublicURL = strings.TrimRight(strings.TrimSpace(cfg.Gateway.PublicURL), "/")

	return cfg, nil
}

// Save writes the configuration to the config file.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

func loadResolvedConfig(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		raw = map[string]any{}
	}
	substituteEnvValues(raw)
	return json.Marshal(raw)
}

func substituteEnvValues(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, item := range t {
			t[k] = substituteEnvValues(item)
		}
		return t
	case []any:
		for i, item := range t {
			t[i] = substituteEnvValues(item)
		}
		return t
	case string:
		return envPattern.ReplaceAllStringFunc(t, func(match string) string {
			parts := envPattern.FindStringSubmatch(match)
			if len(parts) != 2 {
				return match
			}
			if value, ok := os.LookupEnv(parts[1]); ok {
				return value
			}
			return match
		})
	default:
		return v
	}
}

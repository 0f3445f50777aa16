package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/KafClaw/boardbot/internal/config"
	"github.com/KafClaw/boardbot/internal/registry"
	"github.com/KafClaw/boardbot/internal/webex"
)

// loadRuntime loads the config and the persisted state, lets stored bot
// identity fields win over configured ones and validates the result.
func loadRuntime() (*config.Config, registry.FileStore, *registry.State, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, registry.FileStore{}, nil, fmt.Errorf("load config: %w", err)
	}
	store := registry.FileStore{Path: cfg.State.Path}
	st, err := store.Load()
	if err != nil {
		return nil, store, nil, fmt.Errorf("load state: %w", err)
	}
	mergeBotIdentity(&cfg.Bot, st)
	if err := cfg.Validate(); err != nil {
		return nil, store, nil, err
	}
	return cfg, store, st, nil
}

func mergeBotIdentity(b *config.BotConfig, st *registry.State) {
	if st == nil {
		return
	}
	if v := strings.TrimSpace(st.BotName); v != "" {
		b.Name = v
	}
	if v := strings.TrimSpace(st.BotToken); v != "" {
		b.Token = v
	}
	if v := strings.TrimSpace(st.BotEmail); v != "" {
		b.Email = v
	}
}

// baseClient is a tokenless client carrying the configured endpoint and timeout.
func baseClient(cfg *config.Config) *webex.Client {
	return webex.NewClient("",
		webex.WithBaseURL(cfg.Webex.BaseURL),
		webex.WithTimeout(time.Duration(cfg.Webex.TimeoutSeconds)*time.Second),
	)
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/KafClaw/boardbot/internal/bot"
	"github.com/KafClaw/boardbot/internal/bus"
	"github.com/KafClaw/boardbot/internal/channels"
	"github.com/KafClaw/boardbot/internal/config"
	"github.com/KafClaw/boardbot/internal/directory"
	"github.com/KafClaw/boardbot/internal/events"
	"github.com/KafClaw/boardbot/internal/gateway"
	"github.com/KafClaw/boardbot/internal/metrics"
	"github.com/KafClaw/boardbot/internal/registry"
	"github.com/KafClaw/boardbot/internal/timeline"
	"github.com/KafClaw/boardbot/internal/webex"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook gateway and bot",
	RunE:  runServe,
}

var (
	serveLogLevel string
	serveLogJSON  bool
)

var serveSignalNotify = signal.Notify
var serveSignalStop = signal.Stop

// serveListening is called with the bound address once the server accepts connections.
var serveListening = func(addr string) {}

func init() {
	serveCmd.Flags().StringVar(&serveLogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	serveCmd.Flags().BoolVar(&serveLogJSON, "log-json", false, "Emit JSON logs")
}

func runServe(cmd *cobra.Command, args []string) error {
	prevLogger := slog.Default()
	defer slog.SetDefault(prevLogger)
	if err := setupLogging(cmd.ErrOrStderr(), serveLogLevel, serveLogJSON); err != nil {
		return err
	}
	printHeader(cmd.OutOrStdout(), "🤖 Boardbot Gateway")

	cfg, store, st, err := loadRuntime()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	base := baseClient(cfg)
	botAPI := base.WithToken(cfg.Bot.Token)
	me, err := botAPI.Me(ctx)
	if err != nil {
		return fmt.Errorf("resolve bot identity (%s): %w", webex.Kind(err), err)
	}
	if cfg.Bot.ID != "" && cfg.Bot.ID != me.ID {
		slog.Warn("Configured bot id differs from token identity, using token identity", "configured", cfg.Bot.ID, "resolved", me.ID)
	}
	slog.Info("Bot identity resolved", "bot_id", me.ID, "name", cfg.Bot.Name)

	m := metrics.New()

	var tl *timeline.TimelineService
	if cfg.Timeline.Enabled {
		if err := os.MkdirAll(filepath.Dir(cfg.Timeline.Path), 0o700); err != nil {
			return fmt.Errorf("create timeline dir: %w", err)
		}
		tl, err = timeline.NewTimelineService(cfg.Timeline.Path)
		if err != nil {
			return err
		}
		defer tl.Close()
	}

	msgBus := bus.NewMessageBus()
	sink, err := buildSinks(cfg, msgBus, tl)
	if err != nil {
		return err
	}
	defer func() {
		if err := sink.Close(); err != nil {
			slog.Warn("Event sink close failed", "error", err)
		}
	}()

	register := cfg.Gateway.RegisterWebhooks && cfg.Gateway.PublicURL != ""
	if cfg.Gateway.RegisterWebhooks && !register {
		slog.Warn("No public URL configured, skipping webhook registration")
	}
	hooks := gateway.Subscriptions(cfg.Gateway.PublicURL, me.ID, cfg.Gateway.WebhookSecret)
	webexCh := channels.NewWebexChannel(botAPI, hooks, register)
	slackCh := channels.NewSlackChannel(cfg.Events.Slack, msgBus)

	reg := registry.New(
		directory.New(botAPI),
		registry.Admins(base),
		registry.WithStore(store),
		registry.WithReleaseOrphanedOrgs(cfg.State.ReleaseOrphanedOrgs),
		registry.WithBot(registry.Bot{Name: cfg.Bot.Name, Token: cfg.Bot.Token, Email: cfg.Bot.Email}),
	)
	stale := reg.Restore(ctx, st)

	router := bot.NewRouter(cfg.Bot.Name, reg, webexCh,
		bot.WithEvents(sink),
		bot.WithMetrics(m),
		bot.WithSupportContact(cfg.Bot.SupportContact),
		bot.WithDeviceModel(cfg.Bot.AskDeviceModel),
	)

	for _, ch := range []channels.Channel{webexCh, slackCh} {
		if err := ch.Start(ctx); err != nil {
			slog.Error("Channel start failed", "channel", ch.Name(), "error", err)
		}
	}
	defer func() {
		for _, ch := range []channels.Channel{webexCh, slackCh} {
			if err := ch.Stop(); err != nil {
				slog.Warn("Channel stop failed", "channel", ch.Name(), "error", err)
			}
		}
	}()
	go func() { _ = msgBus.DispatchOutbound(ctx) }()

	for _, room := range stale {
		router.PromptReinit(ctx, room)
	}

	gwOpts := []gateway.Option{gateway.WithMetrics(m), gateway.WithSecret(cfg.Gateway.WebhookSecret)}
	if tl != nil {
		gwOpts = append(gwOpts, gateway.WithJournal(tl))
	}
	gw := gateway.New(botAPI, me.ID, router, gwOpts...)

	ln, err := net.Listen("tcp", cfg.Gateway.Addr())
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Gateway.Addr(), err)
	}
	srv := &http.Server{Handler: gw.Routes(), ReadHeaderTimeout: 10 * time.Second}
	serveErr := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()
	slog.Info("Gateway listening", "addr", ln.Addr().String(), "public_url", cfg.Gateway.PublicURL)
	serveListening(ln.Addr().String())

	sigChan := make(chan os.Signal, 1)
	serveSignalNotify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer serveSignalStop(sigChan)

	var runErr error
	select {
	case sig := <-sigChan:
		slog.Info("Shutting down", "signal", sig.String())
	case err := <-serveErr:
		runErr = err
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP shutdown failed", "error", err)
	}
	if err := reg.Flush(); err != nil {
		slog.Error("State flush failed", "path", cfg.State.Path, "error", err)
		if runErr == nil {
			runErr = err
		}
	} else {
		slog.Info("State saved", "path", cfg.State.Path)
	}
	return runErr
}

func buildSinks(cfg *config.Config, msgBus *bus.MessageBus, tl *timeline.TimelineService) (events.Sink, error) {
	var sinks events.Multi
	if tl != nil {
		sinks = append(sinks, events.JournalSink{Timeline: tl})
	}
	if cfg.Events.Kafka.Enabled {
		k, err := events.NewKafkaSink(cfg.Events.Kafka)
		if err != nil {
			return nil, fmt.Errorf("kafka events: %w", err)
		}
		sinks = append(sinks, k)
	}
	if cfg.Events.Slack.Enabled {
		sinks = append(sinks, events.ChannelSink{Bus: msgBus, Channel: "slack", ChatID: cfg.Events.Slack.ChannelID})
	}
	if len(sinks) == 0 {
		return events.Nop{}, nil
	}
	return sinks, nil
}

// Package gateway serves the webhook endpoints that feed the bot.
package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/KafClaw/boardbot/internal/bus"
	"github.com/KafClaw/boardbot/internal/metrics"
	"github.com/KafClaw/boardbot/internal/timeline"
	"github.com/KafClaw/boardbot/internal/webex"
)

const maxBody = 1 << 20

// SignatureHeader carries the HMAC-SHA1 of the body keyed with the webhook secret.
const SignatureHeader = "X-Spark-Signature"

// Handler reacts to decoded webhook events.
type Handler interface {
	HandleCommand(ctx context.Context, ev *bus.InboundEvent, text string)
	HandleCard(ctx context.Context, ev *bus.InboundEvent, action *webex.AttachmentAction)
	HandleAdded(ctx context.Context, ev *bus.InboundEvent)
	HandleRemoved(ctx context.Context, ev *bus.InboundEvent)
}

// Fetcher resolves the resource ids carried by webhook payloads.
type Fetcher interface {
	GetMessage(ctx context.Context, id string) (*webex.Message, error)
	GetAttachmentAction(ctx context.Context, id string) (*webex.AttachmentAction, error)
}

type envelope struct {
	Data struct {
		ID       string `json:"id"`
		RoomID   string `json:"roomId"`
		PersonID string `json:"personId"`
	} `json:"data"`
}

// Option configures a Server.
type Option func(*Server)

// WithJournal records every delivery in tl.
func WithJournal(tl *timeline.TimelineService) Option { return func(s *Server) { s.journal = tl } }

// WithMetrics sets the counters the server updates.
func WithMetrics(m *metrics.Metrics) Option { return func(s *Server) { s.metrics = m } }

// WithSecret rejects deliveries whose signature does not match secret.
func WithSecret(secret string) Option { return func(s *Server) { s.secret = secret } }

// Server turns webhook deliveries into handler calls.
type Server struct {
	api     Fetcher
	botID   string
	handler Handler
	journal *timeline.TimelineService
	metrics *metrics.Metrics
	secret  string
}

// New returns a gateway that fetches resources through api and ignores
// messages authored by botID.
func New(api Fetcher, botID string, h Handler, opts ...Option) *Server {
	s := &Server{api: api, botID: botID, handler: h}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes returns the gateway mux.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+PathMention, s.webhook(bus.KindMention, s.mention))
	mux.HandleFunc("POST "+PathCard, s.webhook(bus.KindCard, s.card))
	mux.HandleFunc("POST "+PathAdded, s.webhook(bus.KindAdded, s.added))
	mux.HandleFunc("POST "+PathRemoved, s.webhook(bus.KindRemoved, s.removed))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
	return s.metrics.Instrument(mux, PathMention, PathCard, PathAdded, PathRemoved, "/healthz", "/metrics")
}

type eventFunc func(ctx context.Context, ev *bus.InboundEvent) (string, error)

func (s *Server) webhook(kind string, fn eventFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
		if err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		if !s.verify(body, r.Header.Get(SignatureHeader)) {
			s.metrics.Webhook(kind, "bad_signature")
			http.Error(w, "invalid signature", http.StatusUnauthorized)
			return
		}
		var env envelope
		if err := json.Unmarshal(body, &env); err != nil {
			s.metrics.Webhook(kind, "malformed")
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}

		ev := bus.NewInboundEvent(kind, env.Data.RoomID, env.Data.PersonID, env.Data.ID)
		// Replies must survive the webhook caller hanging up.
		ctx := context.WithoutCancel(r.Context())
		outcome, err := fn(ctx, ev)
		detail := ""
		if err != nil {
			detail = err.Error()
			s.metrics.APIError(webex.Kind(err))
			slog.Warn("Webhook event not handled", "kind", kind, "room_id", ev.RoomID, "trace_id", ev.TraceID, "error_kind", webex.Kind(err), "error", err)
		} else {
			slog.Debug("Webhook event", "kind", kind, "room_id", ev.RoomID, "trace_id", ev.TraceID, "outcome", outcome)
		}
		s.metrics.Webhook(kind, outcome)
		s.record(ev, outcome, detail)

		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, "success")
	}
}

func (s *Server) verify(body []byte, signature string) bool {
	if s.secret == "" {
		return true
	}
	mac := hmac.New(sha1.New, []byte(s.secret))
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(want), []byte(signature))
}

func (s *Server) record(ev *bus.InboundEvent, outcome, detail string) {
	if s.journal == nil {
		return
	}
	err := s.journal.AddEvent(&timeline.TimelineEvent{
		TraceID:    ev.TraceID,
		Timestamp:  ev.Timestamp.UTC(),
		Kind:       ev.Kind,
		RoomID:     ev.RoomID,
		PersonID:   ev.PersonID,
		ResourceID: ev.ResourceID,
		Outcome:    outcome,
		Detail:     detail,
	})
	if err != nil {
		slog.Warn("Timeline write failed", "trace_id", ev.TraceID, "error", err)
	}
}

func (s *Server) mention(ctx context.Context, ev *bus.InboundEvent) (string, error) {
	if s.botID != "" && ev.PersonID == s.botID {
		return "ignored", nil
	}
	msg, err := s.api.GetMessage(ctx, ev.ResourceID)
	if err != nil {
		return "fetch_failed", fmt.Errorf("get message: %w", err)
	}
	s.handler.HandleCommand(ctx, ev, msg.Text)
	return "handled", nil
}

func (s *Server) card(ctx context.Context, ev *bus.InboundEvent) (string, error) {
	action, err := s.api.GetAttachmentAction(ctx, ev.ResourceID)
	if err != nil {
		return "fetch_failed", fmt.Errorf("get attachment action: %w", err)
	}
	s.handler.HandleCard(ctx, ev, action)
	return "handled", nil
}

func (s *Server) added(ctx context.Context, ev *bus.InboundEvent) (string, error) {
	s.handler.HandleAdded(ctx, ev)
	return "handled", nil
}

func (s *Server) removed(ctx context.Context, ev *bus.InboundEvent) (string, error) {
	s.handler.HandleRemoved(ctx, ev)
	return "handled", nil
}

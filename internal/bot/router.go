// Package bot turns chat mentions, form submissions and membership changes
// into registry operations and chat replies.
package bot

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/KafClaw/boardbot/internal/admin"
	"github.com/KafClaw/boardbot/internal/bus"
	"github.com/KafClaw/boardbot/internal/config"
	"github.com/KafClaw/boardbot/internal/events"
	"github.com/KafClaw/boardbot/internal/metrics"
	"github.com/KafClaw/boardbot/internal/registry"
	"github.com/KafClaw/boardbot/internal/webex"
)

// Sender delivers a reply to a room.
type Sender interface {
	Send(ctx context.Context, msg *bus.OutboundMessage) error
}

// Option configures a Router.
type Option func(*Router)

// WithEvents sets the sink for provisioning events.
func WithEvents(s events.Sink) Option { return func(r *Router) { r.events = s } }

// WithMetrics sets the counters the router updates.
func WithMetrics(m *metrics.Metrics) Option { return func(r *Router) { r.metrics = m } }

// WithSupportContact adds a contact to failure and help texts.
func WithSupportContact(email string) Option {
	return func(r *Router) { r.support = strings.TrimSpace(email) }
}

// WithDeviceModel adds the optional device model input to the provisioning form.
func WithDeviceModel(ask bool) Option { return func(r *Router) { r.askModel = ask } }

// Router is stateless per message; all state lives in the registry.
type Router struct {
	name     []string
	reg      *registry.Registry
	out      Sender
	events   events.Sink
	metrics  *metrics.Metrics
	support  string
	askModel bool
}

// NewRouter returns a router for the bot called name.
func NewRouter(name string, reg *registry.Registry, out Sender, opts ...Option) *Router {
	r := &Router{
		name:   strings.Fields(name),
		reg:    reg,
		out:    out,
		events: events.Nop{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Router) say(ctx context.Context, roomID, traceID, text string, card *webex.Card) {
	msg := &bus.OutboundMessage{Channel: "webex", ChatID: roomID, TraceID: traceID, Content: text, Card: card}
	if err := r.out.Send(ctx, msg); err != nil {
		r.metrics.APIError(webex.Kind(err))
		slog.Warn("Reply not delivered", "room_id", roomID, "trace_id", traceID, "error", err)
	}
}

func (r *Router) emit(ctx context.Context, typ string, ev *bus.InboundEvent, orgID, subject, detail string) {
	e := events.New(typ)
	e.OrgID = orgID
	e.Subject = subject
	e.Detail = detail
	if ev != nil {
		e.TraceID = ev.TraceID
		e.RoomID = ev.RoomID
		e.ActorID = ev.PersonID
	}
	_ = r.events.Publish(ctx, e)
}

func (r *Router) sendInit(ctx context.Context, roomID, traceID string) {
	r.say(ctx, roomID, traceID, msgPleaseInitialize, InitCard())
}

// stripName drops a leading mention of the bot's own name.
func (r *Router) stripName(fields []string) []string {
	if len(r.name) == 0 || len(fields) < len(r.name) {
		return fields
	}
	for i, w := range r.name {
		if fields[i] != w {
			return fields
		}
	}
	return fields[len(r.name):]
}

// HandleCommand parses a mention and runs the matching command.
func (r *Router) HandleCommand(ctx context.Context, ev *bus.InboundEvent, text string) {
	fields := strings.Fields(text)
	if len(fields) > 0 && fields[0] == "All" {
		r.metrics.Command("ignored")
		return
	}
	orgID, adm, ok := r.reg.Binding(ev.RoomID)
	if !ok {
		r.metrics.Command("init_prompt")
		r.sendInit(ctx, ev.RoomID, ev.TraceID)
		return
	}

	command := r.stripName(fields)
	head, args := "", []string(nil)
	if len(command) > 0 {
		head, args = command[0], command[1:]
	}
	allowed := r.reg.IsAllowed(ev.RoomID, ev.PersonID)
	slog.Debug("Command received", "room_id", ev.RoomID, "trace_id", ev.TraceID, "head", head, "args", len(args), "allowed", allowed)

	switch {
	case head == "token" && len(args) > 0 && allowed:
		r.metrics.Command("token")
		r.updateToken(ctx, ev, orgID, adm, args[0])
	case head == "reinit" && allowed:
		r.metrics.Command("reinit")
		r.reg.Reinit(ev.RoomID)
		r.emit(ctx, events.RoomReinit, ev, orgID, "", "")
		r.sendInit(ctx, ev.RoomID, ev.TraceID)
	case head == "help":
		r.metrics.Command("help")
		r.say(ctx, ev.RoomID, ev.TraceID, msgHelp(r.support), nil)
	case head == "add" && len(args) > 0 && allowed:
		r.metrics.Command("add")
		r.addUsers(ctx, ev, orgID, args)
	case head == "remove" && len(args) > 0 && allowed:
		r.metrics.Command("remove")
		r.removeUsers(ctx, ev, orgID, args)
	default:
		r.metrics.Command("card")
		r.say(ctx, ev.RoomID, ev.TraceID, msgHereIsYourCard, CodeCard(r.askModel))
	}
}

func (r *Router) updateToken(ctx context.Context, ev *bus.InboundEvent, orgID string, adm *admin.Admin, token string) {
	if err := adm.UpdateToken(ctx, token); err != nil {
		slog.Info("Token update rejected", "room_id", ev.RoomID, "org_id", orgID, "kind", registry.Kind(err))
		r.say(ctx, ev.RoomID, ev.TraceID, msgTokenInvalid, nil)
		return
	}
	r.emit(ctx, events.TokenUpdated, ev, orgID, "", "")
	r.say(ctx, ev.RoomID, ev.TraceID, msgTokenUpdated, nil)
}

func (r *Router) addUsers(ctx context.Context, ev *bus.InboundEvent, orgID string, emails []string) {
	for _, email := range emails {
		if !config.ValidEmail(email) {
			r.say(ctx, ev.RoomID, ev.TraceID, msgAddFailed(email), nil)
			continue
		}
		if _, err := r.reg.AddAllowedUser(ctx, orgID, ev.RoomID, registry.UserRef{Email: email}); err != nil {
			slog.Info("Add allowed user failed", "room_id", ev.RoomID, "org_id", orgID, "kind", registry.Kind(err), "error", err)
			r.say(ctx, ev.RoomID, ev.TraceID, msgAddFailed(email), nil)
			continue
		}
		r.emit(ctx, events.UserAdded, ev, orgID, email, "")
		r.say(ctx, ev.RoomID, ev.TraceID, msgUserAdded(email), nil)
	}
}

func (r *Router) removeUsers(ctx context.Context, ev *bus.InboundEvent, orgID string, emails []string) {
	for _, email := range emails {
		if !config.ValidEmail(email) {
			r.say(ctx, ev.RoomID, ev.TraceID, msgRemoveFailed(email), nil)
			continue
		}
		if _, err := r.reg.RemoveAllowedUser(ctx, orgID, email, ev.RoomID); err != nil {
			slog.Info("Remove allowed user failed", "room_id", ev.RoomID, "org_id", orgID, "kind", registry.Kind(err), "error", err)
			r.say(ctx, ev.RoomID, ev.TraceID, msgRemoveFailed(email), nil)
			continue
		}
		r.emit(ctx, events.UserRemoved, ev, orgID, email, "")
		r.say(ctx, ev.RoomID, ev.TraceID, msgUserRemoved(email), nil)
	}
}

// HandleCard processes a submitted form: initialization for an unbound
// room, provisioning otherwise.
func (r *Router) HandleCard(ctx context.Context, ev *bus.InboundEvent, action *webex.AttachmentAction) {
	orgID, adm, ok := r.reg.Binding(ev.RoomID)
	if !ok {
		var initialized bool
		orgID, adm, initialized = r.initialize(ctx, ev, action)
		if !initialized {
			return
		}
	}

	if !r.reg.IsAllowed(ev.RoomID, ev.PersonID) {
		slog.Info("Provisioning refused", "room_id", ev.RoomID, "org_id", orgID, "person_id", ev.PersonID)
		r.metrics.ActivationCode("unauthorized")
		r.say(ctx, ev.RoomID, ev.TraceID, msgUnauthorized, nil)
		return
	}
	workspace, _ := action.Input(InputWorkspace)
	if workspace == "" {
		r.say(ctx, ev.RoomID, ev.TraceID, msgInitHint, nil)
		return
	}
	model, _ := action.Input(InputModel)

	code, err := adm.ActivationCode(ctx, workspace, model)
	if err != nil {
		kind := webex.Kind(err)
		slog.Warn("Activation code failed", "room_id", ev.RoomID, "org_id", orgID, "trace_id", ev.TraceID, "kind", kind, "error", err)
		r.metrics.ActivationCode("failed")
		r.metrics.APIError(kind)
		r.emit(ctx, events.CodeFailed, ev, orgID, workspace, kind)
		r.say(ctx, ev.RoomID, ev.TraceID, msgCodeFailed, nil)
		return
	}
	slog.Info("Sending activation code", "room_id", ev.RoomID, "org_id", orgID, "trace_id", ev.TraceID)
	r.metrics.ActivationCode("issued")
	r.emit(ctx, events.CodeIssued, ev, orgID, workspace, model)
	r.say(ctx, ev.RoomID, ev.TraceID, msgActivationCode(code), nil)
}

func (r *Router) initialize(ctx context.Context, ev *bus.InboundEvent, action *webex.AttachmentAction) (string, *admin.Admin, bool) {
	orgID, hasOrg := action.Input(InputOrgID)
	token, hasToken := action.Input(InputAccessToken)
	if !hasOrg || !hasToken || orgID == "" || token == "" {
		r.sendInit(ctx, ev.RoomID, ev.TraceID)
		return "", nil, false
	}
	adm, err := r.reg.InitOrg(ctx, orgID, token, ev.RoomID, ev.PersonID)
	if err != nil {
		kind := registry.Kind(err)
		slog.Info("Initialization failed", "room_id", ev.RoomID, "org_id", orgID, "kind", kind, "error", err)
		if errors.Is(err, registry.ErrReinitRequired) {
			r.PromptReinit(ctx, ev.RoomID)
		}
		r.emit(ctx, events.InitFailed, ev, orgID, "", kind)
		r.say(ctx, ev.RoomID, ev.TraceID, msgInitFailed(r.support), nil)
		return "", nil, false
	}
	slog.Info("Room initialized", "room_id", ev.RoomID, "org_id", orgID)
	r.emit(ctx, events.RoomInitialized, ev, orgID, "", "")
	r.say(ctx, ev.RoomID, ev.TraceID, msgInitSuccess, nil)
	return orgID, adm, true
}

// HandleAdded greets a room the bot was just added to.
func (r *Router) HandleAdded(ctx context.Context, ev *bus.InboundEvent) {
	r.say(ctx, ev.RoomID, ev.TraceID, msgWelcome, nil)
	r.sendInit(ctx, ev.RoomID, ev.TraceID)
}

// HandleRemoved releases the room the bot was removed from.
func (r *Router) HandleRemoved(ctx context.Context, ev *bus.InboundEvent) {
	orgID, orphaned := r.reg.ReleaseRoom(ev.RoomID)
	detail := ""
	if orphaned {
		detail = "org released"
	}
	slog.Info("Room released", "room_id", ev.RoomID, "org_id", orgID, "org_released", orphaned)
	r.emit(ctx, events.RoomReleased, ev, orgID, "", detail)
}

// PromptReinit tells a room its stored token is no longer usable.
func (r *Router) PromptReinit(ctx context.Context, roomID string) {
	r.say(ctx, roomID, "", msgReinitializing, nil)
	r.sendInit(ctx, roomID, "")
}

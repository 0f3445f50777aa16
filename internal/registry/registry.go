// Package registry is the authoritative mapping of rooms to organizations,
// per-room admins and per-organization allow-lists.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/KafClaw/boardbot/internal/admin"
	"github.com/KafClaw/boardbot/internal/directory"
	"github.com/KafClaw/boardbot/internal/webex"
)

var (
	// ErrReinitRequired means the room's existing admin rejected the new token.
	ErrReinitRequired = errors.New("registry: room admin token invalid, re-initialization required")
	// ErrMissingUser means neither email nor id was supplied.
	ErrMissingUser = errors.New("registry: email or person id required")
	// ErrUserNotFound means the person could not be resolved in the room.
	ErrUserNotFound = errors.New("registry: user not found in room")
	// ErrNotAllowed means the person is not on the organization's allow-list.
	ErrNotAllowed = errors.New("registry: user not in allowed list")
	// ErrUnknownOrg means the organization has never been initialized.
	ErrUnknownOrg = errors.New("registry: unknown organization")
	// ErrMissingCredentials means the org id or access token is blank.
	ErrMissingCredentials = errors.New("registry: organization id and access token required")
)

// Kind labels err for logs and events. Registry and directory misses get
// their own labels; anything else is classified by webex.Kind.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrUserNotFound), errors.Is(err, directory.ErrNotMember):
		return "not_member"
	case errors.Is(err, ErrNotAllowed):
		return "not_allowed"
	case errors.Is(err, ErrMissingUser):
		return "missing_user"
	case errors.Is(err, ErrMissingCredentials):
		return "missing_credentials"
	case errors.Is(err, ErrUnknownOrg):
		return "unknown_org"
	}
	kind := webex.Kind(err)
	if kind == "transport" && errors.Is(err, admin.ErrInvalidToken) {
		return "invalid_token"
	}
	return kind
}

// Resolver translates between emails and person ids within a room.
type Resolver interface {
	IDFromEmail(ctx context.Context, email, roomID string) (string, error)
	EmailFromID(ctx context.Context, personID, roomID string) (string, error)
}

// AdminFactory builds an Admin and resolves its identity.
type AdminFactory func(ctx context.Context, token, orgID string) *admin.Admin

// Admins returns a factory deriving each Admin from base.
func Admins(base *webex.Client) AdminFactory {
	return func(ctx context.Context, token, orgID string) *admin.Admin {
		return admin.New(ctx, base, token, orgID)
	}
}

// Bot is the bot identity persisted alongside the registry.
type Bot struct {
	Name  string
	Token string
	Email string
}

// UserRef names a person by email, id or both.
type UserRef struct {
	Email string
	ID    string
}

// Option configures a Registry.
type Option func(*Registry)

// WithStore sets where Load and Flush read and write.
func WithStore(s Store) Option { return func(r *Registry) { r.store = s } }

// WithReleaseOrphanedOrgs makes ReleaseRoom drop the room admin and any
// organization no longer bound to a room.
func WithReleaseOrphanedOrgs(v bool) Option { return func(r *Registry) { r.releaseOrphans = v } }

// WithBot sets the bot identity written on Flush.
func WithBot(b Bot) Option { return func(r *Registry) { r.bot = b } }

// Registry owns every room and organization map behind one mutex.
// Remote calls are made outside the lock.
type Registry struct {
	dir            Resolver
	newAdmin       AdminFactory
	store          Store
	releaseOrphans bool

	mu        sync.Mutex
	bot       Bot
	orgs      []string
	roomToOrg map[string]string
	roomAdmin map[string]*admin.Admin
	allowed   map[string][]string
	emails    map[string]map[string]string
}

// New returns an empty Registry.
func New(dir Resolver, newAdmin AdminFactory, opts ...Option) *Registry {
	r := &Registry{
		dir:       dir,
		newAdmin:  newAdmin,
		roomToOrg: map[string]string{},
		roomAdmin: map[string]*admin.Admin{},
		allowed:   map[string][]string{},
		emails:    map[string]map[string]string{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Bot returns the bot identity.
func (r *Registry) Bot() Bot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bot
}

// InitOrg binds roomID to orgID using token and allow-lists userID.
// A room that still holds an admin is reconfigured in place; if the new
// token is rejected ErrReinitRequired is returned. A fresh admin whose token
// fails validation yields an error wrapping admin.ErrInvalidToken.
func (r *Registry) InitOrg(ctx context.Context, orgID, token, roomID, userID string) (*admin.Admin, error) {
	orgID = strings.TrimSpace(orgID)
	if orgID == "" || strings.TrimSpace(token) == "" {
		return nil, ErrMissingCredentials
	}
	r.mu.Lock()
	a := r.roomAdmin[roomID]
	r.mu.Unlock()

	if a != nil {
		if err := a.Reconfigure(ctx, token, orgID); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrReinitRequired, err)
		}
	} else {
		a = r.newAdmin(ctx, token, orgID)
		if err := a.ValidateToken(ctx); err != nil {
			return nil, err
		}
	}

	email, err := r.dir.EmailFromID(ctx, userID, roomID)
	if err != nil {
		slog.Warn("Initializing user email unresolved", "room_id", roomID, "kind", Kind(err), "error", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.roomAdmin[roomID] = a
	r.ensureOrgLocked(orgID)
	r.allowLocked(orgID, userID, email)
	r.roomToOrg[roomID] = orgID
	return a, nil
}

func (r *Registry) ensureOrgLocked(orgID string) {
	if !slices.Contains(r.orgs, orgID) {
		r.orgs = append(r.orgs, orgID)
	}
	if r.allowed[orgID] == nil {
		r.allowed[orgID] = []string{}
	}
	if r.emails[orgID] == nil {
		r.emails[orgID] = map[string]string{}
	}
}

func (r *Registry) allowLocked(orgID, personID, email string) {
	if !slices.Contains(r.allowed[orgID], personID) {
		r.allowed[orgID] = append(r.allowed[orgID], personID)
	}
	if email != "" || r.emails[orgID][personID] == "" {
		r.emails[orgID][personID] = email
	}
}

// AddAllowedUser resolves whichever half of user is missing and adds the
// person to orgID's allow-list. Adding an allowed person is a no-op.
func (r *Registry) AddAllowedUser(ctx context.Context, orgID, roomID string, user UserRef) (string, error) {
	user.Email = strings.TrimSpace(user.Email)
	user.ID = strings.TrimSpace(user.ID)
	if user.Email == "" && user.ID == "" {
		return "", ErrMissingUser
	}
	if user.ID == "" {
		id, err := r.dir.IDFromEmail(ctx, user.Email, roomID)
		if err != nil {
			return "", lookupErr(err)
		}
		user.ID = id
	}
	if user.Email == "" {
		email, err := r.dir.EmailFromID(ctx, user.ID, roomID)
		if err != nil {
			slog.Debug("Allowed user email unresolved", "room_id", roomID, "error", err)
		}
		user.Email = email
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if !slices.Contains(r.orgs, orgID) {
		return "", ErrUnknownOrg
	}
	r.ensureOrgLocked(orgID)
	r.allowLocked(orgID, user.ID, user.Email)
	return user.ID, nil
}

// RemoveAllowedUser resolves email in roomID and removes that person from
// orgID's allow-list.
func (r *Registry) RemoveAllowedUser(ctx context.Context, orgID, email, roomID string) (string, error) {
	id, err := r.dir.IDFromEmail(ctx, email, roomID)
	if err != nil {
		return "", lookupErr(err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.allowed[orgID]
	i := slices.Index(list, id)
	if i < 0 {
		return "", ErrNotAllowed
	}
	r.allowed[orgID] = slices.Delete(list, i, i+1)
	return id, nil
}

func unique(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

func lookupErr(err error) error {
	if errors.Is(err, directory.ErrNotMember) {
		return ErrUserNotFound
	}
	return err
}

// RemoveRoomFromOrg deletes the room's org mapping only.
func (r *Registry) RemoveRoomFromOrg(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.roomToOrg, roomID)
}

// Reinit unbinds roomID and discards its admin. It returns the org the
// room was bound to.
func (r *Registry) Reinit(roomID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	orgID := r.roomToOrg[roomID]
	delete(r.roomToOrg, roomID)
	delete(r.roomAdmin, roomID)
	return orgID
}

// ReleaseRoom handles the bot leaving roomID. The room is always unbound.
// With orphan release enabled the room admin is dropped, and the org's data
// too when no other room references it; orphaned reports that case.
func (r *Registry) ReleaseRoom(roomID string) (orgID string, orphaned bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	orgID = r.roomToOrg[roomID]
	delete(r.roomToOrg, roomID)
	if !r.releaseOrphans {
		return orgID, false
	}
	delete(r.roomAdmin, roomID)
	if orgID == "" {
		return "", false
	}
	for _, o := range r.roomToOrg {
		if o == orgID {
			return orgID, false
		}
	}
	delete(r.allowed, orgID)
	delete(r.emails, orgID)
	r.orgs = slices.DeleteFunc(r.orgs, func(o string) bool { return o == orgID })
	return orgID, true
}

// Binding returns the org and admin bound to roomID.
func (r *Registry) Binding(roomID string) (string, *admin.Admin, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	orgID, ok := r.roomToOrg[roomID]
	if !ok {
		return "", nil, false
	}
	a, ok := r.roomAdmin[roomID]
	if !ok {
		return "", nil, false
	}
	return orgID, a, true
}

// IsAllowed reports whether personID is on the allow-list of the org bound to roomID.
func (r *Registry) IsAllowed(roomID, personID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	orgID, ok := r.roomToOrg[roomID]
	if !ok {
		return false
	}
	return slices.Contains(r.allowed[orgID], personID)
}

// AllowedUsers returns a copy of orgID's allow-list.
func (r *Registry) AllowedUsers(orgID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.allowed[orgID])
}

// Email returns the cached email for personID in orgID.
func (r *Registry) Email(orgID, personID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.emails[orgID][personID]
}

// Load reads the store and restores it. See Restore.
func (r *Registry) Load(ctx context.Context) ([]string, error) {
	if r.store == nil {
		return nil, nil
	}
	st, err := r.store.Load()
	if err != nil {
		return nil, err
	}
	return r.Restore(ctx, st), nil
}

// Restore replaces the registry contents with st, rebuilding one admin per
// room. Rooms whose admin identity no longer resolves are unbound and
// returned so the caller can prompt re-initialization. Bot fields from st
// win over the configured ones when set.
func (r *Registry) Restore(ctx context.Context, st *State) []string {
	if st == nil {
		st = EmptyState()
	}
	st.fill()

	admins := make(map[string]*admin.Admin, len(st.RoomAdmin))
	var stale []string
	for room, rec := range st.RoomAdmin {
		a := r.newAdmin(ctx, rec.Token, rec.OrgID)
		if a.MyID() == "" {
			slog.Warn("Stored admin token no longer resolves", "room_id", room, "org_id", rec.OrgID)
			stale = append(stale, room)
			continue
		}
		admins[room] = a
	}
	slices.Sort(stale)

	r.mu.Lock()
	defer r.mu.Unlock()
	if st.BotName != "" {
		r.bot.Name = st.BotName
	}
	if st.BotToken != "" {
		r.bot.Token = st.BotToken
	}
	if st.BotEmail != "" {
		r.bot.Email = st.BotEmail
	}
	r.orgs = slices.Clone(st.Orgs)
	r.roomAdmin = admins
	r.roomToOrg = make(map[string]string, len(st.RoomToOrg))
	for room, org := range st.RoomToOrg {
		r.roomToOrg[room] = org
	}
	for _, room := range stale {
		delete(r.roomToOrg, room)
	}
	r.allowed = make(map[string][]string, len(st.OrgAllowedUsers))
	for org, ids := range st.OrgAllowedUsers {
		r.allowed[org] = unique(ids)
	}
	r.emails = make(map[string]map[string]string, len(st.OrgIDToEmail))
	for org, m := range st.OrgIDToEmail {
		cp := make(map[string]string, len(m))
		for k, v := range m {
			cp[k] = v
		}
		r.emails[org] = cp
	}
	slog.Info("Registry restored", "orgs", len(r.orgs), "rooms", len(r.roomToOrg), "stale_rooms", len(stale))
	return stale
}

// Snapshot copies the registry into its persisted form.
func (r *Registry) Snapshot() *State {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := EmptyState()
	st.BotName = r.bot.Name
	st.BotToken = r.bot.Token
	st.BotEmail = r.bot.Email
	st.Orgs = append(st.Orgs, r.orgs...)
	for room, a := range r.roomAdmin {
		st.RoomAdmin[room] = a.Record()
	}
	for room, org := range r.roomToOrg {
		st.RoomToOrg[room] = org
	}
	for org, ids := range r.allowed {
		st.OrgAllowedUsers[org] = slices.Clone(ids)
	}
	for org, m := range r.emails {
		cp := make(map[string]string, len(m))
		for k, v := range m {
			cp[k] = v
		}
		st.OrgIDToEmail[org] = cp
	}
	return st
}

// Flush writes the snapshot to the store. Mutations since the last Flush
// are lost on crash.
func (r *Registry) Flush() error {
	if r.store == nil {
		return nil
	}
	return r.store.Save(r.Snapshot())
}

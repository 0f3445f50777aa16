// Package admin holds the per-room credential used to act on an
// organization: token validation, workspace lookup and activation codes.
package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/KafClaw/boardbot/internal/webex"
)

// ErrInvalidToken is returned when the token fails validation against the org.
var ErrInvalidToken = errors.New("admin: access token invalid for organization")

// Admin is the entity making calls on an organization.
type Admin struct {
	mu    sync.RWMutex
	base  *webex.Client
	api   *webex.Client
	token string
	orgID string
	myID  string
}

// Record is the persisted form of an Admin.
type Record struct {
	Token string `json:"my_token"`
	OrgID string `json:"org_id"`
}

// New builds an Admin from a template client and resolves its identity.
// An unresolvable identity leaves MyID empty; it never fails construction.
func New(ctx context.Context, base *webex.Client, token, orgID string) *Admin {
	a := &Admin{base: base}
	a.mu.Lock()
	a.setTokenLocked(token)
	a.orgID = strings.TrimSpace(orgID)
	a.mu.Unlock()
	a.resolveIdentity(ctx)
	return a
}

func (a *Admin) setTokenLocked(token string) {
	a.token = strings.TrimSpace(token)
	a.api = a.base.WithToken(a.token)
	a.myID = ""
}

func (a *Admin) resolveIdentity(ctx context.Context) string {
	a.mu.RLock()
	api := a.api
	a.mu.RUnlock()

	id := ""
	if me, err := api.Me(ctx); err != nil {
		slog.Debug("Admin identity unresolved", "kind", webex.Kind(err), "error", err)
	} else {
		id = me.ID
	}
	a.mu.Lock()
	a.myID = id
	a.mu.Unlock()
	return id
}

// MyID is the person id behind the token, empty when the token is invalid.
func (a *Admin) MyID() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.myID
}

// OrgID returns the organization the Admin acts on.
func (a *Admin) OrgID() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.orgID
}

// Token returns the current access token.
func (a *Admin) Token() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.token
}

// Record returns the persisted form.
func (a *Admin) Record() Record {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return Record{Token: a.token, OrgID: a.orgID}
}

func (a *Admin) snapshot() (*webex.Client, string) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.api, a.orgID
}

// ValidateToken issues a lightweight workspace list scoped to the org.
func (a *Admin) ValidateToken(ctx context.Context) error {
	api, orgID := a.snapshot()
	if _, err := api.ListWorkspaces(ctx, orgID, ""); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return nil
}

// TokenIsValid reports whether the workspace list returned a well-formed collection.
func (a *Admin) TokenIsValid(ctx context.Context) bool {
	err := a.ValidateToken(ctx)
	if err != nil {
		slog.Debug("Admin token check failed", "org_id", a.OrgID(), "error", err)
	}
	return err == nil
}

// UpdateToken replaces the token and re-derives the identity.
func (a *Admin) UpdateToken(ctx context.Context, token string) error {
	a.mu.Lock()
	a.setTokenLocked(token)
	a.mu.Unlock()
	if a.resolveIdentity(ctx) == "" {
		return ErrInvalidToken
	}
	return nil
}

// Reconfigure switches token and organization together, then revalidates.
func (a *Admin) Reconfigure(ctx context.Context, token, orgID string) error {
	a.mu.Lock()
	a.setTokenLocked(token)
	a.orgID = strings.TrimSpace(orgID)
	a.mu.Unlock()
	a.resolveIdentity(ctx)
	return a.ValidateToken(ctx)
}

// FindOrCreateWorkspace returns the id of the workspace whose display name
// matches exactly, creating it when none exists. Concurrent callers may
// both create; no dedup is attempted.
func (a *Admin) FindOrCreateWorkspace(ctx context.Context, name string) (string, error) {
	api, orgID := a.snapshot()
	items, err := api.ListWorkspaces(ctx, orgID, name)
	if err != nil {
		return "", fmt.Errorf("list workspaces: %w", err)
	}
	id := ""
	for _, ws := range items {
		if ws.DisplayName == name {
			id = ws.ID
		}
	}
	if id != "" {
		slog.Debug("Workspace exists", "org_id", orgID, "workspace_id", id)
		return id, nil
	}
	ws, err := api.CreateWorkspace(ctx, orgID, name)
	if err != nil {
		return "", fmt.Errorf("create workspace: %w", err)
	}
	slog.Info("Workspace created", "org_id", orgID, "workspace_id", ws.ID)
	return ws.ID, nil
}

// ActivationCode revalidates the token, resolves or creates the workspace
// and requests an activation code for it. An invalid token fails before any
// workspace call.
func (a *Admin) ActivationCode(ctx context.Context, workspace, model string) (string, error) {
	if err := a.ValidateToken(ctx); err != nil {
		return "", err
	}
	wsID, err := a.FindOrCreateWorkspace(ctx, workspace)
	if err != nil {
		return "", err
	}
	api, orgID := a.snapshot()
	code, err := api.CreateActivationCode(ctx, orgID, wsID, model)
	if err != nil {
		return "", fmt.Errorf("create activation code: %w", err)
	}
	return code.Code, nil
}

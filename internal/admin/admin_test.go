package admin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KafClaw/boardbot/internal/webex/webextest"
)

func TestNewResolvesIdentity(t *testing.T) {
	api := webextest.New(t)
	api.GrantOrg("good", "O1", "P-admin")

	a := New(context.Background(), api.Client("bot"), "  good ", "O1")
	assert.Equal(t, "P-admin", a.MyID())
	assert.Equal(t, "good", a.Token())
	assert.Equal(t, Record{Token: "good", OrgID: "O1"}, a.Record())

	bad := New(context.Background(), api.Client("bot"), "nope", "O1")
	assert.Empty(t, bad.MyID())
}

func TestTokenIsValidScopedToOrg(t *testing.T) {
	api := webextest.New(t)
	api.GrantOrg("good", "O1", "P1")
	api.GrantOrg("other", "O2", "P2")
	ctx := context.Background()

	assert.True(t, New(ctx, api.Client(""), "good", "O1").TokenIsValid(ctx))
	assert.False(t, New(ctx, api.Client(""), "other", "O1").TokenIsValid(ctx))
	assert.False(t, New(ctx, api.Client(""), "unknown", "O1").TokenIsValid(ctx))
}

func TestActivationCodeFailsClosedBeforeWorkspaceCalls(t *testing.T) {
	api := webextest.New(t)
	api.GrantOrg("good", "O1", "P1")
	ctx := context.Background()

	a := New(ctx, api.Client(""), "expired", "O1")
	_, err := a.ActivationCode(ctx, "Room 4", "")
	require.ErrorIs(t, err, ErrInvalidToken)

	// Only the validation listing happened; nothing was created.
	assert.Equal(t, 1, api.CallCount("GET /workspaces"))
	assert.Zero(t, api.CallCount("POST /workspaces"))
	assert.Zero(t, api.CallCount("POST /devices/activationCode"))
}

func TestActivationCodeReusesExistingWorkspace(t *testing.T) {
	api := webextest.New(t)
	api.GrantOrg("good", "O1", "P1")
	api.Workspaces["O1"] = map[string]string{"Room 4": "W-existing"}
	ctx := context.Background()

	a := New(ctx, api.Client(""), "good", "O1")
	code, err := a.ActivationCode(ctx, "Room 4", "Board 55")
	require.NoError(t, err)
	assert.Equal(t, "1234567890123456", code)
	assert.Equal(t, "Board 55", api.ActivationModel)
	assert.Zero(t, api.CallCount("POST /workspaces"))
}

func TestFindOrCreateWorkspaceCreatesOnMiss(t *testing.T) {
	api := webextest.New(t)
	api.GrantOrg("good", "O1", "P1")
	ctx := context.Background()

	a := New(ctx, api.Client(""), "good", "O1")
	first, err := a.FindOrCreateWorkspace(ctx, "Lobby")
	require.NoError(t, err)
	assert.NotEmpty(t, first)

	second, err := a.FindOrCreateWorkspace(ctx, "Lobby")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, api.CallCount("POST /workspaces"))
}

func TestUpdateTokenRederivesIdentity(t *testing.T) {
	api := webextest.New(t)
	api.GrantOrg("old", "O1", "P-old")
	api.GrantOrg("new", "O1", "P-new")
	ctx := context.Background()

	a := New(ctx, api.Client(""), "old", "O1")
	require.Equal(t, "P-old", a.MyID())

	require.NoError(t, a.UpdateToken(ctx, "new"))
	assert.Equal(t, "P-new", a.MyID())
	assert.Equal(t, "new", a.Token())

	assert.ErrorIs(t, a.UpdateToken(ctx, "garbage"), ErrInvalidToken)
	assert.Empty(t, a.MyID())
	assert.Equal(t, "garbage", a.Token())
}

func TestReconfigureSwitchesOrg(t *testing.T) {
	api := webextest.New(t)
	api.GrantOrg("t1", "O1", "P1")
	api.GrantOrg("t2", "O2", "P2")
	ctx := context.Background()

	a := New(ctx, api.Client(""), "t1", "O1")
	require.NoError(t, a.Reconfigure(ctx, "t2", "O2"))
	assert.Equal(t, "O2", a.OrgID())
	assert.Equal(t, "P2", a.MyID())

	err := a.Reconfigure(ctx, "t1", "O2")
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.Equal(t, "P1", a.MyID())
}

package registry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KafClaw/boardbot/internal/admin"
	"github.com/KafClaw/boardbot/internal/directory"
	"github.com/KafClaw/boardbot/internal/webex"
	"github.com/KafClaw/boardbot/internal/webex/webextest"
)

type fixture struct {
	api *webextest.Server
	reg *Registry
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	api := webextest.New(t)
	api.People["bot-token"] = "P-bot"
	api.GrantOrg("T1", "O1", "P-admin1")
	api.GrantOrg("T2", "O2", "P-admin2")
	api.AddMember("R1", "U", "u@example.com")
	api.AddMember("R1", "A", "a@x.com")
	api.AddMember("R2", "U", "u@example.com")

	bot := api.Client("bot-token")
	reg := New(directory.New(bot), Admins(bot), opts...)
	return &fixture{api: api, reg: reg}
}

func TestInitOrgBindsRoomAndAllowsInitializer(t *testing.T) {
	f := newFixture(t)
	a, err := f.reg.InitOrg(context.Background(), "O1", "T1", "R1", "U")
	require.NoError(t, err)
	assert.Equal(t, "P-admin1", a.MyID())

	org, bound, ok := f.reg.Binding("R1")
	require.True(t, ok)
	assert.Equal(t, "O1", org)
	assert.Same(t, a, bound)
	assert.Equal(t, []string{"U"}, f.reg.AllowedUsers("O1"))
	assert.Equal(t, "u@example.com", f.reg.Email("O1", "U"))
	assert.True(t, f.reg.IsAllowed("R1", "U"))
	assert.False(t, f.reg.IsAllowed("R1", "A"))
}

func TestInitOrgRejectsInvalidToken(t *testing.T) {
	f := newFixture(t)
	_, err := f.reg.InitOrg(context.Background(), "O1", "T2", "R1", "U")
	require.ErrorIs(t, err, admin.ErrInvalidToken)
	assert.NotErrorIs(t, err, ErrReinitRequired)

	_, _, ok := f.reg.Binding("R1")
	assert.False(t, ok)
	assert.Empty(t, f.reg.Snapshot().Orgs)
}

func TestInitOrgRequiresCredentials(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.reg.InitOrg(ctx, "", "T1", "R1", "U")
	require.ErrorIs(t, err, ErrMissingCredentials)
	_, err = f.reg.InitOrg(ctx, " ", "T1", "R1", "U")
	require.ErrorIs(t, err, ErrMissingCredentials)
	_, err = f.reg.InitOrg(ctx, "O1", "  ", "R1", "U")
	require.ErrorIs(t, err, ErrMissingCredentials)

	_, _, ok := f.reg.Binding("R1")
	assert.False(t, ok)
	assert.Empty(t, f.reg.Snapshot().Orgs)
	assert.Zero(t, f.api.CallCount("GET /workspaces"))
}

func TestInitOrgTwiceIsIdempotentForInitializer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.reg.InitOrg(ctx, "O1", "T1", "R1", "U")
	require.NoError(t, err)
	_, err = f.reg.InitOrg(ctx, "O1", "T1", "R2", "U")
	require.NoError(t, err)

	assert.Equal(t, []string{"U"}, f.reg.AllowedUsers("O1"))
	assert.Equal(t, []string{"O1"}, f.reg.Snapshot().Orgs)
}

func TestRebindingRoomLeavesPreviousOrgUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.reg.InitOrg(ctx, "O1", "T1", "R1", "U")
	require.NoError(t, err)
	_, err = f.reg.AddAllowedUser(ctx, "O1", "R1", UserRef{Email: "a@x.com"})
	require.NoError(t, err)
	before := f.reg.AllowedUsers("O1")

	a, err := f.reg.InitOrg(ctx, "O2", "T2", "R1", "U")
	require.NoError(t, err)
	assert.Equal(t, "O2", a.OrgID())

	org, _, ok := f.reg.Binding("R1")
	require.True(t, ok)
	assert.Equal(t, "O2", org)
	assert.Equal(t, before, f.reg.AllowedUsers("O1"))
	assert.Equal(t, []string{"U"}, f.reg.AllowedUsers("O2"))
}

func TestInitOrgExistingAdminWithBadTokenRequiresReinit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.reg.InitOrg(ctx, "O1", "T1", "R1", "U")
	require.NoError(t, err)
	f.reg.RemoveRoomFromOrg("R1")

	_, err = f.reg.InitOrg(ctx, "O1", "expired", "R1", "U")
	assert.ErrorIs(t, err, ErrReinitRequired)
	_, _, ok := f.reg.Binding("R1")
	assert.False(t, ok)
}

func TestAddAllowedUserIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.reg.InitOrg(ctx, "O1", "T1", "R1", "U")
	require.NoError(t, err)

	for range 3 {
		id, err := f.reg.AddAllowedUser(ctx, "O1", "R1", UserRef{Email: "a@x.com"})
		require.NoError(t, err)
		assert.Equal(t, "A", id)
	}
	assert.Equal(t, []string{"U", "A"}, f.reg.AllowedUsers("O1"))
	assert.Equal(t, "a@x.com", f.reg.Email("O1", "A"))
}

func TestAddAllowedUserByIDResolvesEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.reg.InitOrg(ctx, "O1", "T1", "R1", "U")
	require.NoError(t, err)

	id, err := f.reg.AddAllowedUser(ctx, "O1", "R1", UserRef{ID: "A"})
	require.NoError(t, err)
	assert.Equal(t, "A", id)
	assert.Equal(t, "a@x.com", f.reg.Email("O1", "A"))
}

func TestAddAllowedUserErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.reg.InitOrg(ctx, "O1", "T1", "R1", "U")
	require.NoError(t, err)

	_, err = f.reg.AddAllowedUser(ctx, "O1", "R1", UserRef{})
	assert.ErrorIs(t, err, ErrMissingUser)

	_, err = f.reg.AddAllowedUser(ctx, "O1", "R1", UserRef{Email: "b@y.com"})
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = f.reg.AddAllowedUser(ctx, "O9", "R1", UserRef{Email: "a@x.com"})
	assert.ErrorIs(t, err, ErrUnknownOrg)
}

func TestRemoveThenAddRestoresMembership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.reg.InitOrg(ctx, "O1", "T1", "R1", "U")
	require.NoError(t, err)
	_, err = f.reg.AddAllowedUser(ctx, "O1", "R1", UserRef{Email: "a@x.com"})
	require.NoError(t, err)

	id, err := f.reg.RemoveAllowedUser(ctx, "O1", "a@x.com", "R1")
	require.NoError(t, err)
	assert.Equal(t, "A", id)
	assert.False(t, f.reg.IsAllowed("R1", "A"))

	_, err = f.reg.RemoveAllowedUser(ctx, "O1", "a@x.com", "R1")
	assert.ErrorIs(t, err, ErrNotAllowed)

	_, err = f.reg.AddAllowedUser(ctx, "O1", "R1", UserRef{Email: "a@x.com"})
	require.NoError(t, err)
	assert.True(t, f.reg.IsAllowed("R1", "A"))
}

func TestReinitUnbindsAndDiscardsAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.reg.InitOrg(ctx, "O1", "T1", "R1", "U")
	require.NoError(t, err)

	assert.Equal(t, "O1", f.reg.Reinit("R1"))
	_, _, ok := f.reg.Binding("R1")
	assert.False(t, ok)
	assert.Empty(t, f.reg.Snapshot().RoomAdmin)
	assert.Equal(t, []string{"U"}, f.reg.AllowedUsers("O1"))
}

func TestReleaseRoomRetainsOrgByDefault(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.reg.InitOrg(ctx, "O1", "T1", "R1", "U")
	require.NoError(t, err)

	org, orphaned := f.reg.ReleaseRoom("R1")
	assert.Equal(t, "O1", org)
	assert.False(t, orphaned)
	_, _, ok := f.reg.Binding("R1")
	assert.False(t, ok)
	assert.Equal(t, []string{"U"}, f.reg.AllowedUsers("O1"))
	assert.Contains(t, f.reg.Snapshot().RoomAdmin, "R1")
}

func TestReleaseRoomDropsOrphanedOrg(t *testing.T) {
	f := newFixture(t, WithReleaseOrphanedOrgs(true))
	ctx := context.Background()
	_, err := f.reg.InitOrg(ctx, "O1", "T1", "R1", "U")
	require.NoError(t, err)
	_, err = f.reg.InitOrg(ctx, "O1", "T1", "R2", "U")
	require.NoError(t, err)

	_, orphaned := f.reg.ReleaseRoom("R1")
	assert.False(t, orphaned)
	assert.NotEmpty(t, f.reg.AllowedUsers("O1"))

	_, orphaned = f.reg.ReleaseRoom("R2")
	assert.True(t, orphaned)
	st := f.reg.Snapshot()
	assert.Empty(t, st.Orgs)
	assert.Empty(t, st.RoomAdmin)
	assert.NotContains(t, st.OrgAllowedUsers, "O1")
	assert.NotContains(t, st.OrgIDToEmail, "O1")
}

func TestFlushAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "bot_data.json")
	store := FileStore{Path: path}
	f := newFixture(t, WithStore(store), WithBot(Bot{Name: "Boardbot", Token: "bot-token", Email: "bot@webex.bot"}))
	ctx := context.Background()
	_, err := f.reg.InitOrg(ctx, "O1", "T1", "R1", "U")
	require.NoError(t, err)
	_, err = f.reg.InitOrg(ctx, "O2", "T2", "R2", "U")
	require.NoError(t, err)
	require.NoError(t, f.reg.Flush())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	// T2 gets revoked before restart.
	f.api.Lock()
	delete(f.api.People, "T2")
	f.api.Unlock()

	bot := f.api.Client("bot-token")
	restored := New(directory.New(bot), Admins(bot), WithStore(store))
	stale, err := restored.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"R2"}, stale)

	org, _, ok := restored.Binding("R1")
	require.True(t, ok)
	assert.Equal(t, "O1", org)
	_, _, ok = restored.Binding("R2")
	assert.False(t, ok)
	assert.Equal(t, []string{"U"}, restored.AllowedUsers("O2"))
	assert.Equal(t, Bot{Name: "Boardbot", Token: "bot-token", Email: "bot@webex.bot"}, restored.Bot())
}

func TestFileStoreMissingFileIsEmpty(t *testing.T) {
	st, err := FileStore{Path: filepath.Join(t.TempDir(), "nope.json")}.Load()
	require.NoError(t, err)
	assert.NotNil(t, st.RoomToOrg)
	assert.NotNil(t, st.OrgAllowedUsers)
	assert.Empty(t, st.Orgs)
}

func TestFileStoreRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))
	_, err := FileStore{Path: path}.Load()
	assert.Error(t, err)
}

func TestKind(t *testing.T) {
	cases := map[string]error{
		"ok":                  nil,
		"not_member":          ErrUserNotFound,
		"not_allowed":         fmt.Errorf("remove: %w", ErrNotAllowed),
		"missing_user":        ErrMissingUser,
		"missing_credentials": ErrMissingCredentials,
		"unknown_org":         ErrUnknownOrg,
		"invalid_token":       admin.ErrInvalidToken,
		"unauthorized":        fmt.Errorf("%w: %w", admin.ErrInvalidToken, &webex.APIError{StatusCode: 401}),
		"transport":           errors.New("dial tcp: connection refused"),
	}
	for want, err := range cases {
		assert.Equal(t, want, Kind(err), "error %v", err)
	}
	assert.Equal(t, "not_member", Kind(directory.ErrNotMember))
}

func TestConcurrentMutationsKeepAllowListUnique(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.reg.InitOrg(ctx, "O1", "T1", "R1", "U")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(4)
		go func() {
			defer wg.Done()
			_, _ = f.reg.AddAllowedUser(ctx, "O1", "R1", UserRef{Email: "a@x.com"})
		}()
		go func() {
			defer wg.Done()
			_, _ = f.reg.AddAllowedUser(ctx, "O1", "R1", UserRef{ID: "A"})
		}()
		go func() {
			defer wg.Done()
			_, _ = f.reg.InitOrg(ctx, "O1", "T1", "R1", "U")
		}()
		go func() {
			defer wg.Done()
			_ = f.reg.IsAllowed("R1", "A")
			_ = f.reg.Snapshot()
		}()
	}
	wg.Wait()

	assert.ElementsMatch(t, []string{"U", "A"}, f.reg.AllowedUsers("O1"))
	assert.Equal(t, []string{"O1"}, f.reg.Snapshot().Orgs)
	org, _, ok := f.reg.Binding("R1")
	require.True(t, ok)
	assert.Equal(t, "O1", org)
}

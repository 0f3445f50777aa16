package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/KafClaw/boardbot/internal/registry"
	"github.com/KafClaw/boardbot/internal/timeline"
	"github.com/KafClaw/boardbot/internal/webex/webextest"
)

func runRootCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	_, err := rootCmd.ExecuteC()
	rootCmd.SetArgs(nil)
	return strings.TrimSpace(buf.String()), err
}

// setupEnv isolates HOME and points the CLI at a fake Webex API.
func setupEnv(t *testing.T) (*webextest.Server, string) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("BOARDBOT_HOME", "")
	t.Setenv("BOARDBOT_CONFIG", "")
	t.Setenv("BOARDBOT_ENV_FILE", filepath.Join(home, "none.env"))
	for _, k := range []string{"BOT_NAME", "BOT_EMAIL", "BOT_ID", "BOT_URL", "BOT_PORT", "BOARDBOT_GATEWAY_PUBLIC_URL"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(home); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	api := webextest.New(t)
	api.People["bot-token"] = "P-bot"
	t.Setenv("BOT_TOKEN", "bot-token")
	t.Setenv("BOARDBOT_WEBEX_BASE_URL", api.URL)
	t.Setenv("BOARDBOT_STATE_PATH", filepath.Join(home, "state", "bot_data.json"))
	t.Setenv("BOARDBOT_GATEWAY_HOST", "127.0.0.1")
	t.Setenv("BOARDBOT_GATEWAY_PORT", "0")

	t.Cleanup(func() {
		stateShowTokens = false
		provisionOrg, provisionToken, provisionWorkspace, provisionModel, provisionQR = "", "", "", "", false
		webhooksRegisterURL, webhooksDeleteAll = "", false
		eventsLimit, eventsRoom, eventsKind = 20, "", ""
		serveLogLevel, serveLogJSON = "info", false
	})
	return api, home
}

func writeState(t *testing.T, home string, st *registry.State) {
	t.Helper()
	if err := (registry.FileStore{Path: filepath.Join(home, "state", "bot_data.json")}).Save(st); err != nil {
		t.Fatalf("write state: %v", err)
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := runRootCommand(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, version) {
		t.Fatalf("expected version in output, got %q", out)
	}
}

func TestStatusCommand(t *testing.T) {
	setupEnv(t)
	out, err := runRootCommand(t, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	for _, want := range []string{"Boardbot Status", "Orgs:    0", "127.0.0.1:0"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in status output:\n%s", want, out)
		}
	}
}

func TestStateShowRedactsTokens(t *testing.T) {
	_, home := setupEnv(t)
	st := registry.EmptyState()
	st.BotToken = "stored-bot-token"
	st.Orgs = []string{"O1"}
	st.RoomToOrg["R1"] = "O1"
	st.RoomAdmin["R1"] = adminRecord("admin-token-9876", "O1")
	writeState(t, home, st)

	out, err := runRootCommand(t, "state", "show")
	if err != nil {
		t.Fatalf("state show: %v", err)
	}
	if strings.Contains(out, "admin-token-9876") || strings.Contains(out, "stored-bot-token") {
		t.Fatalf("tokens leaked:\n%s", out)
	}
	var got registry.State
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if got.RoomAdmin["R1"].Token != "****9876" || got.RoomToOrg["R1"] != "O1" {
		t.Fatalf("unexpected state %+v", got)
	}

	out, err = runRootCommand(t, "state", "show", "--show-tokens")
	if err != nil {
		t.Fatalf("state show --show-tokens: %v", err)
	}
	if !strings.Contains(out, "admin-token-9876") {
		t.Fatalf("expected full token:\n%s", out)
	}
}

func TestProvisionCommand(t *testing.T) {
	api, _ := setupEnv(t)
	api.GrantOrg("T1", "O1", "P-admin")

	out, err := runRootCommand(t, "provision", "--org", "O1", "--token", "T1", "--workspace", "Lobby", "--qr")
	if err != nil {
		t.Fatalf("provision: %v", err)
	}
	if !strings.Contains(out, "Activation code: 1234-5678-9012-3456") {
		t.Fatalf("unexpected output:\n%s", out)
	}
	if len(strings.Split(out, "\n")) < 5 {
		t.Fatalf("expected QR rows after the code:\n%s", out)
	}
	if api.CallCount("POST /workspaces") != 1 {
		t.Fatalf("expected workspace creation")
	}
}

func TestProvisionCommandRejectsWrongOrg(t *testing.T) {
	api, _ := setupEnv(t)
	api.GrantOrg("T1", "O1", "P-admin")

	if _, err := runRootCommand(t, "provision", "--org", "O2", "--token", "T1", "--workspace", "Lobby"); err == nil {
		t.Fatal("expected failure for token outside org")
	}
	if api.CallCount("POST /devices/activationCode") != 0 {
		t.Fatal("activation code requested with invalid token")
	}
}

func TestWebhooksRegisterListDelete(t *testing.T) {
	api, _ := setupEnv(t)

	if _, err := runRootCommand(t, "webhooks", "register"); err == nil {
		t.Fatal("expected error without public URL")
	}
	out, err := runRootCommand(t, "webhooks", "register", "--url", "https://bot.example.com")
	if err != nil {
		t.Fatalf("register: %v\n%s", err, out)
	}
	if n := len(api.Webhooks); n != 4 {
		t.Fatalf("expected 4 webhooks, got %d", n)
	}

	out, err = runRootCommand(t, "webhooks", "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "MentionWebhook") || !strings.Contains(out, "https://bot.example.com/removed") {
		t.Fatalf("unexpected list output:\n%s", out)
	}

	out, err = runRootCommand(t, "webhooks", "delete")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !strings.Contains(out, "Deleted 4 webhook(s)") || len(api.Webhooks) != 0 {
		t.Fatalf("unexpected delete result:\n%s", out)
	}
}

func TestEventsCommand(t *testing.T) {
	_, home := setupEnv(t)
	path := filepath.Join(home, "timeline.db")
	t.Setenv("BOARDBOT_TIMELINE_PATH", path)

	if _, err := runRootCommand(t, "events"); err == nil {
		t.Fatal("expected error without journal")
	}

	tl, err := timeline.NewTimelineService(path)
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if err := tl.AddEvent(&timeline.TimelineEvent{Kind: "code.issued", RoomID: "R1", OrgID: "O1", Outcome: "event"}); err != nil {
		t.Fatalf("add event: %v", err)
	}
	tl.Close()

	out, err := runRootCommand(t, "events", "--limit", "5")
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if !strings.Contains(out, "code.issued") || !strings.Contains(out, "O1") {
		t.Fatalf("unexpected events output:\n%s", out)
	}
}

func TestServeFailsFastWithoutBotIdentity(t *testing.T) {
	setupEnv(t)
	t.Setenv("BOT_TOKEN", "unknown-token")

	_, err := runRootCommand(t, "serve", "--log-level", "error")
	if err == nil || !strings.Contains(err.Error(), "resolve bot identity") {
		t.Fatalf("expected identity failure, got %v", err)
	}
}

func TestServeBootAndShutdown(t *testing.T) {
	api, home := setupEnv(t)
	stubServeSignals(t)

	st := registry.EmptyState()
	st.Orgs = []string{"O9"}
	st.RoomToOrg["R2"] = "O9"
	st.RoomAdmin["R2"] = adminRecord("expired-token", "O9")
	writeState(t, home, st)

	listening := make(chan string, 1)
	origListening := serveListening
	serveListening = func(addr string) { listening <- addr }
	t.Cleanup(func() { serveListening = origListening })

	done := make(chan error, 1)
	go func() {
		_, err := runRootCommand(t, "serve", "--log-level", "error")
		done <- err
	}()

	var addr string
	select {
	case addr = <-listening:
	case err := <-done:
		t.Fatalf("serve exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for gateway")
	}

	resp, err := http.Post("http://"+addr+"/added", "application/json",
		strings.NewReader(`{"data":{"id":"X","roomId":"R1","personId":"P-bot"}}`))
	if err != nil {
		t.Fatalf("post /added: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}

	sendServeSignal(t, syscall.SIGTERM)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("timed out waiting for shutdown")
	}

	if texts := api.SentTexts("R2"); len(texts) != 2 || texts[1] != "Please initialize" {
		t.Fatalf("expected re-init prompt for stale room, got %q", texts)
	}
	if texts := api.SentTexts("R1"); len(texts) != 2 || !strings.HasPrefix(texts[0], "Hello!") {
		t.Fatalf("expected welcome in R1, got %q", texts)
	}

	saved, err := registry.FileStore{Path: filepath.Join(home, "state", "bot_data.json")}.Load()
	if err != nil {
		t.Fatalf("load saved state: %v", err)
	}
	if _, ok := saved.RoomToOrg["R2"]; ok {
		t.Fatal("stale room still bound after shutdown")
	}
	if saved.BotToken != "bot-token" {
		t.Fatalf("bot token not persisted: %q", saved.BotToken)
	}
}

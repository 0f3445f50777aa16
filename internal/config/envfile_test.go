package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEnvFileRespectsExistingValues(t *testing.T) {
	tmp := t.TempDir()
	envPath := filepath.Join(tmp, "env")
	content := `
# comment
export FOO=bar
QUOTED="hello world"
SINGLE='x y'
`
	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	t.Setenv("FOO", "existing")
	t.Setenv("QUOTED", "")
	os.Unsetenv("QUOTED")
	t.Setenv("SINGLE", "")
	os.Unsetenv("SINGLE")

	if err := loadEnvFile(envPath); err != nil {
		t.Fatalf("load env file: %v", err)
	}
	if got := os.Getenv("FOO"); got != "existing" {
		t.Fatalf("expected existing FOO preserved, got %q", got)
	}
	if got := os.Getenv("QUOTED"); got != "hello world" {
		t.Fatalf("expected QUOTED loaded, got %q", got)
	}
	if got := os.Getenv("SINGLE"); got != "x y" {
		t.Fatalf("expected SINGLE loaded, got %q", got)
	}
}

func TestLoadEnvFileMissing(t *testing.T) {
	if err := loadEnvFile(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadUsesEnvFileCandidateForGatewayPort(t *testing.T) {
	home := isolateHome(t)
	envDir := filepath.Join(home, ".config", "boardbot")
	if err := os.MkdirAll(envDir, 0o755); err != nil {
		t.Fatalf("mkdir env dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(envDir, "env"), []byte("BOARDBOT_GATEWAY_PORT=19999\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Gateway.Port != 19999 {
		t.Fatalf("expected gateway port from env file, got %d", cfg.Gateway.Port)
	}
}

func TestLoadEnvFileCandidatesFromExplicitPath(t *testing.T) {
	isolateHome(t)
	envPath := filepath.Join(t.TempDir(), "boardbot.env")
	if err := os.WriteFile(envPath, []byte("EXPLICIT_KEY=42\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("BOARDBOT_ENV_FILE", envPath)
	t.Setenv("EXPLICIT_KEY", "")
	os.Unsetenv("EXPLICIT_KEY")

	LoadEnvFileCandidates()
	if got := os.Getenv("EXPLICIT_KEY"); got != "42" {
		t.Fatalf("expected explicit env file loaded, got %q", got)
	}
}

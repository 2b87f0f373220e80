package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Git.HardBlocked) == 0 || cfg.Git.HardBlocked[0] != "push --force" {
		t.Errorf("defaults not applied: git.hard_blocked = %v", cfg.Git.HardBlocked)
	}
	if !cfg.Download.BlockPipeToShell {
		t.Error("defaults not applied: download.block_pipe_to_shell should be true")
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
git:
  hard_blocked: ["push --force", "push --mirror"]
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Git.HardBlocked) != 2 {
		t.Errorf("git.hard_blocked = %v, want 2 entries", cfg.Git.HardBlocked)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("logging.level = %q, want debug", cfg.Logging.Level)
	}
	// Untouched sections keep their defaults.
	if len(cfg.Secrets.ForbiddenRead) == 0 {
		t.Error("secrets.forbidden_read defaults lost")
	}
}

func TestLoadUnknownFieldFallsBackLenient(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
gitt:
  hard_blocked: ["x"]
logging:
  level: warn
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load should tolerate unknown fields: %v", err)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("known fields should survive lenient re-parse, got level %q", cfg.Logging.Level)
	}
}

func TestLoadEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Git.HardBlocked) == 0 {
		t.Error("empty file should yield defaults")
	}
}

func TestCompileDefaults(t *testing.T) {
	cc, err := DefaultConfig().Compile()
	if err != nil {
		t.Fatalf("default config must compile: %v", err)
	}
	if !cc.ForbiddenRead.Match("/p/.env") {
		t.Error("forbidden_read should match .env")
	}
	if cc.ForbiddenRead.Match("/p/.env.example") {
		t.Error("forbidden_read should not match .env.example")
	}
	if !cc.ProtectedPaths.Match(".git/config") {
		t.Error("protected_paths should match .git/config")
	}
	if len(cc.Content.Network) == 0 || len(cc.Content.DynamicExecution) == 0 {
		t.Error("content regex lists missing")
	}
}

func TestCompileReportsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Content.Network = []string{"(unclosed"}
	cfg.Content.SecretScanning = []string{"[bad"}
	_, err := cfg.Compile()
	if err == nil {
		t.Fatal("expected compile error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "content.network") || !strings.Contains(msg, "content.secret_scanning") {
		t.Errorf("error should name every broken pattern list, got: %v", msg)
	}
}

func TestEnvOverridesApply(t *testing.T) {
	cfg := DefaultConfig()
	env := &EnvOverrides{
		ProjectDir: "/srv/project",
		LogLevel:   "error",
		AuditKey:   "hunter2",
	}
	env.Apply(cfg)
	if cfg.Boundary.ProjectRoot != "/srv/project" {
		t.Errorf("project root = %q", cfg.Boundary.ProjectRoot)
	}
	if cfg.Logging.Level != "error" {
		t.Errorf("log level = %q", cfg.Logging.Level)
	}
	if cfg.Audit.EncryptionKey != "hunter2" {
		t.Errorf("audit key not applied")
	}
	// Empty fields leave defaults alone.
	if cfg.Audit.DBPath == "" {
		t.Error("audit db path default lost")
	}
}

func TestResolveProjectRootPrefersConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Boundary.ProjectRoot = dir
	got := ResolveProjectRoot(cfg)
	if got != dir {
		t.Errorf("ResolveProjectRoot = %q, want %q", got, dir)
	}
}

func TestResolveProjectRootFromHostEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CLAUDE_PROJECT_DIR", dir)
	got := ResolveProjectRoot(DefaultConfig())
	if got != dir {
		t.Errorf("ResolveProjectRoot = %q, want %q", got, dir)
	}
}

func TestInCI(t *testing.T) {
	for _, v := range ciEnvVars {
		t.Setenv(v, "")
	}
	if InCI() {
		t.Error("InCI should be false with all CI vars empty")
	}
	t.Setenv("GITHUB_ACTIONS", "true")
	if !InCI() {
		t.Error("InCI should be true with GITHUB_ACTIONS set")
	}
}

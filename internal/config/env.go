package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
)

// EnvOverrides are settings taken from the environment. The audit
// encryption key is accepted only this way so it never appears on a
// command line or in a config file checked into a repository.
type EnvOverrides struct {
	ProjectDir string `envconfig:"PROJECT_DIR"`
	ConfigPath string `envconfig:"CONFIG"`
	LogLevel   string `envconfig:"LOG_LEVEL"`
	LogFile    string `envconfig:"LOG_FILE"`
	AuditKey   string `envconfig:"AUDIT_KEY"`
	AuditPath  string `envconfig:"AUDIT_DB"`
	SocketPath string `envconfig:"SOCKET"`
}

// LoadEnvOverrides reads GUARDIAN_* environment variables.
func LoadEnvOverrides() (*EnvOverrides, error) {
	var env EnvOverrides
	if err := envconfig.Process("guardian", &env); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}
	return &env, nil
}

// Apply overlays the environment values onto cfg. Empty values leave the
// config untouched.
func (e *EnvOverrides) Apply(cfg *Config) {
	if e.ProjectDir != "" {
		cfg.Boundary.ProjectRoot = ExpandPath(e.ProjectDir)
	}
	if e.LogLevel != "" {
		cfg.Logging.Level = e.LogLevel
	}
	if e.LogFile != "" {
		cfg.Logging.File = ExpandPath(e.LogFile)
	}
	if e.AuditKey != "" {
		cfg.Audit.EncryptionKey = e.AuditKey
	}
	if e.AuditPath != "" {
		cfg.Audit.DBPath = ExpandPath(e.AuditPath)
	}
	if e.SocketPath != "" {
		cfg.Server.SocketPath = ExpandPath(e.SocketPath)
	}
}

// hostProjectDirVars are set by agent hosts to point at the active project.
var hostProjectDirVars = []string{"CLAUDE_PROJECT_DIR", "GUARDIAN_PROJECT_DIR"}

// ResolveProjectRoot returns the project root: the configured one if set,
// else a host env var, else the nearest .git ancestor of the working
// directory, else the working directory itself.
func ResolveProjectRoot(cfg *Config) string {
	if cfg.Boundary.ProjectRoot != "" {
		if abs, err := filepath.Abs(cfg.Boundary.ProjectRoot); err == nil {
			return abs
		}
		return cfg.Boundary.ProjectRoot
	}

	for _, v := range hostProjectDirVars {
		if root := os.Getenv(v); root != "" {
			if abs, err := filepath.Abs(root); err == nil {
				return abs
			}
			return root
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	current := cwd
	for {
		if _, err := os.Stat(filepath.Join(current, ".git")); err == nil {
			return current
		}
		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}
	return cwd
}

// ciEnvVars mark a CI environment, where destructive-but-routine git
// operations (clean, hard reset) run unattended.
var ciEnvVars = []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "CIRCLECI", "TRAVIS"}

// InCI reports whether the process runs under a known CI system.
func InCI() bool {
	for _, v := range ciEnvVars {
		if os.Getenv(v) != "" {
			return true
		}
	}
	return false
}

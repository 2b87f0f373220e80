// Package config defines the gate policy schema, its built-in defaults,
// and loading from YAML with environment overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/maxkoreaexport/polyakov-claude-skills/internal/logger"
)

var cfgLog = logger.New("config")

// Config is the full gate policy. All pattern lists are raw strings here;
// Compile() turns them into matchers and is where bad patterns surface.
type Config struct {
	Boundary BoundaryConfig `yaml:"boundary"`
	Git      GitConfig      `yaml:"git"`
	Bypass   BypassConfig   `yaml:"bypass"`
	Download DownloadConfig `yaml:"download"`
	Unpack   UnpackConfig   `yaml:"unpack"`
	Deletion DeletionConfig `yaml:"deletion"`
	Secrets  SecretsConfig  `yaml:"secrets"`
	Content  ContentConfig  `yaml:"content"`
	Audit    AuditConfig    `yaml:"audit"`
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// BoundaryConfig holds the project boundary roots.
type BoundaryConfig struct {
	// ProjectRoot anchors containment checks. Empty means discover it
	// (env override, then nearest .git ancestor of the working directory).
	ProjectRoot string `yaml:"project_root"`
	// AllowedPaths are extra roots treated as inside the boundary.
	AllowedPaths []string `yaml:"allowed_paths"`
}

// GitConfig holds git operation policy. Entries are subcommand-plus-flags
// phrases matched against the expanded argument list, e.g. "push --force".
type GitConfig struct {
	HardBlocked     []string `yaml:"hard_blocked"`
	ConfirmRequired []string `yaml:"confirm_required"`
	// Allowed beats both lists above ("push --force-with-lease").
	Allowed []string `yaml:"allowed"`
	// CIAutoAllow entries skip confirmation when a CI env var is set.
	CIAutoAllow []string `yaml:"ci_auto_allow"`
}

// BypassConfig holds bypass prevention policy.
type BypassConfig struct {
	HardBlocked            []string `yaml:"hard_blocked"`
	BlockedOutsideProject  []string `yaml:"blocked_outside_project"`
	BlockVariableAsCommand bool     `yaml:"block_variable_as_command"`
	ShellPipeTargets       []string `yaml:"shell_pipe_targets"`
	ShellExecPatterns      []string `yaml:"shell_exec_patterns"`
	InterpreterInline      []string `yaml:"interpreter_inline"`
	NetworkPatterns        []string `yaml:"network_patterns"`
	ObfuscationPatterns    []string `yaml:"obfuscation_patterns"`
	RCEPatterns            []string `yaml:"rce_patterns"`
}

// DownloadConfig classifies download targets by extension.
type DownloadConfig struct {
	ConfirmExtensions []string `yaml:"confirm_extensions"`
	ArchiveExtensions []string `yaml:"archive_extensions"`
	DataExtensions    []string `yaml:"data_extensions"`
	BlockPipeToShell  bool     `yaml:"block_pipe_to_shell"`
	DetectBinaryMagic bool     `yaml:"detect_binary_magic"`
}

// UnpackConfig holds archive extraction policy.
type UnpackConfig struct {
	CheckExtractTargets bool     `yaml:"check_extract_targets"`
	BlockedPatterns     []string `yaml:"blocked_patterns"`
}

// DeletionConfig holds deletion policy.
type DeletionConfig struct {
	// ProtectedPaths are globs that must not be deleted or modified.
	ProtectedPaths []string `yaml:"protected_paths"`
	// DisposableDirs may be recursively removed without confirmation
	// when inside the boundary.
	DisposableDirs []string `yaml:"disposable_dirs"`
}

// CodePattern is a named dangerous code idiom.
type CodePattern struct {
	Pattern     string `yaml:"pattern"`
	Description string `yaml:"description"`
}

// SecretsConfig holds sensitive file and secret env var policy.
type SecretsConfig struct {
	// ForbiddenRead are globs of files whose content must not be read.
	// "!"-prefixed entries are exceptions and beat the block patterns.
	ForbiddenRead []string      `yaml:"forbidden_read"`
	CodePatterns  []CodePattern `yaml:"code_patterns"`
	SecretEnvVars []string      `yaml:"secret_env_vars"`
}

// ContentConfig holds the risk signal regex lists for script content scans.
type ContentConfig struct {
	Network          []string `yaml:"network"`
	SensitiveAccess  []string `yaml:"sensitive_access"`
	SecretScanning   []string `yaml:"secret_scanning"`
	SystemRecon      []string `yaml:"system_recon"`
	DynamicExecution []string `yaml:"dynamic_execution"`
	ShellExecution   []string `yaml:"shell_execution"`
}

// AuditConfig holds the decision log settings.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	DBPath  string `yaml:"db_path"`
	// EncryptionKey enables SQLCipher encryption (empty = plain SQLite).
	// Normally supplied via GUARDIAN_AUDIT_KEY, not the config file.
	EncryptionKey string `yaml:"encryption_key"`
	// RetentionDays prunes old records on startup, 0 = keep forever.
	RetentionDays int `yaml:"retention_days"`
	// RecordAllowed also logs ALLOW decisions, not only ASK/DENY.
	RecordAllowed bool `yaml:"record_allowed"`
}

// ServerConfig holds serve-mode settings.
type ServerConfig struct {
	// SocketPath is the Unix socket path (or named pipe on Windows).
	// Auto-derived under the state dir if empty.
	SocketPath string `yaml:"socket_path"`
	// Watch reloads the gate when the config file changes.
	Watch bool `yaml:"watch"`
}

// LoggingConfig holds diagnostic log settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	NoColor bool   `yaml:"no_color"`
	// File redirects diagnostics away from stderr. The hook protocol owns
	// stdout, so this is the only way to keep logs in hook mode.
	File string `yaml:"file"`
}

// DefaultConfigPath returns ~/.guardian/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".guardian", "config.yaml")
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./guardian.db"
	}
	return filepath.Join(home, ".guardian", "guardian.db")
}

// DefaultConfig returns the built-in policy.
func DefaultConfig() *Config {
	return &Config{
		Boundary: BoundaryConfig{
			AllowedPaths: []string{},
		},
		Git: GitConfig{
			HardBlocked:     []string{"push --force"},
			ConfirmRequired: []string{"push -f", "reset --hard", "branch -D", "clean -fd", "reflog expire"},
			Allowed:         []string{"push --force-with-lease", "clean -fd --dry-run", "clean -fdn"},
			CIAutoAllow:     []string{"clean -fd", "reset --hard"},
		},
		Bypass: BypassConfig{
			HardBlocked:            []string{"eval"},
			BlockedOutsideProject:  []string{"base64 -d", "xxd -r"},
			BlockVariableAsCommand: true,
			ShellPipeTargets:       []string{"sh", "bash", "zsh", "fish"},
			ShellExecPatterns: []string{
				"sh -c", "bash -c", "zsh -c", "dash -c", "ksh -c", "ash -c",
				"busybox sh", "env -i bash", "env -i sh",
			},
			InterpreterInline: []string{"python -c", "python3 -c", "perl -e", "node -e", "ruby -e"},
			NetworkPatterns: []string{
				"import requests", "import urllib", "import http.client", "import socket",
				"import httpx", "import aiohttp", "require('http')", "fetch(",
			},
			ObfuscationPatterns: []string{"importlib.import_module", "__import__"},
			RCEPatterns:         []string{"exec(base64", "exec(bytes.fromhex", "eval(base64"},
		},
		Download: DownloadConfig{
			ConfirmExtensions: []string{
				".exe", ".app", ".dmg", ".pkg", ".deb", ".bin", ".msi",
			},
			ArchiveExtensions: []string{".tar.gz", ".tgz", ".zip", ".rar", ".7z", ".tar.bz2", ".tar.xz"},
			DataExtensions:    []string{".json", ".yaml", ".yml", ".txt", ".csv", ".md", ".xml", ".html"},
			BlockPipeToShell:  true,
			DetectBinaryMagic: true,
		},
		Unpack: UnpackConfig{
			CheckExtractTargets: true,
			BlockedPatterns: []string{
				"bsdtar -s",
			},
		},
		Deletion: DeletionConfig{
			ProtectedPaths: []string{
				".git/**",
				".claude/settings.json",
				".claude/settings.local.json",
				".guardian/**",
			},
			DisposableDirs: []string{
				"node_modules", "dist", "build", "target", "__pycache__",
				".pytest_cache", ".mypy_cache", ".ruff_cache", ".venv", "venv",
				".next", ".turbo", "coverage",
			},
		},
		Secrets: SecretsConfig{
			ForbiddenRead: []string{
				"**/.env", "**/.env.*", "!**/.env.example", "!**/.env.template",
				"**/secrets.yaml", "**/credentials.json",
				"**/*.pem", "**/*.key",
				"**/id_rsa*", "**/id_ed25519*",
			},
			CodePatterns: []CodePattern{
				{Pattern: `open\(['"].*\.env`, Description: "Reading .env file"},
				{Pattern: `open\(['"].*\.pem`, Description: "Reading private key"},
				{Pattern: `load_dotenv\(`, Description: "Loading .env via dotenv"},
				{Pattern: `\.aws/credentials`, Description: "AWS credentials access"},
				{Pattern: `\.netrc`, Description: "Netrc file access"},
				{Pattern: `\.npmrc`, Description: "NPM config access"},
				{Pattern: `\.pypirc`, Description: "PyPI config access"},
			},
			SecretEnvVars: []string{
				"API_KEY", "SECRET_KEY", "DATABASE_URL",
				"AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY",
				"GITHUB_TOKEN", "OPENAI_API_KEY", "ANTHROPIC_API_KEY",
				"STRIPE_SECRET_KEY", "PRIVATE_KEY", "PASSWORD", "DB_PASSWORD",
			},
		},
		Content: ContentConfig{
			Network: []string{
				`import\s+(requests|urllib|httpx|aiohttp)`, `from\s+(requests|urllib|httpx)\s`,
				`requests\.(get|post|put|patch|delete)\(`, `https?://`,
				`socket\.`, `urlopen\(`, `curl\s`, `wget\s`,
			},
			SensitiveAccess: []string{
				`\.env`, `/etc/passwd`, `~/.ssh`, `\.aws/credentials`,
				`\.netrc`, `\.npmrc`, `\.pypirc`,
			},
			SecretScanning: []string{
				`grep.*password`, `grep.*secret`, `grep.*token`, `grep.*api.key`,
				`find.*\.env`, `find.*\.ssh`, `find.*\.aws`,
				`glob\(.*\.env`, `os\.walk.*password`, `re\.search.*password`, `re\.findall.*secret`,
			},
			SystemRecon: []string{
				`os\.environ`, `getpass\.getuser`, `socket\.gethostname`, `platform\.`,
				`subprocess.*whoami`, `subprocess.*id\s`, `subprocess.*uname`,
			},
			DynamicExecution: []string{
				`exec\(`, `eval\(`, `compile\(`, `__import__\(`,
				`importlib\.import_module`, `subprocess\..*shell=True`,
			},
			ShellExecution: []string{`subprocess\.`, `os\.system\(`, `os\.popen\(`},
		},
		Audit: AuditConfig{
			Enabled:       true,
			DBPath:        defaultDBPath(),
			RetentionDays: 30,
			RecordAllowed: false,
		},
		Server: ServerConfig{
			Watch: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// isUnknownFieldError returns true if the error is from yaml.Decoder.KnownFields(true)
// detecting an unrecognized key (e.g. typo like "bounary:").
func isUnknownFieldError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "not found in type")
}

// Load loads a config file over the defaults. A missing file is not an
// error; the built-in policy applies. Unknown fields warn and re-parse
// leniently for forward compatibility.
//
// Load does NOT compile patterns. Callers apply env overrides first, then
// call Compile(), which is where a broken pattern becomes a startup error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	// io.EOF means an empty document; the defaults stand.
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		if isUnknownFieldError(err) {
			cfgLog.Warn("config has unknown fields (ignored): %v", err)
			cfg = DefaultConfig()
			if err2 := yaml.Unmarshal(data, cfg); err2 != nil {
				return nil, fmt.Errorf("config parse error: %w", err2)
			}
		} else {
			return nil, fmt.Errorf("config parse error: %w", err)
		}
	}

	expandEnvPaths(cfg)
	return cfg, nil
}

func expandEnvPaths(cfg *Config) {
	cfg.Boundary.ProjectRoot = ExpandPath(cfg.Boundary.ProjectRoot)
	for i := range cfg.Boundary.AllowedPaths {
		cfg.Boundary.AllowedPaths[i] = ExpandPath(cfg.Boundary.AllowedPaths[i])
	}
	cfg.Audit.DBPath = ExpandPath(cfg.Audit.DBPath)
	cfg.Server.SocketPath = ExpandPath(cfg.Server.SocketPath)
	cfg.Logging.File = ExpandPath(cfg.Logging.File)
}

// ExpandPath expands a leading ~ and environment variables in a path.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			path = home
		}
	}
	return os.ExpandEnv(path)
}

package checks

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/maxkoreaexport/polyakov-claude-skills/internal/boundary"
	"github.com/maxkoreaexport/polyakov-claude-skills/internal/config"
	"github.com/maxkoreaexport/polyakov-claude-skills/internal/shell"
)

// SecretsCheck denies access to secret-bearing files inside the project:
// reading them, writing to them, and modifying protected paths. Files
// outside the boundary are the directory check's concern.
type SecretsCheck struct {
	cfg *config.Compiled
	b   *boundary.Boundary
}

// fileArgCommands take file paths as positional arguments, so even bare
// names like "id_rsa" get checked.
var fileArgCommands = map[string]bool{
	"cat": true, "less": true, "more": true, "head": true, "tail": true,
	"mv": true, "cp": true, "rm": true, "chmod": true, "chown": true,
	"chgrp": true, "touch": true, "stat": true, "file": true,
	"ln": true, "readlink": true, "realpath": true,
	"source": true, "open": true, "xdg-open": true,
	"nano": true, "vim": true, "vi": true, "code": true,
}

// writeCommands modify their file arguments.
var writeCommands = map[string]bool{
	"tee": true, "touch": true, "cp": true, "mv": true, "rm": true,
	"sed": true, "truncate": true, "write": true, "edit": true,
}

// NewSecretsCheck creates a SecretsCheck.
func NewSecretsCheck(cc *config.Compiled, b *boundary.Boundary) *SecretsCheck {
	return &SecretsCheck{cfg: cc, b: b}
}

func (c *SecretsCheck) Name() string { return "secrets" }

// Evaluate checks the paths of every sub-command, plus redirect targets:
// "echo secret > .env" writes a secrets file without naming a path arg.
func (c *SecretsCheck) Evaluate(req *Request) CheckResult {
	for _, cmd := range req.Commands {
		for _, redir := range cmd.RedirPaths {
			if res := c.CheckPath(redir, "write"); !res.Allowed() {
				return res
			}
		}

		paths := shell.PathArgs(cmd)
		skipFirst := patternFirstArgCommands[cmd.Name]
		for _, p := range paths {
			if skipFirst && len(cmd.Args) > 0 && p == shell.FirstNonFlag(cmd.Args) {
				skipFirst = false
				continue
			}
			if res := c.CheckPath(p, cmd.Name); !res.Allowed() {
				return res
			}
		}

		// Bare filenames the extractor's path heuristic passed over.
		if fileArgCommands[cmd.Name] {
			for _, arg := range shell.NonFlagArgs(cmd.Args) {
				if strings.ContainsAny(arg, "/.~") {
					continue
				}
				if res := c.CheckPath(arg, cmd.Name); !res.Allowed() {
					return res
				}
			}
		}
	}
	return allowed()
}

// CheckPath checks one path against the secret and protected patterns.
// The operation decides whether write rules apply.
func (c *SecretsCheck) CheckPath(path, operation string) CheckResult {
	rel, ok := c.relToRoot(path)
	if !ok {
		// Outside the project: the directory check owns that verdict.
		return allowed()
	}

	if isWriteOperation(operation) {
		if c.cfg.ProtectedPaths.Match(rel) {
			return deny(c.Name(),
				fmt.Sprintf("Cannot modify protected file: %s", path),
				fmt.Sprintf("File %s is protected and must not be modified.", path))
		}
		if c.matchesSecret(rel) {
			return deny(c.Name(),
				fmt.Sprintf("Cannot write to secrets file: %s", path),
				fmt.Sprintf("File %s is a secrets file. Writing to it is blocked.", path))
		}
		return allowed()
	}

	if c.matchesSecret(rel) {
		return deny(c.Name(),
			fmt.Sprintf("Cannot read secrets file: %s", path),
			c.secretsGuidance(path, rel))
	}
	return allowed()
}

func isWriteOperation(operation string) bool {
	return writeCommands[strings.ToLower(operation)]
}

// matchesSecret matches both the project-relative path and the bare
// filename, so "**/.env" catches ".env" named at the project root.
func (c *SecretsCheck) matchesSecret(rel string) bool {
	if c.cfg.ForbiddenRead.Match(rel) {
		return true
	}
	return c.cfg.ForbiddenRead.Match(filepath.Base(rel))
}

func (c *SecretsCheck) relToRoot(path string) (string, bool) {
	p := norm(path)
	if !filepath.IsAbs(p) {
		p = filepath.Join(c.b.Root(), p)
	}
	rel, err := filepath.Rel(c.b.Root(), filepath.Clean(p))
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func norm(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			if path == "~" {
				return home
			}
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

// secretsGuidance points at the .env.example when one exists, so the
// agent can learn the structure without the values.
func (c *SecretsCheck) secretsGuidance(path, rel string) string {
	if strings.Contains(rel, ".env") {
		examplePath := strings.Replace(rel, ".env", ".env.example", 1)
		if _, err := os.Stat(filepath.Join(c.b.Root(), examplePath)); err == nil {
			return fmt.Sprintf("Cannot read %s (secrets file). Read %s for the structure, then ask the user for values.",
				path, examplePath)
		}
		return fmt.Sprintf("Cannot read %s (secrets file). Ask the user which environment variables are needed.", path)
	}
	return fmt.Sprintf("Cannot read %s (protected file). Ask the user for the needed information.", path)
}

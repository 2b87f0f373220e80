// Package handlers maps tool invocations onto the policy gate: one
// handler per tool category, each producing a single decision.
package handlers

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/maxkoreaexport/polyakov-claude-skills/internal/boundary"
	"github.com/maxkoreaexport/polyakov-claude-skills/internal/checks"
	"github.com/maxkoreaexport/polyakov-claude-skills/internal/config"
	"github.com/maxkoreaexport/polyakov-claude-skills/internal/logger"
	"github.com/maxkoreaexport/polyakov-claude-skills/internal/shell"
)

var log = logger.New("handlers")

// Gate evaluates tool invocations. It is immutable after construction;
// serve mode swaps in a fresh Gate on config reload instead of mutating
// this one.
type Gate struct {
	cfg      *config.Compiled
	b        *boundary.Boundary
	chain    *checks.Chain
	secrets  *checks.SecretsCheck
	analyzer *checks.Analyzer
}

// New builds a Gate from compiled config and a project boundary.
func New(cc *config.Compiled, b *boundary.Boundary) *Gate {
	return &Gate{
		cfg:      cc,
		b:        b,
		chain:    checks.NewCommandChain(cc, b),
		secrets:  checks.NewSecretsCheck(cc, b),
		analyzer: checks.NewAnalyzer(cc),
	}
}

// interpreters run script files given as arguments.
var interpreters = map[string]bool{
	"python": true, "python3": true, "bash": true, "sh": true,
	"node": true, "ruby": true, "perl": true,
}

// Command evaluates a shell command line: the full check chain first,
// then a content scan of any script the command would execute.
func (g *Gate) Command(raw string) checks.CheckResult {
	if strings.TrimSpace(raw) == "" {
		return checks.CheckResult{Decision: checks.Allow}
	}
	parsed := shell.Parse(raw)
	if parsed.Fallback {
		log.Debug("degraded parse for command: %q", raw)
	}
	req := &checks.Request{
		Kind:     checks.KindCommand,
		Raw:      raw,
		Commands: parsed.Commands,
		Fallback: parsed.Fallback,
	}
	if res := g.chain.Evaluate(req); !res.Allowed() {
		return res
	}
	return g.scanExecutedScripts(parsed.Commands)
}

// scanExecutedScripts content-checks scripts named as interpreter
// arguments or run directly ("./deploy.sh").
func (g *Gate) scanExecutedScripts(commands []shell.Command) checks.CheckResult {
	for _, cmd := range commands {
		var candidates []string
		if interpreters[cmd.Name] {
			candidates = shell.NonFlagArgs(cmd.Args)
		} else if checks.ScriptFile(cmd.Name) {
			candidates = []string{cmd.RawName}
		}
		for _, candidate := range candidates {
			if !checks.ScriptFile(candidate) {
				continue
			}
			path := candidate
			if !filepath.IsAbs(path) {
				path = filepath.Join(g.b.Root(), path)
			}
			if res := g.analyzer.CheckFile(path); !res.Allowed() {
				return res
			}
		}
	}
	return checks.CheckResult{Decision: checks.Allow}
}

// Read evaluates a file read: boundary containment, then secret
// protection.
func (g *Gate) Read(path string) checks.CheckResult {
	if res := g.checkBoundary(path, "read"); !res.Allowed() {
		return res
	}
	return g.secrets.CheckPath(path, "read")
}

// Write evaluates a file write: boundary containment, protected and
// secret files, then a content scan when the payload is a script.
func (g *Gate) Write(path, content string) checks.CheckResult {
	if res := g.checkBoundary(path, "write"); !res.Allowed() {
		return res
	}
	if res := g.secrets.CheckPath(path, "write"); !res.Allowed() {
		return res
	}
	if checks.ScriptFile(path) {
		return g.analyzer.CheckContent(content, path)
	}
	return checks.CheckResult{Decision: checks.Allow}
}

// Search evaluates a filesystem search: the search root must be inside
// the boundary, and the pattern must not target secret files.
func (g *Gate) Search(pattern, path string) checks.CheckResult {
	if path != "" {
		if res := g.checkBoundary(path, "search"); !res.Allowed() {
			return res
		}
	}
	if pattern != "" && g.cfg.ForbiddenRead.Match(pattern) {
		return checks.CheckResult{
			Decision: checks.Ask,
			Origin:   "secrets",
			Reason:   fmt.Sprintf("Search pattern targets secret files: %s", pattern),
			Guidance: "The pattern would surface secret files. Narrow it, or confirm the search.",
		}
	}
	return checks.CheckResult{Decision: checks.Allow}
}

// checkBoundary maps containment onto a decision: a symlink escape is
// the only DENY; plainly outside asks.
func (g *Gate) checkBoundary(path, operation string) checks.CheckResult {
	switch g.b.Resolve(path) {
	case boundary.SymlinkEscape:
		return checks.CheckResult{
			Decision: checks.Deny,
			Origin:   "directory",
			Reason:   fmt.Sprintf("Path '%s' escapes the project through a symlink", path),
			Guidance: "The path resolves outside the project. This is a boundary bypass.",
		}
	case boundary.Outside:
		return checks.CheckResult{
			Decision: checks.Ask,
			Origin:   "directory",
			Reason:   fmt.Sprintf("Path outside project boundary: %s", path),
			Guidance: fmt.Sprintf("Confirm the %s of '%s', which is outside the project.", operation, path),
		}
	}
	return checks.CheckResult{Decision: checks.Allow}
}

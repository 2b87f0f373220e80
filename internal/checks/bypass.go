package checks

import (
	"fmt"
	"strings"

	"github.com/maxkoreaexport/polyakov-claude-skills/internal/config"
)

// BypassCheck catches attempts to defeat static analysis: eval, shell -c
// wrappers, piping downloads into a shell, variables expanded as
// commands, and inline interpreter code that reaches for the network.
type BypassCheck struct {
	cfg *config.Compiled
}

// NewBypassCheck creates a BypassCheck.
func NewBypassCheck(cc *config.Compiled) *BypassCheck {
	return &BypassCheck{cfg: cc}
}

func (c *BypassCheck) Name() string { return "bypass" }

// Evaluate runs the bypass sub-checks in order of certainty.
func (c *BypassCheck) Evaluate(req *Request) CheckResult {
	bp := c.cfg.Raw.Bypass

	for _, cmd := range req.Commands {
		for _, blocked := range bp.HardBlocked {
			if cmd.Name == blocked {
				return deny(c.Name(),
					fmt.Sprintf("Command '%s' is blocked (potential bypass)", blocked),
					"Use explicit commands instead of eval/exec.")
			}
		}
	}

	if bp.BlockVariableAsCommand {
		for _, cmd := range req.Commands {
			if strings.HasPrefix(cmd.RawName, "$") || strings.HasPrefix(cmd.RawName, "${") {
				return deny(c.Name(),
					"Variable used as command (potential bypass)",
					"Use explicit commands. Variable expansion as command is blocked.")
			}
		}
	}

	if res := c.checkPipeToShell(req); !res.Allowed() {
		return res
	}
	if res := c.checkShellExec(req); !res.Allowed() {
		return res
	}
	return c.checkInterpreterNetwork(req)
}

// checkPipeToShell denies any shell reading stdin from a pipe: whatever
// the source produced executes unreviewed.
func (c *BypassCheck) checkPipeToShell(req *Request) CheckResult {
	shellTargets := map[string]bool{}
	for _, t := range c.cfg.Raw.Bypass.ShellPipeTargets {
		shellTargets[t] = true
	}

	for _, cmd := range req.Commands {
		if cmd.Piped && shellTargets[cmd.Name] {
			return deny(c.Name(),
				"Piping to shell detected (dangerous pattern)",
				"Cannot pipe to shell. Download the file first, review, then execute.")
		}
	}
	return allowed()
}

// checkShellExec denies sh -c style wrappers and their env/busybox
// variants.
func (c *BypassCheck) checkShellExec(req *Request) CheckResult {
	for _, pattern := range c.cfg.Raw.Bypass.ShellExecPatterns {
		if strings.Contains(req.Raw, pattern) {
			return deny(c.Name(),
				fmt.Sprintf("Shell exec pattern detected: %s", pattern),
				"Direct shell execution with -c is blocked. Run the inner command directly.")
		}
	}

	for _, cmd := range req.Commands {
		switch cmd.Name {
		case "sh", "bash", "zsh", "dash", "ksh", "ash":
			for _, arg := range cmd.Args {
				if arg == "-c" {
					return deny(c.Name(),
						fmt.Sprintf("Shell exec detected: %s -c", cmd.Name),
						"Direct shell execution is blocked. Run the inner command directly.")
				}
			}
		case "busybox":
			for _, arg := range cmd.Args {
				if arg == "sh" || arg == "ash" {
					return deny(c.Name(),
						"busybox shell execution detected",
						"Shell execution via busybox is blocked.")
				}
			}
		}
	}
	return allowed()
}

// checkInterpreterNetwork asks about inline interpreter code (python -c,
// node -e) combined with network access or import obfuscation. Plain
// inline code without network stays allowed.
func (c *BypassCheck) checkInterpreterNetwork(req *Request) CheckResult {
	bp := c.cfg.Raw.Bypass

	inline := false
	for _, pattern := range bp.InterpreterInline {
		if strings.Contains(req.Raw, pattern) {
			inline = true
			break
		}
	}
	if !inline {
		return allowed()
	}

	hasNetwork := containsAny(req.Raw, bp.NetworkPatterns)
	hasObfuscation := containsAny(req.Raw, bp.ObfuscationPatterns)
	hasRCE := containsAny(req.Raw, bp.RCEPatterns)

	switch {
	case hasRCE && hasNetwork:
		return ask(c.Name(),
			"Potential remote code execution pattern with network access",
			"This inline code could execute remotely supplied code. Verify carefully.")
	case hasNetwork:
		return ask(c.Name(),
			"Inline interpreter code with network calls detected",
			"This code makes network calls. Verify it's safe before allowing.")
	case hasObfuscation:
		return ask(c.Name(),
			"Inline interpreter code with potential obfuscation detected",
			"This code uses import obfuscation. Verify it's safe.")
	}
	return allowed()
}

func containsAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

package checks

import (
	"fmt"
	"strings"

	"github.com/maxkoreaexport/polyakov-claude-skills/internal/boundary"
	"github.com/maxkoreaexport/polyakov-claude-skills/internal/config"
	"github.com/maxkoreaexport/polyakov-claude-skills/internal/shell"
)

// UnpackCheck gates archive extraction: targets outside the boundary
// ask, path traversal in a target denies, and bsdtar's -s substitution
// denies outright since it can rewrite extracted paths past any check.
type UnpackCheck struct {
	cfg *config.Compiled
	b   *boundary.Boundary
}

var unpackCommands = map[string]bool{
	"tar": true, "unzip": true, "unrar": true, "7z": true, "7za": true,
	"bsdtar": true, "gunzip": true, "bunzip2": true, "unxz": true,
}

// pythonUnpackModules are stdlib extraction entry points reachable
// without any archive tool installed.
var pythonUnpackModules = []string{
	"python -m zipfile -e", "python3 -m zipfile -e",
	"python -m tarfile -e", "python3 -m tarfile -e",
}

// NewUnpackCheck creates an UnpackCheck.
func NewUnpackCheck(cc *config.Compiled, b *boundary.Boundary) *UnpackCheck {
	return &UnpackCheck{cfg: cc, b: b}
}

func (c *UnpackCheck) Name() string { return "unpack" }

// Evaluate inspects extraction commands and their target directories.
func (c *UnpackCheck) Evaluate(req *Request) CheckResult {
	for _, pattern := range c.cfg.Raw.Unpack.BlockedPatterns {
		if strings.Contains(req.Raw, pattern) {
			return deny(c.Name(),
				fmt.Sprintf("Security bypass pattern: %s", pattern),
				fmt.Sprintf("%s can bypass path protection. Not allowed.", pattern))
		}
	}

	for _, pattern := range pythonUnpackModules {
		if strings.Contains(req.Raw, pattern) {
			if res := c.checkPythonUnpack(req.Raw); !res.Allowed() {
				return res
			}
		}
	}

	if !c.cfg.Raw.Unpack.CheckExtractTargets {
		return allowed()
	}
	for _, cmd := range req.Commands {
		if !unpackCommands[cmd.Name] {
			continue
		}
		if res := c.checkUnpack(cmd, req.Raw); !res.Allowed() {
			return res
		}
	}
	return allowed()
}

func (c *UnpackCheck) checkUnpack(cmd shell.Command, raw string) CheckResult {
	// bsdtar -s rewrites member paths during extraction.
	if cmd.Name == "bsdtar" && shell.HasFlag(cmd.Args, "-s") {
		return deny(c.Name(),
			"bsdtar -s (substitution) can bypass path protection",
			"bsdtar -s is blocked: it rewrites extracted paths past boundary checks.")
	}

	targetDir := extractTargetDir(cmd)
	if targetDir == "" {
		return allowed()
	}

	if strings.Contains(targetDir, "..") {
		return deny(c.Name(),
			fmt.Sprintf("Path traversal in unpack target: %s", targetDir),
			"Path traversal in an extraction target is a boundary bypass.")
	}
	if c.b.Resolve(targetDir) != boundary.Inside {
		return ask(c.Name(),
			fmt.Sprintf("Unpack target outside project: %s", targetDir),
			fmt.Sprintf("Extract into the project instead, or run it yourself: `%s`", raw))
	}
	return allowed()
}

// extractTargetDir pulls the extraction destination out of the tool's
// own flag syntax.
func extractTargetDir(cmd shell.Command) string {
	args := cmd.Args
	switch cmd.Name {
	case "tar", "bsdtar":
		expanded := shell.ExpandCombinedFlags(args)
		for i, arg := range expanded {
			switch {
			case (arg == "-C" || arg == "--directory") && i+1 < len(expanded):
				return expanded[i+1]
			case strings.HasPrefix(arg, "--directory="):
				return arg[len("--directory="):]
			case strings.HasPrefix(arg, "--one-top-level="):
				return arg[len("--one-top-level="):]
			}
		}
	case "unzip":
		for i, arg := range args {
			if arg == "-d" && i+1 < len(args) {
				return args[i+1]
			}
			if strings.HasPrefix(arg, "-d") && len(arg) > 2 {
				return arg[2:]
			}
		}
	case "7z", "7za":
		for _, arg := range args {
			if strings.HasPrefix(arg, "-o") && len(arg) > 2 {
				return arg[2:]
			}
		}
	}
	return ""
}

// checkPythonUnpack validates the destination of python -m
// zipfile/tarfile -e <archive> <dest>.
func (c *UnpackCheck) checkPythonUnpack(raw string) CheckResult {
	parts := strings.Fields(raw)
	for i, part := range parts {
		if part == "-e" && i+2 < len(parts) {
			targetDir := parts[i+2]
			if c.b.Resolve(targetDir) != boundary.Inside {
				return ask(c.Name(),
					fmt.Sprintf("Python unpack target outside project: %s", targetDir),
					fmt.Sprintf("Extract into the project instead, or run it yourself: `%s`", raw))
			}
		}
	}
	return allowed()
}

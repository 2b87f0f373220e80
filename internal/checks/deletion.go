package checks

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/maxkoreaexport/polyakov-claude-skills/internal/boundary"
	"github.com/maxkoreaexport/polyakov-claude-skills/internal/config"
	"github.com/maxkoreaexport/polyakov-claude-skills/internal/shell"
)

// DeletionCheck gates file deletion: recursive deletes of protected
// paths, of directories containing them, of the project root, of glob
// targets, and of anything outside the boundary all require
// confirmation. Disposable build artifacts (node_modules, caches) delete
// freely.
type DeletionCheck struct {
	cfg *config.Compiled
	b   *boundary.Boundary
}

var deleteCommands = map[string]bool{
	"rm": true, "rmdir": true, "unlink": true, "shred": true,
}

// NewDeletionCheck creates a DeletionCheck.
func NewDeletionCheck(cc *config.Compiled, b *boundary.Boundary) *DeletionCheck {
	return &DeletionCheck{cfg: cc, b: b}
}

func (c *DeletionCheck) Name() string { return "deletion" }

// Evaluate inspects every delete sub-command.
func (c *DeletionCheck) Evaluate(req *Request) CheckResult {
	for _, cmd := range req.Commands {
		if !deleteCommands[cmd.Name] {
			continue
		}
		if res := c.checkDeletion(cmd); !res.Allowed() {
			return res
		}
	}
	return allowed()
}

func (c *DeletionCheck) checkDeletion(cmd shell.Command) CheckResult {
	recursive := hasRecursiveFlag(cmd.Args)
	targets := shell.NonFlagArgs(cmd.Args)

	for _, target := range targets {
		// Glob targets expand at run time to an unknowable set.
		if recursive && shell.ContainsGlob(target) {
			return ask(c.Name(),
				fmt.Sprintf("Recursive deletion with glob pattern: %s %s", cmd.Name, target),
				fmt.Sprintf("Glob-based recursive deletion is dangerous. Run it yourself if intended: `%s`", cmd.Text()))
		}

		switch c.b.Resolve(target) {
		case boundary.SymlinkEscape:
			return deny(c.Name(),
				fmt.Sprintf("Deletion target '%s' escapes the project through a symlink", target),
				"The target resolves outside the project. This is a boundary bypass.")
		case boundary.Outside:
			return ask(c.Name(),
				fmt.Sprintf("Cannot delete files outside project: %s", target),
				fmt.Sprintf("Run it yourself if intended: `rm %s`", target))
		}

		if recursive {
			if res := c.checkRecursiveDelete(target); !res.Allowed() {
				return res
			}
		}
	}
	return allowed()
}

// hasRecursiveFlag detects -r/-R/--recursive, including combined groups
// like -rfv.
func hasRecursiveFlag(args []string) bool {
	return shell.HasFlag(args, "-r") || shell.HasFlag(args, "-R") ||
		shell.HasFlag(args, "--recursive")
}

// checkRecursiveDelete applies the protected-path and project-root rules
// to an in-boundary recursive target.
func (c *DeletionCheck) checkRecursiveDelete(target string) CheckResult {
	rel, ok := c.relToRoot(target)
	if !ok {
		return allowed()
	}

	if rel == "." {
		return ask(c.Name(),
			"Cannot recursively delete the project root",
			"Deleting the entire project is blocked. Be specific about what to delete.")
	}

	// Disposable artifact directories delete without ceremony.
	base := filepath.Base(rel)
	for _, d := range c.cfg.Raw.Deletion.DisposableDirs {
		if base == d {
			return allowed()
		}
	}

	for _, protected := range c.protectedDirs() {
		if rel == protected || strings.HasPrefix(rel, protected+"/") {
			return ask(c.Name(),
				fmt.Sprintf("Cannot recursively delete protected path: %s", target),
				fmt.Sprintf("Path '%s' is protected. Run the command yourself if intended.", target))
		}
		// Deleting an ancestor silently removes the protected path too.
		if strings.HasPrefix(protected, rel+"/") {
			return ask(c.Name(),
				fmt.Sprintf("Cannot recursively delete directory containing protected path: %s", target),
				fmt.Sprintf("Path '%s' contains protected content '%s'. Run the command yourself if intended.", target, protected))
		}
	}
	return allowed()
}

// relToRoot resolves a target to a slash-form path relative to the
// project root.
func (c *DeletionCheck) relToRoot(target string) (string, bool) {
	abs := target
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(c.b.Root(), abs)
	}
	abs = filepath.Clean(abs)
	rel, err := filepath.Rel(c.b.Root(), abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// protectedDirs derives literal directory prefixes from the protected
// path globs, always including .git.
func (c *DeletionCheck) protectedDirs() []string {
	var dirs []string
	hasGit := false
	for _, pattern := range c.cfg.Raw.Deletion.ProtectedPaths {
		base := strings.Split(pattern, "*")[0]
		base = strings.TrimSuffix(base, "/")
		if base == "" || base == "." {
			continue
		}
		dirs = append(dirs, base)
		if base == ".git" {
			hasGit = true
		}
	}
	if !hasGit {
		dirs = append(dirs, ".git")
	}
	return dirs
}

package checks

import (
	"fmt"

	"github.com/maxkoreaexport/polyakov-claude-skills/internal/boundary"
	"github.com/maxkoreaexport/polyakov-claude-skills/internal/config"
	"github.com/maxkoreaexport/polyakov-claude-skills/internal/shell"
)

// DirectoryCheck is the primary containment layer: every path a command
// touches must stay inside the project boundary. A symlink escape is a
// hard deny; a plainly outside path only asks, since naming a path
// outside the project is routine while smuggling one through a symlink
// is not.
type DirectoryCheck struct {
	cfg *config.Compiled
	b   *boundary.Boundary
}

// NewDirectoryCheck creates a DirectoryCheck.
func NewDirectoryCheck(cc *config.Compiled, b *boundary.Boundary) *DirectoryCheck {
	return &DirectoryCheck{cfg: cc, b: b}
}

func (c *DirectoryCheck) Name() string { return "directory" }

// patternFirstArgCommands take a search pattern as their first positional
// argument; it is not a path.
var patternFirstArgCommands = map[string]bool{
	"grep": true, "egrep": true, "fgrep": true, "rg": true,
	"sed": true, "awk": true, "gawk": true,
	"expr": true,
}

// Evaluate checks every extracted path of every sub-command.
func (c *DirectoryCheck) Evaluate(req *Request) CheckResult {
	for _, cmd := range req.Commands {
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
	}
	return allowed()
}

// CheckPath classifies one path against the boundary.
func (c *DirectoryCheck) CheckPath(path, operation string) CheckResult {
	switch c.b.Resolve(path) {
	case boundary.SymlinkEscape:
		return deny(c.Name(),
			fmt.Sprintf("Symlink escape detected: '%s' resolves outside the project", path),
			"The path is inside the project but points outside through a symlink. This is a boundary bypass.")
	case boundary.Outside:
		return ask(c.Name(),
			fmt.Sprintf("Path '%s' is outside project boundaries", path),
			guidanceForOperation(operation, path))
	}
	// Inside and Unresolved both proceed: the symlink verdict requires
	// proof, and an unresolvable path cannot be read anyway.
	return allowed()
}

// guidanceForOperation phrases the out-of-boundary message per operation.
func guidanceForOperation(operation, path string) string {
	switch operation {
	case "cat", "less", "more", "head", "tail", "read":
		return fmt.Sprintf("Path is outside the project. Run it yourself if intended: `cat %s`", path)
	case "rm", "unlink", "rmdir", "shred":
		return fmt.Sprintf("Deleting outside the project needs confirmation. Command: `rm %s`", path)
	case "cp", "mv", "rsync":
		return fmt.Sprintf("Copying or moving outside the project needs confirmation: `%s %s`", operation, path)
	case "find", "ls", "grep", "rg":
		return fmt.Sprintf("Searching outside the project needs confirmation: `%s %s`", operation, path)
	case "echo", "tee", "write":
		return fmt.Sprintf("Writing outside the project needs confirmation (target %s)", path)
	default:
		return fmt.Sprintf("Operation '%s' touches a path outside the project. Confirm, or add the path to boundary.allowed_paths.", operation)
	}
}

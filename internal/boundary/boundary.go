// Package boundary decides whether filesystem paths fall inside the
// project boundary, distinguishing literal containment (the path as
// written) from real containment (after dereferencing symlinks).
//
// The distinction carries the security weight: a path that is literally
// inside but really outside is a symlink escape, the one shape that is
// near-certainly an attempt to smuggle access past a path-based policy.
package boundary

import (
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/maxkoreaexport/polyakov-claude-skills/internal/logger"
)

var log = logger.New("boundary")

// Containment classifies a path against the boundary.
type Containment int

const (
	// Outside means the literal path is not under any boundary root.
	Outside Containment = iota
	// Inside means both the literal and (where resolvable) real path are
	// under a boundary root.
	Inside
	// SymlinkEscape means the literal path is inside but the real path
	// resolves outside: symlink indirection crossing the boundary.
	SymlinkEscape
	// Unresolved means the literal path is inside but real resolution
	// failed (missing file, permission). Real-path safety is unproven,
	// but the symlink-escape verdict requires proof, not absence of it.
	Unresolved
)

func (c Containment) String() string {
	switch c {
	case Inside:
		return "inside"
	case Outside:
		return "outside"
	case SymlinkEscape:
		return "symlink-escape"
	case Unresolved:
		return "unresolved"
	default:
		return "unknown"
	}
}

// Boundary holds the project root plus any extra allowed roots. It is
// built once at startup and read-only afterwards.
type Boundary struct {
	root    string
	allowed []string
	cwd     string
}

// New creates a Boundary anchored at root with extra allowed roots.
// All roots are absolutized; relative checked paths resolve against root.
func New(root string, allowed []string) (*Boundary, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	b := &Boundary{root: absRoot, cwd: absRoot}
	for _, a := range allowed {
		abs, err := filepath.Abs(a)
		if err != nil {
			log.Warn("allowed path %q not absolutizable: %v", a, err)
			continue
		}
		b.allowed = append(b.allowed, abs)
	}
	return b, nil
}

// Root returns the project root.
func (b *Boundary) Root() string { return b.root }

// Resolve classifies a path as written in a command or tool call.
func (b *Boundary) Resolve(path string) Containment {
	literal := b.normalize(path)
	if literal == "" {
		return Outside
	}

	if !b.containsLiteral(literal) {
		return Outside
	}

	// Literal containment established. Now walk for symlink indirection:
	// every existing component gets its real path checked, so a symlinked
	// ancestor directory is caught, not only a symlinked leaf.
	esc, resolved := b.escapesViaSymlink(literal)
	if esc {
		return SymlinkEscape
	}
	if !resolved {
		return Unresolved
	}
	return Inside
}

// normalize absolutizes, cleans, and NFKC-normalizes a path. NFKC folds
// fullwidth and compatibility codepoints so "／ｅｔｃ" cannot slip past
// string prefix checks that "/etc" would trip.
func (b *Boundary) normalize(path string) string {
	if path == "" {
		return ""
	}
	path = norm.NFKC.String(path)
	path = expandHome(path)
	if !filepath.IsAbs(path) {
		path = filepath.Join(b.cwd, path)
	}
	return filepath.Clean(path)
}

func expandHome(path string) string {
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

// containsLiteral reports whether abs is under the root or any allowed
// root, by path components.
func (b *Boundary) containsLiteral(abs string) bool {
	if under(b.root, abs) {
		return true
	}
	for _, a := range b.allowed {
		if under(a, abs) {
			return true
		}
	}
	return false
}

// under reports whether path is root or within it.
func under(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// escapesViaSymlink walks the path component by component. For each
// existing prefix that is a symlink, the prefix's real path must still be
// contained. Returns (escaped, fullyResolved): fullyResolved is false
// when the leaf or an ancestor could not be stat'ed, in which case no
// escape was proven but none was ruled out either.
func (b *Boundary) escapesViaSymlink(abs string) (escaped, fullyResolved bool) {
	components := splitComponents(abs)
	prefix := components[0] // volume root

	for _, comp := range components[1:] {
		prefix = filepath.Join(prefix, comp)

		fi, err := os.Lstat(prefix)
		if err != nil {
			// Nonexistent suffix: nothing further can be a symlink. The
			// walk resolved as far as the filesystem goes.
			if os.IsNotExist(err) {
				return false, true
			}
			return false, false
		}
		if fi.Mode()&os.ModeSymlink == 0 {
			continue
		}

		real, err := filepath.EvalSymlinks(prefix)
		if err != nil {
			// Broken symlink or cycle. Cannot prove an escape.
			return false, false
		}
		if !b.containsRealPath(real) {
			log.Debug("symlink escape: %s -> %s", prefix, real)
			return true, true
		}
		// Continue the walk on the literal prefix; deeper components may
		// still escape through another link.
	}
	return false, true
}

// containsRealPath checks a fully resolved path against the resolved
// roots, so a root that is itself behind a symlink (macOS /tmp) compares
// in the same namespace.
func (b *Boundary) containsRealPath(real string) bool {
	roots := append([]string{b.root}, b.allowed...)
	for _, r := range roots {
		resolvedRoot := r
		if rr, err := filepath.EvalSymlinks(r); err == nil {
			resolvedRoot = rr
		}
		if under(resolvedRoot, real) || under(r, real) {
			return true
		}
	}
	return false
}

func splitComponents(abs string) []string {
	vol := filepath.VolumeName(abs)
	rest := abs[len(vol):]
	parts := strings.Split(rest, string(filepath.Separator))
	components := []string{vol + string(filepath.Separator)}
	for _, p := range parts {
		if p != "" {
			components = append(components, p)
		}
	}
	return components
}

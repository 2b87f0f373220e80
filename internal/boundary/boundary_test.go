package boundary

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// newBoundary resolves the temp dir through EvalSymlinks first: on macOS
// t.TempDir() lives under the /var -> /private/var symlink, which would
// otherwise read as an escape of its own root.
func newBoundary(t *testing.T, allowed ...string) (*Boundary, string) {
	t.Helper()
	dir := t.TempDir()
	if real, err := filepath.EvalSymlinks(dir); err == nil {
		dir = real
	}
	b, err := New(dir, allowed)
	if err != nil {
		t.Fatal(err)
	}
	return b, dir
}

func TestResolveInside(t *testing.T) {
	b, dir := newBoundary(t)
	inner := filepath.Join(dir, "src", "main.go")
	if err := os.MkdirAll(filepath.Dir(inner), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(inner, []byte("package main"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
		want Containment
	}{
		{"existing file", inner, Inside},
		{"root itself", dir, Inside},
		{"nonexistent inside", filepath.Join(dir, "missing.txt"), Inside},
		{"deep nonexistent", filepath.Join(dir, "a", "b", "c.txt"), Inside},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := b.Resolve(tt.path); got != tt.want {
				t.Errorf("Resolve(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestResolveOutside(t *testing.T) {
	b, dir := newBoundary(t)
	tests := []string{
		"/etc/passwd",
		filepath.Dir(dir), // parent of root
		"/usr/local/bin/tool",
	}
	for _, path := range tests {
		if got := b.Resolve(path); got != Outside {
			t.Errorf("Resolve(%q) = %v, want Outside", path, got)
		}
	}
}

func TestResolveDotDotTraversal(t *testing.T) {
	b, dir := newBoundary(t)
	// Literally inside-looking but cleans to outside.
	path := filepath.Join(dir, "sub", "..", "..", "other", "f.txt")
	if got := b.Resolve(path); got != Outside {
		t.Errorf("Resolve(%q) = %v, want Outside", path, got)
	}
}

func TestResolveSymlinkEscape(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink creation needs privileges on windows")
	}
	b, dir := newBoundary(t)

	outside := t.TempDir()
	target := filepath.Join(outside, "secret.txt")
	if err := os.WriteFile(target, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	// Leaf symlink pointing out.
	leaf := filepath.Join(dir, "link.txt")
	if err := os.Symlink(target, leaf); err != nil {
		t.Fatal(err)
	}
	if got := b.Resolve(leaf); got != SymlinkEscape {
		t.Errorf("leaf symlink: Resolve = %v, want SymlinkEscape", got)
	}

	// Ancestor directory symlink pointing out: the file below it is what
	// gets named, the link is in the middle of the path.
	dirLink := filepath.Join(dir, "data")
	if err := os.Symlink(outside, dirLink); err != nil {
		t.Fatal(err)
	}
	named := filepath.Join(dirLink, "secret.txt")
	if got := b.Resolve(named); got != SymlinkEscape {
		t.Errorf("ancestor symlink: Resolve = %v, want SymlinkEscape", got)
	}
}

func TestResolveSymlinkInsideStaysInside(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink creation needs privileges on windows")
	}
	b, dir := newBoundary(t)

	target := filepath.Join(dir, "real.txt")
	if err := os.WriteFile(target, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(dir, "alias.txt")
	if err := os.Symlink(target, link); err != nil {
		t.Fatal(err)
	}
	if got := b.Resolve(link); got != Inside {
		t.Errorf("internal symlink: Resolve = %v, want Inside", got)
	}
}

func TestResolveBrokenSymlinkUnresolved(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink creation needs privileges on windows")
	}
	b, dir := newBoundary(t)
	link := filepath.Join(dir, "dangling")
	if err := os.Symlink(filepath.Join(dir, "never-exists"), link); err != nil {
		t.Fatal(err)
	}
	// A broken link cannot prove an escape; it must not read as one, and
	// it must not read as proven-Inside either.
	got := b.Resolve(link)
	if got == SymlinkEscape || got == Outside {
		t.Errorf("broken symlink: Resolve = %v, want Inside or Unresolved", got)
	}
}

func TestResolveAllowedPaths(t *testing.T) {
	extra := t.TempDir()
	if real, err := filepath.EvalSymlinks(extra); err == nil {
		extra = real
	}
	b, _ := newBoundary(t, extra)
	p := filepath.Join(extra, "notes.md")
	if got := b.Resolve(p); got != Inside {
		t.Errorf("allowed-root path: Resolve = %v, want Inside", got)
	}
}

func TestResolveRelativePaths(t *testing.T) {
	b, _ := newBoundary(t)
	if got := b.Resolve("src/main.go"); got != Inside {
		t.Errorf("relative inside: Resolve = %v, want Inside", got)
	}
	if got := b.Resolve("../elsewhere/f.txt"); got != Outside {
		t.Errorf("relative escape: Resolve = %v, want Outside", got)
	}
}

func TestNormalizeNFKC(t *testing.T) {
	b, _ := newBoundary(t)
	// Fullwidth solidus and letters must fold to their ASCII forms, so a
	// disguised absolute path does not absolutize under the project root.
	got := b.Resolve("／ｅｔｃ／passwd") // ／ｅｔｃ／passwd
	if got != Outside {
		t.Errorf("fullwidth path: Resolve = %v, want Outside", got)
	}
}

func TestResolveEmpty(t *testing.T) {
	b, _ := newBoundary(t)
	if got := b.Resolve(""); got != Outside {
		t.Errorf("empty path: Resolve = %v, want Outside", got)
	}
}

func TestContainmentString(t *testing.T) {
	tests := []struct {
		c    Containment
		want string
	}{
		{Inside, "inside"},
		{Outside, "outside"},
		{SymlinkEscape, "symlink-escape"},
		{Unresolved, "unresolved"},
	}
	for _, tt := range tests {
		if got := tt.c.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.c, got, tt.want)
		}
	}
}

package shell

import "strings"

// argSpec describes where a command's path arguments live.
type argSpec struct {
	pathArgs  []int    // positional args that are paths
	pathFlags []string // flags followed by (or glued to) a path
	skipFlags []string // flags followed by a non-path value
}

var manyPositions = []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}

// commandDB maps command names to their path argument shapes. Commands
// absent here fall back to a path-looking heuristic.
var commandDB = map[string]argSpec{
	"cat":     {pathArgs: manyPositions},
	"head":    {pathArgs: manyPositions, skipFlags: []string{"-n", "--lines", "-c", "--bytes"}},
	"tail":    {pathArgs: manyPositions, skipFlags: []string{"-n", "--lines", "-c", "--bytes"}},
	"less":    {pathArgs: manyPositions},
	"more":    {pathArgs: manyPositions},
	"grep":    {pathArgs: []int{1, 2, 3, 4, 5, 6, 7, 8, 9}, skipFlags: []string{"-e", "--regexp", "-m", "--max-count", "-A", "-B", "-C", "--context"}},
	"rg":      {pathArgs: []int{1, 2, 3, 4, 5}, skipFlags: []string{"-e", "--regexp", "-g", "--glob", "-A", "-B", "-C", "-m"}},
	"strings": {pathArgs: manyPositions},
	"xxd":     {pathArgs: []int{0}},
	"od":      {pathArgs: manyPositions},
	"hexdump": {pathArgs: manyPositions},
	"file":    {pathArgs: manyPositions},
	"stat":    {pathArgs: manyPositions},
	"awk":     {pathArgs: []int{1, 2, 3, 4, 5}},
	"sed":     {pathArgs: []int{1, 2, 3, 4, 5}},
	"cut":     {pathArgs: manyPositions},
	"sort":    {pathArgs: manyPositions},
	"uniq":    {pathArgs: manyPositions},
	"wc":      {pathArgs: manyPositions},
	"diff":    {pathArgs: []int{0, 1}},
	"find":    {pathArgs: []int{0}},

	"tee":   {pathArgs: manyPositions},
	"touch": {pathArgs: manyPositions},
	"mkdir": {pathArgs: manyPositions},
	"ln":    {pathArgs: []int{0, 1}},

	"rm":     {pathArgs: manyPositions},
	"unlink": {pathArgs: []int{0}},
	"shred":  {pathArgs: manyPositions},
	"rmdir":  {pathArgs: manyPositions},

	"cp":    {pathArgs: manyPositions},
	"mv":    {pathArgs: manyPositions},
	"rsync": {pathArgs: manyPositions},
	"dd":    {pathFlags: []string{"if=", "of="}},

	"curl": {pathFlags: []string{"-o", "--output"}},
	"wget": {pathFlags: []string{"-O", "--output-document", "-P", "--directory-prefix"}},

	"tar":    {pathFlags: []string{"-f", "--file", "-C", "--directory"}},
	"unzip":  {pathArgs: []int{0}, pathFlags: []string{"-d"}},
	"zip":    {pathArgs: manyPositions},
	"gzip":   {pathArgs: manyPositions},
	"gunzip": {pathArgs: manyPositions},
	"zcat":   {pathArgs: manyPositions},

	"bash":    {pathArgs: []int{0}},
	"sh":      {pathArgs: []int{0}},
	"zsh":     {pathArgs: []int{0}},
	"python":  {pathArgs: []int{0}},
	"python3": {pathArgs: []int{0}},
	"node":    {pathArgs: []int{0}},
	"ruby":    {pathArgs: []int{0}},
	"perl":    {pathArgs: []int{0}},
	"source":  {pathArgs: []int{0}},
	".":       {pathArgs: []int{0}},

	"chmod": {pathArgs: []int{1, 2, 3, 4, 5}},
	"chown": {pathArgs: []int{1, 2, 3, 4, 5}},

	"readlink": {pathArgs: []int{0}},
}

// nonPathCommands produce or consume no filesystem paths; their arguments
// never need boundary checks.
var nonPathCommands = map[string]bool{
	"echo": true, "printf": true, "true": true, "false": true,
	"pwd": true, "whoami": true, "date": true, "sleep": true,
	"export": true, "unset": true, "alias": true, "which": true,
	"type": true, "hash": true, "exit": true, "cd": true,
}

// PathArgs returns the filesystem paths a command touches, using the
// command database when the command is known and a path-shape heuristic
// otherwise. Output redirect targets are always included.
func PathArgs(c Command) []string {
	var paths []string
	if nonPathCommands[c.Name] {
		return append(paths, c.RedirPaths...)
	}

	spec, known := commandDB[c.Name]
	if !known {
		for _, arg := range c.Args {
			if looksLikePath(arg) {
				paths = append(paths, arg)
			}
		}
		return dedupe(append(paths, c.RedirPaths...))
	}

	// Expand combined short flags so "tar -xf a.tar" exposes -f with its
	// path argument adjacent.
	args := ExpandCombinedFlags(c.Args)

	positional := 0
	skipNext := false
	for i, arg := range args {
		if skipNext {
			skipNext = false
			continue
		}

		matchedFlag := false
		for _, flag := range spec.pathFlags {
			if arg == flag {
				if i+1 < len(args) {
					paths = append(paths, args[i+1])
					skipNext = true
				}
				matchedFlag = true
				break
			}
			// Glued forms: --file=x, if=/dev/zero, -Cdir.
			if strings.HasSuffix(flag, "=") && strings.HasPrefix(arg, flag) {
				paths = append(paths, arg[len(flag):])
				matchedFlag = true
				break
			}
			if strings.HasPrefix(flag, "--") && strings.HasPrefix(arg, flag+"=") {
				paths = append(paths, arg[len(flag)+1:])
				matchedFlag = true
				break
			}
		}
		if matchedFlag {
			continue
		}

		isSkip := false
		for _, flag := range spec.skipFlags {
			if arg == flag {
				isSkip = true
				break
			}
		}
		if isSkip {
			skipNext = true
			continue
		}

		if strings.HasPrefix(arg, "-") && arg != "-" {
			continue
		}

		for _, idx := range spec.pathArgs {
			if positional == idx {
				paths = append(paths, arg)
				break
			}
		}
		positional++
	}
	return dedupe(append(paths, c.RedirPaths...))
}

// looksLikePath is the heuristic for commands not in the database:
// anything with a separator, a home/relative prefix, or a known dotfile
// shape counts.
func looksLikePath(arg string) bool {
	if arg == "" || strings.HasPrefix(arg, "-") {
		return false
	}
	if strings.ContainsAny(arg, "/\\") {
		return true
	}
	if strings.HasPrefix(arg, "~") || strings.HasPrefix(arg, ".") {
		return true
	}
	return false
}

func dedupe(items []string) []string {
	if len(items) <= 1 {
		return items
	}
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		if !seen[it] {
			seen[it] = true
			out = append(out, it)
		}
	}
	return out
}

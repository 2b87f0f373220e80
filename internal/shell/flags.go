package shell

import "strings"

// ExpandCombinedFlags rewrites combined short flags so policy phrase
// matching sees each flag separately: "-rf" becomes "-r -f". Long flags,
// bare dashes, and numeric flags (-10) pass through unchanged.
func ExpandCombinedFlags(args []string) []string {
	out := make([]string, 0, len(args))
	for _, arg := range args {
		if len(arg) > 2 && arg[0] == '-' && arg[1] != '-' && isAlphaFlags(arg[1:]) {
			for _, c := range arg[1:] {
				out = append(out, "-"+string(c))
			}
			continue
		}
		out = append(out, arg)
	}
	return out
}

func isAlphaFlags(s string) bool {
	for _, c := range s {
		if (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') {
			return false
		}
	}
	return true
}

// HasFlag reports whether args contain the flag exactly, or within a
// combined short-flag group.
func HasFlag(args []string, flag string) bool {
	for _, arg := range ExpandCombinedFlags(args) {
		if arg == flag {
			return true
		}
	}
	return false
}

// FirstNonFlag returns the first argument that is not a flag, or "".
func FirstNonFlag(args []string) string {
	for _, arg := range args {
		if !strings.HasPrefix(arg, "-") {
			return arg
		}
	}
	return ""
}

// NonFlagArgs returns all arguments that are not flags.
func NonFlagArgs(args []string) []string {
	var out []string
	for _, arg := range args {
		if !strings.HasPrefix(arg, "-") || arg == "-" {
			out = append(out, arg)
		}
	}
	return out
}

// ContainsGlob reports whether a token carries unescaped glob
// metacharacters the shell would expand.
func ContainsGlob(s string) bool {
	return strings.ContainsAny(s, "*?[")
}

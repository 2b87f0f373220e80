package checks

import (
	"fmt"
	"sort"
	"strings"

	"github.com/maxkoreaexport/polyakov-claude-skills/internal/config"
	"github.com/maxkoreaexport/polyakov-claude-skills/internal/shell"
)

// GitCheck gates destructive git operations. Policy entries are
// "subcommand flags" phrases; an explicit allow beats both block lists,
// and routine destructive operations auto-allow under CI.
type GitCheck struct {
	cfg *config.Compiled
	// inCI is a func for testability; defaults to config.InCI.
	inCI func() bool
}

// saferAlternatives maps operation phrases to guidance.
var saferAlternatives = map[string]string{
	"push --force":  "Use --force-with-lease instead: `git push --force-with-lease`",
	"push -f":       "Use --force-with-lease instead: `git push --force-with-lease`",
	"reset --hard":  "Consider `git stash` first, or run `git reset --hard` yourself",
	"branch -D":     "Run it yourself if intended: `git branch -D <branch>`",
	"clean -fd":     "Try `git clean -fd --dry-run` first, or run `git clean -fd` yourself",
	"reflog expire": "Run it yourself if intended: `git reflog expire`",
}

// NewGitCheck creates a GitCheck.
func NewGitCheck(cc *config.Compiled) *GitCheck {
	return &GitCheck{cfg: cc, inCI: config.InCI}
}

func (c *GitCheck) Name() string { return "git" }

// Evaluate inspects every git sub-command in the request.
func (c *GitCheck) Evaluate(req *Request) CheckResult {
	for _, cmd := range req.Commands {
		if cmd.Name != "git" {
			continue
		}
		if res := c.checkGit(cmd); !res.Allowed() {
			return res
		}
	}
	return allowed()
}

func (c *GitCheck) checkGit(cmd shell.Command) CheckResult {
	subcommand, flags := gitSubcommand(cmd.Args)
	if subcommand == "" {
		return allowed()
	}
	operation := buildOperation(subcommand, flags)

	git := c.cfg.Raw.Git
	if matchesAnyPhrase(operation, git.Allowed) {
		return allowed()
	}
	if matchesAnyPhrase(operation, git.HardBlocked) {
		// --force-with-lease is the sanctioned escape hatch even when a
		// blocked phrase otherwise matches.
		if !strings.Contains(operation, "--force-with-lease") {
			return deny(c.Name(),
				fmt.Sprintf("Destructive git operation blocked: git %s", operation),
				saferAlternative(operation))
		}
	}
	if c.inCI() && matchesAnyPhrase(operation, git.CIAutoAllow) {
		return allowed()
	}
	if matchesAnyPhrase(operation, git.ConfirmRequired) {
		return ask(c.Name(),
			fmt.Sprintf("Git operation requires confirmation: git %s", operation),
			saferAlternative(operation))
	}
	return allowed()
}

// gitSubcommand splits git args into the subcommand and its flags,
// skipping git's own global flags (-C dir, -c key=val).
func gitSubcommand(args []string) (string, []string) {
	i := 0
	for i < len(args) {
		switch {
		case args[i] == "-C" || args[i] == "-c":
			i += 2
		case strings.HasPrefix(args[i], "-"):
			i++
		default:
			sub := args[i]
			var flags []string
			for _, a := range args[i+1:] {
				if strings.HasPrefix(a, "-") {
					flags = append(flags, a)
				}
			}
			return sub, flags
		}
	}
	return "", nil
}

// buildOperation normalizes flags (combined short flags expanded, sorted)
// into a canonical "subcommand flag flag" phrase.
func buildOperation(subcommand string, flags []string) string {
	normalized := shell.ExpandCombinedFlags(flags)
	sort.Strings(normalized)
	if len(normalized) == 0 {
		return subcommand
	}
	return subcommand + " " + strings.Join(normalized, " ")
}

// matchesAnyPhrase reports whether the operation matches any policy
// phrase: the subcommand must equal the phrase's first word and the
// phrase's flags must all be present in the operation.
func matchesAnyPhrase(operation string, phrases []string) bool {
	opParts := strings.Fields(operation)
	if len(opParts) == 0 {
		return false
	}
	opFlags := flagSet(opParts[1:])

	for _, phrase := range phrases {
		parts := strings.Fields(phrase)
		if len(parts) == 0 || parts[0] != opParts[0] {
			continue
		}
		matched := true
		for f := range flagSet(parts[1:]) {
			if !opFlags[f] {
				matched = false
				break
			}
		}
		if matched {
			return true
		}
	}
	return false
}

// flagSet expands combined short flags into a set.
func flagSet(flags []string) map[string]bool {
	set := make(map[string]bool, len(flags))
	for _, f := range shell.ExpandCombinedFlags(flags) {
		set[f] = true
	}
	return set
}

func saferAlternative(operation string) string {
	for phrase, suggestion := range saferAlternatives {
		if matchesAnyPhrase(operation, []string{phrase}) {
			return suggestion
		}
	}
	return fmt.Sprintf("Run it yourself if intended: `git %s`", operation)
}

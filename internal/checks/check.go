package checks

import (
	"github.com/maxkoreaexport/polyakov-claude-skills/internal/boundary"
	"github.com/maxkoreaexport/polyakov-claude-skills/internal/config"
	"github.com/maxkoreaexport/polyakov-claude-skills/internal/logger"
	"github.com/maxkoreaexport/polyakov-claude-skills/internal/shell"
)

var log = logger.New("checks")

// Kind identifies the tool category a request came from.
type Kind string

const (
	KindCommand Kind = "command-execution"
	KindRead    Kind = "file-read"
	KindWrite   Kind = "file-write"
	KindSearch  Kind = "filesystem-search"
)

// Request is one tool invocation under evaluation. Checks treat it as
// read-only.
type Request struct {
	Kind Kind

	// Raw is the full command line as submitted (command-execution).
	Raw string
	// Commands are the parsed sub-commands of Raw.
	Commands []shell.Command
	// Fallback is true when Commands came from the degraded tokenizer.
	Fallback bool

	// Path is the target path (file-read, file-write, filesystem-search).
	Path string
	// Content is the data being written (file-write).
	Content string
}

// Check is one policy rule. Evaluate must be a pure computation over the
// request plus read-only filesystem metadata; it must not block on
// network I/O or mutate shared state.
type Check interface {
	Name() string
	Evaluate(req *Request) CheckResult
}

// Chain evaluates checks in order and short-circuits on the first
// non-Allow result. Order encodes priority: bypass-oriented checks come
// before convenience checks so an evasion attempt cannot hide behind a
// milder verdict.
type Chain struct {
	checks []Check
}

// NewChain builds a chain over the given checks, evaluated in order.
func NewChain(checks ...Check) *Chain {
	return &Chain{checks: checks}
}

// Names returns the check names in evaluation order.
func (c *Chain) Names() []string {
	names := make([]string, len(c.checks))
	for i, chk := range c.checks {
		names[i] = chk.Name()
	}
	return names
}

// Evaluate runs the chain. A panicking check converts to Ask, never to a
// fault the host could read as allow-by-default.
func (c *Chain) Evaluate(req *Request) CheckResult {
	for _, chk := range c.checks {
		res := c.evaluateOne(chk, req)
		if !res.Allowed() {
			log.Debug("%s: %s (%s)", chk.Name(), res.Decision, res.Reason)
			return res
		}
	}
	return allowed()
}

func (c *Chain) evaluateOne(chk Check, req *Request) (res CheckResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("check %s panicked: %v", chk.Name(), r)
			res = ask(chk.Name(),
				"Internal error while evaluating this operation",
				"The security check failed unexpectedly. Confirm manually before proceeding.")
		}
	}()
	return chk.Evaluate(req)
}

// CommandChainOrder is the fixed evaluation order for command-execution
// requests. Bypass and unpack lead because they represent deliberate
// evasion; the boundary check follows as the primary containment layer.
var CommandChainOrder = []string{
	"bypass",
	"unpack",
	"directory",
	"git",
	"deletion",
	"download",
	"execution",
	"secrets",
}

// NewCommandChain assembles the full chain for shell commands, in
// CommandChainOrder.
func NewCommandChain(cc *config.Compiled, b *boundary.Boundary) *Chain {
	return NewChain(
		NewBypassCheck(cc),
		NewUnpackCheck(cc, b),
		NewDirectoryCheck(cc, b),
		NewGitCheck(cc),
		NewDeletionCheck(cc, b),
		NewDownloadCheck(cc),
		NewExecutionCheck(cc, b),
		NewSecretsCheck(cc, b),
	)
}

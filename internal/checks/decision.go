// Package checks implements the policy check chain: pure, ordered checks
// over parsed commands and resolved paths, each returning a three-valued
// decision.
package checks

import "fmt"

// Decision is the gate's verdict on one tool invocation. The values are
// ordered by severity: a chain or combinator may only ever escalate.
type Decision int

const (
	// Allow lets the operation proceed silently.
	Allow Decision = iota
	// Ask defers to the user for confirmation.
	Ask
	// Deny blocks the operation outright. Reserved for near-zero
	// false-positive conditions; everything merely suspicious is Ask.
	Deny
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case Ask:
		return "ask"
	case Deny:
		return "deny"
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

// CheckResult is one check's verdict with its human-facing explanation.
// Reason is always non-empty when Decision is not Allow.
type CheckResult struct {
	Decision Decision
	// Reason is the one-line explanation of what was flagged.
	Reason string
	// Guidance tells the user or agent what to do instead.
	Guidance string
	// Origin names the check that produced a non-Allow result.
	Origin string
}

// Allowed reports whether the result lets the operation proceed.
func (r CheckResult) Allowed() bool { return r.Decision == Allow }

func allowed() CheckResult {
	return CheckResult{Decision: Allow}
}

func ask(origin, reason, guidance string) CheckResult {
	return CheckResult{Decision: Ask, Reason: reason, Guidance: guidance, Origin: origin}
}

func deny(origin, reason, guidance string) CheckResult {
	return CheckResult{Decision: Deny, Reason: reason, Guidance: guidance, Origin: origin}
}

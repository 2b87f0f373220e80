// Package guidance renders gate decisions into the host's hook protocol.
//
// The protocol is one JSON object on stdout per call. Allow emits
// nothing at all: silence plus exit 0 is the host's pass-through signal,
// and anything on stdout would be parsed as a ruling.
package guidance

import (
	"encoding/json"
	"fmt"

	"github.com/maxkoreaexport/polyakov-claude-skills/internal/checks"
)

// HookOutput is the decision payload the host reads from stdout.
type HookOutput struct {
	PermissionDecision string `json:"permissionDecision"`
	Message            string `json:"message"`
}

// Render converts a CheckResult into the wire payload. The second return
// is false for Allow: nothing should be written.
func Render(res checks.CheckResult) ([]byte, bool, error) {
	if res.Allowed() {
		return nil, false, nil
	}
	out := HookOutput{
		PermissionDecision: res.Decision.String(),
		Message:            Message(res),
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, false, fmt.Errorf("marshal hook output: %w", err)
	}
	return data, true, nil
}

// Message combines reason and guidance into one host-facing string. The
// reason states what was ruled on; the guidance says what to do instead.
func Message(res checks.CheckResult) string {
	switch {
	case res.Reason != "" && res.Guidance != "":
		return res.Reason + "\n\n" + res.Guidance
	case res.Guidance != "":
		return res.Guidance
	default:
		return res.Reason
	}
}

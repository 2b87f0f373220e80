package guidance

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/maxkoreaexport/polyakov-claude-skills/internal/checks"
)

func TestRenderAllowEmitsNothing(t *testing.T) {
	data, emit, err := Render(checks.CheckResult{Decision: checks.Allow})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if emit || data != nil {
		t.Errorf("allow rendered output %q, want none", data)
	}
}

func TestRenderDecisions(t *testing.T) {
	tests := []struct {
		name     string
		res      checks.CheckResult
		decision string
	}{
		{
			"deny with guidance",
			checks.CheckResult{
				Decision: checks.Deny,
				Reason:   "Piping to shell detected",
				Guidance: "Download the file first, review, then execute.",
			},
			"deny",
		},
		{
			"ask without guidance",
			checks.CheckResult{Decision: checks.Ask, Reason: "Path outside project"},
			"ask",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, emit, err := Render(tt.res)
			if err != nil {
				t.Fatalf("Render: %v", err)
			}
			if !emit {
				t.Fatal("expected output")
			}
			var out HookOutput
			if err := json.Unmarshal(data, &out); err != nil {
				t.Fatalf("output is not valid JSON: %v", err)
			}
			if out.PermissionDecision != tt.decision {
				t.Errorf("permissionDecision = %q, want %q", out.PermissionDecision, tt.decision)
			}
			if !strings.Contains(out.Message, tt.res.Reason) {
				t.Errorf("message %q missing reason %q", out.Message, tt.res.Reason)
			}
		})
	}
}

func TestMessageJoinsReasonAndGuidance(t *testing.T) {
	msg := Message(checks.CheckResult{Reason: "why", Guidance: "what to do"})
	if msg != "why\n\nwhat to do" {
		t.Errorf("Message = %q", msg)
	}
	if got := Message(checks.CheckResult{Guidance: "only guidance"}); got != "only guidance" {
		t.Errorf("Message = %q", got)
	}
}

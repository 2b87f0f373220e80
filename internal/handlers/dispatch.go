package handlers

import (
	"github.com/maxkoreaexport/polyakov-claude-skills/internal/checks"
)

// ToolInput is the union of tool argument shapes the gate understands.
// Unknown fields in the host payload are ignored.
type ToolInput struct {
	Command  string `json:"command,omitempty"`
	FilePath string `json:"file_path,omitempty"`
	Content  string `json:"content,omitempty"`
	// Edit-style writes carry the replacement text instead of full content.
	NewString string `json:"new_string,omitempty"`
	Pattern   string `json:"pattern,omitempty"`
	Path      string `json:"path,omitempty"`
}

// toolKinds maps host tool names onto the four gate categories.
var toolKinds = map[string]checks.Kind{
	"Bash":         checks.KindCommand,
	"Read":         checks.KindRead,
	"Write":        checks.KindWrite,
	"Edit":         checks.KindWrite,
	"MultiEdit":    checks.KindWrite,
	"NotebookEdit": checks.KindWrite,
	"Glob":         checks.KindSearch,
	"Grep":         checks.KindSearch,
}

// Dispatch routes one tool call to its handler. Tools the gate does not
// cover pass through: the gate only rules on the four categories it
// understands.
func (g *Gate) Dispatch(toolName string, input ToolInput) checks.CheckResult {
	kind, ok := toolKinds[toolName]
	if !ok {
		return checks.CheckResult{Decision: checks.Allow}
	}
	switch kind {
	case checks.KindCommand:
		return g.Command(input.Command)
	case checks.KindRead:
		return g.Read(input.FilePath)
	case checks.KindWrite:
		content := input.Content
		if content == "" {
			content = input.NewString
		}
		return g.Write(input.FilePath, content)
	case checks.KindSearch:
		return g.Search(input.Pattern, input.Path)
	}
	return checks.CheckResult{Decision: checks.Allow}
}

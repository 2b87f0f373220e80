// Package shell decomposes raw shell command lines into discrete
// sub-commands for policy evaluation.
//
// Parsing uses the full Bash AST (mvdan.cc/sh), so commands inside
// pipelines, &&/||/; lists, subshells, and $()/backtick substitutions are
// all surfaced as individual sub-commands. When the AST parse fails the
// package falls back to a quote-aware tokenizer rather than giving up:
// a command the gate cannot see is a command the gate cannot block.
package shell

import (
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// Command is one sub-command extracted from a command line.
type Command struct {
	// Name is the resolved command name: wrapper commands (sudo, env,
	// time, nice) and any directory prefix are stripped.
	Name string
	// Args are the arguments after Name, with wrappers stripped.
	Args []string
	// RawName is the command word as written, before wrapper resolution.
	RawName string
	// HasSubst is true when an argument carries $(), backticks, or
	// process substitution, which static analysis cannot see through.
	HasSubst bool
	// Piped is true when the command reads stdin from a pipe.
	Piped bool
	// RedirPaths are targets of output redirections (>, >>).
	RedirPaths []string
}

// Tokens returns the resolved name followed by the arguments.
func (c Command) Tokens() []string {
	return append([]string{c.Name}, c.Args...)
}

// Text reconstructs the sub-command roughly as written, for messages.
func (c Command) Text() string {
	return strings.Join(append([]string{c.RawName}, c.Args...), " ")
}

// Result is the outcome of parsing one command line.
type Result struct {
	Commands []Command
	// Fallback is true when the AST parse failed and Commands came from
	// the best-effort tokenizer. Callers must not treat a fallback parse
	// as authoritative for ALLOW decisions.
	Fallback bool
}

// wrapperCommands run another command and are skipped when resolving names.
var wrapperCommands = map[string]bool{"sudo": true, "env": true, "time": true, "nice": true, "nohup": true}

// Parse decomposes a raw command line. It never returns an empty Result
// for non-blank input: if the AST parse fails, the fallback tokenizer
// supplies at least one command.
func Parse(raw string) Result {
	if strings.TrimSpace(raw) == "" {
		return Result{}
	}
	if cmds := parseAST(raw); len(cmds) > 0 {
		return Result{Commands: cmds}
	}
	return Result{Commands: fallbackParse(raw), Fallback: true}
}

// parseAST parses with the Bash AST and walks every node, including the
// interiors of command substitutions. Returns nil on parse failure.
func parseAST(raw string) []Command {
	parser := syntax.NewParser(syntax.KeepComments(false), syntax.Variant(syntax.LangBash))
	file, err := parser.Parse(strings.NewReader(raw), "")
	if err != nil {
		return nil
	}

	var commands []Command
	// pipeRecipients marks CallExprs on the right side of a pipe, visited
	// after their enclosing BinaryCmd.
	pipeRecipients := map[*syntax.CallExpr]bool{}

	syntax.Walk(file, func(node syntax.Node) bool {
		switch n := node.(type) {
		case *syntax.BinaryCmd:
			// Nested pipelines (a | b | c) are nested BinaryCmds; each
			// level marks its own right side as it is visited.
			if n.Op == syntax.Pipe || n.Op == syntax.PipeAll {
				if call, ok := n.Y.Cmd.(*syntax.CallExpr); ok {
					pipeRecipients[call] = true
				}
			}

		case *syntax.CallExpr:
			if len(n.Args) == 0 {
				return true
			}
			cmd := Command{
				RawName: wordText(n.Args[0]),
				Piped:   pipeRecipients[n],
			}
			if wordHasSubst(n.Args[0]) {
				cmd.HasSubst = true
			}
			var args []string
			for _, w := range n.Args[1:] {
				args = append(args, wordText(w))
				if wordHasSubst(w) {
					cmd.HasSubst = true
				}
			}
			cmd.Name, cmd.Args = resolveWrappers(cmd.RawName, args)
			commands = append(commands, cmd)

		case *syntax.Redirect:
			if n.Op == syntax.RdrOut || n.Op == syntax.AppOut ||
				n.Op == syntax.RdrAll || n.Op == syntax.AppAll {
				if p := wordText(n.Word); p != "" && len(commands) > 0 {
					last := &commands[len(commands)-1]
					last.RedirPaths = append(last.RedirPaths, p)
				}
			}
		}
		return true
	})
	return commands
}

// resolveWrappers strips directory prefixes and wrapper commands so
// "/usr/bin/sudo -u root rm -rf /" resolves to rm.
func resolveWrappers(name string, args []string) (string, []string) {
	cmdName := baseName(name)
	for wrapperCommands[cmdName] && len(args) > 0 {
		i := 0
		for i < len(args) && strings.HasPrefix(args[i], "-") {
			// Wrapper flags with a separate value (sudo -u root).
			if args[i] == "-u" || args[i] == "-g" {
				i++
			}
			i++
		}
		if i >= len(args) {
			return cmdName, nil
		}
		cmdName = baseName(args[i])
		args = args[i+1:]
	}
	return cmdName, args
}

func baseName(name string) string {
	if idx := strings.LastIndex(name, "/"); idx != -1 {
		return name[idx+1:]
	}
	return name
}

// wordText extracts the literal text of a word. Expansions are
// reconstructed as written ($VAR, ${VAR}); command substitutions become an
// opaque marker since their output is unknowable statically.
func wordText(w *syntax.Word) string {
	if w == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range w.Parts {
		switch p := part.(type) {
		case *syntax.Lit:
			sb.WriteString(p.Value)
		case *syntax.SglQuoted:
			sb.WriteString(p.Value)
		case *syntax.DblQuoted:
			for _, inner := range p.Parts {
				switch ip := inner.(type) {
				case *syntax.Lit:
					sb.WriteString(ip.Value)
				case *syntax.ParamExp:
					sb.WriteString(paramText(ip))
				}
			}
		case *syntax.ParamExp:
			sb.WriteString(paramText(p))
		case *syntax.CmdSubst:
			sb.WriteString("$(...)")
		}
	}
	return sb.String()
}

func paramText(p *syntax.ParamExp) string {
	if p.Param == nil {
		return ""
	}
	if p.Short {
		return "$" + p.Param.Value
	}
	return "${" + p.Param.Value + "}"
}

// wordHasSubst reports whether a word contains command or process
// substitution, directly or inside double quotes.
func wordHasSubst(w *syntax.Word) bool {
	if w == nil {
		return false
	}
	for _, part := range w.Parts {
		switch p := part.(type) {
		case *syntax.CmdSubst, *syntax.ProcSubst:
			return true
		case *syntax.DblQuoted:
			for _, inner := range p.Parts {
				switch inner.(type) {
				case *syntax.CmdSubst, *syntax.ProcSubst:
					return true
				}
			}
		}
	}
	return false
}

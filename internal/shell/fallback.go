package shell

import "strings"

// segment is one piece of a fallback split, with whether it reads stdin
// from a pipe.
type segment struct {
	text  string
	piped bool
}

// fallbackParse is the quote-aware tokenizer used when the AST parse
// fails (truncated heredocs, stray quotes, shell fragments). It splits on
// unquoted ;, &&, ||, |, and newlines, then whitespace-splits each piece.
// Separators inside single or double quotes do not split.
func fallbackParse(raw string) []Command {
	var commands []Command
	for _, seg := range splitUnquoted(raw) {
		tokens := tokenize(seg.text)
		if len(tokens) == 0 {
			continue
		}
		cmd := Command{RawName: tokens[0], Piped: seg.piped}
		cmd.Name, cmd.Args = resolveWrappers(tokens[0], tokens[1:])
		// Substitution syntax surviving in tokens means the real command
		// is hidden behind an expansion.
		for _, t := range tokens {
			if strings.Contains(t, "$(") || strings.Contains(t, "`") {
				cmd.HasSubst = true
				break
			}
		}
		commands = append(commands, cmd)
	}
	if len(commands) == 0 {
		// Keep at least the raw text visible to checks.
		commands = append(commands, Command{Name: strings.TrimSpace(raw), RawName: strings.TrimSpace(raw)})
	}
	return commands
}

// splitUnquoted splits raw on unquoted command separators.
func splitUnquoted(raw string) []segment {
	var (
		pieces    []segment
		current   strings.Builder
		inSgl     bool
		inDbl     bool
		escaped   bool
		nextPiped bool
	)
	flush := func(piped bool) {
		if s := strings.TrimSpace(current.String()); s != "" {
			pieces = append(pieces, segment{text: s, piped: nextPiped})
		}
		current.Reset()
		nextPiped = piped
	}
	runes := []rune(raw)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		if escaped {
			current.WriteRune(c)
			escaped = false
			continue
		}
		switch {
		case c == '\\' && !inSgl:
			current.WriteRune(c)
			escaped = true
		case c == '\'' && !inDbl:
			inSgl = !inSgl
			current.WriteRune(c)
		case c == '"' && !inSgl:
			inDbl = !inDbl
			current.WriteRune(c)
		case inSgl || inDbl:
			current.WriteRune(c)
		case c == ';' || c == '\n':
			flush(false)
		case c == '&' && i+1 < len(runes) && runes[i+1] == '&':
			flush(false)
			i++
		case c == '|':
			if i+1 < len(runes) && runes[i+1] == '|' {
				i++
				flush(false)
			} else {
				flush(true)
			}
		default:
			current.WriteRune(c)
		}
	}
	flush(false)
	return pieces
}

// tokenize whitespace-splits a command piece, honoring quotes and
// stripping the outer quote characters.
func tokenize(piece string) []string {
	var (
		tokens  []string
		current strings.Builder
		inSgl   bool
		inDbl   bool
		escaped bool
		started bool
	)
	flush := func() {
		if started {
			tokens = append(tokens, current.String())
			current.Reset()
			started = false
		}
	}
	for _, c := range piece {
		if escaped {
			current.WriteRune(c)
			started = true
			escaped = false
			continue
		}
		switch {
		case c == '\\' && !inSgl:
			escaped = true
		case c == '\'' && !inDbl:
			inSgl = !inSgl
			started = true
		case c == '"' && !inSgl:
			inDbl = !inDbl
			started = true
		case (c == ' ' || c == '\t') && !inSgl && !inDbl:
			flush()
		default:
			current.WriteRune(c)
			started = true
		}
	}
	flush()
	return tokens
}

package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/maxkoreaexport/polyakov-claude-skills/internal/pathmatch"
)

// CompiledCodePattern is a dangerous code idiom with its compiled regex.
type CompiledCodePattern struct {
	Regexp      *regexp.Regexp
	Description string
}

// CompiledContent holds the compiled risk signal regex lists.
type CompiledContent struct {
	Network          []*regexp.Regexp
	SensitiveAccess  []*regexp.Regexp
	SecretScanning   []*regexp.Regexp
	SystemRecon      []*regexp.Regexp
	DynamicExecution []*regexp.Regexp
	ShellExecution   []*regexp.Regexp
}

// Compiled is the policy with every regex and glob compiled. It is built
// once at startup and read-only afterwards, so checks may share it across
// invocations without synchronization.
type Compiled struct {
	Raw *Config

	ForbiddenRead  *pathmatch.Matcher
	ProtectedPaths *pathmatch.Matcher
	CodePatterns   []CompiledCodePattern
	Content        CompiledContent
}

// Compile compiles every pattern in the config, collecting all failures
// into one report. A broken pattern is a broken security policy, so
// callers treat any error here as fatal at startup.
func (c *Config) Compile() (*Compiled, error) {
	var errs []string
	cc := &Compiled{Raw: c}

	var err error
	if cc.ForbiddenRead, err = pathmatch.NewMixed(c.Secrets.ForbiddenRead); err != nil {
		errs = append(errs, fmt.Sprintf("secrets.forbidden_read: %v", err))
	}
	if cc.ProtectedPaths, err = pathmatch.NewMixed(c.Deletion.ProtectedPaths); err != nil {
		errs = append(errs, fmt.Sprintf("deletion.protected_paths: %v", err))
	}

	for _, cp := range c.Secrets.CodePatterns {
		re, err := regexp.Compile(cp.Pattern)
		if err != nil {
			errs = append(errs, fmt.Sprintf("secrets.code_patterns: %q: %v", cp.Pattern, err))
			continue
		}
		cc.CodePatterns = append(cc.CodePatterns, CompiledCodePattern{Regexp: re, Description: cp.Description})
	}

	compileList := func(field string, patterns []string) []*regexp.Regexp {
		out := make([]*regexp.Regexp, 0, len(patterns))
		for _, p := range patterns {
			re, err := regexp.Compile(p)
			if err != nil {
				errs = append(errs, fmt.Sprintf("content.%s: %q: %v", field, p, err))
				continue
			}
			out = append(out, re)
		}
		return out
	}
	cc.Content = CompiledContent{
		Network:          compileList("network", c.Content.Network),
		SensitiveAccess:  compileList("sensitive_access", c.Content.SensitiveAccess),
		SecretScanning:   compileList("secret_scanning", c.Content.SecretScanning),
		SystemRecon:      compileList("system_recon", c.Content.SystemRecon),
		DynamicExecution: compileList("dynamic_execution", c.Content.DynamicExecution),
		ShellExecution:   compileList("shell_execution", c.Content.ShellExecution),
	}

	if len(errs) == 0 {
		return cc, nil
	}
	var sb strings.Builder
	sb.WriteString("config compile failed:\n")
	for i, e := range errs {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, e)
	}
	return nil, errors.New(sb.String())
}

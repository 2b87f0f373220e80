package checks

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/maxkoreaexport/polyakov-claude-skills/internal/config"
)

// Signal is one risk indicator found in script content.
type Signal struct {
	Category    string
	Description string
	Line        int
}

// Analyzer scans script content for risk signal combinations. A single
// category rarely means anything: network access plus secret access is
// exfiltration, network plus system recon is fingerprinting. The scan is
// a pure function of content and config, safe to run concurrently.
type Analyzer struct {
	cfg *config.Compiled

	// envVarPatterns are generated from the configured secret env var
	// names: getenv/environ access to any of them is a secret signal.
	envVarPatterns []envVarPattern
}

type envVarPattern struct {
	re   *regexp.Regexp
	name string
}

// NewAnalyzer creates an Analyzer and generates the env var regexes.
func NewAnalyzer(cc *config.Compiled) *Analyzer {
	a := &Analyzer{cfg: cc}
	for _, name := range cc.Raw.Secrets.SecretEnvVars {
		re, err := regexp.Compile(`(getenv|environ)\s*[\[\(]['"]?` + regexp.QuoteMeta(name) + `['"]?[\]\)]`)
		if err != nil {
			continue
		}
		a.envVarPatterns = append(a.envVarPatterns, envVarPattern{re: re, name: name})
	}
	return a
}

func (a *Analyzer) Name() string { return "content" }

// ScriptFile reports whether the path has an extension the analyzer
// knows how to scan.
func ScriptFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, s := range scriptExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// CheckFile scans a script on disk. Unreadable or non-script files yield
// no signal: the analyzer only ever adds caution, never removes it.
func (a *Analyzer) CheckFile(path string) CheckResult {
	if !ScriptFile(path) {
		return allowed()
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return allowed()
	}
	return a.CheckContent(string(content), path)
}

// CheckContent scans content and combines the signals into a verdict.
func (a *Analyzer) CheckContent(content, filePath string) CheckResult {
	signals := a.collect(content)
	if len(signals) == 0 {
		return allowed()
	}

	byCategory := map[string][]Signal{}
	for _, s := range signals {
		byCategory[s.Category] = append(byCategory[s.Category], s)
	}
	hasNetwork := len(byCategory["network"]) > 0
	hasSecrets := len(byCategory["sensitive-access"]) > 0 ||
		len(byCategory["code-secret-pattern"]) > 0 ||
		len(byCategory["secret-env-var"]) > 0

	name := filepath.Base(filePath)
	// Priority order: exfiltration, secret scanning, dynamic execution,
	// fingerprinting. First match names the verdict.
	switch {
	case hasNetwork && hasSecrets:
		return ask(a.Name(),
			fmt.Sprintf("Possible exfiltration in %s: network access combined with secret access", name),
			"The script both reads secrets and talks to the network:\n"+
				describe(byCategory, "network", "sensitive-access", "code-secret-pattern", "secret-env-var")+
				"Review the script before running it.")
	case len(byCategory["secret-scan"]) > 0:
		return ask(a.Name(),
			fmt.Sprintf("Secret scanning pattern in %s", name),
			"The script searches for credentials:\n"+
				describe(byCategory, "secret-scan")+
				"Review the script before running it.")
	case len(byCategory["dynamic-exec"]) > 0:
		return ask(a.Name(),
			fmt.Sprintf("Dynamic code execution in %s", name),
			"The script executes generated code:\n"+
				describe(byCategory, "dynamic-exec")+
				"Review the script before running it.")
	case hasNetwork && len(byCategory["system-recon"]) > 0:
		return ask(a.Name(),
			fmt.Sprintf("Possible fingerprinting in %s: network access combined with system reconnaissance", name),
			"The script gathers system information and talks to the network:\n"+
				describe(byCategory, "network", "system-recon")+
				"Review the script before running it.")
	}
	return allowed()
}

// collect runs every configured regex and records the first match per
// pattern with its line number.
func (a *Analyzer) collect(content string) []Signal {
	var signals []Signal
	add := func(category, description string, re *regexp.Regexp) {
		loc := re.FindStringIndex(content)
		if loc == nil {
			return
		}
		signals = append(signals, Signal{
			Category:    category,
			Description: description,
			Line:        lineOf(content, loc[0]),
		})
	}

	for _, re := range a.cfg.Content.Network {
		add("network", re.String(), re)
	}
	for _, re := range a.cfg.Content.SensitiveAccess {
		add("sensitive-access", re.String(), re)
	}
	for _, re := range a.cfg.Content.SecretScanning {
		add("secret-scan", re.String(), re)
	}
	for _, re := range a.cfg.Content.SystemRecon {
		add("system-recon", re.String(), re)
	}
	for _, re := range a.cfg.Content.DynamicExecution {
		add("dynamic-exec", re.String(), re)
	}
	for _, re := range a.cfg.Content.ShellExecution {
		add("shell-exec", re.String(), re)
	}
	for _, cp := range a.cfg.CodePatterns {
		add("code-secret-pattern", cp.Description, cp.Regexp)
	}
	for _, ev := range a.envVarPatterns {
		add("secret-env-var", "Access to "+ev.name, ev.re)
	}
	return signals
}

// describe formats the matched signals, capped per category so guidance
// stays readable.
func describe(byCategory map[string][]Signal, categories ...string) string {
	const maxPerCategory = 3
	var sb strings.Builder
	for _, category := range categories {
		for i, s := range byCategory[category] {
			if i >= maxPerCategory {
				fmt.Fprintf(&sb, "  - (%d more %s signals)\n", len(byCategory[category])-maxPerCategory, category)
				break
			}
			fmt.Fprintf(&sb, "  - [%s] line %d: %s\n", category, s.Line, s.Description)
		}
	}
	return sb.String()
}

func lineOf(content string, offset int) int {
	return strings.Count(content[:offset], "\n") + 1
}

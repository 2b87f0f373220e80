package checks

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/maxkoreaexport/polyakov-claude-skills/internal/config"
	"github.com/maxkoreaexport/polyakov-claude-skills/internal/shell"
)

// DownloadCheck classifies downloads by what lands on disk. Scripts pass
// (their content is inspected at execution time), data files and
// archives pass (archives get checked at unpack time), and opaque
// binaries ask, since nothing can content-check them.
type DownloadCheck struct {
	cfg *config.Compiled
}

var downloadCommands = map[string]bool{
	"curl": true, "wget": true, "fetch": true, "aria2c": true,
}

// scriptExtensions get a pass here and a content scan when executed.
var scriptExtensions = []string{".py", ".sh", ".bash", ".rb", ".pl", ".js"}

// NewDownloadCheck creates a DownloadCheck.
func NewDownloadCheck(cc *config.Compiled) *DownloadCheck {
	return &DownloadCheck{cfg: cc}
}

func (c *DownloadCheck) Name() string { return "download" }

// Evaluate inspects every download sub-command. Piping a download into a
// shell denies here as well as in the bypass check, so the verdict holds
// even if the chain order changes.
func (c *DownloadCheck) Evaluate(req *Request) CheckResult {
	if c.cfg.Raw.Download.BlockPipeToShell {
		shellTargets := map[string]bool{}
		for _, t := range c.cfg.Raw.Bypass.ShellPipeTargets {
			shellTargets[t] = true
		}
		for _, cmd := range req.Commands {
			if cmd.Piped && shellTargets[cmd.Name] {
				return deny(c.Name(),
					"Downloading and piping to shell detected",
					"Cannot pipe downloads to shell. Download the file, review it, then run.")
			}
		}
	}

	for _, cmd := range req.Commands {
		if !downloadCommands[cmd.Name] {
			continue
		}
		if res := c.checkDownload(cmd); !res.Allowed() {
			return res
		}
	}
	return allowed()
}

func (c *DownloadCheck) checkDownload(cmd shell.Command) CheckResult {
	url := extractURL(cmd.Args)
	if url == "" {
		return allowed()
	}
	extension := downloadExtension(url, extractOutputPath(cmd))

	if extension == "" {
		return allowed()
	}
	for _, ext := range scriptExtensions {
		if strings.HasSuffix(extension, ext) {
			// Content analysis happens when the script is executed.
			return allowed()
		}
	}
	for _, ext := range c.cfg.Raw.Download.ConfirmExtensions {
		if strings.HasSuffix(extension, ext) {
			return ask(c.Name(),
				fmt.Sprintf("Download of binary executable: *%s", extension),
				fmt.Sprintf("Binary files cannot be content-checked. Run it yourself if intended: `%s`", cmd.Text()))
		}
	}
	// Data files and archives pass; archives get re-checked at unpack.
	return allowed()
}

func extractURL(args []string) string {
	for _, arg := range args {
		if strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://") ||
			strings.HasPrefix(arg, "ftp://") {
			return arg
		}
	}
	return ""
}

// extractOutputPath finds the download target: -o/--output for curl,
// -O/--output-document for wget. Curl's uppercase -O takes no argument.
func extractOutputPath(cmd shell.Command) string {
	for i, arg := range cmd.Args {
		switch {
		case arg == "-o" || arg == "--output" || arg == "--output-document":
			if i+1 < len(cmd.Args) && !strings.HasPrefix(cmd.Args[i+1], "-") {
				return cmd.Args[i+1]
			}
		case strings.HasPrefix(arg, "-o="):
			return arg[len("-o="):]
		case strings.HasPrefix(arg, "--output="):
			return arg[len("--output="):]
		case cmd.Name == "wget" && arg == "-O":
			if i+1 < len(cmd.Args) && !strings.HasPrefix(cmd.Args[i+1], "-") {
				return cmd.Args[i+1]
			}
		}
	}
	return ""
}

// downloadExtension prefers the output path over the URL and keeps
// double extensions (.tar.gz) intact.
func downloadExtension(url, outputPath string) string {
	source := outputPath
	if source == "" {
		source = strings.Split(url, "?")[0]
	}
	ext := filepath.Ext(source)
	base := strings.TrimSuffix(source, ext)
	if ext2 := filepath.Ext(base); ext2 != "" && looksLikeExt(ext2) {
		return ext2 + ext
	}
	return ext
}

// looksLikeExt filters out dots that are not extensions (version numbers
// in URLs, "v1.2" directories).
func looksLikeExt(ext string) bool {
	if len(ext) < 2 || len(ext) > 6 {
		return false
	}
	for _, c := range ext[1:] {
		if (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') {
			return false
		}
	}
	return true
}

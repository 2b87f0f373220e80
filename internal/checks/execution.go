package checks

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/maxkoreaexport/polyakov-claude-skills/internal/boundary"
	"github.com/maxkoreaexport/polyakov-claude-skills/internal/config"
	"github.com/maxkoreaexport/polyakov-claude-skills/internal/shell"
)

// ExecutionCheck asks before chmod makes an executable out of something
// that is demonstrably a program: ELF/PE/Mach-O magic or a shebang.
// Plain data files getting +x pass, as does everything when the mode
// adds no execute bit.
type ExecutionCheck struct {
	cfg *config.Compiled
	b   *boundary.Boundary
}

// binaryMagic maps human-readable file types to their leading bytes.
var binaryMagic = map[string][]byte{
	"ELF executable":      {0x7f, 'E', 'L', 'F'},
	"Windows PE":          {'M', 'Z'},
	"Mach-O 32-bit":       {0xfe, 0xed, 0xfa, 0xce},
	"Mach-O 64-bit":       {0xfe, 0xed, 0xfa, 0xcf},
	"Mach-O universal":    {0xca, 0xfe, 0xba, 0xbe},
	"Script with shebang": {'#', '!'},
}

// NewExecutionCheck creates an ExecutionCheck.
func NewExecutionCheck(cc *config.Compiled, b *boundary.Boundary) *ExecutionCheck {
	return &ExecutionCheck{cfg: cc, b: b}
}

func (c *ExecutionCheck) Name() string { return "execution" }

// Evaluate inspects chmod sub-commands.
func (c *ExecutionCheck) Evaluate(req *Request) CheckResult {
	if !c.cfg.Raw.Download.DetectBinaryMagic {
		return allowed()
	}
	for _, cmd := range req.Commands {
		if cmd.Name != "chmod" {
			continue
		}
		if res := c.checkChmod(cmd); !res.Allowed() {
			return res
		}
	}
	return allowed()
}

func (c *ExecutionCheck) checkChmod(cmd shell.Command) CheckResult {
	if !addsExecuteBit(cmd.Args) {
		return allowed()
	}

	for _, arg := range cmd.Args {
		if strings.HasPrefix(arg, "-") || isModeArg(arg) {
			continue
		}
		abs := arg
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(c.b.Root(), abs)
		}
		if fileType, ok := sniffExecutable(abs); ok {
			return ask(c.Name(),
				fmt.Sprintf("chmod +x on %s: %s", fileType, arg),
				fmt.Sprintf("The file is a %s. Run it yourself if intended: `chmod +x %s`", fileType, arg))
		}
	}
	return allowed()
}

// addsExecuteBit detects symbolic +x modes and numeric modes with any
// execute bit set.
func addsExecuteBit(args []string) bool {
	for _, arg := range args {
		if strings.Contains(arg, "+x") {
			return true
		}
		if isNumericMode(arg) {
			for _, digit := range arg {
				if (digit-'0')&1 != 0 {
					return true
				}
			}
		}
	}
	return false
}

// isModeArg recognizes chmod mode syntax so it is not mistaken for a
// target path.
func isModeArg(arg string) bool {
	if strings.HasPrefix(arg, "+") || isNumericMode(arg) {
		return true
	}
	if len(arg) >= 2 && strings.ContainsAny(arg[:1], "ugoa") && strings.ContainsAny(arg, "+-=") {
		return true
	}
	return false
}

func isNumericMode(s string) bool {
	if len(s) < 3 || len(s) > 4 {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '7' {
			return false
		}
	}
	return true
}

// sniffExecutable reads the leading bytes of a file and matches them
// against known executable formats. Unreadable files and directories
// yield no signal.
func sniffExecutable(path string) (string, bool) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", false
	}
	f, err := os.Open(path)
	if err != nil {
		return "", false
	}
	defer f.Close()

	header := make([]byte, 8)
	n, err := f.Read(header)
	if err != nil || n < 2 {
		return "", false
	}
	for fileType, magic := range binaryMagic {
		if bytes.HasPrefix(header[:n], magic) {
			return fileType, true
		}
	}
	return "", false
}

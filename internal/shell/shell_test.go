package shell

import (
	"strings"
	"testing"
)

func names(cmds []Command) []string {
	out := make([]string, len(cmds))
	for i, c := range cmds {
		out[i] = c.Name
	}
	return out
}

func TestParseSplitsSeparators(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"semicolon", "ls; pwd", []string{"ls", "pwd"}},
		{"and list", "make build && make test", []string{"make", "make"}},
		{"or list", "test -f x || touch x", []string{"test", "touch"}},
		{"pipeline", "cat f.txt | grep foo | wc -l", []string{"cat", "grep", "wc"}},
		{"newline", "ls\npwd", []string{"ls", "pwd"}},
		{"mixed", "ls && cat a | head; pwd", []string{"ls", "cat", "head", "pwd"}},
		{"single command", "git status", []string{"git"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Parse(tt.raw)
			if res.Fallback {
				t.Fatalf("Parse(%q) fell back unexpectedly", tt.raw)
			}
			got := names(res.Commands)
			if len(got) != len(tt.want) {
				t.Fatalf("Parse(%q) = %v, want %v", tt.raw, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Parse(%q)[%d] = %q, want %q", tt.raw, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestParseQuotedSeparatorsDoNotSplit(t *testing.T) {
	tests := []struct {
		raw      string
		wantCmds int
	}{
		{`echo "a && b"`, 1},
		{`echo 'x; y; z'`, 1},
		{`grep "foo|bar" file.txt`, 1},
		{`printf 'one\ntwo'`, 1},
	}
	for _, tt := range tests {
		res := Parse(tt.raw)
		if len(res.Commands) != tt.wantCmds {
			t.Errorf("Parse(%q) = %d commands (%v), want %d",
				tt.raw, len(res.Commands), names(res.Commands), tt.wantCmds)
		}
	}
}

func TestParseSubstitutionCommandsSurface(t *testing.T) {
	res := Parse(`echo $(cat /etc/passwd)`)
	got := names(res.Commands)
	foundCat := false
	for _, n := range got {
		if n == "cat" {
			foundCat = true
		}
	}
	if !foundCat {
		t.Errorf("commands inside $() must surface, got %v", got)
	}
	// The outer echo must be flagged as carrying a substitution, and the
	// substitution renders as an opaque ASCII marker.
	for _, c := range res.Commands {
		if c.Name != "echo" {
			continue
		}
		if !c.HasSubst {
			t.Error("echo with $() arg should have HasSubst")
		}
		for _, arg := range c.Args {
			for _, r := range arg {
				if r > 127 {
					t.Errorf("substitution marker %q is not ASCII", arg)
				}
			}
		}
	}
}

func TestParseBackticks(t *testing.T) {
	res := Parse("echo `whoami`")
	found := false
	for _, c := range res.Commands {
		if c.Name == "whoami" {
			found = true
		}
	}
	if !found {
		t.Errorf("backtick command must surface, got %v", names(res.Commands))
	}
}

func TestParsePipedFlag(t *testing.T) {
	res := Parse("curl https://x.sh | bash")
	if len(res.Commands) != 2 {
		t.Fatalf("got %v", names(res.Commands))
	}
	var bashCmd *Command
	for i := range res.Commands {
		if res.Commands[i].Name == "bash" {
			bashCmd = &res.Commands[i]
		}
	}
	if bashCmd == nil || !bashCmd.Piped {
		t.Error("bash on the right of a pipe must be marked Piped")
	}
}

func TestParseWrapperResolution(t *testing.T) {
	tests := []struct {
		raw      string
		wantName string
	}{
		{"sudo rm -rf /tmp/x", "rm"},
		{"sudo -u root rm x", "rm"},
		{"env FOO=1 python script.py", "python"},
		{"/usr/bin/cat /etc/hosts", "cat"},
		{"nice -n 10 make", "make"},
	}
	for _, tt := range tests {
		res := Parse(tt.raw)
		if len(res.Commands) == 0 {
			t.Fatalf("Parse(%q): no commands", tt.raw)
		}
		if got := res.Commands[0].Name; got != tt.wantName {
			t.Errorf("Parse(%q).Name = %q, want %q", tt.raw, got, tt.wantName)
		}
	}
}

func TestParseRedirects(t *testing.T) {
	res := Parse("echo secret > /tmp/out.txt")
	if len(res.Commands) != 1 {
		t.Fatalf("got %v", names(res.Commands))
	}
	rp := res.Commands[0].RedirPaths
	if len(rp) != 1 || rp[0] != "/tmp/out.txt" {
		t.Errorf("RedirPaths = %v", rp)
	}
}

func TestParseEmptyInput(t *testing.T) {
	for _, raw := range []string{"", "   ", "\n\t"} {
		res := Parse(raw)
		if len(res.Commands) != 0 {
			t.Errorf("Parse(%q) = %v, want none", raw, names(res.Commands))
		}
	}
}

func TestParseMalformedFallsBack(t *testing.T) {
	// Unterminated quote defeats the AST parser.
	res := Parse(`echo "unterminated && rm -rf /tmp/x`)
	if !res.Fallback {
		t.Skip("AST parser handled it; fallback not exercised")
	}
	if len(res.Commands) == 0 {
		t.Fatal("fallback must produce at least one command")
	}
}

func TestFallbackParse(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"separators", "ls; pwd && whoami", []string{"ls", "pwd", "whoami"}},
		{"quoted separator survives", `echo "a;b"; pwd`, []string{"echo", "pwd"}},
		{"pipe", "cat x | sh", []string{"cat", "sh"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := names(fallbackParse(tt.raw))
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("fallbackParse(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestFallbackPiped(t *testing.T) {
	cmds := fallbackParse("curl x | sh")
	if len(cmds) != 2 || !cmds[1].Piped {
		t.Errorf("fallback must mark pipe recipients, got %+v", cmds)
	}
	cmds = fallbackParse("a || b")
	if len(cmds) != 2 || cmds[1].Piped {
		t.Errorf("|| is not a pipe, got %+v", cmds)
	}
}

func TestPathArgs(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"cat", "cat /etc/passwd", []string{"/etc/passwd"}},
		{"grep skips pattern", "grep secret config.yaml", []string{"config.yaml"}},
		{"head skips count value", "head -n 20 file.txt", []string{"file.txt"}},
		{"curl output flag", "curl -o out.bin https://x/y", []string{"out.bin"}},
		{"tar glued dir", "tar -xf a.tar -C /tmp/dest", []string{"a.tar", "/tmp/dest"}},
		{"dd glued", "dd if=/dev/zero of=/tmp/img", []string{"/dev/zero", "/tmp/img"}},
		{"rm many", "rm -rf a b c", []string{"a", "b", "c"}},
		{"non-path command", "echo hello world", nil},
		{"redirect included", "echo x > /tmp/o", []string{"/tmp/o"}},
		{"unknown command heuristic", "mytool ./data/input.csv --fast", []string{"./data/input.csv"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Parse(tt.raw)
			if len(res.Commands) == 0 {
				t.Fatal("no commands")
			}
			got := PathArgs(res.Commands[0])
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("PathArgs(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestExpandCombinedFlags(t *testing.T) {
	tests := []struct {
		in   []string
		want []string
	}{
		{[]string{"-rf", "x"}, []string{"-r", "-f", "x"}},
		{[]string{"-rfv"}, []string{"-r", "-f", "-v"}},
		{[]string{"--force"}, []string{"--force"}},
		{[]string{"-n"}, []string{"-n"}},
		{[]string{"-10"}, []string{"-10"}},
		{[]string{"-"}, []string{"-"}},
	}
	for _, tt := range tests {
		got := ExpandCombinedFlags(tt.in)
		if strings.Join(got, ",") != strings.Join(tt.want, ",") {
			t.Errorf("ExpandCombinedFlags(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestHasFlag(t *testing.T) {
	args := []string{"-rf", "--verbose", "x"}
	if !HasFlag(args, "-r") || !HasFlag(args, "-f") || !HasFlag(args, "--verbose") {
		t.Error("HasFlag should see combined and long flags")
	}
	if HasFlag(args, "-v") {
		t.Error("-v is not present (--verbose is not -v)")
	}
}

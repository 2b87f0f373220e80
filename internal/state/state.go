// Package state manages the guardian state directory (~/.guardian):
// the PID file, background log, decision socket, and the lifecycle of
// the backgrounded decision service.
package state

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/maxkoreaexport/polyakov-claude-skills/internal/fileutil"
)

const (
	pidFileName  = "guardian.pid"
	logFileName  = "guardian.log"
	sockFileName = "guardian.sock"
)

// Dir returns the guardian state directory and creates it if needed.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	dir := filepath.Join(home, ".guardian")
	_ = fileutil.SecureMkdirAll(dir) //nolint:errcheck // best effort - dir may exist
	return dir
}

func pidFile() string {
	return filepath.Join(Dir(), pidFileName)
}

// LogFile returns the background service log path.
func LogFile() string {
	return filepath.Join(Dir(), logFileName)
}

// LogFileDisplay returns a display-friendly log path using ~ for home.
func LogFileDisplay() string {
	p := LogFile()
	if home, err := os.UserHomeDir(); err == nil {
		if rel, err := filepath.Rel(home, p); err == nil && !filepath.IsAbs(rel) {
			return "~/" + rel
		}
	}
	return p
}

// SocketFile returns the default decision socket path.
func SocketFile() string {
	return filepath.Join(Dir(), sockFileName)
}

// ReadPID reads the PID of the running service from the PID file.
func ReadPID() (int, error) {
	data, err := os.ReadFile(pidFile())
	if err != nil {
		return 0, err
	}

	pid, err := strconv.Atoi(string(data))
	if err != nil {
		return 0, fmt.Errorf("invalid PID file content: %w", err)
	}
	// Linux caps PIDs at 2^22.
	if pid < 1 || pid > 4194304 {
		return 0, fmt.Errorf("invalid PID value: %d", pid)
	}
	return pid, nil
}

// RemovePID removes the PID file.
func RemovePID() error {
	return os.Remove(pidFile())
}

// IsDaemonMode reports whether this process was started by Daemonize.
func IsDaemonMode() bool {
	return os.Getenv("GUARDIAN_DAEMON") == "1"
}

// propagatedEnvVars are forwarded into the background process. The
// restricted environment keeps everything else out of the daemon.
var propagatedEnvVars = []string{
	"GUARDIAN_PROJECT_DIR", "GUARDIAN_CONFIG", "GUARDIAN_LOG_LEVEL",
	"GUARDIAN_LOG_FILE", "GUARDIAN_AUDIT_KEY", "GUARDIAN_AUDIT_DB",
	"GUARDIAN_SOCKET", "CLAUDE_PROJECT_DIR",
}

func daemonEnv() []string {
	env := []string{
		"PATH=" + os.Getenv("PATH"),
		"HOME=" + os.Getenv("HOME"),
		"USER=" + os.Getenv("USER"),
		"GUARDIAN_DAEMON=1",
	}
	for _, key := range propagatedEnvVars {
		if v := os.Getenv(key); v != "" {
			env = append(env, key+"="+v)
		}
	}
	return env
}

// daemonArgs rebuilds the argument list for the re-exec, inserting
// --daemon-mode after the subcommand.
func daemonArgs(args []string) []string {
	out := make([]string, 0, len(args)+1)
	if len(args) > 0 {
		out = append(out, args[0], "--daemon-mode")
		out = append(out, args[1:]...)
	} else {
		out = append(out, "--daemon-mode")
	}
	return out
}

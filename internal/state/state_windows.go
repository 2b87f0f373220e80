//go:build windows

package state

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"

	"golang.org/x/sys/windows"

	"github.com/maxkoreaexport/polyakov-claude-skills/internal/fileutil"
)

// pidLockFile holds the open PID file to maintain the LockFileEx lock
// for the lifetime of the service process.
var pidLockFile *os.File

// WritePID writes the current PID with an exclusive LockFileEx lock.
// The lock sits at a high offset so other processes can still read the
// PID bytes while two services remain mutually exclusive.
func WritePID() error {
	path := pidFile()
	f, err := fileutil.SecureOpenFile(path, os.O_CREATE|os.O_WRONLY)
	if err != nil {
		return fmt.Errorf("open PID file: %w", err)
	}
	ol := &windows.Overlapped{Offset: 0x7FFFFFFF}
	err = windows.LockFileEx(
		windows.Handle(f.Fd()),
		windows.LOCKFILE_EXCLUSIVE_LOCK|windows.LOCKFILE_FAIL_IMMEDIATELY,
		0, 1, 0, ol,
	)
	if err != nil {
		f.Close()
		return fmt.Errorf("another instance is running (LockFileEx %s): %w", path, err)
	}
	if err := f.Truncate(0); err != nil {
		f.Close()
		return fmt.Errorf("truncate PID file: %w", err)
	}
	if _, err := fmt.Fprintf(f, "%d", os.Getpid()); err != nil {
		f.Close()
		return fmt.Errorf("write PID file: %w", err)
	}
	pidLockFile = f
	return nil
}

// CleanupPID releases the lock and removes the PID file. Named pipes
// are reclaimed by the kernel.
func CleanupPID() {
	if pidLockFile != nil {
		pidLockFile.Close()
		pidLockFile = nil
	}
	_ = os.Remove(pidFile())
}

// IsRunning checks whether the service is alive by opening the process.
func IsRunning() (bool, int) {
	pid, err := ReadPID()
	if err != nil {
		return false, 0
	}

	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		_ = RemovePID() //nolint:errcheck // cleanup best effort
		return false, 0
	}
	windows.CloseHandle(h)
	return true, pid
}

// Stop terminates the running service. Windows has no SIGTERM
// equivalent, so this goes straight to TerminateProcess.
func Stop() error {
	running, pid := IsRunning()
	if !running {
		return errors.New("guardian is not running")
	}

	h, err := windows.OpenProcess(windows.PROCESS_TERMINATE|windows.SYNCHRONIZE, false, uint32(pid))
	if err != nil {
		return fmt.Errorf("failed to open process: %w", err)
	}
	defer windows.CloseHandle(h)

	if err := windows.TerminateProcess(h, 1); err != nil {
		return fmt.Errorf("failed to stop guardian: %w", err)
	}
	_, _ = windows.WaitForSingleObject(h, 3000)

	_ = RemovePID() //nolint:errcheck // cleanup best effort
	return nil
}

// Daemonize re-executes the program detached from the console via
// CREATE_NEW_PROCESS_GROUP, with output going to the state log.
func Daemonize(args []string) (int, error) {
	logFile, err := fileutil.SecureOpenFile(LogFile(), os.O_CREATE|os.O_WRONLY|os.O_APPEND)
	if err != nil {
		return 0, fmt.Errorf("failed to open log file: %w", err)
	}

	executable, err := os.Executable()
	if err != nil {
		return 0, fmt.Errorf("failed to get executable path: %w", err)
	}
	if !filepath.IsAbs(executable) {
		return 0, fmt.Errorf("executable path must be absolute: %s", executable)
	}

	cmd := exec.CommandContext(context.Background(), executable, daemonArgs(args)...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.Stdin = nil
	cmd.Env = daemonEnv()
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: windows.CREATE_NEW_PROCESS_GROUP | windows.DETACHED_PROCESS,
	}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("failed to start background service: %w", err)
	}

	pid := cmd.Process.Pid
	_ = cmd.Process.Release()
	return pid, nil
}

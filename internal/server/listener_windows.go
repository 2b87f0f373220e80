//go:build windows

package server

import (
	"fmt"
	"net"
	"path/filepath"

	"github.com/Microsoft/go-winio"
)

// pipeName derives the named pipe path from the configured socket path.
// The pipe namespace is global; the base name keeps per-project sockets
// distinct.
func pipeName(socketPath string) string {
	return `\\.\pipe\guardian-` + filepath.Base(socketPath)
}

// apiListener creates a Windows named pipe listener. The default DACL
// (creator + local admins) is the access boundary.
func apiListener(socketPath string) (net.Listener, error) {
	name := pipeName(socketPath)
	ln, err := winio.ListenPipe(name, &winio.PipeConfig{MessageMode: false})
	if err != nil {
		return nil, fmt.Errorf("listen pipe %s: %w", name, err)
	}
	return ln, nil
}

// cleanupSocket is a no-op on Windows; the kernel reclaims named pipes.
func cleanupSocket(_ string) {}

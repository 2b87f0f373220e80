//go:build !windows

package fileutil

import "os"

// SecureWriteFile writes data readable by the owner only.
func SecureWriteFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0600)
}

// SecureMkdirAll creates a directory tree traversable by the owner only.
func SecureMkdirAll(path string) error {
	return os.MkdirAll(path, 0700)
}

// SecureOpenFile opens a file for writing with owner-only mode bits.
func SecureOpenFile(path string, flag int) (*os.File, error) {
	return os.OpenFile(path, flag, 0600)
}

package fileutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestSecureWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.key")
	if err := SecureWriteFile(path, []byte("secret")); err != nil {
		t.Fatalf("SecureWriteFile: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "secret" {
		t.Errorf("content = %q", data)
	}

	if runtime.GOOS != "windows" {
		fi, err := os.Stat(path)
		if err != nil {
			t.Fatalf("Stat: %v", err)
		}
		if perm := fi.Mode().Perm(); perm != 0600 {
			t.Errorf("mode = %o, want 0600", perm)
		}
	}
}

func TestSecureMkdirAll(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state", "nested")
	if err := SecureMkdirAll(dir); err != nil {
		t.Fatalf("SecureMkdirAll: %v", err)
	}

	fi, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if !fi.IsDir() {
		t.Fatal("not a directory")
	}
	if runtime.GOOS != "windows" {
		if perm := fi.Mode().Perm(); perm != 0700 {
			t.Errorf("mode = %o, want 0700", perm)
		}
	}

	// Idempotent on an existing directory.
	if err := SecureMkdirAll(dir); err != nil {
		t.Errorf("second SecureMkdirAll: %v", err)
	}
}

func TestSecureOpenFileAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "service.log")

	for _, chunk := range []string{"first\n", "second\n"} {
		f, err := SecureOpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND)
		if err != nil {
			t.Fatalf("SecureOpenFile: %v", err)
		}
		if _, err := f.WriteString(chunk); err != nil {
			t.Fatalf("WriteString: %v", err)
		}
		f.Close()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "first\nsecond\n" {
		t.Errorf("content = %q", data)
	}
}

// Package fileutil creates owner-only files and directories. The state
// directory, decision log, and audit database all hold material that
// must not be readable by other local users.
//
// Unix relies on mode bits (0600, 0700). Windows ignores those bits, so
// there a protected DACL granting access to the current user alone is
// applied instead.
package fileutil

package cleanup

import "os"

// PathDeleter physically removes workflow files and directories.
//
// The engine calls Delete while holding its state mutex, so slow deleters
// stall event processing; remote-storage implementations should keep
// per-call latency bounded.
//
// Implementations must be idempotent-safe: deleting a path that is
// already gone succeeds. The engine relies on this to retry deletions
// after partial failures.
type PathDeleter interface {
	// Delete removes the file at path, or recursively removes the
	// directory rooted there.
	Delete(path string) error
}

// OSDeleter deletes paths on the local filesystem.
type OSDeleter struct{}

// Delete implements PathDeleter via os.RemoveAll, which succeeds on
// already-missing paths.
func (OSDeleter) Delete(path string) error {
	return os.RemoveAll(path)
}

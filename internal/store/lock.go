package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	fuseerr "github.com/Aman-CERP/docfuse/internal/errors"
)

// DirLock is a cross-process lock on a data directory. Ingest holds it
// while rewriting the chunk and vector stores so two processes never
// interleave writes.
type DirLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewDirLock creates a lock backed by <dir>/.ingest.lock.
func NewDirLock(dir string) *DirLock {
	p := filepath.Join(dir, ".ingest.lock")
	return &DirLock{path: p, flock: flock.New(p)}
}

// TryLock acquires the lock without blocking. If another process holds it,
// the returned error has code ErrCodeStoreLocked.
func (l *DirLock) TryLock() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !acquired {
		return fuseerr.New(fuseerr.ErrCodeStoreLocked, "another docfuse process is writing this index", nil).
			WithDetail("lock", l.path)
	}
	l.locked = true
	return nil
}

// Unlock releases the lock. Calling it on an unlocked DirLock is a no-op.
func (l *DirLock) Unlock() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

// Path returns the lock file path.
func (l *DirLock) Path() string { return l.path }

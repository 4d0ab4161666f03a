package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/bull/docqa/internal/document"
)

const lockRetryDelay = 25 * time.Millisecond

// withIndexLock serializes index mutation within the process (mutex) and
// across processes (advisory file lock).
func (s *Store) withIndexLock(ctx context.Context, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	locked, err := s.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("acquire index lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("acquire index lock: %s busy", s.lock.Path())
	}
	defer func() {
		if err := s.lock.Unlock(); err != nil {
			s.logger.Warn("failed to release index lock", "error", err)
		}
	}()

	return fn()
}

// readIndex loads the index. A missing file is an empty index.
func (s *Store) readIndex() ([]document.IndexEntry, error) {
	data, err := os.ReadFile(s.indexPath())
	if errors.Is(err, os.ErrNotExist) {
		return []document.IndexEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	entries, err := document.DecodeIndex(data)
	if err != nil {
		return nil, fmt.Errorf("decode index: %w", err)
	}
	return entries, nil
}

// putEntry replaces the entry with the same id, or appends it.
// Callers hold the index lock.
func (s *Store) putEntry(entry document.IndexEntry) error {
	entries, err := s.readIndex()
	if err != nil {
		return err
	}

	replaced := false
	for i := range entries {
		if entries[i].ID == entry.ID {
			entries[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, entry)
	}

	if err := writeJSONAtomic(s.indexPath(), entries); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	return nil
}

func indexed(entries []document.IndexEntry, id string) bool {
	for _, e := range entries {
		if e.ID == id {
			return true
		}
	}
	return false
}

package credits

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

const lockRetryDelay = 25 * time.Millisecond

// FileStore keeps the counter in <dir>/<key>, serialised across processes
// with a sibling lock file. A flock.Flock holds one lock per handle, so
// callers in this process take mu first.
type FileStore struct {
	path string

	mu   sync.Mutex
	lock *flock.Flock
}

// NewFileStore creates the directory if needed.
func NewFileStore(dir, key string) (*FileStore, error) {
	if key == "" {
		return nil, errors.New("credits key is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create credits dir: %w", err)
	}
	path := filepath.Join(dir, key)
	return &FileStore{
		path: path,
		lock: flock.New(path + ".lock"),
	}, nil
}

// Path returns the counter file location.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Read(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ok, err := s.lock.TryRLockContext(ctx, lockRetryDelay)
	if err != nil {
		return 0, fmt.Errorf("lock credits: %w", err)
	}
	if !ok {
		return 0, errors.New("lock credits: not acquired")
	}
	defer s.lock.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read credits: %w", err)
	}
	return ParseCount(string(data)), nil
}

func (s *FileStore) Write(ctx context.Context, n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ok, err := s.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("lock credits: %w", err)
	}
	if !ok {
		return errors.New("lock credits: not acquired")
	}
	defer s.lock.Unlock()

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(FormatCount(n)), 0o644); err != nil {
		return fmt.Errorf("write credits: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace credits: %w", err)
	}
	return nil
}

// Package credits persists the validation credit counter and keeps the
// process-wide ledger over it.
//
// The stored value is a decimal string. Absent, unparsable or negative values
// read as 0: a missing counter means exhausted, never unlimited.
package credits

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Store reads and writes one named integer counter.
type Store interface {
	Read(ctx context.Context) (int, error)
	Write(ctx context.Context, n int) error
}

// ParseCount converts a stored value into a count.
func ParseCount(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// FormatCount renders a count for storage.
func FormatCount(n int) string {
	if n < 0 {
		n = 0
	}
	return strconv.Itoa(n)
}

// MemoryStore keeps the counter in process memory.
type MemoryStore struct {
	mu    sync.Mutex
	value string
	set   bool
}

// NewMemoryStore creates a store seeded with n.
func NewMemoryStore(n int) *MemoryStore {
	return &MemoryStore{value: FormatCount(n), set: true}
}

func (s *MemoryStore) Read(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.set {
		return 0, nil
	}
	return ParseCount(s.value), nil
}

func (s *MemoryStore) Write(ctx context.Context, n int) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("write credits: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = FormatCount(n)
	s.set = true
	return nil
}

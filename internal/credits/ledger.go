package credits

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"radpad-intake-service/internal/config"
	"radpad-intake-service/internal/observability/logging"
	"radpad-intake-service/internal/observability/metrics"
)

// Ledger is the in-process view of the credit counter. The validator owns
// the authoritative count: the ledger only ever takes values it is given and
// never decrements or increments on its own.
type Ledger struct {
	store   Store
	metrics *metrics.Metrics
	logger  zerolog.Logger

	mu        sync.RWMutex
	remaining int
}

// NewLedger creates a ledger over store. Call Load before trusting Remaining.
func NewLedger(store Store) *Ledger {
	return &Ledger{
		store:   store,
		metrics: metrics.DefaultMetrics,
		logger:  logging.WithComponent("credits"),
	}
}

// Load reads the persisted value.
func (l *Ledger) Load(ctx context.Context) error {
	n, err := l.store.Read(ctx)
	if err != nil {
		return fmt.Errorf("load credits: %w", err)
	}
	l.set(n)
	l.logger.Info().Int("remaining", n).Msg("Credits loaded")
	return nil
}

// Refresh re-reads the persisted value, picking up external top-ups. On a
// read error the last known value is kept and returned.
func (l *Ledger) Refresh(ctx context.Context) (int, error) {
	n, err := l.store.Read(ctx)
	if err != nil {
		return l.Remaining(), fmt.Errorf("refresh credits: %w", err)
	}
	l.set(n)
	l.logger.Debug().Int("remaining", n).Msg("Credits refreshed")
	return l.Remaining(), nil
}

// Remaining returns the current count, never negative.
func (l *Ledger) Remaining() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.remaining
}

// Overwrite replaces the count with a server-reported value, clamped at 0.
// The value is persisted before it becomes visible; if persisting fails the
// in-memory value is still updated and the error is returned.
func (l *Ledger) Overwrite(ctx context.Context, n int) error {
	if n < 0 {
		n = 0
	}
	err := l.store.Write(ctx, n)
	l.set(n)
	if err != nil {
		l.logger.Error().Err(err).Int("remaining", n).Msg("Failed to persist credits")
		return fmt.Errorf("persist credits: %w", err)
	}
	l.logger.Debug().Int("remaining", n).Msg("Credits updated")
	return nil
}

func (l *Ledger) set(n int) {
	if n < 0 {
		n = 0
	}
	l.mu.Lock()
	l.remaining = n
	l.mu.Unlock()
	l.metrics.SetCreditsRemaining(n)
}

// Open builds the store selected by cfg. The closer releases its resources.
func Open(cfg config.CreditsConfig) (Store, io.Closer, error) {
	switch cfg.Backend {
	case "sqlite":
		s, err := OpenSQLite(cfg.Path, cfg.Key)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case "file":
		s, err := NewFileStore(cfg.Path, cfg.Key)
		if err != nil {
			return nil, nil, err
		}
		return s, nopCloser{}, nil
	case "memory", "":
		return NewMemoryStore(cfg.Initial), nopCloser{}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported credits backend %q", cfg.Backend)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

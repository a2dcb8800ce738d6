// Package search runs debounced list-search queries. Each Field owns one
// debounce coordinator; a committed value cancels the query still running
// for the previous value, and only the newest query's result is delivered.
package search

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"radpad-intake-service/internal/clock"
	"radpad-intake-service/internal/debounce"
	"radpad-intake-service/internal/observability/logging"
	"radpad-intake-service/internal/observability/metrics"
)

// Result is one delivered search result. Err is set when the query failed.
type Result struct {
	List    string            `json:"list"`
	Query   string            `json:"query"`
	Trigger debounce.Trigger  `json:"trigger"`
	Items   []json.RawMessage `json:"items"`
	Err     error             `json:"-"`
}

// Searcher executes one query against a list.
type Searcher interface {
	Search(ctx context.Context, list, query string) ([]json.RawMessage, error)
}

// DeliverFunc receives results in commit order, newest wins.
type DeliverFunc func(Result)

// Field is one search box bound to a list.
type Field struct {
	list     string
	searcher Searcher
	deliver  DeliverFunc
	coord    *debounce.Coordinator
	metrics  *metrics.Metrics
	logger   zerolog.Logger

	mu      sync.Mutex
	parent  context.Context
	cancel  context.CancelFunc
	seq     uint64
	closed  bool
	running sync.WaitGroup
}

// NewField creates a field on the real clock. Queries run under ctx.
func NewField(ctx context.Context, list string, policy debounce.Policy, searcher Searcher, deliver DeliverFunc) *Field {
	return NewFieldWithScheduler(ctx, list, policy, clock.Real(), searcher, deliver)
}

// NewFieldWithScheduler creates a field on the given scheduler.
func NewFieldWithScheduler(ctx context.Context, list string, policy debounce.Policy, sched clock.Scheduler, searcher Searcher, deliver DeliverFunc) *Field {
	f := &Field{
		list:     list,
		searcher: searcher,
		deliver:  deliver,
		metrics:  metrics.DefaultMetrics,
		logger:   logging.WithField(list),
		parent:   ctx,
	}
	f.coord = debounce.NewWithScheduler(list, policy, sched, f.onCommit)
	return f
}

// Input feeds a keystroke.
func (f *Field) Input(value string) {
	if f.isClosed() {
		return
	}
	f.coord.OnInput(value)
}

// Submit commits value immediately, as on Enter.
func (f *Field) Submit(value string) {
	if f.isClosed() {
		return
	}
	f.coord.OnSubmit(value)
}

// Pending reports whether a debounced commit is armed.
func (f *Field) Pending() bool {
	return f.coord.Pending()
}

// Close cancels the pending commit and any running query. Idempotent.
func (f *Field) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	f.seq++
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
	f.mu.Unlock()

	f.coord.Cancel()
}

// Wait blocks until running queries have returned.
func (f *Field) Wait() {
	f.running.Wait()
}

func (f *Field) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *Field) onCommit(value string, trigger debounce.Trigger) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	if f.cancel != nil {
		f.cancel()
		f.metrics.RecordSearch(f.list, "superseded")
	}
	f.seq++
	seq := f.seq
	ctx, cancel := context.WithCancel(f.parent)
	f.cancel = cancel
	f.running.Add(1)
	f.mu.Unlock()

	go f.run(ctx, cancel, seq, value, trigger)
}

func (f *Field) run(ctx context.Context, cancel context.CancelFunc, seq uint64, query string, trigger debounce.Trigger) {
	defer f.running.Done()
	defer cancel()

	items, err := f.searcher.Search(ctx, f.list, query)

	f.mu.Lock()
	if seq != f.seq {
		f.mu.Unlock()
		return
	}
	f.cancel = nil
	f.mu.Unlock()

	res := Result{List: f.list, Query: query, Trigger: trigger, Items: items, Err: err}
	if err != nil {
		f.metrics.RecordSearch(f.list, "error")
		f.logger.Warn().Err(err).Int("length", len(query)).Msg("Search failed")
	} else {
		f.metrics.RecordSearch(f.list, "ok")
		f.logger.Debug().Int("items", len(items)).Msg("Search completed")
	}
	if f.deliver != nil {
		f.deliver(res)
	}
}

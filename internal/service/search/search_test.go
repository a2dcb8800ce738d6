package search

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"radpad-intake-service/internal/clock"
	"radpad-intake-service/internal/debounce"
)

type call struct {
	query string
	ctx   context.Context
	reply chan reply
}

type reply struct {
	items []json.RawMessage
	err   error
}

// blockingSearcher hands each query to the test, which decides when it returns.
type blockingSearcher struct {
	calls chan *call
}

func newBlockingSearcher() *blockingSearcher {
	return &blockingSearcher{calls: make(chan *call, 8)}
}

func (s *blockingSearcher) Search(ctx context.Context, list, query string) ([]json.RawMessage, error) {
	c := &call{query: query, ctx: ctx, reply: make(chan reply, 1)}
	s.calls <- c
	select {
	case r := <-c.reply:
		return r.items, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *blockingSearcher) next(t *testing.T) *call {
	t.Helper()
	select {
	case c := <-s.calls:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a search call")
		return nil
	}
}

type collector struct {
	mu      sync.Mutex
	results []Result
}

func (c *collector) deliver(r Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, r)
}

func (c *collector) snapshot() []Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Result(nil), c.results...)
}

func items(values ...string) []json.RawMessage {
	out := make([]json.RawMessage, len(values))
	for i, v := range values {
		out[i] = json.RawMessage(`"` + v + `"`)
	}
	return out
}

func newTestField(s Searcher, c *collector) (*Field, *clock.Manual) {
	sched := clock.NewManual()
	f := NewFieldWithScheduler(context.Background(), "orders", debounce.DefaultPolicy(), sched, s, c.deliver)
	return f, sched
}

func TestField_DebouncesKeystrokes(t *testing.T) {
	s := newBlockingSearcher()
	c := &collector{}
	f, sched := newTestField(s, c)
	defer f.Close()

	for _, v := range []string{"m", "mr", "mri", "mri l", "mri lu"} {
		f.Input(v)
		sched.Advance(500 * time.Millisecond)
	}
	if !f.Pending() {
		t.Fatal("expected a pending commit")
	}
	sched.Advance(2 * time.Second)

	call := s.next(t)
	if call.query != "mri lu" {
		t.Errorf("expected only the last value to be queried, got %q", call.query)
	}
	call.reply <- reply{items: items("a", "b")}
	f.Wait()

	got := c.snapshot()
	if len(got) != 1 || got[0].Query != "mri lu" || len(got[0].Items) != 2 {
		t.Fatalf("unexpected results %+v", got)
	}
	if got[0].Trigger != debounce.TriggerTimer {
		t.Errorf("expected timer trigger, got %s", got[0].Trigger)
	}
}

func TestField_NewerQueryCancelsOlder(t *testing.T) {
	s := newBlockingSearcher()
	c := &collector{}
	f, _ := newTestField(s, c)
	defer f.Close()

	f.Submit("knee")
	first := s.next(t)

	f.Submit("knee mri")
	second := s.next(t)

	select {
	case <-first.ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("expected the superseded query to be cancelled")
	}

	second.reply <- reply{items: items("x")}
	f.Wait()

	got := c.snapshot()
	if len(got) != 1 || got[0].Query != "knee mri" {
		t.Fatalf("expected only the newest result, got %+v", got)
	}
}

func TestField_StaleResultDropped(t *testing.T) {
	s := newBlockingSearcher()
	c := &collector{}
	f, _ := newTestField(s, c)
	defer f.Close()

	f.Submit("hip")
	first := s.next(t)
	f.Submit("hip xr")
	second := s.next(t)

	// the older query answers anyway, after the newer one was committed
	first.reply <- reply{items: items("old")}
	second.reply <- reply{items: items("new")}
	f.Wait()

	for _, r := range c.snapshot() {
		if r.Query == "hip" {
			t.Errorf("stale result delivered: %+v", r)
		}
	}
}

func TestField_ClearFetchesUnfiltered(t *testing.T) {
	s := newBlockingSearcher()
	c := &collector{}
	f, _ := newTestField(s, c)
	defer f.Close()

	f.Submit("spine")
	s.next(t).reply <- reply{items: items("a")}
	f.Wait()

	f.Input("")
	call := s.next(t)
	if call.query != "" {
		t.Errorf("expected empty query, got %q", call.query)
	}
	call.reply <- reply{items: items("a", "b", "c")}
	f.Wait()

	got := c.snapshot()
	if len(got) != 2 || got[1].Trigger != debounce.TriggerClear {
		t.Fatalf("unexpected results %+v", got)
	}
}

func TestField_ErrorDelivered(t *testing.T) {
	s := newBlockingSearcher()
	c := &collector{}
	f, _ := newTestField(s, c)
	defer f.Close()

	f.Submit("chest")
	s.next(t).reply <- reply{err: errors.New("boom")}
	f.Wait()

	got := c.snapshot()
	if len(got) != 1 || got[0].Err == nil {
		t.Fatalf("expected an error result, got %+v", got)
	}
}

func TestField_CloseCancelsEverything(t *testing.T) {
	s := newBlockingSearcher()
	c := &collector{}
	f, sched := newTestField(s, c)

	f.Submit("abdomen")
	running := s.next(t)
	f.Input("abdomen ct")

	f.Close()
	f.Close()

	select {
	case <-running.ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("expected running query cancelled")
	}
	sched.Advance(5 * time.Second)
	f.Input("pelvis")
	f.Submit("pelvis")
	f.Wait()

	select {
	case extra := <-s.calls:
		t.Errorf("unexpected query after close: %q", extra.query)
	default:
	}
	if got := c.snapshot(); len(got) != 0 {
		t.Errorf("expected no deliveries after close, got %+v", got)
	}
}

package segment

import (
	"strings"
	"sync"
	"testing"
)

func TestIDs_Format(t *testing.T) {
	g := New()
	id := g.Next("cap-1")
	if !strings.HasPrefix(id, "cap-1-utt-") {
		t.Errorf("expected cap-1-utt- prefix, got %s", id)
	}
}

func TestIDs_Monotonic(t *testing.T) {
	g := New()
	first := g.Next("s")
	second := g.Next("s")
	third := g.Next("other")

	if first != "s-utt-1" || second != "s-utt-2" {
		t.Errorf("expected s-utt-1, s-utt-2, got %s, %s", first, second)
	}
	if third != "other-utt-3" {
		t.Errorf("expected counter to continue across sessions, got %s", third)
	}
}

func TestIDs_ConcurrentUnique(t *testing.T) {
	g := New()
	var mu sync.Mutex
	seen := make(map[string]bool)
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := g.Next("s")
			mu.Lock()
			seen[id] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(seen) != 50 {
		t.Errorf("expected 50 unique ids, got %d", len(seen))
	}
}

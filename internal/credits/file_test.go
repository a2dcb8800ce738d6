package credits

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestFileStore_AbsentReadsZero(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), "validationsRemaining")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	n, err := s.Read(context.Background())
	if err != nil || n != 0 {
		t.Errorf("expected 0 for absent file, got %d (%v)", n, err)
	}
}

func TestFileStore_WriteThenRead(t *testing.T) {
	dir := t.TempDir()
	s, _ := NewFileStore(dir, "validationsRemaining")
	ctx := context.Background()

	if err := s.Write(ctx, 4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "validationsRemaining"))
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if string(data) != "4" {
		t.Errorf("expected value stored as string '4', got %q", data)
	}

	// a second store on the same directory sees the write
	other, _ := NewFileStore(dir, "validationsRemaining")
	if n, _ := other.Read(ctx); n != 4 {
		t.Errorf("expected 4, got %d", n)
	}
}

func TestFileStore_InvalidContentReadsZero(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "k"), []byte("lots"), 0o644); err != nil {
		t.Fatal(err)
	}
	s, _ := NewFileStore(dir, "k")
	if n, err := s.Read(context.Background()); err != nil || n != 0 {
		t.Errorf("expected 0 for invalid content, got %d (%v)", n, err)
	}
}

func TestFileStore_RequiresKey(t *testing.T) {
	if _, err := NewFileStore(t.TempDir(), ""); err == nil {
		t.Error("expected error for empty key")
	}
}

func TestFileStore_ConcurrentWriters(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			s, err := NewFileStore(dir, "k")
			if err != nil {
				t.Error(err)
				return
			}
			if err := s.Write(ctx, n); err != nil {
				t.Error(err)
			}
		}(i)
	}
	wg.Wait()

	s, _ := NewFileStore(dir, "k")
	n, err := s.Read(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n < 0 || n > 7 {
		t.Errorf("expected one of the written values, got %d", n)
	}
}

func TestFileStore_SharedHandleReadersAndWriters(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), "k")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := context.Background()
	if err := s.Write(ctx, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			if err := s.Write(ctx, n%4+1); err != nil {
				t.Error(err)
			}
		}(i)
		go func() {
			defer wg.Done()
			n, err := s.Read(ctx)
			if err != nil {
				t.Error(err)
				return
			}
			if n < 1 || n > 4 {
				t.Errorf("read %d, expected a written value", n)
			}
		}()
	}
	wg.Wait()

	if s.lock.Locked() || s.lock.RLocked() {
		t.Error("lock still held after all operations finished")
	}
}

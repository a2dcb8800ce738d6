package dictation

import (
	"sync"
	"testing"
	"unicode/utf8"
)

func TestBuffer_AppendSegments(t *testing.T) {
	b := NewBuffer()

	for _, seg := range []string{"patient", "has", "pain"} {
		b.AppendSegment(seg)
	}

	if b.Text() != "patient has pain" {
		t.Errorf("expected 'patient has pain', got %q", b.Text())
	}
	if b.CharacterCount() != len("patient has pain") {
		t.Errorf("expected count %d, got %d", len("patient has pain"), b.CharacterCount())
	}
}

func TestBuffer_AppendNormalizesWhitespace(t *testing.T) {
	tests := []struct {
		name     string
		existing string
		segment  string
		want     string
	}{
		{"empty buffer", "", "patient", "patient"},
		{"leading space in segment", "patient", " has", "patient has"},
		{"trailing space in buffer", "patient ", "has", "patient has"},
		{"newline in buffer", "patient\n", "has", "patient has"},
		{"padded segment", "patient", "  has pain  ", "patient has pain"},
		{"leading space kept out", "", "  knee", "knee"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuffer()
			b.Replace(tt.existing)
			got := b.AppendSegment(tt.segment)
			if got != tt.want {
				t.Errorf("AppendSegment(%q) on %q = %q, want %q", tt.segment, tt.existing, got, tt.want)
			}
		})
	}
}

func TestBuffer_BlankSegmentIgnored(t *testing.T) {
	b := NewBuffer()
	b.Replace("left knee ")

	b.AppendSegment("   ")

	if b.Text() != "left knee " {
		t.Errorf("expected untouched text, got %q", b.Text())
	}
}

func TestBuffer_ReplaceKeepsCountInSync(t *testing.T) {
	b := NewBuffer()
	b.Replace("douleur à la hanche")

	snap := b.Snapshot()
	if snap.CharacterCount != utf8.RuneCountInString("douleur à la hanche") {
		t.Errorf("expected rune count, got %d", snap.CharacterCount)
	}
	if snap.Text != "douleur à la hanche" {
		t.Errorf("unexpected text %q", snap.Text)
	}

	b.Replace("")
	if b.CharacterCount() != 0 {
		t.Errorf("expected 0 after clearing, got %d", b.CharacterCount())
	}
}

func TestBuffer_AppendClarification(t *testing.T) {
	b := NewBuffer()
	b.Replace("chest pain")

	got := b.AppendClarification()
	if got != "chest pain [Clarification]" {
		t.Errorf("unexpected text %q", got)
	}
}

func TestBuffer_ConcurrentAppends(t *testing.T) {
	b := NewBuffer()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.AppendSegment("word")
		}()
	}
	wg.Wait()

	snap := b.Snapshot()
	want := 50*len("word") + 49
	if snap.CharacterCount != want {
		t.Errorf("expected %d characters, got %d", want, snap.CharacterCount)
	}
}

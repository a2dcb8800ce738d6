// Package dictation holds the editable dictation text.
package dictation

import (
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"
)

// ClarificationMarker is appended before a guided retry after a rejected verdict.
const ClarificationMarker = "[Clarification]"

// Snapshot is a consistent view of a Buffer.
type Snapshot struct {
	Text           string `json:"text"`
	CharacterCount int    `json:"characterCount"`
}

// Buffer owns the dictation text. It is mutated by direct edits (Replace) and
// by finalized speech segments (AppendSegment); interim hypotheses never
// touch it. CharacterCount always equals the rune length of Text.
type Buffer struct {
	mu   sync.RWMutex
	text string
}

// NewBuffer creates an empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Text returns the current text.
func (b *Buffer) Text() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.text
}

// CharacterCount returns the number of characters in the text.
func (b *Buffer) CharacterCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return utf8.RuneCountInString(b.text)
}

// Snapshot returns text and count read under one lock.
func (b *Buffer) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return Snapshot{Text: b.text, CharacterCount: utf8.RuneCountInString(b.text)}
}

// Replace overwrites the text with a user edit.
func (b *Buffer) Replace(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.text = text
}

// AppendSegment appends a finalized segment separated by exactly one space and
// returns the resulting text. Blank segments leave the buffer unchanged.
func (b *Buffer) AppendSegment(segment string) string {
	segment = strings.TrimSpace(segment)

	b.mu.Lock()
	defer b.mu.Unlock()
	if segment == "" {
		return b.text
	}
	b.text = join(b.text, segment)
	return b.text
}

// AppendClarification appends the clarification marker.
func (b *Buffer) AppendClarification() string {
	return b.AppendSegment(ClarificationMarker)
}

func join(existing, segment string) string {
	existing = strings.TrimRightFunc(existing, unicode.IsSpace)
	return strings.TrimSpace(existing + " " + segment)
}

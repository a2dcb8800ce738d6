package segment

import (
	"fmt"
	"sync/atomic"
)

// IDs hands out utterance IDs within capture sessions.
type IDs struct {
	counter uint64
}

func New() *IDs {
	return &IDs{}
}

// Next returns "<sessionID>-utt-<n>" with a process-wide monotonic n.
func (g *IDs) Next(sessionID string) string {
	n := atomic.AddUint64(&g.counter, 1)
	return fmt.Sprintf("%s-utt-%d", sessionID, n)
}

package capture

import (
	"radpad-intake-service/internal/dictation"
)

// BufferListener appends final segments to a dictation buffer and forwards
// everything to optional hooks.
type BufferListener struct {
	Buffer    *dictation.Buffer
	OnInterim func(text string)
	OnSegment func(text string, snap dictation.Snapshot)
	OnFailure func(err error)
}

func (l *BufferListener) OnInterimUpdate(text string) {
	if l.OnInterim != nil {
		l.OnInterim(text)
	}
}

func (l *BufferListener) OnFinalSegment(text string) {
	l.Buffer.AppendSegment(text)
	if l.OnSegment != nil {
		l.OnSegment(text, l.Buffer.Snapshot())
	}
}

func (l *BufferListener) OnError(err error) {
	if l.OnFailure != nil {
		l.OnFailure(err)
	}
}

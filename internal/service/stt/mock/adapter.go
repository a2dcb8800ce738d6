// Package mock provides a scripted recognizer for running without cloud credentials.
// It simulates single-utterance recognition: progressive interim hypotheses,
// exactly one final hypothesis, then the run ends on its own.
package mock

import (
	"context"
	"errors"
	"sync"
	"time"

	"radpad-intake-service/internal/service/stt"
)

// SimulatedUtterance is one scripted recognizer run.
type SimulatedUtterance struct {
	Partials   []string      // Progressive interim transcripts
	Final      string        // Final transcript, empty for a silent run
	Confidence float64       // Confidence score for final
	Err        stt.ErrorCode // If set, the run fails with this code instead of finalizing
}

// DefaultUtterances provides sample dictation for simulation.
var DefaultUtterances = []SimulatedUtterance{
	{
		Partials:   []string{"patient", "patient presents", "patient presents with"},
		Final:      "patient presents with acute lower back pain",
		Confidence: 0.93,
	},
	{
		Partials:   []string{"radiating", "radiating to the"},
		Final:      "radiating to the left leg for three weeks",
		Confidence: 0.9,
	},
	{
		Partials:   []string{"no history", "no history of"},
		Final:      "no history of trauma",
		Confidence: 0.95,
	},
	{
		Partials:   []string{"request", "request MRI lumbar"},
		Final:      "request MRI lumbar spine without contrast",
		Confidence: 0.91,
	},
}

var ErrAlreadyRunning = errors.New("recognizer already running")

// Recognizer implements stt.Recognizer with scripted runs, cycling through
// its utterances.
type Recognizer struct {
	utterances []SimulatedUtterance
	stepDelay  time.Duration

	mu        sync.Mutex
	available bool
	next      int
	starts    int
	run       *run
}

type run struct {
	cancel context.CancelFunc
	stop   chan struct{}
	once   sync.Once
}

func (r *run) requestStop() {
	r.once.Do(func() { close(r.stop) })
}

// New creates a mock recognizer over DefaultUtterances.
func New() *Recognizer {
	return NewWithScript(DefaultUtterances, 50*time.Millisecond)
}

// NewWithScript creates a mock recognizer over the given runs. stepDelay is
// the pause between events and the utterance pause after the final.
func NewWithScript(utterances []SimulatedUtterance, stepDelay time.Duration) *Recognizer {
	return &Recognizer{
		utterances: utterances,
		stepDelay:  stepDelay,
		available:  true,
	}
}

// SetAvailable toggles the capability probe.
func (r *Recognizer) SetAvailable(ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.available = ok
}

func (r *Recognizer) Available() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.available && len(r.utterances) > 0
}

// Starts returns how many runs were started.
func (r *Recognizer) Starts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.starts
}

// Start begins the next scripted run.
func (r *Recognizer) Start(ctx context.Context, cfg stt.Config, sink stt.Sink) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.available || len(r.utterances) == 0 {
		return &stt.Error{Code: stt.CodeServiceUnavailable}
	}
	if r.run != nil {
		return ErrAlreadyRunning
	}

	utt := r.utterances[r.next%len(r.utterances)]
	r.next++
	r.starts++

	runCtx, cancel := context.WithCancel(ctx)
	cur := &run{cancel: cancel, stop: make(chan struct{})}
	r.run = cur

	go r.play(runCtx, cur, cfg, utt, sink)
	return nil
}

// Stop finishes the current utterance early: the final is emitted now.
func (r *Recognizer) Stop() error {
	r.mu.Lock()
	cur := r.run
	r.mu.Unlock()
	if cur != nil {
		cur.requestStop()
	}
	return nil
}

// Abort drops the current run without a final.
func (r *Recognizer) Abort() error {
	r.mu.Lock()
	cur := r.run
	r.mu.Unlock()
	if cur != nil {
		cur.cancel()
	}
	return nil
}

func (r *Recognizer) play(ctx context.Context, cur *run, cfg stt.Config, utt SimulatedUtterance, sink stt.Sink) {
	defer func() {
		cur.cancel()
		r.mu.Lock()
		if r.run == cur {
			r.run = nil
		}
		r.mu.Unlock()
		sink.OnEnd()
	}()

	stopped := false
	if cfg.InterimResults {
		for _, p := range utt.Partials {
			if !r.wait(ctx, cur) {
				if ctx.Err() != nil {
					return
				}
				stopped = true
				break
			}
			sink.OnResult(stt.ResultEvent{Results: []stt.Result{{Transcript: p}}})
		}
	}

	if !stopped && !r.wait(ctx, cur) && ctx.Err() != nil {
		return
	}

	if utt.Err != "" {
		sink.OnError(&stt.Error{Code: utt.Err})
		return
	}
	if utt.Final == "" {
		return
	}
	sink.OnResult(stt.ResultEvent{Results: []stt.Result{{
		Transcript: utt.Final,
		IsFinal:    true,
		Confidence: utt.Confidence,
	}}})

	// utterance pause before the run ends by itself
	select {
	case <-ctx.Done():
	case <-cur.stop:
	case <-time.After(r.stepDelay):
	}
}

// wait sleeps one step. Returns false if stopped or cancelled.
func (r *Recognizer) wait(ctx context.Context, cur *run) bool {
	select {
	case <-ctx.Done():
		return false
	case <-cur.stop:
		return false
	case <-time.After(r.stepDelay):
		return true
	}
}

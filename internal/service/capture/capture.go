// Package capture keeps one continuous logical listening session on top of a
// single-utterance recognizer.
//
// The recognizer stops itself after every final hypothesis (and after every
// utterance pause). Capture restarts it after a short delay for as long as the
// session is active, so consumers see one uninterrupted session. Every run is
// tagged with a generation; events and restart timers from an older
// generation are ignored, which makes Stop safe against in-flight restarts
// without relying on timer cancellation.
package capture

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"radpad-intake-service/internal/clock"
	"radpad-intake-service/internal/models"
	"radpad-intake-service/internal/observability/logging"
	"radpad-intake-service/internal/observability/metrics"
	"radpad-intake-service/internal/service/segment"
	"radpad-intake-service/internal/service/stt"
)

// DefaultRestartDelay is the pause between a run ending and the next one starting.
const DefaultRestartDelay = 300 * time.Millisecond

// Listener receives capture output. Callbacks are never invoked with the
// capture's lock held.
type Listener interface {
	// OnInterimUpdate is called on every result event, with "" to clear.
	OnInterimUpdate(text string)

	// OnFinalSegment is called with each finalized, trimmed segment.
	OnFinalSegment(text string)

	// OnError is called once when the session ends on a recognizer error.
	OnError(err error)
}

// EventPublisher publishes capture metadata.
type EventPublisher interface {
	PublishCapture(ctx context.Context, ev *models.CaptureEvent) error
}

// Options configures a Capture. Zero values take defaults.
type Options struct {
	LanguageCode   string
	InterimResults *bool
	RestartDelay   time.Duration
	Scheduler      clock.Scheduler
	Publisher      EventPublisher
	IDs            *segment.IDs
}

// Capture is one TranscriptCapture bound to a recognizer and a listener.
type Capture struct {
	rec      stt.Recognizer
	listener Listener
	cfg      stt.Config
	delay    time.Duration
	sched    clock.Scheduler
	pub      EventPublisher
	ids      *segment.IDs
	metrics  *metrics.Metrics

	mu         sync.Mutex
	generation uint64
	active     bool
	interim    string
	sessionID  string
	ctx        context.Context
	cancel     context.CancelFunc
	timer      clock.Timer
	logger     zerolog.Logger
}

// New creates a capture over rec delivering to listener.
func New(rec stt.Recognizer, listener Listener, opts Options) *Capture {
	cfg := stt.Config{
		LanguageCode:   opts.LanguageCode,
		Continuous:     false,
		InterimResults: true,
	}
	if cfg.LanguageCode == "" {
		cfg.LanguageCode = "en-US"
	}
	if opts.InterimResults != nil {
		cfg.InterimResults = *opts.InterimResults
	}
	if opts.RestartDelay <= 0 {
		opts.RestartDelay = DefaultRestartDelay
	}
	if opts.Scheduler == nil {
		opts.Scheduler = clock.Real()
	}
	if opts.IDs == nil {
		opts.IDs = segment.New()
	}
	return &Capture{
		rec:      rec,
		listener: listener,
		cfg:      cfg,
		delay:    opts.RestartDelay,
		sched:    opts.Scheduler,
		pub:      opts.Publisher,
		ids:      opts.IDs,
		metrics:  metrics.DefaultMetrics,
		logger:   logging.WithComponent("capture"),
	}
}

// Start begins a capture session. It fails fast with CaptureUnsupported when
// the recognizer is missing or unavailable. Starting an active session is a
// no-op.
func (c *Capture) Start(ctx context.Context) error {
	if c.rec == nil || !c.rec.Available() {
		return models.NewError("capture.start", models.KindCaptureUnsupported, nil)
	}

	c.mu.Lock()
	if c.active {
		c.mu.Unlock()
		return nil
	}
	c.generation++
	gen := c.generation
	c.active = true
	c.interim = ""
	c.sessionID = uuid.NewString()
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.logger = logging.WithCapture(c.sessionID)
	logger := c.logger
	runCtx := c.ctx
	utt := segment.NewUtterance(c.ids.Next(c.sessionID))
	c.mu.Unlock()

	if err := c.rec.Start(runCtx, c.cfg, &runSink{c: c, gen: gen, utt: utt}); err != nil {
		c.mu.Lock()
		if gen == c.generation {
			c.generation++
			c.active = false
			c.cancel()
		}
		c.mu.Unlock()
		c.metrics.RecordCaptureError(string(stt.CodeOf(err)))
		return models.NewError("capture.start", models.KindCaptureSessionError, err)
	}

	c.metrics.RecordCaptureStart()
	logger.Info().Str("utteranceId", utt.ID()).Msg("Capture session started")
	return nil
}

// Stop ends the session. Safe to call at any time, any number of times.
// Pending restarts and late recognizer events are ignored afterwards.
func (c *Capture) Stop() {
	c.mu.Lock()
	c.generation++
	wasActive := c.active
	c.active = false
	c.interim = ""
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.cancel != nil {
		c.cancel()
	}
	sessionID := c.sessionID
	logger := c.logger
	c.mu.Unlock()

	if !wasActive {
		return
	}

	if err := c.rec.Abort(); err != nil {
		logger.Debug().Err(err).Msg("Recognizer abort failed")
	}
	c.metrics.RecordCaptureEnd()
	logger.Info().Msg("Capture session stopped")
	c.publish(logger, &models.CaptureEvent{
		EventType: models.EventCaptureEnded,
		SessionID: sessionID,
	})
	c.listener.OnInterimUpdate("")
}

// IsActive reports whether the session is listening.
func (c *Capture) IsActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Interim returns the current interim text.
func (c *Capture) Interim() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.interim
}

// SessionID returns the id of the current or last session.
func (c *Capture) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// partition splits the slots from index onward into final and interim text.
func partition(ev stt.ResultEvent) (final, interim string) {
	var fb, ib strings.Builder
	start := ev.ResultIndex
	if start < 0 {
		start = 0
	}
	for i := start; i < len(ev.Results); i++ {
		r := ev.Results[i]
		if r.IsFinal {
			fb.WriteString(r.Transcript)
		} else {
			ib.WriteString(r.Transcript)
		}
	}
	return strings.TrimSpace(fb.String()), ib.String()
}

func (c *Capture) onResult(gen uint64, utt *segment.Utterance, ev stt.ResultEvent) {
	final, interim := partition(ev)

	c.mu.Lock()
	if gen != c.generation || !c.active {
		c.mu.Unlock()
		return
	}
	logger := c.logger
	if final == "" {
		if err := utt.Interim(); err != nil {
			// text after a final belongs to no utterance; the interim stays empty
			c.interim = ""
			c.mu.Unlock()
			logger.Debug().Err(err).Str("utteranceId", utt.ID()).Msg("Ignoring interim result")
			c.listener.OnInterimUpdate("")
			return
		}
		c.interim = interim
		c.mu.Unlock()

		c.metrics.RecordInterimUpdate()
		c.listener.OnInterimUpdate(interim)
		return
	}

	if err := utt.Finalize(); err != nil {
		logger.Warn().Err(err).Str("utteranceId", utt.ID()).Msg("Additional final in utterance")
	}
	c.interim = ""
	sessionID := c.sessionID
	c.mu.Unlock()

	c.metrics.RecordFinalSegment()
	c.listener.OnInterimUpdate("")
	c.listener.OnFinalSegment(final)
	logger.Debug().
		Str("utteranceId", utt.ID()).
		Int("characters", utf8.RuneCountInString(final)).
		Msg("Final segment")
	c.publish(logger, &models.CaptureEvent{
		EventType:      models.EventCaptureFinal,
		SessionID:      sessionID,
		UtteranceID:    utt.ID(),
		CharacterCount: utf8.RuneCountInString(final),
	})

	// The run ends itself after a final; ask it to wrap up now so the
	// restart happens on OnEnd.
	if err := c.rec.Stop(); err != nil {
		logger.Debug().Err(err).Msg("Recognizer stop failed")
	}
}

func (c *Capture) onEnd(gen uint64, utt *segment.Utterance) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		return
	}
	utt.End()
	if !c.active {
		c.interim = ""
		return
	}

	c.timer = c.sched.AfterFunc(c.delay, func() {
		c.restart(gen)
	})
}

func (c *Capture) restart(gen uint64) {
	c.mu.Lock()
	if gen != c.generation || !c.active {
		c.mu.Unlock()
		return
	}
	c.generation++
	next := c.generation
	c.timer = nil
	runCtx := c.ctx
	utt := segment.NewUtterance(c.ids.Next(c.sessionID))
	c.mu.Unlock()

	c.metrics.RecordCaptureRestart()
	if err := c.rec.Start(runCtx, c.cfg, &runSink{c: c, gen: next, utt: utt}); err != nil {
		c.onError(next, utt, err)
	}
}

func (c *Capture) onError(gen uint64, utt *segment.Utterance, err error) {
	c.mu.Lock()
	if gen != c.generation || !c.active {
		c.mu.Unlock()
		return
	}
	utt.Drop()
	c.generation++
	c.active = false
	c.interim = ""
	if c.cancel != nil {
		c.cancel()
	}
	sessionID := c.sessionID
	logger := c.logger
	c.mu.Unlock()

	code := stt.CodeOf(err)
	c.metrics.RecordCaptureError(string(code))
	c.metrics.RecordCaptureEnd()
	logger.Warn().Err(err).Str("code", string(code)).Str("utteranceId", utt.ID()).Msg("Capture session failed")
	c.publish(logger, &models.CaptureEvent{
		EventType:   models.EventCaptureError,
		SessionID:   sessionID,
		UtteranceID: utt.ID(),
		ErrorCode:   string(code),
	})

	c.listener.OnInterimUpdate("")
	c.listener.OnError(models.NewError("capture", models.KindCaptureSessionError, err))
}

func (c *Capture) publish(logger zerolog.Logger, ev *models.CaptureEvent) {
	if c.pub == nil {
		return
	}
	ev.Timestamp = time.Now().UnixMilli()
	if err := c.pub.PublishCapture(context.Background(), ev); err != nil {
		logger.Warn().Err(err).Str("eventType", ev.EventType).Msg("Failed to publish capture event")
	}
}

// runSink binds recognizer events to the generation of the run that produced them.
type runSink struct {
	c   *Capture
	gen uint64
	utt *segment.Utterance
}

func (s *runSink) OnResult(ev stt.ResultEvent) { s.c.onResult(s.gen, s.utt, ev) }
func (s *runSink) OnEnd()                      { s.c.onEnd(s.gen, s.utt) }
func (s *runSink) OnError(err error)           { s.c.onError(s.gen, s.utt, err) }

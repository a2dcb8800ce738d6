// Package debounce turns a rapid stream of input changes on a free-text field
// into single delayed commits.
//
// Rules per input value (length counted in characters):
//
//	len == 0            cancel pending; commit "" immediately if a non-empty commit was delivered before
//	0 < len < MinLength cancel pending; nothing fires
//	len >= MinLength    (re)arm the Delay timer, last keystroke wins
//
// Submit bypasses the timer for empty and full-length values and ignores
// sub-threshold ones. At most one commit is pending at a time; superseded
// timers are invalidated by a generation counter, never by relying on
// Timer.Stop.
package debounce

import (
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"radpad-intake-service/internal/clock"
	"radpad-intake-service/internal/observability/logging"
	"radpad-intake-service/internal/observability/metrics"
)

// Trigger names what caused a commit.
type Trigger string

const (
	TriggerTimer  Trigger = "timer"
	TriggerSubmit Trigger = "submit"
	TriggerClear  Trigger = "clear"
)

// Policy holds the debounce constants.
type Policy struct {
	MinLength int
	Delay     time.Duration
}

// DefaultPolicy returns the list-search policy: 3 characters, 2 seconds.
func DefaultPolicy() Policy {
	return Policy{
		MinLength: 3,
		Delay:     2 * time.Second,
	}
}

// CommitFunc receives committed values. It is never called with the
// coordinator's lock held.
type CommitFunc func(value string, trigger Trigger)

// Coordinator debounces one input field.
type Coordinator struct {
	field   string
	policy  Policy
	sched   clock.Scheduler
	commit  CommitFunc
	metrics *metrics.Metrics
	logger  zerolog.Logger

	mu         sync.Mutex
	generation uint64
	timer      clock.Timer
	pending    bool
	lastValue  string
	committed  bool // a non-empty value has been committed and not yet cleared
}

// New creates a coordinator on the real clock.
func New(field string, policy Policy, commit CommitFunc) *Coordinator {
	return NewWithScheduler(field, policy, clock.Real(), commit)
}

// NewWithScheduler creates a coordinator on the given scheduler.
func NewWithScheduler(field string, policy Policy, sched clock.Scheduler, commit CommitFunc) *Coordinator {
	if policy.MinLength < 1 {
		policy.MinLength = 1
	}
	return &Coordinator{
		field:   field,
		policy:  policy,
		sched:   sched,
		commit:  commit,
		metrics: metrics.DefaultMetrics,
		logger:  logging.WithField(field),
	}
}

// OnInput is called on every change of the field's value.
func (c *Coordinator) OnInput(value string) {
	n := utf8.RuneCountInString(value)

	c.mu.Lock()
	c.cancelLocked()

	switch {
	case n == 0:
		if !c.committed {
			c.mu.Unlock()
			return
		}
		c.recordLocked("")
		c.mu.Unlock()
		c.deliver("", TriggerClear)

	case n < c.policy.MinLength:
		c.mu.Unlock()

	default:
		c.generation++
		gen := c.generation
		c.pending = true
		c.timer = c.sched.AfterFunc(c.policy.Delay, func() {
			c.fire(gen, value)
		})
		c.mu.Unlock()
	}
}

// OnSubmit is called on an explicit commit gesture such as Enter.
func (c *Coordinator) OnSubmit(value string) {
	n := utf8.RuneCountInString(value)
	if n > 0 && n < c.policy.MinLength {
		return
	}

	c.mu.Lock()
	c.cancelLocked()
	c.recordLocked(value)
	c.mu.Unlock()

	c.deliver(value, TriggerSubmit)
}

// Cancel drops any pending commit. Safe to call at any time, any number of times.
func (c *Coordinator) Cancel() {
	c.mu.Lock()
	c.cancelLocked()
	c.mu.Unlock()
}

// Pending reports whether a timer commit is armed.
func (c *Coordinator) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// LastCommitted returns the most recently committed value.
func (c *Coordinator) LastCommitted() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastValue
}

func (c *Coordinator) fire(gen uint64, value string) {
	c.mu.Lock()
	if gen != c.generation || !c.pending {
		c.mu.Unlock()
		return
	}
	c.pending = false
	c.timer = nil
	if c.committed && value == c.lastValue {
		c.mu.Unlock()
		c.logger.Debug().Int("length", len(value)).Msg("Skipping duplicate commit")
		return
	}
	c.recordLocked(value)
	c.mu.Unlock()

	c.deliver(value, TriggerTimer)
}

// cancelLocked invalidates the pending timer, if any.
func (c *Coordinator) cancelLocked() {
	if !c.pending {
		return
	}
	c.generation++
	c.pending = false
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.metrics.RecordDebounceSuperseded(c.field)
}

func (c *Coordinator) recordLocked(value string) {
	c.lastValue = value
	c.committed = value != ""
}

func (c *Coordinator) deliver(value string, trigger Trigger) {
	c.metrics.RecordDebounceCommit(c.field, string(trigger))
	c.logger.Debug().
		Str("trigger", string(trigger)).
		Int("length", utf8.RuneCountInString(value)).
		Msg("Commit")
	if c.commit != nil {
		c.commit(value, trigger)
	}
}

package workflow

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"radpad-intake-service/internal/models"
	"radpad-intake-service/internal/observability/logging"
	"radpad-intake-service/internal/observability/metrics"
)

// Validator submits dictation to the remote validator. On failure it may
// still return an outcome whose CreditsRemaining carries the server's count.
type Validator interface {
	Validate(ctx context.Context, req models.ValidationRequest) (*models.ValidationOutcome, error)
}

// Ledger is the credit counter the workflow reads and overwrites.
type Ledger interface {
	Remaining() int
	Overwrite(ctx context.Context, n int) error
}

// EventPublisher publishes workflow events.
type EventPublisher interface {
	PublishAttempt(ctx context.Context, ev *models.AttemptEvent) error
	PublishTransition(ctx context.Context, ev *models.TransitionEvent) error
}

// Policy holds the submission rules.
type Policy struct {
	// MinInputLength is the minimum trimmed length, in characters, of a submission.
	MinInputLength int
	// OverrideMinAttempts is how many attempts must precede an override.
	OverrideMinAttempts int
}

func DefaultPolicy() Policy {
	return Policy{
		MinInputLength:      10,
		OverrideMinAttempts: 1,
	}
}

const unavailableFeedback = "The validation service is unavailable. Please try again."

var errResetDuringSubmit = errors.New("workflow was reset while the submission was in flight")

// Result is what a completed submission reports.
type Result struct {
	Attempt          models.Attempt
	State            State
	CreditsRemaining int
}

// Snapshot is a point-in-time view of a workflow.
type Snapshot struct {
	ID               string          `json:"id"`
	State            State           `json:"state"`
	AttemptCount     int             `json:"attemptCount"`
	LastAttempt      *models.Attempt `json:"lastAttempt,omitempty"`
	Feedback         string          `json:"feedback,omitempty"`
	CanOverride      bool            `json:"canOverride"`
	InFlight         bool            `json:"inFlight"`
	CreditsRemaining int             `json:"creditsRemaining"`
}

// Workflow is one dictation's validation workflow.
type Workflow struct {
	id        string
	policy    Policy
	validator Validator
	ledger    Ledger
	pub       EventPublisher
	metrics   *metrics.Metrics
	logger    zerolog.Logger

	mu           sync.Mutex
	state        State
	attemptCount int
	lastAttempt  *models.Attempt
	feedback     string
	inFlight     bool
	epoch        uint64
}

// New creates a workflow in the dictation state. pub may be nil.
func New(id string, policy Policy, validator Validator, ledger Ledger, pub EventPublisher) *Workflow {
	if policy.MinInputLength < 0 {
		policy.MinInputLength = 0
	}
	return &Workflow{
		id:        id,
		policy:    policy,
		validator: validator,
		ledger:    ledger,
		pub:       pub,
		metrics:   metrics.DefaultMetrics,
		logger:    logging.WithWorkflow(id),
		state:     StateDictation,
	}
}

func (w *Workflow) ID() string {
	return w.id
}

// Submit validates text. Local preconditions are checked in order (input
// length, then credits, then override gating) and never reach the network.
// A validator failure is returned as ValidationUnavailable or
// ServerRejectedFormat with the state unchanged; the attempt still counts.
func (w *Workflow) Submit(ctx context.Context, text string, isOverride bool) (*Result, error) {
	const op = "workflow.submit"
	trimmed := strings.TrimSpace(text)

	w.mu.Lock()
	if err := w.checkSubmitLocked(op, trimmed, isOverride); err != nil {
		w.mu.Unlock()
		w.metrics.RecordRejected(string(models.KindOf(err)))
		w.logger.Info().Str("kind", string(models.KindOf(err))).Msg("Submission rejected")
		return nil, err
	}
	index := w.attemptCount
	w.attemptCount++
	w.inFlight = true
	epoch := w.epoch
	w.mu.Unlock()

	start := time.Now()
	outcome, err := w.validator.Validate(ctx, models.ValidationRequest{
		DictationText:        trimmed,
		IsOverrideValidation: isOverride,
	})
	latency := time.Since(start).Seconds()

	// server-reported credits are authoritative even if the workflow was reset meanwhile
	if outcome != nil && outcome.CreditsRemaining != nil {
		if perr := w.ledger.Overwrite(ctx, *outcome.CreditsRemaining); perr != nil {
			w.logger.Warn().Err(perr).Msg("Credits not persisted")
		}
	}
	credits := w.ledger.Remaining()

	w.mu.Lock()
	w.inFlight = false
	if epoch != w.epoch {
		w.mu.Unlock()
		w.logger.Info().Int("attemptIndex", index).Msg("Discarding verdict after reset")
		return nil, models.NewError(op, models.KindInvalidTransition, errResetDuringSubmit)
	}

	if err != nil {
		w.feedback = unavailableFeedback
		w.mu.Unlock()

		outcomeLabel := "unavailable"
		if models.IsKind(err, models.KindServerRejectedFormat) {
			outcomeLabel = "rejected_format"
		}
		w.metrics.RecordValidation(outcomeLabel, isOverride, latency)
		w.logger.Warn().Err(err).Int("attemptIndex", index).Msg("Validation unavailable")
		w.publishAttempt(ctx, index, isOverride, outcomeLabel, 0, trimmed, credits)
		return nil, err
	}

	attempt := models.Attempt{
		Index:           index,
		IsOverride:      isOverride,
		Verdict:         outcome.Verdict,
		ComplianceScore: outcome.ComplianceScore,
		SuggestedCodes:  outcome.SuggestedCodes,
		Feedback:        outcome.Feedback,
	}
	w.lastAttempt = &attempt

	from := w.state
	advance := outcome.Verdict == models.VerdictCompliant || isOverride
	if advance {
		w.state, _ = next(w.state, EventSubmit)
		w.feedback = ""
	} else {
		w.feedback = outcome.Feedback
	}
	to := w.state
	w.mu.Unlock()

	w.metrics.RecordValidation(outcome.Verdict.String(), isOverride, latency)
	w.logger.Info().
		Int("attemptIndex", index).
		Bool("override", isOverride).
		Str("verdict", outcome.Verdict.String()).
		Float64("complianceScore", outcome.ComplianceScore).
		Int("creditsRemaining", credits).
		Msg("Validation attempt completed")
	w.publishAttempt(ctx, index, isOverride, outcome.Verdict.String(), outcome.ComplianceScore, trimmed, credits)
	if from != to {
		reason := "compliant"
		if outcome.Verdict != models.VerdictCompliant {
			reason = "override"
		}
		w.publishTransition(ctx, from, to, reason)
	}

	return &Result{Attempt: attempt, State: to, CreditsRemaining: credits}, nil
}

func (w *Workflow) checkSubmitLocked(op, trimmed string, isOverride bool) error {
	if w.inFlight {
		return models.NewError(op, models.KindSubmissionInFlight, nil)
	}
	if !Allowed(w.state, EventSubmit) {
		return models.NewError(op, models.KindInvalidTransition, nil)
	}
	if utf8.RuneCountInString(trimmed) < w.policy.MinInputLength {
		return models.NewError(op, models.KindInsufficientInput, nil)
	}
	if w.ledger.Remaining() <= 0 {
		return models.NewError(op, models.KindCreditsExhausted, nil)
	}
	if isOverride && w.attemptCount < w.policy.OverrideMinAttempts {
		return models.NewError(op, models.KindOverrideUnavailable, nil)
	}
	return nil
}

// AcceptAndAdvance moves a validated dictation to signature. No network call.
func (w *Workflow) AcceptAndAdvance(ctx context.Context) error {
	w.mu.Lock()
	from := w.state
	to, ok := next(from, EventAccept)
	if !ok {
		w.mu.Unlock()
		w.metrics.RecordRejected(string(models.KindInvalidTransition))
		return models.NewError("workflow.accept", models.KindInvalidTransition, nil)
	}
	w.state = to
	w.mu.Unlock()

	w.logger.Info().Msg("Dictation accepted for signature")
	w.publishTransition(ctx, from, to, "accepted")
	return nil
}

// Reset returns to dictation and clears attempt history. Credits are not
// restored. An in-flight submission's verdict is discarded when it returns.
func (w *Workflow) Reset(ctx context.Context) {
	w.mu.Lock()
	from := w.state
	changed := from != StateDictation || w.attemptCount != 0 || w.lastAttempt != nil || w.feedback != "" || w.inFlight
	w.state, _ = next(from, EventReset)
	w.attemptCount = 0
	w.lastAttempt = nil
	w.feedback = ""
	if changed {
		w.epoch++
	}
	w.mu.Unlock()

	if from != StateDictation {
		w.publishTransition(ctx, from, StateDictation, "reset")
	}
}

func (w *Workflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *Workflow) AttemptCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.attemptCount
}

// LastAttempt returns a copy of the latest attempt, or nil.
func (w *Workflow) LastAttempt() *models.Attempt {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.lastAttempt == nil {
		return nil
	}
	a := *w.lastAttempt
	return &a
}

func (w *Workflow) Feedback() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.feedback
}

// CanOverride reports whether an override submission would pass the gating rule.
func (w *Workflow) CanOverride() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.canOverrideLocked()
}

func (w *Workflow) canOverrideLocked() bool {
	return w.state == StateDictation && !w.inFlight && w.attemptCount >= w.policy.OverrideMinAttempts
}

func (w *Workflow) Snapshot() Snapshot {
	credits := w.ledger.Remaining()
	w.mu.Lock()
	defer w.mu.Unlock()
	snap := Snapshot{
		ID:               w.id,
		State:            w.state,
		AttemptCount:     w.attemptCount,
		Feedback:         w.feedback,
		CanOverride:      w.canOverrideLocked(),
		InFlight:         w.inFlight,
		CreditsRemaining: credits,
	}
	if w.lastAttempt != nil {
		a := *w.lastAttempt
		snap.LastAttempt = &a
	}
	return snap
}

func (w *Workflow) publishAttempt(ctx context.Context, index int, override bool, outcome string, score float64, text string, credits int) {
	if w.pub == nil {
		return
	}
	ev := &models.AttemptEvent{
		EventType:        models.EventValidationAttempt,
		WorkflowID:       w.id,
		Timestamp:        time.Now().UnixMilli(),
		AttemptIndex:     index,
		IsOverride:       override,
		Outcome:          outcome,
		ComplianceScore:  score,
		CharacterCount:   utf8.RuneCountInString(text),
		CreditsRemaining: credits,
	}
	if err := w.pub.PublishAttempt(context.WithoutCancel(ctx), ev); err != nil {
		w.logger.Warn().Err(err).Msg("Failed to publish attempt event")
	}
}

func (w *Workflow) publishTransition(ctx context.Context, from, to State, reason string) {
	if w.pub == nil {
		return
	}
	ev := &models.TransitionEvent{
		EventType:  models.EventWorkflowTransition,
		WorkflowID: w.id,
		Timestamp:  time.Now().UnixMilli(),
		From:       from.String(),
		To:         to.String(),
		Reason:     reason,
	}
	if err := w.pub.PublishTransition(context.WithoutCancel(ctx), ev); err != nil {
		w.logger.Warn().Err(err).Msg("Failed to publish transition event")
	}
}

package models

// AttemptEvent is published after every validation attempt that reached the validator.
type AttemptEvent struct {
	EventType        string  `json:"eventType"`
	WorkflowID       string  `json:"workflowId"`
	Timestamp        int64   `json:"timestamp"`
	AttemptIndex     int     `json:"attemptIndex"`
	IsOverride       bool    `json:"isOverride"`
	Outcome          string  `json:"outcome"`
	ComplianceScore  float64 `json:"complianceScore,omitempty"`
	CharacterCount   int     `json:"characterCount"`
	CreditsRemaining int     `json:"creditsRemaining"`
}

// TransitionEvent is published when a workflow changes state.
type TransitionEvent struct {
	EventType  string `json:"eventType"`
	WorkflowID string `json:"workflowId"`
	Timestamp  int64  `json:"timestamp"`
	From       string `json:"from"`
	To         string `json:"to"`
	Reason     string `json:"reason"`
}

// CaptureEvent carries capture metadata. Dictation text is never included.
type CaptureEvent struct {
	EventType      string `json:"eventType"`
	SessionID      string `json:"captureSessionId"`
	UtteranceID    string `json:"utteranceId,omitempty"`
	Timestamp      int64  `json:"timestamp"`
	CharacterCount int    `json:"characterCount,omitempty"`
	ErrorCode      string `json:"errorCode,omitempty"`
}

const (
	EventValidationAttempt  = "intake.validation.attempt"
	EventWorkflowTransition = "intake.workflow.transition"
	EventCaptureFinal       = "intake.capture.final"
	EventCaptureEnded       = "intake.capture.ended"
	EventCaptureError       = "intake.capture.error"
)

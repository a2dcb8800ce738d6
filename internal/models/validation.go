// Package models defines the data structures shared by the intake components.
package models

import "fmt"

// Verdict is the remote validator's appropriateness judgement.
type Verdict int

const (
	VerdictNeedsRevision Verdict = iota
	VerdictCompliant
)

func (v Verdict) String() string {
	switch v {
	case VerdictNeedsRevision:
		return "needs_revision"
	case VerdictCompliant:
		return "compliant"
	default:
		return fmt.Sprintf("unknown(%d)", int(v))
	}
}

// MarshalText renders the verdict by name in JSON payloads.
func (v Verdict) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// CodeSystem identifies the coding system of a suggested code.
type CodeSystem string

const (
	CodeSystemICD10 CodeSystem = "ICD10"
	CodeSystemCPT   CodeSystem = "CPT"
)

// SuggestedCode is one code proposed by the validator.
type SuggestedCode struct {
	Code        string     `json:"code"`
	Description string     `json:"description"`
	System      CodeSystem `json:"system"`
}

// ValidationRequest is what the workflow sends to the validator.
type ValidationRequest struct {
	DictationText        string `json:"dictationText"`
	IsOverrideValidation bool   `json:"isOverrideValidation"`
}

// ValidationOutcome is a decoded validator response. When it accompanies an
// error only CreditsRemaining is set.
type ValidationOutcome struct {
	Verdict         Verdict
	ComplianceScore float64
	Feedback        string
	SuggestedCodes  []SuggestedCode
	// CreditsRemaining is the server's authoritative count, nil when the
	// response carried no trial information.
	CreditsRemaining *int
}

// Attempt is one submission of the dictation buffer. Immutable once built.
type Attempt struct {
	Index           int             `json:"attemptIndex"`
	IsOverride      bool            `json:"isOverride"`
	Verdict         Verdict         `json:"verdict"`
	ComplianceScore float64         `json:"complianceScore"`
	SuggestedCodes  []SuggestedCode `json:"suggestedCodes"`
	Feedback        string          `json:"feedbackText,omitempty"`
}

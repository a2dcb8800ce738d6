// Package validator is the HTTP client for the remote dictation validator.
package validator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"radpad-intake-service/internal/httpclient"
	"radpad-intake-service/internal/models"
	"radpad-intake-service/internal/observability/logging"
	"radpad-intake-service/internal/schema"
)

const (
	op           = "validator.validate"
	maxBodyBytes = 1 << 20

	// StatusAppropriate is the only validationStatus that counts as compliant.
	StatusAppropriate = "appropriate"
)

// Config holds validator connection settings.
type Config struct {
	BaseURL   string
	Path      string
	AuthToken string
	Timeout   time.Duration
}

// Client submits dictation for validation.
type Client struct {
	http   *http.Client
	url    string
	token  string
	schema *schema.Validator
	logger zerolog.Logger
}

// New creates a client with a tuned transport.
func New(cfg Config) *Client {
	return NewWithHTTPClient(cfg, httpclient.New(httpclient.WithTimeout(cfg.Timeout)))
}

// NewWithHTTPClient creates a client over hc.
func NewWithHTTPClient(cfg Config, hc *http.Client) *Client {
	return &Client{
		http:   hc,
		url:    strings.TrimRight(cfg.BaseURL, "/") + "/" + strings.TrimLeft(cfg.Path, "/"),
		token:  cfg.AuthToken,
		schema: schema.New(),
		logger: logging.WithComponent("validator"),
	}
}

type codeDTO struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type responseDTO struct {
	ValidationResult struct {
		ValidationStatus    string    `json:"validationStatus"`
		ComplianceScore     float64   `json:"complianceScore"`
		Feedback            *string   `json:"feedback"`
		SuggestedCPTCodes   []codeDTO `json:"suggestedCPTCodes"`
		SuggestedICD10Codes []codeDTO `json:"suggestedICD10Codes"`
	} `json:"validationResult"`
	TrialInfo *struct {
		ValidationsRemaining *int `json:"validationsRemaining"`
	} `json:"trialInfo"`
}

// Validate sends one request and decodes the verdict.
//
// Transport failures, non-2xx statuses and success=false map to
// ValidationUnavailable; a 2xx success body without the expected fields maps
// to ServerRejectedFormat. A failure body that reports trialInfo still yields
// an outcome carrying only CreditsRemaining next to the error.
func (c *Client) Validate(ctx context.Context, req models.ValidationRequest) (*models.ValidationOutcome, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, models.NewError(op, models.KindValidationUnavailable, fmt.Errorf("encode request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, models.NewError(op, models.KindValidationUnavailable, fmt.Errorf("build request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Validator request failed")
		return nil, models.NewError(op, models.KindValidationUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, models.NewError(op, models.KindValidationUnavailable, fmt.Errorf("read response: %w", err))
	}

	c.logger.Debug().
		Int("status", resp.StatusCode).
		Int("characters", utf8.RuneCountInString(req.DictationText)).
		Bool("override", req.IsOverrideValidation).
		Dur("latency", time.Since(start)).
		Msg("Validator responded")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return failureOutcome(body), models.NewError(op, models.KindValidationUnavailable,
			fmt.Errorf("status %d: %s", resp.StatusCode, schema.Message(body)))
	}
	if schema.Failed(body) {
		return failureOutcome(body), models.NewError(op, models.KindValidationUnavailable,
			fmt.Errorf("%s", failureMessage(body)))
	}

	if err := c.schema.Validate(body); err != nil {
		return nil, models.NewError(op, models.KindServerRejectedFormat, err)
	}

	var dto responseDTO
	if err := json.Unmarshal(body, &dto); err != nil {
		return nil, models.NewError(op, models.KindServerRejectedFormat, fmt.Errorf("decode response: %w", err))
	}

	return toOutcome(&dto), nil
}

// failureOutcome carries the server's credit count out of a failed response,
// or is nil when the body has none.
func failureOutcome(body []byte) *models.ValidationOutcome {
	n, ok := schema.CreditsRemaining(body)
	if !ok {
		return nil
	}
	return &models.ValidationOutcome{CreditsRemaining: &n}
}

func failureMessage(body []byte) string {
	if msg := schema.Message(body); msg != "" && !strings.HasPrefix(msg, "{") {
		return msg
	}
	return "validator reported failure"
}

func toOutcome(dto *responseDTO) *models.ValidationOutcome {
	res := dto.ValidationResult
	out := &models.ValidationOutcome{
		Verdict:         models.VerdictNeedsRevision,
		ComplianceScore: res.ComplianceScore,
	}
	if res.ValidationStatus == StatusAppropriate {
		out.Verdict = models.VerdictCompliant
	}
	if res.Feedback != nil {
		out.Feedback = *res.Feedback
	}

	codes := make([]models.SuggestedCode, 0, len(res.SuggestedICD10Codes)+len(res.SuggestedCPTCodes))
	for _, c := range res.SuggestedICD10Codes {
		codes = append(codes, models.SuggestedCode{Code: c.Code, Description: c.Description, System: models.CodeSystemICD10})
	}
	for _, c := range res.SuggestedCPTCodes {
		codes = append(codes, models.SuggestedCode{Code: c.Code, Description: c.Description, System: models.CodeSystemCPT})
	}
	out.SuggestedCodes = codes

	if dto.TrialInfo != nil && dto.TrialInfo.ValidationsRemaining != nil {
		n := *dto.TrialInfo.ValidationsRemaining
		out.CreditsRemaining = &n
	}
	return out
}

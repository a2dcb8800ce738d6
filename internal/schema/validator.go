// Package schema checks the shape of validator responses before they are decoded.
package schema

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

var ErrInvalidJSON = errors.New("response is not valid JSON")

// Field is one required path and the JSON type it must hold.
type Field struct {
	Path string
	Type gjson.Type
}

// ValidationResponseFields are the paths a successful validation response must carry.
var ValidationResponseFields = []Field{
	{Path: "success", Type: gjson.True},
	{Path: "validationResult", Type: gjson.JSON},
	{Path: "validationResult.validationStatus", Type: gjson.String},
	{Path: "validationResult.complianceScore", Type: gjson.Number},
}

// ShapeError lists the paths that were missing or had the wrong type.
type ShapeError struct {
	Missing []string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("response missing or mistyped fields: %s", strings.Join(e.Missing, ", "))
}

type Validator struct {
	fields []Field
}

// New returns a validator for validation responses.
func New() *Validator {
	return NewWithFields(ValidationResponseFields...)
}

func NewWithFields(fields ...Field) *Validator {
	return &Validator{fields: fields}
}

// Validate returns ErrInvalidJSON or a *ShapeError if body does not fit.
func (v *Validator) Validate(body []byte) error {
	if !gjson.ValidBytes(body) {
		return ErrInvalidJSON
	}

	var missing []string
	for _, f := range v.fields {
		res := gjson.GetBytes(body, f.Path)
		if !res.Exists() || !typeMatches(res, f.Type) {
			missing = append(missing, f.Path)
		}
	}
	if len(missing) > 0 {
		return &ShapeError{Missing: missing}
	}
	return nil
}

func typeMatches(res gjson.Result, want gjson.Type) bool {
	switch want {
	case gjson.True, gjson.False:
		// any boolean
		return res.Type == gjson.True || res.Type == gjson.False
	case gjson.JSON:
		return res.IsObject()
	default:
		return res.Type == want
	}
}

// Message extracts the "message" of an error body, falling back to the raw text.
func Message(body []byte) string {
	if gjson.ValidBytes(body) {
		if m := gjson.GetBytes(body, "message"); m.Type == gjson.String && m.String() != "" {
			return m.String()
		}
	}
	return truncate(strings.TrimSpace(string(body)), maxMessageBytes)
}

const maxMessageBytes = 200

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// Failed reports whether body is a JSON object with success set to false.
// Failure bodies are not held to the success shape.
func Failed(body []byte) bool {
	return gjson.ValidBytes(body) && gjson.GetBytes(body, "success").Type == gjson.False
}

// CreditsRemaining returns trialInfo.validationsRemaining when body carries it.
func CreditsRemaining(body []byte) (int, bool) {
	if !gjson.ValidBytes(body) {
		return 0, false
	}
	res := gjson.GetBytes(body, "trialInfo.validationsRemaining")
	if res.Type != gjson.Number {
		return 0, false
	}
	return int(res.Int()), true
}

package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"radpad-intake-service/internal/credits"
	"radpad-intake-service/internal/debounce"
	"radpad-intake-service/internal/models"
	"radpad-intake-service/internal/service/search"
	"radpad-intake-service/internal/service/workflow"
)

const maxRequestBytes = 1 << 20

type handlers struct {
	workflows    *workflow.Registry
	ledger       *credits.Ledger
	searcher     search.Searcher
	searchPolicy debounce.Policy
}

type submitRequest struct {
	Text       string `json:"text"`
	IsOverride bool   `json:"isOverride"`
}

type submitResponse struct {
	Attempt  models.Attempt    `json:"attempt"`
	Workflow workflow.Snapshot `json:"workflow"`
}

type errorResponse struct {
	Error    string             `json:"error"`
	Message  string             `json:"message"`
	Workflow *workflow.Snapshot `json:"workflow,omitempty"`
}

type creditsResponse struct {
	CreditsRemaining int `json:"creditsRemaining"`
}

var errWorkflowNotFound = errors.New("workflow not found")

func (h *handlers) createWorkflow(w http.ResponseWriter, r *http.Request) {
	// a new workflow starts from the persisted counter
	h.refreshCredits(r)
	wf := h.workflows.Create()
	writeJSON(w, http.StatusCreated, wf.Snapshot())
}

func (h *handlers) getWorkflow(w http.ResponseWriter, r *http.Request) {
	wf, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, wf.Snapshot())
}

func (h *handlers) deleteWorkflow(w http.ResponseWriter, r *http.Request) {
	if !h.workflows.Delete(chi.URLParam(r, "id")) {
		writeError(w, http.StatusNotFound, "not_found", errWorkflowNotFound, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) submit(w http.ResponseWriter, r *http.Request) {
	wf, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req submitRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err, nil)
		return
	}

	res, err := wf.Submit(r.Context(), req.Text, req.IsOverride)
	if err != nil {
		snap := wf.Snapshot()
		writeKindError(w, err, &snap)
		return
	}
	writeJSON(w, http.StatusOK, submitResponse{
		Attempt:  res.Attempt,
		Workflow: wf.Snapshot(),
	})
}

func (h *handlers) accept(w http.ResponseWriter, r *http.Request) {
	wf, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if err := wf.AcceptAndAdvance(r.Context()); err != nil {
		snap := wf.Snapshot()
		writeKindError(w, err, &snap)
		return
	}
	writeJSON(w, http.StatusOK, wf.Snapshot())
}

func (h *handlers) reset(w http.ResponseWriter, r *http.Request) {
	wf, ok := h.lookup(w, r)
	if !ok {
		return
	}
	wf.Reset(r.Context())
	writeJSON(w, http.StatusOK, wf.Snapshot())
}

func (h *handlers) credits(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, creditsResponse{CreditsRemaining: h.refreshCredits(r)})
}

func (h *handlers) refreshCredits(r *http.Request) int {
	n, err := h.ledger.Refresh(r.Context())
	if err != nil {
		log.Warn().Err(err).Int("creditsRemaining", n).Msg("Credit counter unreadable, keeping last value")
	}
	return n
}

func (h *handlers) lookup(w http.ResponseWriter, r *http.Request) (*workflow.Workflow, bool) {
	wf, ok := h.workflows.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", errWorkflowNotFound, nil)
		return nil, false
	}
	return wf, true
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind models.ErrorKind) int {
	switch kind {
	case models.KindInsufficientInput:
		return http.StatusUnprocessableEntity
	case models.KindCreditsExhausted:
		return http.StatusPaymentRequired
	case models.KindValidationUnavailable, models.KindServerRejectedFormat:
		return http.StatusBadGateway
	case models.KindInvalidTransition, models.KindSubmissionInFlight, models.KindOverrideUnavailable:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeKindError(w http.ResponseWriter, err error, snap *workflow.Snapshot) {
	kind := models.KindOf(err)
	code := string(kind)
	if code == "" {
		code = "internal"
	}
	writeError(w, statusFor(kind), code, err, snap)
}

func writeError(w http.ResponseWriter, status int, code string, err error, snap *workflow.Snapshot) {
	writeJSON(w, status, errorResponse{
		Error:    code,
		Message:  err.Error(),
		Workflow: snap,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Failed to write response")
	}
}

package claimapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/linnemanlabs/adjuster/internal/authmw"
	"github.com/linnemanlabs/adjuster/internal/claim"
	"github.com/linnemanlabs/adjuster/internal/triage"
)

type reviewRequest struct {
	Accept   bool           `json:"accept"`
	Severity claim.Severity `json:"severity"`
	Action   claim.Action   `json:"action"`
	Reason   string         `json:"reason"`
}

// handleReview records an accept or override against an existing record.
// The reviewer is always the authenticated identity, never the body.
func (a *API) handleReview(w http.ResponseWriter, r *http.Request) {
	reviewer, ok := authmw.ReviewerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "reviewer authentication required")
		return
	}

	var req reviewRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	id := chi.URLParam(r, "id")
	rec, err := a.svc.Review(r.Context(), id, triage.Review{
		Reviewer: reviewer,
		Accept:   req.Accept,
		Severity: req.Severity,
		Action:   req.Action,
		Reason:   req.Reason,
	})
	if err != nil {
		a.writeServiceError(r, w, err, "review failed", "record_id", id, "reviewer", reviewer)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

package claimapi

import (
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"

	"github.com/linnemanlabs/adjuster/internal/claim"
)

// handleDecide runs a provider on the posted claim. The provider query
// parameter defaults to the first registered provider.
func (a *API) handleDecide(w http.ResponseWriter, r *http.Request) {
	provider := r.URL.Query().Get("provider")
	if provider == "" {
		if names := a.svc.Providers(); len(names) > 0 {
			provider = names[0]
		}
	}

	var c claim.Claim
	if err := decodeBody(w, r, &c); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(
		attribute.String("adjuster.claim.id", c.ID),
		attribute.String("adjuster.provider", provider),
	)

	rec, err := a.svc.Decide(r.Context(), provider, &c)
	if err != nil {
		a.writeServiceError(r, w, err, "decision failed", "claim_id", c.ID, "provider", provider)
		return
	}

	span.SetAttributes(
		attribute.String("adjuster.record.id", rec.ID),
		attribute.String("adjuster.decision.action", string(rec.Decision.Action)),
	)
	writeJSON(w, http.StatusCreated, rec)
}

func (a *API) handleHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("adjuster.claim.id", id))

	recs, err := a.svc.History(r.Context(), id)
	if err != nil {
		a.writeServiceError(r, w, err, "failed to list decisions", "claim_id", id)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"claim_id": id, "records": recs})
}

func (a *API) handleGetDecision(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("adjuster.record.id", id))

	rec, err := a.svc.Get(r.Context(), id)
	if err != nil {
		a.writeServiceError(r, w, err, "failed to get decision", "record_id", id)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

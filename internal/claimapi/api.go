// Package claimapi exposes claim decisions and reviewer verdicts over HTTP.
package claimapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/adjuster/internal/claim"
	"github.com/linnemanlabs/adjuster/internal/triage"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// DecisionService defines the business operations claimapi needs.
type DecisionService interface {
	Decide(ctx context.Context, provider string, c *claim.Claim) (*triage.Record, error)
	Review(ctx context.Context, recordID string, rv triage.Review) (*triage.Record, error)
	Get(ctx context.Context, id string) (*triage.Record, error)
	History(ctx context.Context, claimID string) ([]*triage.Record, error)
	Providers() []string
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger     log.Logger
	svc        DecisionService
	reviewAuth func(http.Handler) http.Handler
}

// New creates a new API handler. reviewAuth guards the review endpoint and
// must place the reviewer in the request context (see authmw.Reviewers).
// A nil reviewAuth leaves reviews unauthenticated, so every review is
// rejected for lack of a reviewer.
func New(logger log.Logger, svc DecisionService, reviewAuth func(http.Handler) http.Handler) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if svc == nil {
		panic(xerrors.New("decision service is required"))
	}
	return &API{
		logger:     logger,
		svc:        svc,
		reviewAuth: reviewAuth,
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/providers", a.handleProviders)
		r.Post("/claims/decide", a.handleDecide)
		r.Get("/claims/{id}/decisions", a.handleHistory)
		r.Get("/decisions/{id}", a.handleGetDecision)
		r.Group(func(r chi.Router) {
			if a.reviewAuth != nil {
				r.Use(a.reviewAuth)
			}
			r.Post("/decisions/{id}/review", a.handleReview)
		})
	})
}

func (a *API) handleProviders(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"providers": a.svc.Providers()})
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, claim.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, claim.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, claim.ErrProvider):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError logs unexpected failures and writes the mapped status.
// Internal error text is never returned to the caller.
func (a *API) writeServiceError(r *http.Request, w http.ResponseWriter, err error, msg string, kv ...any) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		a.logger.Error(r.Context(), err, msg, kv...)
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// nothing to do with errors here
	_ = json.NewEncoder(w).Encode(v)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

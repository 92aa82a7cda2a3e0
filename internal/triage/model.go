package triage

import (
	"time"

	"github.com/linnemanlabs/adjuster/internal/claim"
)

// Kind distinguishes a provider decision from the reviews layered on top of it.
type Kind string

const (
	// KindDecision is a decision produced by a provider.
	KindDecision Kind = "decision"

	// KindAccepted is a reviewer confirming an earlier record as-is.
	KindAccepted Kind = "accepted"

	// KindOverride is a reviewer replacing an earlier record's labels.
	KindOverride Kind = "override"
)

// Valid reports whether k is a known record kind.
func (k Kind) Valid() bool {
	switch k {
	case KindDecision, KindAccepted, KindOverride:
		return true
	}
	return false
}

// Record is one persisted decision or review. Records are never updated;
// a review is a new record whose Supersedes names the record it reviewed.
type Record struct {
	ID         string         `json:"id"`
	ClaimID    string         `json:"claim_id"`
	PolicyID   string         `json:"policy_id"`
	Provider   string         `json:"provider"`
	Kind       Kind           `json:"kind"`
	Decision   claim.Decision `json:"decision"`
	Supersedes string         `json:"supersedes,omitempty"`
	Reviewer   string         `json:"reviewer,omitempty"`
	Reason     string         `json:"reason,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	Duration   float64        `json:"duration_seconds,omitempty"`
}

// Escalated reports whether the record's action routes the claim to a senior adjuster.
func (r *Record) Escalated() bool {
	return r.Decision.Action == claim.ActionEscalate
}

// Review is a human reviewer's verdict on an existing record. With Accept
// set the labels are ignored; otherwise Severity and Action replace the
// reviewed record's labels.
type Review struct {
	Reviewer string         `json:"reviewer"`
	Accept   bool           `json:"accept"`
	Severity claim.Severity `json:"severity,omitempty"`
	Action   claim.Action   `json:"action,omitempty"`
	Reason   string         `json:"reason,omitempty"`
}

// Validate checks the review names a reviewer and, for overrides, known labels.
func (r *Review) Validate() error {
	if r.Accept {
		if r.Reviewer == "" {
			return &claim.ValidationError{Field: "reviewer", Reason: "required"}
		}
		return nil
	}
	o := claim.Override{Reviewer: r.Reviewer, Severity: r.Severity, Action: r.Action}
	return o.Validate()
}

// Clone returns a deep copy of r.
func (r *Record) Clone() *Record {
	cp := *r
	if r.Decision.RiskFactors != nil {
		cp.Decision.RiskFactors = append([]string(nil), r.Decision.RiskFactors...)
	}
	return &cp
}

// Package claim defines the insurance claim domain: policies, claims,
// severity and action labels, decisions, and the typed errors shared by
// every decision provider.
package claim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// Date is a calendar date. It marshals as YYYY-MM-DD and accepts RFC 3339 on input.
type Date struct {
	time.Time
}

// NewDate returns the Date for the given calendar day in UTC.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses YYYY-MM-DD or RFC 3339.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return Date{t}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: want %s or RFC 3339", s, DateLayout)
	}
	return Date{t}, nil
}

func (d Date) String() string { return d.Format(DateLayout) }

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(d.Format(DateLayout))
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// PolicyType is the coverage tier of a policy.
type PolicyType string

const (
	PolicyBasic    PolicyType = "basic"
	PolicyStandard PolicyType = "standard"
	PolicyPremium  PolicyType = "premium"
)

// ParsePolicyType parses a tier name case-insensitively ("Premium" and "premium" are equal).
func ParsePolicyType(s string) (PolicyType, error) {
	switch v := PolicyType(strings.ToLower(strings.TrimSpace(s))); v {
	case PolicyBasic, PolicyStandard, PolicyPremium:
		return v, nil
	default:
		return "", fmt.Errorf("unknown policy type %q", s)
	}
}

// Policy is a read-only insurance policy record.
type Policy struct {
	ID                 string          `json:"policy_id"`
	Type               PolicyType      `json:"policy_type"`
	CoverageLimit      decimal.Decimal `json:"coverage_limit"`
	Deductible         decimal.Decimal `json:"deductible"`
	TenureYears        float64         `json:"policy_tenure_years"`
	ClaimsHistoryCount int             `json:"claims_history_count"`
	Active             bool            `json:"is_active"`
	CustomerName       string          `json:"customer_name,omitempty"`
	StartDate          Date            `json:"policy_start_date,omitzero"`
}

// Validate checks the policy record for malformed fields.
func (p *Policy) Validate() error {
	switch {
	case strings.TrimSpace(p.ID) == "":
		return &ValidationError{Field: "policy_id", Reason: "required"}
	case p.Type != PolicyBasic && p.Type != PolicyStandard && p.Type != PolicyPremium:
		return &ValidationError{Field: "policy_type", Reason: fmt.Sprintf("unknown type %q", p.Type)}
	case !p.CoverageLimit.IsPositive():
		return &ValidationError{Field: "coverage_limit", Reason: "must be positive"}
	case p.Deductible.IsNegative():
		return &ValidationError{Field: "deductible", Reason: "must not be negative"}
	case p.TenureYears < 0:
		return &ValidationError{Field: "policy_tenure_years", Reason: "must not be negative"}
	case p.ClaimsHistoryCount < 0:
		return &ValidationError{Field: "claims_history_count", Reason: "must not be negative"}
	}
	return nil
}

// Claim is a single insurance claim. GroundTruth labels are only present in
// labelled evaluation datasets.
type Claim struct {
	ID                  string          `json:"claim_id"`
	PolicyID            string          `json:"policy_id"`
	Type                string          `json:"claim_type"`
	Amount              decimal.Decimal `json:"claim_amount"`
	IncidentDate        Date            `json:"incident_date"`
	ReportDate          Date            `json:"report_date"`
	Location            string          `json:"location,omitempty"`
	ClaimantAge         int             `json:"claimant_age"`
	PriorClaims         int             `json:"prior_claims"`
	Narrative           string          `json:"narrative,omitempty"`
	GroundTruthSeverity Severity        `json:"ground_truth_severity,omitempty"`
	GroundTruthAction   Action          `json:"ground_truth_action,omitempty"`
}

// Validate checks the claim for malformed fields. Amounts must be
// non-negative and the report date must not precede the incident date.
func (c *Claim) Validate() error {
	switch {
	case strings.TrimSpace(c.ID) == "":
		return &ValidationError{Field: "claim_id", Reason: "required"}
	case strings.TrimSpace(c.PolicyID) == "":
		return &ValidationError{Field: "policy_id", Reason: "required"}
	case c.Amount.IsNegative():
		return &ValidationError{Field: "claim_amount", Reason: "must not be negative"}
	case c.IncidentDate.IsZero():
		return &ValidationError{Field: "incident_date", Reason: "required"}
	case c.ReportDate.IsZero():
		return &ValidationError{Field: "report_date", Reason: "required"}
	case c.ReportDate.Before(c.IncidentDate.Time):
		return &ValidationError{Field: "report_date", Reason: "precedes incident_date"}
	case c.ClaimantAge < 0:
		return &ValidationError{Field: "claimant_age", Reason: "must not be negative"}
	case c.PriorClaims < 0:
		return &ValidationError{Field: "prior_claims", Reason: "must not be negative"}
	case c.GroundTruthSeverity != "" && !c.GroundTruthSeverity.Valid():
		return &ValidationError{Field: "ground_truth_severity", Reason: fmt.Sprintf("unknown severity %q", c.GroundTruthSeverity)}
	case c.GroundTruthAction != "" && !c.GroundTruthAction.Valid():
		return &ValidationError{Field: "ground_truth_action", Reason: fmt.Sprintf("unknown action %q", c.GroundTruthAction)}
	}
	return nil
}

// ReportingDelayDays returns the number of whole days between incident and report.
func (c *Claim) ReportingDelayDays() int {
	if c.IncidentDate.IsZero() || c.ReportDate.IsZero() {
		return 0
	}
	return int(c.ReportDate.Sub(c.IncidentDate.Time).Hours() / 24)
}

// HasGroundTruth reports whether both ground-truth labels are present.
func (c *Claim) HasGroundTruth() bool {
	return c.GroundTruthSeverity != "" && c.GroundTruthAction != ""
}

// Decider is any decision provider: rule-based, single LLM call, or tool-using agent.
// Implementations must be safe for concurrent use when evaluated in parallel.
type Decider interface {
	Decide(ctx context.Context, c *Claim) (*Decision, error)
}

// DeciderFunc adapts a function to Decider.
type DeciderFunc func(ctx context.Context, c *Claim) (*Decision, error)

// Decide implements Decider.
func (f DeciderFunc) Decide(ctx context.Context, c *Claim) (*Decision, error) { return f(ctx, c) }

// Call runs d on c, converting a panic into a *ProviderError. Validation,
// not-found, and provider errors pass through; any other error, or a nil
// decision, is wrapped as a *ProviderError for provider.
func Call(ctx context.Context, provider string, d Decider, c *Claim) (dec *Decision, err error) {
	var claimID string
	if c != nil {
		claimID = c.ID
	}
	defer func() {
		if r := recover(); r != nil {
			dec, err = nil, &ProviderError{Provider: provider, ClaimID: claimID, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	dec, err = d.Decide(ctx, c)
	switch {
	case err == nil && dec == nil:
		return nil, &ProviderError{Provider: provider, ClaimID: claimID, Err: errors.New("no decision returned")}
	case err == nil:
		return dec, nil
	case errors.Is(err, ErrInvalid), errors.Is(err, ErrNotFound), errors.Is(err, ErrProvider):
		return nil, err
	default:
		return nil, &ProviderError{Provider: provider, ClaimID: claimID, Err: err}
	}
}

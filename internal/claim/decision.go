package claim

import "time"

// Decision is the outcome a provider produced for one claim.
type Decision struct {
	ClaimID     string    `json:"claim_id"`
	Provider    string    `json:"provider,omitempty"`
	Severity    Severity  `json:"severity"`
	Action      Action    `json:"action"`
	Rationale   string    `json:"rationale"`
	RiskScore   float64   `json:"risk_score"`
	RiskFactors []string  `json:"risk_factors,omitempty"`
	Rule        string    `json:"rule,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Override is a human reviewer's replacement of a decision's labels.
type Override struct {
	Reviewer  string    `json:"reviewer"`
	Severity  Severity  `json:"severity"`
	Action    Action    `json:"action"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Validate checks that the override names a reviewer and known labels.
func (o *Override) Validate() error {
	switch {
	case o.Reviewer == "":
		return &ValidationError{Field: "reviewer", Reason: "required"}
	case !o.Severity.Valid():
		return &ValidationError{Field: "severity", Reason: "unknown severity " + string(o.Severity)}
	case !o.Action.Valid():
		return &ValidationError{Field: "action", Reason: "unknown action " + string(o.Action)}
	}
	return nil
}

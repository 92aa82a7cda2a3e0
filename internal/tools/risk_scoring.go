package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/linnemanlabs/adjuster/internal/risk"
)

// RiskScoring exposes the risk scorer to the LLM.
type RiskScoring struct {
	scorer *risk.Scorer
}

type riskScoringInput struct {
	ClaimAmount          *decimal.Decimal `json:"claim_amount"`
	PriorClaims          int              `json:"prior_claims"`
	PolicyTenureYears    float64          `json:"policy_tenure_years"`
	IncidentToReportDays int              `json:"incident_to_report_days"`
	CoverageLimit        decimal.Decimal  `json:"coverage_limit"`
	ClaimantAge          int              `json:"claimant_age"`
	Location             string           `json:"location"`
}

// RiskResult is the risk_scoring tool output.
type RiskResult struct {
	risk.Assessment
	Explanation string `json:"explanation"`
}

// NewRiskScoring creates a risk scoring tool.
func NewRiskScoring(scorer *risk.Scorer) *RiskScoring {
	return &RiskScoring{scorer: scorer}
}

// Name implements Tool.
func (r *RiskScoring) Name() string { return "risk_scoring" }

// Description implements Tool.
func (r *RiskScoring) Description() string {
	return `Calculate a fraud/risk score between 0 and 1 for a claim. Considers claim amount, prior claims,
policy tenure, reporting delay, closeness to the coverage limit, claimant age, and location.
Returns risk_score, risk_level (low, medium, high), the contributing risk_factors, and an explanation.`
}

// Parameters implements Tool.
func (r *RiskScoring) Parameters() json.RawMessage {
	return json.RawMessage(`{
        "type": "object",
        "properties": {
            "claim_amount": {"type": "number", "description": "Claimed amount in dollars"},
            "prior_claims": {"type": "integer", "description": "Number of prior claims by the claimant"},
            "policy_tenure_years": {"type": "number", "description": "Years the policy has been active"},
            "incident_to_report_days": {"type": "integer", "description": "Days between the incident and the report"},
            "coverage_limit": {"type": "number", "description": "Policy coverage limit in dollars"},
            "claimant_age": {"type": "integer", "description": "Age of the claimant"},
            "location": {"type": "string", "description": "Claim location, e.g. \"Chicago, IL\""}
        },
        "required": ["claim_amount", "prior_claims", "policy_tenure_years", "incident_to_report_days"]
    }`)
}

// Execute implements Tool.
func (r *RiskScoring) Execute(_ context.Context, params json.RawMessage) (json.RawMessage, error) {
	var input riskScoringInput
	if err := json.Unmarshal(params, &input); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	if input.ClaimAmount == nil {
		return nil, fmt.Errorf("claim_amount is required")
	}
	if input.ClaimAmount.IsNegative() {
		return nil, fmt.Errorf("claim_amount must not be negative")
	}

	a := r.scorer.ScoreInput(risk.Input{
		Amount:             *input.ClaimAmount,
		PriorClaims:        input.PriorClaims,
		TenureYears:        input.PolicyTenureYears,
		ReportingDelayDays: input.IncidentToReportDays,
		CoverageLimit:      input.CoverageLimit,
		ClaimantAge:        input.ClaimantAge,
		Location:           input.Location,
	})
	return json.Marshal(RiskResult{Assessment: a, Explanation: a.Explanation()})
}

package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/linnemanlabs/adjuster/internal/policy"
)

// PolicyLookup returns a policy record by ID.
type PolicyLookup struct {
	policies policy.Lookup
}

type policyLookupInput struct {
	PolicyID string `json:"policy_id"`
}

// NewPolicyLookup creates a policy lookup tool backed by policies.
func NewPolicyLookup(policies policy.Lookup) *PolicyLookup {
	return &PolicyLookup{policies: policies}
}

// Name implements Tool.
func (p *PolicyLookup) Name() string { return "policy_lookup" }

// Description implements Tool.
func (p *PolicyLookup) Description() string {
	return `Look up insurance policy information by policy ID. Returns the policy type, coverage limit,
deductible, customer name, start date, tenure in years, claims history count, and whether the policy is active.
Call this first for every claim: coverage limit and tenure are needed for risk scoring.`
}

// Parameters implements Tool.
func (p *PolicyLookup) Parameters() json.RawMessage {
	return json.RawMessage(`{
        "type": "object",
        "properties": {
            "policy_id": {
                "type": "string",
                "description": "The policy ID to look up, e.g. POL-1001"
            }
        },
        "required": ["policy_id"]
    }`)
}

// Execute implements Tool.
func (p *PolicyLookup) Execute(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
	var input policyLookupInput
	if err := json.Unmarshal(params, &input); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	if input.PolicyID == "" {
		return nil, fmt.Errorf("policy_id is required")
	}

	pol, err := p.policies.Lookup(ctx, input.PolicyID)
	if err != nil {
		return nil, err
	}
	return json.Marshal(pol)
}

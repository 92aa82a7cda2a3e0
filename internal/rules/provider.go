package rules

import (
	"context"

	"github.com/linnemanlabs/adjuster/internal/claim"
	"github.com/linnemanlabs/adjuster/internal/policy"
	"github.com/linnemanlabs/adjuster/internal/risk"
)

// ProviderName identifies rule-based decisions.
const ProviderName = "rule_based"

// Provider is the rule-based claim.Decider: policy lookup, risk scoring,
// then the rule engine.
type Provider struct {
	policies policy.Lookup
	scorer   *risk.Scorer
	engine   *Engine
}

// NewProvider wires a rule-based provider.
func NewProvider(policies policy.Lookup, scorer *risk.Scorer, engine *Engine) *Provider {
	return &Provider{
		policies: policies,
		scorer:   scorer,
		engine:   engine,
	}
}

// Decide validates the claim, resolves its policy, and applies the rules.
// An unknown policy surfaces as *claim.NotFoundError.
func (p *Provider) Decide(ctx context.Context, c *claim.Claim) (*claim.Decision, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	pol, err := p.policies.Lookup(ctx, c.PolicyID)
	if err != nil {
		return nil, err
	}

	a := p.scorer.Score(c, pol)
	d := p.engine.Decide(c, pol, a)
	d.Provider = ProviderName
	return &d, nil
}

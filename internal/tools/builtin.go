package tools

import (
	"github.com/linnemanlabs/adjuster/internal/audit"
	"github.com/linnemanlabs/adjuster/internal/policy"
	"github.com/linnemanlabs/adjuster/internal/risk"
)

// NewClaimsRegistry registers policy_lookup, risk_scoring, and triage_logger.
func NewClaimsRegistry(policies policy.Lookup, scorer *risk.Scorer, sink audit.Sink, provider string) *Registry {
	r := NewRegistry()
	r.Register(NewPolicyLookup(policies))
	r.Register(NewRiskScoring(scorer))
	r.Register(NewTriageLogger(sink, provider))
	return r
}

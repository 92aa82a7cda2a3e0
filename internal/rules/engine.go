// Package rules implements the deterministic, first-match-wins triage rule
// engine and the rule-based decision provider built on it.
package rules

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/linnemanlabs/adjuster/internal/claim"
	"github.com/linnemanlabs/adjuster/internal/risk"
)

// FallbackRule names the decision taken when no rule matches.
const FallbackRule = "default_investigate"

// Config holds rule thresholds. Comparisons are strict below the approve
// limits and inclusive at the escalation risk.
type Config struct {
	AutoApproveMaxAmount      float64 `yaml:"auto_approve_max_amount"`
	AutoApproveMaxRisk        float64 `yaml:"auto_approve_max_risk"`
	AutoApproveMaxPriorClaims int     `yaml:"auto_approve_max_prior_claims"`
	EscalateRisk              float64 `yaml:"escalate_risk"`
}

// DefaultConfig returns the built-in rule thresholds.
func DefaultConfig() Config {
	return Config{
		AutoApproveMaxAmount:      5_000,
		AutoApproveMaxRisk:        0.30,
		AutoApproveMaxPriorClaims: 2,
		EscalateRisk:              0.70,
	}
}

// Input is everything a rule predicate may inspect.
type Input struct {
	Claim    *claim.Claim
	Policy   *claim.Policy
	Risk     risk.Assessment
	Severity claim.Severity
}

// Rule is one entry of the ordered rule list.
type Rule struct {
	Name   string
	When   func(Input) bool
	Action claim.Action
}

// DefaultRules returns the standard ordered rules:
//
//	auto_approve: amount < 5,000 and risk < 0.30 and prior claims < 2
//	escalate:     severity critical or risk >= 0.70
//
// Anything else falls through to investigate.
func DefaultRules(cfg Config) []Rule {
	maxAmount := decimal.NewFromFloat(cfg.AutoApproveMaxAmount)
	return []Rule{
		{
			Name: "auto_approve",
			When: func(in Input) bool {
				return in.Claim.Amount.LessThan(maxAmount) &&
					in.Risk.Score < cfg.AutoApproveMaxRisk &&
					in.Claim.PriorClaims < cfg.AutoApproveMaxPriorClaims
			},
			Action: claim.ActionApprove,
		},
		{
			Name: "escalate",
			When: func(in Input) bool {
				return in.Severity == claim.SeverityCritical || in.Risk.Score >= cfg.EscalateRisk
			},
			Action: claim.ActionEscalate,
		},
	}
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the time source used for decision timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Engine evaluates rules in order. It is total: every input yields a decision.
type Engine struct {
	rules    []Rule
	fallback claim.Action
	now      func() time.Time
	printer  *message.Printer
}

// NewEngine builds an engine over an explicit rule list.
func NewEngine(rules []Rule, opts ...Option) *Engine {
	e := &Engine{
		rules:    rules,
		fallback: claim.ActionInvestigate,
		now:      time.Now,
		printer:  message.NewPrinter(language.English),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// New builds an engine with DefaultRules(cfg).
func New(cfg Config, opts ...Option) *Engine {
	return NewEngine(DefaultRules(cfg), opts...)
}

// Rules returns the rule names in evaluation order.
func (e *Engine) Rules() []string {
	names := make([]string, 0, len(e.rules))
	for _, r := range e.rules {
		names = append(names, r.Name)
	}
	return names
}

// Decide applies the first matching rule. Severity is always derived from
// the claim amount.
func (e *Engine) Decide(c *claim.Claim, p *claim.Policy, a risk.Assessment) claim.Decision {
	in := Input{
		Claim:    c,
		Policy:   p,
		Risk:     a,
		Severity: claim.SeverityForAmount(c.Amount),
	}

	ruleName, action := FallbackRule, e.fallback
	for _, r := range e.rules {
		if r.When(in) {
			ruleName, action = r.Name, r.Action
			break
		}
	}

	return claim.Decision{
		ClaimID:     c.ID,
		Severity:    in.Severity,
		Action:      action,
		Rationale:   e.rationale(ruleName, in),
		RiskScore:   a.Score,
		RiskFactors: append([]string(nil), a.Factors...),
		Rule:        ruleName,
		Timestamp:   e.now().UTC(),
	}
}

func (e *Engine) rationale(ruleName string, in Input) string {
	var b strings.Builder
	b.WriteString(e.printer.Sprintf(
		"Rule-based decision (%s): Severity=%s based on amount $%.2f. Risk score=%.3f. Prior claims=%d.",
		ruleName, in.Severity, in.Claim.Amount.InexactFloat64(), in.Risk.Score, in.Claim.PriorClaims,
	))
	if len(in.Risk.Factors) > 0 {
		b.WriteString(" Risk factors: ")
		b.WriteString(strings.Join(in.Risk.Factors, ", "))
		b.WriteString(".")
	}
	return b.String()
}

package rules

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/linnemanlabs/adjuster/internal/claim"
	"github.com/linnemanlabs/adjuster/internal/policy"
	"github.com/linnemanlabs/adjuster/internal/risk"
)

var fixedNow = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func testClaim(amount int64, prior int) *claim.Claim {
	return &claim.Claim{
		ID:           "CLM-1",
		PolicyID:     "POL-1",
		Type:         "auto",
		Amount:       decimal.NewFromInt(amount),
		IncidentDate: claim.NewDate(2026, 2, 1),
		ReportDate:   claim.NewDate(2026, 2, 3),
		ClaimantAge:  40,
		PriorClaims:  prior,
	}
}

func TestDecide_Rules(t *testing.T) {
	t.Parallel()

	e := New(DefaultConfig(), WithClock(fixedClock))

	tests := []struct {
		name         string
		amount       int64
		prior        int
		score        float64
		wantSeverity claim.Severity
		wantAction   claim.Action
		wantRule     string
	}{
		{"small clean claim approves", 3000, 0, 0.1, claim.SeverityLow, claim.ActionApprove, "auto_approve"},
		{"risk at approve limit investigates", 3000, 0, 0.3, claim.SeverityLow, claim.ActionInvestigate, FallbackRule},
		{"two prior claims investigates", 3000, 2, 0.1, claim.SeverityLow, claim.ActionInvestigate, FallbackRule},
		{"amount at 5000 investigates", 5000, 0, 0.1, claim.SeverityMedium, claim.ActionInvestigate, FallbackRule},
		{"critical amount escalates", 75000, 0, 0.0, claim.SeverityCritical, claim.ActionEscalate, "escalate"},
		{"high risk escalates", 20000, 0, 0.7, claim.SeverityMedium, claim.ActionEscalate, "escalate"},
		{"low amount high risk escalates", 1000, 0, 0.75, claim.SeverityLow, claim.ActionEscalate, "escalate"},
		{"mid amount mid risk investigates", 40000, 1, 0.45, claim.SeverityHigh, claim.ActionInvestigate, FallbackRule},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := testClaim(tt.amount, tt.prior)
			d := e.Decide(c, nil, risk.Assessment{Score: tt.score})

			if d.Severity != tt.wantSeverity {
				t.Errorf("severity = %q, want %q", d.Severity, tt.wantSeverity)
			}
			if d.Action != tt.wantAction {
				t.Errorf("action = %q, want %q", d.Action, tt.wantAction)
			}
			if d.Rule != tt.wantRule {
				t.Errorf("rule = %q, want %q", d.Rule, tt.wantRule)
			}
			if d.ClaimID != "CLM-1" {
				t.Errorf("claim id = %q", d.ClaimID)
			}
			if !d.Timestamp.Equal(fixedNow) {
				t.Errorf("timestamp = %v, want %v", d.Timestamp, fixedNow)
			}
		})
	}
}

func TestDecide_Pure(t *testing.T) {
	t.Parallel()

	e := New(DefaultConfig(), WithClock(fixedClock))
	c := testClaim(12000, 1)
	a := risk.Assessment{Score: 0.25, Level: risk.LevelLow, Factors: []string{risk.FactorNewPolicy}}

	first := e.Decide(c, nil, a)
	second := e.Decide(c, nil, a)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Decide not deterministic:\n%+v\n%+v", first, second)
	}
}

func TestDecide_SeverityAlwaysBanded(t *testing.T) {
	t.Parallel()

	e := New(DefaultConfig())
	for _, amt := range []int64{0, 4999, 5000, 24999, 25000, 74999, 75000, 500000} {
		c := testClaim(amt, 0)
		for _, score := range []float64{0, 0.5, 1} {
			d := e.Decide(c, nil, risk.Assessment{Score: score})
			if want := claim.SeverityForAmount(c.Amount); d.Severity != want {
				t.Errorf("amount %d score %v: severity = %q, want %q", amt, score, d.Severity, want)
			}
		}
	}
}

func TestDecide_Rationale(t *testing.T) {
	t.Parallel()

	e := New(DefaultConfig())
	c := testClaim(0, 2)
	c.Amount = decimal.RequireFromString("12345.67")
	d := e.Decide(c, nil, risk.Assessment{Score: 0.3, Factors: []string{risk.FactorNewPolicy, risk.FactorAgeRisk}})

	for _, want := range []string{
		"Severity=medium",
		"$12,345.67",
		"Risk score=0.300",
		"Prior claims=2",
		"Risk factors: new_policy, age_risk.",
	} {
		if !strings.Contains(d.Rationale, want) {
			t.Errorf("rationale %q missing %q", d.Rationale, want)
		}
	}
}

func TestNewEngine_CustomRulesFirstMatchWins(t *testing.T) {
	t.Parallel()

	always := func(Input) bool { return true }
	e := NewEngine([]Rule{
		{Name: "deny_everything", When: always, Action: claim.ActionDeny},
		{Name: "never_reached", When: always, Action: claim.ActionApprove},
	})

	d := e.Decide(testClaim(100, 0), nil, risk.Assessment{})
	if d.Action != claim.ActionDeny || d.Rule != "deny_everything" {
		t.Errorf("decision = %s/%s, want deny/deny_everything", d.Action, d.Rule)
	}
	if got := e.Rules(); !reflect.DeepEqual(got, []string{"deny_everything", "never_reached"}) {
		t.Errorf("Rules() = %v", got)
	}
}

func TestNewEngine_NoRulesFallsBack(t *testing.T) {
	t.Parallel()

	d := NewEngine(nil).Decide(testClaim(1, 0), nil, risk.Assessment{})
	if d.Action != claim.ActionInvestigate || d.Rule != FallbackRule {
		t.Errorf("decision = %s/%s, want investigate fallback", d.Action, d.Rule)
	}
}

func newTestProvider(t *testing.T, policies ...claim.Policy) *Provider {
	t.Helper()
	dir, err := policy.NewDirectory(policies)
	if err != nil {
		t.Fatalf("NewDirectory: %v", err)
	}
	return NewProvider(dir, risk.NewScorer(risk.DefaultConfig()), New(DefaultConfig(), WithClock(fixedClock)))
}

func TestProvider_EndToEnd(t *testing.T) {
	t.Parallel()

	p := newTestProvider(t,
		claim.Policy{ID: "POL-LOW", Type: claim.PolicyStandard, CoverageLimit: decimal.NewFromInt(100000), TenureYears: 5, Active: true},
		claim.Policy{ID: "POL-HIGH", Type: claim.PolicyPremium, CoverageLimit: decimal.NewFromInt(100000), TenureYears: 3, Active: true},
	)

	t.Run("small clean claim", func(t *testing.T) {
		t.Parallel()

		c := testClaim(3000, 0)
		c.PolicyID = "POL-LOW"
		d, err := p.Decide(context.Background(), c)
		if err != nil {
			t.Fatalf("Decide: %v", err)
		}
		if d.Severity != claim.SeverityLow || d.Action != claim.ActionApprove {
			t.Errorf("decision = %s/%s, want low/approve", d.Severity, d.Action)
		}
		if d.Provider != ProviderName {
			t.Errorf("provider = %q", d.Provider)
		}
	})

	t.Run("large claim near limit with history", func(t *testing.T) {
		t.Parallel()

		c := testClaim(90000, 4)
		c.PolicyID = "POL-HIGH"
		d, err := p.Decide(context.Background(), c)
		if err != nil {
			t.Fatalf("Decide: %v", err)
		}
		if d.RiskScore < 0.7 {
			t.Errorf("risk score = %v, want >= 0.7", d.RiskScore)
		}
		if d.Severity != claim.SeverityCritical || d.Action != claim.ActionEscalate {
			t.Errorf("decision = %s/%s, want critical/escalate", d.Severity, d.Action)
		}
	})
}

func TestProvider_Errors(t *testing.T) {
	t.Parallel()

	p := newTestProvider(t, claim.Policy{ID: "POL-1", Type: claim.PolicyBasic, CoverageLimit: decimal.NewFromInt(10000), TenureYears: 2})

	missing := testClaim(100, 0)
	missing.PolicyID = "POL-404"
	if _, err := p.Decide(context.Background(), missing); !errors.Is(err, claim.ErrNotFound) {
		t.Errorf("unknown policy err = %v, want ErrNotFound", err)
	}

	negative := testClaim(-5, 0)
	if _, err := p.Decide(context.Background(), negative); !errors.Is(err, claim.ErrInvalid) {
		t.Errorf("negative amount err = %v, want ErrInvalid", err)
	}

	backdated := testClaim(100, 0)
	backdated.ReportDate = claim.NewDate(2026, 1, 1)
	var ve *claim.ValidationError
	if _, err := p.Decide(context.Background(), backdated); !errors.As(err, &ve) || ve.Field != "report_date" {
		t.Errorf("backdated report err = %v, want report_date validation error", err)
	}
}

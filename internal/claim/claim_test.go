package claim

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func validClaim() Claim {
	return Claim{
		ID:           "CLM-0001",
		PolicyID:     "POL-1001",
		Type:         "auto",
		Amount:       decimal.NewFromInt(3000),
		IncidentDate: NewDate(2024, 3, 1),
		ReportDate:   NewDate(2024, 3, 4),
		Location:     "Austin, TX",
		ClaimantAge:  40,
	}
}

func TestSeverityForAmount_Bands(t *testing.T) {
	t.Parallel()

	tests := []struct {
		amount string
		want   Severity
	}{
		{"0", SeverityLow},
		{"4999.99", SeverityLow},
		{"5000", SeverityMedium},
		{"24999.99", SeverityMedium},
		{"25000", SeverityHigh},
		{"74999.99", SeverityHigh},
		{"75000", SeverityCritical},
		{"1000000", SeverityCritical},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			t.Parallel()
			got := SeverityForAmount(decimal.RequireFromString(tt.amount))
			if got != tt.want {
				t.Errorf("SeverityForAmount(%s) = %q, want %q", tt.amount, got, tt.want)
			}
		})
	}
}

func TestSeverityForAmount_Monotonic(t *testing.T) {
	t.Parallel()

	prev := -1
	for amt := int64(0); amt <= 100_000; amt += 250 {
		rank := SeverityForAmount(decimal.NewFromInt(amt)).Rank()
		if rank < prev {
			t.Fatalf("rank dropped at amount %d: %d < %d", amt, rank, prev)
		}
		prev = rank
	}
}

func TestSeverity_Rank(t *testing.T) {
	t.Parallel()

	for i, s := range Severities() {
		if s.Rank() != i {
			t.Errorf("%s.Rank() = %d, want %d", s, s.Rank(), i)
		}
	}
	if Severity("urgent").Rank() != -1 {
		t.Error("unknown severity should rank -1")
	}
}

func TestParseLabels(t *testing.T) {
	t.Parallel()

	if s, err := ParseSeverity(" HIGH "); err != nil || s != SeverityHigh {
		t.Errorf("ParseSeverity = %q, %v", s, err)
	}
	if _, err := ParseSeverity("severe"); err == nil {
		t.Error("expected error for unknown severity")
	}
	if a, err := ParseAction("Escalate"); err != nil || a != ActionEscalate {
		t.Errorf("ParseAction = %q, %v", a, err)
	}
	if _, err := ParseAction("pay"); err == nil {
		t.Error("expected error for unknown action")
	}
}

func TestClaimValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		mutate    func(c *Claim)
		wantField string
	}{
		{"valid", func(*Claim) {}, ""},
		{"missing id", func(c *Claim) { c.ID = "" }, "claim_id"},
		{"missing policy", func(c *Claim) { c.PolicyID = " " }, "policy_id"},
		{"negative amount", func(c *Claim) { c.Amount = decimal.NewFromInt(-1) }, "claim_amount"},
		{"report before incident", func(c *Claim) { c.ReportDate = NewDate(2024, 2, 28) }, "report_date"},
		{"same day report", func(c *Claim) { c.ReportDate = c.IncidentDate }, ""},
		{"negative age", func(c *Claim) { c.ClaimantAge = -3 }, "claimant_age"},
		{"negative prior", func(c *Claim) { c.PriorClaims = -1 }, "prior_claims"},
		{"bad ground truth", func(c *Claim) { c.GroundTruthSeverity = "severe" }, "ground_truth_severity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := validClaim()
			tt.mutate(&c)
			err := c.Validate()

			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Validate() = %v, want *ValidationError", err)
			}
			if ve.Field != tt.wantField {
				t.Errorf("field = %q, want %q", ve.Field, tt.wantField)
			}
			if !errors.Is(err, ErrInvalid) {
				t.Error("expected errors.Is(err, ErrInvalid)")
			}
		})
	}
}

func TestPolicyValidate(t *testing.T) {
	t.Parallel()

	p := Policy{ID: "POL-1", Type: PolicyStandard, CoverageLimit: decimal.NewFromInt(100000), Deductible: decimal.NewFromInt(500)}
	if err := p.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}

	p.CoverageLimit = decimal.Zero
	if err := p.Validate(); err == nil {
		t.Error("expected error for zero coverage limit")
	}
}

func TestParsePolicyType(t *testing.T) {
	t.Parallel()

	got, err := ParsePolicyType("Premium")
	if err != nil || got != PolicyPremium {
		t.Errorf("ParsePolicyType(Premium) = %q, %v", got, err)
	}
	if _, err := ParsePolicyType("gold"); err == nil {
		t.Error("expected error for unknown type")
	}
}

func TestReportingDelayDays(t *testing.T) {
	t.Parallel()

	c := validClaim()
	c.ReportDate = NewDate(2024, 4, 5)
	if got := c.ReportingDelayDays(); got != 35 {
		t.Errorf("ReportingDelayDays() = %d, want 35", got)
	}
}

func TestClaimJSON_DateFormat(t *testing.T) {
	t.Parallel()

	raw := `{"claim_id":"CLM-9","policy_id":"POL-9","claim_amount":12345.67,"incident_date":"2024-01-15","report_date":"2024-01-20T00:00:00Z"}`

	var c Claim
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !c.Amount.Equal(decimal.RequireFromString("12345.67")) {
		t.Errorf("amount = %s, want 12345.67", c.Amount)
	}
	if c.ReportingDelayDays() != 5 {
		t.Errorf("delay = %d, want 5", c.ReportingDelayDays())
	}

	out, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back map[string]any
	if err := json.Unmarshal(out, &back); err != nil {
		t.Fatalf("unmarshal back: %v", err)
	}
	if back["report_date"] != "2024-01-20" {
		t.Errorf("report_date = %v, want 2024-01-20", back["report_date"])
	}
}

func TestErrors_Is(t *testing.T) {
	t.Parallel()

	nf := &NotFoundError{Kind: "policy", ID: "POL-X"}
	wrapped := &ProviderError{Provider: "rule_based", ClaimID: "CLM-1", Err: nf}

	if !errors.Is(wrapped, ErrProvider) {
		t.Error("expected ErrProvider")
	}
	if !errors.Is(wrapped, ErrNotFound) {
		t.Error("expected ErrNotFound through unwrap")
	}
	if nf.Error() != `policy "POL-X" not found` {
		t.Errorf("Error() = %q", nf.Error())
	}
}

func TestOverrideValidate(t *testing.T) {
	t.Parallel()

	o := Override{Reviewer: "jdoe", Severity: SeverityHigh, Action: ActionInvestigate}
	if err := o.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}
	o.Action = "pay"
	if err := o.Validate(); err == nil {
		t.Error("expected error for unknown action")
	}
}

func TestCall(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	tests := []struct {
		name         string
		decider      DeciderFunc
		wantProvider bool
		wantIs       error
	}{
		{"success", func(context.Context, *Claim) (*Decision, error) { return &Decision{ClaimID: "C1"}, nil }, false, nil},
		{"plain error wrapped", func(context.Context, *Claim) (*Decision, error) { return nil, boom }, true, boom},
		{"panic recovered", func(context.Context, *Claim) (*Decision, error) { panic("kaboom") }, true, ErrProvider},
		{"nil decision", func(context.Context, *Claim) (*Decision, error) { return nil, nil }, true, ErrProvider},
		{"validation passes through", func(context.Context, *Claim) (*Decision, error) {
			return nil, &ValidationError{Field: "claim_id", Reason: "required"}
		}, false, ErrInvalid},
		{"not found passes through", func(context.Context, *Claim) (*Decision, error) {
			return nil, &NotFoundError{Kind: "policy", ID: "P9"}
		}, false, ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			d, err := Call(context.Background(), "test", tt.decider, &Claim{ID: "C1"})
			if tt.wantIs == nil {
				if err != nil || d == nil {
					t.Fatalf("Call = %v, %v", d, err)
				}
				return
			}
			if !errors.Is(err, tt.wantIs) {
				t.Fatalf("err = %v, want %v", err, tt.wantIs)
			}
			var pe *ProviderError
			if got := errors.As(err, &pe); got != tt.wantProvider {
				t.Errorf("ProviderError = %v, want %v (%v)", got, tt.wantProvider, err)
			}
			if pe != nil && (pe.Provider != "test" || pe.ClaimID != "C1") {
				t.Errorf("provider error = %+v", pe)
			}
		})
	}
}

package providers

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/linnemanlabs/adjuster/internal/agent"
	"github.com/linnemanlabs/adjuster/internal/audit"
	"github.com/linnemanlabs/adjuster/internal/cfg"
	"github.com/linnemanlabs/adjuster/internal/claim"
	"github.com/linnemanlabs/adjuster/internal/eval"
	"github.com/linnemanlabs/adjuster/internal/policy"
	"github.com/linnemanlabs/adjuster/internal/rules"
)

func directory(t *testing.T) *policy.Directory {
	t.Helper()
	d, err := policy.NewDirectory([]claim.Policy{{
		ID:            "POL-1",
		Type:          claim.PolicyStandard,
		CoverageLimit: decimal.NewFromInt(100000),
		Deductible:    decimal.NewFromInt(500),
		TenureYears:   5,
		Active:        true,
	}})
	if err != nil {
		t.Fatalf("NewDirectory: %v", err)
	}
	return d
}

func smallClaim() *claim.Claim {
	return &claim.Claim{
		ID:           "CLM-1",
		PolicyID:     "POL-1",
		Type:         "auto",
		Amount:       decimal.NewFromInt(3000),
		IncidentDate: claim.NewDate(2024, 5, 1),
		ReportDate:   claim.NewDate(2024, 5, 3),
		ClaimantAge:  40,
	}
}

var answering = agent.ProviderFunc(func(context.Context, *agent.LLMRequest) (*agent.LLMResponse, error) {
	return &agent.LLMResponse{
		Content:    []agent.ContentBlock{{Type: agent.BlockText, Text: "SEVERITY: low\nACTION: approve\nRATIONALE: small clean claim"}},
		StopReason: agent.StopEnd,
		Model:      "test-model",
	}, nil
})

func names(cs []eval.Candidate) string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Name
	}
	return fmt.Sprint(out)
}

func TestBuild_RuleBasedOnly(t *testing.T) {
	t.Parallel()

	got := Build(Deps{Policies: directory(t), Tuning: cfg.DefaultTuning()})
	if names(got) != "["+rules.ProviderName+"]" {
		t.Fatalf("providers = %s, want rule_based only", names(got))
	}

	d, err := got[0].Decider.Decide(context.Background(), smallClaim())
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if d.Action != claim.ActionApprove || d.Severity != claim.SeverityLow {
		t.Errorf("decision = %s/%s, want low/approve", d.Severity, d.Action)
	}
}

func TestBuild_WithLLM(t *testing.T) {
	t.Parallel()

	sink := audit.NewMemory()
	got := Build(Deps{Policies: directory(t), Tuning: cfg.DefaultTuning(), LLM: answering, Sink: sink, MaxToolRounds: 3})

	want := fmt.Sprint([]string{rules.ProviderName, agent.OneShotName, agent.AgenticName})
	if names(got) != want {
		t.Fatalf("providers = %s, want %s", names(got), want)
	}

	d, err := got[1].Decider.Decide(context.Background(), smallClaim())
	if err != nil {
		t.Fatalf("one-shot Decide: %v", err)
	}
	if d.Provider != agent.OneShotName || d.Action != claim.ActionApprove {
		t.Errorf("one-shot decision = %+v", d)
	}
	if sink.Len() == 0 {
		t.Error("LLM providers should write to the shared audit sink")
	}
}

func TestSelect(t *testing.T) {
	t.Parallel()

	all := Build(Deps{Policies: directory(t), Tuning: cfg.DefaultTuning(), LLM: answering})

	tests := []struct {
		name        string
		want        []string
		wantNames   string
		wantUnknown string
	}{
		{"all", nil, "[rule_based one_shot_llm agentic]", "[]"},
		{"keeps build order", []string{"agentic", "rule_based"}, "[rule_based agentic]", "[]"},
		{"unknown reported", []string{"rule_based", "gpt", "gpt"}, "[rule_based]", "[gpt]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, unknown := Select(all, tt.want)
			if names(got) != tt.wantNames {
				t.Errorf("selected = %s, want %s", names(got), tt.wantNames)
			}
			if fmt.Sprint(append([]string{}, unknown...)) != tt.wantUnknown {
				t.Errorf("unknown = %v, want %s", unknown, tt.wantUnknown)
			}
		})
	}
}

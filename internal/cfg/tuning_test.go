package cfg

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/linnemanlabs/adjuster/internal/risk"
	"github.com/linnemanlabs/adjuster/internal/rules"
)

func writeTuning(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write tuning: %v", err)
	}
	return path
}

func TestLoadTuning_EmptyPathIsDefault(t *testing.T) {
	t.Parallel()

	got, err := LoadTuning("")
	if err != nil {
		t.Fatalf("LoadTuning: %v", err)
	}
	if got.Rules != rules.DefaultConfig() {
		t.Errorf("rules = %+v, want defaults", got.Rules)
	}
	if got.Risk.Weights != risk.DefaultConfig().Weights {
		t.Errorf("risk weights = %+v, want defaults", got.Risk.Weights)
	}
}

func TestLoadTuning_PartialOverride(t *testing.T) {
	t.Parallel()

	path := writeTuning(t, `
risk:
  weights:
    high_claim_amount: 0.4
  high_risk_locations: ["Miami, FL"]
rules:
  escalate_risk: 0.8
`)
	got, err := LoadTuning(path)
	if err != nil {
		t.Fatalf("LoadTuning: %v", err)
	}

	def := DefaultTuning()
	if got.Risk.Weights.HighClaimAmount != 0.4 {
		t.Errorf("high_claim_amount = %v, want 0.4", got.Risk.Weights.HighClaimAmount)
	}
	if got.Risk.Weights.NewPolicy != def.Risk.Weights.NewPolicy {
		t.Errorf("new_policy = %v, want default %v", got.Risk.Weights.NewPolicy, def.Risk.Weights.NewPolicy)
	}
	if len(got.Risk.HighRiskLocations) != 1 || got.Risk.HighRiskLocations[0] != "Miami, FL" {
		t.Errorf("locations = %v", got.Risk.HighRiskLocations)
	}
	if got.Rules.EscalateRisk != 0.8 || got.Rules.AutoApproveMaxAmount != def.Rules.AutoApproveMaxAmount {
		t.Errorf("rules = %+v", got.Rules)
	}
}

func TestLoadTuning_EmptyFile(t *testing.T) {
	t.Parallel()

	got, err := LoadTuning(writeTuning(t, ""))
	if err != nil {
		t.Fatalf("LoadTuning: %v", err)
	}
	if got.Rules != rules.DefaultConfig() {
		t.Errorf("rules = %+v, want defaults", got.Rules)
	}
}

func TestLoadTuning_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		body   string
		substr string
	}{
		{"unknown key", "rules:\n  escalate: 0.8\n", "escalate"},
		{"malformed yaml", "risk: [\n", "parse tuning"},
		{"negative weight", "risk:\n  weights:\n    age_risk: -0.1\n", "age_risk"},
		{"approve above escalate", "rules:\n  auto_approve_max_risk: 0.9\n  escalate_risk: 0.5\n", "must not exceed"},
		{"zero approve amount", "rules:\n  auto_approve_max_amount: 0\n", "auto_approve_max_amount"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := LoadTuning(writeTuning(t, tt.body))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.substr) {
				t.Errorf("error %q does not contain %q", err, tt.substr)
			}
		})
	}
}

func TestLoadTuning_MissingFile(t *testing.T) {
	t.Parallel()

	if _, err := LoadTuning(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

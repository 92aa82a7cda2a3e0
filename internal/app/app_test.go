package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/linnemanlabs/adjuster/internal/agent"
	"github.com/linnemanlabs/adjuster/internal/audit"
	ac "github.com/linnemanlabs/adjuster/internal/cfg"
	"github.com/linnemanlabs/adjuster/internal/rules"
)

const policiesCSV = `policy_id,policy_type,coverage_limit,deductible,policy_start_date,claims_history_count,customer_name,is_active,policy_tenure_years
POL-1,premium,250000,500,2018-03-01,0,Dana Whitfield,true,6.5
POL-2,basic,25000,2500,2024-01-10,4,Priya Natarajan,true,0.4
`

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func baseConfig(t *testing.T) (*ac.Config, string) {
	t.Helper()
	dir := t.TempDir()
	return &ac.Config{
		PoliciesPath:       writeFile(t, dir, "policies.csv", policiesCSV),
		AuditLogPath:       filepath.Join(dir, "audit.jsonl"),
		AgentMaxToolRounds: 15,
	}, dir
}

func names(s *Stack) string {
	out := make([]string, len(s.Candidates))
	for i, c := range s.Candidates {
		out[i] = c.Name
	}
	return strings.Join(out, ",")
}

func TestLoad_RuleBasedOnly(t *testing.T) {
	t.Parallel()
	c, _ := baseConfig(t)

	s, err := Load(context.Background(), c, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer func() { _ = s.Close() }()

	if s.Policies.Len() != 2 {
		t.Errorf("policies = %d, want 2", s.Policies.Len())
	}
	if s.LLM != nil {
		t.Error("LLM should be nil without a key")
	}
	if got := names(s); got != rules.ProviderName {
		t.Errorf("candidates = %q", got)
	}
	if s.Tuning.Risk.Weights != ac.DefaultTuning().Risk.Weights {
		t.Error("empty tuning path should load defaults")
	}
}

func TestLoad_WithLLM(t *testing.T) {
	t.Parallel()
	c, _ := baseConfig(t)

	llm := agent.ProviderFunc(func(context.Context, *agent.LLMRequest) (*agent.LLMResponse, error) {
		return nil, errors.New("unused")
	})
	s, err := Load(context.Background(), c, nil, WithLLM(llm), WithHooks(agent.EngineHooks{}))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer func() { _ = s.Close() }()

	if got, want := names(s), rules.ProviderName+","+agent.OneShotName+","+agent.AgenticName; got != want {
		t.Errorf("candidates = %q, want %q", got, want)
	}
}

func TestLoad_AuditSinkWritesChain(t *testing.T) {
	t.Parallel()
	c, _ := baseConfig(t)

	s, err := Load(context.Background(), c, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := s.Sink.Append(context.Background(), audit.Entry{Type: audit.TypeError, ClaimID: "CLM-1", Error: "x"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}

	res := audit.Verify(c.AuditLogPath)
	if !res.Valid || res.Lines != 1 {
		t.Errorf("verify = %+v", res)
	}
}

func TestLoad_NoAuditLog(t *testing.T) {
	t.Parallel()
	c, _ := baseConfig(t)
	c.AuditLogPath = ""

	s, err := Load(context.Background(), c, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := s.Sink.Append(context.Background(), audit.Entry{Type: audit.TypeError}); err != nil {
		t.Errorf("Append without sinks: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(c *ac.Config, dir string)
		want   string
	}{
		{"missing policies", func(c *ac.Config, dir string) { c.PoliciesPath = filepath.Join(dir, "absent.csv") }, "load policies"},
		{"duplicate policy", func(c *ac.Config, dir string) {
			c.PoliciesPath = writeFile(t, dir, "dup.csv", policiesCSV+"POL-1,basic,1000,100,2020-01-01,0,Again,true,1\n")
		}, "policy directory"},
		{"bad tuning", func(c *ac.Config, dir string) {
			c.TuningPath = writeFile(t, dir, "tuning.yaml", "risk:\n  nope: 1\n")
		}, "tuning"},
		{"audit path is a directory", func(c *ac.Config, dir string) { c.AuditLogPath = dir }, "audit log"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c, dir := baseConfig(t)
			tt.mutate(c, dir)
			_, err := Load(context.Background(), c, nil)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want substring %q", err, tt.want)
			}
		})
	}
}

package cfg

import (
	"flag"
	"math"
	"strings"
	"testing"
)

// validBase returns a Config with all required fields set to valid values.
func validBase() Config {
	return Config{
		DrainSeconds:          60,
		ShutdownBudgetSeconds: 90,
		APIPort:               8080,
		ClaudeAPIKey:          "sk-test-key",
		ClaudeModel:           "claude-sonnet-4-20250514",
		AgentMaxToolRounds:    15,
		PoliciesPath:          "data/policies.csv",
		KafkaTopic:            "adjuster.audit",
	}
}

// with returns validBase modified by fn.
func with(fn func(*Config)) Config {
	c := validBase()
	fn(&c)
	return c
}

func TestRegisterFlags_Defaults(t *testing.T) {
	t.Parallel()

	var c Config
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.RegisterFlags(fs)

	if err := fs.Parse(nil); err != nil {
		t.Fatalf("parse empty args: %v", err)
	}

	if c.DrainSeconds != 60 {
		t.Errorf("DrainSeconds = %d, want 60", c.DrainSeconds)
	}
	if c.ShutdownBudgetSeconds != 90 {
		t.Errorf("ShutdownBudgetSeconds = %d, want 90", c.ShutdownBudgetSeconds)
	}
	if c.APIPort != 8080 {
		t.Errorf("APIPort = %d, want 8080", c.APIPort)
	}
	if c.ClaudeModel != "claude-sonnet-4-20250514" {
		t.Errorf("ClaudeModel = %q, want %q", c.ClaudeModel, "claude-sonnet-4-20250514")
	}
	if c.AuditLogPath != "audit.jsonl" {
		t.Errorf("AuditLogPath = %q, want audit.jsonl", c.AuditLogPath)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestRegisterFlags_Override(t *testing.T) {
	t.Parallel()

	var c Config
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.RegisterFlags(fs)

	args := []string{
		"-drain-seconds", "30",
		"-shutdown-budget-seconds", "120",
		"-http-port", "9090",
		"-claude-api-key", "sk-override",
		"-claude-model", "claude-opus-4-20250514",
		"-policies", "/etc/adjuster/policies.json",
		"-kafka-brokers", "k1:9092, k2:9092",
		"-reviewer-tokens", "alice:t1,bob:t2",
	}
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse args: %v", err)
	}

	if c.DrainSeconds != 30 {
		t.Errorf("DrainSeconds = %d, want 30", c.DrainSeconds)
	}
	if c.ShutdownBudgetSeconds != 120 {
		t.Errorf("ShutdownBudgetSeconds = %d, want 120", c.ShutdownBudgetSeconds)
	}
	if c.APIPort != 9090 {
		t.Errorf("APIPort = %d, want 9090", c.APIPort)
	}
	if c.ClaudeAPIKey != "sk-override" {
		t.Errorf("ClaudeAPIKey = %q, want %q", c.ClaudeAPIKey, "sk-override")
	}
	if c.PoliciesPath != "/etc/adjuster/policies.json" {
		t.Errorf("PoliciesPath = %q", c.PoliciesPath)
	}
	if b := c.Brokers(); len(b) != 2 || b[0] != "k1:9092" || b[1] != "k2:9092" {
		t.Errorf("Brokers = %v", b)
	}
	rv, err := c.Reviewers()
	if err != nil || rv["alice"] != "t1" || rv["bob"] != "t2" {
		t.Errorf("Reviewers = %v, %v", rv, err)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		cfg       Config
		wantErr   bool
		errSubstr []string // substrings that must appear in error message
	}{
		{
			name:    "defaults are valid",
			cfg:     validBase(),
			wantErr: false,
		},
		{
			name:    "rule-based only without claude key",
			cfg:     with(func(c *Config) { c.ClaudeAPIKey, c.ClaudeModel = "", "" }),
			wantErr: false,
		},
		{
			name:    "minimum valid values",
			cfg:     with(func(c *Config) { c.DrainSeconds, c.ShutdownBudgetSeconds, c.APIPort, c.AgentMaxToolRounds = 1, 2, 1, 1 }),
			wantErr: false,
		},
		{
			name:    "maximum valid values",
			cfg:     with(func(c *Config) { c.DrainSeconds, c.ShutdownBudgetSeconds, c.APIPort, c.AgentMaxToolRounds = 299, 300, 65535, 50 }),
			wantErr: false,
		},
		// DrainSeconds boundaries
		{
			name:      "drain zero",
			cfg:       with(func(c *Config) { c.DrainSeconds = 0 }),
			wantErr:   true,
			errSubstr: []string{"DRAIN_SECONDS"},
		},
		{
			name:      "drain negative",
			cfg:       with(func(c *Config) { c.DrainSeconds = -1 }),
			wantErr:   true,
			errSubstr: []string{"DRAIN_SECONDS"},
		},
		{
			name:      "drain above max",
			cfg:       with(func(c *Config) { c.DrainSeconds, c.ShutdownBudgetSeconds = 301, 302 }),
			wantErr:   true,
			errSubstr: []string{"DRAIN_SECONDS"},
		},
		{
			name:    "drain at upper bound",
			cfg:     with(func(c *Config) { c.DrainSeconds, c.ShutdownBudgetSeconds = 300, 300 }),
			wantErr: true, // budget must be greater than drain
		},
		// ShutdownBudgetSeconds boundaries
		{
			name:      "budget zero",
			cfg:       with(func(c *Config) { c.ShutdownBudgetSeconds = 0 }),
			wantErr:   true,
			errSubstr: []string{"SHUTDOWN_BUDGET_SECONDS"},
		},
		{
			name:      "budget above max",
			cfg:       with(func(c *Config) { c.ShutdownBudgetSeconds = 301 }),
			wantErr:   true,
			errSubstr: []string{"SHUTDOWN_BUDGET_SECONDS"},
		},
		// Cross-field: budget vs drain
		{
			name:      "budget equals drain",
			cfg:       with(func(c *Config) { c.ShutdownBudgetSeconds = 60 }),
			wantErr:   true,
			errSubstr: []string{"must be greater than"},
		},
		{
			name:    "budget is drain plus one",
			cfg:     with(func(c *Config) { c.ShutdownBudgetSeconds = 61 }),
			wantErr: false,
		},
		// APIPort boundaries
		{
			name:      "port zero",
			cfg:       with(func(c *Config) { c.APIPort = 0 }),
			wantErr:   true,
			errSubstr: []string{"HTTP_PORT"},
		},
		{
			name:      "port above max",
			cfg:       with(func(c *Config) { c.APIPort = 65536 }),
			wantErr:   true,
			errSubstr: []string{"HTTP_PORT"},
		},
		// String and cross-field validation
		{
			name:      "claude key without model",
			cfg:       with(func(c *Config) { c.ClaudeModel = "" }),
			wantErr:   true,
			errSubstr: []string{"CLAUDE_MODEL"},
		},
		{
			name:      "agent turns zero",
			cfg:       with(func(c *Config) { c.AgentMaxToolRounds = 0 }),
			wantErr:   true,
			errSubstr: []string{"AGENT_MAX_TOOL_ROUNDS"},
		},
		{
			name:      "empty policies path",
			cfg:       with(func(c *Config) { c.PoliciesPath = "" }),
			wantErr:   true,
			errSubstr: []string{"POLICIES"},
		},
		{
			name:      "kafka brokers without topic",
			cfg:       with(func(c *Config) { c.KafkaBrokers, c.KafkaTopic = "k1:9092", "" }),
			wantErr:   true,
			errSubstr: []string{"KAFKA_TOPIC"},
		},
		{
			name:    "no brokers no topic",
			cfg:     with(func(c *Config) { c.KafkaTopic = "" }),
			wantErr: false,
		},
		{
			name:      "malformed reviewer tokens",
			cfg:       with(func(c *Config) { c.ReviewerTokens = "alice" }),
			wantErr:   true,
			errSubstr: []string{"REVIEWER_TOKENS"},
		},
		// Error accumulation: all fields invalid
		{
			name:      "all fields invalid",
			cfg:       Config{ClaudeAPIKey: "k", KafkaBrokers: "k1", ReviewerTokens: ":"},
			wantErr:   true,
			errSubstr: []string{"DRAIN_SECONDS", "SHUTDOWN_BUDGET_SECONDS", "HTTP_PORT", "CLAUDE_MODEL", "AGENT_MAX_TOOL_ROUNDS", "POLICIES", "KAFKA_TOPIC", "REVIEWER_TOKENS"},
		},
		// Extreme values
		{
			name:      "extreme negative values",
			cfg:       with(func(c *Config) { c.DrainSeconds, c.ShutdownBudgetSeconds, c.APIPort = math.MinInt32, math.MinInt32, math.MinInt32 }),
			wantErr:   true,
			errSubstr: []string{"DRAIN_SECONDS", "SHUTDOWN_BUDGET_SECONDS", "HTTP_PORT"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				errMsg := err.Error()
				for _, sub := range tt.errSubstr {
					if !strings.Contains(errMsg, sub) {
						t.Errorf("error %q does not contain %q", errMsg, sub)
					}
				}
			}
		})
	}
}

func FuzzValidate(f *testing.F) {
	// Seeds: defaults, boundaries, extremes
	seeds := []struct {
		drain, budget, port, turns int
		key, model, policies       string
	}{
		{60, 90, 8080, 10, "sk-test", "claude-sonnet", "p.csv"},
		{1, 2, 1, 1, "", "", "p"},
		{299, 300, 65535, 50, "k", "m", "p"},
		{0, 0, 0, 0, "", "", ""},
		{-1, -1, -1, -1, "k", "", ""},
		{300, 300, 65535, 51, "k", "m", "p"},
		{150, 100, 8080, 5, "k", "m", "p"},
		{math.MinInt32, math.MinInt32, math.MinInt32, math.MinInt32, "", "", ""},
		{math.MaxInt32, math.MaxInt32, math.MaxInt32, math.MaxInt32, "", "", ""},
	}
	for _, s := range seeds {
		f.Add(s.drain, s.budget, s.port, s.turns, s.key, s.model, s.policies)
	}

	f.Fuzz(func(t *testing.T, drain, budget, port, turns int, key, model, policies string) {
		c := Config{
			DrainSeconds:          drain,
			ShutdownBudgetSeconds: budget,
			APIPort:               port,
			AgentMaxToolRounds:    turns,
			ClaudeAPIKey:          key,
			ClaudeModel:           model,
			PoliciesPath:          policies,
		}
		err := c.Validate()

		drainOK := drain >= 1 && drain <= 300
		budgetOK := budget >= 1 && budget <= 300
		portOK := port >= 1 && port <= 65535
		turnsOK := turns >= 1 && turns <= 50
		crossOK := budget > drain
		modelOK := key == "" || model != ""
		policiesOK := policies != ""

		allValid := drainOK && budgetOK && portOK && turnsOK && crossOK && modelOK && policiesOK

		if allValid && err != nil {
			t.Errorf("expected no error for valid config %+v, got: %v", c, err)
		}
		if !allValid && err == nil {
			t.Errorf("expected error for invalid config %+v, got nil", c)
		}
	})
}

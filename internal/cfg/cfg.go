package cfg

import (
	"errors"
	"flag"
	"fmt"
	"strings"

	"github.com/linnemanlabs/adjuster/internal/authmw"
)

// Config holds the application-level settings of the adjuster server and CLI.
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int
	ClaudeAPIKey          string
	ClaudeModel           string
	AgentMaxToolRounds    int
	DatabaseURL           string
	SlackWebhookURL       string
	PoliciesPath          string
	TuningPath            string
	AuditLogPath          string
	KafkaBrokers          string
	KafkaTopic            string
	ReviewerTokens        string
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.StringVar(&c.ClaudeAPIKey, "claude-api-key", "", "API key for the Claude LLM provider (empty = rule-based provider only)")
	fs.StringVar(&c.ClaudeModel, "claude-model", "claude-sonnet-4-20250514", "Claude model used by the LLM-backed providers")
	fs.IntVar(&c.AgentMaxToolRounds, "agent-max-tool-rounds", 15, "maximum tool call rounds per agentic decision (1..50)")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL (empty = in-memory store)")
	fs.StringVar(&c.SlackWebhookURL, "slack-webhook-url", "", "Slack webhook URL for escalation notifications")
	fs.StringVar(&c.PoliciesPath, "policies", "data/policies.csv", "policy file (.csv or .json)")
	fs.StringVar(&c.TuningPath, "tuning", "", "YAML file overriding risk weights and rule thresholds")
	fs.StringVar(&c.AuditLogPath, "audit-log", "audit.jsonl", "hash-chained JSON Lines audit log (empty = disabled)")
	fs.StringVar(&c.KafkaBrokers, "kafka-brokers", "", "comma-separated Kafka brokers for audit streaming (empty = disabled)")
	fs.StringVar(&c.KafkaTopic, "kafka-topic", "adjuster.audit", "Kafka topic for audit entries")
	fs.StringVar(&c.ReviewerTokens, "reviewer-tokens", "", "comma-separated name:token pairs allowed to review decisions")
}

// Brokers returns the configured Kafka brokers.
func (c *Config) Brokers() []string {
	var out []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// Reviewers returns the reviewer name -> token map.
func (c *Config) Reviewers() (map[string]string, error) {
	return authmw.ParseReviewerTokens(c.ReviewerTokens)
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}

	// Shutdown budget must be greater than drain time
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	// API port must be valid TCP port number
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	if c.ClaudeAPIKey != "" && c.ClaudeModel == "" {
		errs = append(errs, errors.New("CLAUDE_MODEL is required when CLAUDE_API_KEY is set"))
	}
	if c.AgentMaxToolRounds <= 0 || c.AgentMaxToolRounds > 50 {
		errs = append(errs, fmt.Errorf("invalid AGENT_MAX_TOOL_ROUNDS %d (must be 1..50)", c.AgentMaxToolRounds))
	}

	if c.PoliciesPath == "" {
		errs = append(errs, errors.New("POLICIES is required"))
	}

	if len(c.Brokers()) > 0 && c.KafkaTopic == "" {
		errs = append(errs, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set"))
	}

	if _, err := c.Reviewers(); err != nil {
		errs = append(errs, fmt.Errorf("invalid REVIEWER_TOKENS: %w", err))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

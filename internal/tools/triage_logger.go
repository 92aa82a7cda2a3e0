package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/linnemanlabs/adjuster/internal/audit"
	"github.com/linnemanlabs/adjuster/internal/claim"
)

// StepTriageLogged is the audit step recorded by the triage_logger tool.
const StepTriageLogged = "triage_logged"

// TriageLogger lets the LLM record its triage conclusion in the audit log.
type TriageLogger struct {
	sink     audit.Sink
	provider string
	now      func() time.Time
}

type triageLoggerInput struct {
	ClaimID   string  `json:"claim_id"`
	Severity  string  `json:"severity"`
	Action    string  `json:"action"`
	Rationale string  `json:"rationale"`
	RiskScore float64 `json:"risk_score"`
	PolicyID  string  `json:"policy_id"`
}

// NewTriageLogger creates a logger tool writing to sink on behalf of provider.
func NewTriageLogger(sink audit.Sink, provider string) *TriageLogger {
	return &TriageLogger{sink: sink, provider: provider, now: time.Now}
}

// Name implements Tool.
func (t *TriageLogger) Name() string { return "triage_logger" }

// Description implements Tool.
func (t *TriageLogger) Description() string {
	return `Log the triage decision for a claim. Call this once, after policy lookup and risk scoring,
with the final severity (low, medium, high, critical), action (approve, investigate, deny, escalate),
the rationale, and the risk score.`
}

// Parameters implements Tool.
func (t *TriageLogger) Parameters() json.RawMessage {
	return json.RawMessage(`{
        "type": "object",
        "properties": {
            "claim_id": {"type": "string", "description": "The claim ID"},
            "severity": {"type": "string", "enum": ["low", "medium", "high", "critical"]},
            "action": {"type": "string", "enum": ["approve", "investigate", "deny", "escalate"]},
            "rationale": {"type": "string", "description": "Explanation for the decision"},
            "risk_score": {"type": "number", "description": "Risk score from risk_scoring"},
            "policy_id": {"type": "string", "description": "The policy ID"}
        },
        "required": ["claim_id", "severity", "action", "rationale", "risk_score"]
    }`)
}

// Execute implements Tool.
func (t *TriageLogger) Execute(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
	var input triageLoggerInput
	if err := json.Unmarshal(params, &input); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	if input.ClaimID == "" {
		return nil, fmt.Errorf("claim_id is required")
	}
	sev, err := claim.ParseSeverity(input.Severity)
	if err != nil {
		return nil, err
	}
	act, err := claim.ParseAction(input.Action)
	if err != nil {
		return nil, err
	}

	err = t.sink.Append(ctx, audit.Entry{
		Timestamp: t.now().UTC(),
		Type:      audit.TypeAgentStep,
		Step:      StepTriageLogged,
		ClaimID:   input.ClaimID,
		PolicyID:  input.PolicyID,
		Provider:  t.provider,
		Severity:  sev,
		Action:    act,
		Rationale: input.Rationale,
		RiskScore: input.RiskScore,
	})
	if err != nil {
		return nil, fmt.Errorf("log decision: %w", err)
	}

	return json.Marshal(map[string]string{
		"status":  "logged",
		"message": fmt.Sprintf("Decision for claim %s logged successfully", input.ClaimID),
	})
}

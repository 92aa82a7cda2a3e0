// Package audit records decisions, overrides, and agent activity to
// append-only sinks. Sinks are passed explicitly; there is no global log.
package audit

import (
	"encoding/json"
	"time"

	"github.com/linnemanlabs/adjuster/internal/claim"
)

// EntryType classifies an audit entry.
type EntryType string

const (
	TypeDecision   EntryType = "decision"
	TypeOverride   EntryType = "override"
	TypeAccepted   EntryType = "accepted"
	TypeToolCall   EntryType = "tool_call"
	TypeAgentStep  EntryType = "agent_step"
	TypeEvaluation EntryType = "evaluation"
	TypeError      EntryType = "error"
)

// Entry is one audit record. It is a flat struct so json.Marshal output is
// deterministic, which the hash chain in File depends on.
type Entry struct {
	Timestamp   time.Time       `json:"ts"`
	Type        EntryType       `json:"type"`
	RecordID    string          `json:"record_id,omitempty"`
	Supersedes  string          `json:"supersedes,omitempty"`
	ClaimID     string          `json:"claim_id,omitempty"`
	PolicyID    string          `json:"policy_id,omitempty"`
	Provider    string          `json:"provider,omitempty"`
	Severity    claim.Severity  `json:"severity,omitempty"`
	Action      claim.Action    `json:"action,omitempty"`
	Rationale   string          `json:"rationale,omitempty"`
	RiskScore   float64         `json:"risk_score"`
	RiskFactors []string        `json:"risk_factors,omitempty"`
	Rule        string          `json:"rule,omitempty"`
	Reviewer    string          `json:"reviewer,omitempty"`
	Reason      string          `json:"reason,omitempty"`
	Step        string          `json:"step,omitempty"`
	Tool        string          `json:"tool,omitempty"`
	Input       json.RawMessage `json:"input,omitempty"`
	Output      json.RawMessage `json:"output,omitempty"`
	Data        json.RawMessage `json:"data,omitempty"`
	Error       string          `json:"error,omitempty"`
	PrevHash    string          `json:"prev_hash,omitempty"`
}

// FromDecision builds a decision entry. The entry timestamp is the decision timestamp.
func FromDecision(recordID, policyID string, d *claim.Decision) Entry {
	return Entry{
		Timestamp:   d.Timestamp,
		Type:        TypeDecision,
		RecordID:    recordID,
		ClaimID:     d.ClaimID,
		PolicyID:    policyID,
		Provider:    d.Provider,
		Severity:    d.Severity,
		Action:      d.Action,
		Rationale:   d.Rationale,
		RiskScore:   d.RiskScore,
		RiskFactors: d.RiskFactors,
		Rule:        d.Rule,
	}
}

// Decision reconstructs the decision carried by a decision or override entry.
func (e *Entry) Decision() claim.Decision {
	return claim.Decision{
		ClaimID:     e.ClaimID,
		Provider:    e.Provider,
		Severity:    e.Severity,
		Action:      e.Action,
		Rationale:   e.Rationale,
		RiskScore:   e.RiskScore,
		RiskFactors: e.RiskFactors,
		Rule:        e.Rule,
		Timestamp:   e.Timestamp,
	}
}

// rawJSON returns v as a RawMessage, or nil when v is empty or not valid JSON.
func rawJSON(b []byte) json.RawMessage {
	if len(b) == 0 || !json.Valid(b) {
		return nil
	}
	return json.RawMessage(b)
}

// JSON marshals v for use in Entry.Data, dropping it on failure.
func JSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return rawJSON(b)
}

// Raw returns b as a RawMessage if it is valid JSON, otherwise nil.
func Raw(b []byte) json.RawMessage { return rawJSON(b) }

package claim

import (
	"fmt"
	"strings"
)

// Severity is the triage severity of a claim. Levels are totally ordered by Rank.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Action is the recommended handling for a claim.
type Action string

const (
	ActionApprove     Action = "approve"
	ActionInvestigate Action = "investigate"
	ActionDeny        Action = "deny"
	ActionEscalate    Action = "escalate"
)

var (
	severities = []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}
	actions    = []Action{ActionApprove, ActionInvestigate, ActionDeny, ActionEscalate}
)

// Severities returns the severity label space in rank order.
func Severities() []Severity {
	out := make([]Severity, len(severities))
	copy(out, severities)
	return out
}

// Actions returns the action label space in canonical order.
func Actions() []Action {
	out := make([]Action, len(actions))
	copy(out, actions)
	return out
}

// Rank returns the position of s in the severity order, or -1 if s is not a known level.
func (s Severity) Rank() int {
	for i, v := range severities {
		if v == s {
			return i
		}
	}
	return -1
}

// Valid reports whether s is a known severity level.
func (s Severity) Valid() bool { return s.Rank() >= 0 }

func (s Severity) String() string { return string(s) }

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	for _, v := range actions {
		if v == a {
			return true
		}
	}
	return false
}

func (a Action) String() string { return string(a) }

// ParseSeverity parses a severity label, ignoring case and surrounding space.
func ParseSeverity(s string) (Severity, error) {
	v := Severity(strings.ToLower(strings.TrimSpace(s)))
	if !v.Valid() {
		return "", fmt.Errorf("unknown severity %q", s)
	}
	return v, nil
}

// ParseAction parses an action label, ignoring case and surrounding space.
func ParseAction(s string) (Action, error) {
	v := Action(strings.ToLower(strings.TrimSpace(s)))
	if !v.Valid() {
		return "", fmt.Errorf("unknown action %q", s)
	}
	return v, nil
}

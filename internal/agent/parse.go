package agent

import (
	"errors"
	"regexp"
	"strings"

	"github.com/linnemanlabs/adjuster/internal/claim"
)

// ErrUnparseable is returned when no severity or action can be read from a model answer.
var ErrUnparseable = errors.New("agent: no decision in model output")

// Parsed is a decision read from free text.
type Parsed struct {
	Severity  claim.Severity
	Action    claim.Action
	Rationale string
}

var (
	severityLine  = regexp.MustCompile(`(?im)^[\s*#_-]*severity(?:\s+level)?[\s*_]*[:=-][\s*_\[]*([a-z]+)`)
	actionLine    = regexp.MustCompile(`(?im)^[\s*#_-]*(?:recommended\s+)?action[\s*_]*[:=-][\s*_\[]*([a-z]+)`)
	rationaleLine = regexp.MustCompile(`(?is)(?:^|\n)[\s*#_-]*rationale[\s*_]*[:=-]\s*(.+)$`)

	severityWords = wordMatchers(claim.Severities())
	actionWords   = wordMatchers(claim.Actions())
)

// ParseDecision reads severity and action from model output. Labelled lines
// ("SEVERITY: high") win; otherwise the first label of each kind mentioned
// anywhere, checked in canonical order. It fails only when either label is
// missing entirely.
func ParseDecision(text string) (Parsed, error) {
	p := Parsed{Rationale: strings.TrimSpace(text)}

	if m := severityLine.FindStringSubmatch(text); m != nil {
		if s, err := claim.ParseSeverity(m[1]); err == nil {
			p.Severity = s
		}
	}
	if p.Severity == "" {
		p.Severity = firstMentioned(text, claim.Severities(), severityWords)
	}

	if m := actionLine.FindStringSubmatch(text); m != nil {
		if a, err := claim.ParseAction(m[1]); err == nil {
			p.Action = a
		}
	}
	if p.Action == "" {
		p.Action = firstMentioned(text, claim.Actions(), actionWords)
	}

	if m := rationaleLine.FindStringSubmatch(text); m != nil {
		if r := strings.TrimSpace(m[1]); r != "" {
			p.Rationale = r
		}
	}

	if p.Severity == "" || p.Action == "" {
		return p, ErrUnparseable
	}
	return p, nil
}

func wordMatchers[T ~string](labels []T) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(labels))
	for i, l := range labels {
		out[i] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(string(l)) + `\b`)
	}
	return out
}

func firstMentioned[T ~string](text string, labels []T, words []*regexp.Regexp) T {
	for i, re := range words {
		if re.MatchString(text) {
			return labels[i]
		}
	}
	var zero T
	return zero
}

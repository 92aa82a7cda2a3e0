// Package providers assembles the named decision providers shared by the
// server and the CLI.
package providers

import (
	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/adjuster/internal/agent"
	"github.com/linnemanlabs/adjuster/internal/audit"
	"github.com/linnemanlabs/adjuster/internal/cfg"
	"github.com/linnemanlabs/adjuster/internal/eval"
	"github.com/linnemanlabs/adjuster/internal/policy"
	"github.com/linnemanlabs/adjuster/internal/risk"
	"github.com/linnemanlabs/adjuster/internal/rules"
	"github.com/linnemanlabs/adjuster/internal/tools"
)

// Deps are the inputs every provider draws from. LLM is optional; without
// it only the rule-based provider is built.
type Deps struct {
	Policies      policy.Lookup
	Tuning        cfg.Tuning
	LLM           agent.Provider
	Sink          audit.Sink
	Logger        log.Logger
	Hooks         agent.EngineHooks
	MaxToolRounds int
}

// Build returns the providers in registration order: rule_based, then
// one_shot_llm and agentic when an LLM is configured.
func Build(d Deps) []eval.Candidate {
	if d.Sink == nil {
		d.Sink = audit.Nop{}
	}
	if d.Logger == nil {
		d.Logger = log.Nop()
	}

	scorer := risk.NewScorer(d.Tuning.Risk)
	out := []eval.Candidate{{
		Name:    rules.ProviderName,
		Decider: rules.NewProvider(d.Policies, scorer, rules.New(d.Tuning.Rules)),
	}}
	if d.LLM == nil {
		return out
	}

	opts := []agent.Option{agent.WithAuditSink(d.Sink)}
	if d.MaxToolRounds > 0 {
		opts = append(opts, agent.WithBudget(d.MaxToolRounds, agent.MaxTokens))
	}

	registry := tools.NewClaimsRegistry(d.Policies, scorer, d.Sink, agent.AgenticName)
	out = append(out,
		eval.Candidate{
			Name:    agent.OneShotName,
			Decider: agent.NewOneShot(d.LLM, d.Policies, d.Logger.With("provider", agent.OneShotName), d.Hooks, opts...),
		},
		eval.Candidate{
			Name:    agent.AgenticName,
			Decider: agent.NewEngine(d.LLM, registry, d.Logger.With("provider", agent.AgenticName), d.Hooks, opts...),
		},
	)
	return out
}

// Select filters candidates to the named providers, keeping their order.
// Empty names selects all. Unknown names are reported.
func Select(all []eval.Candidate, names []string) ([]eval.Candidate, []string) {
	if len(names) == 0 {
		return all, nil
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var out []eval.Candidate
	for _, c := range all {
		if want[c.Name] {
			out = append(out, c)
			delete(want, c.Name)
		}
	}
	var unknown []string
	for _, n := range names {
		if want[n] {
			unknown = append(unknown, n)
			delete(want, n)
		}
	}
	return out, unknown
}

package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/adjuster/internal/audit"
	"github.com/linnemanlabs/adjuster/internal/claim"
	"github.com/linnemanlabs/adjuster/internal/policy"
)

const oneShotResponseTokens = 1024

// OneShot decides a claim with a single LLM call and no tools.
type OneShot struct {
	provider Provider
	policies policy.Lookup
	logger   log.Logger
	hooks    EngineHooks
	opts     options
}

// NewOneShot creates the single-call baseline decider. policies may be nil;
// when set, tenure and coverage are added to the prompt.
func NewOneShot(provider Provider, policies policy.Lookup, logger log.Logger, hooks EngineHooks, opts ...Option) *OneShot {
	if logger == nil {
		logger = log.Nop()
	}
	return &OneShot{
		provider: provider,
		policies: policies,
		logger:   logger,
		hooks:    hooks,
		opts:     buildOptions(OneShotName, opts),
	}
}

// Name is the provider name stamped on decisions.
func (o *OneShot) Name() string { return o.opts.name }

// Decide implements claim.Decider.
func (o *OneShot) Decide(ctx context.Context, c *claim.Claim) (*claim.Decision, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "oneshot.decide", trace.WithAttributes(
		attribute.String("adjuster.claim.id", c.ID),
		attribute.String("adjuster.provider", o.opts.name),
	))
	defer span.End()

	start := time.Now()
	ev := &CompleteEvent{Provider: o.opts.name, Status: StatusFailed}
	defer func() {
		ev.Duration = time.Since(start).Seconds()
		if o.hooks.OnComplete != nil {
			o.hooks.OnComplete(ev)
		}
	}()

	fail := func(err error) (*claim.Decision, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.logger.Error(ctx, err, "one-shot decision failed", "claim_id", c.ID)
		o.record(ctx, audit.Entry{Type: audit.TypeError, Step: "claim_error", ClaimID: c.ID, Error: err.Error()})
		return nil, &claim.ProviderError{Provider: o.opts.name, ClaimID: c.ID, Err: err}
	}

	prompt := buildOneShotPrompt(c)
	if o.policies != nil {
		if p, err := o.policies.Lookup(ctx, c.PolicyID); err == nil {
			prompt = withPolicyDetails(prompt, p)
		}
	}

	callStart := time.Now()
	resp, err := o.provider.Send(ctx, &LLMRequest{
		MaxTokens: oneShotResponseTokens,
		Messages:  []Message{{Role: RoleUser, Content: []ContentBlock{{Type: BlockText, Text: prompt}}}},
	})
	ev.LLMTime = time.Since(callStart).Seconds()
	if err != nil {
		return fail(fmt.Errorf("llm call: %w", err))
	}

	ev.Model = resp.Model
	ev.TokensIn, ev.TokensOut = resp.Usage.InputTokens, resp.Usage.OutputTokens
	if o.hooks.OnLLMCall != nil {
		o.hooks.OnLLMCall(resp.Usage.InputTokens, resp.Usage.OutputTokens, ev.LLMTime)
	}

	parsed, err := ParseDecision(resp.Text())
	if err != nil {
		return fail(err)
	}
	ev.Status = StatusComplete

	d := &claim.Decision{
		ClaimID:   c.ID,
		Provider:  o.opts.name,
		Severity:  parsed.Severity,
		Action:    parsed.Action,
		Rationale: parsed.Rationale,
		Timestamp: o.opts.now().UTC(),
	}
	o.record(ctx, audit.Entry{
		Type:     audit.TypeAgentStep,
		Step:     "claim_processed",
		ClaimID:  c.ID,
		PolicyID: c.PolicyID,
		Severity: d.Severity,
		Action:   d.Action,
	})
	o.logger.Info(ctx, "one-shot decision complete", "claim_id", c.ID, "severity", d.Severity, "action", d.Action)
	return d, nil
}

func (o *OneShot) record(ctx context.Context, e audit.Entry) {
	e.Timestamp = o.opts.now().UTC()
	e.Provider = o.opts.name
	if err := o.opts.sink.Append(ctx, e); err != nil {
		o.logger.Warn(ctx, "audit append failed", "type", e.Type, "claim_id", e.ClaimID, "err", err)
	}
}

// withPolicyDetails inserts policy facts after the claim detail block.
func withPolicyDetails(prompt string, p *claim.Policy) string {
	limit, _ := p.CoverageLimit.Float64()
	details := fmt.Sprintf("Policy Tenure: %.1f years\n", p.TenureYears) +
		printer.Sprintf("Coverage Limit: $%.2f\n", limit)
	return strings.Replace(prompt, "Prior Claims:", details+"Prior Claims:", 1)
}

package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/adjuster/internal/audit"
	"github.com/linnemanlabs/adjuster/internal/claim"
	"github.com/linnemanlabs/adjuster/internal/tools"
)

// Provider names registered with the triage service.
const (
	AgenticName = "agentic"
	OneShotName = "one_shot_llm"
)

// Default budgets for one agent run.
const (
	MaxToolRounds  = 15
	MaxTokens      = 50000
	ResponseTokens = 4096
)

const riskToolName = "risk_scoring"

// Budget errors. Both surface as provider failures.
var (
	ErrToolBudget  = errors.New("agent: tool call budget exhausted")
	ErrTokenBudget = errors.New("agent: token budget exhausted")
)

var tracer = otel.Tracer("github.com/linnemanlabs/adjuster/internal/agent")

// Run statuses reported through EngineHooks.OnComplete.
const (
	StatusComplete = "complete"
	StatusFailed   = "failed"
)

// CompleteEvent summarizes one finished decision for metrics.
type CompleteEvent struct {
	Provider  string
	Status    string
	Model     string
	Duration  float64
	LLMTime   float64
	ToolTime  float64
	TokensIn  int
	TokensOut int
	ToolCalls int
}

// EngineHooks receive per-call and per-run measurements. Nil hooks are skipped.
type EngineHooks struct {
	OnLLMCall  func(inputTokens, outputTokens int, duration float64)
	OnToolCall func(name string, duration float64, inputBytes, outputBytes int, isError bool)
	OnComplete func(e *CompleteEvent)
}

// Option configures an Engine or OneShot.
type Option func(*options)

type options struct {
	name          string
	sink          audit.Sink
	now           func() time.Time
	maxToolRounds int
	maxTokens     int
}

// WithName overrides the provider name stamped on decisions.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithAuditSink records tool calls and agent steps to sink.
func WithAuditSink(sink audit.Sink) Option {
	return func(o *options) { o.sink = sink }
}

// WithClock sets the decision timestamp source.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithBudget sets the tool call and token budgets for one run.
func WithBudget(toolRounds, tokens int) Option {
	return func(o *options) {
		o.maxToolRounds = toolRounds
		o.maxTokens = tokens
	}
}

func buildOptions(name string, opts []Option) options {
	o := options{
		name:          name,
		sink:          audit.Nop{},
		now:           time.Now,
		maxToolRounds: MaxToolRounds,
		maxTokens:     MaxTokens,
	}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// Result is the full outcome of one agent run.
type Result struct {
	Decision         *claim.Decision
	Model            string
	InputTokensUsed  int
	OutputTokensUsed int
	ToolCalls        int
	ToolsUsed        []string
	Duration         float64
	LLMTime          float64
	ToolTime         float64
	Messages         []Message
}

// Engine decides claims with a tool-using LLM loop.
type Engine struct {
	provider Provider
	registry *tools.Registry
	logger   log.Logger
	hooks    EngineHooks
	opts     options
}

// NewEngine creates an agentic decider.
func NewEngine(provider Provider, registry *tools.Registry, logger log.Logger, hooks EngineHooks, opts ...Option) *Engine {
	if logger == nil {
		logger = log.Nop()
	}
	return &Engine{
		provider: provider,
		registry: registry,
		logger:   logger,
		hooks:    hooks,
		opts:     buildOptions(AgenticName, opts),
	}
}

// Name is the provider name stamped on decisions.
func (e *Engine) Name() string { return e.opts.name }

// Decide implements claim.Decider.
func (e *Engine) Decide(ctx context.Context, c *claim.Claim) (*claim.Decision, error) {
	res, err := e.Run(ctx, c)
	if err != nil {
		return nil, err
	}
	return res.Decision, nil
}

// Run drives the conversation until the model gives a final answer or a
// budget runs out. Failures are returned as *claim.ProviderError.
func (e *Engine) Run(ctx context.Context, c *claim.Claim) (*Result, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "agent.decide", trace.WithAttributes(
		attribute.String("adjuster.claim.id", c.ID),
		attribute.String("adjuster.provider", e.opts.name),
	))
	defer span.End()

	L := e.logger.With("claim_id", c.ID, "provider", e.opts.name)
	rr := &Result{}

	e.step(ctx, audit.Entry{Type: audit.TypeAgentStep, Step: "claim_received", ClaimID: c.ID, PolicyID: c.PolicyID})

	fail := func(err error) (*Result, error) {
		rr.Duration = time.Since(start).Seconds()
		e.complete(rr, StatusFailed)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		L.Error(ctx, err, "agent decision failed",
			"tool_calls", rr.ToolCalls,
			"input_tokens", rr.InputTokensUsed,
			"output_tokens", rr.OutputTokensUsed,
		)
		e.step(ctx, audit.Entry{Type: audit.TypeError, Step: "claim_error", ClaimID: c.ID, Error: err.Error()})
		return rr, &claim.ProviderError{Provider: e.opts.name, ClaimID: c.ID, Err: err}
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	system := buildSystemPrompt()
	rr.Messages = []Message{{Role: RoleUser, Content: []ContentBlock{{Type: BlockText, Text: buildInitialPrompt(c)}}}}

	var (
		final string
		risk  riskResult
		seq   int
	)
	for {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		if rr.ToolCalls >= e.opts.maxToolRounds {
			L.Warn(ctx, "agent hit tool call limit", "limit", e.opts.maxToolRounds)
			return fail(ErrToolBudget)
		}
		if rr.InputTokensUsed+rr.OutputTokensUsed >= e.opts.maxTokens {
			L.Warn(ctx, "agent hit token limit", "limit", e.opts.maxTokens)
			return fail(ErrTokenBudget)
		}

		resp, err := e.callLLM(ctx, seq, &LLMRequest{
			MaxTokens: ResponseTokens,
			System:    system,
			Messages:  rr.Messages,
			Tools:     e.registry.ToToolDefs(),
		}, rr)
		seq++
		if err != nil {
			return fail(fmt.Errorf("llm call: %w", err))
		}

		rr.Messages = append(rr.Messages, Message{Role: RoleAssistant, Content: resp.Content})

		uses := resp.ToolUses()
		if resp.StopReason != StopToolUse || len(uses) == 0 {
			final = resp.Text()
			break
		}

		results := make([]ContentBlock, 0, len(uses))
		for _, block := range uses {
			rr.ToolCalls++
			L.Info(ctx, "executing tool", "tool", block.Name, "call_number", rr.ToolCalls)

			out, isErr := e.executeTool(ctx, c.ID, block, rr)
			if !isErr && block.Name == riskToolName {
				if err := json.Unmarshal([]byte(out), &risk); err != nil {
					L.Warn(ctx, "unreadable risk_scoring result", "err", err)
				}
			}
			results = append(results, ContentBlock{
				Type:      BlockToolResult,
				ToolUseID: block.ID,
				Content:   out,
				IsError:   isErr,
			})
		}
		rr.Messages = append(rr.Messages, Message{Role: RoleUser, Content: results})
	}

	parsed, err := ParseDecision(final)
	if err != nil {
		return fail(err)
	}

	rr.Decision = &claim.Decision{
		ClaimID:     c.ID,
		Provider:    e.opts.name,
		Severity:    parsed.Severity,
		Action:      parsed.Action,
		Rationale:   parsed.Rationale,
		RiskScore:   risk.Score,
		RiskFactors: risk.Factors,
		Timestamp:   e.opts.now().UTC(),
	}
	rr.Duration = time.Since(start).Seconds()
	e.complete(rr, StatusComplete)

	span.SetAttributes(
		attribute.String("adjuster.severity", string(parsed.Severity)),
		attribute.String("adjuster.action", string(parsed.Action)),
	)
	e.step(ctx, audit.Entry{
		Type:      audit.TypeAgentStep,
		Step:      "claim_processed",
		ClaimID:   c.ID,
		PolicyID:  c.PolicyID,
		Provider:  e.opts.name,
		Severity:  parsed.Severity,
		Action:    parsed.Action,
		RiskScore: risk.Score,
		Data:      audit.JSON(map[string]int{"steps": len(rr.Messages), "tool_calls": rr.ToolCalls}),
	})
	L.Info(ctx, "agent decision complete",
		"severity", parsed.Severity,
		"action", parsed.Action,
		"duration", rr.Duration,
		"input_tokens", rr.InputTokensUsed,
		"output_tokens", rr.OutputTokensUsed,
		"tool_calls", rr.ToolCalls,
	)
	return rr, nil
}

type riskResult struct {
	Score   float64  `json:"risk_score"`
	Factors []string `json:"risk_factors"`
}

func (e *Engine) callLLM(ctx context.Context, seq int, req *LLMRequest, rr *Result) (*LLMResponse, error) {
	ctx, span := tracer.Start(ctx, "llm.call", trace.WithAttributes(
		attribute.String("gen_ai.operation.name", "llm.call"),
		attribute.Int("adjuster.chat.seq", seq),
		attribute.Int("adjuster.chat.messages", len(req.Messages)),
	))
	defer span.End()
	span.AddEvent("llm.request", trace.WithAttributes(attribute.Int("llm.request.tools", len(req.Tools))))

	start := time.Now()
	resp, err := e.provider.Send(ctx, req)
	dur := time.Since(start).Seconds()
	rr.LLMTime += dur
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	rr.InputTokensUsed += resp.Usage.InputTokens
	rr.OutputTokensUsed += resp.Usage.OutputTokens
	if resp.Model != "" {
		rr.Model = resp.Model
	}
	if e.hooks.OnLLMCall != nil {
		e.hooks.OnLLMCall(resp.Usage.InputTokens, resp.Usage.OutputTokens, dur)
	}

	span.SetAttributes(
		attribute.String("gen_ai.response.model", resp.Model),
		attribute.Int("gen_ai.usage.input_tokens", resp.Usage.InputTokens),
		attribute.Int("gen_ai.usage.output_tokens", resp.Usage.OutputTokens),
	)
	span.AddEvent("llm.response", trace.WithAttributes(
		attribute.String("llm.response.stop_reason", string(resp.StopReason)),
		attribute.Int("llm.response.blocks", len(resp.Content)),
	))

	e.logger.Info(ctx, "llm response",
		"stop_reason", resp.StopReason,
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
	)
	return resp, nil
}

// executeTool runs one tool call. Unknown tools and tool errors are returned
// as error text for the model rather than failing the run.
func (e *Engine) executeTool(ctx context.Context, claimID string, block ContentBlock, rr *Result) (string, bool) {
	ctx, span := tracer.Start(ctx, "tool.execute", trace.WithAttributes(
		attribute.String("gen_ai.operation.name", "tool.execute"),
		attribute.String("gen_ai.tool.name", block.Name),
		attribute.String("adjuster.claim.id", claimID),
		attribute.String("adjuster.tool.input", string(block.Input)),
	))
	defer span.End()
	span.AddEvent("tool.request", trace.WithAttributes(attribute.String("tool.request.body", string(block.Input))))

	start := time.Now()
	var (
		out   string
		isErr bool
	)
	if tool, ok := e.registry.Get(block.Name); !ok {
		out, isErr = fmt.Sprintf("unknown tool: %s", block.Name), true
	} else if raw, err := tool.Execute(ctx, block.Input); err != nil {
		e.logger.Error(ctx, err, "tool execution failed", "tool", block.Name, "claim_id", claimID)
		out, isErr = fmt.Sprintf("tool error: %v", err), true
	} else {
		out = string(raw)
		rr.ToolsUsed = appendUnique(rr.ToolsUsed, block.Name)
	}
	dur := time.Since(start).Seconds()
	rr.ToolTime += dur

	span.SetAttributes(attribute.Bool("adjuster.tool.is_error", isErr))
	span.AddEvent("tool.result", trace.WithAttributes(attribute.String("tool.result.body", out)))
	if isErr {
		span.SetStatus(codes.Error, out)
	}
	if e.hooks.OnToolCall != nil {
		e.hooks.OnToolCall(block.Name, dur, len(block.Input), len(out), isErr)
	}

	entry := audit.Entry{
		Type:     audit.TypeToolCall,
		ClaimID:  claimID,
		Provider: e.opts.name,
		Tool:     block.Name,
		Input:    audit.Raw(block.Input),
	}
	if isErr {
		entry.Error = out
	} else {
		entry.Output = audit.Raw([]byte(out))
	}
	e.step(ctx, entry)
	return out, isErr
}

func (e *Engine) complete(rr *Result, status string) {
	if e.hooks.OnComplete == nil {
		return
	}
	e.hooks.OnComplete(&CompleteEvent{
		Provider:  e.opts.name,
		Status:    status,
		Model:     rr.Model,
		Duration:  rr.Duration,
		LLMTime:   rr.LLMTime,
		ToolTime:  rr.ToolTime,
		TokensIn:  rr.InputTokensUsed,
		TokensOut: rr.OutputTokensUsed,
		ToolCalls: rr.ToolCalls,
	})
}

// step appends to the audit sink. Audit failures are logged, never returned.
func (e *Engine) step(ctx context.Context, entry audit.Entry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = e.opts.now().UTC()
	}
	if entry.Provider == "" {
		entry.Provider = e.opts.name
	}
	if err := e.opts.sink.Append(ctx, entry); err != nil {
		e.logger.Warn(ctx, "audit append failed", "type", entry.Type, "claim_id", entry.ClaimID, "err", err)
	}
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}

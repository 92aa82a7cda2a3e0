// Package eval scores decision providers against labelled claims and ranks
// them by a composite of accuracy and macro F1.
package eval

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/adjuster/internal/audit"
	"github.com/linnemanlabs/adjuster/internal/claim"
)

var tracer = otel.Tracer("github.com/linnemanlabs/adjuster/internal/eval")

// Failed claims are scored as the worst-case outcome.
const (
	FailureSeverity = claim.SeverityCritical
	FailureAction   = claim.ActionEscalate
)

// Candidate is a named decision provider under evaluation.
type Candidate struct {
	Name    string
	Decider claim.Decider
}

// Entry is the outcome for one claim.
type Entry struct {
	ClaimID           string         `json:"claim_id"`
	TrueSeverity      claim.Severity `json:"true_severity"`
	TrueAction        claim.Action   `json:"true_action"`
	PredictedSeverity claim.Severity `json:"predicted_severity"`
	PredictedAction   claim.Action   `json:"predicted_action"`
	RiskScore         float64        `json:"risk_score"`
	Failed            bool           `json:"failed"`
	Error             string         `json:"error,omitempty"`
	ProcessingTime    float64        `json:"processing_time_seconds"`
}

// ProviderReport is one provider's evaluation. Skipped claims were never
// started because the context ended; they are excluded from every metric.
type ProviderReport struct {
	Provider            string       `json:"provider"`
	Evaluated           int          `json:"evaluated"`
	Failures            int          `json:"failures"`
	Skipped             int          `json:"skipped"`
	Severity            LabelMetrics `json:"severity"`
	Action              LabelMetrics `json:"action"`
	Composite           float64      `json:"composite_score"`
	MeanProcessingTime  float64      `json:"mean_processing_time_seconds"`
	TotalProcessingTime float64      `json:"total_processing_time_seconds"`
	Entries             []Entry      `json:"entries,omitempty"`
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithWorkers evaluates up to n claims at once. n <= 1 is sequential.
func WithWorkers(n int) Option {
	return func(e *Evaluator) {
		if n < 1 {
			n = 1
		}
		e.workers = n
	}
}

// WithClaimTimeout bounds each decision. A timed-out claim is a failure.
func WithClaimTimeout(d time.Duration) Option {
	return func(e *Evaluator) { e.claimTimeout = d }
}

// WithClock overrides the report timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) {
		if now != nil {
			e.now = now
		}
	}
}

// WithAuditSink records failures and per-provider summaries.
func WithAuditSink(sink audit.Sink) Option {
	return func(e *Evaluator) {
		if sink != nil {
			e.sink = sink
		}
	}
}

// Evaluator runs candidates over labelled claims.
type Evaluator struct {
	logger       log.Logger
	sink         audit.Sink
	workers      int
	claimTimeout time.Duration
	now          func() time.Time
}

// NewEvaluator creates an evaluator. The default is sequential with no per-claim timeout.
func NewEvaluator(logger log.Logger, opts ...Option) *Evaluator {
	if logger == nil {
		logger = log.Nop()
	}
	e := &Evaluator{
		logger:  logger,
		sink:    audit.Nop{},
		workers: 1,
		now:     time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Evaluate runs cand over claims and aggregates the results. Every claim
// must be valid and carry ground truth. A provider error or panic on one
// claim is recorded as a failure entry and never aborts the batch.
func (e *Evaluator) Evaluate(ctx context.Context, cand Candidate, claims []claim.Claim) (*ProviderReport, error) {
	if err := validateCandidate(cand); err != nil {
		return nil, err
	}
	if err := validateClaims(claims); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "eval.evaluate", trace.WithAttributes(
		attribute.String("adjuster.provider", cand.Name),
		attribute.Int("adjuster.eval.claims", len(claims)),
		attribute.Int("adjuster.eval.workers", e.workers),
	))
	defer span.End()

	L := e.logger.With("provider", cand.Name)
	L.Info(ctx, "evaluation started", "claims", len(claims), "workers", e.workers)

	var entries []Entry
	if e.workers > 1 {
		entries = e.runParallel(ctx, cand, claims)
	} else {
		entries = e.runSequential(ctx, cand, claims)
	}

	rep := aggregate(cand.Name, entries)
	rep.Skipped = len(claims) - len(entries)

	span.SetAttributes(
		attribute.Int("adjuster.eval.evaluated", rep.Evaluated),
		attribute.Int("adjuster.eval.failures", rep.Failures),
		attribute.Int("adjuster.eval.skipped", rep.Skipped),
		attribute.Float64("adjuster.eval.composite", rep.Composite),
	)

	summary := *rep
	summary.Entries = nil
	e.record(ctx, audit.Entry{
		Type:     audit.TypeEvaluation,
		Provider: cand.Name,
		Data:     audit.JSON(summary),
	})

	L.Info(ctx, "evaluation complete",
		"evaluated", rep.Evaluated,
		"failures", rep.Failures,
		"skipped", rep.Skipped,
		"severity_accuracy", rep.Severity.Accuracy,
		"action_accuracy", rep.Action.Accuracy,
		"composite", rep.Composite,
		"mean_processing_time", rep.MeanProcessingTime,
	)
	return rep, nil
}

func (e *Evaluator) runSequential(ctx context.Context, cand Candidate, claims []claim.Claim) []Entry {
	entries := make([]Entry, 0, len(claims))
	for i := range claims {
		if ctx.Err() != nil {
			break
		}
		entries = append(entries, e.evaluateOne(ctx, cand, &claims[i]))
	}
	return entries
}

// runParallel uses a bounded pool. Output is re-sorted by claim ID so the
// aggregate does not depend on scheduling.
func (e *Evaluator) runParallel(ctx context.Context, cand Candidate, claims []claim.Claim) []Entry {
	results := make([]Entry, len(claims))
	started := make([]bool, len(claims))

	var g errgroup.Group
	g.SetLimit(e.workers)
	for i := range claims {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			started[i] = true
			results[i] = e.evaluateOne(ctx, cand, &claims[i])
			return nil
		})
	}
	_ = g.Wait()

	entries := make([]Entry, 0, len(claims))
	for i := range results {
		if started[i] {
			entries = append(entries, results[i])
		}
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].ClaimID < entries[j].ClaimID })
	return entries
}

type outcome struct {
	d   *claim.Decision
	err error
}

func (e *Evaluator) evaluateOne(ctx context.Context, cand Candidate, c *claim.Claim) Entry {
	entry := Entry{
		ClaimID:      c.ID,
		TrueSeverity: c.GroundTruthSeverity,
		TrueAction:   c.GroundTruthAction,
	}

	start := time.Now()
	o := e.decide(ctx, cand, c)
	entry.ProcessingTime = time.Since(start).Seconds()

	if o.err != nil {
		entry.Failed = true
		entry.Error = o.err.Error()
		entry.PredictedSeverity = FailureSeverity
		entry.PredictedAction = FailureAction
		e.logger.Warn(ctx, "claim failed during evaluation", "provider", cand.Name, "claim_id", c.ID, "err", o.err)
		e.record(ctx, audit.Entry{
			Type:     audit.TypeError,
			Step:     "evaluate",
			ClaimID:  c.ID,
			PolicyID: c.PolicyID,
			Provider: cand.Name,
			Error:    o.err.Error(),
		})
		return entry
	}

	entry.PredictedSeverity = o.d.Severity
	entry.PredictedAction = o.d.Action
	entry.RiskScore = o.d.RiskScore
	return entry
}

// decide calls the provider, enforcing the per-claim timeout even when the
// provider ignores its context.
func (e *Evaluator) decide(ctx context.Context, cand Candidate, c *claim.Claim) outcome {
	if e.claimTimeout <= 0 {
		d, err := claim.Call(ctx, cand.Name, cand.Decider, c)
		return outcome{d, err}
	}

	cctx, cancel := context.WithTimeout(ctx, e.claimTimeout)
	defer cancel()

	ch := make(chan outcome, 1)
	go func() {
		d, err := claim.Call(cctx, cand.Name, cand.Decider, c)
		ch <- outcome{d, err}
	}()

	select {
	case o := <-ch:
		return o
	case <-cctx.Done():
		return outcome{err: &claim.ProviderError{
			Provider: cand.Name,
			ClaimID:  c.ID,
			Err:      fmt.Errorf("decision timed out after %s: %w", e.claimTimeout, cctx.Err()),
		}}
	}
}

func (e *Evaluator) record(ctx context.Context, entry audit.Entry) {
	entry.Timestamp = e.now().UTC()
	if err := e.sink.Append(ctx, entry); err != nil {
		e.logger.Warn(ctx, "audit append failed", "type", entry.Type, "err", err)
	}
}

func aggregate(provider string, entries []Entry) *ProviderReport {
	rep := &ProviderReport{
		Provider:  provider,
		Evaluated: len(entries),
		Entries:   entries,
	}

	trueSev := make([]claim.Severity, len(entries))
	predSev := make([]claim.Severity, len(entries))
	trueAct := make([]claim.Action, len(entries))
	predAct := make([]claim.Action, len(entries))
	for i, en := range entries {
		trueSev[i], predSev[i] = en.TrueSeverity, en.PredictedSeverity
		trueAct[i], predAct[i] = en.TrueAction, en.PredictedAction
		rep.TotalProcessingTime += en.ProcessingTime
		if en.Failed {
			rep.Failures++
		}
	}
	if len(entries) > 0 {
		rep.MeanProcessingTime = rep.TotalProcessingTime / float64(len(entries))
	}

	rep.Severity = computeLabelMetrics(claim.Severities(), trueSev, predSev)
	rep.Action = computeLabelMetrics(claim.Actions(), trueAct, predAct)
	rep.Composite = Composite(rep)
	return rep
}

func validateCandidate(c Candidate) error {
	if c.Name == "" {
		return &claim.ValidationError{Field: "candidate", Reason: "name required"}
	}
	if c.Decider == nil {
		return &claim.ValidationError{Field: "candidate", Reason: "decider required for " + c.Name}
	}
	return nil
}

func validateClaims(claims []claim.Claim) error {
	for i := range claims {
		c := &claims[i]
		if err := c.Validate(); err != nil {
			return fmt.Errorf("claim %d (%s): %w", i+1, c.ID, err)
		}
		if !c.HasGroundTruth() {
			return &claim.ValidationError{
				Field:  "ground_truth",
				Reason: fmt.Sprintf("claim %d (%s) has no ground truth labels", i+1, c.ID),
			}
		}
	}
	return nil
}

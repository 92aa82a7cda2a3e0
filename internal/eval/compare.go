package eval

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/adjuster/internal/claim"
)

// Composite weights.
const (
	weightSeverityAccuracy = 0.4
	weightActionAccuracy   = 0.4
	weightSeverityF1       = 0.1
	weightActionF1         = 0.1
)

// compositePrecision is the grid composites are rounded to before ranking;
// composites on the same grid point tie.
const compositePrecision = 1e-9

func rankKey(composite float64) float64 {
	return math.Round(composite / compositePrecision)
}

// Report compares several providers over the same claims.
type Report struct {
	GeneratedAt time.Time         `json:"timestamp"`
	Claims      int               `json:"claims"`
	Providers   []*ProviderReport `json:"providers"` // registration order
	Ranking     []string          `json:"ranking"`
	Best        string            `json:"best_provider"`
}

// Provider returns the named provider's report, or nil.
func (r *Report) Provider(name string) *ProviderReport {
	for _, p := range r.Providers {
		if p.Provider == name {
			return p
		}
	}
	return nil
}

// Composite is 0.4·severity accuracy + 0.4·action accuracy
// + 0.1·severity macro F1 + 0.1·action macro F1.
func Composite(p *ProviderReport) float64 {
	return weightSeverityAccuracy*p.Severity.Accuracy +
		weightActionAccuracy*p.Action.Accuracy +
		weightSeverityF1*p.Severity.MacroF1 +
		weightActionF1*p.Action.MacroF1
}

// Rank orders reports best first: higher composite, then lower mean
// processing time, then earlier position in reports.
func Rank(reports []*ProviderReport) []string {
	idx := make([]int, len(reports))
	for i := range idx {
		idx[i] = i
	}
	keys := make([]float64, len(reports))
	for i, r := range reports {
		keys[i] = rankKey(r.Composite)
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ra, rb := reports[idx[a]], reports[idx[b]]
		if ka, kb := keys[idx[a]], keys[idx[b]]; ka != kb {
			return ka > kb
		}
		if ra.MeanProcessingTime != rb.MeanProcessingTime {
			return ra.MeanProcessingTime < rb.MeanProcessingTime
		}
		return idx[a] < idx[b]
	})

	out := make([]string, len(idx))
	for i, j := range idx {
		out[i] = reports[j].Provider
	}
	return out
}

// Compare evaluates every candidate over claims, in order, and ranks them.
// Candidate names must be unique.
func (e *Evaluator) Compare(ctx context.Context, candidates []Candidate, claims []claim.Claim) (*Report, error) {
	if len(candidates) == 0 {
		return nil, &claim.ValidationError{Field: "candidates", Reason: "at least one provider required"}
	}
	seen := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		if seen[c.Name] {
			return nil, &claim.ValidationError{Field: "candidates", Reason: fmt.Sprintf("duplicate provider %q", c.Name)}
		}
		seen[c.Name] = true
	}

	ctx, span := tracer.Start(ctx, "eval.compare", trace.WithAttributes(
		attribute.Int("adjuster.eval.providers", len(candidates)),
		attribute.Int("adjuster.eval.claims", len(claims)),
	))
	defer span.End()

	rep := &Report{
		GeneratedAt: e.now().UTC(),
		Claims:      len(claims),
	}
	for _, c := range candidates {
		pr, err := e.Evaluate(ctx, c, claims)
		if err != nil {
			return nil, err
		}
		rep.Providers = append(rep.Providers, pr)
	}

	rep.Ranking = Rank(rep.Providers)
	rep.Best = rep.Ranking[0]
	span.SetAttributes(attribute.String("adjuster.eval.best", rep.Best))

	e.logger.Info(ctx, "comparison complete", "best", rep.Best, "ranking", rep.Ranking)
	return rep, nil
}

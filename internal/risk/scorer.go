// Package risk computes a bounded risk score for a claim from a fixed table
// of weighted factors.
package risk

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/linnemanlabs/adjuster/internal/claim"
)

// Factor names, reported in this order.
const (
	FactorHighClaimAmount     = "high_claim_amount"
	FactorMultiplePriorClaims = "multiple_prior_claims"
	FactorNewPolicy           = "new_policy"
	FactorLateReporting       = "late_reporting"
	FactorNearCoverageLimit   = "near_coverage_limit"
	FactorAgeRisk             = "age_risk"
	FactorHighRiskLocation    = "high_risk_location"
)

// Level is a coarse risk bucket derived from the score.
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// Input is the flattened set of values the scorer reads.
type Input struct {
	Amount             decimal.Decimal
	PriorClaims        int
	TenureYears        float64
	ReportingDelayDays int
	CoverageLimit      decimal.Decimal // zero: unknown, factor skipped
	ClaimantAge        int             // zero: unknown, factor skipped
	Location           string
}

// InputFor collects scoring inputs from a claim and its policy.
func InputFor(c *claim.Claim, p *claim.Policy) Input {
	in := Input{
		Amount:             c.Amount,
		PriorClaims:        c.PriorClaims,
		ReportingDelayDays: c.ReportingDelayDays(),
		ClaimantAge:        c.ClaimantAge,
		Location:           c.Location,
	}
	if p != nil {
		in.TenureYears = p.TenureYears
		in.CoverageLimit = p.CoverageLimit
	}
	return in
}

// Assessment is the scorer output for one claim.
type Assessment struct {
	Score   float64  `json:"risk_score"`
	Level   Level    `json:"risk_level"`
	Factors []string `json:"risk_factors"`
}

// Explanation renders the assessment as a sentence.
func (a Assessment) Explanation() string {
	if len(a.Factors) == 0 {
		return "Risk level is " + string(a.Level) + ". No significant risk factors identified."
	}
	return "Risk level is " + string(a.Level) + ". Contributing factors: " + strings.Join(a.Factors, ", ") + "."
}

// Scorer is pure and safe for concurrent use.
type Scorer struct {
	cfg        Config
	highAmount decimal.Decimal
	limitRatio decimal.Decimal
	locations  map[string]struct{}
}

// NewScorer builds a scorer from cfg. Call cfg.Validate first for untrusted input.
func NewScorer(cfg Config) *Scorer {
	s := &Scorer{
		cfg:        cfg,
		highAmount: decimal.NewFromFloat(cfg.Thresholds.HighClaimAmount),
		limitRatio: decimal.NewFromFloat(cfg.Thresholds.CoverageLimitRatio),
		locations:  make(map[string]struct{}, len(cfg.HighRiskLocations)),
	}
	for _, loc := range cfg.HighRiskLocations {
		s.locations[normalizeLocation(loc)] = struct{}{}
	}
	return s
}

// Config returns the scorer's configuration.
func (s *Scorer) Config() Config { return s.cfg }

// Score assesses a claim against its policy.
func (s *Scorer) Score(c *claim.Claim, p *claim.Policy) Assessment {
	return s.ScoreInput(InputFor(c, p))
}

// ScoreInput sums the weights of every firing factor, rounds to three
// decimals, and clamps to [0, 1].
func (s *Scorer) ScoreInput(in Input) Assessment {
	w, th := s.cfg.Weights, s.cfg.Thresholds

	var (
		sum     float64
		factors = []string{}
	)
	fire := func(name string, weight float64) {
		sum += weight
		factors = append(factors, name)
	}

	if in.Amount.GreaterThan(s.highAmount) {
		fire(FactorHighClaimAmount, w.HighClaimAmount)
	}
	if in.PriorClaims >= th.PriorClaims {
		fire(FactorMultiplePriorClaims, w.MultiplePriorClaims)
	}
	if in.TenureYears < th.NewPolicyYears {
		fire(FactorNewPolicy, w.NewPolicy)
	}
	if in.ReportingDelayDays > th.LateReportingDays {
		fire(FactorLateReporting, w.LateReporting)
	}
	if in.CoverageLimit.IsPositive() && in.Amount.GreaterThan(in.CoverageLimit.Mul(s.limitRatio)) {
		fire(FactorNearCoverageLimit, w.NearCoverageLimit)
	}
	if in.ClaimantAge > 0 && (in.ClaimantAge < th.MinAge || in.ClaimantAge > th.MaxAge) {
		fire(FactorAgeRisk, w.AgeRisk)
	}
	if _, ok := s.locations[normalizeLocation(in.Location)]; ok && in.Location != "" {
		fire(FactorHighRiskLocation, w.HighRiskLocation)
	}

	score := clamp(math.Round(sum*1000) / 1000)
	return Assessment{
		Score:   score,
		Level:   s.Level(score),
		Factors: factors,
	}
}

// Level buckets a score: >= high is high, >= medium is medium, otherwise low.
func (s *Scorer) Level(score float64) Level {
	switch {
	case score >= s.cfg.Levels.High:
		return LevelHigh
	case score >= s.cfg.Levels.Medium:
		return LevelMedium
	default:
		return LevelLow
	}
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func normalizeLocation(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

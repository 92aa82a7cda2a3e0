package risk

import (
	"errors"
	"fmt"
)

// Weights is the score contribution of each risk factor.
type Weights struct {
	HighClaimAmount     float64 `yaml:"high_claim_amount"`
	MultiplePriorClaims float64 `yaml:"multiple_prior_claims"`
	NewPolicy           float64 `yaml:"new_policy"`
	LateReporting       float64 `yaml:"late_reporting"`
	NearCoverageLimit   float64 `yaml:"near_coverage_limit"`
	AgeRisk             float64 `yaml:"age_risk"`
	HighRiskLocation    float64 `yaml:"high_risk_location"`
}

// Thresholds are the predicate boundaries that decide whether a factor fires.
type Thresholds struct {
	HighClaimAmount    float64 `yaml:"high_claim_amount"`    // amount > this
	PriorClaims        int     `yaml:"prior_claims"`         // prior >= this
	NewPolicyYears     float64 `yaml:"new_policy_years"`     // tenure < this
	LateReportingDays  int     `yaml:"late_reporting_days"`  // delay > this
	CoverageLimitRatio float64 `yaml:"coverage_limit_ratio"` // amount > ratio * limit
	MinAge             int     `yaml:"min_age"`              // age < this
	MaxAge             int     `yaml:"max_age"`              // age > this
}

// Levels are the inclusive lower bounds of the high and medium risk levels.
type Levels struct {
	High   float64 `yaml:"high"`
	Medium float64 `yaml:"medium"`
}

// Config holds all tunable scorer parameters.
type Config struct {
	Weights           Weights    `yaml:"weights"`
	Thresholds        Thresholds `yaml:"thresholds"`
	Levels            Levels     `yaml:"levels"`
	HighRiskLocations []string   `yaml:"high_risk_locations"`
}

// DefaultConfig returns the built-in scorer configuration.
func DefaultConfig() Config {
	return Config{
		Weights: Weights{
			HighClaimAmount:     0.30,
			MultiplePriorClaims: 0.25,
			NewPolicy:           0.15,
			LateReporting:       0.15,
			NearCoverageLimit:   0.20,
			AgeRisk:             0.10,
			HighRiskLocation:    0.05,
		},
		Thresholds: Thresholds{
			HighClaimAmount:    50_000,
			PriorClaims:        3,
			NewPolicyYears:     1,
			LateReportingDays:  30,
			CoverageLimitRatio: 0.8,
			MinAge:             25,
			MaxAge:             70,
		},
		Levels: Levels{
			High:   0.70,
			Medium: 0.40,
		},
		HighRiskLocations: []string{"New York, NY", "Los Angeles, CA", "Chicago, IL"},
	}
}

// Validate checks weights and level bounds.
func (c *Config) Validate() error {
	var errs []error

	w := c.Weights
	for name, v := range map[string]float64{
		"high_claim_amount":     w.HighClaimAmount,
		"multiple_prior_claims": w.MultiplePriorClaims,
		"new_policy":            w.NewPolicy,
		"late_reporting":        w.LateReporting,
		"near_coverage_limit":   w.NearCoverageLimit,
		"age_risk":              w.AgeRisk,
		"high_risk_location":    w.HighRiskLocation,
	} {
		if v < 0 {
			errs = append(errs, fmt.Errorf("risk weight %s %v must not be negative", name, v))
		}
	}

	if c.Levels.Medium <= 0 || c.Levels.Medium > c.Levels.High || c.Levels.High > 1 {
		errs = append(errs, fmt.Errorf("risk levels must satisfy 0 < medium (%v) <= high (%v) <= 1", c.Levels.Medium, c.Levels.High))
	}
	if c.Thresholds.CoverageLimitRatio <= 0 {
		errs = append(errs, fmt.Errorf("coverage_limit_ratio %v must be positive", c.Thresholds.CoverageLimitRatio))
	}
	if c.Thresholds.MinAge > c.Thresholds.MaxAge {
		errs = append(errs, fmt.Errorf("min_age %d must not exceed max_age %d", c.Thresholds.MinAge, c.Thresholds.MaxAge))
	}

	return errors.Join(errs...)
}

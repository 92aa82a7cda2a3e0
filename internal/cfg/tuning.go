package cfg

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/linnemanlabs/adjuster/internal/risk"
	"github.com/linnemanlabs/adjuster/internal/rules"
)

// Tuning carries the scorer and rule parameters. Fields absent from the
// file keep their built-in defaults.
type Tuning struct {
	Risk  risk.Config  `yaml:"risk"`
	Rules rules.Config `yaml:"rules"`
}

// DefaultTuning returns the built-in scorer and rule parameters.
func DefaultTuning() Tuning {
	return Tuning{
		Risk:  risk.DefaultConfig(),
		Rules: rules.DefaultConfig(),
	}
}

// LoadTuning reads a YAML tuning file over the defaults. An empty path
// returns the defaults. Unknown keys are rejected.
func LoadTuning(path string) (Tuning, error) {
	t := DefaultTuning()
	if path == "" {
		return t, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return Tuning{}, fmt.Errorf("read tuning: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&t); err != nil && !errors.Is(err, io.EOF) {
		return Tuning{}, fmt.Errorf("parse tuning %s: %w", path, err)
	}

	if err := t.Validate(); err != nil {
		return Tuning{}, fmt.Errorf("tuning %s: %w", path, err)
	}
	return t, nil
}

// Validate checks the scorer config and rule thresholds.
func (t *Tuning) Validate() error {
	var errs []error
	if err := t.Risk.Validate(); err != nil {
		errs = append(errs, err)
	}

	r := t.Rules
	if r.AutoApproveMaxAmount <= 0 {
		errs = append(errs, fmt.Errorf("rules auto_approve_max_amount %v must be positive", r.AutoApproveMaxAmount))
	}
	if r.AutoApproveMaxRisk < 0 || r.AutoApproveMaxRisk > 1 {
		errs = append(errs, fmt.Errorf("rules auto_approve_max_risk %v must be within 0..1", r.AutoApproveMaxRisk))
	}
	if r.EscalateRisk < 0 || r.EscalateRisk > 1 {
		errs = append(errs, fmt.Errorf("rules escalate_risk %v must be within 0..1", r.EscalateRisk))
	}
	if r.AutoApproveMaxRisk > r.EscalateRisk {
		errs = append(errs, fmt.Errorf("rules auto_approve_max_risk %v must not exceed escalate_risk %v", r.AutoApproveMaxRisk, r.EscalateRisk))
	}
	if r.AutoApproveMaxPriorClaims < 0 {
		errs = append(errs, fmt.Errorf("rules auto_approve_max_prior_claims %d must not be negative", r.AutoApproveMaxPriorClaims))
	}
	return errors.Join(errs...)
}

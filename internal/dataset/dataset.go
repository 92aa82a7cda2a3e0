// Package dataset loads labelled claims and policy directories from CSV or
// JSON files. Every record is validated; the first bad record fails the load.
package dataset

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/linnemanlabs/adjuster/internal/claim"
)

// Option configures a load.
type Option func(*options)

type options struct {
	asOf  time.Time
	limit int
}

// WithAsOf sets the date policy tenure is measured against when a policy row
// carries a start date but no tenure column. Defaults to the current date.
func WithAsOf(t time.Time) Option {
	return func(o *options) { o.asOf = t }
}

// WithLimit keeps only the first n records (n <= 0 keeps all).
func WithLimit(n int) Option {
	return func(o *options) { o.limit = n }
}

func buildOptions(opts []Option) options {
	o := options{asOf: time.Now().UTC()}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// LoadClaims reads claims from a .csv or .json file.
func LoadClaims(path string, opts ...Option) ([]claim.Claim, error) {
	o := buildOptions(opts)

	var (
		claims []claim.Claim
		err    error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		claims, err = readJSON[claim.Claim](path)
	case ".csv":
		claims, err = readCSV(path, parseClaimRow)
	default:
		return nil, fmt.Errorf("dataset: unsupported claims file extension %q", ext)
	}
	if err != nil {
		return nil, err
	}

	claims = limit(claims, o.limit)
	for i := range claims {
		if err := claims[i].Validate(); err != nil {
			return nil, fmt.Errorf("dataset: %s record %d: %w", path, i+1, err)
		}
	}
	return claims, nil
}

// LoadPolicies reads policies from a .csv or .json file.
func LoadPolicies(path string, opts ...Option) ([]claim.Policy, error) {
	o := buildOptions(opts)

	var (
		policies []claim.Policy
		err      error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		policies, err = readJSON[claim.Policy](path)
	case ".csv":
		policies, err = readCSV(path, func(r row) (claim.Policy, error) { return parsePolicyRow(r, o.asOf) })
	default:
		return nil, fmt.Errorf("dataset: unsupported policies file extension %q", ext)
	}
	if err != nil {
		return nil, err
	}

	policies = limit(policies, o.limit)
	for i := range policies {
		if err := policies[i].Validate(); err != nil {
			return nil, fmt.Errorf("dataset: %s record %d: %w", path, i+1, err)
		}
	}
	return policies, nil
}

func limit[T any](items []T, n int) []T {
	if n > 0 && n < len(items) {
		return items[:n]
	}
	return items
}

func readJSON[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: read %s: %w", path, err)
	}
	var out []T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("dataset: parse %s: %w", path, err)
	}
	return out, nil
}

// row is one CSV record addressed by header name.
type row struct {
	cols   map[string]int
	fields []string
}

func (r row) has(name string) bool {
	_, ok := r.cols[name]
	return ok
}

func (r row) get(name string) string {
	i, ok := r.cols[name]
	if !ok || i >= len(r.fields) {
		return ""
	}
	return strings.TrimSpace(r.fields[i])
}

func (r row) integer(name string) (int, error) {
	s := r.get(name)
	if s == "" {
		return 0, nil
	}
	// tolerate float-formatted integers such as "3.0"
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == float64(int(f)) {
		return int(f), nil
	}
	return 0, &claim.ValidationError{Field: name, Reason: fmt.Sprintf("not an integer: %q", s)}
}

func (r row) decimal(name string) (decimal.Decimal, error) {
	s := r.get(name)
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &claim.ValidationError{Field: name, Reason: fmt.Sprintf("not a number: %q", s)}
	}
	return d, nil
}

func (r row) date(name string) (claim.Date, error) {
	s := r.get(name)
	if s == "" {
		return claim.Date{}, nil
	}
	d, err := claim.ParseDate(s)
	if err != nil {
		return claim.Date{}, &claim.ValidationError{Field: name, Reason: err.Error()}
	}
	return d, nil
}

func readCSV[T any](path string, parse func(row) (T, error)) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	rd := csv.NewReader(f)
	rd.FieldsPerRecord = -1

	header, err := rd.Read()
	if err != nil {
		return nil, fmt.Errorf("dataset: %s header: %w", path, err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}

	var out []T
	for line := 2; ; line++ {
		fields, err := rd.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("dataset: %s line %d: %w", path, line, err)
		}
		v, err := parse(row{cols: cols, fields: fields})
		if err != nil {
			return nil, fmt.Errorf("dataset: %s line %d: %w", path, line, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func parseClaimRow(r row) (claim.Claim, error) {
	c := claim.Claim{
		ID:        r.get("claim_id"),
		PolicyID:  r.get("policy_id"),
		Type:      r.get("claim_type"),
		Location:  r.get("location"),
		Narrative: r.get("narrative"),
	}

	var err error
	if c.Amount, err = r.decimal("claim_amount"); err != nil {
		return c, err
	}
	if c.IncidentDate, err = r.date("incident_date"); err != nil {
		return c, err
	}
	if c.ReportDate, err = r.date("report_date"); err != nil {
		return c, err
	}
	if c.ClaimantAge, err = r.integer("claimant_age"); err != nil {
		return c, err
	}
	if c.PriorClaims, err = r.integer("prior_claims"); err != nil {
		return c, err
	}
	if s := r.get("ground_truth_severity"); s != "" {
		if c.GroundTruthSeverity, err = claim.ParseSeverity(s); err != nil {
			return c, &claim.ValidationError{Field: "ground_truth_severity", Reason: err.Error()}
		}
	}
	if a := r.get("ground_truth_action"); a != "" {
		if c.GroundTruthAction, err = claim.ParseAction(a); err != nil {
			return c, &claim.ValidationError{Field: "ground_truth_action", Reason: err.Error()}
		}
	}
	return c, nil
}

func parsePolicyRow(r row, asOf time.Time) (claim.Policy, error) {
	p := claim.Policy{
		ID:           r.get("policy_id"),
		CustomerName: r.get("customer_name"),
		Active:       true,
	}

	var err error
	if p.Type, err = claim.ParsePolicyType(r.get("policy_type")); err != nil {
		return p, &claim.ValidationError{Field: "policy_type", Reason: err.Error()}
	}
	if p.CoverageLimit, err = r.decimal("coverage_limit"); err != nil {
		return p, err
	}
	if p.Deductible, err = r.decimal("deductible"); err != nil {
		return p, err
	}
	if p.ClaimsHistoryCount, err = r.integer("claims_history_count"); err != nil {
		return p, err
	}
	if p.StartDate, err = r.date("policy_start_date"); err != nil {
		return p, err
	}
	if s := r.get("is_active"); s != "" {
		if p.Active, err = strconv.ParseBool(s); err != nil {
			return p, &claim.ValidationError{Field: "is_active", Reason: fmt.Sprintf("not a boolean: %q", s)}
		}
	}

	switch {
	case r.has("policy_tenure_years") && r.get("policy_tenure_years") != "":
		if p.TenureYears, err = strconv.ParseFloat(r.get("policy_tenure_years"), 64); err != nil {
			return p, &claim.ValidationError{Field: "policy_tenure_years", Reason: fmt.Sprintf("not a number: %q", r.get("policy_tenure_years"))}
		}
	case !p.StartDate.IsZero():
		p.TenureYears = tenureYears(p.StartDate.Time, asOf)
	}
	return p, nil
}

// tenureYears is the whole-and-fractional years from start to asOf, floored at zero.
func tenureYears(start, asOf time.Time) float64 {
	if asOf.Before(start) {
		return 0
	}
	return asOf.Sub(start).Hours() / 24 / 365.25
}

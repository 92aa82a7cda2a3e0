// Package pgstore provides a PostgreSQL implementation of triage.Store.
package pgstore

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/adjuster/internal/claim"
	"github.com/linnemanlabs/adjuster/internal/postgres"
	"github.com/linnemanlabs/adjuster/internal/triage"
)

var tracer = otel.Tracer("github.com/linnemanlabs/adjuster/internal/triage/pgstore")

//go:embed schema.sql
var schema string

// uniqueViolation is the SQLSTATE for a primary key conflict.
const uniqueViolation = "23505"

// Store persists decision records in PostgreSQL. Rows are never updated;
// the schema rejects UPDATE and DELETE with a trigger.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema on pool and returns a ready Store. The caller owns the pool.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(postgres.WithOperation(ctx, "schema.apply"), schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

const recordColumns = `id, claim_id, policy_id, provider, kind, severity, action, rationale,
	risk_score, risk_factors, rule, decided_at, COALESCE(supersedes, ''), reviewer, reason,
	created_at, duration_s`

// Get retrieves a record by ID.
func (s *Store) Get(ctx context.Context, id string) (*triage.Record, bool, error) {
	ctx, span := startSpan(ctx, "pgstore.Get", "records.get", "SELECT")
	defer span.End()

	r, err := scanRecord(s.pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM decision_records WHERE id = $1`, id))
	if err != nil {
		fail(span, err)
		return nil, false, err
	}
	if r == nil {
		return nil, false, nil
	}
	return r, true, nil
}

// ListByClaim returns a claim's records ordered by creation time, then ID.
func (s *Store) ListByClaim(ctx context.Context, claimID string) ([]*triage.Record, error) {
	ctx, span := startSpan(ctx, "pgstore.ListByClaim", "records.list_by_claim", "SELECT")
	defer span.End()
	span.SetAttributes(attribute.String("adjuster.claim.id", claimID))

	rows, err := s.pool.Query(ctx,
		`SELECT `+recordColumns+` FROM decision_records WHERE claim_id = $1 ORDER BY created_at, id`, claimID)
	if err != nil {
		fail(span, err)
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var out []*triage.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			fail(span, err)
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		fail(span, err)
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	span.SetAttributes(attribute.Int("db.rows", len(out)))
	return out, nil
}

// Insert writes a new record. An existing ID returns triage.ErrDuplicate.
func (s *Store) Insert(ctx context.Context, r *triage.Record) error {
	ctx, span := startSpan(ctx, "pgstore.Insert", "records.insert", "INSERT")
	defer span.End()
	span.SetAttributes(
		attribute.String("adjuster.record.id", r.ID),
		attribute.String("adjuster.record.kind", string(r.Kind)),
	)

	factors := r.Decision.RiskFactors
	if factors == nil {
		factors = []string{}
	}
	factorsJSON, err := json.Marshal(factors)
	if err != nil {
		fail(span, err)
		return fmt.Errorf("marshal risk factors: %w", err)
	}

	var supersedes *string
	if r.Supersedes != "" {
		supersedes = &r.Supersedes
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		fail(span, err)
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is harmless

	d := r.Decision
	_, err = tx.Exec(ctx,
		`INSERT INTO decision_records (id, claim_id, policy_id, provider, kind, severity, action, rationale,
			risk_score, risk_factors, rule, decided_at, supersedes, reviewer, reason, created_at, duration_s)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		r.ID, r.ClaimID, r.PolicyID, r.Provider, string(r.Kind), string(d.Severity), string(d.Action), d.Rationale,
		d.RiskScore, factorsJSON, d.Rule, d.Timestamp, supersedes, r.Reviewer, r.Reason, r.CreatedAt, r.Duration,
	)
	if err != nil {
		fail(span, err)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("insert %s: %w", r.ID, triage.ErrDuplicate)
		}
		return fmt.Errorf("insert record %s: %w", r.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		fail(span, err)
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// startSpan opens the store span and labels the queries beneath it with operation.
func startSpan(ctx context.Context, name, operation, sqlOp string) (context.Context, trace.Span) {
	ctx = postgres.WithOperation(ctx, operation)
	return tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", sqlOp),
	))
}

func fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// scanRecord scans one row, returning (nil, nil) when the row does not exist.
func scanRecord(row pgx.Row) (*triage.Record, error) {
	var (
		r                      triage.Record
		kind, severity, action string
		factorsJSON            []byte
	)
	err := row.Scan(
		&r.ID, &r.ClaimID, &r.PolicyID, &r.Provider, &kind, &severity, &action, &r.Decision.Rationale,
		&r.Decision.RiskScore, &factorsJSON, &r.Decision.Rule, &r.Decision.Timestamp, &r.Supersedes,
		&r.Reviewer, &r.Reason, &r.CreatedAt, &r.Duration,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan record: %w", err)
	}

	if len(factorsJSON) > 0 {
		if err := json.Unmarshal(factorsJSON, &r.Decision.RiskFactors); err != nil {
			return nil, fmt.Errorf("unmarshal risk factors for %s: %w", r.ID, err)
		}
		if len(r.Decision.RiskFactors) == 0 {
			r.Decision.RiskFactors = nil
		}
	}

	r.Kind = triage.Kind(kind)
	r.Decision.ClaimID = r.ClaimID
	r.Decision.Provider = r.Provider
	r.Decision.Severity = claim.Severity(severity)
	r.Decision.Action = claim.Action(action)
	r.Decision.Timestamp = r.Decision.Timestamp.UTC()
	r.CreatedAt = r.CreatedAt.UTC()
	return &r, nil
}

package triage

import (
	"context"
	"errors"
)

// ErrDuplicate is returned by Insert when a record with the same ID exists.
var ErrDuplicate = errors.New("duplicate record id")

// Store is the persistence interface for decision records. It is
// insert-only: there is no update or delete.
type Store interface {
	Get(ctx context.Context, id string) (*Record, bool, error)
	ListByClaim(ctx context.Context, claimID string) ([]*Record, error)
	Insert(ctx context.Context, r *Record) error
}

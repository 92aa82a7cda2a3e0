// Package policy resolves policy records by identifier.
package policy

import (
	"context"
	"fmt"
	"sort"

	"github.com/linnemanlabs/adjuster/internal/claim"
)

// Lookup resolves a policy by ID. A missing ID returns *claim.NotFoundError,
// never a default policy.
type Lookup interface {
	Lookup(ctx context.Context, id string) (*claim.Policy, error)
}

// Directory is an in-memory, read-only policy directory. Safe for concurrent use.
type Directory struct {
	policies map[string]claim.Policy
}

// NewDirectory validates and indexes the given policies. Duplicate IDs are rejected.
func NewDirectory(policies []claim.Policy) (*Directory, error) {
	d := &Directory{policies: make(map[string]claim.Policy, len(policies))}
	for i := range policies {
		p := policies[i]
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("policy %d: %w", i, err)
		}
		if _, dup := d.policies[p.ID]; dup {
			return nil, fmt.Errorf("policy %d: %w", i, &claim.ValidationError{Field: "policy_id", Reason: "duplicate " + p.ID})
		}
		d.policies[p.ID] = p
	}
	return d, nil
}

// Lookup returns a copy of the policy with the given ID.
func (d *Directory) Lookup(_ context.Context, id string) (*claim.Policy, error) {
	p, ok := d.policies[id]
	if !ok {
		return nil, &claim.NotFoundError{Kind: "policy", ID: id}
	}
	return &p, nil
}

// Len returns the number of policies in the directory.
func (d *Directory) Len() int { return len(d.policies) }

// IDs returns the policy IDs in sorted order.
func (d *Directory) IDs() []string {
	ids := make([]string, 0, len(d.policies))
	for id := range d.policies {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

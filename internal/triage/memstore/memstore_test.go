package memstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/linnemanlabs/adjuster/internal/claim"
	"github.com/linnemanlabs/adjuster/internal/triage"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func record(id, claimID string, at time.Time) *triage.Record {
	return &triage.Record{
		ID:        id,
		ClaimID:   claimID,
		PolicyID:  "POL-1",
		Provider:  "rule_based",
		Kind:      triage.KindDecision,
		CreatedAt: at,
		Decision: claim.Decision{
			ClaimID:     claimID,
			Severity:    claim.SeverityLow,
			Action:      claim.ActionApprove,
			RiskFactors: []string{"high_amount"},
		},
	}
}

func TestStore_InsertAndGet(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	if err := s.Insert(ctx, record("r-1", "C1", t0)); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, ok, err := s.Get(ctx, "r-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("expected record to be found")
	}
	if got.ClaimID != "C1" || got.Decision.Action != claim.ActionApprove {
		t.Errorf("got %+v", got)
	}
}

func TestStore_GetMissing(t *testing.T) {
	t.Parallel()

	_, ok, err := New().Get(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for missing ID")
	}
}

func TestStore_InsertDuplicate(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	_ = s.Insert(ctx, record("r-1", "C1", t0))

	r := record("r-1", "C1", t0)
	r.Decision.Action = claim.ActionDeny
	if err := s.Insert(ctx, r); !errors.Is(err, triage.ErrDuplicate) {
		t.Fatalf("err = %v, want ErrDuplicate", err)
	}

	got, _, _ := s.Get(ctx, "r-1")
	if got.Decision.Action != claim.ActionApprove {
		t.Errorf("duplicate insert modified record: action = %s", got.Decision.Action)
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1", s.Len())
	}
}

func TestStore_ReturnsCopies(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	r := record("r-1", "C1", t0)
	_ = s.Insert(ctx, r)
	r.Decision.RiskFactors[0] = "mutated"

	got, _, _ := s.Get(ctx, "r-1")
	got.Decision.Severity = claim.SeverityCritical
	got.Decision.RiskFactors[0] = "mutated"

	again, _, _ := s.Get(ctx, "r-1")
	if again.Decision.Severity != claim.SeverityLow || again.Decision.RiskFactors[0] != "high_amount" {
		t.Errorf("stored record mutated through a copy: %+v", again.Decision)
	}
}

func TestStore_ListByClaimOrdered(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	_ = s.Insert(ctx, record("r-3", "C1", t0.Add(2*time.Minute)))
	_ = s.Insert(ctx, record("r-2", "C1", t0))
	_ = s.Insert(ctx, record("r-1", "C1", t0))
	_ = s.Insert(ctx, record("r-9", "C2", t0))

	got, err := s.ListByClaim(ctx, "C1")
	if err != nil {
		t.Fatalf("ListByClaim: %v", err)
	}
	var ids []string
	for _, r := range got {
		ids = append(ids, r.ID)
	}
	if fmt.Sprint(ids) != "[r-1 r-2 r-3]" {
		t.Errorf("ids = %v, want [r-1 r-2 r-3]", ids)
	}

	none, err := s.ListByClaim(ctx, "C404")
	if err != nil || len(none) != 0 {
		t.Errorf("unknown claim = %v, %v", none, err)
	}
}

func TestStore_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	const n = 100

	var wg sync.WaitGroup
	wg.Add(n * 2)

	for i := range n {
		id := fmt.Sprintf("id-%d", i)
		claimID := fmt.Sprintf("C%d", i%5)

		go func() {
			defer wg.Done()
			_ = s.Insert(ctx, record(id, claimID, t0))
		}()

		go func() {
			defer wg.Done()
			_, _, _ = s.Get(ctx, id)
			_, _ = s.ListByClaim(ctx, claimID)
		}()
	}

	wg.Wait()

	if s.Len() != n {
		t.Errorf("Len = %d, want %d", s.Len(), n)
	}
}

package triage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"
	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/adjuster/internal/audit"
	"github.com/linnemanlabs/adjuster/internal/claim"
)

// Notifier is told about records whose action is escalate.
type Notifier interface {
	Send(ctx context.Context, r *Record) error
}

// Option configures a Service.
type Option func(*Service)

// WithAuditSink sets the sink decisions and reviews are appended to.
func WithAuditSink(sink audit.Sink) Option {
	return func(s *Service) {
		if sink != nil {
			s.sink = sink
		}
	}
}

// WithMetrics records decision and review metrics.
func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithNotifier sends escalated records to n.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithClock overrides the record timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// Service is the business boundary for claim decisions and reviews.
type Service struct {
	store    Store
	logger   log.Logger
	sink     audit.Sink
	metrics  *Metrics
	notifier Notifier
	now      func() time.Time

	mu        sync.RWMutex
	providers map[string]claim.Decider
	order     []string

	pending sync.WaitGroup
}

// NewService creates a new decision service over store.
func NewService(store Store, logger log.Logger, opts ...Option) *Service {
	if store == nil {
		panic(xerrors.New("triage store is required"))
	}
	if logger == nil {
		logger = log.Nop()
	}
	s := &Service{
		store:     store,
		logger:    logger,
		sink:      audit.Nop{},
		now:       time.Now,
		providers: make(map[string]claim.Decider),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Register adds a named decision provider. Names must be unique.
func (s *Service) Register(name string, d claim.Decider) {
	if name == "" || d == nil {
		panic(xerrors.New("provider name and decider are required"))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.providers[name]; ok {
		panic(xerrors.New("provider " + name + " registered twice"))
	}
	s.providers[name] = d
	s.order = append(s.order, name)
}

// Providers returns provider names in registration order.
func (s *Service) Providers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}

func (s *Service) provider(name string) (claim.Decider, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.providers[name]
	return d, ok
}

// Decide runs the named provider on c and persists the outcome as a new record.
// Unknown providers return *claim.NotFoundError; decider failures and panics
// return *claim.ProviderError.
func (s *Service) Decide(ctx context.Context, provider string, c *claim.Claim) (*Record, error) {
	d, ok := s.provider(provider)
	if !ok {
		return nil, &claim.NotFoundError{Kind: "provider", ID: provider}
	}
	if c == nil {
		return nil, &claim.ValidationError{Field: "claim", Reason: "required"}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	L := s.logger.With("claim_id", c.ID, "provider", provider)

	start := time.Now()
	dec, err := claim.Call(ctx, provider, d, c)
	duration := time.Since(start).Seconds()
	if err != nil {
		if errors.Is(err, claim.ErrProvider) {
			s.metrics.providerFailed(provider)
		}
		L.Error(ctx, err, "decision failed", "duration", duration)
		s.record(ctx, audit.Entry{
			Type:     audit.TypeError,
			Step:     "decide",
			ClaimID:  c.ID,
			PolicyID: c.PolicyID,
			Provider: provider,
			Error:    err.Error(),
		})
		return nil, err
	}

	dec.Provider = provider
	now := s.now().UTC()
	if dec.Timestamp.IsZero() {
		dec.Timestamp = now
	}

	rec := &Record{
		ID:        ulid.Make().String(),
		ClaimID:   c.ID,
		PolicyID:  c.PolicyID,
		Provider:  provider,
		Kind:      KindDecision,
		Decision:  *dec,
		CreatedAt: now,
		Duration:  duration,
	}
	if err := s.store.Insert(ctx, rec); err != nil {
		return nil, fmt.Errorf("insert decision record: %w", err)
	}

	s.record(ctx, audit.FromDecision(rec.ID, rec.PolicyID, &rec.Decision))
	s.metrics.observeDecision(rec)

	L.Info(ctx, "decision recorded",
		"record_id", rec.ID,
		"severity", dec.Severity,
		"action", dec.Action,
		"risk_score", dec.RiskScore,
		"duration", duration,
	)

	if rec.Escalated() {
		s.notify(ctx, rec)
	}
	return rec, nil
}

// Review records a reviewer's verdict on an existing record as a second,
// linked record. The reviewed record is never modified.
func (s *Service) Review(ctx context.Context, recordID string, rv Review) (*Record, error) {
	if err := rv.Validate(); err != nil {
		return nil, err
	}

	orig, ok, err := s.store.Get(ctx, recordID)
	if err != nil {
		return nil, fmt.Errorf("get record %s: %w", recordID, err)
	}
	if !ok {
		return nil, &claim.NotFoundError{Kind: "record", ID: recordID}
	}

	now := s.now().UTC()
	dec := orig.Decision
	dec.Timestamp = now
	kind := KindAccepted
	entryType := audit.TypeAccepted
	if !rv.Accept {
		kind = KindOverride
		entryType = audit.TypeOverride
		dec.Severity, dec.Action = rv.Severity, rv.Action
	}

	rec := &Record{
		ID:         ulid.Make().String(),
		ClaimID:    orig.ClaimID,
		PolicyID:   orig.PolicyID,
		Provider:   orig.Provider,
		Kind:       kind,
		Decision:   dec,
		Supersedes: orig.ID,
		Reviewer:   rv.Reviewer,
		Reason:     rv.Reason,
		CreatedAt:  now,
	}
	if err := s.store.Insert(ctx, rec); err != nil {
		return nil, fmt.Errorf("insert review record: %w", err)
	}

	s.record(ctx, audit.Entry{
		Timestamp:  now,
		Type:       entryType,
		RecordID:   rec.ID,
		Supersedes: orig.ID,
		ClaimID:    rec.ClaimID,
		PolicyID:   rec.PolicyID,
		Provider:   rec.Provider,
		Severity:   dec.Severity,
		Action:     dec.Action,
		RiskScore:  dec.RiskScore,
		Reviewer:   rv.Reviewer,
		Reason:     rv.Reason,
	})
	s.metrics.observeReview(kind)

	s.logger.Info(ctx, "review recorded",
		"record_id", rec.ID,
		"supersedes", orig.ID,
		"claim_id", rec.ClaimID,
		"kind", kind,
		"reviewer", rv.Reviewer,
	)

	if kind == KindOverride && rec.Escalated() && !orig.Escalated() {
		s.notify(ctx, rec)
	}
	return rec, nil
}

// Get returns a record by ID, or *claim.NotFoundError.
func (s *Service) Get(ctx context.Context, id string) (*Record, error) {
	r, ok, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get record %s: %w", id, err)
	}
	if !ok {
		return nil, &claim.NotFoundError{Kind: "record", ID: id}
	}
	return r, nil
}

// History returns every record for a claim, oldest first. A claim with no
// records returns *claim.NotFoundError.
func (s *Service) History(ctx context.Context, claimID string) ([]*Record, error) {
	recs, err := s.store.ListByClaim(ctx, claimID)
	if err != nil {
		return nil, fmt.Errorf("list records for claim %s: %w", claimID, err)
	}
	if len(recs) == 0 {
		return nil, &claim.NotFoundError{Kind: "claim", ID: claimID}
	}
	return recs, nil
}

// Wait blocks until in-flight escalation notifications finish.
func (s *Service) Wait() {
	s.pending.Wait()
}

// notify sends asynchronously - the copy keeps the caller's record unshared.
func (s *Service) notify(ctx context.Context, rec *Record) {
	if s.notifier == nil {
		return
	}
	cp := rec.Clone()
	s.pending.Add(1)
	go func(ctx context.Context) {
		defer s.pending.Done()
		err := s.notifier.Send(ctx, cp)
		s.metrics.observeNotification(err)
		if err != nil {
			s.logger.Warn(ctx, "escalation notification failed", "record_id", cp.ID, "claim_id", cp.ClaimID, "err", err)
		}
	}(context.WithoutCancel(ctx))
}

func (s *Service) record(ctx context.Context, e audit.Entry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = s.now().UTC()
	}
	if err := s.sink.Append(ctx, e); err != nil {
		s.logger.Warn(ctx, "audit append failed", "type", e.Type, "claim_id", e.ClaimID, "err", err)
	}
}

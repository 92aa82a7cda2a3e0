package audit

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// Sink accepts audit entries. Callers treat Append as fire-and-forget: a
// failed append is logged and otherwise ignored.
type Sink interface {
	Append(ctx context.Context, e Entry) error
}

// Nop discards every entry.
type Nop struct{}

// Append implements Sink.
func (Nop) Append(context.Context, Entry) error { return nil }

type tee []Sink

// Tee fans entries out to every non-nil sink. All sinks are attempted; errors are joined.
func Tee(sinks ...Sink) Sink {
	var out tee
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (t tee) Append(ctx context.Context, e Entry) error {
	var errs []error
	for _, s := range t {
		if err := s.Append(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Filter selects entries from a Memory sink. Zero fields match everything.
type Filter struct {
	Type    EntryType
	ClaimID string
}

func (f Filter) match(e *Entry) bool {
	if f.Type != "" && e.Type != f.Type {
		return false
	}
	if f.ClaimID != "" && e.ClaimID != f.ClaimID {
		return false
	}
	return true
}

// ToolCallStats summarizes tool_call entries.
type ToolCallStats struct {
	Total  int            `json:"total_calls"`
	ByTool map[string]int `json:"by_tool"`
}

// Memory keeps entries in process. Safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewMemory returns an empty in-memory sink.
func NewMemory() *Memory {
	return &Memory{}
}

// Append implements Sink.
func (m *Memory) Append(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

// Entries returns copies of the entries matching f, in append order.
func (m *Memory) Entries(f Filter) []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Entry
	for i := range m.entries {
		if f.match(&m.entries[i]) {
			out = append(out, m.entries[i])
		}
	}
	return out
}

// Len returns the number of entries recorded.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// ToolCallStats counts tool_call entries by tool name.
func (m *Memory) ToolCallStats() ToolCallStats {
	stats := ToolCallStats{ByTool: map[string]int{}}
	for _, e := range m.Entries(Filter{Type: TypeToolCall}) {
		stats.Total++
		stats.ByTool[e.Tool]++
	}
	return stats
}

// OverrideRate is overrides per decision, or 0 with no decisions.
func (m *Memory) OverrideRate() float64 {
	decisions := len(m.Entries(Filter{Type: TypeDecision}))
	if decisions == 0 {
		return 0
	}
	return float64(len(m.Entries(Filter{Type: TypeOverride}))) / float64(decisions)
}

// Tools returns the distinct tool names seen, sorted.
func (m *Memory) Tools() []string {
	stats := m.ToolCallStats()
	out := make([]string, 0, len(stats.ByTool))
	for name := range stats.ByTool {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

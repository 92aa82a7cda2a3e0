package postgres

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type observation struct {
	operation, route, outcome string
}

type recordingObserver struct {
	mu  sync.Mutex
	obs []observation
}

func (r *recordingObserver) ObserveQuery(_ context.Context, operation, route, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.obs = append(r.obs, observation{operation, route, outcome})
}

func TestShortenFuncName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"full path", "github.com/linnemanlabs/adjuster/internal/triage/pgstore.(*Store).Get", "(*Store).Get"},
		{"already short", "(*Store).Get", "Get"},
		{"empty string", "", ""},
		{"no dots", "main", "main"},
		{"no slashes", "pgstore.(*Store).Insert", "(*Store).Insert"},
		{"single segment", "foo.Bar", "Bar"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := shortenFuncName(tt.in); got != tt.want {
				t.Errorf("shortenFuncName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestWithOperation(t *testing.T) {
	t.Parallel()

	if got := OperationFromContext(context.Background()); got != unknownOperation {
		t.Errorf("unset operation = %q, want %q", got, unknownOperation)
	}
	ctx := WithOperation(context.Background(), "records.insert")
	if got := OperationFromContext(ctx); got != "records.insert" {
		t.Errorf("operation = %q, want records.insert", got)
	}
	if got := OperationFromContext(WithOperation(ctx, "")); got != "records.insert" {
		t.Errorf("empty operation should keep the outer one, got %q", got)
	}
}

func TestRouteFromContext(t *testing.T) {
	t.Parallel()

	if got := routeFromContext(context.Background()); got != noRoute {
		t.Errorf("route outside HTTP = %q, want %q", got, noRoute)
	}

	var got string
	r := chi.NewRouter()
	r.Get("/api/v1/decisions/{id}", func(_ http.ResponseWriter, req *http.Request) {
		got = routeFromContext(req.Context())
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/decisions/abc", nil))
	if got != "/api/v1/decisions/{id}" {
		t.Errorf("route = %q", got)
	}
}

// The query observer is global, so these run sequentially.
func TestLoggingTracer_ObservesQueries(t *testing.T) {
	obs := &recordingObserver{}
	SetQueryObserver(obs)
	defer SetQueryObserver(nil)

	tr := wrapQueryTracer(nil)
	ctx := WithOperation(context.Background(), "records.get")

	qctx := tr.TraceQueryStart(ctx, nil, pgx.TraceQueryStartData{SQL: "SELECT 1", Args: []any{"CLM-1"}})
	tr.TraceQueryEnd(qctx, nil, pgx.TraceQueryEndData{CommandTag: pgconn.NewCommandTag("SELECT 1")})

	qctx = tr.TraceQueryStart(ctx, nil, pgx.TraceQueryStartData{SQL: "INSERT"})
	tr.TraceQueryEnd(qctx, nil, pgx.TraceQueryEndData{Err: errors.New("boom")})

	want := []observation{
		{"records.get", noRoute, "ok"},
		{"records.get", noRoute, "error"},
	}
	if len(obs.obs) != len(want) {
		t.Fatalf("observations = %+v, want %+v", obs.obs, want)
	}
	for i := range want {
		if obs.obs[i] != want[i] {
			t.Errorf("observation %d = %+v, want %+v", i, obs.obs[i], want[i])
		}
	}
}

func TestLoggingTracer_EndWithoutStart(t *testing.T) {
	obs := &recordingObserver{}
	SetQueryObserver(obs)
	defer SetQueryObserver(nil)

	wrapQueryTracer(nil).TraceQueryEnd(context.Background(), nil, pgx.TraceQueryEndData{})
	if len(obs.obs) != 0 {
		t.Errorf("unexpected observation without a start: %+v", obs.obs)
	}
}

func TestSetQueryObserver(t *testing.T) {
	defer SetQueryObserver(nil)

	called := false
	SetQueryObserver(QueryObserverFunc(func(_ context.Context, _, _, _ string, _ time.Duration) {
		called = true
	}))
	got := getQueryObserver()
	if got == nil {
		t.Fatal("expected non-nil observer after Set")
	}
	got.ObserveQuery(context.Background(), "records.get", noRoute, "ok", time.Millisecond)
	if !called {
		t.Error("observer was not called")
	}

	SetQueryObserver(nil)
	if got := getQueryObserver(); got != nil {
		t.Errorf("expected nil observer after Set(nil), got %v", got)
	}
}

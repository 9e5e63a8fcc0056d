package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

type recordedObservation struct {
	method, route string
	status        int
}

type fakeObserver struct {
	seen []recordedObservation
}

func (f *fakeObserver) Observe(method, route string, status int, _ time.Duration) {
	f.seen = append(f.seen, recordedObservation{method: method, route: route, status: status})
}

func TestMetricsUsesRoutePattern(t *testing.T) {
	observer := &fakeObserver{}
	r := chi.NewRouter()
	r.Use(Metrics(observer))
	r.Get("/orders/{orderId}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/orders/17", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	if len(observer.seen) != 2 {
		t.Fatalf("expected 2 observations, got %d", len(observer.seen))
	}
	if got := observer.seen[0]; got.route != "/orders/{orderId}" || got.status != http.StatusNotFound || got.method != http.MethodGet {
		t.Fatalf("unexpected observation %+v", got)
	}
	if observer.seen[1].route != "unmatched" {
		t.Fatalf("expected unmatched route label, got %q", observer.seen[1].route)
	}
}

func TestRequestIDPropagatesOrMints(t *testing.T) {
	handler := RequestID(nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if got := resp.Header().Get(requestIDHeader); got != "abc-123" {
		t.Fatalf("expected propagated id, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "bad id\nwith newline")
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if got := resp.Header().Get(requestIDHeader); got == "" || strings.Contains(got, " ") {
		t.Fatalf("expected minted id, got %q", got)
	}
}

func TestRecovererReturnsInternalError(t *testing.T) {
	handler := Recoverer(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "INTERNAL_ERROR") {
		t.Fatalf("expected error envelope, got %s", resp.Body.String())
	}
}

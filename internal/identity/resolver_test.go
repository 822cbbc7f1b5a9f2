package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func identityHandler(uid string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message":"identity minted","code":200,"data":{"uid":"` + uid + `","token":"tok-1"}}`))
	}
}

func TestResolve_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(identityHandler("uid-1"))
	defer srv.Close()

	r := NewResolver(srv.URL)
	sess, err := r.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if sess.Uid != "uid-1" || sess.Token != "tok-1" {
		t.Fatalf("unexpected session: %+v", sess)
	}
}

func TestResolve_StableAcrossCalls(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		identityHandler("uid-1")(w, r)
	}))
	defer srv.Close()

	r := NewResolver(srv.URL)
	first, err := r.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	second, err := r.Resolve(context.Background())
	if err != nil {
		t.Fatalf("second Resolve error: %v", err)
	}
	if first != second {
		t.Fatalf("identity must stay stable for the session")
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single mint call, got %d", calls.Load())
	}
}

func TestResolve_RetriesUntilReady(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		identityHandler("uid-1")(w, r)
	}))
	defer srv.Close()

	r := NewResolver(srv.URL)
	r.interval = time.Millisecond

	sess, err := r.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if sess.Uid != "uid-1" {
		t.Fatalf("unexpected uid %q", sess.Uid)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestResolve_BoundedThenFatal(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	r := NewResolver(srv.URL)
	r.attempts = 4
	r.interval = time.Millisecond

	if _, err := r.Resolve(context.Background()); err == nil {
		t.Fatalf("expected failure once the poll bound is exhausted")
	}
}

func TestResolve_ContextCancelled(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	r := NewResolver(srv.URL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := r.Resolve(ctx); err == nil {
		t.Fatalf("expected error for cancelled context")
	}
}

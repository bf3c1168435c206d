package httpx

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testClient(t *testing.T, retries int) *Client {
	t.Helper()
	client, err := New(Options{
		Timeout:           5 * time.Second,
		RetryCount:        retries,
		RetryDelay:        time.Millisecond,
		RequestsPerSecond: 1000,
		UserAgent:         "whatson-test",
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("cannot create client: %v", err)
	}
	return client
}

func TestGet_RetriesServerErrors(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	client := testClient(t, 3)
	resp, err := client.Get(context.Background(), "test", srv.URL, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(resp.Body) != "ok" {
		t.Fatalf("unexpected body: %q", resp.Body)
	}
	if got := hits.Load(); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestGet_NotFoundIsTerminal(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := testClient(t, 3)
	_, err := client.Get(context.Background(), "test", srv.URL, nil)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if got := hits.Load(); got != 1 {
		t.Fatalf("404 must not be retried, got %d attempts", got)
	}
}

func TestGet_ForbiddenIsTerminal(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	client := testClient(t, 3)
	_, err := client.Get(context.Background(), "test", srv.URL, nil)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if got := hits.Load(); got != 1 {
		t.Fatalf("403 must not be retried, got %d attempts", got)
	}
}

func TestGet_ExhaustedRetriesReturnStatusError(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := testClient(t, 2)
	_, err := client.Get(context.Background(), "test", srv.URL, nil)

	var serr *StatusError
	if !errors.As(err, &serr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if serr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("unexpected status: %d", serr.StatusCode)
	}
	if got := hits.Load(); got != 3 {
		t.Fatalf("expected initial attempt plus 2 retries, got %d", got)
	}
}

func TestGet_CookiesPersistAcrossRequests(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie("session"); err != nil {
			http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc"})
			w.Write([]byte("first"))
			return
		}
		w.Write([]byte("second"))
	}))
	defer srv.Close()

	client := testClient(t, 0)
	if _, err := client.Get(context.Background(), "test", srv.URL, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp, err := client.Get(context.Background(), "test", srv.URL, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(resp.Body) != "second" {
		t.Fatalf("expected the session cookie to be replayed, got %q", resp.Body)
	}
}

func TestGet_SetsUserAgent(t *testing.T) {
	t.Parallel()

	var seen atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen.Store(r.Header.Get("User-Agent"))
	}))
	defer srv.Close()

	client := testClient(t, 0)
	if _, err := client.Get(context.Background(), "test", srv.URL, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := seen.Load(); got != "whatson-test" {
		t.Fatalf("unexpected user agent: %v", got)
	}
}

func TestGet_RejectsRelativeURL(t *testing.T) {
	t.Parallel()

	client := testClient(t, 0)
	if _, err := client.Get(context.Background(), "test", "/relative/path", nil); err == nil {
		t.Fatalf("expected an error for a relative url")
	}
}

package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/pierrevano/whatson-api-sub001/internal/store"
)

type stubStore struct {
	doc     json.RawMessage
	findErr error
	pingErr error
	count   int64
}

func (s *stubStore) Ping(ctx context.Context) error {
	return s.pingErr
}

func (s *stubStore) EstimatedItems(ctx context.Context) (int64, error) {
	return s.count, nil
}

func (s *stubStore) FindItemDocByTMDB(ctx context.Context, itemType string, tmdbID int64) (json.RawMessage, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.doc, nil
}

func serveRequest(t *testing.T, st Store, target string) *httptest.ResponseRecorder {
	t.Helper()
	server := NewServer(st, zerolog.Nop(), Options{})
	rec := httptest.NewRecorder()
	server.router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHandleItem_ServesRawDocument(t *testing.T) {
	t.Parallel()

	doc := json.RawMessage(`{"item_type":"movie","is_active":true,"allocine":{"id":"186636","users_rating":4.2}}`)
	rec := serveRequest(t, &stubStore{doc: doc}, "/movie/496243")

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}

	// The body must be the stored document itself, not a jsend envelope,
	// so a change detector can decode it directly.
	var decoded map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("cannot decode body: %v", err)
	}
	if _, wrapped := decoded["status"]; wrapped {
		t.Fatalf("document responses must not be wrapped: %s", rec.Body.String())
	}
	if decoded["item_type"] != "movie" {
		t.Fatalf("unexpected document: %s", rec.Body.String())
	}
}

func TestHandleItem_NotFound(t *testing.T) {
	t.Parallel()

	rec := serveRequest(t, &stubStore{findErr: store.ErrNoRows}, "/movie/999")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unexpected status: %d", rec.Code)
	}

	var body jsendResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("cannot decode body: %v", err)
	}
	if body.Status != "fail" {
		t.Fatalf("unexpected jsend status: %q", body.Status)
	}
}

func TestHandleItem_BadType(t *testing.T) {
	t.Parallel()

	rec := serveRequest(t, &stubStore{}, "/documentary/1")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestHandleItem_BadID(t *testing.T) {
	t.Parallel()

	for _, target := range []string{"/movie/abc", "/movie/-5", "/movie/0"} {
		rec := serveRequest(t, &stubStore{}, target)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: unexpected status %d", target, rec.Code)
		}
	}
}

func TestHandleItem_LookupFailure(t *testing.T) {
	t.Parallel()

	rec := serveRequest(t, &stubStore{findErr: errors.New("connection reset")}, "/movie/1")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestHandleHealthz(t *testing.T) {
	t.Parallel()

	if rec := serveRequest(t, &stubStore{}, "/healthz"); rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if rec := serveRequest(t, &stubStore{pingErr: errors.New("down")}, "/healthz"); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestHandleCount(t *testing.T) {
	t.Parallel()

	rec := serveRequest(t, &stubStore{count: 12345}, "/count")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}

	var body struct {
		Status string           `json:"status"`
		Data   map[string]int64 `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("cannot decode body: %v", err)
	}
	if body.Data["items"] != 12345 {
		t.Fatalf("unexpected count payload: %s", rec.Body.String())
	}
}

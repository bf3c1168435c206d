package catalog

import (
	"testing"

	"github.com/pierrevano/whatson-api-sub001/internal/item"
)

func TestParse_ValidDataset(t *testing.T) {
	t.Parallel()

	payload := []byte(`[
		{"url":"card/fichefilm_gen_cfilm=186636.html","item_type":"movie","themoviedb_id":496243,"imdb_id":"tt6751668"},
		{"url":"series/ficheserie_gen_cserie=29885.html","item_type":"tvshow","themoviedb_id":"82856","popularity":12.5}
	]`)

	rows, err := Parse(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].IMDbID != "tt6751668" {
		t.Fatalf("unexpected imdb id: %q", rows[0].IMDbID)
	}
	if rows[1].TheMovieDBID == nil || rows[1].TheMovieDBID.String() != "82856" {
		t.Fatalf("string-typed cross-reference ids must be accepted")
	}
	if rows[1].Popularity == nil || *rows[1].Popularity != 12.5 {
		t.Fatalf("unexpected popularity: %v", rows[1].Popularity)
	}
}

func TestParse_MissingCrossReferenceIDRejected(t *testing.T) {
	t.Parallel()

	payload := []byte(`[{"url":"card/fichefilm_gen_cfilm=1.html","item_type":"movie"}]`)
	if _, err := Parse(payload); err == nil {
		t.Fatalf("expected a schema validation error")
	}
}

func TestParse_UnknownColumnRejected(t *testing.T) {
	t.Parallel()

	payload := []byte(`[{"url":"card/fichefilm_gen_cfilm=1.html","item_type":"movie","themoviedb_id":1,"surprise":true}]`)
	if _, err := Parse(payload); err == nil {
		t.Fatalf("expected a schema validation error for an unknown column")
	}
}

func TestParse_NonArrayRejected(t *testing.T) {
	t.Parallel()

	payload := []byte(`{"url":"card/fichefilm_gen_cfilm=1.html","item_type":"movie","themoviedb_id":1}`)
	if _, err := Parse(payload); err == nil {
		t.Fatalf("expected a schema validation error for a non-array dataset")
	}
}

func TestParse_TrailingContentRejected(t *testing.T) {
	t.Parallel()

	payload := []byte(`[] {"extra":true}`)
	if _, err := Parse(payload); err == nil {
		t.Fatalf("expected an error for trailing content")
	}
}

func TestParse_EmptyPayloadRejected(t *testing.T) {
	t.Parallel()

	if _, err := Parse([]byte("   ")); err == nil {
		t.Fatalf("expected an error for an empty dataset")
	}
}

func TestParseOptionalFields_EmptyEnablesAll(t *testing.T) {
	t.Parallel()

	enabled, err := ParseOptionalFields("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(enabled) != len(optionalFieldProviders) {
		t.Fatalf("expected all %d providers enabled, got %d", len(optionalFieldProviders), len(enabled))
	}
	if !enabled[item.ProviderIMDb] || !enabled[item.ProviderTrakt] {
		t.Fatalf("expected every optional provider enabled: %v", enabled)
	}
}

func TestParseOptionalFields_Subset(t *testing.T) {
	t.Parallel()

	enabled, err := ParseOptionalFields(" imdb , Betaseries ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(enabled) != 2 {
		t.Fatalf("expected 2 providers, got %d", len(enabled))
	}
	if !enabled[item.ProviderIMDb] || !enabled[item.ProviderBetaseries] {
		t.Fatalf("unexpected set: %v", enabled)
	}
}

func TestParseOptionalFields_UnknownName(t *testing.T) {
	t.Parallel()

	if _, err := ParseOptionalFields("imdb,letterboxd"); err == nil {
		t.Fatalf("expected an error for an unknown provider field")
	}
}

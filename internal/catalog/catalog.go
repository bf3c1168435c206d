package catalog

import (
	"bytes"
	"encoding/json"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/pierrevano/whatson-api-sub001/internal/item"
)

//go:embed schema.json
var catalogSchemaJSON string

// Row is one immutable input record of the catalog dataset. The AlloCine URL
// fragment and the TMDB cross-reference id are mandatory; the remaining
// provider ids are optional columns.
type Row struct {
	URL              string       `json:"url"`
	ItemType         string       `json:"item_type"`
	TheMovieDBID     *json.Number `json:"themoviedb_id"`
	IMDbID           string       `json:"imdb_id,omitempty"`
	BetaseriesID     string       `json:"betaseries_id,omitempty"`
	MetacriticID     string       `json:"metacritic_id,omitempty"`
	RottenTomatoesID string       `json:"rotten_tomatoes_id,omitempty"`
	SensCritiqueID   string       `json:"senscritique_id,omitempty"`
	TraktID          string       `json:"trakt_id,omitempty"`
	Popularity       *float64     `json:"popularity,omitempty"`
}

var compiledSchema = mustCompileSchema()

func mustCompileSchema() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("catalog.schema.json", strings.NewReader(catalogSchemaJSON)); err != nil {
		panic(fmt.Sprintf("add catalog schema resource: %v", err))
	}
	schema, err := compiler.Compile("catalog.schema.json")
	if err != nil {
		panic(fmt.Sprintf("compile catalog schema: %v", err))
	}
	return schema
}

// Load reads and validates the dataset file, preserving row order.
func Load(path string) ([]Row, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset %q: %w", path, err)
	}
	rows, err := Parse(payload)
	if err != nil {
		return nil, fmt.Errorf("dataset %q: %w", path, err)
	}
	return rows, nil
}

// Parse validates raw JSON against the embedded schema and decodes it.
func Parse(payload []byte) ([]Row, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("dataset is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, fmt.Errorf("decode dataset JSON: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("dataset JSON contains trailing content")
	}

	if err := compiledSchema.Validate(value); err != nil {
		return nil, fmt.Errorf("dataset schema validation: %w", err)
	}

	var rows []Row
	if err := json.Unmarshal(trimmed, &rows); err != nil {
		return nil, fmt.Errorf("decode dataset rows: %w", err)
	}
	return rows, nil
}

// OptionalField names one recognized optional provider column of the dataset.
type OptionalField string

const (
	FieldIMDb           OptionalField = "imdb"
	FieldBetaseries     OptionalField = "betaseries"
	FieldMetacritic     OptionalField = "metacritic"
	FieldRottenTomatoes OptionalField = "rotten_tomatoes"
	FieldSensCritique   OptionalField = "senscritique"
	FieldTrakt          OptionalField = "trakt"
)

var optionalFieldProviders = map[OptionalField]item.Provider{
	FieldIMDb:           item.ProviderIMDb,
	FieldBetaseries:     item.ProviderBetaseries,
	FieldMetacritic:     item.ProviderMetacritic,
	FieldRottenTomatoes: item.ProviderRottenTomatoes,
	FieldSensCritique:   item.ProviderSensCritique,
	FieldTrakt:          item.ProviderTrakt,
}

// ParseOptionalFields converts a comma-separated flag value into the set of
// enabled optional providers. An empty value enables all of them.
func ParseOptionalFields(raw string) (map[item.Provider]bool, error) {
	enabled := make(map[item.Provider]bool, len(optionalFieldProviders))

	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		for _, provider := range optionalFieldProviders {
			enabled[provider] = true
		}
		return enabled, nil
	}

	for _, part := range strings.Split(trimmed, ",") {
		name := OptionalField(strings.ToLower(strings.TrimSpace(part)))
		if name == "" {
			continue
		}
		provider, ok := optionalFieldProviders[name]
		if !ok {
			return nil, fmt.Errorf("unknown optional provider field %q", part)
		}
		enabled[provider] = true
	}
	if len(enabled) == 0 {
		return nil, fmt.Errorf("no optional provider fields selected")
	}
	return enabled, nil
}

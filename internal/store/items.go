package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pierrevano/whatson-api-sub001/internal/item"
)

// UpsertItemParams carries one canonical document write. Key is derived from
// the homepage URL by the caller via ItemKey.
type UpsertItemParams struct {
	Key    string
	TMDBID int64
	Doc    *item.CanonicalItem
}

// UpsertItem replaces the document when the key exists and inserts it
// otherwise. Applying identical params twice leaves the table in the same
// observable state.
func (p *Pool) UpsertItem(ctx context.Context, params UpsertItemParams) error {
	if params.Key == "" {
		return fmt.Errorf("upsert item: key is empty")
	}
	if params.Doc == nil {
		return fmt.Errorf("upsert item %s: document is nil", params.Key)
	}

	payload, err := json.Marshal(params.Doc)
	if err != nil {
		return fmt.Errorf("marshal item %s: %w", params.Key, err)
	}

	const q = `
INSERT INTO items (item_key, item_type, tmdb_id, is_active, updated_at, doc)
VALUES (?, ?, ?, ?, ?, ?::jsonb)
ON CONFLICT (item_key) DO UPDATE
SET
	item_type = EXCLUDED.item_type,
	tmdb_id = EXCLUDED.tmdb_id,
	is_active = EXCLUDED.is_active,
	updated_at = EXCLUDED.updated_at,
	doc = EXCLUDED.doc
`

	if _, err := p.Exec(
		ctx,
		q,
		params.Key,
		string(params.Doc.ItemType),
		params.TMDBID,
		params.Doc.IsActive,
		params.Doc.UpdatedAt.UTC(),
		string(payload),
	); err != nil {
		return fmt.Errorf("upsert item %s: %w", params.Key, err)
	}
	return nil
}

// FindItem loads one document by identity key.
func (p *Pool) FindItem(ctx context.Context, key string) (*item.CanonicalItem, error) {
	const q = `SELECT doc FROM items WHERE item_key = ? LIMIT 1`

	var payload []byte
	if err := p.QueryRow(ctx, q, key).Scan(&payload); err != nil {
		return nil, err
	}

	var doc item.CanonicalItem
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("decode item %s: %w", key, err)
	}
	return &doc, nil
}

// FindItemDocByTMDB loads the raw document for the read API, which serves it
// without the internal identity key.
func (p *Pool) FindItemDocByTMDB(ctx context.Context, itemType string, tmdbID int64) (json.RawMessage, error) {
	const q = `SELECT doc FROM items WHERE item_type = ? AND tmdb_id = ? LIMIT 1`

	var payload []byte
	if err := p.QueryRow(ctx, q, itemType, tmdbID).Scan(&payload); err != nil {
		return nil, err
	}
	return json.RawMessage(payload), nil
}

// DeactivateExcept clears is_active and popularity on every item whose key is
// absent from the current canonical id list. Documents are never deleted.
func (p *Pool) DeactivateExcept(ctx context.Context, activeKeys []string, now time.Time) (int64, error) {
	const base = `
UPDATE items
SET
	is_active = FALSE,
	updated_at = ?,
	doc = (doc - 'popularity') || jsonb_build_object('is_active', false)
WHERE is_active = TRUE
`

	if len(activeKeys) == 0 {
		return p.Exec(ctx, base, now.UTC())
	}
	return p.Exec(ctx, base+` AND item_key NOT IN ?`, now.UTC(), activeKeys)
}

// CountItems returns the exact document count.
func (p *Pool) CountItems(ctx context.Context) (int64, error) {
	var count int64
	if err := p.QueryRow(ctx, `SELECT COUNT(*) FROM items`).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// EstimatedItems returns the planner's row estimate, cheap on large tables.
func (p *Pool) EstimatedItems(ctx context.Context) (int64, error) {
	const q = `SELECT COALESCE(reltuples::bigint, 0) FROM pg_class WHERE relname = 'items'`

	var count int64
	if err := p.QueryRow(ctx, q).Scan(&count); err != nil {
		return 0, err
	}
	if count < 0 {
		count = 0
	}
	return count, nil
}

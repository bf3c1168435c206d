package store

import (
	"encoding/json"
	"time"
)

// Item maps the items table: one canonical document per title, keyed by the
// identity derived from the AlloCine homepage URL.
type Item struct {
	ItemKey   string          `gorm:"column:item_key;type:text;primaryKey"`
	ItemType  string          `gorm:"column:item_type;type:text;not null;index"`
	TMDBID    int64           `gorm:"column:tmdb_id;type:bigint;not null;index"`
	IsActive  bool            `gorm:"column:is_active;type:boolean;not null;default:true"`
	UpdatedAt time.Time       `gorm:"column:updated_at;type:timestamptz;not null"`
	Doc       json.RawMessage `gorm:"column:doc;type:jsonb;not null"`
}

func (Item) TableName() string { return "items" }

// SyncRun maps the sync_runs ledger, one row per batch invocation. The
// last_index column is the explicit resume point for the next run.
type SyncRun struct {
	RunID         int64      `gorm:"column:run_id;primaryKey;autoIncrement"`
	RunUUID       string     `gorm:"column:run_uuid;type:uuid;not null;unique"`
	StartedAt     time.Time  `gorm:"column:started_at;type:timestamptz;not null"`
	FinishedAt    *time.Time `gorm:"column:finished_at;type:timestamptz"`
	Status        string     `gorm:"column:status;type:text;not null;default:running"`
	RowsProcessed int        `gorm:"column:rows_processed;type:integer;not null;default:0"`
	RowsWritten   int        `gorm:"column:rows_written;type:integer;not null;default:0"`
	RowsSkipped   int        `gorm:"column:rows_skipped;type:integer;not null;default:0"`
	LastIndex     int        `gorm:"column:last_index;type:integer;not null;default:0"`
	StopReason    *string    `gorm:"column:stop_reason;type:text"`
	ErrorMessage  *string    `gorm:"column:error_message;type:text"`
}

func (SyncRun) TableName() string { return "sync_runs" }

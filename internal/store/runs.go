package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const maxRunErrorLength = 4000

// RunTotals summarizes one finished batch for the sync_runs ledger.
type RunTotals struct {
	RowsProcessed int
	RowsWritten   int
	RowsSkipped   int
	LastIndex     int
	StopReason    string
}

// InsertRun opens a ledger row for a starting batch.
func (p *Pool) InsertRun(ctx context.Context, startedAt time.Time) (int64, string, error) {
	const q = `
INSERT INTO sync_runs (run_uuid, started_at, status, rows_processed, rows_written, rows_skipped, last_index)
VALUES (?, ?, 'running', 0, 0, 0, 0)
RETURNING run_id
`

	runUUID := uuid.NewString()

	var runID int64
	if err := p.QueryRow(ctx, q, runUUID, startedAt.UTC()).Scan(&runID); err != nil {
		return 0, "", fmt.Errorf("insert sync run: %w", err)
	}
	return runID, runUUID, nil
}

// CompleteRun closes the ledger row for a successful batch, including early
// backpressure stops. LastIndex is the resume point for the next invocation.
func (p *Pool) CompleteRun(ctx context.Context, runID int64, totals RunTotals, finishedAt time.Time) error {
	const q = `
UPDATE sync_runs
SET
	status = 'completed',
	rows_processed = ?,
	rows_written = ?,
	rows_skipped = ?,
	last_index = ?,
	stop_reason = ?,
	finished_at = ?,
	error_message = NULL
WHERE run_id = ?
`

	var stopReason *string
	if trimmed := strings.TrimSpace(totals.StopReason); trimmed != "" {
		stopReason = &trimmed
	}

	if _, err := p.Exec(
		ctx,
		q,
		totals.RowsProcessed,
		totals.RowsWritten,
		totals.RowsSkipped,
		totals.LastIndex,
		stopReason,
		finishedAt.UTC(),
		runID,
	); err != nil {
		return fmt.Errorf("complete sync run %d: %w", runID, err)
	}
	return nil
}

// FailRun records a fatal batch abort.
func (p *Pool) FailRun(ctx context.Context, runID int64, totals RunTotals, cause error, finishedAt time.Time) error {
	const q = `
UPDATE sync_runs
SET
	status = 'failed',
	rows_processed = ?,
	rows_written = ?,
	rows_skipped = ?,
	last_index = ?,
	error_message = ?,
	finished_at = ?
WHERE run_id = ?
`

	msg := strings.TrimSpace(cause.Error())
	if len(msg) > maxRunErrorLength {
		msg = msg[:maxRunErrorLength]
	}

	if _, err := p.Exec(
		ctx,
		q,
		totals.RowsProcessed,
		totals.RowsWritten,
		totals.RowsSkipped,
		totals.LastIndex,
		msg,
		finishedAt.UTC(),
		runID,
	); err != nil {
		return fmt.Errorf("mark sync run %d failed: %w", runID, err)
	}
	return nil
}

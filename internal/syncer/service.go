package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/pierrevano/whatson-api-sub001/internal/builder"
	"github.com/pierrevano/whatson-api-sub001/internal/catalog"
	"github.com/pierrevano/whatson-api-sub001/internal/deriver"
	"github.com/pierrevano/whatson-api-sub001/internal/detect"
	"github.com/pierrevano/whatson-api-sub001/internal/globaltime"
	"github.com/pierrevano/whatson-api-sub001/internal/item"
	"github.com/pierrevano/whatson-api-sub001/internal/store"
)

// Store is the document-store surface the orchestrator writes through.
type Store interface {
	FindItem(ctx context.Context, key string) (*item.CanonicalItem, error)
	UpsertItem(ctx context.Context, params store.UpsertItemParams) error
}

// Detector is the change-detection short-circuit.
type Detector interface {
	Compare(ctx context.Context, itemType item.Type, tmdbID int64, freshRating *float64) detect.Result
}

// ContentBuilder produces the normalized document for a row.
type ContentBuilder interface {
	ProbePrimary(ctx context.Context, homepage string) (builder.Snapshot, error)
	Build(ctx context.Context, input builder.Input) (*item.CanonicalItem, error)
}

// Options configures one batch run. Constructed once at startup and passed by
// parameter; nothing here is read from ambient state.
type Options struct {
	StartIndex int
	// MaxIndex is an inclusive row-index bound; negative means unbounded.
	MaxIndex     int
	ForceRefresh bool
	// MaxHeapBytes is the heap ceiling for the batch circuit breaker; zero
	// disables the check.
	MaxHeapBytes     uint64
	RatingsErrorLog  string
	Templates        deriver.Templates
	EnabledProviders map[item.Provider]bool
}

// Service iterates catalog rows sequentially, one in-flight request chain at
// a time, and isolates or propagates per-row failures.
type Service struct {
	store    Store
	detector Detector
	builder  ContentBuilder
	probe    ResourceProbe
	opts     Options
	logger   zerolog.Logger
}

func New(st Store, detector Detector, contentBuilder ContentBuilder, probe ResourceProbe, opts Options, logger zerolog.Logger) *Service {
	if probe == nil {
		probe = RuntimeProbe{}
	}
	return &Service{
		store:    st,
		detector: detector,
		builder:  contentBuilder,
		probe:    probe,
		opts:     opts,
		logger:   logger,
	}
}

// Run processes rows in the caller-supplied order starting at StartIndex.
// Backpressure (index bound, heap ceiling) stops the batch early but
// successfully; only a fatal row outcome returns an error. Partial progress
// stays persisted either way.
func (s *Service) Run(ctx context.Context, rows []catalog.Row) (*Report, error) {
	report := &Report{
		LastIndex:  s.opts.StartIndex,
		StopReason: StopEndOfDataset,
	}

	for index := s.opts.StartIndex; index < len(rows); index++ {
		if s.opts.MaxIndex >= 0 && index > s.opts.MaxIndex {
			report.StopReason = StopMaxIndex
			break
		}
		if s.opts.MaxHeapBytes > 0 {
			if heap := s.probe.HeapBytes(); heap > s.opts.MaxHeapBytes {
				s.logger.Info().
					Uint64("heap_bytes", heap).
					Uint64("ceiling_bytes", s.opts.MaxHeapBytes).
					Int("resume_index", index).
					Msg("heap ceiling reached, stopping batch early")
				report.StopReason = StopHeapCeiling
				break
			}
		}

		outcome := s.processRow(ctx, index, rows[index])
		report.append(outcome)
		report.LastIndex = index + 1

		s.logger.Info().
			Int("index", index).
			Str("key", outcome.Key).
			Str("status", string(outcome.Status)).
			Bool("written", outcome.Written).
			Str("reason", outcome.Reason).
			Msg("row processed")

		if outcome.Status == StatusFatal {
			return report, fmt.Errorf("row %d: %s", index, outcome.Reason)
		}
	}

	return report, nil
}

// processRow runs one row through Deriving, Comparing, Building and Writing.
// A row once started runs to Done or a terminal failure; there is no mid-row
// cancellation.
func (s *Service) processRow(ctx context.Context, index int, row catalog.Row) Outcome {
	derived, err := deriver.Derive(row, s.opts.Templates, s.opts.EnabledProviders)
	if err != nil {
		var verr *deriver.ValidationError
		if errors.As(err, &verr) {
			// Malformed input invalidates all downstream processing.
			return Outcome{Index: index, Status: StatusFatal, Reason: err.Error()}
		}
		return Outcome{Index: index, Status: StatusSkipped, Reason: err.Error()}
	}

	key := store.ItemKey(derived.Homepage)

	snapshot, err := s.builder.ProbePrimary(ctx, derived.Homepage)
	if err != nil {
		return Outcome{Index: index, Key: key, Status: StatusSkipped, Reason: fmt.Sprintf("primary probe: %v", err)}
	}

	var previous *item.CanonicalItem
	reuse := false
	if !s.opts.ForceRefresh {
		result := s.detector.Compare(ctx, derived.ItemType, derived.TheMovieDBID, snapshot.UsersRating)
		previous = result.Data
		reuse = result.IsEqual && !snapshot.Blocked && result.Data != nil
	}
	if snapshot.Blocked && previous == nil {
		// Needed to preserve the previous timestamp and primary fields.
		if stored, ferr := s.store.FindItem(ctx, key); ferr == nil {
			previous = stored
		}
	}

	var doc *item.CanonicalItem
	if reuse {
		doc = previous
	} else {
		doc, err = s.builder.Build(ctx, builder.Input{
			Derived:  derived,
			Snapshot: snapshot,
			Previous: previous,
		})
		if err != nil {
			return Outcome{Index: index, Key: key, Status: StatusSkipped, Reason: fmt.Sprintf("build: %v", err)}
		}
	}

	doc.IsActive = derived.IsActive
	doc.UpdatedAt = s.stampTime(snapshot.Blocked, previous)

	if doc.AllRatingsNull() {
		s.recordNullRatings(index, key, derived.Homepage)
	}

	err = s.store.UpsertItem(ctx, store.UpsertItemParams{
		Key:    key,
		TMDBID: derived.TheMovieDBID,
		Doc:    doc,
	})
	if err != nil {
		s.logger.Error().
			Int("index", index).
			Str("key", key).
			Err(err).
			Msg("upsert failed, row skipped")
		return Outcome{Index: index, Key: key, Status: StatusSkipped, Reason: fmt.Sprintf("write: %v", err)}
	}

	return Outcome{Index: index, Key: key, Status: StatusDone, Written: true}
}

// stampTime keeps the previous timestamp when a provider was blocked this
// pass, signaling "attempted but not fully refreshed".
func (s *Service) stampTime(blocked bool, previous *item.CanonicalItem) time.Time {
	if blocked && previous != nil && !previous.UpdatedAt.IsZero() {
		return previous.UpdatedAt
	}
	return globaltime.UTC()
}

// recordNullRatings appends the row to the side error log for later
// inspection. Failures here are logged, never fatal.
func (s *Service) recordNullRatings(index int, key, homepage string) {
	if s.opts.RatingsErrorLog == "" {
		return
	}

	entry, err := json.Marshal(map[string]any{
		"index":    index,
		"key":      key,
		"homepage": homepage,
		"at":       globaltime.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return
	}

	file, err := os.OpenFile(s.opts.RatingsErrorLog, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		s.logger.Warn().Err(err).Msg("cannot open ratings error log")
		return
	}
	defer file.Close()

	if _, err := file.Write(append(entry, '\n')); err != nil {
		s.logger.Warn().Err(err).Msg("cannot append to ratings error log")
	}
}

package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"staysync/internal/domain"
	"staysync/internal/events"
	"staysync/internal/metrics"
	"staysync/internal/models"
)

// SyncService orchestrates one sync pass per calendar source: fetch, parse,
// reconcile, maintenance, conflict detection, action creation. Passes for the
// property are serialized so detection never reads another pass's
// half-applied writes.
type SyncService struct {
	propertyID int64

	fetcher  domain.FeedFetcher
	parser   domain.FeedParser
	bookings *BookingService
	detector *ConflictDetector
	actions  *ActionService

	sources  domain.SourceRepository
	syncLogs domain.SyncLogRepository
	state    domain.StateRepository
	eventBus domain.EventPublisher
	logger   *zerolog.Logger

	mu sync.Mutex
}

func NewSyncService(
	propertyID int64,
	fetcher domain.FeedFetcher,
	parser domain.FeedParser,
	bookings *BookingService,
	detector *ConflictDetector,
	actions *ActionService,
	sources domain.SourceRepository,
	syncLogs domain.SyncLogRepository,
	state domain.StateRepository,
	eventBus domain.EventPublisher,
	logger *zerolog.Logger,
) *SyncService {
	return &SyncService{
		propertyID: propertyID,
		fetcher:    fetcher,
		parser:     parser,
		bookings:   bookings,
		detector:   detector,
		actions:    actions,
		sources:    sources,
		syncLogs:   syncLogs,
		state:      state,
		eventBus:   eventBus,
		logger:     logger,
	}
}

// SyncResult aggregates a full pass over every enabled source.
type SyncResult struct {
	Success           bool              `json:"success"`
	TotalAdded        int               `json:"total_added"`
	TotalUpdated      int               `json:"total_updated"`
	TotalCancelled    int               `json:"total_cancelled"`
	ConflictsDetected int               `json:"conflicts_detected"`
	Logs              []*models.SyncLog `json:"logs"`
}

// SyncAll runs every enabled source in sequence. Sources are independent: one
// source failing does not abort the rest.
func (s *SyncService) SyncAll(ctx context.Context) (*SyncResult, error) {
	sources, err := s.sources.GetEnabledSources(ctx, s.propertyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load calendar sources: %w", err)
	}

	result := &SyncResult{Success: true}
	for _, source := range sources {
		log, err := s.SyncSource(ctx, source)
		if err != nil {
			result.Success = false
			s.logger.Error().Err(err).Str("source", source.Name).Msg("source sync failed")
		}
		if log == nil {
			continue
		}
		result.Logs = append(result.Logs, log)
		result.TotalAdded += log.BookingsAdded
		result.TotalUpdated += log.BookingsUpdated
		result.TotalCancelled += log.BookingsCancelled
		if log.ConflictsDetected > result.ConflictsDetected {
			result.ConflictsDetected = log.ConflictsDetected
		}
	}

	s.logger.Info().
		Int("sources", len(sources)).
		Int("added", result.TotalAdded).
		Int("updated", result.TotalUpdated).
		Int("cancelled", result.TotalCancelled).
		Int("conflicts", result.ConflictsDetected).
		Bool("success", result.Success).
		Msg("full sync completed")
	return result, nil
}

// SyncSource runs one pass over a single source. The returned SyncLog is
// always finalized, also on failure.
func (s *SyncService) SyncSource(ctx context.Context, source *models.CalendarSource) (*models.SyncLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	runID := uuid.NewString()
	logger := s.logger.With().
		Str("run_id", runID).
		Str("source", source.Name).
		Str("platform", string(source.Platform)).
		Logger()

	syncLog := &models.SyncLog{
		CalendarSourceID: source.ID,
		RunID:            runID,
		Status:           models.SyncStarted,
		StartedAt:        time.Now().UTC(),
	}
	if err := s.syncLogs.CreateSyncLog(ctx, syncLog); err != nil {
		return nil, fmt.Errorf("failed to create sync log: %w", err)
	}

	logger.Info().Msg("sync pass started")

	content, err := s.fetcher.Fetch(ctx, source.FeedURL, source.Platform)
	if err != nil {
		return syncLog, s.failPass(ctx, source, syncLog, &logger, fmt.Errorf("feed fetch failed: %w", err))
	}
	s.trackFeedDigest(ctx, source, content, &logger)

	parsed, err := s.parser.Parse(content, source.Platform)
	if err != nil {
		return syncLog, s.failPass(ctx, source, syncLog, &logger, fmt.Errorf("feed parse failed: %w", err))
	}
	logger.Info().Int("events", len(parsed)).Msg("feed parsed")

	for _, event := range parsed {
		_, action, err := s.bookings.MergeFromFeed(ctx, s.propertyID, source.ID, event)
		if err != nil {
			return syncLog, s.failPass(ctx, source, syncLog, &logger, fmt.Errorf("reconcile failed for event %q: %w", event.ExternalID, err))
		}
		switch action {
		case models.ReconcileCreated:
			syncLog.BookingsAdded++
		case models.ReconcileUpdated:
			syncLog.BookingsUpdated++
		case models.ReconcileCancelled:
			syncLog.BookingsCancelled++
		}
	}

	today := truncateToDay(time.Now().UTC())
	if _, err := s.bookings.MarkCompleted(ctx, s.propertyID, today); err != nil {
		return syncLog, s.failPass(ctx, source, syncLog, &logger, fmt.Errorf("completed maintenance failed: %w", err))
	}

	conflicts, _, err := s.detector.DetectAll(ctx, s.propertyID, today)
	if err != nil {
		return syncLog, s.failPass(ctx, source, syncLog, &logger, fmt.Errorf("conflict detection failed: %w", err))
	}
	syncLog.ConflictsDetected = len(conflicts)

	if _, err := s.detector.AutoResolveCancelled(ctx, s.propertyID); err != nil {
		return syncLog, s.failPass(ctx, source, syncLog, &logger, fmt.Errorf("auto-resolve failed: %w", err))
	}

	if _, err := s.actions.CreateForConflicts(ctx, s.propertyID, conflicts); err != nil {
		return syncLog, s.failPass(ctx, source, syncLog, &logger, fmt.Errorf("action creation failed: %w", err))
	}

	syncLog.Status = models.SyncSuccess
	syncLog.DurationMs = time.Since(syncLog.StartedAt).Milliseconds()
	if err := s.syncLogs.FinalizeSyncLog(ctx, syncLog); err != nil {
		return syncLog, err
	}
	if err := s.sources.UpdateSourceSyncState(ctx, source.ID, time.Now().UTC(), models.SyncSuccess); err != nil {
		return syncLog, err
	}

	metrics.IncSyncPass(string(source.Platform), string(models.SyncSuccess))
	if s.eventBus != nil {
		_ = s.eventBus.PublishJSON(events.EventSyncCompleted, events.SyncEventPayload{
			RunID:             runID,
			SourceName:        source.Name,
			Status:            string(syncLog.Status),
			BookingsAdded:     syncLog.BookingsAdded,
			BookingsUpdated:   syncLog.BookingsUpdated,
			BookingsCancelled: syncLog.BookingsCancelled,
			ConflictsDetected: syncLog.ConflictsDetected,
		})
	}

	logger.Info().
		Int("added", syncLog.BookingsAdded).
		Int("updated", syncLog.BookingsUpdated).
		Int("cancelled", syncLog.BookingsCancelled).
		Int("conflicts", syncLog.ConflictsDetected).
		Int64("duration_ms", syncLog.DurationMs).
		Msg("sync pass completed")
	return syncLog, nil
}

// failPass finalizes the log as failed and records the source state. The
// original error is returned for the caller's log line; it never propagates
// past the scheduler.
func (s *SyncService) failPass(ctx context.Context, source *models.CalendarSource, syncLog *models.SyncLog, logger *zerolog.Logger, cause error) error {
	syncLog.Status = models.SyncError
	syncLog.ErrorMessage = cause.Error()
	syncLog.DurationMs = time.Since(syncLog.StartedAt).Milliseconds()

	if err := s.syncLogs.FinalizeSyncLog(ctx, syncLog); err != nil {
		logger.Error().Err(err).Msg("failed to finalize sync log")
	}
	if err := s.sources.UpdateSourceSyncState(ctx, source.ID, time.Now().UTC(), models.SyncError); err != nil {
		logger.Error().Err(err).Msg("failed to update source sync state")
	}

	metrics.IncSyncPass(string(source.Platform), string(models.SyncError))
	logger.Error().Err(cause).Msg("sync pass failed")
	return cause
}

// trackFeedDigest records the feed content hash for change diagnostics. Redis
// being down only costs the diagnostic, never the pass.
func (s *SyncService) trackFeedDigest(ctx context.Context, source *models.CalendarSource, content string, logger *zerolog.Logger) {
	if s.state == nil {
		return
	}

	sum := sha256.Sum256([]byte(content))
	digest := hex.EncodeToString(sum[:])

	previous, err := s.state.GetFeedDigest(ctx, source.ID)
	if err != nil {
		logger.Debug().Err(err).Msg("feed digest lookup failed")
		return
	}
	if previous == digest {
		logger.Debug().Msg("feed content unchanged since last pass")
	}
	if err := s.state.SetFeedDigest(ctx, source.ID, digest); err != nil {
		logger.Debug().Err(err).Msg("feed digest store failed")
	}
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"staysync/internal/domain"
	"staysync/internal/models"
	"staysync/internal/service"
)

// BackupRunner is the optional database snapshot job.
type BackupRunner interface {
	Run(ctx context.Context)
}

// Scheduler drives recurring work: one sync job per enabled calendar source,
// a schedule-refresh job that picks up source changes, and a stale-action
// expiry job. Shutdown waits for running jobs.
type Scheduler struct {
	cron       *cron.Cron
	syncSvc    *service.SyncService
	actionSvc  *service.ActionService
	sources    domain.SourceRepository
	backup     BackupRunner
	backupSpec string
	logger     *zerolog.Logger

	propertyID      int64
	defaultInterval time.Duration

	jobs   map[int64]sourceJob
	jobsMu sync.Mutex
}

type sourceJob struct {
	entry    cron.EntryID
	interval time.Duration
}

func NewScheduler(
	propertyID int64,
	syncSvc *service.SyncService,
	actionSvc *service.ActionService,
	sources domain.SourceRepository,
	backup BackupRunner,
	backupSpec string,
	defaultIntervalMin int,
	logger *zerolog.Logger,
) *Scheduler {
	if defaultIntervalMin <= 0 {
		defaultIntervalMin = models.DefaultSyncIntervalMinutes
	}
	return &Scheduler{
		cron:            cron.New(),
		syncSvc:         syncSvc,
		actionSvc:       actionSvc,
		sources:         sources,
		backup:          backup,
		backupSpec:      backupSpec,
		logger:          logger,
		propertyID:      propertyID,
		defaultInterval: time.Duration(defaultIntervalMin) * time.Minute,
		jobs:            make(map[int64]sourceJob),
	}
}

// Start schedules all enabled sources and the maintenance jobs, then runs an
// initial full sync in the background.
func (s *Scheduler) Start(ctx context.Context) error {
	sources, err := s.sources.GetEnabledSources(ctx, s.propertyID)
	if err != nil {
		return fmt.Errorf("failed to load sources for scheduling: %w", err)
	}
	for _, source := range sources {
		s.scheduleSource(ctx, source)
	}

	// Pick up sources added or reconfigured after startup.
	if _, err := s.cron.AddFunc("@every 5m", func() {
		s.refreshSchedules(ctx)
	}); err != nil {
		return err
	}

	if _, err := s.cron.AddFunc("@hourly", func() {
		if _, err := s.actionSvc.ExpireStale(ctx); err != nil {
			s.logger.Error().Err(err).Msg("stale action expiry failed")
		}
	}); err != nil {
		return err
	}

	if s.backup != nil && s.backupSpec != "" {
		if _, err := s.cron.AddFunc(s.backupSpec, func() {
			s.backup.Run(ctx)
		}); err != nil {
			return fmt.Errorf("invalid backup schedule %q: %w", s.backupSpec, err)
		}
	}

	s.cron.Start()
	s.logger.Info().Int("sources", len(sources)).Msg("scheduler started")

	go s.runSyncAll(ctx)
	return nil
}

// Stop halts scheduling and waits for in-flight jobs to finish.
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.logger.Info().Msg("scheduler stopped")
}

// TriggerSync runs a full pass immediately, outside the schedule.
func (s *Scheduler) TriggerSync(ctx context.Context) (*service.SyncResult, error) {
	return s.syncSvc.SyncAll(ctx)
}

func (s *Scheduler) sourceInterval(source *models.CalendarSource) time.Duration {
	if source.SyncInterval > 0 {
		return time.Duration(source.SyncInterval) * time.Minute
	}
	return s.defaultInterval
}

func (s *Scheduler) scheduleSource(ctx context.Context, source *models.CalendarSource) {
	interval := s.sourceInterval(source)

	sourceID := source.ID
	spec := fmt.Sprintf("@every %s", interval)
	entryID, err := s.cron.AddFunc(spec, func() {
		s.runSyncSource(ctx, sourceID)
	})
	if err != nil {
		s.logger.Error().Err(err).Str("source", source.Name).Msg("failed to schedule source")
		return
	}

	s.jobsMu.Lock()
	if old, ok := s.jobs[sourceID]; ok {
		s.cron.Remove(old.entry)
	}
	s.jobs[sourceID] = sourceJob{entry: entryID, interval: interval}
	s.jobsMu.Unlock()

	s.logger.Info().
		Str("source", source.Name).
		Dur("interval", interval).
		Msg("source scheduled")
}

func (s *Scheduler) refreshSchedules(ctx context.Context) {
	sources, err := s.sources.GetEnabledSources(ctx, s.propertyID)
	if err != nil {
		s.logger.Error().Err(err).Msg("schedule refresh failed")
		return
	}

	known := make(map[int64]bool, len(sources))
	for _, source := range sources {
		known[source.ID] = true
		s.jobsMu.Lock()
		job, scheduled := s.jobs[source.ID]
		s.jobsMu.Unlock()
		// New sources get a job; a changed interval replaces the old one.
		if !scheduled || job.interval != s.sourceInterval(source) {
			s.scheduleSource(ctx, source)
		}
	}

	// Drop jobs for sources that were disabled or removed.
	s.jobsMu.Lock()
	for id, job := range s.jobs {
		if !known[id] {
			s.cron.Remove(job.entry)
			delete(s.jobs, id)
			s.logger.Info().Int64("source_id", id).Msg("source unscheduled")
		}
	}
	s.jobsMu.Unlock()
}

func (s *Scheduler) runSyncSource(ctx context.Context, sourceID int64) {
	source, err := s.sources.GetSource(ctx, sourceID)
	if err != nil {
		s.logger.Error().Err(err).Int64("source_id", sourceID).Msg("scheduled sync skipped")
		return
	}
	if !source.SyncEnabled {
		return
	}
	if _, err := s.syncSvc.SyncSource(ctx, source); err != nil {
		s.logger.Error().Err(err).Str("source", source.Name).Msg("scheduled sync failed")
	}
}

func (s *Scheduler) runSyncAll(ctx context.Context) {
	if _, err := s.syncSvc.SyncAll(ctx); err != nil {
		s.logger.Error().Err(err).Msg("initial sync failed")
	}
}

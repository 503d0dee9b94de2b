package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrRateLimited is returned when the sync API rate limit is exceeded.
var ErrRateLimited = errors.New("rate limit exceeded")

// syncCooldown is the minimum time between API-triggered syncs.
const syncCooldown = 30 * time.Second

// SyncResult contains the result of a sync operation.
type SyncResult struct {
	DatasetsAdded   int       `json:"datasets_added"`
	DatasetsRemoved int       `json:"datasets_removed"`
	DatasetsTotal   int       `json:"datasets_total"`
	SyncedAt        time.Time `json:"synced_at"`
	NextScheduledAt time.Time `json:"next_scheduled_at,omitempty"`
}

// SyncService pulls remote datasets into the workspace on a cron schedule.
type SyncService struct {
	registry *DatasetRegistry
	schedule string
	logger   *slog.Logger

	cron    *cron.Cron
	entryID cron.EntryID

	// Rate limiting for API triggers
	lastAPISync time.Time
	apiMutex    sync.Mutex

	// Prevents concurrent sync operations
	syncOpMutex sync.Mutex
}

// NewSyncService creates a new sync service. The schedule uses cron
// syntax or descriptors such as "@every 5m".
func NewSyncService(registry *DatasetRegistry, schedule string, logger *slog.Logger) (*SyncService, error) {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("parsing sync schedule %q: %w", schedule, err)
	}
	return &SyncService{
		registry: registry,
		schedule: schedule,
		logger:   logger,
		cron:     cron.New(),
		// Initialize to past time to allow immediate first API call
		lastAPISync: time.Now().Add(-syncCooldown - time.Second),
	}, nil
}

// Start begins the scheduled sync. Scheduled runs stop when ctx is done.
func (s *SyncService) Start(ctx context.Context) error {
	s.logger.Info("starting sync service", "schedule", s.schedule)

	id, err := s.cron.AddFunc(s.schedule, func() {
		if ctx.Err() != nil {
			return
		}
		s.logger.Debug("scheduled sync triggered")
		s.doSync(ctx)
	})
	if err != nil {
		return fmt.Errorf("scheduling sync: %w", err)
	}
	s.entryID = id
	s.cron.Start()
	return nil
}

// Stop gracefully stops the scheduler and waits for a running sync.
func (s *SyncService) Stop() {
	s.logger.Info("stopping sync service")
	<-s.cron.Stop().Done()
}

// TriggerSync manually triggers a sync operation with rate limiting.
// Returns ErrRateLimited if called again within the cooldown.
func (s *SyncService) TriggerSync(ctx context.Context) (SyncResult, error) {
	s.apiMutex.Lock()
	defer s.apiMutex.Unlock()

	if time.Since(s.lastAPISync) < syncCooldown {
		return SyncResult{}, ErrRateLimited
	}
	s.lastAPISync = time.Now()

	return s.doSyncWithResult(ctx)
}

// doSync performs the sync operation without returning detailed results.
func (s *SyncService) doSync(ctx context.Context) {
	if _, err := s.doSyncWithResult(ctx); err != nil {
		s.logger.Error("sync failed", "error", err)
	}
}

// doSyncWithResult performs the sync operation and returns detailed results.
func (s *SyncService) doSyncWithResult(ctx context.Context) (SyncResult, error) {
	s.syncOpMutex.Lock()
	defer s.syncOpMutex.Unlock()

	stats, err := s.registry.Sync(ctx)
	if err != nil {
		return SyncResult{}, err
	}

	return SyncResult{
		DatasetsAdded:   stats.Added,
		DatasetsRemoved: stats.Removed,
		DatasetsTotal:   s.registry.DatasetCount(),
		SyncedAt:        time.Now(),
		NextScheduledAt: s.NextRun(),
	}, nil
}

// NextRun returns the time of the next scheduled sync, or the zero time
// when the scheduler has not been started.
func (s *SyncService) NextRun() time.Time {
	if s.entryID == 0 {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Next
}

// Schedule returns the sync schedule.
func (s *SyncService) Schedule() string {
	return s.schedule
}

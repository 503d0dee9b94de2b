package application

import (
	"context"
	"testing"
	"time"

	"github.com/jobrunner/geofix/internal/ports/output"
)

func TestSyncService_RateLimiting(t *testing.T) {
	registry, _ := newTestRegistry(t, t.TempDir(), &mockInspector{}, &mockStorage{})

	service, err := NewSyncService(registry, "@every 1h", testLogger())
	if err != nil {
		t.Fatalf("NewSyncService failed: %v", err)
	}

	ctx := context.Background()

	// First call should succeed (sync will return 0 added since storage is empty)
	result, err := service.TriggerSync(ctx)
	if err != nil {
		t.Errorf("first sync should succeed, got error: %v", err)
	}
	if result.DatasetsAdded != 0 {
		t.Errorf("expected 0 datasets added with empty storage, got %d", result.DatasetsAdded)
	}

	// Immediate second call should be rate limited
	_, err = service.TriggerSync(ctx)
	if err != ErrRateLimited {
		t.Errorf("expected ErrRateLimited, got %v", err)
	}
}

func TestSyncService_InvalidSchedule(t *testing.T) {
	registry, _ := newTestRegistry(t, "/ws", &mockInspector{}, &mockStorage{})

	for _, schedule := range []string{"", "every five minutes", "61 * * * *"} {
		if _, err := NewSyncService(registry, schedule, testLogger()); err == nil {
			t.Errorf("NewSyncService(%q) should fail", schedule)
		}
	}
}

func TestSyncService_StartStop(t *testing.T) {
	registry, _ := newTestRegistry(t, t.TempDir(), &mockInspector{}, &mockStorage{})

	service, err := NewSyncService(registry, "@every 1h", testLogger())
	if err != nil {
		t.Fatalf("NewSyncService failed: %v", err)
	}
	if !service.NextRun().IsZero() {
		t.Error("NextRun should be zero before Start")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := service.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// the scheduler computes the next run asynchronously
	deadline := time.Now().Add(time.Second)
	for service.NextRun().IsZero() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if next := service.NextRun(); next.Before(time.Now().Add(59 * time.Minute)) {
		t.Errorf("NextRun() = %v, want about an hour from now", next)
	}

	// Should complete without hanging
	service.Stop()
}

func TestSyncService_SyncAddsNewDatasets(t *testing.T) {
	storage := &mockStorage{
		objects: []output.StorageObject{
			{Key: "test1.geojson"},
			{Key: "test2.shp"},
		},
	}
	registry, _ := newTestRegistry(t, t.TempDir(), &mockInspector{}, storage)

	service, err := NewSyncService(registry, "@every 5m", testLogger())
	if err != nil {
		t.Fatalf("NewSyncService failed: %v", err)
	}

	result, err := service.TriggerSync(context.Background())
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if result.DatasetsAdded != 2 || result.DatasetsTotal != 2 {
		t.Errorf("result = %+v, want 2 added", result)
	}
	if service.Schedule() != "@every 5m" {
		t.Errorf("Schedule() = %q", service.Schedule())
	}
}

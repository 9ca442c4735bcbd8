package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeSweeper struct {
	mu      sync.Mutex
	calls   int
	cutoffs []time.Time
	limits  []int
	expire  int
	err     error
}

func (f *fakeSweeper) ExpireAbandoned(_ context.Context, cutoff time.Time, limit int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.cutoffs = append(f.cutoffs, cutoff)
	f.limits = append(f.limits, limit)
	return f.expire, f.err
}

func (f *fakeSweeper) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestDefaultExpiryWorkerConfig(t *testing.T) {
	config := DefaultExpiryWorkerConfig()

	if config.ScanInterval != time.Minute {
		t.Errorf("ScanInterval = %v, want %v", config.ScanInterval, time.Minute)
	}
	if config.BatchSize != 100 {
		t.Errorf("BatchSize = %v, want %v", config.BatchSize, 100)
	}
	if config.AttemptTTL != 30*time.Minute {
		t.Errorf("AttemptTTL = %v, want %v", config.AttemptTTL, 30*time.Minute)
	}
}

func TestNewExpiryWorker_WithDefaultConfig(t *testing.T) {
	worker := NewExpiryWorker(&fakeSweeper{}, nil, nil)

	if worker == nil {
		t.Fatal("NewExpiryWorker() returned nil")
	}
	if worker.config == nil {
		t.Fatal("Worker config should not be nil")
	}
	if worker.running {
		t.Error("Worker should not be running initially")
	}
	if worker.totalExpired != 0 {
		t.Errorf("TotalExpired = %v, want %v", worker.totalExpired, 0)
	}
}

func TestNewExpiryWorker_WithCustomConfig(t *testing.T) {
	worker := NewExpiryWorker(&fakeSweeper{}, nil, &ExpiryWorkerConfig{
		ScanInterval: 15 * time.Second,
		BatchSize:    200,
	})

	if worker.config.ScanInterval != 15*time.Second {
		t.Errorf("ScanInterval = %v, want %v", worker.config.ScanInterval, 15*time.Second)
	}
	if worker.config.BatchSize != 200 {
		t.Errorf("BatchSize = %v, want %v", worker.config.BatchSize, 200)
	}
	if worker.config.AttemptTTL != 30*time.Minute {
		t.Errorf("AttemptTTL should fall back to default, got %v", worker.config.AttemptTTL)
	}
}

func TestExpiryWorker_ScanOnce(t *testing.T) {
	sweeper := &fakeSweeper{expire: 3}
	worker := NewExpiryWorker(sweeper, nil, &ExpiryWorkerConfig{
		BatchSize:  25,
		AttemptTTL: 20 * time.Minute,
	})
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	worker.now = func() time.Time { return now }

	if got := worker.ScanOnce(context.Background()); got != 3 {
		t.Errorf("ScanOnce() = %d, want 3", got)
	}
	if !sweeper.cutoffs[0].Equal(now.Add(-20 * time.Minute)) {
		t.Errorf("cutoff = %v, want %v", sweeper.cutoffs[0], now.Add(-20*time.Minute))
	}
	if sweeper.limits[0] != 25 {
		t.Errorf("limit = %d, want 25", sweeper.limits[0])
	}

	stats := worker.GetStats()
	if stats.TotalExpired != 3 || stats.LastExpiredCount != 3 || stats.TotalScans != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if !stats.LastScanTime.Equal(now) {
		t.Errorf("LastScanTime = %v, want %v", stats.LastScanTime, now)
	}
}

func TestExpiryWorker_ScanOnceError(t *testing.T) {
	worker := NewExpiryWorker(&fakeSweeper{err: errors.New("db down")}, nil, nil)

	worker.ScanOnce(context.Background())

	stats := worker.GetStats()
	if stats.LastError != "db down" {
		t.Errorf("LastError = %q, want %q", stats.LastError, "db down")
	}
	if stats.TotalExpired != 0 {
		t.Errorf("TotalExpired = %v, want 0", stats.TotalExpired)
	}
}

func TestExpiryWorker_StartStop(t *testing.T) {
	sweeper := &fakeSweeper{expire: 1}
	worker := NewExpiryWorker(sweeper, nil, &ExpiryWorkerConfig{
		ScanInterval: 10 * time.Millisecond,
		BatchSize:    10,
	})

	worker.Start(context.Background())
	worker.Start(context.Background())

	if !worker.GetStats().IsRunning {
		t.Error("Worker should be running after Start()")
	}

	deadline := time.Now().Add(time.Second)
	for sweeper.callCount() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if sweeper.callCount() < 2 {
		t.Fatalf("expected at least 2 scans, got %d", sweeper.callCount())
	}

	worker.Stop()
	if worker.GetStats().IsRunning {
		t.Error("Worker should not be running after Stop()")
	}
	calls := sweeper.callCount()
	time.Sleep(30 * time.Millisecond)
	if sweeper.callCount() != calls {
		t.Error("Worker kept scanning after Stop()")
	}

	worker.Stop()
}

func TestExpiryWorker_StopsWithContext(t *testing.T) {
	worker := NewExpiryWorker(&fakeSweeper{}, nil, &ExpiryWorkerConfig{ScanInterval: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())

	worker.Start(ctx)
	cancel()

	deadline := time.Now().Add(time.Second)
	for worker.GetStats().IsRunning && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if worker.GetStats().IsRunning {
		t.Error("Worker should stop when its context is cancelled")
	}
}

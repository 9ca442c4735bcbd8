package worker

import (
	"context"
	"sync"
	"time"

	"github.com/prohmpiriya/storefront/pkg/logger"
	"go.uber.org/zap"
)

// Sweeper fails and compensates checkout attempts abandoned at the gateway
type Sweeper interface {
	ExpireAbandoned(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

// ExpiryWorkerConfig holds configuration for the expiry worker
type ExpiryWorkerConfig struct {
	// ScanInterval is how often to scan for abandoned attempts
	ScanInterval time.Duration
	// BatchSize is the maximum number of attempts expired per scan
	BatchSize int
	// AttemptTTL is how long an attempt may wait on the gateway
	AttemptTTL time.Duration
}

// DefaultExpiryWorkerConfig returns default configuration
func DefaultExpiryWorkerConfig() *ExpiryWorkerConfig {
	return &ExpiryWorkerConfig{
		ScanInterval: time.Minute,
		BatchSize:    100,
		AttemptTTL:   30 * time.Minute,
	}
}

// ExpiryWorker periodically expires checkout attempts whose payment window
// was abandoned, so their gateway orders get marked failed
type ExpiryWorker struct {
	sweeper Sweeper
	logger  *logger.Logger
	config  *ExpiryWorkerConfig
	now     func() time.Time

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	totalExpired     int64
	totalScans       int64
	lastScanTime     time.Time
	lastExpiredCount int
	lastError        string
}

// ExpiryWorkerStats is a point-in-time view of the worker
type ExpiryWorkerStats struct {
	IsRunning        bool      `json:"is_running"`
	TotalExpired     int64     `json:"total_expired"`
	TotalScans       int64     `json:"total_scans"`
	LastScanTime     time.Time `json:"last_scan_time"`
	LastExpiredCount int       `json:"last_expired_count"`
	LastError        string    `json:"last_error,omitempty"`
}

// NewExpiryWorker creates a new expiry worker. A nil config uses the defaults.
func NewExpiryWorker(sweeper Sweeper, log *logger.Logger, config *ExpiryWorkerConfig) *ExpiryWorker {
	defaults := DefaultExpiryWorkerConfig()
	if config == nil {
		config = defaults
	}
	if config.ScanInterval <= 0 {
		config.ScanInterval = defaults.ScanInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.AttemptTTL <= 0 {
		config.AttemptTTL = defaults.AttemptTTL
	}
	if log == nil {
		log = logger.NewNop()
	}

	return &ExpiryWorker{
		sweeper: sweeper,
		logger:  log,
		config:  config,
		now:     time.Now,
	}
}

// Start launches the scan loop. It returns immediately; calling Start on a
// running worker is a no-op.
func (w *ExpiryWorker) Start(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	stopCh, doneCh := w.stopCh, w.doneCh
	w.mu.Unlock()

	w.logger.Info("expiry worker started",
		zap.Duration("scan_interval", w.config.ScanInterval),
		zap.Duration("attempt_ttl", w.config.AttemptTTL),
		zap.Int("batch_size", w.config.BatchSize),
	)

	go w.run(ctx, stopCh, doneCh)
}

// Stop ends the scan loop and waits for an in-progress scan to finish
func (w *ExpiryWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	close(w.stopCh)
	doneCh := w.doneCh
	w.mu.Unlock()

	<-doneCh
	w.logger.Info("expiry worker stopped")
}

func (w *ExpiryWorker) run(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		close(doneCh)
	}()

	ticker := time.NewTicker(w.config.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			w.ScanOnce(ctx)
		}
	}
}

// ScanOnce runs a single sweep and returns how many attempts it expired
func (w *ExpiryWorker) ScanOnce(ctx context.Context) int {
	cutoff := w.now().Add(-w.config.AttemptTTL)
	expired, err := w.sweeper.ExpireAbandoned(ctx, cutoff, w.config.BatchSize)

	w.mu.Lock()
	w.totalScans++
	w.totalExpired += int64(expired)
	w.lastScanTime = w.now()
	w.lastExpiredCount = expired
	w.lastError = ""
	if err != nil {
		w.lastError = err.Error()
	}
	w.mu.Unlock()

	if err != nil {
		w.logger.WithContext(ctx).Error("expiry scan failed", zap.Error(err))
		return expired
	}
	if expired > 0 {
		w.logger.WithContext(ctx).Info("expired abandoned checkouts",
			zap.Int("count", expired),
			zap.Time("cutoff", cutoff),
		)
	}
	return expired
}

// GetStats returns the worker's counters
func (w *ExpiryWorker) GetStats() ExpiryWorkerStats {
	w.mu.Lock()
	defer w.mu.Unlock()

	return ExpiryWorkerStats{
		IsRunning:        w.running,
		TotalExpired:     w.totalExpired,
		TotalScans:       w.totalScans,
		LastScanTime:     w.lastScanTime,
		LastExpiredCount: w.lastExpiredCount,
		LastError:        w.lastError,
	}
}

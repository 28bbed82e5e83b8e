package server

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/halodb/storage-node/internal/metrics"
	"github.com/halodb/storage-node/internal/storage/volume"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// MetricsServer serves Prometheus metrics via HTTP. Readiness reflects the
// startup volume check: the node is not ready until it has a usable volume
// set.
type MetricsServer struct {
	httpServer *http.Server
	metrics    *metrics.Metrics
	fs         volume.Filesystem
	logger     *zap.Logger
	stopChan   chan struct{}

	mu       sync.RWMutex
	goodDirs []string
}

// MetricsServerConfig holds configuration for the metrics server
type MetricsServerConfig struct {
	Port int
}

// NewMetricsServer creates a new metrics server
func NewMetricsServer(cfg *MetricsServerConfig, m *metrics.Metrics, logger *zap.Logger) *MetricsServer {
	mux := http.NewServeMux()

	ms := &MetricsServer{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		metrics:  m,
		fs:       volume.OSFilesystem{},
		logger:   logger,
		stopChan: make(chan struct{}),
	}

	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", ms.healthHandler)
	mux.HandleFunc("/ready", ms.readyHandler)

	return ms
}

// SetUsableVolumes records the directories that passed the startup check.
// The node reports ready once at least one usable volume is known.
func (s *MetricsServer) SetUsableVolumes(dirs []string) {
	s.mu.Lock()
	s.goodDirs = append([]string(nil), dirs...)
	s.mu.Unlock()
}

// Start starts the metrics server
func (s *MetricsServer) Start() error {
	s.logger.Info("Starting metrics server", zap.String("addr", s.httpServer.Addr))

	go s.collectSystemMetrics()

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Metrics server failed", zap.Error(err))
		}
	}()

	return nil
}

// Stop gracefully stops the metrics server
func (s *MetricsServer) Stop() error {
	s.logger.Info("Stopping metrics server")

	close(s.stopChan)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("metrics server shutdown failed: %w", err)
	}

	return nil
}

// healthHandler handles health check requests
func (s *MetricsServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","timestamp":"%s"}`, time.Now().Format(time.RFC3339))
}

// readyHandler handles readiness check requests
func (s *MetricsServer) readyHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	s.mu.RLock()
	dirs := s.goodDirs
	s.mu.RUnlock()

	if len(dirs) == 0 {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprintf(w, `{"status":"not_ready","reason":"volume_check_pending"}`)
		return
	}

	used, available, err := s.aggregateDiskStats(dirs)
	if err != nil {
		s.logger.Error("Failed to get disk stats", zap.Error(err))
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprintf(w, `{"status":"not_ready","reason":"disk_stats_unavailable"}`)
		return
	}

	usagePercent := 0.0
	if used+available > 0 {
		usagePercent = float64(used) / float64(used+available) * 100.0
	}

	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ready","timestamp":"%s","usable_volumes":%d,"disk_usage_percent":%.2f}`,
		time.Now().Format(time.RFC3339), len(dirs), usagePercent)
}

// collectSystemMetrics periodically collects system-level metrics
func (s *MetricsServer) collectSystemMetrics() {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.updateSystemMetrics()
		case <-s.stopChan:
			return
		}
	}
}

// updateSystemMetrics updates system-level metrics
func (s *MetricsServer) updateSystemMetrics() {
	s.mu.RLock()
	dirs := s.goodDirs
	s.mu.RUnlock()

	if len(dirs) == 0 {
		return
	}

	used, available, err := s.aggregateDiskStats(dirs)
	if err != nil {
		s.logger.Error("Failed to get disk stats", zap.Error(err))
		return
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	s.metrics.UpdateSystemStats(int64(used), int64(available), int64(memStats.Alloc), runtime.NumGoroutine())
}

// aggregateDiskStats sums disk usage across the usable volumes. Volumes on a
// shared filesystem are counted once per directory; the gauge is a capacity
// signal, not an accounting one.
func (s *MetricsServer) aggregateDiskStats(dirs []string) (used, available uint64, err error) {
	for _, dir := range dirs {
		u, a, err := s.fs.Usage(dir)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to stat %s: %w", dir, err)
		}
		used += u
		available += a
	}
	return used, available, nil
}

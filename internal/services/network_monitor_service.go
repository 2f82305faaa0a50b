package services

import (
	"context"
	"log"
	"sync"
	"time"

	"bridge-backend/internal/chains"
	"bridge-backend/internal/events"
	"bridge-backend/internal/metrics"
	"bridge-backend/internal/models"
	"bridge-backend/internal/repository"

	"gorm.io/gorm"
)

// NetworkMonitorService probes every configured network's RPC head and
// records reachability in the database and in Prometheus gauges. The
// network-status endpoint serves straight from these rows.
type NetworkMonitorService struct {
	db         *gorm.DB
	statusRepo repository.NetworkStatusRepository
	registry   *chains.Registry

	interval time.Duration

	mu         sync.Mutex
	running    bool
	stopCh     chan struct{}
	lastOnline map[string]bool
}

// NewNetworkMonitorService creates a new NetworkMonitorService
func NewNetworkMonitorService(db *gorm.DB, statusRepo repository.NetworkStatusRepository, registry *chains.Registry) *NetworkMonitorService {
	return &NetworkMonitorService{
		db:         db,
		statusRepo: statusRepo,
		registry:   registry,
		interval:   30 * time.Second,
		stopCh:     make(chan struct{}),
		lastOnline: make(map[string]bool),
	}
}

// Start launches the probe loop
func (s *NetworkMonitorService) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true

	log.Printf("🚀 NetworkMonitor started (%d networks, interval: %v)", len(s.registry.Networks()), s.interval)
	go s.probeLoop()
}

// Stop halts the probe loop
func (s *NetworkMonitorService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	close(s.stopCh)
	log.Printf("🛑 NetworkMonitor stopped")
}

func (s *NetworkMonitorService) probeLoop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// First probe immediately so the status endpoint has data at boot.
	s.ProbeAll(context.Background())

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.ProbeAll(context.Background())
		}
	}
}

// ProbeAll checks every registered network once and refreshes DB pool
// metrics alongside.
func (s *NetworkMonitorService) ProbeAll(ctx context.Context) {
	for _, network := range s.registry.Networks() {
		s.probeNetwork(ctx, network)
	}
	s.collectDBMetrics()
}

func (s *NetworkMonitorService) probeNetwork(ctx context.Context, network string) {
	adapter, err := s.registry.Get(network)
	if err != nil {
		return
	}

	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	status := &models.NetworkStatus{
		Network:     network,
		LastChecked: time.Now(),
	}

	height, err := adapter.BlockHeight(probeCtx)
	if err != nil {
		status.Online = false
		status.ErrorMsg = err.Error()
		metrics.NetworkOnline.WithLabelValues(network).Set(0)
	} else {
		status.Online = true
		status.BlockHeight = height
		metrics.NetworkOnline.WithLabelValues(network).Set(1)
		metrics.NetworkBlockHeight.WithLabelValues(network).Set(float64(height))
	}

	if err := s.statusRepo.Upsert(ctx, status); err != nil {
		log.Printf("❌ [Monitor] Failed to persist status for %s: %v", network, err)
		return
	}

	s.mu.Lock()
	prev, seen := s.lastOnline[network]
	s.lastOnline[network] = status.Online
	s.mu.Unlock()

	if !seen || prev != status.Online {
		if status.Online {
			log.Printf("🟢 Network %s online (height %d)", network, status.BlockHeight)
		} else {
			log.Printf("🔴 Network %s offline: %s", network, status.ErrorMsg)
		}
		events.PublishNetworkStatus(network, status.Online, status.BlockHeight)
	}
}

// collectDBMetrics exports connection pool stats
func (s *NetworkMonitorService) collectDBMetrics() {
	sqlDB, err := s.db.DB()
	if err != nil {
		metrics.DBConnectionStatus.Set(0)
		return
	}

	stats := sqlDB.Stats()
	metrics.DBConnectionPoolSize.Set(float64(stats.MaxOpenConnections))
	metrics.DBConnectionActive.Set(float64(stats.InUse))
	metrics.DBConnectionIdle.Set(float64(stats.Idle))

	if err := sqlDB.Ping(); err != nil {
		metrics.DBConnectionStatus.Set(0)
	} else {
		metrics.DBConnectionStatus.Set(1)
	}
}

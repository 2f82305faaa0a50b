package app

import (
	"context"
	"fmt"
	"log"
	"sync"

	"bridge-backend/internal/chains"
	"bridge-backend/internal/clients"
	"bridge-backend/internal/config"
	"bridge-backend/internal/db"
	"bridge-backend/internal/events"
	"bridge-backend/internal/repository"
	"bridge-backend/internal/services"

	"gorm.io/gorm"
)

// ServiceContainer wires repositories, chain adapters and services once
type ServiceContainer struct {
	// Database
	DB *gorm.DB

	// Repositories
	AddressRepo    repository.DepositAddressRepository
	DepositRepo    repository.DepositRepository
	WithdrawalRepo repository.WithdrawalRepository
	AssetRepo      repository.WrappedAssetRepository
	StatusRepo     repository.NetworkStatusRepository
	IncidentRepo   repository.IncidentRepository

	// Chain adapters
	Registry *chains.Registry

	// Clients
	TradingClient clients.TradingClient

	// Services
	AddressRegistry      *services.AddressRegistryService
	LedgerService        *services.LedgerService
	SettlementService    *services.SettlementService
	DepositDetector      *services.DepositDetectorService
	Reconciliation       *services.ReconciliationService
	NetworkMonitor       *services.NetworkMonitorService
	WebSocketPushService *services.WebSocketPushService
}

// Global service container instance
var Container *ServiceContainer
var containerOnce sync.Once

// InitializeContainer builds the container exactly once
func InitializeContainer() (*ServiceContainer, error) {
	var initErr error

	containerOnce.Do(func() {
		log.Println("🚀 Initializing Service Container...")

		container := &ServiceContainer{
			DB: db.DB,
		}

		container.initRepositories()

		if err := container.initAdapters(); err != nil {
			initErr = fmt.Errorf("failed to initialize chain adapters: %w", err)
			return
		}

		container.initServices()

		// Optional, no-op when NATS is unconfigured.
		events.InitNATSServices()

		Container = container
		log.Println("✅ Service Container initialized successfully")
	})

	return Container, initErr
}

func (c *ServiceContainer) initRepositories() {
	log.Println("📦 Initializing Repositories...")

	c.AddressRepo = repository.NewDepositAddressRepository(c.DB)
	c.DepositRepo = repository.NewDepositRepository(c.DB)
	c.WithdrawalRepo = repository.NewWithdrawalRepository(c.DB)
	c.AssetRepo = repository.NewWrappedAssetRepository(c.DB)
	c.StatusRepo = repository.NewNetworkStatusRepository(c.DB)
	c.IncidentRepo = repository.NewIncidentRepository(c.DB)

	log.Println("✅ Repositories initialized")
}

func (c *ServiceContainer) initAdapters() error {
	log.Println("🔗 Initializing chain adapters...")

	registry, err := chains.NewRegistry(&config.AppConfig.Blockchain)
	if err != nil {
		return err
	}
	c.Registry = registry

	log.Printf("✅ Chain adapters ready: %v", registry.Networks())
	return nil
}

func (c *ServiceContainer) initServices() {
	log.Println("🔧 Initializing Services...")

	c.TradingClient = clients.NewHTTPTradingClient(config.AppConfig.Trading.BaseURL, config.AppConfig.Trading.Timeout)

	c.WebSocketPushService = services.NewWebSocketPushService()

	c.LedgerService = services.NewLedgerService(c.AssetRepo)

	c.AddressRegistry = services.NewAddressRegistryService(c.AddressRepo, c.Registry, config.AppConfig.Auth.SecretPassphrase)

	c.SettlementService = services.NewSettlementService(
		c.DB,
		c.DepositRepo,
		c.WithdrawalRepo,
		c.AssetRepo,
		c.IncidentRepo,
		c.TradingClient,
		c.Registry,
		c.WebSocketPushService,
		&config.AppConfig.Withdraw,
	)

	c.DepositDetector = services.NewDepositDetectorService(
		c.DepositRepo,
		c.AddressRepo,
		c.IncidentRepo,
		c.Registry,
		c.SettlementService,
		&config.AppConfig.Detector,
	)
	c.AddressRegistry.SetMonitor(c.DepositDetector)

	c.Reconciliation = services.NewReconciliationService(c.DepositRepo, c.WithdrawalRepo, c.IncidentRepo)

	c.NetworkMonitor = services.NewNetworkMonitorService(c.DB, c.StatusRepo, c.Registry)

	log.Println("✅ Services initialized")
}

// StartBackgroundServices launches the polling loops
func (c *ServiceContainer) StartBackgroundServices(ctx context.Context) error {
	if err := c.DepositDetector.Start(ctx); err != nil {
		return err
	}
	c.SettlementService.Start()
	c.Reconciliation.Start()
	c.NetworkMonitor.Start()
	return nil
}

// Cleanup stops background services and closes connections
func (c *ServiceContainer) Cleanup() {
	log.Println("🧹 Cleaning up Service Container...")

	if c.NetworkMonitor != nil {
		c.NetworkMonitor.Stop()
	}
	if c.Reconciliation != nil {
		c.Reconciliation.Stop()
	}
	if c.SettlementService != nil {
		c.SettlementService.Stop()
	}
	if c.DepositDetector != nil {
		c.DepositDetector.Stop()
	}

	events.CloseNATSServices()

	log.Println("✅ Service Container cleaned up")
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bridge-backend/internal/app"
	"bridge-backend/internal/config"
	"bridge-backend/internal/db"
	"bridge-backend/internal/handlers"
	"bridge-backend/internal/router"

	"github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	flag.Parse()

	if err := config.LoadConfig(*configPath); err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	db.InitDB()

	container, err := app.InitializeContainer()
	if err != nil {
		log.Fatalf("❌ Failed to initialize service container: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := container.StartBackgroundServices(ctx); err != nil {
		log.Fatalf("❌ Failed to start background services: %v", err)
	}

	logger := logrus.New()

	h := &router.Handlers{
		Deposit:    handlers.NewDepositHandler(container.AddressRegistry, container.DepositRepo, logger),
		Withdrawal: handlers.NewWithdrawalHandler(container.SettlementService, container.WithdrawalRepo, logger),
		Network:    handlers.NewNetworkHandler(container.StatusRepo, container.LedgerService, logger),
		Admin:      handlers.NewAdminHandler(container.SettlementService, container.IncidentRepo, container.WithdrawalRepo, logger),
		WebSocket:  handlers.NewWebSocketHandler(container.WebSocketPushService, logger),
	}

	engine := router.SetupRouter(h)

	addr := fmt.Sprintf("%s:%d", config.AppConfig.Server.Host, config.AppConfig.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      engine,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		log.Printf("🚀 Bridge backend listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ HTTP server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Printf("🛑 Received signal %s, shutting down...", sig)

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠️  HTTP server shutdown error: %v", err)
	}

	container.Cleanup()

	if sqlDB, err := db.DB.DB(); err == nil {
		sqlDB.Close()
	}

	log.Println("✅ Shutdown complete")
}

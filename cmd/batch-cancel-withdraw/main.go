package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"bridge-backend/internal/clients"
	"bridge-backend/internal/config"
	"bridge-backend/internal/db"
	"bridge-backend/internal/models"
	"bridge-backend/internal/repository"
	"bridge-backend/internal/services"
)

func main() {
	var (
		withdrawalIDs = flag.String("ids", "", "Comma-separated list of withdrawal IDs to cancel")
		network       = flag.String("network", "", "Cancel all pending withdrawals on this network")
		dryRun        = flag.Bool("dry-run", false, "Only show what would be cancelled, don't actually cancel")
		configPath    = flag.String("config", "config.yaml", "Path to config file")
	)
	flag.Parse()

	if err := config.LoadConfig(*configPath); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db.InitDB()
	defer func() {
		sqlDB, err := db.DB.DB()
		if err == nil {
			sqlDB.Close()
		}
	}()

	ctx := context.Background()
	depositRepo := repository.NewDepositRepository(db.DB)
	withdrawalRepo := repository.NewWithdrawalRepository(db.DB)
	assetRepo := repository.NewWrappedAssetRepository(db.DB)
	incidentRepo := repository.NewIncidentRepository(db.DB)
	trading := clients.NewHTTPTradingClient(config.AppConfig.Trading.BaseURL, config.AppConfig.Trading.Timeout)

	settlement := services.NewSettlementService(
		db.DB,
		depositRepo,
		withdrawalRepo,
		assetRepo,
		incidentRepo,
		trading,
		nil, // chain registry not needed for cancellation
		services.NewWebSocketPushService(),
		&config.AppConfig.Withdraw,
	)

	var toCancel []*models.Withdrawal

	if *withdrawalIDs != "" {
		for _, id := range strings.Split(*withdrawalIDs, ",") {
			id = strings.TrimSpace(id)
			if id == "" {
				continue
			}
			withdrawal, err := withdrawalRepo.GetByID(ctx, id)
			if err != nil {
				log.Printf("⚠️  Failed to get withdrawal %s: %v", id, err)
				continue
			}
			toCancel = append(toCancel, withdrawal)
		}
	} else if *network != "" {
		withdrawals, _, err := withdrawalRepo.Find(ctx, repository.WithdrawalQuery{
			Network:  *network,
			Status:   models.WithdrawalStatusPending,
			Page:     1,
			PageSize: 1000,
		})
		if err != nil {
			log.Fatalf("Failed to query pending withdrawals: %v", err)
		}
		toCancel = withdrawals
	} else {
		log.Fatal("Please specify either -ids or -network")
	}

	// Only pending withdrawals can be cancelled; skip the rest upfront.
	pending := toCancel[:0]
	for _, w := range toCancel {
		if w.Status == models.WithdrawalStatusPending {
			pending = append(pending, w)
		} else {
			log.Printf("⏭️  Skipping %s: status is %s", w.ID, w.Status)
		}
	}
	toCancel = pending

	if len(toCancel) == 0 {
		log.Println("No withdrawals found to cancel")
		return
	}

	log.Printf("Found %d withdrawals to cancel:\n", len(toCancel))
	for _, w := range toCancel {
		log.Printf("  - ID: %s, User: %s, Network: %s, Amount: %s %s, To: %s",
			w.ID, w.UserID, w.Network, w.Amount.String(), w.TokenSymbol, w.ToAddress)
	}

	if *dryRun {
		log.Println("\n🔍 DRY RUN MODE - No withdrawals were actually cancelled")
		return
	}

	fmt.Print("\n⚠️  Are you sure you want to cancel these withdrawals? (yes/no): ")
	var confirmation string
	fmt.Scanln(&confirmation)
	if confirmation != "yes" {
		log.Println("Cancelled by user")
		return
	}

	successCount := 0
	failCount := 0
	for _, w := range toCancel {
		log.Printf("\n🔄 Cancelling withdrawal %s...", w.ID)
		if _, err := settlement.Cancel(ctx, w.UserID, w.ID); err != nil {
			log.Printf("❌ Failed to cancel withdrawal %s: %v", w.ID, err)
			failCount++
		} else {
			log.Printf("✅ Successfully cancelled withdrawal %s", w.ID)
			successCount++
		}
		time.Sleep(100 * time.Millisecond)
	}

	log.Printf("\n📊 Summary:")
	log.Printf("  ✅ Successfully cancelled: %d", successCount)
	log.Printf("  ❌ Failed: %d", failCount)
	log.Printf("  📝 Total processed: %d", len(toCancel))
}

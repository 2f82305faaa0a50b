package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"

	"bridge-backend/internal/config"

	_ "github.com/lib/pq"
)

var bridgeTables = []string{
	"deposit_addresses",
	"deposits",
	"withdrawals",
	"wrapped_assets",
	"network_statuses",
	"consistency_incidents",
}

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	flag.Parse()

	fmt.Println("🔍 Verifying database connection and bridge schema...")

	if err := config.LoadConfig(*configPath); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Raw connection, independent of the gorm stack.
	sqlDB, err := sql.Open("postgres", config.AppConfig.Database.DSN)
	if err != nil {
		log.Fatalf("Failed to open database connection: %v", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	var dbName string
	if err := sqlDB.QueryRow("SELECT current_database()").Scan(&dbName); err != nil {
		log.Fatalf("Failed to get database name: %v", err)
	}
	fmt.Printf("📋 Connected to database: %s\n", dbName)

	missing := 0
	for _, table := range bridgeTables {
		var exists bool
		err := sqlDB.QueryRow(`
			SELECT EXISTS (
				SELECT 1 FROM information_schema.tables
				WHERE table_schema = 'public' AND table_name = $1
			)
		`, table).Scan(&exists)
		if err != nil {
			log.Fatalf("Failed to check table %s: %v", table, err)
		}

		if exists {
			var count int64
			if err := sqlDB.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count); err != nil {
				log.Fatalf("Failed to count rows in %s: %v", table, err)
			}
			fmt.Printf("✅ %s (%d rows)\n", table, count)
		} else {
			fmt.Printf("❌ %s is missing\n", table)
			missing++
		}
	}

	// Deposit dedup relies on this constraint.
	var hasUnique bool
	err = sqlDB.QueryRow(`
		SELECT EXISTS (
			SELECT 1 FROM pg_indexes
			WHERE schemaname = 'public'
			AND tablename = 'deposits'
			AND indexdef LIKE '%UNIQUE%tx_hash%'
		)
	`).Scan(&hasUnique)
	if err != nil {
		log.Fatalf("Failed to check deposits.tx_hash index: %v", err)
	}
	if hasUnique {
		fmt.Println("✅ deposits.tx_hash unique index present")
	} else {
		fmt.Println("❌ deposits.tx_hash unique index is missing")
		missing++
	}

	if missing > 0 {
		log.Fatalf("❌ Schema verification failed: %d issue(s) found", missing)
	}
	fmt.Println("\n✅ Schema verification passed")
}

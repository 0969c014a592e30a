package main

import (
	"context"
	"log"
	"time"

	"attune/internal/config"
	"attune/internal/container"
	"attune/internal/errors"
	"attune/internal/migration"
	"attune/ui"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

// initDatabase opens the PostgreSQL connection and applies the schema
func initDatabase(appConfig *config.Config) (*sqlx.DB, error) {
	if appConfig.Database.URL == "" {
		return nil, errors.ConfigInvalid("DATABASE_URL is required")
	}

	db, err := sqlx.Connect("postgres", appConfig.Database.URL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}

	if err := db.Ping(); err != nil {
		return nil, errors.Wrap(err, "failed to ping database")
	}

	migrator := migration.NewRunner()
	if err := migrator.Run(context.Background(), db); err != nil {
		return nil, errors.Wrap(err, "database migration failed")
	}

	return db, nil
}

// startExpirySweep routes offers past their TTL to ready on a fixed interval
func startExpirySweep(c *container.Container) {
	interval := c.Config.Engine.OfferTTL / 4
	if interval > time.Hour {
		interval = time.Hour
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for range ticker.C {
			count, err := c.Offers.ExpireStale(context.Background())
			if err != nil {
				log.Printf("[Main] Offer expiry sweep failed: %v", err)
				continue
			}
			if count > 0 {
				log.Printf("[Main] Expired %d stale share offers", count)
			}
		}
	}()
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := initDatabase(appConfig)
	if err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	defer db.Close()

	appContainer, err := container.New(appConfig)
	if err != nil {
		log.Fatalf("Failed to create application container: %v", err)
	}
	defer appContainer.Shutdown(context.Background())

	if err := appContainer.InitWithDatabase(db); err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}

	startExpirySweep(appContainer)

	server := ui.NewServer(appContainer)
	if err := server.Run(appConfig.Server); err != nil {
		log.Fatalf("Server exited: %v", err)
	}
}

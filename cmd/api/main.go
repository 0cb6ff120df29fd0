package main

import (
	"context"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"confmeta/adapters/postgres"
	"confmeta/app"
	"confmeta/internal/config"
	"confmeta/internal/ops"
	"confmeta/ports"
	"confmeta/ui"
)

func main() {
	// .env is optional; environment variables win either way.
	if err := godotenv.Load(); err != nil {
		log.Printf("[Main] No .env file loaded: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[Main] Configuration error: %v", err)
	}

	var repo ports.AnalysisRepository
	if cfg.Database.URL != "" {
		db, err := initDatabase(cfg)
		if err != nil {
			log.Fatalf("[Main] Database error: %v", err)
		}
		defer db.Close()
		repo = postgres.NewAnalysisRepository(db)
		log.Printf("[Main] Persistence enabled")
	} else {
		log.Printf("[Main] DATABASE_URL not set, running without persistence")
	}

	if cfg.Profiling.Enabled {
		go func() {
			log.Printf("[Main] Ops endpoints on :%s", cfg.Profiling.Port)
			if err := ops.Serve(cfg.Profiling.Port); err != nil {
				log.Printf("[Main] Ops server failed: %v", err)
			}
		}()
	}

	server := ui.NewServer(cfg, app.NewAnalysisService(repo))
	if err := server.Run(); err != nil {
		log.Fatalf("[Main] Server failed: %v", err)
	}
}

func initDatabase(cfg *config.Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := postgres.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

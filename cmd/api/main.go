package main

import (
	"log"
	"net/http"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chrisryanouellette/tv-automation-server-core/internal/api"
	"github.com/chrisryanouellette/tv-automation-server-core/internal/config"
	database "github.com/chrisryanouellette/tv-automation-server-core/internal/db"
	"github.com/chrisryanouellette/tv-automation-server-core/internal/playout"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting Playout Core Server...")

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	// 1. Setup Configuration
	cfg := config.Load()

	// 2. Initialize Infrastructure
	db := database.New(cfg)

	// 3. Run Database Migrations
	db.AutoMigrate()
	if cfg.Playout.SeedDemo {
		database.SeedDemoStudio(db.DB)
	}

	// 4. Studio baseline objects
	if err := playout.LoadBaseline(cfg.Playout.BaselinePath); err != nil {
		log.Printf("⚠️ No baseline loaded from %s: %v", cfg.Playout.BaselinePath, err)
	}

	// 5. Playout machinery
	clock := playout.RealClock{}
	updater := playout.NewUpdater(db.DB, clock)
	po := playout.NewPlayout(db.DB, clock, updater)

	// 6. Setup Metrics
	go func() {
		http.Handle("/_metrics", promhttp.Handler())
		log.Printf("📊 Metrics exposed at http://localhost%s/_metrics", cfg.Server.MetricsPort)
		if err := http.ListenAndServe(cfg.Server.MetricsPort, nil); err != nil {
			log.Printf("⚠️ Metrics server error: %v", err)
		}
	}()

	// 7. Start Server
	srv := api.New(cfg, db, po, updater)

	log.Printf("🚀 API Server starting on %s", cfg.Server.Port)
	if err := srv.Start(cfg.Server.Port); err != nil {
		log.Fatalf("❌ Server failed to start: %v", err)
	}
}

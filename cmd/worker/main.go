package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"kb-ingest-be/internal/bootstrap"
	"kb-ingest-be/internal/config"
	"kb-ingest-be/pkg/database"
)

// The worker drives the offline side of ingestion: the import task
// queue and the daily refresh scheduler. It shares the container with
// the REST process but serves no HTTP traffic.
func main() {
	// 1. Load Configuration
	cfg := config.Load()

	// 2. Initialize Database
	gormDB, err := database.NewGormDBFromDSN(cfg.Database.Connection)
	if err != nil {
		log.Panicf("Unable to connect to GORM DB: %v", err)
	}

	// 3. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(gormDB, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 4. Start Background Services
	if err := container.ConsumerService.Consume(ctx); err != nil {
		log.Printf("Background Consumer Error: %v", err)
	}

	go container.QueueService.PollLoop(ctx)
	go container.RefreshService.RunDaily(ctx)

	log.Println("Worker is running (task queue + daily refresh)")

	// 5. Block until interrupted
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Println("Worker shutting down")
	cancel()
}

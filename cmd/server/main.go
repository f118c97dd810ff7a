package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GriffinCanCode/nuitester/internal/infrastructure/config"
	"github.com/GriffinCanCode/nuitester/internal/infrastructure/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Flags override the environment
	flag.StringVar(&cfg.Server.Port, "port", cfg.Server.Port, "Server port")
	flag.StringVar(&cfg.Server.Host, "host", cfg.Server.Host, "Listen host")
	flag.BoolVar(&cfg.Logging.Development, "dev", cfg.Logging.Development, "Development logging")
	flag.StringVar(&cfg.Storage.Path, "db", cfg.Storage.Path, "SQLite file for snapshots")
	persist := flag.Bool("persist", cfg.Storage.Enabled, "Persist workspaces and snapshots")
	flag.Parse()
	cfg.Storage.Enabled = *persist

	srv, err := server.NewServer(cfg)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Run()
	}()

	select {
	case <-sigChan:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Error during shutdown: %v", err)
		}
		cancel()
	case err := <-errChan:
		if err != nil {
			srv.Close()
			log.Fatalf("Server error: %v", err)
		}
	}
	if err := srv.Close(); err != nil {
		log.Printf("Error during close: %v", err)
	}
}

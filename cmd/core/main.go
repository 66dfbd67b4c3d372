// Package main provides the diet scanner core CLI. The same core is
// compiled as a shared library for mobile and a localhost bridge for
// desktop; this binary exposes version, database info, and migrations
// for development and packaging scripts.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/config"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/db"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/models"
)

// Version is set at build time
var Version = "0.1.0"

func main() {
	configPath := flag.String("config", os.Getenv("DIET_CONFIG"), "path to YAML config file")
	flag.Parse()

	switch flag.Arg(0) {
	case "", "version":
		printVersion()
	case "info":
		if err := runInfo(*configPath); err != nil {
			log.Fatalf("info: %v", err)
		}
	case "migrate":
		if err := runMigrate(*configPath); err != nil {
			log.Fatalf("migrate: %v", err)
		}
	default:
		fmt.Fprintf(os.Stderr, "usage: %s [--config file] [version|info|migrate]\n", os.Args[0])
		os.Exit(2)
	}
}

func printVersion() {
	fmt.Printf("Restricted Diet Core v%s\n", Version)
}

// runInfo prints the effective configuration and local database state.
func runInfo(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	fmt.Printf("Restricted Diet Core v%s\n", Version)
	fmt.Printf("database:        %s\n", cfg.Database.Path)
	fmt.Printf("export dir:      %s\n", cfg.Export.Dir)
	fmt.Printf("history cap:     %d\n", cfg.History.MaxHistoryItems)
	fmt.Printf("favorites cap:   %d\n", cfg.History.MaxFavorites)
	fmt.Printf("offline mirror:  %t\n", cfg.History.AutoSaveOffline)
	fmt.Printf("backend:         %s\n", orNone(cfg.Backend.BaseURL))
	fmt.Printf("sync enabled:    %t\n", cfg.Sync.Enabled)

	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer database.Close()

	migrator := db.NewMigrator(database.DB)
	if err := migrator.Initialize(); err != nil {
		return err
	}
	version, err := migrator.CurrentVersion()
	if err != nil {
		return err
	}
	fmt.Printf("schema version:  %d\n", version)

	repo := db.NewRepository(database.DB)
	if cached, err := repo.CountCachedProducts(); err == nil {
		fmt.Printf("cached products: %d\n", cached)
	}
	if pending, err := repo.CountOutboxByStatus(models.OutboxPending); err == nil {
		fmt.Printf("pending sync:    %d\n", pending)
	}

	return nil
}

// runMigrate applies any outstanding schema migrations.
func runMigrate(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer database.Close()

	migrator := db.NewMigrator(database.DB)
	if err := migrator.Initialize(); err != nil {
		return err
	}
	if err := migrator.Up(); err != nil {
		return err
	}

	version, err := migrator.CurrentVersion()
	if err != nil {
		return err
	}
	fmt.Printf("schema version %d\n", version)
	return nil
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

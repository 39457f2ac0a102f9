package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"issue-tracker-api/internal/config"
	"issue-tracker-api/internal/store/sqlstore"
)

// migrate applies the embedded schema to the SQL store named by STORE_DRIVER.
// --reset drops the issue tables first; meant for test databases.
func main() {
	reset := false
	for _, arg := range os.Args[1:] {
		switch arg {
		case "--reset":
			reset = true
		default:
			fmt.Println("Usage: migrate [--reset]")
			os.Exit(1)
		}
	}

	cfg, err := config.LoadAndValidate()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var s *sqlstore.Store
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		s, err = sqlstore.OpenPostgres(ctx, cfg.DatabaseDSN, cfg.DatabaseDriver)
	case config.DriverSQLite:
		s, err = sqlstore.OpenSQLite(ctx, cfg.SQLitePath)
	default:
		log.Fatalf("STORE_DRIVER=%s has no SQL schema", cfg.StoreDriver)
	}
	if err != nil {
		log.Fatal("Failed to open database connection:", err)
	}
	defer s.Close(context.Background())

	fmt.Printf("Connected to %s database\n", cfg.StoreDriver)

	if reset {
		fmt.Println("Dropping issue tables...")
		err = s.Reset(ctx)
	} else {
		err = s.Migrate(ctx)
	}
	if err != nil {
		log.Fatal("Failed to apply schema:", err)
	}

	fmt.Println("Schema applied successfully")
}

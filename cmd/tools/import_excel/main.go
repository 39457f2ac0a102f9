package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"issue-tracker-api/internal"
	"issue-tracker-api/internal/config"
	"issue-tracker-api/pkg/importer"
)

func main() {
	var filePath, project, mappingPath string
	dryRun := false

	for _, arg := range os.Args[1:] {
		if strings.HasPrefix(arg, "--file=") {
			filePath = strings.TrimPrefix(arg, "--file=")
		} else if strings.HasPrefix(arg, "--project=") {
			project = strings.TrimPrefix(arg, "--project=")
		} else if strings.HasPrefix(arg, "--mapping=") {
			mappingPath = strings.TrimPrefix(arg, "--mapping=")
		} else if arg == "--dry-run" {
			dryRun = true
		}
	}

	if filePath == "" || project == "" {
		fmt.Println("Error: file and project are required")
		fmt.Println("Usage: import_excel --file=path.xlsx --project=name [--mapping=mapping.yaml] [--dry-run]")
		os.Exit(1)
	}

	cfg, err := config.LoadAndValidate()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	st, err := internal.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open %s store: %v", cfg.StoreDriver, err)
	}
	defer st.Close(context.Background())

	file, err := os.Open(filePath)
	if err != nil {
		log.Fatalf("Failed to open Excel file: %v", err)
	}
	defer file.Close()

	fmt.Printf("Importing from %s into project %q (dry_run=%v)\n", filePath, project, dryRun)
	fmt.Println(strings.Repeat("=", 60))

	summary, err := importer.ImportExcel(ctx, st, file, importer.ImportOptions{
		Project:     project,
		MappingPath: mappingPath,
		DryRun:      dryRun,
		MaxErrors:   50,
	})
	if err != nil {
		log.Fatalf("Import failed: %v", err)
	}

	fmt.Println(strings.Repeat("=", 60))
	fmt.Println("IMPORT SUMMARY")
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("Total created: %d\n", summary.Created)
	fmt.Printf("Total skipped: %d\n", summary.Skipped)
	fmt.Printf("Total errors: %d\n", summary.Errors)
	fmt.Printf("Dry run: %v\n", summary.DryRun)

	for _, sheet := range summary.Sheets {
		fmt.Printf("  %s: created=%d, skipped=%d, errors=%d\n",
			sheet.Name, sheet.Created, sheet.Skipped, sheet.Errors)
		for _, sample := range sheet.Samples {
			fmt.Printf("      Row %d: %s\n", sample.Row, sample.Message)
		}
	}
}

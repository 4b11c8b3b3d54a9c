package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strings"

	"github.com/brensch/pursuit/config"
	"github.com/brensch/pursuit/report"
)

func main() {
	roots := flag.String("roots", config.EnvOrDefault("REPORT_ROOTS", "data/decisions"), "Comma separated directories of parquet decision logs")
	byLayout := flag.Bool("by-layout", true, "Also break results down per layout")
	flag.Parse()

	db, err := report.Open(strings.Split(*roots, ","))
	if err != nil {
		log.Fatalf("Failed to open decision logs: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	modes, err := report.Modes(ctx, db)
	if err != nil {
		log.Fatalf("Failed to summarize modes: %v", err)
	}

	var perLayout []report.LayoutSummary
	if *byLayout {
		perLayout, err = report.Layouts(ctx, db)
		if err != nil {
			log.Fatalf("Failed to summarize layouts: %v", err)
		}
	}

	if err := report.Write(os.Stdout, modes, perLayout); err != nil {
		log.Fatalf("Failed to write report: %v", err)
	}
}

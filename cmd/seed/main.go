// Command seed ingests a documentation tree into the database and search
// index without starting the server. Useful for bootstrapping and CI.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"docpilot/internal/ingest"
	"docpilot/internal/search"
	"docpilot/internal/store"
)

func main() {
	_ = godotenv.Load()

	docsRoot := flag.String("docs", "./docs", "documentation root to ingest")
	dbPath := flag.String("db", "./data/docpilot.db", "sqlite database path")
	indexPath := flag.String("index", "./data/docpilot.bleve", "bleve index path")
	flag.Parse()

	ctx := context.Background()

	if err := os.MkdirAll(filepath.Dir(*dbPath), 0o755); err != nil {
		log.Fatalf("failed to create data directory: %v", err)
	}

	st, err := store.Open(ctx, *dbPath)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer st.Close()

	idx, err := search.Open(*indexPath)
	if err != nil {
		log.Fatalf("failed to open search index: %v", err)
	}
	defer idx.Close()

	ingester := ingest.New(st, idx, *docsRoot)
	count, err := ingester.IngestAll(ctx)
	if err != nil {
		log.Fatalf("ingest failed: %v", err)
	}

	docs, err := st.ListDocuments(ctx)
	if err != nil {
		log.Fatalf("failed to list documents: %v", err)
	}

	fmt.Printf("ingested %d changed documents (%d total) from %s\n", count, len(docs), *docsRoot)
}

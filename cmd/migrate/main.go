// Command migrate applies the schema in migrations/schema.sql to the
// configured database. Every statement is idempotent, so re-running is safe.
package main

import (
	"database/sql"
	"log"
	"os"
	"time"

	_ "github.com/lib/pq"

	"github.com/commercekit/fulfillment-engine/internal/config"
)

func main() {
	cfg := config.Load()

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	for i := 0; i < 30; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		log.Printf("⏳ Waiting for database... (%d/30)", i+1)
		time.Sleep(1 * time.Second)
	}
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	path := "migrations/schema.sql"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}
	schema, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("Failed to read schema file %s: %v", path, err)
	}

	if _, err := db.Exec(string(schema)); err != nil {
		log.Fatalf("Failed to apply schema: %v", err)
	}

	log.Printf("✅ Schema from %s applied", path)
}

package main

import (
	"context"
	"flag"
	"log"
	"time"

	"rollcall/internal/config"
	"rollcall/internal/store"
)

func main() {
	schema := flag.String("schema", "migrations/schema.sql", "path to the schema file")
	flag.Parse()

	cfg := config.Load()
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.Migrate(ctx, *schema); err != nil {
		log.Fatalf("migration failed: %v", err)
	}
	log.Println("schema applied")
}

package main

import (
	"context"
	"log"
	"net/http"

	"github.com/joho/godotenv"

	"pharmadesk/m/internal/api"
	"pharmadesk/m/internal/config"
	"pharmadesk/m/internal/database"
	"pharmadesk/m/internal/migrations"
	"pharmadesk/m/internal/seed"
	"pharmadesk/m/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()

	var s store.Store
	if cfg.Storage == "memory" {
		s = store.NewMemory()
	} else {
		db := database.Connect(cfg.DatabaseDSN)
		defer db.Close()
		migrations.Run(db)
		s = store.NewSQLite(db)
	}

	if cfg.SeedDemo {
		seed.Run(context.Background(), s)
	}

	handler := api.New(s, cfg.Secret)

	log.Printf("PharmaDesk server starting on :%s (%s storage)", cfg.HTTPPort, cfg.Storage)
	if err := http.ListenAndServe(":"+cfg.HTTPPort, handler.Router()); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

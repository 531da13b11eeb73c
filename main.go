package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"net/http"

	"github.com/alexbotov/tokenburner/internal/api"
	"github.com/alexbotov/tokenburner/internal/audit"
	"github.com/alexbotov/tokenburner/internal/auth"
	"github.com/alexbotov/tokenburner/internal/config"
	"github.com/alexbotov/tokenburner/internal/control"
	"github.com/alexbotov/tokenburner/internal/database"
	"github.com/alexbotov/tokenburner/internal/game"
	"github.com/alexbotov/tokenburner/internal/rng"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	fmt.Println("🔥 Token Burner - reference game server")

	var (
		repo   game.Repository
		pinger api.Pinger
		sqlDB  *sql.DB
	)
	switch cfg.Database.Driver {
	case "postgres":
		db, err := database.New("postgres", cfg.Database.DSN)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		if err := db.Migrate(); err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
		}
		repo = database.NewRepository(db)
		pinger = db
		sqlDB = db.DB
	default:
		repo = game.NewMemoryRepository()
	}

	authSvc, err := auth.New(&cfg.Auth)
	if err != nil {
		log.Fatalf("Failed to create auth service: %v", err)
	}

	rngSvc := rng.New()
	auditSvc := audit.New(sqlDB, log.Default())
	engine := game.New(repo, rngSvc, auditSvc, cfg.Game)

	ctrl := control.New(sqlDB, auditSvc)
	if err := ctrl.LoadState(context.Background()); err != nil {
		log.Fatalf("Failed to load control state: %v", err)
	}

	handler := api.New(cfg, authSvc, engine, rngSvc, auditSvc, ctrl, pinger, log.Default())

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler.SetupRouter(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	log.Printf("Starting server on %s (api %s, storage %s)", srv.Addr, cfg.Server.PathPrefix, cfg.Database.Driver)
	log.Fatal(srv.ListenAndServe())
}

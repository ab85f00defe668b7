package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/tornado80/sos-game-server/internal/config"
	"github.com/tornado80/sos-game-server/internal/db"
)

// seedadmin registers the administrator account the operator screens
// expect. Safe to run before the server has ever started.
func main() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	}

	username := flag.String("username", envOr("SOS_ADMIN_USERNAME", "admin"), "admin username")
	password := flag.String("password", os.Getenv("SOS_ADMIN_PASSWORD"), "admin password (required)")
	firstName := flag.String("firstname", "Game", "admin first name")
	lastName := flag.String("lastname", "Operator", "admin last name")
	cfgPath := flag.String("config", envOr("SOS_CONFIG", "config/sosserver.yaml"), "path to server config")
	flag.Parse()

	if *password == "" {
		fmt.Fprintln(os.Stderr, "seedadmin: -password (or SOS_ADMIN_PASSWORD) is required")
		flag.Usage()
		os.Exit(2)
	}

	if err := run(context.Background(), *cfgPath, *username, *password, *firstName, *lastName); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func run(ctx context.Context, cfgPath, username, password, firstName, lastName string) error {
	cfg, err := config.LoadServer(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	store, err := db.New(ctx, cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer store.Close()

	if err := db.RunMigrations(ctx, cfg.Database.DSN()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	if err := store.Register(ctx, username, password, firstName, lastName, true); err != nil {
		return fmt.Errorf("registering admin %q: %w", username, err)
	}
	if err := store.AddAction(ctx, nil, fmt.Sprintf("admin account %q seeded", username)); err != nil {
		return fmt.Errorf("recording audit action: %w", err)
	}

	slog.Info("admin account created", "username", username)
	return nil
}

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"shelfscan/internal/config"
	"shelfscan/internal/logger"
)

func main() {
	var (
		command = flag.String("command", "up", "Migration command: up, down, status, create")
		name    = flag.String("name", "", "Name for 'create' command")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger.Setup(logger.Config{Level: cfg.LogLevel, Format: logger.ParseLogFormat(cfg.LogFormat)})
	log := logger.Get().WithComponent("migrate")

	if cfg.DBDriver != config.DriverPostgres {
		log.Error("migrations only apply to the postgres driver", map[string]interface{}{"driver": cfg.DBDriver})
		os.Exit(1)
	}

	fsys, dir := migrationSource(cfg)

	if *command == "create" {
		if *name == "" {
			log.Error("name is required for 'create' command")
			os.Exit(1)
		}
		if fsys != nil {
			dir = "db/migrations"
		}
		if err := goose.Create(nil, dir, *name, "sql"); err != nil {
			log.Error("failed to create migration", map[string]interface{}{"error": err.Error()})
			os.Exit(1)
		}
		log.Info("migration created", map[string]interface{}{"name": *name, "dir": dir})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil {
		log.Error("failed to connect to database", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
	defer pool.Close()

	sqlDB := stdlib.OpenDBFromPool(pool)
	defer sqlDB.Close()

	goose.SetBaseFS(fsys)
	if err := goose.SetDialect("postgres"); err != nil {
		log.Error("failed to set dialect", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}

	switch *command {
	case "up":
		err = goose.UpContext(ctx, sqlDB, dir)
	case "down":
		err = goose.DownContext(ctx, sqlDB, dir)
	case "status":
		err = goose.StatusContext(ctx, sqlDB, dir)
	default:
		log.Error("unknown command; use up, down, status, create", map[string]interface{}{"command": *command})
		os.Exit(1)
	}
	if err != nil {
		log.Error("migration failed", map[string]interface{}{"command": *command, "error": err.Error()})
		os.Exit(1)
	}
	log.Info("migration command finished", map[string]interface{}{"command": *command})
}

package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pet-rehoming/backend/internal/config"
	"github.com/pet-rehoming/backend/internal/db"
	"go.uber.org/zap"
)

const usage = `Usage: migrate [-dsn DSN] COMMAND [ARGS]

Commands:
  up          apply all pending migrations
  up-to V     apply migrations up to version V
  down        roll back one migration
  down-to V   roll back to version V
  redo        roll back and reapply the latest migration
  status      print migration status
  version     print the current version
`

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	dsn := flag.String("dsn", cfg.PostgresDSN, "postgres connection string")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx := context.Background()
	pool, err := db.NewPostgresPool(ctx, *dsn, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	sqlDB := stdlib.OpenDBFromPool(pool)
	defer sqlDB.Close()

	if err := db.RunGoose(ctx, sqlDB, args[0], log, args[1:]...); err != nil {
		log.Fatal("migration failed", zap.Error(err))
	}
}

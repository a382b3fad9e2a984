package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/nimasrn/finance-tracker/internal/config"
	"github.com/nimasrn/finance-tracker/internal/repository"
	"github.com/nimasrn/finance-tracker/internal/seed"
	"github.com/nimasrn/finance-tracker/pkg/logger"
	"github.com/nimasrn/finance-tracker/pkg/pg"
)

const usage = `usage: cli <command> [flags]

commands:
  migrate --dir=./migrations   apply pending database migrations
  seed    --csv=path           load transactions from a CSV file into an empty store

flags shared by every command:
  --env=path                   load settings from an env file (default .env when present)
`

func main() {
	defer logger.Sync()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "migrate":
		err = runMigrate(args)
	case "seed":
		err = runSeed(args)
	case "-h", "--help", "help":
		fmt.Fprint(os.Stdout, usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}
	if err != nil {
		logger.Error("command failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

func runMigrate(args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	envPath := fs.String("env", defaultEnvPath(), "env file")
	dir := fs.String("dir", "./migrations", "migrations directory")
	_ = fs.Parse(args)

	if err := config.Load(*envPath); err != nil {
		return err
	}
	if _, err := os.Stat(*dir); err != nil {
		return fmt.Errorf("migrations directory: %w", err)
	}
	return pg.Migrate(writeConfig(), *dir)
}

func runSeed(args []string) error {
	fs := flag.NewFlagSet("seed", flag.ExitOnError)
	envPath := fs.String("env", defaultEnvPath(), "env file")
	csvPath := fs.String("csv", "", "CSV file with date,merchant,amount,category,notes rows (defaults to SEED_CSV_PATH)")
	_ = fs.Parse(args)

	if err := config.Load(*envPath); err != nil {
		return err
	}
	path := *csvPath
	if path == "" {
		path = config.Get().SeedCSVPath
	}

	db, err := pg.CreateReadWrite(writeConfig(), writeConfig(), false)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer db.Close()

	n, err := seed.LoadFile(context.Background(), repository.NewTransactionRepository(db), path)
	if errors.Is(err, seed.ErrStoreNotEmpty) {
		logger.Warn("store already has transactions, nothing seeded", "path", path)
		return nil
	}
	if err != nil {
		return err
	}
	logger.Info("seed complete", "path", path, "count", n)
	return nil
}

func writeConfig() pg.Config {
	return pg.Config{
		User:     config.Get().PostgresWriteUser,
		Host:     config.Get().PostgresWriteHost,
		Port:     config.Get().PostgresWritePort,
		Password: config.Get().PostgresWritePassword,
		Database: config.Get().PostgresWriteDatabase,
	}
}

func defaultEnvPath() string {
	if _, err := os.Stat(".env"); err != nil {
		return ""
	}
	return ".env"
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/NgigiN/ledger/internal/config"
	"github.com/NgigiN/ledger/internal/discord"
	"github.com/NgigiN/ledger/internal/importer"
	"github.com/NgigiN/ledger/internal/logger"
	"github.com/NgigiN/ledger/internal/storage"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

const usage = `usage:
  ledger [bot]                run the Discord bot
  ledger import <file.csv>    import transactions from a CSV file
  ledger migrate up|down      apply pending migrations or roll back the last one`

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	if envErr != nil && !errors.Is(envErr, fs.ErrNotExist) {
		log.Warn().Err(envErr).Msg("failed to load .env file")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()
	ctx = logger.WithContext(ctx, log)

	if err := run(ctx, cfg, log, os.Args[1:]); err != nil {
		log.Error().Err(err).Msg("exiting")
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger, args []string) error {
	cmd := "bot"
	if len(args) > 0 {
		cmd = args[0]
	}

	switch cmd {
	case "bot", "import", "migrate":
	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}

	if cmd == "migrate" {
		if len(args) != 2 {
			return errors.New(usage)
		}
		db, err := storage.Open(cfg.DBDriver, cfg.DatabaseDSN)
		if err != nil {
			return fmt.Errorf("failed to open the database: %w", err)
		}
		defer db.Close()
		return runMigrate(ctx, db, log, args[1])
	}

	db, err := storage.NewDatabase(ctx, cfg.DBDriver, cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("failed to initialize the database: %w", err)
	}
	defer db.Close()

	switch cmd {
	case "import":
		if len(args) != 2 {
			return errors.New(usage)
		}
		return runImport(ctx, db, args[1])
	default:
		return runBot(ctx, cfg, db, log)
	}
}

func runImport(ctx context.Context, db *storage.Database, path string) error {
	report, err := importer.NewService(db, db).ImportReport(ctx, path)
	if err != nil {
		return err
	}
	for _, tx := range report.Transactions {
		category := ""
		if tx.Category != nil {
			category = tx.Category.Title
		}
		fmt.Printf("%s\t%s\t%s\t%s\n", tx.Title, tx.Type, tx.Value.StringFixed(2), category)
	}
	fmt.Printf("Imported %d transactions, created %d categories, skipped %d rows\n",
		len(report.Transactions), len(report.Created), report.Skipped)
	return nil
}

func runMigrate(ctx context.Context, db *storage.Database, log zerolog.Logger, direction string) error {
	switch direction {
	case "up":
		ran, err := db.Migrate(ctx)
		if err != nil {
			return err
		}
		for _, id := range ran {
			log.Info().Str("migration", id).Msg("applied")
		}
		if len(ran) == 0 {
			log.Info().Msg("database is up to date")
		}
		return nil
	case "down":
		id, err := db.Rollback(ctx)
		if err != nil {
			return err
		}
		if id == "" {
			log.Info().Msg("no migrations to roll back")
			return nil
		}
		log.Info().Str("migration", id).Msg("rolled back")
		return nil
	default:
		return errors.New(usage)
	}
}

func runBot(ctx context.Context, cfg *config.Config, db *storage.Database, log zerolog.Logger) error {
	if err := cfg.ValidateBot(); err != nil {
		return err
	}

	bot, err := discord.NewBot(cfg, importer.NewService(db, db), db, log)
	if err != nil {
		return fmt.Errorf("failed to initialize the discord bot: %w", err)
	}
	if err := bot.Start(); err != nil {
		return fmt.Errorf("failed to start bot: %w", err)
	}

	log.Info().Str("health", cfg.HealthAddr).Msg("bot is running")
	<-ctx.Done()

	bot.Stop()
	log.Info().Msg("bot stopped")
	return nil
}

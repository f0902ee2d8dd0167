package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/heartmarshall/qms-backend/migrations"
)

// Migrate applies all pending embedded goose migrations to the database at dsn.
// goose needs *sql.DB, so a short-lived database/sql handle is opened over pgx.
func Migrate(ctx context.Context, dsn string, log *slog.Logger) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("migrate: open: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("migrate: ping: %w", err)
	}

	// The provider understands goose StatementBegin/End blocks around $$ bodies.
	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations.FS)
	if err != nil {
		return fmt.Errorf("migrate: new provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("migrate: up: %w", err)
	}

	if log != nil {
		for _, r := range results {
			log.InfoContext(ctx, "migration applied",
				slog.Int64("version", r.Source.Version),
				slog.Duration("duration", r.Duration),
			)
		}
	}

	return nil
}

// SchemaCheck returns a probe that fails while embedded migrations are
// pending, so an instance never serves against an older schema.
func SchemaCheck(pool *pgxpool.Pool) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		db := stdlib.OpenDBFromPool(pool)
		defer db.Close()

		provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations.FS)
		if err != nil {
			return fmt.Errorf("schema: new provider: %w", err)
		}
		pending, err := provider.HasPending(ctx)
		if err != nil {
			return fmt.Errorf("schema: %w", err)
		}
		if pending {
			return errors.New("schema: migrations pending")
		}
		return nil
	}
}

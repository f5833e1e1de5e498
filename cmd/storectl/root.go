package main

import (
	"context"
	"io/fs"
	"os"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/xenking/storefront-orders/internal/storage/postgres"
)

type rootOptions struct {
	databaseURL string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "storectl",
		Short: "Storefront administration",
		Long: `storectl prepares and maintains the storefront PostgreSQL database.

The connection URL is taken from --database-url, then STOREFRONT_STORAGE_DATABASE_URL,
then DATABASE_URL. A .env file in the working directory is loaded first.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return errors.Wrap(err, "load .env")
			}
			if opts.databaseURL == "" {
				opts.databaseURL = os.Getenv("STOREFRONT_STORAGE_DATABASE_URL")
			}
			if opts.databaseURL == "" {
				opts.databaseURL = os.Getenv("DATABASE_URL")
			}
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL")

	cmd.AddCommand(
		newMigrateCmd(opts),
		newSeedCmd(opts),
		newImportGiftCardsCmd(opts),
	)
	return cmd
}

// connect opens a pool and applies the schema, which is idempotent.
func (o *rootOptions) connect(ctx context.Context) (*pgxpool.Pool, error) {
	if o.databaseURL == "" {
		return nil, errors.New("database URL is required: set --database-url or DATABASE_URL")
	}
	pool, err := postgres.NewPool(ctx, o.databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "connect to database")
	}
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "run migrations")
	}
	return pool, nil
}

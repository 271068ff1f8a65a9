// Package carectl is the operator command line for the temporary-care API.
package carectl

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gorm.io/gorm"

	boardingpostgres "github.com/Apurer/temporary-care-api/internal/domains/boarding/adapters/persistence/postgres"
	"github.com/Apurer/temporary-care-api/internal/domains/boarding/ports"
	"github.com/Apurer/temporary-care-api/internal/platform/migrations"
	platformpostgres "github.com/Apurer/temporary-care-api/internal/platform/postgres"
)

// Backend is what the commands operate on.
type Backend struct {
	Repository ports.Repository
	Migrate    func() error
	Close      func()
}

// Opener connects to the backend described by dsn.
type Opener func(ctx context.Context, dsn string) (*Backend, error)

// Option customises the root command.
type Option func(*commandContext)

// WithOpener replaces the Postgres backend, e.g. with in-memory adapters in tests.
func WithOpener(open Opener) Option {
	return func(c *commandContext) { c.open = open }
}

type commandContext struct {
	settings *viper.Viper
	open     Opener
}

func (c *commandContext) dsn() string {
	return strings.TrimSpace(c.settings.GetString("POSTGRES_DSN"))
}

func (c *commandContext) jwtSecret() string {
	return c.settings.GetString("JWT_SECRET")
}

func (c *commandContext) withBackend(ctx context.Context, fn func(*Backend) error) error {
	backend, err := c.open(ctx, c.dsn())
	if err != nil {
		return err
	}
	if backend.Close != nil {
		defer backend.Close()
	}
	return fn(backend)
}

// NewRootCommand builds the carectl command tree.
func NewRootCommand(opts ...Option) *cobra.Command {
	settings := viper.New()
	settings.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	settings.AutomaticEnv()
	ctx := &commandContext{settings: settings, open: openPostgres}
	for _, opt := range opts {
		opt(ctx)
	}

	rootCmd := &cobra.Command{
		Use:           "carectl",
		Short:         "Operate the temporary-care API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.PersistentFlags().String("dsn", "", "PostgreSQL DSN (defaults to $POSTGRES_DSN)")
	rootCmd.PersistentFlags().String("jwt-secret", "", "Token signing secret (defaults to $JWT_SECRET)")
	_ = settings.BindPFlag("POSTGRES_DSN", rootCmd.PersistentFlags().Lookup("dsn"))
	_ = settings.BindPFlag("JWT_SECRET", rootCmd.PersistentFlags().Lookup("jwt-secret"))

	rootCmd.AddCommand(newMigrateCommand(ctx))
	rootCmd.AddCommand(newApplicationsCommand(ctx))
	rootCmd.AddCommand(newTokenCommand(ctx))
	return rootCmd
}

func openPostgres(ctx context.Context, dsn string) (*Backend, error) {
	if dsn == "" {
		return nil, fmt.Errorf("no database configured: pass --dsn or set POSTGRES_DSN")
	}
	db, err := platformpostgres.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	return postgresBackend(db), nil
}

func postgresBackend(db *gorm.DB) *Backend {
	return &Backend{
		Repository: boardingpostgres.NewRepository(db),
		Migrate:    func() error { return migrations.Run(db) },
		Close: func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		},
	}
}

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withBackend(cmd.Context(), func(backend *Backend) error {
				if backend.Migrate == nil {
					return fmt.Errorf("backend does not support migrations")
				}
				if err := backend.Migrate(); err != nil {
					return fmt.Errorf("migrate: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date")
				return nil
			})
		},
	}
}

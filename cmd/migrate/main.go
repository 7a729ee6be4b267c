package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"trusthub.org/internal/auth"
	"trusthub.org/internal/config"
	"trusthub.org/internal/migrate"
	"trusthub.org/internal/store/pg"
	"trusthub.org/migrations"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		dsn     string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:           "migrate",
		Short:         "Apply TrustHub schema migrations and seed staff accounts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&dsn, "dsn", "", "PostgreSQL DSN (defaults to TRUSTHUB_DATABASE_URL or DATABASE_URL)")
	cmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Overall deadline for the command")

	withStore := func(fn func(ctx context.Context, cfg config.Config, st *pg.Store) error) func(*cobra.Command, []string) error {
		return func(c *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if dsn != "" {
				cfg.DatabaseURL = dsn
			}
			if cfg.DatabaseURL == "" {
				return errors.New("missing DSN: pass --dsn or set TRUSTHUB_DATABASE_URL")
			}
			st, err := pg.Open(cfg.DatabaseURL, pg.PoolOptions{MaxOpenConns: 2})
			if err != nil {
				return err
			}
			defer st.Close()

			ctx, cancel := context.WithTimeout(c.Context(), timeout)
			defer cancel()
			return fn(ctx, cfg, st)
		}
	}
	withManager := func(fn func(ctx context.Context, m *migrate.Manager) error) func(*cobra.Command, []string) error {
		return withStore(func(ctx context.Context, _ config.Config, st *pg.Store) error {
			return fn(ctx, migrate.NewManager(st.DB(), migrations.Schema()))
		})
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending schema migrations",
			Args:  cobra.NoArgs,
			RunE: withManager(func(ctx context.Context, m *migrate.Manager) error {
				return m.Up(ctx)
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Revert the most recent schema migration",
			Args:  cobra.NoArgs,
			RunE: withManager(func(ctx context.Context, m *migrate.Manager) error {
				return m.Down(ctx)
			}),
		},
		&cobra.Command{
			Use:   "seed",
			Short: "Create configured staff accounts that do not exist yet",
			Long:  "Reads TRUSTHUB_ADMIN_EMAIL/PASSWORD and TRUSTHUB_ARBITRATOR_EMAIL/PASSWORD.",
			Args:  cobra.NoArgs,
			RunE: withStore(func(ctx context.Context, cfg config.Config, st *pg.Store) error {
				staff := cfg.Staff()
				if len(staff) == 0 {
					return errors.New("no staff credentials configured: set TRUSTHUB_ADMIN_EMAIL and TRUSTHUB_ADMIN_PASSWORD")
				}
				return auth.NewService(st).EnsureStaff(ctx, staff)
			}),
		},
		&cobra.Command{
			Use:   "status",
			Short: "List schema versions and when they were applied",
			Args:  cobra.NoArgs,
			RunE: withManager(func(ctx context.Context, m *migrate.Manager) error {
				states, err := m.Status(ctx)
				if err != nil {
					return err
				}
				for _, st := range states {
					applied := "pending"
					if st.AppliedAt != nil {
						applied = st.AppliedAt.UTC().Format(time.RFC3339)
					}
					fmt.Printf("%s\t%s\n", st.Version, applied)
				}
				return nil
			}),
		},
	)
	return cmd
}

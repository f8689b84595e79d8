// Command migrate applies the embedded product schema with golang-migrate.
// It reads the same DATABASE_URL / SQLITE_PATH settings as the server.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/spf13/cobra"

	"github.com/Skryldev/product-catalog/config"
	"github.com/Skryldev/product-catalog/db"
	"github.com/Skryldev/product-catalog/migrations"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

// runner holds the migrate instance shared by the subcommands.
type runner struct {
	envFile string
	m       *migrate.Migrate
}

func newRootCmd() *cobra.Command {
	r := &runner{}

	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Manage the product catalog schema",
		SilenceUsage:  true,
		SilenceErrors: true,
		Long: `Applies the schema embedded in the binary to the configured database.

Environment:
  DATABASE_URL   postgres:// or mysql:// URL. Unset selects SQLite.
  SQLITE_PATH    SQLite file used when DATABASE_URL is unset (default: products.db)`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return r.open()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			r.close()
		},
	}
	root.PersistentFlags().StringVar(&r.envFile, "env-file", ".env", "dotenv file to load before reading the environment")

	root.AddCommand(
		r.upCmd(),
		r.downCmd(),
		r.versionCmd(),
		r.forceCmd(),
		r.dropCmd(),
	)
	return root
}

func (r *runner) open() error {
	cfg, err := config.Load(r.envFile)
	if err != nil {
		return err
	}
	dialect, dbURL, err := migrateTarget(cfg.DatabaseURL, cfg.SQLitePath)
	if err != nil {
		return err
	}
	fsys, err := migrations.Source(dialect)
	if err != nil {
		return err
	}
	src, err := iofs.New(fsys, ".")
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dbURL)
	if err != nil {
		return fmt.Errorf("migration init failed: %w", err)
	}
	m.Log = &migrateLogger{}
	r.m = m
	return nil
}

func (r *runner) close() {
	if r.m == nil {
		return
	}
	if srcErr, dbErr := r.m.Close(); srcErr != nil || dbErr != nil {
		slog.Warn("migrations: close", "source_error", srcErr, "database_error", dbErr)
	}
}

// migrateTarget resolves the configured connection into the dialect whose
// files to apply and the URL golang-migrate understands. MySQL needs the
// driver's own DSN form behind the scheme.
func migrateTarget(rawURL, sqlitePath string) (string, string, error) {
	name, opts, err := db.ParseURL(rawURL, sqlitePath)
	if err != nil {
		return "", "", err
	}
	switch name {
	case db.SQLiteDriver{}.Name():
		return name, "sqlite3://" + opts.Database, nil
	case db.MySQLDriver{}.Name():
		dsn, err := db.MySQLDriver{}.DSN(opts)
		if err != nil {
			return "", "", err
		}
		// golang-migrate needs multi-statement support for its own bookkeeping.
		return name, "mysql://" + dsn + "&multiStatements=true", nil
	default:
		return name, rawURL, nil
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Commands
// ─────────────────────────────────────────────────────────────────────────────

func (r *runner) upCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			if err := r.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
				return fmt.Errorf("up failed: %w", err)
			}
			slog.Info("migrations: up completed")
			return nil
		},
	}
}

func (r *runner) downCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "down [N]",
		Short: "Roll back N migrations (default: 1)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			steps := 1
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil || n < 1 {
					return fmt.Errorf("down: invalid steps argument %q", args[0])
				}
				steps = n
			}
			if err := r.m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
				return fmt.Errorf("down failed: %w", err)
			}
			slog.Info("migrations: down completed", "steps", steps)
			return nil
		},
	}
}

func (r *runner) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the current migration version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, dirty, err := r.m.Version()
			if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
				return fmt.Errorf("version failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version: %d  dirty: %v\n", v, dirty)
			return nil
		},
	}
}

func (r *runner) forceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "force V",
		Short: "Force the migration version (clears the dirty flag)",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			v, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("force: invalid version %q", args[0])
			}
			if err := r.m.Force(v); err != nil {
				return fmt.Errorf("force failed: %w", err)
			}
			slog.Info("migrations: forced", "version", v)
			return nil
		},
	}
}

func (r *runner) dropCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "drop",
		Short: "Drop every table (dev only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes && !confirm(cmd.InOrStdin(), cmd.ErrOrStderr()) {
				fmt.Fprintln(cmd.OutOrStdout(), "aborted")
				return nil
			}
			if err := r.m.Drop(); err != nil {
				return fmt.Errorf("drop failed: %w", err)
			}
			slog.Info("migrations: all tables dropped")
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "skip the confirmation prompt")
	return cmd
}

func confirm(in io.Reader, out io.Writer) bool {
	fmt.Fprintln(out, "WARNING: drop will destroy all tables. Type 'yes' to confirm:")
	var answer string
	_, _ = fmt.Fscanln(in, &answer)
	return strings.TrimSpace(answer) == "yes"
}

// ─────────────────────────────────────────────────────────────────────────────

type migrateLogger struct{}

func (l *migrateLogger) Printf(format string, v ...any) {
	slog.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}
func (l *migrateLogger) Verbose() bool { return false }

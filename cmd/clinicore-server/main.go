package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/clinicore/clinicore/internal/config"
	"github.com/clinicore/clinicore/internal/domain/lab"
	"github.com/clinicore/clinicore/internal/platform/db"
	"github.com/clinicore/clinicore/migrations"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "clinicore-server",
		Short:        "Clinical record lifecycle and lab analytics API",
		Version:      version,
		SilenceUsage: true,
	}
	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(rangesCmd())
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

// withMigrator loads config, opens a pool and hands a migrator over the
// embedded schema to fn.
func withMigrator(fn func(ctx context.Context, m *db.Migrator) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return err
	}
	defer pool.Close()

	return fn(ctx, db.NewMigrator(pool, migrations.FS))
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(ctx context.Context, m *db.Migrator) error {
				count, err := m.Up(ctx)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s).\n", count)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(ctx context.Context, m *db.Migrator) error {
				statuses, err := m.Status(ctx)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "VERSION\tNAME\tSTATUS\tAPPLIED AT")
				for _, s := range statuses {
					status, appliedAt := "pending", ""
					if s.Applied {
						status = "applied"
						if s.AppliedAt != nil {
							appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
						}
					}
					fmt.Fprintf(w, "%03d\t%s\t%s\t%s\n", s.Version, s.Name, status, appliedAt)
				}
				return w.Flush()
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(ctx context.Context, m *db.Migrator) error {
				rolled, err := m.Down(ctx)
				if errors.Is(err, db.ErrNothingToRollback) {
					fmt.Fprintln(cmd.OutOrStdout(), "Nothing to roll back.")
					return nil
				}
				if err != nil {
					return fmt.Errorf("rollback failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Rolled back %03d_%s.\n", rolled.Version, rolled.Name)
				return nil
			})
		},
	})

	return cmd
}

func rangesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ranges",
		Short: "Inspect reference range tables",
	}

	check := &cobra.Command{
		Use:   "check",
		Short: "Load and validate a reference range table, then print it",
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")
			table, err := loadRangeTable(file)
			if err != nil {
				return err
			}
			source := file
			if source == "" {
				source = "built-in"
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %d reference range(s)\n", source, table.Len())
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TEST\tMIN\tMAX\tUNIT\tCRITICAL")
			for _, e := range table.Entries() {
				fmt.Fprintf(w, "%s\t%g\t%g\t%s\t%s\n", e.TestName, e.Min, e.Max, e.Unit, criticalLimits(e))
			}
			return w.Flush()
		},
	}
	check.Flags().String("file", os.Getenv("REFERENCE_RANGES_FILE"), "YAML range table (built-in table when empty)")
	cmd.AddCommand(check)

	return cmd
}

func criticalLimits(e lab.RangeEntry) string {
	switch {
	case e.CriticalLow != nil && e.CriticalHigh != nil:
		return fmt.Sprintf("<=%g >=%g", *e.CriticalLow, *e.CriticalHigh)
	case e.CriticalLow != nil:
		return fmt.Sprintf("<=%g", *e.CriticalLow)
	case e.CriticalHigh != nil:
		return fmt.Sprintf(">=%g", *e.CriticalHigh)
	}
	return "-"
}

// loadRangeTable reads path, or the built-in table when path is empty.
func loadRangeTable(path string) (*lab.RangeTable, error) {
	if path == "" {
		return lab.DefaultRangeTable()
	}
	return lab.LoadRangeTable(path)
}

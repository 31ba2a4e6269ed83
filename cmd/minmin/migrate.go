package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/minmin-app/minmin/internal/store/postgres"
)

func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
		Long: `Apply or roll back the schema migrations embedded in the binary.

Examples:
  minmin migrate up          # apply every pending migration
  minmin migrate down        # roll back every migration
  minmin migrate steps -- -1 # roll back the latest migration
  minmin migrate version     # print the current schema version
  minmin migrate force 3     # mark version 3 as applied after a failed run`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return withMigrator((*postgres.Migrator).Up)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back all migrations",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return withMigrator((*postgres.Migrator).Down)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "steps <n>",
		Short: "Apply n migrations, or roll back when n is negative",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil || n == 0 {
				return fmt.Errorf("invalid step count %q", args[0])
			}
			return withMigrator(func(m *postgres.Migrator) error {
				return m.Steps(n)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			return withMigrator(func(m *postgres.Migrator) error {
				version, dirty, err := m.Version()
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(c.OutOrStdout(), "version %d (dirty: %t)\n", version, dirty)
				return err
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "force <version>",
		Short: "Set the schema version without running migrations",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			version, err := strconv.Atoi(args[0])
			if err != nil || version < -1 {
				return fmt.Errorf("invalid version %q", args[0])
			}
			return withMigrator(func(m *postgres.Migrator) error {
				return m.Force(version)
			})
		},
	})

	return cmd
}

func withMigrator(fn func(*postgres.Migrator) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	m, err := postgres.NewMigrator(cfg.Database.DSN())
	if err != nil {
		return err
	}
	defer m.Close()

	return fn(m)
}

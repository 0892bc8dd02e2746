package cli

import (
	"fmt"
	"strconv"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/nexuscrm/tenantcrm/internal/infrastructure/database"
)

func migrateCommand() *cobra.Command {
	c := &cobra.Command{
		SilenceUsage: true,
		Use:          "migrate",
		Short:        "Manage the embedded schema migrations.",
	}
	c.AddCommand(
		&cobra.Command{
			SilenceUsage: true,
			Use:          "up",
			Short:        "Apply all pending migrations.",
			Args:         cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withMigrator(cmd, func(m *database.Migrator) error {
					return m.Up()
				})
			},
		},
		&cobra.Command{
			SilenceUsage: true,
			Use:          "down [steps]",
			Short:        "Roll back migrations (default one step).",
			Args:         cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				steps := 1
				if len(args) == 1 {
					n, err := strconv.Atoi(args[0])
					if err != nil || n < 1 {
						return fmt.Errorf("steps must be a positive integer, got %q", args[0])
					}
					steps = n
				}
				return withMigrator(cmd, func(m *database.Migrator) error {
					if err := m.Down(steps); err != nil {
						return err
					}
					glog.Infof("Rolled back %d migration(s)", steps)
					return nil
				})
			},
		},
		&cobra.Command{
			SilenceUsage: true,
			Use:          "version",
			Short:        "Print the applied schema version.",
			Args:         cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withMigrator(cmd, func(m *database.Migrator) error {
					v, dirty, err := m.Version()
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty=%t)\n", v, dirty)
					return nil
				})
			},
		},
	)
	return c
}

func withMigrator(cmd *cobra.Command, fn func(m *database.Migrator) error) error {
	cfg, db, err := connect(cmd.Context())
	if err != nil {
		return err
	}
	defer closeDB(db)

	m, err := database.NewMigrator(db.DB(), cfg.DBName)
	if err != nil {
		return err
	}
	return fn(m)
}

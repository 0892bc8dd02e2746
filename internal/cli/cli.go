// Package cli holds the tenantcrm command tree.
package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/nexuscrm/tenantcrm/internal/config"
	"github.com/nexuscrm/tenantcrm/internal/infrastructure/database"
)

const connectTimeout = 30 * time.Second

// Command builds the root CLI command.
func Command() *cobra.Command {
	c := &cobra.Command{
		SilenceUsage: true,
		Use:          "tenantcrm",
		Long:         "tenantcrm is a multi-tenant CRM API server.",
	}
	c.AddCommand(
		serveCommand(),
		migrateCommand(),
		seedPlansCommand(),
		createAdminCommand(),
		seedSampleDataCommand(),
	)
	return c
}

// connect loads configuration and opens the database
func connect(ctx context.Context) (*config.Config, *database.TiDBConnection, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	db, err := database.Connect(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	glog.Info("Database connection established")
	return cfg, db, nil
}

func closeDB(db *database.TiDBConnection) {
	if err := db.Close(); err != nil {
		glog.Warningf("failed to close database: %v", err)
	}
}

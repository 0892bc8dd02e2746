package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/nexuscrm/tenantcrm/internal/application/services"
	"github.com/nexuscrm/tenantcrm/internal/bootstrap"
	"github.com/nexuscrm/tenantcrm/internal/config"
	"github.com/nexuscrm/tenantcrm/internal/infrastructure/database"
	"github.com/nexuscrm/tenantcrm/internal/infrastructure/persistence"
	"github.com/nexuscrm/tenantcrm/internal/interfaces/middleware"
	"github.com/nexuscrm/tenantcrm/internal/interfaces/rest"
	"github.com/nexuscrm/tenantcrm/internal/metrics"
)

const (
	shutdownTimeout     = 5 * time.Second
	limiterCleanupEvery = 10 * time.Minute
)

func serveCommand() *cobra.Command {
	return &cobra.Command{
		SilenceUsage: true,
		Use:          "serve",
		Short:        "Run migrations, bootstrap data and serve the API.",
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, db, err := connect(ctx)
			if err != nil {
				return err
			}
			defer closeDB(db)

			if err := prepareDatabase(ctx, cfg, db); err != nil {
				return err
			}
			return serve(cfg, db)
		},
	}
}

// prepareDatabase migrates, seeds and runs the startup assertions
func prepareDatabase(ctx context.Context, cfg *config.Config, db *database.TiDBConnection) error {
	migrator, err := database.NewMigrator(db.DB(), cfg.DBName)
	if err != nil {
		return err
	}
	if err := migrator.Up(); err != nil {
		return err
	}

	if err := bootstrap.SeedPlans(ctx, persistence.NewPlanRepository(db.DB())); err != nil {
		return fmt.Errorf("failed to seed plans: %w", err)
	}
	if _, err := bootstrap.EnsureSuperAdmin(ctx, persistence.NewUserRepository(db.DB()),
		cfg.AdminEmail, cfg.AdminPassword, cfg.AdminName); err != nil {
		return fmt.Errorf("failed to seed super admin: %w", err)
	}

	// Violations are fatal unless SKIP_ASSERTIONS=true
	if cfg.SkipAssertions {
		glog.Warning("Skipping startup assertions (SKIP_ASSERTIONS=true)")
		return nil
	}
	if _, err := bootstrap.RunAssertions(ctx, db.DB(), true); err != nil {
		return fmt.Errorf("startup assertions failed: %w", err)
	}
	return nil
}

func serve(cfg *config.Config, db *database.TiDBConnection) error {
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	m := metrics.New()
	svcMgr, err := services.NewServiceManager(db, cfg, m)
	if err != nil {
		return err
	}
	glog.Info("Service manager initialized")

	limiter := middleware.NewRateLimiter(cfg.PublicRateLimitRPS, cfg.PublicRateLimitBurst)
	stopCleanup := make(chan struct{})
	limiter.StartCleanup(limiterCleanupEvery, stopCleanup)

	svcMgr.StartScheduler()

	srv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: rest.NewRouter(svcMgr, cfg, m, limiter),
	}

	serveErr := make(chan error, 1)
	go func() {
		glog.Infof("Listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-serveErr:
		if err != nil {
			shutdownWorkers(svcMgr, stopCleanup)
			return fmt.Errorf("failed to start server: %w", err)
		}
	case sig := <-quit:
		glog.Infof("Received %s, shutting down server...", sig)
	}

	shutdownWorkers(svcMgr, stopCleanup)

	// The server has shutdownTimeout to finish in-flight requests
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	// Workflow runs started by requests finish on the same deadline
	if err := svcMgr.DrainEvents(ctx); err != nil {
		glog.Warningf("Pending workflow events did not finish before shutdown: %v", err)
	}

	glog.Info("Server exiting")
	return nil
}

func shutdownWorkers(svcMgr *services.ServiceManager, stopCleanup chan struct{}) {
	close(stopCleanup)
	svcMgr.StopScheduler()
	glog.Info("Scheduler stopped")
}

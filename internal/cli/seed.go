package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nexuscrm/tenantcrm/internal/application/services"
	"github.com/nexuscrm/tenantcrm/internal/bootstrap"
	"github.com/nexuscrm/tenantcrm/internal/infrastructure/persistence"
	"github.com/nexuscrm/tenantcrm/internal/metrics"
	"github.com/nexuscrm/tenantcrm/pkg/auth"
	"github.com/nexuscrm/tenantcrm/pkg/constants"
)

func seedPlansCommand() *cobra.Command {
	return &cobra.Command{
		SilenceUsage: true,
		Use:          "seed-plans",
		Short:        "Create or refresh the built-in subscription plans.",
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer closeDB(db)
			return bootstrap.SeedPlans(cmd.Context(), persistence.NewPlanRepository(db.DB()))
		},
	}
}

func createAdminCommand() *cobra.Command {
	var email, password, name string
	c := &cobra.Command{
		SilenceUsage: true,
		Use:          "create-admin",
		Short:        "Create the platform super admin.",
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer closeDB(db)

			if email == "" {
				email = cfg.AdminEmail
			}
			if password == "" {
				password = cfg.AdminPassword
			}
			if name == "" {
				name = cfg.AdminName
			}
			if email == "" || password == "" {
				return fmt.Errorf("--email and --password (or ADMIN_EMAIL and ADMIN_PASSWORD) are required")
			}

			created, err := bootstrap.EnsureSuperAdmin(cmd.Context(), persistence.NewUserRepository(db.DB()), email, password, name)
			if err != nil {
				return err
			}
			if !created {
				fmt.Fprintf(cmd.OutOrStdout(), "user %s already exists\n", email)
			}
			return nil
		},
	}
	c.Flags().StringVar(&email, "email", "", "admin email (defaults to ADMIN_EMAIL)")
	c.Flags().StringVar(&password, "password", "", "admin password (defaults to ADMIN_PASSWORD)")
	c.Flags().StringVar(&name, "name", "", "admin display name (defaults to ADMIN_NAME)")
	return c
}

func seedSampleDataCommand() *cobra.Command {
	var tenantSlug string
	var contacts int
	c := &cobra.Command{
		SilenceUsage: true,
		Use:          "seed-sample-data",
		Short:        "Fill a tenant with fake companies, contacts, deals and activities.",
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if tenantSlug == "" {
				return fmt.Errorf("--tenant is required")
			}
			ctx := cmd.Context()
			cfg, db, err := connect(ctx)
			if err != nil {
				return err
			}
			defer closeDB(db)

			tenant, err := persistence.NewTenantRepository(db.DB()).GetBySlug(ctx, tenantSlug)
			if err != nil {
				return fmt.Errorf("failed to load tenant: %w", err)
			}
			if tenant == nil {
				return fmt.Errorf("tenant %q not found", tenantSlug)
			}
			users := persistence.NewUserRepository(db.DB())
			adminID, err := users.FirstAdminOfTenant(ctx, tenant.ID)
			if err != nil {
				return fmt.Errorf("failed to find tenant admin: %w", err)
			}
			if adminID == "" {
				return fmt.Errorf("tenant %q has no active admin", tenantSlug)
			}
			admin, err := users.FindByID(ctx, adminID)
			if err != nil || admin == nil {
				return fmt.Errorf("failed to load tenant admin: %v", err)
			}

			svcMgr, err := services.NewServiceManager(db, cfg, metrics.New())
			if err != nil {
				return err
			}
			session := &auth.UserSession{
				ID:       admin.ID,
				Name:     admin.Name,
				Email:    admin.Email,
				Role:     constants.RoleTenantAdmin,
				TenantID: tenant.ID,
			}
			sum, err := bootstrap.NewSampleSeeder(svcMgr).Seed(ctx, session, contacts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %d companies, %d contacts, %d deals, %d activities\n",
				sum.Companies, sum.Contacts, sum.Deals, sum.Activities)
			return nil
		},
	}
	c.Flags().StringVar(&tenantSlug, "tenant", "", "slug of the tenant to fill")
	c.Flags().IntVar(&contacts, "contacts", 25, "number of contacts to create")
	return c
}

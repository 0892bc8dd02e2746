package services

import (
	"context"
	"fmt"
	"time"

	"github.com/golang/glog"

	"github.com/nexuscrm/tenantcrm/internal/config"
	"github.com/nexuscrm/tenantcrm/internal/infrastructure/database"
	"github.com/nexuscrm/tenantcrm/internal/infrastructure/persistence"
	"github.com/nexuscrm/tenantcrm/internal/metrics"
	"github.com/nexuscrm/tenantcrm/pkg/auth"
	"github.com/nexuscrm/tenantcrm/pkg/constants"
	"github.com/nexuscrm/tenantcrm/pkg/crypto"
	"github.com/nexuscrm/tenantcrm/pkg/expression"
)

// ServiceManager orchestrates all services with dependency injection
type ServiceManager struct {
	db *database.TiDBConnection

	// Core services
	TxManager   *persistence.TransactionManager
	EventBus    *EventBus
	Tokens      *auth.TokenManager
	Permissions *PermissionService
	Audit       *AuditService
	Plans       *PlanService
	Auth        *AuthService

	// CRM
	Contacts   *ContactService
	Companies  *CompanyService
	Deals      *DealService
	Activities *ActivityService
	Pipelines  *PipelineService

	// Automation
	Actions   *ActionService
	Engine    *WorkflowEngine
	Workflows *WorkflowService
	Scheduler *SchedulerService

	// Marketing
	Email        *EmailService
	Forms        *FormService
	LandingPages *LandingPageService
	WhatsApp     *WhatsAppService

	Dashboard *DashboardService
	Team      *TeamService
	Admin     *AdminService
}

// NewServiceManager creates a new service manager with all dependencies wired
func NewServiceManager(db *database.TiDBConnection, cfg *config.Config, m *metrics.Metrics) (*ServiceManager, error) {
	sm := &ServiceManager{db: db}
	sqlDB := db.DB()

	users := persistence.NewUserRepository(sqlDB)
	sessions := persistence.NewSessionRepository(sqlDB)
	tenants := persistence.NewTenantRepository(sqlDB)
	plans := persistence.NewPlanRepository(sqlDB)
	stats := persistence.NewStatsRepository(sqlDB)
	contacts := persistence.NewContactRepository(sqlDB)
	companies := persistence.NewCompanyRepository(sqlDB)
	deals := persistence.NewDealRepository(sqlDB)
	activities := persistence.NewActivityRepository(sqlDB)
	pipelines := persistence.NewPipelineRepository(sqlDB)
	workflows := persistence.NewWorkflowRepository(sqlDB)
	emails := persistence.NewEmailRepository(sqlDB)
	forms := persistence.NewFormRepository(sqlDB)
	pages := persistence.NewLandingPageRepository(sqlDB)
	whatsapp := persistence.NewWhatsAppRepository(sqlDB)

	var secrets *crypto.SecretBox
	if cfg.EncryptionKey != "" {
		box, err := crypto.NewSecretBox(cfg.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize secret box: %w", err)
		}
		secrets = box
	} else {
		glog.Warning("ENCRYPTION_KEY not set; WhatsApp integrations cannot be created")
	}

	// Initialize services in dependency order
	sm.TxManager = persistence.NewTransactionManager(sqlDB)
	sm.EventBus = NewEventBus()
	sm.Tokens = auth.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL)
	sm.Permissions = NewPermissionService()
	sm.Audit = NewAuditService(persistence.NewAuditRepository(sqlDB), sm.Permissions, m)
	sm.Plans = NewPlanService(plans, tenants, users, stats, sm.Audit, m, cfg.PlanCacheTTL, cfg.IsDevelopment())
	sm.Auth = NewAuthService(users, sessions, tenants, plans, pipelines, sm.TxManager, sm.Tokens, sm.Audit)

	sm.Pipelines = NewPipelineService(pipelines, contacts, activities, sm.EventBus, sm.Audit)
	sm.Contacts = NewContactService(contacts, companies, deals, activities, sm.Pipelines, sm.Plans, sm.EventBus, sm.Audit)
	sm.Companies = NewCompanyService(companies, sm.Plans, sm.Audit)
	sm.Deals = NewDealService(deals, contacts, companies, activities, sm.Plans, sm.EventBus, sm.Audit)
	sm.Activities = NewActivityService(activities, contacts, companies, deals, sm.Audit)

	// The engine subscribes to the bus, so handlers are registered before any
	// service can publish.
	exprs := expression.NewEngine()
	registry := NewActionHandlerRegistry()
	sm.Actions = NewActionService(contacts, deals, activities, pipelines, users, constants.WaitActionCap*time.Second)
	sm.Actions.Register(registry)
	sm.Engine = NewWorkflowEngine(workflows, registry, sm.Actions, sm.EventBus, exprs, m)
	sm.Engine.RegisterHandlers()
	sm.Workflows = NewWorkflowService(workflows, sm.TxManager, sm.Engine, exprs, sm.Plans, sm.Audit)
	sm.Scheduler = NewSchedulerService(persistence.NewSchedulerRepository(sqlDB), sm.Engine, cfg.SchedulerInterval)

	sm.Email = NewEmailService(emails, sm.Audit)
	sm.Forms = NewFormService(forms, contacts, sm.Plans, sm.EventBus, sm.Audit, cfg.PublicBaseURL)
	sm.LandingPages = NewLandingPageService(pages, sm.Audit)
	sm.WhatsApp = NewWhatsAppService(whatsapp, contacts, secrets, sm.Plans, sm.EventBus, sm.Audit,
		cfg.WhatsAppAppSecret, cfg.PublicBaseURL)

	sm.Dashboard = NewDashboardService(stats, activities)
	sm.Team = NewTeamService(users, sm.Plans, sm.Audit)
	sm.Admin = NewAdminService(tenants, plans, users, pipelines, stats, sm.TxManager, sm.Audit)

	return sm, nil
}

// StartScheduler starts the scheduled workflow runner.
// Call this during server startup.
func (sm *ServiceManager) StartScheduler() {
	if sm.Scheduler != nil {
		sm.Scheduler.Start()
	}
}

// StopScheduler stops the scheduled workflow runner gracefully.
// Call this during server shutdown.
func (sm *ServiceManager) StopScheduler() {
	if sm.Scheduler != nil {
		sm.Scheduler.Stop()
	}
}

// DrainEvents waits for async event handlers, and the workflow runs they
// started, to finish or for ctx to expire.
func (sm *ServiceManager) DrainEvents(ctx context.Context) error {
	if sm.EventBus == nil {
		return nil
	}
	return sm.EventBus.WaitContext(ctx)
}

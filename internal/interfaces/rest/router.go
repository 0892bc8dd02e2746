package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nexuscrm/tenantcrm/internal/application/services"
	"github.com/nexuscrm/tenantcrm/internal/config"
	"github.com/nexuscrm/tenantcrm/internal/interfaces/middleware"
	"github.com/nexuscrm/tenantcrm/internal/metrics"
	"github.com/nexuscrm/tenantcrm/pkg/constants"
)

// publicFormRoutes answer any origin
var publicFormRoutes = []string{"/api/forms/public/:formId", "/api/forms/:formId/submit"}

// NewRouter builds the gin engine with every API route registered.
// The rate limiter guards the unauthenticated public endpoints.
func NewRouter(svcMgr *services.ServiceManager, cfg *config.Config, m *metrics.Metrics, limiter *middleware.RateLimiter) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestMeta(), middleware.Cors(publicFormRoutes...))
	if cfg.MetricsEnabled && m != nil {
		router.Use(middleware.Metrics(m))
		router.GET("/metrics", gin.WrapH(m.Handler()))
	}

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Initialize handlers
	authHandler := NewAuthHandler(svcMgr.Auth, svcMgr.Permissions)
	billingHandler := NewBillingHandler(svcMgr.Plans)
	contactHandler := NewContactHandler(svcMgr.Contacts, svcMgr.Pipelines)
	companyHandler := NewCompanyHandler(svcMgr.Companies)
	dealHandler := NewDealHandler(svcMgr.Deals)
	activityHandler := NewActivityHandler(svcMgr.Activities)
	workflowHandler := NewWorkflowHandler(svcMgr.Workflows)
	emailHandler := NewEmailHandler(svcMgr.Email)
	formHandler := NewFormHandler(svcMgr.Forms)
	pageHandler := NewLandingPageHandler(svcMgr.LandingPages)
	whatsappHandler := NewWhatsAppHandler(svcMgr.WhatsApp)
	dashboardHandler := NewDashboardHandler(svcMgr.Dashboard)
	teamHandler := NewTeamHandler(svcMgr.Team)
	adminHandler := NewAdminHandler(svcMgr.Admin, svcMgr.Audit)

	// Initialize middleware
	requireAuth := middleware.RequireAuth(svcMgr.Auth)
	requireTenant := middleware.RequireTenant()
	requireSuperAdmin := middleware.RequireSuperAdmin()
	throttle := limiter.Handler()

	api := router.Group("/api")
	{
		// Public Auth routes (no authentication required)
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/signup", throttle, authHandler.Signup)
			authGroup.POST("/login", throttle, authHandler.Login)
			authGroup.POST("/logout", requireAuth, authHandler.Logout)
			authGroup.GET("/me", requireAuth, authHandler.GetMe)
			authGroup.POST("/change-password", requireAuth, authHandler.ChangePassword)
		}
		api.GET("/permissions/me", requireAuth, authHandler.GetMyPermissions)

		billing := api.Group("/billing", requireAuth, requireTenant)
		{
			billing.GET("/current-plan", billingHandler.CurrentPlan)
			billing.POST("/upgrade", billingHandler.Upgrade)
		}
		api.GET("/plan/usage", requireAuth, requireTenant, billingHandler.Usage)
		api.GET("/plan/available", billingHandler.Available)

		contacts := api.Group("/contacts", requireAuth, requireTenant)
		{
			contacts.GET("", contactHandler.List)
			contacts.POST("", contactHandler.Create)
			contacts.GET("/pipeline", contactHandler.Pipeline)
			contacts.POST("/pipeline", contactHandler.CreatePipeline)
			contacts.GET("/pipeline/stats", contactHandler.PipelineStats)
			contacts.POST("/move-stage", contactHandler.MoveStage)
			contacts.POST("/add-to-stage", contactHandler.AddToStage)
			contacts.GET("/:id", contactHandler.Get)
			contacts.PUT("/:id", contactHandler.Update)
			contacts.DELETE("/:id", contactHandler.Delete)
		}

		companies := api.Group("/companies", requireAuth, requireTenant)
		{
			companies.GET("", companyHandler.List)
			companies.POST("", companyHandler.Create)
			companies.GET("/:id", companyHandler.Get)
			companies.PUT("/:id", companyHandler.Update)
			companies.DELETE("/:id", companyHandler.Delete)
		}

		deals := api.Group("/deals", requireAuth, requireTenant)
		{
			deals.GET("", dealHandler.List)
			deals.POST("", dealHandler.Create)
			deals.GET("/pipeline", dealHandler.Pipeline)
			deals.GET("/pipeline/stats", dealHandler.Stats)
			deals.GET("/forecast", dealHandler.Forecast)
			deals.GET("/:id", dealHandler.Get)
			deals.PATCH("/:id", dealHandler.Update)
			deals.PUT("/:id", dealHandler.Update)
			deals.DELETE("/:id", dealHandler.Delete)
		}

		activities := api.Group("/activities", requireAuth, requireTenant)
		{
			activities.GET("", activityHandler.List)
			activities.POST("", activityHandler.Create)
			activities.PATCH("/bulk", activityHandler.Bulk)
			activities.GET("/:id", activityHandler.Get)
			activities.PATCH("/:id", activityHandler.Update)
			activities.PATCH("/:id/complete", activityHandler.Complete)
			activities.DELETE("/:id", activityHandler.Delete)
		}

		workflows := api.Group("/workflows", requireAuth, requireTenant)
		{
			workflows.GET("", workflowHandler.List)
			workflows.POST("", workflowHandler.Create)
			workflows.GET("/executions", workflowHandler.Executions)
			workflows.GET("/:id", workflowHandler.Get)
			workflows.PUT("/:id", workflowHandler.Update)
			workflows.PUT("/:id/actions", workflowHandler.ReplaceActions)
			workflows.DELETE("/:id", workflowHandler.Delete)
			workflows.POST("/:id/toggle", workflowHandler.Toggle)
			workflows.POST("/:id/test", workflowHandler.Test)
		}

		email := api.Group("/email-marketing/lists", requireAuth, requireTenant)
		{
			email.GET("", emailHandler.Lists)
			email.POST("", emailHandler.CreateList)
			email.GET("/:id", emailHandler.GetList)
			email.PUT("/:id", emailHandler.UpdateList)
			email.DELETE("/:id", emailHandler.DeleteList)
			email.GET("/:id/subscribers", emailHandler.Subscribers)
			email.POST("/:id/subscribers", emailHandler.AddSubscriber)
			email.DELETE("/:id/subscribers/bulk", emailHandler.DeleteSubscribers)
			email.PUT("/:id/subscribers/:subscriberId", emailHandler.UpdateSubscriber)
			email.POST("/:id/subscribers/:subscriberId/unsubscribe", emailHandler.Unsubscribe)
			email.DELETE("/:id/subscribers/:subscriberId", emailHandler.DeleteSubscriber)
			email.POST("/:id/import", emailHandler.Import)
			email.POST("/:id/import/csv", emailHandler.ImportCSV)
			email.GET("/:id/export", emailHandler.Export)
		}

		// Public form endpoints are embedded on third-party sites
		publicForm := middleware.PublicCors("GET, POST, OPTIONS")
		forms := api.Group("/forms")
		{
			forms.GET("/public/:formId", publicForm, throttle, formHandler.PublicForm)
			forms.OPTIONS("/public/:formId", publicForm)
			forms.POST("/:formId/submit", publicForm, throttle, formHandler.Submit)
			forms.OPTIONS("/:formId/submit", publicForm)

			forms.GET("", requireAuth, requireTenant, formHandler.List)
			forms.POST("", requireAuth, requireTenant, formHandler.Create)
			forms.PUT("", requireAuth, requireTenant, formHandler.Update)
			forms.DELETE("", requireAuth, requireTenant, formHandler.Delete)
			forms.GET("/submissions", requireAuth, requireTenant, formHandler.Submissions)
		}

		pages := api.Group("/landing-pages", requireAuth, requireTenant)
		{
			pages.GET("", pageHandler.List)
			pages.POST("", pageHandler.Create)
			pages.GET("/:id", pageHandler.Get)
			pages.PUT("/:id", pageHandler.Update)
			pages.DELETE("/:id", pageHandler.Delete)
			pages.POST("/:id/publish", pageHandler.Publish)
			pages.POST("/:id/duplicate", pageHandler.Duplicate)
		}
		api.GET("/public/pages/:tenantSlug/:slug", throttle, pageHandler.Public)

		whatsapp := api.Group("/whatsapp")
		{
			whatsapp.GET("/webhook", throttle, whatsappHandler.VerifyWebhook)
			whatsapp.POST("/webhook", whatsappHandler.ReceiveWebhook)
			whatsapp.GET("/integrations", requireAuth, requireTenant, whatsappHandler.Integrations)
			whatsapp.POST("/integrations", requireAuth, requireTenant, whatsappHandler.CreateIntegration)
			whatsapp.GET("/conversations", requireAuth, requireTenant, whatsappHandler.Conversations)
			whatsapp.GET("/conversations/:id/messages", requireAuth, requireTenant, whatsappHandler.Messages)
		}

		api.GET("/dashboard/stats", requireAuth, requireTenant,
			middleware.RequirePermission(svcMgr.Permissions, "analytics.view_dashboard"), dashboardHandler.Stats)

		team := api.Group("/team/users", requireAuth, requireTenant,
			middleware.RequireRoles(constants.TenantAdministerRoles...))
		{
			team.GET("", teamHandler.List)
			team.POST("", teamHandler.Create)
			team.PUT("/:id", teamHandler.Update)
		}

		// Audit logs are open to tenant admins; the service scopes them
		api.GET("/admin/audit-logs", requireAuth, adminHandler.AuditLogs)

		// Admin routes (platform super admin only)
		admin := api.Group("/admin", requireAuth, requireSuperAdmin)
		{
			admin.GET("/tenants", adminHandler.Tenants)
			admin.POST("/tenants", adminHandler.CreateTenant)
			admin.GET("/tenants/:id", adminHandler.Tenant)
			admin.PUT("/tenants/:id", adminHandler.UpdateTenant)
			admin.GET("/stats", adminHandler.Stats)
			admin.GET("/users", adminHandler.Users)
			admin.GET("/plans", billingHandler.ListPlans)
			admin.POST("/plans", billingHandler.CreatePlan)
			admin.PUT("/plans/:id", billingHandler.UpdatePlan)
			admin.DELETE("/plans/:id", billingHandler.DeletePlan)
		}
	}

	return router
}

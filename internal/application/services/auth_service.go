package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang/glog"

	"github.com/nexuscrm/tenantcrm/internal/domain/models"
	"github.com/nexuscrm/tenantcrm/internal/domain/ports"
	"github.com/nexuscrm/tenantcrm/internal/infrastructure/persistence"
	"github.com/nexuscrm/tenantcrm/pkg/auth"
	"github.com/nexuscrm/tenantcrm/pkg/constants"
	"github.com/nexuscrm/tenantcrm/pkg/errors"
	"github.com/nexuscrm/tenantcrm/pkg/utils"
)

// AuthService handles signup, authentication, session management and password operations
type AuthService struct {
	users     *persistence.UserRepository
	sessions  *persistence.SessionRepository
	tenants   *persistence.TenantRepository
	plans     *persistence.PlanRepository
	pipelines *persistence.PipelineRepository
	tx        *persistence.TransactionManager
	tokens    *auth.TokenManager
	auditor   ports.Auditor
}

// NewAuthService creates a new AuthService
func NewAuthService(users *persistence.UserRepository, sessions *persistence.SessionRepository,
	tenants *persistence.TenantRepository, plans *persistence.PlanRepository,
	pipelines *persistence.PipelineRepository, tx *persistence.TransactionManager,
	tokens *auth.TokenManager, auditor ports.Auditor) *AuthService {
	return &AuthService{
		users:     users,
		sessions:  sessions,
		tenants:   tenants,
		plans:     plans,
		pipelines: pipelines,
		tx:        tx,
		tokens:    tokens,
		auditor:   auditor,
	}
}

// SignupInput is the public registration payload
type SignupInput struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	CompanyName string `json:"companyName"`
	PlanName    string `json:"planName"`
}

// SignupResult is returned by Signup
type SignupResult struct {
	Message string         `json:"message"`
	User    *models.User   `json:"user"`
	Tenant  *models.Tenant `json:"tenant"`
}

// LoginResult contains the result of a successful login
type LoginResult struct {
	Token     string           `json:"token"`
	User      auth.UserSession `json:"user"`
	ExpiresAt time.Time        `json:"expiresAt"`
}

// Signup creates a tenant, its first administrator and the default pipeline in one transaction
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*SignupResult, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.CompanyName = strings.TrimSpace(in.CompanyName)
	email := auth.NormalizeEmail(in.Email)
	if in.Name == "" || email == "" || in.Password == "" || in.CompanyName == "" || strings.TrimSpace(in.PlanName) == "" {
		return nil, errors.BadRequest("All fields are required")
	}
	if !auth.IsValidEmail(email) {
		return nil, errors.BadRequest("Invalid email format")
	}
	if err := auth.ValidatePasswordStrength(in.Password); err != nil {
		return nil, errors.BadRequest("%s", err.Error())
	}

	taken, err := s.users.CheckUserExistsByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if taken {
		return nil, errors.BadRequest("User with this email already exists")
	}

	plan, err := s.plans.GetByName(ctx, strings.ToUpper(strings.TrimSpace(in.PlanName)))
	if err != nil {
		return nil, fmt.Errorf("failed to load plan: %w", err)
	}
	if plan == nil || !plan.IsActive {
		return nil, errors.BadRequest("Invalid plan selected")
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	planID := plan.ID
	tenant := &models.Tenant{
		ID:       utils.GenerateID(),
		Name:     in.CompanyName,
		PlanID:   &planID,
		Status:   constants.TenantStatusActive,
		Settings: map[string]interface{}{},
	}
	if !plan.IsFree() {
		trialEnds := now.AddDate(0, 0, constants.TrialDays)
		tenant.TrialEndsAt = &trialEnds
		tenant.Status = constants.TenantStatusTrial
	}
	tenantID := tenant.ID
	user := &models.User{
		ID:       utils.GenerateID(),
		TenantID: &tenantID,
		Name:     in.Name,
		Email:    email,
		Password: hash,
		Role:     constants.RoleTenantAdmin,
		IsActive: true,
	}

	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		slug, err := s.uniqueSlug(ctx, in.CompanyName)
		if err != nil {
			return err
		}
		tenant.Slug = slug
		if err := s.tenants.Create(ctx, tenant); err != nil {
			return fmt.Errorf("failed to create tenant: %w", err)
		}
		if err := s.users.Create(ctx, user); err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		if tenant.TrialEndsAt != nil {
			if err := s.tenants.CreateSubscription(ctx, &models.Subscription{
				ID:                 utils.GenerateID(),
				TenantID:           tenant.ID,
				PlanID:             plan.ID,
				Status:             constants.SubscriptionTrialing,
				CurrentPeriodStart: now,
				CurrentPeriodEnd:   *tenant.TrialEndsAt,
			}); err != nil {
				return fmt.Errorf("failed to create subscription: %w", err)
			}
		}
		if err := s.pipelines.Create(ctx, newDefaultPipeline(tenant.ID)); err != nil {
			return fmt.Errorf("failed to create default pipeline: %w", err)
		}
		return nil
	})
	if err != nil {
		if persistence.IsDuplicateKey(err) {
			return nil, errors.BadRequest("User with this email already exists")
		}
		return nil, err
	}

	glog.Infof("Tenant %s (%s) signed up on plan %s", tenant.Slug, tenant.ID, plan.Name)
	session := sessionFor(user)
	s.auditor.Record(ctx, auditEntry(&session, constants.AuditSignup, constants.ResourceTenant, tenant.ID,
		map[string]interface{}{"name": tenant.Name, "slug": tenant.Slug, "plan": plan.Name}, nil))

	tenant.Plan = plan
	return &SignupResult{Message: "Account created successfully", User: user, Tenant: tenant}, nil
}

// uniqueSlug derives a tenant slug from the company name, suffixing -1, -2, ... on collision
func (s *AuthService) uniqueSlug(ctx context.Context, companyName string) (string, error) {
	base := utils.Slugify(companyName)
	if base == "" {
		base = "tenant"
	}
	slug := base
	for i := 1; ; i++ {
		taken, err := s.tenants.SlugExists(ctx, slug)
		if err != nil {
			return "", fmt.Errorf("failed to check tenant slug: %w", err)
		}
		if !taken {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, i)
	}
}

func sessionFor(u *models.User) auth.UserSession {
	return auth.UserSession{
		ID:       u.ID,
		Name:     u.Name,
		Email:    u.Email,
		Role:     u.Role,
		TenantID: u.TenantIDValue(),
	}
}

// Login authenticates a user and creates a session
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = auth.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, errors.BadRequest("Email and password are required")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		glog.Warningf("Login failed for %s: user not found", email)
		return nil, errors.NewUnauthorizedError("Invalid email or password")
	}
	if !auth.VerifyPassword(password, user.Password) {
		glog.Warningf("Login failed for %s: invalid password", email)
		return nil, errors.NewUnauthorizedError("Invalid email or password")
	}
	if !user.IsActive {
		return nil, errors.NewUnauthorizedError("Account is disabled")
	}

	session := sessionFor(user)
	token, jti, expiresAt, err := s.tokens.GenerateToken(session)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	meta := RequestMetaFrom(ctx)
	if err := s.sessions.Create(ctx, &models.Session{
		ID:        jti,
		UserID:    user.ID,
		ExpiresAt: expiresAt,
		IPAddress: meta.IP,
		UserAgent: meta.UserAgent,
	}); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	if err := s.users.TouchLastLogin(ctx, user.ID); err != nil {
		glog.Warningf("Failed to update last login for %s: %v", user.ID, err)
	}
	s.auditor.Record(ctx, auditEntry(&session, constants.AuditLogin, constants.ResourceUser, user.ID, nil, nil))

	return &LoginResult{Token: token, User: session, ExpiresAt: expiresAt}, nil
}

// ValidateSession verifies the token signature and that its session row is still live
func (s *AuthService) ValidateSession(ctx context.Context, token string) (*auth.Claims, error) {
	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		return nil, errors.NewUnauthorizedError("Invalid or expired token")
	}
	if claims.ID == "" {
		return nil, errors.NewUnauthorizedError("Invalid token")
	}
	session, err := s.sessions.FindActive(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if session == nil {
		return nil, errors.NewUnauthorizedError("Session expired or revoked")
	}
	return claims, nil
}

// TouchSession updates last activity without blocking the request
func (s *AuthService) TouchSession(jti string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.sessions.Touch(ctx, jti); err != nil {
			glog.V(1).Infof("Failed to touch session %s: %v", jti, err)
		}
	}()
}

// Logout revokes the session the token belongs to
func (s *AuthService) Logout(ctx context.Context, token string) error {
	claims, err := auth.DecodeToken(token)
	if err != nil || claims.ID == "" {
		return errors.NewUnauthorizedError("Invalid token")
	}
	if err := s.sessions.Revoke(ctx, claims.ID); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// Me returns the stored user behind a session
func (s *AuthService) Me(ctx context.Context, session *auth.UserSession) (*models.User, error) {
	if session == nil {
		return nil, errors.NewUnauthorizedError("authentication required")
	}
	user, err := s.users.FindByID(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return nil, errors.NewNotFoundError("User", session.ID)
	}
	if user.TenantID != nil {
		tenant, err := s.tenants.GetByID(ctx, *user.TenantID)
		if err != nil {
			return nil, fmt.Errorf("failed to load tenant: %w", err)
		}
		user.Tenant = tenant
	}
	return user, nil
}

// ChangePassword verifies the current password, stores the new one and
// revokes every other session of the user.
func (s *AuthService) ChangePassword(ctx context.Context, session *auth.UserSession, currentJTI, currentPassword, newPassword string) error {
	if session == nil {
		return errors.NewUnauthorizedError("authentication required")
	}
	if currentPassword == "" || newPassword == "" {
		return errors.BadRequest("Current password and new password are required")
	}
	if err := auth.ValidatePasswordStrength(newPassword); err != nil {
		return errors.BadRequest("%s", err.Error())
	}

	user, err := s.users.FindByID(ctx, session.ID)
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return errors.NewNotFoundError("User", session.ID)
	}
	if !auth.VerifyPassword(currentPassword, user.Password) {
		return errors.BadRequest("Current password is incorrect")
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if err := s.sessions.RevokeAllForUser(ctx, user.ID, currentJTI); err != nil {
		glog.Warningf("Failed to revoke other sessions of %s: %v", user.ID, err)
	}
	s.auditor.Record(ctx, auditEntry(session, constants.AuditUpdate, constants.ResourceUser, user.ID,
		nil, map[string]interface{}{"field": "password"}))
	return nil
}

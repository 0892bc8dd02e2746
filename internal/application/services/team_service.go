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

// TeamService lets tenant administrators manage the users of their tenant
type TeamService struct {
	users   *persistence.UserRepository
	limits  ports.LimitChecker
	auditor ports.Auditor
}

func NewTeamService(users *persistence.UserRepository, limits ports.LimitChecker, auditor ports.Auditor) *TeamService {
	return &TeamService{users: users, limits: limits, auditor: auditor}
}

// CreateUserRequest contains the data needed to add a team member
type CreateUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// UpdateUserRequest contains the fields an administrator may change
type UpdateUserRequest struct {
	Name     *string `json:"name"`
	Role     *string `json:"role"`
	IsActive *bool   `json:"isActive"`
}

// tenantRole reports whether r may be granted inside a tenant
func tenantRole(r string) bool {
	return constants.IsValidRole(r) && constants.Role(r) != constants.RoleSuperAdmin
}

// List returns a page of the tenant's users
func (s *TeamService) List(ctx context.Context, user *auth.UserSession, search, role string, page utils.Pagination) ([]models.User, utils.Pagination, error) {
	tenantID, err := s.authorize(user)
	if err != nil {
		return nil, page, err
	}
	users, total, err := s.users.List(ctx, persistence.UserFilter{
		TenantID: tenantID,
		Search:   strings.TrimSpace(search),
		Role:     allFilter(role),
		Page:     page.Page,
		Limit:    page.Limit,
	})
	if err != nil {
		return nil, page, fmt.Errorf("failed to list users: %w", err)
	}
	return users, page.WithTotal(total), nil
}

// Create adds a user to the caller's tenant after the plan check
func (s *TeamService) Create(ctx context.Context, user *auth.UserSession, req CreateUserRequest) (*models.User, error) {
	tenantID, err := s.authorize(user)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	email := auth.NormalizeEmail(req.Email)
	if name == "" || email == "" || req.Password == "" {
		return nil, errors.BadRequest("Name, email and password are required")
	}
	if !auth.IsValidEmail(email) {
		return nil, errors.BadRequest("Invalid email format")
	}
	if err := auth.ValidatePasswordStrength(req.Password); err != nil {
		return nil, errors.BadRequest("%s", err.Error())
	}
	role := req.Role
	if role == "" {
		role = string(constants.RoleUser)
	}
	if !tenantRole(role) {
		return nil, errors.BadRequest("Invalid role")
	}
	if err := s.limits.EnsureWithinLimit(ctx, tenantID, constants.LimitUsers, 1); err != nil {
		return nil, err
	}

	taken, err := s.users.CheckUserExistsByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if taken {
		return nil, errors.BadRequest("User with this email already exists")
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	now := time.Now().UTC()
	member := &models.User{
		ID:        utils.GenerateID(),
		TenantID:  &tenantID,
		Name:      name,
		Email:     email,
		Password:  hash,
		Role:      constants.Role(role),
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.users.Create(ctx, member); err != nil {
		if persistence.IsDuplicateKey(err) {
			return nil, errors.BadRequest("User with this email already exists")
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	glog.Infof("User %s added to tenant %s as %s", member.ID, tenantID, role)
	s.auditor.Record(ctx, auditEntry(user, constants.AuditCreate, constants.ResourceUser, member.ID,
		map[string]interface{}{"name": member.Name, "email": member.Email, "role": role}, nil))
	return member, nil
}

// Update changes a member's name, role or active flag. Administrators cannot
// demote or deactivate themselves.
func (s *TeamService) Update(ctx context.Context, user *auth.UserSession, id string, req UpdateUserRequest) (*models.User, error) {
	tenantID, err := s.authorize(user)
	if err != nil {
		return nil, err
	}
	member, err := s.users.FindByIDForTenant(ctx, tenantID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if member == nil {
		return nil, errors.NewNotFoundError("User", id)
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, errors.BadRequest("Name is required")
		}
		updates["name"] = name
	}
	if req.Role != nil && *req.Role != string(member.Role) {
		if !tenantRole(*req.Role) {
			return nil, errors.BadRequest("Invalid role")
		}
		if id == user.ID {
			return nil, errors.BadRequest("You cannot change your own role")
		}
		updates["role"] = *req.Role
	}
	if req.IsActive != nil && *req.IsActive != member.IsActive {
		if id == user.ID && !*req.IsActive {
			return nil, errors.BadRequest("You cannot deactivate your own account")
		}
		updates["is_active"] = *req.IsActive
	}
	if len(updates) == 0 {
		return member, nil
	}

	updates["updated_at"] = time.Now().UTC()
	if err := s.users.UpdateUser(ctx, id, updates); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	glog.Infof("User %s updated in tenant %s", id, tenantID)
	s.auditor.Record(ctx, auditEntry(user, constants.AuditUpdate, constants.ResourceUser, id, updates,
		map[string]interface{}{"previousRole": string(member.Role), "previousActive": member.IsActive}))
	return s.users.FindByIDForTenant(ctx, tenantID, id)
}

func (s *TeamService) authorize(user *auth.UserSession) (string, error) {
	tenantID, err := requireTenant(user)
	if err != nil {
		return "", err
	}
	if err := requireRole(user, constants.TenantAdministerRoles, "Only tenant administrators can manage users"); err != nil {
		return "", err
	}
	return tenantID, nil
}

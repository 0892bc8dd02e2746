package bootstrap

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/golang/glog"

	"github.com/nexuscrm/tenantcrm/internal/domain/models"
	"github.com/nexuscrm/tenantcrm/pkg/auth"
	"github.com/nexuscrm/tenantcrm/pkg/constants"
	"github.com/nexuscrm/tenantcrm/pkg/utils"
)

//go:embed plans.json
var plansJSON []byte

// PlanStore is the part of the plan repository the seeder writes through
type PlanStore interface {
	Upsert(ctx context.Context, p *models.Plan) error
}

// UserStore is the part of the user repository the admin seeder needs
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, u *models.User) error
}

type seedPlan struct {
	Name        string              `json:"name"`
	DisplayName string              `json:"displayName"`
	Description string              `json:"description"`
	Price       int64               `json:"price"`
	YearlyPrice int64               `json:"yearlyPrice"`
	SortOrder   int                 `json:"sortOrder"`
	Features    models.PlanFeatures `json:"features"`
}

// DefaultPlans returns the built-in plan catalogue
func DefaultPlans() ([]models.Plan, error) {
	var data struct {
		Plans []seedPlan `json:"plans"`
	}
	if err := json.Unmarshal(plansJSON, &data); err != nil {
		return nil, fmt.Errorf("failed to parse plans.json: %w", err)
	}

	plans := make([]models.Plan, len(data.Plans))
	for i, p := range data.Plans {
		desc := p.Description
		plans[i] = models.Plan{
			ID:          utils.GenerateID(),
			Name:        p.Name,
			DisplayName: p.DisplayName,
			Description: &desc,
			Price:       p.Price,
			YearlyPrice: p.YearlyPrice,
			Features:    p.Features,
			IsActive:    true,
			SortOrder:   p.SortOrder,
		}
	}
	return plans, nil
}

// SeedPlans upserts the built-in plans by name. Existing rows keep their id.
func SeedPlans(ctx context.Context, store PlanStore) error {
	glog.Info("Seeding subscription plans...")

	plans, err := DefaultPlans()
	if err != nil {
		return err
	}
	for i := range plans {
		if err := store.Upsert(ctx, &plans[i]); err != nil {
			return fmt.Errorf("failed to upsert plan %s: %w", plans[i].Name, err)
		}
	}
	glog.Infof("Ensured %d subscription plans", len(plans))
	return nil
}

// EnsureSuperAdmin creates the platform administrator unless the email is
// already registered. It returns true when a user was created.
func EnsureSuperAdmin(ctx context.Context, users UserStore, email, password, name string) (bool, error) {
	email = auth.NormalizeEmail(email)
	if email == "" || password == "" {
		return false, nil
	}
	if !auth.IsValidEmail(email) {
		return false, fmt.Errorf("invalid admin email %q", email)
	}
	if err := auth.ValidatePasswordStrength(password); err != nil {
		return false, fmt.Errorf("admin password rejected: %w", err)
	}

	existing, err := users.FindByEmail(ctx, email)
	if err != nil {
		return false, fmt.Errorf("failed to look up admin: %w", err)
	}
	if existing != nil {
		if existing.Role != constants.RoleSuperAdmin {
			glog.Warningf("User %s exists with role %s; not promoting", email, existing.Role)
		}
		return false, nil
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return false, fmt.Errorf("failed to hash admin password: %w", err)
	}
	if strings.TrimSpace(name) == "" {
		name = "Super Admin"
	}
	user := &models.User{
		ID:       utils.GenerateID(),
		Name:     strings.TrimSpace(name),
		Email:    email,
		Password: hash,
		Role:     constants.RoleSuperAdmin,
		IsActive: true,
	}
	if err := users.Create(ctx, user); err != nil {
		return false, fmt.Errorf("failed to create admin: %w", err)
	}
	glog.Infof("Created super admin %s", email)
	return true, nil
}

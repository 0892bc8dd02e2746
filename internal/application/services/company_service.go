package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/nexuscrm/tenantcrm/internal/domain/models"
	"github.com/nexuscrm/tenantcrm/internal/domain/ports"
	"github.com/nexuscrm/tenantcrm/internal/infrastructure/persistence"
	"github.com/nexuscrm/tenantcrm/pkg/auth"
	"github.com/nexuscrm/tenantcrm/pkg/constants"
	"github.com/nexuscrm/tenantcrm/pkg/errors"
	"github.com/nexuscrm/tenantcrm/pkg/utils"
)

// CompanyService implements company CRUD
type CompanyService struct {
	companies *persistence.CompanyRepository
	limits    ports.LimitChecker
	auditor   ports.Auditor
}

func NewCompanyService(companies *persistence.CompanyRepository, limits ports.LimitChecker, auditor ports.Auditor) *CompanyService {
	return &CompanyService{companies: companies, limits: limits, auditor: auditor}
}

// CompanyInput is the create and update payload. Revenue is in currency units.
type CompanyInput struct {
	Name        *string  `json:"name"`
	Industry    *string  `json:"industry"`
	Website     *string  `json:"website"`
	Phone       *string  `json:"phone"`
	Email       *string  `json:"email"`
	Address     *string  `json:"address"`
	Size        *string  `json:"size"`
	Revenue     *float64 `json:"revenue"`
	Description *string  `json:"description"`
}

// List returns a page of companies with contact and deal counts
func (s *CompanyService) List(ctx context.Context, user *auth.UserSession, search string, page utils.Pagination) ([]models.Company, utils.Pagination, error) {
	tenantID, err := requireTenant(user)
	if err != nil {
		return nil, page, err
	}
	companies, total, err := s.companies.List(ctx, persistence.ListFilter{
		TenantID: tenantID,
		Search:   strings.TrimSpace(search),
		Page:     page.Page,
		Limit:    page.Limit,
	})
	if err != nil {
		return nil, page, fmt.Errorf("failed to list companies: %w", err)
	}
	return companies, page.WithTotal(total), nil
}

// Create stores a company after the plan check
func (s *CompanyService) Create(ctx context.Context, user *auth.UserSession, in CompanyInput) (*models.Company, error) {
	tenantID, err := requireTenant(user)
	if err != nil {
		return nil, err
	}
	if err := s.limits.EnsureWithinLimit(ctx, tenantID, constants.LimitCompanies, 1); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(derefString(in.Name))
	if name == "" {
		return nil, errors.BadRequest("Company name is required")
	}
	if err := s.checkName(ctx, tenantID, name, ""); err != nil {
		return nil, err
	}

	company := &models.Company{
		ID:          utils.GenerateID(),
		TenantID:    tenantID,
		Name:        name,
		Industry:    emptyToNil(in.Industry),
		Website:     emptyToNil(in.Website),
		Phone:       emptyToNil(in.Phone),
		Email:       emptyToNil(in.Email),
		Address:     emptyToNil(in.Address),
		Size:        emptyToNil(in.Size),
		Revenue:     revenueCents(in.Revenue),
		Description: emptyToNil(in.Description),
	}
	if err := s.companies.Create(ctx, company); err != nil {
		return nil, fmt.Errorf("failed to create company: %w", err)
	}
	s.auditor.Record(ctx, auditEntry(user, constants.AuditCreate, constants.ResourceCompany, company.ID,
		map[string]interface{}{"name": company.Name}, nil))
	return company, nil
}

// Get returns one company of the caller's tenant
func (s *CompanyService) Get(ctx context.Context, user *auth.UserSession, id string) (*models.Company, error) {
	tenantID, err := requireTenant(user)
	if err != nil {
		return nil, err
	}
	company, err := s.companies.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load company: %w", err)
	}
	if company == nil {
		return nil, errors.NewNotFoundError("Company", id)
	}
	return company, nil
}

// Update applies a partial update
func (s *CompanyService) Update(ctx context.Context, user *auth.UserSession, id string, in CompanyInput) (*models.Company, error) {
	tenantID, err := requireTenant(user)
	if err != nil {
		return nil, err
	}
	found, err := s.companies.ExistsInTenant(ctx, tenantID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load company: %w", err)
	}
	if !found {
		return nil, errors.NewNotFoundError("Company", id)
	}

	fields := map[string]interface{}{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, errors.BadRequest("Company name is required")
		}
		if err := s.checkName(ctx, tenantID, name, id); err != nil {
			return nil, err
		}
		fields["name"] = name
	}
	for column, v := range map[string]*string{
		"industry":    in.Industry,
		"website":     in.Website,
		"phone":       in.Phone,
		"email":       in.Email,
		"address":     in.Address,
		"size":        in.Size,
		"description": in.Description,
	} {
		if v != nil {
			fields[column] = emptyToNil(v)
		}
	}
	if in.Revenue != nil {
		fields["revenue"] = *revenueCents(in.Revenue)
	}

	if err := s.companies.Update(ctx, tenantID, id, fields); err != nil {
		return nil, fmt.Errorf("failed to update company: %w", err)
	}
	s.auditor.Record(ctx, auditEntry(user, constants.AuditUpdate, constants.ResourceCompany, id, nil,
		map[string]interface{}{"fields": len(fields)}))
	return s.Get(ctx, user, id)
}

// Delete removes the company and detaches its contacts, deals and activities
func (s *CompanyService) Delete(ctx context.Context, user *auth.UserSession, id string) error {
	tenantID, err := requireTenant(user)
	if err != nil {
		return err
	}
	found, err := s.companies.ExistsInTenant(ctx, tenantID, id)
	if err != nil {
		return fmt.Errorf("failed to load company: %w", err)
	}
	if !found {
		return errors.NewNotFoundError("Company", id)
	}
	if err := s.companies.Delete(ctx, tenantID, id); err != nil {
		return fmt.Errorf("failed to delete company: %w", err)
	}
	s.auditor.Record(ctx, auditEntry(user, constants.AuditDelete, constants.ResourceCompany, id, nil, nil))
	return nil
}

func (s *CompanyService) checkName(ctx context.Context, tenantID, name, excludeID string) error {
	taken, err := s.companies.NameExists(ctx, tenantID, name, excludeID)
	if err != nil {
		return fmt.Errorf("failed to check company name: %w", err)
	}
	if taken {
		return errors.BadRequest("A company with this name already exists")
	}
	return nil
}

func revenueCents(v *float64) *int64 {
	if v == nil {
		return nil
	}
	cents := utils.ToCents(*v)
	return &cents
}

package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nexuscrm/tenantcrm/internal/domain/models"
	"github.com/nexuscrm/tenantcrm/internal/domain/ports"
	"github.com/nexuscrm/tenantcrm/internal/infrastructure/persistence"
	"github.com/nexuscrm/tenantcrm/pkg/auth"
	"github.com/nexuscrm/tenantcrm/pkg/constants"
	"github.com/nexuscrm/tenantcrm/pkg/errors"
	"github.com/nexuscrm/tenantcrm/pkg/utils"
)

// maxSlugCopies bounds the "-copy-N" search when duplicating
const maxSlugCopies = 1000

var pageStatuses = []string{constants.PageStatusDraft, constants.PageStatusPublished, constants.PageStatusArchived}

// LandingPageService manages hosted pages and serves published ones publicly
type LandingPageService struct {
	pages   *persistence.LandingPageRepository
	auditor ports.Auditor
}

func NewLandingPageService(pages *persistence.LandingPageRepository, auditor ports.Auditor) *LandingPageService {
	return &LandingPageService{pages: pages, auditor: auditor}
}

// LandingPageInput is the create and partial update payload
type LandingPageInput struct {
	Name            *string        `json:"name"`
	Slug            *string        `json:"slug"`
	Description     *string        `json:"description"`
	Content         *[]interface{} `json:"content"`
	CSS             *string        `json:"css"`
	JavaScript      *string        `json:"javascript"`
	MetaTitle       *string        `json:"metaTitle"`
	MetaDescription *string        `json:"metaDescription"`
	MetaKeywords    *string        `json:"metaKeywords"`
	CustomDomain    *string        `json:"customDomain"`
	Status          *string        `json:"status"`
}

// List returns a page of the tenant's landing pages
func (s *LandingPageService) List(ctx context.Context, user *auth.UserSession, search, status string, page utils.Pagination) ([]models.LandingPage, utils.Pagination, error) {
	tenantID, err := requireTenant(user)
	if err != nil {
		return nil, page, err
	}
	pages, total, err := s.pages.List(ctx, persistence.PageFilter{
		TenantID: tenantID,
		Search:   strings.TrimSpace(search),
		Status:   allFilter(status),
		Page:     page.Page,
		Limit:    page.Limit,
	})
	if err != nil {
		return nil, page, fmt.Errorf("failed to list landing pages: %w", err)
	}
	return pages, page.WithTotal(total), nil
}

// Create stores a DRAFT page. Slugs are unique per tenant, custom domains globally.
func (s *LandingPageService) Create(ctx context.Context, user *auth.UserSession, in LandingPageInput) (*models.LandingPage, error) {
	tenantID, err := requireTenant(user)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(derefString(in.Name))
	slug := utils.Slugify(derefString(in.Slug))
	if name == "" || slug == "" {
		return nil, errors.BadRequest("Page name and slug are required")
	}
	if err := s.checkSlug(ctx, tenantID, slug, ""); err != nil {
		return nil, err
	}
	domain := normalizeDomain(in.CustomDomain)
	if err := s.checkDomain(ctx, domain, ""); err != nil {
		return nil, err
	}
	status := constants.PageStatusDraft
	if in.Status != nil && *in.Status != "" {
		if !constants.Contains(pageStatuses, *in.Status) {
			return nil, errors.BadRequest("Invalid page status")
		}
		status = *in.Status
	}

	now := time.Now().UTC()
	p := &models.LandingPage{
		ID:              utils.GenerateID(),
		TenantID:        tenantID,
		Name:            name,
		Slug:            slug,
		Description:     emptyToNil(in.Description),
		Content:         []interface{}{},
		CSS:             emptyToNil(in.CSS),
		JavaScript:      emptyToNil(in.JavaScript),
		MetaTitle:       emptyToNil(in.MetaTitle),
		MetaDescription: emptyToNil(in.MetaDescription),
		MetaKeywords:    emptyToNil(in.MetaKeywords),
		CustomDomain:    domain,
		Status:          status,
		CreatedBy:       &user.ID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if in.Content != nil {
		p.Content = *in.Content
	}
	if err := s.pages.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create landing page: %w", err)
	}
	s.auditor.Record(ctx, auditEntry(user, constants.AuditCreate, constants.ResourceLandingPage, p.ID,
		map[string]interface{}{"name": p.Name, "slug": p.Slug}, nil))
	return p, nil
}

// Get returns a tenant page
func (s *LandingPageService) Get(ctx context.Context, user *auth.UserSession, id string) (*models.LandingPage, error) {
	tenantID, err := requireTenant(user)
	if err != nil {
		return nil, err
	}
	return s.load(ctx, tenantID, id)
}

// Update applies a partial update, re-checking slug and domain uniqueness
func (s *LandingPageService) Update(ctx context.Context, user *auth.UserSession, id string, in LandingPageInput) (*models.LandingPage, error) {
	tenantID, err := requireTenant(user)
	if err != nil {
		return nil, err
	}
	if _, err := s.load(ctx, tenantID, id); err != nil {
		return nil, err
	}

	fields := map[string]interface{}{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, errors.BadRequest("Page name is required")
		}
		fields["name"] = name
	}
	if in.Slug != nil {
		slug := utils.Slugify(*in.Slug)
		if slug == "" {
			return nil, errors.BadRequest("Page slug is required")
		}
		if err := s.checkSlug(ctx, tenantID, slug, id); err != nil {
			return nil, err
		}
		fields["slug"] = slug
	}
	if in.CustomDomain != nil {
		domain := normalizeDomain(in.CustomDomain)
		if err := s.checkDomain(ctx, domain, id); err != nil {
			return nil, err
		}
		fields["custom_domain"] = domain
	}
	if in.Status != nil {
		if !constants.Contains(pageStatuses, *in.Status) {
			return nil, errors.BadRequest("Invalid page status")
		}
		fields["status"] = *in.Status
	}
	if in.Content != nil {
		fields["content"] = persistence.JSON(*in.Content)
	}
	for column, v := range map[string]*string{
		"description":      in.Description,
		"css":              in.CSS,
		"javascript":       in.JavaScript,
		"meta_title":       in.MetaTitle,
		"meta_description": in.MetaDescription,
		"meta_keywords":    in.MetaKeywords,
	} {
		if v != nil {
			fields[column] = emptyToNil(v)
		}
	}

	if len(fields) > 0 {
		fields["updated_at"] = time.Now().UTC()
		if err := s.pages.Update(ctx, tenantID, id, fields); err != nil {
			return nil, fmt.Errorf("failed to update landing page: %w", err)
		}
		s.auditor.Record(ctx, auditEntry(user, constants.AuditUpdate, constants.ResourceLandingPage, id, nil,
			map[string]interface{}{"changedFields": mapKeys(fields)}))
	}
	return s.load(ctx, tenantID, id)
}

// Delete removes a page
func (s *LandingPageService) Delete(ctx context.Context, user *auth.UserSession, id string) error {
	tenantID, err := requireTenant(user)
	if err != nil {
		return err
	}
	p, err := s.load(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if err := s.pages.Delete(ctx, tenantID, id); err != nil {
		return fmt.Errorf("failed to delete landing page: %w", err)
	}
	s.auditor.Record(ctx, auditEntry(user, constants.AuditDelete, constants.ResourceLandingPage, id, nil,
		map[string]interface{}{"name": p.Name, "slug": p.Slug}))
	return nil
}

// Publish marks a page PUBLISHED and stamps who published it
func (s *LandingPageService) Publish(ctx context.Context, user *auth.UserSession, id string) (*models.LandingPage, error) {
	tenantID, err := requireTenant(user)
	if err != nil {
		return nil, err
	}
	p, err := s.load(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if err := s.pages.Update(ctx, tenantID, id, map[string]interface{}{
		"status":       constants.PageStatusPublished,
		"published_at": now,
		"published_by": user.ID,
		"updated_at":   now,
	}); err != nil {
		return nil, fmt.Errorf("failed to publish landing page: %w", err)
	}
	s.auditor.Record(ctx, auditEntry(user, constants.AuditPublish, constants.ResourceLandingPage, id, nil,
		map[string]interface{}{"pageName": p.Name, "pageSlug": p.Slug, "previousStatus": p.Status}))
	return s.load(ctx, tenantID, id)
}

// Duplicate copies a page as a DRAFT under the first free "-copy" slug.
// The custom domain is not copied.
func (s *LandingPageService) Duplicate(ctx context.Context, user *auth.UserSession, id string) (*models.LandingPage, error) {
	tenantID, err := requireTenant(user)
	if err != nil {
		return nil, err
	}
	src, err := s.load(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	slug, err := s.freeCopySlug(ctx, tenantID, src.Slug)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	dup := *src
	dup.ID = utils.GenerateID()
	dup.Name = src.Name + " (Copy)"
	dup.Slug = slug
	dup.CustomDomain = nil
	dup.Status = constants.PageStatusDraft
	dup.PublishedAt = nil
	dup.PublishedBy = nil
	dup.CreatedBy = &user.ID
	dup.CreatedAt = now
	dup.UpdatedAt = now
	if err := s.pages.Create(ctx, &dup); err != nil {
		return nil, fmt.Errorf("failed to duplicate landing page: %w", err)
	}
	s.auditor.Record(ctx, auditEntry(user, constants.AuditDuplicate, constants.ResourceLandingPage, dup.ID, nil,
		map[string]interface{}{"sourcePageId": src.ID, "slug": dup.Slug}))
	return &dup, nil
}

// freeCopySlug tries <slug>-copy, then <slug>-copy-2, -copy-3 and so on
func (s *LandingPageService) freeCopySlug(ctx context.Context, tenantID, slug string) (string, error) {
	base := slug + "-copy"
	candidate := base
	for n := 2; n <= maxSlugCopies+1; n++ {
		taken, err := s.pages.SlugExists(ctx, tenantID, candidate, "")
		if err != nil {
			return "", fmt.Errorf("failed to check slug: %w", err)
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, n)
	}
	return "", errors.BadRequest("Too many copies of this page")
}

// Public returns a PUBLISHED page of the tenant identified by slug
func (s *LandingPageService) Public(ctx context.Context, tenantSlug, slug string) (*models.LandingPage, error) {
	p, err := s.pages.GetPublished(ctx, tenantSlug, slug)
	if err != nil {
		return nil, fmt.Errorf("failed to load landing page: %w", err)
	}
	if p == nil {
		return nil, errors.NewNotFoundError("Page", "")
	}
	return p, nil
}

func (s *LandingPageService) load(ctx context.Context, tenantID, id string) (*models.LandingPage, error) {
	p, err := s.pages.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load landing page: %w", err)
	}
	if p == nil {
		return nil, errors.NewNotFoundError("Landing page", id)
	}
	return p, nil
}

func (s *LandingPageService) checkSlug(ctx context.Context, tenantID, slug, excludeID string) error {
	taken, err := s.pages.SlugExists(ctx, tenantID, slug, excludeID)
	if err != nil {
		return fmt.Errorf("failed to check slug: %w", err)
	}
	if taken {
		return errors.BadRequest("A page with this slug already exists")
	}
	return nil
}

func (s *LandingPageService) checkDomain(ctx context.Context, domain *string, excludeID string) error {
	if domain == nil {
		return nil
	}
	taken, err := s.pages.DomainExists(ctx, *domain, excludeID)
	if err != nil {
		return fmt.Errorf("failed to check domain: %w", err)
	}
	if taken {
		return errors.BadRequest("This domain is already in use")
	}
	return nil
}

func normalizeDomain(d *string) *string {
	if d == nil {
		return nil
	}
	return stringPtr(strings.ToLower(strings.TrimSpace(*d)))
}

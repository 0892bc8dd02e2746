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

// newDefaultPipeline builds the contact pipeline every tenant starts with
func newDefaultPipeline(tenantID string) *models.Pipeline {
	p := &models.Pipeline{
		ID:        utils.GenerateID(),
		TenantID:  tenantID,
		Name:      constants.DefaultPipelineName,
		Type:      constants.PipelineTypeContact,
		IsDefault: true,
	}
	for i, st := range constants.DefaultContactStages {
		p.Stages = append(p.Stages, models.ContactStage{
			ID:         utils.GenerateID(),
			TenantID:   tenantID,
			PipelineID: p.ID,
			Name:       st.Name,
			Color:      st.Color,
			Order:      i + 1,
			IsDefault:  i == 0,
		})
	}
	return p
}

// PipelineService manages contact pipelines and moves contacts between stages
type PipelineService struct {
	pipelines  *persistence.PipelineRepository
	contacts   *persistence.ContactRepository
	activities *persistence.ActivityRepository
	events     ports.EventPublisher
	auditor    ports.Auditor
}

func NewPipelineService(pipelines *persistence.PipelineRepository, contacts *persistence.ContactRepository,
	activities *persistence.ActivityRepository, events ports.EventPublisher, auditor ports.Auditor) *PipelineService {
	return &PipelineService{
		pipelines:  pipelines,
		contacts:   contacts,
		activities: activities,
		events:     events,
		auditor:    auditor,
	}
}

// EnsureDefault returns the tenant's default contact pipeline, creating it when missing
func (s *PipelineService) EnsureDefault(ctx context.Context, tenantID string) (*models.Pipeline, error) {
	p, err := s.pipelines.GetDefault(ctx, tenantID, constants.PipelineTypeContact)
	if err != nil {
		return nil, fmt.Errorf("failed to load pipeline: %w", err)
	}
	if p != nil {
		return p, nil
	}
	p = newDefaultPipeline(tenantID)
	if err := s.pipelines.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create default pipeline: %w", err)
	}
	return p, nil
}

// Pipeline returns the default pipeline with the contacts of every stage
func (s *PipelineService) Pipeline(ctx context.Context, user *auth.UserSession) (*models.Pipeline, error) {
	tenantID, err := requireTenant(user)
	if err != nil {
		return nil, err
	}
	p, err := s.EnsureDefault(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(p.Stages))
	for i, st := range p.Stages {
		ids[i] = st.ID
	}
	byStage, err := s.contacts.ListByStages(ctx, tenantID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load pipeline contacts: %w", err)
	}
	for i := range p.Stages {
		p.Stages[i].Contacts = byStage[p.Stages[i].ID]
		if p.Stages[i].Contacts == nil {
			p.Stages[i].Contacts = []models.Contact{}
		}
		p.Stages[i].ContactCount = int64(len(p.Stages[i].Contacts))
	}
	return p, nil
}

// StageInput describes one stage of a custom pipeline
type StageInput struct {
	Name        string  `json:"name"`
	Color       string  `json:"color"`
	Description *string `json:"description"`
}

// PipelineInput is the payload of POST /api/contacts/pipeline
type PipelineInput struct {
	Name   string       `json:"name"`
	Stages []StageInput `json:"stages"`
}

// CreatePipeline stores a custom contact pipeline
func (s *PipelineService) CreatePipeline(ctx context.Context, user *auth.UserSession, in PipelineInput) (*models.Pipeline, error) {
	tenantID, err := requireTenant(user)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, errors.BadRequest("Pipeline name is required")
	}
	if len(in.Stages) == 0 {
		return nil, errors.BadRequest("At least one stage is required")
	}

	p := &models.Pipeline{
		ID:       utils.GenerateID(),
		TenantID: tenantID,
		Name:     name,
		Type:     constants.PipelineTypeContact,
	}
	for i, st := range in.Stages {
		stageName := strings.TrimSpace(st.Name)
		if stageName == "" {
			return nil, errors.BadRequest("Stage %d needs a name", i+1)
		}
		color := st.Color
		if color == "" {
			color = constants.DefaultStageColor
		}
		p.Stages = append(p.Stages, models.ContactStage{
			ID:          utils.GenerateID(),
			TenantID:    tenantID,
			PipelineID:  p.ID,
			Name:        stageName,
			Description: st.Description,
			Color:       color,
			Order:       i + 1,
			IsDefault:   i == 0,
		})
	}
	if err := s.pipelines.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}
	return p, nil
}

// MoveResult is the response of a single-contact stage move
type MoveResult struct {
	Success bool                 `json:"success"`
	Contact *models.Contact      `json:"contact"`
	Stage   *models.ContactStage `json:"stage"`
}

// MoveStage moves one contact into a stage and records a note
func (s *PipelineService) MoveStage(ctx context.Context, user *auth.UserSession, contactID, stageID string) (*MoveResult, error) {
	tenantID, err := requireTenant(user)
	if err != nil {
		return nil, err
	}
	if contactID == "" || stageID == "" {
		return nil, errors.BadRequest("Contact ID and stage ID are required")
	}

	contact, err := s.contacts.GetByID(ctx, tenantID, contactID)
	if err != nil {
		return nil, fmt.Errorf("failed to load contact: %w", err)
	}
	if contact == nil {
		return nil, errors.NewNotFoundError("Contact", contactID)
	}
	stage, err := s.pipelines.GetStage(ctx, tenantID, stageID)
	if err != nil {
		return nil, fmt.Errorf("failed to load stage: %w", err)
	}
	if stage == nil {
		return nil, errors.NewNotFoundError("Stage", stageID)
	}

	now := time.Now().UTC()
	previousStage := derefString(contact.StageID)
	if err := s.contacts.Update(ctx, tenantID, contactID, map[string]interface{}{
		"stage_id":      stageID,
		"last_activity": now,
	}); err != nil {
		return nil, fmt.Errorf("failed to move contact: %w", err)
	}
	contact.StageID = &stageID
	contact.LastActivity = &now
	contact.Stage = stage

	s.recordStageNote(ctx, user, tenantID, contactID, "Contact moved to new stage",
		fmt.Sprintf("Moved to stage %q", stage.Name))
	if previousStage != stageID {
		data := contactEventData(contact)
		data["previousStageId"] = previousStage
		data["newStageId"] = stageID
		s.events.PublishAsync(contactEvent(constants.TriggerContactStageChanged, user, contact, data))
	}
	return &MoveResult{Success: true, Contact: contact, Stage: stage}, nil
}

// BulkStageResult is the response of add-to-stage
type BulkStageResult struct {
	Success      bool                 `json:"success"`
	UpdatedCount int64                `json:"updatedCount"`
	Stage        *models.ContactStage `json:"stage"`
	ContactIDs   []string             `json:"contactIds"`
}

// AddToStage moves many contacts into a stage with one statement
func (s *PipelineService) AddToStage(ctx context.Context, user *auth.UserSession, contactIDs []string, stageID string) (*BulkStageResult, error) {
	tenantID, err := requireTenant(user)
	if err != nil {
		return nil, err
	}
	if len(contactIDs) == 0 || stageID == "" {
		return nil, errors.BadRequest("Contact IDs and stage ID are required")
	}

	stage, err := s.pipelines.GetStage(ctx, tenantID, stageID)
	if err != nil {
		return nil, fmt.Errorf("failed to load stage: %w", err)
	}
	if stage == nil {
		return nil, errors.NewNotFoundError("Stage", stageID)
	}
	owned, err := s.contacts.CountOwned(ctx, tenantID, contactIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to verify contacts: %w", err)
	}
	if owned != int64(len(contactIDs)) {
		return nil, errors.NewNotFoundError("Some contacts", "")
	}

	n, err := s.contacts.BulkSetStage(ctx, tenantID, contactIDs, stageID, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to move contacts: %w", err)
	}
	return &BulkStageResult{Success: true, UpdatedCount: n, Stage: stage, ContactIDs: contactIDs}, nil
}

// PipelineStats summarises the contact pipeline
type PipelineStats struct {
	TotalContacts     int64                    `json:"totalContacts"`
	TotalStages       int64                    `json:"totalStages"`
	RecentActivity    int64                    `json:"recentActivity"`
	StageDistribution []persistence.StageCount `json:"stageDistribution"`
}

// Stats counts contacts, stages, recently active contacts and per-stage distribution
func (s *PipelineService) Stats(ctx context.Context, user *auth.UserSession) (*PipelineStats, error) {
	tenantID, err := requireTenant(user)
	if err != nil {
		return nil, err
	}
	total, err := s.contacts.CountByTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to count contacts: %w", err)
	}
	stages, err := s.pipelines.CountStages(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to count stages: %w", err)
	}
	recent, err := s.contacts.CountActiveSince(ctx, tenantID, time.Now().UTC().AddDate(0, 0, -7))
	if err != nil {
		return nil, fmt.Errorf("failed to count recent activity: %w", err)
	}
	dist, err := s.pipelines.StageDistribution(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load stage distribution: %w", err)
	}
	return &PipelineStats{TotalContacts: total, TotalStages: stages, RecentActivity: recent, StageDistribution: dist}, nil
}

// recordStageNote writes a completed NOTE activity. Failures are ignored by callers.
func (s *PipelineService) recordStageNote(ctx context.Context, user *auth.UserSession, tenantID, contactID, title, description string) {
	now := time.Now().UTC()
	note := &models.Activity{
		ID:          utils.GenerateID(),
		TenantID:    tenantID,
		Type:        constants.ActivityNote,
		Title:       title,
		Description: &description,
		IsCompleted: true,
		CompletedAt: &now,
		ContactID:   &contactID,
	}
	if user != nil {
		note.UserID = &user.ID
	}
	if err := s.activities.Create(ctx, note); err != nil {
		logBestEffort("stage note", contactID, err)
	}
}

package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nexuscrm/tenantcrm/internal/domain/models"
	"github.com/nexuscrm/tenantcrm/pkg/constants"
)

const stageColumns = "s.id, s.tenant_id, s.pipeline_id, s.name, s.description, s.color, s.sort_order, s.is_default, s.created_at"

// PipelineRepository persists contact pipelines and their stages
type PipelineRepository struct {
	db *sql.DB
}

func NewPipelineRepository(db *sql.DB) *PipelineRepository {
	return &PipelineRepository{db: db}
}

func scanStage(s rowScanner, extra ...interface{}) (*models.ContactStage, error) {
	var st models.ContactStage
	var desc sql.NullString
	dest := []interface{}{&st.ID, &st.TenantID, &st.PipelineID, &st.Name, &desc, &st.Color, &st.Order, &st.IsDefault, &st.CreatedAt}
	if err := s.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	st.Description = strPtr(desc)
	return &st, nil
}

// Create inserts the pipeline and its stages
func (r *PipelineRepository) Create(ctx context.Context, p *models.Pipeline) error {
	query := fmt.Sprintf("INSERT INTO %s (id, tenant_id, name, type, is_default) VALUES (?, ?, ?, ?, ?)", constants.TablePipeline)
	if _, err := conn(ctx, r.db).ExecContext(ctx, query, p.ID, p.TenantID, p.Name, p.Type, p.IsDefault); err != nil {
		return err
	}
	stageQuery := fmt.Sprintf(`INSERT INTO %s (id, tenant_id, pipeline_id, name, description, color, sort_order, is_default)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, constants.TableContactStage)
	for _, s := range p.Stages {
		if _, err := conn(ctx, r.db).ExecContext(ctx, stageQuery, s.ID, p.TenantID, p.ID, s.Name,
			nullable(s.Description), s.Color, s.Order, s.IsDefault); err != nil {
			return err
		}
	}
	return nil
}

// GetDefault returns the tenant's default pipeline of a type, with stages, or nil
func (r *PipelineRepository) GetDefault(ctx context.Context, tenantID, pipelineType string) (*models.Pipeline, error) {
	query := fmt.Sprintf(`SELECT id, tenant_id, name, type, is_default, created_at FROM %s
		WHERE tenant_id = ? AND type = ? AND is_default = TRUE ORDER BY created_at ASC LIMIT 1`, constants.TablePipeline)
	var p models.Pipeline
	err := conn(ctx, r.db).QueryRowContext(ctx, query, tenantID, pipelineType).
		Scan(&p.ID, &p.TenantID, &p.Name, &p.Type, &p.IsDefault, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if p.Stages, err = r.ListStages(ctx, tenantID, p.ID); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListStages returns the stages of a pipeline in order. An empty pipelineID
// returns every stage of the tenant.
func (r *PipelineRepository) ListStages(ctx context.Context, tenantID, pipelineID string) ([]models.ContactStage, error) {
	query := fmt.Sprintf("SELECT %s FROM %s s WHERE s.tenant_id = ?", stageColumns, constants.TableContactStage)
	args := []interface{}{tenantID}
	if pipelineID != "" {
		query += " AND s.pipeline_id = ?"
		args = append(args, pipelineID)
	}
	query += " ORDER BY s.sort_order ASC"

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stages := []models.ContactStage{}
	for rows.Next() {
		s, err := scanStage(rows)
		if err != nil {
			return nil, err
		}
		stages = append(stages, *s)
	}
	return stages, rows.Err()
}

// GetStage returns the tenant's stage or nil
func (r *PipelineRepository) GetStage(ctx context.Context, tenantID, stageID string) (*models.ContactStage, error) {
	query := fmt.Sprintf("SELECT %s FROM %s s WHERE s.id = ? AND s.tenant_id = ?", stageColumns, constants.TableContactStage)
	s, err := scanStage(conn(ctx, r.db).QueryRowContext(ctx, query, stageID, tenantID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return s, err
}

// CountStages counts the tenant's stages
func (r *PipelineRepository) CountStages(ctx context.Context, tenantID string) (int64, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE tenant_id = ?", constants.TableContactStage)
	return count(ctx, conn(ctx, r.db), query, tenantID)
}

// StageCount is a stage with the number of contacts in it
type StageCount struct {
	StageID   string `json:"stageId"`
	StageName string `json:"stageName"`
	Color     string `json:"color"`
	Count     int64  `json:"count"`
}

// StageDistribution counts contacts per stage of the tenant
func (r *PipelineRepository) StageDistribution(ctx context.Context, tenantID string) ([]StageCount, error) {
	query := fmt.Sprintf(`SELECT s.id, s.name, s.color, COUNT(c.id) FROM %s s
		LEFT JOIN %s c ON c.stage_id = s.id AND c.tenant_id = s.tenant_id
		WHERE s.tenant_id = ? GROUP BY s.id, s.name, s.color, s.sort_order ORDER BY s.sort_order ASC`,
		constants.TableContactStage, constants.TableContact)
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []StageCount{}
	for rows.Next() {
		var sc StageCount
		if err := rows.Scan(&sc.StageID, &sc.StageName, &sc.Color, &sc.Count); err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

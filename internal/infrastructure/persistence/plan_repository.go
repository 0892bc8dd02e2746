package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nexuscrm/tenantcrm/internal/domain/models"
	"github.com/nexuscrm/tenantcrm/pkg/constants"
)

const planColumns = "id, name, display_name, description, price, yearly_price, features, is_active, sort_order, created_at, updated_at"

// PlanRepository handles database operations for billing plans
type PlanRepository struct {
	db *sql.DB
}

// NewPlanRepository creates a new PlanRepository
func NewPlanRepository(db *sql.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

func scanPlan(s rowScanner) (*models.Plan, error) {
	var p models.Plan
	var desc sql.NullString
	var features []byte
	if err := s.Scan(&p.ID, &p.Name, &p.DisplayName, &desc, &p.Price, &p.YearlyPrice, &features,
		&p.IsActive, &p.SortOrder, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Description = strPtr(desc)
	p.Features = models.PlanFeatures{}
	if err := decodeJSON(features, &p.Features); err != nil {
		return nil, err
	}
	return &p, nil
}

// List returns plans ordered by sort order
func (r *PlanRepository) List(ctx context.Context, activeOnly bool) ([]models.Plan, error) {
	query := fmt.Sprintf("SELECT %s FROM %s", planColumns, constants.TablePlan)
	if activeOnly {
		query += " WHERE is_active = TRUE"
	}
	query += " ORDER BY sort_order ASC"

	rows, err := conn(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	plans := []models.Plan{}
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, *p)
	}
	return plans, rows.Err()
}

// GetByID returns nil when the plan does not exist
func (r *PlanRepository) GetByID(ctx context.Context, id string) (*models.Plan, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", planColumns, constants.TablePlan)
	p, err := scanPlan(conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

// GetByName looks a plan up by its name (FREE, NORMAL, ...)
func (r *PlanRepository) GetByName(ctx context.Context, name string) (*models.Plan, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE name = ?", planColumns, constants.TablePlan)
	p, err := scanPlan(conn(ctx, r.db).QueryRowContext(ctx, query, name))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

// Create inserts a plan
func (r *PlanRepository) Create(ctx context.Context, p *models.Plan) error {
	query := fmt.Sprintf(`INSERT INTO %s (id, name, display_name, description, price, yearly_price, features, is_active, sort_order)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, constants.TablePlan)
	_, err := conn(ctx, r.db).ExecContext(ctx, query, p.ID, p.Name, p.DisplayName, nullable(p.Description),
		p.Price, p.YearlyPrice, mustJSON(p.Features), p.IsActive, p.SortOrder)
	return err
}

// Upsert inserts a plan or refreshes an existing one with the same name
func (r *PlanRepository) Upsert(ctx context.Context, p *models.Plan) error {
	query := fmt.Sprintf(`INSERT INTO %s (id, name, display_name, description, price, yearly_price, features, is_active, sort_order)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE display_name = VALUES(display_name), description = VALUES(description),
			price = VALUES(price), yearly_price = VALUES(yearly_price), features = VALUES(features),
			sort_order = VALUES(sort_order)`, constants.TablePlan)
	_, err := conn(ctx, r.db).ExecContext(ctx, query, p.ID, p.Name, p.DisplayName, nullable(p.Description),
		p.Price, p.YearlyPrice, mustJSON(p.Features), p.IsActive, p.SortOrder)
	return err
}

// Update overwrites the mutable plan columns
func (r *PlanRepository) Update(ctx context.Context, p *models.Plan) error {
	query := fmt.Sprintf(`UPDATE %s SET display_name = ?, description = ?, price = ?, yearly_price = ?,
		features = ?, is_active = ?, sort_order = ? WHERE id = ?`, constants.TablePlan)
	_, err := conn(ctx, r.db).ExecContext(ctx, query, p.DisplayName, nullable(p.Description), p.Price,
		p.YearlyPrice, mustJSON(p.Features), p.IsActive, p.SortOrder, p.ID)
	return err
}

// Delete removes a plan
func (r *PlanRepository) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = ?", constants.TablePlan)
	_, err := conn(ctx, r.db).ExecContext(ctx, query, id)
	return err
}

// CountTenants returns how many tenants are on the plan
func (r *PlanRepository) CountTenants(ctx context.Context, planID string) (int64, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE plan_id = ?", constants.TableTenant)
	return count(ctx, conn(ctx, r.db), query, planID)
}

// Count returns the number of plans
func (r *PlanRepository) Count(ctx context.Context) (int64, error) {
	return count(ctx, conn(ctx, r.db), fmt.Sprintf("SELECT COUNT(*) FROM %s", constants.TablePlan))
}

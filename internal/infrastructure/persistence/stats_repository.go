package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nexuscrm/tenantcrm/pkg/constants"
)

// StatsRepository runs the aggregate queries behind the dashboards
type StatsRepository struct {
	db *sql.DB
}

func NewStatsRepository(db *sql.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

// CountTenantRows counts a tenant-scoped table. An empty tenantID counts the whole table.
func (r *StatsRepository) CountTenantRows(ctx context.Context, table, tenantID string) (int64, error) {
	if tenantID == "" {
		return count(ctx, conn(ctx, r.db), fmt.Sprintf("SELECT COUNT(*) FROM %s", table))
	}
	return count(ctx, conn(ctx, r.db), fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE tenant_id = ?", table), tenantID)
}

// CountCreatedBetween counts a tenant's rows created in [from, to)
func (r *StatsRepository) CountCreatedBetween(ctx context.Context, table, tenantID string, from, to time.Time) (int64, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE tenant_id = ? AND created_at >= ? AND created_at < ?", table)
	return count(ctx, conn(ctx, r.db), query, tenantID, from, to)
}

// Revenue sums won deal value in cents. A nil from sums all time.
func (r *StatsRepository) Revenue(ctx context.Context, tenantID string, from, to *time.Time) (int64, error) {
	query := fmt.Sprintf("SELECT COALESCE(SUM(value), 0) FROM %s WHERE stage = ?", constants.TableDeal)
	args := []interface{}{constants.DealStageClosedWon}
	if tenantID != "" {
		query += " AND tenant_id = ?"
		args = append(args, tenantID)
	}
	if from != nil && to != nil {
		query += " AND updated_at >= ? AND updated_at < ?"
		args = append(args, *from, *to)
	}
	return count(ctx, conn(ctx, r.db), query, args...)
}

// OverdueActivities counts pending activities scheduled before now
func (r *StatsRepository) OverdueActivities(ctx context.Context, tenantID string, now time.Time) (int64, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE tenant_id = ? AND is_completed = FALSE AND scheduled_at < ?", constants.TableActivity)
	return count(ctx, conn(ctx, r.db), query, tenantID, now)
}

// UpcomingTasks counts pending TASK activities
func (r *StatsRepository) UpcomingTasks(ctx context.Context, tenantID string) (int64, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE tenant_id = ? AND type = ? AND is_completed = FALSE", constants.TableActivity)
	return count(ctx, conn(ctx, r.db), query, tenantID, constants.ActivityTask)
}

// ContactsByStatus groups the tenant's contacts by status
func (r *StatsRepository) ContactsByStatus(ctx context.Context, tenantID string) (map[string]int64, error) {
	query := fmt.Sprintf("SELECT status, COUNT(*) FROM %s WHERE tenant_id = ? GROUP BY status", constants.TableContact)
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]int64{}
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[status] = n
	}
	return out, rows.Err()
}

// StageTotal is the count and summed value of deals in a stage
type StageTotal struct {
	Count int64 `json:"count"`
	Value int64 `json:"value"`
}

// DealsByStage groups the tenant's deals by stage
func (r *StatsRepository) DealsByStage(ctx context.Context, tenantID string) (map[string]StageTotal, error) {
	query := fmt.Sprintf("SELECT stage, COUNT(*), COALESCE(SUM(value), 0) FROM %s WHERE tenant_id = ? GROUP BY stage", constants.TableDeal)
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]StageTotal{}
	for rows.Next() {
		var stage string
		var t StageTotal
		if err := rows.Scan(&stage, &t.Count, &t.Value); err != nil {
			return nil, err
		}
		out[stage] = t
	}
	return out, rows.Err()
}

// TenantsByPlan counts tenants per plan name; tenants without a plan are keyed "NONE"
func (r *StatsRepository) TenantsByPlan(ctx context.Context) (map[string]int64, error) {
	query := fmt.Sprintf(`SELECT COALESCE(p.name, 'NONE'), COUNT(*) FROM %s t LEFT JOIN %s p ON p.id = t.plan_id
		GROUP BY COALESCE(p.name, 'NONE')`, constants.TableTenant, constants.TablePlan)
	rows, err := conn(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]int64{}
	for rows.Next() {
		var name string
		var n int64
		if err := rows.Scan(&name, &n); err != nil {
			return nil, err
		}
		out[name] = n
	}
	return out, rows.Err()
}

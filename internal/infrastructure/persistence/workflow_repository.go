package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nexuscrm/tenantcrm/internal/domain/models"
	"github.com/nexuscrm/tenantcrm/pkg/constants"
	"github.com/nexuscrm/tenantcrm/pkg/query"
)

const workflowColumns = "w.id, w.tenant_id, w.name, w.description, w.trigger_type, w.trigger_config, w.conditions, w.is_active, w.status, w.next_run_at, w.last_run_at, w.is_running, w.created_by, w.created_at, w.updated_at"

const executionColumns = "e.id, e.workflow_id, e.status, e.trigger_type, e.entity_type, e.entity_id, e.trigger_data, e.error, e.started_at, e.completed_at"

// WorkflowRepository persists workflows, their actions and execution history
type WorkflowRepository struct {
	db *sql.DB
}

func NewWorkflowRepository(db *sql.DB) *WorkflowRepository {
	return &WorkflowRepository{db: db}
}

func scanWorkflow(s rowScanner, extra ...interface{}) (*models.Workflow, error) {
	var w models.Workflow
	var desc, createdBy sql.NullString
	var triggerConfig, conditions []byte
	var nextRun, lastRun sql.NullTime
	dest := []interface{}{&w.ID, &w.TenantID, &w.Name, &desc, &w.TriggerType, &triggerConfig, &conditions,
		&w.IsActive, &w.Status, &nextRun, &lastRun, &w.IsRunning, &createdBy, &w.CreatedAt, &w.UpdatedAt}
	if err := s.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	w.Description = strPtr(desc)
	w.CreatedBy = strPtr(createdBy)
	w.NextRunAt = timePtr(nextRun)
	w.LastRunAt = timePtr(lastRun)
	w.TriggerConfig = map[string]interface{}{}
	w.Conditions = map[string]interface{}{}
	if err := decodeJSON(triggerConfig, &w.TriggerConfig); err != nil {
		return nil, err
	}
	if err := decodeJSON(conditions, &w.Conditions); err != nil {
		return nil, err
	}
	w.Actions = []models.WorkflowAction{}
	return &w, nil
}

// Create inserts the workflow and its actions
func (r *WorkflowRepository) Create(ctx context.Context, w *models.Workflow) error {
	query := fmt.Sprintf(`INSERT INTO %s (id, tenant_id, name, description, trigger_type, trigger_config, conditions,
		is_active, status, next_run_at, created_by) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, constants.TableWorkflow)
	if _, err := conn(ctx, r.db).ExecContext(ctx, query, w.ID, w.TenantID, w.Name, nullable(w.Description),
		w.TriggerType, mustJSON(w.TriggerConfig), mustJSON(w.Conditions), w.IsActive, w.Status,
		nullableTime(w.NextRunAt), nullable(w.CreatedBy)); err != nil {
		return err
	}
	return r.insertActions(ctx, w.ID, w.Actions)
}

func (r *WorkflowRepository) insertActions(ctx context.Context, workflowID string, actions []models.WorkflowAction) error {
	query := fmt.Sprintf(`INSERT INTO %s (id, workflow_id, name, type, config, sort_order, delay_minutes)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, constants.TableWorkflowAction)
	for _, a := range actions {
		if _, err := conn(ctx, r.db).ExecContext(ctx, query, a.ID, workflowID, a.Name, a.Type,
			mustJSON(a.Config), a.Order, a.DelayMinutes); err != nil {
			return err
		}
	}
	return nil
}

// ReplaceActions swaps the workflow's action list
func (r *WorkflowRepository) ReplaceActions(ctx context.Context, workflowID string, actions []models.WorkflowAction) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE workflow_id = ?", constants.TableWorkflowAction)
	if _, err := conn(ctx, r.db).ExecContext(ctx, query, workflowID); err != nil {
		return err
	}
	return r.insertActions(ctx, workflowID, actions)
}

// GetActions returns the workflow's actions in execution order
func (r *WorkflowRepository) GetActions(ctx context.Context, workflowID string) ([]models.WorkflowAction, error) {
	query := fmt.Sprintf(`SELECT id, workflow_id, name, type, config, sort_order, delay_minutes
		FROM %s WHERE workflow_id = ? ORDER BY sort_order ASC`, constants.TableWorkflowAction)
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, workflowID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	actions := []models.WorkflowAction{}
	for rows.Next() {
		var a models.WorkflowAction
		var cfg []byte
		if err := rows.Scan(&a.ID, &a.WorkflowID, &a.Name, &a.Type, &cfg, &a.Order, &a.DelayMinutes); err != nil {
			return nil, err
		}
		a.Config = map[string]interface{}{}
		if err := decodeJSON(cfg, &a.Config); err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

// GetByID returns the tenant's workflow with actions, or nil
func (r *WorkflowRepository) GetByID(ctx context.Context, tenantID, id string) (*models.Workflow, error) {
	query := fmt.Sprintf("SELECT %s FROM %s w WHERE w.id = ? AND w.tenant_id = ?", workflowColumns, constants.TableWorkflow)
	w, err := scanWorkflow(conn(ctx, r.db).QueryRowContext(ctx, query, id, tenantID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if w.Actions, err = r.GetActions(ctx, w.ID); err != nil {
		return nil, err
	}
	return w, nil
}

// List returns every workflow of the tenant with actions and run stats
func (r *WorkflowRepository) List(ctx context.Context, tenantID string) ([]models.Workflow, error) {
	query := fmt.Sprintf(`SELECT %s,
		(SELECT COUNT(*) FROM %s e WHERE e.workflow_id = w.id),
		(SELECT COUNT(*) FROM %s e WHERE e.workflow_id = w.id AND e.status = ?),
		(SELECT COUNT(*) FROM %s e WHERE e.workflow_id = w.id AND e.status = ?),
		(SELECT MAX(e.started_at) FROM %s e WHERE e.workflow_id = w.id)
		FROM %s w WHERE w.tenant_id = ? ORDER BY w.created_at DESC`,
		workflowColumns, constants.TableWorkflowExecution, constants.TableWorkflowExecution,
		constants.TableWorkflowExecution, constants.TableWorkflowExecution, constants.TableWorkflow)

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, constants.ExecutionCompleted, constants.ExecutionFailed, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Workflow{}
	for rows.Next() {
		var st models.WorkflowStats
		var lastRun sql.NullTime
		w, err := scanWorkflow(rows, &st.TotalRuns, &st.SuccessfulRuns, &st.FailedRuns, &lastRun)
		if err != nil {
			return nil, err
		}
		st.LastRun = timePtr(lastRun)
		w.Stats = &st
		out = append(out, *w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	for i := range out {
		if out[i].Actions, err = r.GetActions(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ListActiveByTrigger returns the tenant's active workflows for a trigger type
func (r *WorkflowRepository) ListActiveByTrigger(ctx context.Context, tenantID, triggerType string) ([]models.Workflow, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s w WHERE w.tenant_id = ? AND w.trigger_type = ? AND w.is_active = TRUE`,
		workflowColumns, constants.TableWorkflow)
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, tenantID, triggerType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Workflow{}
	for rows.Next() {
		w, err := scanWorkflow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *w)
	}
	return out, rows.Err()
}

// Update applies a partial update of workflow columns
func (r *WorkflowRepository) Update(ctx context.Context, tenantID, id string, fields map[string]interface{}) error {
	b := query.Update(constants.TableWorkflow).SetMap(fields).Where("id = ?", id).Where("tenant_id = ?", tenantID)
	if !b.HasValues() {
		return nil
	}
	q := b.Build()
	_, err := conn(ctx, r.db).ExecContext(ctx, q.SQL, q.Params...)
	return err
}

// SetActive flips is_active and status together
func (r *WorkflowRepository) SetActive(ctx context.Context, tenantID, id string, active bool, status string, nextRun *time.Time) error {
	query := fmt.Sprintf("UPDATE %s SET is_active = ?, status = ?, next_run_at = ? WHERE id = ? AND tenant_id = ?", constants.TableWorkflow)
	_, err := conn(ctx, r.db).ExecContext(ctx, query, active, status, nullableTime(nextRun), id, tenantID)
	return err
}

// Delete removes the workflow along with its actions and history
func (r *WorkflowRepository) Delete(ctx context.Context, tenantID, id string) error {
	stmts := []string{
		fmt.Sprintf("DELETE FROM %s WHERE execution_id IN (SELECT id FROM %s WHERE workflow_id = ?)",
			constants.TableWorkflowExecutionLog, constants.TableWorkflowExecution),
		fmt.Sprintf("DELETE FROM %s WHERE workflow_id = ?", constants.TableWorkflowExecution),
		fmt.Sprintf("DELETE FROM %s WHERE workflow_id = ?", constants.TableWorkflowAction),
	}
	for _, s := range stmts {
		if _, err := conn(ctx, r.db).ExecContext(ctx, s, id); err != nil {
			return err
		}
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE id = ? AND tenant_id = ?", constants.TableWorkflow)
	_, err := conn(ctx, r.db).ExecContext(ctx, query, id, tenantID)
	return err
}

// CountByTenant counts workflows for plan enforcement
func (r *WorkflowRepository) CountByTenant(ctx context.Context, tenantID string) (int64, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE tenant_id = ?", constants.TableWorkflow)
	return count(ctx, conn(ctx, r.db), query, tenantID)
}

// CreateExecution inserts a RUNNING execution
func (r *WorkflowRepository) CreateExecution(ctx context.Context, e *models.WorkflowExecution) error {
	query := fmt.Sprintf(`INSERT INTO %s (id, workflow_id, status, trigger_type, entity_type, entity_id, trigger_data, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, constants.TableWorkflowExecution)
	_, err := conn(ctx, r.db).ExecContext(ctx, query, e.ID, e.WorkflowID, e.Status, e.TriggerType,
		nullable(e.EntityType), nullable(e.EntityID), mustJSON(e.TriggerData), e.StartedAt)
	return err
}

// FinishExecution records the terminal status of an execution
func (r *WorkflowRepository) FinishExecution(ctx context.Context, id, status string, errMsg *string, completedAt time.Time) error {
	query := fmt.Sprintf("UPDATE %s SET status = ?, error = ?, completed_at = ? WHERE id = ?", constants.TableWorkflowExecution)
	_, err := conn(ctx, r.db).ExecContext(ctx, query, status, nullable(errMsg), completedAt, id)
	return err
}

// CreateLog inserts an action log row
func (r *WorkflowRepository) CreateLog(ctx context.Context, l *models.WorkflowExecutionLog) error {
	query := fmt.Sprintf(`INSERT INTO %s (id, execution_id, action_id, action_name, action_type, action_config, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, constants.TableWorkflowExecutionLog)
	_, err := conn(ctx, r.db).ExecContext(ctx, query, l.ID, l.ExecutionID, nullable(l.ActionID), l.ActionName,
		l.ActionType, mustJSON(l.ActionConfig), l.Status, l.StartedAt)
	return err
}

// FinishLog records the outcome of one action
func (r *WorkflowRepository) FinishLog(ctx context.Context, id, status string, result map[string]interface{}, errMsg *string, completedAt time.Time) error {
	query := fmt.Sprintf("UPDATE %s SET status = ?, result = ?, error = ?, completed_at = ? WHERE id = ?", constants.TableWorkflowExecutionLog)
	_, err := conn(ctx, r.db).ExecContext(ctx, query, status, mustJSON(result), nullable(errMsg), completedAt, id)
	return err
}

// ExecutionFilter narrows execution history
type ExecutionFilter struct {
	TenantID   string
	WorkflowID string
	Status     string
	Page       int
	Limit      int
}

// ListExecutions returns executions scoped through the workflow's tenant, with logs
func (r *WorkflowRepository) ListExecutions(ctx context.Context, f ExecutionFilter) ([]models.WorkflowExecution, int64, error) {
	b := query.From(constants.TableWorkflowExecution, "e").
		Select(executionColumns, "w.name").
		Join(fmt.Sprintf("JOIN %s w ON w.id = e.workflow_id", constants.TableWorkflow)).
		Where("w.tenant_id = ?", f.TenantID).
		WhereIf(f.WorkflowID != "", "e.workflow_id = ?", f.WorkflowID).
		WhereIf(f.Status != "", "e.status = ?", f.Status)

	c := b.Count()
	total, err := count(ctx, conn(ctx, r.db), c.SQL, c.Params...)
	if err != nil {
		return nil, 0, err
	}

	q := b.OrderBy("e.started_at DESC").Page(f.Page, f.Limit).Build()
	rows, err := conn(ctx, r.db).QueryContext(ctx, q.SQL, q.Params...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []models.WorkflowExecution{}
	for rows.Next() {
		var e models.WorkflowExecution
		var entityType, entityID, errMsg sql.NullString
		var data []byte
		var completed sql.NullTime
		var name string
		if err := rows.Scan(&e.ID, &e.WorkflowID, &e.Status, &e.TriggerType, &entityType, &entityID, &data,
			&errMsg, &e.StartedAt, &completed, &name); err != nil {
			return nil, 0, err
		}
		e.EntityType = strPtr(entityType)
		e.EntityID = strPtr(entityID)
		e.Error = strPtr(errMsg)
		e.CompletedAt = timePtr(completed)
		e.Workflow = &models.Ref{ID: e.WorkflowID, Name: name}
		if err := decodeJSON(data, &e.TriggerData); err != nil {
			return nil, 0, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	rows.Close()

	for i := range out {
		if out[i].Logs, err = r.ListLogs(ctx, out[i].ID); err != nil {
			return nil, 0, err
		}
	}
	return out, total, nil
}

// ListLogs returns the action logs of one execution
func (r *WorkflowRepository) ListLogs(ctx context.Context, executionID string) ([]models.WorkflowExecutionLog, error) {
	query := fmt.Sprintf(`SELECT id, execution_id, action_id, action_name, action_type, action_config, status, result, error, started_at, completed_at
		FROM %s WHERE execution_id = ? ORDER BY started_at ASC`, constants.TableWorkflowExecutionLog)
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, executionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := []models.WorkflowExecutionLog{}
	for rows.Next() {
		var l models.WorkflowExecutionLog
		var actionID, actionName, errMsg sql.NullString
		var cfg, result []byte
		var completed sql.NullTime
		if err := rows.Scan(&l.ID, &l.ExecutionID, &actionID, &actionName, &l.ActionType, &cfg, &l.Status,
			&result, &errMsg, &l.StartedAt, &completed); err != nil {
			return nil, err
		}
		l.ActionID = strPtr(actionID)
		l.ActionName = actionName.String
		l.Error = strPtr(errMsg)
		l.CompletedAt = timePtr(completed)
		if err := decodeJSON(cfg, &l.ActionConfig); err != nil {
			return nil, err
		}
		if err := decodeJSON(result, &l.Result); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nexuscrm/tenantcrm/internal/domain/models"
	"github.com/nexuscrm/tenantcrm/pkg/constants"
)

// SchedulerRepository handles direct database operations for the SchedulerService,
// targeting the workflows table for execution locking and run bookkeeping.
type SchedulerRepository struct {
	db *sql.DB
}

// NewSchedulerRepository creates a new SchedulerRepository
func NewSchedulerRepository(db *sql.DB) *SchedulerRepository {
	return &SchedulerRepository{
		db: db,
	}
}

// ListDue returns active scheduled workflows whose next_run_at has passed,
// plus those that were never scheduled.
func (r *SchedulerRepository) ListDue(ctx context.Context, now time.Time) ([]models.Workflow, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s w
		WHERE w.is_active = TRUE AND w.trigger_type IN (?, ?) AND (w.next_run_at IS NULL OR w.next_run_at <= ?)
		ORDER BY w.next_run_at ASC`, workflowColumns, constants.TableWorkflow)
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, constants.TriggerTimeBased, constants.TriggerRecurring, now)
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

// AcquireExecutionLock atomically sets is_running = true if not already running
// and the workflow is still due, so an instance that read a stale due list
// cannot run a workflow another instance already advanced.
// A lock older than the maximum runtime is considered abandoned and taken over.
func (r *SchedulerRepository) AcquireExecutionLock(ctx context.Context, workflowID string) (bool, error) {
	query := fmt.Sprintf(`UPDATE %s SET is_running = TRUE, running_since = ?
		WHERE id = ? AND (is_running = FALSE OR running_since IS NULL OR running_since < ?)
		AND (next_run_at IS NULL OR next_run_at <= ?)`, constants.TableWorkflow)

	now := time.Now().UTC()
	stale := now.Add(-time.Duration(constants.ScheduleMaxRuntimeMins) * time.Minute)
	n, err := rowsAffected(conn(ctx, r.db).ExecContext(ctx, query, now, workflowID, stale, now))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ReleaseExecutionLock sets is_running = false
func (r *SchedulerRepository) ReleaseExecutionLock(ctx context.Context, workflowID string) error {
	query := fmt.Sprintf("UPDATE %s SET is_running = FALSE, running_since = NULL WHERE id = ?", constants.TableWorkflow)
	_, err := conn(ctx, r.db).ExecContext(ctx, query, workflowID)
	return err
}

// UpdateRunStatus updates last_run_at
func (r *SchedulerRepository) UpdateRunStatus(ctx context.Context, workflowID string) error {
	query := fmt.Sprintf("UPDATE %s SET last_run_at = ? WHERE id = ?", constants.TableWorkflow)
	_, err := conn(ctx, r.db).ExecContext(ctx, query, time.Now().UTC(), workflowID)
	return err
}

// UpdateNextRunAt updates next_run_at
func (r *SchedulerRepository) UpdateNextRunAt(ctx context.Context, workflowID string, nextRun time.Time) error {
	query := fmt.Sprintf("UPDATE %s SET next_run_at = ? WHERE id = ?", constants.TableWorkflow)
	_, err := conn(ctx, r.db).ExecContext(ctx, query, nextRun, workflowID)
	return err
}

// Deactivate switches a one-shot workflow off after it ran
func (r *SchedulerRepository) Deactivate(ctx context.Context, workflowID string) error {
	query := fmt.Sprintf("UPDATE %s SET is_active = FALSE, status = ?, next_run_at = NULL WHERE id = ?", constants.TableWorkflow)
	_, err := conn(ctx, r.db).ExecContext(ctx, query, constants.WorkflowStatusPaused, workflowID)
	return err
}

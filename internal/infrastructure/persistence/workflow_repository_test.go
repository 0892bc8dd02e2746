package persistence

import (
	"context"
	"database/sql/driver"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/nexuscrm/tenantcrm/internal/domain/models"
	"github.com/nexuscrm/tenantcrm/pkg/constants"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var workflowRowColumns = []string{"id", "tenant_id", "name", "description", "trigger_type", "trigger_config", "conditions",
	"is_active", "status", "next_run_at", "last_run_at", "is_running", "created_by", "created_at", "updated_at"}

func TestAcquireExecutionLock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewSchedulerRepository(db)
	lockSQL := regexp.QuoteMeta("UPDATE workflows SET is_running = TRUE, running_since = ?")

	mock.ExpectExec(lockSQL).WithArgs(sqlmock.AnyArg(), "w1", sqlmock.AnyArg(), sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
	ok, err := repo.AcquireExecutionLock(context.Background(), "w1")
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectExec(lockSQL).WithArgs(sqlmock.AnyArg(), "w1", sqlmock.AnyArg(), sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 0))
	ok, err = repo.AcquireExecutionLock(context.Background(), "w1")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, mock.ExpectationsWereMet())
}

// atOrAfter matches a time taken no earlier than t.
type atOrAfter struct{ t time.Time }

func (d atOrAfter) Match(v driver.Value) bool {
	got, ok := v.(time.Time)
	return ok && !got.Before(d.t)
}

func TestAcquireExecutionLock_RequiresDue(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewSchedulerRepository(db)
	start := time.Now().UTC()
	// A workflow advanced by another instance has next_run_at in the future and matches no row.
	mock.ExpectExec(regexp.QuoteMeta("AND (next_run_at IS NULL OR next_run_at <= ?)")).
		WithArgs(atOrAfter{start}, "w1", sqlmock.AnyArg(), atOrAfter{start}).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.AcquireExecutionLock(context.Background(), "w1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListDue(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("w.trigger_type IN (?, ?) AND (w.next_run_at IS NULL OR w.next_run_at <= ?)")).
		WithArgs(constants.TriggerTimeBased, constants.TriggerRecurring, now).
		WillReturnRows(sqlmock.NewRows(workflowRowColumns).
			AddRow("w1", "t1", "Nightly", nil, "RECURRING", `{"schedule":"0 2 * * *"}`, nil, true, "ACTIVE", nil, nil, false, nil, now, now))

	due, err := NewSchedulerRepository(db).ListDue(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "0 2 * * *", due[0].Schedule())
	assert.Empty(t, due[0].Conditions)
}

func TestWorkflowGetByIDLoadsActions(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM workflows w WHERE w.id = ? AND w.tenant_id = ?")).
		WithArgs("w1", "t1").
		WillReturnRows(sqlmock.NewRows(workflowRowColumns).
			AddRow("w1", "t1", "Welcome", nil, "CONTACT_CREATED", nil, `{"source":"web"}`, false, "DRAFT", nil, nil, false, "u1", now, now))
	mock.ExpectQuery(regexp.QuoteMeta("FROM workflow_actions WHERE workflow_id = ? ORDER BY sort_order ASC")).
		WithArgs("w1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "workflow_id", "name", "type", "config", "sort_order", "delay_minutes"}).
			AddRow("a1", "w1", "Tag", "ADD_CONTACT_TAG", `{"tag":"new"}`, 0, 0).
			AddRow("a2", "w1", "Score", "UPDATE_CONTACT_SCORE", `{"score":10}`, 1, 0))

	w, err := NewWorkflowRepository(db).GetByID(context.Background(), "t1", "w1")
	require.NoError(t, err)
	require.NotNil(t, w)
	assert.Equal(t, "web", w.Conditions["source"])
	require.Len(t, w.Actions, 2)
	assert.Equal(t, "new", w.Actions[0].Config["tag"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWorkflowExecutionLifecycle(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewWorkflowRepository(db)
	started := time.Now()
	done := started.Add(time.Second)
	entity := constants.EntityContact
	entityID := "c1"

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO workflow_executions")).
		WithArgs("e1", "w1", constants.ExecutionRunning, "CONTACT_CREATED", entity, entityID, `{"x":1}`, started).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE workflow_executions SET status = ?, error = ?, completed_at = ? WHERE id = ?")).
		WithArgs(constants.ExecutionFailed, "boom", done, "e1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.CreateExecution(context.Background(), &models.WorkflowExecution{
		ID: "e1", WorkflowID: "w1", Status: constants.ExecutionRunning, TriggerType: "CONTACT_CREATED",
		EntityType: &entity, EntityID: &entityID, TriggerData: map[string]interface{}{"x": 1}, StartedAt: started,
	}))
	msg := "boom"
	require.NoError(t, repo.FinishExecution(context.Background(), "e1", constants.ExecutionFailed, &msg, done))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlanListActiveOnly(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM plans WHERE is_active = TRUE ORDER BY sort_order ASC")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "display_name", "description", "price", "yearly_price", "features", "is_active", "sort_order", "created_at", "updated_at"}).
			AddRow("p1", "FREE", "Free", nil, 0, 0, `{"contacts":100,"storage":"1GB"}`, true, 0, now, now))

	plans, err := NewPlanRepository(db).List(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.True(t, plans[0].IsFree())
	assert.Equal(t, float64(100), plans[0].Features["contacts"])
}

func TestTenantReplaceSubscriptionFallsBackToInsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	sub := &models.Subscription{ID: "s1", TenantID: "t1", PlanID: "p2", Status: constants.SubscriptionActive,
		CurrentPeriodStart: now, CurrentPeriodEnd: now.AddDate(0, 0, 30)}

	mock.ExpectExec(regexp.QuoteMeta("UPDATE subscriptions SET plan_id = ?")).
		WithArgs("p2", constants.SubscriptionActive, sub.CurrentPeriodStart, sub.CurrentPeriodEnd, "t1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO subscriptions")).
		WithArgs("s1", "t1", "p2", constants.SubscriptionActive, sub.CurrentPeriodStart, sub.CurrentPeriodEnd).
		WillReturnResult(sqlmock.NewResult(1, 1))

	assert.NoError(t, NewTenantRepository(db).ReplaceSubscription(context.Background(), sub))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWhatsAppUpdateMessageStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	at := time.Now()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE whatsapp_messages SET status = ?, read_at = ? WHERE wa_message_id = ?")).
		WithArgs(constants.MessageRead, at, "wamid.1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := NewWhatsAppRepository(db).UpdateMessageStatus(context.Background(), "wamid.1", constants.MessageRead, at, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexuscrm/tenantcrm/internal/domain/events"
	"github.com/nexuscrm/tenantcrm/pkg/constants"
	"github.com/nexuscrm/tenantcrm/pkg/expression"
)

func event(trigger string, data map[string]interface{}) events.TriggerEvent {
	return events.NewTriggerEvent(events.EventType(trigger), testTenantID, "contact", "c1", data)
}

func TestWorkflowEngine_ConditionsMatch(t *testing.T) {
	we := &WorkflowEngine{exprs: expression.NewEngine()}

	tests := []struct {
		name       string
		conditions map[string]interface{}
		ev         events.TriggerEvent
		want       bool
	}{
		{
			name: "no conditions",
			ev:   event(constants.TriggerContactCreated, nil),
			want: true,
		},
		{
			name:       "form id listed",
			conditions: map[string]interface{}{"formIds": []interface{}{"f1", "f2"}},
			ev:         event(constants.TriggerFormSubmitted, map[string]interface{}{"formId": "f2"}),
			want:       true,
		},
		{
			name:       "form id not listed",
			conditions: map[string]interface{}{"formIds": []interface{}{"f1"}},
			ev:         event(constants.TriggerFormSubmitted, map[string]interface{}{"formId": "f9"}),
		},
		{
			name:       "keyword match ignores case",
			conditions: map[string]interface{}{"messageKeywords": []interface{}{"PRICE"}},
			ev:         event(constants.TriggerWhatsAppMessageReceived, map[string]interface{}{"messageText": "what is the price?"}),
			want:       true,
		},
		{
			name:       "no keyword present",
			conditions: map[string]interface{}{"messageKeywords": []interface{}{"price"}},
			ev:         event(constants.TriggerWhatsAppMessageReceived, map[string]interface{}{"messageText": "hello"}),
		},
		{
			name:       "source mismatch",
			conditions: map[string]interface{}{"source": "Website"},
			ev:         event(constants.TriggerContactCreated, map[string]interface{}{"source": "WhatsApp"}),
		},
		{
			name:       "all required tags present",
			conditions: map[string]interface{}{"requiredTags": []interface{}{"vip", "eu"}},
			ev:         event(constants.TriggerContactUpdated, map[string]interface{}{"tags": []interface{}{"eu", "vip", "b2b"}}),
			want:       true,
		},
		{
			name:       "required tag missing",
			conditions: map[string]interface{}{"requiredTags": []interface{}{"vip"}},
			ev:         event(constants.TriggerContactUpdated, map[string]interface{}{"tags": []interface{}{"eu"}}),
		},
		{
			name:       "expression over event data",
			conditions: map[string]interface{}{"expression": "leadScore > 50 && tenantId == \"" + testTenantID + "\""},
			ev:         event(constants.TriggerContactScoreChanged, map[string]interface{}{"leadScore": float64(80)}),
			want:       true,
		},
		{
			name:       "expression errors never match",
			conditions: map[string]interface{}{"expression": "leadScore >"},
			ev:         event(constants.TriggerContactScoreChanged, map[string]interface{}{"leadScore": float64(80)}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, we.ConditionsMatch(tt.conditions, tt.ev))
		})
	}
}

func TestBuildActions(t *testing.T) {
	actions, err := buildActions("wf-1", []ActionInput{
		{Type: constants.ActionAddContactTag, Config: map[string]interface{}{"tag": "hot"}},
		{Name: "Follow up", Type: constants.ActionCreateTask, Order: 5, DelayMinutes: 30},
	})
	require.NoError(t, err)
	require.Len(t, actions, 2)

	assert.Equal(t, constants.ActionAddContactTag, actions[0].Name, "name defaults to the type")
	assert.Equal(t, 1, actions[0].Order)
	assert.Equal(t, "wf-1", actions[0].WorkflowID)
	assert.Equal(t, 5, actions[1].Order)
	assert.Equal(t, 30, actions[1].DelayMinutes)
	assert.NotNil(t, actions[1].Config)

	_, err = buildActions("wf-1", []ActionInput{{Name: "untyped"}})
	require.Error(t, err)
	assert.Equal(t, "Action 1 needs a type", err.Error())
}

func TestWorkflowService_ValidateDefinition(t *testing.T) {
	s := &WorkflowService{exprs: expression.NewEngine()}

	tests := []struct {
		name       string
		trigger    string
		config     map[string]interface{}
		conditions map[string]interface{}
		wantErr    string
	}{
		{name: "event trigger", trigger: constants.TriggerDealWon},
		{name: "unknown trigger", trigger: "MOON_PHASE", wantErr: "Invalid trigger type"},
		{
			name:    "recurring without schedule",
			trigger: constants.TriggerRecurring,
			wantErr: "A cron schedule is required for RECURRING workflows",
		},
		{
			name:    "recurring with schedule",
			trigger: constants.TriggerRecurring,
			config:  map[string]interface{}{"schedule": "*/15 * * * *"},
		},
		{
			name:    "bad schedule",
			trigger: constants.TriggerTimeBased,
			config:  map[string]interface{}{"schedule": "soon"},
			wantErr: "Invalid cron schedule",
		},
		{
			name:       "bad expression",
			trigger:    constants.TriggerContactCreated,
			conditions: map[string]interface{}{"expression": "score >"},
			wantErr:    "Invalid condition expression",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.validateDefinition(tt.trigger, tt.config, tt.conditions)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEventBus(t *testing.T) {
	bus := NewEventBus()
	var calls int32

	unsubscribe := bus.Subscribe(events.EventType(constants.TriggerDealWon), func(ctx context.Context, ev events.TriggerEvent) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})
	bus.Subscribe(events.EventType(constants.TriggerDealLost), func(ctx context.Context, ev events.TriggerEvent) error {
		return fmt.Errorf("boom")
	})

	require.NoError(t, bus.Publish(context.Background(), event(constants.TriggerDealWon, nil)))
	bus.PublishAsync(event(constants.TriggerDealWon, nil))
	bus.PublishAsync(event(constants.TriggerDealLost, nil))
	bus.Wait()
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))

	err := bus.Publish(context.Background(), event(constants.TriggerDealLost, nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DEAL_LOST")

	unsubscribe()
	require.NoError(t, bus.Publish(context.Background(), event(constants.TriggerDealWon, nil)))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestMergeTags(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, mergeTags([]string{"a", "b"}, "b", "", "c"))
	assert.Equal(t, []string{}, mergeTags(nil))
}

func TestServiceManager_DrainEvents(t *testing.T) {
	bus := NewEventBus()
	sm := &ServiceManager{EventBus: bus}
	release := make(chan struct{})
	finished := make(chan struct{})

	bus.Subscribe(events.EventType(constants.TriggerContactCreated), func(ctx context.Context, ev events.TriggerEvent) error {
		<-release
		close(finished)
		return nil
	})
	bus.PublishAsync(event(constants.TriggerContactCreated, nil))

	short, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, sm.DrainEvents(short), context.DeadlineExceeded)

	close(release)
	require.NoError(t, sm.DrainEvents(context.Background()))
	select {
	case <-finished:
	default:
		t.Fatal("handler should have completed before DrainEvents returned")
	}

	assert.NoError(t, (&ServiceManager{}).DrainEvents(context.Background()))
}

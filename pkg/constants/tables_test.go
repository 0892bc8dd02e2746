package constants

import (
	"testing"
)

func TestIsTenantScoped(t *testing.T) {
	tests := []struct {
		tableName string
		want      bool
	}{
		{TableContact, true},
		{TableDeal, true},
		{TableAuditLog, true},
		{TableWhatsAppConversation, true},
		{TablePlan, false},
		{TableUser, false},
		{TableWorkflowExecution, false},
		{TableEmailSubscriber, false},
	}

	for _, tt := range tests {
		t.Run(tt.tableName, func(t *testing.T) {
			if got := IsTenantScoped(tt.tableName); got != tt.want {
				t.Errorf("IsTenantScoped(%q) = %v, want %v", tt.tableName, got, tt.want)
			}
		})
	}
}

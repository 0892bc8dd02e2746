package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
		code string
	}{
		{"not found", NewNotFoundError("Contact", "c1"), http.StatusNotFound, "NOT_FOUND"},
		{"validation", BadRequest("First name is required"), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"tenant", NewTenantRequiredError(), http.StatusBadRequest, "TENANT_REQUIRED"},
		{"plan", NewPlanLimitError("limit", "contacts", 100, 100), http.StatusPaymentRequired, "PLAN_LIMIT_EXCEEDED"},
		{"forbidden", Forbidden("Insufficient permissions"), http.StatusForbidden, "PERMISSION_DENIED"},
		{"unauthorized", NewUnauthorizedError(""), http.StatusUnauthorized, "UNAUTHORIZED"},
		{"wrapped", fmt.Errorf("outer: %w", NewNotFoundError("Deal", "")), http.StatusNotFound, "NOT_FOUND"},
		{"plain", fmt.Errorf("boom"), http.StatusInternalServerError, "UNKNOWN_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetHTTPStatus(tt.err))
			assert.Equal(t, tt.code, GetErrorCode(tt.err))
		})
	}
}

func TestValidationMessage(t *testing.T) {
	assert.Equal(t, "First name is required", BadRequest("First name is required").Error())
	assert.Equal(t, "validation error on field 'body': bad", NewValidationError("body", "bad").Error())
}

func TestPublicMessage(t *testing.T) {
	assert.Equal(t, "Tenant ID not found", PublicMessage(NewTenantRequiredError()))
	assert.Equal(t, "Internal server error", PublicMessage(NewInternalError("db", fmt.Errorf("conn reset"))))
	assert.Equal(t, "Internal server error", PublicMessage(fmt.Errorf("raw")))
}

func TestAsPlanLimit(t *testing.T) {
	err := fmt.Errorf("create: %w", NewPlanLimitError("over", "deals", 50, 50))
	pl, ok := AsPlanLimit(err)
	assert.True(t, ok)
	assert.Equal(t, PlanLimit{Type: "deals", CurrentUsage: 50, Limit: 50}, pl.Limit)

	_, ok = AsPlanLimit(fmt.Errorf("other"))
	assert.False(t, ok)
}

package ports

import (
	"context"
)

// LimitChecker enforces plan quotas before creates.
// EnsureWithinLimit returns a PlanLimitError when the create would exceed the plan.
type LimitChecker interface {
	EnsureWithinLimit(ctx context.Context, tenantID, resource string, increment int64) error
}

package ports

import (
	"context"

	"github.com/nexuscrm/tenantcrm/internal/domain/models"
)

// Auditor records audit entries. Record never fails the caller.
type Auditor interface {
	Record(ctx context.Context, entry *models.AuditLog)
}

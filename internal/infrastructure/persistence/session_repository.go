package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nexuscrm/tenantcrm/internal/domain/models"
	"github.com/nexuscrm/tenantcrm/pkg/constants"
)

// SessionRepository persists logins keyed by token JTI
type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create stores a new session
func (r *SessionRepository) Create(ctx context.Context, s *models.Session) error {
	query := fmt.Sprintf(`INSERT INTO %s (id, user_id, expires_at, ip_address, user_agent, is_revoked, last_activity)
		VALUES (?, ?, ?, ?, ?, FALSE, NOW())`, constants.TableSession)
	_, err := conn(ctx, r.db).ExecContext(ctx, query, s.ID, s.UserID, s.ExpiresAt, s.IPAddress, s.UserAgent)
	return err
}

// FindActive returns the session when it exists, is not revoked and not expired
func (r *SessionRepository) FindActive(ctx context.Context, id string) (*models.Session, error) {
	query := fmt.Sprintf(`SELECT id, user_id, expires_at, ip_address, user_agent, is_revoked, last_activity, created_at
		FROM %s WHERE id = ? AND is_revoked = FALSE AND expires_at > NOW()`, constants.TableSession)
	var s models.Session
	var ip, ua sql.NullString
	err := conn(ctx, r.db).QueryRowContext(ctx, query, id).Scan(&s.ID, &s.UserID, &s.ExpiresAt, &ip, &ua,
		&s.IsRevoked, &s.LastActivity, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.IPAddress = ip.String
	s.UserAgent = ua.String
	return &s, nil
}

// Touch updates last_activity
func (r *SessionRepository) Touch(ctx context.Context, id string) error {
	query := fmt.Sprintf("UPDATE %s SET last_activity = NOW() WHERE id = ?", constants.TableSession)
	_, err := conn(ctx, r.db).ExecContext(ctx, query, id)
	return err
}

// Revoke marks a session revoked
func (r *SessionRepository) Revoke(ctx context.Context, id string) error {
	query := fmt.Sprintf("UPDATE %s SET is_revoked = TRUE WHERE id = ?", constants.TableSession)
	_, err := conn(ctx, r.db).ExecContext(ctx, query, id)
	return err
}

// RevokeAllForUser revokes every session of a user except keepID
func (r *SessionRepository) RevokeAllForUser(ctx context.Context, userID, keepID string) error {
	query := fmt.Sprintf("UPDATE %s SET is_revoked = TRUE WHERE user_id = ? AND id != ?", constants.TableSession)
	_, err := conn(ctx, r.db).ExecContext(ctx, query, userID, keepID)
	return err
}

// DeleteExpired removes sessions past expiry and returns how many went
func (r *SessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	query := fmt.Sprintf("DELETE FROM %s WHERE expires_at < NOW()", constants.TableSession)
	return rowsAffected(conn(ctx, r.db).ExecContext(ctx, query))
}

package postgres

import (
	"context"
	"time"

	"github.com/lertxundi/anchorage/internal/core/domain"
)

// SessionRepo implements ports.SessionRepository with pgx.
type SessionRepo struct {
	db *DB
}

// NewSessionRepo creates a new SessionRepo.
func NewSessionRepo(db *DB) *SessionRepo {
	return &SessionRepo{db: db}
}

// Create inserts a session row.
func (r *SessionRepo) Create(ctx context.Context, s *domain.Session) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO sessions (id, created_at, last_seen_at)
		VALUES ($1, $2, $3)
	`, s.ID, s.CreatedAt, s.LastSeenAt)
	return err
}

// Touch updates the session's last-seen timestamp.
func (r *SessionRepo) Touch(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.Pool.Exec(ctx, `
		UPDATE sessions SET last_seen_at = $2 WHERE id = $1
	`, id, at)
	return err
}

// ListIdle returns sessions whose last frame predates idleSince.
func (r *SessionRepo) ListIdle(ctx context.Context, idleSince time.Time) ([]domain.Session, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, created_at, last_seen_at
		FROM sessions
		WHERE last_seen_at < $1
		ORDER BY last_seen_at
	`, idleSince)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		var s domain.Session
		if err := rows.Scan(&s.ID, &s.CreatedAt, &s.LastSeenAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// Delete removes a session row.
func (r *SessionRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

// PurgeAnchors removes every stored record in the session's namespace and
// returns how many were dropped.
func (r *SessionRepo) PurgeAnchors(ctx context.Context, sessionID string) (int, error) {
	tag, err := r.db.Pool.Exec(ctx, `
		DELETE FROM anchor_records WHERE session_id = $1
	`, sessionID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

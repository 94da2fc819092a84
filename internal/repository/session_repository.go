package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/seatsync/internal/database"
	"github.com/iliyamo/seatsync/internal/model"
)

// SessionRepo is the durable session store.  Sessions are issued by the
// identity service; this process only reads them.
type SessionRepo struct {
	db *database.DB
}

func NewSessionRepo(db *database.DB) *SessionRepo { return &SessionRepo{db: db} }

// FindValid returns the session for token if it expires after now, or
// ErrNotFound.
func (r *SessionRepo) FindValid(ctx context.Context, token string, now time.Time) (*model.SessionInfo, error) {
	const q = `SELECT user_id, expires_at FROM sessions WHERE token = ? AND expires_at > ? LIMIT 1`
	var s model.SessionInfo
	err := r.db.QueryRowContext(ctx, r.db.Rebind(q), token, now.UTC()).Scan(&s.UserID, &s.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

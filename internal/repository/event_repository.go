package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/iliyamo/seatsync/internal/database"
	"github.com/iliyamo/seatsync/internal/model"
)

// EventRepo reads events.  Event CRUD lives in another service; this
// process only needs the lookup done before a websocket upgrade.
type EventRepo struct {
	db *database.DB
}

func NewEventRepo(db *database.DB) *EventRepo { return &EventRepo{db: db} }

// GetByID returns the event or ErrNotFound.
func (r *EventRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Event, error) {
	const q = `SELECT id, workspace_id, name, starts_at, created_at FROM events WHERE id = ?`
	var (
		e        model.Event
		startsAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, r.db.Rebind(q), id).Scan(&e.ID, &e.WorkspaceID, &e.Name, &startsAt, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if startsAt.Valid {
		t := startsAt.Time
		e.StartsAt = &t
	}
	return &e, nil
}

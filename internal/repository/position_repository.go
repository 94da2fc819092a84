package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/iliyamo/seatsync/internal/database"
	"github.com/iliyamo/seatsync/internal/model"
)

// PositionRepo updates object placement.  Concurrent moves of the same
// object are last-write-wins.
type PositionRepo struct {
	db *database.DB
}

func NewPositionRepo(db *database.DB) *PositionRepo { return &PositionRepo{db: db} }

// Move sets the coordinates of objectID, which must belong to eventID, and
// returns the stored position.  ErrNotFound when the object has no
// position row in that event.
func (r *PositionRepo) Move(ctx context.Context, eventID, objectID uuid.UUID, x, y, z float64) (*model.Position, error) {
	const upd = `UPDATE object_positions SET position_x = ?, position_y = ?, position_z = ?
	             WHERE event_object_id = ?
	               AND event_object_id IN (SELECT id FROM event_objects WHERE event_id = ?)`
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(upd), x, y, z, objectID, eventID); err != nil {
		return nil, err
	}
	// Read back instead of trusting RowsAffected: MySQL reports 0 when the
	// values did not change.
	const sel = `SELECT p.event_object_id, p.position_x, p.position_y, p.position_z, p.rotation
	             FROM object_positions p
	             JOIN event_objects o ON o.id = p.event_object_id
	             WHERE p.event_object_id = ? AND o.event_id = ?`
	var p model.Position
	err := r.db.QueryRowContext(ctx, r.db.Rebind(sel), objectID, eventID).Scan(&p.EventObjectID, &p.X, &p.Y, &p.Z, &p.Rotation)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

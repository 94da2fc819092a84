package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/iliyamo/seatsync/internal/database"
	"github.com/iliyamo/seatsync/internal/model"
)

// EventObjectRepo manages the status of bookable objects.  Status writes
// only happen through the Tx methods, after the rows were locked by
// LockAvailableTx or by the reservation item lock of a release.
type EventObjectRepo struct {
	db *database.DB
}

func NewEventObjectRepo(db *database.DB) *EventObjectRepo { return &EventObjectRepo{db: db} }

// LockAvailableTx selects the objects of eventID among ids that are still
// available and takes an exclusive row lock on each of them.  Objects that
// are reserved, belong to another event or do not exist are simply absent
// from the result; the caller compares counts.
func (r *EventObjectRepo) LockAvailableTx(ctx context.Context, tx *sql.Tx, eventID uuid.UUID, ids []uuid.UUID) ([]model.EventObject, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	in, args := inClause(ids)
	q := `SELECT id, event_id, section_id, label, object_type, status, is_enabled
	      FROM event_objects
	      WHERE id IN (` + in + `) AND event_id = ? AND status = 'available'
	      FOR UPDATE`
	args = append(args, eventID)
	rows, err := tx.QueryContext(ctx, r.db.Rebind(q), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.EventObject
	for rows.Next() {
		var o model.EventObject
		if err := rows.Scan(&o.ID, &o.EventID, &o.SectionID, &o.Label, &o.ObjectType, &o.Status, &o.IsEnabled); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// MarkReservedTx flips the locked objects to reserved in one statement.
func (r *EventObjectRepo) MarkReservedTx(ctx context.Context, tx *sql.Tx, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	in, args := inClause(ids)
	q := `UPDATE event_objects SET status = 'reserved' WHERE id IN (` + in + `) AND status = 'available'`
	res, err := tx.ExecContext(ctx, r.db.Rebind(q), args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != int64(len(ids)) {
		return fmt.Errorf("mark reserved: %d of %d rows updated: %w", n, len(ids), ErrConflict)
	}
	return nil
}

// MarkAvailableTx frees a single object.
func (r *EventObjectRepo) MarkAvailableTx(ctx context.Context, tx *sql.Tx, id uuid.UUID) error {
	const q = `UPDATE event_objects SET status = 'available' WHERE id = ?`
	_, err := tx.ExecContext(ctx, r.db.Rebind(q), id)
	return err
}

// ListLayout returns every object of an event with its position, ordered
// by label for a stable snapshot.
func (r *EventObjectRepo) ListLayout(ctx context.Context, eventID uuid.UUID) ([]model.LayoutObject, error) {
	const q = `SELECT o.id, o.section_id, o.label, o.object_type, o.status, o.is_enabled,
	                  p.event_object_id, p.position_x, p.position_y, p.position_z, p.rotation
	           FROM event_objects o
	           LEFT JOIN object_positions p ON p.event_object_id = o.id
	           WHERE o.event_id = ?
	           ORDER BY o.label, o.id`
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(q), eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.LayoutObject{}
	for rows.Next() {
		var (
			o       model.LayoutObject
			posID   uuid.NullUUID
			x, y, z sql.NullFloat64
			rot     sql.NullFloat64
		)
		if err := rows.Scan(&o.ID, &o.SectionID, &o.Label, &o.ObjectType, &o.Status, &o.IsEnabled,
			&posID, &x, &y, &z, &rot); err != nil {
			return nil, err
		}
		if posID.Valid {
			o.Position = &model.Position{
				EventObjectID: posID.UUID,
				X:             x.Float64,
				Y:             y.Float64,
				Z:             z.Float64,
				Rotation:      rot.Float64,
			}
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

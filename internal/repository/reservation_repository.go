package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/iliyamo/seatsync/internal/database"
	"github.com/iliyamo/seatsync/internal/model"
)

// ReservationRepo writes reservation headers and their items.  Every
// method runs inside a caller owned transaction; the caller commits or
// rolls back.
type ReservationRepo struct {
	db *database.DB
}

func NewReservationRepo(db *database.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// HeldItem is a reservation item joined with the header fields needed to
// release it.
type HeldItem struct {
	ItemID        uuid.UUID
	ReservationID uuid.UUID
	OwnerID       uuid.UUID
	Status        model.ReservationStatus
}

// CreateTx inserts the header.  res.ID must already be set.
func (r *ReservationRepo) CreateTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	const q = `INSERT INTO reservations (id, event_id, user_id, status, total_price, expires_at) VALUES (?, ?, ?, ?, ?, ?)`
	var expires interface{}
	if res.ExpiresAt != nil {
		expires = *res.ExpiresAt
	}
	_, err := tx.ExecContext(ctx, r.db.Rebind(q), res.ID, res.EventID, res.UserID, string(res.Status), res.TotalPrice, expires)
	return err
}

// CreateItemsBulkTx inserts all items in a single statement.
func (r *ReservationRepo) CreateItemsBulkTx(ctx context.Context, tx *sql.Tx, items []model.ReservationItem) error {
	if len(items) == 0 {
		return nil
	}
	query := `INSERT INTO reservation_items (id, reservation_id, event_object_id, price_at_booking) VALUES `
	groups := make([]string, 0, len(items))
	args := make([]interface{}, 0, len(items)*4)
	for _, it := range items {
		groups = append(groups, "(?, ?, ?, ?)")
		args = append(args, it.ID, it.ReservationID, it.EventObjectID, it.PriceAtBooking)
	}
	query += strings.Join(groups, ", ")
	_, err := tx.ExecContext(ctx, r.db.Rebind(query), args...)
	return err
}

// FindHeldItemTx locks the live reservation item for seatID in eventID
// together with its header.  ErrNotFound when the seat is not part of an
// on_hold or confirmed reservation of that event.
func (r *ReservationRepo) FindHeldItemTx(ctx context.Context, tx *sql.Tx, eventID, seatID uuid.UUID) (*HeldItem, error) {
	const q = `SELECT ri.id, ri.reservation_id, r.user_id, r.status
	           FROM reservation_items ri
	           JOIN reservations r ON r.id = ri.reservation_id
	           WHERE ri.event_object_id = ? AND r.event_id = ? AND r.status IN ('on_hold', 'confirmed')
	           LIMIT 1
	           FOR UPDATE`
	var h HeldItem
	err := tx.QueryRowContext(ctx, r.db.Rebind(q), seatID, eventID).Scan(&h.ItemID, &h.ReservationID, &h.OwnerID, &h.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// DeleteItemTx removes one item.
func (r *ReservationRepo) DeleteItemTx(ctx context.Context, tx *sql.Tx, itemID uuid.UUID) error {
	const q = `DELETE FROM reservation_items WHERE id = ?`
	_, err := tx.ExecContext(ctx, r.db.Rebind(q), itemID)
	return err
}

// CountItemsTx counts what is left under a header.
func (r *ReservationRepo) CountItemsTx(ctx context.Context, tx *sql.Tx, reservationID uuid.UUID) (int, error) {
	const q = `SELECT COUNT(*) FROM reservation_items WHERE reservation_id = ?`
	var n int
	err := tx.QueryRowContext(ctx, r.db.Rebind(q), reservationID).Scan(&n)
	return n, err
}

// UpdateStatusTx moves the header to status.
func (r *ReservationRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, reservationID uuid.UUID, status model.ReservationStatus) error {
	const q = `UPDATE reservations SET status = ? WHERE id = ?`
	_, err := tx.ExecContext(ctx, r.db.Rebind(q), string(status), reservationID)
	return err
}

package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/iliyamo/seatsync/internal/database"
	"github.com/iliyamo/seatsync/internal/model"
	"github.com/iliyamo/seatsync/internal/repository"
)

// ReleaseResult describes what a release changed.
type ReleaseResult struct {
	ReservationID uuid.UUID
	Canceled      bool // the released seat was the last item
}

// ReleaseEngine frees seats one at a time.
type ReleaseEngine struct {
	db           *database.DB
	objects      *repository.EventObjectRepo
	reservations *repository.ReservationRepo
}

func NewReleaseEngine(db *database.DB) *ReleaseEngine {
	return &ReleaseEngine{
		db:           db,
		objects:      repository.NewEventObjectRepo(db),
		reservations: repository.NewReservationRepo(db),
	}
}

// Release removes seatID from userID's on_hold reservation in eventID and
// makes the seat available.  Removing the last item cancels the header in
// the same transaction.  Seats of confirmed reservations stay reserved.
func (e *ReleaseEngine) Release(ctx context.Context, eventID, userID, seatID uuid.UUID) (*ReleaseResult, error) {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin release: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	held, err := e.reservations.FindHeldItemTx(ctx, tx, eventID, seatID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, errNotReserved
	}
	if err != nil {
		return nil, fmt.Errorf("find reservation item: %w", err)
	}
	if held.OwnerID != userID {
		return nil, errNotOwner
	}
	if held.Status != model.ReservationOnHold {
		return nil, errConfirmed
	}

	if err := e.reservations.DeleteItemTx(ctx, tx, held.ItemID); err != nil {
		return nil, fmt.Errorf("delete reservation item: %w", err)
	}
	if err := e.objects.MarkAvailableTx(ctx, tx, seatID); err != nil {
		return nil, fmt.Errorf("mark seat available: %w", err)
	}
	left, err := e.reservations.CountItemsTx(ctx, tx, held.ReservationID)
	if err != nil {
		return nil, fmt.Errorf("count reservation items: %w", err)
	}
	out := &ReleaseResult{ReservationID: held.ReservationID}
	if left == 0 {
		if err := e.reservations.UpdateStatusTx(ctx, tx, held.ReservationID, model.ReservationCanceled); err != nil {
			return nil, fmt.Errorf("cancel reservation: %w", err)
		}
		out.Canceled = true
	}
	// TODO: recompute total_price from the remaining items once a Pricer
	// with real prices is wired in.

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit release: %w", err)
	}
	committed = true
	return out, nil
}

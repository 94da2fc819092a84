package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/seatsync/internal/database"
	"github.com/iliyamo/seatsync/internal/metrics"
	"github.com/iliyamo/seatsync/internal/model"
	"github.com/iliyamo/seatsync/internal/repository"
)

// ReservationEngine claims a set of seats atomically.  Mutual exclusion
// comes from the row locks taken in LockAvailableTx, so it holds across
// goroutines and across server processes.
type ReservationEngine struct {
	db           *database.DB
	objects      *repository.EventObjectRepo
	reservations *repository.ReservationRepo
	pricer       Pricer
}

func NewReservationEngine(db *database.DB, pricer Pricer) *ReservationEngine {
	if pricer == nil {
		pricer = FlatPricer{}
	}
	return &ReservationEngine{
		db:           db,
		objects:      repository.NewEventObjectRepo(db),
		reservations: repository.NewReservationRepo(db),
		pricer:       pricer,
	}
}

// Reserve creates an on_hold reservation of seatIDs for userID.  Either all
// seats are claimed or none: a seat that is taken, disabled by status or
// outside eventID fails the whole claim with a conflict.  Duplicate ids
// are collapsed.
func (e *ReservationEngine) Reserve(ctx context.Context, eventID, userID uuid.UUID, seatIDs []uuid.UUID) (*model.Reservation, error) {
	ids := uniqueIDs(seatIDs)
	if len(ids) == 0 {
		return nil, errNoSeats
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin reserve: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	locked, err := e.objects.LockAvailableTx(ctx, tx, eventID, ids)
	if err != nil {
		return nil, fmt.Errorf("lock seats: %w", err)
	}
	if len(locked) != len(ids) {
		metrics.ReservationConflict()
		return nil, errSeatsUnavailable
	}

	prices, err := e.pricer.Price(ctx, locked)
	if err != nil {
		return nil, fmt.Errorf("price seats: %w", err)
	}
	if len(prices) != len(locked) {
		return nil, fmt.Errorf("price seats: got %d prices for %d seats", len(prices), len(locked))
	}

	res := &model.Reservation{
		ID:         uuid.New(),
		EventID:    eventID,
		UserID:     userID,
		Status:     model.ReservationOnHold,
		TotalPrice: decimal.Sum(decimal.Zero, prices...),
	}
	if err := e.reservations.CreateTx(ctx, tx, res); err != nil {
		return nil, fmt.Errorf("insert reservation: %w", err)
	}

	items := make([]model.ReservationItem, 0, len(locked))
	lockedIDs := make([]uuid.UUID, 0, len(locked))
	for i, o := range locked {
		items = append(items, model.ReservationItem{
			ID:             uuid.New(),
			ReservationID:  res.ID,
			EventObjectID:  o.ID,
			PriceAtBooking: prices[i],
		})
		lockedIDs = append(lockedIDs, o.ID)
	}
	if err := e.reservations.CreateItemsBulkTx(ctx, tx, items); err != nil {
		return nil, fmt.Errorf("insert reservation items: %w", err)
	}
	if err := e.objects.MarkReservedTx(ctx, tx, lockedIDs); err != nil {
		return nil, fmt.Errorf("mark seats reserved: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit reserve: %w", err)
	}
	committed = true
	return res, nil
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReservationStatus is the state of a reservation header.
//
//	on_hold -> confirmed  (payment, handled elsewhere)
//	on_hold -> canceled   (last item released)
//	on_hold -> expired    (time based sweeper, handled elsewhere)
type ReservationStatus string

const (
	ReservationOnHold    ReservationStatus = "on_hold"
	ReservationConfirmed ReservationStatus = "confirmed"
	ReservationCanceled  ReservationStatus = "canceled"
	ReservationExpired   ReservationStatus = "expired"
)

// Terminal reports whether no further transition leaves s.
func (s ReservationStatus) Terminal() bool {
	return s == ReservationConfirmed || s == ReservationCanceled || s == ReservationExpired
}

// Reservation records one user's claim on a set of seats of an event.
//
// Fields:
//  ID         – primary key identifier, generated by the service.
//  EventID    – event the seats belong to.
//  UserID     – user who made the claim.
//  Status     – header state, always on_hold when created.
//  TotalPrice – sum of the item prices at booking time.
//  ExpiresAt  – hold deadline for the external sweeper (nullable).
//  ApprovedBy – admin who confirmed the reservation (nullable).
//  ApprovedAt – confirmation time (nullable).
//  CreatedAt  – creation timestamp.
type Reservation struct {
	ID         uuid.UUID         // reservations.id
	EventID    uuid.UUID         // reservations.event_id
	UserID     uuid.UUID         // reservations.user_id
	Status     ReservationStatus // reservations.status
	TotalPrice decimal.Decimal   // reservations.total_price
	ExpiresAt  *time.Time        // reservations.expires_at
	ApprovedBy uuid.NullUUID     // reservations.approved_by
	ApprovedAt *time.Time        // reservations.approved_at
	CreatedAt  time.Time         // reservations.created_at
}

// ReservationItem links a reservation to one claimed object and keeps the
// price at the time of booking.
type ReservationItem struct {
	ID             uuid.UUID       // reservation_items.id
	ReservationID  uuid.UUID       // reservation_items.reservation_id
	EventObjectID  uuid.UUID       // reservation_items.event_object_id
	PriceAtBooking decimal.Decimal // reservation_items.price_at_booking
}

// Package queue carries seat activity to RabbitMQ for auditing.  It is a
// side channel: rooms never depend on it.
package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/seatsync/internal/realtime"
)

// SeatActivity is published for every successful room broadcast.  It
// contains enough for downstream consumers to log or run analytics
// without querying the primary database.
type SeatActivity struct {
	EventID    uuid.UUID   `json:"event_id"`
	Type       string      `json:"type"` // seat_reserved, seat_released, seat_moved
	SeatIDs    []uuid.UUID `json:"seat_ids"`
	UserID     *uuid.UUID  `json:"user_id,omitempty"`
	X          *float64    `json:"x,omitempty"`
	Y          *float64    `json:"y,omitempty"`
	Z          *float64    `json:"z,omitempty"`
	OccurredAt string      `json:"occurred_at"` // RFC3339, UTC
}

// ActivityFrom converts a room broadcast.
func ActivityFrom(eventID uuid.UUID, ev realtime.EventPayload, at time.Time) SeatActivity {
	seats := ev.SeatIDs
	if len(seats) == 0 && ev.SeatID != nil {
		seats = []uuid.UUID{*ev.SeatID}
	}
	return SeatActivity{
		EventID:    eventID,
		Type:       ev.Type,
		SeatIDs:    seats,
		UserID:     ev.By,
		X:          ev.X,
		Y:          ev.Y,
		Z:          ev.Z,
		OccurredAt: at.UTC().Format(time.RFC3339),
	}
}

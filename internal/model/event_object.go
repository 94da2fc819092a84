package model

import "github.com/google/uuid"

// ObjectStatus is the availability of a bookable object.
type ObjectStatus string

const (
	ObjectAvailable ObjectStatus = "available"
	ObjectReserved  ObjectStatus = "reserved"
)

// EventObject is a seat, table or other addressable object of an event.
// Status only changes inside the reservation and release transactions,
// under a row lock.
type EventObject struct {
	ID         uuid.UUID     // event_objects.id
	EventID    uuid.UUID     // event_objects.event_id
	SectionID  uuid.NullUUID // event_objects.section_id (nullable)
	Label      string        // event_objects.label
	ObjectType string        // event_objects.object_type
	Status     ObjectStatus  // event_objects.status
	IsEnabled  bool          // event_objects.is_enabled
}

// Position is the 1:1 placement of an object on the event layout.
type Position struct {
	EventObjectID uuid.UUID `json:"seat_id"`  // object_positions.event_object_id
	X             float64   `json:"x"`        // object_positions.position_x
	Y             float64   `json:"y"`        // object_positions.position_y
	Z             float64   `json:"z"`        // object_positions.position_z
	Rotation      float64   `json:"rotation"` // object_positions.rotation
}

// LayoutObject is one entry of the public layout snapshot.
type LayoutObject struct {
	ID         uuid.UUID     `json:"id"`
	SectionID  uuid.NullUUID `json:"section_id"`
	Label      string        `json:"label"`
	ObjectType string        `json:"object_type"`
	Status     ObjectStatus  `json:"status"`
	IsEnabled  bool          `json:"is_enabled"`
	Position   *Position     `json:"position,omitempty"`
}

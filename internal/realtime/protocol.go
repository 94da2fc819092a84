// Package realtime implements the live seat protocol: command decoding,
// per-event rooms, and the per-connection reader, bridge and writer.
package realtime

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/iliyamo/seatsync/internal/model"
)

// Client actions.
const (
	ActionReserve = "reserve"
	ActionRelease = "release"
	ActionMove    = "moveObjectInLayout"
)

// UnknownRequestID is echoed when a malformed frame has no readable
// request_id.
const UnknownRequestID = "unknown"

// Command is one decoded client request.  The concrete types are
// ReserveCommand, ReleaseCommand and MoveCommand.
type Command interface {
	RequestID() string
	Action() string
}

type ReserveCommand struct {
	ID      string
	SeatIDs []uuid.UUID
}

type ReleaseCommand struct {
	ID     string
	SeatID uuid.UUID
}

type MoveCommand struct {
	ID      string
	SeatID  uuid.UUID
	X, Y, Z float64
}

func (c ReserveCommand) RequestID() string { return c.ID }
func (c ReleaseCommand) RequestID() string { return c.ID }
func (c MoveCommand) RequestID() string    { return c.ID }

func (ReserveCommand) Action() string { return ActionReserve }
func (ReleaseCommand) Action() string { return ActionRelease }
func (MoveCommand) Action() string    { return ActionMove }

// DecodeError is returned for frames that are not a valid command.
// RequestID is taken from the frame when possible.
type DecodeError struct {
	RequestID string
	Reason    string
}

func (e *DecodeError) Error() string { return "invalid command: " + e.Reason }

type inbound struct {
	Action    string      `json:"action"`
	RequestID *string     `json:"request_id"`
	SeatIDs   []uuid.UUID `json:"seat_ids"`
	SeatID    *uuid.UUID  `json:"seat_id"`
	X         *float64    `json:"x"`
	Y         *float64    `json:"y"`
	Z         *float64    `json:"z"`
}

// DecodeCommand parses one text frame.
func DecodeCommand(data []byte) (Command, error) {
	var in inbound
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, &DecodeError{RequestID: extractRequestID(data), Reason: err.Error()}
	}
	if in.RequestID == nil {
		return nil, &DecodeError{RequestID: UnknownRequestID, Reason: "missing request_id"}
	}
	id := *in.RequestID
	bad := func(format string, args ...any) error {
		return &DecodeError{RequestID: id, Reason: fmt.Sprintf(format, args...)}
	}

	switch in.Action {
	case ActionReserve:
		if len(in.SeatIDs) == 0 {
			return nil, bad("seat_ids must not be empty")
		}
		return ReserveCommand{ID: id, SeatIDs: dedupe(in.SeatIDs)}, nil
	case ActionRelease:
		if in.SeatID == nil {
			return nil, bad("missing seat_id")
		}
		return ReleaseCommand{ID: id, SeatID: *in.SeatID}, nil
	case ActionMove:
		if in.SeatID == nil || in.X == nil || in.Y == nil || in.Z == nil {
			return nil, bad("moveObjectInLayout needs seat_id, x, y and z")
		}
		return MoveCommand{ID: id, SeatID: *in.SeatID, X: *in.X, Y: *in.Y, Z: *in.Z}, nil
	case "":
		return nil, bad("missing action")
	}
	return nil, bad("unknown action %q", in.Action)
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func extractRequestID(data []byte) string {
	var probe struct {
		RequestID string `json:"request_id"`
	}
	if err := json.Unmarshal(data, &probe); err == nil && probe.RequestID != "" {
		return probe.RequestID
	}
	// Field-level failures still leave a parsable object.
	var loose map[string]json.RawMessage
	if err := json.Unmarshal(data, &loose); err == nil {
		var id string
		if raw, ok := loose["request_id"]; ok && json.Unmarshal(raw, &id) == nil && id != "" {
			return id
		}
	}
	return UnknownRequestID
}

// Server message types.
const (
	TypeAck   = "ack"
	TypeError = "error"
	TypeEvent = "event"
)

// Event payload types.
const (
	EventSeatReserved = "seat_reserved"
	EventSeatReleased = "seat_released"
	EventSeatMoved    = "seat_moved"
)

// ServerMessage is every frame the server writes.  Ack and Error go to the
// issuing connection only; Event goes to the whole room.
type ServerMessage struct {
	Type      string        `json:"type"`
	RequestID string        `json:"request_id,omitempty"`
	Code      string        `json:"code,omitempty"`
	Message   string        `json:"message,omitempty"`
	Payload   *EventPayload `json:"payload,omitempty"`
}

// EventPayload is a room broadcast.  Which fields are set depends on Type.
type EventPayload struct {
	Type    string      `json:"type"`
	SeatIDs []uuid.UUID `json:"seat_ids,omitempty"`
	By      *uuid.UUID  `json:"by,omitempty"`
	SeatID  *uuid.UUID  `json:"seat_id,omitempty"`
	X       *float64    `json:"x,omitempty"`
	Y       *float64    `json:"y,omitempty"`
	Z       *float64    `json:"z,omitempty"`
}

func Ack(requestID string) ServerMessage {
	return ServerMessage{Type: TypeAck, RequestID: requestID}
}

func Error(requestID, code, message string) ServerMessage {
	return ServerMessage{Type: TypeError, RequestID: requestID, Code: code, Message: message}
}

func Event(p EventPayload) ServerMessage {
	return ServerMessage{Type: TypeEvent, Payload: &p}
}

func SeatReserved(seatIDs []uuid.UUID, by uuid.UUID) EventPayload {
	return EventPayload{Type: EventSeatReserved, SeatIDs: seatIDs, By: &by}
}

func SeatReleased(seatID uuid.UUID) EventPayload {
	return EventPayload{Type: EventSeatReleased, SeatID: &seatID}
}

func SeatMoved(p model.Position) EventPayload {
	id, x, y, z := p.EventObjectID, p.X, p.Y, p.Z
	return EventPayload{Type: EventSeatMoved, SeatID: &id, X: &x, Y: &y, Z: &z}
}

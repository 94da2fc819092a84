package realtime

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/iliyamo/seatsync/internal/metrics"
	"github.com/iliyamo/seatsync/internal/model"
	"github.com/iliyamo/seatsync/internal/repository"
	"github.com/iliyamo/seatsync/internal/service"
)

// Wire error codes.
const (
	CodeBadRequest   = "400"
	CodeUnauthorized = "401"
	CodeForbidden    = "403"
	CodeNotFound     = "404"
	CodeConflict     = "409"
	CodeInternal     = "500"
)

type Reserver interface {
	Reserve(ctx context.Context, eventID, userID uuid.UUID, seatIDs []uuid.UUID) (*model.Reservation, error)
}

type Releaser interface {
	Release(ctx context.Context, eventID, userID, seatID uuid.UUID) (*service.ReleaseResult, error)
}

type Mover interface {
	MoveObject(ctx context.Context, eventID, objectID uuid.UUID, x, y, z float64) (*model.Position, error)
}

// RoleChecker re-reads the caller's role for privileged commands.
type RoleChecker interface {
	WorkspaceRole(ctx context.Context, id service.Identity, workspaceID uuid.UUID) (service.Role, error)
}

// Client is what a connection knows about its peer, fixed at upgrade.
type Client struct {
	EventID     uuid.UUID
	WorkspaceID uuid.UUID
	Identity    service.Identity
	Role        service.Role // resolved once at join
}

// Result is the outcome of one command: a private reply and, on success,
// the event to broadcast to the room.
type Result struct {
	Reply ServerMessage
	Event *EventPayload
}

// Dispatcher routes commands to the engines and maps failures to wire
// errors.  It does not touch the connection or the room.
type Dispatcher struct {
	reserver Reserver
	releaser Releaser
	mover    Mover
	roles    RoleChecker
	log      *slog.Logger
}

func NewDispatcher(reserver Reserver, releaser Releaser, mover Mover, roles RoleChecker, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{reserver: reserver, releaser: releaser, mover: mover, roles: roles, log: log}
}

var (
	errAuthRequired  = &service.Error{Kind: repository.ErrUnauthorized, Msg: "Authentication required"}
	errAdminRequired = &service.Error{Kind: repository.ErrForbidden, Msg: "Admin role required"}
)

func (d *Dispatcher) Dispatch(ctx context.Context, c Client, cmd Command) Result {
	var (
		ev  *EventPayload
		err error
	)
	switch cmd := cmd.(type) {
	case ReserveCommand:
		ev, err = d.reserve(ctx, c, cmd)
	case ReleaseCommand:
		ev, err = d.release(ctx, c, cmd)
	case MoveCommand:
		ev, err = d.move(ctx, c, cmd)
	default:
		err = &service.Error{Kind: repository.ErrBadRequest, Msg: "unsupported command"}
	}

	if err != nil {
		code, msg := classify(err)
		if code == CodeInternal {
			d.log.Error("command failed", "action", cmd.Action(), "request_id", cmd.RequestID(),
				"event_id", c.EventID, "err", err)
		}
		metrics.Command(cmd.Action(), code)
		return Result{Reply: Error(cmd.RequestID(), code, msg)}
	}
	metrics.Command(cmd.Action(), "ok")
	return Result{Reply: Ack(cmd.RequestID()), Event: ev}
}

func (d *Dispatcher) reserve(ctx context.Context, c Client, cmd ReserveCommand) (*EventPayload, error) {
	userID, ok := service.UserOf(c.Identity)
	if !ok {
		return nil, errAuthRequired
	}
	res, err := d.reserver.Reserve(ctx, c.EventID, userID, cmd.SeatIDs)
	if err != nil {
		return nil, err
	}
	d.log.Info("seats reserved", "event_id", c.EventID, "user_id", userID,
		"reservation_id", res.ID, "seats", len(cmd.SeatIDs))
	ev := SeatReserved(cmd.SeatIDs, userID)
	return &ev, nil
}

func (d *Dispatcher) release(ctx context.Context, c Client, cmd ReleaseCommand) (*EventPayload, error) {
	userID, ok := service.UserOf(c.Identity)
	if !ok {
		return nil, errAuthRequired
	}
	out, err := d.releaser.Release(ctx, c.EventID, userID, cmd.SeatID)
	if err != nil {
		return nil, err
	}
	d.log.Info("seat released", "event_id", c.EventID, "user_id", userID,
		"reservation_id", out.ReservationID, "canceled", out.Canceled)
	ev := SeatReleased(cmd.SeatID)
	return &ev, nil
}

func (d *Dispatcher) move(ctx context.Context, c Client, cmd MoveCommand) (*EventPayload, error) {
	if _, ok := service.UserOf(c.Identity); !ok {
		return nil, errAuthRequired
	}
	// The join-time role may be stale; privileged commands read it again
	// and fail on lookup errors instead of falling back to guest.
	role, err := d.roles.WorkspaceRole(ctx, c.Identity, c.WorkspaceID)
	if err != nil {
		return nil, err
	}
	if role != service.RoleAdmin {
		return nil, errAdminRequired
	}
	pos, err := d.mover.MoveObject(ctx, c.EventID, cmd.SeatID, cmd.X, cmd.Y, cmd.Z)
	if err != nil {
		return nil, err
	}
	ev := SeatMoved(*pos)
	return &ev, nil
}

// classify maps an engine error to a wire code and a client safe message.
func classify(err error) (code, msg string) {
	switch {
	case errors.Is(err, repository.ErrBadRequest):
		code = CodeBadRequest
	case errors.Is(err, repository.ErrUnauthorized):
		code = CodeUnauthorized
	case errors.Is(err, repository.ErrForbidden):
		code = CodeForbidden
	case errors.Is(err, repository.ErrNotFound):
		code = CodeNotFound
	case errors.Is(err, repository.ErrConflict):
		code = CodeConflict
	default:
		return CodeInternal, "Internal server error"
	}
	var se *service.Error
	if errors.As(err, &se) {
		return code, se.Msg
	}
	return code, err.Error()
}

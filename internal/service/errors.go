package service

import "github.com/iliyamo/seatsync/internal/repository"

// Error is a classified failure with a message that is safe to show to the
// client.  Kind is one of the repository sentinel errors.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }
func (e *Error) Unwrap() error { return e.Kind }

func fail(kind error, msg string) error { return &Error{Kind: kind, Msg: msg} }

var (
	errSeatsUnavailable = fail(repository.ErrConflict, "One or more seats are no longer available")
	errNoSeats          = fail(repository.ErrBadRequest, "seat_ids must not be empty")
	errNotReserved      = fail(repository.ErrNotFound, "Seat is not part of an active reservation")
	errNotOwner         = fail(repository.ErrUnauthorized, "Seat belongs to another user's reservation")
	errConfirmed        = fail(repository.ErrConflict, "Seat belongs to a confirmed reservation")
	errInvalidSession   = fail(repository.ErrUnauthorized, "Invalid or expired session")
	errUnknownObject    = fail(repository.ErrNotFound, "Object not found in this event")
)

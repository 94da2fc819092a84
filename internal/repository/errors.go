// Package repository holds the SQL access for events, objects, positions,
// reservations, sessions and workspace members, and the sentinel errors
// shared with the service layer.  Services wrap these values with
// fmt.Errorf("...: %w") and the realtime dispatcher maps them to wire
// codes with errors.Is.
package repository

import "errors"

// ErrNotFound is returned when an event, object, reservation item or
// session does not exist.  Mapped to code "404".
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when one or more requested seats are no longer
// available.  Mapped to code "409".
var ErrConflict = errors.New("conflict")

// ErrUnauthorized is returned for missing, invalid or expired sessions and
// for releasing a seat owned by someone else.  Mapped to code "401".
var ErrUnauthorized = errors.New("unauthorized")

// ErrForbidden is returned when an authenticated caller lacks the role a
// command requires.  Mapped to code "403".
var ErrForbidden = errors.New("forbidden")

// ErrBadRequest is returned for malformed commands.  Mapped to code "400".
var ErrBadRequest = errors.New("bad request")

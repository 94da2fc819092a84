package realtime

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/iliyamo/seatsync/internal/model"
	"github.com/iliyamo/seatsync/internal/repository"
	"github.com/iliyamo/seatsync/internal/service"
)

// seatBook emulates the row lock: one mutex around check-and-claim, so of
// two overlapping claims only one can win.
type seatBook struct {
	mu      sync.Mutex
	eventID uuid.UUID
	seats   map[uuid.UUID]bool      // known seats of the event
	owner   map[uuid.UUID]uuid.UUID // seat -> user holding it
	held    map[uuid.UUID]uuid.UUID // seat -> event of the holding reservation
	commits atomic.Int32
}

func newSeatBook(eventID uuid.UUID, seats ...uuid.UUID) *seatBook {
	b := &seatBook{eventID: eventID, seats: map[uuid.UUID]bool{}, owner: map[uuid.UUID]uuid.UUID{}, held: map[uuid.UUID]uuid.UUID{}}
	for _, s := range seats {
		b.seats[s] = true
	}
	return b
}

func (b *seatBook) Reserve(_ context.Context, eventID, userID uuid.UUID, seatIDs []uuid.UUID) (*model.Reservation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range seatIDs {
		if _, taken := b.owner[s]; taken || !b.seats[s] || eventID != b.eventID {
			return nil, &service.Error{Kind: repository.ErrConflict, Msg: "One or more seats are no longer available"}
		}
	}
	for _, s := range seatIDs {
		b.owner[s] = userID
		b.held[s] = eventID
	}
	b.commits.Add(1)
	return &model.Reservation{ID: uuid.New(), EventID: eventID, UserID: userID, Status: model.ReservationOnHold}, nil
}

// holdElsewhere records userID holding seatID under another event.
func (b *seatBook) holdElsewhere(eventID, userID, seatID uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.owner[seatID] = userID
	b.held[seatID] = eventID
}

func (b *seatBook) Release(_ context.Context, eventID, userID, seatID uuid.UUID) (*service.ReleaseResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	owner, ok := b.owner[seatID]
	if !ok || b.held[seatID] != eventID {
		return nil, &service.Error{Kind: repository.ErrNotFound, Msg: "Seat is not part of an active reservation"}
	}
	if owner != userID {
		return nil, &service.Error{Kind: repository.ErrUnauthorized, Msg: "Seat belongs to another user's reservation"}
	}
	delete(b.owner, seatID)
	delete(b.held, seatID)
	return &service.ReleaseResult{ReservationID: uuid.New(), Canceled: true}, nil
}

func (b *seatBook) available() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for s := range b.seats {
		if _, taken := b.owner[s]; !taken {
			n++
		}
	}
	return n
}

type fakeMover struct {
	calls atomic.Int32
	err   error
}

func (m *fakeMover) MoveObject(_ context.Context, _, objectID uuid.UUID, x, y, z float64) (*model.Position, error) {
	m.calls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	return &model.Position{EventObjectID: objectID, X: x, Y: y, Z: z}, nil
}

type fakeRoles struct {
	roles map[uuid.UUID]service.Role
	err   error
}

func (f *fakeRoles) WorkspaceRole(_ context.Context, id service.Identity, _ uuid.UUID) (service.Role, error) {
	if f.err != nil {
		return service.RoleGuest, f.err
	}
	uid, ok := service.UserOf(id)
	if !ok {
		return service.RoleGuest, nil
	}
	return f.roles[uid], nil
}

type failingReserver struct{ err error }

func (f failingReserver) Reserve(context.Context, uuid.UUID, uuid.UUID, []uuid.UUID) (*model.Reservation, error) {
	return nil, f.err
}

var errStoreDown = errors.New("connection refused")

func authed(userID uuid.UUID) service.Identity {
	return service.Authenticated{Session: model.SessionInfo{UserID: userID}}
}

package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// ErrRoomClosed is returned by Recv after the subscription was closed.
var ErrRoomClosed = errors.New("room subscription closed")

// LaggedError reports broadcasts a subscriber missed because its backlog
// was full.  Delivery continues with later broadcasts.
type LaggedError struct {
	Skipped uint64
}

func (e *LaggedError) Error() string {
	return fmt.Sprintf("subscriber lagged, %d broadcasts skipped", e.Skipped)
}

// Room is the broadcast topic of one event.  Every subscriber has its own
// bounded backlog; Publish never blocks on a slow subscriber.
type Room struct {
	eventID uuid.UUID
	backlog int

	mu      sync.RWMutex
	subs    map[*Subscription]struct{}
	retired bool // removed from the registry, no new subscribers
}

func newRoom(eventID uuid.UUID, backlog int) *Room {
	if backlog < 1 {
		backlog = 1
	}
	return &Room{eventID: eventID, backlog: backlog, subs: make(map[*Subscription]struct{})}
}

func (r *Room) EventID() uuid.UUID { return r.eventID }

// Subscribers returns the current number of subscriptions.
func (r *Room) Subscribers() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}

func (r *Room) subscribe() (*Subscription, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.retired {
		return nil, false
	}
	s := &Subscription{room: r, ch: make(chan []byte, r.backlog)}
	r.subs[s] = struct{}{}
	return s, true
}

// Publish hands frame to every subscriber and returns how many accepted
// it.  Subscribers with a full backlog miss it and are marked lagged.
func (r *Room) Publish(frame []byte) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for s := range r.subs {
		select {
		case s.ch <- frame:
			n++
		default:
			s.lagged.Add(1)
		}
	}
	return n
}

func (r *Room) unsubscribe(s *Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.subs[s]; ok {
		delete(r.subs, s)
		close(s.ch)
	}
}

// retireIfEmpty marks an empty room retired.  A retired room never accepts
// subscribers again.
func (r *Room) retireIfEmpty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.subs) > 0 {
		return false
	}
	r.retired = true
	return true
}

// Subscription is one connection's view of a room.
type Subscription struct {
	room   *Room
	ch     chan []byte
	lagged atomic.Uint64
	once   sync.Once
}

// Recv returns the next broadcast frame.  If broadcasts were dropped since
// the last call it first returns a *LaggedError.
func (s *Subscription) Recv(ctx context.Context) ([]byte, error) {
	if n := s.lagged.Swap(0); n > 0 {
		return nil, &LaggedError{Skipped: n}
	}
	select {
	case frame, ok := <-s.ch:
		if !ok {
			return nil, ErrRoomClosed
		}
		return frame, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close leaves the room.  Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() { s.room.unsubscribe(s) })
}

// Registry maps event ids to rooms.  Rooms are created on first join and
// kept until Prune finds them empty.  It is created once by the server and
// passed to whoever needs it.
type Registry struct {
	rooms   sync.Map // uuid.UUID -> *Room
	backlog int
}

func NewRegistry(backlog int) *Registry {
	return &Registry{backlog: backlog}
}

// Join subscribes to the room of eventID, creating the room if needed.
// Concurrent first joiners end up in the same room.
func (g *Registry) Join(eventID uuid.UUID) *Subscription {
	for {
		room := g.room(eventID)
		if s, ok := room.subscribe(); ok {
			return s
		}
		// Lost a race with Prune; drop the retired room and retry.
		g.rooms.CompareAndDelete(eventID, room)
	}
}

func (g *Registry) room(eventID uuid.UUID) *Room {
	if v, ok := g.rooms.Load(eventID); ok {
		return v.(*Room)
	}
	v, _ := g.rooms.LoadOrStore(eventID, newRoom(eventID, g.backlog))
	return v.(*Room)
}

// Room returns the room of eventID if it exists.
func (g *Registry) Room(eventID uuid.UUID) (*Room, bool) {
	v, ok := g.rooms.Load(eventID)
	if !ok {
		return nil, false
	}
	return v.(*Room), true
}

// Publish broadcasts frame to the room of eventID.  It returns the number
// of subscribers that accepted the frame, 0 when the room does not exist.
func (g *Registry) Publish(eventID uuid.UUID, frame []byte) int {
	room, ok := g.Room(eventID)
	if !ok {
		return 0
	}
	return room.Publish(frame)
}

// Len returns the number of live rooms.
func (g *Registry) Len() int {
	n := 0
	g.rooms.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Prune removes rooms without subscribers and returns how many it removed.
func (g *Registry) Prune() int {
	n := 0
	g.rooms.Range(func(key, value any) bool {
		room := value.(*Room)
		if room.retireIfEmpty() && g.rooms.CompareAndDelete(key, room) {
			n++
		}
		return true
	})
	return n
}

// RunPruner calls Prune every interval until ctx is done.  A non-positive
// interval returns immediately.
func (g *Registry) RunPruner(ctx context.Context, interval time.Duration, onPrune func(int)) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := g.Prune(); n > 0 && onPrune != nil {
				onPrune(n)
			}
		}
	}
}

package realtime

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/seatsync/internal/config"
	"github.com/iliyamo/seatsync/internal/service"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []EventPayload
}

func (n *recordingNotifier) Notify(_ uuid.UUID, ev EventPayload) {
	n.mu.Lock()
	n.events = append(n.events, ev)
	n.mu.Unlock()
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}

type hubFixture struct {
	*dispatchFixture
	hub      *Hub
	registry *Registry
	notifier *recordingNotifier
	srv      *httptest.Server
	served   chan error
}

func startHub(t *testing.T) *hubFixture {
	t.Helper()
	f := &hubFixture{
		dispatchFixture: newDispatchFixture(),
		registry:        NewRegistry(64),
		notifier:        &recordingNotifier{},
		served:          make(chan error, 8),
	}
	f.hub = NewHub(f.registry, f.d, f.notifier, config.WebSocketConfig{
		WriteTimeout:   time.Second,
		CommandTimeout: time.Second,
		ReadLimit:      64 * 1024,
	}, nil)

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		var id service.Identity = service.Guest{}
		if u := r.URL.Query().Get("user"); u != "" {
			id = authed(uuid.MustParse(u))
		}
		f.served <- f.hub.Serve(r.Context(), ws, f.client(id))
	}))
	t.Cleanup(f.srv.Close)
	t.Cleanup(f.hub.Close)
	return f
}

func (f *hubFixture) dial(t *testing.T, user uuid.UUID) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/"
	if user != uuid.Nil {
		url += "?user=" + user.String()
	}
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// waitJoined blocks until n connections are subscribed to the event room.
func (f *hubFixture) waitJoined(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		room, ok := f.registry.Room(f.event)
		return ok && room.Subscribers() == n
	}, 2*time.Second, 5*time.Millisecond)
}

func send(t *testing.T, c *websocket.Conn, v any) {
	t.Helper()
	require.NoError(t, c.WriteJSON(v))
}

func read(t *testing.T, c *websocket.Conn) ServerMessage {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	var m ServerMessage
	require.NoError(t, c.ReadJSON(&m))
	return m
}

// readN reads n frames and splits them into the private reply and events.
func readN(t *testing.T, c *websocket.Conn, n int) (replies, events []ServerMessage) {
	t.Helper()
	for i := 0; i < n; i++ {
		m := read(t, c)
		if m.Type == TypeEvent {
			events = append(events, m)
		} else {
			replies = append(replies, m)
		}
	}
	return replies, events
}

func assertSilent(t *testing.T, c *websocket.Conn) {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := c.ReadMessage()
	assert.Error(t, err, "expected no more frames")
}

func TestHub_OverlappingReservationsOneWinner(t *testing.T) {
	f := startHub(t)
	s1, s2 := f.seats[0], f.seats[1]
	a := f.dial(t, f.member)
	b := f.dial(t, f.admin)
	f.waitJoined(t, 2)

	send(t, a, map[string]any{"action": "reserve", "request_id": "r1", "seat_ids": []uuid.UUID{s1, s2}})
	send(t, b, map[string]any{"action": "reserve", "request_id": "r2", "seat_ids": []uuid.UUID{s2}})

	// Each client gets its own reply plus the single winning broadcast.
	aReplies, aEvents := readN(t, a, 2)
	bReplies, bEvents := readN(t, b, 2)
	require.Len(t, aReplies, 1)
	require.Len(t, bReplies, 1)
	require.Len(t, aEvents, 1)
	require.Len(t, bEvents, 1)
	assert.Equal(t, aEvents[0], bEvents[0])

	ra, rb := aReplies[0], bReplies[0]
	acks := 0
	for _, r := range []ServerMessage{ra, rb} {
		if r.Type == TypeAck {
			acks++
		} else {
			assert.Equal(t, CodeConflict, r.Code)
		}
	}
	assert.Equal(t, 1, acks)
	assert.EqualValues(t, 1, f.book.commits.Load())

	ev := aEvents[0].Payload
	require.NotNil(t, ev)
	assert.Equal(t, EventSeatReserved, ev.Type)
	if ra.Type == TypeAck {
		assert.Equal(t, "r1", ra.RequestID)
		assert.Equal(t, []uuid.UUID{s1, s2}, ev.SeatIDs)
		assert.Equal(t, 0, f.book.available())
	} else {
		assert.Equal(t, "r2", rb.RequestID)
		assert.Equal(t, []uuid.UUID{s2}, ev.SeatIDs)
		assert.Equal(t, 1, f.book.available())
	}

	assertSilent(t, a)
	assert.Eventually(t, func() bool { return f.notifier.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestHub_ReleaseIsBroadcast(t *testing.T) {
	f := startHub(t)
	s1 := f.seats[0]
	a := f.dial(t, f.member)
	b := f.dial(t, uuid.Nil)
	f.waitJoined(t, 2)

	send(t, a, map[string]any{"action": "reserve", "request_id": "r1", "seat_ids": []uuid.UUID{s1}})
	replies, _ := readN(t, a, 2)
	require.Equal(t, Ack("r1"), replies[0])
	assert.Equal(t, EventSeatReserved, read(t, b).Payload.Type)

	send(t, a, map[string]any{"action": "release", "request_id": "r2", "seat_id": s1})
	replies, events := readN(t, a, 2)
	require.Equal(t, Ack("r2"), replies[0])
	assert.Equal(t, SeatReleased(s1), *events[0].Payload)

	got := read(t, b)
	assert.Equal(t, TypeEvent, got.Type)
	assert.Equal(t, SeatReleased(s1), *got.Payload)
	assert.Equal(t, 2, f.book.available())
}

func TestHub_CrossEventReleaseIsNotBroadcast(t *testing.T) {
	f := startHub(t)
	seat := uuid.New()
	f.book.holdElsewhere(uuid.New(), f.member, seat)
	a := f.dial(t, f.member)
	b := f.dial(t, uuid.Nil)
	f.waitJoined(t, 2)

	send(t, a, map[string]any{"action": "release", "request_id": "r1", "seat_id": seat})

	m := read(t, a)
	assert.Equal(t, TypeError, m.Type)
	assert.Equal(t, "r1", m.RequestID)
	assert.Equal(t, CodeNotFound, m.Code)
	assertSilent(t, a)
	assertSilent(t, b)
	assert.Zero(t, f.notifier.count())
}

func TestHub_GuestMoveIsRejectedPrivately(t *testing.T) {
	f := startHub(t)
	guest := f.dial(t, uuid.Nil)
	watcher := f.dial(t, f.member)
	f.waitJoined(t, 2)

	send(t, guest, map[string]any{"action": "moveObjectInLayout", "request_id": "m1", "seat_id": f.seats[0], "x": 1, "y": 2, "z": 3})

	m := read(t, guest)
	assert.Equal(t, TypeError, m.Type)
	assert.Equal(t, "m1", m.RequestID)
	assert.Equal(t, CodeUnauthorized, m.Code)
	assert.Zero(t, f.mover.calls.Load())
	assertSilent(t, watcher)
}

func TestHub_MalformedAndBinaryFramesKeepConnection(t *testing.T) {
	f := startHub(t)
	c := f.dial(t, f.member)
	f.waitJoined(t, 1)

	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte("{oops")))
	m := read(t, c)
	assert.Equal(t, TypeError, m.Type)
	assert.Equal(t, UnknownRequestID, m.RequestID)
	assert.Equal(t, CodeBadRequest, m.Code)

	require.NoError(t, c.WriteMessage(websocket.BinaryMessage, []byte{0x01, 0x02}))

	send(t, c, map[string]any{"action": "teleport", "request_id": "t1"})
	m = read(t, c)
	assert.Equal(t, "t1", m.RequestID)
	assert.Equal(t, CodeBadRequest, m.Code)

	send(t, c, map[string]any{"action": "reserve", "request_id": "r1", "seat_ids": []uuid.UUID{f.seats[0]}})
	replies, events := readN(t, c, 2)
	assert.Equal(t, Ack("r1"), replies[0])
	assert.Len(t, events, 1)
}

func TestHub_CloseFrameEndsConnectionCleanly(t *testing.T) {
	f := startHub(t)
	c := f.dial(t, f.member)
	f.waitJoined(t, 1)

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")
	require.NoError(t, c.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)))

	select {
	case err := <-f.served:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("connection did not end")
	}
	room, ok := f.registry.Room(f.event)
	require.True(t, ok)
	assert.Zero(t, room.Subscribers())
}

func TestHub_CloseEndsConnections(t *testing.T) {
	f := startHub(t)
	f.dial(t, f.member)
	f.waitJoined(t, 1)

	done := make(chan struct{})
	go func() {
		f.hub.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not close")
	}
	select {
	case err := <-f.served:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("serve did not return")
	}
}

func TestHub_BroadcastWithoutRoom(t *testing.T) {
	f := startHub(t)
	f.hub.Broadcast(uuid.New(), SeatReleased(uuid.New()))
	assert.Equal(t, 1, f.notifier.count())
}

func TestNotifiersFanOut(t *testing.T) {
	a, b := &recordingNotifier{}, &recordingNotifier{}
	Notifiers{a, b}.Notify(uuid.New(), SeatReleased(uuid.New()))
	assert.Equal(t, 1, a.count())
	assert.Equal(t, 1, b.count())
}

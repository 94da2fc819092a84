package realtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_ConcurrentFirstJoinShareRoom(t *testing.T) {
	g := NewRegistry(16)
	eventID := uuid.New()

	const joiners = 64
	subs := make([]*Subscription, joiners)
	var wg sync.WaitGroup
	for i := 0; i < joiners; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			subs[i] = g.Join(eventID)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, g.Len())
	room, ok := g.Room(eventID)
	require.True(t, ok)
	assert.Equal(t, joiners, room.Subscribers())
	for _, s := range subs {
		assert.Same(t, room, s.room)
	}
}

func TestRoom_PublishReachesEverySubscriber(t *testing.T) {
	g := NewRegistry(4)
	eventID := uuid.New()
	a, b := g.Join(eventID), g.Join(eventID)
	other := g.Join(uuid.New())

	assert.Equal(t, 2, g.Publish(eventID, []byte("hello")))

	ctx := context.Background()
	for _, s := range []*Subscription{a, b} {
		frame, err := s.Recv(ctx)
		require.NoError(t, err)
		assert.Equal(t, "hello", string(frame))
	}

	ctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err := other.Recv(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRoom_SlowSubscriberLags(t *testing.T) {
	g := NewRegistry(2)
	eventID := uuid.New()
	s := g.Join(eventID)

	for i := 0; i < 5; i++ {
		g.Publish(eventID, []byte{byte('a' + i)})
	}

	ctx := context.Background()
	_, err := s.Recv(ctx)
	var lag *LaggedError
	require.True(t, errors.As(err, &lag))
	assert.EqualValues(t, 3, lag.Skipped)

	frame, err := s.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", string(frame))
	frame, err = s.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b", string(frame))
}

func TestSubscription_Close(t *testing.T) {
	g := NewRegistry(2)
	eventID := uuid.New()
	s := g.Join(eventID)
	keep := g.Join(eventID)

	s.Close()
	s.Close()

	_, err := s.Recv(context.Background())
	assert.ErrorIs(t, err, ErrRoomClosed)
	assert.Equal(t, 1, g.Publish(eventID, []byte("x")))
	keep.Close()
}

func TestRegistry_Prune(t *testing.T) {
	g := NewRegistry(2)
	busy, idle := uuid.New(), uuid.New()
	live := g.Join(busy)
	g.Join(idle).Close()

	assert.Equal(t, 1, g.Prune())
	assert.Equal(t, 1, g.Len())
	_, ok := g.Room(idle)
	assert.False(t, ok)

	again := g.Join(idle)
	assert.Equal(t, 1, g.Publish(idle, []byte("back")))
	again.Close()
	live.Close()
}

func TestRegistry_JoinReplacesRetiredRoom(t *testing.T) {
	g := NewRegistry(2)
	eventID := uuid.New()
	stale := g.room(eventID)
	require.True(t, stale.retireIfEmpty())

	s := g.Join(eventID)
	assert.NotSame(t, stale, s.room)
	room, ok := g.Room(eventID)
	require.True(t, ok)
	assert.Same(t, room, s.room)
}

func TestRegistry_RunPruner(t *testing.T) {
	g := NewRegistry(2)
	g.Join(uuid.New()).Close()

	ctx, cancel := context.WithCancel(context.Background())
	pruned := make(chan int, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		g.RunPruner(ctx, 5*time.Millisecond, func(n int) {
			select {
			case pruned <- n:
			default:
			}
		})
	}()

	select {
	case n := <-pruned:
		assert.Equal(t, 1, n)
	case <-time.After(time.Second):
		t.Fatal("pruner did not run")
	}
	cancel()
	<-done
	assert.Zero(t, g.Len())
}

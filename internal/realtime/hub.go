package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/seatsync/internal/config"
	"github.com/iliyamo/seatsync/internal/metrics"
	"github.com/iliyamo/seatsync/internal/service"
)

// Notifier receives every broadcast after it was published to the room.
// Implementations must not block.
type Notifier interface {
	Notify(eventID uuid.UUID, ev EventPayload)
}

// Notifiers hands every event to each notifier in order.
type Notifiers []Notifier

func (ns Notifiers) Notify(eventID uuid.UUID, ev EventPayload) {
	for _, n := range ns {
		n.Notify(eventID, ev)
	}
}

// Hub runs websocket connections against the room registry.
type Hub struct {
	registry   *Registry
	dispatcher *Dispatcher
	notifier   Notifier
	cfg        config.WebSocketConfig
	log        *slog.Logger

	base  context.Context
	stop  context.CancelFunc
	conns sync.WaitGroup
}

func NewHub(registry *Registry, dispatcher *Dispatcher, notifier Notifier, cfg config.WebSocketConfig, log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	base, stop := context.WithCancel(context.Background())
	return &Hub{
		registry:   registry,
		dispatcher: dispatcher,
		notifier:   notifier,
		cfg:        cfg,
		log:        log,
		base:       base,
		stop:       stop,
	}
}

// Close ends every running connection and waits for them to finish.
func (h *Hub) Close() {
	h.stop()
	h.conns.Wait()
}

// Serve runs one upgraded connection until the peer leaves, a task fails,
// ctx is done or the hub is closed.  It owns ws and closes it.
func (h *Hub) Serve(ctx context.Context, ws *websocket.Conn, c Client) error {
	h.conns.Add(1)
	defer h.conns.Done()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stopHub := context.AfterFunc(h.base, cancel)
	defer stopHub()
	// Closing the socket is what unblocks the reader.
	stopClose := context.AfterFunc(ctx, func() { _ = ws.Close() })
	defer stopClose()
	defer ws.Close()

	user := "guest"
	if uid, ok := service.UserOf(c.Identity); ok {
		user = uid.String()
	}
	log := h.log.With("event_id", c.EventID, "conn_id", uuid.NewString(), "user_id", user)

	sub := h.registry.Join(c.EventID)
	defer sub.Close()
	out := NewOutbox()
	defer out.Close()

	eventLabel := c.EventID.String()
	metrics.ConnectionOpened(eventLabel)
	defer metrics.ConnectionClosed(eventLabel)
	log.Info("client joined", "role", c.Role.String())

	if h.cfg.ReadLimit > 0 {
		ws.SetReadLimit(h.cfg.ReadLimit)
	}

	g, gctx := errgroup.WithContext(ctx)
	// First task to return, with or without error, stops the other two.
	g.Go(func() error { defer cancel(); return h.readLoop(gctx, ws, c, out, log) })
	g.Go(func() error { defer cancel(); return h.bridge(gctx, sub, out, log) })
	g.Go(func() error { defer cancel(); return h.writeLoop(gctx, ws, out) })
	err := g.Wait()

	if err != nil {
		log.Error("connection task failed", "err", err)
	}
	log.Info("client left")
	return err
}

func (h *Hub) readLoop(ctx context.Context, ws *websocket.Conn, c Client, out *Outbox, log *slog.Logger) error {
	for {
		mt, data, err := ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		if mt != websocket.TextMessage {
			log.Warn("non-text frame ignored", "type", mt)
			continue
		}
		h.handle(ctx, c, data, out)
	}
}

// handle runs one command to completion before the next frame is read, so
// a client's commands complete in arrival order.
func (h *Hub) handle(ctx context.Context, c Client, data []byte, out *Outbox) {
	cmd, err := DecodeCommand(data)
	if err != nil {
		var de *DecodeError
		reqID := UnknownRequestID
		if errors.As(err, &de) {
			reqID = de.RequestID
		}
		metrics.Command("invalid", CodeBadRequest)
		h.push(out, Error(reqID, CodeBadRequest, err.Error()))
		return
	}

	// A leaving client must not abort a transaction half way.
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.cfg.CommandTimeout)
	res := h.dispatcher.Dispatch(cctx, c, cmd)
	cancel()

	h.push(out, res.Reply)
	if res.Event != nil {
		h.Broadcast(c.EventID, *res.Event)
	}
}

// Broadcast publishes ev to the room of eventID and hands it to the
// notifier.
func (h *Hub) Broadcast(eventID uuid.UUID, ev EventPayload) {
	frame, err := json.Marshal(Event(ev))
	if err != nil {
		h.log.Error("encode broadcast", "event_id", eventID, "err", err)
		return
	}
	h.registry.Publish(eventID, frame)
	metrics.Broadcast()
	if h.notifier != nil {
		h.notifier.Notify(eventID, ev)
	}
}

func (h *Hub) push(out *Outbox, m ServerMessage) {
	frame, err := json.Marshal(m)
	if err != nil {
		h.log.Error("encode reply", "request_id", m.RequestID, "err", err)
		return
	}
	out.Push(frame)
}

func (h *Hub) bridge(ctx context.Context, sub *Subscription, out *Outbox, log *slog.Logger) error {
	for {
		frame, err := sub.Recv(ctx)
		var lag *LaggedError
		switch {
		case errors.As(err, &lag):
			log.Warn("broadcasts skipped for slow client", "skipped", lag.Skipped)
			metrics.Lagged(lag.Skipped)
			continue
		case err != nil:
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("bridge: %w", err)
		}
		if !out.Push(frame) {
			return nil
		}
	}
}

func (h *Hub) writeLoop(ctx context.Context, ws *websocket.Conn, out *Outbox) error {
	for {
		frame, err := out.Next(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, ErrOutboxClosed) {
				return nil
			}
			return err
		}
		_ = ws.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
		if err := ws.WriteMessage(websocket.TextMessage, frame); err != nil {
			return fmt.Errorf("write: %w", err)
		}
	}
}

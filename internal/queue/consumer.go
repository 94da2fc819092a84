package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AuditLog appends one line per seat activity to a file.
type AuditLog struct {
	Path string
}

// StartActivityConsumer consumes queueName and appends each message to
// audit.  It reconnects with backoff and returns only when ctx is done.
// Malformed messages are rejected without requeue so they cannot loop.
func StartActivityConsumer(ctx context.Context, url, queueName string, audit AuditLog, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}
	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Warn("seat-audit: failed to dial broker", "err", err, "retry_in", backoff)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = consumeLoop(ctx, conn, queueName, audit, log)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn("seat-audit: consume loop ended, reconnecting", "err", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, queueName string, audit AuditLog, log *slog.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Warn("seat-audit: set QoS failed", "err", err)
	}
	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := audit.Append(d.Body); err != nil {
				log.Warn("seat-audit: handle message failed", "err", err)
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// Append decodes one message body and writes its audit line.
func (a AuditLog) Append(body []byte) error {
	var ev SeatActivity
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Type == "" {
		return errors.New("activity without type")
	}
	if err := os.MkdirAll(filepath.Dir(a.Path), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(a.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(FormatLine(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// FormatLine renders a single, newline terminated audit line.
func FormatLine(ev SeatActivity) string {
	seats := make([]string, 0, len(ev.SeatIDs))
	for _, s := range ev.SeatIDs {
		seats = append(seats, s.String())
	}
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s | event_id=%s | seats=[%s]", ev.OccurredAt, ev.Type, ev.EventID, strings.Join(seats, ","))
	if ev.UserID != nil {
		fmt.Fprintf(&b, " | user_id=%s", *ev.UserID)
	}
	if ev.X != nil && ev.Y != nil && ev.Z != nil {
		fmt.Fprintf(&b, " | position=(%g, %g, %g)", *ev.X, *ev.Y, *ev.Z)
	}
	b.WriteByte('\n')
	return b.String()
}

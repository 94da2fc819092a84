package queue

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/seatsync/internal/config"
	"github.com/iliyamo/seatsync/internal/metrics"
	"github.com/iliyamo/seatsync/internal/realtime"
)

// broker is the part of an AMQP channel the publisher uses.
type broker interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type amqpBroker struct {
	conn *amqp.Connection
	*amqp.Channel
}

func (b *amqpBroker) Close() error {
	_ = b.Channel.Close()
	return b.conn.Close()
}

func dialAMQP(url string) (broker, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return &amqpBroker{conn: conn, Channel: ch}, nil
}

// Publisher forwards seat activity to the activity queue.  Notify only
// enqueues into a bounded buffer and drops when it is full; Run drains the
// buffer and keeps reconnecting to the broker.  Nothing here affects a
// command's result.
type Publisher struct {
	cfg  config.QueueConfig
	buf  chan SeatActivity
	log  *slog.Logger
	dial func(url string) (broker, error)
	now  func() time.Time
}

func NewPublisher(cfg config.QueueConfig, log *slog.Logger) *Publisher {
	if log == nil {
		log = slog.Default()
	}
	size := cfg.BufferSize
	if size < 1 {
		size = 1
	}
	return &Publisher{
		cfg:  cfg,
		buf:  make(chan SeatActivity, size),
		log:  log,
		dial: dialAMQP,
		now:  time.Now,
	}
}

// Notify implements realtime.Notifier.
func (p *Publisher) Notify(eventID uuid.UUID, ev realtime.EventPayload) {
	msg := ActivityFrom(eventID, ev, p.now())
	select {
	case p.buf <- msg:
	default:
		metrics.ActivityDropped()
		p.log.Warn("seat activity dropped, buffer full", "event_id", eventID, "type", ev.Type)
	}
}

// Run publishes buffered activity until ctx is done.
func (p *Publisher) Run(ctx context.Context) {
	backoff := time.Second
	for {
		b, err := p.connect()
		if err != nil {
			p.log.Warn("rabbitmq: connect failed", "err", err, "retry_in", backoff)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = p.drain(ctx, b)
		_ = b.Close()
		if ctx.Err() != nil {
			return
		}
		p.log.Warn("rabbitmq: publish loop ended, reconnecting", "err", err)
	}
}

func (p *Publisher) connect() (broker, error) {
	b, err := p.dial(p.cfg.URL)
	if err != nil {
		return nil, err
	}
	// Durable so messages survive broker restarts.
	if _, err := b.QueueDeclare(p.cfg.QueueName, true, false, false, false, nil); err != nil {
		_ = b.Close()
		return nil, err
	}
	return b, nil
}

func (p *Publisher) drain(ctx context.Context, b broker) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-p.buf:
			body, err := json.Marshal(msg)
			if err != nil {
				p.log.Error("rabbitmq: marshal activity failed", "err", err)
				continue
			}
			pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = b.PublishWithContext(pctx, "", p.cfg.QueueName, false, false, amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				Timestamp:    p.now(),
				Body:         body,
			})
			cancel()
			if err != nil {
				metrics.ActivityDropped()
				p.log.Warn("rabbitmq: publish failed, activity dropped", "event_id", msg.EventID, "err", err)
				return err
			}
		}
	}
}

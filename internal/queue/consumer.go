package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/iliyamo/ecotour-booking/internal/logger"
)

// Notifier delivers visitor-facing notifications and keeps the booking
// log.  The default implementation writes to log files; a mailer plugs in
// here.
type Notifier interface {
    BookingConfirmed(ctx context.Context, ev BookingConfirmedEvent) error
    TicketsIssued(ctx context.Context, ev TicketsIssuedEvent) error
    BookingCancelled(ctx context.Context, ev BookingCancelledEvent) error
}

// Consumer listens to the booking.confirmed, tickets.issued and
// booking.cancelled queues and hands every message to a Notifier.
type Consumer struct {
    url      string
    notifier Notifier
    log      *logger.Logger
}

func NewConsumer(url string, notifier Notifier, log *logger.Logger) *Consumer {
    return &Consumer{url: url, notifier: notifier, log: log.WithField("component", "notify-consumer")}
}

// Run connects to RabbitMQ and consumes until ctx is cancelled.  Dial and
// channel failures are retried with exponential backoff capped at 30s, so
// the HTTP API keeps serving while the broker is down.
func (c *Consumer) Run(ctx context.Context) error {
    backoff := time.Second
    for {
        if err := ctx.Err(); err != nil {
            return err
        }
        conn, err := amqp.Dial(c.url)
        if err != nil {
            c.log.WithError(err).Warnf("failed to dial broker; retrying in %s", backoff)
            if !sleepCtx(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second // reset after successful connect

        err = c.consumeLoop(ctx, conn)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        c.log.WithError(err).Warn("consume loop ended; reconnecting")
        if !sleepCtx(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return false
    case <-t.C:
        return true
    }
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        c.log.WithError(err).Warn("set QoS failed")
    }

    confirmed, err := c.subscribe(ch, QueueBookingConfirmed)
    if err != nil {
        return err
    }
    issued, err := c.subscribe(ch, QueueTicketsIssued)
    if err != nil {
        return err
    }
    cancelled, err := c.subscribe(ch, QueueBookingCancelled)
    if err != nil {
        return err
    }

    for {
        var d amqp.Delivery
        var ok bool
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok = <-confirmed:
        case d, ok = <-issued:
        case d, ok = <-cancelled:
        }
        if !ok {
            return errors.New("deliveries channel closed")
        }
        if err := c.Handle(ctx, d.RoutingKey, d.Body); err != nil {
            c.log.WithError(err).WithField("queue", d.RoutingKey).Error("handle message failed")
            _ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
            continue
        }
        _ = d.Ack(false)
    }
}

func (c *Consumer) subscribe(ch *amqp.Channel, name string) (<-chan amqp.Delivery, error) {
    if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
        return nil, fmt.Errorf("queue declare %s: %w", name, err)
    }
    msgs, err := ch.Consume(name, "", false, false, false, false, nil)
    if err != nil {
        return nil, fmt.Errorf("queue consume %s: %w", name, err)
    }
    return msgs, nil
}

// Handle decodes one message body by queue name and forwards it to the
// notifier.  Unknown queues are an error so the message is dead-lettered
// instead of silently acknowledged.
func (c *Consumer) Handle(ctx context.Context, queueName string, body []byte) error {
    switch queueName {
    case QueueBookingConfirmed:
        var ev BookingConfirmedEvent
        if err := json.Unmarshal(body, &ev); err != nil {
            return fmt.Errorf("unmarshal: %w", err)
        }
        return c.notifier.BookingConfirmed(ctx, ev)
    case QueueTicketsIssued:
        var ev TicketsIssuedEvent
        if err := json.Unmarshal(body, &ev); err != nil {
            return fmt.Errorf("unmarshal: %w", err)
        }
        return c.notifier.TicketsIssued(ctx, ev)
    case QueueBookingCancelled:
        var ev BookingCancelledEvent
        if err := json.Unmarshal(body, &ev); err != nil {
            return fmt.Errorf("unmarshal: %w", err)
        }
        return c.notifier.BookingCancelled(ctx, ev)
    default:
        return fmt.Errorf("unexpected queue %q", queueName)
    }
}

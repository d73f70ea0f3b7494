package queue

import (
    "context"
    "encoding/json"
    "time"

    "github.com/google/uuid"
    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/iliyamo/ecotour-booking/internal/logger"
)

// Publisher publishes domain events.  Services treat publishing as
// best-effort: an error is logged and never fails the request that
// produced the event.
type Publisher interface {
    Publish(ctx context.Context, queueName string, event any) error
}

// AMQPPublisher publishes each event over a short-lived connection.  The
// event rate is a handful per booking, so a dial per message keeps the
// publisher free of reconnect state.
type AMQPPublisher struct {
    url string
    log *logger.Logger
}

func NewAMQPPublisher(url string, log *logger.Logger) *AMQPPublisher {
    return &AMQPPublisher{url: url, log: log}
}

// Publish marshals event to JSON and sends it to queueName as a persistent
// message with a fresh message ID.  The queue is declared durable before
// publishing so the first event after a broker reset is not dropped.
func (p *AMQPPublisher) Publish(ctx context.Context, queueName string, event any) error {
    l := p.log.WithField("queue", queueName)
    conn, err := amqp.Dial(p.url)
    if err != nil {
        l.WithError(err).Warn("rabbitmq: dial failed")
        return err
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        l.WithError(err).Warn("rabbitmq: channel open failed")
        return err
    }
    defer func() { _ = ch.Close() }()

    if _, err := ch.QueueDeclare(
        queueName, // name
        true,      // durable
        false,     // autoDelete
        false,     // exclusive
        false,     // noWait
        nil,       // args
    ); err != nil {
        l.WithError(err).Warn("rabbitmq: queue declare failed")
        return err
    }

    body, err := json.Marshal(event)
    if err != nil {
        l.WithError(err).Warn("rabbitmq: marshal event failed")
        return err
    }

    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent, // store on disk
        MessageId:    uuid.NewString(),
        Timestamp:    time.Now().UTC(),
        Type:         queueName,
        Body:         body,
    }
    if err := ch.PublishWithContext(ctx,
        "",        // default exchange
        queueName, // routing key = queue name
        false,     // mandatory
        false,     // immediate
        pub,
    ); err != nil {
        l.WithError(err).Warn("rabbitmq: publish failed")
        return err
    }
    l.WithField("message_id", pub.MessageId).Debug("rabbitmq: event published")
    return nil
}

// NopPublisher drops every event.  It is used when QUEUE_ENABLED is false.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, any) error { return nil }

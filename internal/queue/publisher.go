package queue

import (
    "context"
    "encoding/json"
    "log"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
)

// Queue names used by the booking lifecycle.
const (
    ConfirmedQueueName = "booking.confirmed"
    CancelledQueueName = "booking.cancelled"
)

// Publisher publishes booking lifecycle events to RabbitMQ.  It dials
// per publish so a broker restart between events needs no reconnect
// state.  Errors are logged and returned so callers can ignore failures
// without interrupting the main request flow.
type Publisher struct {
    url string
}

// NewPublisher returns a Publisher for the given broker URL. Callers
// decide what an empty URL means; the usual answer is not to construct
// a Publisher at all.
func NewPublisher(url string) *Publisher {
    return &Publisher{url: url}
}

// PublishBookingConfirmed publishes a BookingConfirmedEvent to the
// booking.confirmed queue. Messages are marked as persistent.
func (p *Publisher) PublishBookingConfirmed(ctx context.Context, event BookingConfirmedEvent) error {
    return p.publish(ctx, ConfirmedQueueName, event)
}

// PublishBookingCancelled publishes a BookingCancelledEvent to the
// booking.cancelled queue. Messages are marked as persistent.
func (p *Publisher) PublishBookingCancelled(ctx context.Context, event BookingCancelledEvent) error {
    return p.publish(ctx, CancelledQueueName, event)
}

func (p *Publisher) publish(ctx context.Context, queueName string, event any) error {
    conn, err := amqp.Dial(p.url)
    if err != nil {
        log.Printf("rabbitmq: dial failed: %v", err)
        return err
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        log.Printf("rabbitmq: channel open failed: %v", err)
        return err
    }
    defer func() { _ = ch.Close() }()

    // Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
    if _, err := ch.QueueDeclare(
        queueName, // name
        true,      // durable
        false,     // autoDelete
        false,     // exclusive
        false,     // noWait
        nil,       // args
    ); err != nil {
        log.Printf("rabbitmq: queue declare failed: %v", err)
        return err
    }

    body, err := json.Marshal(event)
    if err != nil {
        log.Printf("rabbitmq: marshal event failed: %v", err)
        return err
    }

    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent, // store on disk
        Timestamp:    time.Now().UTC(),
        Body:         body,
    }

    if err := ch.PublishWithContext(ctx,
        "",        // default exchange
        queueName, // routing key = queue name
        false,     // mandatory
        false,     // immediate
        pub,
    ); err != nil {
        log.Printf("rabbitmq: publish failed: %v", err)
        return err
    }

    return nil
}

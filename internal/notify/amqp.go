package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"telegram-bingo-bot/internal/room"
)

const publishTimeout = 5 * time.Second

// Channel publishes AMQP messages. *amqp.Channel satisfies it.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPPublisher publishes room events as persistent JSON messages to a topic
// exchange with routing key "room.<event type>".
type AMQPPublisher struct {
	ch       Channel
	exchange string
	conn     *amqp.Connection
	channel  *amqp.Channel
}

var _ room.Notifier = (*AMQPPublisher)(nil)

// NewAMQPPublisher publishes through an open channel.
func NewAMQPPublisher(ch Channel, exchange string) *AMQPPublisher {
	return &AMQPPublisher{ch: ch, exchange: exchange}
}

// DialAMQP connects to the broker, declares the exchange and returns a
// publisher that owns the connection.
func DialAMQP(url, exchange string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange, // name
		"topic",  // kind
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	log.Info().Str("exchange", exchange).Msg("Connected to RabbitMQ")

	p := NewAMQPPublisher(ch, exchange)
	p.conn = conn
	p.channel = ch
	return p, nil
}

// RoutingKey returns the routing key for an event type.
func RoutingKey(t room.EventType) string {
	return "room." + string(t)
}

// Notify implements room.Notifier. Dealt cards are private and not
// published.
func (p *AMQPPublisher) Notify(ctx context.Context, e room.Event) {
	if e.Direct() {
		return
	}

	body, err := json.Marshal(e)
	if err != nil {
		log.Error().Err(err).Str("event", string(e.Type)).Msg("Failed to encode event")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = p.ch.PublishWithContext(ctx,
		p.exchange,
		RoutingKey(e.Type),
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Timestamp:    e.At,
			Body:         body,
		})
	if err != nil {
		log.Warn().Err(err).
			Str("event", string(e.Type)).
			Str("room_code", e.RoomCode).
			Msg("Failed to publish event")
	}
}

// Close closes the channel and connection opened by DialAMQP.
func (p *AMQPPublisher) Close() error {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

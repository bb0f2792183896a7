package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"
)

type amqpPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPObserver publishes events to a topic exchange with routing key
// "ride.<kind>", e.g. "ride.driver_assigned".
type AMQPObserver struct {
	ch       amqpPublisher
	exchange string
	closers  []func() error
}

// DialAMQP connects, declares the durable topic exchange and returns an
// observer that owns the connection.
func DialAMQP(url, exchange string) (*AMQPObserver, error) {
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
		exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}
	return &AMQPObserver{ch: ch, exchange: exchange, closers: []func() error{ch.Close, conn.Close}}, nil
}

func (a *AMQPObserver) Name() string { return "amqp" }

func RoutingKey(kind EventKind) string {
	return "ride." + strings.ToLower(string(kind))
}

func (a *AMQPObserver) Notify(ctx context.Context, ev Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return a.ch.PublishWithContext(ctx, a.exchange, RoutingKey(ev.Kind), false, false, amqp.Publishing{
		ContentType: "application/json",
		Timestamp:   ev.At,
		Body:        b,
	})
}

func (a *AMQPObserver) Close() error {
	var first error
	for _, c := range a.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

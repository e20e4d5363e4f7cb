package notify

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/rabbitmq/amqp091-go"
)

const (
	routingOrderCompleted = "order.completed"
	routingOrderRefunded  = "order.refunded"
)

var _ Notifier = (*AMQPNotifier)(nil)

// AMQPNotifier publishes order events to a RabbitMQ topic exchange. Consumers
// (mailers, SMS senders, analytics) bind their own queues by routing key.
type AMQPNotifier struct {
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
}

// NewAMQPNotifier connects to the broker and declares the target exchange.
func NewAMQPNotifier(url, exchange string) (*AMQPNotifier, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, errors.Wrap(err, "dial amqp")
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "open channel")
	}

	err = ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, errors.Wrap(err, "declare exchange")
	}

	return &AMQPNotifier{conn: conn, channel: ch, exchange: exchange}, nil
}

func (n *AMQPNotifier) OrderCompleted(ctx context.Context, ev OrderEvent) error {
	return n.publish(ctx, routingOrderCompleted, ev)
}

func (n *AMQPNotifier) OrderRefunded(ctx context.Context, ev OrderEvent) error {
	return n.publish(ctx, routingOrderRefunded, ev)
}

func (n *AMQPNotifier) publish(ctx context.Context, key string, ev OrderEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "marshal event")
	}

	err = n.channel.PublishWithContext(ctx,
		n.exchange,
		key,
		false, // mandatory
		false, // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp091.Persistent,
		},
	)
	if err != nil {
		return errors.Wrapf(err, "publish %s", key)
	}
	return nil
}

// Close releases the channel and connection.
func (n *AMQPNotifier) Close() error {
	if err := n.channel.Close(); err != nil {
		n.conn.Close()
		return errors.Wrap(err, "close channel")
	}
	return n.conn.Close()
}

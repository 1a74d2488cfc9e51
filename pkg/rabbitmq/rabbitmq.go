package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"unholygrail/internal/models"
	"unholygrail/internal/observability"

	"github.com/sirupsen/logrus"
	amqp "github.com/streadway/amqp"
)

// DefaultQueue is the queue used when Config.Queue is empty.
const DefaultQueue = "mail_queue"

// Client holds the RabbitMQ connection and channel used for the mail queue.
type Client struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
	metrics *observability.Metrics

	mu sync.Mutex // Serializes publishes on the shared channel
}

// Config holds RabbitMQ connection details.
type Config struct {
	URL     string
	Queue   string
	Metrics *observability.Metrics
}

// NewClient connects to RabbitMQ, opens a channel and declares the mail queue.
func NewClient(cfg Config) (*Client, error) {
	queue := cfg.Queue
	if queue == "" {
		queue = DefaultQueue
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := declare(ch, queue); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	logrus.WithField("queue", queue).Info("RabbitMQ client connected and mail queue declared")

	return &Client{
		conn:    conn,
		channel: ch,
		queue:   queue,
		metrics: cfg.Metrics,
	}, nil
}

func declare(ch *amqp.Channel, queue string) error {
	_, err := ch.QueueDeclare(
		queue, // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare %s: %w", queue, err)
	}
	return nil
}

// Close closes the RabbitMQ channel and connection.
func (c *Client) Close() error {
	var errs []error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close channel: %w", err))
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close connection: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors during RabbitMQ client close: %v", errs)
	}
	return nil
}

// Send publishes msg to the mail queue as persistent JSON. A returned error
// means the broker did not accept the message.
func (c *Client) Send(ctx context.Context, msg models.Email) (err error) {
	defer func() { c.metrics.ObservePublish(msg.Template, err) }()

	if c.channel == nil {
		return fmt.Errorf("RabbitMQ channel is not available")
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mail not published: %w", err)
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal email: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	err = c.channel.Publish(
		"",      // exchange: default exchange
		c.queue, // routing key: the queue name
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		})
	if err != nil {
		return fmt.Errorf("failed to publish email: %w", err)
	}

	logrus.WithFields(logrus.Fields{"queue": c.queue, "template": msg.Template}).Debug("email published")
	return nil
}

// ConsumeMail starts a goroutine handing every queued email to handler.
// Messages are acked when handler succeeds. Failed and undecodable messages
// are nacked without requeue so a poison message cannot loop forever.
func (c *Client) ConsumeMail(handler func(ctx context.Context, msg models.Email) error) error {
	if c.channel == nil {
		return fmt.Errorf("RabbitMQ channel is not available for consumption")
	}

	if err := declare(c.channel, c.queue); err != nil {
		return err
	}

	msgs, err := c.channel.Consume(
		c.queue, // queue
		"",      // consumer tag
		false,   // auto-ack
		false,   // exclusive
		false,   // no-local
		false,   // no-wait
		nil,     // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	logrus.WithField("queue", c.queue).Info("waiting for mail")

	go func() {
		for d := range msgs {
			settle(d.DeliveryTag, d.Body, d, handler, c.metrics)
		}
	}()

	return nil
}

// acknowledger is the subset of amqp.Delivery the consumer settles messages with.
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

func settle(tag uint64, body []byte, ack acknowledger, handler func(ctx context.Context, msg models.Email) error, metrics *observability.Metrics) {
	log := logrus.WithField("delivery_tag", tag)

	msg, err := DecodeEmail(body)
	if err != nil {
		log.WithError(err).Error("dropping undecodable mail message")
		if nackErr := ack.Nack(false, false); nackErr != nil {
			log.WithError(nackErr).Error("error nacking message")
		}
		return
	}

	err = handler(context.Background(), msg)
	metrics.ObserveDelivery(msg.Template, err)
	if err != nil {
		log.WithError(err).WithField("template", msg.Template).Error("error delivering mail")
		if nackErr := ack.Nack(false, false); nackErr != nil {
			log.WithError(nackErr).Error("error nacking message")
		}
		return
	}

	if ackErr := ack.Ack(false); ackErr != nil {
		log.WithError(ackErr).Error("error acking message")
	}
}

// DecodeEmail parses a queued mail message.
func DecodeEmail(body []byte) (models.Email, error) {
	var msg models.Email
	if err := json.Unmarshal(body, &msg); err != nil {
		return models.Email{}, fmt.Errorf("failed to unmarshal email: %w", err)
	}
	if msg.To == "" || msg.Template == "" {
		return models.Email{}, fmt.Errorf("email is missing recipient or template")
	}
	return msg, nil
}

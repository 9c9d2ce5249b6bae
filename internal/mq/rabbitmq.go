package mq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/htverse/apiserver/config"
)

// eventBinding matches every hackathon event routing key.
const eventBinding = "hackathon.#"

// RabbitMQClient publishes events to a topic exchange named after the
// channel. The event type is the routing key, so consumers can bind to a
// subset of events.
type RabbitMQClient struct {
	conn    *amqp.Connection
	channel *amqp.Channel

	durable     bool
	autoDelete  bool
	queueSuffix string

	mu       sync.Mutex
	declared map[string]bool
}

// NewRabbitMQClient dials the broker and opens one channel.
func NewRabbitMQClient(cfg config.RabbitMQConfig) (*RabbitMQClient, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("rabbitmq url is required")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if cfg.PrefetchCount > 0 {
		if err := ch.Qos(cfg.PrefetchCount, 0, false); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, err
		}
	}

	return &RabbitMQClient{
		conn:        conn,
		channel:     ch,
		durable:     cfg.QueueDurable,
		autoDelete:  cfg.QueueAutoDelete,
		queueSuffix: cfg.QueueSuffix,
		declared:    map[string]bool{},
	}, nil
}

// Publish routes data through the channel exchange using the event type
// attribute as routing key.
func (r *RabbitMQClient) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("rabbitmq channel is required")
	}
	if err := r.declareExchange(channel); err != nil {
		return "", err
	}

	routingKey := attrs[attrEventType]
	if routingKey == "" {
		routingKey = "hackathon.unknown"
	}
	contentType := attrs[attrContentType]
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	headers := amqp.Table{}
	for key, value := range attrs {
		if key != attrContentType {
			headers[key] = value
		}
	}

	deliveryMode := amqp.Transient
	if r.durable {
		deliveryMode = amqp.Persistent
	}

	messageID := uuid.NewString()
	err := r.channel.PublishWithContext(ctx, channel, routingKey, false, false, amqp.Publishing{
		ContentType:  contentType,
		DeliveryMode: deliveryMode,
		MessageId:    messageID,
		Timestamp:    time.Now().UTC(),
		Type:         routingKey,
		Headers:      headers,
		Body:         data,
	})
	if err != nil {
		return "", err
	}
	return messageID, nil
}

// Subscribe binds a named queue to every hackathon event on the channel
// exchange and consumes it until ctx is done. A handler error requeues the
// delivery.
func (r *RabbitMQClient) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("rabbitmq channel is required")
	}
	if err := r.declareExchange(channel); err != nil {
		return err
	}

	queue, err := r.channel.QueueDeclare(channel+r.queueSuffix, r.durable, r.autoDelete, false, false, nil)
	if err != nil {
		return err
	}
	if err := r.channel.QueueBind(queue.Name, eventBinding, channel, false, nil); err != nil {
		return fmt.Errorf("bind %s to %s: %w", queue.Name, channel, err)
	}

	consumerTag := "htverse-" + uuid.NewString()
	deliveries, err := r.channel.Consume(queue.Name, consumerTag, false, false, false, false, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = r.channel.Cancel(consumerTag, false)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return errors.New("rabbitmq delivery channel closed")
			}
			if err := handler(ctx, deliveryMessage(delivery)); err != nil {
				slog.Warn("rabbitmq handler failed", "queue", queue.Name, "message_id", delivery.MessageId, "error", err)
				_ = delivery.Nack(false, !delivery.Redelivered)
				continue
			}
			_ = delivery.Ack(false)
		}
	}
}

// Close closes the channel and the connection.
func (r *RabbitMQClient) Close() error {
	if r.channel != nil {
		_ = r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

func (r *RabbitMQClient) declareExchange(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.declared[name] {
		return nil
	}
	if err := r.channel.ExchangeDeclare(name, amqp.ExchangeTopic, r.durable, r.autoDelete, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", name, err)
	}
	r.declared[name] = true
	return nil
}

func deliveryMessage(d amqp.Delivery) Message {
	attrs := make(map[string]string, len(d.Headers)+1)
	for key, value := range d.Headers {
		switch typed := value.(type) {
		case string:
			attrs[key] = typed
		case []byte:
			attrs[key] = string(typed)
		default:
			attrs[key] = fmt.Sprint(value)
		}
	}
	if d.ContentType != "" {
		attrs[attrContentType] = d.ContentType
	}
	return Message{ID: d.MessageId, Data: d.Body, Attributes: attrs}
}

package mq

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"pos-system/internal/common/config"
)

const (
	OrdersExchange = "orders_topic"
	KitchenQueue   = "kitchen.q"
)

type Client struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

func Dial(cfg config.MQ) (*Client, error) {
	url := fmt.Sprintf("amqp://%s:%s@%s:%d/", cfg.User, cfg.Pass, cfg.Host, cfg.Port)
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &Client{conn: conn, ch: ch}, nil
}

func (c *Client) Close() {
	if c == nil {
		return
	}
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// DeclareAll sets up the kitchen topology: confirmed orders fan into
// kitchen.q by type and priority, failures dead-letter into dlq.
func (c *Client) DeclareAll() error {
	if c == nil || c.ch == nil {
		return fmt.Errorf("nil channel")
	}
	if err := c.ch.ExchangeDeclare(OrdersExchange, "topic", true, false, false, false, nil); err != nil {
		return err
	}
	if err := c.ch.ExchangeDeclare("dlx", "direct", true, false, false, false, nil); err != nil {
		return err
	}
	_, err := c.ch.QueueDeclare(KitchenQueue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "dlx",
		"x-dead-letter-routing-key": "dlq",
		"x-max-priority":            int32(10),
	})
	if err != nil {
		return err
	}
	if _, err = c.ch.QueueDeclare("dlq", true, false, false, false, nil); err != nil {
		return err
	}
	return c.ch.QueueBind(KitchenQueue, "kitchen.*.*", OrdersExchange, false, nil)
}

func (c *Client) PublishPersistent(ctx context.Context, exchange, key, correlationID string, priority uint8, body []byte) error {
	return c.ch.PublishWithContext(ctx, exchange, key, false, false, amqp.Publishing{
		DeliveryMode:  amqp.Persistent,
		Priority:      priority,
		CorrelationId: correlationID,
		Timestamp:     time.Now().UTC(),
		ContentType:   "application/json",
		Body:          body,
	})
}

func (c *Client) Consume(queue, consumer string, prefetch int) (<-chan amqp.Delivery, error) {
	if err := c.ch.Qos(prefetch, 0, false); err != nil {
		return nil, err
	}
	return c.ch.Consume(queue, consumer, false, false, false, false, nil)
}

package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/mikenoethiger/bank-server-rabbitmq/internal/logger"
	"github.com/mikenoethiger/bank-server-rabbitmq/internal/protocol"
)

// Client performs correlated request/reply calls against the RPC queue. It
// owns one exclusive reply queue; responses are matched to in-flight calls by
// correlation id, so a single Client may be shared by concurrent callers.
type Client struct {
	ch         *amqp.Channel
	queue      string
	replyQueue string

	mu      sync.Mutex
	pending map[string]chan protocol.Response
}

// NewClient opens a channel on conn, declares the RPC queue and an exclusive
// auto-delete reply queue, and starts the reply reader.
func NewClient(conn *amqp.Connection, queue string) (*Client, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, false, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}
	reply, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to declare reply queue: %w", err)
	}
	deliveries, err := ch.Consume(reply.Name, "", true, true, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to consume reply queue: %w", err)
	}

	c := &Client{
		ch:         ch,
		queue:      queue,
		replyQueue: reply.Name,
		pending:    make(map[string]chan protocol.Response),
	}
	go c.readReplies(deliveries)
	return c, nil
}

func (c *Client) readReplies(deliveries <-chan amqp.Delivery) {
	for d := range deliveries {
		var resp protocol.Response
		if err := json.Unmarshal(d.Body, &resp); err != nil {
			logger.Error("failed to decode reply", err, logger.Fields{"correlationId": d.CorrelationId})
			continue
		}

		c.mu.Lock()
		waiter, ok := c.pending[d.CorrelationId]
		if ok {
			delete(c.pending, d.CorrelationId)
		}
		c.mu.Unlock()

		if ok {
			waiter <- resp
		}
	}
}

// Call publishes the request and waits for the correlated response or ctx
// expiry. Callers pass a deadline; the server itself never times a request
// out once accepted.
func (c *Client) Call(ctx context.Context, req protocol.Request) (protocol.Response, error) {
	corrID := uuid.NewString()
	waiter := make(chan protocol.Response, 1)

	c.mu.Lock()
	c.pending[corrID] = waiter
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, corrID)
		c.mu.Unlock()
	}()

	body, err := json.Marshal(req)
	if err != nil {
		return protocol.Response{}, fmt.Errorf("failed to encode request: %w", err)
	}
	err = c.ch.PublishWithContext(ctx, "", c.queue, false, false, amqp.Publishing{
		ContentType:   "application/json",
		CorrelationId: corrID,
		ReplyTo:       c.replyQueue,
		Body:          body,
	})
	if err != nil {
		return protocol.Response{}, fmt.Errorf("failed to publish request: %w", err)
	}

	select {
	case <-ctx.Done():
		return protocol.Response{}, ctx.Err()
	case resp := <-waiter:
		return resp, nil
	}
}

// Close releases the client's channel.
func (c *Client) Close() error {
	return c.ch.Close()
}

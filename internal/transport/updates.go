package transport

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// UpdateSubscriber receives account update broadcasts. Each subscriber binds
// its own exclusive queue to the fanout exchange, so every subscriber sees
// every update. There is no acknowledgment or replay.
type UpdateSubscriber struct {
	ch       *amqp.Channel
	exchange string
	queue    string
}

// NewUpdateSubscriber opens a channel on conn, declares the fanout exchange
// and binds a fresh exclusive queue to it.
func NewUpdateSubscriber(conn *amqp.Connection, exchange string) (*UpdateSubscriber, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "fanout", false, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to declare update queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, "", exchange, false, nil); err != nil {
		return nil, fmt.Errorf("failed to bind update queue: %w", err)
	}
	return &UpdateSubscriber{ch: ch, exchange: exchange, queue: q.Name}, nil
}

// Listen returns a channel of account numbers. It is closed when ctx is
// cancelled or the broker channel closes.
func (s *UpdateSubscriber) Listen(ctx context.Context) (<-chan string, error) {
	deliveries, err := s.ch.Consume(s.queue, "", true, true, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to consume update queue: %w", err)
	}

	updates := make(chan string)
	go func() {
		defer close(updates)
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				select {
				case updates <- string(d.Body):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return updates, nil
}

// Close releases the subscriber's channel.
func (s *UpdateSubscriber) Close() error {
	return s.ch.Close()
}

package transport

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/mikenoethiger/bank-server-rabbitmq/internal/logger"
)

// UpdatePublisher broadcasts account change events on a fanout exchange,
// payload is the account number as plain text. Implements dispatch.Notifier.
type UpdatePublisher struct {
	ch       *amqp.Channel
	exchange string
}

// NewUpdatePublisher opens a channel on conn and declares the fanout exchange.
func NewUpdatePublisher(conn *amqp.Connection, exchange string) (*UpdatePublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "fanout", false, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}
	return &UpdatePublisher{ch: ch, exchange: exchange}, nil
}

// Notify publishes the account number on the updates exchange. Fire-and-forget:
// a publish failure is logged and never rolls back the mutation that caused it.
func (p *UpdatePublisher) Notify(ctx context.Context, accountNumber string) {
	err := p.ch.PublishWithContext(ctx, p.exchange, "", false, false, amqp.Publishing{
		ContentType: "text/plain",
		Body:        []byte(accountNumber),
	})
	if err != nil {
		logger.Error("failed to publish account update", err, logger.Fields{"account": accountNumber})
		return
	}
	logger.Info("account update sent", logger.Fields{"account": accountNumber})
}

// Close releases the publisher's channel.
func (p *UpdatePublisher) Close() error {
	return p.ch.Close()
}

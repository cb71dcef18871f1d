// Package transport carries the bank protocol over AMQP: an RPC queue for
// correlated request/reply and a fanout exchange for one-way account update
// broadcasts.
//
// Start a local broker with:
// docker run -it --rm --name rabbitmq -p 5672:5672 -p 15672:15672 rabbitmq:3-management
package transport

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/mikenoethiger/bank-server-rabbitmq/internal/dispatch"
	"github.com/mikenoethiger/bank-server-rabbitmq/internal/logger"
	"github.com/mikenoethiger/bank-server-rabbitmq/internal/protocol"
)

var validate = validator.New()

// amqpChannel is the part of *amqp.Channel the server uses, split out so
// tests can stand in for the broker.
type amqpChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Server consumes requests from the RPC queue and publishes correlated
// replies. Each delivery is handled on its own goroutine; ordering between
// independently submitted requests is explicitly not guaranteed, the registry
// is responsible for staying correct under arbitrary interleaving.
type Server struct {
	ch         amqpChannel
	queue      string
	dispatcher *dispatch.Dispatcher
}

// NewServer opens a channel on conn and declares the RPC queue.
func NewServer(conn *amqp.Connection, queue string, dispatcher *dispatch.Dispatcher) (*Server, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	return newServer(ch, queue, dispatcher)
}

func newServer(ch amqpChannel, queue string, dispatcher *dispatch.Dispatcher) (*Server, error) {
	if _, err := ch.QueueDeclare(queue, false, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}
	return &Server{ch: ch, queue: queue, dispatcher: dispatcher}, nil
}

// Serve consumes the RPC queue until ctx is cancelled or the channel closes.
func (s *Server) Serve(ctx context.Context) error {
	deliveries, err := s.ch.Consume(s.queue, "", true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to consume queue %s: %w", s.queue, err)
	}

	logger.Info("awaiting RPC requests", logger.Fields{"queue": s.queue})

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("request channel closed")
			}
			go s.handle(ctx, d)
		}
	}
}

func (s *Server) handle(ctx context.Context, d amqp.Delivery) {
	// An accepted request runs to completion: cancelling Serve stops new
	// consumption but must not fail replies already in flight.
	ctx = context.WithoutCancel(ctx)

	var resp protocol.Response

	req, err := protocol.ParseRequest(d.Body)
	if err != nil {
		resp = protocol.ErrorBadRequest
	} else if err := validate.Struct(req); err != nil {
		resp = protocol.ErrorBadRequest
	} else {
		resp = s.dispatcher.Dispatch(ctx, req)
	}

	if d.ReplyTo == "" {
		logger.Error("request without reply-to, dropping response", nil, logger.Fields{
			"correlationId": d.CorrelationId,
		})
		return
	}

	body, err := resp.Marshal()
	if err != nil {
		logger.Error("failed to encode response", err, logger.Fields{"correlationId": d.CorrelationId})
		return
	}

	err = s.ch.PublishWithContext(ctx, "", d.ReplyTo, false, false, amqp.Publishing{
		ContentType:   "application/json",
		CorrelationId: d.CorrelationId,
		Body:          body,
	})
	if err != nil {
		logger.Error("failed to publish reply", err, logger.Fields{
			"replyTo":       d.ReplyTo,
			"correlationId": d.CorrelationId,
		})
	}
}

// Close releases the server's channel.
func (s *Server) Close() error {
	return s.ch.Close()
}

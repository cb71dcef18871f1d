package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/mikenoethiger/bank-server-rabbitmq/internal/bank"
	"github.com/mikenoethiger/bank-server-rabbitmq/internal/config"
	"github.com/mikenoethiger/bank-server-rabbitmq/internal/dispatch"
	"github.com/mikenoethiger/bank-server-rabbitmq/internal/handler"
	"github.com/mikenoethiger/bank-server-rabbitmq/internal/transport"
)

func main() {
	cfg := config.Load()

	conn, err := amqp.Dial(cfg.AMQPURL)
	if err != nil {
		log.Fatalf("Failed to connect to AMQP broker: %v", err)
	}
	defer conn.Close()

	// --- service wiring ---
	b := bank.NewBank()

	publisher, err := transport.NewUpdatePublisher(conn, cfg.UpdatesExchange)
	if err != nil {
		log.Fatalf("Failed to create update publisher: %v", err)
	}
	defer publisher.Close()

	dispatcher := dispatch.New(b, publisher)

	server, err := transport.NewServer(conn, cfg.RPCQueue, dispatcher)
	if err != nil {
		log.Fatalf("Failed to create RPC server: %v", err)
	}
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := server.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("RPC server stopped: %v", err)
		}
	}()

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		log.Println("Shutting down...")
		cancel()
	}()

	// Admin HTTP surface
	router := gin.Default()
	handler.NewAdminHandler(b, dispatcher).Register(router)

	log.Printf("Bank server starting on %s (queue %s)", cfg.HTTPAddr, cfg.RPCQueue)
	if err := router.Run(cfg.HTTPAddr); err != nil {
		log.Fatalf("Failed to start admin server: %v", err)
	}
}

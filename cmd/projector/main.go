package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/mikenoethiger/bank-server-rabbitmq/internal/config"
	"github.com/mikenoethiger/bank-server-rabbitmq/internal/projection"
	redisclient "github.com/mikenoethiger/bank-server-rabbitmq/internal/redis"
	"github.com/mikenoethiger/bank-server-rabbitmq/internal/transport"
)

func main() {
	cfg := config.Load()

	conn, err := amqp.Dial(cfg.AMQPURL)
	if err != nil {
		log.Fatalf("Failed to connect to AMQP broker: %v", err)
	}
	defer conn.Close()

	rdb, err := redisclient.NewClient(redisclient.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  cfg.RedisDialTimeout,
		ReadTimeout:  cfg.RedisReadTimeout,
		WriteTimeout: cfg.RedisWriteTimeout,
		PoolSize:     cfg.RedisPoolSize,
	})
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer rdb.Close()

	client, err := transport.NewClient(conn, cfg.RPCQueue)
	if err != nil {
		log.Fatalf("Failed to create RPC client: %v", err)
	}
	defer client.Close()

	subscriber, err := transport.NewUpdateSubscriber(conn, cfg.UpdatesExchange)
	if err != nil {
		log.Fatalf("Failed to subscribe to updates: %v", err)
	}
	defer subscriber.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		log.Println("Shutting down...")
		cancel()
	}()

	updates, err := subscriber.Listen(ctx)
	if err != nil {
		log.Fatalf("Failed to start update listener: %v", err)
	}

	cache := redisclient.NewViewCache[projection.AccountView](rdb.Client, cfg.ViewTTL)
	projector := projection.NewProjector(&projection.RPCFetcher{Client: client}, cache)

	log.Printf("Projector consuming %s exchange", cfg.UpdatesExchange)
	projector.Run(ctx, updates)
}

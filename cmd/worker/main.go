package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"studentdash/internal/config"
	"studentdash/internal/dataservice"
	"studentdash/internal/queue"
	"studentdash/internal/store"
	"studentdash/internal/worker"
)

// Worker consumes attendance events and drops the cached counters they invalidate.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	if cfg.QueueBackend == "memory" {
		log.Fatal("QUEUE_BACKEND=memory is consumed inside the api process; nothing to do")
	}

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()
	if !redisClient.Healthy(ctx) {
		log.Printf("WARNING: redis not reachable at %s, will keep retrying", cfg.RedisAddr)
	}

	// Only the invalidation methods are used; reads never reach the wrapped service.
	cache := dataservice.NewCached(nil, redisClient.Client, cfg.CacheTTL)
	q := queue.NewRedisQueue(redisClient.Client, cfg.QueueKey)

	log.Println("worker started, waiting for events...")
	if err := worker.New(cache).Run(ctx, q); err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}
	log.Println("worker stopped")
}

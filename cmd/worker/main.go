package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"universe/internal/config"
	"universe/internal/moderation"
	"universe/internal/posts"
	"universe/internal/queue"
	"universe/internal/store"
)

// retryDelay paces re-queued jobs so a dead classifier does not spin the
// worker at full speed.
var retryDelay = 5 * time.Second

type reviewer interface {
	Review(ctx context.Context, postID string) error
}

// The worker drains review jobs queued when a post was accepted while the
// classifier was unreachable, and settles each post's status.
func main() {
	cfg := config.Load()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var reviews queue.Queue
	if cfg.QueueBackend == "memory" {
		log.Println("warning: in-memory queue has no producers in a separate process")
		reviews = queue.NewInMemory(64)
	} else {
		reviews = queue.NewRedisQueue(redisClient.Client, store.ReviewQueueKey)
	}

	classifier := moderation.New(cfg.ModerationURL, cfg.ModerationAPIKey, cfg.ModerationSkip)
	svc := posts.NewService(posts.NewRepository(db.Client), classifier, reviews, cfg.ModerationUnavailable, uuid.NewString)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("Shutting down worker...")
		cancel()
	}()

	msgs, err := reviews.Consume(ctx)
	if err != nil {
		log.Fatalf("consume queue: %v", err)
	}

	log.Println("Review worker started")
	for msg := range msgs {
		if handle(ctx, svc, reviews, msg) {
			// The failed job went back on the queue; pause so a dead
			// classifier is not hammered in a tight loop.
			select {
			case <-time.After(retryDelay):
			case <-ctx.Done():
			}
		}
	}
	log.Println("Worker exited")
}

// handle processes one queue message. A review that fails (classifier still
// unreachable) is re-published so the post does not stay pending forever;
// the return value reports whether that happened.
func handle(ctx context.Context, svc reviewer, reviews queue.Queue, msg queue.Message) bool {
	if msg.Type != "post.review" {
		log.Printf("worker: skipping unknown message type %q", msg.Type)
		return false
	}
	postID := string(msg.Body)
	if err := svc.Review(ctx, postID); err != nil {
		log.Printf("worker: review post %s: %v", postID, err)
		if pubErr := reviews.Publish(ctx, msg); pubErr != nil {
			log.Printf("worker: requeue post %s: %v", postID, pubErr)
		}
		return true
	}
	log.Printf("worker: reviewed post %s", postID)
	return false
}

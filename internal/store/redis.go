package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Key namespaces shared by the API and the review worker. Both processes
// must agree on these or jobs and chat fanout silently go nowhere.
const (
	// ReviewQueueKey is the list holding queued post-review jobs.
	ReviewQueueKey = "universe:reviews"
	// ChatChannelPrefix prefixes the pub-sub channel for each chat id.
	ChatChannelPrefix = "universe:chat:"
)

// Redis holds the shared client used by the queue, the chat hub and the
// health check.
type Redis struct {
	Client *redis.Client
}

// NewRedis dials redis with timeouts short enough that a down instance
// fails the health check instead of hanging requests.
func NewRedis(addr string) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
	})
	return &Redis{Client: client}
}

// Healthy reports whether redis answers a ping. A nil receiver counts as
// unhealthy so callers can skip the check when redis is not configured.
func (r *Redis) Healthy(ctx context.Context) bool {
	if r == nil || r.Client == nil {
		return false
	}
	return r.Client.Ping(ctx).Err() == nil
}

package chat

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Hub fans live messages out to chat subscribers. The in-memory hub serves
// a single process; the redis hub carries messages across processes.
type Hub interface {
	Publish(ctx context.Context, chatID string, m Message)
	Subscribe(ctx context.Context, chatID string) (<-chan Message, error)
}

// InMemoryHub is a channel-backed hub for dev and tests.
type InMemoryHub struct {
	mu   sync.Mutex
	subs map[string][]chan Message
}

// NewInMemoryHub creates an empty hub.
func NewInMemoryHub() *InMemoryHub {
	return &InMemoryHub{subs: make(map[string][]chan Message)}
}

// Publish delivers m to every live subscriber of the chat. Slow subscribers
// drop messages rather than block the sender.
func (h *InMemoryHub) Publish(_ context.Context, chatID string, m Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs[chatID] {
		select {
		case ch <- m:
		default:
		}
	}
}

// Subscribe registers a listener removed when ctx is cancelled.
func (h *InMemoryHub) Subscribe(ctx context.Context, chatID string) (<-chan Message, error) {
	ch := make(chan Message, 16)
	h.mu.Lock()
	h.subs[chatID] = append(h.subs[chatID], ch)
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		defer h.mu.Unlock()
		subs := h.subs[chatID]
		for i, c := range subs {
			if c == ch {
				h.subs[chatID] = append(subs[:i], subs[i+1:]...)
				close(c)
				return
			}
		}
	}()
	return ch, nil
}

// RedisHub fans messages out over redis pub/sub so every API instance sees
// every chat's traffic.
type RedisHub struct {
	client *redis.Client
	prefix string
}

// NewRedisHub creates a hub publishing on "<prefix><chatID>" channels.
func NewRedisHub(client *redis.Client, prefix string) *RedisHub {
	if prefix == "" {
		prefix = "universe:chat:"
	}
	return &RedisHub{client: client, prefix: prefix}
}

// Publish sends the message to the chat's channel. Fan-out is best-effort;
// the message is already durable in the store.
func (h *RedisHub) Publish(ctx context.Context, chatID string, m Message) {
	payload, err := json.Marshal(m)
	if err != nil {
		log.Printf("chat: marshal message %s: %v", m.ID, err)
		return
	}
	if err := h.client.Publish(ctx, h.prefix+chatID, payload).Err(); err != nil {
		log.Printf("chat: publish to %s failed: %v", chatID, err)
	}
}

// Subscribe listens on the chat's channel until ctx is cancelled.
func (h *RedisHub) Subscribe(ctx context.Context, chatID string) (<-chan Message, error) {
	sub := h.client.Subscribe(ctx, h.prefix+chatID)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}

	out := make(chan Message, 16)
	go func() {
		defer close(out)
		defer sub.Close()
		in := sub.Channel()
		for {
			select {
			case msg, ok := <-in:
				if !ok {
					return
				}
				var m Message
				if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
					log.Printf("chat: bad payload on %s: %v", msg.Channel, err)
					continue
				}
				select {
				case out <- m:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

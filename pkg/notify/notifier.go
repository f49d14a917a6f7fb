// Package notify emits best-effort "job state changed" signals. Delivery
// failures are logged and swallowed; they never reach the caller and never
// affect job state.
package notify

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Channel is the redis pub/sub channel export events are published to.
const Channel = "campuspark:exports:events"

// Event is the payload published on job state transitions.
type Event struct {
	JobID  string    `json:"job_id"`
	UserID string    `json:"user_id"`
	Status string    `json:"status"`
	At     time.Time `json:"at"`
}

// Notifier delivers job state change signals, fire-and-forget.
type Notifier interface {
	JobStateChanged(ctx context.Context, userID, jobID, status string)
}

// RedisNotifier publishes events to a redis channel.
type RedisNotifier struct {
	client *redis.Client
}

// NewRedisNotifier creates a notifier from a redis URL.
func NewRedisNotifier(redisURL string) (*RedisNotifier, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisNotifier{client: client}, nil
}

// NewRedisNotifierFromClient wraps an existing client; used in tests.
func NewRedisNotifierFromClient(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{client: client}
}

// Close closes the underlying connection.
func (n *RedisNotifier) Close() error {
	return n.client.Close()
}

// JobStateChanged publishes the event. Any failure is logged and dropped.
func (n *RedisNotifier) JobStateChanged(ctx context.Context, userID, jobID, status string) {
	payload, err := json.Marshal(Event{
		JobID:  jobID,
		UserID: userID,
		Status: status,
		At:     time.Now().UTC(),
	})
	if err != nil {
		log.Printf("[NOTIFY] failed to marshal event for job %s: %v", jobID, err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := n.client.Publish(ctx, Channel, payload).Err(); err != nil {
		log.Printf("[NOTIFY] failed to publish event for job %s: %v", jobID, err)
	}
}

// Nop drops all notifications; used when redis is not configured.
type Nop struct{}

func (Nop) JobStateChanged(ctx context.Context, userID, jobID, status string) {}

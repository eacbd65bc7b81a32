// Package dedup guards against webhook redelivery. The chat platform may
// deliver the same event more than once; the guard records processed event
// ids in redis with a TTL so duplicates are skipped instead of inserting a
// second record. A nil guard is valid and never reports a duplicate.
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "webhook:event:"

type Guard struct {
	client *redis.Client
	ttl    time.Duration
}

func New(client *redis.Client, ttl time.Duration) *Guard {
	return &Guard{
		client: client,
		ttl:    ttl,
	}
}

// NewFromURL connects to redis with the given URL and verifies the
// connection with a ping.
func NewFromURL(url string, ttl time.Duration) (*Guard, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if cmd := client.Ping(context.Background()); cmd.Err() != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", cmd.Err())
	}

	return New(client, ttl), nil
}

// Seen records the event id and reports whether it was already recorded.
// Events without an id are never treated as duplicates.
func (g *Guard) Seen(ctx context.Context, eventID string) (bool, error) {
	if g == nil || g.client == nil || eventID == "" {
		return false, nil
	}

	stored, err := g.client.SetNX(ctx, keyPrefix+eventID, 1, g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to record event id: %w", err)
	}
	return !stored, nil
}

func (g *Guard) Close() error {
	if g == nil || g.client == nil {
		return nil
	}
	return g.client.Close()
}

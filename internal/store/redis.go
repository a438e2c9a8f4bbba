package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/i474232898/soarbot/internal/soaring"
)

const (
	defaultDialTimeout  = 5 * time.Second
	defaultReadTimeout  = 3 * time.Second
	defaultWriteTimeout = 3 * time.Second
)

// NewRedisClient returns a configured go-redis client and validates the connection with PING.
func NewRedisClient(addr, password string) (*redis.Client, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("redis: addr is empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DialTimeout:  defaultDialTimeout,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), defaultDialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

// keyValue is the subset of *redis.Client the cache needs.
type keyValue interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// RedisCache fronts a HistoryStore with a last-sent cache. The wrapped store
// stays the source of truth; cache failures fall through to it.
type RedisCache struct {
	client keyValue
	next   soaring.HistoryStore
	ttl    time.Duration
}

func NewRedisCache(client keyValue, next soaring.HistoryStore, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, next: next, ttl: ttl}
}

func (c *RedisCache) key(subscriberID, stationID string) string {
	return fmt.Sprintf("soarbot:last_sent:%s:%s", subscriberID, stationID)
}

func (c *RedisCache) LastSent(ctx context.Context, subscriberID, stationID string) (time.Time, error) {
	key := c.key(subscriberID, stationID)
	if cached, err := c.client.Get(ctx, key).Result(); err == nil {
		if t, perr := parseTime(cached); perr == nil {
			return t, nil
		}
	}

	last, err := c.next.LastSent(ctx, subscriberID, stationID)
	if err != nil || last.IsZero() {
		return last, err
	}
	_ = c.client.Set(ctx, key, formatTime(last), c.ttl).Err()
	return last, nil
}

func (c *RedisCache) Record(ctx context.Context, rec soaring.NotificationRecord) error {
	if err := c.next.Record(ctx, rec); err != nil {
		return err
	}
	_ = c.client.Set(ctx, c.key(rec.SubscriberID, rec.StationID), formatTime(rec.SentAt), c.ttl).Err()
	return nil
}

package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/Domenick1991/medbooking/config"
	"github.com/Domenick1991/medbooking/internal/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisCache holds the candidate slots tiled from a doctor's windows per day
// and the short per-slot locks taken while a booking is attempted.
type RedisCache struct {
	client   redis.Cmdable
	slotsTTL time.Duration
}

func NewRedisCache(cfg config.RedisConfig, slotsTTL time.Duration) *RedisCache {
	return NewRedisCacheWithClient(
		redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
		slotsTTL,
	)
}

func NewRedisCacheWithClient(client redis.Cmdable, slotsTTL time.Duration) *RedisCache {
	return &RedisCache{client: client, slotsTTL: slotsTTL}
}

// GetSlots returns nil, nil on a cache miss.
func (c *RedisCache) GetSlots(ctx context.Context, doctorID uuid.UUID, date domain.Date) ([]domain.Slot, error) {
	data, err := c.client.Get(ctx, slotsKey(doctorID, date)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var slots []domain.Slot
	if err := json.Unmarshal(data, &slots); err != nil {
		return nil, err
	}
	return slots, nil
}

func (c *RedisCache) SetSlots(ctx context.Context, doctorID uuid.UUID, date domain.Date, slots []domain.Slot) error {
	payload, err := json.Marshal(slots)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, slotsKey(doctorID, date), payload, c.slotsTTL).Err()
}

func (c *RedisCache) InvalidateSlots(ctx context.Context, doctorID uuid.UUID, date domain.Date) error {
	return c.client.Del(ctx, slotsKey(doctorID, date)).Err()
}

func (c *RedisCache) AcquireSlotLock(ctx context.Context, doctorID uuid.UUID, start time.Time, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, slotLockKey(doctorID, start), "locked", ttl).Result()
}

func (c *RedisCache) ReleaseSlotLock(ctx context.Context, doctorID uuid.UUID, start time.Time) error {
	return c.client.Del(ctx, slotLockKey(doctorID, start)).Err()
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	if closer, ok := c.client.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func slotsKey(doctorID uuid.UUID, date domain.Date) string {
	return fmt.Sprintf("cache:slots:%s:%s", doctorID, date)
}

func slotLockKey(doctorID uuid.UUID, start time.Time) string {
	return fmt.Sprintf("lock:doctor:%s:slot:%d", doctorID, start.Unix())
}

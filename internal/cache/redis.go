package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"example.com/mci/services/delivery/config"
	"example.com/mci/services/delivery/internal/model"
)

// CacheClient defines the interface for the local backup cache. The backup
// keeps the last known active set per owner so the dashboard still renders
// when the remote store is unreachable.
type CacheClient interface {
	GetActiveDeliveries(ctx context.Context, ownerID string) ([]*model.Delivery, error)
	SetActiveDeliveries(ctx context.Context, ownerID string, deliveries []*model.Delivery) error
	DeleteActiveDeliveries(ctx context.Context, ownerID string) error

	GetCustomers(ctx context.Context, ownerID string) ([]*model.Customer, error)
	SetCustomers(ctx context.Context, ownerID string, customers []*model.Customer) error

	FlushAll(ctx context.Context) error
}

// RedisClient implements CacheClient using Redis
type RedisClient struct {
	client  *redis.Client
	enabled bool
	ttl     time.Duration
}

// NewRedisClient creates a new Redis client
func NewRedisClient(cfg *config.RedisConfig) (CacheClient, error) {
	if !cfg.Enabled {
		return &RedisClient{enabled: false}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisClient{
		client:  client,
		enabled: true,
		ttl:     cfg.BackupTTL,
	}, nil
}

// NewRedisClientWithBackend wraps an existing Redis connection. Used in tests.
func NewRedisClientWithBackend(client *redis.Client, ttl time.Duration) CacheClient {
	return &RedisClient{client: client, enabled: true, ttl: ttl}
}

// NewDisabledClient returns a no-op cache. Reads behave as misses and
// writes are dropped.
func NewDisabledClient() CacheClient {
	return &RedisClient{enabled: false}
}

// Prefix keys to avoid collisions
func activeDeliveriesKey(ownerID string) string {
	return fmt.Sprintf("mci:active-deliveries:%s", ownerID)
}

func customersKey(ownerID string) string {
	return fmt.Sprintf("mci:customers:%s", ownerID)
}

// GetActiveDeliveries retrieves the backed-up active set for an owner
func (c *RedisClient) GetActiveDeliveries(ctx context.Context, ownerID string) ([]*model.Delivery, error) {
	if !c.enabled {
		return nil, redis.Nil
	}

	data, err := c.client.Get(ctx, activeDeliveriesKey(ownerID)).Bytes()
	if err != nil {
		return nil, err
	}

	var deliveries []*model.Delivery
	if err := json.Unmarshal(data, &deliveries); err != nil {
		return nil, err
	}

	return deliveries, nil
}

// SetActiveDeliveries stores the active set backup for an owner
func (c *RedisClient) SetActiveDeliveries(ctx context.Context, ownerID string, deliveries []*model.Delivery) error {
	if !c.enabled {
		return nil
	}

	data, err := json.Marshal(deliveries)
	if err != nil {
		return err
	}

	return c.client.Set(ctx, activeDeliveriesKey(ownerID), data, c.ttl).Err()
}

// DeleteActiveDeliveries removes the backup for an owner
func (c *RedisClient) DeleteActiveDeliveries(ctx context.Context, ownerID string) error {
	if !c.enabled {
		return nil
	}

	return c.client.Del(ctx, activeDeliveriesKey(ownerID)).Err()
}

// GetCustomers retrieves the cached customer list for an owner
func (c *RedisClient) GetCustomers(ctx context.Context, ownerID string) ([]*model.Customer, error) {
	if !c.enabled {
		return nil, redis.Nil
	}

	data, err := c.client.Get(ctx, customersKey(ownerID)).Bytes()
	if err != nil {
		return nil, err
	}

	var customers []*model.Customer
	if err := json.Unmarshal(data, &customers); err != nil {
		return nil, err
	}

	return customers, nil
}

// SetCustomers stores the customer list for an owner
func (c *RedisClient) SetCustomers(ctx context.Context, ownerID string, customers []*model.Customer) error {
	if !c.enabled {
		return nil
	}

	data, err := json.Marshal(customers)
	if err != nil {
		return err
	}

	return c.client.Set(ctx, customersKey(ownerID), data, c.ttl).Err()
}

// FlushAll clears all cache
func (c *RedisClient) FlushAll(ctx context.Context) error {
	if !c.enabled {
		return nil
	}

	return c.client.FlushAll(ctx).Err()
}

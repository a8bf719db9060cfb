package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/cinexpo/cinexpo-backend/internal/domain"
)

const keyPrefix = "hive:tx:"

// Cache is the key/value store behind CachingResolver
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// RedisCache adapts a go-redis client to Cache
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

// NewRedisClient connects to redis and pings it
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}

// CachingResolver is a read-through cache in front of a TransactionResolver.
// Only successful lookups are cached; a transaction that is not on chain yet may appear later.
type CachingResolver struct {
	next   domain.TransactionResolver
	cache  Cache
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachingResolver(next domain.TransactionResolver, cache Cache, ttl time.Duration, logger *zap.Logger) *CachingResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachingResolver{next: next, cache: cache, ttl: ttl, logger: logger}
}

type cachedOperation struct {
	Type string          `json:"type"`
	Body json.RawMessage `json:"body"`
}

type cachedRecord struct {
	TransactionID string            `json:"transaction_id"`
	Operations    []cachedOperation `json:"operations"`
}

// Resolve serves from cache when possible; cache failures fall through to the resolver
func (r *CachingResolver) Resolve(ctx context.Context, transactionID string) (*domain.TransactionRecord, error) {
	key := keyPrefix + transactionID

	data, ok, err := r.cache.Get(ctx, key)
	switch {
	case err != nil:
		r.logger.Warn("resolver cache read failed", zap.String("transaction_id", transactionID), zap.Error(err))
	case ok:
		record, err := decodeRecord(data)
		if err == nil {
			return record, nil
		}
		r.logger.Warn("discarding unreadable cache entry", zap.String("transaction_id", transactionID), zap.Error(err))
	}

	record, err := r.next.Resolve(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	data, err = encodeRecord(record)
	if err != nil {
		r.logger.Warn("failed to encode cache entry", zap.String("transaction_id", transactionID), zap.Error(err))
		return record, nil
	}
	if err := r.cache.Set(ctx, key, data, r.ttl); err != nil {
		r.logger.Warn("resolver cache write failed", zap.String("transaction_id", transactionID), zap.Error(err))
	}

	return record, nil
}

func encodeRecord(record *domain.TransactionRecord) ([]byte, error) {
	cached := cachedRecord{
		TransactionID: record.TransactionID,
		Operations:    make([]cachedOperation, 0, len(record.Operations)),
	}

	for _, op := range record.Operations {
		body := op.Raw
		if op.Transfer != nil {
			var err error
			if body, err = json.Marshal(op.Transfer); err != nil {
				return nil, err
			}
		}
		if len(body) == 0 {
			body = json.RawMessage("null")
		}
		cached.Operations = append(cached.Operations, cachedOperation{Type: string(op.Type), Body: body})
	}

	return json.Marshal(cached)
}

func decodeRecord(data []byte) (*domain.TransactionRecord, error) {
	var cached cachedRecord
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, err
	}

	record := &domain.TransactionRecord{
		TransactionID: cached.TransactionID,
		Operations:    make([]domain.Operation, 0, len(cached.Operations)),
	}
	for _, c := range cached.Operations {
		op := domain.Operation{Type: domain.OperationType(c.Type), Raw: c.Body}
		if op.Type == domain.OperationTypeTransfer {
			var transfer domain.TransferOperation
			if err := json.Unmarshal(c.Body, &transfer); err != nil {
				return nil, err
			}
			op.Transfer = &transfer
		}
		record.Operations = append(record.Operations, op)
	}

	return record, nil
}

package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/aura-webinar/livestream/internal/errs"
	"github.com/aura-webinar/livestream/internal/models"
)

// DefaultRedisKey holds the whole registry as one JSON array.
const DefaultRedisKey = "webinars"

const maxTxRetries = 5

// RedisRepository stores the registry under a single key. Writes run inside WATCH/MULTI so
// concurrent Puts cannot drop each other's records.
type RedisRepository struct {
	rdb    redis.UniversalClient
	key    string
	logger *zap.Logger
}

// NewRedisRepository creates a Redis-backed registry. An empty key uses DefaultRedisKey.
func NewRedisRepository(rdb redis.UniversalClient, key string, logger *zap.Logger) *RedisRepository {
	if key == "" {
		key = DefaultRedisKey
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisRepository{rdb: rdb, key: key, logger: logger}
}

func (r *RedisRepository) List(ctx context.Context) ([]models.Webinar, error) {
	return r.read(ctx, r.rdb)
}

func (r *RedisRepository) Get(ctx context.Context, id string) (*models.Webinar, error) {
	list, err := r.read(ctx, r.rdb)
	if err != nil {
		return nil, err
	}
	w, ok := find(list, id)
	if !ok {
		return nil, errs.ErrNotFound
	}
	return w, nil
}

func (r *RedisRepository) Put(ctx context.Context, w *models.Webinar) error {
	if w == nil || w.ID == "" {
		return &errs.ValidationError{Fields: []string{"id"}}
	}
	txf := func(tx *redis.Tx) error {
		list, err := r.read(ctx, tx)
		if err != nil {
			return err
		}
		raw, err := json.Marshal(upsert(list, *w))
		if err != nil {
			return fmt.Errorf("encode registry: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, r.key, raw, 0)
			return nil
		})
		return err
	}
	for attempt := 1; attempt <= maxTxRetries; attempt++ {
		err := r.rdb.Watch(ctx, txf, r.key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
		r.logger.Debug("registry write conflict, retrying", zap.String("webinar_id", w.ID), zap.Int("attempt", attempt))
	}
	return fmt.Errorf("registry put %s: too many concurrent writers", w.ID)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (r *RedisRepository) read(ctx context.Context, c getter) ([]models.Webinar, error) {
	raw, err := c.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}
	var list []models.Webinar
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("decode registry: %w", err)
	}
	return list, nil
}

package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"restaurant/pkg/restaurant/domain/model"
)

const (
	notFoundMarker = "notfound"
	notFoundTTL    = time.Minute
	defaultTTL     = 5 * time.Minute
)

type Config struct {
	Address  string
	Password string
	DB       int
}

func Connect(ctx context.Context, cfg Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     20,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "redis ping")
	}
	return rdb, nil
}

type cachedTable struct {
	ID       int64  `json:"id"`
	Number   string `json:"table_number"`
	Capacity int    `json:"capacity"`
	Status   string `json:"status"`
}

// TableRepository is a read-through cache in front of table lookups.
// Redis errors are logged and the lookup falls back to the wrapped repository.
type TableRepository struct {
	next  model.TableRepository
	redis *redis.Client
	ttl   time.Duration
}

var _ model.TableRepository = &TableRepository{}

func NewTableRepository(next model.TableRepository, rdb *redis.Client, ttl time.Duration) *TableRepository {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &TableRepository{next: next, redis: rdb, ttl: ttl}
}

func tableKey(id int64) string {
	return fmt.Sprintf("table:%d", id)
}

func (c *TableRepository) Find(ctx context.Context, id int64) (*model.Table, error) {
	key := tableKey(id)

	data, err := c.redis.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if string(data) == notFoundMarker {
			return nil, model.ErrTableNotFound
		}
		var cached cachedTable
		if err := json.Unmarshal(data, &cached); err != nil {
			log.WithError(err).WithField("key", key).Warn("failed to decode cached table, reading database")
			break
		}
		return &model.Table{
			ID:       cached.ID,
			Number:   cached.Number,
			Capacity: cached.Capacity,
			Status:   model.TableStatus(cached.Status),
		}, nil
	case errors.Is(err, redis.Nil):
	default:
		log.WithError(err).WithField("key", key).Warn("redis unavailable, reading database")
	}

	table, err := c.next.Find(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrTableNotFound) {
			if setErr := c.redis.Set(ctx, key, notFoundMarker, notFoundTTL).Err(); setErr != nil {
				log.WithError(setErr).WithField("key", key).Warn("failed to cache missing table")
			}
		}
		return nil, err
	}

	encoded, err := json.Marshal(cachedTable{
		ID:       table.ID,
		Number:   table.Number,
		Capacity: table.Capacity,
		Status:   string(table.Status),
	})
	if err != nil {
		return table, nil
	}
	if err := c.redis.Set(ctx, key, encoded, c.ttl).Err(); err != nil {
		log.WithError(err).WithField("key", key).Warn("failed to cache table")
	}
	return table, nil
}

func (c *TableRepository) Invalidate(ctx context.Context, id int64) {
	if err := c.redis.Del(ctx, tableKey(id)).Err(); err != nil {
		log.WithError(err).WithField("table_id", id).Warn("failed to invalidate cached table")
	}
}

package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/shubham-shewale/market-data-relay/pkg/models"
)

const (
	keyPrefix       = "stock:"
	channelPrefix   = "prices."
	SnapshotKey     = "prices:snapshot"
	SnapshotChannel = "prices.snapshot"
)

// RedisStore mirrors broadcast snapshots into Redis: the latest StockUpdate per symbol under
// stock:<symbol>, published on prices.<symbol>, plus the whole snapshot under prices:snapshot.
// Keys expire after ttl, so only the latest value is ever held.
type RedisStore struct {
	client    RedisClient
	ttl       time.Duration
	sequencer *models.Sequencer
	logger    *zap.Logger
}

func NewRedisStore(client RedisClient, ttl time.Duration, logger *zap.Logger) *RedisStore {
	return &RedisStore{
		client:    client,
		ttl:       ttl,
		sequencer: models.NewSequencer(),
		logger:    logger,
	}
}

// Publish writes the snapshot with one pipelined round trip.
func (r *RedisStore) Publish(ctx context.Context, snapshot models.PriceSnapshot) error {
	if len(snapshot) == 0 {
		return nil
	}

	var pipe Pipeliner = r.client.Pipeline()

	for _, update := range r.sequencer.Updates(snapshot, time.Now()) {
		payload, err := json.Marshal(update)
		if err != nil {
			return fmt.Errorf("encode update for %s: %w", update.Symbol, err)
		}
		pipe.Set(ctx, keyPrefix+update.Symbol, payload, r.ttl)
		pipe.Publish(ctx, channelPrefix+update.Symbol, payload)
	}

	full, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	pipe.Set(ctx, SnapshotKey, full, r.ttl)
	pipe.Publish(ctx, SnapshotChannel, full)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline: %w", err)
	}

	r.logger.Debug("Snapshot mirrored to redis", zap.Int("symbols", len(snapshot)))
	return nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

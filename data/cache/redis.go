// Package cache is the persisted per-user cache of holdings, transactions and
// portfolio aggregates. Entries are a read-side shadow of the store: strictly
// time-bounded and explicitly invalidated after every mutation, never
// authoritative.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/finfolio/folio/config"
	"github.com/finfolio/folio/internal/model"
	"github.com/finfolio/folio/utils"
)

var ErrNotFound = errors.New("cache entry not found")

const (
	keyPrefix        = "portfolio_"
	suffixHoldings   = "holdings"
	suffixTxs        = "transactions"
	suffixAggregates = "aggregates"
)

type envelope struct {
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

type RedisCache struct {
	redis *redis.Client
	cfg   *config.Config
	now   func() time.Time
}

func NewRedisCache(redisClient *redis.Client, cfg *config.Config) *RedisCache {
	return &RedisCache{redis: redisClient, cfg: cfg, now: time.Now}
}

func key(userID, suffix string) string {
	return fmt.Sprintf("%s%s_%s", keyPrefix, userID, suffix)
}

// expired applies the TTL on the payload's own write timestamp; the redis
// expiry is only a backstop.
func expired(writtenAt, now time.Time, ttl time.Duration) bool {
	return now.Sub(writtenAt) >= ttl
}

func (r *RedisCache) get(ctx context.Context, key string, dest any) error {
	rqID := utils.GetRequestIDFromCtx(ctx)

	res, err := r.redis.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		slog.Error("failed on redis.Get", slog.String("rqID", rqID), slog.String("err", err.Error()), slog.String("key", key))
		return err
	}

	env := envelope{}
	if err := json.Unmarshal([]byte(res), &env); err != nil {
		slog.Error("can't unmarshal cache envelope", slog.String("rqID", rqID), slog.String("err", err.Error()), slog.String("key", key))
		return ErrNotFound
	}

	if expired(env.Timestamp, r.now(), r.cfg.Cache.TTL) {
		if err := r.redis.Del(ctx, key).Err(); err != nil {
			slog.Error("failed to delete expired cache entry", slog.String("rqID", rqID), slog.String("err", err.Error()), slog.String("key", key))
		}
		return ErrNotFound
	}

	if err := json.Unmarshal(env.Data, dest); err != nil {
		slog.Error("can't unmarshal cache data", slog.String("rqID", rqID), slog.String("err", err.Error()), slog.String("key", key))
		return ErrNotFound
	}

	return nil
}

func (r *RedisCache) set(ctx context.Context, userID, key string, value any) error {
	rqID := utils.GetRequestIDFromCtx(ctx)

	data, err := json.Marshal(value)
	if err != nil {
		slog.Error("can't marshal cache value", slog.String("rqID", rqID), slog.String("err", err.Error()), slog.String("key", key))
		return err
	}

	payload, err := json.Marshal(envelope{Data: data, Timestamp: r.now()})
	if err != nil {
		return err
	}

	// oversized entries are skipped, the caller falls back to always-fetch
	if len(payload) > r.cfg.Cache.MaxEntrySize {
		slog.Warn(
			"cache write skipped: payload too large",
			slog.String("rqID", rqID),
			slog.String("key", key),
			slog.Int("size", len(payload)),
			slog.Int("limit", r.cfg.Cache.MaxEntrySize),
		)
		return nil
	}

	err = r.redis.Set(ctx, key, payload, r.cfg.Cache.TTL).Err()
	if err == nil {
		return nil
	}

	slog.Warn("cache write failed, sweeping namespace and retrying", slog.String("rqID", rqID), slog.String("key", key), slog.String("err", err.Error()))

	if sweepErr := r.sweepNamespace(ctx, userID); sweepErr != nil {
		slog.Error("namespace sweep failed", slog.String("rqID", rqID), slog.String("err", sweepErr.Error()))
		return err
	}

	if err := r.redis.Set(ctx, key, payload, r.cfg.Cache.TTL).Err(); err != nil {
		slog.Error("cache write retry failed", slog.String("rqID", rqID), slog.String("key", key), slog.String("err", err.Error()))
		return err
	}

	return nil
}

// sweepNamespace deletes every cache key belonging to one user.
func (r *RedisCache) sweepNamespace(ctx context.Context, userID string) error {
	pattern := fmt.Sprintf("%s%s_*", keyPrefix, userID)

	iter := r.redis.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		if err := r.redis.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

func (r *RedisCache) GetHoldings(ctx context.Context, userID string) ([]model.Holding, error) {
	var holdings []model.Holding
	if err := r.get(ctx, key(userID, suffixHoldings), &holdings); err != nil {
		return nil, err
	}
	return holdings, nil
}

func (r *RedisCache) SetHoldings(ctx context.Context, userID string, holdings []model.Holding) error {
	return r.set(ctx, userID, key(userID, suffixHoldings), holdings)
}

func (r *RedisCache) GetTransactions(ctx context.Context, userID string) (map[string][]model.Transaction, error) {
	txs := make(map[string][]model.Transaction)
	if err := r.get(ctx, key(userID, suffixTxs), &txs); err != nil {
		return nil, err
	}
	return txs, nil
}

func (r *RedisCache) SetTransactions(ctx context.Context, userID string, txs map[string][]model.Transaction) error {
	return r.set(ctx, userID, key(userID, suffixTxs), txs)
}

func (r *RedisCache) GetPortfolioSummary(ctx context.Context, userID string) (model.PortfolioSummary, error) {
	summary := model.PortfolioSummary{}
	if err := r.get(ctx, key(userID, suffixAggregates), &summary); err != nil {
		return model.PortfolioSummary{}, err
	}
	return summary, nil
}

func (r *RedisCache) SetPortfolioSummary(ctx context.Context, userID string, summary model.PortfolioSummary) error {
	return r.set(ctx, userID, key(userID, suffixAggregates), summary)
}

// Invalidate drops the user's three namespaced keys. Called synchronously
// after every successful mutation so a concurrent reader can't pick up a
// stale entry.
func (r *RedisCache) Invalidate(ctx context.Context, userID string) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("Invalidate start", slog.String("rqID", rqID), slog.String("userID", userID))

	keys := []string{
		key(userID, suffixHoldings),
		key(userID, suffixTxs),
		key(userID, suffixAggregates),
	}

	if err := r.redis.Del(ctx, keys...).Err(); err != nil {
		slog.Error("failed on redis.Del", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return err
	}

	slog.Debug("Invalidate completed", slog.String("rqID", rqID), slog.String("userID", userID))

	return nil
}

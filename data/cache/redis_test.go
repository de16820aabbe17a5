package cache

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finfolio/folio/config"
	"github.com/finfolio/folio/internal/model"
)

func TestExpired(t *testing.T) {
	ttl := 5 * time.Minute
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		writtenAt time.Time
		want      bool
	}{
		{"fresh", now.Add(-4*time.Minute - 59*time.Second), false},
		{"exactly at ttl", now.Add(-5 * time.Minute), true},
		{"past ttl", now.Add(-5*time.Minute - time.Second), true},
		{"just written", now, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, expired(tt.writtenAt, now, ttl))
		})
	}
}

func TestKey(t *testing.T) {
	assert.Equal(t, "portfolio_user-1_holdings", key("user-1", suffixHoldings))
	assert.Equal(t, "portfolio_user-1_transactions", key("user-1", suffixTxs))
	assert.Equal(t, "portfolio_user-1_aggregates", key("user-1", suffixAggregates))
}

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()

	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})

	cfg := &config.Config{}
	cfg.Cache.TTL = 5 * time.Minute
	cfg.Cache.MaxEntrySize = 2097152

	return NewRedisCache(client, cfg), srv
}

func TestGet_DeletesExpiredEntry(t *testing.T) {
	c, srv := newTestCache(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	c.now = func() time.Time { return base }
	require.NoError(t, c.SetHoldings(ctx, "user-1", []model.Holding{{ID: "h1", Symbol: "AAPL"}}))

	// still served just under the TTL
	c.now = func() time.Time { return base.Add(4*time.Minute + 59*time.Second) }
	holdings, err := c.GetHoldings(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, holdings, 1)

	// past the TTL the read misses and removes the key
	c.now = func() time.Time { return base.Add(5*time.Minute + time.Second) }
	_, err = c.GetHoldings(ctx, "user-1")
	require.ErrorIs(t, err, ErrNotFound)
	assert.False(t, srv.Exists(key("user-1", suffixHoldings)))
}

func TestGet_MissingKey(t *testing.T) {
	c, _ := newTestCache(t)

	_, err := c.GetHoldings(context.Background(), "user-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSet_SkipsOversizedPayload(t *testing.T) {
	c, srv := newTestCache(t)
	c.cfg.Cache.MaxEntrySize = 64
	ctx := context.Background()

	holdings := []model.Holding{{ID: "h1", Symbol: "AAPL", Name: strings.Repeat("x", 200)}}

	// oversized writes no-op instead of failing; the caller degrades to
	// always-fetch
	require.NoError(t, c.SetHoldings(ctx, "user-1", holdings))
	assert.False(t, srv.Exists(key("user-1", suffixHoldings)))
}

func TestInvalidate_DropsAllThreeKeys(t *testing.T) {
	c, srv := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.SetHoldings(ctx, "user-1", []model.Holding{{ID: "h1"}}))
	require.NoError(t, c.SetTransactions(ctx, "user-1", map[string][]model.Transaction{"h1": {}}))
	require.NoError(t, c.SetPortfolioSummary(ctx, "user-1", model.PortfolioSummary{}))

	require.NoError(t, c.Invalidate(ctx, "user-1"))

	assert.False(t, srv.Exists(key("user-1", suffixHoldings)))
	assert.False(t, srv.Exists(key("user-1", suffixTxs)))
	assert.False(t, srv.Exists(key("user-1", suffixAggregates)))
}

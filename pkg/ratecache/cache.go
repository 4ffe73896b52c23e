// Package ratecache keeps the latest market rates in a process-wide
// snapshot. A single background refresher replaces the whole snapshot
// atomically, readers never block on network I/O and never observe a mix
// of two refresh cycles.
package ratecache

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"cwex/pkg/asset"
	"cwex/pkg/xlog"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
)

var ErrRateUnavailable = errors.New("rate unavailable")

var logger = xlog.GetLogger()

const redisSnapshotKey = "wallet_rates_snapshot"

// Snapshot is one complete, immutable set of rates. Prices are USD per one
// unit of each asset, pair rates derive from the USD anchor so that both
// directions of a conversion share a single rounding path.
type Snapshot struct {
	PricesUSD map[asset.Asset]decimal.Decimal `json:"pricesUSD"`
	FetchedAt time.Time                       `json:"fetchedAt"`
}

func (s *Snapshot) Age() time.Duration {
	return time.Since(s.FetchedAt)
}

// Rate returns how many units of quote one unit of base buys
func (s *Snapshot) Rate(base, quote asset.Asset) (rate decimal.Decimal, err error) {
	pb, ok := s.PricesUSD[base]
	if !ok || pb.Sign() <= 0 {
		return decimal.Zero, ErrRateUnavailable
	}
	pq, ok := s.PricesUSD[quote]
	if !ok || pq.Sign() <= 0 {
		return decimal.Zero, ErrRateUnavailable
	}

	return pb.DivRound(pq, 18), nil
}

// Cache owns the current snapshot and its refresh cycle
type Cache struct {
	source   Source
	interval time.Duration
	rds      *redis.Client // optional warm store for cold starts

	snap atomic.Value // *Snapshot
}

func New(source Source, interval time.Duration, rds *redis.Client) *Cache {
	return &Cache{
		source:   source,
		interval: interval,
		rds:      rds,
	}
}

// Refresh bulk-fetches all configured assets and swaps the snapshot in one
// step. A failed fetch leaves the previous snapshot untouched.
func (c *Cache) Refresh(ctx context.Context) (err error) {
	defer func() {
		if err != nil {
			logger.Errorf("rates refresh failed with err:%s", err)
		}
	}()

	prices, err := c.source.FetchAll(ctx, asset.All())
	if err != nil {
		return
	}

	for _, a := range asset.All() {
		p, ok := prices[a]
		if !ok || p.Sign() <= 0 {
			return errors.New("rate source returned no price for " + a.String())
		}
	}

	snap := &Snapshot{
		PricesUSD: prices,
		FetchedAt: time.Now(),
	}
	c.snap.Store(snap)

	c.persist(ctx, snap)

	logger.Debugf("rates refreshed with %d assets at %s", len(prices), snap.FetchedAt.Format(time.RFC3339))
	return nil
}

// Warm tries to restore the last persisted snapshot from redis. Used at
// startup so the first requests do not hit a cold cache.
func (c *Cache) Warm(ctx context.Context) (err error) {
	if c.rds == nil {
		return nil
	}

	raw, err := c.rds.Get(ctx, redisSnapshotKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return
	}

	var snap Snapshot
	err = json.Unmarshal([]byte(raw), &snap)
	if err != nil {
		return
	}
	if len(snap.PricesUSD) == 0 {
		return nil
	}

	c.snap.Store(&snap)
	logger.Infof("rates warmed from redis, fetched at %s", snap.FetchedAt.Format(time.RFC3339))
	return nil
}

func (c *Cache) persist(ctx context.Context, snap *Snapshot) {
	if c.rds == nil {
		return
	}

	b, err := json.Marshal(snap)
	if err != nil {
		return
	}
	err = c.rds.Set(ctx, redisSnapshotKey, string(b), 0).Err()
	if err != nil {
		logger.Warningf("rates persist to redis failed with err:%s", err)
	}
}

// Snapshot returns the current snapshot handle, ErrRateUnavailable before
// the first successful refresh
func (c *Cache) Snapshot() (snap *Snapshot, err error) {
	v := c.snap.Load()
	if v == nil {
		return nil, ErrRateUnavailable
	}
	return v.(*Snapshot), nil
}

// GetRate reads the pair rate from the current snapshot, never blocking
func (c *Cache) GetRate(base, quote asset.Asset) (rate decimal.Decimal, err error) {
	snap, err := c.Snapshot()
	if err != nil {
		return
	}
	return snap.Rate(base, quote)
}

// Stale reports whether the current snapshot is older than two refresh
// intervals. The exchange engine rejects conversions on a stale snapshot.
func (c *Cache) Stale() bool {
	snap, err := c.Snapshot()
	if err != nil {
		return true
	}
	return snap.Age() > 2*c.interval
}

// Latest renders the snapshot as assetPair -> rate strings for the rates view
func (c *Cache) Latest() (out map[string]string, err error) {
	snap, err := c.Snapshot()
	if err != nil {
		return
	}

	out = make(map[string]string, len(snap.PricesUSD))
	for _, a := range asset.All() {
		if a == asset.USD {
			continue
		}
		r, rerr := snap.Rate(a, asset.USD)
		if rerr != nil {
			continue
		}
		out[a.String()+"_USD"] = r.String()
	}
	return out, nil
}

// StartRefresher runs the refresh loop until ctx is done
func (c *Cache) StartRefresher(ctx context.Context) {
	round := 0
	for {
		round++
		err := c.Refresh(ctx)
		if err != nil {
			logger.Errorf("StartRefresher round:%d failed with err:%s", round, err)
		} else {
			logger.Debugf("StartRefresher round:%d done", round)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.interval):
		}
	}
}

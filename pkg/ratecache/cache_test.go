package ratecache_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"cwex/pkg/asset"
	"cwex/pkg/ratecache"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// flakySource fails until armed, then serves static prices
type flakySource struct {
	mu     sync.Mutex
	armed  bool
	static *ratecache.StaticSource
}

func (s *flakySource) arm() {
	s.mu.Lock()
	s.armed = true
	s.mu.Unlock()
}

func (s *flakySource) FetchAll(ctx context.Context, assets []asset.Asset) (map[asset.Asset]decimal.Decimal, error) {
	s.mu.Lock()
	armed := s.armed
	s.mu.Unlock()
	if !armed {
		return nil, context.DeadlineExceeded
	}
	return s.static.FetchAll(ctx, assets)
}

func newCache(t *testing.T) *ratecache.Cache {
	c := ratecache.New(ratecache.NewStaticSource(), 30*time.Second, nil)
	require.Nil(t, c.Refresh(context.Background()))
	return c
}

func TestColdStart(t *testing.T) {
	c := ratecache.New(ratecache.NewStaticSource(), 30*time.Second, nil)

	_, err := c.GetRate(asset.USD, asset.BTC)
	require.Equal(t, ratecache.ErrRateUnavailable, err)

	_, err = c.Snapshot()
	require.Equal(t, ratecache.ErrRateUnavailable, err)
	require.True(t, c.Stale())
}

func TestGetRateAnchor(t *testing.T) {
	c := newCache(t)

	// 1 USD buys 1/62500 BTC
	r, err := c.GetRate(asset.USD, asset.BTC)
	require.Nil(t, err)
	require.True(t, r.Equal(decimal.RequireFromString("0.000016")), "got %s", r)

	// and the reverse is the BTC price itself
	r, err = c.GetRate(asset.BTC, asset.USD)
	require.Nil(t, err)
	require.True(t, r.Equal(decimal.NewFromInt(62500)), "got %s", r)
}

func TestCrossRateConsistency(t *testing.T) {
	c := newCache(t)

	// cross pairs go through the USD anchor in both directions
	ab, err := c.GetRate(asset.ETH, asset.BTC)
	require.Nil(t, err)
	ba, err := c.GetRate(asset.BTC, asset.ETH)
	require.Nil(t, err)

	prod := ab.Mul(ba)
	diff := prod.Sub(decimal.NewFromInt(1)).Abs()
	require.True(t, diff.LessThan(decimal.RequireFromString("0.0000000001")), "product %s", prod)
}

func TestGetRateUnknownPair(t *testing.T) {
	c := newCache(t)
	_, err := c.GetRate(asset.Asset("XYZ"), asset.USD)
	require.Equal(t, ratecache.ErrRateUnavailable, err)
}

func TestFailedRefreshKeepsSnapshot(t *testing.T) {
	src := &flakySource{static: ratecache.NewStaticSource()}
	c := ratecache.New(src, 30*time.Second, nil)

	src.arm()
	require.Nil(t, c.Refresh(context.Background()))
	before, err := c.Snapshot()
	require.Nil(t, err)

	src.mu.Lock()
	src.armed = false
	src.mu.Unlock()
	require.NotNil(t, c.Refresh(context.Background()))

	after, err := c.Snapshot()
	require.Nil(t, err)
	require.Same(t, before, after)
}

func TestSnapshotAtomicity(t *testing.T) {
	c := newCache(t)

	var wg sync.WaitGroup
	done := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			_ = c.Refresh(context.Background())
		}
	}()

	// readers must always see a complete set from one refresh cycle
	for i := 0; i < 1000; i++ {
		snap, err := c.Snapshot()
		require.Nil(t, err)
		require.Len(t, snap.PricesUSD, len(asset.All()))
		for _, a := range asset.All() {
			_, ok := snap.PricesUSD[a]
			require.True(t, ok, "missing %s mid-refresh", a)
		}
	}

	close(done)
	wg.Wait()
}

func TestLatest(t *testing.T) {
	c := newCache(t)

	out, err := c.Latest()
	require.Nil(t, err)
	require.NotContains(t, out, "USD_USD")
	require.Equal(t, "62500", out["BTC_USD"])
	require.Len(t, out, len(asset.All())-1)
}

func TestStale(t *testing.T) {
	c := ratecache.New(ratecache.NewStaticSource(), time.Millisecond, nil)
	require.Nil(t, c.Refresh(context.Background()))

	time.Sleep(5 * time.Millisecond)
	require.True(t, c.Stale())

	require.Nil(t, c.Refresh(context.Background()))
	require.False(t, c.Stale())
}

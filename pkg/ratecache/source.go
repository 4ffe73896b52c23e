package ratecache

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"cwex/pkg/asset"

	"github.com/shopspring/decimal"
)

// Source is the external rate provider, consumed only by the refresh cycle
type Source interface {
	// FetchAll returns the USD price per one unit of each requested asset
	FetchAll(ctx context.Context, assets []asset.Asset) (map[asset.Asset]decimal.Decimal, error)
}

// HTTPSource fetches a bulk JSON body of {"BTC":"62500","EUR":"1.08",...}
type HTTPSource struct {
	URL    string
	Client *http.Client
}

func NewHTTPSource(url string) *HTTPSource {
	return &HTTPSource{
		URL:    url,
		Client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *HTTPSource) FetchAll(ctx context.Context, assets []asset.Asset) (prices map[asset.Asset]decimal.Decimal, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.New("rate source status " + resp.Status)
	}

	raw := map[string]string{}
	err = json.NewDecoder(resp.Body).Decode(&raw)
	if err != nil {
		return
	}

	prices = make(map[asset.Asset]decimal.Decimal, len(assets))
	for _, a := range assets {
		v, ok := raw[a.String()]
		if !ok {
			continue
		}
		d, derr := decimal.NewFromString(v)
		if derr != nil {
			continue
		}
		prices[a] = d
	}

	return prices, nil
}

// StaticSource serves fixed prices, for dev runs and benchmarks
type StaticSource struct {
	Prices map[asset.Asset]decimal.Decimal
}

func NewStaticSource() *StaticSource {
	p := map[asset.Asset]decimal.Decimal{
		asset.USD:  decimal.NewFromInt(1),
		asset.EUR:  decimal.RequireFromString("1.08"),
		asset.RUB:  decimal.RequireFromString("0.011"),
		asset.BTC:  decimal.RequireFromString("62500"),
		asset.ETH:  decimal.RequireFromString("3000"),
		asset.USDT: decimal.RequireFromString("1.00"),
		asset.LTC:  decimal.RequireFromString("80"),
		asset.DOGE: decimal.RequireFromString("0.12"),
		asset.XRP:  decimal.RequireFromString("0.52"),
		asset.BNB:  decimal.RequireFromString("550"),
		asset.ADA:  decimal.RequireFromString("0.45"),
		asset.SOL:  decimal.RequireFromString("145"),
		asset.TRX:  decimal.RequireFromString("0.13"),
	}
	return &StaticSource{Prices: p}
}

func (s *StaticSource) FetchAll(ctx context.Context, assets []asset.Asset) (map[asset.Asset]decimal.Decimal, error) {
	prices := make(map[asset.Asset]decimal.Decimal, len(assets))
	for _, a := range assets {
		if p, ok := s.Prices[a]; ok {
			prices[a] = p
		}
	}
	return prices, nil
}

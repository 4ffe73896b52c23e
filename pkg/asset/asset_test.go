package asset_test

import (
	"testing"

	"cwex/pkg/asset"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	a, err := asset.Parse("btc")
	require.Nil(t, err)
	require.Equal(t, asset.BTC, a)

	a, err = asset.Parse(" usd ")
	require.Nil(t, err)
	require.Equal(t, asset.USD, a)

	_, err = asset.Parse("XYZ")
	require.Equal(t, asset.ErrUnsupported, err)
}

func TestPrecision(t *testing.T) {
	assert.Equal(t, int32(2), asset.USD.Precision())
	assert.Equal(t, int32(2), asset.EUR.Precision())
	assert.Equal(t, int32(2), asset.RUB.Precision())
	assert.Equal(t, int32(2), asset.USDT.Precision())
	assert.Equal(t, int32(8), asset.BTC.Precision())
	assert.Equal(t, int32(8), asset.SOL.Precision())

	assert.True(t, asset.USD.IsFiat())
	assert.False(t, asset.USDT.IsFiat())
	assert.Len(t, asset.All(), 13)
}

func TestParseAmount(t *testing.T) {
	u, err := asset.ParseAmount(asset.USD, "100.00")
	require.Nil(t, err)
	require.Equal(t, asset.Units(10000), u)

	u, err = asset.ParseAmount(asset.BTC, "0.0016")
	require.Nil(t, err)
	require.Equal(t, asset.Units(160000), u)

	_, err = asset.ParseAmount(asset.USD, "-1.00")
	require.Equal(t, asset.ErrNegativeAmount, err)
}

func TestFromDecimalRoundsHalfToEven(t *testing.T) {
	// .005 on a 2-digit asset: banker's rounding goes to the even cent
	u, err := asset.FromDecimal(asset.USD, decimal.RequireFromString("1.005"))
	require.Nil(t, err)
	require.Equal(t, asset.Units(100), u)

	u, err = asset.FromDecimal(asset.USD, decimal.RequireFromString("1.015"))
	require.Nil(t, err)
	require.Equal(t, asset.Units(102), u)

	u, err = asset.FromDecimal(asset.USD, decimal.RequireFromString("1.025"))
	require.Nil(t, err)
	require.Equal(t, asset.Units(102), u)
}

func TestFromDecimalOverflow(t *testing.T) {
	big := decimal.New(1, 30)
	_, err := asset.FromDecimal(asset.BTC, big)
	require.Equal(t, asset.ErrOverflow, err)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "0.00160000", asset.Format(asset.BTC, 160000))
	assert.Equal(t, "9900.00", asset.Format(asset.USD, 990000))
	assert.Equal(t, "0.00", asset.Format(asset.USDT, 0))
}

func TestToDecimalRoundTrip(t *testing.T) {
	for _, a := range asset.All() {
		u := asset.Units(123456789)
		d := asset.ToDecimal(a, u)
		back, err := asset.FromDecimal(a, d)
		require.Nil(t, err)
		require.Equal(t, u, back, "asset %s", a)
	}
}

// Package asset defines the supported currencies and the fixed-point
// amounts used by the ledger. Every asset carries its own decimal
// precision, and all balance arithmetic happens on scaled integers.
package asset

import (
	"errors"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

type Asset string

const (
	USD Asset = "USD"
	EUR Asset = "EUR"
	RUB Asset = "RUB"

	BTC  Asset = "BTC"
	ETH  Asset = "ETH"
	USDT Asset = "USDT"
	LTC  Asset = "LTC"
	DOGE Asset = "DOGE"
	XRP  Asset = "XRP"
	BNB  Asset = "BNB"
	ADA  Asset = "ADA"
	SOL  Asset = "SOL"
	TRX  Asset = "TRX"
)

type Kind int8

const (
	KindFiat Kind = iota + 1
	KindCrypto
)

var ErrUnsupported = errors.New("unsupported asset")
var ErrNegativeAmount = errors.New("negative amount")
var ErrOverflow = errors.New("amount overflow")

// precision is part of an asset's identity. Fiat and the stable token keep
// 2 digits, the rest of the crypto family keeps 8.
var precisions = map[Asset]int32{
	USD: 2, EUR: 2, RUB: 2,
	USDT: 2,
	BTC:  8, ETH: 8, LTC: 8, DOGE: 8,
	XRP: 8, BNB: 8, ADA: 8, SOL: 8, TRX: 8,
}

var kinds = map[Asset]Kind{
	USD: KindFiat, EUR: KindFiat, RUB: KindFiat,
	USDT: KindCrypto, BTC: KindCrypto, ETH: KindCrypto, LTC: KindCrypto,
	DOGE: KindCrypto, XRP: KindCrypto, BNB: KindCrypto, ADA: KindCrypto,
	SOL: KindCrypto, TRX: KindCrypto,
}

// All returns the supported assets in a stable order
func All() []Asset {
	return []Asset{USD, EUR, RUB, BTC, ETH, USDT, LTC, DOGE, XRP, BNB, ADA, SOL, TRX}
}

// Parse maps an asset code like "btc" to its Asset
func Parse(code string) (a Asset, err error) {
	a = Asset(strings.ToUpper(strings.TrimSpace(code)))
	if _, ok := precisions[a]; !ok {
		return "", ErrUnsupported
	}
	return a, nil
}

func (a Asset) Valid() bool {
	_, ok := precisions[a]
	return ok
}

func (a Asset) Precision() int32 {
	return precisions[a]
}

func (a Asset) Kind() Kind {
	return kinds[a]
}

func (a Asset) IsFiat() bool {
	return kinds[a] == KindFiat
}

func (a Asset) String() string {
	return string(a)
}

// Units is a balance amount scaled by the asset's precision.
// 100.00 USD is Units(10000), 0.00160000 BTC is Units(160000).
type Units int64

const MaxUnits = Units(math.MaxInt64)

var maxUnitsDec = decimal.NewFromInt(math.MaxInt64)

// FromDecimal converts d into scaled units of a, rounding half-to-even on
// the smallest representable unit. This is the single rounding step of any
// conversion, applied only at the destination asset.
func FromDecimal(a Asset, d decimal.Decimal) (u Units, err error) {
	if !a.Valid() {
		return 0, ErrUnsupported
	}
	if d.IsNegative() {
		return 0, ErrNegativeAmount
	}

	scaled := d.RoundBank(a.Precision()).Shift(a.Precision())
	if scaled.Cmp(maxUnitsDec) > 0 {
		return 0, ErrOverflow
	}

	return Units(scaled.IntPart()), nil
}

// ToDecimal converts scaled units back to a decimal amount of a
func ToDecimal(a Asset, u Units) decimal.Decimal {
	return decimal.New(int64(u), -a.Precision())
}

// ParseAmount parses a decimal string into units of a.
// The amount must be exactly representable, no implicit rounding here.
func ParseAmount(a Asset, s string) (u Units, err error) {
	if !a.Valid() {
		return 0, ErrUnsupported
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	if d.Exponent() < -a.Precision() && !d.Equal(d.RoundBank(a.Precision())) {
		return 0, errors.New("amount has more digits than the asset precision")
	}

	return FromDecimal(a, d)
}

// Format renders units of a with the full asset precision, e.g. "0.00160000"
func Format(a Asset, u Units) string {
	return ToDecimal(a, u).StringFixed(a.Precision())
}

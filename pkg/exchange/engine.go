// Package exchange converts between assets at the cached rate. Quote is a
// pure preview, Execute re-quotes and settles through the ledger, and a
// sweeper fails whatever stays pending past the grace period.
package exchange

import (
	"errors"
	"time"

	"cwex/pkg/asset"
	"cwex/pkg/ledger"
	"cwex/pkg/model"
	"cwex/pkg/ratecache"
	"cwex/pkg/txstore"
	"cwex/pkg/xlog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidConversion = errors.New("invalid conversion")
	ErrInvalidAmount     = errors.New("invalid amount")
)

var logger = xlog.GetLogger()

// Publisher receives terminal transaction events
type Publisher interface {
	PublishTx(tx *model.ExchangeTx) error
}

// Quote is a conversion preview. Executing later may settle at a different
// rate, Execute always re-quotes.
type Quote struct {
	From asset.Asset
	To   asset.Asset

	FromUnits asset.Units
	ToUnits   asset.Units

	Rate      decimal.Decimal
	FetchedAt time.Time
}

// Engine is the exchange engine
type Engine struct {
	Rates  *ratecache.Cache
	Ledger *ledger.Ledger
	Txs    *txstore.Store

	Pub   Publisher     // optional
	Grace time.Duration // pending transactions older than this get swept
}

// New returns an Engine
func New(rates *ratecache.Cache, l *ledger.Ledger, txs *txstore.Store, grace time.Duration) *Engine {
	if grace <= 0 {
		grace = time.Minute
	}
	return &Engine{
		Rates:  rates,
		Ledger: l,
		Txs:    txs,
		Grace:  grace,
	}
}

// GetQuote previews a conversion of fromUnits of from into to. It reads the
// current snapshot only and never blocks on network.
func (e *Engine) GetQuote(from, to asset.Asset, fromUnits asset.Units) (q *Quote, err error) {
	if !from.Valid() || !to.Valid() {
		return nil, asset.ErrUnsupported
	}
	if from == to {
		return nil, ErrInvalidConversion
	}
	if fromUnits <= 0 {
		return nil, ErrInvalidAmount
	}

	if e.Rates.Stale() {
		return nil, ratecache.ErrRateUnavailable
	}
	snap, err := e.Rates.Snapshot()
	if err != nil {
		return
	}
	rate, err := snap.Rate(from, to)
	if err != nil {
		return
	}

	toDec := asset.ToDecimal(from, fromUnits).Mul(rate)
	toUnits, err := asset.FromDecimal(to, toDec)
	if err != nil {
		return
	}
	if toUnits <= 0 {
		// the amount rounds below one smallest unit of the target
		return nil, ErrInvalidAmount
	}

	q = &Quote{
		From:      from,
		To:        to,
		FromUnits: fromUnits,
		ToUnits:   toUnits,
		Rate:      rate,
		FetchedAt: snap.FetchedAt,
	}
	return
}

// Execute converts fromUnits of from into to for owner. It re-quotes at the
// current snapshot, records a pending transaction, settles it through the
// ledger and marks it completed or failed. requestID is the caller's
// correlation id and travels on the published event, empty is fine. The
// returned transaction is terminal either way, the error reports why a
// failed one failed.
func (e *Engine) Execute(owner int64, from, to asset.Asset, fromUnits asset.Units, requestID string) (tx *model.ExchangeTx, err error) {
	q, err := e.GetQuote(from, to, fromUnits)
	if err != nil {
		return
	}

	tx = &model.ExchangeTx{
		ID:        uuid.NewString(),
		RequestID: requestID,
		Owner:     owner,
		FromAsset: from.String(),
		ToAsset:   to.String(),
		FromUnits: int64(q.FromUnits),
		ToUnits:   int64(q.ToUnits),
		Rate:      q.Rate,
		TxStatus:  model.TxStatusPending,
	}
	err = e.Txs.Append(tx)
	if err != nil {
		return nil, err
	}

	err = e.Ledger.Convert(owner, from, q.FromUnits, to, q.ToUnits, tx.ID)
	if err != nil {
		logger.Warningf("exchange tx:%s failed with owner:%d, %s->%s, err:%s",
			tx.ID, owner, from, to, err)
		tx = e.finish(tx, model.TxStatusFailed, FailReason(err))
		return tx, err
	}

	tx = e.finish(tx, model.TxStatusCompleted, "")
	logger.Infof("exchange tx:%s completed with owner:%d, %s %s -> %s %s",
		tx.ID, owner, asset.Format(from, q.FromUnits), from, asset.Format(to, q.ToUnits), to)
	return tx, nil
}

// finish marks the transaction terminal and publishes the event. The store
// owns the shared record, so finish hands out the copy the store returns
// instead of writing the shared struct.
func (e *Engine) finish(tx *model.ExchangeTx, status, reason string) *model.ExchangeTx {
	var done *model.ExchangeTx
	var err error
	if status == model.TxStatusCompleted {
		done, err = e.Txs.MarkCompleted(tx.ID)
	} else {
		done, err = e.Txs.MarkFailed(tx.ID, reason)
	}
	if err != nil {
		logger.Errorf("exchange tx:%s mark %s failed with err:%s", tx.ID, status, err)
		return tx
	}

	if e.Pub != nil {
		err = e.Pub.PublishTx(done)
		if err != nil {
			logger.Errorf("exchange tx:%s publish failed with err:%s", tx.ID, err)
		}
	}
	return done
}

// GetTransactionStatus returns one transaction by id
func (e *Engine) GetTransactionStatus(txID string) (tx *model.ExchangeTx, err error) {
	return e.Txs.GetByID(txID)
}

// FailReason maps an Execute or GetQuote error to the reason string carried
// on failed transaction events
func FailReason(err error) string {
	switch {
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return "InsufficientFunds"
	case errors.Is(err, ledger.ErrOverflow):
		return "Overflow"
	case errors.Is(err, ledger.ErrAccountHalted):
		return "AccountHalted"
	case errors.Is(err, ledger.ErrInvalidAmount), errors.Is(err, ErrInvalidAmount):
		return "InvalidAmount"
	case errors.Is(err, ErrInvalidConversion):
		return "InvalidConversion"
	case errors.Is(err, asset.ErrUnsupported):
		return "UnsupportedAsset"
	case errors.Is(err, ratecache.ErrRateUnavailable):
		return "RateUnavailable"
	default:
		return "Internal"
	}
}

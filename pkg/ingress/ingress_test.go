package ingress

import (
	"testing"
	"time"

	"cwex/pkg/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestTxEventFromTransaction(t *testing.T) {
	now := time.Now()
	tx := &model.ExchangeTx{
		ID:          "tx-1",
		RequestID:   "req-9",
		Owner:       42,
		FromAsset:   "USD",
		ToAsset:     "BTC",
		FromUnits:   10000,
		ToUnits:     160000,
		Rate:        decimal.RequireFromString("0.000016"),
		TxStatus:    model.TxStatusCompleted,
		CompletedAt: &now,
	}

	ev := txEvent(tx)
	require.Equal(t, "tx-1", ev.TxID)
	require.Equal(t, "req-9", ev.RequestID)
	require.Equal(t, int64(42), ev.Owner)
	require.Equal(t, "0.000016", ev.Rate)
	require.Equal(t, model.TxStatusCompleted, ev.TxStatus)
	require.Equal(t, &now, ev.Time)
}

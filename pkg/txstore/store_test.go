package txstore_test

import (
	"testing"
	"time"

	"cwex/pkg/model"
	"cwex/pkg/txstore"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newTx(owner int64, status string) *model.ExchangeTx {
	return &model.ExchangeTx{
		ID:        uuid.NewString(),
		Owner:     owner,
		FromAsset: "USD",
		ToAsset:   "BTC",
		FromUnits: 10000,
		ToUnits:   160000,
		Rate:      decimal.RequireFromString("0.000016"),
		TxStatus:  status,
	}
}

func TestAppendGet(t *testing.T) {
	s := txstore.New(nil)

	tx := newTx(1, model.TxStatusPending)
	require.Nil(t, s.Append(tx))
	require.Equal(t, int64(1), tx.Seq)

	got, err := s.GetByID(tx.ID)
	require.Nil(t, err)
	require.Equal(t, tx.ID, got.ID)
	require.Equal(t, model.TxStatusPending, got.TxStatus)

	_, err = s.GetByID(uuid.NewString())
	require.Equal(t, txstore.ErrNotFound, err)
}

func TestDuplicateID(t *testing.T) {
	s := txstore.New(nil)

	tx := newTx(1, model.TxStatusPending)
	require.Nil(t, s.Append(tx))

	dup := newTx(1, model.TxStatusPending)
	dup.ID = tx.ID
	require.NotNil(t, s.Append(dup))
}

func TestMarkTerminal(t *testing.T) {
	s := txstore.New(nil)

	tx := newTx(1, model.TxStatusPending)
	require.Nil(t, s.Append(tx))

	done, err := s.MarkCompleted(tx.ID)
	require.Nil(t, err)
	require.Equal(t, model.TxStatusCompleted, done.TxStatus)
	require.NotNil(t, done.CompletedAt)

	// the returned record is a copy, writing it must not reach the store
	done.TxStatus = model.TxStatusPending
	got, err := s.GetByID(tx.ID)
	require.Nil(t, err)
	require.Equal(t, model.TxStatusCompleted, got.TxStatus)
	require.NotNil(t, got.CompletedAt)

	// terminal records never move again
	_, err = s.MarkFailed(tx.ID, "whatever")
	require.Equal(t, txstore.ErrTerminalTx, err)
	_, err = s.MarkCompleted(uuid.NewString())
	require.Equal(t, txstore.ErrNotFound, err)
}

func TestMarkFailed(t *testing.T) {
	s := txstore.New(nil)

	tx := newTx(1, model.TxStatusPending)
	require.Nil(t, s.Append(tx))

	done, err := s.MarkFailed(tx.ID, "InsufficientFunds")
	require.Nil(t, err)
	require.Equal(t, "InsufficientFunds", done.Reason)

	got, err := s.GetByID(tx.ID)
	require.Nil(t, err)
	require.Equal(t, model.TxStatusFailed, got.TxStatus)
	require.Equal(t, "InsufficientFunds", got.Reason)
}

func TestListByUser(t *testing.T) {
	s := txstore.New(nil)

	var ids []string
	for i := 0; i < 5; i++ {
		tx := newTx(42, model.TxStatusPending)
		require.Nil(t, s.Append(tx))
		ids = append(ids, tx.ID)
	}
	// interleave another owner
	require.Nil(t, s.Append(newTx(7, model.TxStatusPending)))

	txs := s.ListByUser(42)
	require.Len(t, txs, 5)
	for i, tx := range txs {
		require.Equal(t, ids[i], tx.ID)
		require.Equal(t, int64(42), tx.Owner)
	}

	require.Len(t, s.ListByUser(7), 1)
	require.Len(t, s.ListByUser(999), 0)
}

func TestListPendingBefore(t *testing.T) {
	s := txstore.New(nil)

	old := newTx(1, model.TxStatusPending)
	old.CreatedAt = time.Now().Add(-2 * time.Minute)
	require.Nil(t, s.Append(old))

	fresh := newTx(1, model.TxStatusPending)
	require.Nil(t, s.Append(fresh))

	done := newTx(1, model.TxStatusPending)
	done.CreatedAt = time.Now().Add(-2 * time.Minute)
	require.Nil(t, s.Append(done))
	_, err := s.MarkCompleted(done.ID)
	require.Nil(t, err)

	txs := s.ListPendingBefore(time.Now().Add(-time.Minute))
	require.Len(t, txs, 1)
	require.Equal(t, old.ID, txs[0].ID)
}

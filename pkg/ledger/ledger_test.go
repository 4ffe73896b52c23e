package ledger_test

import (
	"encoding/json"
	"os"
	"path"
	"strings"
	"sync"
	"testing"

	"cwex/pkg/asset"
	"cwex/pkg/ledger"

	"github.com/stretchr/testify/require"
)

func newTestLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	l, err := ledger.NewWithJournal("ledger_test", path.Join(t.TempDir(), "ledger.log"))
	require.Nil(t, err)
	return l
}

func TestCreditDebit(t *testing.T) {
	l := newTestLedger(t)

	err := l.Credit(1, asset.USD, 1000000, "OpeningGrant", "")
	require.Nil(t, err)
	require.Equal(t, asset.Units(1000000), l.Balance(1, asset.USD))

	err = l.Debit(1, asset.USD, 400000, "Exchange", "tx-1")
	require.Nil(t, err)
	require.Equal(t, asset.Units(600000), l.Balance(1, asset.USD))

	// other owners and assets are untouched
	require.Equal(t, asset.Units(0), l.Balance(1, asset.BTC))
	require.Equal(t, asset.Units(0), l.Balance(2, asset.USD))
}

func TestInvalidAmount(t *testing.T) {
	l := newTestLedger(t)

	require.Equal(t, ledger.ErrInvalidAmount, l.Credit(1, asset.USD, 0, "OpeningGrant", ""))
	require.Equal(t, ledger.ErrInvalidAmount, l.Credit(1, asset.USD, -5, "OpeningGrant", ""))
	require.Equal(t, ledger.ErrInvalidAmount, l.Debit(1, asset.USD, 0, "Exchange", ""))
	require.Equal(t, ledger.ErrInvalidAmount, l.Convert(1, asset.USD, 0, asset.BTC, 10, "tx-1"))
	require.Equal(t, ledger.ErrInvalidAmount, l.Convert(1, asset.USD, 10, asset.BTC, -1, "tx-1"))
}

func TestInsufficientFunds(t *testing.T) {
	l := newTestLedger(t)

	err := l.Credit(7, asset.BTC, 100, "OpeningGrant", "")
	require.Nil(t, err)

	err = l.Debit(7, asset.BTC, 101, "Exchange", "tx-1")
	require.Equal(t, ledger.ErrInsufficientFunds, err)
	require.Equal(t, asset.Units(100), l.Balance(7, asset.BTC))

	// debiting an account that never existed
	err = l.Debit(7, asset.ETH, 1, "Exchange", "tx-2")
	require.Equal(t, ledger.ErrInsufficientFunds, err)
}

func TestOverflow(t *testing.T) {
	l := newTestLedger(t)

	err := l.Credit(3, asset.USD, asset.MaxUnits, "OpeningGrant", "")
	require.Nil(t, err)

	err = l.Credit(3, asset.USD, 1, "OpeningGrant", "")
	require.Equal(t, ledger.ErrOverflow, err)
	require.Equal(t, asset.MaxUnits, l.Balance(3, asset.USD))
}

func TestConvert(t *testing.T) {
	l := newTestLedger(t)

	err := l.Credit(5, asset.USD, 1000000, "OpeningGrant", "")
	require.Nil(t, err)

	// 100.00 USD for 0.00160000 BTC
	err = l.Convert(5, asset.USD, 10000, asset.BTC, 160000, "tx-1")
	require.Nil(t, err)
	require.Equal(t, asset.Units(990000), l.Balance(5, asset.USD))
	require.Equal(t, asset.Units(160000), l.Balance(5, asset.BTC))

	// insufficient source leaves both sides untouched
	err = l.Convert(5, asset.BTC, 160001, asset.ETH, 1, "tx-2")
	require.Equal(t, ledger.ErrInsufficientFunds, err)
	require.Equal(t, asset.Units(160000), l.Balance(5, asset.BTC))
	require.Equal(t, asset.Units(0), l.Balance(5, asset.ETH))
}

func TestBalances(t *testing.T) {
	l := newTestLedger(t)

	require.Nil(t, l.Credit(9, asset.USD, 500, "OpeningGrant", ""))
	require.Nil(t, l.Credit(9, asset.BTC, 7, "Deposit", ""))
	require.Nil(t, l.Credit(9, asset.ETH, 3, "Deposit", ""))
	require.Nil(t, l.Debit(9, asset.ETH, 3, "Exchange", "tx-1"))

	bs := l.Balances(9)
	require.Equal(t, map[asset.Asset]asset.Units{
		asset.USD: 500,
		asset.BTC: 7,
	}, bs)
}

func TestJournal(t *testing.T) {
	dir := t.TempDir()
	jp := path.Join(dir, "ledger.log")

	l, err := ledger.NewWithJournal("ledger_test", jp)
	require.Nil(t, err)

	require.Nil(t, l.Credit(1, asset.USD, 1000, "OpeningGrant", ""))
	require.Nil(t, l.Convert(1, asset.USD, 400, asset.BTC, 9, "tx-1"))

	b, err := os.ReadFile(jp)
	require.Nil(t, err)

	var ll ledger.LedgerLog
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	require.Len(t, lines, 2)

	err = json.Unmarshal([]byte(lines[1]), &ll)
	require.Nil(t, err)
	require.Equal(t, int64(2), ll.LogID)
	require.Len(t, ll.BalanceLogs, 2)
	require.Equal(t, "Exchange", ll.BalanceLogs[0].Reason)
	require.Equal(t, "tx-1", ll.BalanceLogs[0].ReasonID)
	require.Equal(t, int64(-400), ll.BalanceLogs[0].UnitsChange)
	require.Equal(t, int64(600), ll.BalanceLogs[0].UnitsNew)
	require.Equal(t, int64(9), ll.BalanceLogs[1].UnitsChange)
	require.Equal(t, int64(1), ll.BalanceLogs[0].LogIndex)
	require.Equal(t, int64(2), ll.BalanceLogs[1].LogIndex)
}

func TestRecoverLogID(t *testing.T) {
	dir := t.TempDir()
	jp := path.Join(dir, "ledger.log")

	l, err := ledger.NewWithJournal("ledger_test", jp)
	require.Nil(t, err)
	require.Nil(t, l.Credit(1, asset.USD, 100, "OpeningGrant", ""))
	require.Nil(t, l.Credit(1, asset.USD, 100, "OpeningGrant", ""))
	require.Equal(t, int64(2), l.LogID)

	// a fresh worker picks up where the journal ends
	l2, err := ledger.NewWithJournal("ledger_test", jp)
	require.Nil(t, err)
	require.Equal(t, int64(2), l2.LogID)

	require.Nil(t, l2.Credit(1, asset.USD, 100, "OpeningGrant", ""))
	require.Equal(t, int64(3), l2.LogID)
}

func TestConcurrentMutations(t *testing.T) {
	l := newTestLedger(t)

	require.Nil(t, l.Credit(1, asset.USD, 100000, "OpeningGrant", ""))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				err := l.Debit(1, asset.USD, 10, "Exchange", "tx")
				if err != nil {
					return
				}
			}
		}()
	}
	wg.Wait()

	require.Equal(t, asset.Units(90000), l.Balance(1, asset.USD))
	require.Equal(t, int64(1001), l.LogID)
}

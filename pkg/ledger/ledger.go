// Package ledger keeps the per-user per-asset balances. Balances live in
// memory as fixed-point units, every mutation appends a line to the filedb
// journal, and a writer goroutine replays the journal into mysql. Mutations
// for one owner are serialized, a debit+credit pair of a conversion applies
// under a single lock so observers only ever see pre-state or post-state.
package ledger

import (
	"encoding/json"
	"errors"
	"path"
	"strings"
	"sync"
	"time"

	"cwex/pkg/asset"
	"cwex/pkg/config"
	"cwex/pkg/filedb"
	"cwex/pkg/xlog"
)

var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrOverflow          = errors.New("balance overflow")
	ErrAccountHalted     = errors.New("account halted")
)

var logger = xlog.GetLogger()

// Ledger is the balance worker
type Ledger struct {
	Name  string
	State string

	LogID      int64 // ID of the latest journal line
	SavedLogID int64 // ID already written to mysql

	mu       sync.Mutex // guards accounts map and owner lock map
	accounts map[int64]map[asset.Asset]*Account
	locks    map[int64]*sync.Mutex

	jmu sync.Mutex // serializes journal appends and LogID
	fdb *filedb.Filedb
}

// New returns a Ledger and recovers the latest journal position
func New(name string) (l *Ledger, err error) {
	dataDir := ""
	if config.Shared != nil {
		dataDir = config.Shared.DataDir
	}
	return NewWithJournal(name, path.Join(dataDir, "filedb", strings.ToLower(name)+".log"))
}

// NewWithJournal returns a Ledger backed by the given journal file
func NewWithJournal(name, journalPath string) (l *Ledger, err error) {
	if name == "" {
		name = "ledger"
	}

	l = &Ledger{
		Name:     name,
		accounts: map[int64]map[asset.Asset]*Account{},
		locks:    map[int64]*sync.Mutex{},
		State:    "Init",
	}

	err = l.SetJournalPath(journalPath)
	if err != nil {
		return nil, err
	}

	// read the last logID from the journal
	txt, err := l.fdb.ReadLastLine()
	if err != nil {
		return nil, err
	}
	if txt != "" {
		ll := LedgerLog{}
		err = json.Unmarshal([]byte(txt), &ll)
		if err != nil {
			return nil, err
		}
		l.LogID = ll.LogID
	}

	logger.Info("ledger worker created")
	return
}

// SetJournalPath points the ledger at a specific journal file
func (l *Ledger) SetJournalPath(p string) (err error) {
	fdb, err := filedb.New(p)
	if err != nil {
		return
	}
	fdb.ToMySQLHandler = l.ParseAndWriteLogs
	l.fdb = fdb
	return nil
}

// lockFor returns the mutex serializing mutations of one owner
func (l *Ledger) lockFor(owner int64) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.locks[owner]
	if !ok {
		m = &sync.Mutex{}
		l.locks[owner] = m
	}
	return m
}

// checkoutAccount retrieves an account, creating a zero one if missing.
// Callers must hold the owner lock.
func (l *Ledger) checkoutAccount(owner int64, a asset.Asset) *Account {
	l.mu.Lock()
	defer l.mu.Unlock()

	byAsset, ok := l.accounts[owner]
	if !ok {
		byAsset = map[asset.Asset]*Account{}
		l.accounts[owner] = byAsset
	}
	acc, ok := byAsset[a]
	if !ok {
		acc = new(Account)
		byAsset[a] = acc
	}
	return acc
}

// Balance returns the current balance of (owner, a)
func (l *Ledger) Balance(owner int64, a asset.Asset) asset.Units {
	lock := l.lockFor(owner)
	lock.Lock()
	defer lock.Unlock()

	return l.checkoutAccount(owner, a).Units
}

// Balances returns all non-zero balances of owner
func (l *Ledger) Balances(owner int64) map[asset.Asset]asset.Units {
	lock := l.lockFor(owner)
	lock.Lock()
	defer lock.Unlock()

	out := map[asset.Asset]asset.Units{}
	l.mu.Lock()
	byAsset := l.accounts[owner]
	l.mu.Unlock()
	for a, acc := range byAsset {
		if acc.Units != 0 {
			out[a] = acc.Units
		}
	}
	return out
}

// guard validates an account before mutation. A negative stored balance is
// structurally impossible, finding one halts the account for good.
func (l *Ledger) guard(owner int64, a asset.Asset, acc *Account) error {
	if acc.Halted {
		return ErrAccountHalted
	}
	if acc.Units < 0 {
		acc.Halted = true
		logger.Errorf("ledger integrity breach owner:%d, asset:%s, units:%d, account halted", owner, a, acc.Units)
		return ErrAccountHalted
	}
	return nil
}

// Credit atomically increments (owner, a) by units
func (l *Ledger) Credit(owner int64, a asset.Asset, units asset.Units, reason, reasonID string) (err error) {
	if units <= 0 {
		return ErrInvalidAmount
	}

	lock := l.lockFor(owner)
	lock.Lock()
	defer lock.Unlock()

	acc := l.checkoutAccount(owner, a)
	if err = l.guard(owner, a, acc); err != nil {
		return
	}
	if units > asset.MaxUnits-acc.Units {
		return ErrOverflow
	}

	acc.Units += units
	defer func() {
		if err != nil {
			acc.Units -= units
		}
	}()

	err = l.appendJournal([]BalanceLog{{
		Reason:      reason,
		ReasonID:    reasonID,
		Owner:       owner,
		Asset:       a.String(),
		UnitsChange: int64(units),
		UnitsNew:    int64(acc.Units),
	}})

	return
}

// Debit atomically decrements (owner, a) by units
func (l *Ledger) Debit(owner int64, a asset.Asset, units asset.Units, reason, reasonID string) (err error) {
	if units <= 0 {
		return ErrInvalidAmount
	}

	lock := l.lockFor(owner)
	lock.Lock()
	defer lock.Unlock()

	acc := l.checkoutAccount(owner, a)
	if err = l.guard(owner, a, acc); err != nil {
		return
	}
	if units > acc.Units {
		return ErrInsufficientFunds
	}

	acc.Units -= units
	defer func() {
		if err != nil {
			acc.Units += units
		}
	}()

	err = l.appendJournal([]BalanceLog{{
		Reason:      reason,
		ReasonID:    reasonID,
		Owner:       owner,
		Asset:       a.String(),
		UnitsChange: -int64(units),
		UnitsNew:    int64(acc.Units),
	}})

	return
}

// Convert applies the debit and credit of one conversion as a single unit
// under the owner lock. Either both balances move and one journal line is
// written, or neither balance changes.
func (l *Ledger) Convert(owner int64, from asset.Asset, fromUnits asset.Units, to asset.Asset, toUnits asset.Units, reasonID string) (err error) {
	if fromUnits <= 0 || toUnits <= 0 {
		return ErrInvalidAmount
	}

	lock := l.lockFor(owner)
	lock.Lock()
	defer lock.Unlock()

	fromAcc := l.checkoutAccount(owner, from)
	toAcc := l.checkoutAccount(owner, to)
	if err = l.guard(owner, from, fromAcc); err != nil {
		return
	}
	if err = l.guard(owner, to, toAcc); err != nil {
		return
	}

	if fromUnits > fromAcc.Units {
		return ErrInsufficientFunds
	}
	if toUnits > asset.MaxUnits-toAcc.Units {
		return ErrOverflow
	}

	fromAcc.Units -= fromUnits
	toAcc.Units += toUnits
	defer func() {
		if err != nil {
			fromAcc.Units += fromUnits
			toAcc.Units -= toUnits
		}
	}()

	err = l.appendJournal([]BalanceLog{
		{
			Reason:      "Exchange",
			ReasonID:    reasonID,
			Owner:       owner,
			Asset:       from.String(),
			UnitsChange: -int64(fromUnits),
			UnitsNew:    int64(fromAcc.Units),
		},
		{
			Reason:      "Exchange",
			ReasonID:    reasonID,
			Owner:       owner,
			Asset:       to.String(),
			UnitsChange: int64(toUnits),
			UnitsNew:    int64(toAcc.Units),
		},
	})

	return
}

// appendJournal writes one journal line carrying the given balance logs
func (l *Ledger) appendJournal(balances []BalanceLog) (err error) {
	l.jmu.Lock()
	defer l.jmu.Unlock()

	l.LogID++
	defer func() {
		if err != nil {
			l.LogID--
		}
	}()

	for i := range balances {
		balances[i].LogIndex = int64(i + 1)
	}

	ll := LedgerLog{
		LogID:       l.LogID,
		Ts:          time.Now().UnixNano(),
		BalanceLogs: balances,
	}

	b, err := json.Marshal(ll)
	if err != nil {
		return
	}

	err = l.fdb.WriteLine(string(b) + "\n")

	return
}

// Package txstore keeps the append-only record of exchange transactions.
// Records live in memory behind a btree ordered by (owner, seq) so per-user
// listings come back in insertion order, and are mirrored to mysql when a
// database is attached. Terminal records are never mutated again, a retry
// of a failed conversion gets a fresh id.
package txstore

import (
	"errors"
	"sync"
	"time"

	"cwex/pkg/model"
	"cwex/pkg/xlog"

	"github.com/google/btree"
	"gorm.io/gorm"
)

var (
	ErrNotFound   = errors.New("transaction not found")
	ErrTerminalTx = errors.New("transaction already terminal")
)

var logger = xlog.GetLogger()

// txItem indexes one transaction by (owner, seq)
type txItem struct {
	Owner int64
	Seq   int64
	Tx    *model.ExchangeTx
}

func (a txItem) Less(item btree.Item) bool {
	b := item.(txItem)
	if a.Owner != b.Owner {
		return a.Owner < b.Owner
	}
	return a.Seq < b.Seq
}

// Store is the transaction store
type Store struct {
	mu sync.RWMutex

	seq     int64
	byID    map[string]*model.ExchangeTx
	byOwner *btree.BTree

	db *gorm.DB
}

// New returns an empty Store. db is optional, when nil records stay in
// memory only.
func New(db *gorm.DB) *Store {
	return &Store{
		byID:    map[string]*model.ExchangeTx{},
		byOwner: btree.New(2),
		db:      db,
	}
}

// Load restores all transactions from mysql into memory
func (s *Store) Load() (err error) {
	if s.db == nil {
		return nil
	}

	var txs []model.ExchangeTx
	err = s.db.Model(model.ExchangeTx{}).Order("seq asc").Find(&txs).Error
	if err != nil {
		logger.Errorf("txstore Load failed with err:%s", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range txs {
		tx := &txs[i]
		s.byID[tx.ID] = tx
		s.byOwner.ReplaceOrInsert(txItem{Owner: tx.Owner, Seq: tx.Seq, Tx: tx})
		if tx.Seq > s.seq {
			s.seq = tx.Seq
		}
	}

	logger.Infof("txstore loaded %d transactions", len(txs))
	return nil
}

// Append records a new transaction and assigns its sequence number
func (s *Store) Append(tx *model.ExchangeTx) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[tx.ID]; ok {
		return errors.New("duplicate transaction id")
	}

	s.seq++
	tx.Seq = s.seq
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now()
	}

	s.byID[tx.ID] = tx
	s.byOwner.ReplaceOrInsert(txItem{Owner: tx.Owner, Seq: tx.Seq, Tx: tx})

	if s.db != nil {
		err = s.db.Create(tx).Error
		if err != nil {
			logger.Errorf("txstore Append persist failed with id:%s, err:%s", tx.ID, err)
			err = nil // the memory copy is authoritative, mysql catches up on the next mark
		}
	}

	return
}

// MarkCompleted moves a pending transaction to completed and returns the
// terminal record
func (s *Store) MarkCompleted(id string) (*model.ExchangeTx, error) {
	return s.markTerminal(id, model.TxStatusCompleted, "")
}

// MarkFailed moves a pending transaction to failed with a reason and
// returns the terminal record
func (s *Store) MarkFailed(id, reason string) (*model.ExchangeTx, error) {
	return s.markTerminal(id, model.TxStatusFailed, reason)
}

// markTerminal mutates the stored record under the lock only. Callers get a
// copy, the shared struct is never written outside the mutex.
func (s *Store) markTerminal(id, status, reason string) (out *model.ExchangeTx, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	if tx.TxStatus != model.TxStatusPending {
		return nil, ErrTerminalTx
	}

	now := time.Now()
	tx.TxStatus = status
	tx.Reason = reason
	tx.CompletedAt = &now

	if s.db != nil {
		err = s.db.Model(model.ExchangeTx{}).Where("id = ?", id).Updates(map[string]interface{}{
			"tx_status":    status,
			"reason":       reason,
			"completed_at": now,
		}).Error
		if err != nil {
			logger.Errorf("txstore markTerminal persist failed with id:%s, err:%s", id, err)
			err = nil
		}
	}

	cp := *tx
	return &cp, nil
}

// GetByID returns one transaction
func (s *Store) GetByID(id string) (tx *model.ExchangeTx, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}

	out := *tx
	return &out, nil
}

// ListByUser returns all transactions of owner in insertion order
func (s *Store) ListByUser(owner int64) (txs []*model.ExchangeTx) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	s.byOwner.AscendRange(txItem{Owner: owner}, txItem{Owner: owner + 1}, func(item btree.Item) bool {
		tx := *item.(txItem).Tx
		txs = append(txs, &tx)
		return true
	})

	return
}

// ListPendingBefore returns pending transactions created at or before cutoff
func (s *Store) ListPendingBefore(cutoff time.Time) (txs []*model.ExchangeTx) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, tx := range s.byID {
		if tx.TxStatus == model.TxStatusPending && !tx.CreatedAt.After(cutoff) {
			out := *tx
			txs = append(txs, &out)
		}
	}

	return
}

package ledger

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"cwex/pkg/asset"
	"cwex/pkg/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Run starts the ledger: wait for the writer to catch up with the journal,
// load balances from mysql, then accept mutations
func (l *Ledger) Run() (err error) {
	go l.StartWriter()

	l.State = "WaitForFiledb"
	err = l.WaitForFiledb()
	if err != nil {
		return
	}

	l.State = "LoadingAccounts"
	err = l.LoadAllAccounts()
	if err != nil {
		return
	}

	l.State = "Working"
	return nil
}

// StartWriter reads journal lines and writes them to mysql
func (l *Ledger) StartWriter() (err error) {
	round := 0
	for {
		round++
		logger.Infof("StartWriter round:%d started", round)
		err = l.FiledbToMySQL()
		if err != nil {
			logger.Errorf("StartWriter round:%d failed with err:%s", round, err)
		} else {
			logger.Infof("StartWriter round:%d done", round)
		}
		time.Sleep(time.Second)
	}
}

// WaitForFiledb blocks until everything already in the journal has been
// flushed to mysql, so balances loaded afterwards are current
func (l *Ledger) WaitForFiledb() (err error) {
	defer func() {
		if err != nil {
			logger.Errorf("WaitForFiledb failed with err:%s", err)
		}
	}()

	s, err := l.fdb.ReadLastLine()
	if err != nil {
		return
	}
	if s == "" {
		return nil
	}

	var ll LedgerLog
	err = json.Unmarshal([]byte(s), &ll)
	if err != nil {
		return
	}

	l.LogID = ll.LogID

	for {
		savedLogID, _ := l.LoadSavedLogID()
		if savedLogID >= ll.LogID {
			logger.Infof("WaitForFiledb done with savedLogID:%d, logID:%d", savedLogID, ll.LogID)
			return
		}
		ts := time.Second
		logger.Infof("WaitForFiledb sleep:%s with savedLogID:%d, logID:%d", ts, savedLogID, ll.LogID)
		time.Sleep(ts)
	}
}

// LoadSavedLogID reads the writer high-water mark from mysql
func (l *Ledger) LoadSavedLogID() (id int64, err error) {
	db := model.GetMySQL()

	var kv model.Lastkv
	err = db.Model(model.Lastkv{}).Where(model.Lastkv{
		App: strings.ToLower(l.Name),
		Key: model.LASTKV_K_SAVED_LOG_ID,
	}).Limit(1).Find(&kv).Error
	if err != nil {
		logger.Errorf("LoadSavedLogID failed with err:%s", err)
		return
	}
	id = kv.Val

	return
}

// LoadAllAccounts loads every balance row into memory
func (l *Ledger) LoadAllAccounts() (err error) {
	defer func() {
		if err != nil {
			logger.Errorf("LoadAllAccounts failed with err:%s", err)
		} else {
			logger.Infof("LoadAllAccounts done with logID:%d", l.LogID)
		}
	}()

	db := model.GetMySQL()

	var balances []model.Balance
	err = db.Model(model.Balance{}).Order("id asc").Find(&balances).Error
	if err != nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, bal := range balances {
		a, aerr := asset.Parse(bal.Asset)
		if aerr != nil {
			logger.Warningf("LoadAllAccounts skip unknown asset row id:%d, asset:%s", bal.ID, bal.Asset)
			continue
		}
		byAsset, ok := l.accounts[bal.Owner]
		if !ok {
			byAsset = map[asset.Asset]*Account{}
			l.accounts[bal.Owner] = byAsset
		}
		byAsset[a] = &Account{
			Units:  asset.Units(bal.Units),
			Halted: bal.Halted || bal.Units < 0,
		}
		if bal.Units < 0 {
			logger.Errorf("LoadAllAccounts found negative balance owner:%d, asset:%s, halting account", bal.Owner, bal.Asset)
		}
	}

	return
}

// FiledbToMySQL tails the journal and batches lines into mysql
func (l *Ledger) FiledbToMySQL() (err error) {
	ch := make(chan string, 1000)

	l.SavedLogID, err = l.LoadSavedLogID()
	if err != nil {
		return
	}

	go func() {
		terr := l.fdb.Tailf(ch)
		if terr != nil {
			close(ch)
		}
	}()

	err = l.fdb.ToMySQL(ch)

	return
}

// ParseAndWriteLogs parses journal lines and writes them to mysql
func (l *Ledger) ParseAndWriteLogs(ss []string) (err error) {
	latestLogID := int64(0)

	newSnapsByAsset := map[string][]model.BalanceSnap{}
	updateBalances := map[string]*model.Balance{} // "owner_asset" key

	// skip the whole batch when it is already flushed
	last := new(LedgerLog)
	err = json.Unmarshal([]byte(ss[len(ss)-1]), last)
	if err != nil {
		logger.Errorf("ParseAndWriteLogs failed with data:%s, err:%s", ss[len(ss)-1], err)
		return
	}
	if last.LogID <= l.SavedLogID {
		logger.Debugf("ParseAndWriteLogs skip latestLogID:%d <= savedLogID:%d", last.LogID, l.SavedLogID)
		return
	}

	for _, s := range ss {
		ll := new(LedgerLog)
		err = json.Unmarshal([]byte(s), ll)
		if err != nil {
			logger.Errorf("Unmarshal LedgerLog failed with data:%s, err:%s", s, err)
			return
		}

		if ll.LogID <= l.SavedLogID {
			latestLogID = ll.LogID
			continue
		}

		for _, bl := range ll.BalanceLogs {
			snap := model.BalanceSnap{
				LogID:       ll.LogID,
				LogIndex:    bl.LogIndex,
				Owner:       bl.Owner,
				UnitsChange: bl.UnitsChange,
				UnitsNew:    bl.UnitsNew,
				Reason:      bl.Reason,
				ReasonID:    bl.ReasonID,
			}
			newSnapsByAsset[bl.Asset] = append(newSnapsByAsset[bl.Asset], snap)

			updateBalances[balanceKey(bl.Owner, bl.Asset)] = &model.Balance{
				Owner: bl.Owner,
				Asset: bl.Asset,
				Units: bl.UnitsNew,
			}
		}

		latestLogID = ll.LogID
	}

	if len(updateBalances) == 0 {
		logger.Debugf("ParseAndWriteLogs skip because no balance logs with latestLogID:%d, savedLogID:%d", latestLogID, l.SavedLogID)
		return
	}

	db := model.GetMySQLSilence()
	err = db.Transaction(func(tx *gorm.DB) (err error) {
		// upsert the high-water mark
		err = model.UpsertLastkv(tx, strings.ToLower(l.Name), model.LASTKV_K_SAVED_LOG_ID, latestLogID)
		if err != nil {
			return
		}

		// create balance snaps per asset table
		for assetCode, snaps := range newSnapsByAsset {
			err = tx.Scopes(model.BalanceSnapTable(assetCode)).CreateInBatches(snaps, len(snaps)).Error
			if err != nil {
				return
			}
		}

		// upsert balances
		for _, bal := range updateBalances {
			err = tx.Model(model.Balance{}).
				Clauses(clause.OnConflict{
					Columns:   []clause.Column{{Name: "owner"}, {Name: "asset"}},
					DoUpdates: clause.AssignmentColumns([]string{"units"}),
				}).
				Create(bal).Error
			if err != nil {
				return
			}
		}

		return nil
	})

	if latestLogID > l.SavedLogID {
		l.SavedLogID = latestLogID
	}

	return
}

func balanceKey(owner int64, assetCode string) string {
	return strings.ToLower(assetCode) + "_" + strconv.FormatInt(owner, 10)
}

package exchange

import (
	"context"
	"time"
)

// Sweep fails every transaction that stayed pending past the grace period.
// Pendings this old mean the process died between append and settle, the
// ledger never moved for them so failing is safe.
func (e *Engine) Sweep() (n int) {
	cutoff := time.Now().Add(-e.Grace)
	for _, tx := range e.Txs.ListPendingBefore(cutoff) {
		done, err := e.Txs.MarkFailed(tx.ID, "Expired")
		if err != nil {
			// raced with a settle, leave it alone
			continue
		}

		if e.Pub != nil {
			perr := e.Pub.PublishTx(done)
			if perr != nil {
				logger.Errorf("sweep tx:%s publish failed with err:%s", done.ID, perr)
			}
		}

		logger.Warningf("sweep tx:%s expired with owner:%d, pending since:%s",
			tx.ID, tx.Owner, tx.CreatedAt.Format(time.RFC3339))
		n++
	}
	return
}

// StartSweeper runs the sweep loop until ctx is done
func (e *Engine) StartSweeper(ctx context.Context) {
	round := 0
	for {
		round++

		n := e.Sweep()
		if n > 0 {
			logger.Infof("StartSweeper round:%d swept %d transactions", round, n)
		}

		select {
		case <-ctx.Done():
			logger.Infof("StartSweeper stopped after round:%d", round)
			return
		case <-time.After(e.Grace / 2):
		}
	}
}

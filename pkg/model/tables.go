package model

import (
	"strings"

	"gorm.io/gorm"
)

// BalanceSnapTable generates a table name per asset, the journal grows fast
// enough that one table for all thirteen assets would be unwieldy
func BalanceSnapTable(assetCode string) func(tx *gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		return tx.Table(strings.ToLower(assetCode + "_balance_snaps"))
	}
}

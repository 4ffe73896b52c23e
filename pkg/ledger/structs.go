package ledger

import (
	"cwex/pkg/asset"
)

// Account is one (owner, asset) balance held in memory
type Account struct {
	Units  asset.Units
	Halted bool // set after an integrity breach, no further mutation
}

// LedgerLog is one journal line. A conversion carries two balance logs,
// a single credit or debit carries one.
type LedgerLog struct {
	LogID int64 `json:"logID"`
	Ts    int64 `json:"ts"`

	BalanceLogs []BalanceLog `json:"balances,omitempty"`
}

// BalanceLog records one balance mutation inside a journal line
type BalanceLog struct {
	LogIndex int64 `json:"logIndex"`

	Reason   string `json:"reason"`   // e.g. Exchange, OpeningGrant
	ReasonID string `json:"reasonID"` // e.g. exchange tx id

	Owner       int64  `json:"owner"`
	Asset       string `json:"asset"`
	UnitsChange int64  `json:"unitsChange"`
	UnitsNew    int64  `json:"unitsNew"`
}

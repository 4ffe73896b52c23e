package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExchangeTx model
// Append-only record of one conversion attempt. Terminal rows are never
// updated again.
type ExchangeTx struct {
	ID string `json:"id" gorm:"omitempty; primaryKey; type:varchar(36);"`

	Owner int64 `json:"owner" gorm:"omitempty; not null; default:0; index;"`
	Seq   int64 `json:"seq" gorm:"omitempty; not null; default:0; index;"` // insertion order per store

	// caller supplied correlation id, echoed on the published event
	RequestID string `json:"requestID" gorm:"omitempty; not null; default:''; type:varchar(64);"`

	FromAsset string `json:"fromAsset" gorm:"omitempty; not null; default:''; type:varchar(8);"`
	ToAsset   string `json:"toAsset" gorm:"omitempty; not null; default:''; type:varchar(8);"`
	FromUnits int64  `json:"fromUnits" gorm:"omitempty; not null; default:0;"`
	ToUnits   int64  `json:"toUnits" gorm:"omitempty; not null; default:0;"`

	Rate decimal.Decimal `json:"rate" gorm:"omitempty; not null; default:0; type:decimal(36,18);"`

	TxStatus    string     `json:"txStatus" gorm:"omitempty; not null; default:''; type:varchar(16); index;"`
	Reason      string     `json:"reason" gorm:"omitempty; not null; default:''; type:varchar(32);"`
	CompletedAt *time.Time `json:"completedAt" gorm:"omitempty;"`

	Model
}

const (
	TxStatusPending   = "pending"
	TxStatusCompleted = "completed"
	TxStatusFailed    = "failed"
)

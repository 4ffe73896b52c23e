package model

// BalanceSnap model, one row per ledger journal entry, partitioned by asset
type BalanceSnap struct {
	ID int64 `json:"id" gorm:"omitempty; primaryKey;"`

	LogID    int64 `json:"logID" gorm:"omitempty; not null; default:0; uniqueindex:idx_log_id_index"`
	LogIndex int64 `json:"logIndex" gorm:"omitempty; not null; default:0; uniqueindex:idx_log_id_index"`

	Owner int64 `json:"owner" gorm:"omitempty; not null; default:0; index;"`

	UnitsChange int64 `json:"unitsChange" gorm:"omitempty; not null; default:0;"`
	UnitsNew    int64 `json:"unitsNew" gorm:"omitempty; not null; default:0;"`

	Reason   string `json:"reason" gorm:"omitempty; not null; default:''; type:varchar(32);"`
	ReasonID string `json:"reasonID" gorm:"omitempty; not null; default:''; type:varchar(36);"` // e.g. exchange tx id

	Model
}

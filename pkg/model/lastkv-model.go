package model

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Lastkv model
//
// Used to record high-water marks per app. The ledger writer stores the
// last journal logID it has flushed to mysql here, the ingress stores the
// latest NATS message sequence.
type Lastkv struct {
	ID int64 `json:"id" gorm:"omitempty; primaryKey;"`

	App string `json:"app" gorm:"omitempty; not null; default:''; type:varchar(64); uniqueindex:idx_app_key;"` // e.g. ledger_btc
	Key string `json:"key" gorm:"omitempty; not null; default:''; type:varchar(64); uniqueindex:idx_app_key;"` // e.g. saved_log_id
	Val int64  `json:"val" gorm:"omitempty; not null; default:0;"`

	Model
}

const (
	LASTKV_K_NATS_SEQ     = "nats_seq"
	LASTKV_K_SAVED_LOG_ID = "saved_log_id"
)

// UpsertLastkv writes one high-water mark row
func UpsertLastkv(db *gorm.DB, app, key string, val int64) error {
	return db.Model(Lastkv{}).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "app"}, {Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"val"}),
		}).
		Create(&Lastkv{App: app, Key: key, Val: val}).Error
}

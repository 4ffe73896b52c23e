package model

// Address model
//
// Derived receive addresses are pure functions of (seed, asset, index), so
// this table is only a cache. Re-derivation must reproduce the stored value.
type Address struct {
	ID int64 `json:"id" gorm:"omitempty; primaryKey;"`

	Owner int64  `json:"owner" gorm:"omitempty; not null; default:0; uniqueindex:idx_a_owner_asset;"`
	Asset string `json:"asset" gorm:"omitempty; not null; default:''; type:varchar(8); uniqueindex:idx_a_owner_asset;"`
	Index int64  `json:"index" gorm:"omitempty; not null; default:0; column:idx;"`

	Address string `json:"address" gorm:"omitempty; not null; default:''; type:varchar(128); index;"`

	Model
}

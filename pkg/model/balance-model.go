package model

// Balance model
// One row per (owner, asset). Units is the balance scaled by the asset's
// decimal precision, never a float. Halted marks an account frozen after an
// integrity breach, no further mutation is accepted for it.
type Balance struct {
	ID int64 `json:"id" gorm:"omitempty; primaryKey;"`

	Owner int64  `json:"owner" gorm:"omitempty; not null; default:0; uniqueindex:idx_b_owner_asset;"`
	Asset string `json:"asset" gorm:"omitempty; not null; default:''; type:varchar(8); uniqueindex:idx_b_owner_asset;"`

	Units  int64 `json:"units" gorm:"omitempty; not null; default:0;"`
	Halted bool  `json:"halted" gorm:"omitempty; not null; type:tinyint(1); default:0;"`

	Model
}

package model

// Seed model
//
// One sealed seed per user, created atomically with the user row.
// Only the AES-GCM ciphertext ever touches the database, the raw seed
// stays inside pkg/seedvault.
type Seed struct {
	ID int64 `json:"id" gorm:"omitempty; primaryKey;"`

	Owner  int64  `json:"owner" gorm:"omitempty; not null; default:0; uniqueindex:idx_s_owner;"`
	Sealed []byte `json:"-" gorm:"omitempty; not null; type:varbinary(128);"`

	Model
}

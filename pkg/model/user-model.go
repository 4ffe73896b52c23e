package model

// User model
type User struct {
	ID int64 `json:"id" gorm:"omitempty; primaryKey;"`

	// Basic verification information
	Username string `json:"username" gorm:"omitempty; not null; type:varchar(48); unique;"`
	Email    string `json:"email" gorm:"omitempty; not null; type:varchar(64); default:'';"`
	Password string `json:"-" gorm:"omitempty; not null; type:varchar(128); default:'';"`

	Nickname string `json:"nickname" gorm:"omitempty; not null; type:varchar(64); default:'';"`

	Model
}

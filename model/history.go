package model

// VerificationHistory is an append-only audit row written each time a KYC
// verification is initiated. Rows are never updated or deleted.
type VerificationHistory struct {
	ID       int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Username string `gorm:"column:username;index;size:32;not null" json:"username"`
	Time     int64  `gorm:"column:time;not null" json:"time"` // unix seconds
}

func (VerificationHistory) TableName() string { return "idverifyhis" }

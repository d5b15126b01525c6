package model

// AuthmeAccount mirrors the externally owned AuthMe player table. This
// service only ever reads it: the existence of a row means the player
// already completed registration previously.
type AuthmeAccount struct {
	Username string `gorm:"column:username;primaryKey;size:32" json:"username"`
	Realname string `gorm:"column:realname;size:32;index" json:"realname"`
}

func (AuthmeAccount) TableName() string { return "authme" }

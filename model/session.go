package model

// Session is a login session issued by the external onboarding frontend.
// This service validates sessions but never creates them.
type Session struct {
	Session  string `gorm:"column:session;primaryKey;size:64" json:"session"`
	Username string `gorm:"column:username;size:32;not null" json:"username"`
	Status   int    `gorm:"column:status;not null" json:"status"` // 1 = active
	Expiry   int64  `gorm:"column:expiry;not null" json:"expiry"` // unix seconds
}

func (Session) TableName() string { return "sessions" }

// AIMemory maps a player name to the conversation-memory key used by the
// upstream chat-completion service.
type AIMemory struct {
	Name  string `gorm:"column:name;primaryKey;size:32" json:"name"`
	KeyID string `gorm:"column:keyid;size:64;not null" json:"keyid"`
}

func (AIMemory) TableName() string { return "aimemory" }

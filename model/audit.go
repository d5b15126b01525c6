package model

import (
	"time"

	"gorm.io/datatypes"
)

// RegistrationAudit records notable registration events: chain outcomes,
// flow decisions and KYC initiations.
type RegistrationAudit struct {
	ID         int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	TraceID    string         `gorm:"index:idx_regaudit_trace;size:36;not null" json:"trace_id"`
	Name       string         `gorm:"index:idx_regaudit_name;size:32" json:"name"`
	Action     string         `gorm:"size:64;not null" json:"action"`
	Detail     datatypes.JSON `json:"detail"`
	Error      string         `gorm:"type:text" json:"error"`
	IP         string         `gorm:"size:45" json:"ip"`
	DurationMs int            `json:"duration_ms"`
	CreatedAt  time.Time      `gorm:"index:idx_regaudit_created;autoCreateTime:milli" json:"created_at"`
}

func (RegistrationAudit) TableName() string { return "regaudit" }

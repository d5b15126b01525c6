package model

// FlowStatus tracks how far a registration flow has progressed.
//
// A flow is created as StatusNew the moment the account-ownership chain
// succeeds. The player must explicitly confirm the flow before later stages
// run; confirmation (performed by the onboarding frontend) moves it to
// StatusConfirmed. A StatusNew flow encountered during a second chain
// completion is a hard stop: no second row is created and the player is told
// to confirm the existing flow instead.
type FlowStatus int

const (
	StatusNew       FlowStatus = 0
	StatusConfirmed FlowStatus = 1
)

// RegistrationFlow is one per-player registration record, keyed by the
// verified Minecraft account name. The column names mirror the live schema:
// each stage field is prefixed with its stage number.
type RegistrationFlow struct {
	Name         string     `gorm:"column:name;primaryKey;size:32" json:"name"`
	MsVerify     *string    `gorm:"column:1_msverify;size:8" json:"ms_verify"`
	IDVerifyName *string    `gorm:"column:2_idverify_name;size:64" json:"id_verify_name"`
	IDVerifyID   *string    `gorm:"column:2_idverify_id;size:32" json:"id_verify_id"`
	SmsVerify    *string    `gorm:"column:3_smsverify;size:8" json:"sms_verify"`
	Status       FlowStatus `gorm:"column:status;not null" json:"status"`
}

func (RegistrationFlow) TableName() string { return "regflow" }

// IdentityVerified reports whether the KYC callback has populated the
// id-verify fields.
func (f *RegistrationFlow) IdentityVerified() bool {
	return f.IDVerifyName != nil
}

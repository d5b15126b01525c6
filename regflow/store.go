package regflow

import (
	"context"
	"errors"
	"time"

	"github.com/agathamc/regserver/config"
	"github.com/agathamc/regserver/db"
	"github.com/agathamc/regserver/model"
	"gorm.io/gorm"
)

// Store is the registration-flow persistence layer. All queries go through
// the resilient gateway; table names are composed from configuration because
// the flow tables and the AuthMe table may live in different databases on
// the same server.
type Store struct {
	gw           *db.Gateway
	flowTable    string
	historyTable string
	authmeTable  string
}

// NewStore creates a Store using the schema qualifiers from cfg.
func NewStore(gw *db.Gateway, cfg config.DatabaseConfig) *Store {
	return &Store{
		gw:           gw,
		flowTable:    qualify(cfg.FlowSchema, model.RegistrationFlow{}.TableName()),
		historyTable: qualify(cfg.FlowSchema, model.VerificationHistory{}.TableName()),
		authmeTable:  qualify(cfg.AuthmeSchema, model.AuthmeAccount{}.TableName()),
	}
}

func qualify(schema, table string) string {
	if schema == "" {
		return table
	}
	return schema + "." + table
}

// FindByName returns the flow for name, or nil when none exists.
func (s *Store) FindByName(ctx context.Context, name string) (*model.RegistrationFlow, error) {
	var flow model.RegistrationFlow
	err := s.gw.Do(ctx, func(tx *gorm.DB) error {
		return tx.Table(s.flowTable).Where("name = ?", name).Take(&flow).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &flow, nil
}

// Create inserts a brand-new flow: ownership proven, identity fields empty,
// status New. The primary key on name is the authoritative duplicate guard;
// a unique violation here means a concurrent chain completion won the race.
func (s *Store) Create(ctx context.Context, name string) error {
	ms := "1"
	flow := model.RegistrationFlow{
		Name:     name,
		MsVerify: &ms,
		Status:   model.StatusNew,
	}
	return s.gw.Do(ctx, func(tx *gorm.DB) error {
		return tx.Table(s.flowTable).Create(&flow).Error
	})
}

// IsIdentityVerified reports whether the KYC callback has populated the
// id-verify fields for name. A missing flow counts as not verified.
func (s *Store) IsIdentityVerified(ctx context.Context, name string) (bool, error) {
	flow, err := s.FindByName(ctx, name)
	if err != nil {
		return false, err
	}
	return flow != nil && flow.IdentityVerified(), nil
}

// AccountExists reports whether an AuthMe account already exists for name.
func (s *Store) AccountExists(ctx context.Context, name string) (bool, error) {
	var count int64
	err := s.gw.Do(ctx, func(tx *gorm.DB) error {
		return tx.Table(s.authmeTable).Where("realname = ?", name).Count(&count).Error
	})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// AppendHistory writes one append-only verification-history row.
func (s *Store) AppendHistory(ctx context.Context, name string) error {
	row := model.VerificationHistory{
		Username: name,
		Time:     time.Now().Unix(),
	}
	return s.gw.Do(ctx, func(tx *gorm.DB) error {
		return tx.Table(s.historyTable).Create(&row).Error
	})
}

// ListFlows returns flows ordered by name, for the admin surface.
func (s *Store) ListFlows(ctx context.Context, limit, offset int) ([]model.RegistrationFlow, error) {
	var flows []model.RegistrationFlow
	err := s.gw.Do(ctx, func(tx *gorm.DB) error {
		return tx.Table(s.flowTable).Order("name").Limit(limit).Offset(offset).Find(&flows).Error
	})
	return flows, err
}

// ListHistory returns the verification-history rows for name, newest first.
func (s *Store) ListHistory(ctx context.Context, name string) ([]model.VerificationHistory, error) {
	var rows []model.VerificationHistory
	err := s.gw.Do(ctx, func(tx *gorm.DB) error {
		return tx.Table(s.historyTable).Where("username = ?", name).Order("time DESC").Find(&rows).Error
	})
	return rows, err
}

package regflow

import (
	"context"
	"strings"

	"github.com/agathamc/regserver/model"
	"go.uber.org/zap"
)

// Outcome is the decision taken after the account-ownership chain succeeds.
type Outcome int

const (
	// OutcomeCreated: no prior account, no prior flow — a new flow row was
	// inserted and the player continues to identity verification.
	OutcomeCreated Outcome = iota
	// OutcomeAlreadyRegistered: an AuthMe account or a confirmed flow
	// already exists for the name.
	OutcomeAlreadyRegistered
	// OutcomeAwaitConfirmation: an unconfirmed flow already exists. Hard
	// stop — the player must confirm it; nothing is created or restarted.
	OutcomeAwaitConfirmation
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeAlreadyRegistered:
		return "already_registered"
	case OutcomeAwaitConfirmation:
		return "await_confirmation"
	default:
		return "unknown"
	}
}

// Service applies the flow-creation rules on top of the Store.
type Service struct {
	store  *Store
	logger *zap.Logger
}

// NewService creates a Service.
func NewService(store *Store, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Store returns the underlying store.
func (svc *Service) Store() *Store {
	return svc.store
}

// Decide maps the prior state for a name to an outcome. Transition rules:
//
//	prior flow StatusNew            → AwaitConfirmation (hard stop)
//	AuthMe account exists           → AlreadyRegistered
//	prior flow StatusConfirmed      → AlreadyRegistered
//	otherwise                       → Created (insert a new flow)
func Decide(accountExists bool, prior *model.RegistrationFlow) Outcome {
	if prior != nil && prior.Status == model.StatusNew {
		return OutcomeAwaitConfirmation
	}
	if accountExists {
		return OutcomeAlreadyRegistered
	}
	if prior != nil {
		return OutcomeAlreadyRegistered
	}
	return OutcomeCreated
}

// RecordOwnership runs the post-chain decision for a verified account name
// and, when the state is clean, creates the flow row. The check-then-insert
// sequence is not atomic; the unique key on name is the real duplicate
// guard, so a duplicate insert from a concurrent chain completion degrades
// to AwaitConfirmation.
func (svc *Service) RecordOwnership(ctx context.Context, name string) (Outcome, error) {
	prior, err := svc.store.FindByName(ctx, name)
	if err != nil {
		return 0, err
	}
	accountExists, err := svc.store.AccountExists(ctx, name)
	if err != nil {
		return 0, err
	}

	outcome := Decide(accountExists, prior)
	if outcome != OutcomeCreated {
		svc.logger.Info("registration flow not created",
			zap.String("name", name),
			zap.String("outcome", outcome.String()))
		return outcome, nil
	}

	if err := svc.store.Create(ctx, name); err != nil {
		if isUniqueViolation(err) {
			svc.logger.Warn("concurrent flow creation detected", zap.String("name", name))
			return OutcomeAwaitConfirmation, nil
		}
		return 0, err
	}
	svc.logger.Info("registration flow created", zap.String("name", name))
	return OutcomeCreated, nil
}

// isUniqueViolation detects duplicate-key errors from common database drivers.
func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") ||
		strings.Contains(msg, "duplicate") ||
		strings.Contains(msg, "already exists")
}

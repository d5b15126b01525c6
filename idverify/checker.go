package idverify

import (
	"context"

	"github.com/agathamc/regserver/regflow"
)

// CheckResult is the poll projection of a flow's identity-verification
// stage.
type CheckResult struct {
	Status   string `json:"status"` // pending | completed
	Realname string `json:"realname,omitempty"`
	ID       string `json:"id,omitempty"`
}

// Checker answers the client's completion polls. Pure projection, no
// mutation.
type Checker struct {
	store *regflow.Store
}

// NewChecker creates a Checker.
func NewChecker(store *regflow.Store) *Checker {
	return &Checker{store: store}
}

// Check returns pending until the external callback has populated the
// id-verify fields, then completed with the verified identity.
func (c *Checker) Check(ctx context.Context, name string) (*CheckResult, error) {
	flow, err := c.store.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if flow == nil || !flow.IdentityVerified() {
		return &CheckResult{Status: "pending"}, nil
	}
	res := &CheckResult{Status: "completed", Realname: *flow.IDVerifyName}
	if flow.IDVerifyID != nil {
		res.ID = *flow.IDVerifyID
	}
	return res, nil
}

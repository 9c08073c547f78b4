package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is the per-user ledger record. UserID is kept as a string so
// identifiers from any transport survive untouched, including ids wider
// than the platform's native integer type.
type Account struct {
	UserID             string
	Balance            decimal.Decimal
	ReferrerID         *string
	FirstTaskCompleted bool
	Pending            *PendingTask
	CooldownUntil      *time.Time
	RegistrationDate   time.Time
}

// PendingTask is the credential bound to a user between assignment and
// proof submission. At most one exists per account.
type PendingTask struct {
	Credential Credential
	AssignedAt time.Time
}

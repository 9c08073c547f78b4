package service

import (
	"context"
	"errors"
	"time"

	"taskreward_bot/internal/model"

	"github.com/shopspring/decimal"
)

var (
	ErrNoTaskAvailable     = errors.New("no task available")
	ErrAlreadyPending      = errors.New("a task is already pending for this user")
	ErrNoPendingTask       = errors.New("no pending task for this user")
	ErrRateLimited         = errors.New("task requests are rate limited for this user")
	ErrUnknownUser         = errors.New("unknown user")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

type Service struct {
	*AccountService
	*TaskService
	*ReferralService
	*AdminService
}

func NewService(accounts *AccountService, tasks *TaskService, referrals *ReferralService, admin *AdminService) *Service {
	return &Service{
		AccountService:  accounts,
		TaskService:     tasks,
		ReferralService: referrals,
		AdminService:    admin,
	}
}

// Notifier delivers a text message to a user. Implemented by the chat
// transport; delivery failures are reported, never fatal.
type Notifier interface {
	Notify(userID string, text string) error
}

type AccountRepository interface {
	EnsureAccount(ctx context.Context, userID string) (*model.Account, error)
	GetAccount(ctx context.Context, userID string) (*model.Account, error)
	SetReferrer(ctx context.Context, userID, referrerID string) error
}

type TaskRepository interface {
	EnsureAccount(ctx context.Context, userID string) (*model.Account, error)
	PopCredential(ctx context.Context) (*model.Credential, error)
	CountCredentials(ctx context.Context) (int, error)
	SetPendingTask(ctx context.Context, userID string, cred model.Credential, assignedAt time.Time) error
	ClearPendingTask(ctx context.Context, userID string) (*model.PendingTask, error)
	SetCooldown(ctx context.Context, userID string, until time.Time) error
	InsertProof(ctx context.Context, proof *model.Proof) error
	SweepExpiredTasks(ctx context.Context, cutoff time.Time) (int, error)
}

type AdminRepository interface {
	GetAccount(ctx context.Context, userID string) (*model.Account, error)
	UpdateBalance(ctx context.Context, userID string, delta decimal.Decimal) error
	CreditWithReferralBonus(ctx context.Context, userID string, reward, bonus decimal.Decimal) (bool, error)
	ListAccountIDs(ctx context.Context) ([]string, error)
	CountAccounts(ctx context.Context) (int, error)
	CountPendingTasks(ctx context.Context) (int, error)
	CountCredentials(ctx context.Context) (int, error)
	CountProofs(ctx context.Context) (int, error)
}

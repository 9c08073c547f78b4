package service

import (
	"context"
	"errors"
	"fmt"

	"taskreward_bot/internal/model"
	"taskreward_bot/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type AdminService struct {
	repo          AdminRepository
	notifier      Notifier
	taskReward    decimal.Decimal
	referralBonus decimal.Decimal
	allowNegative bool
	log           *zap.Logger
}

func NewAdminService(repo AdminRepository, notifier Notifier, taskReward, referralBonus decimal.Decimal, allowNegative bool, log *zap.Logger) *AdminService {
	return &AdminService{
		repo:          repo,
		notifier:      notifier,
		taskReward:    taskReward,
		referralBonus: referralBonus,
		allowNegative: allowNegative,
		log:           log,
	}
}

// Accept credits the task reward and, on the user's first accepted task,
// pays the one-time referral bonus to the referrer. Safe to call twice:
// the bonus is paid at most once per user.
func (s *AdminService) Accept(ctx context.Context, userID string) error {
	bonusPaid, err := s.repo.CreditWithReferralBonus(ctx, userID, s.taskReward, s.referralBonus)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUnknownUser
		}
		return fmt.Errorf("failed to credit account: %w", err)
	}

	if bonusPaid {
		s.log.Info("referral bonus paid", zap.String("referee", userID))
	}

	s.notify(userID, fmt.Sprintf("Task accepted, +%s$ credited to your balance.", s.taskReward.String()))
	return nil
}

// Reject resolves a submitted proof without crediting anything.
func (s *AdminService) Reject(ctx context.Context, userID string) error {
	_, err := s.repo.GetAccount(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUnknownUser
		}
		return fmt.Errorf("failed to get account: %w", err)
	}

	s.notify(userID, "Your task proof was rejected. Contact support if you believe this is a mistake.")
	return nil
}

// Pay debits amount from the user's balance, settling an off-system
// payout. When negative balances are disallowed by configuration, a debit
// past zero fails with ErrInsufficientBalance.
func (s *AdminService) Pay(ctx context.Context, userID string, amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}

	acc, err := s.repo.GetAccount(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUnknownUser
		}
		return fmt.Errorf("failed to get account: %w", err)
	}

	if !s.allowNegative && acc.Balance.LessThan(amount) {
		return ErrInsufficientBalance
	}

	err = s.repo.UpdateBalance(ctx, userID, amount.Neg())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUnknownUser
		}
		return fmt.Errorf("failed to debit account: %w", err)
	}

	s.notify(userID, fmt.Sprintf("%s$ has been sent to you.", amount.String()))
	return nil
}

// Broadcast delivers text to every known account. Delivery failures are
// counted, never fatal, and nothing is rolled back.
func (s *AdminService) Broadcast(ctx context.Context, text string) (sent, failed int, err error) {
	ids, err := s.repo.ListAccountIDs(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to list accounts: %w", err)
	}

	for _, id := range ids {
		if nErr := s.notifier.Notify(id, text); nErr != nil {
			s.log.Warn("broadcast delivery failed", zap.String("user_id", id), zap.Error(nErr))
			failed++
			continue
		}
		sent++
	}
	return sent, failed, nil
}

func (s *AdminService) Stats(ctx context.Context) (*model.Stats, error) {
	accounts, err := s.repo.CountAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count accounts: %w", err)
	}
	queueDepth, err := s.repo.CountCredentials(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count credentials: %w", err)
	}
	pending, err := s.repo.CountPendingTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count pending tasks: %w", err)
	}
	proofs, err := s.repo.CountProofs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count proofs: %w", err)
	}

	return &model.Stats{
		Accounts:     accounts,
		QueueDepth:   queueDepth,
		PendingTasks: pending,
		Proofs:       proofs,
	}, nil
}

func (s *AdminService) notify(userID, text string) {
	if err := s.notifier.Notify(userID, text); err != nil {
		s.log.Warn("notification delivery failed", zap.String("user_id", userID), zap.Error(err))
	}
}

package service

import (
	"context"
	"errors"
	"fmt"

	"taskreward_bot/internal/model"
	"taskreward_bot/internal/repository"

	"github.com/shopspring/decimal"
)

type AccountService struct {
	repo AccountRepository
}

func NewAccountService(repo AccountRepository) *AccountService {
	return &AccountService{
		repo: repo,
	}
}

// Ensure creates the account on first contact and returns it. Idempotent.
func (s *AccountService) Ensure(ctx context.Context, userID string) (*model.Account, error) {
	acc, err := s.repo.EnsureAccount(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure account: %w", err)
	}
	return acc, nil
}

func (s *AccountService) GetBalance(ctx context.Context, userID string) (decimal.Decimal, error) {
	acc, err := s.repo.GetAccount(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return decimal.Zero, ErrUnknownUser
		}
		return decimal.Zero, fmt.Errorf("failed to get account: %w", err)
	}
	return acc.Balance, nil
}

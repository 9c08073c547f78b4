package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"taskreward_bot/internal/model"
	"taskreward_bot/internal/repository"

	"github.com/google/uuid"
)

type TaskService struct {
	repo           TaskRepository
	cooldown       time.Duration
	pendingTimeout time.Duration
}

func NewTaskService(repo TaskRepository, cooldown, pendingTimeout time.Duration) *TaskService {
	return &TaskService{
		repo:           repo,
		cooldown:       cooldown,
		pendingTimeout: pendingTimeout,
	}
}

// Assign pops the next credential and binds it to the user. Exactly one of
// the outcome errors is returned when no credential is handed out; on
// success the user moves to the pending state and a request cooldown
// starts.
func (s *TaskService) Assign(ctx context.Context, userID string) (*model.Credential, error) {
	acc, err := s.repo.EnsureAccount(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure account: %w", err)
	}

	now := time.Now().UTC()
	if acc.CooldownUntil != nil && now.Before(*acc.CooldownUntil) {
		return nil, ErrRateLimited
	}
	if acc.Pending != nil {
		return nil, ErrAlreadyPending
	}

	cred, err := s.repo.PopCredential(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrQueueEmpty) {
			return nil, ErrNoTaskAvailable
		}
		return nil, fmt.Errorf("failed to pop credential: %w", err)
	}

	err = s.repo.SetPendingTask(ctx, userID, *cred, now)
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyPending) {
			// Lost the race against a concurrent assign for the same
			// user. The popped credential stays consumed; issuance is
			// at-most-once, never duplicated.
			return nil, ErrAlreadyPending
		}
		return nil, fmt.Errorf("failed to set pending task: %w", err)
	}

	if s.cooldown > 0 {
		err = s.repo.SetCooldown(ctx, userID, now.Add(s.cooldown))
		if err != nil {
			return nil, fmt.Errorf("failed to set cooldown: %w", err)
		}
	}

	return cred, nil
}

// SubmitProof archives proofText against the user's pending credential and
// clears the pending state. Free text from a user with nothing pending is
// not proof; callers get ErrNoPendingTask and must treat the input as
// unrecognized.
func (s *TaskService) SubmitProof(ctx context.Context, userID, proofText string) (*model.Proof, error) {
	pending, err := s.repo.ClearPendingTask(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNoPendingTask) || errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNoPendingTask
		}
		return nil, fmt.Errorf("failed to clear pending task: %w", err)
	}

	proof := &model.Proof{
		ID:          uuid.New(),
		UserID:      userID,
		Credential:  pending.Credential,
		ProofText:   proofText,
		SubmittedAt: time.Now().UTC(),
	}

	err = s.repo.InsertProof(ctx, proof)
	if err != nil {
		return nil, fmt.Errorf("failed to archive proof: %w", err)
	}

	return proof, nil
}

// SweepExpired dead-letters every pending task older than the configured
// timeout. Returns the number of tasks swept.
func (s *TaskService) SweepExpired(ctx context.Context) (int, error) {
	if s.pendingTimeout <= 0 {
		return 0, nil
	}

	cutoff := time.Now().UTC().Add(-s.pendingTimeout)
	swept, err := s.repo.SweepExpiredTasks(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep expired tasks: %w", err)
	}
	return swept, nil
}

func (s *TaskService) QueueDepth(ctx context.Context) (int, error) {
	n, err := s.repo.CountCredentials(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count credentials: %w", err)
	}
	return n, nil
}

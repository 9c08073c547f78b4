package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"taskreward_bot/internal/model"
	"taskreward_bot/internal/repository"

	"github.com/shopspring/decimal"
)

// fakeRepo is an in-memory stand-in for the Postgres repository with the
// same error semantics, used for end-to-end flows where mock expectations
// would obscure the behavior under test.
type fakeRepo struct {
	mu       sync.Mutex
	accounts map[string]*fakeAccount
	queue    []model.Credential
	proofs   []model.Proof
	dead     []model.DeadLetter
}

type fakeAccount struct {
	balance    decimal.Decimal
	referrer   *string
	firstDone  bool
	pending    *model.PendingTask
	cooldown   *time.Time
	registered time.Time
}

func newFakeRepo(queue ...model.Credential) *fakeRepo {
	return &fakeRepo{
		accounts: make(map[string]*fakeAccount),
		queue:    queue,
	}
}

func (f *fakeRepo) snapshot(userID string, acc *fakeAccount) *model.Account {
	m := &model.Account{
		UserID:             userID,
		Balance:            acc.balance,
		ReferrerID:         acc.referrer,
		FirstTaskCompleted: acc.firstDone,
		CooldownUntil:      acc.cooldown,
		RegistrationDate:   acc.registered,
	}
	if acc.pending != nil {
		p := *acc.pending
		m.Pending = &p
	}
	return m
}

func (f *fakeRepo) EnsureAccount(_ context.Context, userID string) (*model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	acc, ok := f.accounts[userID]
	if !ok {
		acc = &fakeAccount{balance: decimal.Zero, registered: time.Now().UTC()}
		f.accounts[userID] = acc
	}
	return f.snapshot(userID, acc), nil
}

func (f *fakeRepo) GetAccount(_ context.Context, userID string) (*model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	acc, ok := f.accounts[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return f.snapshot(userID, acc), nil
}

func (f *fakeRepo) SetReferrer(_ context.Context, userID, referrerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	acc, ok := f.accounts[userID]
	if !ok {
		return repository.ErrNotFound
	}
	if acc.referrer == nil {
		acc.referrer = &referrerID
	}
	return nil
}

func (f *fakeRepo) PopCredential(_ context.Context) (*model.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queue) == 0 {
		return nil, repository.ErrQueueEmpty
	}
	cred := f.queue[0]
	f.queue = f.queue[1:]
	return &cred, nil
}

func (f *fakeRepo) CountCredentials(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue), nil
}

func (f *fakeRepo) SetPendingTask(_ context.Context, userID string, cred model.Credential, assignedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	acc, ok := f.accounts[userID]
	if !ok {
		return repository.ErrNotFound
	}
	if acc.pending != nil {
		return repository.ErrAlreadyPending
	}
	acc.pending = &model.PendingTask{Credential: cred, AssignedAt: assignedAt}
	return nil
}

func (f *fakeRepo) ClearPendingTask(_ context.Context, userID string) (*model.PendingTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	acc, ok := f.accounts[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if acc.pending == nil {
		return nil, repository.ErrNoPendingTask
	}
	pending := acc.pending
	acc.pending = nil
	return pending, nil
}

func (f *fakeRepo) SetCooldown(_ context.Context, userID string, until time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	acc, ok := f.accounts[userID]
	if !ok {
		return repository.ErrNotFound
	}
	acc.cooldown = &until
	return nil
}

func (f *fakeRepo) InsertProof(_ context.Context, proof *model.Proof) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.proofs = append(f.proofs, *proof)
	return nil
}

func (f *fakeRepo) SweepExpiredTasks(_ context.Context, cutoff time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	swept := 0
	now := time.Now().UTC()
	for userID, acc := range f.accounts {
		if acc.pending == nil || !acc.pending.AssignedAt.Before(cutoff) {
			continue
		}
		f.dead = append(f.dead, model.DeadLetter{
			UserID:     userID,
			Credential: acc.pending.Credential,
			AssignedAt: acc.pending.AssignedAt,
			ExpiredAt:  now,
		})
		acc.pending = nil
		swept++
	}
	return swept, nil
}

func (f *fakeRepo) UpdateBalance(_ context.Context, userID string, delta decimal.Decimal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	acc, ok := f.accounts[userID]
	if !ok {
		return repository.ErrNotFound
	}
	acc.balance = acc.balance.Add(delta)
	return nil
}

func (f *fakeRepo) CreditWithReferralBonus(_ context.Context, userID string, reward, bonus decimal.Decimal) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	acc, ok := f.accounts[userID]
	if !ok {
		return false, repository.ErrNotFound
	}
	acc.balance = acc.balance.Add(reward)

	bonusPaid := false
	if !acc.firstDone && acc.referrer != nil {
		if ref, ok := f.accounts[*acc.referrer]; ok {
			ref.balance = ref.balance.Add(bonus)
			bonusPaid = true
		}
	}
	acc.firstDone = true
	return bonusPaid, nil
}

func (f *fakeRepo) ListAccountIDs(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.accounts))
	for id := range f.accounts {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeRepo) CountAccounts(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.accounts), nil
}

func (f *fakeRepo) CountPendingTasks(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, acc := range f.accounts {
		if acc.pending != nil {
			n++
		}
	}
	return n, nil
}

func (f *fakeRepo) CountProofs(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.proofs), nil
}

// recordingNotifier collects deliveries instead of sending them.
type recordingNotifier struct {
	mu       sync.Mutex
	messages map[string][]string
	failFor  map[string]bool
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{
		messages: make(map[string][]string),
		failFor:  make(map[string]bool),
	}
}

func (n *recordingNotifier) Notify(userID string, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failFor[userID] {
		return errDeliveryFailed
	}
	n.messages[userID] = append(n.messages[userID], text)
	return nil
}

var errDeliveryFailed = errors.New("delivery failed")

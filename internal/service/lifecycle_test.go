package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"taskreward_bot/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	repo     *fakeRepo
	notifier *recordingNotifier
	svc      *Service
}

func newFixture(cooldown, pendingTimeout time.Duration, allowNegative bool, queue ...model.Credential) *fixture {
	repo := newFakeRepo(queue...)
	notifier := newRecordingNotifier()
	svc := NewService(
		NewAccountService(repo),
		NewTaskService(repo, cooldown, pendingTimeout),
		NewReferralService(repo),
		NewAdminService(repo, notifier,
			decimal.RequireFromString("0.05"),
			decimal.RequireFromString("0.02"),
			allowNegative,
			zap.NewNop()),
	)
	return &fixture{repo: repo, notifier: notifier, svc: svc}
}

func cred(email string) model.Credential {
	return model.Credential{FirstName: "A", LastName: "B", Email: email, Password: "pw"}
}

func TestTaskFlow_AssignSubmitAccept(t *testing.T) {
	ctx := context.Background()
	f := newFixture(0, 0, true, cred("a@x.com"))

	// U1 drains the single credential.
	got, err := f.svc.Assign(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", got.Email)

	// U2 finds the queue empty.
	_, err = f.svc.Assign(ctx, "u2")
	assert.ErrorIs(t, err, ErrNoTaskAvailable)

	// A second request from U1 hits the single-pending rule.
	_, err = f.svc.Assign(ctx, "u1")
	assert.ErrorIs(t, err, ErrAlreadyPending)

	// Proof clears the pending state and lands in the audit log.
	proof, err := f.svc.SubmitProof(ctx, "u1", "done")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", proof.Credential.Email)
	require.Len(t, f.repo.proofs, 1)
	assert.Equal(t, "done", f.repo.proofs[0].ProofText)

	acc, err := f.svc.Ensure(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, acc.Pending)

	// Acceptance credits the reward.
	require.NoError(t, f.svc.Accept(ctx, "u1"))
	balance, err := f.svc.GetBalance(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("0.05")), balance.String())
}

func TestTaskFlow_ProofWithoutPendingLeavesNoAuditEntry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(0, 0, true)

	_, err := f.svc.Ensure(ctx, "u1")
	require.NoError(t, err)

	_, err = f.svc.SubmitProof(ctx, "u1", "random chatter")
	assert.ErrorIs(t, err, ErrNoPendingTask)
	assert.Empty(t, f.repo.proofs)
}

func TestTaskFlow_CooldownBetweenRequests(t *testing.T) {
	ctx := context.Background()
	f := newFixture(time.Minute, 0, true, cred("a@x.com"), cred("b@x.com"))

	_, err := f.svc.Assign(ctx, "u1")
	require.NoError(t, err)

	_, err = f.svc.SubmitProof(ctx, "u1", "done")
	require.NoError(t, err)

	// Pending is clear, but the cooldown from the first assign still holds.
	_, err = f.svc.Assign(ctx, "u1")
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestReferralFlow_BonusPaidExactlyOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(0, 0, true, cred("a@x.com"), cred("b@x.com"))

	_, err := f.svc.Ensure(ctx, "10")
	require.NoError(t, err)

	// User 30 arrives through user 10's link.
	_, err = f.svc.Ensure(ctx, "30")
	require.NoError(t, err)
	require.NoError(t, f.svc.Attribute(ctx, "30", f.svc.LinkSeed("10")))

	_, err = f.svc.Assign(ctx, "30")
	require.NoError(t, err)
	_, err = f.svc.SubmitProof(ctx, "30", "done")
	require.NoError(t, err)

	// A double accept must still pay the bonus once.
	require.NoError(t, f.svc.Accept(ctx, "30"))
	require.NoError(t, f.svc.Accept(ctx, "30"))

	referee, err := f.svc.GetBalance(ctx, "30")
	require.NoError(t, err)
	assert.True(t, referee.Equal(decimal.RequireFromString("0.10")), referee.String())

	referrer, err := f.svc.GetBalance(ctx, "10")
	require.NoError(t, err)
	assert.True(t, referrer.Equal(decimal.RequireFromString("0.02")), referrer.String())

	// A later task from the referee pays no further bonus.
	_, err = f.svc.Assign(ctx, "30")
	require.NoError(t, err)
	_, err = f.svc.SubmitProof(ctx, "30", "done again")
	require.NoError(t, err)
	require.NoError(t, f.svc.Accept(ctx, "30"))

	referrer, err = f.svc.GetBalance(ctx, "10")
	require.NoError(t, err)
	assert.True(t, referrer.Equal(decimal.RequireFromString("0.02")), referrer.String())
}

func TestReferralFlow_FirstWriteWins(t *testing.T) {
	ctx := context.Background()
	f := newFixture(0, 0, true)

	for _, id := range []string{"1", "2", "3"} {
		_, err := f.svc.Ensure(ctx, id)
		require.NoError(t, err)
	}

	require.NoError(t, f.svc.Attribute(ctx, "3", "ref1"))
	require.NoError(t, f.svc.Attribute(ctx, "3", "ref2"))

	got, err := f.svc.Ensure(ctx, "3")
	require.NoError(t, err)
	require.NotNil(t, got.ReferrerID)
	assert.Equal(t, "1", *got.ReferrerID)
}

func TestReferralFlow_SelfReferralIgnored(t *testing.T) {
	ctx := context.Background()
	f := newFixture(0, 0, true)

	_, err := f.svc.Ensure(ctx, "5")
	require.NoError(t, err)
	require.NoError(t, f.svc.Attribute(ctx, "5", "ref5"))

	acc, err := f.svc.Ensure(ctx, "5")
	require.NoError(t, err)
	assert.Nil(t, acc.ReferrerID)
}

func TestPayout_CanDriveBalanceNegative(t *testing.T) {
	ctx := context.Background()
	f := newFixture(0, 0, true, cred("a@x.com"))

	_, err := f.svc.Assign(ctx, "u1")
	require.NoError(t, err)
	_, err = f.svc.SubmitProof(ctx, "u1", "done")
	require.NoError(t, err)
	require.NoError(t, f.svc.Accept(ctx, "u1"))

	require.NoError(t, f.svc.Pay(ctx, "u1", decimal.RequireFromString("1.00")))

	balance, err := f.svc.GetBalance(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("-0.95")), balance.String())
}

func TestConcurrentAssigns_SingleCredentialIssuedOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(0, 0, true, cred("only@x.com"))

	const workers = 16
	var wg sync.WaitGroup
	results := make(chan error, workers)

	for i := 0; i < workers; i++ {
		id := string(rune('a' + i))
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			_, err := f.svc.Assign(ctx, userID)
			results <- err
		}(id)
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ErrNoTaskAvailable)
		}
	}
	assert.Equal(t, 1, succeeded)
}

func TestConcurrentAccepts_BonusStillPaidOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(0, 0, true, cred("a@x.com"))

	_, err := f.svc.Ensure(ctx, "1")
	require.NoError(t, err)
	_, err = f.svc.Ensure(ctx, "2")
	require.NoError(t, err)
	require.NoError(t, f.svc.Attribute(ctx, "2", "ref1"))

	_, err = f.svc.Assign(ctx, "2")
	require.NoError(t, err)
	_, err = f.svc.SubmitProof(ctx, "2", "done")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = f.svc.Accept(ctx, "2")
		}()
	}
	wg.Wait()

	referrer, err := f.svc.GetBalance(ctx, "1")
	require.NoError(t, err)
	assert.True(t, referrer.Equal(decimal.RequireFromString("0.02")), referrer.String())
}

func TestSweep_ExpiredTaskDeadLettered(t *testing.T) {
	ctx := context.Background()
	f := newFixture(0, time.Nanosecond, true, cred("a@x.com"))

	_, err := f.svc.Assign(ctx, "u1")
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	swept, err := f.svc.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	require.Len(t, f.repo.dead, 1)
	assert.Equal(t, "a@x.com", f.repo.dead[0].Credential.Email)

	// The credential is gone for good, not back in the queue.
	_, err = f.svc.Assign(ctx, "u1")
	assert.ErrorIs(t, err, ErrNoTaskAvailable)
}

func TestBroadcast_CountsFailuresWithoutAborting(t *testing.T) {
	ctx := context.Background()
	f := newFixture(0, 0, true)

	for _, id := range []string{"1", "2", "3", "4"} {
		_, err := f.svc.Ensure(ctx, id)
		require.NoError(t, err)
	}
	f.notifier.failFor["3"] = true

	sent, failed, err := f.svc.Broadcast(ctx, "maintenance tonight")
	require.NoError(t, err)
	assert.Equal(t, 3, sent)
	assert.Equal(t, 1, failed)
}

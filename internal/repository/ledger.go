package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"taskreward_bot/internal/model"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

type account struct {
	UserID             string          `db:"user_id"`
	Balance            decimal.Decimal `db:"balance"`
	ReferrerID         *string         `db:"referrer_id"`
	FirstTaskCompleted bool            `db:"first_task_completed"`
	PendingFirstName   *string         `db:"pending_first_name"`
	PendingLastName    *string         `db:"pending_last_name"`
	PendingEmail       *string         `db:"pending_email"`
	PendingPassword    *string         `db:"pending_password"`
	PendingAssignedAt  *time.Time      `db:"pending_assigned_at"`
	CooldownUntil      *time.Time      `db:"cooldown_until"`
	RegistrationDate   time.Time       `db:"registration_date"`
}

func (a *account) toModel() *model.Account {
	m := &model.Account{
		UserID:             a.UserID,
		Balance:            a.Balance,
		ReferrerID:         a.ReferrerID,
		FirstTaskCompleted: a.FirstTaskCompleted,
		CooldownUntil:      a.CooldownUntil,
		RegistrationDate:   a.RegistrationDate,
	}
	if a.PendingEmail != nil {
		m.Pending = &model.PendingTask{
			Credential: model.Credential{
				FirstName: *a.PendingFirstName,
				LastName:  *a.PendingLastName,
				Email:     *a.PendingEmail,
				Password:  *a.PendingPassword,
			},
			AssignedAt: *a.PendingAssignedAt,
		}
	}
	return m
}

// EnsureAccount creates a zero-balance account for userID if none exists
// and returns the account either way.
func (r *Repository) EnsureAccount(ctx context.Context, userID string) (*model.Account, error) {
	query, args, err := squirrel.
		Insert("accounts").
		SetMap(map[string]interface{}{
			"user_id":              userID,
			"balance":              decimal.Zero,
			"first_task_completed": false,
			"registration_date":    time.Now().UTC(),
		}).
		Suffix("ON CONFLICT (user_id) DO NOTHING").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build account insert query: %w", err)
	}

	_, err = r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to insert account: %w", err)
	}

	return r.GetAccount(ctx, userID)
}

func (r *Repository) GetAccount(ctx context.Context, userID string) (*model.Account, error) {
	var acc account
	query, args, err := squirrel.
		Select("*").
		From("accounts").
		Where(squirrel.Eq{"user_id": userID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	err = r.db.GetContext(ctx, &acc, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return acc.toModel(), nil
}

func (r *Repository) getAccountWithTx(ctx context.Context, tx *sqlx.Tx, userID string) (*account, error) {
	var acc account
	query, args, err := squirrel.
		Select("*").
		From("accounts").
		Where(squirrel.Eq{"user_id": userID}).
		Suffix("FOR UPDATE").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	err = tx.GetContext(ctx, &acc, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &acc, nil
}

// UpdateBalance applies a signed delta to the account balance. The delta is
// the only mutation path for money besides CreditWithReferralBonus.
func (r *Repository) UpdateBalance(ctx context.Context, userID string, delta decimal.Decimal) error {
	query, args, err := squirrel.
		Update("accounts").
		Set("balance", squirrel.Expr("balance + ?", delta)).
		Where(squirrel.Eq{"user_id": userID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetReferrer records a referrer exactly once. A second call for the same
// account is a silent no-op; first write wins at the row level.
func (r *Repository) SetReferrer(ctx context.Context, userID, referrerID string) error {
	query, args, err := squirrel.
		Update("accounts").
		Set("referrer_id", referrerID).
		Where(squirrel.Eq{"user_id": userID}).
		Where("referrer_id IS NULL").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to set referrer: %w", err)
	}
	return nil
}

// SetPendingTask binds a credential to the account. Fails with
// ErrAlreadyPending if a pending task exists; never overwrites.
func (r *Repository) SetPendingTask(ctx context.Context, userID string, cred model.Credential, assignedAt time.Time) error {
	return r.Transaction(ctx, func(tx *sqlx.Tx) error {
		acc, err := r.getAccountWithTx(ctx, tx, userID)
		if err != nil {
			return err
		}
		if acc.PendingEmail != nil {
			return ErrAlreadyPending
		}

		query, args, err := squirrel.
			Update("accounts").
			SetMap(map[string]interface{}{
				"pending_first_name":  cred.FirstName,
				"pending_last_name":   cred.LastName,
				"pending_email":       cred.Email,
				"pending_password":    cred.Password,
				"pending_assigned_at": assignedAt,
			}).
			Where(squirrel.Eq{"user_id": userID}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to set pending task: %w", err)
		}
		return nil
	})
}

// ClearPendingTask removes the pending binding and returns it for archival.
// Fails with ErrNoPendingTask when nothing is pending.
func (r *Repository) ClearPendingTask(ctx context.Context, userID string) (*model.PendingTask, error) {
	var pending *model.PendingTask
	err := r.Transaction(ctx, func(tx *sqlx.Tx) error {
		acc, err := r.getAccountWithTx(ctx, tx, userID)
		if err != nil {
			return err
		}
		if acc.PendingEmail == nil {
			return ErrNoPendingTask
		}
		pending = acc.toModel().Pending

		return clearPendingWithTx(ctx, tx, userID)
	})
	if err != nil {
		return nil, err
	}
	return pending, nil
}

func clearPendingWithTx(ctx context.Context, tx *sqlx.Tx, userID string) error {
	query, args, err := squirrel.
		Update("accounts").
		SetMap(map[string]interface{}{
			"pending_first_name":  nil,
			"pending_last_name":   nil,
			"pending_email":       nil,
			"pending_password":    nil,
			"pending_assigned_at": nil,
		}).
		Where(squirrel.Eq{"user_id": userID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to clear pending task: %w", err)
	}
	return nil
}

func (r *Repository) SetCooldown(ctx context.Context, userID string, until time.Time) error {
	query, args, err := squirrel.
		Update("accounts").
		Set("cooldown_until", until).
		Where(squirrel.Eq{"user_id": userID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to set cooldown: %w", err)
	}
	return nil
}

// CreditWithReferralBonus credits reward to the account and, when this is
// the account's first completed task, flips the completion flag and credits
// bonus to the referrer. The flag check-and-set and both credits run in one
// transaction, so concurrent calls cannot pay the bonus twice.
func (r *Repository) CreditWithReferralBonus(ctx context.Context, userID string, reward, bonus decimal.Decimal) (bool, error) {
	bonusPaid := false
	err := r.Transaction(ctx, func(tx *sqlx.Tx) error {
		acc, err := r.getAccountWithTx(ctx, tx, userID)
		if err != nil {
			return err
		}

		query, args, err := squirrel.
			Update("accounts").
			Set("balance", squirrel.Expr("balance + ?", reward)).
			Set("first_task_completed", true).
			Where(squirrel.Eq{"user_id": userID}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to credit account: %w", err)
		}

		if acc.FirstTaskCompleted || acc.ReferrerID == nil {
			return nil
		}

		bonusQuery, bonusArgs, err := squirrel.
			Update("accounts").
			Set("balance", squirrel.Expr("balance + ?", bonus)).
			Where(squirrel.Eq{"user_id": *acc.ReferrerID}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, bonusQuery, bonusArgs...)
		if err != nil {
			return fmt.Errorf("failed to credit referrer: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		bonusPaid = affected > 0
		return nil
	})
	if err != nil {
		return false, err
	}
	return bonusPaid, nil
}

func (r *Repository) ListAccountIDs(ctx context.Context) ([]string, error) {
	query, args, err := squirrel.
		Select("user_id").
		From("accounts").
		OrderBy("registration_date").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var ids []string
	err = r.db.SelectContext(ctx, &ids, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return ids, nil
}

func (r *Repository) CountAccounts(ctx context.Context) (int, error) {
	return r.count(ctx, squirrel.Select("COUNT(*)").From("accounts"))
}

func (r *Repository) CountPendingTasks(ctx context.Context) (int, error) {
	return r.count(ctx, squirrel.
		Select("COUNT(*)").
		From("accounts").
		Where("pending_email IS NOT NULL"))
}

func (r *Repository) count(ctx context.Context, b squirrel.SelectBuilder) (int, error) {
	query, args, err := b.PlaceholderFormat(squirrel.Dollar).ToSql()
	if err != nil {
		return 0, err
	}

	var n int
	err = r.db.GetContext(ctx, &n, query, args...)
	if err != nil {
		return 0, err
	}
	return n, nil
}

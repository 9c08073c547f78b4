package repository

import (
	"context"
	"fmt"
	"time"

	"taskreward_bot/internal/model"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// InsertProof appends one record to the audit log. Proof records are never
// updated or deleted.
func (r *Repository) InsertProof(ctx context.Context, proof *model.Proof) error {
	query, args, err := squirrel.
		Insert("proofs").
		SetMap(map[string]interface{}{
			"id":           proof.ID,
			"user_id":      proof.UserID,
			"first_name":   proof.Credential.FirstName,
			"last_name":    proof.Credential.LastName,
			"email":        proof.Credential.Email,
			"password":     proof.Credential.Password,
			"proof_text":   proof.ProofText,
			"submitted_at": proof.SubmittedAt,
		}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build proof insert query: %w", err)
	}

	_, err = r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to insert proof: %w", err)
	}
	return nil
}

func (r *Repository) CountProofs(ctx context.Context) (int, error) {
	return r.count(ctx, squirrel.Select("COUNT(*)").From("proofs"))
}

// SweepExpiredTasks moves every pending task assigned before cutoff into
// dead_letters and clears the owning accounts. Dead-lettered credentials do
// not rejoin the live queue. Returns the number of tasks swept.
func (r *Repository) SweepExpiredTasks(ctx context.Context, cutoff time.Time) (int, error) {
	swept := 0
	err := r.Transaction(ctx, func(tx *sqlx.Tx) error {
		query, args, err := squirrel.
			Select("*").
			From("accounts").
			Where("pending_email IS NOT NULL").
			Where(squirrel.Lt{"pending_assigned_at": cutoff}).
			Suffix("FOR UPDATE SKIP LOCKED").
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return err
		}

		var expired []account
		err = tx.SelectContext(ctx, &expired, query, args...)
		if err != nil {
			return fmt.Errorf("failed to select expired tasks: %w", err)
		}

		now := time.Now().UTC()
		for _, acc := range expired {
			insertQuery, insertArgs, err := squirrel.
				Insert("dead_letters").
				SetMap(map[string]interface{}{
					"id":          uuid.New(),
					"user_id":     acc.UserID,
					"first_name":  *acc.PendingFirstName,
					"last_name":   *acc.PendingLastName,
					"email":       *acc.PendingEmail,
					"password":    *acc.PendingPassword,
					"assigned_at": *acc.PendingAssignedAt,
					"expired_at":  now,
				}).
				PlaceholderFormat(squirrel.Dollar).
				ToSql()
			if err != nil {
				return err
			}

			_, err = tx.ExecContext(ctx, insertQuery, insertArgs...)
			if err != nil {
				return fmt.Errorf("failed to insert dead letter: %w", err)
			}

			err = clearPendingWithTx(ctx, tx, acc.UserID)
			if err != nil {
				return err
			}
			swept++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return swept, nil
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"taskreward_bot/internal/model"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

type credential struct {
	ID        int64  `db:"id"`
	FirstName string `db:"first_name"`
	LastName  string `db:"last_name"`
	Email     string `db:"email"`
	Password  string `db:"password"`
}

// PopCredential removes and returns the oldest credential. SKIP LOCKED
// keeps concurrent pops from ever seeing the same row, so issuance is
// at-most-once even under races. Returns ErrQueueEmpty when drained.
func (r *Repository) PopCredential(ctx context.Context) (*model.Credential, error) {
	var cred credential
	err := r.db.GetContext(ctx, &cred, `
        DELETE FROM credentials
        WHERE id = (
            SELECT id FROM credentials
            ORDER BY id
            LIMIT 1
            FOR UPDATE SKIP LOCKED
        )
        RETURNING id, first_name, last_name, email, password`)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrQueueEmpty
		}
		return nil, fmt.Errorf("failed to pop credential: %w", err)
	}

	return &model.Credential{
		FirstName: cred.FirstName,
		LastName:  cred.LastName,
		Email:     cred.Email,
		Password:  cred.Password,
	}, nil
}

func (r *Repository) CountCredentials(ctx context.Context) (int, error) {
	return r.count(ctx, squirrel.Select("COUNT(*)").From("credentials"))
}

// InsertCredentials appends provisioned credentials in slice order, which
// fixes their FIFO position.
func (r *Repository) InsertCredentials(ctx context.Context, creds []model.Credential) error {
	if len(creds) == 0 {
		return nil
	}

	return r.Transaction(ctx, func(tx *sqlx.Tx) error {
		builder := squirrel.
			Insert("credentials").
			Columns("first_name", "last_name", "email", "password")

		for _, c := range creds {
			builder = builder.Values(c.FirstName, c.LastName, c.Email, c.Password)
		}

		query, args, err := builder.PlaceholderFormat(squirrel.Dollar).ToSql()
		if err != nil {
			return fmt.Errorf("failed to build credentials insert query: %w", err)
		}

		_, err = tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to insert credentials: %w", err)
		}
		return nil
	})
}

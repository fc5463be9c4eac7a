package token

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

func Upsert(ctx context.Context, db sqlx.ExtContext, tok Token) error {
	const q = `
	INSERT INTO signup_tokens (email, otp, name, password_hash, expiry)
	VALUES (:email, :otp, :name, :password_hash, :expiry)
	ON CONFLICT (email) DO UPDATE
	SET otp = :otp, name = :name, password_hash = :password_hash, expiry = :expiry`

	if _, err := sqlx.NamedExecContext(ctx, db, q, tok); err != nil {
		return fmt.Errorf("upserting signup token: %w", err)
	}
	return nil
}

func Fetch(ctx context.Context, db sqlx.ExtContext, email string) (Token, error) {
	const q = `SELECT * FROM signup_tokens WHERE email = $1`

	var tok Token
	if err := sqlx.GetContext(ctx, db, &tok, q, email); err != nil {
		return Token{}, fmt.Errorf("selecting signup token: %w", err)
	}
	return tok, nil
}

func Delete(ctx context.Context, db sqlx.ExtContext, email string) error {
	const q = `DELETE FROM signup_tokens WHERE email = $1`

	if _, err := db.ExecContext(ctx, q, email); err != nil {
		return fmt.Errorf("deleting signup token: %w", err)
	}
	return nil
}

// PurgeExpired is the cleanup pass over the TTL table. It runs
// opportunistically whenever a new token is issued.
func PurgeExpired(ctx context.Context, db sqlx.ExtContext) error {
	const q = `DELETE FROM signup_tokens WHERE expiry < now()`

	if _, err := db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("purging expired signup tokens: %w", err)
	}
	return nil
}

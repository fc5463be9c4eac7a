package user

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

func Create(ctx context.Context, db sqlx.ExtContext, usr User) (User, error) {
	const q = `
	INSERT INTO users (name, email, role, password_hash, profile_url, active, created_at, updated_at)
	VALUES (:name, :email, :role, :password_hash, :profile_url, :active, :created_at, :updated_at)
	RETURNING user_id`

	rows, err := sqlx.NamedQueryContext(ctx, db, q, usr)
	if err != nil {
		return User{}, fmt.Errorf("inserting user: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return User{}, fmt.Errorf("inserting user: no id returned")
	}
	if err := rows.Scan(&usr.ID); err != nil {
		return User{}, fmt.Errorf("scanning user id: %w", err)
	}
	return usr, nil
}

func Fetch(ctx context.Context, db sqlx.ExtContext, id int64) (User, error) {
	const q = `SELECT * FROM users WHERE user_id = $1`

	var usr User
	if err := sqlx.GetContext(ctx, db, &usr, q, id); err != nil {
		return User{}, fmt.Errorf("selecting user[%d]: %w", id, err)
	}
	return usr, nil
}

func FetchByEmail(ctx context.Context, db sqlx.ExtContext, email string) (User, error) {
	const q = `SELECT * FROM users WHERE email = $1`

	var usr User
	if err := sqlx.GetContext(ctx, db, &usr, q, email); err != nil {
		return User{}, fmt.Errorf("selecting user by email: %w", err)
	}
	return usr, nil
}

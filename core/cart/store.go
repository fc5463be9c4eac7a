package cart

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// CreateItem adds a course to the user's cart. Adding the same course twice
// is a no-op.
func CreateItem(ctx context.Context, db sqlx.ExtContext, it Item) error {
	const q = `
	INSERT INTO cart_items (user_id, course_id, created_at)
	VALUES (:user_id, :course_id, :created_at)
	ON CONFLICT (user_id, course_id) DO NOTHING`

	if _, err := sqlx.NamedExecContext(ctx, db, q, it); err != nil {
		return fmt.Errorf("inserting cart item: %w", err)
	}
	return nil
}

func FetchItems(ctx context.Context, db sqlx.ExtContext, userID int64) ([]Item, error) {
	const q = `SELECT * FROM cart_items WHERE user_id = $1 ORDER BY created_at ASC`

	items := []Item{}
	if err := sqlx.SelectContext(ctx, db, &items, q, userID); err != nil {
		return nil, fmt.Errorf("selecting cart items for user[%d]: %w", userID, err)
	}
	return items, nil
}

// DeleteItem removes one pairing. A missing row is not an error.
func DeleteItem(ctx context.Context, db sqlx.ExtContext, userID int64, courseID int64) error {
	const q = `DELETE FROM cart_items WHERE user_id = $1 AND course_id = $2`

	if _, err := db.ExecContext(ctx, q, userID, courseID); err != nil {
		return fmt.Errorf("deleting cart item (user[%d], course[%d]): %w", userID, courseID, err)
	}
	return nil
}

func Delete(ctx context.Context, db sqlx.ExtContext, userID int64) error {
	const q = `DELETE FROM cart_items WHERE user_id = $1`

	if _, err := db.ExecContext(ctx, q, userID); err != nil {
		return fmt.Errorf("flushing cart of user[%d]: %w", userID, err)
	}
	return nil
}

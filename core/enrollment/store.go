package enrollment

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// ErrDuplicate reports that the (user, course) pair already holds an
// enrollment. Callers resolve it by reading the existing row.
var ErrDuplicate = errors.New("enrollment already exists")

const uniqueViolation = "23505"

// Create inserts the enrollment. The unique index on (user_id, course_id)
// is the serialization point for concurrent verification requests; losing a
// race surfaces as ErrDuplicate.
func Create(ctx context.Context, db sqlx.ExtContext, e Enrollment) (Enrollment, error) {
	const q = `
	INSERT INTO enrollments (user_id, course_id, progress, order_id, last_accessed_at, created_at)
	VALUES (:user_id, :course_id, :progress, :order_id, :last_accessed_at, :created_at)
	RETURNING enrollment_id`

	rows, err := sqlx.NamedQueryContext(ctx, db, q, e)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return Enrollment{}, ErrDuplicate
		}
		return Enrollment{}, fmt.Errorf("inserting enrollment: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return Enrollment{}, fmt.Errorf("inserting enrollment: no id returned")
	}
	if err := rows.Scan(&e.ID); err != nil {
		return Enrollment{}, fmt.Errorf("scanning enrollment id: %w", err)
	}
	return e, nil
}

func Fetch(ctx context.Context, db sqlx.ExtContext, userID int64, courseID int64) (Enrollment, error) {
	const q = `SELECT * FROM enrollments WHERE user_id = $1 AND course_id = $2`

	var e Enrollment
	if err := sqlx.GetContext(ctx, db, &e, q, userID, courseID); err != nil {
		return Enrollment{}, fmt.Errorf("selecting enrollment (user[%d], course[%d]): %w", userID, courseID, err)
	}
	return e, nil
}

func FetchLatest(ctx context.Context, db sqlx.ExtContext, userID int64) (Enrollment, error) {
	const q = `
	SELECT * FROM enrollments WHERE user_id = $1
	ORDER BY last_accessed_at DESC
	LIMIT 1`

	var e Enrollment
	if err := sqlx.GetContext(ctx, db, &e, q, userID); err != nil {
		return Enrollment{}, fmt.Errorf("selecting latest enrollment of user[%d]: %w", userID, err)
	}
	return e, nil
}

func CountByCourse(ctx context.Context, db sqlx.ExtContext, courseID int64) (int, error) {
	const q = `SELECT count(*) FROM enrollments WHERE course_id = $1`

	var n int
	if err := sqlx.GetContext(ctx, db, &n, q, courseID); err != nil {
		return 0, fmt.Errorf("counting enrollments of course[%d]: %w", courseID, err)
	}
	return n, nil
}

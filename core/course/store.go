package course

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

func Create(ctx context.Context, db sqlx.ExtContext, c Course) (Course, error) {
	const q = `
	INSERT INTO courses
		(instructor_id, category_id, title, description, tags, image_url, video_url, micro, approved, price, created_at, updated_at)
	VALUES
		(:instructor_id, :category_id, :title, :description, :tags, :image_url, :video_url, :micro, :approved, :price, :created_at, :updated_at)
	RETURNING course_id`

	rows, err := sqlx.NamedQueryContext(ctx, db, q, c)
	if err != nil {
		return Course{}, fmt.Errorf("inserting course: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return Course{}, fmt.Errorf("inserting course: no id returned")
	}
	if err := rows.Scan(&c.ID); err != nil {
		return Course{}, fmt.Errorf("scanning course id: %w", err)
	}
	return c, nil
}

func Fetch(ctx context.Context, db sqlx.ExtContext, id int64) (Course, error) {
	const q = `SELECT * FROM courses WHERE course_id = $1`

	var c Course
	if err := sqlx.GetContext(ctx, db, &c, q, id); err != nil {
		return Course{}, fmt.Errorf("selecting course[%d]: %w", id, err)
	}
	return c, nil
}

func Update(ctx context.Context, db sqlx.ExtContext, c Course) error {
	const q = `
	UPDATE courses SET
		title = :title,
		description = :description,
		tags = :tags,
		image_url = :image_url,
		price = :price,
		approved = :approved,
		updated_at = :updated_at
	WHERE course_id = :course_id`

	if _, err := sqlx.NamedExecContext(ctx, db, q, c); err != nil {
		return fmt.Errorf("updating course[%d]: %w", c.ID, err)
	}
	return nil
}

func Delete(ctx context.Context, db sqlx.ExtContext, id int64) error {
	const q = `DELETE FROM courses WHERE course_id = $1`

	if _, err := db.ExecContext(ctx, q, id); err != nil {
		return fmt.Errorf("deleting course[%d]: %w", id, err)
	}
	return nil
}

func Approve(ctx context.Context, db sqlx.ExtContext, id int64) error {
	const q = `UPDATE courses SET approved = true, updated_at = now() WHERE course_id = $1`

	if _, err := db.ExecContext(ctx, q, id); err != nil {
		return fmt.Errorf("approving course[%d]: %w", id, err)
	}
	return nil
}

// FetchApproved lists the public catalog, newest first.
func FetchApproved(ctx context.Context, db sqlx.ExtContext, tag string, limit int) ([]Course, error) {
	q := `SELECT * FROM courses WHERE approved`
	args := []interface{}{}
	if tag != "" {
		q += ` AND $1 = ANY(tags)`
		args = append(args, tag)
	}
	q += ` ORDER BY created_at DESC`
	if limit > 0 {
		q += fmt.Sprintf(` LIMIT %d`, limit)
	}

	cs := []Course{}
	if err := sqlx.SelectContext(ctx, db, &cs, q, args...); err != nil {
		return nil, fmt.Errorf("selecting approved courses: %w", err)
	}
	return cs, nil
}

func FetchByInstructor(ctx context.Context, db sqlx.ExtContext, instructorID int64) ([]Course, error) {
	const q = `SELECT * FROM courses WHERE instructor_id = $1 ORDER BY created_at DESC`

	cs := []Course{}
	if err := sqlx.SelectContext(ctx, db, &cs, q, instructorID); err != nil {
		return nil, fmt.Errorf("selecting instructor[%d] courses: %w", instructorID, err)
	}
	return cs, nil
}

// FetchEnrolled lists the courses a user holds an enrollment for.
func FetchEnrolled(ctx context.Context, db sqlx.ExtContext, userID int64) ([]Course, error) {
	const q = `
	SELECT c.* FROM courses AS c
	JOIN enrollments AS e ON e.course_id = c.course_id
	WHERE e.user_id = $1
	ORDER BY e.last_accessed_at DESC`

	cs := []Course{}
	if err := sqlx.SelectContext(ctx, db, &cs, q, userID); err != nil {
		return nil, fmt.Errorf("selecting enrolled courses for user[%d]: %w", userID, err)
	}
	return cs, nil
}

func FetchCategories(ctx context.Context, db sqlx.ExtContext) ([]Category, error) {
	const q = `SELECT * FROM categories ORDER BY name ASC`

	cats := []Category{}
	if err := sqlx.SelectContext(ctx, db, &cats, q); err != nil {
		return nil, fmt.Errorf("selecting categories: %w", err)
	}
	return cats, nil
}

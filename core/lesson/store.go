package lesson

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

func CreateSection(ctx context.Context, db sqlx.ExtContext, s Section) (Section, error) {
	const q = `
	INSERT INTO sections (course_id, title, position, created_at, updated_at)
	VALUES (:course_id, :title, :position, :created_at, :updated_at)
	RETURNING section_id`

	rows, err := sqlx.NamedQueryContext(ctx, db, q, s)
	if err != nil {
		return Section{}, fmt.Errorf("inserting section: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return Section{}, fmt.Errorf("inserting section: no id returned")
	}
	if err := rows.Scan(&s.ID); err != nil {
		return Section{}, fmt.Errorf("scanning section id: %w", err)
	}
	return s, nil
}

func FetchSection(ctx context.Context, db sqlx.ExtContext, id int64) (Section, error) {
	const q = `SELECT * FROM sections WHERE section_id = $1`

	var s Section
	if err := sqlx.GetContext(ctx, db, &s, q, id); err != nil {
		return Section{}, fmt.Errorf("selecting section[%d]: %w", id, err)
	}
	return s, nil
}

func FetchSectionsByCourse(ctx context.Context, db sqlx.ExtContext, courseID int64) ([]Section, error) {
	const q = `SELECT * FROM sections WHERE course_id = $1 ORDER BY position ASC`

	ss := []Section{}
	if err := sqlx.SelectContext(ctx, db, &ss, q, courseID); err != nil {
		return nil, fmt.Errorf("selecting sections of course[%d]: %w", courseID, err)
	}
	return ss, nil
}

func CountSections(ctx context.Context, db sqlx.ExtContext, courseID int64) (int, error) {
	const q = `SELECT count(*) FROM sections WHERE course_id = $1`

	var n int
	if err := sqlx.GetContext(ctx, db, &n, q, courseID); err != nil {
		return 0, fmt.Errorf("counting sections of course[%d]: %w", courseID, err)
	}
	return n, nil
}

func UpdateSectionPosition(ctx context.Context, db sqlx.ExtContext, id int64, position int) error {
	const q = `UPDATE sections SET position = $2, updated_at = now() WHERE section_id = $1`

	if _, err := db.ExecContext(ctx, q, id, position); err != nil {
		return fmt.Errorf("moving section[%d]: %w", id, err)
	}
	return nil
}

func Create(ctx context.Context, db sqlx.ExtContext, l Lesson) (Lesson, error) {
	const q = `
	INSERT INTO lessons (section_id, title, description, video_url, preview, position, created_at, updated_at)
	VALUES (:section_id, :title, :description, :video_url, :preview, :position, :created_at, :updated_at)
	RETURNING lesson_id`

	rows, err := sqlx.NamedQueryContext(ctx, db, q, l)
	if err != nil {
		return Lesson{}, fmt.Errorf("inserting lesson: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return Lesson{}, fmt.Errorf("inserting lesson: no id returned")
	}
	if err := rows.Scan(&l.ID); err != nil {
		return Lesson{}, fmt.Errorf("scanning lesson id: %w", err)
	}
	return l, nil
}

func FetchBySection(ctx context.Context, db sqlx.ExtContext, sectionID int64) ([]Lesson, error) {
	const q = `SELECT * FROM lessons WHERE section_id = $1 ORDER BY position ASC`

	ls := []Lesson{}
	if err := sqlx.SelectContext(ctx, db, &ls, q, sectionID); err != nil {
		return nil, fmt.Errorf("selecting lessons of section[%d]: %w", sectionID, err)
	}
	return ls, nil
}

func CountBySection(ctx context.Context, db sqlx.ExtContext, sectionID int64) (int, error) {
	const q = `SELECT count(*) FROM lessons WHERE section_id = $1`

	var n int
	if err := sqlx.GetContext(ctx, db, &n, q, sectionID); err != nil {
		return 0, fmt.Errorf("counting lessons of section[%d]: %w", sectionID, err)
	}
	return n, nil
}

func UpdatePosition(ctx context.Context, db sqlx.ExtContext, id int64, position int) error {
	const q = `UPDATE lessons SET position = $2, updated_at = now() WHERE lesson_id = $1`

	if _, err := db.ExecContext(ctx, q, id, position); err != nil {
		return fmt.Errorf("moving lesson[%d]: %w", id, err)
	}
	return nil
}

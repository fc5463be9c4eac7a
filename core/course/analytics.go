package course

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jmoiron/sqlx"
	"github.com/skillhive/skillhive/api/web"
	"github.com/skillhive/skillhive/api/weberr"
	"github.com/skillhive/skillhive/core/claims"
)

// Stats summarizes one course for the instructor dashboard. Revenue counts
// paid orders only, in whole rupees.
type Stats struct {
	CourseID    int64  `json:"courseId" db:"course_id"`
	Title       string `json:"title" db:"title"`
	Enrollments int    `json:"enrollments" db:"enrollments"`
	Revenue     int    `json:"revenue" db:"revenue"`
}

func FetchStats(ctx context.Context, db sqlx.ExtContext, instructorID int64) ([]Stats, error) {
	// Enrollments and orders are aggregated separately; joining both onto
	// courses would multiply each paid amount by the enrollment count.
	const q = `
	SELECT
		c.course_id,
		c.title,
		(SELECT count(*) FROM enrollments AS e WHERE e.course_id = c.course_id) AS enrollments,
		coalesce((SELECT sum(o.amount) FROM orders AS o
			WHERE o.course_id = c.course_id AND o.status = 'paid'), 0) AS revenue
	FROM courses AS c
	WHERE c.instructor_id = $1
	ORDER BY c.course_id`

	sts := []Stats{}
	if err := sqlx.SelectContext(ctx, db, &sts, q, instructorID); err != nil {
		return nil, fmt.Errorf("selecting stats for instructor[%d]: %w", instructorID, err)
	}
	return sts, nil
}

func HandleAnalytics(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		sts, err := FetchStats(ctx, db, clm.UserID)
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, sts, http.StatusOK)
	}
}

package enrollment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/skillhive/skillhive/api/web"
	"github.com/skillhive/skillhive/api/weberr"
	"github.com/skillhive/skillhive/core/claims"
	"github.com/skillhive/skillhive/core/course"
	"github.com/skillhive/skillhive/validate"
)

// HandleCreate is the free path: it grants access with no order attached.
// An existing enrollment is returned as-is rather than treated as an error.
func HandleCreate(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		var in EnrollmentNew
		if err := web.Decode(w, r, &in); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(in); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		c, err := course.Fetch(ctx, db, in.CourseID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return weberr.NotFound(err)
			}
			return err
		}

		if c.Price > 0 {
			err := errors.New("this course requires purchase")
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		if e, err := Fetch(ctx, db, clm.UserID, in.CourseID); err == nil {
			return web.Respond(ctx, w, e, http.StatusOK)
		} else if !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		now := time.Now().UTC()
		e := Enrollment{
			UserID:         clm.UserID,
			CourseID:       in.CourseID,
			Progress:       0,
			OrderID:        nil,
			LastAccessedAt: now,
			CreatedAt:      now,
		}

		e, err = Create(ctx, db, e)
		if errors.Is(err, ErrDuplicate) {
			// Lost a race against a concurrent enrollment; hand back the winner.
			e, err = Fetch(ctx, db, clm.UserID, in.CourseID)
			if err != nil {
				return err
			}
			return web.Respond(ctx, w, e, http.StatusOK)
		}
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, e, http.StatusCreated)
	}
}

// HandleShowCurrent returns the most recently accessed enrollment together
// with its course summary.
func HandleShowCurrent(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		e, err := FetchLatest(ctx, db, clm.UserID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return weberr.NotFound(errors.New("no current enrollment found"))
			}
			return err
		}

		c, err := course.Fetch(ctx, db, e.CourseID)
		if err != nil {
			return err
		}

		out := struct {
			CourseID    int64  `json:"courseId"`
			CourseTitle string `json:"courseTitle"`
			Progress    int    `json:"progress"`
			ImageURL    string `json:"imageUrl"`
		}{
			CourseID:    e.CourseID,
			CourseTitle: c.Title,
			Progress:    e.Progress,
			ImageURL:    c.ImageURL,
		}

		return web.Respond(ctx, w, out, http.StatusOK)
	}
}

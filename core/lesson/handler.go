package lesson

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
	"github.com/skillhive/skillhive/database"
	"github.com/skillhive/skillhive/media"
	"github.com/skillhive/skillhive/validate"
)

// owned fetches the course and enforces that the caller authored it.
func owned(ctx context.Context, db *sqlx.DB, courseID int64) (course.Course, error) {
	clm, err := claims.Get(ctx)
	if err != nil {
		return course.Course{}, weberr.NotAuthorized(errors.New("user not authenticated"))
	}

	c, err := course.Fetch(ctx, db, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return course.Course{}, weberr.NotFound(err)
		}
		return course.Course{}, err
	}

	if c.InstructorID != clm.UserID {
		return course.Course{}, weberr.Forbidden(errors.New("you are not the owner of this course"))
	}
	return c, nil
}

func HandleCreateSection(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		courseID, err := web.ParamID(r, "course_id")
		if err != nil {
			return weberr.BadRequest(err)
		}

		var sn SectionNew
		if err := web.Decode(w, r, &sn); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(sn); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		c, err := owned(ctx, db, courseID)
		if err != nil {
			return err
		}

		if c.Micro {
			return weberr.BadRequest(errors.New("cannot add sections to a micro-course"))
		}

		n, err := CountSections(ctx, db, courseID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		s := Section{
			CourseID:  courseID,
			Title:     sn.Title,
			Position:  n + 1,
			CreatedAt: now,
			UpdatedAt: now,
		}

		s, err = CreateSection(ctx, db, s)
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, s, http.StatusCreated)
	}
}

func HandleCreateLesson(db *sqlx.DB, up media.Uploader) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		sectionID, err := web.ParamID(r, "section_id")
		if err != nil {
			return weberr.BadRequest(err)
		}

		if err := r.ParseMultipartForm(10 << 20); err != nil {
			return weberr.BadRequest(fmt.Errorf("parsing multipart form: %w", err))
		}

		title := r.FormValue("title")
		if title == "" {
			return weberr.BadRequest(errors.New("title is required"))
		}

		videoFile, _, err := r.FormFile("video")
		if err != nil {
			return weberr.BadRequest(errors.New("a lesson video is required"))
		}
		defer videoFile.Close()

		s, err := FetchSection(ctx, db, sectionID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return weberr.NotFound(err)
			}
			return err
		}

		if _, err := owned(ctx, db, s.CourseID); err != nil {
			return err
		}

		videoURL, err := up.UploadVideo(ctx, videoFile, "lessons/videos")
		if err != nil {
			return fmt.Errorf("uploading lesson video: %w", err)
		}

		n, err := CountBySection(ctx, db, sectionID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		l := Lesson{
			SectionID:   sectionID,
			Title:       title,
			Description: r.FormValue("description"),
			VideoURL:    videoURL,
			Preview:     r.FormValue("isPreview") == "true",
			Position:    n + 1,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		l, err = Create(ctx, db, l)
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, l, http.StatusCreated)
	}
}

// HandleReorderSections applies a full position assignment in one
// transaction so a partial reorder can never be observed.
func HandleReorderSections(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		courseID, err := web.ParamID(r, "course_id")
		if err != nil {
			return weberr.BadRequest(err)
		}

		var in struct {
			Order []Reorder `json:"order" validate:"required,min=1,dive"`
		}
		if err := web.Decode(w, r, &in); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(in); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		if _, err := owned(ctx, db, courseID); err != nil {
			return err
		}

		ss, err := FetchSectionsByCourse(ctx, db, courseID)
		if err != nil {
			return err
		}

		known := make(map[int64]bool, len(ss))
		for _, s := range ss {
			known[s.ID] = true
		}
		for _, item := range in.Order {
			if !known[item.ID] {
				err := fmt.Errorf("section[%d] does not belong to this course", item.ID)
				return weberr.NewError(err, err.Error(), http.StatusBadRequest)
			}
		}

		err = database.Transaction(db, func(tx sqlx.ExtContext) error {
			for _, item := range in.Order {
				if err := UpdateSectionPosition(ctx, tx, item.ID, item.Position); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

func HandleReorderLessons(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		sectionID, err := web.ParamID(r, "section_id")
		if err != nil {
			return weberr.BadRequest(err)
		}

		var in struct {
			Order []Reorder `json:"order" validate:"required,min=1,dive"`
		}
		if err := web.Decode(w, r, &in); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(in); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		s, err := FetchSection(ctx, db, sectionID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return weberr.NotFound(err)
			}
			return err
		}

		if _, err := owned(ctx, db, s.CourseID); err != nil {
			return err
		}

		ls, err := FetchBySection(ctx, db, sectionID)
		if err != nil {
			return err
		}

		known := make(map[int64]bool, len(ls))
		for _, l := range ls {
			known[l.ID] = true
		}
		for _, item := range in.Order {
			if !known[item.ID] {
				err := fmt.Errorf("lesson[%d] does not belong to this section", item.ID)
				return weberr.NewError(err, err.Error(), http.StatusBadRequest)
			}
		}

		err = database.Transaction(db, func(tx sqlx.ExtContext) error {
			for _, item := range in.Order {
				if err := UpdatePosition(ctx, tx, item.ID, item.Position); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

func HandleListByCourse(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		courseID, err := web.ParamID(r, "course_id")
		if err != nil {
			return weberr.BadRequest(err)
		}

		ss, err := FetchSectionsByCourse(ctx, db, courseID)
		if err != nil {
			return err
		}

		type sectionFull struct {
			Section
			Lessons []Lesson `json:"lessons"`
		}

		out := make([]sectionFull, 0, len(ss))
		for _, s := range ss {
			ls, err := FetchBySection(ctx, db, s.ID)
			if err != nil {
				return err
			}
			out = append(out, sectionFull{Section: s, Lessons: ls})
		}

		return web.Respond(ctx, w, out, http.StatusOK)
	}
}

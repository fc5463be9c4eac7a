package course

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/skillhive/skillhive/api/web"
	"github.com/skillhive/skillhive/api/weberr"
	"github.com/skillhive/skillhive/core/claims"
	"github.com/skillhive/skillhive/media"
	"github.com/skillhive/skillhive/validate"
)

const maxUploadBytes = 10 << 20

// HandleCreate creates a course from a multipart form. A micro course is a
// single standalone video; regular courses get their videos via lessons.
func HandleCreate(db *sqlx.DB, up media.Uploader) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			return weberr.BadRequest(fmt.Errorf("parsing multipart form: %w", err))
		}

		cn := CourseNew{
			Title:       r.FormValue("title"),
			Description: r.FormValue("description"),
			Micro:       r.FormValue("isMicroCourse") == "true",
		}

		if raw := r.FormValue("price"); raw != "" {
			price, err := strconv.Atoi(raw)
			if err != nil {
				return weberr.BadRequest(errors.New("price must be an integer amount of rupees"))
			}
			cn.Price = price
		}

		if raw := r.FormValue("tags"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &cn.Tags); err != nil {
				return weberr.BadRequest(errors.New("tags must be a JSON array of strings"))
			}
		}

		if raw := r.FormValue("categoryId"); raw != "" {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return weberr.BadRequest(errors.New("categoryId must be an integer"))
			}
			cn.CategoryID = &id
		}

		if err := validate.Check(cn); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		videoFile, _, videoErr := r.FormFile("video")
		hasVideo := videoErr == nil
		if hasVideo {
			defer videoFile.Close()
		}

		// A course is micro exactly when it carries its own video.
		if !cn.Micro && hasVideo {
			cn.Micro = true
		}
		if cn.Micro && !hasVideo {
			return weberr.BadRequest(errors.New("a video is required for a micro-course"))
		}

		var imageURL, videoURL string
		if imageFile, _, err := r.FormFile("image"); err == nil {
			defer imageFile.Close()
			imageURL, err = up.UploadImage(ctx, imageFile, "courses/images")
			if err != nil {
				return fmt.Errorf("uploading course image: %w", err)
			}
		}
		if hasVideo {
			videoURL, err = up.UploadVideo(ctx, videoFile, "courses/videos")
			if err != nil {
				return fmt.Errorf("uploading course video: %w", err)
			}
		}

		now := time.Now().UTC()
		c := Course{
			InstructorID: clm.UserID,
			CategoryID:   cn.CategoryID,
			Title:        cn.Title,
			Description:  cn.Description,
			Tags:         cn.Tags,
			ImageURL:     imageURL,
			VideoURL:     videoURL,
			Micro:        cn.Micro,
			Price:        cn.Price,
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		c, err = Create(ctx, db, c)
		if err != nil {
			return fmt.Errorf("creating course: %w", err)
		}

		return web.Respond(ctx, w, c, http.StatusCreated)
	}
}

// HandleUpdate mutates a course owned by the caller. Any edit drops the
// approved flag so an admin reviews the change.
func HandleUpdate(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		id, err := web.ParamID(r, "id")
		if err != nil {
			return weberr.BadRequest(err)
		}

		var cu CourseUp
		if err := web.Decode(w, r, &cu); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(cu); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		c, err := Fetch(ctx, db, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return weberr.NotFound(err)
			}
			return err
		}

		if c.InstructorID != clm.UserID {
			return weberr.Forbidden(errors.New("you are not the owner of this course"))
		}

		if cu.Title != nil {
			c.Title = *cu.Title
		}
		if cu.Description != nil {
			c.Description = *cu.Description
		}
		if cu.Tags != nil {
			c.Tags = cu.Tags
		}
		if cu.Price != nil {
			c.Price = *cu.Price
		}
		c.Approved = false
		c.UpdatedAt = time.Now().UTC()

		if err := Update(ctx, db, c); err != nil {
			return err
		}

		return web.Respond(ctx, w, c, http.StatusOK)
	}
}

func HandleDelete(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		id, err := web.ParamID(r, "id")
		if err != nil {
			return weberr.BadRequest(err)
		}

		c, err := Fetch(ctx, db, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return weberr.NotFound(err)
			}
			return err
		}

		if c.InstructorID != clm.UserID {
			return weberr.Forbidden(errors.New("you are not the owner of this course"))
		}

		if err := Delete(ctx, db, id); err != nil {
			return err
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

func HandleApprove(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id, err := web.ParamID(r, "id")
		if err != nil {
			return weberr.BadRequest(err)
		}

		c, err := Fetch(ctx, db, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return weberr.NotFound(err)
			}
			return err
		}

		if c.Approved {
			return weberr.BadRequest(errors.New("course is already approved"))
		}

		if err := Approve(ctx, db, id); err != nil {
			return err
		}

		c.Approved = true
		return web.Respond(ctx, w, c, http.StatusOK)
	}
}

func HandleShow(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id, err := web.ParamID(r, "id")
		if err != nil {
			return weberr.BadRequest(err)
		}

		c, err := Fetch(ctx, db, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return weberr.NotFound(err)
			}
			return err
		}

		return web.Respond(ctx, w, c, http.StatusOK)
	}
}

func HandleList(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		cs, err := FetchApproved(ctx, db, "", 0)
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, cs, http.StatusOK)
	}
}

// HandleRecommended returns a small tag-filtered slice of the catalog.
func HandleRecommended(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		cs, err := FetchApproved(ctx, db, r.URL.Query().Get("tag"), 3)
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, cs, http.StatusOK)
	}
}

func HandleListOwned(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		cs, err := FetchEnrolled(ctx, db, clm.UserID)
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, cs, http.StatusOK)
	}
}

func HandleListMine(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		cs, err := FetchByInstructor(ctx, db, clm.UserID)
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, cs, http.StatusOK)
	}
}

func HandleCategories(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		cats, err := FetchCategories(ctx, db)
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, cats, http.StatusOK)
	}
}

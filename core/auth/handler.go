package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/jmoiron/sqlx"
	"github.com/skillhive/skillhive/api/background"
	"github.com/skillhive/skillhive/api/web"
	"github.com/skillhive/skillhive/api/weberr"
	"github.com/skillhive/skillhive/core/claims"
	"github.com/skillhive/skillhive/core/token"
	"github.com/skillhive/skillhive/core/user"
	"github.com/skillhive/skillhive/random"
	"github.com/skillhive/skillhive/validate"
	"golang.org/x/crypto/bcrypt"
)

const otpLength = 6

// HandleSignup stores the pending signup and mails a one-time password. No
// user row exists until the OTP comes back.
func HandleSignup(db *sqlx.DB, session *scs.SessionManager, mailer token.Mailer, timeout time.Duration, bg *background.Background, activationRequired bool) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var su user.UserSignup
		if err := web.Decode(w, r, &su); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(su); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		if _, err := user.FetchByEmail(ctx, db, su.Email); err == nil {
			err := errors.New("email already in use")
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		} else if !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(su.Password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hashing password: %w", err)
		}

		if !activationRequired {
			now := time.Now().UTC()
			usr := user.User{
				Name:         su.Name,
				Email:        su.Email,
				Role:         claims.RoleLearner,
				PasswordHash: string(hash),
				Active:       true,
				CreatedAt:    now,
				UpdatedAt:    now,
			}

			usr, err = user.Create(ctx, db, usr)
			if err != nil {
				return fmt.Errorf("creating user: %w", err)
			}

			if err := login(ctx, session, usr.ID, usr.Role); err != nil {
				return fmt.Errorf("opening session: %w", err)
			}
			return web.Respond(ctx, w, usr, http.StatusCreated)
		}

		otp, err := random.OTP(otpLength)
		if err != nil {
			return fmt.Errorf("generating otp: %w", err)
		}

		tok := token.Token{
			Email:        su.Email,
			OTP:          otp,
			Name:         su.Name,
			PasswordHash: string(hash),
			Expiry:       time.Now().UTC().Add(timeout),
		}

		if err := token.Upsert(ctx, db, tok); err != nil {
			return err
		}

		// Cleanup pass over the TTL table piggybacks on token issuance.
		if err := token.PurgeExpired(ctx, db); err != nil {
			return err
		}

		bg.Add(func() error {
			return mailer.SendOTP(su.Email, otp)
		})

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

// HandleVerify redeems the OTP and creates the account.
func HandleVerify(db *sqlx.DB, session *scs.SessionManager) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var in struct {
			Email string `json:"email" validate:"required,email"`
			OTP   string `json:"otp" validate:"required"`
		}
		if err := web.Decode(w, r, &in); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(in); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		tok, err := token.Fetch(ctx, db, in.Email)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				err := errors.New("no pending signup for this email")
				return weberr.NewError(err, err.Error(), http.StatusBadRequest)
			}
			return err
		}

		if time.Now().UTC().After(tok.Expiry) {
			if err := token.Delete(ctx, db, in.Email); err != nil {
				return err
			}
			err := errors.New("the one-time password has expired")
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		if tok.OTP != in.OTP {
			return weberr.BadRequest(errors.New("invalid one-time password"))
		}

		now := time.Now().UTC()
		usr := user.User{
			Name:         tok.Name,
			Email:        tok.Email,
			Role:         claims.RoleLearner,
			PasswordHash: tok.PasswordHash,
			Active:       true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		usr, err = user.Create(ctx, db, usr)
		if err != nil {
			return fmt.Errorf("creating user: %w", err)
		}

		if err := token.Delete(ctx, db, in.Email); err != nil {
			return err
		}

		if err := login(ctx, session, usr.ID, usr.Role); err != nil {
			return fmt.Errorf("opening session: %w", err)
		}

		return web.Respond(ctx, w, usr, http.StatusCreated)
	}
}

func HandleLogin(db *sqlx.DB, session *scs.SessionManager) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var in user.UserLogin
		if err := web.Decode(w, r, &in); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(in); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		usr, err := user.FetchByEmail(ctx, db, in.Email)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return weberr.NotAuthorized(errors.New("invalid email or password"))
			}
			return err
		}

		if err := bcrypt.CompareHashAndPassword([]byte(usr.PasswordHash), []byte(in.Password)); err != nil {
			return weberr.NotAuthorized(errors.New("invalid email or password"))
		}

		if !usr.Active {
			return weberr.Forbidden(errors.New("account is not activated"))
		}

		if err := login(ctx, session, usr.ID, usr.Role); err != nil {
			return fmt.Errorf("opening session: %w", err)
		}

		return web.Respond(ctx, w, usr, http.StatusOK)
	}
}

func HandleLogout(session *scs.SessionManager) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		if err := session.Destroy(ctx); err != nil {
			return fmt.Errorf("destroying session: %w", err)
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

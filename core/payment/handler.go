package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/skillhive/skillhive/api/web"
	"github.com/skillhive/skillhive/api/weberr"
	"github.com/skillhive/skillhive/config"
	"github.com/skillhive/skillhive/core/cart"
	"github.com/skillhive/skillhive/core/claims"
	"github.com/skillhive/skillhive/core/course"
	"github.com/skillhive/skillhive/core/enrollment"
	"github.com/skillhive/skillhive/database"
	"github.com/skillhive/skillhive/validate"
)

const currency = "INR"

// paiseFactor converts whole rupees to the gateway's minor unit.
const paiseFactor = 100

// HandleCreateOrder opens a checkout attempt: it prices the course, creates
// the remote gateway order and persists the local record in "created".
// Nothing is persisted when the gateway call fails.
func HandleCreateOrder(db *sqlx.DB, gw Gateway, cfg config.Razorpay) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		var in OrderNew
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

		if c.Price <= 0 {
			err := errors.New("course price is not set or is invalid")
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		if _, err := enrollment.Fetch(ctx, db, clm.UserID, c.ID); err == nil {
			err := errors.New("you are already enrolled in this course")
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		} else if !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		amountPaise := int64(c.Price) * paiseFactor

		// The receipt is unique per attempt to aid debugging; retries
		// deliberately open fresh gateway orders.
		receipt := fmt.Sprintf("receipt_course_%d_user_%d_%d", c.ID, clm.UserID, time.Now().UnixMilli())

		gatewayOrderID, err := gw.CreateOrder(ctx, amountPaise, currency, receipt, map[string]interface{}{
			"courseId":    fmt.Sprint(c.ID),
			"userId":      fmt.Sprint(clm.UserID),
			"courseTitle": c.Title,
		})
		if err != nil {
			return weberr.BadGateway(fmt.Errorf("creating gateway order: %w", err))
		}

		now := time.Now().UTC()
		ord := Order{
			UserID:         clm.UserID,
			CourseID:       c.ID,
			GatewayOrderID: gatewayOrderID,
			Amount:         c.Price,
			Currency:       currency,
			Status:         Created,
			CreatedAt:      now,
			UpdatedAt:      now,
		}

		if _, err := CreateOrder(ctx, db, ord); err != nil {
			return fmt.Errorf("persisting order bound to payment[%s]: %w", gatewayOrderID, err)
		}

		out := struct {
			OrderID     string `json:"orderId"`
			Amount      int64  `json:"amount"`
			Currency    string `json:"currency"`
			KeyID       string `json:"keyId"`
			CourseTitle string `json:"courseTitle"`
			CourseImage string `json:"courseImage"`
		}{
			OrderID:     gatewayOrderID,
			Amount:      amountPaise,
			Currency:    currency,
			KeyID:       cfg.KeyID,
			CourseTitle: c.Title,
			CourseImage: c.ImageURL,
		}

		return web.Respond(ctx, w, out, http.StatusOK)
	}
}

type verified struct {
	Enrollment enrollment.Enrollment `json:"enrollment"`
	Order      Order                 `json:"order"`
}

// HandleVerify reconciles a client-reported confirmation against the held
// order: signature first, then ownership, then an idempotent grant applied
// atomically with the order transition and the cart cleanup.
func HandleVerify(db *sqlx.DB, log logrus.FieldLogger, cfg config.Razorpay) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		var in Confirmation
		if err := web.Decode(w, r, &in); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(in); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		if !VerifySignature(cfg.Secret, in.OrderID, in.PaymentID, in.Signature) {
			n, uerr := MarkSignatureFailure(ctx, db, in.OrderID, clm.UserID, in.PaymentID, in.Signature)
			if uerr != nil {
				return uerr
			}
			if n == 0 {
				log.WithFields(logrus.Fields{
					"gateway_order_id": in.OrderID,
					"user_id":          clm.UserID,
				}).Error("signature failure for unknown order")
			}

			err := errors.New("payment verification failed: invalid signature")
			return weberr.NewError(err, err.Error(), http.StatusBadRequest, weberr.WithFields(map[string]interface{}{
				"gateway_order_id": in.OrderID,
				"user_id":          clm.UserID,
			}))
		}

		ord, err := FetchByGatewayOrderID(ctx, db, in.OrderID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return weberr.NotFound(errors.New("order not found"))
			}
			return err
		}

		if ord.UserID != clm.UserID {
			return weberr.Forbidden(errors.New("this order does not belong to the current user"))
		}

		if ord.CourseID != in.CourseID {
			err := errors.New("order course mismatch with the provided course")
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		// Failure states are terminal; a later confirmation cannot revive
		// the order, the client has to open a new one.
		if ord.Status == Failed || ord.Status == FailedSignature {
			err := errors.New("order is no longer payable")
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		if ord.Status == Paid {
			if e, err := enrollment.Fetch(ctx, db, clm.UserID, ord.CourseID); err == nil {
				return web.Respond(ctx, w, verified{Enrollment: e, Order: ord}, http.StatusOK)
			} else if !errors.Is(err, sql.ErrNoRows) {
				return err
			}

			// A paid order with no enrollment should not happen; repair by
			// falling through to the grant.
			log.WithField("order_id", ord.ID).Warn("paid order without enrollment, repairing")
		}

		now := time.Now().UTC()
		enr := enrollment.Enrollment{
			UserID:         clm.UserID,
			CourseID:       ord.CourseID,
			Progress:       0,
			OrderID:        &ord.ID,
			LastAccessedAt: now,
			CreatedAt:      now,
		}

		// The grant, the order transition and the cart cleanup commit
		// together or not at all.
		txErr := database.Transaction(db, func(tx sqlx.ExtContext) error {
			e, err := enrollment.Create(ctx, tx, enr)
			if err != nil {
				return err
			}
			enr = e

			if err := MarkPaid(ctx, tx, ord.ID, in.PaymentID, in.Signature); err != nil {
				return err
			}

			if err := cart.DeleteItem(ctx, tx, clm.UserID, ord.CourseID); err != nil {
				return err
			}
			return nil
		})

		if errors.Is(txErr, enrollment.ErrDuplicate) {
			// Lost the race against a concurrent verification; the winner's
			// grant is the result.
			enr, err = enrollment.Fetch(ctx, db, clm.UserID, ord.CourseID)
			if err != nil {
				return err
			}
			ord, err = FetchByGatewayOrderID(ctx, db, in.OrderID)
			if err != nil {
				return err
			}
			return web.Respond(ctx, w, verified{Enrollment: enr, Order: ord}, http.StatusOK)
		}
		if txErr != nil {
			return fmt.Errorf("fulfilling order[%d] bound to payment[%s]: %w", ord.ID, in.OrderID, txErr)
		}

		ord.Status = Paid
		ord.GatewayPaymentID = &in.PaymentID
		ord.GatewaySignature = &in.Signature

		return web.Respond(ctx, w, verified{Enrollment: enr, Order: ord}, http.StatusOK)
	}
}

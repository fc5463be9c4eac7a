package payment

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

func CreateOrder(ctx context.Context, db sqlx.ExtContext, ord Order) (Order, error) {
	const q = `
	INSERT INTO orders
		(user_id, course_id, gateway_order_id, amount, currency, status, created_at, updated_at)
	VALUES
		(:user_id, :course_id, :gateway_order_id, :amount, :currency, :status, :created_at, :updated_at)
	RETURNING order_id`

	rows, err := sqlx.NamedQueryContext(ctx, db, q, ord)
	if err != nil {
		return Order{}, fmt.Errorf("inserting order: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return Order{}, fmt.Errorf("inserting order: no id returned")
	}
	if err := rows.Scan(&ord.ID); err != nil {
		return Order{}, fmt.Errorf("scanning order id: %w", err)
	}
	return ord, nil
}

func FetchByGatewayOrderID(ctx context.Context, db sqlx.ExtContext, gatewayOrderID string) (Order, error) {
	const q = `SELECT * FROM orders WHERE gateway_order_id = $1`

	var ord Order
	if err := sqlx.GetContext(ctx, db, &ord, q, gatewayOrderID); err != nil {
		return Order{}, fmt.Errorf("selecting order bound to payment[%s]: %w", gatewayOrderID, err)
	}
	return ord, nil
}

// MarkPaid finalizes the order, recording the confirmation for audit.
func MarkPaid(ctx context.Context, db sqlx.ExtContext, orderID int64, paymentID string, signature string) error {
	const q = `
	UPDATE orders SET
		status = $2,
		gateway_payment_id = $3,
		gateway_signature = $4,
		updated_at = now()
	WHERE order_id = $1`

	if _, err := db.ExecContext(ctx, q, orderID, Paid, paymentID, signature); err != nil {
		return fmt.Errorf("marking order[%d] paid: %w", orderID, err)
	}
	return nil
}

// MarkSignatureFailure records a tampered confirmation against the matching
// order, keeping the supplied payment id and signature for audit. It
// returns the number of rows touched: zero means no such order exists,
// which the caller reports as an anomaly.
func MarkSignatureFailure(ctx context.Context, db sqlx.ExtContext, gatewayOrderID string, userID int64, paymentID string, signature string) (int64, error) {
	const q = `
	UPDATE orders SET
		status = $3,
		gateway_payment_id = $4,
		gateway_signature = $5,
		updated_at = now()
	WHERE gateway_order_id = $1 AND user_id = $2`

	res, err := db.ExecContext(ctx, q, gatewayOrderID, userID, FailedSignature, paymentID, signature)
	if err != nil {
		return 0, fmt.Errorf("marking order bound to payment[%s] signature-failed: %w", gatewayOrderID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting affected orders: %w", err)
	}
	return n, nil
}

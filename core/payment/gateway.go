package payment

import (
	"context"
	"fmt"

	razorpay "github.com/razorpay/razorpay-go"
	"github.com/skillhive/skillhive/config"
)

// Gateway creates remote payment orders. The Razorpay implementation is the
// only production one; tests substitute a fake or point the client at a
// mock server.
type Gateway interface {
	CreateOrder(ctx context.Context, amountPaise int64, currency string, receipt string, notes map[string]interface{}) (string, error)
}

type Razorpay struct {
	client *razorpay.Client
}

func NewRazorpay(cfg config.Razorpay) *Razorpay {
	client := razorpay.NewClient(cfg.KeyID, cfg.Secret)
	if cfg.URL != "" {
		client.Order.Request.BaseURL = cfg.URL
	}
	return &Razorpay{client: client}
}

func (r *Razorpay) CreateOrder(ctx context.Context, amountPaise int64, currency string, receipt string, notes map[string]interface{}) (string, error) {
	data := map[string]interface{}{
		"amount":   amountPaise,
		"currency": currency,
		"receipt":  receipt,
		"notes":    notes,
	}

	ord, err := r.client.Order.Create(data, nil)
	if err != nil {
		return "", fmt.Errorf("creating gateway order: %w", err)
	}

	id, ok := ord["id"].(string)
	if !ok || id == "" {
		return "", fmt.Errorf("gateway order response carries no id")
	}
	return id, nil
}

package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Signature computes the confirmation signature the gateway produces over a
// checkout: hex(HMAC-SHA256(secret, order_id + "|" + payment_id)).
func Signature(secret string, gatewayOrderID string, gatewayPaymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(gatewayOrderID + "|" + gatewayPaymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether the supplied signature is genuine. The
// comparison is constant time.
func VerifySignature(secret string, gatewayOrderID string, gatewayPaymentID string, signature string) bool {
	want := Signature(secret, gatewayOrderID, gatewayPaymentID)
	return hmac.Equal([]byte(want), []byte(signature))
}

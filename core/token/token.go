package token

import "time"

// Token is a pending signup awaiting OTP confirmation. The row carries the
// signup payload so no user exists until the email is proven.
type Token struct {
	Email        string    `db:"email"`
	OTP          string    `db:"otp"`
	Name         string    `db:"name"`
	PasswordHash string    `db:"password_hash"`
	Expiry       time.Time `db:"expiry"`
}

// Mailer delivers one-time passwords. Implemented by the email package and
// faked in tests.
type Mailer interface {
	SendOTP(to string, otp string) error
}
